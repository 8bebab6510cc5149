package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/telhawk-systems/sportsagg/common/models"
)

// BucketWidth is the width of a time bucket and the duplicate tolerance window.
const BucketWidth = 2 * time.Hour

// bucketLayout renders a bucket start as yyyyMMddHHmm.
const bucketLayout = "200601021504"

const separator = "|"

// BucketStart returns the start of the 2h bucket, aligned to UTC midnight,
// that contains t.
func BucketStart(t time.Time) time.Time {
	t = t.UTC()
	dayStart := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	hours := t.Hour() / int(BucketWidth/time.Hour) * int(BucketWidth/time.Hour)
	return dayStart.Add(time.Duration(hours) * time.Hour)
}

// Fingerprint returns the lowercase hex SHA-256 of
// sport|competition|team1|team2|yyyyMMddHHmm, with the teams ordered so that
// home/away swaps produce the same value.
func Fingerprint(sport, competition, teamA, teamB string, scheduledAt time.Time) string {
	team1, team2 := OrderTeams(teamA, teamB)

	key := strings.Join([]string{
		Normalize(sport),
		Normalize(competition),
		team1,
		team2,
		BucketStart(scheduledAt).Format(bucketLayout),
	}, separator)

	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// AdjacentFingerprint returns the fingerprint of the neighbouring bucket
// nearest to scheduledAt. Ties go to the previous bucket.
func AdjacentFingerprint(sport, competition, teamA, teamB string, scheduledAt time.Time) string {
	return Fingerprint(sport, competition, teamA, teamB, adjacentTime(scheduledAt))
}

func adjacentTime(t time.Time) time.Time {
	t = t.UTC()
	start := BucketStart(t)
	boundary := start.Add(BucketWidth)

	distToPrev := t.Sub(start)
	distToNext := boundary.Sub(t)
	if distToPrev <= distToNext {
		return t.Add(-BucketWidth)
	}
	return t.Add(BucketWidth)
}

// Pair holds both fingerprints computed for one event.
type Pair struct {
	Primary     string
	Adjacent    string
	BucketStart time.Time
}

// Compute derives the fingerprint pair for an event.
func Compute(e *models.IngestedEvent) Pair {
	return Pair{
		Primary:     Fingerprint(e.SportType, e.CompetitionName, e.HomeTeam, e.AwayTeam, e.ScheduledAtUTC),
		Adjacent:    AdjacentFingerprint(e.SportType, e.CompetitionName, e.HomeTeam, e.AwayTeam, e.ScheduledAtUTC),
		BucketStart: BucketStart(e.ScheduledAtUTC),
	}
}
