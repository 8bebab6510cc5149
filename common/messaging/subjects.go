package messaging

import "strings"

// Subject names for the sportsagg message bus.
// Follow the pattern: {domain}.{action}.{resource}
const (
	// SubjectGamesIngested prefixes raw game reports (append .{sport}).
	SubjectGamesIngested = "games.ingested"

	// SubjectGamesIngestedAll matches every raw game report.
	SubjectGamesIngestedAll = SubjectGamesIngested + ".>"

	// SubjectGamesDLQ prefixes dead-lettered reports (append .{reason}).
	SubjectGamesDLQ = "games.dlq"

	// SubjectGamesDLQAll matches every dead-lettered report.
	SubjectGamesDLQAll = SubjectGamesDLQ + ".>"
)

// Stream and consumer names.
const (
	StreamGames    = "GAMES"
	StreamGamesDLQ = "GAMES_DLQ"

	ConsumerGameProcessor = "game-processor"
)

// Header keys set by publishers.
const (
	HeaderRequestID = "X-Request-ID"
	HeaderSource    = "X-Source"
)

var tokenReplacer = strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_", "\t", "_")

// subjectToken turns free text into a single subject token.
func subjectToken(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "unknown"
	}
	return tokenReplacer.Replace(s)
}

// GamesIngestedSubject returns the subject a report for sport is published to.
// Example: games.ingested.ice_hockey
func GamesIngestedSubject(sport string) string {
	return SubjectGamesIngested + "." + subjectToken(sport)
}

// GamesDLQSubject returns the dead-letter subject for reason.
// Example: games.dlq.malformed
func GamesDLQSubject(reason string) string {
	return SubjectGamesDLQ + "." + subjectToken(reason)
}
