package source

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/telhawk-systems/sportsagg/common/models"
)

// DefaultMirrorCapacity is how many observed games a mirror remembers.
const DefaultMirrorCapacity = 64

// MaxMirrorSkew bounds how far a mirrored kickoff time drifts.
const MaxMirrorSkew = 20 * time.Minute

// MirrorSource re-reports games other sources already published, the way a
// second provider would: different casing and padding, home and away
// sometimes swapped, kickoff a few minutes off.
type MirrorSource struct {
	faker    *gofakeit.Faker
	now      func() time.Time
	capacity int

	mu   sync.Mutex
	seen []models.IngestedEvent
	next int
}

// NewMirrorSource creates a mirror remembering up to capacity games.
func NewMirrorSource(faker *gofakeit.Faker, capacity int, opts ...Option) *MirrorSource {
	if capacity < 1 {
		capacity = DefaultMirrorCapacity
	}
	o := applyOptions(opts)
	return &MirrorSource{
		faker:    faker,
		now:      o.now,
		capacity: capacity,
		seen:     make([]models.IngestedEvent, 0, capacity),
	}
}

// Name implements Source.
func (m *MirrorSource) Name() string { return Mirror }

// Observe remembers published games, overwriting the oldest when full.
func (m *MirrorSource) Observe(events []models.IngestedEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range events {
		if e.Source == Mirror {
			continue
		}
		if len(m.seen) < m.capacity {
			m.seen = append(m.seen, e)
			continue
		}
		m.seen[m.next] = e
		m.next = (m.next + 1) % m.capacity
	}
}

// Fetch implements Source. It returns nothing until games were observed.
func (m *MirrorSource) Fetch(ctx context.Context) ([]models.IngestedEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	seen := append([]models.IngestedEvent(nil), m.seen...)
	m.mu.Unlock()
	if len(seen) == 0 {
		return nil, nil
	}

	now := m.now().UTC()
	count := min(m.faker.IntRange(1, 3), len(seen))
	events := make([]models.IngestedEvent, 0, count)
	for range count {
		original := seen[m.faker.IntRange(0, len(seen)-1)]
		events = append(events, m.distort(original, now))
	}
	return events, nil
}

func (m *MirrorSource) distort(e models.IngestedEvent, now time.Time) models.IngestedEvent {
	home, away := e.HomeTeam, e.AwayTeam
	if m.faker.Bool() {
		home, away = away, home
	}
	skewMinutes := int(MaxMirrorSkew / time.Minute)
	skew := time.Duration(m.faker.IntRange(-skewMinutes, skewMinutes)) * time.Minute

	return models.IngestedEvent{
		SportType:       m.noisy(e.SportType),
		CompetitionName: m.noisy(e.CompetitionName),
		HomeTeam:        m.noisy(home),
		AwayTeam:        m.noisy(away),
		ScheduledAtUTC:  e.ScheduledAtUTC.Add(skew),
		Source:          Mirror,
		IngestedAtUTC:   now,
	}
}

// noisy changes the casing and padding of v without changing its
// normalized form.
func (m *MirrorSource) noisy(v string) string {
	switch m.faker.IntRange(0, 2) {
	case 0:
		v = strings.ToUpper(v)
	case 1:
		v = strings.ToLower(v)
	}
	pad := strings.Repeat(" ", m.faker.IntRange(0, 2))
	if m.faker.Bool() {
		return pad + v
	}
	return v + pad
}
