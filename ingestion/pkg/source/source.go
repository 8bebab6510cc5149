// Package source produces game reports from simulated upstream providers.
package source

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/telhawk-systems/sportsagg/common/models"
)

// Source is one upstream provider of game reports.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]models.IngestedEvent, error)
}

// Roster is the fixed catalogue a mock source draws from.
type Roster struct {
	Sport        string
	Competitions []string
	Teams        []string

	// MinLead and MaxLead bound how far ahead games are scheduled.
	MinLead time.Duration
	MaxLead time.Duration
}

// Mock source names.
const (
	FootballMock   = "football-mock"
	BasketballMock = "basketball-mock"
	HockeyMock     = "hockey-mock"
	Mirror         = "mirror"
)

var (
	FootballRoster = Roster{
		Sport:        models.SportFootball,
		Competitions: []string{"Premier League", "La Liga", "Serie A", "Bundesliga", "Champions League"},
		Teams: []string{
			"Arsenal", "Chelsea", "Liverpool", "Manchester City", "Manchester United",
			"Barcelona", "Real Madrid", "Atletico Madrid", "Juventus", "Inter",
			"Milan", "Bayern Munich", "Borussia Dortmund", "PSG", "Benfica",
		},
		MinLead: 30 * time.Minute,
		MaxLead: 48 * time.Hour,
	}

	BasketballRoster = Roster{
		Sport:        models.SportBasketball,
		Competitions: []string{"NBA", "EuroLeague"},
		Teams: []string{
			"Lakers", "Warriors", "Celtics", "Bulls", "Nuggets", "Heat", "Bucks",
			"Suns", "Mavericks", "Clippers", "Real Madrid Basket", "Barcelona Basket",
			"Fenerbahce", "Olympiacos",
		},
		MinLead: 30 * time.Minute,
		MaxLead: 24 * time.Hour,
	}

	HockeyRoster = Roster{
		Sport:        models.SportIceHockey,
		Competitions: []string{"NHL", "KHL", "IIHF World Championship", "Champions Hockey League"},
		Teams: []string{
			"Rangers", "Bruins", "Maple Leafs", "Canadiens", "Red Wings", "Penguins",
			"Oilers", "Flames", "Avalanche", "Golden Knights", "CSKA Moscow",
			"SKA Saint Petersburg",
		},
		MinLead: 20 * time.Minute,
		MaxLead: 16 * time.Hour,
	}
)

// MockSource invents 1 to 4 upcoming games per fetch from a Roster.
type MockSource struct {
	name   string
	roster Roster
	faker  *gofakeit.Faker
	now    func() time.Time
}

// Option configures a MockSource or MirrorSource.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func applyOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewMockSource creates a source named name over roster. faker supplies all
// randomness; seed it for reproducible output.
func NewMockSource(name string, roster Roster, faker *gofakeit.Faker, opts ...Option) *MockSource {
	o := applyOptions(opts)
	return &MockSource{name: name, roster: roster, faker: faker, now: o.now}
}

// Name implements Source.
func (s *MockSource) Name() string { return s.name }

// Fetch implements Source.
func (s *MockSource) Fetch(ctx context.Context) ([]models.IngestedEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	count := s.faker.IntRange(1, 4)
	events := make([]models.IngestedEvent, 0, count)

	minLead := int(s.roster.MinLead / time.Minute)
	maxLead := int(s.roster.MaxLead/time.Minute) - 1
	for range count {
		home, away := s.pickTeams()
		lead := time.Duration(s.faker.IntRange(minLead, maxLead)) * time.Minute
		events = append(events, models.IngestedEvent{
			SportType:       s.roster.Sport,
			CompetitionName: s.faker.RandomString(s.roster.Competitions),
			HomeTeam:        home,
			AwayTeam:        away,
			ScheduledAtUTC:  now.Add(lead),
			Source:          s.name,
			IngestedAtUTC:   now,
		})
	}
	return events, nil
}

func (s *MockSource) pickTeams() (string, string) {
	teams := s.roster.Teams
	first := s.faker.IntRange(0, len(teams)-1)
	second := s.faker.IntRange(0, len(teams)-2)
	if second >= first {
		second++
	}
	return teams[first], teams[second]
}

// New builds the named catalogue source. Mirror sources are built with
// NewMirrorSource because they need a feed of observed games.
func New(name string, faker *gofakeit.Faker, opts ...Option) (*MockSource, error) {
	switch name {
	case FootballMock:
		return NewMockSource(name, FootballRoster, faker, opts...), nil
	case BasketballMock:
		return NewMockSource(name, BasketballRoster, faker, opts...), nil
	case HockeyMock:
		return NewMockSource(name, HockeyRoster, faker, opts...), nil
	default:
		return nil, fmt.Errorf("unknown source %q (known: %v)", name, Names())
	}
}

// Names lists the catalogue sources accepted by New.
func Names() []string {
	names := []string{FootballMock, BasketballMock, HockeyMock}
	sort.Strings(names)
	return names
}
