package models

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validEvent() *IngestedEvent {
	return &IngestedEvent{
		SportType:       "football",
		CompetitionName: "Premier League",
		HomeTeam:        "Arsenal",
		AwayTeam:        "Chelsea",
		ScheduledAtUTC:  time.Date(2026, 2, 16, 10, 0, 0, 0, time.UTC),
		Source:          "football-mock",
	}
}

func TestIsValidSport(t *testing.T) {
	assert.True(t, IsValidSport("football"))
	assert.True(t, IsValidSport(" Basketball "))
	assert.True(t, IsValidSport("ICE_HOCKEY"))
	assert.False(t, IsValidSport("curling"))
	assert.False(t, IsValidSport(""))
}

func TestIngestedEvent_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(e *IngestedEvent)
		field  string
	}{
		{"valid", func(e *IngestedEvent) {}, ""},
		{"blank sport", func(e *IngestedEvent) { e.SportType = "  " }, "sportType"},
		{"unknown sport", func(e *IngestedEvent) { e.SportType = "cricket" }, "sportType"},
		{"blank competition", func(e *IngestedEvent) { e.CompetitionName = "" }, "competitionName"},
		{"blank home", func(e *IngestedEvent) { e.HomeTeam = "" }, "homeTeam"},
		{"blank away", func(e *IngestedEvent) { e.AwayTeam = " " }, "awayTeam"},
		{"same teams", func(e *IngestedEvent) { e.AwayTeam = " arsenal" }, "awayTeam"},
		{"long competition", func(e *IngestedEvent) { e.CompetitionName = strings.Repeat("x", MaxNameLength+1) }, "competitionName"},
		{"long team at limit", func(e *IngestedEvent) { e.HomeTeam = strings.Repeat("é", MaxNameLength) }, ""},
		{"zero schedule", func(e *IngestedEvent) { e.ScheduledAtUTC = time.Time{} }, "scheduledAtUtc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := validEvent()
			tt.mutate(e)
			err := e.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedEvent))

			var vErr *ValidationError
			require.True(t, errors.As(err, &vErr))
			assert.Equal(t, tt.field, vErr.Field)
		})
	}

	var nilEvent *IngestedEvent
	assert.ErrorIs(t, nilEvent.Validate(), ErrMalformedEvent)
}

func TestIngestedEvent_Normalized(t *testing.T) {
	plus2 := time.FixedZone("UTC+2", 2*60*60)
	received := time.Date(2026, 2, 16, 9, 0, 0, 0, time.UTC)

	e := IngestedEvent{
		SportType:      "football",
		ScheduledAtUTC: time.Date(2026, 2, 16, 12, 0, 0, 0, plus2),
	}
	n := e.Normalized(received)

	assert.Equal(t, time.Date(2026, 2, 16, 10, 0, 0, 0, time.UTC), n.ScheduledAtUTC)
	assert.Equal(t, time.UTC, n.ScheduledAtUTC.Location())
	assert.Equal(t, received, n.IngestedAtUTC)
	assert.Equal(t, UnknownSource, n.Source)

	e.Source = "  Feed-A "
	assert.Equal(t, "feed-a", e.Normalized(received).Source)

	// The original is untouched.
	assert.Equal(t, plus2, e.ScheduledAtUTC.Location())
	assert.True(t, e.IngestedAtUTC.IsZero())
}

func TestDecodeIngestedEvent_CaseInsensitiveFields(t *testing.T) {
	payload := []byte(`{
		"SPORTTYPE": "football",
		"CompetitionName": "Premier League",
		"hometeam": "Arsenal",
		"AwayTeam": "Chelsea",
		"scheduledatutc": "2026-02-16T10:00:00Z",
		"Source": "feed-a",
		"ingestedAtUtc": "2026-02-15T08:00:00Z"
	}`)

	e, err := DecodeIngestedEvent(payload)
	require.NoError(t, err)
	assert.Equal(t, "football", e.SportType)
	assert.Equal(t, "Arsenal", e.HomeTeam)
	assert.Equal(t, "Chelsea", e.AwayTeam)
	assert.Equal(t, time.Date(2026, 2, 16, 10, 0, 0, 0, time.UTC), e.ScheduledAtUTC.UTC())
	assert.Equal(t, "feed-a", e.Source)
}

func TestDecodeIngestedEvent_TimestampWithoutOffset(t *testing.T) {
	tests := []struct {
		name      string
		scheduled string
		want      time.Time
	}{
		{"rfc3339", "2026-02-16T10:00:00Z", time.Date(2026, 2, 16, 10, 0, 0, 0, time.UTC)},
		{"no offset", "2026-02-16T10:00:00", time.Date(2026, 2, 16, 10, 0, 0, 0, time.UTC)},
		{"no offset fractional", "2026-02-16T10:00:00.250", time.Date(2026, 2, 16, 10, 0, 0, 250_000_000, time.UTC)},
		{"offset", "2026-02-16T12:00:00+02:00", time.Date(2026, 2, 16, 10, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := `{"sportType":"football","competitionName":"Premier League","homeTeam":"Arsenal",` +
				`"awayTeam":"Chelsea","scheduledAtUtc":"` + tt.scheduled + `","ingestedAtUtc":"2026-02-15T08:00:00"}`

			e, err := DecodeIngestedEvent([]byte(payload))
			require.NoError(t, err)
			require.NoError(t, e.Validate())
			assert.True(t, tt.want.Equal(e.ScheduledAtUTC), "got %s", e.ScheduledAtUTC)
			assert.True(t, time.Date(2026, 2, 15, 8, 0, 0, 0, time.UTC).Equal(e.IngestedAtUTC))
			assert.Equal(t, "Arsenal", e.HomeTeam)
		})
	}
}

func TestDecodeIngestedEvent_NullTimestamp(t *testing.T) {
	e, err := DecodeIngestedEvent([]byte(`{"sportType":"football","scheduledAtUtc":null}`))
	require.NoError(t, err)
	assert.True(t, e.ScheduledAtUTC.IsZero())
	assert.ErrorIs(t, e.Validate(), ErrMalformedEvent)
}

func TestNormalizeSource(t *testing.T) {
	assert.Equal(t, "football-mock", NormalizeSource(" Football-Mock "))
	assert.Equal(t, UnknownSource, NormalizeSource("   "))
	assert.Equal(t, strings.Repeat("é", MaxSourceLength), NormalizeSource(strings.Repeat("É", MaxSourceLength+10)))
}

func TestDecodeIngestedEvent_Malformed(t *testing.T) {
	tests := []string{
		`not json`,
		`{"scheduledAtUtc": "yesterday"}`,
		`{"scheduledAtUtc": "2026-02-16"}`,
		`{"scheduledAtUtc": 1771236000}`,
		`[]`,
	}
	for _, payload := range tests {
		_, err := DecodeIngestedEvent([]byte(payload))
		assert.ErrorIs(t, err, ErrMalformedEvent, payload)
	}
}

func TestEncodeDecode(t *testing.T) {
	e := validEvent()
	data, err := EncodeIngestedEvent(e)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"sportType":"football"`)

	decoded, err := DecodeIngestedEvent(data)
	require.NoError(t, err)
	assert.Equal(t, e.HomeTeam, decoded.HomeTeam)
	assert.True(t, e.ScheduledAtUTC.Equal(decoded.ScheduledAtUTC))

	_, err = EncodeIngestedEvent(nil)
	assert.Error(t, err)
}
