// Package models holds the wire and storage shapes shared by the sportsagg services.
package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Supported sport types.
const (
	SportFootball   = "football"
	SportBasketball = "basketball"
	SportIceHockey  = "ice_hockey"
)

// UnknownSource is recorded when a producer does not identify itself.
const UnknownSource = "unknown"

// MaxSourceLength caps source names, in characters. Source names end up in
// metric labels and Redis keys.
const MaxSourceLength = 64

// MaxNameLength is the longest competition or team name, in characters,
// the games table accepts.
const MaxNameLength = 256

// ErrMalformedEvent marks events that can never be processed. Redelivering
// them will not help, so transports should dead-letter instead of retrying.
var ErrMalformedEvent = errors.New("malformed event")

// ValidationError describes why an inbound event was rejected.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("malformed event: %s: %s", e.Field, e.Reason)
}

// Unwrap lets errors.Is(err, ErrMalformedEvent) match.
func (e *ValidationError) Unwrap() error {
	return ErrMalformedEvent
}

// IsValidSport reports whether sport names a supported sport, ignoring case
// and surrounding whitespace.
func IsValidSport(sport string) bool {
	switch strings.ToLower(strings.TrimSpace(sport)) {
	case SportFootball, SportBasketball, SportIceHockey:
		return true
	default:
		return false
	}
}

// IngestedEvent is one game report from a source. It is never modified after
// it has been decoded; Normalized returns an adjusted copy.
type IngestedEvent struct {
	SportType       string    `json:"sportType"`
	CompetitionName string    `json:"competitionName"`
	HomeTeam        string    `json:"homeTeam"`
	AwayTeam        string    `json:"awayTeam"`
	ScheduledAtUTC  time.Time `json:"scheduledAtUtc"`
	Source          string    `json:"source"`
	IngestedAtUTC   time.Time `json:"ingestedAtUtc"`
}

// Timestamp layouts accepted on the wire, tried in order. Values without an
// offset are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
}

// utcTimestamp decodes an RFC 3339 timestamp or one without an offset.
type utcTimestamp struct {
	time.Time
}

func (t *utcTimestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// ParseTimestamp parses s as RFC 3339, or as a date-time without an offset
// which is taken to be UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// UnmarshalJSON accepts timestamps with or without a UTC offset.
func (e *IngestedEvent) UnmarshalJSON(data []byte) error {
	type plain IngestedEvent
	aux := struct {
		*plain
		ScheduledAtUTC utcTimestamp `json:"scheduledAtUtc"`
		IngestedAtUTC  utcTimestamp `json:"ingestedAtUtc"`
	}{plain: (*plain)(e)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	e.ScheduledAtUTC = aux.ScheduledAtUTC.Time
	e.IngestedAtUTC = aux.IngestedAtUTC.Time
	return nil
}

// NormalizeSource canonicalizes a producer name: trimmed, lower-cased and
// capped at MaxSourceLength characters. An empty name becomes UnknownSource.
func NormalizeSource(source string) string {
	source = strings.ToLower(strings.TrimSpace(source))
	if source == "" {
		return UnknownSource
	}
	if utf8.RuneCountInString(source) > MaxSourceLength {
		source = strings.TrimSpace(string([]rune(source)[:MaxSourceLength]))
	}
	return source
}

// Validate checks the required fields. The returned error wraps ErrMalformedEvent.
func (e *IngestedEvent) Validate() error {
	if e == nil {
		return &ValidationError{Field: "event", Reason: "is nil"}
	}
	if strings.TrimSpace(e.SportType) == "" {
		return &ValidationError{Field: "sportType", Reason: "is required"}
	}
	if !IsValidSport(e.SportType) {
		return &ValidationError{Field: "sportType", Reason: fmt.Sprintf("unsupported sport %q", e.SportType)}
	}
	if strings.TrimSpace(e.CompetitionName) == "" {
		return &ValidationError{Field: "competitionName", Reason: "is required"}
	}
	if strings.TrimSpace(e.HomeTeam) == "" {
		return &ValidationError{Field: "homeTeam", Reason: "is required"}
	}
	if strings.TrimSpace(e.AwayTeam) == "" {
		return &ValidationError{Field: "awayTeam", Reason: "is required"}
	}
	for field, value := range map[string]string{
		"competitionName": e.CompetitionName,
		"homeTeam":        e.HomeTeam,
		"awayTeam":        e.AwayTeam,
	} {
		if utf8.RuneCountInString(strings.TrimSpace(value)) > MaxNameLength {
			return &ValidationError{Field: field, Reason: fmt.Sprintf("longer than %d characters", MaxNameLength)}
		}
	}
	if strings.EqualFold(strings.TrimSpace(e.HomeTeam), strings.TrimSpace(e.AwayTeam)) {
		return &ValidationError{Field: "awayTeam", Reason: "must differ from homeTeam"}
	}
	if e.ScheduledAtUTC.IsZero() {
		return &ValidationError{Field: "scheduledAtUtc", Reason: "is required"}
	}
	return nil
}

// Normalized returns a copy with both timestamps in UTC and defaults filled.
// receivedAt is used when the producer did not stamp the ingestion time.
func (e IngestedEvent) Normalized(receivedAt time.Time) IngestedEvent {
	e.ScheduledAtUTC = e.ScheduledAtUTC.UTC()
	if e.IngestedAtUTC.IsZero() {
		e.IngestedAtUTC = receivedAt
	}
	e.IngestedAtUTC = e.IngestedAtUTC.UTC()
	e.Source = NormalizeSource(e.Source)
	return e
}

// DecodeIngestedEvent parses a JSON payload. Field names match
// case-insensitively. Syntax errors are reported as malformed events.
func DecodeIngestedEvent(data []byte) (*IngestedEvent, error) {
	var event IngestedEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, &ValidationError{Field: "payload", Reason: err.Error()}
	}
	return &event, nil
}

// EncodeIngestedEvent serializes an event for transport.
func EncodeIngestedEvent(e *IngestedEvent) ([]byte, error) {
	if e == nil {
		return nil, fmt.Errorf("nil event")
	}
	return json.Marshal(e)
}

// Game is one persisted real-world game. Text fields hold normalized values.
type Game struct {
	ID              string    `json:"id"`
	ScheduledAtUTC  time.Time `json:"scheduledAtUtc"`
	SportType       string    `json:"sportType"`
	CompetitionName string    `json:"competitionName"`
	HomeTeam        string    `json:"homeTeam"`
	AwayTeam        string    `json:"awayTeam"`
	Fingerprint     string    `json:"fingerprint"`
	CreatedAtUTC    time.Time `json:"createdAtUtc"`
}
