package logging

import (
	"log/slog"
	"time"
)

// Common field names for consistent logging across services.
const (
	FieldService     = "service"
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldError       = "error"
	FieldDuration    = "duration_ms"
	FieldFingerprint = "fingerprint"
	FieldAdjacent    = "adjacent_fingerprint"
	FieldSource      = "source"
	FieldSport       = "sport"
	FieldOutcome     = "outcome"
	FieldSubject     = "subject"
	FieldConstraint  = "constraint"
	FieldCount       = "count"
)

// Service returns a slog attribute for the service name.
func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

// Error returns a slog attribute for an error.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(FieldError, "")
	}
	return slog.String(FieldError, err.Error())
}

// Duration returns a slog attribute for a duration in milliseconds.
func Duration(d time.Duration) slog.Attr {
	return slog.Int64(FieldDuration, d.Milliseconds())
}

// Fingerprint returns a slog attribute for a primary fingerprint.
func Fingerprint(fp string) slog.Attr {
	return slog.String(FieldFingerprint, fp)
}

// Adjacent returns a slog attribute for the adjacent-bucket fingerprint.
func Adjacent(fp string) slog.Attr {
	return slog.String(FieldAdjacent, fp)
}

// Source returns a slog attribute for the reporting source.
func Source(name string) slog.Attr {
	return slog.String(FieldSource, name)
}

// Sport returns a slog attribute for the sport type.
func Sport(sport string) slog.Attr {
	return slog.String(FieldSport, sport)
}

// Outcome returns a slog attribute for a processing outcome.
func Outcome(outcome string) slog.Attr {
	return slog.String(FieldOutcome, outcome)
}

// Subject returns a slog attribute for a message subject.
func Subject(subject string) slog.Attr {
	return slog.String(FieldSubject, subject)
}

// Constraint returns a slog attribute for a violated storage constraint.
func Constraint(name string) slog.Attr {
	return slog.String(FieldConstraint, name)
}

// Count returns a slog attribute for a count.
func Count(n int) slog.Attr {
	return slog.Int(FieldCount, n)
}
