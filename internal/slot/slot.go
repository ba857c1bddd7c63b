// Package slot defines the core domain types for airtime: shifts, colors,
// periods, channels, reservation entries and their outcomes.
package slot

import (
	"errors"
	"fmt"
)

// Validation errors.
var (
	ErrInvalidDay        = errors.New("day must be a number from 1 to 31")
	ErrInvalidTimeFormat = errors.New("time must be in H:MM or HH:MM format")
	ErrInvalidColor      = errors.New("unknown color")
	ErrInvalidMonth      = errors.New("month must be a number from 1 to 12")
	ErrEmptyText         = errors.New("text cannot be empty")
	ErrNoEntries         = errors.New("at least one channel entry is required")
	ErrDayOutOfMonth     = errors.New("day is past the end of the month")
)

// Domain errors.
var (
	ErrUnknownChannel = errors.New("channel not found")
	ErrMissingTime    = errors.New("time is required")
)

// ValidationError reports a request field that failed validation before any
// store interaction took place.
type ValidationError struct {
	Field string
	Value string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("%s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("%s %q: %v", e.Field, e.Value, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Invalid builds a ValidationError.
func Invalid(field, value string, err error) error {
	return &ValidationError{Field: field, Value: value, Err: err}
}

// Entry is a single (channel, time) request inside a reserve or cancel batch.
type Entry struct {
	Channel string `json:"channel"`
	Time    string `json:"time"`
}

// Status is the result kind of one entry.
type Status string

const (
	StatusSuccess Status = "success"
	StatusSkip    Status = "skip"
	StatusError   Status = "error"
)

// Outcome is the per-entry result of a reserve or cancel operation.
type Outcome struct {
	Channel string `json:"channel"`
	Time    string `json:"time"`
	Status  Status `json:"status"`
	Message string `json:"message"`
}

// Outcome messages.
const (
	MsgWritten   = "text written"
	MsgAppended  = "text appended"
	MsgOccupied  = "cell occupied (not appendable)"
	MsgCancelled = "cell cleared"
	MsgReadFail  = "cell read failed"
	MsgWriteFail = "cell write failed"
	MsgOffGrid   = "cell outside the grid"
)

// Succeeded returns an outcome with success status.
func Succeeded(e Entry, msg string) Outcome {
	return Outcome{Channel: e.Channel, Time: e.Time, Status: StatusSuccess, Message: msg}
}

// Skipped returns an outcome with skip status.
func Skipped(e Entry, msg string) Outcome {
	return Outcome{Channel: e.Channel, Time: e.Time, Status: StatusSkip, Message: msg}
}

// Failed returns an outcome with error status.
func Failed(e Entry, msg string) Outcome {
	return Outcome{Channel: e.Channel, Time: e.Time, Status: StatusError, Message: msg}
}

// ValidateDay checks that day is within 1..31.
func ValidateDay(day int) error {
	if day < 1 || day > 31 {
		return Invalid("day", fmt.Sprint(day), ErrInvalidDay)
	}
	return nil
}
