package model

import (
	"errors"
	"fmt"
)

var (
	ErrConfiguration    = errors.New("configuration error")
	ErrInsufficientData = errors.New("insufficient data")
	ErrMalformedSeries  = errors.New("malformed series")
)

// ConfigurationError reports an invalid parameter or unknown kind.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// InsufficientDataError is returned when a series is shorter than the
// warm-up a computation requires.
type InsufficientDataError struct {
	Required int
	Got      int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: need %d bars, got %d", e.Required, e.Got)
}

func (e *InsufficientDataError) Unwrap() error { return ErrInsufficientData }

// MalformedSeriesError names the first offending bar. Index is -1 for
// series-level problems.
type MalformedSeriesError struct {
	Index  int
	Field  string
	Reason string
}

func (e *MalformedSeriesError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("malformed series: %s %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("malformed series: bar %d: %s %s", e.Index, e.Field, e.Reason)
}

func (e *MalformedSeriesError) Unwrap() error { return ErrMalformedSeries }
