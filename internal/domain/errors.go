package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSourceUnavailable reports a failed fetch or a non-success status.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrMalformedInput reports input with no usable structure, such as text without a header row.
	ErrMalformedInput = errors.New("malformed input")
	// ErrUnrecognizedSchema reports a table that is neither tidy nor wide.
	ErrUnrecognizedSchema = errors.New("unrecognized schema")
)

// SourceError carries the status returned by a data source.
type SourceError struct {
	Status int
	URL    string
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source unavailable: %s returned status %d", e.URL, e.Status)
}

func (e *SourceError) Unwrap() error {
	return ErrSourceUnavailable
}

// SchemaError lists the headers of a table whose shape could not be detected.
type SchemaError struct {
	Header []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf(
		"unrecognized schema: expected tidy (year, one of [%s], one of [%s]) or wide (year plus one column per sector), got [%s]",
		strings.Join(sectorColumnCandidates, ", "),
		strings.Join(valueColumnCandidates, ", "),
		strings.Join(e.Header, ", "),
	)
}

func (e *SchemaError) Unwrap() error {
	return ErrUnrecognizedSchema
}
