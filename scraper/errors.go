package scraper

import (
	"fmt"

	"github.com/google/uuid"
)

// ErrorKind identifies the failure class of a scrape error. The set is
// closed so callers can switch exhaustively instead of probing type
// identity.
type ErrorKind int

const (
	// KindMissingConfig marks a source with no usable field selectors.
	KindMissingConfig ErrorKind = iota
	// KindSelectorMatch marks a selector that matched nothing where a
	// match was required.
	KindSelectorMatch
	// KindNetwork marks a fetch that exhausted its retry budget.
	KindNetwork
	// KindParsing marks unparseable page content.
	KindParsing
	// KindValidation marks extracted data that failed validation.
	KindValidation
)

func (k ErrorKind) String() string {
	switch k {
	case KindMissingConfig:
		return "missing_config"
	case KindSelectorMatch:
		return "selector_match"
	case KindNetwork:
		return "network"
	case KindParsing:
		return "parsing"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

// Error is a scrape failure tagged with its kind and the scraping
// context it occurred in. Fields that don't apply to a given kind are
// left zero.
type Error struct {
	Kind       ErrorKind
	SourceID   uuid.UUID
	Selector   string
	Field      string
	URL        string
	StatusCode int
	Msg        string
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewMissingConfigError reports a source that has no field selectors
// configured.
func NewMissingConfigError(sourceID uuid.UUID) *Error {
	return &Error{
		Kind:     KindMissingConfig,
		SourceID: sourceID,
		Msg:      "no tags configured for this source",
	}
}

// NewSelectorMatchError reports a selector that found no element for a
// mandatory field.
func NewSelectorMatchError(sourceID uuid.UUID, selector, field string) *Error {
	return &Error{
		Kind:     KindSelectorMatch,
		SourceID: sourceID,
		Selector: selector,
		Field:    field,
		Msg:      fmt.Sprintf("selector %q matched nothing for field %q", selector, field),
	}
}

// NewNetworkError reports a fetch failure after retries were exhausted.
func NewNetworkError(sourceID uuid.UUID, url string, statusCode int, err error) *Error {
	return &Error{
		Kind:       KindNetwork,
		SourceID:   sourceID,
		URL:        url,
		StatusCode: statusCode,
		Msg:        fmt.Sprintf("fetch failed for %s", url),
		Err:        err,
	}
}

// NewParsingError reports page content that could not be parsed.
func NewParsingError(sourceID uuid.UUID, err error) *Error {
	return &Error{
		Kind:     KindParsing,
		SourceID: sourceID,
		Msg:      "failed to parse page",
		Err:      err,
	}
}

// NewValidationError reports extracted data that failed validation.
func NewValidationError(sourceID uuid.UUID, field, msg string) *Error {
	return &Error{
		Kind:     KindValidation,
		SourceID: sourceID,
		Field:    field,
		Msg:      msg,
	}
}
