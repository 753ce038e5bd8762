package domain

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Entity identifiers: ticker symbols (1-6 letters, optional class suffix)
// or 10-digit CIK numbers.
var entityRegex = regexp.MustCompile(`^([A-Z]{1,6}(\.[A-Z])?|\d{10})$`)

// Fiscal periods: FY2023, Q1-Q4 with a four-digit year.
var periodRegex = regexp.MustCompile(`^(FY\d{4}|Q[1-4]\d{4})$`)

// SupportedDocTypes enumerates filing types the pipeline understands.
var SupportedDocTypes = map[string]bool{
	"10-K":    true,
	"10-Q":    true,
	"8-K":     true,
	"20-F":    true,
	"S-1":     true,
	"DEF 14A": true,
}

// Injection patterns — SQL fragments that should never appear in a user question.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(DROP|DELETE|INSERT|UPDATE|ALTER|EXEC|UNION)\b.*\b(TABLE|FROM|INTO|SELECT|SET)\b`),
	regexp.MustCompile(`(?i)(--|;)\s*(DROP|DELETE|SELECT)`),
	regexp.MustCompile(`(?i)\$\{.*\}`), // template injection
}

const (
	minQuestionLength = 5
	maxQuestionLength = 2048
)

// ValidationError wraps a sentinel with field context.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// Validation sentinels.
var (
	ErrInvalidEntity    = fmt.Errorf("invalid entity identifier")
	ErrInvalidDocType   = fmt.Errorf("unsupported document type")
	ErrInvalidPeriod    = fmt.Errorf("invalid fiscal period")
	ErrQuestionTooShort = fmt.Errorf("question too short")
	ErrQuestionTooLong  = fmt.Errorf("question too long")
	ErrQuestionUnsafe   = fmt.Errorf("question contains suspicious content")
)

// ValidateFilingRef checks a FilingRef before ingestion is scheduled.
func ValidateFilingRef(r FilingRef) error {
	entity := strings.ToUpper(strings.TrimSpace(r.Entity))
	if !entityRegex.MatchString(entity) {
		return &ValidationError{Field: "entity", Value: r.Entity, Wrapped: ErrInvalidEntity}
	}
	if !SupportedDocTypes[strings.ToUpper(strings.TrimSpace(r.DocType))] {
		return &ValidationError{Field: "doc_type", Value: r.DocType, Wrapped: ErrInvalidDocType}
	}
	if !periodRegex.MatchString(strings.ToUpper(strings.TrimSpace(r.Period))) {
		return &ValidationError{Field: "period", Value: r.Period, Wrapped: ErrInvalidPeriod}
	}
	return nil
}

// ValidateQuestion checks a natural-language question at the query entry point.
func ValidateQuestion(text string) error {
	text = strings.TrimSpace(text)
	n := utf8.RuneCountInString(text)
	if n < minQuestionLength {
		return &ValidationError{Field: "question", Value: text, Wrapped: ErrQuestionTooShort}
	}
	if n > maxQuestionLength {
		return &ValidationError{Field: "question", Value: text[:64] + "...", Wrapped: ErrQuestionTooLong}
	}
	for _, p := range injectionPatterns {
		if p.MatchString(text) {
			return &ValidationError{Field: "question", Value: text, Wrapped: ErrQuestionUnsafe}
		}
	}
	return nil
}
