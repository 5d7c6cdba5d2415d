package segment

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingField is wrapped by every FieldError
var ErrMissingField = errors.New("required segment field is missing")

// Segment is one structural category of a website together with an
// example URL and the JSON-LD snippet generated for it.
type Segment struct {
	SegmentName string `json:"segmentName"`
	URLExample  string `json:"urlExample"`
	JSONLD      string `json:"jsonLd"`
	Description string `json:"description"`
}

// AnalysisResult is the ordered list of segments produced by one analysis.
type AnalysisResult struct {
	Segments []Segment `json:"segments"`
}

// FieldError reports which required field of which segment is empty
type FieldError struct {
	Index int
	Field string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("segment %d: %s is empty", e.Index, e.Field)
}

func (e *FieldError) Unwrap() error {
	return ErrMissingField
}

// Validate checks that all four fields are present.
func (s Segment) Validate() error {
	return s.validate(0)
}

func (s Segment) validate(index int) error {
	fields := []struct {
		name  string
		value string
	}{
		{"segmentName", s.SegmentName},
		{"urlExample", s.URLExample},
		{"jsonLd", s.JSONLD},
		{"description", s.Description},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return &FieldError{Index: index, Field: f.name}
		}
	}
	return nil
}

// ValidateAll validates every segment and reports the first failure.
func ValidateAll(segments []Segment) error {
	for i, s := range segments {
		if err := s.validate(i); err != nil {
			return err
		}
	}
	return nil
}

// Clone returns an independent copy of segments. A nil input yields an
// empty, non-nil slice so callers can serialise it as [].
func Clone(segments []Segment) []Segment {
	out := make([]Segment, len(segments))
	copy(out, segments)
	return out
}
