package oracle

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/seo-optimizer/segment-architect/segment"
)

// rawSegment uses pointers so absent fields are distinguishable from
// empty ones; a non-string value fails decoding.
type rawSegment struct {
	SegmentName *string `json:"segmentName"`
	URLExample  *string `json:"urlExample"`
	JSONLD      *string `json:"jsonLd"`
	Description *string `json:"description"`
}

type rawResponse struct {
	Segments *[]rawSegment `json:"segments"`
}

var errNoSegments = errors.New("segments array is missing or empty")

// ParseResponse decodes the model's text into an AnalysisResult. Any
// violation rejects the whole payload; the returned error wraps
// ErrMalformedResponse (or ErrEmptyResponse for blank text).
func ParseResponse(text string, maxSegments int) (segment.AnalysisResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return segment.AnalysisResult{}, ErrEmptyResponse
	}
	if maxSegments <= 0 {
		maxSegments = DefaultMaxSegments
	}

	var raw rawResponse
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return segment.AnalysisResult{}, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	if raw.Segments == nil || len(*raw.Segments) == 0 {
		return segment.AnalysisResult{}, fmt.Errorf("%w: %w", ErrMalformedResponse, errNoSegments)
	}
	if n := len(*raw.Segments); n > maxSegments {
		return segment.AnalysisResult{}, fmt.Errorf("%w: %d segments exceeds maximum of %d", ErrMalformedResponse, n, maxSegments)
	}

	segments := make([]segment.Segment, 0, len(*raw.Segments))
	for _, r := range *raw.Segments {
		s := segment.Segment{
			SegmentName: deref(r.SegmentName),
			URLExample:  deref(r.URLExample),
			JSONLD:      deref(r.JSONLD),
			Description: deref(r.Description),
		}
		segments = append(segments, s)
	}
	if err := segment.ValidateAll(segments); err != nil {
		return segment.AnalysisResult{}, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	for i, s := range segments {
		if !json.Valid([]byte(s.JSONLD)) {
			return segment.AnalysisResult{}, fmt.Errorf("%w: segment %d: jsonLd is not valid JSON", ErrMalformedResponse, i)
		}
	}

	return segment.AnalysisResult{Segments: segments}, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
