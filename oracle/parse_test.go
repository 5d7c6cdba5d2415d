package oracle

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestParseResponse(t *testing.T) {
	t.Run("extra fields are ignored", func(t *testing.T) {
		text := `{"model":"x","segments":[{"segmentName":"Blog","urlExample":"https://example.com/blog/post","jsonLd":"{\"@type\":\"Article\"}","description":"Article schema.","confidence":0.9}]}`
		result, err := ParseResponse(text, 7)
		require.NoError(t, err)
		require.Len(t, result.Segments, 1)
		assert.Equal(t, "Blog", result.Segments[0].SegmentName)
	})

	t.Run("order preserved", func(t *testing.T) {
		var parts []string
		for i := 0; i < 5; i++ {
			parts = append(parts, fmt.Sprintf(`{"segmentName":"S%d","urlExample":"https://example.com/%d","jsonLd":"{}","description":"d"}`, i, i))
		}
		result, err := ParseResponse(`{"segments":[`+strings.Join(parts, ",")+`]}`, 7)
		require.NoError(t, err)
		for i, s := range result.Segments {
			assert.Equal(t, fmt.Sprintf("S%d", i), s.SegmentName)
		}
	})

	rejected := map[string]string{
		"not json":            `segments: none`,
		"segments missing":    `{}`,
		"segments empty":      `{"segments":[]}`,
		"segments not array":  `{"segments":"Homepage"}`,
		"name not string":     `{"segments":[{"segmentName":3,"urlExample":"u","jsonLd":"{}","description":"d"}]}`,
		"url missing":         `{"segments":[{"segmentName":"n","jsonLd":"{}","description":"d"}]}`,
		"empty json-ld":       `{"segments":[{"segmentName":"n","urlExample":"u","jsonLd":"","description":"d"}]}`,
		"invalid json-ld":     `{"segments":[{"segmentName":"n","urlExample":"u","jsonLd":"{\"@type\":","description":"d"}]}`,
		"too many segments":   `{"segments":[` + strings.Repeat(`{"segmentName":"n","urlExample":"u","jsonLd":"{}","description":"d"},`, 2) + `{"segmentName":"n","urlExample":"u","jsonLd":"{}","description":"d"}]}`,
		"truncated mid-array": `{"segments":[{"segmentName":"n","urlExample":"u","jsonLd":"{}","description":"d"}`,
	}
	for name, text := range rejected {
		t.Run(name, func(t *testing.T) {
			result, err := ParseResponse(text, 2)
			assert.ErrorIs(t, err, ErrMalformedResponse)
			assert.Empty(t, result.Segments)
		})
	}

	t.Run("blank text is empty, not malformed", func(t *testing.T) {
		_, err := ParseResponse(" ", 7)
		assert.ErrorIs(t, err, ErrEmptyResponse)
	})
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt("example.com", "")
	assert.Contains(t, p, `"example.com"`)
	assert.Contains(t, p, "5-7 most common SEO segments")
	assert.Contains(t, p, "JSON-LD")
	assert.NotContains(t, p, "live homepage")

	p = BuildPrompt("example.com", "Paths: /blog")
	assert.Contains(t, p, "Paths: /blog")
}

func TestResponseSchema(t *testing.T) {
	schema := ResponseSchema(0)
	assert.Equal(t, genai.TypeObject, schema.Type)

	segments := schema.Properties["segments"]
	require.NotNil(t, segments)
	assert.Equal(t, genai.TypeArray, segments.Type)
	require.NotNil(t, segments.MaxItems)
	assert.Equal(t, int64(DefaultMaxSegments), *segments.MaxItems)

	item := segments.Items
	require.NotNil(t, item)
	assert.ElementsMatch(t, []string{"segmentName", "urlExample", "jsonLd", "description"}, item.Required)
	for _, field := range item.Required {
		require.Contains(t, item.Properties, field)
		assert.Equal(t, genai.TypeString, item.Properties[field].Type)
	}
}
