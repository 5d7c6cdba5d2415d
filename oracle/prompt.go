package oracle

import (
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// DefaultMaxSegments is the upper bound declared to the model.
const DefaultMaxSegments = 7

const promptTemplate = `Analyze the website domain: %q.
1. Identify the 5-7 most common SEO segments of this website (e.g., Homepage, Blog/Articles, E-commerce/Product Pages, About/Corporate, Services, Contact, Help/Documentation).
2. For each segment, provide a plausible example URL based on the domain.
3. For each example, generate a valid JSON-LD structured data snippet (e.g., Organization, Article, Product, BreadcrumbList, FAQPage).
4. Provide a brief 1-sentence description of the JSON-LD schema type used for that segment.`

// BuildPrompt returns the instruction sent for domain. hints, when not
// empty, is appended as observed context.
func BuildPrompt(domain, hints string) string {
	var b strings.Builder
	fmt.Fprintf(&b, promptTemplate, domain)
	if hints = strings.TrimSpace(hints); hints != "" {
		b.WriteString("\n\nWhat the live homepage currently shows (use it to ground the segments and URLs):\n")
		b.WriteString(hints)
	}
	return b.String()
}

// ResponseSchema declares the exact shape the model must emit.
func ResponseSchema(maxSegments int) *genai.Schema {
	if maxSegments <= 0 {
		maxSegments = DefaultMaxSegments
	}
	str := func(desc string) *genai.Schema {
		return &genai.Schema{Type: genai.TypeString, Description: desc}
	}

	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"segments": {
				Type:     genai.TypeArray,
				MinItems: genai.Ptr[int64](1),
				MaxItems: genai.Ptr(int64(maxSegments)),
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"segmentName": str(""),
						"urlExample":  str(""),
						"jsonLd":      str("Full JSON-LD string"),
						"description": str("Brief explanation of the schema used"),
					},
					PropertyOrdering: requiredFields,
					Required:         requiredFields,
				},
			},
		},
		Required: []string{"segments"},
	}
}

var requiredFields = []string{"segmentName", "urlExample", "jsonLd", "description"}
