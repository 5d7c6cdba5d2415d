package export

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/seo-optimizer/segment-architect/segment"
)

// Fixed deck text.
const (
	DeckTitle       = "Structured Data & Segment Overview"
	subtitlePrefix  = "Website Analysis: "
	labelExampleURL = "Example URL:"
	labelDesc       = "JSON-LD Description:"
	labelJSONLD     = "Structured Data (JSON-LD):"
)

// JSON-LD block bounds. Longer snippets are cut and end with an ellipsis line.
const (
	MaxJSONLDLines = 20
	MaxJSONLDRunes = 1800
	ellipsis       = "…"
)

const emuPerInch = 914400

type textBox struct {
	ID         int
	Name       string
	X, Y, W, H int64
	Paragraphs []string
	Size       int // hundredths of a point
	Bold       bool
	Color      string
	Font       string
	Fill       string
	Align      string
	Anchor     string
	Autofit    bool
}

type slideData struct {
	Shapes []textBox
}

type deckData struct {
	Title   string
	Slides  []slideData
	Created string
}

// WriteSlides writes a deck with a title slide followed by one slide per
// segment, in order. An empty list yields the title slide only.
func WriteSlides(w io.Writer, domain string, segments []segment.Segment) error {
	if err := segment.ValidateAll(segments); err != nil {
		return fmt.Errorf("slide export: %w", err)
	}

	deck := deckData{
		Title:   DeckTitle + " - " + domain,
		Created: time.Now().UTC().Format(time.RFC3339),
	}
	deck.Slides = append(deck.Slides, titleSlide(domain))
	for _, s := range segments {
		deck.Slides = append(deck.Slides, segmentSlide(s))
	}

	return writePackage(w, deck)
}

// SaveSlides writes the deck for domain into dir and returns its path.
func SaveSlides(dir, domain string, segments []segment.Segment) (string, error) {
	return saveAtomic(dir, SlidesFilename(domain), func(f *os.File) error {
		return WriteSlides(f, domain, segments)
	})
}

// box places a text box; coordinates are inches on a 10in x 7.5in slide.
func box(id int, name string, x, y, w, h float64, paragraphs ...string) textBox {
	return textBox{
		ID:         id,
		Name:       name,
		X:          int64(x * emuPerInch),
		Y:          int64(y * emuPerInch),
		W:          int64(w * emuPerInch),
		H:          int64(h * emuPerInch),
		Paragraphs: paragraphs,
		Color:      "000000",
		Align:      "l",
		Anchor:     "t",
	}
}

func titleSlide(domain string) slideData {
	title := box(2, "Title", 0.5, 2.5, 9, 1, DeckTitle)
	title.Size, title.Bold, title.Color = 4400, true, "363636"
	title.Align, title.Anchor = "ctr", "ctr"

	subtitle := box(3, "Subtitle", 0.5, 3.5, 9, 0.5, subtitlePrefix+domain)
	subtitle.Size, subtitle.Color = 2400, "666666"
	subtitle.Align, subtitle.Anchor = "ctr", "ctr"

	return slideData{Shapes: []textBox{title, subtitle}}
}

func segmentSlide(s segment.Segment) slideData {
	label := func(id int, text string, y float64) textBox {
		b := box(id, "Label "+text, 0.5, y, 4, 0.3, text)
		b.Size, b.Bold = 1800, true
		return b
	}

	heading := box(2, "Segment", 0.5, 0.5, 9, 0.5, s.SegmentName)
	heading.Size, heading.Bold, heading.Color = 3200, true, "2563EB"

	url := box(4, "Example URL", 0.5, 1.5, 9, 0.4, s.URLExample)
	url.Size, url.Color = 1400, "0000EE"

	desc := box(6, "Description", 0.5, 2.5, 9, 0.6, s.Description)
	desc.Size, desc.Autofit = 1400, true

	code := box(8, "JSON-LD", 0.5, 3.5, 9, 3.6, boundJSONLD(s.JSONLD)...)
	code.Size, code.Color, code.Font, code.Fill, code.Autofit = 1000, "333333", "Courier New", "F3F4F6", true

	return slideData{Shapes: []textBox{
		heading,
		label(3, labelExampleURL, 1.2),
		url,
		label(5, labelDesc, 2.2),
		desc,
		label(7, labelJSONLD, 3.2),
		code,
	}}
}

// boundJSONLD splits the snippet into lines and cuts it to the block limits.
func boundJSONLD(jsonLD string) []string {
	text := strings.ReplaceAll(jsonLD, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\t", "  ")
	text = strings.TrimSuffix(text, "\n")

	var lines []string
	budget := MaxJSONLDRunes
	truncated := false
	for _, line := range strings.Split(text, "\n") {
		if len(lines) == MaxJSONLDLines || budget == 0 {
			truncated = true
			break
		}
		if n := utf8.RuneCountInString(line); n > budget {
			line = string([]rune(line)[:budget])
			truncated = true
		}
		budget -= utf8.RuneCountInString(line)
		lines = append(lines, line)
		if truncated {
			break
		}
	}
	if truncated {
		lines = append(lines, ellipsis)
	}
	return lines
}

type part struct {
	name string
	tmpl string
	data any
}

func writePackage(w io.Writer, deck deckData) error {
	zw := zip.NewWriter(w)

	parts := []part{
		{"[Content_Types].xml", "contentTypes", deck},
		{"_rels/.rels", "rootRels", deck},
		{"docProps/core.xml", "core", deck},
		{"docProps/app.xml", "app", deck},
		{"ppt/presentation.xml", "presentation", deck},
		{"ppt/_rels/presentation.xml.rels", "presentationRels", deck},
		{"ppt/presProps.xml", "presProps", deck},
		{"ppt/viewProps.xml", "viewProps", deck},
		{"ppt/tableStyles.xml", "tableStyles", deck},
		{"ppt/slideMasters/slideMaster1.xml", "slideMaster", deck},
		{"ppt/slideMasters/_rels/slideMaster1.xml.rels", "slideMasterRels", deck},
		{"ppt/slideLayouts/slideLayout1.xml", "slideLayout", deck},
		{"ppt/slideLayouts/_rels/slideLayout1.xml.rels", "slideLayoutRels", deck},
		{"ppt/theme/theme1.xml", "theme", deck},
	}
	for i, s := range deck.Slides {
		parts = append(parts,
			part{fmt.Sprintf("ppt/slides/slide%d.xml", i+1), "slide", s},
			part{fmt.Sprintf("ppt/slides/_rels/slide%d.xml.rels", i+1), "slideRels", s},
		)
	}

	var buf bytes.Buffer
	for _, p := range parts {
		buf.Reset()
		if err := templates.ExecuteTemplate(&buf, p.tmpl, p.data); err != nil {
			return fmt.Errorf("render %s: %w", p.name, err)
		}
		fw, err := zw.Create(p.name)
		if err != nil {
			return fmt.Errorf("create %s: %w", p.name, err)
		}
		if _, err := fw.Write(buf.Bytes()); err != nil {
			return fmt.Errorf("write %s: %w", p.name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize deck: %w", err)
	}
	return nil
}
