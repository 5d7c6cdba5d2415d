package export

import (
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"unicode/utf16"

	"github.com/xuri/excelize/v2"

	"github.com/seo-optimizer/segment-architect/segment"
)

// SheetName is the single worksheet of the workbook.
const SheetName = "Segments"

// SpreadsheetHeader is the fixed header row.
var SpreadsheetHeader = []string{"Segment", "URL Example", "JSON-LD Format"}

var columnWidths = map[string]float64{"A": 20, "B": 40, "C": 50}

// ErrCellTooLong is returned when a value does not fit in a worksheet cell.
var ErrCellTooLong = errors.New("value exceeds the cell size limit")

// escapedChar matches text a reader would decode as an escaped character.
var escapedChar = regexp.MustCompile(`^_x[0-9A-Fa-f]{4}_`)

// cellText escapes literal _xHHHH_ sequences so the value reads back as
// written, and rejects values longer than a cell holds.
func cellText(value string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(value); i++ {
		if value[i] == '_' && escapedChar.MatchString(value[i:]) {
			b.WriteString("_x005F")
		}
		b.WriteByte(value[i])
	}
	text := b.String()
	if n := utf16Len(text); n > excelize.TotalCellChars {
		return "", fmt.Errorf("%w: %d characters, limit %d", ErrCellTooLong, n, excelize.TotalCellChars)
	}
	return text, nil
}

// utf16Len counts UTF-16 code units, the unit of the cell size limit.
func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

// WriteSpreadsheet writes one row per segment (name, url, JSON-LD) under
// the header row. An empty list produces a header-only workbook.
func WriteSpreadsheet(w io.Writer, segments []segment.Segment) error {
	if err := segment.ValidateAll(segments); err != nil {
		return fmt.Errorf("spreadsheet export: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]any, len(SpreadsheetHeader))
	for i, h := range SpreadsheetHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, s := range segments {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := make([]any, 0, len(SpreadsheetHeader))
		for col, value := range []string{s.SegmentName, s.URLExample, s.JSONLD} {
			text, err := cellText(value)
			if err != nil {
				return fmt.Errorf("spreadsheet export: row %d %s: %w", i+2, SpreadsheetHeader[col], err)
			}
			row = append(row, text)
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := applyLayout(f, len(segments)); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// applyLayout is cosmetic: column widths, bold header, wrapped JSON-LD.
func applyLayout(f *excelize.File, rows int) error {
	for col, width := range columnWidths {
		if err := f.SetColWidth(SheetName, col, col, width); err != nil {
			return fmt.Errorf("set column width: %w", err)
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	if err := f.SetCellStyle(SheetName, "A1", "C1", bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	if rows == 0 {
		return nil
	}
	wrap, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
	})
	if err != nil {
		return fmt.Errorf("create body style: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(3, rows+1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetName, "A2", last, wrap); err != nil {
		return fmt.Errorf("style rows: %w", err)
	}
	return nil
}

// SaveSpreadsheet writes the workbook for domain into dir and returns its path.
func SaveSpreadsheet(dir, domain string, segments []segment.Segment) (string, error) {
	return saveAtomic(dir, SpreadsheetFilename(domain), func(f *os.File) error {
		return WriteSpreadsheet(f, segments)
	})
}
