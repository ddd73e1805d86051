package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

const byteOrderMark = "\uFEFF"

var delimiterCandidates = []rune{',', ';', '\t'}

// DetectDelimiter picks the most frequent candidate delimiter on the first
// line. Ties and lines with no candidate fall back to a comma.
func DetectDelimiter(text string) rune {
	line := text
	if i := strings.IndexAny(text, "\r\n"); i >= 0 {
		line = text[:i]
	}
	best, bestCount := ',', 0
	tie := false
	for _, d := range delimiterCandidates {
		n := strings.Count(line, string(d))
		switch {
		case n > bestCount:
			best, bestCount, tie = d, n, false
		case n == bestCount && n > 0:
			tie = true
		}
	}
	if bestCount == 0 || tie {
		return ','
	}
	return best
}

// ParseDelimited parses delimited text into a Table keyed by the first row.
// Quoted fields may contain delimiters and line breaks; a doubled quote inside
// a quoted field is a literal quote.
func ParseDelimited(text string) (Table, error) {
	text = strings.TrimPrefix(text, byteOrderMark)
	records := scanRecords(text, DetectDelimiter(text))

	records = slices.DeleteFunc(records, isBlankRecord)
	if len(records) == 0 {
		return Table{}, fmt.Errorf("%w: no header row", ErrMalformedInput)
	}

	header := make([]string, len(records[0]))
	for i, cell := range records[0] {
		header[i] = strings.TrimSpace(strings.ReplaceAll(cell, byteOrderMark, ""))
	}

	rows := make([]RawRecord, 0, len(records)-1)
	for _, cells := range records[1:] {
		rows = append(rows, zipRecord(header, cells))
	}
	return Table{Header: header, Rows: rows}, nil
}

func zipRecord(header, cells []string) RawRecord {
	rec := make(RawRecord, len(header))
	for i, name := range header {
		if name == "" {
			continue
		}
		value := ""
		if i < len(cells) {
			value = strings.TrimSpace(cells[i])
		}
		rec[name] = value
	}
	return rec
}

func isBlankRecord(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// scanRecords splits text into rows of raw cells with a single pass over its runes.
func scanRecords(text string, delim rune) [][]string {
	var (
		records  [][]string
		row      []string
		field    strings.Builder
		inQuotes bool
	)
	rs := []rune(text)
	for i := 0; i < len(rs); i++ {
		c := rs[i]
		switch {
		case c == '"':
			if inQuotes && i+1 < len(rs) && rs[i+1] == '"' {
				field.WriteRune('"')
				i++
				continue
			}
			inQuotes = !inQuotes
		case c == delim && !inQuotes:
			row = append(row, field.String())
			field.Reset()
		case (c == '\r' || c == '\n') && !inQuotes:
			if c == '\r' && i+1 < len(rs) && rs[i+1] == '\n' {
				i++
			}
			row = append(row, field.String())
			field.Reset()
			records = append(records, row)
			row = nil
		default:
			field.WriteRune(c)
		}
	}
	if field.Len() > 0 || len(row) > 0 {
		row = append(row, field.String())
		records = append(records, row)
	}
	return records
}

// DecodeRecords reads a JSON array of flat objects into a Table. The optional
// path names nested object keys to descend through before the array, as in
// {"energy": {"energySeries": [...]}}. The header is the sorted union of keys.
func DecodeRecords(data []byte, path ...string) (Table, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var node any
	if err := dec.Decode(&node); err != nil {
		return Table{}, fmt.Errorf("%w: decode json: %w", ErrMalformedInput, err)
	}
	for _, key := range path {
		obj, ok := node.(map[string]any)
		if !ok {
			return Table{}, fmt.Errorf("%w: cannot descend into %q", ErrMalformedInput, key)
		}
		node = obj[key]
	}
	items, ok := node.([]any)
	if !ok {
		return Table{}, fmt.Errorf("%w: expected an array of records", ErrMalformedInput)
	}

	seen := make(map[string]struct{})
	rows := make([]RawRecord, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		rec := make(RawRecord, len(obj))
		blank := true
		for k, v := range obj {
			name := strings.TrimSpace(k)
			seen[name] = struct{}{}
			rec[name] = stringifyCell(v)
			if rec[name] != "" {
				blank = false
			}
		}
		if !blank {
			rows = append(rows, rec)
		}
	}

	header := make([]string, 0, len(seen))
	for name := range seen {
		header = append(header, name)
	}
	slices.Sort(header)

	for _, rec := range rows {
		for _, name := range header {
			if _, ok := rec[name]; !ok {
				rec[name] = ""
			}
		}
	}
	return Table{Header: header, Rows: rows}, nil
}

func stringifyCell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
