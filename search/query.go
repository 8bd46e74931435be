// Package search implements the two-phase query engine: a cheap,
// uncancellable metadata filter (phase 1) followed by an optional,
// cancellable full-text body/filename scan (phase 2) for anything phase 1
// could not decide on its own.
package search

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dcarrero/mboxshell-go/parser"
)

// ClauseField names which part of a message a Clause matches against.
type ClauseField int

const (
	FieldText ClauseField = iota // unqualified term: subject, from, or to
	FieldFrom
	FieldTo
	FieldCc
	FieldSubject
	FieldBody
	FieldFilename
	FieldLabel
	FieldID
	FieldHasAttachment
	FieldBefore
	FieldAfter
	FieldDateRange
	FieldSize
)

// Clause is one leaf term of a query: "word", "-word", 'field:"quoted phrase"',
// "has:attachment", "before:2024-01-01", "date:2024-01..2024-06", "size:>10M".
type Clause struct {
	Field  ClauseField
	Value  string
	Negate bool
	SizeOp byte // '>' or '<', only meaningful when Field == FieldSize
	Size   int64
	Date   time.Time // only meaningful for FieldBefore/FieldAfter

	// DateStart/DateEnd bound an inclusive range, only meaningful when
	// Field == FieldDateRange. A partial date ("2024", "2024-01") widens
	// to the whole year/month it names.
	DateStart time.Time
	DateEnd   time.Time
}

// Query is a query string parsed into OR-of-AND-groups: any Group
// matching satisfies the whole Query, and within a Group every Clause
// must match (subject to its own Negate).
type Query struct {
	Groups [][]Clause
	Raw    string
}

// NeedsFullText reports whether q contains any clause that phase 1 cannot
// resolve from a mail.Record alone: free text, body:, and filename: all
// require a decoded body. size: is metadata-only (it compares against the
// record's on-disk Length, known without decoding) and is not listed here.
func (q *Query) NeedsFullText() bool {
	for _, group := range q.Groups {
		for _, c := range group {
			if c.Field == FieldText || c.Field == FieldBody || c.Field == FieldFilename {
				return true
			}
		}
	}
	return false
}

// Parse tokenizes and parses a query string into a Query. Parsing never
// fails on its own grammar: unrecognized field prefixes, and date: or
// size: clauses whose value cannot be parsed, degrade to plain FieldText
// terms rather than producing a syntax error, matching the forgiving style
// the rest of this module applies to malformed input. The returned error
// is always nil.
func Parse(raw string) (*Query, error) {
	tokens := tokenize(raw)

	var groups [][]Clause
	var current []Clause

	for _, tok := range tokens {
		if strings.EqualFold(tok, "OR") {
			if len(current) > 0 {
				groups = append(groups, current)
				current = nil
			}
			continue
		}

		clause, err := parseClause(tok)
		if err != nil {
			return nil, err
		}
		current = append(current, clause)
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}

	return &Query{Groups: groups, Raw: raw}, nil
}

// tokenize splits raw on whitespace, keeping double-quoted phrases (which
// may themselves follow a field: prefix) intact as single tokens.
func tokenize(raw string) []string {
	var tokens []string
	var cur strings.Builder
	inQuotes := false

	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}

	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case c == '"':
			inQuotes = !inQuotes
			cur.WriteByte(c)
		case c == ' ' && !inQuotes:
			flush()
		default:
			cur.WriteByte(c)
		}
	}
	flush()

	return tokens
}

func parseClause(tok string) (Clause, error) {
	negate := false
	if strings.HasPrefix(tok, "-") && len(tok) > 1 {
		negate = true
		tok = tok[1:]
	}

	field, value, hasField := splitField(tok)
	value = strings.Trim(value, `"`)

	if !hasField {
		return Clause{Field: FieldText, Value: strings.Trim(tok, `"`), Negate: negate}, nil
	}

	switch strings.ToLower(field) {
	case "from":
		return Clause{Field: FieldFrom, Value: value, Negate: negate}, nil
	case "to":
		return Clause{Field: FieldTo, Value: value, Negate: negate}, nil
	case "cc":
		return Clause{Field: FieldCc, Value: value, Negate: negate}, nil
	case "subject":
		return Clause{Field: FieldSubject, Value: value, Negate: negate}, nil
	case "body":
		return Clause{Field: FieldBody, Value: value, Negate: negate}, nil
	case "filename":
		return Clause{Field: FieldFilename, Value: value, Negate: negate}, nil
	case "label":
		return Clause{Field: FieldLabel, Value: value, Negate: negate}, nil
	case "id":
		return Clause{Field: FieldID, Value: value, Negate: negate}, nil
	case "has":
		return Clause{Field: FieldHasAttachment, Value: strings.ToLower(value), Negate: negate}, nil
	case "before":
		d := parser.ParseDate(value)
		return Clause{Field: FieldBefore, Date: d, Negate: negate}, nil
	case "after":
		d := parser.ParseDate(value)
		return Clause{Field: FieldAfter, Date: d, Negate: negate}, nil
	case "date":
		start, end, err := parseDateRangeExpr(value)
		if err != nil {
			return Clause{Field: FieldText, Value: strings.Trim(tok, `"`), Negate: negate}, nil
		}
		return Clause{Field: FieldDateRange, DateStart: start, DateEnd: end, Negate: negate}, nil
	case "size":
		op, n, err := parseSizeExpr(value)
		if err != nil {
			return Clause{Field: FieldText, Value: strings.Trim(tok, `"`), Negate: negate}, nil
		}
		return Clause{Field: FieldSize, SizeOp: op, Size: n, Negate: negate}, nil
	default:
		return Clause{Field: FieldText, Value: strings.Trim(tok, `"`), Negate: negate}, nil
	}
}

// parseDateRangeExpr parses a date: clause value: either a single date
// ("2024", "2024-01", "2024-01-15") or a "FROM..TO" range, where a partial
// FROM widens down to its first instant and a partial TO widens down to its
// last instant. Either side of a range may be empty to leave that bound
// open.
func parseDateRangeExpr(value string) (time.Time, time.Time, error) {
	value = strings.TrimSpace(value)

	if idx := strings.Index(value, ".."); idx >= 0 {
		fromStr := strings.TrimSpace(value[:idx])
		toStr := strings.TrimSpace(value[idx+2:])

		start := time.Time{}
		if fromStr != "" {
			s, _, ok := parseDatePart(fromStr)
			if !ok {
				return time.Time{}, time.Time{}, fmt.Errorf("invalid range start %q", fromStr)
			}
			start = s
		}

		end := maxDate
		if toStr != "" {
			_, e, ok := parseDatePart(toStr)
			if !ok {
				return time.Time{}, time.Time{}, fmt.Errorf("invalid range end %q", toStr)
			}
			end = e
		}

		return start, end, nil
	}

	start, end, ok := parseDatePart(value)
	if !ok {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid date %q", value)
	}
	return start, end, nil
}

// maxDate stands in for "no upper bound" on an open-ended range.
var maxDate = time.Date(9999, 12, 31, 23, 59, 59, 999999999, time.UTC)

// parseDatePart parses a single YYYY, YYYY-MM, or YYYY-MM-DD value and
// returns the inclusive [start, end] instant range it denotes: a bare year
// spans the whole year, a year-month the whole month, a full date just
// that day.
func parseDatePart(s string) (start, end time.Time, ok bool) {
	parts := strings.Split(s, "-")
	switch len(parts) {
	case 1:
		year, err := strconv.Atoi(parts[0])
		if err != nil || len(parts[0]) != 4 {
			return time.Time{}, time.Time{}, false
		}
		start = time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
		end = start.AddDate(1, 0, 0).Add(-time.Nanosecond)
		return start, end, true

	case 2:
		year, err1 := strconv.Atoi(parts[0])
		month, err2 := strconv.Atoi(parts[1])
		if err1 != nil || err2 != nil || month < 1 || month > 12 {
			return time.Time{}, time.Time{}, false
		}
		start = time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
		end = start.AddDate(0, 1, 0).Add(-time.Nanosecond)
		return start, end, true

	case 3:
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return time.Time{}, time.Time{}, false
		}
		start = t
		end = start.AddDate(0, 0, 1).Add(-time.Nanosecond)
		return start, end, true

	default:
		return time.Time{}, time.Time{}, false
	}
}

// splitField splits "field:value" on the first unquoted colon. Returns
// hasField=false if tok carries no recognizable "word:" prefix.
func splitField(tok string) (field, value string, hasField bool) {
	colon := strings.IndexByte(tok, ':')
	if colon <= 0 {
		return "", tok, false
	}
	return tok[:colon], tok[colon+1:], true
}

// parseSizeExpr parses "> 10M", ">10M", "<1k", or a bare number (treated
// as >).
func parseSizeExpr(s string) (byte, int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, 0, fmt.Errorf("empty size value")
	}

	op := byte('>')
	switch s[0] {
	case '>', '<':
		op = s[0]
		s = s[1:]
	}

	n, ok := parser.ParseSizeSuffix(s)
	if !ok {
		parsed, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, 0, fmt.Errorf("not a size: %q", s)
		}
		n = parsed
	}
	return op, n, nil
}
