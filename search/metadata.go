package search

import (
	"strings"

	"github.com/dcarrero/mboxshell-go/mail"
)

// FilterMetadata runs phase 1: an O(n) pass over records using only
// fields already resident on mail.Record, with no archive I/O. It never
// excludes a record on account of a FieldText, FieldBody, or FieldFilename
// clause (those require a decoded body); such clauses are treated as
// provisionally satisfied so the candidate set phase 2 receives is a
// superset of the true result, never a subset. FieldSize compares against
// the record's on-disk Length and is decided here for real.
func FilterMetadata(records []mail.Record, q *Query) []mail.Record {
	if len(q.Groups) == 0 {
		return records
	}

	out := make([]mail.Record, 0, len(records))
	for _, rec := range records {
		if matchesAnyGroup(rec, q.Groups, true) {
			out = append(out, rec)
		}
	}
	return out
}

// matchesAnyGroup reports whether rec satisfies at least one OR-group.
// When provisional is true, FieldText/FieldBody/FieldFilename clauses are
// treated as passing regardless of rec's content (phase 1 behavior); when
// false, every clause is evaluated strictly against metadata alone, which
// is only correct for queries with no such clauses at all.
func matchesAnyGroup(rec mail.Record, groups [][]Clause, provisional bool) bool {
	for _, group := range groups {
		if matchesGroup(rec, group, provisional) {
			return true
		}
	}
	return false
}

func matchesGroup(rec mail.Record, clauses []Clause, provisional bool) bool {
	for _, c := range clauses {
		if !matchClauseMetadata(rec, c, provisional) {
			return false
		}
	}
	return true
}

func matchClauseMetadata(rec mail.Record, c Clause, provisional bool) bool {
	var result bool

	switch c.Field {
	case FieldText:
		// An unqualified term matches subject, from address/display name,
		// or any to address/display name.
		if provisional {
			return true
		}
		result = matchesTextFields(rec, c.Value)

	case FieldFrom:
		result = containsFold(rec.From.String(), c.Value)

	case FieldTo:
		result = addressListContains(rec.To, c.Value)

	case FieldCc:
		result = addressListContains(rec.Cc, c.Value)

	case FieldSubject:
		result = containsFold(rec.Subject, c.Value)

	case FieldLabel:
		result = labelsContain(rec.Labels, c.Value)

	case FieldID:
		result = messageIDMatches(rec.MessageID, c.Value)

	case FieldBody, FieldFilename:
		// Neither can be decided from metadata alone; always provisionally
		// true, same as FieldText, regardless of the provisional flag —
		// there is simply no other information to evaluate them against
		// here.
		return true

	case FieldHasAttachment:
		result = rec.HasAttachments == wantsAttachment(c.Value)

	case FieldBefore:
		result = rec.Date.Before(c.Date)

	case FieldAfter:
		result = rec.Date.After(c.Date)

	case FieldDateRange:
		result = !rec.Date.Before(c.DateStart) && !rec.Date.After(c.DateEnd)

	case FieldSize:
		result = matchSize(int64(rec.Length), c)

	default:
		result = true
	}

	if c.Negate {
		return !result
	}
	return result
}

// wantsAttachment interprets has:'s value: "no-attachment"/"no"/"false"/"0"
// requires the absence of an attachment; anything else (including the bare
// "attachment") requires its presence.
func wantsAttachment(value string) bool {
	switch value {
	case "no-attachment", "no", "false", "0":
		return false
	default:
		return true
	}
}

func matchesTextFields(rec mail.Record, needle string) bool {
	if needle == "" {
		return true
	}
	return containsFold(rec.Subject, needle) ||
		containsFold(rec.From.String(), needle) ||
		addressListContains(rec.To, needle)
}

func matchSize(size int64, c Clause) bool {
	if c.SizeOp == '<' {
		return size < c.Size
	}
	return size > c.Size
}

func addressListContains(addrs []mail.Address, needle string) bool {
	for _, a := range addrs {
		if containsFold(a.String(), needle) {
			return true
		}
	}
	return false
}

func labelsContain(labels []string, needle string) bool {
	for _, l := range labels {
		if containsFold(l, needle) {
			return true
		}
	}
	return false
}

// messageIDMatches compares MessageID to needle, ignoring angle brackets
// and case on both sides.
func messageIDMatches(messageID, needle string) bool {
	if needle == "" {
		return true
	}
	return strings.EqualFold(strings.Trim(messageID, "<>"), strings.Trim(needle, "<>"))
}

func containsFold(haystack, needle string) bool {
	if needle == "" {
		return true
	}
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
