package search

import (
	"context"
	"strings"

	"github.com/dcarrero/mboxshell-go/mail"
	"github.com/dcarrero/mboxshell-go/mboxerr"
	"github.com/dcarrero/mboxshell-go/store"
)

// ProgressFunc is invoked after each candidate is evaluated with the
// number done and the total candidate count. Returning false cancels the
// scan; Run then returns whatever it has matched so far along with a
// Cancelled error.
type ProgressFunc func(done, total int) bool

// Run performs phase 2: for every candidate (normally the output of
// FilterMetadata), decode its body if the query needs one and evaluate
// the full clause set, including FieldText, FieldBody, and FieldFilename.
// This is the expensive, cancellable half of the query engine; callers
// with a query that has no such clauses at all should just use
// FilterMetadata's result directly and skip this call.
func Run(ctx context.Context, candidates []mail.Record, q *Query, st *store.Store, progress ProgressFunc) ([]mail.Record, error) {
	needsBody := q.NeedsFullText()

	matches := make([]mail.Record, 0, len(candidates))

	for i, rec := range candidates {
		if ctx.Err() != nil {
			return matches, mboxerr.New(mboxerr.Cancelled, "", ctx.Err())
		}

		var body *mail.Body
		if needsBody {
			b, err := st.Body(rec)
			if err != nil {
				// A message that fails to decode simply can't match a
				// full-text clause; it's still eligible on metadata alone.
				body = &mail.Body{}
			} else {
				body = b
			}
		}

		if matchesAnyGroupFull(rec, body, q.Groups) {
			matches = append(matches, rec)
		}

		if progress != nil && !progress(i+1, len(candidates)) {
			return matches, mboxerr.New(mboxerr.Cancelled, "", nil)
		}
	}

	return matches, nil
}

func matchesAnyGroupFull(rec mail.Record, body *mail.Body, groups [][]Clause) bool {
	for _, group := range groups {
		if matchesGroupFull(rec, body, group) {
			return true
		}
	}
	return false
}

func matchesGroupFull(rec mail.Record, body *mail.Body, clauses []Clause) bool {
	for _, c := range clauses {
		if !matchClauseFull(rec, body, c) {
			return false
		}
	}
	return true
}

func matchClauseFull(rec mail.Record, body *mail.Body, c Clause) bool {
	var result bool

	switch c.Field {
	case FieldText:
		result = matchesTextFields(rec, c.Value) || bodyContains(body, c.Value) || filenamesContain(body, c.Value)
	case FieldBody:
		result = bodyContains(body, c.Value)
	case FieldFilename:
		result = filenamesContain(body, c.Value)
	default:
		return matchClauseMetadata(rec, c, false)
	}

	if c.Negate {
		return !result
	}
	return result
}

func bodyContains(body *mail.Body, needle string) bool {
	if body == nil || needle == "" {
		return needle == ""
	}
	if body.Text != nil && strings.Contains(strings.ToLower(*body.Text), strings.ToLower(needle)) {
		return true
	}
	if body.HTML != nil && strings.Contains(strings.ToLower(*body.HTML), strings.ToLower(needle)) {
		return true
	}
	return false
}

func filenamesContain(body *mail.Body, needle string) bool {
	if body == nil || needle == "" {
		return false
	}
	for _, a := range body.Attachments {
		if containsFold(a.Filename, needle) {
			return true
		}
	}
	return false
}
