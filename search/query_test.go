package search_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dcarrero/mboxshell-go/search"
)

func TestParsePlainTerms(t *testing.T) {
	t.Parallel()

	q, err := search.Parse("invoice payment")
	require.NoError(t, err)
	require.Len(t, q.Groups, 1)
	require.Len(t, q.Groups[0], 2)
	assert.Equal(t, search.FieldText, q.Groups[0][0].Field)
}

func TestParseFieldAndNegation(t *testing.T) {
	t.Parallel()

	q, err := search.Parse(`from:alice -subject:"spam offer"`)
	require.NoError(t, err)
	require.Len(t, q.Groups[0], 2)
	assert.Equal(t, search.FieldFrom, q.Groups[0][0].Field)
	assert.Equal(t, search.FieldSubject, q.Groups[0][1].Field)
	assert.True(t, q.Groups[0][1].Negate)
	assert.Equal(t, "spam offer", q.Groups[0][1].Value)
}

func TestParseOrGroups(t *testing.T) {
	t.Parallel()

	q, err := search.Parse("from:alice OR from:bob")
	require.NoError(t, err)
	require.Len(t, q.Groups, 2)
}

func TestParseHasAttachment(t *testing.T) {
	t.Parallel()

	q, err := search.Parse("has:attachment")
	require.NoError(t, err)
	assert.Equal(t, search.FieldHasAttachment, q.Groups[0][0].Field)
}

func TestParseSizeClause(t *testing.T) {
	t.Parallel()

	q, err := search.Parse("size:>10k")
	require.NoError(t, err)
	c := q.Groups[0][0]
	assert.Equal(t, search.FieldSize, c.Field)
	assert.Equal(t, byte('>'), c.SizeOp)
	assert.Equal(t, int64(10000), c.Size)
}

func TestParseInvalidSizeClauseDegradesToText(t *testing.T) {
	t.Parallel()

	q, err := search.Parse("size:>not-a-number")
	require.NoError(t, err)
	assert.Equal(t, search.FieldText, q.Groups[0][0].Field)
}

func TestNeedsFullText(t *testing.T) {
	t.Parallel()

	q, err := search.Parse("from:alice")
	require.NoError(t, err)
	assert.False(t, q.NeedsFullText())

	q2, err := search.Parse("invoice")
	require.NoError(t, err)
	assert.True(t, q2.NeedsFullText())

	q3, err := search.Parse("size:>10k")
	require.NoError(t, err)
	assert.False(t, q3.NeedsFullText(), "size: is decided entirely in phase 1")

	q4, err := search.Parse("body:invoice")
	require.NoError(t, err)
	assert.True(t, q4.NeedsFullText())

	q5, err := search.Parse("filename:receipt.pdf")
	require.NoError(t, err)
	assert.True(t, q5.NeedsFullText())
}

func TestParseNewFieldPrefixes(t *testing.T) {
	t.Parallel()

	cases := map[string]search.ClauseField{
		"cc:dave":          search.FieldCc,
		"body:invoice":     search.FieldBody,
		"filename:note.pdf": search.FieldFilename,
		"label:work":       search.FieldLabel,
		"id:abc123":        search.FieldID,
	}
	for tok, want := range cases {
		q, err := search.Parse(tok)
		require.NoError(t, err, tok)
		require.Len(t, q.Groups[0], 1, tok)
		assert.Equal(t, want, q.Groups[0][0].Field, tok)
	}
}

func TestParseDateClauseSingleValues(t *testing.T) {
	t.Parallel()

	q, err := search.Parse("date:2024")
	require.NoError(t, err)
	c := q.Groups[0][0]
	assert.Equal(t, search.FieldDateRange, c.Field)
	assert.Equal(t, 2024, c.DateStart.Year())
	assert.Equal(t, 1, int(c.DateStart.Month()))
	assert.Equal(t, 2024, c.DateEnd.Year())
	assert.Equal(t, 12, int(c.DateEnd.Month()))

	q2, err := search.Parse("date:2024-03")
	require.NoError(t, err)
	c2 := q2.Groups[0][0]
	assert.Equal(t, 3, int(c2.DateStart.Month()))
	assert.Equal(t, 3, int(c2.DateEnd.Month()))
	assert.Equal(t, 31, c2.DateEnd.Day())
}

func TestParseDateClauseRange(t *testing.T) {
	t.Parallel()

	q, err := search.Parse("date:2024-01..2024-06")
	require.NoError(t, err)
	c := q.Groups[0][0]
	assert.Equal(t, search.FieldDateRange, c.Field)
	assert.Equal(t, 1, int(c.DateStart.Month()))
	assert.Equal(t, 6, int(c.DateEnd.Month()))
	assert.Equal(t, 30, c.DateEnd.Day())
}

func TestParseDateClauseOpenEndedRange(t *testing.T) {
	t.Parallel()

	q, err := search.Parse("date:2024-06..")
	require.NoError(t, err)
	c := q.Groups[0][0]
	assert.Equal(t, 2024, c.DateStart.Year())
	assert.Equal(t, 9999, c.DateEnd.Year())

	q2, err := search.Parse("date:..2024-06")
	require.NoError(t, err)
	c2 := q2.Groups[0][0]
	assert.True(t, c2.DateStart.IsZero())
	assert.Equal(t, 6, int(c2.DateEnd.Month()))
}

func TestParseInvalidDateClauseDegradesToText(t *testing.T) {
	t.Parallel()

	q, err := search.Parse("date:not-a-date")
	require.NoError(t, err)
	assert.Equal(t, search.FieldText, q.Groups[0][0].Field)
}
