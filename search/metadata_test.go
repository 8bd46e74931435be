package search_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dcarrero/mboxshell-go/mail"
	"github.com/dcarrero/mboxshell-go/search"
)

func sampleRecords() []mail.Record {
	return []mail.Record{
		{
			Sequence: 0,
			From:     mail.Address{Address: "alice@example.com"},
			Subject:  "Invoice for March",
			Date:     time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			Length:   500,
		},
		{
			Sequence:       1,
			From:           mail.Address{Address: "bob@example.com"},
			Subject:        "Lunch plans",
			Date:           time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
			HasAttachments: true,
			Length:         5_000_000,
		},
		{
			Sequence:  2,
			From:      mail.Address{Address: "carol@example.com"},
			To:        []mail.Address{{Address: "alice@example.com", DisplayName: "Alice"}},
			Cc:        []mail.Address{{Address: "dave@example.com"}},
			Subject:   "Quarterly report",
			Date:      time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC),
			Length:    500_000,
			Labels:    []string{"Work"},
			MessageID: "<abc123@example.com>",
		},
	}
}

func TestFilterMetadataByFrom(t *testing.T) {
	t.Parallel()

	q, err := search.Parse("from:alice")
	require.NoError(t, err)

	out := search.FilterMetadata(sampleRecords(), q)
	require.Len(t, out, 1)
	assert.Equal(t, uint64(0), out[0].Sequence)
}

func TestFilterMetadataByHasAttachment(t *testing.T) {
	t.Parallel()

	q, err := search.Parse("has:attachment")
	require.NoError(t, err)

	out := search.FilterMetadata(sampleRecords(), q)
	require.Len(t, out, 1)
	assert.Equal(t, uint64(1), out[0].Sequence)
}

func TestFilterMetadataByDateRange(t *testing.T) {
	t.Parallel()

	q, err := search.Parse("after:2024-03-15")
	require.NoError(t, err)

	out := search.FilterMetadata(sampleRecords(), q)
	require.Len(t, out, 2)
	assert.Equal(t, uint64(1), out[0].Sequence)
	assert.Equal(t, uint64(2), out[1].Sequence)
}

func TestFilterMetadataPassesThroughTextClauses(t *testing.T) {
	t.Parallel()

	q, err := search.Parse("nonexistentterm")
	require.NoError(t, err)

	out := search.FilterMetadata(sampleRecords(), q)
	assert.Len(t, out, 3) // provisional: text clauses can't exclude at phase 1
}

func TestFilterMetadataNegation(t *testing.T) {
	t.Parallel()

	q, err := search.Parse("-from:alice")
	require.NoError(t, err)

	out := search.FilterMetadata(sampleRecords(), q)
	require.Len(t, out, 2)
	assert.Equal(t, uint64(1), out[0].Sequence)
	assert.Equal(t, uint64(2), out[1].Sequence)
}

func TestFilterMetadataBySizeComparesLength(t *testing.T) {
	t.Parallel()

	q, err := search.Parse("size:>1m")
	require.NoError(t, err)

	out := search.FilterMetadata(sampleRecords(), q)
	require.Len(t, out, 1)
	assert.Equal(t, uint64(1), out[0].Sequence)
}

func TestFilterMetadataByNoAttachment(t *testing.T) {
	t.Parallel()

	q, err := search.Parse("has:no-attachment")
	require.NoError(t, err)

	out := search.FilterMetadata(sampleRecords(), q)
	require.Len(t, out, 2)
	assert.Equal(t, uint64(0), out[0].Sequence)
	assert.Equal(t, uint64(2), out[1].Sequence)
}

func TestFilterMetadataBareWordIsProvisional(t *testing.T) {
	t.Parallel()

	// A bare term can never be excluded at phase 1, even when it matches
	// no record's subject/from/to: the decision is deferred to phase 2.
	q, err := search.Parse("alice")
	require.NoError(t, err)

	out := search.FilterMetadata(sampleRecords(), q)
	assert.Len(t, out, 3)
}

func TestFilterMetadataByCc(t *testing.T) {
	t.Parallel()

	q, err := search.Parse("cc:dave")
	require.NoError(t, err)

	out := search.FilterMetadata(sampleRecords(), q)
	require.Len(t, out, 1)
	assert.Equal(t, uint64(2), out[0].Sequence)
}

func TestFilterMetadataByLabel(t *testing.T) {
	t.Parallel()

	q, err := search.Parse("label:work")
	require.NoError(t, err)

	out := search.FilterMetadata(sampleRecords(), q)
	require.Len(t, out, 1)
	assert.Equal(t, uint64(2), out[0].Sequence)
}

func TestFilterMetadataByID(t *testing.T) {
	t.Parallel()

	q, err := search.Parse("id:abc123@example.com")
	require.NoError(t, err)

	out := search.FilterMetadata(sampleRecords(), q)
	require.Len(t, out, 1)
	assert.Equal(t, uint64(2), out[0].Sequence)
}

func TestFilterMetadataByDateRangeSpanningMonths(t *testing.T) {
	t.Parallel()

	q, err := search.Parse("date:2024-01..2024-04")
	require.NoError(t, err)

	out := search.FilterMetadata(sampleRecords(), q)
	require.Len(t, out, 2)
	assert.Equal(t, uint64(0), out[0].Sequence)
	assert.Equal(t, uint64(1), out[1].Sequence)
}

func TestFilterMetadataBodyAndFilenameAlwaysProvisional(t *testing.T) {
	t.Parallel()

	q, err := search.Parse(`body:nonexistent filename:nonexistent`)
	require.NoError(t, err)

	out := search.FilterMetadata(sampleRecords(), q)
	assert.Len(t, out, 3)
}
