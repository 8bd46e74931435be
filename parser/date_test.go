package parser_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dcarrero/mboxshell-go/parser"
)

func TestParseDateRFC5322(t *testing.T) {
	t.Parallel()

	got := parser.ParseDate("Mon, 1 Jan 2024 10:00:00 +0000")
	assert.Equal(t, 2024, got.Year())
	assert.Equal(t, time.January, got.Month())
}

func TestParseDateRFC3339(t *testing.T) {
	t.Parallel()

	got := parser.ParseDate("2024-01-01T10:00:00Z")
	assert.Equal(t, 2024, got.Year())
}

func TestParseDateNamedTimezone(t *testing.T) {
	t.Parallel()

	got := parser.ParseDate("Mon, 1 Jan 2024 10:00:00 EST")
	assert.Equal(t, 2024, got.Year())
	assert.Equal(t, 15, got.Hour()) // EST = -0500, normalized to UTC
}

func TestParseDateFuzzyFallback(t *testing.T) {
	t.Parallel()

	got := parser.ParseDate("January 1, 2024 10:00am")
	assert.Equal(t, 2024, got.Year())
}

func TestParseDateUnparseableYieldsEpoch(t *testing.T) {
	t.Parallel()

	got := parser.ParseDate("not a date at all")
	assert.Equal(t, time.Unix(0, 0).UTC(), got)
}

func TestParseDateEmptyYieldsEpoch(t *testing.T) {
	t.Parallel()

	got := parser.ParseDate("")
	assert.Equal(t, time.Unix(0, 0).UTC(), got)
}
