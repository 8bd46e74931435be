package mboxerr_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dcarrero/mboxshell-go/mboxerr"
)

func TestErrorWrapsAndUnwraps(t *testing.T) {
	t.Parallel()

	cause := errors.New("disk exploded")
	err := mboxerr.New(mboxerr.ArchiveIO, "/tmp/a.mbox", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "archive I/O")
	assert.Contains(t, err.Error(), "/tmp/a.mbox")
}

func TestIsComparesKind(t *testing.T) {
	t.Parallel()

	a := mboxerr.New(mboxerr.Cancelled, "", nil)
	b := mboxerr.New(mboxerr.Cancelled, "somewhere else", errors.New("x"))
	c := mboxerr.New(mboxerr.IndexCorrupt, "", nil)

	assert.ErrorIs(t, a, b)
	assert.NotErrorIs(t, a, c)
}
