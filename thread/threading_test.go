package thread_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dcarrero/mboxshell-go/mail"
	"github.com/dcarrero/mboxshell-go/thread"
)

func rec(id string, refs []string, inReplyTo, subject string, date time.Time) mail.Record {
	return mail.Record{
		MessageID:  id,
		References: refs,
		InReplyTo:  inReplyTo,
		Subject:    subject,
		Date:       date,
	}
}

func TestBuildLinksReplyChain(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	records := []mail.Record{
		rec("<1>", nil, "", "Hello", base),
		rec("<2>", []string{"<1>"}, "<1>", "Re: Hello", base.Add(time.Hour)),
		rec("<3>", []string{"<1>", "<2>"}, "<2>", "Re: Hello", base.Add(2*time.Hour)),
	}

	threads := thread.Build(records)
	require.Len(t, threads, 1)

	flat := thread.Flatten(threads[0])
	require.Len(t, flat, 3)
	assert.Equal(t, "<1>", flat[0].Record.MessageID)
	assert.Equal(t, 0, flat[0].Depth)
	assert.Equal(t, "<2>", flat[1].Record.MessageID)
	assert.Equal(t, 1, flat[1].Depth)
	assert.Equal(t, "<3>", flat[2].Record.MessageID)
	assert.Equal(t, 2, flat[2].Depth)
}

func TestBuildSortsThreadsByNewestFirst(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	records := []mail.Record{
		rec("<old>", nil, "", "Old thread", base),
		rec("<new>", nil, "", "New thread", base.Add(48*time.Hour)),
	}

	threads := thread.Build(records)
	require.Len(t, threads, 2)
	assert.Equal(t, "<new>", threads[0].Root.Record.MessageID)
	assert.Equal(t, "<old>", threads[1].Root.Record.MessageID)
}

func TestBuildRejectsCycles(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	records := []mail.Record{
		rec("<a>", []string{"<b>"}, "<b>", "loop", base),
		rec("<b>", []string{"<a>"}, "<a>", "loop", base.Add(time.Hour)),
	}

	// Must not hang or panic; exact shape isn't asserted since a forged
	// mutual-reference loop has no canonical resolution.
	threads := thread.Build(records)
	assert.NotEmpty(t, threads)
}

func TestBuildGroupsBySubjectWhenUnreferenced(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	records := []mail.Record{
		rec("<x>", nil, "", "Status update", base),
		rec("<y>", nil, "", "Re: Status update", base.Add(time.Hour)),
	}

	threads := thread.Build(records)
	require.Len(t, threads, 1)
	flat := thread.Flatten(threads[0])
	require.Len(t, flat, 2)
}

func TestBuildHandlesGhostAncestor(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	// "<missing>" is referenced but never appears as its own message.
	records := []mail.Record{
		rec("<child>", []string{"<missing>"}, "<missing>", "Orphaned reply", base),
	}

	threads := thread.Build(records)
	require.Len(t, threads, 1)
	assert.Equal(t, "<child>", threads[0].Root.Record.MessageID)
}
