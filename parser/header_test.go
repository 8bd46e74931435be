package parser_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dcarrero/mboxshell-go/parser"
)

const sampleHeaderBlock = `From: =?UTF-8?B?QWxpY2Ugw4k=?= <alice@example.com>
To: Bob <bob@example.com>, "Carol, C." <carol@example.com>
Subject: =?UTF-8?Q?Re=3A_Caf=C3=A9?=
Date: Mon, 1 Jan 2024 10:00:00 +0000
Message-ID: <msg1@example.com>
References: <root@example.com> <parent@example.com>
In-Reply-To: <parent@example.com>
Content-Type: multipart/mixed; boundary="xyz"
`

func TestParseHeaderBlockAndBuildRecord(t *testing.T) {
	t.Parallel()

	h := parser.ParseHeaderBlock([]byte(sampleHeaderBlock))
	rec := parser.BuildRecord(h, 0, 100, 0)

	assert.Equal(t, "alice@example.com", rec.From.Address)
	assert.Contains(t, rec.From.DisplayName, "Alice")
	require.Len(t, rec.To, 2)
	assert.Equal(t, "bob@example.com", rec.To[0].Address)
	assert.Equal(t, "carol@example.com", rec.To[1].Address)
	assert.Equal(t, "Carol, C.", rec.To[1].DisplayName)

	assert.Contains(t, rec.Subject, "Café")
	assert.Equal(t, "<msg1@example.com>", rec.MessageID)
	assert.Equal(t, "<parent@example.com>", rec.InReplyTo)
	assert.Equal(t, []string{"<root@example.com>", "<parent@example.com>"}, rec.References)
	assert.Equal(t, "multipart/mixed", rec.ContentType)
	assert.True(t, rec.HasAttachments)
}

func TestParseHeaderBlockUnfoldsContinuations(t *testing.T) {
	t.Parallel()

	raw := "Subject: first line\n continued line\nFrom: a@example.com\n"
	h := parser.ParseHeaderBlock([]byte(raw))
	v, ok := h.Get("subject")
	require.True(t, ok)
	assert.Equal(t, "first line continued line", v)
}

func TestParseHeaderBlockMissingHeadersDegradeGracefully(t *testing.T) {
	t.Parallel()

	h := parser.ParseHeaderBlock([]byte("Subject: no from here\n"))
	rec := parser.BuildRecord(h, 0, 10, 0)
	assert.Equal(t, "", rec.From.Address)
	assert.Equal(t, "text/plain", rec.ContentType)
	assert.False(t, rec.HasAttachments)
}

func TestParseSizeSuffix(t *testing.T) {
	t.Parallel()

	n, ok := parser.ParseSizeSuffix("10k")
	assert.True(t, ok)
	assert.Equal(t, int64(10000), n)

	n, ok = parser.ParseSizeSuffix("2MiB")
	assert.True(t, ok)
	assert.Equal(t, int64(2<<20), n)

	_, ok = parser.ParseSizeSuffix("not-a-size")
	assert.False(t, ok)
}
