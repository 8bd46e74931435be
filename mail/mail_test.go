package mail_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dcarrero/mboxshell-go/mail"
)

func TestAddressString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "a@example.com", mail.Address{Address: "a@example.com"}.String())
	assert.Equal(t, "Alice <a@example.com>", mail.Address{DisplayName: "Alice", Address: "a@example.com"}.String())
}

func TestBodyEqual(t *testing.T) {
	t.Parallel()

	text1 := "hello"
	text2 := "hello"
	html := "<p>hi</p>"

	a := mail.Body{Text: &text1, Attachments: []mail.AttachmentMeta{{Filename: "a.txt", Size: 3}}}
	b := mail.Body{Text: &text2, Attachments: []mail.AttachmentMeta{{Filename: "a.txt", Size: 3}}}
	assert.True(t, a.Equal(b))

	c := mail.Body{Text: &text1, HTML: &html}
	assert.False(t, a.Equal(c))

	assert.True(t, mail.Body{}.Equal(mail.Body{}))
}
