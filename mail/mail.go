// Package mail holds the data model shared by every component of this
// module: the compact per-message Record kept in the index, the Address
// and AttachmentMeta value types, and the transient Body produced by
// decoding a message.
package mail

import "time"

// MaxAddressListLen is the hard cap applied to the To/Cc address lists
// during indexing. Downstream consumers rely on the compact record size;
// this silently drops recipients beyond the cap. See DESIGN.md.
const MaxAddressListLen = 5

// Address is a single parsed e-mail address. DisplayName may be empty.
type Address struct {
	DisplayName string
	Address     string
}

// String renders "Display Name <addr>" or just "addr" when there is no
// display name.
func (a Address) String() string {
	if a.DisplayName == "" {
		return a.Address
	}
	return a.DisplayName + " <" + a.Address + ">"
}

// Record is the compact, serializable per-message metadata kept fully in
// memory and persisted in the on-disk index. One per message.
type Record struct {
	// Offset is the byte position of the message's opening separator line
	// inside the archive.
	Offset uint64
	// Length is the total byte length of the message, separator line
	// through the byte before the next separator (or EOF).
	Length uint64
	// Sequence is the monotonic 0-based ordinal in file order.
	Sequence uint64

	// Date is the UTC instant parsed from the Date header, or the epoch
	// if unparseable. Never the zero time.Time.
	Date time.Time

	From Address
	To   []Address
	Cc   []Address

	Subject string

	// MessageID includes angle brackets, or is empty.
	MessageID string
	// InReplyTo includes angle brackets when present.
	InReplyTo string
	// References is ordered, each entry including angle brackets.
	References []string

	HasAttachments bool
	// ContentType is the lowercased top-level media type, no parameters.
	ContentType string
	// TextSize is an estimated plain-text body size. The index builder
	// leaves it 0 and nothing in this module fills it in later;
	// store.Store.TextSize computes the size from a decoded body on demand.
	TextSize uint64

	Labels []string
}

// AttachmentMeta describes one attachment discovered while decoding a
// message's MIME tree. Built on demand; never persisted in the index.
type AttachmentMeta struct {
	Filename      string
	ContentType   string
	Size          uint64
	Encoding      string
	ContentID     string
	IsInline      bool
	ContentOffset uint64
	ContentLength uint64
}

// Body is the transient, decoded content of a message. Produced by
// decoding a Record's raw bytes; never persisted.
type Body struct {
	// Text is the plain-text body, or a plain-text conversion of the HTML
	// body when no text/plain part exists. Nil only when decoding failed
	// to find any textual content at all.
	Text *string
	// HTML is the text/html body part, if any.
	HTML       *string
	RawHeaders string
	Attachments []AttachmentMeta
}

// Equal reports whether two Body values hold the same content, ignoring
// any instant-of-decode metadata (there is none to ignore today, but this
// keeps the idempotent-decoding property testable without relying on
// pointer identity for Text/HTML).
func (b Body) Equal(other Body) bool {
	if !stringPtrEqual(b.Text, other.Text) || !stringPtrEqual(b.HTML, other.HTML) {
		return false
	}
	if b.RawHeaders != other.RawHeaders {
		return false
	}
	if len(b.Attachments) != len(other.Attachments) {
		return false
	}
	for i := range b.Attachments {
		if b.Attachments[i] != other.Attachments[i] {
			return false
		}
	}
	return true
}

func stringPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
