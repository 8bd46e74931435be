// Package store retrieves and decodes individual messages from an archive
// given the compact mail.Record produced by the index. It owns the one
// cache this module keeps: a bounded LRU of decoded bodies, since body
// decoding (MIME walking, charset conversion, HTML sanitizing) is the most
// expensive per-message operation and the TUI re-requests the same
// message repeatedly while a user is reading it.
package store

import (
	"os"
	"sync"

	"github.com/dustin/go-humanize"

	"github.com/dcarrero/mboxshell-go/config"
	"github.com/dcarrero/mboxshell-go/internal/logging"
	"github.com/dcarrero/mboxshell-go/mail"
	"github.com/dcarrero/mboxshell-go/mboxerr"
	"github.com/dcarrero/mboxshell-go/parser"
)

// decodedBody is the cached unit: the decoded mail.Body, from which
// TextSize reads the plain-text length without re-decoding.
type decodedBody struct {
	body *mail.Body
}

// Store provides random access into a single archive. It holds no records
// itself: callers pass the mail.Record (normally produced by the index
// package) of each message they want.
type Store struct {
	archivePath string

	mu    sync.Mutex
	cache *lruCache
}

// Open verifies archivePath is readable and returns a Store ready to serve
// Raw/Body/Attachment for any mail.Record produced against that archive.
func Open(archivePath string, cfg config.Config) (*Store, error) {
	if _, err := os.Stat(archivePath); err != nil {
		if os.IsNotExist(err) {
			return nil, mboxerr.New(mboxerr.MissingArchive, archivePath, err)
		}
		return nil, mboxerr.New(mboxerr.ArchiveIO, archivePath, err)
	}

	capacity := cfg.CacheCapacity
	if capacity <= 0 {
		capacity = 50
	}

	return &Store{
		archivePath: archivePath,
		cache:       newLRUCache(capacity),
	}, nil
}

// Raw returns a message's full, undecoded byte range straight from the
// archive. Never cached: callers that want repeated cheap access to the
// same message should prefer Body.
func (s *Store) Raw(rec mail.Record) ([]byte, error) {
	return parser.ReadSpan(s.archivePath, rec.Offset, rec.Length)
}

// Body decodes a message's MIME tree into text/HTML/attachment metadata,
// serving from the LRU cache when possible.
func (s *Store) Body(rec mail.Record) (*mail.Body, error) {
	s.mu.Lock()
	if cached, ok := s.cache.get(rec.Offset); ok {
		s.mu.Unlock()
		return cached.body, nil
	}
	s.mu.Unlock()

	raw, err := s.Raw(rec)
	if err != nil {
		return nil, err
	}

	body, err := parser.DecodeBody(raw)
	if err != nil {
		logging.WithComponent("store").Warn().Err(err).Uint64("offset", rec.Offset).Msg("failed to decode message body")
		return nil, err
	}

	logging.WithComponent("store").Debug().Uint64("offset", rec.Offset).
		Str("rawSize", humanize.Bytes(uint64(len(raw)))).Msg("decoded message body")

	s.mu.Lock()
	s.cache.put(rec.Offset, &decodedBody{body: body})
	s.mu.Unlock()

	return body, nil
}

// TextSize returns the byte length of a message's plain-text body,
// decoding it first if necessary. It does not mutate or persist the
// result onto rec: nothing in this module writes it into Record.TextSize,
// which stays 0 as built by the index, and it is never written into the
// on-disk index. See DESIGN.md.
func (s *Store) TextSize(rec mail.Record) (uint64, error) {
	body, err := s.Body(rec)
	if err != nil {
		return 0, err
	}
	if body.Text == nil {
		return 0, nil
	}
	return uint64(len(*body.Text)), nil
}

// Attachment returns the raw decoded bytes of one attachment from rec, as
// previously described by a mail.AttachmentMeta returned from Body.
//
// Open question resolved: when meta.Filename is empty (some MUAs attach
// files with no filename parameter at all), the first attachment whose
// filename is also empty is returned; if none matches by filename at all,
// the first attachment in MIME order is returned as a last resort. This
// mirrors the leniency the rest of this module applies to malformed mail
// rather than failing a read the user can plainly see an attachment for.
func (s *Store) Attachment(rec mail.Record, meta mail.AttachmentMeta) ([]byte, error) {
	raw, err := s.Raw(rec)
	if err != nil {
		return nil, err
	}

	body, err := parser.DecodeBody(raw)
	if err != nil {
		return nil, err
	}

	if len(body.Attachments) == 0 {
		return nil, mboxerr.New(mboxerr.AttachmentNotFound, "", nil)
	}

	idx := matchAttachment(body.Attachments, meta)
	if idx < 0 {
		return nil, mboxerr.New(mboxerr.AttachmentNotFound, meta.Filename, nil)
	}

	return parser.AttachmentPayload(raw, idx)
}

func matchAttachment(attachments []mail.AttachmentMeta, meta mail.AttachmentMeta) int {
	for i, a := range attachments {
		if meta.ContentID != "" && a.ContentID == meta.ContentID {
			return i
		}
	}
	for i, a := range attachments {
		if meta.Filename != "" && a.Filename == meta.Filename {
			return i
		}
	}
	if meta.Filename == "" {
		for i, a := range attachments {
			if a.Filename == "" {
				return i
			}
		}
	}
	if len(attachments) > 0 {
		return 0
	}
	return -1
}
