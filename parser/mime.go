package parser

import (
	"bytes"
	"io"
	"strings"

	gomessage "github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/dcarrero/mboxshell-go/internal/logging"
	"github.com/dcarrero/mboxshell-go/mail"
	"github.com/dcarrero/mboxshell-go/mboxerr"
)

// htmlSanitizePolicy is shared across decodes; bluemonday's policies are
// safe for concurrent use once built.
var htmlSanitizePolicy = bluemonday.UGCPolicy()

// DecodeBody parses a message's full raw bytes (headers and body) into a
// mail.Body: the text and/or HTML parts and a flat list of attachment
// metadata, in MIME tree order. go-message performs the Content-Transfer-
// Encoding and charset decoding; this function only walks the resulting
// entity tree and classifies each leaf part.
func DecodeBody(raw []byte) (*mail.Body, error) {
	raw = stripSeparatorLine(raw)

	entity, err := gomessage.Read(bytes.NewReader(raw))
	if err != nil && !gomessage.IsUnknownCharset(err) {
		return nil, mboxerr.New(mboxerr.MIMEDecode, "", err)
	}

	body := &mail.Body{}

	rawHeaderEnd := bytes.Index(raw, []byte("\n\n"))
	if crlf := bytes.Index(raw, []byte("\r\n\r\n")); crlf >= 0 && (rawHeaderEnd < 0 || crlf < rawHeaderEnd) {
		rawHeaderEnd = crlf
	}
	if rawHeaderEnd >= 0 {
		body.RawHeaders = string(raw[:rawHeaderEnd])
	}

	if err := walkEntity(entity, body, false); err != nil {
		return nil, err
	}

	if body.Text == nil && body.HTML != nil {
		text := htmlToText(*body.HTML)
		body.Text = &text
	}

	return body, nil
}

// walkEntity recursively visits entity and its children (if multipart),
// filling in body's Text/HTML/Attachments fields. insideAlternative
// tracks whether we're inside a multipart/alternative group, where
// text/plain and text/html are alternatives of the *same* content rather
// than both being kept.
func walkEntity(entity *gomessage.Entity, body *mail.Body, insideAlternative bool) error {
	if entity == nil {
		return nil
	}

	mediaType, params, _ := entity.Header.ContentType()
	mediaType = strings.ToLower(mediaType)
	if mediaType == "" {
		mediaType = "text/plain" // RFC 2045's default for a part with no Content-Type
	}

	if mr := entity.MultipartReader(); mr != nil {
		isAlt := strings.HasPrefix(mediaType, "multipart/alternative")
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				logging.WithComponent("parser").Warn().Err(err).Msg("malformed multipart part, skipping rest")
				break
			}
			if err := walkEntity(part, body, insideAlternative || isAlt); err != nil {
				return err
			}
		}
		return nil
	}

	disposition, dispParams, _ := entity.Header.ContentDisposition()
	disposition = strings.ToLower(disposition)
	filename := dispParams["filename"]
	if filename == "" {
		filename = params["name"]
	}

	isAttachment := disposition == "attachment" || (filename != "" && !strings.HasPrefix(mediaType, "text/"))

	if !isAttachment && strings.HasPrefix(mediaType, "text/plain") {
		data, err := io.ReadAll(entity.Body)
		if err != nil {
			return mboxerr.New(mboxerr.MIMEDecode, "", err)
		}
		text := string(data)
		if body.Text == nil || !insideAlternative {
			body.Text = &text
		}
		return nil
	}

	if !isAttachment && strings.HasPrefix(mediaType, "text/html") {
		data, err := io.ReadAll(entity.Body)
		if err != nil {
			return mboxerr.New(mboxerr.MIMEDecode, "", err)
		}
		clean := htmlSanitizePolicy.SanitizeBytes(data)
		sanitized := string(clean)
		if body.HTML == nil || !insideAlternative {
			body.HTML = &sanitized
		}
		return nil
	}

	// Everything else is an attachment, inline image, or unrecognized part.
	data, err := io.ReadAll(entity.Body)
	if err != nil {
		return mboxerr.New(mboxerr.MIMEDecode, "", err)
	}

	meta := mail.AttachmentMeta{
		Filename:      filename,
		ContentType:   mediaType,
		Size:          uint64(len(data)),
		Encoding:      entity.Header.Get("Content-Transfer-Encoding"),
		ContentID:     strings.Trim(entity.Header.Get("Content-Id"), "<>"),
		IsInline:      disposition == "inline" || disposition == "",
		ContentOffset: 0,
		ContentLength: uint64(len(data)),
	}
	body.Attachments = append(body.Attachments, meta)

	return nil
}

// AttachmentPayload re-walks raw's MIME tree in the same order DecodeBody
// uses to build mail.Body.Attachments and returns the decoded bytes of the
// attachment at position idx. Used by the store package to fetch one
// attachment's content without keeping every attachment's payload resident
// in the decoded-body cache.
func AttachmentPayload(raw []byte, idx int) ([]byte, error) {
	raw = stripSeparatorLine(raw)

	entity, err := gomessage.Read(bytes.NewReader(raw))
	if err != nil && !gomessage.IsUnknownCharset(err) {
		return nil, mboxerr.New(mboxerr.MIMEDecode, "", err)
	}

	counter := 0
	var found []byte
	err = walkForAttachment(entity, idx, &counter, &found)
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, mboxerr.New(mboxerr.AttachmentNotFound, "", nil)
	}
	return found, nil
}

func walkForAttachment(entity *gomessage.Entity, target int, counter *int, found *[]byte) error {
	if entity == nil || *found != nil {
		return nil
	}

	mediaType, params, _ := entity.Header.ContentType()
	mediaType = strings.ToLower(mediaType)
	if mediaType == "" {
		mediaType = "text/plain"
	}

	if mr := entity.MultipartReader(); mr != nil {
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				break
			}
			if err := walkForAttachment(part, target, counter, found); err != nil {
				return err
			}
			if *found != nil {
				return nil
			}
		}
		return nil
	}

	disposition, dispParams, _ := entity.Header.ContentDisposition()
	disposition = strings.ToLower(disposition)
	filename := dispParams["filename"]
	if filename == "" {
		filename = params["name"]
	}
	isAttachment := disposition == "attachment" || (filename != "" && !strings.HasPrefix(mediaType, "text/"))
	if !isAttachment && (strings.HasPrefix(mediaType, "text/plain") || strings.HasPrefix(mediaType, "text/html")) {
		return nil
	}

	if *counter == target {
		data, err := io.ReadAll(entity.Body)
		if err != nil {
			return mboxerr.New(mboxerr.MIMEDecode, "", err)
		}
		*found = data
	}
	*counter++
	return nil
}

// stripSeparatorLine removes the leading mbox "From …" envelope line (and
// any BOM before it) from a message's raw bytes, if present, so it never
// leaks into RawHeaders or gets mis-parsed as a MIME header field. Every
// raw span this function receives from the store package carries one.
func stripSeparatorLine(raw []byte) []byte {
	trimmed := stripBOM(raw)
	nl := bytes.IndexByte(trimmed, '\n')
	if nl < 0 {
		return raw
	}
	if isSeparator(trimmed[:nl+1]) {
		return trimmed[nl+1:]
	}
	return raw
}

// htmlToText renders sanitized HTML as plain text: block-level elements
// (p, div, br, li, tr, h1-h6) force a line break, everything else is
// concatenated text with entities unescaped and whitespace collapsed.
func htmlToText(h string) string {
	tok := html.NewTokenizer(strings.NewReader(h))
	var out strings.Builder
	var lastWasSpace = true

	writeBreak := func() {
		s := out.String()
		if len(s) > 0 && !strings.HasSuffix(s, "\n") {
			out.WriteByte('\n')
			lastWasSpace = true
		}
	}

	for {
		tt := tok.Next()
		switch tt {
		case html.ErrorToken:
			return strings.TrimSpace(out.String())

		case html.TextToken:
			text := string(tok.Text())
			for _, r := range text {
				if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
					if !lastWasSpace {
						out.WriteByte(' ')
						lastWasSpace = true
					}
					continue
				}
				out.WriteRune(r)
				lastWasSpace = false
			}

		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			name, _ := tok.TagName()
			switch atom.Lookup(name) {
			case atom.P, atom.Div, atom.Br, atom.Li, atom.Tr, atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6, atom.Blockquote:
				writeBreak()
			}
		}
	}
}
