package parser

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/dcarrero/mboxshell-go/internal/charset"
	"github.com/dcarrero/mboxshell-go/internal/logging"
	"github.com/dcarrero/mboxshell-go/mail"
)

// field is one unfolded "Name: value" pair in file order.
type field struct {
	name  string // original case
	lower string // lowercased, for lookups
	value string
}

// Header is a parsed, unfolded header block. Lookups are case-insensitive
// and return the first matching occurrence unless GetAll is used.
type Header struct {
	fields []field
}

// ParseHeaderBlock decodes a raw header block (as produced by
// Parser.ScanHeaders or the header portion of a ScanFull message) into a
// Header. It strips a leading UTF-8 BOM, decodes the block as UTF-8 with a
// Windows-1252 fallback for any byte sequence that isn't valid UTF-8, and
// unfolds continuation lines (leading whitespace) per RFC 5322 §2.2.3.
func ParseHeaderBlock(raw []byte) *Header {
	raw = stripBOM(raw)

	var text string
	if utf8.Valid(raw) {
		text = string(raw)
	} else {
		text = charset.Decode(raw, "windows-1252")
	}

	lines := splitLines(text)

	var fields []field
	var cur *field

	for _, line := range lines {
		if line == "" {
			continue
		}
		if (line[0] == ' ' || line[0] == '\t') && cur != nil {
			cur.value += " " + strings.TrimSpace(line)
			continue
		}

		// Skip the mbox "From " separator line if present as the first line.
		if isSeparator([]byte(line)) {
			continue
		}

		colon := strings.IndexByte(line, ':')
		if colon < 0 {
			// Malformed continuation without a preceding header; fold into
			// the previous value if any, otherwise ignore.
			if cur != nil {
				cur.value += " " + strings.TrimSpace(line)
			}
			continue
		}

		name := strings.TrimSpace(line[:colon])
		value := strings.TrimSpace(line[colon+1:])
		fields = append(fields, field{name: name, lower: strings.ToLower(name), value: value})
		cur = &fields[len(fields)-1]
	}

	return &Header{fields: fields}
}

func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.Split(s, "\n")
}

// Get returns the raw (not RFC 2047 decoded) value of the first occurrence
// of name, case-insensitive.
func (h *Header) Get(name string) (string, bool) {
	name = strings.ToLower(name)
	for _, f := range h.fields {
		if f.lower == name {
			return f.value, true
		}
	}
	return "", false
}

// GetAll returns the raw values of every occurrence of name, in file order.
func (h *Header) GetAll(name string) []string {
	name = strings.ToLower(name)
	var out []string
	for _, f := range h.fields {
		if f.lower == name {
			out = append(out, f.value)
		}
	}
	return out
}

// GetDecoded returns the first occurrence of name with RFC 2047 encoded
// words decoded to UTF-8. Missing headers yield "".
func (h *Header) GetDecoded(name string) string {
	v, ok := h.Get(name)
	if !ok {
		return ""
	}
	return charset.DecodeWords(v)
}

// BuildRecord turns a parsed Header plus its archive position into a
// mail.Record. It never returns an error: headers that are missing or
// malformed simply yield zero-valued fields, logged at debug level.
func BuildRecord(h *Header, offset, length, sequence uint64) mail.Record {
	log := logging.WithComponent("parser")

	rec := mail.Record{
		Offset:   offset,
		Length:   length,
		Sequence: sequence,
	}

	rec.Date = ParseDate(h.getFirst("date"))

	if from, ok := h.Get("from"); ok {
		addrs := parseAddressList(charset.DecodeWords(from))
		if len(addrs) > 0 {
			rec.From = addrs[0]
		}
	}

	rec.To = capAddresses(parseAddressList(charset.DecodeWords(h.getFirst("to"))))
	rec.Cc = capAddresses(parseAddressList(charset.DecodeWords(h.getFirst("cc"))))

	rec.Subject = charset.DecodeWords(h.getFirst("subject"))

	rec.MessageID = firstAngleToken(h.getFirst("message-id"))
	rec.InReplyTo = firstAngleToken(h.getFirst("in-reply-to"))
	rec.References = angleTokens(h.getFirst("references"))

	ct, _ := h.Get("content-type")
	rec.ContentType = topLevelMediaType(ct)

	rec.HasAttachments = detectAttachments(h, ct)

	rec.Labels = parseLabels(h.getFirst("x-gmail-labels"))

	if rec.MessageID == "" {
		log.Debug().Uint64("offset", offset).Msg("message has no Message-ID")
	}

	return rec
}

func (h *Header) getFirst(name string) string {
	v, _ := h.Get(name)
	return v
}

func capAddresses(addrs []mail.Address) []mail.Address {
	if len(addrs) > mail.MaxAddressListLen {
		return addrs[:mail.MaxAddressListLen]
	}
	return addrs
}

// parseAddressList splits an address-list header value on commas that are
// not inside a quoted display name or an angle-bracket address, then
// parses each piece.
func parseAddressList(s string) []mail.Address {
	if strings.TrimSpace(s) == "" {
		return nil
	}

	var out []mail.Address
	for _, part := range splitAddressList(s) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, parseAddress(part))
	}
	return out
}

func splitAddressList(s string) []string {
	var parts []string
	var cur strings.Builder
	inQuotes := false
	depth := 0

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"' && (i == 0 || s[i-1] != '\\'):
			inQuotes = !inQuotes
			cur.WriteByte(c)
		case c == '<' && !inQuotes:
			depth++
			cur.WriteByte(c)
		case c == '>' && !inQuotes:
			if depth > 0 {
				depth--
			}
			cur.WriteByte(c)
		case c == ',' && !inQuotes && depth == 0:
			parts = append(parts, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	if cur.Len() > 0 {
		parts = append(parts, cur.String())
	}
	return parts
}

// parseAddress parses one "Display Name <addr@host>" or bare "addr@host"
// mailbox. Malformed input degrades gracefully: whatever doesn't look like
// an address ends up as the display name with an empty Address.
func parseAddress(s string) mail.Address {
	s = strings.TrimSpace(s)

	open := strings.IndexByte(s, '<')
	close := strings.LastIndexByte(s, '>')
	if open >= 0 && close > open {
		display := strings.TrimSpace(s[:open])
		display = unquote(display)
		addr := strings.TrimSpace(s[open+1 : close])
		return mail.Address{DisplayName: display, Address: addr}
	}

	if strings.Contains(s, "@") {
		return mail.Address{Address: s}
	}
	return mail.Address{DisplayName: unquote(s)}
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return strings.ReplaceAll(s[1:len(s)-1], `\"`, `"`)
	}
	return s
}

// firstAngleToken extracts the first "<...>" token from s, including the
// brackets. Returns "" if none is present.
func firstAngleToken(s string) string {
	toks := angleTokens(s)
	if len(toks) == 0 {
		return ""
	}
	return toks[0]
}

// angleTokens extracts every "<...>" token from s, in order, each
// including its brackets.
func angleTokens(s string) []string {
	var out []string
	for {
		start := strings.IndexByte(s, '<')
		if start < 0 {
			break
		}
		end := strings.IndexByte(s[start:], '>')
		if end < 0 {
			break
		}
		out = append(out, s[start:start+end+1])
		s = s[start+end+1:]
	}
	return out
}

// topLevelMediaType extracts and lowercases the "type/subtype" portion of
// a Content-Type header, dropping any parameters. Returns "text/plain"
// (RFC 2045's default) when Content-Type is absent or unparseable.
func topLevelMediaType(ct string) string {
	ct = strings.TrimSpace(ct)
	if ct == "" {
		return "text/plain"
	}
	if semi := strings.IndexByte(ct, ';'); semi >= 0 {
		ct = ct[:semi]
	}
	ct = strings.ToLower(strings.TrimSpace(ct))
	if ct == "" || !strings.Contains(ct, "/") {
		return "text/plain"
	}
	return ct
}

// detectAttachments makes a cheap, header-only guess at whether a message
// carries attachments: a multipart/mixed or multipart/related top-level
// type, or a top-level Content-Disposition that begins with "attachment",
// is treated as a signal. The definitive answer comes from walking the MIME
// tree (see mime.go); this is only used to populate the index's fast
// has:attachment filter without paying for a full body decode.
func detectAttachments(h *Header, contentType string) bool {
	top := topLevelMediaType(contentType)
	if strings.HasPrefix(top, "multipart/mixed") || strings.HasPrefix(top, "multipart/related") {
		return true
	}
	if _, ok := h.Get("content-disposition"); ok {
		cd, _ := h.Get("content-disposition")
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(cd)), "attachment") {
			return true
		}
	}
	return false
}

// parseLabels parses an X-Gmail-Labels header, a comma-separated list.
func parseLabels(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ParseSizeSuffix parses strings like "10k", "5M", "1mb", "2GiB" used by the
// search package's size: filter. Bare k/m/g are decimal (1k = 1000);
// kb/mb/gb and kib/mib/gib are binary (1kb = 1kib = 1024). Kept here because
// it shares no code with charset/date concerns but search needs it;
// exported for that use.
func ParseSizeSuffix(s string) (int64, bool) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0, false
	}
	mult := int64(1)
	switch {
	case strings.HasSuffix(s, "kib"):
		mult = 1 << 10
		s = strings.TrimSuffix(s, "kib")
	case strings.HasSuffix(s, "mib"):
		mult = 1 << 20
		s = strings.TrimSuffix(s, "mib")
	case strings.HasSuffix(s, "gib"):
		mult = 1 << 30
		s = strings.TrimSuffix(s, "gib")
	case strings.HasSuffix(s, "kb"):
		mult = 1 << 10
		s = strings.TrimSuffix(s, "kb")
	case strings.HasSuffix(s, "mb"):
		mult = 1 << 20
		s = strings.TrimSuffix(s, "mb")
	case strings.HasSuffix(s, "gb"):
		mult = 1 << 30
		s = strings.TrimSuffix(s, "gb")
	case strings.HasSuffix(s, "k"):
		mult = 1000
		s = strings.TrimSuffix(s, "k")
	case strings.HasSuffix(s, "m"):
		mult = 1000 * 1000
		s = strings.TrimSuffix(s, "m")
	case strings.HasSuffix(s, "g"):
		mult = 1000 * 1000 * 1000
		s = strings.TrimSuffix(s, "g")
	case strings.HasSuffix(s, "b"):
		s = strings.TrimSuffix(s, "b")
	}
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, false
	}
	return n * mult, true
}
