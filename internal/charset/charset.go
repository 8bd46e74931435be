// Package charset resolves MIME/header charset names to Go encodings and
// decodes RFC 2047 encoded words, the two low-level text concerns the
// header decoder and MIME walker both need.
package charset

import (
	"bytes"
	"encoding/base64"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
)

// Decode converts raw bytes in the named charset to UTF-8. Unknown or
// empty charset names fall back to UTF-8 (the common case for
// charset-less headers and bodies), with byte sequences that are not valid
// UTF-8 replaced by U+FFFD. Decoding errors never propagate: bytes
// that the target encoding cannot represent are replaced, matching the
// "literal survives on failure" rule used throughout this package.
func Decode(raw []byte, name string) string {
	enc := lookup(name)
	if enc == nil {
		enc = unicode.UTF8
	}
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil || out == nil {
		return string(raw)
	}
	return string(out)
}

// lookup resolves a MIME/IANA charset label to a Go encoding.Encoding.
// htmlindex.Get covers the WHATWG Encoding Standard's aliases (which in
// turn covers virtually every charset label seen in real-world mail);
// a few historical names it misses are special-cased here.
func lookup(name string) encoding.Encoding {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || name == "us-ascii" || name == "ascii" || name == "utf-8" || name == "utf8" {
		return nil
	}

	switch name {
	case "utf-16", "utf16":
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM)
	case "utf-16le":
		return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
	case "utf-16be":
		return unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)
	case "windows-1252", "cp1252", "ansi_x3.4-1968":
		return charmap.Windows1252
	}

	if enc, err := htmlindex.Get(name); err == nil {
		return enc
	}
	return nil
}

// DecodeWords decodes RFC 2047 encoded words ("=?charset?B?...?=" or
// "=?charset?Q?...?=") found anywhere in s, leaving any surrounding plain
// text untouched. Adjacent encoded words separated only by folding
// whitespace are joined with no space, matching RFC 2047 §6.2. A word that
// fails to decode is left in the output exactly as written.
func DecodeWords(s string) string {
	if !strings.Contains(s, "=?") {
		return s
	}

	var out strings.Builder
	i := 0
	lastWasEncoded := false

	for i < len(s) {
		start := strings.Index(s[i:], "=?")
		if start < 0 {
			out.WriteString(s[i:])
			break
		}
		start += i

		// Between the previous position and this "=?", check whether the
		// gap is pure folding whitespace and the previous token was an
		// encoded word; if so, swallow the gap per §6.2.
		gap := s[i:start]
		if lastWasEncoded && isAllWhitespace(gap) {
			// swallow
		} else {
			out.WriteString(gap)
		}

		word, consumed, ok := decodeOneWord(s[start:])
		if !ok {
			out.WriteString(s[start : start+2])
			i = start + 2
			lastWasEncoded = false
			continue
		}

		out.WriteString(word)
		i = start + consumed
		lastWasEncoded = true
	}

	return out.String()
}

func isAllWhitespace(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\r' && r != '\n' {
			return false
		}
	}
	return true
}

// decodeOneWord decodes a single "=?charset?enc?text?=" token at the start
// of s. It returns the decoded text, how many bytes of s it consumed, and
// whether decoding succeeded.
func decodeOneWord(s string) (decoded string, consumed int, ok bool) {
	if !strings.HasPrefix(s, "=?") {
		return "", 0, false
	}

	rest := s[2:]
	p1 := strings.IndexByte(rest, '?')
	if p1 < 0 {
		return "", 0, false
	}
	charsetName := rest[:p1]
	rest = rest[p1+1:]

	if len(rest) < 2 || rest[1] != '?' {
		return "", 0, false
	}
	encLetter := rest[0]
	rest = rest[2:]

	end := strings.Index(rest, "?=")
	if end < 0 {
		return "", 0, false
	}
	encodedText := rest[:end]

	var raw []byte
	var err error
	switch encLetter {
	case 'B', 'b':
		raw, err = base64.StdEncoding.DecodeString(encodedText)
	case 'Q', 'q':
		raw, err = decodeQEncoding(encodedText)
	default:
		return "", 0, false
	}
	if err != nil {
		return "", 0, false
	}

	total := len("=?") + len(charsetName) + 1 + 1 + 1 + end + len("?=")
	return Decode(raw, charsetName), total, true
}

// decodeQEncoding decodes RFC 2047 "Q" encoding: like quoted-printable but
// with '_' standing in for a literal space.
func decodeQEncoding(s string) ([]byte, error) {
	var buf bytes.Buffer
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '_':
			buf.WriteByte(' ')
		case '=':
			if i+2 >= len(s) {
				buf.WriteByte('=')
				continue
			}
			hi, okHi := hexVal(s[i+1])
			lo, okLo := hexVal(s[i+2])
			if !okHi || !okLo {
				buf.WriteByte('=')
				continue
			}
			buf.WriteByte(byte(hi<<4 | lo))
			i += 2
		default:
			buf.WriteByte(s[i])
		}
	}
	return buf.Bytes(), nil
}

func hexVal(b byte) (int, bool) {
	switch {
	case b >= '0' && b <= '9':
		return int(b - '0'), true
	case b >= 'A' && b <= 'F':
		return int(b-'A') + 10, true
	case b >= 'a' && b <= 'f':
		return int(b-'a') + 10, true
	default:
		return 0, false
	}
}
