package parser

import (
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/dcarrero/mboxshell-go/internal/logging"
)

// explicitLayouts covers Date header variants seen in the wild that
// net/mail.ParseDate and time.RFC3339 both reject outright: missing
// seconds, IMAP-style quoting, and a handful of non-conformant MUAs.
var explicitLayouts = []string{
	"Mon, 2 Jan 2006 15:04 -0700",
	"2 Jan 2006 15:04:05 -0700",
	"2 Jan 2006 15:04 -0700",
	"Mon Jan 2 15:04:05 2006",
	"02-Jan-2006 15:04:05 -0700",
	"02-Jan-2006 15:04:05",
	"Jan 2 15:04:05 2006",
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05",
	"02/01/2006 15:04:05",
	"01/02/2006 15:04:05",
	"Mon, 2 Jan 2006 15:04:05 MST",
}

// namedZoneRewrite maps trailing named-timezone abbreviations to a numeric
// offset. Go's time package resolves only UTC and GMT by itself and parses
// any other abbreviation with a zero offset, so the rewrite is applied
// before any parse attempt.
var namedZoneRewrite = map[string]string{
	"EST": "-0500", "EDT": "-0400",
	"CST": "-0600", "CDT": "-0500",
	"MST": "-0700", "MDT": "-0600",
	"PST": "-0800", "PDT": "-0700",
	"CET": "+0100", "CEST": "+0200",
	"JST": "+0900",
}

var namedZoneSuffix = regexp.MustCompile(`\s+([A-Z]{2,4})$`)

// ParseDate decodes a Date header value through a fallback chain, in order
// of how well-formed the input needs to be. A trailing named-timezone
// abbreviation (EST/PDT/CET/...) is first rewritten to its numeric offset;
// then:
//
//  1. net/mail.ParseDate — the RFC 5322 grammar, handles the vast majority
//     of real mail.
//  2. time.RFC3339 — some exporters rewrite dates before archiving.
//  3. A small table of explicit layouts covering common non-conformant
//     variants (missing seconds, IMAP-style dates, ctime-style, numeric
//     dates).
//  4. dateparse.ParseAny as a fuzzy last resort.
//
// A value that survives none of these yields the Unix epoch in UTC; Record
// never carries a zero time.Time.
func ParseDate(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Unix(0, 0).UTC()
	}

	if m := namedZoneSuffix.FindStringSubmatch(raw); m != nil {
		if offset, ok := namedZoneRewrite[m[1]]; ok {
			raw = namedZoneSuffix.ReplaceAllString(raw, " "+offset)
		}
	}

	if t, err := mail.ParseDate(raw); err == nil {
		return t.UTC()
	}

	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC()
	}

	for _, layout := range explicitLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}

	if t, err := dateparse.ParseAny(raw); err == nil {
		return t.UTC()
	}

	logging.WithComponent("parser").Debug().Str("raw", raw).Msg("unparseable date, using epoch")
	return time.Unix(0, 0).UTC()
}
