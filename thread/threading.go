// Package thread groups a flat slice of mail.Record into conversation
// trees using the Jamie Zawinski threading algorithm: link messages by
// Message-ID/References/In-Reply-To into containers, promote or merge
// containers that never had a message of their own, and fall back to
// subject grouping for messages that reference nothing at all.
package thread

import (
	"sort"
	"strings"
	"time"

	"github.com/dcarrero/mboxshell-go/mail"
)

// maxReferenceHops bounds how many References entries are honored per
// message and how far an ancestor-cycle check walks, so a pathological or
// forged References header can't make linking run unbounded.
const maxReferenceHops = 100

// container is JWZ's unit: a slot for one Message-ID, which may or may not
// have ever been seen as an actual message (a purely-referenced ancestor
// that never appeared in the archive has rec == nil).
type container struct {
	id       string
	rec      *mail.Record
	parent   *container
	children []*container
}

// Message is one node of a built Thread: always backed by a real
// mail.Record. Ghost containers (referenced but never seen) are never
// exposed; see promoteGhosts.
type Message struct {
	Record   mail.Record
	Children []*Message
}

// Thread is one top-level conversation.
type Thread struct {
	Root   *Message
	Latest time.Time
}

// Build threads records into a slice of Thread, ordered newest-first by
// each thread's most recent message date.
func Build(records []mail.Record) []Thread {
	byID := make(map[string]*container)
	var noIDContainers []*container

	getOrCreate := func(id string) *container {
		if id == "" {
			return nil
		}
		c, ok := byID[id]
		if !ok {
			c = &container{id: id}
			byID[id] = c
		}
		return c
	}

	for i := range records {
		rec := &records[i]

		var self *container
		if rec.MessageID != "" {
			self = getOrCreate(rec.MessageID)
		} else {
			self = &container{}
			noIDContainers = append(noIDContainers, self)
		}
		self.rec = rec

		chain := buildChain(rec)
		var prev *container
		for _, refID := range chain {
			cur := getOrCreate(refID)
			if cur == nil {
				continue
			}
			linkIfSafe(prev, cur)
			prev = cur
		}
		linkIfSafe(prev, self)
	}

	roots := collectRoots(byID, noIDContainers)
	roots = promoteGhosts(roots)
	roots = groupBySubject(roots)

	threads := make([]Thread, 0, len(roots))
	for _, r := range roots {
		msg := toMessage(r)
		if msg == nil {
			continue
		}
		threads = append(threads, Thread{Root: msg, Latest: latestDate(msg)})
	}

	sort.SliceStable(threads, func(i, j int) bool {
		return threads[i].Latest.After(threads[j].Latest)
	})

	return threads
}

// buildChain returns the ordered ancestor chain for rec: References in
// header order, then In-Reply-To if it isn't already the last entry,
// capped to maxReferenceHops (keeping the hops closest to rec, since those
// are the most reliable ancestors when a header was truncated).
func buildChain(rec *mail.Record) []string {
	chain := append([]string(nil), rec.References...)
	if rec.InReplyTo != "" && (len(chain) == 0 || chain[len(chain)-1] != rec.InReplyTo) {
		chain = append(chain, rec.InReplyTo)
	}
	if len(chain) > maxReferenceHops {
		chain = chain[len(chain)-maxReferenceHops:]
	}
	return chain
}

// linkIfSafe makes child a child of parent, unless child already has a
// parent (first link wins) or doing so would create a cycle.
func linkIfSafe(parent, child *container) {
	if parent == nil || child == nil || parent == child {
		return
	}
	if child.parent != nil {
		return
	}
	if isAncestor(child, parent) {
		return
	}
	child.parent = parent
	parent.children = append(parent.children, child)
}

// isAncestor reports whether a appears somewhere in b's parent chain.
func isAncestor(a, b *container) bool {
	cur := b.parent
	hops := 0
	for cur != nil && hops < maxReferenceHops {
		if cur == a {
			return true
		}
		cur = cur.parent
		hops++
	}
	return false
}

func collectRoots(byID map[string]*container, noID []*container) []*container {
	var roots []*container
	for _, c := range byID {
		if c.parent == nil {
			roots = append(roots, c)
		}
	}
	for _, c := range noID {
		if c.parent == nil {
			roots = append(roots, c)
		}
	}
	return roots
}

// promoteGhosts drops root containers that never had a message of their
// own: a ghost with exactly one child is replaced by that child; a ghost
// with multiple children exposes each child as its own root, since there
// is no real message to hang them off of.
func promoteGhosts(roots []*container) []*container {
	var out []*container
	for _, r := range roots {
		if r.rec != nil {
			out = append(out, r)
			continue
		}
		out = append(out, promoteGhosts(r.children)...)
	}
	return out
}

// groupBySubject merges root-level containers that share a normalized
// subject but never referenced one another (broken or stripped References
// headers). The earliest-dated root with a given subject absorbs the
// rest.
func groupBySubject(roots []*container) []*container {
	sort.SliceStable(roots, func(i, j int) bool {
		return recordDate(roots[i]).Before(recordDate(roots[j]))
	})

	bySubject := make(map[string]*container)
	var out []*container

	for _, r := range roots {
		subj := normalizeSubject(subjectOf(r))
		if subj == "" {
			out = append(out, r)
			continue
		}
		if existing, ok := bySubject[subj]; ok && existing != r {
			existing.children = append(existing.children, r)
			r.parent = existing
			continue
		}
		bySubject[subj] = r
		out = append(out, r)
	}

	return out
}

func subjectOf(c *container) string {
	if c.rec != nil {
		return c.rec.Subject
	}
	return ""
}

func recordDate(c *container) time.Time {
	if c.rec != nil {
		return c.rec.Date
	}
	return time.Unix(0, 0).UTC()
}

// normalizeSubject strips leading Re:/Fwd:/Fw: prefixes (repeated, any
// case) and surrounding whitespace so replies group with their origin.
func normalizeSubject(s string) string {
	for {
		trimmed := strings.TrimSpace(s)
		lower := strings.ToLower(trimmed)
		switch {
		case strings.HasPrefix(lower, "re:"):
			s = trimmed[3:]
		case strings.HasPrefix(lower, "fwd:"):
			s = trimmed[4:]
		case strings.HasPrefix(lower, "fw:"):
			s = trimmed[3:]
		default:
			return trimmed
		}
	}
}

// toMessage converts a container tree into a Message tree, dropping any
// ghost descendants (should be none after promoteGhosts, but nested
// ghosts under a real message are pruned defensively) and sorting each
// level's children oldest-first.
func toMessage(c *container) *Message {
	if c.rec == nil {
		return nil
	}

	msg := &Message{Record: *c.rec}

	children := make([]*container, 0, len(c.children))
	for _, ch := range c.children {
		if ch.rec != nil {
			children = append(children, ch)
		} else {
			children = append(children, ch.children...)
		}
	}
	sort.SliceStable(children, func(i, j int) bool {
		return recordDate(children[i]).Before(recordDate(children[j]))
	})

	for _, ch := range children {
		if cm := toMessage(ch); cm != nil {
			msg.Children = append(msg.Children, cm)
		}
	}

	return msg
}

func latestDate(m *Message) time.Time {
	latest := m.Record.Date
	for _, ch := range m.Children {
		if d := latestDate(ch); d.After(latest) {
			latest = d
		}
	}
	return latest
}

// FlatEntry is one row of a Thread rendered for display: a record and its
// nesting depth (0 = thread root).
type FlatEntry struct {
	Record mail.Record
	Depth  int
}

// Flatten walks t in pre-order (parent before children, children in date
// order), producing the row list a list UI would render directly.
func Flatten(t Thread) []FlatEntry {
	var out []FlatEntry
	var walk func(m *Message, depth int)
	walk = func(m *Message, depth int) {
		out = append(out, FlatEntry{Record: m.Record, Depth: depth})
		for _, ch := range m.Children {
			walk(ch, depth+1)
		}
	}
	if t.Root != nil {
		walk(t.Root, 0)
	}
	return out
}
