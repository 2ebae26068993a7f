// Package xmlite decodes the restricted XML subset emitted by
// S3-compatible providers.
//
// The decoder handles exactly what provider response bodies contain:
// nested elements, repeated sibling elements, one-letter namespace
// prefixes, the five standard character entities, and quote-wrapped ETag
// values. Attributes (the xmlns providers put on result roots included)
// are discarded, never interpreted. Comments, CDATA sections, and
// general processing instructions are out of scope; callers must not
// feed it arbitrary XML. A leading XML declaration is tolerated and
// skipped.
package xmlite

import "strings"

// Decoder turns provider XML text into nested maps, sequences, and leaf
// strings. It is stateless apart from its always-sequence key set and is
// safe for concurrent use.
type Decoder struct {
	always map[string]struct{}
}

// NewDecoder creates a Decoder. Elements whose effective key appears in
// alwaysSequence decode to a sequence even when they occur once, so
// consumers see a stable shape regardless of cardinality.
func NewDecoder(alwaysSequence ...string) *Decoder {
	d := &Decoder{always: make(map[string]struct{}, len(alwaysSequence))}
	for _, k := range alwaysSequence {
		d.always[k] = struct{}{}
	}
	return d
}

// Decode parses doc and returns one of:
//   - map[string]any for an element with child elements
//   - []any for repeated siblings (or always-sequence keys)
//   - string for a leaf element
//
// Repeated siblings sharing a key accumulate: scalar first, promoted to a
// two-element sequence on the second occurrence, appended thereafter.
func (d *Decoder) Decode(doc string) any {
	return d.parse(doc)
}

func (d *Decoder) parse(s string) any {
	var fields map[string]any

	pos := 0
	for {
		name, inner, selfClosed, next, ok := nextElement(s, pos)
		if !ok {
			break
		}
		pos = next

		var value any
		if selfClosed {
			value = ""
		} else {
			value = d.parse(inner)
		}

		key := foldName(name)
		if fields == nil {
			fields = make(map[string]any)
		}
		if prev, exists := fields[key]; exists {
			if seq, isSeq := prev.([]any); isSeq {
				fields[key] = append(seq, value)
			} else {
				fields[key] = []any{prev, value}
			}
		} else {
			fields[key] = value
		}
	}

	// No recognized children: the node is a leaf string.
	if fields == nil {
		return unquote(unescape(s))
	}

	for key := range d.always {
		if v, ok := fields[key]; ok {
			if _, isSeq := v.([]any); !isSeq {
				fields[key] = []any{v}
			}
		}
	}
	return fields
}

// nextElement scans s from pos for the next complete element. It returns
// the tag name, the raw inner text (empty for self-closing elements), and
// the offset just past the element. ok is false when no further complete
// element exists.
func nextElement(s string, pos int) (name, inner string, selfClosed bool, next int, ok bool) {
	for pos < len(s) {
		lt := strings.IndexByte(s[pos:], '<')
		if lt < 0 {
			return "", "", false, 0, false
		}
		lt += pos

		// Skip the XML declaration and any stray close tag.
		if lt+1 < len(s) && s[lt+1] == '?' {
			end := strings.Index(s[lt:], "?>")
			if end < 0 {
				return "", "", false, 0, false
			}
			pos = lt + end + 2
			continue
		}
		if lt+1 < len(s) && s[lt+1] == '/' {
			gt := strings.IndexByte(s[lt:], '>')
			if gt < 0 {
				return "", "", false, 0, false
			}
			pos = lt + gt + 1
			continue
		}

		gt := strings.IndexByte(s[lt:], '>')
		if gt < 0 {
			return "", "", false, 0, false
		}
		gt += lt

		tag := s[lt+1 : gt]
		if strings.HasSuffix(tag, "/") {
			return elementName(strings.TrimSuffix(tag, "/")), "", true, gt + 1, true
		}

		// Attributes (the xmlns on provider result roots) are discarded:
		// only the bare element name participates in matching.
		name = elementName(tag)
		closeTag := "</" + name + ">"
		bodyStart := gt + 1

		// Find the matching close, accounting for same-name nesting.
		depth := 1
		search := bodyStart
		for {
			ci := strings.Index(s[search:], closeTag)
			if ci < 0 {
				// Unterminated element: nothing further to recognize.
				return "", "", false, 0, false
			}
			ci += search
			depth += countOpenTags(s[search:ci], name)
			depth--
			if depth == 0 {
				return name, s[bodyStart:ci], false, ci + len(closeTag), true
			}
			search = ci + len(closeTag)
		}
	}
	return "", "", false, 0, false
}

// elementName extracts the bare element name from raw tag text, cutting
// at the first whitespace so attribute text never reaches matching.
func elementName(tag string) string {
	if i := strings.IndexAny(tag, " \t\r\n"); i >= 0 {
		return tag[:i]
	}
	return tag
}

// countOpenTags counts openings of name inside s so same-name nesting
// balances against close tags. Self-closing forms open nothing and are
// skipped.
func countOpenTags(s, name string) int {
	needle := "<" + name
	n := 0
	for i := 0; ; {
		j := strings.Index(s[i:], needle)
		if j < 0 {
			return n
		}
		j += i + len(needle)
		if j >= len(s) {
			return n
		}
		switch s[j] {
		case '>':
			n++
		case ' ', '\t', '\r', '\n':
			if gt := strings.IndexByte(s[j:], '>'); gt >= 0 && s[j+gt-1] != '/' {
				n++
			}
		}
		i = j
	}
}

// foldName collapses a one-letter namespace prefix (lower-cased) onto the
// remaining tag name: "w:Key" becomes "wKey". Unprefixed names pass
// through unchanged.
func foldName(name string) string {
	if len(name) >= 2 && name[1] == ':' {
		return strings.ToLower(name[:1]) + name[2:]
	}
	return name
}

var entityReplacer = strings.NewReplacer(
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&apos;", "'",
	"&amp;", "&",
)

func unescape(s string) string {
	if !strings.Contains(s, "&") {
		return s
	}
	return entityReplacer.Replace(s)
}

// unquote strips a single layer of surrounding double quotes; providers
// wrap ETag values this way.
func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
