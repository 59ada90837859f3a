package container

import (
	"fmt"
	"strconv"
	"strings"

	ferrors "github.com/Ap3pp3rs94/msgfabric/pkg/errors"
)

// DefaultMessageType is used whenever a Container is built without an
// explicit message type (spec.md §3.2/§4.2).
const DefaultMessageType = "data_container"

// DefaultVersion is the header's version field when none is given.
const DefaultVersion = "1.0"

// Container is the routing envelope around a forest of Values
// (spec.md §3.2/§4.2): six header fields (target/source ids and
// sub-ids, message type, version) plus an ordered list of root
// Values. The wire form is two bracketed blocks:
//
//	@header={[1,target_id];[2,target_sub_id];[3,source_id];[4,source_sub_id];[5,message_type];[6,version];};@data={[name,type,value];...};
//
// The four routing keys (1-4) are only emitted when message_type is
// not DefaultMessageType — a plain data container's header is just
// `[5,data_container];[6,<version>];`.
//
// Grounded on original_source/cpp_libraries/container/container.cpp:
// the body is parsed lazily. A freshly received Container keeps the
// raw body text until something forces materialization (Body, Get,
// Add, Remove), mirroring the original's parsed_body flag.
type Container struct {
	targetID    string
	targetSubID string
	sourceID    string
	sourceSubID string
	messageType string
	version     string

	bodyRaw    string
	bodyParsed *Value
	parsed     bool
}

// New creates an empty container with the given message type (falls
// back to DefaultMessageType when empty) and no source/target.
func New(messageType string) *Container {
	if messageType == "" {
		messageType = DefaultMessageType
	}
	return &Container{
		messageType: messageType,
		version:     DefaultVersion,
		bodyParsed:  NewContainerValue("data", nil),
		parsed:      true,
	}
}

func (c *Container) MessageType() string { return c.messageType }
func (c *Container) SetMessageType(mt string) {
	if mt == "" {
		mt = DefaultMessageType
	}
	c.messageType = mt
}

func (c *Container) Version() string     { return c.version }
func (c *Container) SetVersion(v string) { c.version = v }

// Source returns the source id and sub-id.
func (c *Container) Source() (id, subID string) { return c.sourceID, c.sourceSubID }

// SetSource sets the source id and sub-id.
func (c *Container) SetSource(id, subID string) {
	c.sourceID, c.sourceSubID = id, subID
}

// Target returns the target id and sub-id.
func (c *Container) Target() (id, subID string) { return c.targetID, c.targetSubID }

// SetTarget sets the target id and sub-id.
func (c *Container) SetTarget(id, subID string) {
	c.targetID, c.targetSubID = id, subID
}

// SwapHeader exchanges source and target (both id and sub-id), as
// original_source/cpp_libraries/container/container.cpp's swap_header
// does when turning a received container into its own reply envelope.
func (c *Container) SwapHeader() {
	c.sourceID, c.targetID = c.targetID, c.sourceID
	c.sourceSubID, c.targetSubID = c.targetSubID, c.sourceSubID
}

// ensureParsed materializes bodyParsed from bodyRaw the first time the
// body is actually touched.
func (c *Container) ensureParsed() error {
	if c.parsed {
		return nil
	}
	root, err := parseBlock(c.bodyRaw, "data")
	if err != nil {
		return err
	}
	c.bodyParsed = root
	c.parsed = true
	return nil
}

// Body returns the body root value, parsing the raw text on first use.
// A parse failure yields an empty container body rather than a panic
// — callers that care about malformed input should call EnsureParsed.
func (c *Container) Body() *Value {
	if err := c.ensureParsed(); err != nil {
		c.bodyParsed = NewContainerValue("data", nil)
		c.parsed = true
	}
	return c.bodyParsed
}

// EnsureParsed forces lazy body materialization and surfaces a parse
// error instead of silently producing an empty body.
func (c *Container) EnsureParsed() error {
	return c.ensureParsed()
}

// Add appends a root value unless that exact Value is already present
// in the list (spec.md §4.2: "append to root list unless the shared
// pointer is already present").
func (c *Container) Add(v *Value) {
	body := c.Body()
	for _, existing := range body.children {
		if existing == v {
			return
		}
	}
	body.AddChild(v)
	body.payload = encodeI64(int64(len(body.children)))
}

// Remove deletes every root value named name, returning how many were
// removed (spec.md §4.2: "remove every root value whose name equals
// the argument").
func (c *Container) Remove(name string) int {
	body := c.Body()
	kept := body.children[:0]
	removed := 0
	for _, ch := range body.children {
		if ch.name == name {
			removed++
			continue
		}
		kept = append(kept, ch)
	}
	body.children = kept
	body.payload = encodeI64(int64(len(body.children)))
	return removed
}

// Get returns the index-th root value named name (0-based), or a
// freshly constructed null value with that name if none exists —
// never absent (spec.md §4.2).
func (c *Container) Get(name string, index int) *Value {
	matches := c.Body().ValueArray(name)
	if index < 0 || index >= len(matches) {
		return NewNull(name)
	}
	return matches[index]
}

// Copy duplicates the container by round-tripping it through
// serialize/deserialize (spec.md §4.2: "copy(with_body): round-trip
// through serialize/deserialize"). When withBody is false no round
// trip happens: the copy is built directly from the header fields and
// has an empty body.
func (c *Container) Copy(withBody bool) (*Container, error) {
	if !withBody {
		headerOnly := New(c.messageType)
		headerOnly.version = c.version
		headerOnly.sourceID, headerOnly.sourceSubID = c.sourceID, c.sourceSubID
		headerOnly.targetID, headerOnly.targetSubID = c.targetID, c.targetSubID
		return headerOnly, nil
	}
	return Parse(c.Serialize(false))
}

// headerEntries returns the ordered (key, value) pairs this header
// serializes to.
func (c *Container) headerEntries() [][2]string {
	mt := c.messageType
	if mt == "" {
		mt = DefaultMessageType
	}
	var entries [][2]string
	if mt != DefaultMessageType {
		entries = append(entries,
			[2]string{"1", c.targetID},
			[2]string{"2", c.targetSubID},
			[2]string{"3", c.sourceID},
			[2]string{"4", c.sourceSubID},
		)
	}
	entries = append(entries, [2]string{"5", mt}, [2]string{"6", c.version})
	return entries
}

// Serialize renders the full `@header={...};@data={...};` wire body.
// If the body was never parsed (a container received but not yet
// touched), the original raw text is emitted verbatim instead of
// being re-derived, preserving byte-for-byte passthrough for bridged
// traffic (spec.md §12.3, "bridge_line").
func (c *Container) Serialize(pretty bool) string {
	var b strings.Builder
	indent := ""
	newline := ""
	if pretty {
		indent = "\t"
		newline = "\n"
	}

	b.WriteString("@header={")
	b.WriteString(newline)
	for _, e := range c.headerEntries() {
		fmt.Fprintf(&b, "%s[%s,%s];%s", indent, e[0], e[1], newline)
	}
	b.WriteString("};")
	b.WriteString(newline)

	b.WriteString("@data={")
	b.WriteString(newline)
	if c.parsed {
		for _, ch := range c.bodyParsed.children {
			b.WriteString(ch.Serialize(pretty, 1))
		}
	} else {
		b.WriteString(c.bodyRaw)
	}
	b.WriteString("};")
	return b.String()
}

// Parse decodes a `@header={...};@data={...};` wire body into a
// Container. The body block is kept as raw text and parsed lazily on
// first access (EnsureParsed), matching the original's deferred-parse
// discipline.
func Parse(text string) (*Container, error) {
	headerText, dataText, err := splitBlocks(text)
	if err != nil {
		return nil, err
	}
	fields, err := parseHeaderBlock(headerText)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.ParseNoHeader, "container header parse failed", err)
	}

	c := &Container{
		targetID:    fields[1],
		targetSubID: fields[2],
		sourceID:    fields[3],
		sourceSubID: fields[4],
		messageType: fields[5],
		version:     fields[6],
		bodyRaw:     dataText,
		parsed:      false,
	}
	if c.messageType == "" {
		c.messageType = DefaultMessageType
	}
	if c.version == "" {
		c.version = DefaultVersion
	}
	return c, nil
}

// splitBlocks locates the @header={...}; and @data={...}; blocks by
// bracket-depth scanning rather than regex, per spec.md §9's open
// question (a regex non-greedy scan can mis-parse a body containing
// `];` inside a string payload).
func splitBlocks(text string) (header string, data string, err error) {
	h, rest, err := extractBlock(text, "@header={")
	if err != nil {
		return "", "", err
	}
	d, _, err := extractBlock(rest, "@data={")
	if err != nil {
		// header-only container: no @data block present (spec.md §4.2)
		return h, "", nil
	}
	return h, d, nil
}

func extractBlock(text, marker string) (content string, rest string, err error) {
	idx := strings.Index(text, marker)
	if idx < 0 {
		return "", "", ferrors.New(ferrors.ParseNoHeader, fmt.Sprintf("missing %s block", marker))
	}
	start := idx + len(marker)
	depth := 1
	i := start
	for i < len(text) {
		switch text[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start:i], text[i+1:], nil
			}
		}
		i++
	}
	return "", "", ferrors.New(ferrors.ParseMalformed, "unterminated block, brace depth never reached zero")
}

// parseHeaderBlock parses the header's `[key,value];...` 2-tuples into
// a key->value map (spec.md §4.2 numeric keys 1-6).
func parseHeaderBlock(text string) (map[int]string, error) {
	out := make(map[int]string, 6)
	text = strings.NewReplacer("\n", "", "\t", "", "\r", "").Replace(text)
	for len(text) > 0 {
		text = strings.TrimSpace(text)
		if text == "" {
			break
		}
		if text[0] != '[' {
			return nil, ferrors.New(ferrors.ParseMalformed, "expected '[' at header entry start")
		}
		end := strings.IndexByte(text, ']')
		if end < 0 {
			return nil, ferrors.New(ferrors.ParseMalformed, "unterminated header entry")
		}
		inner := text[1:end]
		comma := strings.IndexByte(inner, ',')
		if comma < 0 {
			return nil, ferrors.New(ferrors.ParseMalformed, "header entry must be [key,value]")
		}
		key, err := strconv.Atoi(strings.TrimSpace(inner[:comma]))
		if err != nil {
			return nil, ferrors.Wrap(ferrors.ParseMalformed, "header key not numeric", err)
		}
		out[key] = inner[comma+1:]

		rest := text[end+1:]
		if !strings.HasPrefix(rest, ";") {
			return nil, ferrors.New(ferrors.ParseMalformed, "missing ';' after header entry")
		}
		text = rest[1:]
	}
	return out, nil
}

// parseBlock parses the body's `[name,type,value];...` sequence into a
// synthetic container-typed root named rootName. Nested
// `[name,container,N]` entries recurse: their following N siblings
// (by declared count) become their children, following the original's
// stack-based parse discipline rather than a one-pass regex split.
func parseBlock(text string, rootName string) (*Value, error) {
	entries, _, err := parseEntries(text, -1)
	if err != nil {
		return nil, err
	}
	root := NewContainerValue(rootName, entries)
	return root, nil
}

// parseEntries consumes `[name,type,value];` entries from text. When
// want >= 0 it stops after collecting exactly that many direct
// entries (used when recursing into a declared container payload);
// when want < 0 it consumes until text is exhausted.
func parseEntries(text string, want int) ([]*Value, string, error) {
	var out []*Value
	for len(text) > 0 {
		if want >= 0 && len(out) >= want {
			break
		}
		text = strings.TrimLeft(text, "\n\t\r ")
		if text == "" {
			break
		}
		if text[0] != '[' {
			return nil, "", ferrors.New(ferrors.ParseMalformed, "expected '[' at entry start")
		}
		name, typeText, valueText, afterBracket, err := parseEntryHeader(text)
		if err != nil {
			return nil, "", err
		}
		text = afterBracket
		if !strings.HasPrefix(text, ";") {
			return nil, "", ferrors.New(ferrors.ParseMalformed, "missing ';' terminator after entry")
		}
		text = text[1:]

		v := NewFromText(name, typeText, valueText)
		if v.typ == TypeContainer {
			childCount := v.DeclaredChildCount()
			children, rest, err := parseEntries(text, int(childCount))
			if err != nil {
				return nil, "", err
			}
			if int64(len(children)) != childCount {
				return nil, "", ferrors.New(ferrors.ParseChildCount, "declared child count never satisfied")
			}
			for _, ch := range children {
				v.AddChild(ch)
			}
			text = rest
		}
		out = append(out, v)
	}
	if want >= 0 && len(out) != want {
		return nil, "", ferrors.New(ferrors.ParseChildCount, "declared child count never satisfied")
	}
	return out, text, nil
}

// parseEntryHeader splits `[name,type,value]` at its top level commas,
// by bracket-depth scanning so a bytes/string value_text containing a
// literal comma does not get mis-split.
func parseEntryHeader(text string) (name, typeText, valueText, rest string, err error) {
	if text[0] != '[' {
		return "", "", "", "", ferrors.New(ferrors.ParseMalformed, "expected '['")
	}
	depth := 1
	i := 1
	for i < len(text) {
		switch text[i] {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				parts := splitTopCommas(text[1:i])
				if len(parts) != 3 {
					return "", "", "", "", ferrors.New(ferrors.ParseMalformed, "entry must have exactly 3 fields")
				}
				return parts[0], parts[1], parts[2], text[i+1:], nil
			}
		}
		i++
	}
	return "", "", "", "", ferrors.New(ferrors.ParseMalformed, "unterminated '[' entry")
}

// splitTopCommas splits on commas, but the third field (value_text)
// is allowed to contain commas: the entry format is strictly
// name,type,value so only the first two commas are significant.
func splitTopCommas(s string) []string {
	first := strings.IndexByte(s, ',')
	if first < 0 {
		return []string{s}
	}
	rest := s[first+1:]
	second := strings.IndexByte(rest, ',')
	if second < 0 {
		return []string{s[:first], rest}
	}
	return []string{s[:first], rest[:second], rest[second+1:]}
}
