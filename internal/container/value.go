// Package container implements the wire data model of spec.md §3-4.1:
// Value, a typed node in a recursive tree, and Container, the routing
// envelope around a forest of Values.
//
// Grounded on original_source/container/value.cpp (the C++ value
// class this was distilled from) and, for the Go shape of a tagged
// union with byte-slice payload, on the teacher repo's convention of
// small sum-typed value objects (pkg/canonical's deterministic JSON
// encoding informed the escape/projection rules below, adapted to the
// spec's own escape table rather than copied).
package container

import (
	"encoding/base64"
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// Type is the type tag of a Value. Numeric codes are an internal
// implementation detail (spec.md §8, S2): only self-consistency of
// parse(serialize(v)) == v is required, not any particular code.
type Type uint8

const (
	TypeNull Type = iota
	TypeBool
	TypeI16
	TypeU16
	TypeI32
	TypeU32
	TypeI64
	TypeU64
	TypeI128
	TypeU128
	TypeF32
	TypeF64
	TypeBytes
	TypeString
	TypeContainer
)

var typeNames = map[Type]string{
	TypeNull:      "null",
	TypeBool:      "bool",
	TypeI16:       "i16",
	TypeU16:       "u16",
	TypeI32:       "i32",
	TypeU32:       "u32",
	TypeI64:       "i64",
	TypeU64:       "u64",
	TypeI128:      "i128",
	TypeU128:      "u128",
	TypeF32:       "f32",
	TypeF64:       "f64",
	TypeBytes:     "bytes",
	TypeString:    "string",
	TypeContainer: "container",
}

var nameToType = func() map[string]Type {
	m := make(map[string]Type, len(typeNames))
	for t, n := range typeNames {
		m[n] = t
	}
	return m
}()

func (t Type) String() string {
	if n, ok := typeNames[t]; ok {
		return n
	}
	return "null"
}

// ParseType resolves a textual type tag back to a Type. Unknown tags
// resolve to TypeNull, matching the original's tolerant behavior of
// treating unrecognized data as absent rather than failing parse.
func ParseType(s string) Type {
	if t, ok := nameToType[s]; ok {
		return t
	}
	return TypeNull
}

func fixedWidth(t Type) (int, bool) {
	switch t {
	case TypeBool:
		return 1, true
	case TypeI16, TypeU16:
		return 2, true
	case TypeI32, TypeU32, TypeF32:
		return 4, true
	case TypeI64, TypeU64, TypeF64:
		return 8, true
	case TypeI128, TypeU128:
		return 16, true
	case TypeContainer:
		return 8, true
	case TypeNull:
		return 0, true
	default:
		return 0, false
	}
}

// Value is a node in the recursive container tree (spec.md §3.1).
// The parent link is a weak, non-owning back-reference: it is set by
// a Container/Value when a child is attached and is never itself the
// thing that keeps a Value alive.
type Value struct {
	name     string
	typ      Type
	payload  []byte
	children []*Value
	parent   *Value
}

// NewNull returns a null-typed value with the given name — the same
// placeholder Container.Get returns for an absent key (spec.md §4.2).
func NewNull(name string) *Value {
	return &Value{name: name, typ: TypeNull}
}

// NewContainerValue builds a container-typed value: its payload is the
// 8-byte little-endian declared child count, and children become its
// child list (spec.md §3.1: "container payload stores the declared
// child count as a signed 64-bit integer").
func NewContainerValue(name string, children []*Value) *Value {
	v := &Value{name: name, typ: TypeContainer, children: children}
	v.payload = encodeI64(int64(len(children)))
	for _, c := range children {
		c.parent = v
	}
	return v
}

// NewRaw builds a value from an already-encoded payload and explicit
// type, as the original's (name, data, size, type) constructor does.
func NewRaw(name string, typ Type, payload []byte) *Value {
	cp := make([]byte, len(payload))
	copy(cp, payload)
	return &Value{name: name, typ: typ, payload: cp}
}

// NewFromText dispatches per type the way the original's (name,
// type-text, data-text) constructor does: decimal for numerics,
// true/false for bool, base64 for bytes, escape-decoded UTF for
// string, decimal child count for container.
func NewFromText(name, typeText, valueText string) *Value {
	t := ParseType(typeText)
	v := &Value{name: name, typ: t}
	switch t {
	case TypeNull:
		// empty payload
	case TypeBool:
		v.payload = encodeBool(valueText == "true")
	case TypeI16:
		n, _ := strconv.ParseInt(strings.TrimSpace(valueText), 10, 64)
		v.payload = encodeI16(truncI16(n))
	case TypeU16:
		n, _ := strconv.ParseUint(strings.TrimSpace(valueText), 10, 64)
		v.payload = encodeU16(uint16(n))
	case TypeI32:
		n, _ := strconv.ParseInt(strings.TrimSpace(valueText), 10, 64)
		v.payload = encodeI32(truncI32(n))
	case TypeU32:
		n, _ := strconv.ParseUint(strings.TrimSpace(valueText), 10, 64)
		v.payload = encodeU32(uint32(n))
	case TypeI64:
		n, _ := strconv.ParseInt(strings.TrimSpace(valueText), 10, 64)
		v.payload = encodeI64(n)
	case TypeU64:
		n, _ := strconv.ParseUint(strings.TrimSpace(valueText), 10, 64)
		v.payload = encodeU64(n)
	case TypeI128, TypeU128:
		bi, ok := new(big.Int).SetString(strings.TrimSpace(valueText), 10)
		if !ok {
			bi = big.NewInt(0)
		}
		v.payload = encodeBig(bi, t == TypeI128)
	case TypeF32:
		f, _ := strconv.ParseFloat(strings.TrimSpace(valueText), 32)
		v.payload = encodeF32(float32(f))
	case TypeF64:
		f, _ := strconv.ParseFloat(strings.TrimSpace(valueText), 64)
		v.payload = encodeF64(f)
	case TypeBytes:
		b, err := base64.StdEncoding.DecodeString(valueText)
		if err != nil {
			b = nil
		}
		v.payload = b
	case TypeString:
		v.payload = []byte(unescapeString(valueText))
	case TypeContainer:
		n, _ := strconv.ParseInt(strings.TrimSpace(valueText), 10, 64)
		v.payload = encodeI64(n)
	}
	return v
}

func (v *Value) Name() string   { return v.name }
func (v *Value) Type() Type     { return v.typ }
func (v *Value) Size() int      { return len(v.payload) }
func (v *Value) Bytes() []byte  { return append([]byte(nil), v.payload...) }
func (v *Value) Parent() *Value { return v.parent }
func (v *Value) Children() []*Value {
	return v.children
}
func (v *Value) ChildCount() int { return len(v.children) }

func (v *Value) IsNull() bool      { return v.typ == TypeNull }
func (v *Value) IsBytes() bool     { return v.typ == TypeBytes }
func (v *Value) IsBoolean() bool   { return v.typ == TypeBool }
func (v *Value) IsString() bool    { return v.typ == TypeString }
func (v *Value) IsContainer() bool { return v.typ == TypeContainer }
func (v *Value) IsNumeric() bool {
	switch v.typ {
	case TypeI16, TypeU16, TypeI32, TypeU32, TypeI64, TypeU64, TypeI128, TypeU128, TypeF32, TypeF64:
		return true
	default:
		return false
	}
}

// AddChild appends a child and sets its parent link. Only meaningful
// once typ is, or becomes, TypeContainer.
func (v *Value) AddChild(child *Value) {
	if child == nil {
		return
	}
	v.children = append(v.children, child)
	child.parent = v
}

// DeclaredChildCount reads the payload as the original reads it for a
// container value: the 8-byte little-endian count recorded at
// construction/parse time, which may lag behind len(children) while a
// container is still being assembled by the text-deserialization
// stack discipline (§4.2).
func (v *Value) DeclaredChildCount() int64 {
	if len(v.payload) < 8 {
		return 0
	}
	return decodeI64(v.payload)
}

// ValueArray returns every direct child named key, in order.
func (v *Value) ValueArray(key string) []*Value {
	var out []*Value
	for _, c := range v.children {
		if c.name == key {
			out = append(out, c)
		}
	}
	return out
}

// Get returns the first child named key, or a fresh null value with
// that name if none exists — the original never returns absence.
func (v *Value) Get(key string) *Value {
	for _, c := range v.children {
		if c.name == key {
			return c
		}
	}
	return NewNull(key)
}

// ---- numeric coercion (spec.md §4.1: "overflow truncates silently,
// documented behavior of the original") ----

func (v *Value) AsI64() int64 {
	switch v.typ {
	case TypeI16:
		return int64(int16(decodeU16(v.payload)))
	case TypeU16:
		return int64(decodeU16(v.payload))
	case TypeI32:
		return int64(int32(decodeU32(v.payload)))
	case TypeU32:
		return int64(decodeU32(v.payload))
	case TypeI64, TypeContainer:
		return decodeI64(v.payload)
	case TypeU64:
		return int64(decodeU64(v.payload))
	case TypeF32:
		return int64(decodeF32(v.payload))
	case TypeF64:
		return int64(decodeF64(v.payload))
	case TypeBool:
		if len(v.payload) > 0 && v.payload[0] != 0 {
			return 1
		}
		return 0
	case TypeI128, TypeU128:
		return decodeBig(v.payload, v.typ == TypeI128).Int64()
	default:
		return 0
	}
}

func (v *Value) AsU64() uint64  { return uint64(v.AsI64()) }
func (v *Value) AsF64() float64 {
	switch v.typ {
	case TypeF32:
		return float64(decodeF32(v.payload))
	case TypeF64:
		return decodeF64(v.payload)
	default:
		return float64(v.AsI64())
	}
}

func (v *Value) AsBool() bool {
	if v.typ != TypeBool || len(v.payload) == 0 {
		return false
	}
	return v.payload[0] != 0
}

// AsBigInt returns the full-width value for i128/u128 payloads.
func (v *Value) AsBigInt() *big.Int {
	if v.typ == TypeI128 || v.typ == TypeU128 {
		return decodeBig(v.payload, v.typ == TypeI128)
	}
	return big.NewInt(v.AsI64())
}

// AsString applies the inverse escape table of spec.md §3.1.
func (v *Value) AsString() string {
	if v.typ != TypeString {
		return v.valueText()
	}
	return unescapeString(string(v.payload))
}

// AsBytes returns a copy of the raw payload bytes. A bytes value's
// payload is already base64-decoded (NewFromText decodes it on parse).
func (v *Value) AsBytes() []byte {
	return v.Bytes()
}

// ---- text serialization (spec.md §4.1) ----

// valueText is the base-10/true-false/base64/escaped-string/decimal
// rendering used inside `[name,type,value_text];`.
func (v *Value) valueText() string {
	switch v.typ {
	case TypeNull:
		return ""
	case TypeBool:
		if v.AsBool() {
			return "true"
		}
		return "false"
	case TypeI16, TypeI32, TypeI64:
		return strconv.FormatInt(v.AsI64(), 10)
	case TypeU16, TypeU32, TypeU64:
		return strconv.FormatUint(v.AsU64(), 10)
	case TypeI128, TypeU128:
		return decodeBig(v.payload, v.typ == TypeI128).String()
	case TypeF32:
		return strconv.FormatFloat(float64(decodeF32(v.payload)), 'g', -1, 32)
	case TypeF64:
		return strconv.FormatFloat(decodeF64(v.payload), 'g', -1, 64)
	case TypeBytes:
		return base64.StdEncoding.EncodeToString(v.payload)
	case TypeString:
		return escapeString(string(v.payload))
	case TypeContainer:
		return strconv.FormatInt(v.DeclaredChildCount(), 10)
	default:
		return ""
	}
}

// Serialize renders `[name,type,value];` followed by each child,
// recursively. pretty inserts one tab per depth level and a trailing
// newline, exactly as the original's fmt-based serializer does;
// equality across pretty/compact forms must hold after reparsing
// (spec.md §8, property 2).
func (v *Value) Serialize(pretty bool, depth int) string {
	var b strings.Builder
	indent := ""
	newline := ""
	if pretty {
		indent = strings.Repeat("\t", depth)
		newline = "\n"
	}
	fmt.Fprintf(&b, "%s[%s,%s,%s];%s", indent, v.name, v.typ.String(), v.valueText(), newline)
	for _, c := range v.children {
		b.WriteString(c.Serialize(pretty, depth+1))
	}
	return b.String()
}

// ToXML projects a Value to `<name type="tag">value</name>` (output
// only, spec.md §4.1).
func (v *Value) ToXML() string {
	var b strings.Builder
	fmt.Fprintf(&b, `<%s type="%s">`, xmlEscape(v.name), v.typ.String())
	if v.typ == TypeContainer {
		for _, c := range v.children {
			b.WriteString(c.ToXML())
		}
	} else {
		b.WriteString(xmlEscape(v.valueText()))
	}
	fmt.Fprintf(&b, `</%s>`, xmlEscape(v.name))
	return b.String()
}

// ToJSON projects a Value to {"name":..,"type":..,"value":..,"children":[..]}.
// The "children" key is emitted only for a container value that has at
// least one child.
func (v *Value) ToJSON() string {
	var b strings.Builder
	fmt.Fprintf(&b, `{"name":%s,"type":%s,"value":%s`, jsonString(v.name), jsonString(v.typ.String()), jsonString(v.valueText()))
	if v.typ == TypeContainer && len(v.children) > 0 {
		b.WriteString(`,"children":[`)
		for i, c := range v.children {
			if i > 0 {
				b.WriteString(",")
			}
			b.WriteString(c.ToJSON())
		}
		b.WriteString("]")
	}
	b.WriteString("}")
	return b.String()
}

func jsonString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

func xmlEscape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
	return r.Replace(s)
}

// ---- escape table (spec.md §3.1, exact inverse both ways) ----

func escapeString(s string) string {
	r := strings.NewReplacer(
		"\r", "</0x0A;>",
		"\n", "</0x0B;>",
		" ", "</0x0C;>",
		"\t", "</0x0D;>",
	)
	return r.Replace(s)
}

func unescapeString(s string) string {
	r := strings.NewReplacer(
		"</0x0A;>", "\r",
		"</0x0B;>", "\n",
		"</0x0C;>", " ",
		"</0x0D;>", "\t",
	)
	return r.Replace(s)
}

func truncI16(n int64) int16 { return int16(n) }
func truncI32(n int64) int32 { return int32(n) }
