package container

import (
	"strings"
	"testing"
)

func TestNewContainerDefaultsMessageType(t *testing.T) {
	c := New("")
	if c.MessageType() != DefaultMessageType {
		t.Fatalf("got %q want %q", c.MessageType(), DefaultMessageType)
	}
	if id, _ := c.Source(); id != "" {
		t.Fatalf("expected empty source by default, got %q", id)
	}
}

func TestHeaderOmitsRoutingFieldsForDataContainer(t *testing.T) {
	c := New(DefaultMessageType)
	wire := c.Serialize(false)
	if strings.Contains(wire, "[1,") {
		t.Fatalf("expected routing keys 1-4 omitted for data_container, got %q", wire)
	}
	if !strings.Contains(wire, "[5,data_container];") {
		t.Fatalf("expected message_type key present, got %q", wire)
	}
}

// TestEchoHeaderMatchesScenarioS1 exercises the shape described by the
// echo scenario: a non-default message type always carries all six
// header keys, in order 1..6.
func TestEchoHeaderMatchesScenarioS1(t *testing.T) {
	c := New("echo")
	c.SetSource("a", "")
	c.SetTarget("b", "")

	wire := c.Serialize(false)
	wantHeader := "@header={[1,b];[2,];[3,a];[4,];[5,echo];[6," + DefaultVersion + "];};"
	if !strings.HasPrefix(wire, wantHeader) {
		t.Fatalf("got %q want prefix %q", wire, wantHeader)
	}
	if !strings.HasSuffix(wire, "@data={};") {
		t.Fatalf("expected empty data block, got %q", wire)
	}
}

func TestContainerSerializeParseRoundTrip(t *testing.T) {
	c := New("data_container")
	c.SetSource("node-a", "")
	c.Add(NewContainerValue("kv", []*Value{
		NewRaw("k", TypeString, []byte("hello")),
		NewFromText("v", "i32", "7"),
	}))

	wire := c.Serialize(false)
	parsed, err := Parse(wire)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.MessageType() != "data_container" {
		t.Fatalf("message_type: got %q", parsed.MessageType())
	}
	kv := parsed.Get("kv", 0)
	if kv.Get("k").AsString() != "hello" {
		t.Fatalf("k: got %q", kv.Get("k").AsString())
	}
	if kv.Get("v").AsI64() != 7 {
		t.Fatalf("v: got %d", kv.Get("v").AsI64())
	}
}

func TestContainerLazyBodyNotParsedUntilTouched(t *testing.T) {
	c := New("data_container")
	c.Add(NewRaw("x", TypeString, []byte("y")))
	wire := c.Serialize(false)

	parsed, err := Parse(wire)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.parsed {
		t.Fatalf("expected lazy body to remain unparsed until touched")
	}
	_ = parsed.Body()
	if !parsed.parsed {
		t.Fatalf("expected Body() to force materialization")
	}
}

func TestContainerAddSkipsDuplicatePointer(t *testing.T) {
	c := New("data_container")
	v := NewRaw("x", TypeString, []byte("y"))
	c.Add(v)
	c.Add(v)
	if c.Body().ChildCount() != 1 {
		t.Fatalf("expected duplicate pointer add to be a no-op, got %d children", c.Body().ChildCount())
	}
}

func TestContainerRemoveAllMatchesByName(t *testing.T) {
	c := New("data_container")
	c.Add(NewRaw("tag", TypeString, []byte("a")))
	c.Add(NewRaw("tag", TypeString, []byte("b")))
	c.Add(NewRaw("other", TypeString, []byte("c")))

	removed := c.Remove("tag")
	if removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}
	if c.Body().ChildCount() != 1 {
		t.Fatalf("expected 1 remaining child, got %d", c.Body().ChildCount())
	}
}

func TestContainerSwapHeaderExchangesSourceAndTarget(t *testing.T) {
	c := New("req")
	c.SetSource("a", "a-sub")
	c.SetTarget("b", "b-sub")

	c.SwapHeader()

	if id, sub := c.Source(); id != "b" || sub != "b-sub" {
		t.Fatalf("source after swap: got %q,%q", id, sub)
	}
	if id, sub := c.Target(); id != "a" || sub != "a-sub" {
		t.Fatalf("target after swap: got %q,%q", id, sub)
	}
}

func TestContainerCopyWithoutBody(t *testing.T) {
	c := New("data_container")
	c.Add(NewRaw("x", TypeString, []byte("y")))

	cp, err := c.Copy(false)
	if err != nil {
		t.Fatalf("copy: %v", err)
	}
	if cp.Body().ChildCount() != 0 {
		t.Fatalf("expected empty body copy, got %d children", cp.Body().ChildCount())
	}
	if cp.MessageType() != c.MessageType() {
		t.Fatalf("header not copied")
	}
}

func TestContainerCopyWithBody(t *testing.T) {
	c := New("data_container")
	c.Add(NewRaw("x", TypeString, []byte("y")))

	cp, err := c.Copy(true)
	if err != nil {
		t.Fatalf("copy: %v", err)
	}
	if cp.Body().ChildCount() != 1 {
		t.Fatalf("expected body copied, got %d children", cp.Body().ChildCount())
	}
	cp.Add(NewRaw("z", TypeString, []byte("w")))
	if c.Body().ChildCount() != 1 {
		t.Fatalf("copy must not alias original body")
	}
}

func TestParseMalformedMissingHeaderBlock(t *testing.T) {
	_, err := Parse("@data={};")
	if err == nil {
		t.Fatalf("expected error for missing @header block")
	}
}

func TestParseHeaderOnlyContainerHasEmptyBody(t *testing.T) {
	c, err := Parse("@header={[5,data_container];[6,1.0];};")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.Body().ChildCount() != 0 {
		t.Fatalf("expected empty body for header-only container")
	}
}

func TestParseChildCountMismatch(t *testing.T) {
	// declares 2 children but only supplies 1
	text := "@header={[5,data_container];[6,1.0];};@data={[kv,container,2];[k,string,hello];};"
	c, err := Parse(text)
	if err != nil {
		t.Fatalf("unexpected top-level parse error: %v", err)
	}
	if err := c.EnsureParsed(); err == nil {
		t.Fatalf("expected child count mismatch error on body parse")
	}
}
