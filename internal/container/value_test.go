package container

import "testing"

func TestValueNumericRoundTrip(t *testing.T) {
	cases := []struct {
		typ  Type
		text string
	}{
		{TypeBool, "true"},
		{TypeI16, "-1234"},
		{TypeU16, "65000"},
		{TypeI32, "-70000"},
		{TypeU32, "4000000000"},
		{TypeI64, "-9000000000000"},
		{TypeU64, "18000000000000000000"},
		{TypeF32, "3.5"},
		{TypeF64, "-2.25"},
		{TypeI128, "-170141183460469231731687303715884105"},
		{TypeU128, "340282366920938463463374607431768211"},
	}
	for _, c := range cases {
		v := NewFromText("x", c.typ.String(), c.text)
		if v.Type() != c.typ {
			t.Fatalf("type: got %v want %v", v.Type(), c.typ)
		}
		if got := v.valueText(); got != c.text {
			t.Fatalf("%v round trip: got %q want %q", c.typ, got, c.text)
		}
	}
}

func TestValueI32OverflowTruncatesSilently(t *testing.T) {
	v := NewFromText("x", "i32", "4294967296") // 2^32, one past u32 max
	if v.AsI64() != 0 {
		t.Fatalf("expected silent truncation to 0, got %d", v.AsI64())
	}
}

func TestStringEscapeRoundTrip(t *testing.T) {
	raw := "line1\r\nwith space\tand tab"
	v := NewFromText("msg", "string", escapeString(raw))
	if v.AsString() != raw {
		t.Fatalf("got %q want %q", v.AsString(), raw)
	}
	if escapeString(raw) != v.valueText() {
		t.Fatalf("valueText should re-escape identically")
	}
}

func TestContainerValueChildCount(t *testing.T) {
	kv := NewContainerValue("kv", []*Value{
		NewRaw("k", TypeString, []byte("hello")),
		NewFromText("v", "i32", "7"),
	})
	if kv.DeclaredChildCount() != 2 {
		t.Fatalf("declared child count: got %d want 2", kv.DeclaredChildCount())
	}
	if kv.ChildCount() != 2 {
		t.Fatalf("child count: got %d want 2", kv.ChildCount())
	}
	if kv.Get("k").AsString() != "hello" {
		t.Fatalf("k: got %q", kv.Get("k").AsString())
	}
	if kv.Get("v").AsI64() != 7 {
		t.Fatalf("v: got %d", kv.Get("v").AsI64())
	}
}

func TestGetOnMissingKeyReturnsNull(t *testing.T) {
	kv := NewContainerValue("kv", nil)
	got := kv.Get("missing")
	if !got.IsNull() {
		t.Fatalf("expected null value for missing key")
	}
	if got.Name() != "missing" {
		t.Fatalf("expected placeholder name preserved, got %q", got.Name())
	}
}

func TestSerializePrettyCompactEquivalentAfterReparse(t *testing.T) {
	kv := NewContainerValue("kv", []*Value{
		NewRaw("k", TypeString, []byte("hello")),
		NewFromText("v", "i32", "7"),
	})
	root := NewContainerValue("data", []*Value{kv})

	compact := root.Serialize(false, 0)
	pretty := root.Serialize(true, 0)

	reparsedCompact, err := parseBlock(compact, "data")
	if err != nil {
		t.Fatalf("parse compact: %v", err)
	}
	reparsedPretty, err := parseBlock(pretty, "data")
	if err != nil {
		t.Fatalf("parse pretty: %v", err)
	}

	if reparsedCompact.Get("kv").Get("v").AsI64() != reparsedPretty.Get("kv").Get("v").AsI64() {
		t.Fatalf("pretty/compact forms diverged after reparse")
	}
}

func TestToXMLAndToJSONProjections(t *testing.T) {
	v := NewFromText("name", "string", "Ada")
	xml := v.ToXML()
	want := `<name type="string">Ada</name>`
	if xml != want {
		t.Fatalf("xml: got %q want %q", xml, want)
	}
	j := v.ToJSON()
	wantJSON := `{"name":"name","type":"string","value":"Ada"}`
	if j != wantJSON {
		t.Fatalf("json: got %q want %q", j, wantJSON)
	}
}
