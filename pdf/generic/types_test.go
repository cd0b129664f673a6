package generic

import (
	"bytes"
	"testing"
)

func render(t *testing.T, obj PdfObject) string {
	t.Helper()
	var buf bytes.Buffer
	if err := obj.Write(&buf); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	return buf.String()
}

func TestScalarWrite(t *testing.T) {
	tests := []struct {
		name     string
		obj      PdfObject
		expected string
	}{
		{"null", NullObject{}, "null"},
		{"true", BooleanObject(true), "true"},
		{"false", BooleanObject(false), "false"},
		{"int", IntegerObject(-123), "-123"},
		{"real", RealObject(2.5), "2.5"},
		{"real integral", RealObject(310), "310"},
		{"real rounding", RealObject(0.1 + 0.2), "0.3"},
		{"negative zero", RealObject(-0.000001), "0"},
		{"name", NameObject("Type"), "/Type"},
		{"name escape", NameObject("A B#"), "/A#20B#23"},
		{"reference", NewReference(12, 0), "12 0 R"},
	}

	for _, tt := range tests {
		if got := render(t, tt.obj); got != tt.expected {
			t.Errorf("%s: Expected '%s', got '%s'", tt.name, tt.expected, got)
		}
	}
}

func TestStringWrite(t *testing.T) {
	lit := NewLiteralString("a(b)c\\")
	if got := render(t, lit); got != `(a\(b\)c\\)` {
		t.Errorf("Expected escaped literal, got '%s'", got)
	}

	hexStr := NewHexString([]byte{0xDE, 0xAD})
	if got := render(t, hexStr); got != "<DEAD>" {
		t.Errorf("Expected '<DEAD>', got '%s'", got)
	}
}

func TestTextStringRoundTrip(t *testing.T) {
	tests := []string{"plain", "MARÍA GÓMEZ", "Ñandú 東京"}

	for _, s := range tests {
		obj := NewTextString(s)
		if got := obj.Text(); got != s {
			t.Errorf("Expected '%s', got '%s'", s, got)
		}
	}

	if v := NewTextString("plain").Value; v[0] == 0xFE {
		t.Error("ASCII text should not carry a BOM")
	}
}

func TestDictionaryOrderAndDelete(t *testing.T) {
	d := NewDictionary()
	d.Set("Type", NameObject("Page"))
	d.Set("Count", IntegerObject(3))
	d.Set("Type", NameObject("Pages"))

	if got := render(t, d); got != "<< /Type /Pages /Count 3 >>" {
		t.Errorf("Unexpected dictionary rendering '%s'", got)
	}

	d.Delete("Type")
	if d.Has("Type") || d.Len() != 1 {
		t.Error("Delete should remove the key")
	}
	if keys := d.Keys(); len(keys) != 1 || keys[0] != "Count" {
		t.Errorf("Unexpected keys %v", keys)
	}
}

func TestDictionaryAccessors(t *testing.T) {
	d := NewDictionary()
	d.Set("N", RealObject(1.5))
	d.Set("I", IntegerObject(7))
	d.Set("S", NewTextString("hola"))

	if v, ok := d.GetNumber("N"); !ok || v != 1.5 {
		t.Errorf("Expected 1.5, got %v", v)
	}
	if v, ok := d.GetInt("I"); !ok || v != 7 {
		t.Errorf("Expected 7, got %v", v)
	}
	if v, ok := d.GetString("S"); !ok || v != "hola" {
		t.Errorf("Expected 'hola', got '%s'", v)
	}
	if d.GetDict("missing") != nil || d.GetArray("missing") != nil {
		t.Error("Missing keys should return nil")
	}

	var nilDict *DictionaryObject
	if nilDict.Get("X") != nil || nilDict.Has("X") {
		t.Error("nil dictionary lookups should be empty")
	}
}

func TestCloneIsDeep(t *testing.T) {
	inner := NewDictionary()
	inner.Set("K", IntegerObject(1))
	outer := NewDictionary()
	outer.Set("Inner", inner)
	outer.Set("Arr", NewArray(IntegerObject(1), NewReference(3, 0)))

	clone := outer.Clone().(*DictionaryObject)
	clone.GetDict("Inner").Set("K", IntegerObject(2))

	if v, _ := inner.GetInt("K"); v != 1 {
		t.Error("Clone should not share nested dictionaries")
	}
	if ref, ok := clone.GetArray("Arr")[1].(Reference); !ok || ref.ObjectNumber != 3 {
		t.Error("Clone should keep references")
	}
}

func TestStreamWriteSetsLength(t *testing.T) {
	s := NewStream(nil, []byte("q Q"))
	got := render(t, s)
	if !bytes.Contains([]byte(got), []byte("/Length 3")) {
		t.Errorf("Expected /Length 3 in '%s'", got)
	}

	content, ok := s.Content()
	if !ok || string(content) != "q Q" {
		t.Errorf("Unfiltered stream content should be its data, got '%s'", content)
	}

	s.Dictionary.Set("Filter", NameObject("FlateDecode"))
	if _, ok := s.Content(); ok {
		t.Error("Filtered stream without decoded bytes should report unknown content")
	}
}

func TestRectangle(t *testing.T) {
	r, err := NewRectangle(NewArray(IntegerObject(180), RealObject(140), IntegerObject(100), IntegerObject(100)))
	if err != nil {
		t.Fatalf("NewRectangle failed: %v", err)
	}
	if r.LLX != 100 || r.URX != 180 || r.Width() != 80 || r.Height() != 40 {
		t.Errorf("Expected normalized 80x40 rect, got %+v", *r)
	}

	if _, err := NewRectangle(NewArray(IntegerObject(1))); err == nil {
		t.Error("Expected error for short array")
	}
	if _, err := NewRectangle(NewArray(IntegerObject(1), NameObject("x"), IntegerObject(1), IntegerObject(1))); err == nil {
		t.Error("Expected error for non-numeric element")
	}
}

func TestNumberArray(t *testing.T) {
	got := render(t, NumberArray(0, 0, 612, 791.5))
	if got != "[0 0 612 791.5]" {
		t.Errorf("Expected '[0 0 612 791.5]', got '%s'", got)
	}
}
