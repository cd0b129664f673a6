package generic

import (
	"bytes"
	"errors"
	"testing"
)

func TestParseScalars(t *testing.T) {
	tests := []struct {
		input    string
		expected PdfObject
	}{
		{"null", NullObject{}},
		{"true", BooleanObject(true)},
		{"false", BooleanObject(false)},
		{"42", IntegerObject(42)},
		{"-17", IntegerObject(-17)},
		{"+3", IntegerObject(3)},
		{"3.25", RealObject(3.25)},
		{"-.5", RealObject(-0.5)},
		{"/Helvetica-Bold", NameObject("Helvetica-Bold")},
		{"/A#20B", NameObject("A B")},
		{"12 0 R", Reference{ObjectNumber: 12}},
	}

	for _, tt := range tests {
		obj, err := NewParser([]byte(tt.input)).ParseObject()
		if err != nil {
			t.Fatalf("ParseObject(%q) failed: %v", tt.input, err)
		}
		if obj != tt.expected {
			t.Errorf("ParseObject(%q): Expected %#v, got %#v", tt.input, tt.expected, obj)
		}
	}
}

func TestParseStrings(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"(hello)", "hello"},
		{"(a (nested) b)", "a (nested) b"},
		{`(esc\)aped\n)`, "esc)aped\n"},
		{`(\101\102)`, "AB"},
		{"(line\\\ncontinued)", "linecontinued"},
		{"<48656C6C6F>", "Hello"},
		{"<4 8 6>", "H`"},
	}

	for _, tt := range tests {
		obj, err := NewParser([]byte(tt.input)).ParseObject()
		if err != nil {
			t.Fatalf("ParseObject(%q) failed: %v", tt.input, err)
		}
		s, ok := obj.(*StringObject)
		if !ok {
			t.Fatalf("Expected StringObject for %q", tt.input)
		}
		if string(s.Value) != tt.expected {
			t.Errorf("Expected '%s', got '%s'", tt.expected, s.Value)
		}
	}
}

func TestParseNumbersAreNotReferences(t *testing.T) {
	obj, err := NewParser([]byte("[0 0 612 792]")).ParseObject()
	if err != nil {
		t.Fatalf("ParseObject failed: %v", err)
	}
	arr := obj.(ArrayObject)
	if len(arr) != 4 {
		t.Fatalf("Expected 4 elements, got %d", len(arr))
	}
	if arr[3] != IntegerObject(792) {
		t.Errorf("Expected 792, got %#v", arr[3])
	}

	obj, err = NewParser([]byte("[1 0 R 2 0 R 5]")).ParseObject()
	if err != nil {
		t.Fatalf("ParseObject failed: %v", err)
	}
	arr = obj.(ArrayObject)
	if len(arr) != 3 || arr[1] != (Reference{ObjectNumber: 2}) || arr[2] != IntegerObject(5) {
		t.Errorf("Unexpected array %#v", arr)
	}
}

func TestParseDictionary(t *testing.T) {
	input := "<< /Type /Annot /Rect [100 100 180 140] /T (signature_box) /P 4 0 R /Skip null >>"
	obj, err := NewParser([]byte(input)).ParseObject()
	if err != nil {
		t.Fatalf("ParseObject failed: %v", err)
	}
	d, ok := obj.(*DictionaryObject)
	if !ok {
		t.Fatal("Expected DictionaryObject")
	}
	if d.GetName("Type") != "Annot" {
		t.Errorf("Expected /Annot, got '%s'", d.GetName("Type"))
	}
	if s, _ := d.GetString("T"); s != "signature_box" {
		t.Errorf("Expected signature_box, got '%s'", s)
	}
	if ref, ok := d.Get("P").(Reference); !ok || ref.ObjectNumber != 4 {
		t.Errorf("Expected reference 4 0 R, got %#v", d.Get("P"))
	}
	if d.Has("Skip") {
		t.Error("null values should be dropped")
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		input string
		want  error
	}{
		{"", ErrUnexpectedEOF},
		{"(unterminated", ErrInvalidString},
		{"<< /A 1", ErrInvalidDictionary},
		{"[1 2", ErrInvalidArray},
		{"<< 1 2 >>", ErrInvalidDictionary},
		{"bogus", ErrInvalidObject},
	}

	for _, tt := range tests {
		_, err := NewParser([]byte(tt.input)).ParseObject()
		if !errors.Is(err, tt.want) {
			t.Errorf("ParseObject(%q): Expected %v, got %v", tt.input, tt.want, err)
		}
	}
}

func TestParseIndirectStream(t *testing.T) {
	input := "7 0 obj\n<< /Length 5 >>\nstream\nhello\nendstream\nendobj\n"
	ind, err := NewParser([]byte(input)).ParseIndirectObject()
	if err != nil {
		t.Fatalf("ParseIndirectObject failed: %v", err)
	}
	if ind.ObjectNumber != 7 {
		t.Errorf("Expected object 7, got %d", ind.ObjectNumber)
	}
	s, ok := ind.Object.(*StreamObject)
	if !ok {
		t.Fatal("Expected StreamObject")
	}
	if string(s.Data) != "hello" {
		t.Errorf("Expected 'hello', got '%s'", s.Data)
	}
}

func TestParseIndirectStreamLength(t *testing.T) {
	input := "8 0 obj\n<< /Length 9 0 R >>\nstream\r\nabc\r\nendstream\nendobj"

	p := NewParser([]byte(input))
	p.LengthResolver = func(ref Reference) (int64, bool) {
		if ref.ObjectNumber == 9 {
			return 3, true
		}
		return 0, false
	}
	ind, err := p.ParseIndirectObject()
	if err != nil {
		t.Fatalf("ParseIndirectObject failed: %v", err)
	}
	if got := string(ind.Object.(*StreamObject).Data); got != "abc" {
		t.Errorf("Expected 'abc', got '%s'", got)
	}

	// Without a resolver the parser falls back to scanning.
	ind, err = NewParser([]byte(input)).ParseIndirectObject()
	if err != nil {
		t.Fatalf("ParseIndirectObject failed: %v", err)
	}
	if got := string(ind.Object.(*StreamObject).Data); got != "abc" {
		t.Errorf("Expected 'abc' from scan, got '%s'", got)
	}
}

func TestParseWrongLengthRecovers(t *testing.T) {
	input := "3 0 obj << /Length 999 >> stream\nq 1 0 0 1 0 0 cm Q\nendstream endobj"
	ind, err := NewParser([]byte(input)).ParseIndirectObject()
	if err != nil {
		t.Fatalf("ParseIndirectObject failed: %v", err)
	}
	if got := string(ind.Object.(*StreamObject).Data); got != "q 1 0 0 1 0 0 cm Q" {
		t.Errorf("Unexpected data '%s'", got)
	}
}

func TestWriteParseRoundTrip(t *testing.T) {
	d := NewDictionary()
	d.Set("Rect", NumberArray(10, 20.5, 30, 40))
	d.Set("V", NewTextString("MARÍA GÓMEZ"))
	d.Set("Parent", NewReference(2, 0))

	var buf bytes.Buffer
	if err := d.Write(&buf); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	obj, err := NewParser(buf.Bytes()).ParseObject()
	if err != nil {
		t.Fatalf("ParseObject failed: %v", err)
	}
	back := obj.(*DictionaryObject)
	if v, _ := back.GetString("V"); v != "MARÍA GÓMEZ" {
		t.Errorf("Expected 'MARÍA GÓMEZ', got '%s'", v)
	}
	rect, err := ParseRectangle(back.Get("Rect"))
	if err != nil {
		t.Fatalf("ParseRectangle failed: %v", err)
	}
	if rect.LLY != 20.5 {
		t.Errorf("Expected 20.5, got %v", rect.LLY)
	}
}
