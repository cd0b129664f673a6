package filters

import (
	"bytes"
	"compress/lzw"
	"encoding/ascii85"
	"errors"
	"testing"

	"github.com/georgepadayatti/contractpdf/pdf/generic"
)

func TestFlateRoundTrip(t *testing.T) {
	original := []byte("BT /F1 12 Tf 100 700 Td (MARIA GOMEZ) Tj ET")

	encoded, err := FlateEncode(original)
	if err != nil {
		t.Fatalf("FlateEncode failed: %v", err)
	}

	decoded, err := Decode(encoded, generic.NameObject("FlateDecode"), nil)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !bytes.Equal(decoded, original) {
		t.Errorf("Round-trip mismatch.\nExpected: %s\nGot: %s", original, decoded)
	}
}

func TestNewFlateStream(t *testing.T) {
	s, err := NewFlateStream(nil, []byte("q Q"))
	if err != nil {
		t.Fatalf("NewFlateStream failed: %v", err)
	}
	if s.Dictionary.GetName("Filter") != "FlateDecode" {
		t.Errorf("Expected /FlateDecode filter, got '%s'", s.Dictionary.GetName("Filter"))
	}
	content, ok := s.Content()
	if !ok || string(content) != "q Q" {
		t.Errorf("Expected decoded content 'q Q', got '%s'", content)
	}
}

func TestASCIIHexDecode(t *testing.T) {
	tests := []struct {
		input    string
		expected []byte
	}{
		{"48656C6C6F>", []byte("Hello")},
		{"48 65 6C\n6C 6F>", []byte("Hello")},
		{"DEADBEEF>", []byte{0xDE, 0xAD, 0xBE, 0xEF}},
		{"ABC>", []byte{0xAB, 0xC0}},
	}

	for _, tt := range tests {
		got, err := Decode([]byte(tt.input), generic.NameObject("AHx"), nil)
		if err != nil {
			t.Fatalf("Decode(%q) failed: %v", tt.input, err)
		}
		if !bytes.Equal(got, tt.expected) {
			t.Errorf("Decode(%q): Expected %x, got %x", tt.input, tt.expected, got)
		}
	}
}

func TestASCII85Decode(t *testing.T) {
	original := []byte("contract template")
	enc := make([]byte, ascii85.MaxEncodedLen(len(original)))
	enc = enc[:ascii85.Encode(enc, original)]
	input := append(append([]byte("<~"), enc...), "~>"...)

	got, err := Decode(input, generic.NameObject("ASCII85Decode"), nil)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !bytes.Equal(got, original) {
		t.Errorf("Expected '%s', got '%s'", original, got)
	}
}

func TestRunLengthDecode(t *testing.T) {
	// literal run of 3, then 'z' repeated 4 times, then EOD
	input := []byte{2, 'a', 'b', 'c', 253, 'z', 128}
	got, err := Decode(input, generic.NameObject("RunLengthDecode"), nil)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if string(got) != "abczzzz" {
		t.Errorf("Expected 'abczzzz', got '%s'", got)
	}

	if _, err := Decode([]byte{5, 'a'}, generic.NameObject("RL"), nil); !errors.Is(err, ErrDecodeFailed) {
		t.Errorf("Expected ErrDecodeFailed for truncated data, got %v", err)
	}
}

func TestLZWDecodeNoEarlyChange(t *testing.T) {
	original := []byte("TOBEORNOTTOBEORTOBEORNOT")
	var buf bytes.Buffer
	w := lzw.NewWriter(&buf, lzw.MSB, 8)
	w.Write(original)
	w.Close()

	parms := generic.NewDictionary()
	parms.Set("EarlyChange", generic.IntegerObject(0))

	got, err := Decode(buf.Bytes(), generic.NameObject("LZWDecode"), parms)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !bytes.Equal(got, original) {
		t.Errorf("Expected '%s', got '%s'", original, got)
	}
}

func TestFilterChain(t *testing.T) {
	original := []byte("chained")
	flated, err := FlateEncode(original)
	if err != nil {
		t.Fatalf("FlateEncode failed: %v", err)
	}
	hexed := []byte{}
	for _, b := range flated {
		hexed = append(hexed, "0123456789ABCDEF"[b>>4], "0123456789ABCDEF"[b&0xF])
	}
	hexed = append(hexed, '>')

	chain := generic.NewArray(generic.NameObject("ASCIIHexDecode"), generic.NameObject("FlateDecode"))
	got, err := Decode(hexed, chain, nil)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !bytes.Equal(got, original) {
		t.Errorf("Expected '%s', got '%s'", original, got)
	}
}

func TestPNGPredictor(t *testing.T) {
	// Two rows of 3 single-byte columns: Sub then Up.
	raw := []byte{
		1, 10, 5, 5,
		2, 1, 1, 1,
	}
	encoded, err := FlateEncode(raw)
	if err != nil {
		t.Fatalf("FlateEncode failed: %v", err)
	}

	parms := generic.NewDictionary()
	parms.Set("Predictor", generic.IntegerObject(12))
	parms.Set("Columns", generic.IntegerObject(3))

	got, err := Decode(encoded, generic.NameObject("FlateDecode"), parms)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	expected := []byte{10, 15, 20, 11, 16, 21}
	if !bytes.Equal(got, expected) {
		t.Errorf("Expected %v, got %v", expected, got)
	}
}

func TestTIFFPredictor(t *testing.T) {
	got := decodeTIFFPredictor([]byte{1, 1, 1, 5, 1, 1}, 3, 1)
	expected := []byte{1, 2, 3, 5, 6, 7}
	if !bytes.Equal(got, expected) {
		t.Errorf("Expected %v, got %v", expected, got)
	}
}

func TestUnsupportedFilter(t *testing.T) {
	_, err := Decode([]byte{0xFF}, generic.NameObject("DCTDecode"), nil)
	if !errors.Is(err, ErrUnsupportedFilter) {
		t.Errorf("Expected ErrUnsupportedFilter, got %v", err)
	}

	if out, err := Decode([]byte("raw"), nil, nil); err != nil || string(out) != "raw" {
		t.Errorf("Expected passthrough without a filter, got '%s' (%v)", out, err)
	}
}
