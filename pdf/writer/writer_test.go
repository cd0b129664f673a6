package writer

import (
	"bytes"
	"testing"
	"time"

	"github.com/georgepadayatti/contractpdf/pdf/document"
	"github.com/georgepadayatti/contractpdf/pdf/generic"
	"github.com/georgepadayatti/contractpdf/pdf/reader"
)

var fixedNow = time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)

func TestSerializeBlankDocument(t *testing.T) {
	doc := document.NewBlank(612, 792)

	data, err := Serialize(doc, Options{Now: fixedNow})
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-1.7\n")) {
		t.Errorf("Unexpected header %q", data[:9])
	}

	r, err := reader.NewPdfFileReaderFromBytes(data)
	if err != nil {
		t.Fatalf("Output does not parse: %v", err)
	}
	if r.Rebuilt {
		t.Error("Output xref should be valid without a rebuild")
	}
	if s, _ := r.Info.GetString("Producer"); s != "contractpdf" {
		t.Errorf("Expected default producer, got '%s'", s)
	}
	if s, _ := r.Info.GetString("ModDate"); s != "D:20250115103000+00'00'" {
		t.Errorf("Unexpected ModDate '%s'", s)
	}
	id := r.Trailer.GetArray("ID")
	if len(id) != 2 {
		t.Fatalf("Expected two-element /ID, got %v", id)
	}
	if s := id[0].(*generic.StringObject); len(s.Value) != 16 {
		t.Errorf("Expected 16-byte ID, got %d bytes", len(s.Value))
	}
}

func TestSerializeIsDeterministic(t *testing.T) {
	build := func() []byte {
		doc := document.NewBlank(595, 842)
		if err := doc.AppendContent(0, []byte("0 0 m 10 10 l S")); err != nil {
			t.Fatalf("AppendContent failed: %v", err)
		}
		data, err := Serialize(doc, Options{Now: fixedNow, Producer: "test"})
		if err != nil {
			t.Fatalf("Serialize failed: %v", err)
		}
		return data
	}

	if !bytes.Equal(build(), build()) {
		t.Error("Same document and time should serialize identically")
	}
}

func TestSerializeDropsUnreachableObjects(t *testing.T) {
	doc := document.NewBlank(612, 792)
	if _, err := doc.AddObject(generic.NewLiteralString("orphan")); err != nil {
		t.Fatalf("AddObject failed: %v", err)
	}

	data, err := Serialize(doc, Options{Now: fixedNow})
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}
	if bytes.Contains(data, []byte("(orphan)")) {
		t.Error("Unreachable object should not be written")
	}

	r, err := reader.NewPdfFileReaderFromBytes(data)
	if err != nil {
		t.Fatalf("Output does not parse: %v", err)
	}
	// catalog, pages, page, info
	if r.ObjectCount() != 4 {
		t.Errorf("Expected 4 objects, got %d", r.ObjectCount())
	}
}

func TestSerializeRoundTripContent(t *testing.T) {
	doc := document.NewBlank(612, 792)
	if err := doc.AppendContent(0, []byte("q 1 0 0 1 5 5 cm Q")); err != nil {
		t.Fatalf("AppendContent failed: %v", err)
	}

	data, err := Serialize(doc, Options{Now: fixedNow})
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}

	reopened, err := document.Open(data)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if reopened.PageCount() != 1 {
		t.Fatalf("Expected 1 page, got %d", reopened.PageCount())
	}

	page, _ := reopened.Page(0)
	contents := reopened.ResolveArray(page.Dict.Get("Contents"))
	if len(contents) != 1 {
		t.Fatalf("Expected one content stream, got %d", len(contents))
	}
	stream := reopened.ResolveStream(contents[0])
	got, ok := stream.Content()
	if !ok || !bytes.Contains(got, []byte("1 0 0 1 5 5 cm")) {
		t.Errorf("Expected drawn content, got '%s'", got)
	}
}

func TestSerializeKeepsCreationDate(t *testing.T) {
	doc := document.NewBlank(612, 792)
	first, err := Serialize(doc, Options{Now: fixedNow})
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}

	reopened, err := document.Open(first)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	second, err := Serialize(reopened, Options{Now: fixedNow.Add(48 * time.Hour)})
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}

	r, err := reader.NewPdfFileReaderFromBytes(second)
	if err != nil {
		t.Fatalf("Output does not parse: %v", err)
	}
	if s, _ := r.Info.GetString("CreationDate"); s != "D:20250115103000+00'00'" {
		t.Errorf("CreationDate should survive, got '%s'", s)
	}
	if s, _ := r.Info.GetString("ModDate"); s != "D:20250117103000+00'00'" {
		t.Errorf("ModDate should advance, got '%s'", s)
	}
}
