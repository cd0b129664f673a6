package document

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/georgepadayatti/contractpdf/pdf/generic"
)

// buildPDF lays out objects 1..n with a classic xref table.
func buildPDF(objects ...string) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, body := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

// twoPageTemplate shares one resource dictionary through the page tree.
func twoPageTemplate() []byte {
	return buildPDF(
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R 4 0 R] /Count 2 /MediaBox [0 0 595 842] /Resources 5 0 R /Rotate 90 >>",
		"<< /Type /Page /Parent 2 0 R /Contents 6 0 R >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 300 400] >>",
		"<< /Font << /F1 << /Type /Font /Subtype /Type1 /BaseFont /Helvetica >> >> >>",
		"<< /Length 5 >>\nstream\nBT ET\nendstream",
	)
}

func TestNewBlank(t *testing.T) {
	doc := NewBlank(0, 0)
	if doc.PageCount() != 1 {
		t.Fatalf("Expected 1 page, got %d", doc.PageCount())
	}
	page, _ := doc.Page(0)
	if page.MediaBox.Width() != 612 || page.MediaBox.Height() != 792 {
		t.Errorf("Expected Letter size, got %+v", page.MediaBox)
	}
	if doc.Catalog().Has("AcroForm") {
		t.Error("Blank document should have no form")
	}
	if doc.Info() != nil {
		t.Error("Blank document should have no Info dictionary")
	}
}

func TestOpenInheritsAttributes(t *testing.T) {
	doc, err := Open(twoPageTemplate())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if doc.PageCount() != 2 {
		t.Fatalf("Expected 2 pages, got %d", doc.PageCount())
	}

	first, _ := doc.Page(0)
	if first.MediaBox.Width() != 595 || first.Rotate != 90 {
		t.Errorf("Expected inherited 595 wide rotated page, got %+v rotate %d", first.MediaBox, first.Rotate)
	}
	if doc.ResolveDict(first.Dict.Get("Resources")) == nil {
		t.Error("Expected inherited resources on page")
	}

	second, _ := doc.Page(1)
	if second.MediaBox.Width() != 300 {
		t.Errorf("Own MediaBox should win, got %+v", second.MediaBox)
	}
	if idx, ok := doc.PageIndex(second.Ref); !ok || idx != 1 {
		t.Errorf("PageIndex = %d, %v", idx, ok)
	}

	if _, err := doc.Page(2); !errors.Is(err, ErrPageIndex) {
		t.Errorf("Expected ErrPageIndex, got %v", err)
	}
}

func TestOpenRejectsGarbage(t *testing.T) {
	if _, err := Open([]byte("definitely not a pdf")); err == nil {
		t.Error("Expected error for garbage input")
	}

	noPages := buildPDF(
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [] /Count 0 >>",
	)
	if _, err := Open(noPages); !errors.Is(err, ErrNoPages) {
		t.Errorf("Expected ErrNoPages, got %v", err)
	}

	cyclic := buildPDF(
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [2 0 R] /Count 1 >>",
	)
	if _, err := Open(cyclic); err == nil {
		t.Error("Expected error for cyclic page tree")
	}
}

func TestAddResourceDoesNotTouchSharedDictionary(t *testing.T) {
	doc, err := Open(twoPageTemplate())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	img, _ := doc.AddObject(generic.NewStream(nil, []byte{0}))
	name1, err := doc.AddResource(0, "XObject", "Im", img)
	if err != nil {
		t.Fatalf("AddResource failed: %v", err)
	}
	name2, err := doc.AddResource(0, "XObject", "Im", img)
	if err != nil {
		t.Fatalf("AddResource failed: %v", err)
	}
	if name1 == name2 {
		t.Errorf("Resource names should be unique, got %s twice", name1)
	}

	shared := doc.ResolveDict(generic.NewReference(5, 0))
	if shared.Has("XObject") {
		t.Error("Shared resource dictionary should not be modified")
	}
	second, _ := doc.Page(1)
	if doc.ResolveDict(second.Dict.Get("Resources")).Has("XObject") {
		t.Error("Other pages should not see the new resource")
	}

	first, _ := doc.Page(0)
	res := doc.ResolveDict(first.Dict.Get("Resources"))
	if res.GetDict("Font") == nil {
		t.Error("Existing fonts should be kept on the page copy")
	}
}

func TestAppendContentWrapsOnce(t *testing.T) {
	doc, err := Open(twoPageTemplate())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if err := doc.AppendContent(0, []byte("0 0 m")); err != nil {
		t.Fatalf("AppendContent failed: %v", err)
	}
	if err := doc.AppendContent(0, []byte("1 1 m")); err != nil {
		t.Fatalf("AppendContent failed: %v", err)
	}

	page, _ := doc.Page(0)
	contents := page.Dict.GetArray("Contents")
	// q, original, Q, overlay, overlay
	if len(contents) != 5 {
		t.Fatalf("Expected 5 content streams, got %d", len(contents))
	}
	open, _ := doc.ResolveStream(contents[0]).Content()
	if string(open) != "q\n" {
		t.Errorf("Expected opening q, got %q", open)
	}
	closing, _ := doc.ResolveStream(contents[2]).Content()
	if string(closing) != "\nQ\n" {
		t.Errorf("Expected closing Q, got %q", closing)
	}

	// A page without content gets no wrapper.
	if err := doc.AppendContent(1, []byte("0 0 m")); err != nil {
		t.Fatalf("AppendContent failed: %v", err)
	}
	second, _ := doc.Page(1)
	if n := len(second.Dict.GetArray("Contents")); n != 1 {
		t.Errorf("Expected 1 content stream, got %d", n)
	}
}

func TestConcurrentMutationRejected(t *testing.T) {
	doc := NewBlank(612, 792)
	before := doc.ObjectCount()

	err := doc.Mutate(func(tx *Tx) error {
		if _, err := doc.AddObject(generic.IntegerObject(1)); !errors.Is(err, ErrConcurrentMutation) {
			t.Errorf("Expected ErrConcurrentMutation, got %v", err)
		}
		if err := doc.AppendContent(0, []byte("x")); !errors.Is(err, ErrConcurrentMutation) {
			t.Errorf("Expected ErrConcurrentMutation, got %v", err)
		}
		tx.AddObject(generic.IntegerObject(2))
		return nil
	})
	if err != nil {
		t.Fatalf("Mutate failed: %v", err)
	}

	if doc.ObjectCount() != before+1 {
		t.Errorf("Expected exactly one new object, got %d", doc.ObjectCount()-before)
	}
	if _, err := doc.AddObject(generic.IntegerObject(3)); err != nil {
		t.Errorf("Guard should be released after Mutate, got %v", err)
	}
}

func TestMutateReleasesOnPanic(t *testing.T) {
	doc := NewBlank(612, 792)
	func() {
		defer func() { _ = recover() }()
		_ = doc.Mutate(func(tx *Tx) error { panic("boom") })
	}()
	if _, err := doc.AddObject(generic.IntegerObject(1)); err != nil {
		t.Errorf("Guard should be released after a panic, got %v", err)
	}
}
