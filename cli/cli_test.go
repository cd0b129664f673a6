package cli

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/georgepadayatti/contractpdf/contract"
	"github.com/georgepadayatti/contractpdf/pdf/document"
)

func writeSignature(t *testing.T, dir string) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 100, 50))
	for y := 0; y < 50; y++ {
		for x := 0; x < 100; x++ {
			img.Set(x, y, color.NRGBA{B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "signature.png")
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	app := New().WithOutput(&stdout, &stderr)
	err := app.ExecuteWithArgs(context.Background(), append([]string{"--env-file", filepath.Join(t.TempDir(), "none.env")}, args...))
	return stdout.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.Contains(out, "contractpdf version") {
		t.Errorf("Expected version output, got %q", out)
	}
}

func TestGenerate(t *testing.T) {
	dir := t.TempDir()
	sig := writeSignature(t, dir)
	out := filepath.Join(dir, "contract.pdf")

	stdout, err := run(t, "generate", "--signature", sig, "--out", out,
		"--field", "legal-name=maría gómez", "--field", "id-number=12345678Z", "--print-layout")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("Expected output file, got %v", err)
	}
	doc, err := document.Open(data)
	if err != nil {
		t.Fatalf("Expected valid PDF, got %v", err)
	}
	if doc.PageCount() != 1 {
		t.Errorf("Expected 1 page, got %d", doc.PageCount())
	}
	if !strings.Contains(stdout, "layout:") || !strings.Contains(stdout, "fallback") {
		t.Errorf("Expected YAML layout with fallback source, got %q", stdout)
	}

	info, err := os.Stat(out)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0644 {
		t.Errorf("Expected mode 0644, got %v", info.Mode().Perm())
	}
}

func TestGenerateMissingName(t *testing.T) {
	dir := t.TempDir()
	sig := writeSignature(t, dir)

	_, err := run(t, "generate", "--signature", sig, "--out", filepath.Join(dir, "c.pdf"))
	if err == nil || !strings.Contains(err.Error(), "missing required fields") {
		t.Errorf("Expected missing required fields, got %v", err)
	}
}

func TestParseFields(t *testing.T) {
	tests := []struct {
		name    string
		pairs   []string
		want    contract.Fields
		wantErr bool
	}{
		{"empty", nil, contract.Fields{}, false},
		{"values", []string{"legal-name=Ana", "city=Lugo", "street=Rúa=Nova"}, contract.Fields{LegalName: "Ana", City: "Lugo", Street: "Rúa=Nova"}, false},
		{"no equals", []string{"legal-name"}, contract.Fields{}, true},
		{"unknown key", []string{"nickname=x"}, contract.Fields{}, true},
	}

	for _, tt := range tests {
		got, err := parseFields(tt.pairs)
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: expected error %v, got %v", tt.name, tt.wantErr, err)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("%s: expected %+v, got %+v", tt.name, tt.want, got)
		}
	}
}

func buildPDF(objects ...string) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n")
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

func TestFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "template.pdf")
	if err := os.WriteFile(path, buildPDF(
		"<< /Type /Catalog /Pages 2 0 R /AcroForm 5 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 /MediaBox [0 0 612 792] >>",
		"<< /Type /Page /Parent 2 0 R /Annots [4 0 R] >>",
		"<< /Type /Annot /Subtype /Widget /FT /Tx /T (nombre) /Rect [100 600 300 620] /P 3 0 R >>",
		"<< /Fields [4 0 R] >>",
	), 0644); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, "fields", "--template", path)
	if err != nil {
		t.Fatalf("fields failed: %v", err)
	}
	if !strings.Contains(out, "nombre") || !strings.Contains(out, "Tx") {
		t.Errorf("Expected the nombre text field, got %q", out)
	}
	if !strings.Contains(out, "200") || !strings.Contains(out, "20") {
		t.Errorf("Expected the widget size, got %q", out)
	}
}

func TestConfigErrorsSurface(t *testing.T) {
	dir := t.TempDir()
	sig := writeSignature(t, dir)
	_, err := run(t, "--config", filepath.Join(dir, "missing.yaml"), "generate",
		"--signature", sig, "--field", "legal-name=Ana", "--out", filepath.Join(dir, "c.pdf"))
	if err == nil {
		t.Error("Expected error")
	}
}
