package images

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/georgepadayatti/contractpdf/pdf/document"
	"github.com/georgepadayatti/contractpdf/pdf/generic"
)

func createTestPNG(width, height int, alpha uint8) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.NRGBA{R: 10, G: 20, B: 30, A: alpha})
		}
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

func createTestJPEG(width, height int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 200, B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	_ = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90})
	return buf.Bytes()
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		data     []byte
		expected ImageFormat
	}{
		{createTestPNG(1, 1, 255), FormatPNG},
		{createTestJPEG(1, 1), FormatJPEG},
		{[]byte("GIF89a....."), FormatGIF},
		{[]byte("BM.........."), FormatBMP},
		{[]byte("II*\x00...."), FormatTIFF},
		{[]byte("nope"), ""},
	}

	for _, tt := range tests {
		if got := detectFormat(tt.data); got != tt.expected {
			t.Errorf("Expected %q, got %q", tt.expected, got)
		}
	}
}

func TestDecodePNG(t *testing.T) {
	sig, err := Decode(createTestPNG(160, 80, 128))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if sig.Width != 160 || sig.Height != 80 {
		t.Errorf("Expected 160x80, got %dx%d", sig.Width, sig.Height)
	}
	if sig.Format != FormatPNG {
		t.Errorf("Expected PNG, got %s", sig.Format)
	}
	if !sig.HasAlpha {
		t.Error("Expected alpha")
	}
}

func TestDecodeOpaqueJPEG(t *testing.T) {
	sig, err := Decode(createTestJPEG(30, 20))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if sig.HasAlpha {
		t.Error("Expected no alpha for JPEG")
	}
}

func TestDecodeDownsamples(t *testing.T) {
	sig, err := DecodeWithOptions(createTestPNG(400, 100, 255), DecodeOptions{MaxDimension: 200})
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if sig.PixelWidth != 200 || sig.PixelHeight != 50 {
		t.Errorf("Expected 200x50 pixels, got %dx%d", sig.PixelWidth, sig.PixelHeight)
	}
	if sig.Width != 400 || sig.Height != 100 {
		t.Errorf("Expected source size 400x100, got %dx%d", sig.Width, sig.Height)
	}

	view := sig.Scaled(0.6)
	if view.Width != 240 || view.Height != 60 {
		t.Errorf("Expected 240x60 view, got %vx%v", view.Width, view.Height)
	}
}

func TestDownsampledXObjectUsesPixelSize(t *testing.T) {
	doc := document.NewBlank(0, 0)
	sig, err := DecodeWithOptions(createTestPNG(40, 10, 255), DecodeOptions{MaxDimension: 20})
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	ref, err := sig.XObject(doc)
	if err != nil {
		t.Fatalf("XObject failed: %v", err)
	}
	stream := doc.ResolveStream(ref)
	if stream == nil {
		t.Fatal("Expected image stream")
	}
	if w, _ := stream.Dictionary.GetInt("Width"); w != 20 {
		t.Errorf("Expected Width 20, got %d", w)
	}
	if h, _ := stream.Dictionary.GetInt("Height"); h != 5 {
		t.Errorf("Expected Height 5, got %d", h)
	}
}

func TestDecodeErrors(t *testing.T) {
	if _, err := Decode(nil); !errors.Is(err, ErrInvalidImage) {
		t.Errorf("Expected ErrInvalidImage, got %v", err)
	}
	if _, err := Decode([]byte("definitely not an image")); !errors.Is(err, ErrDecodeFailed) {
		t.Errorf("Expected ErrDecodeFailed, got %v", err)
	}
}

func TestScaledViewsAreIndependent(t *testing.T) {
	sig, _ := Decode(createTestPNG(100, 50, 255))

	lateral := sig.Scaled(0.5)
	main := sig.Scaled(0.6)
	fitted := main.Resized(80, 40)

	if lateral.Width != 50 || lateral.Height != 25 {
		t.Errorf("Expected 50x25, got %vx%v", lateral.Width, lateral.Height)
	}
	if main.Width != 60 || main.Height != 30 {
		t.Errorf("Expected 60x30, got %vx%v", main.Width, main.Height)
	}
	if fitted.Width != 80 || fitted.Source != sig {
		t.Errorf("Unexpected resized view %+v", fitted)
	}
	if sig.Width != 100 || sig.Height != 50 {
		t.Errorf("Source changed to %dx%d", sig.Width, sig.Height)
	}
}

func TestXObjectWithMask(t *testing.T) {
	doc := document.NewBlank(0, 0)
	sig, _ := Decode(createTestPNG(4, 2, 100))

	ref, err := sig.XObject(doc)
	if err != nil {
		t.Fatalf("XObject failed: %v", err)
	}
	again, _ := sig.XObject(doc)
	if again != ref {
		t.Error("Expected the image to be added once")
	}

	stream := doc.ResolveStream(ref)
	if stream == nil {
		t.Fatal("Expected image stream")
	}
	if got, _ := stream.Dictionary.GetInt("Width"); got != 4 {
		t.Errorf("Expected width 4, got %d", got)
	}
	data, _ := stream.Content()
	if len(data) != 4*2*3 {
		t.Errorf("Expected %d RGB bytes, got %d", 4*2*3, len(data))
	}
	if data[0] != 10 || data[1] != 20 || data[2] != 30 {
		t.Errorf("Unexpected first pixel %v", data[:3])
	}

	mask := doc.ResolveStream(stream.Dictionary.Get("SMask"))
	if mask == nil {
		t.Fatal("Expected soft mask")
	}
	alpha, _ := mask.Content()
	if len(alpha) != 8 || alpha[0] != 100 {
		t.Errorf("Unexpected alpha plane %v", alpha)
	}
	if mask.Dictionary.GetName("ColorSpace") != "DeviceGray" {
		t.Error("Expected DeviceGray mask")
	}

	if _, err := sig.XObject(document.NewBlank(0, 0)); !errors.Is(err, ErrForeignDocument) {
		t.Errorf("Expected ErrForeignDocument, got %v", err)
	}
}

func TestXObjectOpaqueHasNoMask(t *testing.T) {
	doc := document.NewBlank(0, 0)
	sig, _ := Decode(createTestPNG(2, 2, 255))
	ref, _ := sig.XObject(doc)

	stream := doc.ResolveStream(ref)
	if stream.Dictionary.Has("SMask") {
		t.Error("Expected no SMask for opaque image")
	}
	if _, ok := stream.Dictionary.Get("Filter").(generic.NameObject); !ok {
		t.Error("Expected Flate filter")
	}
}
