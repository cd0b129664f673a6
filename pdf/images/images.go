// Package images decodes signature images and embeds them as image XObjects.
package images

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/disintegration/imaging"

	"github.com/georgepadayatti/contractpdf/pdf/document"
	"github.com/georgepadayatti/contractpdf/pdf/filters"
	"github.com/georgepadayatti/contractpdf/pdf/generic"
)

// Common errors
var (
	ErrInvalidImage      = errors.New("invalid image data")
	ErrDecodeFailed      = errors.New("image decode failed")
	ErrInvalidDimensions = errors.New("invalid image dimensions")
	ErrForeignDocument   = errors.New("image belongs to another document")
)

// ImageFormat represents an image format.
type ImageFormat string

const (
	FormatPNG  ImageFormat = "PNG"
	FormatJPEG ImageFormat = "JPEG"
	FormatGIF  ImageFormat = "GIF"
	FormatBMP  ImageFormat = "BMP"
	FormatTIFF ImageFormat = "TIFF"
)

// DefaultMaxDimension bounds the longest side of an embedded signature.
const DefaultMaxDimension = 2000

// DecodeOptions controls signature decoding.
type DecodeOptions struct {
	// MaxDimension downsamples larger images, preserving aspect ratio. Zero
	// means DefaultMaxDimension; negative disables downsampling.
	MaxDimension int
}

// Signature is a decoded handwritten signature. The pixel data is never
// modified after decoding.
type Signature struct {
	// Width of the source image in pixels
	Width int
	// Height of the source image in pixels
	Height int
	// PixelWidth and PixelHeight are the embedded sample dimensions, smaller
	// than Width and Height when the source was downsampled.
	PixelWidth  int
	PixelHeight int
	// Format of the source bytes
	Format ImageFormat
	// HasAlpha reports whether any pixel is not fully opaque.
	HasAlpha bool

	pixels *image.NRGBA

	mu  sync.Mutex
	doc *document.Document
	ref generic.Reference
}

// Decode decodes signature bytes with default options.
func Decode(data []byte) (*Signature, error) {
	return DecodeWithOptions(data, DecodeOptions{})
}

// DecodeWithOptions decodes PNG, JPEG, GIF, BMP or TIFF bytes. JPEG EXIF
// orientation is applied.
func DecodeWithOptions(data []byte, opts DecodeOptions) (*Signature, error) {
	if len(data) == 0 {
		return nil, ErrInvalidImage
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, ErrInvalidDimensions
	}

	limit := opts.MaxDimension
	if limit == 0 {
		limit = DefaultMaxDimension
	}
	var pixels *image.NRGBA
	if limit > 0 && (bounds.Dx() > limit || bounds.Dy() > limit) {
		pixels = imaging.Fit(img, limit, limit, imaging.Lanczos)
	} else {
		pixels = imaging.Clone(img)
	}

	sig := &Signature{
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
		PixelWidth:  pixels.Bounds().Dx(),
		PixelHeight: pixels.Bounds().Dy(),
		Format:      detectFormat(data),
		pixels:      pixels,
	}
	sig.HasAlpha = hasTransparency(pixels)
	return sig, nil
}

// detectFormat detects the image format from the file header.
func detectFormat(data []byte) ImageFormat {
	switch {
	case bytes.HasPrefix(data, []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}):
		return FormatPNG
	case bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}):
		return FormatJPEG
	case bytes.HasPrefix(data, []byte("GIF87a")), bytes.HasPrefix(data, []byte("GIF89a")):
		return FormatGIF
	case bytes.HasPrefix(data, []byte("BM")):
		return FormatBMP
	case bytes.HasPrefix(data, []byte("II*\x00")), bytes.HasPrefix(data, []byte("MM\x00*")):
		return FormatTIFF
	}
	return ""
}

func hasTransparency(img *image.NRGBA) bool {
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] != 0xFF {
			return true
		}
	}
	return false
}

// planes splits the pixels into RGB samples and an alpha plane.
func (s *Signature) planes() (rgb, alpha []byte) {
	n := s.PixelWidth * s.PixelHeight
	rgb = make([]byte, 0, 3*n)
	if s.HasAlpha {
		alpha = make([]byte, 0, n)
	}
	for y := 0; y < s.PixelHeight; y++ {
		row := s.pixels.Pix[y*s.pixels.Stride : y*s.pixels.Stride+4*s.PixelWidth]
		for x := 0; x < len(row); x += 4 {
			rgb = append(rgb, row[x], row[x+1], row[x+2])
			if s.HasAlpha {
				alpha = append(alpha, row[x+3])
			}
		}
	}
	return rgb, alpha
}

func imageDict(width, height int, colorSpace string) *generic.DictionaryObject {
	dict := generic.NewDictionary()
	dict.Set("Type", generic.NameObject("XObject"))
	dict.Set("Subtype", generic.NameObject("Image"))
	dict.Set("Width", generic.IntegerObject(width))
	dict.Set("Height", generic.IntegerObject(height))
	dict.Set("ColorSpace", generic.NameObject(colorSpace))
	dict.Set("BitsPerComponent", generic.IntegerObject(8))
	return dict
}

// XObject returns the image XObject in doc, adding it on first use. A
// signature can be embedded in one document only.
func (s *Signature) XObject(doc *document.Document) (generic.Reference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc != nil {
		if s.doc != doc {
			return generic.Reference{}, ErrForeignDocument
		}
		return s.ref, nil
	}

	rgb, alpha := s.planes()
	xobj, err := filters.NewFlateStream(imageDict(s.PixelWidth, s.PixelHeight, "DeviceRGB"), rgb)
	if err != nil {
		return generic.Reference{}, fmt.Errorf("failed to encode image samples: %w", err)
	}
	var mask *generic.StreamObject
	if s.HasAlpha {
		mask, err = filters.NewFlateStream(imageDict(s.PixelWidth, s.PixelHeight, "DeviceGray"), alpha)
		if err != nil {
			return generic.Reference{}, fmt.Errorf("failed to encode alpha mask: %w", err)
		}
	}

	var ref generic.Reference
	err = doc.Mutate(func(tx *document.Tx) error {
		if mask != nil {
			xobj.Dictionary.Set("SMask", tx.AddObject(mask))
		}
		ref = tx.AddObject(xobj)
		return nil
	})
	if err != nil {
		return generic.Reference{}, err
	}
	s.doc, s.ref = doc, ref
	return ref, nil
}

// Scaled returns a view of the signature at factor times its source size,
// one pixel per point. Downsampling does not change the drawn size.
func (s *Signature) Scaled(factor float64) View {
	return View{
		Source: s,
		Width:  float64(s.Width) * factor,
		Height: float64(s.Height) * factor,
	}
}

// View is a drawing size derived from a Signature. Views are values; deriving
// one never changes the source or any other view.
type View struct {
	Source *Signature
	Width  float64
	Height float64
}

// Resized returns a view of the same source at width × height.
func (v View) Resized(width, height float64) View {
	v.Width, v.Height = width, height
	return v
}
