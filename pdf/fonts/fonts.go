// Package fonts provides the fonts used to draw contract text: the standard
// Helvetica pair and embedded TrueType programs.
package fonts

import (
	"errors"

	"github.com/georgepadayatti/contractpdf/pdf/document"
	"github.com/georgepadayatti/contractpdf/pdf/generic"
)

// Common errors
var (
	ErrInvalidFont       = errors.New("invalid font data")
	ErrUnsupportedFormat = errors.New("unsupported font format")
	ErrForeignDocument   = errors.New("font belongs to another document")
)

// FontType represents the type of a PDF font.
type FontType string

const (
	FontTypeType1   FontType = "Type1"
	FontTypeType0   FontType = "Type0"
	FontTypeCIDFont FontType = "CIDFontType2"
)

// FontMetrics holds the vertical metrics used to place text, in 1000 units
// per em.
type FontMetrics struct {
	Ascender  float64
	Descender float64
	CapHeight float64
	// Font bounding box [xMin, yMin, xMax, yMax]
	BBox [4]float64
}

// LineHeight returns the ascender-to-descender distance at fontSize.
func (m FontMetrics) LineHeight(fontSize float64) float64 {
	return (m.Ascender - m.Descender) * fontSize / 1000
}

// Font is a font that can be measured and drawn onto a document.
type Font interface {
	// Name returns the PostScript name.
	Name() string
	// Type returns the font type.
	Type() FontType
	// Metrics returns the vertical metrics.
	Metrics() FontMetrics
	// Encode converts text to the byte codes shown by Tj.
	Encode(text string) []byte
	// Missing returns the distinct runes of text that Encode cannot
	// represent, in order of first use.
	Missing(text string) []rune
	// Width returns the advance width of text at size, in points.
	Width(text string, size float64) float64
	// Multibyte reports whether codes are two bytes wide.
	Multibyte() bool
	// Resource returns the font dictionary reference in doc, creating it on
	// first use.
	Resource(doc *document.Document) (generic.Reference, error)
}

// Pair holds the two weights used by a contract.
type Pair struct {
	Regular Font
	Bold    Font

	embedder *Embedder
}

// Finalize writes the width and ToUnicode data of every embedded font in the
// pair. It must run after the last Encode and before serialization.
func (p Pair) Finalize() error {
	if p.embedder == nil {
		return nil
	}
	return p.embedder.Finalize()
}

// Source tells where a resolved font came from.
type Source string

const (
	SourceStandard Source = "standard"
	SourceEmbedded Source = "embedded"
	SourceAliased  Source = "aliased"
)

// Resolution reports how each weight of a Pair was obtained.
type Resolution struct {
	Regular Source `json:"regular" yaml:"regular"`
	Bold    Source `json:"bold" yaml:"bold"`
	// Fallbacks counts weights whose bytes were supplied but could not be
	// embedded.
	Fallbacks int `json:"fallbacks" yaml:"fallbacks"`
}
