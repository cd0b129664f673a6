package fonts

import (
	"slices"
	"sync"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/unicode/norm"

	"github.com/georgepadayatti/contractpdf/pdf/document"
	"github.com/georgepadayatti/contractpdf/pdf/generic"
)

// StandardName is the name of a base-14 font.
type StandardName string

// Standard fonts used by the engine
const (
	Helvetica     StandardName = "Helvetica"
	HelveticaBold StandardName = "Helvetica-Bold"
)

// IsStandardFont reports whether name is one of the supported standard fonts.
func IsStandardFont(name string) bool {
	switch StandardName(name) {
	case Helvetica, HelveticaBold:
		return true
	}
	return false
}

// AFM advance widths for codes 32..126.
var helveticaWidths = [95]uint16{
	278, 278, 355, 556, 556, 889, 667, 191, 333, 333, 389, 584, 278, 333, 278, 278,
	556, 556, 556, 556, 556, 556, 556, 556, 556, 556, 278, 278, 584, 584, 584, 556,
	1015, 667, 667, 722, 722, 667, 611, 778, 722, 278, 500, 667, 556, 833, 722, 778,
	667, 778, 722, 667, 611, 722, 667, 944, 667, 667, 611, 278, 278, 278, 469, 556,
	333, 556, 556, 500, 556, 556, 278, 556, 556, 222, 222, 500, 222, 833, 556, 556,
	556, 556, 333, 500, 278, 556, 500, 722, 500, 500, 500, 334, 260, 334, 584,
}

var helveticaBoldWidths = [95]uint16{
	278, 333, 474, 556, 556, 889, 722, 238, 333, 333, 389, 584, 278, 333, 278, 278,
	556, 556, 556, 556, 556, 556, 556, 556, 556, 556, 333, 333, 584, 584, 584, 611,
	975, 722, 722, 722, 722, 667, 611, 778, 722, 278, 556, 722, 611, 833, 722, 778,
	667, 778, 722, 667, 611, 722, 667, 944, 667, 667, 611, 333, 278, 333, 584, 556,
	333, 556, 611, 556, 611, 556, 333, 611, 611, 278, 278, 556, 278, 889, 611, 611,
	611, 611, 389, 556, 333, 611, 556, 778, 556, 556, 500, 389, 280, 389, 584,
}

var helveticaMetrics = FontMetrics{
	Ascender:  718,
	Descender: -207,
	CapHeight: 718,
	BBox:      [4]float64{-166, -225, 1000, 931},
}

var helveticaBoldMetrics = FontMetrics{
	Ascender:  718,
	Descender: -207,
	CapHeight: 718,
	BBox:      [4]float64{-170, -228, 1003, 962},
}

// StandardFont is a non-embedded base-14 font drawn with WinAnsiEncoding.
// An instance registers itself in at most one document.
type StandardFont struct {
	name    StandardName
	widths  *[95]uint16
	metrics FontMetrics

	mu  sync.Mutex
	doc *document.Document
	ref generic.Reference
}

// NewStandardFont creates a standard font. Names other than Helvetica-Bold
// fall back to Helvetica.
func NewStandardFont(name StandardName) *StandardFont {
	if name == HelveticaBold {
		return &StandardFont{name: name, widths: &helveticaBoldWidths, metrics: helveticaBoldMetrics}
	}
	return &StandardFont{name: Helvetica, widths: &helveticaWidths, metrics: helveticaMetrics}
}

// Name returns the font name.
func (f *StandardFont) Name() string { return string(f.name) }

// Type returns the font type.
func (f *StandardFont) Type() FontType { return FontTypeType1 }

// Metrics returns the font metrics.
func (f *StandardFont) Metrics() FontMetrics { return f.metrics }

// Multibyte is false: WinAnsi codes are single bytes.
func (f *StandardFont) Multibyte() bool { return false }

// Encode encodes text as WinAnsi. Runes outside the code page become '?'.
func (f *StandardFont) Encode(text string) []byte {
	out := make([]byte, 0, len(text))
	for _, r := range text {
		b, ok := charmap.Windows1252.EncodeRune(r)
		if !ok {
			b = '?'
		}
		out = append(out, b)
	}
	return out
}

// Missing returns the runes outside WinAnsi.
func (f *StandardFont) Missing(text string) []rune {
	var missing []rune
	for _, r := range text {
		if _, ok := charmap.Windows1252.EncodeRune(r); !ok && !slices.Contains(missing, r) {
			missing = append(missing, r)
		}
	}
	return missing
}

// Width measures text at size points.
func (f *StandardFont) Width(text string, size float64) float64 {
	var total float64
	for _, b := range f.Encode(text) {
		total += f.codeWidth(b)
	}
	return total * size / 1000
}

func (f *StandardFont) codeWidth(b byte) float64 {
	if b >= 32 && b <= 126 {
		return float64(f.widths[b-32])
	}
	// Accented letters share the advance of their base letter.
	r := charmap.Windows1252.DecodeByte(b)
	for _, base := range norm.NFD.String(string(r)) {
		if base >= 32 && base <= 126 {
			return float64(f.widths[base-32])
		}
		break
	}
	return 556
}

// Resource returns the Type1 font dictionary in doc.
func (f *StandardFont) Resource(doc *document.Document) (generic.Reference, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.doc != nil {
		if f.doc != doc {
			return generic.Reference{}, ErrForeignDocument
		}
		return f.ref, nil
	}

	dict := generic.NewDictionary()
	dict.Set("Type", generic.NameObject("Font"))
	dict.Set("Subtype", generic.NameObject("Type1"))
	dict.Set("BaseFont", generic.NameObject(f.name))
	dict.Set("Encoding", generic.NameObject("WinAnsiEncoding"))

	ref, err := doc.AddObject(dict)
	if err != nil {
		return generic.Reference{}, err
	}
	f.doc, f.ref = doc, ref
	return ref, nil
}
