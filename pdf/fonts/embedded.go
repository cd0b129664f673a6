package fonts

import (
	"bytes"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"unicode/utf16"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/image/font"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"

	"github.com/georgepadayatti/contractpdf/pdf/document"
	"github.com/georgepadayatti/contractpdf/pdf/filters"
	"github.com/georgepadayatti/contractpdf/pdf/generic"
)

// Glyph metrics are read at 1000 ppem so that advances come out in PDF glyph
// space units.
var glyphSpacePPEM = fixed.I(1000)

// Program is a parsed TrueType font program. Programs are immutable and may be
// shared between documents.
type Program struct {
	Digest         [32]byte
	PostScriptName string

	data    []byte
	font    *sfnt.Font
	metrics FontMetrics
}

// ParseProgram parses TrueType font bytes. OpenType CFF and collections are
// rejected.
func ParseProgram(data []byte) (*Program, error) {
	if len(data) < 12 {
		return nil, ErrInvalidFont
	}
	switch string(data[:4]) {
	case "\x00\x01\x00\x00", "true":
	case "OTTO", "ttcf":
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, data[:4])
	default:
		return nil, ErrInvalidFont
	}

	owned := append([]byte(nil), data...)
	f, err := sfnt.Parse(owned)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFont, err)
	}

	var buf sfnt.Buffer
	p := &Program{
		Digest: blake2b.Sum256(data),
		data:   owned,
		font:   f,
	}
	if name, err := f.Name(&buf, sfnt.NameIDPostScript); err == nil {
		p.PostScriptName = sanitizeName(name)
	}
	if p.PostScriptName == "" {
		p.PostScriptName = "EmbeddedFont"
	}

	m, err := f.Metrics(&buf, glyphSpacePPEM, font.HintingNone)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFont, err)
	}
	p.metrics = FontMetrics{
		Ascender:  units(m.Ascent),
		Descender: -units(m.Descent),
		CapHeight: units(m.CapHeight),
	}
	if bounds, err := f.Bounds(&buf, glyphSpacePPEM, font.HintingNone); err == nil {
		// sfnt bounds are y-down
		p.metrics.BBox = [4]float64{
			units(bounds.Min.X), -units(bounds.Max.Y),
			units(bounds.Max.X), -units(bounds.Min.Y),
		}
	}
	if p.metrics.CapHeight == 0 {
		p.metrics.CapHeight = p.metrics.Ascender
	}
	return p, nil
}

func units(v fixed.Int26_6) float64 {
	return float64(v) / 64
}

func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_', r == '+':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ProgramCache holds parsed programs keyed by the BLAKE2b digest of their
// bytes. It is safe for concurrent use.
type ProgramCache struct {
	mu       sync.RWMutex
	programs map[[32]byte]*Program
}

// NewProgramCache creates an empty cache.
func NewProgramCache() *ProgramCache {
	return &ProgramCache{programs: make(map[[32]byte]*Program)}
}

// Load returns the cached program for data, parsing it on first use. Parse
// failures are not cached.
func (c *ProgramCache) Load(data []byte) (*Program, error) {
	key := blake2b.Sum256(data)

	c.mu.RLock()
	p, ok := c.programs[key]
	c.mu.RUnlock()
	if ok {
		return p, nil
	}

	p, err := ParseProgram(data)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.programs[key]; ok {
		return existing, nil
	}
	c.programs[key] = p
	return p, nil
}

// Len returns the number of cached programs.
func (c *ProgramCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.programs)
}

// Embedder owns the embedded font objects of one document.
type Embedder struct {
	doc   *document.Document
	fonts []*EmbeddedFont
}

// NewEmbedder registers font embedding for doc. It fails when the document is
// being mutated elsewhere.
func NewEmbedder(doc *document.Document) (*Embedder, error) {
	if doc == nil {
		return nil, fmt.Errorf("failed to register font embedder: no document")
	}
	if err := doc.Mutate(func(*document.Tx) error { return nil }); err != nil {
		return nil, fmt.Errorf("failed to register font embedder: %w", err)
	}
	return &Embedder{doc: doc}, nil
}

// Embed returns a font drawing with program in the embedder's document.
func (e *Embedder) Embed(program *Program) *EmbeddedFont {
	f := &EmbeddedFont{
		program:  program,
		embedder: e,
		used:     make(map[sfnt.GlyphIndex]rune),
		widths:   make(map[sfnt.GlyphIndex]int),
	}
	e.fonts = append(e.fonts, f)
	return f
}

func (e *Embedder) drop(f *EmbeddedFont) {
	for i, g := range e.fonts {
		if g == f {
			e.fonts = append(e.fonts[:i], e.fonts[i+1:]...)
			return
		}
	}
}

// Finalize writes /W and ToUnicode for the glyphs each font has encoded.
func (e *Embedder) Finalize() error {
	return e.doc.Mutate(func(tx *document.Tx) error {
		for _, f := range e.fonts {
			if err := f.finalize(tx); err != nil {
				return err
			}
		}
		return nil
	})
}

// EmbeddedFont draws text with an embedded TrueType program as a Type0 font
// with Identity-H encoding.
type EmbeddedFont struct {
	program  *Program
	embedder *Embedder

	mu     sync.Mutex
	buf    sfnt.Buffer
	used   map[sfnt.GlyphIndex]rune
	widths map[sfnt.GlyphIndex]int

	type0     generic.Reference
	cidFont   generic.Reference
	toUnicode generic.Reference
}

// Name returns the PostScript name.
func (f *EmbeddedFont) Name() string { return f.program.PostScriptName }

// Type returns the font type.
func (f *EmbeddedFont) Type() FontType { return FontTypeType0 }

// Metrics returns the font metrics.
func (f *EmbeddedFont) Metrics() FontMetrics { return f.program.metrics }

// Multibyte is true: Identity-H codes are glyph ids.
func (f *EmbeddedFont) Multibyte() bool { return true }

// Program returns the underlying font program.
func (f *EmbeddedFont) Program() *Program { return f.program }

func (f *EmbeddedFont) glyph(r rune) (sfnt.GlyphIndex, int) {
	gid, err := f.program.font.GlyphIndex(&f.buf, r)
	if err != nil {
		gid = 0
	}
	if w, ok := f.widths[gid]; ok {
		return gid, w
	}
	adv, err := f.program.font.GlyphAdvance(&f.buf, gid, glyphSpacePPEM, font.HintingNone)
	w := 0
	if err == nil {
		w = int(units(adv) + 0.5)
	}
	f.widths[gid] = w
	return gid, w
}

// Encode maps text to two-byte glyph ids. Unmapped runes use glyph 0.
func (f *EmbeddedFont) Encode(text string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]byte, 0, 2*len(text))
	for _, r := range text {
		gid, _ := f.glyph(r)
		if _, seen := f.used[gid]; !seen && gid != 0 {
			f.used[gid] = r
		}
		out = append(out, byte(gid>>8), byte(gid))
	}
	return out
}

// Missing returns the runes the program has no glyph for.
func (f *EmbeddedFont) Missing(text string) []rune {
	f.mu.Lock()
	defer f.mu.Unlock()

	var missing []rune
	for _, r := range text {
		gid, err := f.program.font.GlyphIndex(&f.buf, r)
		if (err != nil || gid == 0) && !slices.Contains(missing, r) {
			missing = append(missing, r)
		}
	}
	return missing
}

// Width measures text at size points.
func (f *EmbeddedFont) Width(text string, size float64) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	total := 0
	for _, r := range text {
		_, w := f.glyph(r)
		total += w
	}
	return float64(total) * size / 1000
}

// Resource returns the Type0 font dictionary, adding the font program and
// descriptor to doc on first use.
func (f *EmbeddedFont) Resource(doc *document.Document) (generic.Reference, error) {
	if doc != f.embedder.doc {
		return generic.Reference{}, ErrForeignDocument
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.type0.IsZero() {
		return f.type0, nil
	}

	fileDict := generic.NewDictionary()
	fileDict.Set("Length1", generic.IntegerObject(len(f.program.data)))
	fontFile, err := filters.NewFlateStream(fileDict, f.program.data)
	if err != nil {
		return generic.Reference{}, fmt.Errorf("failed to compress font program: %w", err)
	}

	err = doc.Mutate(func(tx *document.Tx) error {
		m := f.program.metrics
		name := generic.NameObject(f.program.PostScriptName)

		descriptor := generic.NewDictionary()
		descriptor.Set("Type", generic.NameObject("FontDescriptor"))
		descriptor.Set("FontName", name)
		descriptor.Set("Flags", generic.IntegerObject(32))
		descriptor.Set("FontBBox", generic.NumberArray(m.BBox[:]...))
		descriptor.Set("ItalicAngle", generic.IntegerObject(0))
		descriptor.Set("Ascent", generic.RealObject(m.Ascender))
		descriptor.Set("Descent", generic.RealObject(m.Descender))
		descriptor.Set("CapHeight", generic.RealObject(m.CapHeight))
		descriptor.Set("StemV", generic.IntegerObject(80))
		descriptor.Set("FontFile2", tx.AddObject(fontFile))

		sysInfo := generic.NewDictionary()
		sysInfo.Set("Registry", generic.NewLiteralString("Adobe"))
		sysInfo.Set("Ordering", generic.NewLiteralString("Identity"))
		sysInfo.Set("Supplement", generic.IntegerObject(0))

		cid := generic.NewDictionary()
		cid.Set("Type", generic.NameObject("Font"))
		cid.Set("Subtype", generic.NameObject(FontTypeCIDFont))
		cid.Set("BaseFont", name)
		cid.Set("CIDSystemInfo", sysInfo)
		cid.Set("FontDescriptor", tx.AddObject(descriptor))
		cid.Set("CIDToGIDMap", generic.NameObject("Identity"))
		cid.Set("DW", generic.IntegerObject(1000))
		f.cidFont = tx.AddObject(cid)

		f.toUnicode = tx.AddObject(generic.NewStream(nil, nil))

		type0 := generic.NewDictionary()
		type0.Set("Type", generic.NameObject("Font"))
		type0.Set("Subtype", generic.NameObject(FontTypeType0))
		type0.Set("BaseFont", name)
		type0.Set("Encoding", generic.NameObject("Identity-H"))
		type0.Set("DescendantFonts", generic.NewArray(f.cidFont))
		type0.Set("ToUnicode", f.toUnicode)
		f.type0 = tx.AddObject(type0)
		return nil
	})
	if err != nil {
		f.type0 = generic.Reference{}
		return generic.Reference{}, err
	}
	return f.type0, nil
}

func (f *EmbeddedFont) finalize(tx *document.Tx) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.type0.IsZero() {
		return nil
	}

	gids := make([]int, 0, len(f.used))
	for gid := range f.used {
		gids = append(gids, int(gid))
	}
	sort.Ints(gids)

	if cid, ok := tx.Document().Object(f.cidFont).(*generic.DictionaryObject); ok {
		cid.Set("W", widthArray(gids, f.widths))
	}

	cmap, err := filters.NewFlateStream(nil, toUnicodeCMap(gids, f.used))
	if err != nil {
		return fmt.Errorf("failed to encode ToUnicode map: %w", err)
	}
	tx.SetObject(f.toUnicode, cmap)
	return nil
}

// widthArray groups consecutive glyph ids as c [w1 w2 ...] runs.
func widthArray(gids []int, widths map[sfnt.GlyphIndex]int) generic.ArrayObject {
	var out generic.ArrayObject
	for i := 0; i < len(gids); {
		j := i + 1
		for j < len(gids) && gids[j] == gids[j-1]+1 {
			j++
		}
		run := make(generic.ArrayObject, 0, j-i)
		for _, gid := range gids[i:j] {
			run = append(run, generic.IntegerObject(widths[sfnt.GlyphIndex(gid)]))
		}
		out = append(out, generic.IntegerObject(gids[i]), run)
		i = j
	}
	return out
}

func toUnicodeCMap(gids []int, used map[sfnt.GlyphIndex]rune) []byte {
	var buf bytes.Buffer
	buf.WriteString("/CIDInit /ProcSet findresource begin\n12 dict begin\nbegincmap\n")
	buf.WriteString("/CIDSystemInfo << /Registry (Adobe) /Ordering (UCS) /Supplement 0 >> def\n")
	buf.WriteString("/CMapName /Adobe-Identity-UCS def\n/CMapType 2 def\n")
	buf.WriteString("1 begincodespacerange\n<0000> <FFFF>\nendcodespacerange\n")

	for start := 0; start < len(gids); start += 100 {
		end := min(start+100, len(gids))
		fmt.Fprintf(&buf, "%d beginbfchar\n", end-start)
		for _, gid := range gids[start:end] {
			fmt.Fprintf(&buf, "<%04X> <", gid)
			for _, u := range utf16.Encode([]rune{used[sfnt.GlyphIndex(gid)]}) {
				fmt.Fprintf(&buf, "%04X", u)
			}
			buf.WriteString(">\n")
		}
		buf.WriteString("endbfchar\n")
	}

	buf.WriteString("endcmap\nCMapName currentdict /CMap defineresource pop\nend\nend\n")
	return buf.Bytes()
}
