// Package reader provides PDF file reading and parsing.
package reader

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/georgepadayatti/contractpdf/pdf/filters"
	"github.com/georgepadayatti/contractpdf/pdf/generic"
)

// Common errors
var (
	ErrInvalidPDF     = errors.New("invalid PDF file")
	ErrNoXRef         = errors.New("no xref found")
	ErrObjectNotFound = errors.New("object not found")
	ErrInvalidXRef    = errors.New("invalid xref")
	ErrEncrypted      = errors.New("PDF is encrypted")
)

// PdfFileReader reads objects out of a complete PDF file. It is not safe for
// concurrent use.
type PdfFileReader struct {
	data []byte

	Version string
	Trailer *generic.DictionaryObject
	XRef    xrefTable
	Root    *generic.DictionaryObject
	Info    *generic.DictionaryObject

	// HasXRefStream reports whether any section of the chain was a stream.
	HasXRefStream bool
	// Rebuilt reports that the xref was reconstructed by scanning the file.
	Rebuilt bool

	objects    map[int]generic.PdfObject
	objStreams map[int]*objectStream
	loading    map[int]bool
}

// NewPdfFileReaderFromBytes parses data. The slice must not be modified while
// the reader is in use.
func NewPdfFileReaderFromBytes(data []byte) (*PdfFileReader, error) {
	r := &PdfFileReader{
		data:       data,
		XRef:       make(xrefTable),
		objects:    make(map[int]generic.PdfObject),
		objStreams: make(map[int]*objectStream),
		loading:    make(map[int]bool),
	}
	if err := r.parse(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *PdfFileReader) parse() error {
	if err := r.parseHeader(); err != nil {
		return err
	}

	if err := r.findAndParseXRef(); err != nil {
		// Damaged or missing xref: fall back to scanning for objects.
		r.XRef = make(xrefTable)
		r.Trailer = nil
		if rebuildErr := r.rebuildXRef(); rebuildErr != nil {
			return fmt.Errorf("%w (rebuild: %v)", err, rebuildErr)
		}
		r.Rebuilt = true
	}

	if r.Trailer.Has("Encrypt") {
		return ErrEncrypted
	}

	return r.loadDocumentStructure()
}

var headerRegex = regexp.MustCompile(`%PDF-(\d+\.\d+)`)

func (r *PdfFileReader) parseHeader() error {
	if len(r.data) < 8 {
		return ErrInvalidPDF
	}
	m := headerRegex.FindSubmatch(r.data[:min(1024, len(r.data))])
	if m == nil {
		return fmt.Errorf("%w: missing PDF header", ErrInvalidPDF)
	}
	r.Version = string(m[1])
	return nil
}

func (r *PdfFileReader) findAndParseXRef() error {
	pos := bytes.LastIndex(r.data, []byte("startxref"))
	if pos == -1 {
		return ErrNoXRef
	}

	p := generic.NewParser(r.data[pos+len("startxref"):])
	obj, err := p.ParseObject()
	if err != nil {
		return fmt.Errorf("%w: missing xref offset", ErrInvalidXRef)
	}
	offset, ok := obj.(generic.IntegerObject)
	if !ok {
		return fmt.Errorf("%w: xref offset is not an integer", ErrInvalidXRef)
	}
	return r.parseXRefChain(int64(offset))
}

func (r *PdfFileReader) parseXRefChain(offset int64) error {
	visited := make(map[int64]bool)

	for {
		if visited[offset] {
			break
		}
		visited[offset] = true

		if offset < 0 || offset >= int64(len(r.data)) {
			return fmt.Errorf("%w: xref offset %d out of bounds", ErrInvalidXRef, offset)
		}
		pos := int(offset)
		for pos < len(r.data) && isSpace(r.data[pos]) {
			pos++
		}

		var (
			trailer *generic.DictionaryObject
			err     error
		)
		if bytes.HasPrefix(r.data[pos:], []byte("xref")) {
			trailer, err = r.parseXRefTable(pos)
			if err == nil {
				// Hybrid files keep compressed entries in a side stream.
				// The table lists those objects as free, so the stream wins.
				if stm, ok := trailer.GetInt("XRefStm"); ok && !visited[stm] {
					visited[stm] = true
					side := make(xrefTable)
					if _, err := r.parseXRefStream(int(stm), side); err != nil {
						return err
					}
					for num, e := range side {
						if cur, ok := r.XRef[num]; !ok || cur.Type == XRefTypeFree {
							r.XRef[num] = e
						}
					}
				}
			}
		} else {
			trailer, err = r.parseXRefStream(pos, r.XRef)
		}
		if err != nil {
			return err
		}

		if r.Trailer == nil {
			r.Trailer = trailer
		}
		prev, ok := trailer.GetInt("Prev")
		if !ok || prev <= 0 {
			break
		}
		offset = prev
	}

	if r.Trailer == nil {
		return ErrNoXRef
	}
	return nil
}

// parseXRefTable parses a classic table at pos and returns its trailer.
func (r *PdfFileReader) parseXRefTable(pos int) (*generic.DictionaryObject, error) {
	p := generic.NewParser(r.data[pos:])
	if err := p.ExpectKeyword("xref"); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidXRef, err)
	}

	for {
		if p.ExpectKeyword("trailer") == nil {
			break
		}

		start, err := p.ParseObject()
		if err != nil {
			return nil, fmt.Errorf("%w: bad subsection header", ErrInvalidXRef)
		}
		count, err := p.ParseObject()
		if err != nil {
			return nil, fmt.Errorf("%w: bad subsection header", ErrInvalidXRef)
		}
		startNum, ok1 := start.(generic.IntegerObject)
		countNum, ok2 := count.(generic.IntegerObject)
		if !ok1 || !ok2 || startNum < 0 || countNum < 0 {
			return nil, fmt.Errorf("%w: bad subsection header", ErrInvalidXRef)
		}

		for i := 0; i < int(countNum); i++ {
			entry, err := parseTableEntry(p)
			if err != nil {
				return nil, err
			}
			r.XRef.add(int(startNum)+i, entry)
		}
	}

	obj, err := p.ParseObject()
	if err != nil {
		return nil, fmt.Errorf("failed to parse trailer: %w", err)
	}
	dict, ok := obj.(*generic.DictionaryObject)
	if !ok {
		return nil, fmt.Errorf("%w: trailer must be dictionary", ErrInvalidXRef)
	}
	return dict, nil
}

// parseTableEntry reads "oooooooooo ggggg n". Entries are parsed as tokens
// so that files with short or long EOL markers still load.
func parseTableEntry(p *generic.Parser) (*XRefEntry, error) {
	off, err := p.ParseObject()
	if err != nil {
		return nil, fmt.Errorf("%w: truncated xref entry", ErrInvalidXRef)
	}
	gen, err := p.ParseObject()
	if err != nil {
		return nil, fmt.Errorf("%w: truncated xref entry", ErrInvalidXRef)
	}
	offInt, ok1 := off.(generic.IntegerObject)
	genInt, ok2 := gen.(generic.IntegerObject)
	if !ok1 || !ok2 {
		return nil, fmt.Errorf("%w: malformed xref entry", ErrInvalidXRef)
	}

	switch {
	case p.ExpectKeyword("n") == nil:
		return &XRefEntry{Type: XRefTypeStandard, Offset: int64(offInt), Generation: int(genInt)}, nil
	case p.ExpectKeyword("f") == nil:
		return &XRefEntry{Type: XRefTypeFree, Offset: int64(offInt), Generation: int(genInt)}, nil
	}
	return nil, fmt.Errorf("%w: xref entry without n/f marker", ErrInvalidXRef)
}

// parseXRefStream parses a cross-reference stream at pos. Its dictionary
// doubles as the trailer.
func (r *PdfFileReader) parseXRefStream(pos int, table xrefTable) (*generic.DictionaryObject, error) {
	if pos < 0 || pos >= len(r.data) {
		return nil, fmt.Errorf("%w: xref stream offset out of bounds", ErrInvalidXRef)
	}
	ind, err := generic.NewParser(r.data[pos:]).ParseIndirectObject()
	if err != nil {
		return nil, fmt.Errorf("failed to parse xref stream: %w", err)
	}
	stream, ok := ind.Object.(*generic.StreamObject)
	if !ok || stream.Dictionary.GetName("Type") != "XRef" {
		return nil, fmt.Errorf("%w: xref stream expected", ErrInvalidXRef)
	}
	r.HasXRefStream = true

	dict := stream.Dictionary
	data, err := filters.Decode(stream.Data, dict.Get("Filter"), dict.Get("DecodeParms"))
	if err != nil {
		return nil, fmt.Errorf("failed to decode xref stream: %w", err)
	}

	wArr := dict.GetArray("W")
	if len(wArr) != 3 {
		return nil, fmt.Errorf("%w: invalid W array", ErrInvalidXRef)
	}
	var w [3]int
	for i, v := range wArr {
		n, ok := v.(generic.IntegerObject)
		if !ok || n < 0 || n > 8 {
			return nil, fmt.Errorf("%w: invalid W array", ErrInvalidXRef)
		}
		w[i] = int(n)
	}

	var index []int
	if arr := dict.GetArray("Index"); arr != nil {
		for _, v := range arr {
			if n, ok := v.(generic.IntegerObject); ok {
				index = append(index, int(n))
			}
		}
	} else if size, ok := dict.GetInt("Size"); ok {
		index = []int{0, int(size)}
	}

	if err := decodeXRefStreamEntries(table, data, w, index); err != nil {
		return nil, err
	}
	return dict, nil
}

var objHeaderRegex = regexp.MustCompile(`(?m)(?:^|[\r\n\s])(\d+)\s+(\d+)\s+obj\b`)

// rebuildXRef reconstructs the table by scanning for "N G obj" headers. Later
// definitions win, as they would in an incremental update.
func (r *PdfFileReader) rebuildXRef() error {
	for _, m := range objHeaderRegex.FindAllSubmatchIndex(r.data, -1) {
		num, err1 := strconv.Atoi(string(r.data[m[2]:m[3]]))
		gen, err2 := strconv.Atoi(string(r.data[m[4]:m[5]]))
		if err1 != nil || err2 != nil {
			continue
		}
		r.XRef[num] = &XRefEntry{Type: XRefTypeStandard, Offset: int64(m[2]), Generation: gen}
	}
	if len(r.XRef) == 0 {
		return fmt.Errorf("%w: no objects found", ErrInvalidPDF)
	}

	if pos := bytes.LastIndex(r.data, []byte("trailer")); pos >= 0 {
		p := generic.NewParser(r.data[pos+len("trailer"):])
		if obj, err := p.ParseObject(); err == nil {
			if dict, ok := obj.(*generic.DictionaryObject); ok && dict.Has("Root") {
				r.Trailer = dict
				return nil
			}
		}
	}

	// No usable trailer: look for the catalog among the scanned objects.
	for _, num := range r.XRef.InUse() {
		obj, err := r.GetObject(num)
		if err != nil {
			continue
		}
		if dict, ok := obj.(*generic.DictionaryObject); ok && dict.GetName("Type") == "Catalog" {
			r.Trailer = generic.NewDictionary()
			r.Trailer.Set("Root", generic.NewReference(num, r.XRef[num].Generation))
			return nil
		}
	}
	return fmt.Errorf("%w: no catalog found", ErrInvalidPDF)
}

func (r *PdfFileReader) loadDocumentStructure() error {
	rootObj, err := r.Resolve(r.Trailer.Get("Root"))
	if err != nil {
		return fmt.Errorf("failed to load Root: %w", err)
	}
	root, ok := rootObj.(*generic.DictionaryObject)
	if !ok {
		return fmt.Errorf("%w: Root must be dictionary", ErrInvalidPDF)
	}
	r.Root = root

	if infoObj, err := r.Resolve(r.Trailer.Get("Info")); err == nil {
		r.Info, _ = infoObj.(*generic.DictionaryObject)
	}
	return nil
}

// GetObject returns the object with the given number. Stream objects come
// back with Decoded filled in when their filters are supported.
func (r *PdfFileReader) GetObject(objNum int) (generic.PdfObject, error) {
	if obj, ok := r.objects[objNum]; ok {
		return obj, nil
	}

	entry, ok := r.XRef[objNum]
	if !ok || entry.Type == XRefTypeFree {
		return nil, fmt.Errorf("%w: object %d", ErrObjectNotFound, objNum)
	}
	if r.loading[objNum] {
		return nil, fmt.Errorf("%w: object %d refers to itself", ErrInvalidPDF, objNum)
	}
	r.loading[objNum] = true
	defer delete(r.loading, objNum)

	var (
		obj generic.PdfObject
		err error
	)
	if entry.Type == XRefTypeInObjStream {
		obj, err = r.getObjectFromStream(objNum, entry)
	} else {
		obj, err = r.getObjectAtOffset(objNum, entry.Offset)
	}
	if err != nil {
		return nil, err
	}

	r.objects[objNum] = obj
	return obj, nil
}

func (r *PdfFileReader) getObjectAtOffset(objNum int, offset int64) (generic.PdfObject, error) {
	if offset < 0 || offset >= int64(len(r.data)) {
		return nil, fmt.Errorf("%w: object %d offset out of bounds", ErrInvalidPDF, objNum)
	}

	p := generic.NewParser(r.data[offset:])
	p.LengthResolver = r.resolveLength
	ind, err := p.ParseIndirectObject()
	if err != nil {
		return nil, fmt.Errorf("failed to parse object %d: %w", objNum, err)
	}
	if ind.ObjectNumber != objNum {
		return nil, fmt.Errorf("%w: xref points object %d at object %d", ErrInvalidXRef, objNum, ind.ObjectNumber)
	}

	if stream, ok := ind.Object.(*generic.StreamObject); ok {
		r.decodeStream(stream)
	}
	return ind.Object, nil
}

func (r *PdfFileReader) getObjectFromStream(objNum int, entry *XRefEntry) (generic.PdfObject, error) {
	os, ok := r.objStreams[entry.StreamObject]
	if !ok {
		obj, err := r.GetObject(entry.StreamObject)
		if err != nil {
			return nil, err
		}
		stream, isStream := obj.(*generic.StreamObject)
		if !isStream {
			return nil, fmt.Errorf("%w: object %d is not an object stream", ErrInvalidPDF, entry.StreamObject)
		}
		if os, err = parseObjectStream(stream); err != nil {
			return nil, err
		}
		r.objStreams[entry.StreamObject] = os
	}
	return os.object(objNum, entry.IndexInStream)
}

// decodeStream fills stream.Decoded. Unsupported or broken filters leave it
// nil; the encoded bytes are still carried through unchanged.
func (r *PdfFileReader) decodeStream(stream *generic.StreamObject) {
	if !stream.Dictionary.Has("Filter") {
		return
	}
	filter, err := r.resolveDeep(stream.Dictionary.Get("Filter"))
	if err != nil {
		return
	}
	parms, err := r.resolveDeep(stream.Dictionary.Get("DecodeParms"))
	if err != nil {
		return
	}
	if decoded, err := filters.Decode(stream.Data, filter, parms); err == nil {
		stream.Decoded = decoded
	}
}

// resolveDeep resolves obj and, for arrays, each element one level down.
func (r *PdfFileReader) resolveDeep(obj generic.PdfObject) (generic.PdfObject, error) {
	obj, err := r.Resolve(obj)
	if err != nil {
		return nil, err
	}
	arr, ok := obj.(generic.ArrayObject)
	if !ok {
		return obj, nil
	}
	out := make(generic.ArrayObject, len(arr))
	for i, item := range arr {
		if out[i], err = r.Resolve(item); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *PdfFileReader) resolveLength(ref generic.Reference) (int64, bool) {
	obj, err := r.GetObject(ref.ObjectNumber)
	if err != nil {
		return 0, false
	}
	n, ok := obj.(generic.IntegerObject)
	return int64(n), ok
}

// Resolve follows a reference to its object. Other objects are returned as
// is. A nil input resolves to nil.
func (r *PdfFileReader) Resolve(obj generic.PdfObject) (generic.PdfObject, error) {
	ref, ok := obj.(generic.Reference)
	if !ok {
		return obj, nil
	}
	return r.GetObject(ref.ObjectNumber)
}

// ObjectCount returns the number of in-use objects in the xref.
func (r *PdfFileReader) ObjectCount() int {
	return len(r.XRef.InUse())
}

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\f', 0:
		return true
	}
	return false
}
