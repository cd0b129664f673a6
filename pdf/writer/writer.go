// Package writer serializes a document into a complete, self-contained PDF
// file.
package writer

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/georgepadayatti/contractpdf/pdf/document"
	"github.com/georgepadayatti/contractpdf/pdf/generic"
	"github.com/georgepadayatti/contractpdf/pdf/metadata"
)

// binaryMarker follows the header so transfer tools treat the file as binary.
var binaryMarker = []byte{0x25, 0xE2, 0xE3, 0xCF, 0xD3, 0x0A}

// Options controls serialization.
type Options struct {
	// Producer is written to /Producer. Empty means metadata.Vendor.
	Producer string
	// Now stamps /ModDate (and /CreationDate when absent). Zero means
	// time.Now().
	Now time.Time
}

// Serialize writes doc as a new file: only objects reachable from the
// catalog and Info dictionary are kept, renumbered densely from 1, followed
// by a classic xref table. The document itself is not modified.
func Serialize(doc *document.Document, opts Options) ([]byte, error) {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	info := generic.NewDictionary()
	if existing := doc.Info(); existing != nil {
		info = existing.Clone().(*generic.DictionaryObject)
	}
	metadata.Stamp(info, opts.Producer, now)

	s := &serializer{
		doc:     doc,
		renum:   make(map[int]int),
		sources: []generic.PdfObject{nil},
	}
	rootRef := s.number(doc.RootRef())
	if rootRef.IsZero() {
		return nil, fmt.Errorf("failed to serialize: catalog missing")
	}
	infoRef := s.addDirect(info)
	s.collect()

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%%PDF-%s\n", doc.Version)
	buf.Write(binaryMarker)

	offsets := make([]int, len(s.sources))
	for num := 1; num < len(s.sources); num++ {
		offsets[num] = buf.Len()
		obj := &generic.IndirectObject{ObjectNumber: num, Object: s.rewrite(s.sources[num])}
		if err := obj.Write(&buf); err != nil {
			return nil, fmt.Errorf("failed to write object %d: %w", num, err)
		}
		buf.WriteByte('\n')
	}

	h, err := blake2b.New(16, nil)
	if err != nil {
		return nil, err
	}
	h.Write(buf.Bytes())
	id := generic.NewHexString(h.Sum(nil))

	xrefOffset := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(s.sources))
	buf.WriteString("0000000000 65535 f \n")
	for num := 1; num < len(s.sources); num++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[num])
	}

	trailer := generic.NewDictionary()
	trailer.Set("Size", generic.IntegerObject(len(s.sources)))
	trailer.Set("Root", rootRef)
	trailer.Set("Info", infoRef)
	trailer.Set("ID", generic.NewArray(id, id.Clone()))

	buf.WriteString("trailer\n")
	if err := trailer.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write trailer: %w", err)
	}
	fmt.Fprintf(&buf, "\nstartxref\n%d\n%%%%EOF\n", xrefOffset)

	return buf.Bytes(), nil
}

// serializer assigns new object numbers in discovery order.
type serializer struct {
	doc     *document.Document
	renum   map[int]int
	sources []generic.PdfObject
	pending []int
}

// number returns the output reference for an input reference, scheduling the
// object for output on first sight. Dangling references map to the zero
// Reference.
func (s *serializer) number(ref generic.Reference) generic.Reference {
	if n, ok := s.renum[ref.ObjectNumber]; ok {
		return generic.NewReference(n, 0)
	}
	obj := s.doc.Object(ref)
	if obj == nil {
		return generic.Reference{}
	}
	n := len(s.sources)
	s.renum[ref.ObjectNumber] = n
	s.sources = append(s.sources, obj)
	s.pending = append(s.pending, n)
	return generic.NewReference(n, 0)
}

func (s *serializer) addDirect(obj generic.PdfObject) generic.Reference {
	n := len(s.sources)
	s.sources = append(s.sources, obj)
	s.pending = append(s.pending, n)
	return generic.NewReference(n, 0)
}

// collect numbers everything reachable from the scheduled objects.
func (s *serializer) collect() {
	for len(s.pending) > 0 {
		n := s.pending[0]
		s.pending = s.pending[1:]
		s.visit(s.sources[n])
	}
}

func (s *serializer) visit(obj generic.PdfObject) {
	switch v := obj.(type) {
	case generic.Reference:
		s.number(v)
	case generic.ArrayObject:
		for _, item := range v {
			s.visit(item)
		}
	case *generic.DictionaryObject:
		for _, k := range sortedKeys(v) {
			s.visit(v.Get(k))
		}
	case *generic.StreamObject:
		for _, k := range sortedKeys(v.Dictionary) {
			// Length is written directly.
			if k != "Length" {
				s.visit(v.Dictionary.Get(k))
			}
		}
	}
}

// sortedKeys keeps numbering stable for dictionaries built from maps.
func sortedKeys(d *generic.DictionaryObject) []string {
	keys := d.Keys()
	sort.Strings(keys)
	return keys
}

// rewrite returns a copy of obj with references renumbered. Dangling
// references become null.
func (s *serializer) rewrite(obj generic.PdfObject) generic.PdfObject {
	switch v := obj.(type) {
	case generic.Reference:
		if n, ok := s.renum[v.ObjectNumber]; ok {
			return generic.NewReference(n, 0)
		}
		return generic.NullObject{}
	case generic.ArrayObject:
		out := make(generic.ArrayObject, len(v))
		for i, item := range v {
			out[i] = s.rewrite(item)
		}
		return out
	case *generic.DictionaryObject:
		out := generic.NewDictionary()
		for _, k := range v.Keys() {
			out.Set(k, s.rewrite(v.Get(k)))
		}
		return out
	case *generic.StreamObject:
		dict := s.rewrite(v.Dictionary).(*generic.DictionaryObject)
		return &generic.StreamObject{Dictionary: dict, Data: v.Data}
	case nil:
		return generic.NullObject{}
	}
	return obj
}
