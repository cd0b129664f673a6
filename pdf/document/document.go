// Package document holds an editable PDF: an object store, the catalog and a
// flattened page list with inherited attributes resolved.
package document

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/georgepadayatti/contractpdf/pdf/generic"
	"github.com/georgepadayatti/contractpdf/pdf/reader"
)

// Common errors
var (
	ErrConcurrentMutation = errors.New("document is already being mutated")
	ErrPageIndex          = errors.New("page index out of range")
	ErrNoPages            = errors.New("document has no pages")
)

// DefaultVersion is the header version written for every output.
const DefaultVersion = "1.7"

// Letter is the default blank page size in points.
var Letter = [2]float64{612, 792}

// maxTreeDepth bounds page tree recursion on malformed input.
const maxTreeDepth = 64

// Page is one page of the document, in reading order.
type Page struct {
	Ref      generic.Reference
	Dict     *generic.DictionaryObject
	MediaBox generic.Rectangle
	CropBox  generic.Rectangle
	Rotate   int

	// wrapped is set once the original content has been enclosed in q/Q.
	wrapped       bool
	ownsResources bool
}

// Document is an editable PDF. All mutation goes through Mutate, which admits
// one caller at a time; a second concurrent caller gets ErrConcurrentMutation.
type Document struct {
	Version string

	objects map[int]generic.PdfObject
	next    int
	root    generic.Reference
	info    generic.Reference
	pages   []*Page

	busy atomic.Bool
}

func newDocument() *Document {
	return &Document{
		Version: DefaultVersion,
		objects: make(map[int]generic.PdfObject),
		next:    1,
	}
}

// NewBlank creates a document with a single empty page of the given size and
// no form.
func NewBlank(width, height float64) *Document {
	if width <= 0 || height <= 0 {
		width, height = Letter[0], Letter[1]
	}
	d := newDocument()

	catalog := generic.NewDictionary()
	catalog.Set("Type", generic.NameObject("Catalog"))
	d.root = d.add(catalog)

	pages := generic.NewDictionary()
	pages.Set("Type", generic.NameObject("Pages"))
	pagesRef := d.add(pages)
	catalog.Set("Pages", pagesRef)

	box := generic.Rectangle{URX: width, URY: height}
	page := generic.NewDictionary()
	page.Set("Type", generic.NameObject("Page"))
	page.Set("Parent", pagesRef)
	page.Set("MediaBox", box.ToArray())
	page.Set("Resources", generic.NewDictionary())
	pageRef := d.add(page)

	pages.Set("Kids", generic.NewArray(pageRef))
	pages.Set("Count", generic.IntegerObject(1))

	d.pages = []*Page{{Ref: pageRef, Dict: page, MediaBox: box, CropBox: box}}
	return d
}

// Open parses data and loads every object reachable from the trailer.
func Open(data []byte) (*Document, error) {
	r, err := reader.NewPdfFileReaderFromBytes(data)
	if err != nil {
		return nil, err
	}

	d := newDocument()
	if r.Version > DefaultVersion {
		d.Version = r.Version
	}

	rootRef, ok := r.Trailer.Get("Root").(generic.Reference)
	if !ok {
		return nil, fmt.Errorf("%w: trailer /Root is not a reference", reader.ErrInvalidPDF)
	}
	d.load(r, rootRef)
	d.root = rootRef
	if infoRef, ok := r.Trailer.Get("Info").(generic.Reference); ok {
		d.load(r, infoRef)
		if _, present := d.objects[infoRef.ObjectNumber]; present {
			d.info = infoRef
		}
	}

	if d.Catalog() == nil {
		return nil, fmt.Errorf("%w: catalog missing", reader.ErrInvalidPDF)
	}
	if err := d.loadPages(); err != nil {
		return nil, err
	}
	return d, nil
}

// load copies the objects reachable from start out of r. Unresolvable
// references are left dangling and later read as null.
func (d *Document) load(r *reader.PdfFileReader, start generic.Reference) {
	queue := []generic.Reference{start}
	for len(queue) > 0 {
		ref := queue[0]
		queue = queue[1:]
		if _, seen := d.objects[ref.ObjectNumber]; seen {
			continue
		}
		obj, err := r.GetObject(ref.ObjectNumber)
		if err != nil {
			continue
		}
		d.objects[ref.ObjectNumber] = obj
		if ref.ObjectNumber >= d.next {
			d.next = ref.ObjectNumber + 1
		}
		walkRefs(obj, func(child generic.Reference) {
			if _, seen := d.objects[child.ObjectNumber]; !seen {
				queue = append(queue, child)
			}
		})
	}
}

// walkRefs calls fn for every reference held directly or nested in obj.
func walkRefs(obj generic.PdfObject, fn func(generic.Reference)) {
	switch v := obj.(type) {
	case generic.Reference:
		fn(v)
	case generic.ArrayObject:
		for _, item := range v {
			walkRefs(item, fn)
		}
	case *generic.DictionaryObject:
		for _, k := range v.Keys() {
			walkRefs(v.Get(k), fn)
		}
	case *generic.StreamObject:
		walkRefs(v.Dictionary, fn)
	}
}

type inherited struct {
	resources generic.PdfObject
	mediaBox  generic.PdfObject
	cropBox   generic.PdfObject
	rotate    generic.PdfObject
}

func (d *Document) loadPages() error {
	rootPages, ok := d.Catalog().Get("Pages").(generic.Reference)
	if !ok {
		return fmt.Errorf("%w: catalog /Pages is not a reference", reader.ErrInvalidPDF)
	}
	visited := make(map[int]bool)
	if err := d.walkPageTree(rootPages, inherited{}, visited, 0); err != nil {
		return err
	}
	if len(d.pages) == 0 {
		return ErrNoPages
	}
	return nil
}

func (d *Document) walkPageTree(ref generic.Reference, inh inherited, visited map[int]bool, depth int) error {
	if depth > maxTreeDepth {
		return fmt.Errorf("%w: page tree too deep", reader.ErrInvalidPDF)
	}
	if visited[ref.ObjectNumber] {
		return fmt.Errorf("%w: page tree cycle at %s", reader.ErrInvalidPDF, ref)
	}
	visited[ref.ObjectNumber] = true

	node := d.ResolveDict(ref)
	if node == nil {
		return nil
	}
	if v := node.Get("Resources"); v != nil {
		inh.resources = v
	}
	if v := node.Get("MediaBox"); v != nil {
		inh.mediaBox = v
	}
	if v := node.Get("CropBox"); v != nil {
		inh.cropBox = v
	}
	if v := node.Get("Rotate"); v != nil {
		inh.rotate = v
	}

	if node.GetName("Type") == "Pages" || (node.GetName("Type") == "" && node.Has("Kids")) {
		for _, kid := range d.ResolveArray(node.Get("Kids")) {
			kidRef, ok := kid.(generic.Reference)
			if !ok {
				continue
			}
			if err := d.walkPageTree(kidRef, inh, visited, depth+1); err != nil {
				return err
			}
		}
		return nil
	}

	d.pages = append(d.pages, d.materializePage(ref, node, inh))
	return nil
}

// materializePage copies inherited attributes onto the page itself so later
// edits never reach shared ancestors.
func (d *Document) materializePage(ref generic.Reference, node *generic.DictionaryObject, inh inherited) *Page {
	if inh.resources != nil && !node.Has("Resources") {
		node.Set("Resources", inh.resources.Clone())
	}

	mediaBox := generic.Rectangle{URX: Letter[0], URY: Letter[1]}
	if arr := d.ResolveArray(inh.mediaBox); arr != nil {
		if rect, err := generic.NewRectangle(arr); err == nil {
			mediaBox = *rect
		}
	}
	node.Set("MediaBox", mediaBox.ToArray())

	cropBox := mediaBox
	if arr := d.ResolveArray(inh.cropBox); arr != nil {
		if rect, err := generic.NewRectangle(arr); err == nil {
			cropBox = *rect
		}
	}

	rotate := 0
	if n, ok := generic.Number(d.Resolve(inh.rotate)); ok {
		rotate = (int(n)%360 + 360) % 360
	}
	if rotate != 0 {
		node.Set("Rotate", generic.IntegerObject(rotate))
	}

	return &Page{Ref: ref, Dict: node, MediaBox: mediaBox, CropBox: cropBox, Rotate: rotate}
}

func (d *Document) add(obj generic.PdfObject) generic.Reference {
	num := d.next
	d.next++
	d.objects[num] = obj
	return generic.NewReference(num, 0)
}

// Pages returns the pages in reading order.
func (d *Document) Pages() []*Page {
	return append([]*Page(nil), d.pages...)
}

// PageCount returns the number of pages.
func (d *Document) PageCount() int { return len(d.pages) }

// Page returns the page at index.
func (d *Document) Page(index int) (*Page, error) {
	if index < 0 || index >= len(d.pages) {
		return nil, fmt.Errorf("%w: %d of %d", ErrPageIndex, index, len(d.pages))
	}
	return d.pages[index], nil
}

// PageIndex returns the index of the page with the given reference.
func (d *Document) PageIndex(ref generic.Reference) (int, bool) {
	for i, p := range d.pages {
		if p.Ref.ObjectNumber == ref.ObjectNumber {
			return i, true
		}
	}
	return 0, false
}

// RootRef returns the catalog reference.
func (d *Document) RootRef() generic.Reference { return d.root }

// InfoRef returns the Info dictionary reference; the zero Reference when the
// document has none.
func (d *Document) InfoRef() generic.Reference { return d.info }

// Catalog returns the document catalog.
func (d *Document) Catalog() *generic.DictionaryObject {
	return d.ResolveDict(d.root)
}

// Info returns the Info dictionary or nil.
func (d *Document) Info() *generic.DictionaryObject {
	if d.info.IsZero() {
		return nil
	}
	return d.ResolveDict(d.info)
}

// Object returns the object stored under ref, or nil.
func (d *Document) Object(ref generic.Reference) generic.PdfObject {
	return d.objects[ref.ObjectNumber]
}

// ObjectCount returns the number of stored objects.
func (d *Document) ObjectCount() int { return len(d.objects) }

// Resolve follows references until it reaches a direct object. Dangling
// references resolve to nil.
func (d *Document) Resolve(obj generic.PdfObject) generic.PdfObject {
	for i := 0; i < 32; i++ {
		ref, ok := obj.(generic.Reference)
		if !ok {
			return obj
		}
		obj = d.objects[ref.ObjectNumber]
	}
	return nil
}

// ResolveDict resolves obj to a dictionary, or nil. A stream resolves to its
// dictionary.
func (d *Document) ResolveDict(obj generic.PdfObject) *generic.DictionaryObject {
	switch v := d.Resolve(obj).(type) {
	case *generic.DictionaryObject:
		return v
	case *generic.StreamObject:
		return v.Dictionary
	}
	return nil
}

// ResolveArray resolves obj to an array, or nil.
func (d *Document) ResolveArray(obj generic.PdfObject) generic.ArrayObject {
	arr, _ := d.Resolve(obj).(generic.ArrayObject)
	return arr
}

// ResolveStream resolves obj to a stream, or nil.
func (d *Document) ResolveStream(obj generic.PdfObject) *generic.StreamObject {
	s, _ := d.Resolve(obj).(*generic.StreamObject)
	return s
}

// Mutate runs fn with exclusive write access. fn must not retain tx.
func (d *Document) Mutate(fn func(tx *Tx) error) error {
	if !d.busy.CompareAndSwap(false, true) {
		return ErrConcurrentMutation
	}
	defer d.busy.Store(false)
	return fn(&Tx{d: d})
}

// AddObject stores obj under a fresh object number.
func (d *Document) AddObject(obj generic.PdfObject) (generic.Reference, error) {
	var ref generic.Reference
	err := d.Mutate(func(tx *Tx) error {
		ref = tx.AddObject(obj)
		return nil
	})
	return ref, err
}

// AddResource registers obj in the page's resource category and returns the
// resource name chosen for it.
func (d *Document) AddResource(pageIndex int, category, prefix string, obj generic.PdfObject) (string, error) {
	var name string
	err := d.Mutate(func(tx *Tx) error {
		var err error
		name, err = tx.AddResource(pageIndex, category, prefix, obj)
		return err
	})
	return name, err
}

// AppendContent draws content on top of the page.
func (d *Document) AppendContent(pageIndex int, content []byte) error {
	return d.Mutate(func(tx *Tx) error {
		return tx.AppendContent(pageIndex, content)
	})
}
