// Package form reads, fills and flattens AcroForm text fields.
package form

import (
	"errors"
	"fmt"
	"sort"

	"k8s.io/klog/v2"

	"github.com/georgepadayatti/contractpdf/layout"
	"github.com/georgepadayatti/contractpdf/pdf/document"
	"github.com/georgepadayatti/contractpdf/pdf/generic"
)

// Common errors
var (
	ErrFlattened         = errors.New("form has been flattened")
	ErrFieldTypeMismatch = errors.New("form field type mismatch")
	ErrCircularReference = errors.New("circular reference in form tree")
	ErrNoWidgets         = errors.New("form field has no widget annotations")
)

// maxFieldDepth bounds the /Kids recursion.
const maxFieldDepth = 32

// FieldType represents the type of a form field.
type FieldType string

// Field types
const (
	FieldTypeButton    FieldType = "Btn"
	FieldTypeText      FieldType = "Tx"
	FieldTypeChoice    FieldType = "Ch"
	FieldTypeSignature FieldType = "Sig"
)

// FieldFlags represents form field flags.
type FieldFlags uint32

// Common field flags
const (
	FieldFlagReadOnly FieldFlags = 1 << 0
	FieldFlagRequired FieldFlags = 1 << 1
	FieldFlagNoExport FieldFlags = 1 << 2
)

// Text field flags
const (
	TextFieldMultiline FieldFlags = 1 << 12
	TextFieldPassword  FieldFlags = 1 << 13
	TextFieldComb      FieldFlags = 1 << 24
)

// annotFlagHidden is annotation flag bit 2.
const annotFlagHidden = 1 << 1

// Widget is one on-page occurrence of a field.
type Widget struct {
	Ref       generic.Reference
	Dict      *generic.DictionaryObject
	Rect      layout.Box
	PageIndex int
}

// Hidden reports whether the widget carries the Hidden annotation flag.
func (w Widget) Hidden() bool {
	f, _ := w.Dict.GetInt("F")
	return f&annotFlagHidden != 0
}

// Field is a terminal form field.
type Field struct {
	// Name is the partial name (/T).
	Name string
	// FullName is the dot-joined qualified name.
	FullName string
	Type     FieldType
	Flags    FieldFlags
	Ref      generic.Reference
	Dict     *generic.DictionaryObject
	// DA is the inherited default appearance string.
	DA      string
	Widgets []Widget
}

// Value returns the field's text value.
func (f *Field) Value() string {
	if s, ok := f.Dict.Get("V").(*generic.StringObject); ok {
		return s.Text()
	}
	return ""
}

// IsReadOnly returns true if the field is read-only.
func (f *Field) IsReadOnly() bool {
	return f.Flags&FieldFlagReadOnly != 0
}

// Form is the interactive form of a document. After Flatten it is sealed.
type Form struct {
	doc       *document.Document
	dict      *generic.DictionaryObject
	fields    []*Field
	byName    map[string]*Field
	flattened bool
}

// Open reads the form of doc. A document without /AcroForm yields an empty
// form.
func Open(doc *document.Document) (*Form, error) {
	f := &Form{doc: doc, byName: make(map[string]*Field)}

	cat := doc.Catalog()
	if cat == nil {
		return f, nil
	}
	f.dict = doc.ResolveDict(cat.Get("AcroForm"))
	if f.dict == nil {
		return f, nil
	}

	pageOf := annotationPages(doc)
	defaultDA := stringValue(doc.Resolve(f.dict.Get("DA")))
	walker := &fieldWalker{doc: doc, pageOf: pageOf, visited: make(map[int]bool)}
	err := walker.walk(doc.ResolveArray(f.dict.Get("Fields")), "", inheritance{da: defaultDA}, 0)
	if err != nil {
		return nil, err
	}

	for _, field := range walker.fields {
		if _, dup := f.byName[field.FullName]; dup {
			klog.V(4).InfoS("Duplicate form field name", "field", field.FullName)
			continue
		}
		f.byName[field.FullName] = field
		f.fields = append(f.fields, field)
	}
	return f, nil
}

// annotationPages maps widget references to the page listing them in /Annots.
func annotationPages(doc *document.Document) map[int]int {
	out := make(map[int]int)
	for i, page := range doc.Pages() {
		for _, item := range doc.ResolveArray(page.Dict.Get("Annots")) {
			if ref, ok := item.(generic.Reference); ok {
				if _, seen := out[ref.ObjectNumber]; !seen {
					out[ref.ObjectNumber] = i
				}
			}
		}
	}
	return out
}

func stringValue(obj generic.PdfObject) string {
	if s, ok := obj.(*generic.StringObject); ok {
		return s.Text()
	}
	return ""
}

type inheritance struct {
	ft    FieldType
	flags FieldFlags
	da    string
}

type fieldWalker struct {
	doc     *document.Document
	pageOf  map[int]int
	visited map[int]bool
	fields  []*Field
}

func (w *fieldWalker) walk(kids generic.ArrayObject, parentName string, inh inheritance, depth int) error {
	if depth > maxFieldDepth {
		return fmt.Errorf("%w: field tree deeper than %d", ErrCircularReference, maxFieldDepth)
	}

	for _, item := range kids {
		ref, _ := item.(generic.Reference)
		if !ref.IsZero() {
			if w.visited[ref.ObjectNumber] {
				return fmt.Errorf("%w: object %d", ErrCircularReference, ref.ObjectNumber)
			}
			w.visited[ref.ObjectNumber] = true
		}
		dict := w.doc.ResolveDict(item)
		if dict == nil {
			continue
		}

		name := stringValue(w.doc.Resolve(dict.Get("T")))
		fullName := name
		if parentName != "" {
			fullName = parentName + "." + name
		}

		next := inh
		if ft := dict.GetName("FT"); ft != "" {
			next.ft = FieldType(ft)
		}
		if ff, ok := dict.GetInt("Ff"); ok {
			next.flags = FieldFlags(ff)
		}
		if da := stringValue(w.doc.Resolve(dict.Get("DA"))); da != "" {
			next.da = da
		}

		kidArray := w.doc.ResolveArray(dict.Get("Kids"))
		if len(kidArray) > 0 && w.hasFieldKids(kidArray) {
			if err := w.walk(kidArray, fullName, next, depth+1); err != nil {
				return err
			}
			continue
		}

		field := &Field{
			Name:     name,
			FullName: fullName,
			Type:     next.ft,
			Flags:    next.flags,
			Ref:      ref,
			Dict:     dict,
			DA:       next.da,
		}
		if len(kidArray) == 0 {
			field.Widgets = append(field.Widgets, w.widget(ref, dict))
		}
		for _, kid := range kidArray {
			kref, _ := kid.(generic.Reference)
			if kdict := w.doc.ResolveDict(kid); kdict != nil {
				field.Widgets = append(field.Widgets, w.widget(kref, kdict))
			}
		}
		w.fields = append(w.fields, field)
	}
	return nil
}

// hasFieldKids reports whether any kid is a field rather than a bare widget.
func (w *fieldWalker) hasFieldKids(kids generic.ArrayObject) bool {
	for _, kid := range kids {
		if d := w.doc.ResolveDict(kid); d != nil && d.Has("T") {
			return true
		}
	}
	return false
}

func (w *fieldWalker) widget(ref generic.Reference, dict *generic.DictionaryObject) Widget {
	wg := Widget{Ref: ref, Dict: dict, PageIndex: -1}
	if rect, err := generic.ParseRectangle(w.doc.Resolve(dict.Get("Rect"))); err == nil {
		wg.Rect = layout.BoxFromCorners(rect.LLX, rect.LLY, rect.URX, rect.URY)
	}
	if p, ok := dict.Get("P").(generic.Reference); ok {
		if idx, found := w.doc.PageIndex(p); found {
			wg.PageIndex = idx
		}
	}
	if wg.PageIndex < 0 && !ref.IsZero() {
		if idx, found := w.pageOf[ref.ObjectNumber]; found {
			wg.PageIndex = idx
		}
	}
	return wg
}

// Present reports whether the document has an AcroForm.
func (f *Form) Present() bool { return f.dict != nil && !f.flattened }

// Len returns the number of terminal fields.
func (f *Form) Len() int { return len(f.fields) }

// Fields returns the terminal fields in document order.
func (f *Form) Fields() []*Field { return f.fields }

// Names returns the sorted qualified field names.
func (f *Form) Names() []string {
	names := make([]string, 0, len(f.byName))
	for name := range f.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsFlattened reports whether Flatten has run.
func (f *Form) IsFlattened() bool { return f.flattened }

// TryGetField looks up a field by qualified name. A flattened form has no
// fields.
func (f *Form) TryGetField(name string) (*Field, bool) {
	if f.flattened {
		return nil, false
	}
	field, ok := f.byName[name]
	return field, ok
}

// SetText sets the field value.
func (f *Form) SetText(field *Field, value string) error {
	if f.flattened {
		return ErrFlattened
	}
	if field.Type != "" && field.Type != FieldTypeText {
		return fmt.Errorf("%w: %s is %s, not %s", ErrFieldTypeMismatch, field.FullName, field.Type, FieldTypeText)
	}
	return f.doc.Mutate(func(*document.Tx) error {
		field.Dict.Set("V", generic.NewTextString(value))
		return nil
	})
}

// FillReport summarizes a fill pass.
type FillReport struct {
	// Filled lists the fields whose value was set.
	Filled []string `json:"filled" yaml:"filled"`
	// Skipped lists mapped names with no matching field.
	Skipped []string `json:"skipped" yaml:"skipped"`
	// Degraded lists filled fields whose appearance could not be built with
	// the requested font.
	Degraded []string `json:"degraded" yaml:"degraded"`
}
