package document

import (
	"fmt"

	"github.com/georgepadayatti/contractpdf/pdf/filters"
	"github.com/georgepadayatti/contractpdf/pdf/generic"
)

// Tx is the write handle handed to Mutate callbacks.
type Tx struct {
	d *Document
}

// Document returns the document being mutated, for read access.
func (tx *Tx) Document() *Document { return tx.d }

// AddObject stores obj under a fresh object number.
func (tx *Tx) AddObject(obj generic.PdfObject) generic.Reference {
	return tx.d.add(obj)
}

// SetObject replaces the object stored under ref.
func (tx *Tx) SetObject(ref generic.Reference, obj generic.PdfObject) {
	tx.d.objects[ref.ObjectNumber] = obj
	if ref.ObjectNumber >= tx.d.next {
		tx.d.next = ref.ObjectNumber + 1
	}
}

// RemoveCatalogEntry deletes key from the catalog.
func (tx *Tx) RemoveCatalogEntry(key string) {
	if cat := tx.d.Catalog(); cat != nil {
		cat.Delete(key)
	}
}

// SetPageAnnots replaces the page's /Annots, removing the key when annots is
// empty.
func (tx *Tx) SetPageAnnots(pageIndex int, annots generic.ArrayObject) error {
	page, err := tx.d.Page(pageIndex)
	if err != nil {
		return err
	}
	if len(annots) == 0 {
		page.Dict.Delete("Annots")
		return nil
	}
	page.Dict.Set("Annots", annots)
	return nil
}

// pageResources returns a resource dictionary owned by the page alone.
func (tx *Tx) pageResources(page *Page) *generic.DictionaryObject {
	if page.ownsResources {
		if res := page.Dict.GetDict("Resources"); res != nil {
			return res
		}
	}
	var res *generic.DictionaryObject
	if shared := tx.d.ResolveDict(page.Dict.Get("Resources")); shared != nil {
		res = shared.Clone().(*generic.DictionaryObject)
	} else {
		res = generic.NewDictionary()
	}
	page.Dict.Set("Resources", res)
	page.ownsResources = true
	return res
}

// AddResource registers obj under a fresh name in the category dictionary
// (XObject, Font, ExtGState) of the page's resources.
func (tx *Tx) AddResource(pageIndex int, category, prefix string, obj generic.PdfObject) (string, error) {
	page, err := tx.d.Page(pageIndex)
	if err != nil {
		return "", err
	}

	res := tx.pageResources(page)
	// Direct category dictionaries were copied with res; referenced ones may
	// be shared with other pages.
	cat, direct := res.Get(category).(*generic.DictionaryObject)
	if !direct {
		if shared := tx.d.ResolveDict(res.Get(category)); shared != nil {
			cat = shared.Clone().(*generic.DictionaryObject)
		} else {
			cat = generic.NewDictionary()
		}
		res.Set(category, cat)
	}

	for i := 1; ; i++ {
		name := fmt.Sprintf("%s%d", prefix, i)
		if !cat.Has(name) {
			cat.Set(name, obj)
			return name, nil
		}
	}
}

// AppendContent adds content after the page's existing content. The first
// append on a page encloses the original content in q/Q so that its graphics
// state cannot leak into the overlay.
func (tx *Tx) AppendContent(pageIndex int, content []byte) error {
	page, err := tx.d.Page(pageIndex)
	if err != nil {
		return err
	}

	var contents generic.ArrayObject
	switch v := page.Dict.Get("Contents").(type) {
	case generic.Reference:
		if arr, ok := tx.d.Resolve(v).(generic.ArrayObject); ok {
			contents = append(contents, arr...)
		} else {
			contents = append(contents, v)
		}
	case generic.ArrayObject:
		contents = append(contents, v...)
	}

	if !page.wrapped && len(contents) > 0 {
		open := tx.d.add(generic.NewStream(nil, []byte("q\n")))
		closing := tx.d.add(generic.NewStream(nil, []byte("\nQ\n")))
		contents = append(append(generic.ArrayObject{open}, contents...), closing)
	}
	page.wrapped = true

	stream, err := filters.NewFlateStream(nil, content)
	if err != nil {
		return fmt.Errorf("failed to encode page content: %w", err)
	}
	contents = append(contents, tx.d.add(stream))
	page.Dict.Set("Contents", contents)
	return nil
}
