package form

import (
	"math"

	"k8s.io/klog/v2"

	"github.com/georgepadayatti/contractpdf/layout"
	"github.com/georgepadayatti/contractpdf/pdf/content"
	"github.com/georgepadayatti/contractpdf/pdf/document"
	"github.com/georgepadayatti/contractpdf/pdf/generic"
)

// Flatten draws each visible widget's normal appearance into its page,
// removes the widget annotations and drops /AcroForm from the catalog. The
// form is sealed afterwards.
func (f *Form) Flatten() error {
	if f.flattened {
		return ErrFlattened
	}

	err := f.doc.Mutate(func(tx *document.Tx) error {
		doc := tx.Document()
		perPage := make(map[int]*content.ContentBuilder)
		removed := make(map[int]bool)
		removedDirect := make(map[*generic.DictionaryObject]bool)

		for _, field := range f.fields {
			for _, w := range field.Widgets {
				if !w.Ref.IsZero() {
					removed[w.Ref.ObjectNumber] = true
				}
				removedDirect[w.Dict] = true

				if w.Hidden() || w.PageIndex < 0 {
					continue
				}
				ref, bbox, ok := normalAppearance(doc, w)
				if !ok {
					klog.V(4).InfoS("Widget has no appearance, dropping", "field", field.FullName)
					continue
				}
				name, err := tx.AddResource(w.PageIndex, "XObject", "Fm", ref)
				if err != nil {
					return err
				}

				cb, exists := perPage[w.PageIndex]
				if !exists {
					cb = content.NewContentBuilder()
					perPage[w.PageIndex] = cb
				}
				a, b, c, d, e, fy := placementMatrix(bbox, w.Rect)
				cb.SaveState().Transform(a, b, c, d, e, fy).PaintXObject(name).RestoreState()
			}
		}

		for i, page := range doc.Pages() {
			if cb, ok := perPage[i]; ok {
				if err := tx.AppendContent(i, cb.Render()); err != nil {
					return err
				}
			}

			annots := doc.ResolveArray(page.Dict.Get("Annots"))
			if len(annots) == 0 {
				continue
			}
			kept := make(generic.ArrayObject, 0, len(annots))
			for _, item := range annots {
				if ref, ok := item.(generic.Reference); ok && removed[ref.ObjectNumber] {
					continue
				}
				if d, ok := item.(*generic.DictionaryObject); ok && removedDirect[d] {
					continue
				}
				kept = append(kept, item)
			}
			if len(kept) != len(annots) {
				if err := tx.SetPageAnnots(i, kept); err != nil {
					return err
				}
			}
		}

		tx.RemoveCatalogEntry("AcroForm")
		return nil
	})
	if err != nil {
		return err
	}

	f.flattened = true
	f.fields = nil
	f.byName = make(map[string]*Field)
	return nil
}

// normalAppearance returns the widget's /AP /N form XObject, picking the /AS
// state for multi-state appearances.
func normalAppearance(doc *document.Document, w Widget) (generic.Reference, layout.Box, bool) {
	ap := doc.ResolveDict(w.Dict.Get("AP"))
	if ap == nil {
		return generic.Reference{}, layout.Box{}, false
	}

	n := ap.Get("N")
	if states := doc.ResolveDict(n); states != nil && doc.ResolveStream(n) == nil {
		n = states.Get(w.Dict.GetName("AS"))
	}
	ref, ok := n.(generic.Reference)
	if !ok {
		return generic.Reference{}, layout.Box{}, false
	}
	stream := doc.ResolveStream(ref)
	if stream == nil {
		return generic.Reference{}, layout.Box{}, false
	}

	if !stream.Dictionary.Has("Subtype") {
		stream.Dictionary.Set("Type", generic.NameObject("XObject"))
		stream.Dictionary.Set("Subtype", generic.NameObject("Form"))
	}

	bbox := layout.NewBox(0, 0, w.Rect.Width, w.Rect.Height)
	if rect, err := generic.ParseRectangle(doc.Resolve(stream.Dictionary.Get("BBox"))); err == nil {
		bbox = transformedBBox(rect, formMatrix(doc, stream.Dictionary))
	}
	return ref, bbox, true
}

func formMatrix(doc *document.Document, dict *generic.DictionaryObject) [6]float64 {
	m := [6]float64{1, 0, 0, 1, 0, 0}
	arr := doc.ResolveArray(dict.Get("Matrix"))
	if len(arr) != 6 {
		return m
	}
	for i, item := range arr {
		v, ok := generic.Number(item)
		if !ok {
			return [6]float64{1, 0, 0, 1, 0, 0}
		}
		m[i] = v
	}
	return m
}

// transformedBBox is the bounding box of rect mapped through m.
func transformedBBox(rect *generic.Rectangle, m [6]float64) layout.Box {
	xs := [4]float64{rect.LLX, rect.URX, rect.LLX, rect.URX}
	ys := [4]float64{rect.LLY, rect.LLY, rect.URY, rect.URY}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for i := range xs {
		x := m[0]*xs[i] + m[2]*ys[i] + m[4]
		y := m[1]*xs[i] + m[3]*ys[i] + m[5]
		minX, maxX = math.Min(minX, x), math.Max(maxX, x)
		minY, maxY = math.Min(minY, y), math.Max(maxY, y)
	}
	return layout.BoxFromCorners(minX, minY, maxX, maxY)
}

// placementMatrix maps the transformed appearance box onto the widget rect.
func placementMatrix(bbox, rect layout.Box) (a, b, c, d, e, f float64) {
	sx, sy := 1.0, 1.0
	if bbox.Width > 0 {
		sx = rect.Width / bbox.Width
	}
	if bbox.Height > 0 {
		sy = rect.Height / bbox.Height
	}
	return sx, 0, 0, sy, rect.X - bbox.X*sx, rect.Y - bbox.Y*sy
}
