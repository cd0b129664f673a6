// Package stamp draws signature images and text onto document pages.
//
// Every draw appends one q…Q content stream to the page and registers the
// image or font under a fresh resource name. The page's original content is
// wrapped in q/Q the first time it is drawn on.
package stamp

import (
	"errors"
	"fmt"

	"k8s.io/klog/v2"

	"github.com/georgepadayatti/contractpdf/layout"
	"github.com/georgepadayatti/contractpdf/pdf/content"
	"github.com/georgepadayatti/contractpdf/pdf/document"
	"github.com/georgepadayatti/contractpdf/pdf/fonts"
	"github.com/georgepadayatti/contractpdf/pdf/images"
)

// ErrEmptyView is returned when a view has no area.
var ErrEmptyView = errors.New("signature view has no area")

// LateralOptions configures the margin copies of the signature.
type LateralOptions struct {
	// Anchor is the rotation point on each page.
	Anchor layout.Point
}

// DefaultLateralOptions returns the stock anchor at (45, 100).
func DefaultLateralOptions() LateralOptions {
	cal := layout.DefaultCalibration()
	return LateralOptions{Anchor: cal.LateralAnchor}
}

// Lateral draws view rotated 90° counter-clockwise about the anchor on every
// page except the last. It returns the number of pages drawn on.
func Lateral(doc *document.Document, view images.View, opts LateralOptions) (int, error) {
	pages := doc.PageCount() - 1
	if pages <= 0 {
		return 0, nil
	}
	if !(view.Width > 0) || !(view.Height > 0) {
		return 0, ErrEmptyView
	}

	at := opts.Anchor
	for i := 0; i < pages; i++ {
		// (u, v) -> (x - h·v, y + w·u)
		err := drawImage(doc, i, view, func(cb *content.ContentBuilder) {
			cb.Transform(0, view.Width, -view.Height, 0, at.X, at.Y)
		})
		if err != nil {
			return i, fmt.Errorf("failed to draw lateral signature on page %d: %w", i+1, err)
		}
	}
	klog.V(2).InfoS("Drew lateral signatures", "pages", pages, "anchor", at)
	return pages, nil
}

// Place draws view unrotated with its lower-left corner at at.
func Place(doc *document.Document, pageIndex int, view images.View, at layout.Point) error {
	if !(view.Width > 0) || !(view.Height > 0) {
		return ErrEmptyView
	}
	return drawImage(doc, pageIndex, view, func(cb *content.ContentBuilder) {
		cb.Transform(view.Width, 0, 0, view.Height, at.X, at.Y)
	})
}

func drawImage(doc *document.Document, pageIndex int, view images.View, place func(*content.ContentBuilder)) error {
	ref, err := view.Source.XObject(doc)
	if err != nil {
		return err
	}
	return doc.Mutate(func(tx *document.Tx) error {
		name, err := tx.AddResource(pageIndex, "XObject", "Sig", ref)
		if err != nil {
			return err
		}
		cb := content.NewContentBuilder().SaveState()
		place(cb)
		cb.PaintXObject(name).RestoreState()
		return tx.AppendContent(pageIndex, cb.Render())
	})
}

// Text draws a single line of black text with its baseline origin at at.
// Empty text draws nothing.
func Text(doc *document.Document, pageIndex int, font fonts.Font, size float64, at layout.Point, text string) error {
	if text == "" {
		return nil
	}
	ref, err := font.Resource(doc)
	if err != nil {
		return fmt.Errorf("failed to register font %s: %w", font.Name(), err)
	}

	return doc.Mutate(func(tx *document.Tx) error {
		name, err := tx.AddResource(pageIndex, "Font", "F", ref)
		if err != nil {
			return err
		}
		cb := content.NewContentBuilder().
			SaveState().
			BeginText().
			SetFillGray(0).
			SetFont(name, size).
			TextPosition(at.X, at.Y)
		if encoded := font.Encode(text); font.Multibyte() {
			cb.ShowHexText(encoded)
		} else {
			cb.ShowText(encoded)
		}
		cb.EndText().RestoreState()
		return tx.AppendContent(pageIndex, cb.Render())
	})
}
