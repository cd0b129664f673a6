package form

import (
	"errors"
	"fmt"
	"math"

	"k8s.io/klog/v2"

	"github.com/georgepadayatti/contractpdf/pdf/content"
	"github.com/georgepadayatti/contractpdf/pdf/document"
	"github.com/georgepadayatti/contractpdf/pdf/filters"
	"github.com/georgepadayatti/contractpdf/pdf/fonts"
	"github.com/georgepadayatti/contractpdf/pdf/generic"
)

const (
	// appearancePadding is the gap between the widget border and the text.
	appearancePadding = 2.0
	// maxAutoFontSize caps auto-sized text in tall fields.
	maxAutoFontSize = 12.0
	minAutoFontSize = 4.0
)

var (
	// ErrEmptyWidget is returned for widgets with no area.
	ErrEmptyWidget = errors.New("widget rectangle has no area")
	// ErrLossyText is returned when the appearance was written but the font
	// cannot draw some of the value.
	ErrLossyText = errors.New("value not fully drawable in font")
)

// RefreshAppearance rebuilds the normal appearance of every widget of field
// from its current value, drawn with font. The text is left-aligned and
// vertically centered. The size comes from /DA, or is fitted to the widget
// when /DA says 0. If font lacks codes for part of the value the appearance
// is still written and ErrLossyText is returned.
func (f *Form) RefreshAppearance(field *Field, font fonts.Font) error {
	if f.flattened {
		return ErrFlattened
	}
	if len(field.Widgets) == 0 {
		return ErrNoWidgets
	}

	fontRef, err := font.Resource(f.doc)
	if err != nil {
		return fmt.Errorf("failed to register appearance font: %w", err)
	}

	value := field.Value()
	streams := make([]*generic.StreamObject, len(field.Widgets))
	for i, w := range field.Widgets {
		da := field.DA
		if own := stringValue(f.doc.Resolve(w.Dict.Get("DA"))); own != "" {
			da = own
		}
		stream, err := buildAppearance(w, content.ParseDA(da), font, fontRef, value)
		if err != nil {
			return fmt.Errorf("failed to build appearance for %s: %w", field.FullName, err)
		}
		streams[i] = stream
	}

	err = f.doc.Mutate(func(tx *document.Tx) error {
		for i, w := range field.Widgets {
			ap := generic.NewDictionary()
			ap.Set("N", tx.AddObject(streams[i]))
			w.Dict.Set("AP", ap)
			w.Dict.Delete("AS")
		}
		return nil
	})
	if err != nil {
		return err
	}

	if missing := font.Missing(value); len(missing) > 0 {
		return fmt.Errorf("%w: %s cannot draw %q", ErrLossyText, font.Name(), string(missing))
	}
	return nil
}

func buildAppearance(w Widget, da content.DefaultAppearance, font fonts.Font, fontRef generic.Reference, value string) (*generic.StreamObject, error) {
	width, height := w.Rect.Width, w.Rect.Height
	if !(width > 0) || !(height > 0) {
		return nil, ErrEmptyWidget
	}

	size := da.Size
	if size <= 0 {
		size = autoFontSize(font, value, width, height)
	}

	m := font.Metrics()
	lineHeight := m.LineHeight(size)
	baseline := (height-lineHeight)/2 - m.Descender*size/1000

	cb := content.NewContentBuilder().
		BeginMarkedContent("Tx").
		SaveState().
		Rectangle(appearancePadding/2, appearancePadding/2, width-appearancePadding, height-appearancePadding).
		Clip().
		BeginText()
	if da.Color != nil {
		cb.Append([]content.Operation{*da.Color})
	} else {
		cb.SetFillGray(0)
	}
	cb.SetFont("F1", size).TextPosition(appearancePadding, baseline)
	if encoded := font.Encode(value); font.Multibyte() {
		cb.ShowHexText(encoded)
	} else {
		cb.ShowText(encoded)
	}
	cb.EndText().RestoreState().EndMarkedContent()

	fontDict := generic.NewDictionary()
	fontDict.Set("F1", fontRef)
	resources := generic.NewDictionary()
	resources.Set("Font", fontDict)

	dict := generic.NewDictionary()
	dict.Set("Type", generic.NameObject("XObject"))
	dict.Set("Subtype", generic.NameObject("Form"))
	dict.Set("BBox", generic.NumberArray(0, 0, width, height))
	dict.Set("Resources", resources)

	klog.V(4).InfoS("Built field appearance", "font", font.Name(), "size", size, "width", width, "height", height)
	return filters.NewFlateStream(dict, cb.Render())
}

// autoFontSize picks the largest size at which value fits the widget.
func autoFontSize(font fonts.Font, value string, width, height float64) float64 {
	lineFactor := font.Metrics().LineHeight(1)
	if lineFactor <= 0 {
		lineFactor = 1
	}
	size := (height - 2*appearancePadding) / lineFactor

	if unit := font.Width(value, 1); unit > 0 {
		size = math.Min(size, (width-2*appearancePadding)/unit)
	}
	return math.Max(minAutoFontSize, math.Min(size, maxAutoFontSize))
}
