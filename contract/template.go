package contract

import (
	"fmt"

	"k8s.io/klog/v2"

	"github.com/georgepadayatti/contractpdf/layout"
	"github.com/georgepadayatti/contractpdf/pdf/document"
)

// LoadTemplate opens data as an editable document. Absent data yields a
// single blank page of size blank and no form.
func LoadTemplate(data []byte, blank layout.PageSize) (*document.Document, error) {
	if len(data) == 0 {
		klog.V(2).InfoS("No template supplied, using blank page", "width", blank.Width, "height", blank.Height)
		return document.NewBlank(blank.Width, blank.Height), nil
	}

	doc, err := document.Open(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTemplateParse, err)
	}
	if doc.PageCount() == 0 {
		return nil, fmt.Errorf("%w: %w", ErrTemplateParse, document.ErrNoPages)
	}
	return doc, nil
}
