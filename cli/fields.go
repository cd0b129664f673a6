package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/georgepadayatti/contractpdf/pdf/document"
	"github.com/georgepadayatti/contractpdf/pdf/form"
)

func (a *App) newFieldsCmd() *cobra.Command {
	var template string

	cmd := &cobra.Command{
		Use:   "fields",
		Short: "List the form fields of a template",
		Long: `List every form field of a template with its type and widget
rectangles. Use it to calibrate the signature and data boxes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.listFields(template)
		},
	}
	cmd.Flags().StringVarP(&template, "template", "t", "", "Template PDF")
	_ = cmd.MarkFlagRequired("template")
	return cmd
}

func (a *App) listFields(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read template: %w", err)
	}
	doc, err := document.Open(data)
	if err != nil {
		return fmt.Errorf("failed to open template: %w", err)
	}
	f, err := form.Open(doc)
	if err != nil {
		return fmt.Errorf("failed to read form: %w", err)
	}

	if f.Len() == 0 {
		fmt.Fprintf(a.stdout, "%s has no form fields (%d pages)\n", path, doc.PageCount())
		return nil
	}

	w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTYPE\tPAGE\tX\tY\tWIDTH\tHEIGHT")
	for _, field := range f.Fields() {
		if len(field.Widgets) == 0 {
			fmt.Fprintf(w, "%s\t%s\t-\t-\t-\t-\t-\n", field.FullName, field.Type)
			continue
		}
		for _, widget := range field.Widgets {
			page := "-"
			if widget.PageIndex >= 0 {
				page = fmt.Sprint(widget.PageIndex + 1)
			}
			r := widget.Rect
			fmt.Fprintf(w, "%s\t%s\t%s\t%g\t%g\t%g\t%g\n", field.FullName, field.Type, page, r.X, r.Y, r.Width, r.Height)
		}
	}
	return w.Flush()
}
