package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"k8s.io/klog/v2"

	"github.com/georgepadayatti/contractpdf/contract"
)

type generateOptions struct {
	template    string
	signature   string
	regularFont string
	boldFont    string
	templateKey string
	out         string
	fields      []string
	printLayout bool
}

func (a *App) newGenerateCmd() *cobra.Command {
	opts := &generateOptions{}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Compose a signed contract locally",
		Long: `Compose a signed contract from local files and write the PDF.

Without --template the contract is a single blank page.

Examples:
  contractpdf generate --template alta.pdf --signature firma.png \
    --field legal-name="María Gómez" --field id-number=12345678Z --out contrato.pdf

  contractpdf generate --signature firma.png --field legal-name=Ana --out c.pdf --print-layout`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runGenerate(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.template, "template", "", "Template PDF")
	cmd.Flags().StringVar(&opts.signature, "signature", "", "Signature image (PNG, JPEG or GIF)")
	cmd.Flags().StringVar(&opts.regularFont, "regular-font", "", "Regular TrueType font")
	cmd.Flags().StringVar(&opts.boldFont, "bold-font", "", "Bold TrueType font")
	cmd.Flags().StringVar(&opts.templateKey, "template-key", "", "Template key selecting a calibration")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "Output PDF")
	cmd.Flags().StringArrayVarP(&opts.fields, "field", "f", nil, "Field value as key=value (repeatable)")
	cmd.Flags().BoolVar(&opts.printLayout, "print-layout", false, "Print the resolved layout as YAML")

	_ = cmd.MarkFlagRequired("signature")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}

func (a *App) runGenerate(cmd *cobra.Command, opts *generateOptions) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	engineCfg, err := cfg.Engine()
	if err != nil {
		return err
	}

	fields, err := parseFields(opts.fields)
	if err != nil {
		return err
	}

	req := contract.Request{Fields: fields, TemplateKey: opts.templateKey}
	for _, in := range []struct {
		path string
		dst  *[]byte
	}{
		{opts.template, &req.Template},
		{opts.signature, &req.Signature},
		{opts.regularFont, &req.RegularFont},
		{opts.boldFont, &req.BoldFont},
	} {
		if in.path == "" {
			continue
		}
		data, err := os.ReadFile(in.path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", in.path, err)
		}
		*in.dst = data
	}

	res, err := contract.New(engineCfg).Generate(cmd.Context(), req)
	if err != nil {
		var genErr *contract.GenerationError
		if errors.As(err, &genErr) {
			klog.ErrorS(genErr.Cause(), "Generation failed", "stage", genErr.Stage)
		}
		return err
	}

	if err := os.WriteFile(opts.out, res.Document, 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}

	if opts.printLayout {
		enc := yaml.NewEncoder(a.stdout)
		enc.SetIndent(2)
		if err := enc.Encode(res); err != nil {
			return fmt.Errorf("failed to print layout: %w", err)
		}
		return enc.Close()
	}
	fmt.Fprintf(a.stdout, "Wrote %s (%d pages)\n", opts.out, res.Pages)
	return nil
}

// parseFields reads key=value pairs into Fields.
func parseFields(pairs []string) (contract.Fields, error) {
	var fields contract.Fields
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return fields, fmt.Errorf("invalid field %q: expected key=value", pair)
		}
		if !fields.Set(contract.Key(strings.TrimSpace(key)), value) {
			return fields, fmt.Errorf("unknown field key %q", key)
		}
	}
	return fields, nil
}
