// Package contract composes signed contract documents: it fills a template's
// form, stamps the handwritten signature on every page and returns the
// flattened result.
package contract

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"k8s.io/klog/v2"

	"github.com/georgepadayatti/contractpdf/layout"
	"github.com/georgepadayatti/contractpdf/pdf/document"
	"github.com/georgepadayatti/contractpdf/pdf/fonts"
	"github.com/georgepadayatti/contractpdf/pdf/form"
	"github.com/georgepadayatti/contractpdf/pdf/images"
	"github.com/georgepadayatti/contractpdf/pdf/writer"
	"github.com/georgepadayatti/contractpdf/stamp"
)

// Config configures an Engine. Zero values take the defaults.
type Config struct {
	// FieldNames maps keys to template field names. Keys without a name
	// are never filled.
	FieldNames   map[Key]string
	SignatureBox string
	DataBox      string

	Calibration layout.Calibration
	// Templates holds per-template calibrations keyed by template key.
	Templates map[string]layout.Calibration

	BlankPage layout.PageSize
	// TextSize is the size of the accompanying name and ID text.
	TextSize float64
	// MaxImageDimension bounds the decoded signature, in pixels.
	MaxImageDimension int
	Producer          string

	// FontCache is shared between engines. Nil gets a private cache.
	FontCache *fonts.ProgramCache
	// Now stamps document dates. Nil means time.Now.
	Now func() time.Time
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	return Config{
		FieldNames:        DefaultFieldNames(),
		SignatureBox:      DefaultSignatureBox,
		DataBox:           DefaultDataBox,
		Calibration:       layout.DefaultCalibration(),
		BlankPage:         layout.Letter,
		TextSize:          10,
		MaxImageDimension: images.DefaultMaxDimension,
	}
}

// Engine generates contract documents. It is safe for concurrent use; each
// call works on its own document.
type Engine struct {
	cfg    Config
	fonts  *fonts.Resolver
	layout *layout.Resolver
	upper  cases.Caser
}

// New creates an engine.
func New(cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.FieldNames == nil {
		cfg.FieldNames = def.FieldNames
	}
	if cfg.SignatureBox == "" {
		cfg.SignatureBox = def.SignatureBox
	}
	if cfg.DataBox == "" {
		cfg.DataBox = def.DataBox
	}
	if cfg.Calibration == (layout.Calibration{}) {
		cfg.Calibration = def.Calibration
	}
	if cfg.BlankPage.Width <= 0 || cfg.BlankPage.Height <= 0 {
		cfg.BlankPage = def.BlankPage
	}
	if cfg.TextSize <= 0 {
		cfg.TextSize = def.TextSize
	}
	if cfg.MaxImageDimension <= 0 {
		cfg.MaxImageDimension = def.MaxImageDimension
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Engine{
		cfg:    cfg,
		fonts:  fonts.NewResolver(cfg.FontCache),
		layout: layout.NewResolver(cfg.Calibration, cfg.Templates),
		upper:  cases.Upper(language.Und),
	}
}

// Request is one contract to generate.
type Request struct {
	// Template is the template PDF. Nil means a blank page.
	Template  []byte
	Signature []byte
	Fields    Fields
	// RegularFont and BoldFont are optional TrueType programs.
	RegularFont []byte
	BoldFont    []byte
	// TemplateKey selects a per-template calibration.
	TemplateKey string
}

// Validate checks the required inputs.
func (r Request) Validate() error {
	var missing []string
	if len(r.Signature) == 0 {
		missing = append(missing, "signature")
	}
	if r.Fields.LegalName == "" {
		missing = append(missing, string(KeyLegalName))
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %v", ErrMissingFields, missing)
	}
	return nil
}

// Result is a generated contract.
type Result struct {
	Document []byte           `json:"-" yaml:"-"`
	Pages    int              `json:"pages" yaml:"pages"`
	Layout   layout.Plan      `json:"layout" yaml:"layout"`
	Fonts    fonts.Resolution `json:"fonts" yaml:"fonts"`
	Fill     form.FillReport  `json:"fill" yaml:"fill"`
	// Lateral is the number of pages that received a margin signature.
	Lateral int `json:"lateral" yaml:"lateral"`
}

// Generate runs the whole pipeline. Validation failures wrap
// ErrMissingFields; every other failure is a *GenerationError.
func (e *Engine) Generate(ctx context.Context, req Request) (res *Result, err error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	g := &generation{engine: e, req: req, span: trace.SpanFromContext(ctx), stage: StageTemplate}
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, &GenerationError{Stage: g.stage, Err: fmt.Errorf("panic: %v", r)}
		}
		if err != nil {
			var genErr *GenerationError
			if errors.As(err, &genErr) {
				klog.ErrorS(genErr.Err, "Contract generation failed", "stage", genErr.Stage, "template", req.TemplateKey)
			}
		}
	}()

	return g.run(ctx)
}

// generation is the state of one Generate call. It owns the document.
type generation struct {
	engine *Engine
	req    Request
	span   trace.Span
	stage  Stage

	doc    *document.Document
	pair   fonts.Pair
	sig    *images.Signature
	form   *form.Form
	input  layout.Input
	result Result
}

func (g *generation) enter(ctx context.Context, stage Stage) error {
	g.stage = stage
	g.span.AddEvent("stage", trace.WithAttributes(attribute.String("contract.stage", string(stage))))
	if err := ctx.Err(); err != nil {
		return g.fail(err)
	}
	return nil
}

func (g *generation) fail(err error) error {
	return &GenerationError{Stage: g.stage, Err: err}
}

func (g *generation) run(ctx context.Context) (*Result, error) {
	e := g.engine
	cal := e.layout.Calibration(g.req.TemplateKey)

	if err := g.enter(ctx, StageTemplate); err != nil {
		return nil, err
	}
	doc, err := LoadTemplate(g.req.Template, e.cfg.BlankPage)
	if err != nil {
		return nil, g.fail(err)
	}
	g.doc = doc

	if err := g.enter(ctx, StageFonts); err != nil {
		return nil, err
	}
	g.pair, g.result.Fonts = e.fonts.Resolve(doc, g.req.RegularFont, g.req.BoldFont)

	if err := g.enter(ctx, StageSignature); err != nil {
		return nil, err
	}
	g.sig, err = images.DecodeWithOptions(g.req.Signature, images.DecodeOptions{MaxDimension: e.cfg.MaxImageDimension})
	if err != nil {
		return nil, g.fail(err)
	}

	if err := g.enter(ctx, StageGeometry); err != nil {
		return nil, err
	}
	if g.form, err = form.Open(doc); err != nil {
		return nil, g.fail(err)
	}
	g.input = layout.Input{
		SignatureBox: g.captureBox(e.cfg.SignatureBox),
		DataBox:      g.captureBox(e.cfg.DataBox),
		Image:        layout.Size{Width: float64(g.sig.Width), Height: float64(g.sig.Height)},
		Calibration:  cal,
	}

	if err := g.enter(ctx, StageLateral); err != nil {
		return nil, err
	}
	lateral := stamp.LateralOptions{Anchor: cal.LateralAnchor}
	if g.result.Lateral, err = stamp.Lateral(doc, g.sig.Scaled(cal.LateralScale), lateral); err != nil {
		return nil, g.fail(err)
	}

	if g.form.Len() > 0 {
		if err := g.enter(ctx, StageFill); err != nil {
			return nil, err
		}
		if g.result.Fill, err = g.fill(); err != nil {
			return nil, g.fail(err)
		}

		if err := g.enter(ctx, StageFlatten); err != nil {
			return nil, err
		}
		if err := g.form.Flatten(); err != nil {
			return nil, g.fail(err)
		}
	} else {
		klog.V(2).InfoS("Template has no form fields, skipping fill")
	}

	if err := g.enter(ctx, StagePlace); err != nil {
		return nil, err
	}
	plan := e.layout.Resolve(g.input)
	if err := g.place(plan); err != nil {
		return nil, g.fail(err)
	}
	g.result.Layout = plan

	if err := g.enter(ctx, StageFinalize); err != nil {
		return nil, err
	}
	if err := g.pair.Finalize(); err != nil {
		return nil, g.fail(err)
	}
	data, err := writer.Serialize(doc, writer.Options{Producer: e.cfg.Producer, Now: e.cfg.Now()})
	if err != nil {
		return nil, g.fail(err)
	}
	g.result.Document = data
	g.result.Pages = doc.PageCount()

	klog.V(2).InfoS("Generated contract", "template", g.req.TemplateKey, "pages", g.result.Pages,
		"bytes", len(data), "signature", plan.Signature.Source, "filled", len(g.result.Fill.Filled))
	res := g.result
	return &res, nil
}

// captureBox returns the first widget rectangle of the named field, or nil.
func (g *generation) captureBox(name string) *layout.Box {
	if name == "" {
		return nil
	}
	field, ok := g.form.TryGetField(name)
	if !ok || len(field.Widgets) == 0 {
		return nil
	}
	box := field.Widgets[0].Rect
	klog.V(4).InfoS("Captured layout box", "field", name, "box", box)
	return &box
}

// fill writes every mapped value into the form. A missing field is skipped;
// an appearance failure degrades to the standard font, then to no
// appearance.
func (g *generation) fill() (form.FillReport, error) {
	var report form.FillReport
	names := g.engine.cfg.FieldNames

	for _, key := range Keys {
		value := g.req.Fields.Get(key)
		name := names[key]
		if value == "" || name == "" {
			continue
		}
		field, ok := g.form.TryGetField(name)
		if !ok {
			klog.V(4).InfoS("Template has no field for key, skipping", "key", key, "field", name)
			report.Skipped = append(report.Skipped, name)
			continue
		}

		font, fallback := g.pair.Regular, fonts.Helvetica
		if key == KeyLegalName {
			value = g.engine.upper.String(value)
			font, fallback = g.pair.Bold, fonts.HelveticaBold
		}

		if err := g.form.SetText(field, value); err != nil {
			if errors.Is(err, form.ErrFieldTypeMismatch) {
				klog.InfoS("Field is not a text field, skipping", "severity", "warning", "field", name, "err", err)
				report.Skipped = append(report.Skipped, name)
				continue
			}
			return report, fmt.Errorf("failed to set %s: %w", name, err)
		}
		report.Filled = append(report.Filled, name)

		err := g.form.RefreshAppearance(field, font)
		if errors.Is(err, form.ErrLossyText) {
			klog.InfoS("Field text drawn with substitutions", "severity", "warning", "field", name, "err", err)
			report.Degraded = append(report.Degraded, name)
			continue
		}
		if err != nil {
			klog.InfoS("Could not restyle field, retrying with standard font", "severity", "warning",
				"field", name, "font", font.Name(), "err", err)
			report.Degraded = append(report.Degraded, name)
			if err := g.form.RefreshAppearance(field, fonts.NewStandardFont(fallback)); err != nil && !errors.Is(err, form.ErrLossyText) {
				klog.InfoS("Field keeps its value without an appearance", "severity", "warning", "field", name, "err", err)
			}
		}
	}

	klog.V(2).InfoS("Filled form", "filled", len(report.Filled), "skipped", len(report.Skipped), "degraded", len(report.Degraded))
	return report, nil
}

// place draws the main signature and the accompanying text on the last page.
func (g *generation) place(plan layout.Plan) error {
	last := g.doc.PageCount() - 1
	size := plan.Signature.Size
	view := g.sig.Scaled(1).Resized(size.Width, size.Height)
	if err := stamp.Place(g.doc, last, view, plan.Signature.Origin); err != nil {
		return fmt.Errorf("failed to place signature: %w", err)
	}

	textSize := g.engine.cfg.TextSize
	at := plan.Text.Origin
	name := g.engine.upper.String(g.req.Fields.LegalName)
	if err := stamp.Text(g.doc, last, g.pair.Bold, textSize, at, name); err != nil {
		return fmt.Errorf("failed to draw name: %w", err)
	}
	if id := g.req.Fields.IDNumber; id != "" {
		next := layout.Point{X: at.X, Y: at.Y - g.pair.Regular.Metrics().LineHeight(textSize)}
		if err := stamp.Text(g.doc, last, g.pair.Regular, textSize, next, id); err != nil {
			return fmt.Errorf("failed to draw id number: %w", err)
		}
	}
	return nil
}
