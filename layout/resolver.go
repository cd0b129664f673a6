package layout

// Calibration holds the placement constants of a template family.
type Calibration struct {
	// SignatureCorrectionY is added to the centered signature origin.
	SignatureCorrectionY float64 `json:"signatureCorrectionY" yaml:"signature-correction-y"`
	// TextCorrectionY is added to the data box text baseline.
	TextCorrectionY float64 `json:"textCorrectionY" yaml:"text-correction-y"`
	// TextBaselineInset is the distance from the data box top to the baseline.
	TextBaselineInset float64 `json:"textBaselineInset" yaml:"text-baseline-inset"`
	// FallbackSignature is the signature origin when no box exists.
	FallbackSignature Point `json:"fallbackSignature" yaml:"fallback-signature"`
	// FallbackTextDrop is how far below the signature the text goes when no
	// data box exists.
	FallbackTextDrop float64 `json:"fallbackTextDrop" yaml:"fallback-text-drop"`
	MainScale        float64 `json:"mainScale" yaml:"main-scale"`
	LateralScale     float64 `json:"lateralScale" yaml:"lateral-scale"`
	LateralAnchor    Point   `json:"lateralAnchor" yaml:"lateral-anchor"`
}

// DefaultCalibration returns the calibration measured on the stock contract
// templates.
func DefaultCalibration() Calibration {
	return Calibration{
		SignatureCorrectionY: -120,
		TextCorrectionY:      -120,
		TextBaselineInset:    10,
		FallbackSignature:    Point{X: 310, Y: 450},
		FallbackTextDrop:     20,
		MainScale:            0.6,
		LateralScale:         0.5,
		LateralAnchor:        Point{X: 45, Y: 100},
	}
}

// CalibrationOverride replaces the fields that are set.
type CalibrationOverride struct {
	SignatureCorrectionY *float64 `yaml:"signature-correction-y"`
	TextCorrectionY      *float64 `yaml:"text-correction-y"`
	TextBaselineInset    *float64 `yaml:"text-baseline-inset"`
	FallbackSignature    *Point   `yaml:"fallback-signature"`
	FallbackTextDrop     *float64 `yaml:"fallback-text-drop"`
	MainScale            *float64 `yaml:"main-scale"`
	LateralScale         *float64 `yaml:"lateral-scale"`
	LateralAnchor        *Point   `yaml:"lateral-anchor"`
}

// Apply returns base with the override's set fields replaced.
func (o CalibrationOverride) Apply(base Calibration) Calibration {
	if o.SignatureCorrectionY != nil {
		base.SignatureCorrectionY = *o.SignatureCorrectionY
	}
	if o.TextCorrectionY != nil {
		base.TextCorrectionY = *o.TextCorrectionY
	}
	if o.TextBaselineInset != nil {
		base.TextBaselineInset = *o.TextBaselineInset
	}
	if o.FallbackSignature != nil {
		base.FallbackSignature = *o.FallbackSignature
	}
	if o.FallbackTextDrop != nil {
		base.FallbackTextDrop = *o.FallbackTextDrop
	}
	if o.MainScale != nil {
		base.MainScale = *o.MainScale
	}
	if o.LateralScale != nil {
		base.LateralScale = *o.LateralScale
	}
	if o.LateralAnchor != nil {
		base.LateralAnchor = *o.LateralAnchor
	}
	return base
}

// Source tells which rule produced a placement.
type Source string

const (
	SourceBox      Source = "box"
	SourceFallback Source = "fallback"
)

// Input is everything the resolver looks at. Boxes are captured from the
// form before it is flattened; nil means the template has no such field.
type Input struct {
	SignatureBox *Box
	DataBox      *Box
	// Image is the intrinsic signature size.
	Image       Size
	Calibration Calibration
}

// SignaturePlacement is where the main signature is drawn.
type SignaturePlacement struct {
	Origin Point  `json:"origin" yaml:"origin"`
	Size   Size   `json:"size" yaml:"size"`
	Source Source `json:"source" yaml:"source"`
}

// TextPlacement is the baseline origin of the accompanying text.
type TextPlacement struct {
	Origin Point  `json:"origin" yaml:"origin"`
	Source Source `json:"source" yaml:"source"`
}

// Plan is the resolved layout of the last page.
type Plan struct {
	Signature SignaturePlacement `json:"signature" yaml:"signature"`
	Text      TextPlacement      `json:"text" yaml:"text"`
	// Uncorrected is the signature origin before the vertical correction.
	Uncorrected Point `json:"uncorrected" yaml:"uncorrected"`
}

// Resolve computes the plan for in. It is deterministic. A box with no area
// is treated as absent.
func Resolve(in Input) Plan {
	cal := in.Calibration
	var plan Plan

	if in.SignatureBox != nil && !in.SignatureBox.IsEmpty() {
		box := *in.SignatureBox
		fitted := ContainFit(box, in.Image)
		origin := Center(box, fitted)
		plan.Uncorrected = origin
		plan.Signature = SignaturePlacement{
			Origin: Point{X: origin.X, Y: origin.Y + cal.SignatureCorrectionY},
			Size:   fitted,
			Source: SourceBox,
		}
	} else {
		plan.Uncorrected = cal.FallbackSignature
		plan.Signature = SignaturePlacement{
			Origin: cal.FallbackSignature,
			Size:   in.Image.Scale(cal.MainScale),
			Source: SourceFallback,
		}
	}

	if in.DataBox != nil && !in.DataBox.IsEmpty() {
		box := *in.DataBox
		plan.Text = TextPlacement{
			Origin: Point{X: box.X, Y: box.Top() - cal.TextBaselineInset + cal.TextCorrectionY},
			Source: SourceBox,
		}
	} else {
		sig := plan.Signature.Origin
		plan.Text = TextPlacement{
			Origin: Point{X: sig.X, Y: sig.Y - cal.FallbackTextDrop},
			Source: SourceFallback,
		}
	}
	return plan
}

// Resolver resolves plans with per-template calibrations.
type Resolver struct {
	Default   Calibration
	Templates map[string]Calibration
}

// NewResolver creates a resolver. Templates may be nil.
func NewResolver(def Calibration, templates map[string]Calibration) *Resolver {
	return &Resolver{Default: def, Templates: templates}
}

// Calibration returns the calibration for templateKey, or the default.
func (r *Resolver) Calibration(templateKey string) Calibration {
	if cal, ok := r.Templates[templateKey]; ok {
		return cal
	}
	return r.Default
}

// Resolve computes the plan for in.
func (r *Resolver) Resolve(in Input) Plan {
	return Resolve(in)
}
