package fonts

import (
	"k8s.io/klog/v2"

	"github.com/georgepadayatti/contractpdf/pdf/document"
)

// Resolver picks the regular and bold fonts for a document. Custom programs
// are parsed once per process through Cache.
type Resolver struct {
	Cache *ProgramCache
}

// NewResolver creates a resolver backed by cache. A nil cache gets a private
// one.
func NewResolver(cache *ProgramCache) *Resolver {
	if cache == nil {
		cache = NewProgramCache()
	}
	return &Resolver{Cache: cache}
}

// Resolve returns a usable pair for doc. Each weight embeds its bytes when
// present and falls back to Helvetica or Helvetica-Bold on any failure. A
// missing bold weight aliases an embedded regular one. Resolve never fails;
// failures are logged.
func (r *Resolver) Resolve(doc *document.Document, regular, bold []byte) (Pair, Resolution) {
	pair := Pair{
		Regular: NewStandardFont(Helvetica),
		Bold:    NewStandardFont(HelveticaBold),
	}
	res := Resolution{Regular: SourceStandard, Bold: SourceStandard}

	if len(regular) == 0 && len(bold) == 0 {
		return pair, res
	}

	embedder, err := NewEmbedder(doc)
	if err != nil {
		klog.InfoS("Font embedding unavailable, using standard fonts", "severity", "warning", "err", err)
		if len(regular) > 0 {
			res.Fallbacks++
		}
		if len(bold) > 0 {
			res.Fallbacks++
		}
		return pair, res
	}
	pair.embedder = embedder

	if f, ok := r.embed(embedder, regular, "regular"); ok {
		pair.Regular = f
		res.Regular = SourceEmbedded
	} else if len(regular) > 0 {
		res.Fallbacks++
	}

	switch {
	case len(bold) > 0:
		if f, ok := r.embed(embedder, bold, "bold"); ok {
			pair.Bold = f
			res.Bold = SourceEmbedded
		} else {
			res.Fallbacks++
		}
	case res.Regular == SourceEmbedded:
		pair.Bold = pair.Regular
		res.Bold = SourceAliased
	}

	klog.V(2).InfoS("Resolved fonts", "regular", pair.Regular.Name(), "regularSource", res.Regular,
		"bold", pair.Bold.Name(), "boldSource", res.Bold)
	return pair, res
}

func (r *Resolver) embed(e *Embedder, data []byte, weight string) (Font, bool) {
	if len(data) == 0 {
		return nil, false
	}
	program, err := r.Cache.Load(data)
	if err != nil {
		klog.InfoS("Could not load font, using standard font", "severity", "warning", "weight", weight, "err", err)
		return nil, false
	}
	f := e.Embed(program)
	if _, err := f.Resource(e.doc); err != nil {
		klog.InfoS("Could not embed font, using standard font", "severity", "warning", "weight", weight, "err", err)
		e.drop(f)
		return nil, false
	}
	return f, true
}
