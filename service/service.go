// Package service generates contracts for stored entities: it fetches the
// template and fonts, runs the engine, stores the document and updates the
// entity's record.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/georgepadayatti/contractpdf/config"
	"github.com/georgepadayatti/contractpdf/contract"
	"github.com/georgepadayatti/contractpdf/records"
	"github.com/georgepadayatti/contractpdf/storage"
	"github.com/georgepadayatti/contractpdf/telemetry"
)

// Common errors
var (
	// ErrGenerationFailed is the opaque failure returned for everything but
	// invalid requests.
	ErrGenerationFailed = contract.ErrGenerationFailed
	// ErrNoRecords is returned by Record when no repository is configured.
	ErrNoRecords = errors.New("contract records are not kept")
)

// Composer runs the composition pipeline. *contract.Engine implements it.
type Composer interface {
	Generate(ctx context.Context, req contract.Request) (*contract.Result, error)
}

// Config configures a Generator.
type Config struct {
	// Timeout bounds one call, I/O included. Zero means no bound.
	Timeout        time.Duration
	TemplatePrefix string
	RegularFontKey string
	BoldFontKey    string
	// Metrics is optional.
	Metrics *telemetry.Metrics
	Now     func() time.Time
}

// ConfigFrom builds the service configuration from the application config.
func ConfigFrom(c *config.AppConfig) Config {
	return Config{
		Timeout:        c.Service.Timeout,
		TemplatePrefix: c.Service.TemplatePrefix,
		RegularFontKey: c.Fonts.RegularKey,
		BoldFontKey:    c.Fonts.BoldKey,
	}
}

// Request asks for the contract of one entity.
type Request struct {
	EntityID string
	// TemplateKey names templates/<key>.pdf. Empty means a blank page.
	TemplateKey string
	Signature   []byte
	Fields      contract.Fields
}

// Outcome is a stored contract.
type Outcome struct {
	EntityID  string
	Reference storage.Reference
	Record    *records.Contract
	Result    *contract.Result
}

// Generator generates and stores contracts.
type Generator struct {
	engine Composer
	store  storage.BlobStore
	sink   storage.Sink
	repo   records.Repository
	cfg    Config
}

// New creates a generator. repo may be nil when no records are kept.
func New(engine Composer, store storage.BlobStore, sink storage.Sink, repo records.Repository, cfg Config) *Generator {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Generator{engine: engine, store: store, sink: sink, repo: repo, cfg: cfg}
}

// Generate produces, stores and records the contract of req.EntityID.
// Invalid requests wrap contract.ErrMissingFields; every other failure is
// ErrGenerationFailed, with details logged only.
func (g *Generator) Generate(ctx context.Context, req Request) (out *Outcome, err error) {
	start := g.cfg.Now()
	ctx, span := telemetry.StartGenerate(ctx, req.EntityID, req.TemplateKey)
	defer func() {
		telemetry.EndSpan(span, err)
		g.cfg.Metrics.RecordGeneration(ctx, req.TemplateKey, outcomeOf(err), g.cfg.Now().Sub(start))
	}()

	if err := validate(req); err != nil {
		return nil, err
	}

	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	out, err = g.generate(ctx, req)
	if err != nil {
		if errors.Is(err, contract.ErrMissingFields) {
			return nil, err
		}
		klog.ErrorS(causeOf(err), "Contract generation failed", "entityID", req.EntityID, "templateKey", req.TemplateKey)
		g.markFailed(req.EntityID)
		return nil, ErrGenerationFailed
	}

	klog.InfoS("Contract generated", "entityID", req.EntityID, "key", out.Reference.Key, "pages", out.Result.Pages)
	return out, nil
}

// Record returns the stored record of entityID, or records.ErrNotFound.
func (g *Generator) Record(ctx context.Context, entityID string) (*records.Contract, error) {
	if g.repo == nil {
		return nil, ErrNoRecords
	}
	return g.repo.Get(ctx, entityID)
}

func (g *Generator) generate(ctx context.Context, req Request) (*Outcome, error) {
	inputs, err := g.fetch(ctx, req.TemplateKey)
	if err != nil {
		return nil, err
	}

	result, err := g.engine.Generate(ctx, contract.Request{
		Template:    inputs.template,
		Signature:   req.Signature,
		Fields:      req.Fields,
		RegularFont: inputs.regular,
		BoldFont:    inputs.bold,
		TemplateKey: req.TemplateKey,
	})
	if err != nil {
		return nil, err
	}
	g.cfg.Metrics.RecordFontFallbacks(ctx, result.Fonts.Fallbacks)

	key, err := storage.OutputKey(req.EntityID, g.cfg.Now())
	if err != nil {
		return nil, err
	}
	ref, err := g.sink.Put(ctx, key, result.Document, storage.ContentTypePDF)
	if err != nil {
		return nil, fmt.Errorf("failed to store contract: %w", err)
	}

	out := &Outcome{EntityID: req.EntityID, Reference: ref, Result: result}
	if g.repo != nil {
		record, err := g.repo.MarkGenerated(ctx, req.EntityID, req.TemplateKey, ref.Key, ref.URL)
		if err != nil {
			return nil, err
		}
		out.Record = record
	}
	return out, nil
}

type inputs struct {
	template []byte
	regular  []byte
	bold     []byte
}

// fetch reads the template and both fonts concurrently. Absent blobs stay
// nil.
func (g *Generator) fetch(ctx context.Context, templateKey string) (*inputs, error) {
	in := &inputs{}
	eg, ctx := errgroup.WithContext(ctx)

	get := func(key string, dst *[]byte) {
		eg.Go(func() error {
			data, ok, err := storage.TryGet(ctx, g.store, key)
			if err != nil {
				return fmt.Errorf("failed to fetch %s: %w", key, err)
			}
			if !ok {
				klog.V(2).InfoS("Blob absent", "key", key)
				return nil
			}
			*dst = data
			return nil
		})
	}

	if templateKey != "" {
		get(g.templateKey(templateKey), &in.template)
	}
	get(g.cfg.RegularFontKey, &in.regular)
	get(g.cfg.BoldFontKey, &in.bold)

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return in, nil
}

func (g *Generator) templateKey(key string) string {
	if !strings.HasSuffix(key, ".pdf") {
		key += ".pdf"
	}
	return g.cfg.TemplatePrefix + key
}

func (g *Generator) markFailed(entityID string) {
	if g.repo == nil {
		return
	}
	// The request context may already be done.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := g.repo.MarkFailed(ctx, entityID, ErrGenerationFailed.Error()); err != nil {
		klog.ErrorS(err, "Failed to record generation failure", "entityID", entityID)
	}
}

func validate(req Request) error {
	if req.EntityID == "" {
		return fmt.Errorf("%w: [entity-id]", contract.ErrMissingFields)
	}
	if strings.ContainsAny(req.EntityID, "/\\") || req.EntityID == "." || req.EntityID == ".." {
		return fmt.Errorf("%w: invalid entity-id %q", contract.ErrMissingFields, req.EntityID)
	}
	if strings.Contains(req.TemplateKey, "..") {
		return fmt.Errorf("%w: invalid template key %q", contract.ErrMissingFields, req.TemplateKey)
	}
	return contract.Request{Signature: req.Signature, Fields: req.Fields}.Validate()
}

func causeOf(err error) error {
	var genErr *contract.GenerationError
	if errors.As(err, &genErr) {
		return fmt.Errorf("stage %s: %w", genErr.Stage, genErr.Cause())
	}
	return err
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return telemetry.OutcomeSuccess
	case errors.Is(err, contract.ErrMissingFields):
		return telemetry.OutcomeInvalid
	default:
		return telemetry.OutcomeFailed
	}
}
