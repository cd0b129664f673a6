package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/georgepadayatti/contractpdf/contract"
	"github.com/georgepadayatti/contractpdf/pdf/document"
	"github.com/georgepadayatti/contractpdf/records"
	"github.com/georgepadayatti/contractpdf/storage"
)

func signaturePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 200, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 200; x++ {
			img.Set(x, y, color.NRGBA{B: 120, A: uint8(x % 256)})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func twoPages() []byte {
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R 4 0 R] /Count 2 /MediaBox [0 0 612 792] >>",
		"<< /Type /Page /Parent 2 0 R >>",
		"<< /Type /Page /Parent 2 0 R >>",
	}
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n")
	offsets := make([]int, len(objects))
	for i, body := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func newRepo(t *testing.T) records.Repository {
	t.Helper()
	db, err := records.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = records.Close(db) })
	return records.NewRepository(db)
}

func testConfig() Config {
	clock := time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)
	return Config{
		Timeout:        5 * time.Second,
		TemplatePrefix: "templates/",
		RegularFontKey: "fonts/regular.ttf",
		BoldFontKey:    "fonts/bold.ttf",
		Now:            func() time.Time { return clock },
	}
}

func TestGenerateStoresAndRecords(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	_, err := store.Put(ctx, "templates/alta.pdf", twoPages(), storage.ContentTypePDF)
	require.NoError(t, err)

	repo := newRepo(t)
	gen := New(contract.New(contract.DefaultConfig()), store, store, repo, testConfig())

	out, err := gen.Generate(ctx, Request{
		EntityID:    "player-7",
		TemplateKey: "alta",
		Signature:   signaturePNG(t),
		Fields:      contract.Fields{LegalName: "maría gómez", IDNumber: "12345678Z"},
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out.Reference.Key, "contracts/player-7/20260501T093000Z-"))
	assert.True(t, strings.HasSuffix(out.Reference.Key, ".pdf"))
	assert.Equal(t, 2, out.Result.Pages)
	assert.Equal(t, storage.ContentTypePDF, store.ContentType(out.Reference.Key))

	stored, err := store.Get(ctx, out.Reference.Key)
	require.NoError(t, err)
	doc, err := document.Open(stored)
	require.NoError(t, err)
	assert.Equal(t, 2, doc.PageCount())

	record, err := repo.Get(ctx, "player-7")
	require.NoError(t, err)
	assert.Equal(t, records.StatusGenerated, record.Status)
	assert.Equal(t, out.Reference.Key, record.DocumentKey)
	assert.Equal(t, "alta", record.TemplateKey)
}

func TestGenerateWithoutTemplateUsesBlankPage(t *testing.T) {
	store := storage.NewMemoryStore()
	gen := New(contract.New(contract.DefaultConfig()), store, store, nil, testConfig())

	out, err := gen.Generate(context.Background(), Request{
		EntityID:    "player-8",
		TemplateKey: "missing",
		Signature:   signaturePNG(t),
		Fields:      contract.Fields{LegalName: "ana"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Result.Pages)
	assert.Nil(t, out.Record)
	assert.Equal(t, 1, store.Len())
}

func TestGenerateValidation(t *testing.T) {
	store := storage.NewMemoryStore()
	composer := &fakeComposer{}
	gen := New(composer, store, store, nil, testConfig())

	tests := []struct {
		name string
		req  Request
	}{
		{"no entity", Request{Signature: []byte{1}, Fields: contract.Fields{LegalName: "a"}}},
		{"entity with slash", Request{EntityID: "a/b", Signature: []byte{1}, Fields: contract.Fields{LegalName: "a"}}},
		{"template escape", Request{EntityID: "a", TemplateKey: "../x", Signature: []byte{1}, Fields: contract.Fields{LegalName: "a"}}},
		{"no signature", Request{EntityID: "a", Fields: contract.Fields{LegalName: "a"}}},
		{"no name", Request{EntityID: "a", Signature: []byte{1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := gen.Generate(context.Background(), tt.req)
			assert.ErrorIs(t, err, contract.ErrMissingFields)
		})
	}
	assert.Zero(t, composer.calls)
	assert.Zero(t, store.Len())
}

func TestGenerateFailureIsOpaqueAndRecorded(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	repo := newRepo(t)
	composer := &fakeComposer{err: &contract.GenerationError{Stage: contract.StageSignature, Err: errors.New("bad png")}}
	gen := New(composer, store, store, repo, testConfig())

	_, err := gen.Generate(ctx, Request{EntityID: "player-9", Signature: []byte{1}, Fields: contract.Fields{LegalName: "a"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGenerationFailed)
	assert.Equal(t, "generation failed", err.Error())
	assert.NotContains(t, err.Error(), "bad png")

	record, err := repo.Get(ctx, "player-9")
	require.NoError(t, err)
	assert.Equal(t, records.StatusFailed, record.Status)
	assert.Zero(t, store.Len())
}

func TestGenerateFetchesInputs(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	for key, data := range map[string]string{
		"templates/alta.pdf": "template",
		"fonts/regular.ttf":  "regular",
		"fonts/bold.ttf":     "bold",
	} {
		_, err := store.Put(ctx, key, []byte(data), "")
		require.NoError(t, err)
	}
	composer := &fakeComposer{}
	gen := New(composer, store, store, nil, testConfig())

	_, err := gen.Generate(ctx, Request{EntityID: "p", TemplateKey: "alta", Signature: []byte{1}, Fields: contract.Fields{LegalName: "a"}})
	require.NoError(t, err)

	req := composer.last
	assert.Equal(t, "template", string(req.Template))
	assert.Equal(t, "regular", string(req.RegularFont))
	assert.Equal(t, "bold", string(req.BoldFont))
	assert.Equal(t, "alta", req.TemplateKey)
}

func TestGenerateFetchErrorFails(t *testing.T) {
	store := &failingStore{MemoryStore: storage.NewMemoryStore(), getErr: errors.New("connection reset")}
	composer := &fakeComposer{}
	gen := New(composer, store, store, nil, testConfig())

	_, err := gen.Generate(context.Background(), Request{EntityID: "p", Signature: []byte{1}, Fields: contract.Fields{LegalName: "a"}})
	assert.ErrorIs(t, err, ErrGenerationFailed)
	assert.Zero(t, composer.calls)
}

func TestGenerateSinkErrorFails(t *testing.T) {
	store := &failingStore{MemoryStore: storage.NewMemoryStore(), putErr: errors.New("bucket gone")}
	gen := New(&fakeComposer{}, store, store, nil, testConfig())

	_, err := gen.Generate(context.Background(), Request{EntityID: "p", Signature: []byte{1}, Fields: contract.Fields{LegalName: "a"}})
	assert.ErrorIs(t, err, ErrGenerationFailed)
}

type fakeComposer struct {
	mu    sync.Mutex
	calls int
	last  contract.Request
	err   error
}

func (f *fakeComposer) Generate(ctx context.Context, req contract.Request) (*contract.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return &contract.Result{Document: []byte("%PDF-1.7"), Pages: 1}, nil
}

type failingStore struct {
	*storage.MemoryStore
	getErr error
	putErr error
}

func (s *failingStore) Get(ctx context.Context, key string) ([]byte, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.MemoryStore.Get(ctx, key)
}

func (s *failingStore) Put(ctx context.Context, key string, data []byte, contentType string) (storage.Reference, error) {
	if s.putErr != nil {
		return storage.Reference{}, s.putErr
	}
	return s.MemoryStore.Put(ctx, key, data, contentType)
}

func TestRecord(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()

	gen := New(&fakeComposer{}, store, store, nil, testConfig())
	_, err := gen.Record(ctx, "p")
	assert.ErrorIs(t, err, ErrNoRecords)

	gen = New(&fakeComposer{}, store, store, newRepo(t), testConfig())
	_, err = gen.Record(ctx, "p")
	assert.ErrorIs(t, err, records.ErrNotFound)

	_, err = gen.Generate(ctx, Request{EntityID: "p", Signature: []byte{1}, Fields: contract.Fields{LegalName: "a"}})
	require.NoError(t, err)
	record, err := gen.Record(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, records.StatusGenerated, record.Status)
}
