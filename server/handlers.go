package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"k8s.io/klog/v2"

	"github.com/georgepadayatti/contractpdf/contract"
	"github.com/georgepadayatti/contractpdf/records"
	"github.com/georgepadayatti/contractpdf/service"
)

// GenerateRequest is the body of a generate call. Signature is base64 in
// JSON.
type GenerateRequest struct {
	TemplateKey string          `json:"templateKey"`
	Signature   []byte          `json:"signature"`
	Fields      contract.Fields `json:"fields"`
}

// GenerateResponse links the stored contract.
type GenerateResponse struct {
	EntityID    string `json:"entityId"`
	DocumentKey string `json:"documentKey"`
	DocumentURL string `json:"documentUrl"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) generate(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxUploadBytes)

	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	out, err := s.generator.Generate(c.Request.Context(), service.Request{
		EntityID:    c.Param("entityID"),
		TemplateKey: req.TemplateKey,
		Signature:   req.Signature,
		Fields:      req.Fields,
	})
	if err != nil {
		writeGenerationError(c, err)
		return
	}

	c.JSON(http.StatusCreated, GenerateResponse{
		EntityID:    out.EntityID,
		DocumentKey: out.Reference.Key,
		DocumentURL: out.Reference.URL,
	})
}

func (s *Server) record(c *gin.Context) {
	record, err := s.generator.Record(c.Request.Context(), c.Param("entityID"))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, record)
	case errors.Is(err, records.ErrNotFound), errors.Is(err, service.ErrNoRecords):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	default:
		klog.ErrorS(err, "Failed to read contract record", "entityID", c.Param("entityID"))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// compose runs the engine on uploaded inputs and returns the PDF inline.
func (s *Server) compose(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxUploadBytes)
	if err := c.Request.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form"})
		return
	}

	req := contract.Request{TemplateKey: c.PostForm("templateKey")}
	for _, part := range []struct {
		name string
		dst  *[]byte
	}{
		{"signature", &req.Signature},
		{"template", &req.Template},
		{"regularFont", &req.RegularFont},
		{"boldFont", &req.BoldFont},
	} {
		data, err := formFile(c, part.name)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form"})
			return
		}
		*part.dst = data
	}
	for _, key := range contract.Keys {
		req.Fields.Set(key, c.PostForm(string(key)))
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.ComposeTimeout)
	defer cancel()

	res, err := s.composer.Generate(ctx, req)
	if err != nil {
		writeGenerationError(c, err)
		return
	}

	c.Header("Content-Disposition", `inline; filename="contract.pdf"`)
	c.Data(http.StatusOK, "application/pdf", res.Document)
}

func writeGenerationError(c *gin.Context, err error) {
	if errors.Is(err, contract.ErrMissingFields) {
		c.JSON(http.StatusBadRequest, gin.H{"error": contract.ErrMissingFields.Error()})
		return
	}
	var genErr *contract.GenerationError
	if errors.As(err, &genErr) {
		klog.ErrorS(genErr.Cause(), "Composition failed", "stage", genErr.Stage)
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": contract.ErrGenerationFailed.Error()})
}

// formFile reads an optional upload. A missing part is nil.
func formFile(c *gin.Context, name string) ([]byte, error) {
	header, err := c.FormFile(name)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return readPart(header)
}

func readPart(header *multipart.FileHeader) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", header.Filename, err)
	}
	defer f.Close()
	return io.ReadAll(f)
}
