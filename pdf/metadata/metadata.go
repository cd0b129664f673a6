// Package metadata maintains the document information dictionary.
package metadata

import (
	"fmt"
	"strings"
	"time"

	"github.com/georgepadayatti/contractpdf/pdf/generic"
)

// Vendor is the default /Producer value.
const Vendor = "contractpdf"

// DocumentMetadata holds the Info dictionary entries the engine manages.
type DocumentMetadata struct {
	Title    string
	Author   string
	Subject  string
	Keywords []string
	Creator  string

	// Producer is the software that produced the PDF.
	Producer string

	Created      *time.Time
	LastModified *time.Time
}

// NewDocumentMetadata creates metadata stamped with the vendor and now.
func NewDocumentMetadata(now time.Time) *DocumentMetadata {
	return &DocumentMetadata{
		Producer:     Vendor,
		LastModified: &now,
	}
}

// FromInfo reads the known entries of an existing Info dictionary.
func FromInfo(info *generic.DictionaryObject) *DocumentMetadata {
	m := &DocumentMetadata{}
	m.Title, _ = info.GetString("Title")
	m.Author, _ = info.GetString("Author")
	m.Subject, _ = info.GetString("Subject")
	m.Creator, _ = info.GetString("Creator")
	m.Producer, _ = info.GetString("Producer")
	if kw, ok := info.GetString("Keywords"); ok && kw != "" {
		for _, k := range strings.Split(kw, ",") {
			if k = strings.TrimSpace(k); k != "" {
				m.Keywords = append(m.Keywords, k)
			}
		}
	}
	if s, ok := info.GetString("CreationDate"); ok {
		m.Created, _ = ParsePDFDate(s)
	}
	if s, ok := info.GetString("ModDate"); ok {
		m.LastModified, _ = ParsePDFDate(s)
	}
	return m
}

// ApplyTo writes the non-empty fields of m into info. Entries m leaves empty
// are kept as they are.
func (m *DocumentMetadata) ApplyTo(info *generic.DictionaryObject) {
	set := func(key, value string) {
		if value != "" {
			info.Set(key, generic.NewTextString(value))
		}
	}
	set("Title", m.Title)
	set("Author", m.Author)
	set("Subject", m.Subject)
	set("Keywords", strings.Join(m.Keywords, ", "))
	set("Creator", m.Creator)
	set("Producer", m.Producer)
	if m.Created != nil {
		info.Set("CreationDate", generic.NewLiteralString(FormatPDFDate(*m.Created)))
	}
	if m.LastModified != nil {
		info.Set("ModDate", generic.NewLiteralString(FormatPDFDate(*m.LastModified)))
	}
}

// Stamp marks info as produced now by producer. CreationDate is only set when
// the template did not carry one.
func Stamp(info *generic.DictionaryObject, producer string, now time.Time) {
	if producer == "" {
		producer = Vendor
	}
	m := NewDocumentMetadata(now)
	m.Producer = producer
	if !info.Has("CreationDate") {
		m.Created = &now
	}
	m.ApplyTo(info)
}

// FormatPDFDate formats t as D:YYYYMMDDHHmmSSOHH'mm'.
func FormatPDFDate(t time.Time) string {
	_, offset := t.Zone()
	sign := "+"
	if offset < 0 {
		sign = "-"
		offset = -offset
	}
	return fmt.Sprintf("D:%04d%02d%02d%02d%02d%02d%s%02d'%02d'",
		t.Year(), t.Month(), t.Day(),
		t.Hour(), t.Minute(), t.Second(),
		sign, offset/3600, (offset%3600)/60)
}

// ParsePDFDate parses a PDF date string.
func ParsePDFDate(s string) (*time.Time, error) {
	if !strings.HasPrefix(s, "D:") {
		return nil, fmt.Errorf("invalid PDF date: missing D: prefix")
	}
	s = strings.ReplaceAll(s[2:], "'", "")

	formats := []string{
		"20060102150405-0700",
		"20060102150405Z",
		"20060102150405",
		"200601021504",
		"2006010215",
		"20060102",
		"200601",
		"2006",
	}
	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unable to parse PDF date: %s", s)
}
