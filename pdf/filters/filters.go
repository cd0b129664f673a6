// Package filters decodes PDF stream filters and Flate-encodes the content
// streams the composition engine writes.
package filters

import (
	"bytes"
	"compress/lzw"
	"encoding/ascii85"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
	tifflzw "golang.org/x/image/tiff/lzw"

	"github.com/georgepadayatti/contractpdf/pdf/generic"
)

// Common errors
var (
	ErrUnsupportedFilter = errors.New("unsupported filter")
	ErrDecodeFailed      = errors.New("decode failed")
)

// Filter decodes one stream filter. Parms is the matching /DecodeParms entry
// and may be nil.
type Filter interface {
	Name() string
	Decode(data []byte, parms *generic.DictionaryObject) ([]byte, error)
}

type flateFilter struct{}

func (flateFilter) Name() string { return "FlateDecode" }

func (flateFilter) Decode(data []byte, parms *generic.DictionaryObject) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	// Truncated streams are common in the wild; keep what inflated.
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	return unpredict(out, parms)
}

type lzwFilter struct{}

func (lzwFilter) Name() string { return "LZWDecode" }

func (lzwFilter) Decode(data []byte, parms *generic.DictionaryObject) ([]byte, error) {
	early := int64(1)
	if v, ok := parms.GetInt("EarlyChange"); ok {
		early = v
	}

	// EarlyChange 1 (the default) widens codes one entry early, which is the
	// TIFF variant; EarlyChange 0 is the GIF-style variant.
	var r io.ReadCloser
	if early == 1 {
		r = tifflzw.NewReader(bytes.NewReader(data), tifflzw.MSB, 8)
	} else {
		r = lzw.NewReader(bytes.NewReader(data), lzw.MSB, 8)
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	return unpredict(out, parms)
}

type asciiHexFilter struct{}

func (asciiHexFilter) Name() string { return "ASCIIHexDecode" }

func (asciiHexFilter) Decode(data []byte, _ *generic.DictionaryObject) ([]byte, error) {
	digits := make([]byte, 0, len(data))
	for _, c := range data {
		if c == '>' {
			break
		}
		switch c {
		case ' ', '\t', '\n', '\r', '\f', 0:
			continue
		}
		digits = append(digits, c)
	}
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	out := make([]byte, len(digits)/2)
	if _, err := hex.Decode(out, digits); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	return out, nil
}

type ascii85Filter struct{}

func (ascii85Filter) Name() string { return "ASCII85Decode" }

func (ascii85Filter) Decode(data []byte, _ *generic.DictionaryObject) ([]byte, error) {
	if end := bytes.Index(data, []byte("~>")); end >= 0 {
		data = data[:end]
	}
	data = bytes.TrimPrefix(bytes.TrimSpace(data), []byte("<~"))
	out, err := io.ReadAll(ascii85.NewDecoder(bytes.NewReader(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	return out, nil
}

type runLengthFilter struct{}

func (runLengthFilter) Name() string { return "RunLengthDecode" }

func (runLengthFilter) Decode(data []byte, _ *generic.DictionaryObject) ([]byte, error) {
	var out bytes.Buffer
	for i := 0; i < len(data); {
		n := int(data[i])
		i++
		switch {
		case n == 128:
			return out.Bytes(), nil
		case n < 128:
			if i+n+1 > len(data) {
				return nil, fmt.Errorf("%w: truncated run-length data", ErrDecodeFailed)
			}
			out.Write(data[i : i+n+1])
			i += n + 1
		default:
			if i >= len(data) {
				return nil, fmt.Errorf("%w: truncated run-length data", ErrDecodeFailed)
			}
			out.Write(bytes.Repeat(data[i:i+1], 257-n))
			i++
		}
	}
	return out.Bytes(), nil
}

// registry maps filter names, including abbreviations, to decoders.
var registry = map[string]Filter{
	"FlateDecode":     flateFilter{},
	"Fl":              flateFilter{},
	"LZWDecode":       lzwFilter{},
	"LZW":             lzwFilter{},
	"ASCIIHexDecode":  asciiHexFilter{},
	"AHx":             asciiHexFilter{},
	"ASCII85Decode":   ascii85Filter{},
	"A85":             ascii85Filter{},
	"RunLengthDecode": runLengthFilter{},
	"RL":              runLengthFilter{},
}

// Lookup returns the decoder registered for name.
func Lookup(name string) (Filter, error) {
	if f, ok := registry[name]; ok {
		return f, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFilter, name)
}

// Decode applies the /Filter chain to data. filter may be a name or an array of
// names, parms a dictionary or an array of dictionaries; both must already be
// direct objects.
func Decode(data []byte, filter, parms generic.PdfObject) ([]byte, error) {
	var names []string
	switch f := filter.(type) {
	case nil:
		return data, nil
	case generic.NameObject:
		names = []string{string(f)}
	case generic.ArrayObject:
		for _, item := range f {
			if n, ok := item.(generic.NameObject); ok {
				names = append(names, string(n))
			}
		}
	default:
		return nil, fmt.Errorf("%w: malformed /Filter", ErrDecodeFailed)
	}

	parmList := make([]*generic.DictionaryObject, len(names))
	switch p := parms.(type) {
	case *generic.DictionaryObject:
		if len(parmList) > 0 {
			parmList[0] = p
		}
	case generic.ArrayObject:
		for i := 0; i < len(p) && i < len(parmList); i++ {
			parmList[i], _ = p[i].(*generic.DictionaryObject)
		}
	}

	out := data
	for i, name := range names {
		f, err := Lookup(name)
		if err != nil {
			return nil, err
		}
		if out, err = f.Decode(out, parmList[i]); err != nil {
			return nil, fmt.Errorf("filter %s: %w", name, err)
		}
	}
	return out, nil
}

// FlateEncode compresses data with zlib framing.
func FlateEncode(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("flate encode failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("flate encode failed: %w", err)
	}
	return buf.Bytes(), nil
}

// NewFlateStream builds a Flate-compressed stream holding content.
func NewFlateStream(dict *generic.DictionaryObject, content []byte) (*generic.StreamObject, error) {
	encoded, err := FlateEncode(content)
	if err != nil {
		return nil, err
	}
	s := generic.NewStream(dict, encoded)
	s.Dictionary.Set("Filter", generic.NameObject("FlateDecode"))
	s.Decoded = content
	return s, nil
}
