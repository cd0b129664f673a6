package filters

import (
	"fmt"

	"github.com/georgepadayatti/contractpdf/pdf/generic"
)

// unpredict reverses a /Predictor applied before compression.
func unpredict(data []byte, parms *generic.DictionaryObject) ([]byte, error) {
	predictor := parmInt(parms, "Predictor", 1)
	if predictor == 1 {
		return data, nil
	}

	columns := parmInt(parms, "Columns", 1)
	colors := parmInt(parms, "Colors", 1)
	bpc := parmInt(parms, "BitsPerComponent", 8)
	if columns < 1 || colors < 1 || bpc < 1 {
		return nil, fmt.Errorf("%w: invalid predictor parameters", ErrDecodeFailed)
	}

	bytesPerPixel := (colors*bpc + 7) / 8
	rowBytes := (columns*colors*bpc + 7) / 8

	switch {
	case predictor == 2:
		if bpc != 8 {
			return nil, fmt.Errorf("%w: TIFF predictor with %d bits per component", ErrUnsupportedFilter, bpc)
		}
		return decodeTIFFPredictor(data, rowBytes, bytesPerPixel), nil
	case predictor >= 10 && predictor <= 15:
		return decodePNGPredictor(data, rowBytes, bytesPerPixel)
	}
	return nil, fmt.Errorf("%w: predictor %d", ErrUnsupportedFilter, predictor)
}

func parmInt(parms *generic.DictionaryObject, key string, def int) int {
	if v, ok := parms.GetInt(key); ok {
		return int(v)
	}
	return def
}

func decodeTIFFPredictor(data []byte, rowBytes, bpp int) []byte {
	out := make([]byte, len(data))
	copy(out, data)
	for start := 0; start < len(out); start += rowBytes {
		end := min(start+rowBytes, len(out))
		for i := start + bpp; i < end; i++ {
			out[i] += out[i-bpp]
		}
	}
	return out
}

// decodePNGPredictor handles per-row PNG filter types. Each row is prefixed
// with its filter byte.
func decodePNGPredictor(data []byte, rowBytes, bpp int) ([]byte, error) {
	stride := rowBytes + 1
	out := make([]byte, 0, len(data)/stride*rowBytes)
	prev := make([]byte, rowBytes)

	for i := 0; i+stride <= len(data); i += stride {
		kind := data[i]
		row := data[i+1 : i+stride]
		cur := make([]byte, rowBytes)

		for j := range row {
			var left, upLeft byte
			if j >= bpp {
				left = cur[j-bpp]
				upLeft = prev[j-bpp]
			}
			up := prev[j]

			switch kind {
			case 0:
				cur[j] = row[j]
			case 1:
				cur[j] = row[j] + left
			case 2:
				cur[j] = row[j] + up
			case 3:
				cur[j] = row[j] + byte((int(left)+int(up))/2)
			case 4:
				cur[j] = row[j] + paeth(left, up, upLeft)
			default:
				return nil, fmt.Errorf("%w: PNG filter type %d", ErrDecodeFailed, kind)
			}
		}
		out = append(out, cur...)
		prev = cur
	}
	return out, nil
}

func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa, pb, pc := abs(p-int(a)), abs(p-int(b)), abs(p-int(c))
	if pa <= pb && pa <= pc {
		return a
	}
	if pb <= pc {
		return b
	}
	return c
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
