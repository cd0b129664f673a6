package reader

import (
	"fmt"
	"sort"

	"github.com/georgepadayatti/contractpdf/pdf/generic"
)

// XRefType represents different types of cross-reference entries.
type XRefType int

const (
	// XRefTypeFree marks an unused object number.
	XRefTypeFree XRefType = iota
	// XRefTypeStandard is an object stored at a byte offset.
	XRefTypeStandard
	// XRefTypeInObjStream is an object stored inside an object stream.
	XRefTypeInObjStream
)

// String returns the string representation of the XRef type.
func (t XRefType) String() string {
	switch t {
	case XRefTypeFree:
		return "free"
	case XRefTypeStandard:
		return "standard"
	case XRefTypeInObjStream:
		return "in_obj_stream"
	default:
		return "unknown"
	}
}

// XRefEntry is one resolved cross-reference entry.
type XRefEntry struct {
	Type       XRefType
	Offset     int64
	Generation int

	// Set for XRefTypeInObjStream.
	StreamObject  int
	IndexInStream int
}

// xrefTable accumulates entries across a /Prev chain. The newest section is
// read first, so earlier definitions never overwrite later ones.
type xrefTable map[int]*XRefEntry

func (t xrefTable) add(objNum int, entry *XRefEntry) {
	if _, exists := t[objNum]; !exists {
		t[objNum] = entry
	}
}

// InUse returns the object numbers of all non-free entries in ascending order.
func (t xrefTable) InUse() []int {
	nums := make([]int, 0, len(t))
	for n, e := range t {
		if e.Type != XRefTypeFree && n != 0 {
			nums = append(nums, n)
		}
	}
	sort.Ints(nums)
	return nums
}

// decodeXRefStreamEntries reads the binary rows of a cross-reference stream.
func decodeXRefStreamEntries(table xrefTable, data []byte, w [3]int, index []int) error {
	rowSize := w[0] + w[1] + w[2]
	if rowSize == 0 {
		return fmt.Errorf("%w: zero entry size", ErrInvalidXRef)
	}
	if len(index)%2 != 0 {
		return fmt.Errorf("%w: odd /Index array", ErrInvalidXRef)
	}

	pos := 0
	for i := 0; i < len(index); i += 2 {
		start, count := index[i], index[i+1]
		for j := 0; j < count; j++ {
			if pos+rowSize > len(data) {
				return nil
			}
			row := data[pos : pos+rowSize]
			pos += rowSize

			typ := readField(row, 0, w[0])
			if w[0] == 0 {
				typ = 1
			}
			f2 := readField(row, w[0], w[1])
			f3 := readField(row, w[0]+w[1], w[2])

			switch typ {
			case 0:
				table.add(start+j, &XRefEntry{Type: XRefTypeFree, Offset: f2, Generation: int(f3)})
			case 1:
				table.add(start+j, &XRefEntry{Type: XRefTypeStandard, Offset: f2, Generation: int(f3)})
			case 2:
				table.add(start+j, &XRefEntry{Type: XRefTypeInObjStream, StreamObject: int(f2), IndexInStream: int(f3)})
			}
		}
	}
	return nil
}

func readField(row []byte, offset, width int) int64 {
	var v int64
	for i := 0; i < width; i++ {
		v = v<<8 | int64(row[offset+i])
	}
	return v
}

// objectStream is a decoded /Type /ObjStm stream.
type objectStream struct {
	data    []byte
	first   int
	numbers []int
	offsets []int
}

func parseObjectStream(stream *generic.StreamObject) (*objectStream, error) {
	data, ok := stream.Content()
	if !ok {
		return nil, fmt.Errorf("%w: object stream could not be decoded", ErrInvalidPDF)
	}
	n, ok := stream.Dictionary.GetInt("N")
	if !ok {
		return nil, fmt.Errorf("%w: object stream missing /N", ErrInvalidPDF)
	}
	first, ok := stream.Dictionary.GetInt("First")
	if !ok || first < 0 || int(first) > len(data) {
		return nil, fmt.Errorf("%w: object stream has bad /First", ErrInvalidPDF)
	}

	os := &objectStream{data: data, first: int(first)}
	p := generic.NewParser(data[:first])
	for i := int64(0); i < n; i++ {
		num, err := p.ParseObject()
		if err != nil {
			break
		}
		off, err := p.ParseObject()
		if err != nil {
			break
		}
		numInt, ok1 := num.(generic.IntegerObject)
		offInt, ok2 := off.(generic.IntegerObject)
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("%w: malformed object stream header", ErrInvalidPDF)
		}
		os.numbers = append(os.numbers, int(numInt))
		os.offsets = append(os.offsets, int(offInt))
	}
	return os, nil
}

// object parses the object stored for objNum. index is the xref hint; it is
// checked against the header and ignored when it does not match.
func (os *objectStream) object(objNum, index int) (generic.PdfObject, error) {
	if index < 0 || index >= len(os.numbers) || os.numbers[index] != objNum {
		index = -1
		for i, n := range os.numbers {
			if n == objNum {
				index = i
				break
			}
		}
		if index < 0 {
			return nil, fmt.Errorf("%w: object %d not in object stream", ErrObjectNotFound, objNum)
		}
	}

	start := os.first + os.offsets[index]
	if start < 0 || start >= len(os.data) {
		return nil, fmt.Errorf("%w: object %d offset out of bounds", ErrInvalidPDF, objNum)
	}
	return generic.NewParser(os.data[start:]).ParseObject()
}
