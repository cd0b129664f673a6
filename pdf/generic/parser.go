package generic

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
)

// Common errors
var (
	ErrUnexpectedEOF     = errors.New("unexpected end of file")
	ErrInvalidObject     = errors.New("invalid PDF object")
	ErrInvalidStream     = errors.New("invalid PDF stream")
	ErrInvalidDictionary = errors.New("invalid PDF dictionary")
	ErrInvalidArray      = errors.New("invalid PDF array")
	ErrInvalidString     = errors.New("invalid PDF string")
	ErrInvalidName       = errors.New("invalid PDF name")
	ErrInvalidNumber     = errors.New("invalid PDF number")
)

// maxNesting bounds array/dictionary depth so hostile input cannot exhaust the
// stack.
const maxNesting = 256

// Parser reads PDF objects from an in-memory buffer.
type Parser struct {
	data  []byte
	pos   int
	depth int

	// LengthResolver resolves an indirect stream /Length. When nil or when it
	// fails, the parser scans for "endstream" instead.
	LengthResolver func(ref Reference) (int64, bool)
}

// NewParser creates a parser positioned at the start of data.
func NewParser(data []byte) *Parser {
	return &Parser{data: data}
}

// Pos returns the current offset.
func (p *Parser) Pos() int { return p.pos }

// Seek moves to an absolute offset.
func (p *Parser) Seek(pos int) { p.pos = pos }

func isWhitespace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\x00', '\x0c':
		return true
	}
	return false
}

func isDelimiter(b byte) bool {
	switch b {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func (p *Parser) skipWhitespace() {
	for p.pos < len(p.data) {
		c := p.data[p.pos]
		switch {
		case isWhitespace(c):
			p.pos++
		case c == '%':
			for p.pos < len(p.data) && p.data[p.pos] != '\n' && p.data[p.pos] != '\r' {
				p.pos++
			}
		default:
			return
		}
	}
}

// keyword reads a run of regular characters.
func (p *Parser) keyword() string {
	p.skipWhitespace()
	start := p.pos
	for p.pos < len(p.data) && !isWhitespace(p.data[p.pos]) && !isDelimiter(p.data[p.pos]) {
		p.pos++
	}
	return string(p.data[start:p.pos])
}

// ExpectKeyword consumes kw or fails without moving.
func (p *Parser) ExpectKeyword(kw string) error {
	save := p.pos
	if got := p.keyword(); got != kw {
		p.pos = save
		return fmt.Errorf("%w: expected %q, got %q", ErrInvalidObject, kw, got)
	}
	return nil
}

// ParseObject parses the next object. "n g R" sequences become References.
func (p *Parser) ParseObject() (PdfObject, error) {
	p.skipWhitespace()
	if p.pos >= len(p.data) {
		return nil, ErrUnexpectedEOF
	}
	c := p.data[p.pos]
	switch {
	case c == '(':
		return p.parseLiteral()
	case c == '<':
		if p.pos+1 < len(p.data) && p.data[p.pos+1] == '<' {
			p.pos += 2
			return p.parseDictionary()
		}
		return p.parseHex()
	case c == '[':
		p.pos++
		return p.parseArray()
	case c == '/':
		return p.parseName()
	case c == '-' || c == '+' || c == '.' || (c >= '0' && c <= '9'):
		return p.parseNumberOrReference()
	}

	save := p.pos
	switch kw := p.keyword(); kw {
	case "true":
		return BooleanObject(true), nil
	case "false":
		return BooleanObject(false), nil
	case "null":
		return NullObject{}, nil
	default:
		p.pos = save
		return nil, fmt.Errorf("%w: unexpected token %q at offset %d", ErrInvalidObject, kw, save)
	}
}

func (p *Parser) parseLiteral() (*StringObject, error) {
	p.pos++ // (
	var buf bytes.Buffer
	depth := 1
	for {
		if p.pos >= len(p.data) {
			return nil, fmt.Errorf("%w: unterminated string", ErrInvalidString)
		}
		c := p.data[p.pos]
		p.pos++
		switch c {
		case '(':
			depth++
			buf.WriteByte(c)
		case ')':
			depth--
			if depth == 0 {
				return &StringObject{Value: buf.Bytes()}, nil
			}
			buf.WriteByte(c)
		case '\\':
			p.parseEscape(&buf)
		case '\r':
			// EOL inside a literal is normalised to \n
			if p.pos < len(p.data) && p.data[p.pos] == '\n' {
				p.pos++
			}
			buf.WriteByte('\n')
		default:
			buf.WriteByte(c)
		}
	}
}

func (p *Parser) parseEscape(buf *bytes.Buffer) {
	if p.pos >= len(p.data) {
		return
	}
	c := p.data[p.pos]
	p.pos++
	switch c {
	case 'n':
		buf.WriteByte('\n')
	case 'r':
		buf.WriteByte('\r')
	case 't':
		buf.WriteByte('\t')
	case 'b':
		buf.WriteByte('\b')
	case 'f':
		buf.WriteByte('\f')
	case '\r':
		if p.pos < len(p.data) && p.data[p.pos] == '\n' {
			p.pos++
		}
	case '\n':
	default:
		if c >= '0' && c <= '7' {
			v := int(c - '0')
			for i := 0; i < 2 && p.pos < len(p.data); i++ {
				d := p.data[p.pos]
				if d < '0' || d > '7' {
					break
				}
				v = v*8 + int(d-'0')
				p.pos++
			}
			buf.WriteByte(byte(v))
			return
		}
		buf.WriteByte(c)
	}
}

func (p *Parser) parseHex() (*StringObject, error) {
	p.pos++ // <
	digits := make([]byte, 0, 64)
	for {
		if p.pos >= len(p.data) {
			return nil, fmt.Errorf("%w: unterminated hex string", ErrInvalidString)
		}
		c := p.data[p.pos]
		p.pos++
		if c == '>' {
			break
		}
		if isWhitespace(c) {
			continue
		}
		digits = append(digits, c)
	}
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	out := make([]byte, len(digits)/2)
	if _, err := hex.Decode(out, digits); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidString, err)
	}
	return &StringObject{Value: out, IsHex: true}, nil
}

func (p *Parser) parseName() (NameObject, error) {
	p.pos++ // /
	var buf bytes.Buffer
	for p.pos < len(p.data) {
		c := p.data[p.pos]
		if isWhitespace(c) || isDelimiter(c) {
			break
		}
		p.pos++
		if c == '#' && p.pos+1 < len(p.data) {
			v, err := strconv.ParseUint(string(p.data[p.pos:p.pos+2]), 16, 8)
			if err != nil {
				return "", fmt.Errorf("%w: bad escape in name", ErrInvalidName)
			}
			buf.WriteByte(byte(v))
			p.pos += 2
			continue
		}
		buf.WriteByte(c)
	}
	return NameObject(buf.String()), nil
}

func (p *Parser) parseDictionary() (*DictionaryObject, error) {
	if p.depth >= maxNesting {
		return nil, fmt.Errorf("%w: nesting too deep", ErrInvalidDictionary)
	}
	p.depth++
	defer func() { p.depth-- }()

	dict := NewDictionary()
	for {
		p.skipWhitespace()
		if p.pos >= len(p.data) {
			return nil, fmt.Errorf("%w: unterminated dictionary", ErrInvalidDictionary)
		}
		if p.data[p.pos] == '>' {
			if p.pos+1 < len(p.data) && p.data[p.pos+1] == '>' {
				p.pos += 2
				return dict, nil
			}
			return nil, fmt.Errorf("%w: expected '>>'", ErrInvalidDictionary)
		}
		if p.data[p.pos] != '/' {
			return nil, fmt.Errorf("%w: key must be a name at offset %d", ErrInvalidDictionary, p.pos)
		}
		key, err := p.parseName()
		if err != nil {
			return nil, err
		}
		val, err := p.ParseObject()
		if err != nil {
			return nil, fmt.Errorf("%w: value for /%s: %v", ErrInvalidDictionary, key, err)
		}
		// A null value is equivalent to an absent key.
		if _, isNull := val.(NullObject); isNull {
			continue
		}
		dict.Set(string(key), val)
	}
}

func (p *Parser) parseArray() (ArrayObject, error) {
	if p.depth >= maxNesting {
		return nil, fmt.Errorf("%w: nesting too deep", ErrInvalidArray)
	}
	p.depth++
	defer func() { p.depth-- }()

	arr := ArrayObject{}
	for {
		p.skipWhitespace()
		if p.pos >= len(p.data) {
			return nil, fmt.Errorf("%w: unterminated array", ErrInvalidArray)
		}
		if p.data[p.pos] == ']' {
			p.pos++
			return arr, nil
		}
		obj, err := p.ParseObject()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidArray, err)
		}
		arr = append(arr, obj)
	}
}

func (p *Parser) scanNumber() (string, bool) {
	start := p.pos
	isReal := false
	for p.pos < len(p.data) {
		c := p.data[p.pos]
		switch {
		case c >= '0' && c <= '9':
		case c == '.':
			isReal = true
		case (c == '-' || c == '+') && p.pos == start:
		default:
			return string(p.data[start:p.pos]), isReal
		}
		p.pos++
	}
	return string(p.data[start:p.pos]), isReal
}

func (p *Parser) parseNumber() (PdfObject, error) {
	tok, isReal := p.scanNumber()
	if tok == "" || tok == "-" || tok == "+" || tok == "." {
		return nil, fmt.Errorf("%w: %q", ErrInvalidNumber, tok)
	}
	if isReal {
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidNumber, err)
		}
		return RealObject(v), nil
	}
	v, err := strconv.ParseInt(tok, 10, 64)
	if err != nil {
		// Out-of-range integers are read as reals.
		f, ferr := strconv.ParseFloat(tok, 64)
		if ferr != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidNumber, err)
		}
		return RealObject(f), nil
	}
	return IntegerObject(v), nil
}

// parseNumberOrReference looks ahead for "gen R" after an unsigned integer.
func (p *Parser) parseNumberOrReference() (PdfObject, error) {
	first, err := p.parseNumber()
	if err != nil {
		return nil, err
	}
	objNum, ok := first.(IntegerObject)
	if !ok || objNum < 0 {
		return first, nil
	}

	save := p.pos
	p.skipWhitespace()
	if p.pos >= len(p.data) || p.data[p.pos] < '0' || p.data[p.pos] > '9' {
		p.pos = save
		return first, nil
	}
	second, err := p.parseNumber()
	gen, isInt := second.(IntegerObject)
	if err != nil || !isInt {
		p.pos = save
		return first, nil
	}
	p.skipWhitespace()
	if p.pos < len(p.data) && p.data[p.pos] == 'R' &&
		(p.pos+1 == len(p.data) || isWhitespace(p.data[p.pos+1]) || isDelimiter(p.data[p.pos+1])) {
		p.pos++
		return Reference{ObjectNumber: int(objNum), GenerationNumber: int(gen)}, nil
	}
	p.pos = save
	return first, nil
}

// ParseIndirectObject parses "n g obj ... endobj", including stream bodies.
func (p *Parser) ParseIndirectObject() (*IndirectObject, error) {
	p.skipWhitespace()
	numObj, err := p.parseNumber()
	if err != nil {
		return nil, fmt.Errorf("%w: object number: %v", ErrInvalidObject, err)
	}
	p.skipWhitespace()
	genObj, err := p.parseNumber()
	if err != nil {
		return nil, fmt.Errorf("%w: generation number: %v", ErrInvalidObject, err)
	}
	num, ok1 := numObj.(IntegerObject)
	gen, ok2 := genObj.(IntegerObject)
	if !ok1 || !ok2 {
		return nil, fmt.Errorf("%w: object header must be integers", ErrInvalidObject)
	}
	if err := p.ExpectKeyword("obj"); err != nil {
		return nil, err
	}

	obj, err := p.ParseObject()
	if err != nil {
		return nil, err
	}

	if dict, ok := obj.(*DictionaryObject); ok {
		save := p.pos
		if p.keyword() == "stream" {
			data, err := p.readStreamData(dict)
			if err != nil {
				return nil, err
			}
			obj = NewStream(dict, data)
		} else {
			p.pos = save
		}
	}

	// Some writers omit endobj; tolerate it.
	save := p.pos
	if p.keyword() != "endobj" {
		p.pos = save
	}
	return &IndirectObject{ObjectNumber: int(num), GenerationNumber: int(gen), Object: obj}, nil
}

func (p *Parser) readStreamData(dict *DictionaryObject) ([]byte, error) {
	// The keyword is followed by CRLF or LF.
	if p.pos < len(p.data) && p.data[p.pos] == '\r' {
		p.pos++
	}
	if p.pos < len(p.data) && p.data[p.pos] == '\n' {
		p.pos++
	}
	start := p.pos

	length := int64(-1)
	switch v := dict.Get("Length").(type) {
	case IntegerObject:
		length = int64(v)
	case Reference:
		if p.LengthResolver != nil {
			if n, ok := p.LengthResolver(v); ok {
				length = n
			}
		}
	}

	if length >= 0 && start+int(length) <= len(p.data) {
		end := start + int(length)
		p.pos = end
		if p.keyword() == "endstream" {
			return p.data[start:end], nil
		}
	}

	// Length missing or wrong: scan for the terminator.
	idx := bytes.Index(p.data[start:], []byte("endstream"))
	if idx < 0 {
		return nil, fmt.Errorf("%w: missing endstream", ErrInvalidStream)
	}
	end := start + idx
	for end > start && (p.data[end-1] == '\n' || p.data[end-1] == '\r') {
		end--
	}
	p.pos = start + idx + len("endstream")
	return p.data[start:end], nil
}

// ParseRectangle parses a rectangle from an array object.
func ParseRectangle(obj PdfObject) (*Rectangle, error) {
	arr, ok := obj.(ArrayObject)
	if !ok {
		return nil, fmt.Errorf("%w: expected array for rectangle", ErrInvalidObject)
	}
	return NewRectangle(arr)
}
