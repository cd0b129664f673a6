// Package content builds and tokenizes PDF content streams.
package content

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/georgepadayatti/contractpdf/pdf/generic"
)

// Operator represents a PDF content stream operator.
type Operator string

// Operators used by the composition engine
const (
	OpSaveState    Operator = "q"
	OpRestoreState Operator = "Q"
	OpSetCTM       Operator = "cm"
	OpSetLineWidth Operator = "w"

	OpMoveTo    Operator = "m"
	OpLineTo    Operator = "l"
	OpRectangle Operator = "re"
	OpStroke    Operator = "S"
	OpFill      Operator = "f"
	OpEndPath   Operator = "n"
	OpClip      Operator = "W"

	OpBeginText Operator = "BT"
	OpEndText   Operator = "ET"
	OpSetFont   Operator = "Tf"
	OpTextMove  Operator = "Td"
	OpShowText  Operator = "Tj"

	OpSetStrokeGray Operator = "G"
	OpSetFillGray   Operator = "g"
	OpSetStrokeRGB  Operator = "RG"
	OpSetFillRGB    Operator = "rg"
	OpSetStrokeCMYK Operator = "K"
	OpSetFillCMYK   Operator = "k"

	OpPaintXObject Operator = "Do"

	OpBeginMarkedContent Operator = "BMC"
	OpEndMarkedContent   Operator = "EMC"
)

// ContentStream is a sequence of operations.
type ContentStream struct {
	Operations []Operation
}

// Operation is one operator with its operands.
type Operation struct {
	Operator Operator
	Operands []interface{}
}

// NewContentStream creates a new empty content stream.
func NewContentStream() *ContentStream {
	return &ContentStream{Operations: make([]Operation, 0)}
}

// AddOperation adds an operation to the content stream.
func (cs *ContentStream) AddOperation(op Operator, operands ...interface{}) {
	cs.Operations = append(cs.Operations, Operation{Operator: op, Operands: operands})
}

// Render renders the content stream to bytes, one operation per line.
func (cs *ContentStream) Render() []byte {
	var buf bytes.Buffer
	for _, op := range cs.Operations {
		for _, operand := range op.Operands {
			buf.WriteString(formatOperand(operand))
			buf.WriteByte(' ')
		}
		buf.WriteString(string(op.Operator))
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

func formatOperand(v interface{}) string {
	switch val := v.(type) {
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return generic.FormatReal(val)
	case string:
		return val
	case generic.PdfObject:
		var buf bytes.Buffer
		_ = val.Write(&buf)
		return buf.String()
	default:
		return fmt.Sprintf("%v", val)
	}
}

// ContentBuilder provides a fluent interface for building content streams.
type ContentBuilder struct {
	stream *ContentStream
}

// NewContentBuilder creates a new content builder.
func NewContentBuilder() *ContentBuilder {
	return &ContentBuilder{stream: NewContentStream()}
}

// SaveState saves the graphics state.
func (cb *ContentBuilder) SaveState() *ContentBuilder {
	cb.stream.AddOperation(OpSaveState)
	return cb
}

// RestoreState restores the graphics state.
func (cb *ContentBuilder) RestoreState() *ContentBuilder {
	cb.stream.AddOperation(OpRestoreState)
	return cb
}

// Transform concatenates a matrix onto the CTM.
func (cb *ContentBuilder) Transform(a, b, c, d, e, f float64) *ContentBuilder {
	cb.stream.AddOperation(OpSetCTM, a, b, c, d, e, f)
	return cb
}

// Rectangle appends a rectangle subpath.
func (cb *ContentBuilder) Rectangle(x, y, width, height float64) *ContentBuilder {
	cb.stream.AddOperation(OpRectangle, x, y, width, height)
	return cb
}

// Clip intersects the clipping path with the current path and ends it.
func (cb *ContentBuilder) Clip() *ContentBuilder {
	cb.stream.AddOperation(OpClip)
	cb.stream.AddOperation(OpEndPath)
	return cb
}

// BeginText begins a text object.
func (cb *ContentBuilder) BeginText() *ContentBuilder {
	cb.stream.AddOperation(OpBeginText)
	return cb
}

// EndText ends a text object.
func (cb *ContentBuilder) EndText() *ContentBuilder {
	cb.stream.AddOperation(OpEndText)
	return cb
}

// SetFont selects a font resource and size.
func (cb *ContentBuilder) SetFont(font string, size float64) *ContentBuilder {
	cb.stream.AddOperation(OpSetFont, generic.NameObject(font), size)
	return cb
}

// TextPosition moves to the start of the next line.
func (cb *ContentBuilder) TextPosition(x, y float64) *ContentBuilder {
	cb.stream.AddOperation(OpTextMove, x, y)
	return cb
}

// ShowText shows already-encoded glyph bytes as a literal string.
func (cb *ContentBuilder) ShowText(encoded []byte) *ContentBuilder {
	cb.stream.AddOperation(OpShowText, generic.NewLiteralString(string(encoded)))
	return cb
}

// ShowHexText shows already-encoded glyph bytes as a hex string. Two-byte
// encodings such as Identity-H use this form.
func (cb *ContentBuilder) ShowHexText(encoded []byte) *ContentBuilder {
	cb.stream.AddOperation(OpShowText, generic.NewHexString(encoded))
	return cb
}

// SetFillGray sets the fill color (grayscale).
func (cb *ContentBuilder) SetFillGray(gray float64) *ContentBuilder {
	cb.stream.AddOperation(OpSetFillGray, gray)
	return cb
}

// PaintXObject paints an XObject.
func (cb *ContentBuilder) PaintXObject(name string) *ContentBuilder {
	cb.stream.AddOperation(OpPaintXObject, generic.NameObject(name))
	return cb
}

// BeginMarkedContent opens a marked-content sequence with tag.
func (cb *ContentBuilder) BeginMarkedContent(tag string) *ContentBuilder {
	cb.stream.AddOperation(OpBeginMarkedContent, generic.NameObject(tag))
	return cb
}

// EndMarkedContent closes the innermost marked-content sequence.
func (cb *ContentBuilder) EndMarkedContent() *ContentBuilder {
	cb.stream.AddOperation(OpEndMarkedContent)
	return cb
}

// Append copies the operations of another stream, e.g. a parsed /DA string.
func (cb *ContentBuilder) Append(ops []Operation) *ContentBuilder {
	cb.stream.Operations = append(cb.stream.Operations, ops...)
	return cb
}

// Render renders the content stream to bytes.
func (cb *ContentBuilder) Render() []byte {
	return cb.stream.Render()
}

// DefaultAppearance is the parsed form of a field's /DA string.
type DefaultAppearance struct {
	Font string
	Size float64
	// Color holds the color operation, if any.
	Color *Operation
}

// ParseDA extracts the font, size and fill color from a /DA string. Unknown
// operators are ignored.
func ParseDA(da string) DefaultAppearance {
	var out DefaultAppearance
	cs, _ := NewParser([]byte(da)).Parse()
	for i := range cs.Operations {
		op := cs.Operations[i]
		switch op.Operator {
		case OpSetFont:
			if len(op.Operands) == 2 {
				if name, ok := op.Operands[0].(generic.NameObject); ok {
					out.Font = string(name)
				}
				out.Size, _ = toFloat(op.Operands[1])
			}
		case OpSetFillGray, OpSetFillRGB, OpSetFillCMYK:
			out.Color = &cs.Operations[i]
		}
	}
	return out
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// Parser tokenizes content streams into operations.
type Parser struct {
	data []byte
	pos  int
}

// NewParser creates a new content stream parser.
func NewParser(data []byte) *Parser {
	return &Parser{data: data}
}

// Parse splits the stream into operations. Malformed trailing operands are
// dropped.
func (p *Parser) Parse() (*ContentStream, error) {
	cs := NewContentStream()
	var operands []interface{}

	for {
		token := p.nextToken()
		if token == "" {
			break
		}
		if isOperator(token) {
			cs.AddOperation(Operator(token), operands...)
			operands = nil
			continue
		}
		operands = append(operands, parseOperand(token))
	}
	return cs, nil
}

func (p *Parser) nextToken() string {
	for p.pos < len(p.data) && isWhitespace(p.data[p.pos]) {
		p.pos++
	}
	if p.pos >= len(p.data) {
		return ""
	}

	start := p.pos
	switch p.data[p.pos] {
	case '[', ']', '{', '}':
		p.pos++
		return string(p.data[start:p.pos])
	case '(':
		return p.readString()
	case '<':
		if p.pos+1 < len(p.data) && p.data[p.pos+1] == '<' {
			p.pos += 2
			return "<<"
		}
		for p.pos < len(p.data) && p.data[p.pos] != '>' {
			p.pos++
		}
		p.pos = min(p.pos+1, len(p.data))
		return string(p.data[start:p.pos])
	case '>':
		if p.pos+1 < len(p.data) && p.data[p.pos+1] == '>' {
			p.pos += 2
			return ">>"
		}
		p.pos++
		return ">"
	case '/':
		p.pos++
	case '%':
		for p.pos < len(p.data) && p.data[p.pos] != '\n' && p.data[p.pos] != '\r' {
			p.pos++
		}
		return p.nextToken()
	}

	for p.pos < len(p.data) && !isWhitespace(p.data[p.pos]) && !isDelimiter(p.data[p.pos]) {
		p.pos++
	}
	if p.pos == start {
		// stray ')'
		p.pos++
	}
	return string(p.data[start:p.pos])
}

func (p *Parser) readString() string {
	start := p.pos
	p.pos++
	for depth := 1; p.pos < len(p.data) && depth > 0; p.pos++ {
		switch p.data[p.pos] {
		case '(':
			depth++
		case ')':
			depth--
		case '\\':
			p.pos++
		}
	}
	return string(p.data[start:min(p.pos, len(p.data))])
}

func parseOperand(token string) interface{} {
	if i, err := strconv.ParseInt(token, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(token, 64); err == nil {
		return f
	}
	if strings.HasPrefix(token, "/") {
		return generic.NameObject(token[1:])
	}
	switch token {
	case "true":
		return true
	case "false":
		return false
	}
	return token
}

func isWhitespace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\x00' || b == '\x0c'
}

func isDelimiter(b byte) bool {
	return b == '(' || b == ')' || b == '<' || b == '>' ||
		b == '[' || b == ']' || b == '{' || b == '}' ||
		b == '/' || b == '%'
}

var operators = map[string]bool{
	"q": true, "Q": true, "cm": true, "w": true, "J": true, "j": true,
	"M": true, "d": true, "ri": true, "i": true, "gs": true,
	"m": true, "l": true, "c": true, "v": true, "y": true, "h": true, "re": true,
	"S": true, "s": true, "f": true, "F": true, "f*": true, "B": true, "B*": true,
	"b": true, "b*": true, "n": true, "W": true, "W*": true,
	"BT": true, "ET": true,
	"Tc": true, "Tw": true, "Tz": true, "TL": true, "Tf": true, "Tr": true, "Ts": true,
	"Td": true, "TD": true, "Tm": true, "T*": true,
	"Tj": true, "TJ": true, "'": true, "\"": true,
	"CS": true, "cs": true, "SC": true, "SCN": true, "sc": true, "scn": true,
	"G": true, "g": true, "RG": true, "rg": true, "K": true, "k": true,
	"Do": true, "BMC": true, "BDC": true, "EMC": true,
	"BI": true, "ID": true, "EI": true, "sh": true, "MP": true, "DP": true,
}

func isOperator(token string) bool {
	return operators[token]
}
