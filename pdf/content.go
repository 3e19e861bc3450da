package pdf

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
)

// Op is one content-stream operation: its operands in order, the operator,
// and for BI..EI the inline image payload.
type Op struct {
	Operands []Object
	Operator string
	Inline   []byte // raw bytes between ID and EI, nil otherwise
}

// parseContent splits a decoded content stream into operations. Inline images
// are kept opaque: their dictionary lands in Operands, the sample data in
// Inline.
func parseContent(data []byte) ([]Op, error) {
	l := newLexer(data)
	var ops []Op
	var operands []Object
	for {
		l.skipWhitespace()
		if l.eof() {
			break
		}
		b := l.data[l.pos]
		if b == '(' || b == '<' || b == '/' || b == '[' ||
			b == '+' || b == '-' || b == '.' || isDigit(b) {
			obj, err := l.readObject()
			if err != nil {
				return nil, err
			}
			operands = append(operands, obj)
			continue
		}
		kw := l.readKeyword()
		switch kw {
		case "":
			return nil, fmt.Errorf("pdf: stray byte %q in content stream at offset %d", b, l.pos)
		case "true":
			operands = append(operands, Bool(true))
		case "false":
			operands = append(operands, Bool(false))
		case "null":
			operands = append(operands, Null{})
		case "BI":
			op, err := readInlineImage(l)
			if err != nil {
				return nil, err
			}
			ops = append(ops, op)
			operands = nil
		default:
			ops = append(ops, Op{Operands: operands, Operator: kw})
			operands = nil
		}
	}
	return ops, nil
}

// readInlineImage consumes BI key-value pairs, ID, the sample data, and EI.
func readInlineImage(l *lexer) (Op, error) {
	params := make(Dict)
	for {
		l.skipWhitespace()
		if l.eof() {
			return Op{}, io.ErrUnexpectedEOF
		}
		if l.data[l.pos] != '/' {
			if err := l.expectKeyword("ID"); err != nil {
				return Op{}, err
			}
			break
		}
		key, err := l.readName()
		if err != nil {
			return Op{}, err
		}
		val, err := l.readObject()
		if err != nil {
			return Op{}, err
		}
		params[key] = val
	}
	if !l.eof() && isWhitespace(l.data[l.pos]) {
		l.pos++
	}
	start := l.pos
	// Scan for EI delimited by whitespace on both sides; binary sample data
	// can contain the letters E I back to back.
	for {
		i := bytes.Index(l.data[l.pos:], []byte("EI"))
		if i < 0 {
			return Op{}, io.ErrUnexpectedEOF
		}
		at := l.pos + i
		before := at == 0 || isWhitespace(l.data[at-1])
		after := at+2 >= len(l.data) || isWhitespace(l.data[at+2]) || isDelimiter(l.data[at+2])
		if before && after {
			raw := l.data[start:at]
			if len(raw) > 0 && isWhitespace(raw[len(raw)-1]) {
				raw = raw[:len(raw)-1]
			}
			l.pos = at + 2
			return Op{Operands: []Object{params}, Operator: "BI", Inline: raw}, nil
		}
		l.pos = at + 2
	}
}

// serializeContent writes operations back out as a content stream.
func serializeContent(ops []Op) []byte {
	var buf bytes.Buffer
	for _, op := range ops {
		if op.Operator == "BI" {
			buf.WriteString("BI")
			if len(op.Operands) == 1 {
				if d, ok := op.Operands[0].(Dict); ok {
					for _, k := range sortedKeys(d) {
						buf.WriteByte(' ')
						writeObject(&buf, Name(k))
						buf.WriteByte(' ')
						writeObject(&buf, d[Name(k)])
					}
				}
			}
			buf.WriteString(" ID ")
			buf.Write(op.Inline)
			buf.WriteString(" EI\n")
			continue
		}
		for _, o := range op.Operands {
			writeObject(&buf, o)
			buf.WriteByte(' ')
		}
		buf.WriteString(op.Operator)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

func sortedKeys(d Dict) []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, string(k))
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j] < keys[j-1]; j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
	return keys
}

// writeObject serializes any object in direct form. Streams are handled by
// the file writer, never here.
func writeObject(buf *bytes.Buffer, obj Object) {
	switch v := obj.(type) {
	case Integer:
		buf.WriteString(strconv.FormatInt(int64(v), 10))
	case Real:
		buf.WriteString(formatReal(float64(v)))
	case Name:
		buf.WriteByte('/')
		for i := 0; i < len(v); i++ {
			b := v[i]
			if isRegular(b) && b != '#' && b > 0x20 && b < 0x7f {
				buf.WriteByte(b)
			} else {
				fmt.Fprintf(buf, "#%02X", b)
			}
		}
	case String:
		buf.WriteByte('(')
		for _, b := range v {
			switch b {
			case '(', ')', '\\':
				buf.WriteByte('\\')
				buf.WriteByte(b)
			case '\n':
				buf.WriteString(`\n`)
			case '\r':
				buf.WriteString(`\r`)
			default:
				buf.WriteByte(b)
			}
		}
		buf.WriteByte(')')
	case Bool:
		if v {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case Null:
		buf.WriteString("null")
	case Ref:
		buf.WriteString(v.String())
	case Array:
		buf.WriteByte('[')
		for i, o := range v {
			if i > 0 {
				buf.WriteByte(' ')
			}
			writeObject(buf, o)
		}
		buf.WriteByte(']')
	case Dict:
		buf.WriteString("<<")
		for _, k := range sortedKeys(v) {
			buf.WriteByte(' ')
			writeObject(buf, Name(k))
			buf.WriteByte(' ')
			writeObject(buf, v[Name(k)])
		}
		buf.WriteString(" >>")
	case nil:
		buf.WriteString("null")
	default:
		panic(fmt.Sprintf("pdf: cannot serialize %T", obj))
	}
}

// formatReal trims trailing zeros so coordinates stay compact.
func formatReal(v float64) string {
	s := strconv.FormatFloat(v, 'f', 4, 64)
	s = trimRight(s, '0')
	s = trimRight(s, '.')
	if s == "" || s == "-" {
		return "0"
	}
	return s
}

func trimRight(s string, c byte) string {
	for len(s) > 0 && s[len(s)-1] == c {
		s = s[:len(s)-1]
	}
	return s
}
