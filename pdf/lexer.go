package pdf

import (
	"fmt"
	"io"
	"strconv"
)

// lexer reads objects and keywords from a byte slice. It is shared by the
// file parser and the content-stream tokenizer.
type lexer struct {
	data []byte
	pos  int
}

func newLexer(data []byte) *lexer { return &lexer{data: data} }

func isWhitespace(b byte) bool {
	switch b {
	case 0, '\t', '\n', '\f', '\r', ' ':
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

func isRegular(b byte) bool { return !isWhitespace(b) && !isDelimiter(b) }

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func (l *lexer) eof() bool { return l.pos >= len(l.data) }

func (l *lexer) skipWhitespace() {
	for l.pos < len(l.data) {
		b := l.data[l.pos]
		if isWhitespace(b) {
			l.pos++
			continue
		}
		if b == '%' { // comment to end of line
			for l.pos < len(l.data) && l.data[l.pos] != '\n' && l.data[l.pos] != '\r' {
				l.pos++
			}
			continue
		}
		return
	}
}

// readKeyword consumes a run of regular characters.
func (l *lexer) readKeyword() string {
	start := l.pos
	for l.pos < len(l.data) && isRegular(l.data[l.pos]) {
		l.pos++
	}
	return string(l.data[start:l.pos])
}

// expectKeyword consumes the given keyword or fails.
func (l *lexer) expectKeyword(kw string) error {
	l.skipWhitespace()
	if got := l.readKeyword(); got != kw {
		return fmt.Errorf("pdf: expected %q at offset %d, got %q", kw, l.pos, got)
	}
	return nil
}

// readObject parses the next object. Integer pairs followed by the keyword R
// are folded into a Ref.
func (l *lexer) readObject() (Object, error) {
	l.skipWhitespace()
	if l.eof() {
		return nil, io.ErrUnexpectedEOF
	}
	b := l.data[l.pos]
	switch {
	case b == '<':
		if l.pos+1 < len(l.data) && l.data[l.pos+1] == '<' {
			return l.readDict()
		}
		return l.readHexString()
	case b == '(':
		return l.readLiteralString()
	case b == '/':
		return l.readName()
	case b == '[':
		return l.readArray()
	case b == ')' || b == ']' || b == '>' || b == '{' || b == '}':
		return nil, fmt.Errorf("pdf: unexpected %q at offset %d", b, l.pos)
	case b == '+' || b == '-' || b == '.' || isDigit(b):
		return l.readNumberOrRef()
	default:
		switch kw := l.readKeyword(); kw {
		case "true":
			return Bool(true), nil
		case "false":
			return Bool(false), nil
		case "null":
			return Null{}, nil
		case "":
			return nil, fmt.Errorf("pdf: stray byte %q at offset %d", b, l.pos)
		default:
			return nil, fmt.Errorf("pdf: unexpected keyword %q at offset %d", kw, l.pos)
		}
	}
}

func (l *lexer) readName() (Name, error) {
	l.pos++ // consume '/'
	var out []byte
	for l.pos < len(l.data) && isRegular(l.data[l.pos]) {
		b := l.data[l.pos]
		if b == '#' && l.pos+2 < len(l.data) {
			hi, ok1 := fromHex(l.data[l.pos+1])
			lo, ok2 := fromHex(l.data[l.pos+2])
			if ok1 && ok2 {
				out = append(out, hi<<4|lo)
				l.pos += 3
				continue
			}
		}
		out = append(out, b)
		l.pos++
	}
	return Name(out), nil
}

func fromHex(b byte) (byte, bool) {
	switch {
	case b >= '0' && b <= '9':
		return b - '0', true
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10, true
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10, true
	}
	return 0, false
}

func (l *lexer) readLiteralString() (String, error) {
	l.pos++ // consume '('
	var out []byte
	depth := 1
	for l.pos < len(l.data) {
		b := l.data[l.pos]
		switch b {
		case '\\':
			l.pos++
			if l.eof() {
				return nil, io.ErrUnexpectedEOF
			}
			e := l.data[l.pos]
			switch e {
			case 'n':
				out = append(out, '\n')
			case 'r':
				out = append(out, '\r')
			case 't':
				out = append(out, '\t')
			case 'b':
				out = append(out, '\b')
			case 'f':
				out = append(out, '\f')
			case '(', ')', '\\':
				out = append(out, e)
			case '\r':
				if l.pos+1 < len(l.data) && l.data[l.pos+1] == '\n' {
					l.pos++
				}
			case '\n':
				// line continuation, emit nothing
			default:
				if e >= '0' && e <= '7' {
					v := int(e - '0')
					for i := 0; i < 2 && l.pos+1 < len(l.data); i++ {
						n := l.data[l.pos+1]
						if n < '0' || n > '7' {
							break
						}
						v = v*8 + int(n-'0')
						l.pos++
					}
					out = append(out, byte(v))
				} else {
					out = append(out, e)
				}
			}
			l.pos++
		case '(':
			depth++
			out = append(out, b)
			l.pos++
		case ')':
			depth--
			l.pos++
			if depth == 0 {
				return String(out), nil
			}
			out = append(out, b)
		default:
			out = append(out, b)
			l.pos++
		}
	}
	return nil, io.ErrUnexpectedEOF
}

func (l *lexer) readHexString() (String, error) {
	l.pos++ // consume '<'
	var out []byte
	var hi byte
	half := false
	for l.pos < len(l.data) {
		b := l.data[l.pos]
		l.pos++
		if b == '>' {
			if half {
				out = append(out, hi<<4)
			}
			return String(out), nil
		}
		v, ok := fromHex(b)
		if !ok {
			continue // whitespace inside hex strings is legal
		}
		if half {
			out = append(out, hi<<4|v)
			half = false
		} else {
			hi = v
			half = true
		}
	}
	return nil, io.ErrUnexpectedEOF
}

func (l *lexer) readArray() (Array, error) {
	l.pos++ // consume '['
	var out Array
	for {
		l.skipWhitespace()
		if l.eof() {
			return nil, io.ErrUnexpectedEOF
		}
		if l.data[l.pos] == ']' {
			l.pos++
			return out, nil
		}
		obj, err := l.readObject()
		if err != nil {
			return nil, err
		}
		out = append(out, obj)
	}
}

func (l *lexer) readDict() (Object, error) {
	l.pos += 2 // consume '<<'
	d := make(Dict)
	for {
		l.skipWhitespace()
		if l.eof() {
			return nil, io.ErrUnexpectedEOF
		}
		if l.data[l.pos] == '>' {
			if l.pos+1 >= len(l.data) || l.data[l.pos+1] != '>' {
				return nil, fmt.Errorf("pdf: malformed dict end at offset %d", l.pos)
			}
			l.pos += 2
			return d, nil
		}
		if l.data[l.pos] != '/' {
			return nil, fmt.Errorf("pdf: dict key must be a name at offset %d", l.pos)
		}
		key, err := l.readName()
		if err != nil {
			return nil, err
		}
		val, err := l.readObject()
		if err != nil {
			return nil, err
		}
		d[key] = val
	}
}

// readNumberOrRef reads a number; an integer followed by another integer and
// the keyword R becomes a Ref.
func (l *lexer) readNumberOrRef() (Object, error) {
	num, isInt, err := l.readNumber()
	if err != nil {
		return nil, err
	}
	if !isInt {
		return num, nil
	}
	save := l.pos
	l.skipWhitespace()
	if l.eof() || !(isDigit(l.data[l.pos]) || l.data[l.pos] == '+') {
		l.pos = save
		return num, nil
	}
	gen, genInt, err := l.readNumber()
	if err != nil || !genInt {
		l.pos = save
		return num, nil
	}
	l.skipWhitespace()
	if !l.eof() && l.data[l.pos] == 'R' &&
		(l.pos+1 >= len(l.data) || !isRegular(l.data[l.pos+1])) {
		l.pos++
		return Ref{Num: int(num.(Integer)), Gen: int(gen.(Integer))}, nil
	}
	l.pos = save
	return num, nil
}

func (l *lexer) readNumber() (Object, bool, error) {
	start := l.pos
	if !l.eof() && (l.data[l.pos] == '+' || l.data[l.pos] == '-') {
		l.pos++
	}
	real := false
	for l.pos < len(l.data) {
		b := l.data[l.pos]
		if isDigit(b) {
			l.pos++
			continue
		}
		if b == '.' && !real {
			real = true
			l.pos++
			continue
		}
		break
	}
	tok := string(l.data[start:l.pos])
	if tok == "" || tok == "+" || tok == "-" || tok == "." {
		return nil, false, fmt.Errorf("pdf: malformed number at offset %d", start)
	}
	if real {
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return nil, false, fmt.Errorf("pdf: malformed real %q: %w", tok, err)
		}
		return Real(v), false, nil
	}
	v, err := strconv.ParseInt(tok, 10, 64)
	if err != nil {
		return nil, false, fmt.Errorf("pdf: malformed integer %q: %w", tok, err)
	}
	return Integer(v), true, nil
}

// skipEOL consumes a single end-of-line sequence after the stream keyword.
func (l *lexer) skipEOL() {
	if !l.eof() && l.data[l.pos] == '\r' {
		l.pos++
	}
	if !l.eof() && l.data[l.pos] == '\n' {
		l.pos++
	}
}
