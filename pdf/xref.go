package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
)

// ErrEncrypted is returned when the trailer carries an /Encrypt entry.
// Encrypted documents are out of scope for this backend.
var ErrEncrypted = errors.New("pdf: document is encrypted")

// xrefEntry locates one object, either directly in the file or inside an
// object stream.
type xrefEntry struct {
	offset int64
	gen    int
	// inObjStm is set when the object lives in an object stream; offset then
	// holds the stream's object number and idx the position within it.
	inObjStm bool
	idx      int
	free     bool
}

type xrefTable struct {
	entries map[int]xrefEntry
	trailer Dict
}

// resolveXref follows startxref through the whole /Prev chain, merging tables
// newest-first so earlier revisions never shadow later ones.
func resolveXref(data []byte) (*xrefTable, error) {
	start := bytes.LastIndex(data, []byte("startxref"))
	if start < 0 {
		return nil, errors.New("pdf: startxref not found")
	}
	l := newLexer(data)
	l.pos = start + len("startxref")
	l.skipWhitespace()
	offTok := l.readKeyword()
	off, err := strconv.ParseInt(offTok, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("pdf: malformed startxref offset %q", offTok)
	}

	tab := &xrefTable{entries: make(map[int]xrefEntry), trailer: make(Dict)}
	seen := make(map[int64]bool)
	for off >= 0 {
		if seen[off] {
			return nil, errors.New("pdf: circular xref chain")
		}
		seen[off] = true
		if off >= int64(len(data)) {
			return nil, fmt.Errorf("pdf: xref offset %d beyond end of file", off)
		}
		next, err := tab.readSection(data, off)
		if err != nil {
			return nil, err
		}
		off = next
	}
	if _, ok := tab.trailer["Encrypt"]; ok {
		return nil, ErrEncrypted
	}
	if _, ok := tab.trailer["Root"]; !ok {
		return nil, errors.New("pdf: trailer has no Root")
	}
	return tab, nil
}

// readSection parses one xref section, classic table or xref stream, merges
// its entries (existing entries win) and returns the /Prev offset or -1.
func (t *xrefTable) readSection(data []byte, off int64) (int64, error) {
	l := newLexer(data)
	l.pos = int(off)
	l.skipWhitespace()
	if bytes.HasPrefix(data[l.pos:], []byte("xref")) {
		return t.readClassic(data, l)
	}
	return t.readStream(data, l)
}

func (t *xrefTable) readClassic(data []byte, l *lexer) (int64, error) {
	if err := l.expectKeyword("xref"); err != nil {
		return 0, err
	}
	for {
		l.skipWhitespace()
		if bytes.HasPrefix(data[l.pos:], []byte("trailer")) {
			break
		}
		startTok := l.readKeyword()
		l.skipWhitespace()
		countTok := l.readKeyword()
		first, err1 := strconv.Atoi(startTok)
		count, err2 := strconv.Atoi(countTok)
		if err1 != nil || err2 != nil {
			return 0, fmt.Errorf("pdf: malformed xref subsection header %q %q", startTok, countTok)
		}
		for i := 0; i < count; i++ {
			l.skipWhitespace()
			if l.pos+18 > len(data) {
				return 0, errors.New("pdf: truncated xref entry")
			}
			line := data[l.pos : l.pos+18]
			l.pos += 18
			num := first + i
			if _, exists := t.entries[num]; exists {
				continue
			}
			eoff, err1 := strconv.ParseInt(string(bytes.TrimSpace(line[0:10])), 10, 64)
			gen, err2 := strconv.Atoi(string(bytes.TrimSpace(line[11:16])))
			if err1 != nil || err2 != nil {
				return 0, fmt.Errorf("pdf: malformed xref entry for object %d", num)
			}
			t.entries[num] = xrefEntry{offset: eoff, gen: gen, free: line[17] == 'f'}
		}
	}
	if err := l.expectKeyword("trailer"); err != nil {
		return 0, err
	}
	obj, err := l.readObject()
	if err != nil {
		return 0, err
	}
	trailer, ok := obj.(Dict)
	if !ok {
		return 0, errors.New("pdf: trailer is not a dictionary")
	}
	t.mergeTrailer(trailer)

	// A hybrid file points at an xref stream carrying additional entries.
	if xs, ok := trailer["XRefStm"].(Integer); ok {
		if _, err := t.readSection(data, int64(xs)); err != nil {
			return 0, err
		}
	}
	if prev, ok := trailer["Prev"].(Integer); ok {
		return int64(prev), nil
	}
	return -1, nil
}

func (t *xrefTable) readStream(data []byte, l *lexer) (int64, error) {
	// obj-num gen obj << ... >> stream
	l.skipWhitespace()
	if _, err := strconv.Atoi(l.readKeyword()); err != nil {
		return 0, fmt.Errorf("pdf: xref stream header: %w", err)
	}
	l.skipWhitespace()
	if _, err := strconv.Atoi(l.readKeyword()); err != nil {
		return 0, fmt.Errorf("pdf: xref stream header: %w", err)
	}
	if err := l.expectKeyword("obj"); err != nil {
		return 0, err
	}
	obj, err := l.readObject()
	if err != nil {
		return 0, err
	}
	dict, ok := obj.(Dict)
	if !ok || dict["Type"] != Name("XRef") {
		return 0, errors.New("pdf: expected xref stream at offset")
	}
	if err := l.expectKeyword("stream"); err != nil {
		return 0, err
	}
	l.skipEOL()
	length, ok := toInt(dict["Length"])
	if !ok || l.pos+length > len(data) {
		return 0, errors.New("pdf: bad xref stream length")
	}
	raw := data[l.pos : l.pos+length]
	decoded, err := decodeStream(&Stream{Dict: dict, Raw: raw}, nil)
	if err != nil {
		return 0, fmt.Errorf("pdf: decode xref stream: %w", err)
	}

	w, ok := dict["W"].(Array)
	if !ok || len(w) < 3 {
		return 0, errors.New("pdf: xref stream missing W")
	}
	w0, _ := toInt(w[0])
	w1, _ := toInt(w[1])
	w2, _ := toInt(w[2])
	width := w0 + w1 + w2
	if width == 0 {
		return 0, errors.New("pdf: zero-width xref stream entries")
	}

	size, _ := toInt(dict["Size"])
	index := []int{0, size}
	if ia, ok := dict["Index"].(Array); ok {
		index = index[:0]
		for _, v := range ia {
			n, _ := toInt(v)
			index = append(index, n)
		}
	}

	pos := 0
	for i := 0; i+1 < len(index); i += 2 {
		first, count := index[i], index[i+1]
		for j := 0; j < count; j++ {
			if pos+width > len(decoded) {
				return 0, errors.New("pdf: truncated xref stream data")
			}
			f1 := readField(decoded[pos:pos+w0], 1) // type defaults to 1
			f2 := readField(decoded[pos+w0:pos+w0+w1], 0)
			f3 := readField(decoded[pos+w0+w1:pos+width], 0)
			pos += width
			num := first + j
			if _, exists := t.entries[num]; exists {
				continue
			}
			switch f1 {
			case 0:
				t.entries[num] = xrefEntry{free: true}
			case 1:
				t.entries[num] = xrefEntry{offset: f2, gen: int(f3)}
			case 2:
				t.entries[num] = xrefEntry{inObjStm: true, offset: f2, idx: int(f3)}
			}
		}
	}

	t.mergeTrailer(dict)
	if prev, ok := dict["Prev"].(Integer); ok {
		return int64(prev), nil
	}
	return -1, nil
}

// readField decodes a big-endian field; zero-width fields take the default.
func readField(b []byte, def int64) int64 {
	if len(b) == 0 {
		return def
	}
	var v int64
	for _, c := range b {
		v = v<<8 | int64(c)
	}
	return v
}

// mergeTrailer keeps the newest value for each key.
func (t *xrefTable) mergeTrailer(d Dict) {
	for k, v := range d {
		if _, exists := t.trailer[k]; !exists {
			t.trailer[k] = v
		}
	}
}
