package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/wudi/redactkit/document"
	"github.com/wudi/redactkit/geo"
)

// File is an open PDF document. It resolves the whole object graph at open
// time and edits content streams in place on commit.
type File struct {
	trailer Dict
	objects map[int]Object
	pages   []*page

	// pending regions per page, in visible page space (top-left origin,
	// points, rotation applied). Cleared by a successful commit.
	pending map[int][]geo.Rect

	closed bool
}

type page struct {
	ref       Ref
	dict      Dict
	mediaBox  [4]float64 // llx, lly, urx, ury
	rotate    int
	resources Dict
}

// OpenBytes parses a PDF held in memory.
func OpenBytes(data []byte) (*File, error) {
	if !bytes.Contains(firstN(data, 1024), []byte("%PDF-")) {
		return nil, errors.New("pdf: missing %PDF header")
	}
	tab, err := resolveXref(data)
	if err != nil {
		return nil, err
	}
	f := &File{
		trailer: tab.trailer,
		objects: make(map[int]Object, len(tab.entries)),
		pending: make(map[int][]geo.Rect),
	}
	if err := f.loadObjects(data, tab); err != nil {
		return nil, err
	}
	if err := f.loadPages(); err != nil {
		return nil, err
	}
	return f, nil
}

func firstN(data []byte, n int) []byte {
	if len(data) < n {
		return data
	}
	return data[:n]
}

// loadObjects materializes every live object, direct entries first so object
// streams can be found, then their compressed contents.
func (f *File) loadObjects(data []byte, tab *xrefTable) error {
	for num, e := range tab.entries {
		if e.free || e.inObjStm {
			continue
		}
		obj, err := parseIndirect(data, tab, e.offset, num)
		if err != nil {
			return err
		}
		f.objects[num] = obj
	}
	for num, e := range tab.entries {
		if e.free || !e.inObjStm {
			continue
		}
		if err := f.loadFromObjStm(int(e.offset), e.idx, num); err != nil {
			return err
		}
	}
	return nil
}

// parseIndirect reads "num gen obj ... endobj" at the given offset. Stream
// lengths given as references are chased through the xref table.
func parseIndirect(data []byte, tab *xrefTable, off int64, wantNum int) (Object, error) {
	if off < 0 || off >= int64(len(data)) {
		return nil, fmt.Errorf("pdf: object %d offset %d out of bounds", wantNum, off)
	}
	l := newLexer(data)
	l.pos = int(off)
	l.skipWhitespace()
	numTok := l.readKeyword()
	l.skipWhitespace()
	l.readKeyword() // generation
	if err := l.expectKeyword("obj"); err != nil {
		return nil, fmt.Errorf("pdf: object %d at offset %d: %w (header %q)", wantNum, off, err, numTok)
	}
	obj, err := l.readObject()
	if err != nil {
		return nil, fmt.Errorf("pdf: object %d: %w", wantNum, err)
	}
	dict, isDict := obj.(Dict)
	if !isDict {
		return obj, nil
	}
	save := l.pos
	l.skipWhitespace()
	if !bytes.HasPrefix(data[l.pos:], []byte("stream")) {
		l.pos = save
		return dict, nil
	}
	l.pos += len("stream")
	l.skipEOL()

	length := -1
	switch v := dict["Length"].(type) {
	case Integer:
		length = int(v)
	case Ref:
		if e, ok := tab.entries[v.Num]; ok && !e.free && !e.inObjStm {
			lenObj, err := parseIndirect(data, tab, e.offset, v.Num)
			if err == nil {
				if n, ok := toInt(lenObj); ok {
					length = n
				}
			}
		}
	}
	if length < 0 || l.pos+length > len(data) {
		// Fall back to scanning for the endstream keyword.
		end := bytes.Index(data[l.pos:], []byte("endstream"))
		if end < 0 {
			return nil, fmt.Errorf("pdf: object %d: unterminated stream", wantNum)
		}
		length = end
		for length > 0 && isWhitespace(data[l.pos+length-1]) {
			length--
		}
	}
	raw := make([]byte, length)
	copy(raw, data[l.pos:l.pos+length])
	return &Stream{Dict: dict, Raw: raw}, nil
}

// loadFromObjStm extracts the object at position idx of object stream stmNum.
func (f *File) loadFromObjStm(stmNum, idx, wantNum int) error {
	stm, ok := f.objects[stmNum].(*Stream)
	if !ok || stm.Dict["Type"] != Name("ObjStm") {
		return fmt.Errorf("pdf: object %d: container %d is not an object stream", wantNum, stmNum)
	}
	decoded, err := decodeStream(stm, f.resolve)
	if err != nil {
		return fmt.Errorf("pdf: object stream %d: %w", stmNum, err)
	}
	n, _ := toInt(f.resolve(stm.Dict["N"]))
	first, _ := toInt(f.resolve(stm.Dict["First"]))
	if idx < 0 || idx >= n {
		return fmt.Errorf("pdf: object %d: index %d outside object stream %d", wantNum, idx, stmNum)
	}
	l := newLexer(decoded)
	var num, off int
	for i := 0; i <= idx; i++ {
		l.skipWhitespace()
		numObj, isInt, err := l.readNumber()
		if err != nil || !isInt {
			return fmt.Errorf("pdf: object stream %d: malformed header", stmNum)
		}
		l.skipWhitespace()
		offObj, isInt, err := l.readNumber()
		if err != nil || !isInt {
			return fmt.Errorf("pdf: object stream %d: malformed header", stmNum)
		}
		num, off = int(numObj.(Integer)), int(offObj.(Integer))
	}
	if num != wantNum {
		return fmt.Errorf("pdf: object stream %d: header names %d at index %d, xref says %d", stmNum, num, idx, wantNum)
	}
	body := newLexer(decoded)
	body.pos = first + off
	if body.pos > len(decoded) {
		return fmt.Errorf("pdf: object stream %d: offset %d beyond data", stmNum, body.pos)
	}
	obj, err := body.readObject()
	if err != nil {
		return fmt.Errorf("pdf: object %d in stream %d: %w", wantNum, stmNum, err)
	}
	f.objects[wantNum] = obj
	return nil
}

// resolve follows indirect references to their value. Missing objects read as
// null, matching reader behavior for dangling references.
func (f *File) resolve(obj Object) Object {
	for i := 0; i < 32; i++ {
		ref, ok := obj.(Ref)
		if !ok {
			return obj
		}
		next, found := f.objects[ref.Num]
		if !found {
			return Null{}
		}
		obj = next
	}
	return Null{}
}

func (f *File) resolveDict(obj Object) Dict {
	d, _ := f.resolve(obj).(Dict)
	return d
}

// loadPages walks the page tree collecting leaves with their inherited
// attributes.
func (f *File) loadPages() error {
	root := f.resolveDict(f.trailer["Root"])
	if root == nil {
		return errors.New("pdf: catalog missing")
	}
	pagesRef, _ := root["Pages"].(Ref)
	seen := make(map[Ref]bool)
	return f.walkPages(root["Pages"], pagesRef, inherited{}, seen)
}

type inherited struct {
	mediaBox  Object
	resources Object
	rotate    Object
}

func (f *File) walkPages(node Object, ref Ref, inh inherited, seen map[Ref]bool) error {
	if r, ok := node.(Ref); ok {
		if seen[r] {
			return errors.New("pdf: page tree cycle")
		}
		seen[r] = true
		ref = r
	}
	dict := f.resolveDict(node)
	if dict == nil {
		return errors.New("pdf: page tree node is not a dictionary")
	}
	if v, ok := dict["MediaBox"]; ok {
		inh.mediaBox = v
	}
	if v, ok := dict["Resources"]; ok {
		inh.resources = v
	}
	if v, ok := dict["Rotate"]; ok {
		inh.rotate = v
	}
	switch dict["Type"] {
	case Name("Pages"):
		kids, _ := f.resolve(dict["Kids"]).(Array)
		for _, kid := range kids {
			kidRef, _ := kid.(Ref)
			if err := f.walkPages(kid, kidRef, inh, seen); err != nil {
				return err
			}
		}
		return nil
	case Name("Page"):
		p := &page{ref: ref, dict: dict, rotate: normalizeRotate(f.resolve(inh.rotate))}
		mb, _ := f.resolve(inh.mediaBox).(Array)
		if len(mb) != 4 {
			// US Letter default for files that omit MediaBox entirely.
			p.mediaBox = [4]float64{0, 0, 612, 792}
		} else {
			for i := 0; i < 4; i++ {
				p.mediaBox[i] = toFloat(f.resolve(mb[i]))
			}
			if p.mediaBox[0] > p.mediaBox[2] {
				p.mediaBox[0], p.mediaBox[2] = p.mediaBox[2], p.mediaBox[0]
			}
			if p.mediaBox[1] > p.mediaBox[3] {
				p.mediaBox[1], p.mediaBox[3] = p.mediaBox[3], p.mediaBox[1]
			}
		}
		p.resources = f.resolveDict(inh.resources)
		f.pages = append(f.pages, p)
		return nil
	default:
		return fmt.Errorf("pdf: page tree node has type %v", dict["Type"])
	}
}

func normalizeRotate(obj Object) int {
	r, _ := toInt(obj)
	r %= 360
	if r < 0 {
		r += 360
	}
	return r
}

// PageCount reports the number of pages.
func (f *File) PageCount() int { return len(f.pages) }

func (f *File) checkPage(page int) *page {
	if page < 0 || page >= len(f.pages) {
		panic(fmt.Sprintf("pdf: page %d out of range [0,%d)", page, len(f.pages)))
	}
	return f.pages[page]
}

// PageSize returns the visible page dimensions in points, with width and
// height swapped for 90 and 270 degree rotations.
func (f *File) PageSize(pageNum int) (w, h float64) {
	p := f.checkPage(pageNum)
	w = p.mediaBox[2] - p.mediaBox[0]
	h = p.mediaBox[3] - p.mediaBox[1]
	if p.rotate == 90 || p.rotate == 270 {
		w, h = h, w
	}
	return w, h
}

// MarkRegionForRemoval queues a region on the page. Regions use the visible
// page's top-left origin in points. Nothing changes until CommitRemovals.
func (f *File) MarkRegionForRemoval(pageNum int, r geo.Rect) error {
	f.checkPage(pageNum)
	r = r.Normalized()
	if r.IsEmpty() {
		return nil
	}
	f.pending[pageNum] = append(f.pending[pageNum], r)
	return nil
}

// CommitRemovals applies the page's queued regions to its content streams.
// The page is either fully rewritten or, on error, left exactly as it was
// with the queue intact.
func (f *File) CommitRemovals(pageNum int) error {
	p := f.checkPage(pageNum)
	regions := f.pending[pageNum]
	if len(regions) == 0 {
		return nil
	}

	ops, err := f.pageContent(p)
	if err != nil {
		return err
	}

	userRegions := make([]geo.Rect, len(regions))
	for i, r := range regions {
		userRegions[i] = p.toUserSpace(r)
	}
	bounds := geo.Rect{X0: p.mediaBox[0], Y0: p.mediaBox[1], X1: p.mediaBox[2], Y1: p.mediaBox[3]}
	res := removeRegions(ops, userRegions, bounds)

	encoded := flateEncode(serializeContent(res.ops))
	p.dict["Contents"] = &Stream{
		Dict: Dict{"Length": Integer(len(encoded)), "Filter": Name("FlateDecode")},
		Raw:  encoded,
	}
	f.dropOrphanedXObjects(p, res.removedXObjects)
	delete(f.pending, pageNum)
	return nil
}

// pageContent decodes and parses the page's content streams, merged in order.
func (f *File) pageContent(p *page) ([]Op, error) {
	var data []byte
	switch c := f.resolve(p.dict["Contents"]).(type) {
	case *Stream:
		d, err := decodeStream(c, f.resolve)
		if err != nil {
			return nil, fmt.Errorf("pdf: page content: %w", err)
		}
		data = d
	case Array:
		for _, el := range c {
			stm, ok := f.resolve(el).(*Stream)
			if !ok {
				continue
			}
			d, err := decodeStream(stm, f.resolve)
			if err != nil {
				return nil, fmt.Errorf("pdf: page content: %w", err)
			}
			data = append(data, d...)
			data = append(data, '\n')
		}
	case nil, Null:
		return nil, nil
	default:
		return nil, fmt.Errorf("pdf: page Contents has type %T", c)
	}
	ops, err := parseContent(data)
	if err != nil {
		return nil, err
	}
	return ops, nil
}

// toUserSpace maps a region from visible page space (top-left origin, after
// rotation) into the page's default user space.
func (p *page) toUserSpace(r geo.Rect) geo.Rect {
	llx, lly, urx, ury := p.mediaBox[0], p.mediaBox[1], p.mediaBox[2], p.mediaBox[3]
	flip := func(vx, vy float64) geo.Point {
		switch p.rotate {
		case 90:
			return geo.Point{X: llx + vy, Y: lly + vx}
		case 180:
			return geo.Point{X: urx - vx, Y: lly + vy}
		case 270:
			return geo.Point{X: urx - vy, Y: ury - vx}
		default:
			return geo.Point{X: llx + vx, Y: ury - vy}
		}
	}
	a := flip(r.X0, r.Y0)
	b := flip(r.X1, r.Y1)
	return geo.FromCorners(a, b)
}

// dropOrphanedXObjects rewrites the page's resource dictionary without the
// XObjects whose last use was just removed. The dictionary is cloned first:
// resources can be inherited and shared across pages.
func (f *File) dropOrphanedXObjects(p *page, removed map[Name]bool) {
	if len(removed) == 0 || p.resources == nil {
		return
	}
	xo := f.resolveDict(p.resources["XObject"])
	if xo == nil {
		return
	}
	keep := false
	for name := range removed {
		if _, ok := xo[name]; ok {
			keep = true
		}
	}
	if !keep {
		return
	}
	newRes := make(Dict, len(p.resources))
	for k, v := range p.resources {
		newRes[k] = v
	}
	newXO := make(Dict, len(xo))
	for k, v := range xo {
		if !removed[k] {
			newXO[k] = v
		}
	}
	newRes["XObject"] = newXO
	p.resources = newRes
	p.dict["Resources"] = newRes
}

// WriteTo serializes the document. Compact saves rewrite the file from the
// live object graph so removed content does not survive in the output bytes;
// this backend always writes compacted.
func (f *File) WriteTo(w io.Writer, opts document.SaveOptions) error {
	return writeFile(f, w)
}

// Close releases the object graph.
func (f *File) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	f.objects = nil
	f.pages = nil
	f.pending = nil
	return nil
}
