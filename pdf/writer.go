package pdf

import (
	"bytes"
	"crypto/md5"
	"fmt"
	"io"
)

// writeFile rewrites the document as a fresh single-revision file. Only
// objects reachable from the trailer's Root and Info are emitted, so content
// discarded by edits cannot survive in the output, and object numbers are
// reassigned densely from 1.
func writeFile(f *File, w io.Writer) error {
	fw := &fileWriter{f: f, renum: make(map[int]int)}

	trailer := Dict{}
	if root, ok := f.trailer["Root"]; ok {
		trailer["Root"] = fw.translate(root, false)
	}
	if info, ok := f.trailer["Info"]; ok {
		if tr := fw.translate(info, false); tr != (Null{}) {
			trailer["Info"] = tr
		}
	}
	fw.drain()

	var body bytes.Buffer
	body.WriteString("%PDF-1.7\n%")
	body.Write([]byte{0xe2, 0xe3, 0xcf, 0xd3})
	body.WriteByte('\n')

	offsets := make([]int, len(fw.out))
	for i, obj := range fw.out {
		offsets[i] = body.Len()
		fmt.Fprintf(&body, "%d 0 obj\n", i+1)
		writeTopLevel(&body, obj)
		body.WriteString("\nendobj\n")
	}

	sum := md5.Sum(body.Bytes())
	id := String(sum[:])
	trailer["Size"] = Integer(len(fw.out) + 1)
	trailer["ID"] = Array{id, id}

	xrefOff := body.Len()
	fmt.Fprintf(&body, "xref\n0 %d\n", len(fw.out)+1)
	body.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&body, "%010d 00000 n \n", off)
	}
	body.WriteString("trailer\n")
	var tbuf bytes.Buffer
	writeObject(&tbuf, trailer)
	body.Write(tbuf.Bytes())
	fmt.Fprintf(&body, "\nstartxref\n%d\n%%%%EOF\n", xrefOff)

	_, err := w.Write(body.Bytes())
	return err
}

type fileWriter struct {
	f     *File
	renum map[int]int
	out   []Object // new object number is index+1
	queue []int    // old numbers awaiting translation
}

// translate renumbers references and hoists direct streams to indirect
// objects. asStream keeps a *Stream in place when the value is itself a top
// level object body.
func (fw *fileWriter) translate(obj Object, asStream bool) Object {
	switch v := obj.(type) {
	case Ref:
		if old, ok := fw.f.objects[v.Num]; !ok || old == nil {
			return Null{}
		}
		if newNum, ok := fw.renum[v.Num]; ok {
			return Ref{Num: newNum}
		}
		newNum := fw.alloc()
		fw.renum[v.Num] = newNum
		fw.queue = append(fw.queue, v.Num)
		return Ref{Num: newNum}
	case Dict:
		out := make(Dict, len(v))
		for k, val := range v {
			out[k] = fw.translate(val, false)
		}
		return out
	case Array:
		out := make(Array, len(v))
		for i, val := range v {
			out[i] = fw.translate(val, false)
		}
		return out
	case *Stream:
		src := make(Dict, len(v.Dict))
		for k, val := range v.Dict {
			if k != "Length" { // rewritten below, may have been indirect
				src[k] = val
			}
		}
		dict, _ := fw.translate(src, false).(Dict)
		dict["Length"] = Integer(len(v.Raw))
		stm := &Stream{Dict: dict, Raw: v.Raw}
		if asStream {
			return stm
		}
		newNum := fw.alloc()
		fw.out[newNum-1] = stm
		return Ref{Num: newNum}
	default:
		return obj
	}
}

func (fw *fileWriter) alloc() int {
	fw.out = append(fw.out, nil)
	return len(fw.out)
}

// drain translates queued objects until the reachable set closes.
func (fw *fileWriter) drain() {
	for len(fw.queue) > 0 {
		oldNum := fw.queue[0]
		fw.queue = fw.queue[1:]
		newNum := fw.renum[oldNum]
		fw.out[newNum-1] = fw.translate(fw.f.objects[oldNum], true)
	}
}

func writeTopLevel(buf *bytes.Buffer, obj Object) {
	if stm, ok := obj.(*Stream); ok {
		writeObject(buf, stm.Dict)
		buf.WriteString("\nstream\n")
		buf.Write(stm.Raw)
		buf.WriteString("\nendstream")
		return
	}
	writeObject(buf, obj)
}
