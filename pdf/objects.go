// Package pdf is the concrete document backend: it parses a PDF into an
// object graph, removes content under redaction regions at the content-stream
// level, and rewrites the file compacted so discarded data does not survive
// in the output bytes. It implements the document package interfaces.
//
// The backend deliberately covers only what redaction needs: xref tables and
// streams, object streams, Flate/ASCIIHex/ASCII85/LZW stream filters, the
// page tree, and content streams. Encrypted files are rejected at open.
package pdf

import "fmt"

// Object is any PDF object. Concrete types: Integer, Real, Name, String,
// Bool, Null, Ref, Dict, Array, *Stream.
type Object interface{}

type (
	Integer int64
	Real    float64
	Name    string
	String  []byte
	Bool    bool
	Null    struct{}
)

// Ref is an indirect object reference.
type Ref struct {
	Num, Gen int
}

func (r Ref) String() string { return fmt.Sprintf("%d %d R", r.Num, r.Gen) }

type Dict map[Name]Object

type Array []Object

// Stream pairs a stream dictionary with its raw (still encoded) data.
type Stream struct {
	Dict Dict
	Raw  []byte
}

// toFloat converts numeric objects; anything else yields 0.
func toFloat(obj Object) float64 {
	switch v := obj.(type) {
	case Integer:
		return float64(v)
	case Real:
		return float64(v)
	}
	return 0
}

func toInt(obj Object) (int, bool) {
	switch v := obj.(type) {
	case Integer:
		return int(v), true
	case Real:
		return int(v), true
	}
	return 0, false
}
