package pdf

import (
	"bytes"
	"compress/lzw"
	"compress/zlib"
	"encoding/ascii85"
	"errors"
	"fmt"
	"io"
)

// decodeStream applies the stream's filter chain to its raw bytes. resolve,
// when non-nil, maps indirect objects in /Filter and /DecodeParms to their
// values. Unsupported filters fail rather than silently passing data through.
func decodeStream(s *Stream, resolve func(Object) Object) ([]byte, error) {
	if resolve == nil {
		resolve = func(o Object) Object { return o }
	}
	filters, parms := filterChain(s.Dict, resolve)
	data := s.Raw
	for i, name := range filters {
		var parm Dict
		if i < len(parms) {
			parm = parms[i]
		}
		var err error
		data, err = applyFilter(name, data, parm)
		if err != nil {
			return nil, fmt.Errorf("filter %s: %w", name, err)
		}
	}
	return data, nil
}

// filterChain normalizes /Filter and /DecodeParms to parallel slices.
func filterChain(d Dict, resolve func(Object) Object) ([]Name, []Dict) {
	var names []Name
	switch f := resolve(d["Filter"]).(type) {
	case Name:
		names = []Name{f}
	case Array:
		for _, v := range f {
			if n, ok := resolve(v).(Name); ok {
				names = append(names, n)
			}
		}
	}
	var parms []Dict
	switch p := resolve(d["DecodeParms"]).(type) {
	case Dict:
		parms = []Dict{p}
	case Array:
		for _, v := range p {
			pd, _ := resolve(v).(Dict)
			parms = append(parms, pd)
		}
	}
	return names, parms
}

func applyFilter(name Name, data []byte, parm Dict) ([]byte, error) {
	switch name {
	case "FlateDecode", "Fl":
		return flateDecode(data, parm)
	case "ASCIIHexDecode", "AHx":
		return asciiHexDecode(data)
	case "ASCII85Decode", "A85":
		return ascii85Decode(data)
	case "LZWDecode", "LZW":
		return lzwDecode(data, parm)
	default:
		return nil, fmt.Errorf("unsupported filter %q", name)
	}
}

func flateDecode(data []byte, parm Dict) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, err
	}
	return applyPredictor(out, parm)
}

func lzwDecode(data []byte, parm Dict) ([]byte, error) {
	early := 1
	if parm != nil {
		if e, ok := toInt(parm["EarlyChange"]); ok {
			early = e
		}
	}
	if early != 1 {
		// compress/lzw only implements early change; such streams are rare.
		return nil, errors.New("EarlyChange 0 not supported")
	}
	r := lzw.NewReader(bytes.NewReader(data), lzw.MSB, 8)
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, err
	}
	return applyPredictor(out, parm)
}

func asciiHexDecode(data []byte) ([]byte, error) {
	var out []byte
	var hi byte
	half := false
	for _, b := range data {
		if b == '>' {
			break
		}
		v, ok := fromHex(b)
		if !ok {
			if isWhitespace(b) {
				continue
			}
			return nil, fmt.Errorf("invalid hex digit %q", b)
		}
		if half {
			out = append(out, hi<<4|v)
			half = false
		} else {
			hi = v
			half = true
		}
	}
	if half {
		out = append(out, hi<<4)
	}
	return out, nil
}

func ascii85Decode(data []byte) ([]byte, error) {
	if i := bytes.Index(data, []byte("~>")); i >= 0 {
		data = data[:i]
	}
	out := make([]byte, len(data)) // decoded is never longer than encoded
	n, _, err := ascii85.Decode(out, data, true)
	if err != nil {
		return nil, err
	}
	return out[:n], nil
}

// applyPredictor undoes PNG and TIFF predictors per /DecodeParms.
func applyPredictor(data []byte, parm Dict) ([]byte, error) {
	if parm == nil {
		return data, nil
	}
	pred, ok := toInt(parm["Predictor"])
	if !ok || pred <= 1 {
		return data, nil
	}
	colors := 1
	if v, ok := toInt(parm["Colors"]); ok {
		colors = v
	}
	bpc := 8
	if v, ok := toInt(parm["BitsPerComponent"]); ok {
		bpc = v
	}
	columns := 1
	if v, ok := toInt(parm["Columns"]); ok {
		columns = v
	}
	bpp := (colors*bpc + 7) / 8
	rowLen := (colors*bpc*columns + 7) / 8

	if pred == 2 {
		return tiffPredictor(data, bpp, rowLen)
	}
	if pred < 10 {
		return nil, fmt.Errorf("unsupported predictor %d", pred)
	}
	return pngPredictor(data, bpp, rowLen)
}

func tiffPredictor(data []byte, bpp, rowLen int) ([]byte, error) {
	for r := 0; r+rowLen <= len(data); r += rowLen {
		row := data[r : r+rowLen]
		for i := bpp; i < len(row); i++ {
			row[i] += row[i-bpp]
		}
	}
	return data, nil
}

func pngPredictor(data []byte, bpp, rowLen int) ([]byte, error) {
	stride := rowLen + 1 // each row is prefixed by its filter type
	if len(data)%stride != 0 {
		return nil, fmt.Errorf("predictor data length %d not a multiple of row size %d", len(data), stride)
	}
	rows := len(data) / stride
	out := make([]byte, 0, rows*rowLen)
	prev := make([]byte, rowLen)
	cur := make([]byte, rowLen)
	for r := 0; r < rows; r++ {
		ft := data[r*stride]
		copy(cur, data[r*stride+1:(r+1)*stride])
		switch ft {
		case 0: // None
		case 1: // Sub
			for i := bpp; i < rowLen; i++ {
				cur[i] += cur[i-bpp]
			}
		case 2: // Up
			for i := 0; i < rowLen; i++ {
				cur[i] += prev[i]
			}
		case 3: // Average
			for i := 0; i < rowLen; i++ {
				var left byte
				if i >= bpp {
					left = cur[i-bpp]
				}
				cur[i] += byte((int(left) + int(prev[i])) / 2)
			}
		case 4: // Paeth
			for i := 0; i < rowLen; i++ {
				var left, upLeft byte
				if i >= bpp {
					left = cur[i-bpp]
					upLeft = prev[i-bpp]
				}
				cur[i] += paeth(left, prev[i], upLeft)
			}
		default:
			return nil, fmt.Errorf("unknown PNG filter type %d", ft)
		}
		out = append(out, cur...)
		prev, cur = cur, prev
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

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// flateEncode compresses data for writing. New streams in rewritten files use
// Flate only.
func flateEncode(data []byte) []byte {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	w.Write(data)
	w.Close()
	return buf.Bytes()
}
