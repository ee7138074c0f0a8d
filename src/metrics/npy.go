package metrics

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sbinet/npyio"
)

// elemCount derives the flat element count from an npy shape (empty shape is a
// 0-d scalar, one element).
func elemCount(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// decodeFloats decodes one npy member into float64s. npyio handles the header
// and the numeric payload; this only widens the stored dtype.
func decodeFloats(raw []byte) ([]float64, error) {
	r, err := npyio.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	dt := strings.TrimLeft(r.Header.Descr.Type, "<>|=")
	switch dt {
	case "f8":
		var v []float64
		if err := r.Read(&v); err != nil {
			return nil, err
		}
		return v, nil
	case "f4":
		var v []float32
		if err := r.Read(&v); err != nil {
			return nil, err
		}
		return widen(v), nil
	case "i8":
		var v []int64
		if err := r.Read(&v); err != nil {
			return nil, err
		}
		return widen(v), nil
	case "i4":
		var v []int32
		if err := r.Read(&v); err != nil {
			return nil, err
		}
		return widen(v), nil
	case "i2":
		var v []int16
		if err := r.Read(&v); err != nil {
			return nil, err
		}
		return widen(v), nil
	case "i1":
		var v []int8
		if err := r.Read(&v); err != nil {
			return nil, err
		}
		return widen(v), nil
	case "u8":
		var v []uint64
		if err := r.Read(&v); err != nil {
			return nil, err
		}
		return widen(v), nil
	case "u4":
		var v []uint32
		if err := r.Read(&v); err != nil {
			return nil, err
		}
		return widen(v), nil
	case "u2":
		var v []uint16
		if err := r.Read(&v); err != nil {
			return nil, err
		}
		return widen(v), nil
	case "u1":
		var v []uint8
		if err := r.Read(&v); err != nil {
			return nil, err
		}
		return widen(v), nil
	case "b1":
		var v []bool
		if err := r.Read(&v); err != nil {
			return nil, err
		}
		out := make([]float64, len(v))
		for i, b := range v {
			if b {
				out[i] = 1
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported numeric dtype %q", r.Header.Descr.Type)
}

type numeric interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~float32
}

func widen[T numeric](v []T) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

// decodeStrings decodes a fixed-width numpy string member. npyio parses the
// header but has no string element support, so the payload is decoded here:
// '<U'/'>U' is UTF-32 codepoints, '|S' is raw bytes, both NUL-padded to the
// declared width.
func decodeStrings(raw []byte) ([]string, error) {
	br := bytes.NewReader(raw)
	r, err := npyio.NewReader(br)
	if err != nil {
		return nil, err
	}
	descr := r.Header.Descr.Type
	if len(descr) < 2 {
		return nil, fmt.Errorf("unsupported string dtype %q", descr)
	}
	kind := descr[1]
	if kind != 'U' && kind != 'S' {
		// numpy also writes bytes dtypes without an order char
		if descr[0] == 'U' || descr[0] == 'S' {
			kind = descr[0]
			descr = "|" + descr
		} else {
			return nil, fmt.Errorf("unsupported string dtype %q", r.Header.Descr.Type)
		}
	}
	width, err := strconv.Atoi(descr[2:])
	if err != nil {
		return nil, fmt.Errorf("unsupported string dtype %q", r.Header.Descr.Type)
	}
	n := elemCount(r.Header.Descr.Shape)
	payload, err := io.ReadAll(br)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, n)
	switch kind {
	case 'S':
		if len(payload) < n*width {
			return nil, fmt.Errorf("short string payload: %d bytes for %d x S%d", len(payload), n, width)
		}
		for i := 0; i < n; i++ {
			cell := payload[i*width : (i+1)*width]
			out = append(out, string(bytes.TrimRight(cell, "\x00")))
		}
	case 'U':
		order := binary.ByteOrder(binary.LittleEndian)
		if r.Header.Descr.Type[0] == '>' {
			order = binary.BigEndian
		}
		if len(payload) < n*width*4 {
			return nil, fmt.Errorf("short string payload: %d bytes for %d x U%d", len(payload), n, width)
		}
		runes := make([]rune, 0, width)
		for i := 0; i < n; i++ {
			runes = runes[:0]
			cell := payload[i*width*4 : (i+1)*width*4]
			for j := 0; j < width; j++ {
				cp := order.Uint32(cell[j*4 : j*4+4])
				if cp == 0 {
					break
				}
				runes = append(runes, rune(cp))
			}
			out = append(out, string(runes))
		}
	}
	return out, nil
}
