package cfgpack

import (
	"encoding/binary"
	"fmt"
	"math"
)

// MessagePack format bytes for the subset this codec implements.
const (
	fmtPosFixintMax = 0x7f
	fmtNegFixintMin = 0xe0
	fmtFixmapMin    = 0x80
	fmtFixmapMax    = 0x8f
	fmtFixstrMin    = 0xa0
	fmtFixstrMax    = 0xbf
	fmtUint8        = 0xcc
	fmtUint16       = 0xcd
	fmtUint32       = 0xce
	fmtUint64       = 0xcf
	fmtInt8         = 0xd0
	fmtInt16        = 0xd1
	fmtInt32        = 0xd2
	fmtInt64        = 0xd3
	fmtFloat32      = 0xca
	fmtFloat64      = 0xcb
	fmtStr8         = 0xd9
	fmtStr16        = 0xda
	fmtMap16        = 0xde
)

// Encoder writes MessagePack values into a caller-supplied buffer. It
// never allocates; once the buffer is exhausted every subsequent call
// returns ErrEncode.
type Encoder struct {
	buf []byte
	n   int
}

// NewEncoder wraps buf for writing. buf's full capacity is available;
// Bytes returns only what has been written so far.
func NewEncoder(buf []byte) *Encoder {
	return &Encoder{buf: buf}
}

// Reset rebinds the encoder to a new output buffer.
func (e *Encoder) Reset(buf []byte) {
	e.buf = buf
	e.n = 0
}

// Bytes returns the portion of the buffer written so far.
func (e *Encoder) Bytes() []byte { return e.buf[:e.n] }

// Len reports how many bytes have been written.
func (e *Encoder) Len() int { return e.n }

func (e *Encoder) put(p []byte) error {
	if e.n+len(p) > len(e.buf) {
		return fmt.Errorf("%w: need %d more bytes, have %d", ErrEncode, len(p), len(e.buf)-e.n)
	}
	copy(e.buf[e.n:], p)
	e.n += len(p)
	return nil
}

func (e *Encoder) putByte(b byte) error {
	if e.n+1 > len(e.buf) {
		return fmt.Errorf("%w: need 1 more byte", ErrEncode)
	}
	e.buf[e.n] = b
	e.n++
	return nil
}

// EncodeMapHeader writes a fixmap or map16 header for n key/value pairs.
func (e *Encoder) EncodeMapHeader(n int) error {
	switch {
	case n < 0:
		return fmt.Errorf("%w: negative map size", ErrEncode)
	case n <= 15:
		return e.putByte(byte(fmtFixmapMin | n))
	case n <= 0xffff:
		if err := e.putByte(fmtMap16); err != nil {
			return err
		}
		var tmp [2]byte
		binary.BigEndian.PutUint16(tmp[:], uint16(n))
		return e.put(tmp[:])
	default:
		return fmt.Errorf("%w: map too large for map16", ErrEncode)
	}
}

// EncodeUint writes v using the shortest MessagePack form that holds it.
func (e *Encoder) EncodeUint(v uint64) error {
	switch {
	case v <= fmtPosFixintMax:
		return e.putByte(byte(v))
	case v <= 0xff:
		if err := e.putByte(fmtUint8); err != nil {
			return err
		}
		return e.putByte(byte(v))
	case v <= 0xffff:
		if err := e.putByte(fmtUint16); err != nil {
			return err
		}
		var tmp [2]byte
		binary.BigEndian.PutUint16(tmp[:], uint16(v))
		return e.put(tmp[:])
	case v <= 0xffffffff:
		if err := e.putByte(fmtUint32); err != nil {
			return err
		}
		var tmp [4]byte
		binary.BigEndian.PutUint32(tmp[:], uint32(v))
		return e.put(tmp[:])
	default:
		if err := e.putByte(fmtUint64); err != nil {
			return err
		}
		var tmp [8]byte
		binary.BigEndian.PutUint64(tmp[:], v)
		return e.put(tmp[:])
	}
}

// EncodeInt writes v using the shortest MessagePack form that holds it,
// sharing the positive-fixint range with EncodeUint for non-negative
// values.
func (e *Encoder) EncodeInt(v int64) error {
	if v >= 0 {
		return e.EncodeUint(uint64(v))
	}
	switch {
	case v >= -32:
		return e.putByte(byte(int8(v)))
	case v >= -128:
		if err := e.putByte(fmtInt8); err != nil {
			return err
		}
		return e.putByte(byte(int8(v)))
	case v >= -32768:
		if err := e.putByte(fmtInt16); err != nil {
			return err
		}
		var tmp [2]byte
		binary.BigEndian.PutUint16(tmp[:], uint16(int16(v)))
		return e.put(tmp[:])
	case v >= -2147483648:
		if err := e.putByte(fmtInt32); err != nil {
			return err
		}
		var tmp [4]byte
		binary.BigEndian.PutUint32(tmp[:], uint32(int32(v)))
		return e.put(tmp[:])
	default:
		if err := e.putByte(fmtInt64); err != nil {
			return err
		}
		var tmp [8]byte
		binary.BigEndian.PutUint64(tmp[:], uint64(v))
		return e.put(tmp[:])
	}
}

// EncodeFloat32 writes v as a raw big-endian IEEE-754 float32.
func (e *Encoder) EncodeFloat32(v float32) error {
	if err := e.putByte(fmtFloat32); err != nil {
		return err
	}
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], math.Float32bits(v))
	return e.put(tmp[:])
}

// EncodeFloat64 writes v as a raw big-endian IEEE-754 float64.
func (e *Encoder) EncodeFloat64(v float64) error {
	if err := e.putByte(fmtFloat64); err != nil {
		return err
	}
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], math.Float64bits(v))
	return e.put(tmp[:])
}

// EncodeStr writes b using the shortest of fixstr/str8/str16.
func (e *Encoder) EncodeStr(b []byte) error {
	n := len(b)
	switch {
	case n <= 31:
		if err := e.putByte(byte(fmtFixstrMin | n)); err != nil {
			return err
		}
	case n <= 0xff:
		if err := e.putByte(fmtStr8); err != nil {
			return err
		}
		if err := e.putByte(byte(n)); err != nil {
			return err
		}
	case n <= 0xffff:
		if err := e.putByte(fmtStr16); err != nil {
			return err
		}
		var tmp [2]byte
		binary.BigEndian.PutUint16(tmp[:], uint16(n))
		if err := e.put(tmp[:]); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: string too long for str16", ErrEncode)
	}
	return e.put(b)
}

// EncodeValue writes v according to its declared Type.
func (e *Encoder) EncodeValue(v V) error {
	switch v.Type {
	case TU8, TU16, TU32, TU64:
		return e.EncodeUint(v.Uint)
	case TI8, TI16, TI32, TI64:
		return e.EncodeInt(v.Int)
	case TF32:
		return e.EncodeFloat32(v.F32)
	case TF64:
		return e.EncodeFloat64(v.F64)
	case TStr, TFstr:
		return e.EncodeStr(v.Str)
	default:
		return fmt.Errorf("%w: unknown value type %d", ErrEncode, v.Type)
	}
}

// Decoder reads MessagePack values from a caller-supplied byte slice.
type Decoder struct {
	buf []byte
	pos int
}

// NewDecoder wraps buf for reading starting at offset 0.
func NewDecoder(buf []byte) *Decoder {
	return &Decoder{buf: buf}
}

// Reset rebinds the decoder to a new input and resets the cursor.
func (d *Decoder) Reset(buf []byte) {
	d.buf = buf
	d.pos = 0
}

// Pos reports the current read offset.
func (d *Decoder) Pos() int { return d.pos }

// Remaining reports how many bytes are left unconsumed.
func (d *Decoder) Remaining() int { return len(d.buf) - d.pos }

func (d *Decoder) need(n int) error {
	if d.pos+n > len(d.buf) {
		return fmt.Errorf("%w: truncated input, need %d bytes at offset %d", ErrDecode, n, d.pos)
	}
	return nil
}

func (d *Decoder) readByte() (byte, error) {
	if err := d.need(1); err != nil {
		return 0, err
	}
	b := d.buf[d.pos]
	d.pos++
	return b, nil
}

// PeekFormatByte returns the next format byte without consuming it.
func (d *Decoder) PeekFormatByte() (byte, error) {
	if err := d.need(1); err != nil {
		return 0, err
	}
	return d.buf[d.pos], nil
}

func (d *Decoder) readN(n int) ([]byte, error) {
	if err := d.need(n); err != nil {
		return nil, err
	}
	p := d.buf[d.pos : d.pos+n]
	d.pos += n
	return p, nil
}

// DecodeMapHeader reads a fixmap or map16 header and returns its count.
func (d *Decoder) DecodeMapHeader() (int, error) {
	b, err := d.readByte()
	if err != nil {
		return 0, err
	}
	switch {
	case b >= fmtFixmapMin && b <= fmtFixmapMax:
		return int(b & 0x0f), nil
	case b == fmtMap16:
		p, err := d.readN(2)
		if err != nil {
			return 0, err
		}
		return int(binary.BigEndian.Uint16(p)), nil
	default:
		return 0, fmt.Errorf("%w: expected map header, got format byte 0x%02x", ErrDecode, b)
	}
}

// DecodeUnsignedKey decodes the next value as an unsigned integer. Map
// keys in cfgpack blobs are always entry ids, which the encoder only
// ever writes in unsigned form.
func (d *Decoder) DecodeUnsignedKey() (uint64, error) {
	b, err := d.readByte()
	if err != nil {
		return 0, err
	}
	switch {
	case b <= fmtPosFixintMax:
		return uint64(b), nil
	case b == fmtUint8:
		p, err := d.readN(1)
		if err != nil {
			return 0, err
		}
		return uint64(p[0]), nil
	case b == fmtUint16:
		p, err := d.readN(2)
		if err != nil {
			return 0, err
		}
		return uint64(binary.BigEndian.Uint16(p)), nil
	case b == fmtUint32:
		p, err := d.readN(4)
		if err != nil {
			return 0, err
		}
		return uint64(binary.BigEndian.Uint32(p)), nil
	case b == fmtUint64:
		p, err := d.readN(8)
		if err != nil {
			return 0, err
		}
		return binary.BigEndian.Uint64(p), nil
	default:
		return 0, fmt.Errorf("%w: expected unsigned integer key, got format byte 0x%02x", ErrDecode, b)
	}
}

// DecodeValue decodes the next scalar value and classifies its wire
// kind per the format byte actually on the wire (not any declared
// schema type). String kinds are classified by payload length: a
// string of FstrMax bytes or fewer reads as TFstr, otherwise TStr —
// this is what lets the coercion table's fstr/str rules operate on
// values that carry no independent type tag of their own on the wire.
func (d *Decoder) DecodeValue() (V, error) {
	b, err := d.readByte()
	if err != nil {
		return V{}, err
	}
	switch {
	case b <= fmtPosFixintMax:
		return V{Type: TU8, Uint: uint64(b)}, nil
	case b >= fmtNegFixintMin:
		return V{Type: TI8, Int: int64(int8(b))}, nil
	case b == fmtUint8:
		p, err := d.readN(1)
		if err != nil {
			return V{}, err
		}
		return V{Type: TU8, Uint: uint64(p[0])}, nil
	case b == fmtUint16:
		p, err := d.readN(2)
		if err != nil {
			return V{}, err
		}
		return V{Type: TU16, Uint: uint64(binary.BigEndian.Uint16(p))}, nil
	case b == fmtUint32:
		p, err := d.readN(4)
		if err != nil {
			return V{}, err
		}
		return V{Type: TU32, Uint: uint64(binary.BigEndian.Uint32(p))}, nil
	case b == fmtUint64:
		p, err := d.readN(8)
		if err != nil {
			return V{}, err
		}
		return V{Type: TU64, Uint: binary.BigEndian.Uint64(p)}, nil
	case b == fmtInt8:
		p, err := d.readN(1)
		if err != nil {
			return V{}, err
		}
		return V{Type: TI8, Int: int64(int8(p[0]))}, nil
	case b == fmtInt16:
		p, err := d.readN(2)
		if err != nil {
			return V{}, err
		}
		return V{Type: TI16, Int: int64(int16(binary.BigEndian.Uint16(p)))}, nil
	case b == fmtInt32:
		p, err := d.readN(4)
		if err != nil {
			return V{}, err
		}
		return V{Type: TI32, Int: int64(int32(binary.BigEndian.Uint32(p)))}, nil
	case b == fmtInt64:
		p, err := d.readN(8)
		if err != nil {
			return V{}, err
		}
		return V{Type: TI64, Int: int64(binary.BigEndian.Uint64(p))}, nil
	case b == fmtFloat32:
		p, err := d.readN(4)
		if err != nil {
			return V{}, err
		}
		return V{Type: TF32, F32: math.Float32frombits(binary.BigEndian.Uint32(p))}, nil
	case b == fmtFloat64:
		p, err := d.readN(8)
		if err != nil {
			return V{}, err
		}
		return V{Type: TF64, F64: math.Float64frombits(binary.BigEndian.Uint64(p))}, nil
	case b >= fmtFixstrMin && b <= fmtFixstrMax:
		return d.decodeStrBody(int(b & 0x1f))
	case b == fmtStr8:
		p, err := d.readN(1)
		if err != nil {
			return V{}, err
		}
		return d.decodeStrBody(int(p[0]))
	case b == fmtStr16:
		p, err := d.readN(2)
		if err != nil {
			return V{}, err
		}
		return d.decodeStrBody(int(binary.BigEndian.Uint16(p)))
	default:
		return V{}, fmt.Errorf("%w: unknown or unsupported format byte 0x%02x", ErrDecode, b)
	}
}

func (d *Decoder) decodeStrBody(n int) (V, error) {
	p, err := d.readN(n)
	if err != nil {
		return V{}, err
	}
	kind := TStr
	if n <= FstrMax {
		kind = TFstr
	}
	return V{Type: kind, Str: p}, nil
}

// Skip advances the cursor past exactly one value — scalar or
// container — without decoding its payload into a value. It is
// iterative: container nesting is tracked with an explicit counter
// stack rather than recursion, so skip depth is bounded by maxDepth
// regardless of call-stack size. Exceeding maxDepth returns ErrDecode.
func (d *Decoder) Skip(maxDepth int) error {
	// stack[i] counts how many more child values remain to be skipped
	// at nesting level i. The synthetic outermost frame represents the
	// single top-level value being skipped.
	stack := []int{1}
	depth := 0
	for len(stack) > 0 {
		top := len(stack) - 1
		if stack[top] == 0 {
			stack = stack[:top]
			if len(stack) > 0 {
				depth--
			}
			continue
		}
		stack[top]--

		children, err := d.skipOne()
		if err != nil {
			return err
		}
		if children > 0 {
			depth++
			if depth > maxDepth {
				return fmt.Errorf("%w: skip depth exceeds %d", ErrDecode, maxDepth)
			}
			stack = append(stack, children)
		}
	}
	return nil
}

// skipOne consumes exactly one value's own header and, for scalars,
// its payload. For a map it consumes only the header and returns the
// number of child slots (2 per entry: key and value) the caller must
// still skip.
func (d *Decoder) skipOne() (children int, err error) {
	b, err := d.readByte()
	if err != nil {
		return 0, err
	}
	switch {
	case b <= fmtPosFixintMax, b >= fmtNegFixintMin:
		return 0, nil
	case b == fmtUint8, b == fmtInt8:
		_, err = d.readN(1)
		return 0, err
	case b == fmtUint16, b == fmtInt16:
		_, err = d.readN(2)
		return 0, err
	case b == fmtUint32, b == fmtInt32, b == fmtFloat32:
		_, err = d.readN(4)
		return 0, err
	case b == fmtUint64, b == fmtInt64, b == fmtFloat64:
		_, err = d.readN(8)
		return 0, err
	case b >= fmtFixstrMin && b <= fmtFixstrMax:
		_, err = d.readN(int(b & 0x1f))
		return 0, err
	case b == fmtStr8:
		p, err := d.readN(1)
		if err != nil {
			return 0, err
		}
		_, err = d.readN(int(p[0]))
		return 0, err
	case b == fmtStr16:
		p, err := d.readN(2)
		if err != nil {
			return 0, err
		}
		_, err = d.readN(int(binary.BigEndian.Uint16(p)))
		return 0, err
	case b >= fmtFixmapMin && b <= fmtFixmapMax:
		return int(b&0x0f) * 2, nil
	case b == fmtMap16:
		p, err := d.readN(2)
		if err != nil {
			return 0, err
		}
		return int(binary.BigEndian.Uint16(p)) * 2, nil
	default:
		return 0, fmt.Errorf("%w: unknown or unsupported format byte 0x%02x", ErrDecode, b)
	}
}
