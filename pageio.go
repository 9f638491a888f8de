package cfgpack

import "fmt"

// Remap is a single old-id to new-id pair applied during Pagein to
// realize a MOVE migration.
type Remap struct {
	OldID uint16
	NewID uint16
}

// RemapTable resolves an old id to its new id, or returns the old id
// with remapped=false when it is not remapped (the KEEP case: target =
// old id).
type RemapTable []Remap

func (r RemapTable) resolve(oldID uint16) (newID uint16, remapped bool) {
	for _, p := range r {
		if p.OldID == oldID {
			return p.NewID, true
		}
	}
	return oldID, false
}

// Pageout encodes c's present values into a canonical MessagePack map
// written into buf: a header of P+1 entries, reserved key 0 mapping to
// the schema's map_name, then one key/value pair per present entry in
// ascending id order. It returns the number of bytes written.
func Pageout(c *Context, buf []byte) (int, error) {
	present := 0
	for i := range c.Schema.Entries {
		if c.isPresent(i) {
			present++
		}
	}

	e := NewEncoder(buf)
	if err := e.EncodeMapHeader(present + 1); err != nil {
		return 0, err
	}
	if err := e.EncodeUint(0); err != nil {
		return 0, err
	}
	if err := e.EncodeStr([]byte(c.Schema.MapName)); err != nil {
		return 0, err
	}

	// c.Schema.Entries is already sorted ascending by id, so a single
	// forward pass emits keys in canonical order.
	for i, entry := range c.Schema.Entries {
		if !c.isPresent(i) {
			continue
		}
		if err := e.EncodeUint(uint64(entry.ID)); err != nil {
			return 0, err
		}
		if err := e.EncodeValue(c.Values[i]); err != nil {
			return 0, err
		}
	}
	return e.Len(), nil
}

// PeekName decodes only as much of blob as needed to recover the
// schema name stored at reserved key 0, skipping every other key's
// value with the generic skipper. Used by upgraders deciding which
// migration table to apply before they have committed to a schema.
func PeekName(blob []byte) (string, error) {
	d := NewDecoder(blob)
	count, err := d.DecodeMapHeader()
	if err != nil {
		return "", err
	}
	for i := 0; i < count; i++ {
		key, err := d.DecodeUnsignedKey()
		if err != nil {
			return "", err
		}
		if key == 0 {
			v, err := d.DecodeValue()
			if err != nil {
				return "", err
			}
			if !v.Type.IsString() {
				return "", fmt.Errorf("%w: reserved key 0 is not a string", ErrDecode)
			}
			return string(v.Str), nil
		}
		if err := d.Skip(DefaultSkipMaxDepth); err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("%w: blob has no reserved key 0", ErrDecode)
}

// Pagein decodes blob into c, which must already be bound (via Init)
// to the new schema. remap resolves MOVE migrations; pass nil for no
// remapping. It implements the full migration algebra: KEEP, WIDEN,
// MOVE, REMOVE (silent drop of ids absent from the new schema), and
// ADD (defaults promoted to present for entries the blob never
// mentions). On any error the context is left in an unspecified state
// per the page-I/O design note; the caller must re-Init before reuse.
func Pagein(c *Context, blob []byte, remap RemapTable) error {
	d := NewDecoder(blob)
	count, err := d.DecodeMapHeader()
	if err != nil {
		return err
	}

	for i := range c.Present {
		c.Present[i] = 0
	}

	for i := 0; i < count; i++ {
		k, err := d.DecodeUnsignedKey()
		if err != nil {
			return err
		}
		if k > MaxID {
			if err := d.Skip(DefaultSkipMaxDepth); err != nil {
				return err
			}
			continue
		}
		oldID := uint16(k)
		if oldID == 0 {
			if err := d.Skip(DefaultSkipMaxDepth); err != nil {
				return err
			}
			continue
		}

		target, _ := remap.resolve(oldID)
		entry, pos, ok := c.Schema.ByID(target)
		if !ok {
			if err := d.Skip(DefaultSkipMaxDepth); err != nil {
				return err
			}
			continue
		}

		formatByte, err := d.PeekFormatByte()
		if err != nil {
			return err
		}
		_ = formatByte

		v, err := d.DecodeValue()
		if err != nil {
			return err
		}
		if !Coercible(v.Type, entry.Type) {
			return fmt.Errorf("%w: id %d wire type %s not coercible to %s", ErrTypeMismatch, target, v.Type, entry.Type)
		}
		coerced, err := coerceValue(v, entry.Type)
		if err != nil {
			return err
		}
		if entry.Type.IsString() {
			if len(coerced.Str) > entry.Type.MaxStrLen() {
				return fmt.Errorf("%w: id %d: %d bytes exceeds %s max %d", ErrStrTooLong, target, len(coerced.Str), entry.Type, entry.Type.MaxStrLen())
			}
			off := c.StrOffsets[pos]
			n := copy(c.StrPool[off:off+entry.Type.MaxStrLen()+1], coerced.Str)
			c.Values[pos] = V{Type: entry.Type, Str: c.StrPool[off : off+n : off+n]}
		} else {
			c.Values[pos] = coerced
		}
		c.setPresent(pos, true)
	}

	for i, e := range c.Schema.Entries {
		if !c.isPresent(i) && e.HasDefault {
			c.setPresent(i, true)
		}
	}
	return nil
}

// coerceValue converts a decoded wire value of one wire kind into the
// representation a schema slot of type to expects, per the widening
// rules the coercion table allows. Coercible must already have
// confirmed (v.Type, to) is permitted before calling this.
func coerceValue(v V, to T) (V, error) {
	switch {
	case to.IsUnsigned():
		// Only u* -> u* transitions are coercible into an unsigned
		// target (see the coercion table), so v.Uint already holds the
		// right magnitude; only the tag changes.
		return V{Type: to, Uint: v.Uint}, nil
	case to.IsSigned():
		if v.Type.IsUnsigned() {
			if v.Uint > uint64(maxInt64ForWidth(to)) {
				return V{}, fmt.Errorf("%w: unsigned value %d does not fit signed target %s", ErrDecode, v.Uint, to)
			}
			return V{Type: to, Int: int64(v.Uint)}, nil
		}
		return V{Type: to, Int: v.Int}, nil
	case to == TF32:
		return V{Type: TF32, F32: v.F32}, nil
	case to == TF64:
		if v.Type == TF32 {
			return V{Type: TF64, F64: float64(v.F32)}, nil
		}
		return V{Type: TF64, F64: v.F64}, nil
	case to.IsString():
		return V{Type: to, Str: v.Str}, nil
	default:
		return V{}, fmt.Errorf("%w: unhandled coercion target %s", ErrTypeMismatch, to)
	}
}

func maxInt64ForWidth(t T) int64 {
	switch t {
	case TI8:
		return 127
	case TI16:
		return 32767
	case TI32:
		return 2147483647
	default:
		return 9223372036854775807
	}
}
