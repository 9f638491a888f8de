package cfgpack

import "fmt"

// Context binds one Schema to caller-owned storage: a value slot per
// entry position, a presence bitmap, a string pool, and a parallel
// string-offset table. A Context only ever borrows these buffers; it
// never allocates one itself, and teardown is a no-op left to the
// caller.
type Context struct {
	Schema     *Schema
	Values     []V
	Present    []byte
	StrPool    []byte
	StrOffsets []int
}

func presenceBytes(n int) int { return (n + 7) / 8 }

// Init binds schema to the four caller buffers. values and str_pool are
// expected to already hold whatever a schema parser wrote into them
// (typically the schema's defaults); Init computes str_offsets,
// clears the presence bitmap, and then marks present every entry whose
// HasDefault is true.
func Init(schema *Schema, values []V, present []byte, strPool []byte, strOffsets []int) (*Context, error) {
	n := len(schema.Entries)
	if len(values) < n {
		return nil, fmt.Errorf("%w: values buffer holds %d, need %d", ErrBounds, len(values), n)
	}
	if len(strOffsets) < n {
		return nil, fmt.Errorf("%w: str_offsets buffer holds %d, need %d", ErrBounds, len(strOffsets), n)
	}
	if needPresent := presenceBytes(n); len(present) < needPresent {
		return nil, fmt.Errorf("%w: presence buffer holds %d bytes, need %d", ErrBounds, len(present), needPresent)
	}
	sizing := schema.Sizing()
	if len(strPool) < sizing.StrPoolSize {
		return nil, fmt.Errorf("%w: str_pool buffer holds %d bytes, need %d", ErrBounds, len(strPool), sizing.StrPoolSize)
	}

	offsets := stringPoolOffsets(schema.Entries)
	copy(strOffsets, offsets)

	for i := range present {
		present[i] = 0
	}

	c := &Context{
		Schema:     schema,
		Values:     values,
		Present:    present,
		StrPool:    strPool,
		StrOffsets: strOffsets,
	}
	for i, e := range schema.Entries {
		if e.HasDefault {
			c.setPresent(i, true)
		}
	}
	return c, nil
}

func (c *Context) setPresent(pos int, v bool) {
	byteIdx, bit := pos/8, uint(pos%8)
	if v {
		c.Present[byteIdx] |= 1 << bit
	} else {
		c.Present[byteIdx] &^= 1 << bit
	}
}

func (c *Context) isPresent(pos int) bool {
	byteIdx, bit := pos/8, uint(pos%8)
	return c.Present[byteIdx]&(1<<bit) != 0
}

// Get returns the value stored at id if present.
func (c *Context) Get(id uint16) (V, error) {
	if id == 0 {
		return V{}, ErrReservedIndex
	}
	_, pos, ok := c.Schema.ByID(id)
	if !ok {
		return V{}, fmt.Errorf("%w: id %d not in schema", ErrMissing, id)
	}
	if !c.isPresent(pos) {
		return V{}, fmt.Errorf("%w: id %d has no value set", ErrMissing, id)
	}
	return c.Values[pos], nil
}

// GetByName is Get's by-name counterpart, resolved via linear scan.
func (c *Context) GetByName(name string) (V, error) {
	e, pos, ok := c.Schema.ByName(name)
	if !ok {
		return V{}, fmt.Errorf("%w: name %q not in schema", ErrMissing, name)
	}
	if e.ID == 0 {
		return V{}, ErrReservedIndex
	}
	if !c.isPresent(pos) {
		return V{}, fmt.Errorf("%w: name %q has no value set", ErrMissing, name)
	}
	return c.Values[pos], nil
}

// Set stores v at id, following the order of checks the runtime
// context design specifies: reserved index, missing entry, type
// mismatch (no coercion on an explicit set), string length, then
// store-and-mark-present.
func (c *Context) Set(id uint16, v V) error {
	if id == 0 {
		return ErrReservedIndex
	}
	e, pos, ok := c.Schema.ByID(id)
	if !ok {
		return fmt.Errorf("%w: id %d not in schema", ErrMissing, id)
	}
	return c.setAt(e, pos, v)
}

// SetByName is Set's by-name counterpart.
func (c *Context) SetByName(name string, v V) error {
	e, pos, ok := c.Schema.ByName(name)
	if !ok {
		return fmt.Errorf("%w: name %q not in schema", ErrMissing, name)
	}
	if e.ID == 0 {
		return ErrReservedIndex
	}
	return c.setAt(e, pos, v)
}

func (c *Context) setAt(e *Entry, pos int, v V) error {
	if v.Type != e.Type {
		return fmt.Errorf("%w: entry %q is %s, got %s", ErrTypeMismatch, e.Name, e.Type, v.Type)
	}
	if e.Type.IsString() {
		if len(v.Str) > e.Type.MaxStrLen() {
			return fmt.Errorf("%w: %d bytes exceeds %s max %d", ErrStrTooLong, len(v.Str), e.Type, e.Type.MaxStrLen())
		}
		off := c.StrOffsets[pos]
		n := copy(c.StrPool[off:off+e.Type.MaxStrLen()+1], v.Str)
		c.Values[pos] = V{Type: e.Type, Str: c.StrPool[off : off+n : off+n]}
	} else {
		c.Values[pos] = v
	}
	c.setPresent(pos, true)
	return nil
}

// Typed convenience wrappers. Each constructs the tagged value and
// delegates to Set/Get, asserting the expected tag on the way out.

func (c *Context) SetU8(id uint16, v uint8) error   { return c.Set(id, Uint8(v)) }
func (c *Context) SetU16(id uint16, v uint16) error { return c.Set(id, Uint16(v)) }
func (c *Context) SetU32(id uint16, v uint32) error { return c.Set(id, Uint32(v)) }
func (c *Context) SetU64(id uint16, v uint64) error { return c.Set(id, Uint64(v)) }
func (c *Context) SetI8(id uint16, v int8) error    { return c.Set(id, Int8(v)) }
func (c *Context) SetI16(id uint16, v int16) error  { return c.Set(id, Int16(v)) }
func (c *Context) SetI32(id uint16, v int32) error  { return c.Set(id, Int32(v)) }
func (c *Context) SetI64(id uint16, v int64) error  { return c.Set(id, Int64(v)) }
func (c *Context) SetF32(id uint16, v float32) error { return c.Set(id, Float32(v)) }
func (c *Context) SetF64(id uint16, v float64) error { return c.Set(id, Float64(v)) }
func (c *Context) SetStr(id uint16, v []byte) error  { return c.Set(id, Str64(v)) }
func (c *Context) SetFstr(id uint16, v []byte) error { return c.Set(id, Str16(v)) }

func (c *Context) GetU8(id uint16) (uint8, error) {
	v, err := c.expect(id, TU8)
	return uint8(v.Uint), err
}
func (c *Context) GetU16(id uint16) (uint16, error) {
	v, err := c.expect(id, TU16)
	return uint16(v.Uint), err
}
func (c *Context) GetU32(id uint16) (uint32, error) {
	v, err := c.expect(id, TU32)
	return uint32(v.Uint), err
}
func (c *Context) GetU64(id uint16) (uint64, error) {
	v, err := c.expect(id, TU64)
	return v.Uint, err
}
func (c *Context) GetI8(id uint16) (int8, error) {
	v, err := c.expect(id, TI8)
	return int8(v.Int), err
}
func (c *Context) GetI16(id uint16) (int16, error) {
	v, err := c.expect(id, TI16)
	return int16(v.Int), err
}
func (c *Context) GetI32(id uint16) (int32, error) {
	v, err := c.expect(id, TI32)
	return int32(v.Int), err
}
func (c *Context) GetI64(id uint16) (int64, error) {
	v, err := c.expect(id, TI64)
	return v.Int, err
}
func (c *Context) GetF32(id uint16) (float32, error) {
	v, err := c.expect(id, TF32)
	return v.F32, err
}
func (c *Context) GetF64(id uint16) (float64, error) {
	v, err := c.expect(id, TF64)
	return v.F64, err
}
func (c *Context) GetStr(id uint16) ([]byte, error) {
	v, err := c.expect(id, TStr)
	return v.Str, err
}
func (c *Context) GetFstr(id uint16) ([]byte, error) {
	v, err := c.expect(id, TFstr)
	return v.Str, err
}

func (c *Context) expect(id uint16, want T) (V, error) {
	v, err := c.Get(id)
	if err != nil {
		return V{}, err
	}
	if v.Type != want {
		return V{}, fmt.Errorf("%w: entry %d is %s, not %s", ErrTypeMismatch, id, v.Type, want)
	}
	return v, nil
}
