package cfgpack

import (
	"fmt"
	"math"
)

// Binary schema wire layout. This is cfgpack's own concrete choice for
// the "MessagePack map with a fixed, agreed layout" the spec calls for
// but does not itself pin down; it reuses exactly the primitive set
// C1 implements (no array format, booleans encoded as a uint8 0/1) so
// the same wire codec serves both config blobs and schema documents.
//
//	{0: map_name(str), 1: version(uint), 2: entries(map[id]entryMap)}
//	entryMap = {0: name(str), 1: type(str), 2: has_default(uint8), 3: default(typed, present iff has_default=1)}
const (
	binSchemaKeyName    = 0
	binSchemaKeyVersion = 1
	binSchemaKeyEntries = 2

	binEntryKeyName       = 0
	binEntryKeyType       = 1
	binEntryKeyHasDefault = 2
	binEntryKeyDefault    = 3
)

// BinaryOptions configures the binary schema front end.
type BinaryOptions struct {
	MaxEntries int
}

func (o *BinaryOptions) maxEntries() int {
	if o == nil || o.MaxEntries == 0 {
		return DefaultMaxEntries
	}
	return o.MaxEntries
}

// MeasureBinary walks a binary schema document without writing any
// output buffer and returns the exact sizes ParseBinary will need.
func MeasureBinary(doc []byte, opts *BinaryOptions) (Sizing, error) {
	_, _, entries, err := parseBinarySchema(doc, opts.maxEntries())
	if err != nil {
		return Sizing{}, err
	}
	sortEntries(entries)
	if err := validateEntries(entries, opts.maxEntries()); err != nil {
		return Sizing{}, err
	}
	var sz Sizing
	for _, e := range entries {
		sz.add(e.Type)
	}
	return sz, nil
}

// ParseBinary parses a binary schema document, writing default values
// into values and str_pool, and returns the finished Schema.
func ParseBinary(doc []byte, values []V, strPool []byte, opts *BinaryOptions) (*Schema, error) {
	mapName, version, entries, err := parseBinarySchema(doc, opts.maxEntries())
	if err != nil {
		return nil, err
	}
	schema, err := newSchema(mapName, version, entries, opts.maxEntries())
	if err != nil {
		return nil, err
	}
	offsets := stringPoolOffsets(schema.Entries)
	if len(values) < len(schema.Entries) {
		return nil, fmt.Errorf("%w: values buffer holds %d, need %d", ErrBounds, len(values), len(schema.Entries))
	}
	if need := stringPoolSize(schema.Entries); len(strPool) < need {
		return nil, fmt.Errorf("%w: str_pool buffer holds %d bytes, need %d", ErrBounds, len(strPool), need)
	}
	if err := writeDefaults(schema.Entries, offsets, values, strPool); err != nil {
		return nil, err
	}
	return schema, nil
}

// EncodeBinarySchema renders s into the wire layout parseBinarySchema
// expects, for the build-time packer's schema-to-binary compile step.
// buf must be large enough to hold the result.
func EncodeBinarySchema(s *Schema, buf []byte) (int, error) {
	e := NewEncoder(buf)
	if err := e.EncodeMapHeader(3); err != nil {
		return 0, err
	}
	if err := e.EncodeUint(binSchemaKeyName); err != nil {
		return 0, err
	}
	if err := e.EncodeStr([]byte(s.MapName)); err != nil {
		return 0, err
	}
	if err := e.EncodeUint(binSchemaKeyVersion); err != nil {
		return 0, err
	}
	if err := e.EncodeUint(uint64(s.Version)); err != nil {
		return 0, err
	}
	if err := e.EncodeUint(binSchemaKeyEntries); err != nil {
		return 0, err
	}
	if err := e.EncodeMapHeader(len(s.Entries)); err != nil {
		return 0, err
	}
	for _, entry := range s.Entries {
		if err := encodeBinaryEntry(e, entry); err != nil {
			return 0, err
		}
	}
	return e.Len(), nil
}

func encodeBinaryEntry(e *Encoder, entry Entry) error {
	if err := e.EncodeUint(uint64(entry.ID)); err != nil {
		return err
	}
	fieldCount := 2
	if entry.HasDefault {
		fieldCount = 4
	}
	if err := e.EncodeMapHeader(fieldCount); err != nil {
		return err
	}
	if err := e.EncodeUint(binEntryKeyName); err != nil {
		return err
	}
	if err := e.EncodeStr([]byte(entry.Name)); err != nil {
		return err
	}
	if err := e.EncodeUint(binEntryKeyType); err != nil {
		return err
	}
	if err := e.EncodeStr([]byte(entry.Type.String())); err != nil {
		return err
	}
	if !entry.HasDefault {
		return nil
	}
	if err := e.EncodeUint(binEntryKeyHasDefault); err != nil {
		return err
	}
	if err := e.EncodeUint(1); err != nil {
		return err
	}
	if err := e.EncodeUint(binEntryKeyDefault); err != nil {
		return err
	}
	if entry.Type.IsString() {
		return e.EncodeStr(entry.DefaultStr)
	}
	return e.EncodeValue(entry.Default)
}

func parseBinarySchema(doc []byte, maxEntries int) (mapName string, version uint32, entries []Entry, err error) {
	d := NewDecoder(doc)
	topCount, err := d.DecodeMapHeader()
	if err != nil {
		return "", 0, nil, err
	}

	haveName, haveVersion := false, false
	for i := 0; i < topCount; i++ {
		key, err := d.DecodeUnsignedKey()
		if err != nil {
			return "", 0, nil, err
		}
		switch key {
		case binSchemaKeyName:
			v, err := d.DecodeValue()
			if err != nil {
				return "", 0, nil, err
			}
			if !v.Type.IsString() {
				return "", 0, nil, fmt.Errorf("%w: map_name must be a string", ErrParse)
			}
			mapName = string(v.Str)
			haveName = true
		case binSchemaKeyVersion:
			v, err := d.DecodeValue()
			if err != nil {
				return "", 0, nil, err
			}
			version = uint32(v.Uint)
			haveVersion = true
		case binSchemaKeyEntries:
			entries, err = parseBinaryEntries(d, maxEntries)
			if err != nil {
				return "", 0, nil, err
			}
		default:
			if err := d.Skip(DefaultSkipMaxDepth); err != nil {
				return "", 0, nil, err
			}
		}
	}
	if !haveName || !haveVersion {
		return "", 0, nil, fmt.Errorf("%w: binary schema missing name or version", ErrParse)
	}
	if len(mapName) < 1 || len(mapName) > MapNameMax {
		return "", 0, nil, fmt.Errorf("%w: map_name length %d outside [1,%d]", ErrBounds, len(mapName), MapNameMax)
	}
	return mapName, version, entries, nil
}

func parseBinaryEntries(d *Decoder, maxEntries int) ([]Entry, error) {
	count, err := d.DecodeMapHeader()
	if err != nil {
		return nil, err
	}
	if count > maxEntries {
		return nil, fmt.Errorf("%w: %d entries exceeds cap of %d", ErrBounds, count, maxEntries)
	}
	entries := make([]Entry, 0, count)
	for i := 0; i < count; i++ {
		idKey, err := d.DecodeUnsignedKey()
		if err != nil {
			return nil, err
		}
		if idKey == 0 {
			return nil, fmt.Errorf("%w: entry id 0 is reserved", ErrReservedIndex)
		}
		if idKey > MaxID {
			return nil, fmt.Errorf("%w: id %d exceeds max %d", ErrBounds, idKey, MaxID)
		}
		e, err := parseBinaryEntry(d, uint16(idKey))
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func parseBinaryEntry(d *Decoder, id uint16) (Entry, error) {
	fieldCount, err := d.DecodeMapHeader()
	if err != nil {
		return Entry{}, err
	}
	e := Entry{ID: id}
	haveName, haveType, haveHasDefault := false, false, false

	for i := 0; i < fieldCount; i++ {
		key, err := d.DecodeUnsignedKey()
		if err != nil {
			return Entry{}, err
		}
		switch key {
		case binEntryKeyName:
			v, err := d.DecodeValue()
			if err != nil {
				return Entry{}, err
			}
			if !v.Type.IsString() {
				return Entry{}, fmt.Errorf("%w: entry name must be a string", ErrParse)
			}
			if len(v.Str) < 1 || len(v.Str) > NameMax {
				return Entry{}, fmt.Errorf("%w: name length %d outside [1,%d]", ErrBounds, len(v.Str), NameMax)
			}
			e.Name = string(v.Str)
			haveName = true
		case binEntryKeyType:
			v, err := d.DecodeValue()
			if err != nil {
				return Entry{}, err
			}
			if !v.Type.IsString() {
				return Entry{}, fmt.Errorf("%w: entry type must be a string", ErrParse)
			}
			t, ok := ParseT(string(v.Str))
			if !ok {
				return Entry{}, fmt.Errorf("%w: unknown type %q", ErrInvalidType, string(v.Str))
			}
			e.Type = t
			haveType = true
		case binEntryKeyHasDefault:
			v, err := d.DecodeValue()
			if err != nil {
				return Entry{}, err
			}
			e.HasDefault = v.Uint != 0
			haveHasDefault = true
		case binEntryKeyDefault:
			v, err := d.DecodeValue()
			if err != nil {
				return Entry{}, err
			}
			if v.Type.IsString() {
				e.DefaultStr = append([]byte(nil), v.Str...)
			} else {
				e.Default = v
			}
		default:
			if err := d.Skip(DefaultSkipMaxDepth); err != nil {
				return Entry{}, err
			}
		}
	}
	if !haveName || !haveType {
		return Entry{}, fmt.Errorf("%w: entry %d missing name or type", ErrParse, id)
	}
	if !haveHasDefault {
		e.HasDefault = false
	}
	if e.HasDefault && e.Type.IsString() {
		if len(e.DefaultStr) > e.Type.MaxStrLen() {
			return Entry{}, fmt.Errorf("%w: default %d bytes exceeds %s max %d", ErrStrTooLong, len(e.DefaultStr), e.Type, e.Type.MaxStrLen())
		}
	}
	if e.HasDefault && !e.Type.IsString() {
		// EncodeValue always picks the shortest MessagePack form for the
		// magnitude it's given, so a signed non-negative default (e.g.
		// an i32 default of 5) round-trips through the codec tagged
		// TU8/Uint rather than TI32/Int. Normalize on the declared
		// type's signedness before range-checking, the same way
		// coerceValue does for a Pagein value of differing width.
		switch {
		case e.Type.IsUnsigned():
			if !e.Default.Type.IsUnsigned() {
				return Entry{}, fmt.Errorf("%w: default must be non-negative for %s", ErrBounds, e.Type)
			}
			if !fitsUnsigned(e.Default.Uint, e.Type) {
				return Entry{}, fmt.Errorf("%w: default %d out of range for %s", ErrBounds, e.Default.Uint, e.Type)
			}
		case e.Type.IsSigned():
			iv := e.Default.Int
			if e.Default.Type.IsUnsigned() {
				if e.Default.Uint > uint64(math.MaxInt64) {
					return Entry{}, fmt.Errorf("%w: default %d out of range for %s", ErrBounds, e.Default.Uint, e.Type)
				}
				iv = int64(e.Default.Uint)
			}
			if !fitsSigned(iv, e.Type) {
				return Entry{}, fmt.Errorf("%w: default %d out of range for %s", ErrBounds, iv, e.Type)
			}
			e.Default.Int = iv
		}
		// Re-tag the decoded default with the entry's declared type so a
		// binary document written with a differently-widthed literal
		// (e.g. a u16 default small enough to be stored as a positive
		// fixint, which decodes generically as TU8) still lines up with
		// e.Type.
		e.Default.Type = e.Type
	}
	return e, nil
}
