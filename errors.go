package cfgpack

import "errors"

// Sentinel errors. Every public operation returns one of these (wrapped
// with additional context via fmt.Errorf's %w where useful), never a
// bespoke error type, so callers compare with errors.Is.
var (
	// ErrParse covers malformed schema text or malformed JSON schema:
	// missing header, truncated entry, bad default literal, non-numeric
	// version, and similar structural problems.
	ErrParse = errors.New("cfgpack: parse error")

	// ErrInvalidType is returned when a schema declares an unknown type tag.
	ErrInvalidType = errors.New("cfgpack: invalid type tag")

	// ErrDuplicate is returned when two entries share an id or a name.
	ErrDuplicate = errors.New("cfgpack: duplicate entry")

	// ErrBounds covers undersized caller buffers, out-of-range integer
	// literals, out-of-range ids, oversized names and map names, and
	// entry counts beyond the implementation cap.
	ErrBounds = errors.New("cfgpack: out of bounds")

	// ErrMissing is returned when a lookup targets an id/name absent from
	// the schema, or an entry with no value currently set.
	ErrMissing = errors.New("cfgpack: missing")

	// ErrTypeMismatch is returned when an explicit set supplies a value of
	// the wrong type, or a pagein wire type is not coercible to the
	// target schema type.
	ErrTypeMismatch = errors.New("cfgpack: type mismatch")

	// ErrStrTooLong is returned when a string value exceeds its type's
	// maximum length.
	ErrStrTooLong = errors.New("cfgpack: string too long")

	// ErrEncode is returned when an output buffer is too small for
	// pageout or schema serialization.
	ErrEncode = errors.New("cfgpack: encode error")

	// ErrDecode covers truncated or malformed msgpack, skipper depth
	// overflow, and coerced unsigned values that do not fit their
	// signed target.
	ErrDecode = errors.New("cfgpack: decode error")

	// ErrReservedIndex is returned for an attempt to set/get id 0, or a
	// schema that declares an entry at id 0.
	ErrReservedIndex = errors.New("cfgpack: reserved index 0")

	// ErrIO covers file-level failures in external collaborators
	// (blobstore, the packer CLI); the core itself never returns it.
	ErrIO = errors.New("cfgpack: io error")
)
