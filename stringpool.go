package cfgpack

// stringPoolOffsets computes the deterministic byte offset into the
// string pool reserved for each entry position, in schema (sorted)
// order: str entries reserve StrMax+1 bytes, fstr entries reserve
// FstrMax+1 bytes, non-string entries get -1. This is a pure function
// of the entry table so both a schema parser (which must know where to
// write default string payloads) and Context.Init (which populates the
// caller's str_offsets buffer) compute identical layouts independently.
func stringPoolOffsets(entries []Entry) []int {
	offsets := make([]int, len(entries))
	next := 0
	for i, e := range entries {
		switch e.Type {
		case TStr:
			offsets[i] = next
			next += StrMax + 1
		case TFstr:
			offsets[i] = next
			next += FstrMax + 1
		default:
			offsets[i] = -1
		}
	}
	return offsets
}

// stringPoolSize returns the total byte size reserved by
// stringPoolOffsets for entries.
func stringPoolSize(entries []Entry) int {
	size := 0
	for _, e := range entries {
		switch e.Type {
		case TStr:
			size += StrMax + 1
		case TFstr:
			size += FstrMax + 1
		}
	}
	return size
}

// writeDefaults copies each entry's parsed default into values/strPool
// at its deterministic position, using offsets already computed by
// stringPoolOffsets. It does not touch the presence bitmap — that is
// Context.Init's job once a context is bound to this schema.
func writeDefaults(entries []Entry, offsets []int, values []V, strPool []byte) error {
	for i, e := range entries {
		if !e.HasDefault {
			continue
		}
		if e.Type.IsString() {
			off := offsets[i]
			n := len(e.DefaultStr)
			if n > e.Type.MaxStrLen() {
				return ErrStrTooLong
			}
			copy(strPool[off:off+n], e.DefaultStr)
			values[i] = V{Type: e.Type, Str: strPool[off : off+n : off+n]}
		} else {
			values[i] = e.Default
		}
	}
	return nil
}
