package cfgpack

// coercible[from][to] reports whether a wire value classified as type
// from may be loaded into a schema slot declared as type to. Indices
// follow the T iota order (u8..fstr), matching the matrix in the
// migration spec exactly.
var coercible = [typeCount][typeCount]bool{
	TU8:   {TU8: true, TU16: true, TU32: true, TU64: true, TI8: true, TI16: true, TI32: true, TI64: true},
	TU16:  {TU16: true, TU32: true, TU64: true, TI16: true, TI32: true, TI64: true},
	TU32:  {TU32: true, TU64: true, TI32: true, TI64: true},
	TU64:  {TU64: true, TI64: true},
	TI8:   {TI8: true, TI16: true, TI32: true, TI64: true},
	TI16:  {TI16: true, TI32: true, TI64: true},
	TI32:  {TI32: true, TI64: true},
	TI64:  {TI64: true},
	TF32:  {TF32: true, TF64: true},
	TF64:  {TF64: true},
	TStr:  {TStr: true},
	TFstr: {TFstr: true, TStr: true},
}

// Coercible reports whether a wire value of type from may be loaded
// into a schema entry of type to, per the migration coercion table.
func Coercible(from, to T) bool {
	if int(from) >= typeCount || int(to) >= typeCount {
		return false
	}
	return coercible[from][to]
}
