package cfgpack

import "testing"

func TestCoercibleMatrix(t *testing.T) {
	allowed := map[T]map[T]bool{
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

	allTypes := []T{TU8, TU16, TU32, TU64, TI8, TI16, TI32, TI64, TF32, TF64, TStr, TFstr}
	for _, from := range allTypes {
		for _, to := range allTypes {
			want := allowed[from][to]
			if got := Coercible(from, to); got != want {
				t.Errorf("Coercible(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestCoercibleOutOfRange(t *testing.T) {
	if Coercible(T(99), TU8) {
		t.Error("Coercible with out-of-range from should be false")
	}
	if Coercible(TU8, T(99)) {
		t.Error("Coercible with out-of-range to should be false")
	}
}
