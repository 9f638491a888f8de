package cfgpack

import (
	"bytes"
	"errors"
	"testing"
)

func newTestContext(t *testing.T) *Context {
	t.Helper()
	schema, values, strPool := parseSample(t)
	present := make([]byte, (len(schema.Entries)+7)/8)
	offsets := make([]int, len(schema.Entries))
	ctx, err := Init(schema, values, present, strPool, offsets)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	return ctx
}

func TestInitMarksDefaultsPresent(t *testing.T) {
	ctx := newTestContext(t)
	if _, err := ctx.GetFstr(1); err != nil {
		t.Errorf("entry 1 should be present from default: %v", err)
	}
	if _, err := ctx.GetU16(2); err != nil {
		t.Errorf("entry 2 should be present from default: %v", err)
	}
	if _, err := ctx.GetU32(3); !errors.Is(err, ErrMissing) {
		t.Errorf("entry 3 has no default, got %v, want ErrMissing", err)
	}
}

func TestSetGetRoundTrip(t *testing.T) {
	ctx := newTestContext(t)
	if err := ctx.SetU32(3, 42); err != nil {
		t.Fatalf("SetU32 failed: %v", err)
	}
	got, err := ctx.GetU32(3)
	if err != nil {
		t.Fatalf("GetU32 failed: %v", err)
	}
	if got != 42 {
		t.Errorf("got %d, want 42", got)
	}
}

func TestSetByNameRoundTrip(t *testing.T) {
	ctx := newTestContext(t)
	if err := ctx.SetByName("port", Uint16(9090)); err != nil {
		t.Fatalf("SetByName failed: %v", err)
	}
	v, err := ctx.GetByName("port")
	if err != nil {
		t.Fatalf("GetByName failed: %v", err)
	}
	if v.Uint != 9090 {
		t.Errorf("got %d, want 9090", v.Uint)
	}
}

func TestSetTypeMismatch(t *testing.T) {
	ctx := newTestContext(t)
	if err := ctx.Set(2, Uint32(1)); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("got %v, want ErrTypeMismatch", err)
	}
}

func TestSetStringTooLong(t *testing.T) {
	ctx := newTestContext(t)
	long := bytes.Repeat([]byte{'a'}, StrMax+1)
	if err := ctx.SetStr(4, long); !errors.Is(err, ErrStrTooLong) {
		t.Errorf("got %v, want ErrStrTooLong", err)
	}
}

func TestSetStringCopiesIntoPool(t *testing.T) {
	ctx := newTestContext(t)
	src := []byte("updated")
	if err := ctx.SetStr(4, src); err != nil {
		t.Fatalf("SetStr failed: %v", err)
	}
	src[0] = 'X'
	got, err := ctx.GetStr(4)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "updated" {
		t.Errorf("got %q, want \"updated\" (mutating caller's slice should not affect the pool)", got)
	}
}

func TestGetReservedIndex(t *testing.T) {
	ctx := newTestContext(t)
	if _, err := ctx.Get(0); !errors.Is(err, ErrReservedIndex) {
		t.Errorf("got %v, want ErrReservedIndex", err)
	}
}

func TestGetMissingID(t *testing.T) {
	ctx := newTestContext(t)
	if _, err := ctx.Get(999); !errors.Is(err, ErrMissing) {
		t.Errorf("got %v, want ErrMissing", err)
	}
}
