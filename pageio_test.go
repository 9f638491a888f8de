package cfgpack

import (
	"bytes"
	"errors"
	"testing"
)

func TestPageoutPageinRoundTrip(t *testing.T) {
	ctx := newTestContext(t)
	if err := ctx.SetU32(3, 7); err != nil {
		t.Fatal(err)
	}

	buf := make([]byte, 512)
	n, err := Pageout(ctx, buf)
	if err != nil {
		t.Fatalf("Pageout failed: %v", err)
	}
	blob := buf[:n]

	name, err := PeekName(blob)
	if err != nil {
		t.Fatalf("PeekName failed: %v", err)
	}
	if name != "net" {
		t.Errorf("got %q, want net", name)
	}

	ctx2 := newTestContext(t)
	if err := Pagein(ctx2, blob, nil); err != nil {
		t.Fatalf("Pagein failed: %v", err)
	}
	got, err := ctx2.GetU32(3)
	if err != nil {
		t.Fatalf("GetU32 after Pagein failed: %v", err)
	}
	if got != 7 {
		t.Errorf("got %d, want 7", got)
	}
	ip, err := ctx2.GetFstr(1)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(ip, []byte("10.0.0.1")) {
		t.Errorf("got %q, want 10.0.0.1", ip)
	}
}

// buildSchemaAndContext is a small helper constructing a one-off schema
// from a text body for migration scenarios that need a schema shape
// parseSample's fixed sample doesn't cover.
func buildSchemaAndContext(t *testing.T, text string) *Context {
	t.Helper()
	sizing, err := MeasureText([]byte(text), nil)
	if err != nil {
		t.Fatalf("MeasureText failed: %v", err)
	}
	values := make([]V, sizing.EntryCount)
	strPool := make([]byte, sizing.StrPoolSize)
	schema, err := ParseText([]byte(text), values, strPool, nil)
	if err != nil {
		t.Fatalf("ParseText failed: %v", err)
	}
	present := make([]byte, (len(schema.Entries)+7)/8)
	offsets := make([]int, len(schema.Entries))
	ctx, err := Init(schema, values, present, strPool, offsets)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	return ctx
}

func TestPageinWidensAcrossSchemaVersions(t *testing.T) {
	oldCtx := buildSchemaAndContext(t, "net 1\n1 cnt u8 NIL\n")
	if err := oldCtx.SetU8(1, 200); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 128)
	n, err := Pageout(oldCtx, buf)
	if err != nil {
		t.Fatal(err)
	}

	newCtx := buildSchemaAndContext(t, "net 2\n1 cnt u32 NIL\n")
	if err := Pagein(newCtx, buf[:n], nil); err != nil {
		t.Fatalf("Pagein widen failed: %v", err)
	}
	got, err := newCtx.GetU32(1)
	if err != nil {
		t.Fatal(err)
	}
	if got != 200 {
		t.Errorf("got %d, want 200", got)
	}
}

func TestPageinRemovesEntryAbsentFromNewSchema(t *testing.T) {
	oldCtx := buildSchemaAndContext(t, "net 1\n1 cnt u8 NIL\n2 old u8 NIL\n")
	if err := oldCtx.SetU8(1, 5); err != nil {
		t.Fatal(err)
	}
	if err := oldCtx.SetU8(2, 9); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 128)
	n, err := Pageout(oldCtx, buf)
	if err != nil {
		t.Fatal(err)
	}

	newCtx := buildSchemaAndContext(t, "net 2\n1 cnt u8 NIL\n")
	if err := Pagein(newCtx, buf[:n], nil); err != nil {
		t.Fatalf("Pagein failed: %v", err)
	}
	if _, err := newCtx.GetU8(1); err != nil {
		t.Fatal(err)
	}
}

func TestPageinAddsDefaultForNewEntry(t *testing.T) {
	oldCtx := buildSchemaAndContext(t, "net 1\n1 cnt u8 NIL\n")
	if err := oldCtx.SetU8(1, 5); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 128)
	n, err := Pageout(oldCtx, buf)
	if err != nil {
		t.Fatal(err)
	}

	newCtx := buildSchemaAndContext(t, "net 2\n1 cnt u8 NIL\n2 extra u16 99\n")
	if err := Pagein(newCtx, buf[:n], nil); err != nil {
		t.Fatalf("Pagein failed: %v", err)
	}
	got, err := newCtx.GetU16(2)
	if err != nil {
		t.Fatalf("entry 2 should be present via default promotion: %v", err)
	}
	if got != 99 {
		t.Errorf("got %d, want 99", got)
	}
}

func TestPageinMovesViaRemapTable(t *testing.T) {
	oldCtx := buildSchemaAndContext(t, "net 1\n5 cnt u8 NIL\n")
	if err := oldCtx.SetU8(5, 11); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 128)
	n, err := Pageout(oldCtx, buf)
	if err != nil {
		t.Fatal(err)
	}

	newCtx := buildSchemaAndContext(t, "net 2\n6 cnt u8 NIL\n")
	remap := RemapTable{{OldID: 5, NewID: 6}}
	if err := Pagein(newCtx, buf[:n], remap); err != nil {
		t.Fatalf("Pagein with remap failed: %v", err)
	}
	got, err := newCtx.GetU8(6)
	if err != nil {
		t.Fatal(err)
	}
	if got != 11 {
		t.Errorf("got %d, want 11", got)
	}
}

func TestPageinRejectsNonCoercibleType(t *testing.T) {
	oldCtx := buildSchemaAndContext(t, "net 1\n1 cnt u8 NIL\n")
	if err := oldCtx.SetU8(1, 5); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 128)
	n, err := Pageout(oldCtx, buf)
	if err != nil {
		t.Fatal(err)
	}

	newCtx := buildSchemaAndContext(t, "net 2\n1 cnt str NIL\n")
	if err := Pagein(newCtx, buf[:n], nil); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("got %v, want ErrTypeMismatch", err)
	}
}

func TestPeekNameMissingKeyZero(t *testing.T) {
	buf := make([]byte, 16)
	e := NewEncoder(buf)
	if err := e.EncodeMapHeader(1); err != nil {
		t.Fatal(err)
	}
	if err := e.EncodeUint(1); err != nil {
		t.Fatal(err)
	}
	if err := e.EncodeUint(2); err != nil {
		t.Fatal(err)
	}
	if _, err := PeekName(e.Bytes()); !errors.Is(err, ErrDecode) {
		t.Errorf("got %v, want ErrDecode", err)
	}
}
