package cfgpack

import (
	"bytes"
	"errors"
	"math"
	"testing"
)

const sampleText = `# sample device config
net 1
1 ip fstr "10.0.0.1"
2 port u16 8080
3 tmo u32 NIL
4 label str "factory-default"
`

func parseSample(t *testing.T) (*Schema, []V, []byte) {
	t.Helper()
	sizing, err := MeasureText([]byte(sampleText), nil)
	if err != nil {
		t.Fatalf("MeasureText failed: %v", err)
	}
	values := make([]V, sizing.EntryCount)
	strPool := make([]byte, sizing.StrPoolSize)
	schema, err := ParseText([]byte(sampleText), values, strPool, nil)
	if err != nil {
		t.Fatalf("ParseText failed: %v", err)
	}
	return schema, values, strPool
}

func TestParseTextSample(t *testing.T) {
	schema, values, _ := parseSample(t)

	if schema.MapName != "net" || schema.Version != 1 {
		t.Fatalf("got %q/%d, want net/1", schema.MapName, schema.Version)
	}
	if len(schema.Entries) != 4 {
		t.Fatalf("got %d entries, want 4", len(schema.Entries))
	}

	ipEntry, pos, ok := schema.ByID(1)
	if !ok || ipEntry.Type != TFstr {
		t.Fatalf("entry 1: got %+v, ok=%v", ipEntry, ok)
	}
	if !bytes.Equal(values[pos].Str, []byte("10.0.0.1")) {
		t.Errorf("ip default = %q, want 10.0.0.1", values[pos].Str)
	}

	portEntry, pos, ok := schema.ByID(2)
	if !ok || portEntry.Type != TU16 || values[pos].Uint != 8080 {
		t.Fatalf("entry 2: got %+v, value %+v", portEntry, values[pos])
	}

	timeoutEntry, _, ok := schema.ByID(3)
	if !ok || timeoutEntry.HasDefault {
		t.Fatalf("entry 3 should have no default, got %+v", timeoutEntry)
	}
}

func TestParseTextMissingHeader(t *testing.T) {
	_, err := MeasureText([]byte("1 x u8 0\n"), nil)
	if !errors.Is(err, ErrParse) {
		t.Errorf("got %v, want ErrParse", err)
	}
}

func TestParseTextDuplicateID(t *testing.T) {
	text := "m 1\n1 a u8 0\n1 b u8 0\n"
	_, err := MeasureText([]byte(text), nil)
	if !errors.Is(err, ErrDuplicate) {
		t.Errorf("got %v, want ErrDuplicate", err)
	}
}

func TestParseTextReservedID(t *testing.T) {
	text := "m 1\n0 a u8 0\n"
	_, err := MeasureText([]byte(text), nil)
	if !errors.Is(err, ErrReservedIndex) {
		t.Errorf("got %v, want ErrReservedIndex", err)
	}
}

func TestParseTextOutOfRangeDefault(t *testing.T) {
	text := "m 1\n1 a u8 256\n"
	_, err := MeasureText([]byte(text), nil)
	if !errors.Is(err, ErrBounds) {
		t.Errorf("got %v, want ErrBounds", err)
	}
}

func TestParseTextI64OnePastMaxRejected(t *testing.T) {
	text := "m 1\n1 a i64 9223372036854775808\n"
	_, err := MeasureText([]byte(text), nil)
	if !errors.Is(err, ErrBounds) {
		t.Errorf("got %v, want ErrBounds", err)
	}
}

func TestParseTextI64MinBoundaryAccepted(t *testing.T) {
	text := "m 1\n1 a i64 -9223372036854775808\n"
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
	_, pos, ok := schema.ByID(1)
	if !ok || values[pos].Int != math.MinInt64 {
		t.Errorf("entry 1 default = %+v, want MinInt64", values[pos])
	}
}

func TestParseTextI64OnePastMinRejected(t *testing.T) {
	text := "m 1\n1 a i64 -9223372036854775809\n"
	_, err := MeasureText([]byte(text), nil)
	if !errors.Is(err, ErrBounds) {
		t.Errorf("got %v, want ErrBounds", err)
	}
}

func TestParseTextStringTooLong(t *testing.T) {
	long := bytes.Repeat([]byte{'a'}, FstrMax+1)
	text := "m 1\n1 a fstr \"" + string(long) + "\"\n"
	_, err := MeasureText([]byte(text), nil)
	if !errors.Is(err, ErrStrTooLong) {
		t.Errorf("got %v, want ErrStrTooLong", err)
	}
}

func TestParseTextUndersizedBuffersReturnErrBounds(t *testing.T) {
	sizing, err := MeasureText([]byte(sampleText), nil)
	if err != nil {
		t.Fatal(err)
	}
	values := make([]V, sizing.EntryCount-1)
	strPool := make([]byte, sizing.StrPoolSize)
	if _, err := ParseText([]byte(sampleText), values, strPool, nil); !errors.Is(err, ErrBounds) {
		t.Errorf("got %v, want ErrBounds for undersized values buffer", err)
	}
}

func TestParseTextInvalidType(t *testing.T) {
	text := "m 1\n1 a weird 0\n"
	_, err := MeasureText([]byte(text), nil)
	if !errors.Is(err, ErrInvalidType) {
		t.Errorf("got %v, want ErrInvalidType", err)
	}
}

func TestParseTextHexID(t *testing.T) {
	text := "m 1\n0x10 a u8 0\n"
	sizing, err := MeasureText([]byte(text), nil)
	if err != nil {
		t.Fatal(err)
	}
	values := make([]V, sizing.EntryCount)
	strPool := make([]byte, sizing.StrPoolSize)
	schema, err := ParseText([]byte(text), values, strPool, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, ok := schema.ByID(0x10); !ok {
		t.Error("expected entry at id 0x10")
	}
}
