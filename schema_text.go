package cfgpack

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// TextOptions configures the text schema front end. MaxEntries
// defaults to DefaultMaxEntries when zero.
type TextOptions struct {
	MaxEntries int
}

func (o *TextOptions) maxEntries() int {
	if o == nil || o.MaxEntries == 0 {
		return DefaultMaxEntries
	}
	return o.MaxEntries
}

// MeasureText walks a text schema without writing any output buffer
// and returns the exact sizes ParseText will need.
func MeasureText(text []byte, opts *TextOptions) (Sizing, error) {
	_, _, entries, err := parseTextLines(text, opts.maxEntries())
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

// ParseText parses a text schema, writing default values into values
// and str_pool, and returns the finished Schema. Buffers must already
// be sized per a prior MeasureText call.
func ParseText(text []byte, values []V, strPool []byte, opts *TextOptions) (*Schema, error) {
	mapName, version, entries, err := parseTextLines(text, opts.maxEntries())
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

// parseTextLines implements the line-oriented grammar shared by
// MeasureText and ParseText: comments and blank lines are skipped, the
// first remaining line is the header, every remaining line declares
// one entry. It performs full validation of every token it reads;
// duplicate-id/name and sort-order checks happen afterward in
// validateEntries/newSchema, since they require the whole table.
func parseTextLines(text []byte, maxEntries int) (mapName string, version uint32, entries []Entry, err error) {
	lines := strings.Split(string(text), "\n")
	sawHeader := false

	for lineNo, raw := range lines {
		line := strings.TrimRight(raw, "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		if !sawHeader {
			fields := strings.Fields(trimmed)
			if len(fields) != 2 {
				return "", 0, nil, fmt.Errorf("%w: line %d: expected \"<map_name> <version>\" header", ErrParse, lineNo+1)
			}
			mapName = fields[0]
			v, convErr := strconv.ParseUint(fields[1], 10, 32)
			if convErr != nil {
				return "", 0, nil, fmt.Errorf("%w: line %d: invalid version %q: %v", ErrParse, lineNo+1, fields[1], convErr)
			}
			version = uint32(v)
			sawHeader = true
			continue
		}

		e, perr := parseTextEntry(trimmed, lineNo+1)
		if perr != nil {
			return "", 0, nil, perr
		}
		if len(entries) >= maxEntries {
			return "", 0, nil, fmt.Errorf("%w: line %d: entry count exceeds cap of %d", ErrBounds, lineNo+1, maxEntries)
		}
		entries = append(entries, e)
	}

	if !sawHeader {
		return "", 0, nil, fmt.Errorf("%w: missing schema header", ErrParse)
	}
	return mapName, version, entries, nil
}

func parseTextEntry(line string, lineNo int) (Entry, error) {
	fields := splitEntryFields(line)
	if len(fields) < 4 {
		return Entry{}, fmt.Errorf("%w: line %d: expected \"<id> <name> <type> <default>\"", ErrParse, lineNo)
	}
	idTok, nameTok, typeTok, defaultTok := fields[0], fields[1], fields[2], fields[3]

	id, err := parseID(idTok)
	if err != nil {
		return Entry{}, fmt.Errorf("%w at line %d", err, lineNo)
	}

	if len(nameTok) < 1 || len(nameTok) > NameMax {
		return Entry{}, fmt.Errorf("%w: line %d: name %q length %d outside [1,%d]", ErrBounds, lineNo, nameTok, len(nameTok), NameMax)
	}

	typ, ok := ParseT(typeTok)
	if !ok {
		return Entry{}, fmt.Errorf("%w: line %d: unknown type %q", ErrInvalidType, lineNo, typeTok)
	}

	e := Entry{ID: id, Name: nameTok, Type: typ}
	if defaultTok == "NIL" {
		return e, nil
	}

	if err := parseDefaultLiteral(&e, defaultTok, lineNo); err != nil {
		return Entry{}, err
	}
	e.HasDefault = true
	return e, nil
}

// splitEntryFields splits a text-schema entry line into four
// whitespace-separated fields (fewer when the line has fewer), keeping
// everything after the third field, including a double-quoted default's
// interior whitespace, as the fourth.
func splitEntryFields(line string) []string {
	parts := strings.SplitN(strings.TrimSpace(line), " ", 4)
	// strings.Fields-style collapsing for the first three fields, since
	// SplitN(" ") above only splits on single spaces; fall back if the
	// line uses runs of whitespace.
	if len(parts) == 4 {
		head := strings.Fields(strings.Join(parts[:3], " "))
		if len(head) == 3 {
			return []string{head[0], head[1], head[2], strings.TrimSpace(parts[3])}
		}
	}
	fields := strings.Fields(line)
	if len(fields) < 4 {
		return fields
	}
	head := fields[:3]
	rest := strings.TrimSpace(line)
	for _, h := range head {
		idx := strings.Index(rest, h)
		rest = rest[idx+len(h):]
	}
	return append(append([]string{}, head...), strings.TrimSpace(rest))
}

func parseID(tok string) (uint16, error) {
	var v uint64
	var err error
	if strings.HasPrefix(tok, "0x") || strings.HasPrefix(tok, "0X") {
		v, err = strconv.ParseUint(tok[2:], 16, 32)
	} else {
		v, err = strconv.ParseUint(tok, 10, 32)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: invalid id %q", ErrParse, tok)
	}
	if v == 0 {
		return 0, fmt.Errorf("%w: id 0 is reserved", ErrReservedIndex)
	}
	if v > MaxID {
		return 0, fmt.Errorf("%w: id %d exceeds max %d", ErrBounds, v, MaxID)
	}
	return uint16(v), nil
}

func parseDefaultLiteral(e *Entry, tok string, lineNo int) error {
	switch {
	case e.Type.IsUnsigned():
		v, err := parseIntLiteral(tok, 64, false)
		if err != nil {
			return fmt.Errorf("%w at line %d", err, lineNo)
		}
		if !fitsUnsigned(uint64(v), e.Type) {
			return fmt.Errorf("%w: line %d: %d out of range for %s", ErrBounds, lineNo, v, e.Type)
		}
		e.Default = V{Type: e.Type, Uint: uint64(v)}
		return nil
	case e.Type.IsSigned():
		v, err := parseIntLiteral(tok, 64, true)
		if err != nil {
			return fmt.Errorf("%w at line %d", err, lineNo)
		}
		if !fitsSigned(v, e.Type) {
			return fmt.Errorf("%w: line %d: %d out of range for %s", ErrBounds, lineNo, v, e.Type)
		}
		e.Default = V{Type: e.Type, Int: v}
		return nil
	case e.Type == TF32:
		f, err := strconv.ParseFloat(tok, 32)
		if err != nil {
			return fmt.Errorf("%w: line %d: invalid float literal %q", ErrParse, lineNo, tok)
		}
		e.Default = V{Type: TF32, F32: float32(f)}
		return nil
	case e.Type == TF64:
		f, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return fmt.Errorf("%w: line %d: invalid float literal %q", ErrParse, lineNo, tok)
		}
		e.Default = V{Type: TF64, F64: f}
		return nil
	case e.Type.IsString():
		b, err := parseQuotedString(tok, lineNo)
		if err != nil {
			return err
		}
		if len(b) > e.Type.MaxStrLen() {
			return fmt.Errorf("%w: line %d: default %d bytes exceeds %s max %d", ErrStrTooLong, lineNo, len(b), e.Type, e.Type.MaxStrLen())
		}
		e.DefaultStr = b
		return nil
	default:
		return fmt.Errorf("%w: line %d: unhandled type %s", ErrInvalidType, lineNo, e.Type)
	}
}

func parseIntLiteral(tok string, bits int, signed bool) (int64, error) {
	neg := false
	body := tok
	if signed && (strings.HasPrefix(tok, "-") || strings.HasPrefix(tok, "+")) {
		neg = tok[0] == '-'
		body = tok[1:]
	}
	var v uint64
	var err error
	if strings.HasPrefix(body, "0x") || strings.HasPrefix(body, "0X") {
		v, err = strconv.ParseUint(body[2:], 16, 64)
	} else {
		v, err = strconv.ParseUint(body, 10, 64)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: invalid integer literal %q", ErrParse, tok)
	}
	if !signed {
		return int64(v), nil
	}
	// v is the unsigned magnitude of a signed literal; int64(v) wraps
	// silently once v exceeds MaxInt64, so check before converting
	// rather than after.
	const minInt64Magnitude = uint64(math.MaxInt64) + 1
	if neg {
		if v > minInt64Magnitude {
			return 0, fmt.Errorf("%w: integer literal %q out of range", ErrBounds, tok)
		}
		if v == minInt64Magnitude {
			return math.MinInt64, nil
		}
		return -int64(v), nil
	}
	if v > uint64(math.MaxInt64) {
		return 0, fmt.Errorf("%w: integer literal %q out of range", ErrBounds, tok)
	}
	return int64(v), nil
}

func fitsUnsigned(v uint64, t T) bool {
	switch t {
	case TU8:
		return v <= 0xff
	case TU16:
		return v <= 0xffff
	case TU32:
		return v <= 0xffffffff
	case TU64:
		return true
	default:
		return false
	}
}

func fitsSigned(v int64, t T) bool {
	switch t {
	case TI8:
		return v >= -128 && v <= 127
	case TI16:
		return v >= -32768 && v <= 32767
	case TI32:
		return v >= -2147483648 && v <= 2147483647
	case TI64:
		return true
	default:
		return false
	}
}

// parseQuotedString decodes a double-quoted string literal with the
// escape set \n \t \r \\ \". The grammar is UTF-8-agnostic: the result
// is copied into the string pool as opaque bytes, not validated as
// text.
func parseQuotedString(tok string, lineNo int) ([]byte, error) {
	if len(tok) < 2 || tok[0] != '"' || tok[len(tok)-1] != '"' {
		return nil, fmt.Errorf("%w: line %d: unterminated or unquoted string literal %q", ErrParse, lineNo, tok)
	}
	body := tok[1 : len(tok)-1]
	var out bytes.Buffer
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' {
			out.WriteByte(c)
			continue
		}
		i++
		if i >= len(body) {
			return nil, fmt.Errorf("%w: line %d: dangling escape in string literal", ErrParse, lineNo)
		}
		switch body[i] {
		case 'n':
			out.WriteByte('\n')
		case 't':
			out.WriteByte('\t')
		case 'r':
			out.WriteByte('\r')
		case '\\':
			out.WriteByte('\\')
		case '"':
			out.WriteByte('"')
		default:
			return nil, fmt.Errorf("%w: line %d: unknown escape \\%c", ErrParse, lineNo, body[i])
		}
	}
	return out.Bytes(), nil
}
