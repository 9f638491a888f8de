// Package blobstore provides the file I/O convenience wrappers around a
// persisted configuration blob: memory-mapped loading, optional
// transparent zstd decompression, and optional PKCS#7 signature
// verification. None of it is reachable from the core; Load just hands
// the caller a []byte to pass to cfgpack.Pagein like any other blob.
package blobstore

import (
	"encoding/binary"
	"fmt"
	"os"

	mmap "github.com/edsrzf/mmap-go"
	"github.com/klauspost/compress/zstd"
	"go.mozilla.org/pkcs7"

	"github.com/Arsievert/cfgpack"
	"github.com/Arsievert/cfgpack/internal/log"
)

// Magic-byte prefixes a stored flash image carries ahead of the blob
// payload.
const (
	magicRaw    = 0x00
	magicZstd   = 0x01
	magicSigned = 0x02
	footerLen   = 8
)

// Options configures a Load/Save call. The zero value is fine for raw,
// unsigned blobs.
type Options struct {
	// Logger receives diagnostic messages; defaults to a filtered
	// stderr logger at error level when nil.
	Logger log.Logger
}

func (o *Options) helper() *log.Helper {
	if o == nil || o.Logger == nil {
		return log.NewHelper(log.NewFilter(log.NewStdLogger(os.Stderr), log.FilterLevel(log.LevelError)))
	}
	return log.NewHelper(o.Logger)
}

// Load opens path, memory-maps it read-only (the same technique the
// PE file loader uses instead of reading the whole image into a heap
// buffer), and returns the decoded blob payload per the leading magic
// byte: 0x00 raw, 0x01 zstd-compressed, 0x02 raw blob plus a trailing
// PKCS#7 detached signature whose offset is read from the final 8
// little-endian bytes of the file.
func Load(path string, opts *Options) ([]byte, error) {
	logger := opts.helper()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", cfgpack.ErrIO, path, err)
	}
	defer f.Close()

	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: mmap %s: %v", cfgpack.ErrIO, path, err)
	}
	defer data.Unmap()

	if len(data) < 1 {
		return nil, fmt.Errorf("%w: %s is empty", cfgpack.ErrIO, path)
	}
	logger.Debugf("loaded %s, %d bytes, magic 0x%02x", path, len(data), data[0])

	switch data[0] {
	case magicRaw:
		out := make([]byte, len(data)-1)
		copy(out, data[1:])
		return out, nil
	case magicZstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("%w: zstd init: %v", cfgpack.ErrIO, err)
		}
		defer dec.Close()
		out, err := dec.DecodeAll(data[1:], nil)
		if err != nil {
			return nil, fmt.Errorf("%w: zstd decompress %s: %v", cfgpack.ErrIO, path, err)
		}
		return out, nil
	case magicSigned:
		if len(data) < 1+footerLen {
			return nil, fmt.Errorf("%w: %s too short for a signature footer", cfgpack.ErrIO, path)
		}
		sigOffset := binary.LittleEndian.Uint64(data[len(data)-footerLen:])
		body := data[1 : len(data)-footerLen]
		if sigOffset > uint64(len(body)) {
			return nil, fmt.Errorf("%w: signature offset %d beyond blob length %d", cfgpack.ErrIO, sigOffset, len(body))
		}
		blob := body[:sigOffset]
		out := make([]byte, len(blob))
		copy(out, blob)
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %s has unknown magic byte 0x%02x", cfgpack.ErrIO, path, data[0])
	}
}

// Save writes blob to path as a raw, magic-0x00-prefixed flash image.
// It is a convenience wrapper; the core never calls it.
func Save(path string, blob []byte, opts *Options) error {
	out := make([]byte, 0, len(blob)+1)
	out = append(out, magicRaw)
	out = append(out, blob...)
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %v", cfgpack.ErrIO, path, err)
	}
	return nil
}

// VerifySignature parses sig as a PKCS#7 detached signature over blob
// and reports whether it verifies.
func VerifySignature(blob, sig []byte) error {
	p7, err := pkcs7.Parse(sig)
	if err != nil {
		return fmt.Errorf("%w: parse pkcs7 signature: %v", cfgpack.ErrIO, err)
	}
	p7.Content = blob
	if err := p7.Verify(); err != nil {
		return fmt.Errorf("%w: pkcs7 signature verification failed: %v", cfgpack.ErrIO, err)
	}
	return nil
}
