// Package transform implements the two opaque byte transforms spec.md
// §1 calls out as external collaborators: compression and symmetric
// encryption. The fabric treats both as a declared on/off flag per
// session (spec.md §4.8); this package supplies the pluggable
// implementations behind that flag rather than hand-rolling either
// primitive, per SPEC_FULL.md §11.1/§11.2.
package transform

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Algorithm names a selectable compression backend, set per the
// connection profile (pkg/config.Profile.CompressionAlgorithm).
type Algorithm string

const (
	AlgorithmGzip Algorithm = "gzip"
	AlgorithmZstd Algorithm = "zstd"
	AlgorithmLZ4  Algorithm = "lz4"
)

// Compressor is the opaque transform applied to a frame payload when
// a session's compress flag is on. Grounded on arloliu-mebo's use of
// klauspost/compress for its chunk encoding and pierrec/lz4 as its
// fast-path codec.
type Compressor interface {
	Compress(plain []byte) ([]byte, error)
	Decompress(compressed []byte) ([]byte, error)
}

// NewCompressor builds the backend named by algo.
func NewCompressor(algo Algorithm) (Compressor, error) {
	switch algo {
	case AlgorithmGzip, "":
		return gzipCompressor{}, nil
	case AlgorithmZstd:
		return newZstdCompressor()
	case AlgorithmLZ4:
		return lz4Compressor{}, nil
	default:
		return nil, fmt.Errorf("transform: unknown compression algorithm %q", algo)
	}
}

type gzipCompressor struct{}

func (gzipCompressor) Compress(plain []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(plain); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (gzipCompressor) Decompress(compressed []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

type zstdCompressor struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func newZstdCompressor() (*zstdCompressor, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	return &zstdCompressor{enc: enc, dec: dec}, nil
}

func (z *zstdCompressor) Compress(plain []byte) ([]byte, error) {
	return z.enc.EncodeAll(plain, nil), nil
}

func (z *zstdCompressor) Decompress(compressed []byte) ([]byte, error) {
	return z.dec.DecodeAll(compressed, nil)
}

type lz4Compressor struct{}

func (lz4Compressor) Compress(plain []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(plain); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (lz4Compressor) Decompress(compressed []byte) ([]byte, error) {
	r := lz4.NewReader(bytes.NewReader(compressed))
	return io.ReadAll(r)
}
