package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"
	"lukechampine.com/blake3"
)

// ErrChecksumMismatch means a stored envelope does not match its digest.
var ErrChecksumMismatch = errors.New("storage: save checksum mismatch")

// envelope layout: magic(4) | blake3-256 of the plain payload (32) | lz4 frame
var envelopeMagic = []byte("RRS1")

const digestSize = 32

// Codec wraps save payloads in a compressed, integrity-checked envelope.
type Codec struct{}

// Encode compresses plain and prefixes it with its digest.
func (Codec) Encode(plain []byte) ([]byte, error) {
	sum := blake3.Sum256(plain)

	var buf bytes.Buffer
	buf.Grow(len(envelopeMagic) + digestSize + len(plain)/2)
	buf.Write(envelopeMagic)
	buf.Write(sum[:])

	zw := lz4.NewWriter(&buf)
	if _, err := zw.Write(plain); err != nil {
		return nil, fmt.Errorf("compress save: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress save: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode reverses Encode. Values without the envelope magic are returned
// as-is so saves written as plain JSON still load.
func (Codec) Decode(stored []byte) ([]byte, error) {
	if !bytes.HasPrefix(stored, envelopeMagic) {
		return stored, nil
	}
	if len(stored) < len(envelopeMagic)+digestSize {
		return nil, fmt.Errorf("%w: truncated envelope", ErrChecksumMismatch)
	}
	want := stored[len(envelopeMagic) : len(envelopeMagic)+digestSize]
	body := stored[len(envelopeMagic)+digestSize:]

	plain, err := io.ReadAll(lz4.NewReader(bytes.NewReader(body)))
	if err != nil {
		return nil, fmt.Errorf("%w: decompress: %v", ErrChecksumMismatch, err)
	}
	sum := blake3.Sum256(plain)
	if !bytes.Equal(sum[:], want) {
		return nil, ErrChecksumMismatch
	}
	return plain, nil
}
