// Package fragment provides the explicit, versioned binary layout that
// contributors use to turn their state into an opaque fragment.
//
// A fragment starts with a one byte layout version followed by fixed-width
// little-endian fields in the order the contributor writes them. The save
// manager never looks inside a fragment.
package fragment

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var (
	// ErrCorrupt is returned when fragment bytes cannot be decoded, for
	// example because they are truncated or carry trailing data.
	ErrCorrupt = errors.New("corrupt fragment")

	// ErrVersion is returned when a fragment was written with a layout
	// version the decoder does not understand.
	ErrVersion = errors.New("unsupported fragment version")
)

// An Encoder appends fixed-width fields after a version byte.
type Encoder struct {
	buf []byte
}

// NewEncoder creates an encoder that writes the given layout version first.
func NewEncoder(version uint8) *Encoder {
	return &Encoder{buf: []byte{version}}
}

// Int32 appends a 4-byte signed integer.
func (e *Encoder) Int32(v int32) *Encoder {
	e.buf = binary.LittleEndian.AppendUint32(e.buf, uint32(v))
	return e
}

// Float64 appends an IEEE-754 double.
func (e *Encoder) Float64(v float64) *Encoder {
	e.buf = binary.LittleEndian.AppendUint64(e.buf, math.Float64bits(v))
	return e
}

// Bytes returns the encoded fragment.
func (e *Encoder) Bytes() []byte {
	return e.buf
}

// A Decoder reads fields in the same order they were encoded. The first
// failure sticks; later reads return zero values and Finish reports it.
type Decoder struct {
	data    []byte
	off     int
	version uint8
	err     error
}

// NewDecoder reads the version byte and prepares to decode the fields.
func NewDecoder(data []byte) (*Decoder, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty fragment", ErrCorrupt)
	}

	return &Decoder{data: data, off: 1, version: data[0]}, nil
}

// ExpectVersion fails the decoder unless the fragment has the given version.
func (d *Decoder) ExpectVersion(version uint8) error {
	if d.version != version {
		d.err = fmt.Errorf("%w: got %d, want %d", ErrVersion, d.version, version)
	}

	return d.err
}

func (d *Decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}

	if len(d.data)-d.off < n {
		d.err = fmt.Errorf("%w: need %d bytes at offset %d, have %d",
			ErrCorrupt, n, d.off, len(d.data)-d.off)
		return nil
	}

	b := d.data[d.off : d.off+n]
	d.off += n

	return b
}

// Int32 reads a 4-byte signed integer.
func (d *Decoder) Int32() int32 {
	b := d.take(4)
	if b == nil {
		return 0
	}

	return int32(binary.LittleEndian.Uint32(b))
}

// Float64 reads an IEEE-754 double.
func (d *Decoder) Float64() float64 {
	b := d.take(8)
	if b == nil {
		return 0
	}

	return math.Float64frombits(binary.LittleEndian.Uint64(b))
}

// Finish returns the first decoding error, or ErrCorrupt if bytes are left
// over.
func (d *Decoder) Finish() error {
	if d.err != nil {
		return d.err
	}

	if d.off != len(d.data) {
		return fmt.Errorf("%w: %d trailing bytes", ErrCorrupt, len(d.data)-d.off)
	}

	return nil
}
