// Package layer implements the generic bottom-up/top-down layer stack
// that the CIP Connection Manager and PCCC layers plug into.
package layer

import "encoding/binary"

// Frame is the single mutable byte buffer shared by a layer chain for
// the duration of one operation. Start and End bound the window the
// layer currently operating may fill or consume; layers never retain
// a Frame past the call that received it.
type Frame struct {
	Buf   []byte
	Start int
	End   int
}

// NewFrame wraps buf with Start and End both at 0.
func NewFrame(buf []byte) *Frame {
	return &Frame{Buf: buf}
}

// Cap returns the buffer's total capacity.
func (f *Frame) Cap() int {
	return len(f.Buf)
}

// Len returns the number of bytes between Start and End.
func (f *Frame) Len() int {
	return f.End - f.Start
}

// PutUint8 writes a byte at off and returns off+1, or ok=false if off
// is out of bounds.
func (f *Frame) PutUint8(off int, v uint8) (int, bool) {
	if off < 0 || off >= len(f.Buf) {
		return off, false
	}
	f.Buf[off] = v
	return off + 1, true
}

// PutUint16LE writes a little-endian uint16 at off.
func (f *Frame) PutUint16LE(off int, v uint16) (int, bool) {
	if off < 0 || off+2 > len(f.Buf) {
		return off, false
	}
	binary.LittleEndian.PutUint16(f.Buf[off:off+2], v)
	return off + 2, true
}

// PutUint32LE writes a little-endian uint32 at off.
func (f *Frame) PutUint32LE(off int, v uint32) (int, bool) {
	if off < 0 || off+4 > len(f.Buf) {
		return off, false
	}
	binary.LittleEndian.PutUint32(f.Buf[off:off+4], v)
	return off + 4, true
}

// PutBytes copies data into the buffer starting at off.
func (f *Frame) PutBytes(off int, data []byte) (int, bool) {
	if off < 0 || off+len(data) > len(f.Buf) {
		return off, false
	}
	copy(f.Buf[off:off+len(data)], data)
	return off + len(data), true
}

// GetUint8 reads a byte at off.
func (f *Frame) GetUint8(off int) (uint8, int, bool) {
	if off < 0 || off >= len(f.Buf) {
		return 0, off, false
	}
	return f.Buf[off], off + 1, true
}

// GetUint16LE reads a little-endian uint16 at off.
func (f *Frame) GetUint16LE(off int) (uint16, int, bool) {
	if off < 0 || off+2 > len(f.Buf) {
		return 0, off, false
	}
	return binary.LittleEndian.Uint16(f.Buf[off : off+2]), off + 2, true
}

// GetUint32LE reads a little-endian uint32 at off.
func (f *Frame) GetUint32LE(off int) (uint32, int, bool) {
	if off < 0 || off+4 > len(f.Buf) {
		return 0, off, false
	}
	return binary.LittleEndian.Uint32(f.Buf[off : off+4]), off + 4, true
}
