package layer

import "testing"

func TestFramePutGetRoundTrip(t *testing.T) {
	f := NewFrame(make([]byte, 16))

	off, ok := f.PutUint32LE(0, 0x11223344)
	if !ok || off != 4 {
		t.Fatalf("PutUint32LE: off=%d ok=%v", off, ok)
	}
	off, ok = f.PutUint16LE(off, 0xABCD)
	if !ok || off != 6 {
		t.Fatalf("PutUint16LE: off=%d ok=%v", off, ok)
	}

	v32, off, ok := f.GetUint32LE(0)
	if !ok || v32 != 0x11223344 || off != 4 {
		t.Fatalf("GetUint32LE: v=%#x off=%d ok=%v", v32, off, ok)
	}
	v16, off, ok := f.GetUint16LE(4)
	if !ok || v16 != 0xABCD || off != 6 {
		t.Fatalf("GetUint16LE: v=%#x off=%d ok=%v", v16, off, ok)
	}
}

func TestFrameOutOfBounds(t *testing.T) {
	f := NewFrame(make([]byte, 4))
	if _, ok := f.PutUint32LE(2, 1); ok {
		t.Fatalf("expected PutUint32LE to fail past capacity")
	}
	if _, _, ok := f.GetUint32LE(2); ok {
		t.Fatalf("expected GetUint32LE to fail past capacity")
	}
	if _, ok := f.PutUint8(-1, 1); ok {
		t.Fatalf("expected PutUint8 to fail on negative offset")
	}
}

func TestFramePutBytes(t *testing.T) {
	f := NewFrame(make([]byte, 8))
	off, ok := f.PutBytes(2, []byte{0x01, 0x02, 0x03})
	if !ok || off != 5 {
		t.Fatalf("PutBytes: off=%d ok=%v", off, ok)
	}
	if f.Buf[2] != 0x01 || f.Buf[3] != 0x02 || f.Buf[4] != 0x03 {
		t.Fatalf("PutBytes wrote wrong bytes: % X", f.Buf)
	}
}
