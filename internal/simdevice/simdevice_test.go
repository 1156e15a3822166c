package simdevice

import (
	"testing"

	"github.com/ab2link/ab2link/internal/ab2cip"
	"github.com/ab2link/ab2link/internal/ab2pccc"
	"github.com/ab2link/ab2link/internal/layer"
)

func newConnectedLayer(t *testing.T, cipPayload int) (*ab2cip.Layer, *Device) {
	t.Helper()
	l, err := ab2cip.New(ab2cip.Config{
		EncodedPath: []byte{0x01, 0x01, 0x00},
		CIPPayload:  cipPayload,
		VendorID:    0x1337,
		SerialNum:   0xCAFEBABE,
	}, nil)
	if err != nil {
		t.Fatalf("ab2cip.New: %v", err)
	}
	if r := l.Initialize(); !r.Ok() {
		t.Fatalf("Initialize: %v", r)
	}
	return l, &Device{}
}

func TestDevice_ForwardOpenRoundTrip(t *testing.T) {
	l, dev := newConnectedLayer(t, 504)
	stack := layer.NewStack(l)

	f := layer.NewFrame(make([]byte, 512))
	f.End = 512
	if r := stack.Connect(f); !r.Ok() {
		t.Fatalf("Connect (build request): %v", r)
	}

	reply, err := dev.Exchange(f.Buf[:f.End])
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}

	rf := layer.NewFrame(reply)
	rf.End = len(reply)
	if r := l.ProcessResponse(rf); !r.Ok() {
		t.Fatalf("ProcessResponse: %v", r)
	}
	if !l.IsConnected() {
		t.Fatalf("expected layer to be connected after Forward Open")
	}
	if l.PLCConnectionID() != dev.TheirConnID() {
		t.Fatalf("PLCConnectionID = %#x, want %#x", l.PLCConnectionID(), dev.TheirConnID())
	}
}

func TestDevice_RejectsOversizedRequestOnce(t *testing.T) {
	l, dev := newConnectedLayer(t, 4002)
	dev.RejectSizesAbove = 504
	stack := layer.NewStack(l)

	f := layer.NewFrame(make([]byte, 512))
	f.End = 512
	if r := stack.Connect(f); !r.Ok() {
		t.Fatalf("Connect: %v", r)
	}

	reply, err := dev.Exchange(f.Buf[:f.End])
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	rf := layer.NewFrame(reply)
	rf.End = len(reply)
	r := l.ProcessResponse(rf)
	if r.Code != layer.Retry {
		t.Fatalf("ProcessResponse code = %v, want Retry", r.Code)
	}

	f2 := layer.NewFrame(make([]byte, 512))
	f2.End = 512
	if r := stack.Connect(f2); !r.Ok() {
		t.Fatalf("Connect (retry): %v", r)
	}
	reply2, err := dev.Exchange(f2.Buf[:f2.End])
	if err != nil {
		t.Fatalf("Exchange (retry): %v", err)
	}
	rf2 := layer.NewFrame(reply2)
	rf2.End = len(reply2)
	if r := l.ProcessResponse(rf2); !r.Ok() {
		t.Fatalf("ProcessResponse (retry): %v", r)
	}
	if !l.IsConnected() {
		t.Fatalf("expected layer to be connected after retry")
	}
}

func TestDevice_ExecutePCCCRoundTripOnceConnected(t *testing.T) {
	cip, dev := newConnectedLayer(t, 504)
	pccc := ab2pccc.New(ab2pccc.Config{VendorID: 0x1337, SerialNum: 0xCAFEBABE}, cip)
	stack := layer.NewStack(pccc)

	f := layer.NewFrame(make([]byte, 512))
	f.End = 512
	if r := cip.Connect(f); !r.Ok() {
		t.Fatalf("Connect: %v", r)
	}
	reply, err := dev.Exchange(f.Buf[:f.End])
	if err != nil {
		t.Fatalf("Exchange (forward open): %v", err)
	}
	rf := layer.NewFrame(reply)
	rf.End = len(reply)
	if r := cip.ProcessResponse(rf); !r.Ok() {
		t.Fatalf("ProcessResponse (forward open): %v", r)
	}

	pf, r := stack.PrepareFrame(256)
	if !r.Ok() {
		t.Fatalf("PrepareFrame: %v", r)
	}
	n, ok := pf.PutBytes(pf.Start, []byte{0x06, 0x00}) // an echo command, as bytes
	if !ok {
		t.Fatalf("PutBytes: payload did not fit")
	}
	pf.Start = n
	if r := stack.BuildFrame(pf); !r.Ok() {
		t.Fatalf("BuildFrame: %v", r)
	}

	pccReply, err := dev.Exchange(pf.Buf[:pf.End])
	if err != nil {
		t.Fatalf("Exchange (pccc): %v", err)
	}
	prf := layer.NewFrame(pccReply)
	prf.End = len(pccReply)
	if r := stack.ProcessResponse(prf); !r.Ok() {
		t.Fatalf("ProcessResponse (pccc): %v", r)
	}
}
