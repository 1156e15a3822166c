// Package ab2pccc implements the PCCC encapsulation layer: it wraps a
// PCCC (DF1-style) command in a CIP "Execute PCCC" request and
// validates the reply, without interpreting the PCCC payload itself
// (file/element addressing is an external collaborator's concern).
package ab2pccc

import (
	"fmt"

	"github.com/ab2link/ab2link/internal/layer"
)

const (
	// ServiceExecutePCCC is the CIP service code for "Execute PCCC".
	ServiceExecutePCCC = 0x4B
	replyFlag          = 0x80

	pcccObjectClass = 0x67
	pcccObjectInst  = 0x01

	reqHeaderSize  = 13
	respHeaderSize = 11

	requesterIDLength = 7
)

// pcccObjectPath is the fixed encoded path to the PCCC object (class
// 0x67, instance 1): {wordlen=2, 0x20, 0x67, 0x24, 0x01}.
var pcccObjectPath = []byte{0x02, 0x20, pcccObjectClass, 0x24, pcccObjectInst}

// Config is supplied once at construction.
type Config struct {
	VendorID  uint16
	SerialNum uint32
}

// Layer implements layer.Layer for PCCC-over-CIP encapsulation.
type Layer struct {
	next layer.Layer
	cfg  Config

	headerStartOffset int
}

// New constructs a PCCC layer on top of next (the CIP Connection
// Manager layer).
func New(cfg Config, next layer.Layer) *Layer {
	return &Layer{next: next, cfg: cfg}
}

// Next implements layer.Layer.
func (l *Layer) Next() layer.Layer { return l.next }

// Initialize implements layer.Layer; this layer has no runtime state
// to reset.
func (l *Layer) Initialize() layer.Result {
	if l.next != nil {
		return l.next.Initialize()
	}
	return layer.Result{Code: layer.OK}
}

// Connect implements layer.Layer as a pure passthrough.
func (l *Layer) Connect(f *layer.Frame) layer.Result {
	if l.next != nil {
		return l.next.Connect(f)
	}
	return layer.Result{Code: layer.OK}
}

// Disconnect implements layer.Layer as a pure passthrough.
func (l *Layer) Disconnect(f *layer.Frame) layer.Result {
	if l.next != nil {
		return l.next.Disconnect(f)
	}
	return layer.Result{Code: layer.OK}
}

// ReserveSpace implements layer.Layer.
func (l *Layer) ReserveSpace(f *layer.Frame) layer.Result {
	if l.next != nil {
		if r := l.next.ReserveSpace(f); !r.Ok() {
			return r
		}
	}
	if f.Start+reqHeaderSize > f.Cap() {
		return layer.Result{Code: layer.TooSmall, Err: fmt.Errorf("ab2pccc: need %d header bytes at offset %d", reqHeaderSize, f.Start)}
	}
	l.headerStartOffset = f.Start
	f.Start += reqHeaderSize
	return layer.Result{Code: layer.OK}
}

// BuildLayer implements layer.Layer.
func (l *Layer) BuildLayer(f *layer.Frame) layer.Result {
	if f.Start < l.headerStartOffset+reqHeaderSize {
		return layer.Result{Code: layer.BadConfig, Err: fmt.Errorf("ab2pccc: payload_start %d does not follow reserved header at %d", f.Start, l.headerStartOffset)}
	}

	off := l.headerStartOffset
	var ok bool
	off, ok = f.PutUint8(off, ServiceExecutePCCC)
	if !ok {
		return layer.Result{Code: layer.OutOfBounds}
	}
	off, ok = f.PutBytes(off, pcccObjectPath)
	if !ok {
		return layer.Result{Code: layer.OutOfBounds}
	}
	off, ok = f.PutUint8(off, requesterIDLength)
	if !ok {
		return layer.Result{Code: layer.OutOfBounds}
	}
	off, ok = f.PutUint16LE(off, l.cfg.VendorID)
	if !ok {
		return layer.Result{Code: layer.OutOfBounds}
	}
	off, ok = f.PutUint32LE(off, l.cfg.SerialNum)
	if !ok {
		return layer.Result{Code: layer.OutOfBounds}
	}

	if off != l.headerStartOffset+reqHeaderSize {
		return layer.Result{Code: layer.BadConfig, Err: fmt.Errorf("ab2pccc: header wrote %d bytes, expected %d", off-l.headerStartOffset, reqHeaderSize)}
	}

	// f.Start arrived holding the cumulative end of this layer's
	// header plus whatever PCCC command bytes the caller wrote after
	// it; lower layers expect f.End to carry that total and f.Start
	// to sit back at the boundary they reserved for us.
	f.End = f.Start
	f.Start = l.headerStartOffset

	if l.next != nil {
		return l.next.BuildLayer(f)
	}
	return layer.Result{Code: layer.OK}
}

// ProcessResponse implements layer.Layer: validates the CIP reply
// service and status, then advances past the 11-byte response header
// on success.
func (l *Layer) ProcessResponse(f *layer.Frame) layer.Result {
	if l.next != nil {
		if r := l.next.ProcessResponse(f); !r.Ok() {
			return r
		}
	}

	off := f.Start
	service, off, ok := f.GetUint8(off)
	if !ok {
		return layer.Result{Code: layer.Partial}
	}
	_, off, ok = f.GetUint8(off) // reserved
	if !ok {
		return layer.Result{Code: layer.Partial}
	}
	status, off, ok := f.GetUint8(off)
	if !ok {
		return layer.Result{Code: layer.Partial}
	}
	extStatusWords, _, ok := f.GetUint8(off)
	if !ok {
		return layer.Result{Code: layer.Partial}
	}

	if service != (ServiceExecutePCCC | replyFlag) {
		return layer.Result{Code: layer.BadReply, Err: fmt.Errorf("ab2pccc: reply service 0x%02X, expected 0x%02X", service, ServiceExecutePCCC|replyFlag)}
	}

	if status == 0 {
		f.Start += respHeaderSize
		return layer.Result{Code: layer.OK}
	}

	var ext uint16
	if extStatusWords > 0 {
		if v, _, ok := f.GetUint16LE(off + 1); ok {
			ext = v
		}
	}
	return layer.Result{Code: layer.BadStatus, Status: status, ExtendedStatus: ext}
}
