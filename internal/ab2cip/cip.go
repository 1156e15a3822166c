// Package ab2cip implements the CIP Connection Manager layer: Forward
// Open / Forward Close negotiation, CPF framing, and the retry state
// machine that follows a rejected connection size.
package ab2cip

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"github.com/ab2link/ab2link/internal/layer"
)

const (
	ServiceForwardOpen   = 0x54
	ServiceForwardOpenEx = 0x5B
	ServiceForwardClose  = 0x4E
	replyFlag            = 0x80

	connectionManagerClass = 0x06
	connectionManagerInst  = 0x01

	cpfUnconnectedHeaderSize = 16
	cpfConnectedHeaderSize   = 20

	payloadHeaderFudge = 40

	// CIPStdPayload is the largest payload size the standard (16-bit)
	// connection parameter field can express.
	CIPStdPayload = 504
	// CIPStdExPayload is the payload-size ceiling the negotiation
	// ladder steps down to before disabling extended Forward Open.
	CIPStdExPayload = 4000
	// maxStdConnParam is the 9-bit ceiling of the standard connection
	// parameter field (0x01F8 = 504 decimal... kept distinct from
	// CIPStdPayload because the clamp applies even when the PLC
	// advertises a larger "supported size" in a retry reply).
	maxStdConnParam = 0x01F8

	connParamExBase = 0x42000000
	connParamBase   = 0x4200

	forwardOpenTimeoutTicks = 5
	forwardOpenPriorityByte = 0x0A

	transportClassTrigger = 0xA3
	rpiMicroseconds       = 1_000_000

	statusOK                  = 0x00
	statusExtended            = 0x01
	statusServiceUnsupported  = 0x08
	statusInsufficientResrc   = 0x02
	extInvalidConnectionSize  = 0x0109
	extDuplicateConnectionID  = 0x0100
)

// PLCHandle is the external collaborator the CIP layer raises the
// receive buffer through after a successful Forward Open.
type PLCHandle interface {
	SetBufferSize(n int) error
}

// noopPLCHandle is used when the caller has no buffer-sizing concern
// (e.g. in tests exercising the layer against an in-memory double).
type noopPLCHandle struct{}

func (noopPLCHandle) SetBufferSize(int) error { return nil }

// Config is supplied once at construction.
type Config struct {
	// EncodedPath is the pre-encoded routing path, byte 0 holding its
	// length in 16-bit words. Produced by an external path encoder;
	// this layer never interprets path segments.
	EncodedPath []byte
	// CIPPayload is the requested maximum CIP payload in bytes,
	// 0 <= v <= 65525. v > CIPStdPayload enables extended Forward
	// Open automatically.
	CIPPayload int
	VendorID   uint16
	SerialNum  uint32

	// IsDHP, DHPPort, DHPDest carry Data Highway Plus bridging
	// metadata through for diagnostics only; they do not affect
	// framing.
	IsDHP   bool
	DHPPort uint8
	DHPDest uint8

	PLC PLCHandle
}

// Layer implements layer.Layer for the CIP Connection Manager.
type Layer struct {
	next layer.Layer
	cfg  Config
	plc  PLCHandle

	forwardOpenExEnabled bool
	cipPayload           int
	cipPayloadEx         int

	ourConnIDU32    uint32
	plcConnectionID uint32
	sequenceID      uint16

	connected         bool
	headerStartOffset int
}

// New constructs a CIP layer on top of next (the next-lower layer,
// typically the EIP session layer; may be nil in tests driving the
// CIP layer standalone against a frame the test supplies directly).
func New(cfg Config, next layer.Layer) (*Layer, error) {
	if len(cfg.EncodedPath) == 0 {
		return nil, fmt.Errorf("ab2cip: empty encoded path")
	}
	if cfg.CIPPayload < 0 || cfg.CIPPayload > 65525 {
		return nil, fmt.Errorf("ab2cip: cip_payload %d out of range [0, 65525]", cfg.CIPPayload)
	}
	plc := cfg.PLC
	if plc == nil {
		plc = noopPLCHandle{}
	}
	l := &Layer{next: next, cfg: cfg, plc: plc}
	l.resetNegotiation()
	return l, nil
}

func (l *Layer) resetNegotiation() {
	l.forwardOpenExEnabled = l.cfg.CIPPayload > CIPStdPayload
	if l.forwardOpenExEnabled {
		l.cipPayloadEx = l.cfg.CIPPayload
		l.cipPayload = CIPStdPayload
	} else {
		l.cipPayload = l.cfg.CIPPayload
		if l.cipPayload == 0 {
			l.cipPayload = CIPStdPayload
		}
	}
}

// Next implements layer.Layer.
func (l *Layer) Next() layer.Layer { return l.next }

// Initialize implements layer.Layer: resets connection state and
// regenerates the connection id and sequence id, without touching the
// negotiated payload sizes (those persist across reconnects so the
// retry ladder converges instead of restarting from scratch).
func (l *Layer) Initialize() layer.Result {
	if l.next != nil {
		if r := l.next.Initialize(); !r.Ok() {
			return r
		}
	}
	l.connected = false
	l.headerStartOffset = 0

	var seq [2]byte
	if _, err := rand.Read(seq[:]); err != nil {
		return layer.Result{Code: layer.NoMem, Err: fmt.Errorf("ab2cip: generate sequence id: %w", err)}
	}
	l.sequenceID = binary.LittleEndian.Uint16(seq[:])

	if err := l.regenerateConnID(); err != nil {
		return layer.Result{Code: layer.NoMem, Err: err}
	}
	return layer.Result{Code: layer.OK}
}

// regenerateConnID draws a fresh our_connection_id. Called from
// Initialize on every reconnect, and directly from the Forward Open
// response state machine on a 0x0100 "duplicate connection id" reply
// so the next attempt actually differs from the one the PLC rejected
// (the retry ladder must converge per spec §7).
func (l *Layer) regenerateConnID() error {
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return fmt.Errorf("ab2cip: generate connection id: %w", err)
	}
	l.ourConnIDU32 = binary.LittleEndian.Uint32(buf[:])
	return nil
}

// IsConnected reports whether the most recent Forward Open succeeded
// and no Forward Close has run since.
func (l *Layer) IsConnected() bool { return l.connected }

// PLCConnectionID returns the connection id the PLC assigned on the
// last successful Forward Open.
func (l *Layer) PLCConnectionID() uint32 { return l.plcConnectionID }

func headerSize(connected bool) int {
	if connected {
		return cpfConnectedHeaderSize + 2
	}
	return cpfUnconnectedHeaderSize
}

// ReserveSpace implements layer.Layer.
func (l *Layer) ReserveSpace(f *layer.Frame) layer.Result {
	if l.next != nil {
		if r := l.next.ReserveSpace(f); !r.Ok() {
			return r
		}
	}

	size := headerSize(l.connected)
	if f.Start+size > f.Cap() {
		return layer.Result{Code: layer.TooSmall, Err: fmt.Errorf("ab2cip: need %d header bytes at offset %d, capacity %d", size, f.Start, f.Cap())}
	}

	l.headerStartOffset = f.Start
	f.Start += size

	payload := l.cipPayload
	if l.forwardOpenExEnabled {
		payload = l.cipPayloadEx
	}
	end := l.headerStartOffset + size + payload + payloadHeaderFudge
	if end > f.Cap() {
		end = f.Cap()
	}
	f.End = end
	return layer.Result{Code: layer.OK}
}

// BuildLayer implements layer.Layer.
func (l *Layer) BuildLayer(f *layer.Frame) layer.Result {
	if !l.connected {
		// The Forward Open frame was already written directly by
		// Connect; nothing to add here.
		if l.next != nil {
			return l.next.BuildLayer(f)
		}
		return layer.Result{Code: layer.OK}
	}

	off := l.headerStartOffset
	payloadSize := f.End - (off + cpfConnectedHeaderSize + 2)
	var ok bool
	off, ok = f.PutUint32LE(off, 0) // interface handle
	if !ok {
		return badConfig("interface handle")
	}
	off, ok = f.PutUint16LE(off, forwardOpenTimeoutTicks) // router timeout ticks
	if !ok {
		return badConfig("router timeout")
	}
	off, ok = f.PutUint16LE(off, 2) // CPF item count
	if !ok {
		return badConfig("item count")
	}
	off, ok = f.PutUint16LE(off, 0x00A1) // connected address item
	if !ok {
		return badConfig("address item type")
	}
	off, ok = f.PutUint16LE(off, 4) // address length
	if !ok {
		return badConfig("address length")
	}
	off, ok = f.PutUint32LE(off, l.plcConnectionID)
	if !ok {
		return badConfig("connection id")
	}
	off, ok = f.PutUint16LE(off, 0x00B1) // connected data item
	if !ok {
		return badConfig("data item type")
	}
	off, ok = f.PutUint16LE(off, uint16(payloadSize+2)) // payload + sequence id
	if !ok {
		return badConfig("data length")
	}
	off, ok = f.PutUint16LE(off, l.sequenceID)
	if !ok {
		return badConfig("sequence id")
	}
	l.sequenceID++

	if off != f.Start {
		return layer.Result{Code: layer.BadConfig, Err: fmt.Errorf("ab2cip: connected header wrote %d bytes, expected to land on %d", off-l.headerStartOffset, f.Start-l.headerStartOffset)}
	}

	if l.next != nil {
		return l.next.BuildLayer(f)
	}
	return layer.Result{Code: layer.OK}
}

func badConfig(field string) layer.Result {
	return layer.Result{Code: layer.BadConfig, Err: fmt.Errorf("ab2cip: writing %s overran frame", field)}
}

// connManagerPath is the fixed encoded path to the Connection Manager
// object (class 0x06, instance 1): {wordlen=2, 0x20, 0x06, 0x24, 0x01}.
var connManagerPath = []byte{0x02, 0x20, connectionManagerClass, 0x24, connectionManagerInst}

// Connect implements layer.Layer: the hybrid traversal first drives
// lower layers, then — only once they report OK — emits this layer's
// own Forward Open request.
func (l *Layer) Connect(f *layer.Frame) layer.Result {
	if l.next != nil {
		if r := l.next.Connect(f); r.Code != layer.OK {
			return r
		}
	}
	if l.connected {
		return l.ReserveSpace(f)
	}
	return l.buildForwardOpen(f)
}

func (l *Layer) buildForwardOpen(f *layer.Frame) layer.Result {
	off := f.Start
	var ok bool

	off, ok = f.PutUint32LE(off, 0) // encapsulation handle
	if !ok {
		return layer.Result{Code: layer.TooSmall, Err: fmt.Errorf("ab2cip: forward open: no room for preamble")}
	}
	off, ok = f.PutUint16LE(off, forwardOpenTimeoutTicks)
	if !ok {
		return layer.Result{Code: layer.TooSmall}
	}
	off, ok = f.PutUint16LE(off, 2) // CPF item count
	if !ok {
		return layer.Result{Code: layer.TooSmall}
	}
	off, ok = f.PutUint16LE(off, 0x0000) // null address item
	if !ok {
		return layer.Result{Code: layer.TooSmall}
	}
	off, ok = f.PutUint16LE(off, 0) // null address length
	if !ok {
		return layer.Result{Code: layer.TooSmall}
	}
	off, ok = f.PutUint16LE(off, 0x00B2) // unconnected data item
	if !ok {
		return layer.Result{Code: layer.TooSmall}
	}
	lengthFieldOffset := off
	off, ok = f.PutUint16LE(off, 0) // length backfilled below
	if !ok {
		return layer.Result{Code: layer.TooSmall}
	}

	cmRequestStart := off

	service := uint8(ServiceForwardOpen)
	if l.forwardOpenExEnabled {
		service = ServiceForwardOpenEx
	}
	off, ok = f.PutUint8(off, service)
	if !ok {
		return layer.Result{Code: layer.TooSmall}
	}
	off, ok = f.PutBytes(off, connManagerPath)
	if !ok {
		return layer.Result{Code: layer.TooSmall}
	}
	off, ok = f.PutUint8(off, forwardOpenPriorityByte)
	if !ok {
		return layer.Result{Code: layer.TooSmall}
	}
	off, ok = f.PutUint8(off, forwardOpenTimeoutTicks)
	if !ok {
		return layer.Result{Code: layer.TooSmall}
	}

	off, ok = f.PutUint32LE(off, 0) // O->T connection id, PLC fills
	if !ok {
		return layer.Result{Code: layer.TooSmall}
	}
	off, ok = f.PutUint32LE(off, l.ourConnIDU32) // T->O connection id (ours)
	if !ok {
		return layer.Result{Code: layer.TooSmall}
	}
	off, ok = f.PutUint16LE(off, l.sequenceID)
	if !ok {
		return layer.Result{Code: layer.TooSmall}
	}
	l.sequenceID++
	off, ok = f.PutUint16LE(off, l.cfg.VendorID)
	if !ok {
		return layer.Result{Code: layer.TooSmall}
	}
	off, ok = f.PutUint32LE(off, l.cfg.SerialNum)
	if !ok {
		return layer.Result{Code: layer.TooSmall}
	}

	off, ok = f.PutUint8(off, 1) // timeout multiplier
	if !ok {
		return layer.Result{Code: layer.TooSmall}
	}
	off, ok = f.PutBytes(off, []byte{0, 0, 0}) // reserved
	if !ok {
		return layer.Result{Code: layer.TooSmall}
	}

	off, ok = f.PutUint32LE(off, rpiMicroseconds) // O->T RPI
	if !ok {
		return layer.Result{Code: layer.TooSmall}
	}
	if l.forwardOpenExEnabled {
		off, ok = f.PutUint32LE(off, connParamExBase|uint32(l.cipPayloadEx))
	} else {
		off, ok = f.PutUint16LE(off, connParamBase|uint16(l.cipPayload))
	}
	if !ok {
		return layer.Result{Code: layer.TooSmall}
	}

	off, ok = f.PutUint32LE(off, rpiMicroseconds) // T->O RPI
	if !ok {
		return layer.Result{Code: layer.TooSmall}
	}
	if l.forwardOpenExEnabled {
		off, ok = f.PutUint32LE(off, connParamExBase|uint32(l.cipPayloadEx))
	} else {
		off, ok = f.PutUint16LE(off, connParamBase|uint16(l.cipPayload))
	}
	if !ok {
		return layer.Result{Code: layer.TooSmall}
	}

	off, ok = f.PutUint8(off, transportClassTrigger)
	if !ok {
		return layer.Result{Code: layer.TooSmall}
	}
	off, ok = f.PutBytes(off, l.cfg.EncodedPath)
	if !ok {
		return layer.Result{Code: layer.TooSmall}
	}

	dataLen := uint16(off - cmRequestStart)
	if _, ok := f.PutUint16LE(lengthFieldOffset, dataLen); !ok {
		return layer.Result{Code: layer.OutOfBounds}
	}

	f.End = off
	return layer.Result{Code: layer.OK}
}

// buildForwardClose emits a Forward Close request. Structurally
// identical to Forward Open through the Connection Manager service
// header, then timeout bytes, sequence id, vendor/serial, and the
// encoded path with a single 0x00 padding byte inserted immediately
// after the path length byte.
func (l *Layer) buildForwardClose(f *layer.Frame) layer.Result {
	off := f.Start
	var ok bool

	off, ok = f.PutUint32LE(off, 0)
	if !ok {
		return layer.Result{Code: layer.TooSmall}
	}
	off, ok = f.PutUint16LE(off, forwardOpenTimeoutTicks)
	if !ok {
		return layer.Result{Code: layer.TooSmall}
	}
	off, ok = f.PutUint16LE(off, 2)
	if !ok {
		return layer.Result{Code: layer.TooSmall}
	}
	off, ok = f.PutUint16LE(off, 0x0000)
	if !ok {
		return layer.Result{Code: layer.TooSmall}
	}
	off, ok = f.PutUint16LE(off, 0)
	if !ok {
		return layer.Result{Code: layer.TooSmall}
	}
	off, ok = f.PutUint16LE(off, 0x00B2)
	if !ok {
		return layer.Result{Code: layer.TooSmall}
	}
	lengthFieldOffset := off
	off, ok = f.PutUint16LE(off, 0)
	if !ok {
		return layer.Result{Code: layer.TooSmall}
	}

	cmRequestStart := off

	off, ok = f.PutUint8(off, ServiceForwardClose)
	if !ok {
		return layer.Result{Code: layer.TooSmall}
	}
	off, ok = f.PutBytes(off, connManagerPath)
	if !ok {
		return layer.Result{Code: layer.TooSmall}
	}
	off, ok = f.PutUint8(off, forwardOpenPriorityByte)
	if !ok {
		return layer.Result{Code: layer.TooSmall}
	}
	off, ok = f.PutUint8(off, forwardOpenTimeoutTicks)
	if !ok {
		return layer.Result{Code: layer.TooSmall}
	}
	off, ok = f.PutUint16LE(off, l.sequenceID)
	if !ok {
		return layer.Result{Code: layer.TooSmall}
	}
	l.sequenceID++
	off, ok = f.PutUint16LE(off, l.cfg.VendorID)
	if !ok {
		return layer.Result{Code: layer.TooSmall}
	}
	off, ok = f.PutUint32LE(off, l.cfg.SerialNum)
	if !ok {
		return layer.Result{Code: layer.TooSmall}
	}

	// Encoded path with a padding 0x00 inserted right after index 0
	// (the path length byte).
	path := l.cfg.EncodedPath
	if len(path) < 1 {
		return layer.Result{Code: layer.BadConfig, Err: fmt.Errorf("ab2cip: encoded path too short")}
	}
	off, ok = f.PutUint8(off, path[0])
	if !ok {
		return layer.Result{Code: layer.TooSmall}
	}
	off, ok = f.PutUint8(off, 0x00)
	if !ok {
		return layer.Result{Code: layer.TooSmall}
	}
	off, ok = f.PutBytes(off, path[1:])
	if !ok {
		return layer.Result{Code: layer.TooSmall}
	}

	dataLen := uint16(off - cmRequestStart)
	if _, ok := f.PutUint16LE(lengthFieldOffset, dataLen); !ok {
		return layer.Result{Code: layer.OutOfBounds}
	}

	f.End = off
	return layer.Result{Code: layer.OK}
}

// Disconnect implements layer.Layer: when already disconnected this
// is a pure passthrough; otherwise it reserves space in the lower
// layers only (not its own CIP header — the Forward Close frame is
// written directly, the same way Connect writes Forward Open) and
// emits the Forward Close request. Once the request is built the layer
// counts as disconnected, so ProcessResponse parses the Forward Close
// reply in disconnected mode.
func (l *Layer) Disconnect(f *layer.Frame) layer.Result {
	if !l.connected {
		if l.next != nil {
			return l.next.Disconnect(f)
		}
		return layer.Result{Code: layer.OK}
	}
	if l.next != nil {
		if r := l.next.ReserveSpace(f); !r.Ok() {
			return r
		}
	}
	r := l.buildForwardClose(f)
	if r.Ok() {
		l.connected = false
	}
	return r
}
