// Package simdevice is an in-memory stand-in for a PLC's EtherNet/IP
// encapsulation and Connection Manager object. It answers the exact
// wire layout internal/ab2cip and internal/ab2pccc build, so ab2ctl
// and the TUI can drive the full layer stack — Forward Open
// negotiation, retries, Execute PCCC — without a production
// EIP/TCP transport. Its reply shapes are grounded directly on the
// request builders in internal/ab2cip/cip.go and the assertions in
// internal/ab2cip/cip_test.go.
package simdevice

import (
	"encoding/binary"
	"fmt"
)

const (
	serviceForwardOpen   = 0x54
	serviceForwardOpenEx = 0x5B
	serviceForwardClose  = 0x4E
	serviceExecutePCCC   = 0x4B
	replyFlag            = 0x80

	cpfUnconnectedHeaderSize = 16
	cpfConnectedHeaderSize   = 20
)

// Device simulates a single PLC target. It tracks the connection ids
// and payload size it agreed to during Forward Open so PCCC replies
// can be framed inside a connected CPF header.
type Device struct {
	// RejectSizesAbove, if non-zero, makes the first Forward Open
	// whose requested size exceeds this ceiling fail with extended
	// status 0x0109 (invalid connection size) and a supported-size
	// hint, exercising the retry ladder in internal/ab2cip.
	RejectSizesAbove int

	// OnExchange, if set, is called with every request/reply pair
	// after a successful Exchange, so a caller can mirror the wire
	// traffic into a capture writer without the device needing to
	// know anything about pcap.
	OnExchange func(req, reply []byte)

	connID       uint32
	theirConnID  uint32
	connected    bool
	rejectedOnce bool
}

// OurConnID returns the originator-assigned T->O connection id from
// the most recent successful Forward Open, for diagnostic display.
func (d *Device) OurConnID() uint32 { return d.connID }

// TheirConnID returns the device-assigned O->T connection id from the
// most recent successful Forward Open.
func (d *Device) TheirConnID() uint32 { return d.theirConnID }

// Exchange takes a request frame this module's layer stack built
// (req) and returns the matching reply frame, or an error if the
// request doesn't resemble anything this layer stack emits.
func (d *Device) Exchange(req []byte) ([]byte, error) {
	if len(req) < cpfUnconnectedHeaderSize {
		return nil, fmt.Errorf("simdevice: request too short (%d bytes)", len(req))
	}

	var (
		reply []byte
		err   error
	)
	// The CPF address item type tells the two frame shapes apart: a
	// connected address item (0x00A1) versus the null address item of
	// unconnected Forward Open / Forward Close requests.
	if binary.LittleEndian.Uint16(req[8:10]) == 0x00A1 {
		reply, err = d.exchangeConnected(req)
	} else {
		reply, err = d.exchangeUnconnected(req)
	}
	if err == nil && d.OnExchange != nil {
		d.OnExchange(req, reply)
	}
	return reply, err
}

func (d *Device) exchangeUnconnected(req []byte) ([]byte, error) {
	service := req[cpfUnconnectedHeaderSize]
	switch service {
	case serviceForwardOpen, serviceForwardOpenEx:
		return d.forwardOpenReply(req, service)
	case serviceForwardClose:
		return d.forwardCloseReply()
	default:
		return nil, fmt.Errorf("simdevice: unrecognized unconnected service 0x%02X", service)
	}
}

func (d *Device) forwardOpenReply(req []byte, service byte) ([]byte, error) {
	extended := service == serviceForwardOpenEx
	// connManagerPath (5 bytes) + priority + timeout put the O->T
	// connection id (still 0, ours to assign) right before the T->O
	// id ab2cip chose, from which this device derives its own id.
	off := cpfUnconnectedHeaderSize + 1 + 5 + 1 + 1
	ourConnID := binary.LittleEndian.Uint32(req[off+4 : off+8])
	theirConnID := d.assignConnID(ourConnID)

	requestedSize, ok := forwardOpenRequestedSize(req, extended)
	if !ok {
		return nil, fmt.Errorf("simdevice: forward open request truncated")
	}

	if d.RejectSizesAbove > 0 && requestedSize > d.RejectSizesAbove && !d.rejectedOnce {
		d.rejectedOnce = true
		return buildExtendedStatusReply(extended, 0x0109, uint16(d.RejectSizesAbove)), nil
	}

	d.connID = ourConnID
	d.theirConnID = theirConnID
	d.connected = true

	reply := make([]byte, cpfUnconnectedHeaderSize+8)
	writeUnconnectedCPFHeader(reply, 8)
	off = cpfUnconnectedHeaderSize
	reply[off] = service | replyFlag
	reply[off+1] = 0 // reserved
	reply[off+2] = 0 // status OK
	reply[off+3] = 0 // status size words
	// ab2cip.processForwardOpenResponse reads the single connection
	// id that follows as the O->T id it must echo in every
	// subsequent connected frame; the device-assigned id is that one.
	binary.LittleEndian.PutUint32(reply[off+4:off+8], theirConnID)
	return reply, nil
}

func (d *Device) forwardCloseReply() ([]byte, error) {
	d.connected = false
	reply := make([]byte, cpfUnconnectedHeaderSize+4)
	writeUnconnectedCPFHeader(reply, 4)
	off := cpfUnconnectedHeaderSize
	reply[off] = serviceForwardClose | replyFlag
	reply[off+1] = 0
	reply[off+2] = 0 // status OK
	reply[off+3] = 0
	return reply, nil
}

func (d *Device) exchangeConnected(req []byte) ([]byte, error) {
	if len(req) < cpfConnectedHeaderSize+2 {
		return nil, fmt.Errorf("simdevice: connected request too short (%d bytes)", len(req))
	}
	payload := req[cpfConnectedHeaderSize+2:]
	if len(payload) < 13 || payload[0] != serviceExecutePCCC {
		return nil, fmt.Errorf("simdevice: unrecognized connected service")
	}

	// Echo a success reply: service|reply, reserved, status 0,
	// extended status word count 0, then the 7-byte requester id
	// echoed back unchanged, matching ab2pccc's respHeaderSize. The
	// PCCC command bytes after the 13-byte request header follow as
	// the reply body, unchanged.
	body := make([]byte, 11, 11+len(payload)-13)
	body[0] = serviceExecutePCCC | replyFlag
	copy(body[4:11], payload[6:13])
	body = append(body, payload[13:]...)
	return d.wrapConnected(body), nil
}

// wrapConnected frames body inside the connected CPF header this
// module's ab2cip layer expects ProcessResponse to consume: address
// item (4-byte connection id) + data item (2-byte sequence + body).
func (d *Device) wrapConnected(body []byte) []byte {
	dataLen := 2 + len(body)
	out := make([]byte, cpfConnectedHeaderSize+2+len(body))
	off := 0
	binary.LittleEndian.PutUint32(out[off:], 0) // interface handle
	off += 4
	binary.LittleEndian.PutUint16(out[off:], 0) // router timeout
	off += 2
	binary.LittleEndian.PutUint16(out[off:], 2) // item count
	off += 2
	binary.LittleEndian.PutUint16(out[off:], 0x00A1) // connected address item
	off += 2
	binary.LittleEndian.PutUint16(out[off:], 4)
	off += 2
	binary.LittleEndian.PutUint32(out[off:], d.theirConnID)
	off += 4
	binary.LittleEndian.PutUint16(out[off:], 0x00B1) // connected data item
	off += 2
	binary.LittleEndian.PutUint16(out[off:], uint16(dataLen))
	off += 2
	binary.LittleEndian.PutUint16(out[off:], 0) // sequence id, unchecked by ProcessResponse
	off += 2
	copy(out[off:], body)
	return out
}

// assignConnID derives the device's own O->T connection id from the
// originator's T->O id so successive exchanges are deterministic
// without needing a random source in this offline double.
func (d *Device) assignConnID(theirs uint32) uint32 {
	return theirs ^ 0xA5A5A5A5
}

func writeUnconnectedCPFHeader(buf []byte, dataItemLen int) {
	off := 0
	binary.LittleEndian.PutUint32(buf[off:], 0) // interface handle
	off += 4
	binary.LittleEndian.PutUint16(buf[off:], 0) // router timeout
	off += 2
	binary.LittleEndian.PutUint16(buf[off:], 2) // item count
	off += 2
	binary.LittleEndian.PutUint16(buf[off:], 0) // null address type
	off += 2
	binary.LittleEndian.PutUint16(buf[off:], 0) // null address length
	off += 2
	binary.LittleEndian.PutUint16(buf[off:], 0x00B2) // unconnected data item
	off += 2
	binary.LittleEndian.PutUint16(buf[off:], uint16(dataItemLen))
}

// forwardOpenRequestedSize reads back the O->T connection parameter
// word ab2cip wrote near the end of the Forward Open request, so the
// simulator can decide whether to reject it.
func forwardOpenRequestedSize(req []byte, extended bool) (int, bool) {
	// From the service byte: path(5) + priority(1) + timeout(1) +
	// O->T id(4) + T->O id(4) + seq(2) + vendor(2) + serial(4) +
	// mult(1) + reserved(3) + O->T RPI(4) lands on the O->T
	// connection parameter field.
	off := cpfUnconnectedHeaderSize + 1 + 5 + 1 + 1 + 4 + 4 + 2 + 2 + 4 + 1 + 3 + 4
	if extended {
		if off+4 > len(req) {
			return 0, false
		}
		return int(binary.LittleEndian.Uint32(req[off:off+4]) & 0x0000FFFF), true
	}
	if off+2 > len(req) {
		return 0, false
	}
	return int(binary.LittleEndian.Uint16(req[off : off+2]) & 0x01FF), true
}

func buildExtendedStatusReply(extended bool, extStatus uint16, supported uint16) []byte {
	service := byte(serviceForwardOpen)
	if extended {
		service = serviceForwardOpenEx
	}
	reply := make([]byte, cpfUnconnectedHeaderSize+8)
	writeUnconnectedCPFHeader(reply, 8)
	off := cpfUnconnectedHeaderSize
	reply[off] = service | replyFlag
	reply[off+1] = 0
	reply[off+2] = 0x01 // status extended
	reply[off+3] = 0x02 // status size words
	binary.LittleEndian.PutUint16(reply[off+4:off+6], extStatus)
	binary.LittleEndian.PutUint16(reply[off+6:off+8], supported)
	return reply
}
