package ab2cip

import (
	"fmt"

	"github.com/ab2link/ab2link/internal/layer"
)

// ProcessResponse implements layer.Layer. In disconnected mode it
// parses the fixed unconnected CPF prefix and, if the reply matches
// the request this layer issued, dispatches to the Forward Open or
// Forward Close response state machine. In connected mode it simply
// advances past the connected CPF prefix for upper layers to
// interpret.
func (l *Layer) ProcessResponse(f *layer.Frame) layer.Result {
	if l.next != nil {
		if r := l.next.ProcessResponse(f); !r.Ok() {
			return r
		}
	}

	if l.connected {
		f.Start += cpfConnectedHeaderSize + 2
		return layer.Result{Code: layer.OK}
	}

	off := f.Start
	if off+cpfUnconnectedHeaderSize > f.Cap() {
		return layer.Result{Code: layer.Partial}
	}

	off += 4 // interface handle
	off += 2 // router timeout
	off += 2 // CPF item count
	off += 2 // null address type
	off += 2 // null address length
	off += 2 // unconnected data item type
	off += 2 // unconnected data item length (cpf payload size, unused here)

	service, _, ok := f.GetUint8(off)
	if !ok {
		return layer.Result{Code: layer.Partial}
	}

	switch service {
	case ServiceForwardOpen | replyFlag, ServiceForwardOpenEx | replyFlag:
		f.Start = off
		return l.processForwardOpenResponse(f)
	case ServiceForwardClose | replyFlag:
		f.Start = off
		return l.processForwardCloseResponse(f)
	default:
		f.Start += cpfUnconnectedHeaderSize
		return layer.Result{Code: layer.OK}
	}
}

// processForwardOpenResponse implements the Forward Open
// retry/negotiation state machine: standard-to-extended payload
// renegotiation and duplicate-connection-id retry.
func (l *Layer) processForwardOpenResponse(f *layer.Frame) layer.Result {
	off := f.Start

	_, off, ok := f.GetUint8(off) // reply service, consumed
	if !ok {
		return layer.Result{Code: layer.Partial}
	}
	reserved, off, ok := f.GetUint8(off)
	if !ok {
		return layer.Result{Code: layer.Partial}
	}
	_ = reserved // ignored: a non-zero value is neither logged nor rejected

	status, off, ok := f.GetUint8(off)
	if !ok {
		return layer.Result{Code: layer.Partial}
	}
	statusSizeWords, off, ok := f.GetUint8(off)
	if !ok {
		return layer.Result{Code: layer.Partial}
	}

	switch status {
	case statusOK:
		connID, newOff, ok := f.GetUint32LE(off)
		if !ok {
			return layer.Result{Code: layer.Partial}
		}
		off = newOff
		l.plcConnectionID = connID

		budget := payloadHeaderFudge + l.cipPayload
		if l.cipPayloadEx > l.cipPayload {
			budget = payloadHeaderFudge + l.cipPayloadEx
		}
		if err := l.plc.SetBufferSize(budget); err != nil {
			return layer.Result{Code: layer.NoMem, Err: fmt.Errorf("ab2cip: raise receive buffer: %w", err)}
		}

		l.connected = true
		f.Start = f.End
		return layer.Result{Code: layer.OK}

	case statusExtended:
		if statusSizeWords < 2 {
			return remoteErrResult(status, 0)
		}
		extStatus, newOff, ok := f.GetUint16LE(off)
		if !ok {
			return layer.Result{Code: layer.Partial}
		}
		off = newOff

		switch extStatus {
		case extInvalidConnectionSize:
			supported, _, ok := f.GetUint16LE(off)
			if !ok {
				return layer.Result{Code: layer.Partial}
			}
			if l.forwardOpenExEnabled {
				l.cipPayloadEx = int(supported)
			} else {
				size := int(supported)
				if size > maxStdConnParam {
					size = maxStdConnParam
				}
				l.cipPayload = size
			}
			return retryResult()
		case extDuplicateConnectionID:
			if err := l.regenerateConnID(); err != nil {
				return layer.Result{Code: layer.NoMem, Err: err}
			}
			return retryResult()
		default:
			return remoteErrResult(status, extStatus)
		}

	case statusServiceUnsupported:
		if l.forwardOpenExEnabled {
			l.forwardOpenExEnabled = false
			return retryResult()
		}
		return remoteErrResult(status, 0)

	case statusInsufficientResrc:
		if l.forwardOpenExEnabled {
			if l.cipPayloadEx > CIPStdExPayload {
				l.cipPayloadEx = CIPStdExPayload
			} else if l.cipPayloadEx > CIPStdPayload {
				l.cipPayloadEx = CIPStdPayload
			} else {
				l.forwardOpenExEnabled = false
				if l.cipPayload == 0 {
					l.cipPayload = CIPStdPayload
				}
			}
			return retryResult()
		}
		return remoteErrResult(status, 0)

	default:
		return remoteErrResult(status, 0)
	}
}

func retryResult() layer.Result { return layer.Result{Code: layer.Retry} }

func remoteErrResult(status uint8, ext uint16) layer.Result {
	return layer.Result{Code: layer.RemoteErr, Status: status, ExtendedStatus: ext}
}

// processForwardCloseResponse decodes a Forward Close reply and maps
// its general status to a layer.Result.
func (l *Layer) processForwardCloseResponse(f *layer.Frame) layer.Result {
	l.connected = false

	off := f.Start
	_, off, ok := f.GetUint8(off) // reply service, consumed
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
	statusSizeWords, off, ok := f.GetUint8(off)
	if !ok {
		return layer.Result{Code: layer.Partial}
	}

	if status == statusOK {
		f.Start = f.End
		return layer.Result{Code: layer.OK}
	}

	var ext uint16
	if statusSizeWords >= 1 {
		if v, _, ok := f.GetUint16LE(off); ok {
			ext = v
		}
	}
	return remoteErrResult(status, ext)
}
