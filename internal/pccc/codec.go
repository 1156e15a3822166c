package pccc

// PCCC message encoding and decoding.
//
// PCCC messages have this structure when tunneled via CIP Execute PCCC (0x4B):
//   CMD (1) | STS (1) | TNS (2 LE) | [FNC (1)] | [Data...]
//
// The CMD byte determines whether FNC is present (CmdExtended uses FNC,
// simple commands like CmdProtectedRead/Write do not).

import (
	"encoding/binary"
	"fmt"
)

// MinRequestLen is the minimum PCCC request length (CMD + STS + TNS).
const MinRequestLen = 4

// EncodeRequest encodes a PCCC request into bytes.
func EncodeRequest(req Request) []byte {
	size := 4 // CMD + STS + TNS
	hasFnc := req.Command.HasFunctionCode()
	if hasFnc {
		size++ // FNC byte
	}
	size += len(req.Data)

	buf := make([]byte, size)
	buf[0] = uint8(req.Command)
	buf[1] = req.Status
	binary.LittleEndian.PutUint16(buf[2:4], req.TNS)

	offset := 4
	if hasFnc {
		buf[offset] = uint8(req.Function)
		offset++
	}
	copy(buf[offset:], req.Data)

	return buf
}

// DecodeRequest decodes a PCCC request from bytes.
func DecodeRequest(data []byte) (Request, error) {
	if len(data) < MinRequestLen {
		return Request{}, fmt.Errorf("PCCC request too short: %d bytes (minimum %d)", len(data), MinRequestLen)
	}

	req := Request{
		Command: Command(data[0]),
		Status:  data[1],
		TNS:     binary.LittleEndian.Uint16(data[2:4]),
	}

	offset := 4
	if req.Command.HasFunctionCode() {
		if len(data) < 5 {
			return Request{}, fmt.Errorf("PCCC extended command missing function code")
		}
		req.Function = FunctionCode(data[offset])
		offset++
	}

	if offset < len(data) {
		req.Data = make([]byte, len(data)-offset)
		copy(req.Data, data[offset:])
	}

	return req, nil
}

// DecodeResponse decodes a PCCC response from bytes.
func DecodeResponse(data []byte) (Response, error) {
	if len(data) < MinRequestLen {
		return Response{}, fmt.Errorf("PCCC response too short: %d bytes (minimum %d)", len(data), MinRequestLen)
	}

	resp := Response{
		Command: Command(data[0]),
		Status:  data[1],
		TNS:     binary.LittleEndian.Uint16(data[2:4]),
	}

	offset := 4
	if resp.Command.HasFunctionCode() {
		if len(data) < 5 {
			return Response{}, fmt.Errorf("PCCC extended response missing function code")
		}
		resp.Function = FunctionCode(data[offset])
		offset++
	}

	if resp.Status != 0 && offset < len(data) {
		resp.ExtSTS = data[offset]
		offset++
	}

	if offset < len(data) {
		resp.Data = make([]byte, len(data)-offset)
		copy(resp.Data, data[offset:])
	}

	return resp, nil
}

// TypedReadRequest builds a Typed Read request (CMD 0x0F, FNC 0x68).
func TypedReadRequest(tns uint16, addr Address, byteCount uint8) Request {
	data := buildAddressData(addr, byteCount)
	return Request{
		Command:  CmdExtended,
		Status:   0,
		TNS:      tns,
		Function: FncTypedRead,
		Data:     data,
	}
}

// TypedWriteRequest builds a Typed Write request (CMD 0x0F, FNC 0x67).
func TypedWriteRequest(tns uint16, addr Address, writeData []byte) Request {
	data := buildAddressData(addr, uint8(len(writeData)))
	data = append(data, writeData...)
	return Request{
		Command:  CmdExtended,
		Status:   0,
		TNS:      tns,
		Function: FncTypedWrite,
		Data:     data,
	}
}

// EchoRequest builds an Echo request (CMD 0x0F, FNC 0x06).
func EchoRequest(tns uint16, payload []byte) Request {
	return Request{
		Command:  CmdExtended,
		Status:   0,
		TNS:      tns,
		Function: FncEcho,
		Data:     payload,
	}
}

// buildAddressData encodes the address fields for typed read/write.
// Format: byte_count(1), file_number(1), file_type(1), element(1), [sub_element(1)];
// when element > 255 the element field is element_lo(1), element_hi(1).
func buildAddressData(addr Address, byteCount uint8) []byte {
	// For element > 255, use 3-address format
	if addr.Element > 255 {
		data := make([]byte, 5)
		data[0] = byteCount
		data[1] = addr.FileNumber
		data[2] = uint8(addr.FileType)
		data[3] = uint8(addr.Element & 0xFF)
		data[4] = uint8(addr.Element >> 8)
		if addr.HasSub {
			data = append(data, addr.SubElement)
		}
		return data
	}

	data := make([]byte, 4)
	data[0] = byteCount
	data[1] = addr.FileNumber
	data[2] = uint8(addr.FileType)
	data[3] = uint8(addr.Element)
	if addr.HasSub {
		data = append(data, addr.SubElement)
	}
	return data
}
