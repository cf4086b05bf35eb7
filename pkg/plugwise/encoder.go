// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Stroomlab

package plugwise

// Request is a typed outbound message. Implementations build the ASCII-hex
// field characters that follow the message code.
type Request interface {
	Code() Code
	fields() []byte
}

// Marshal renders a request to its complete wire form: header, code,
// fields, CRC and footer. It fails with EncodingError when the message
// body exceeds the protocol limit.
func Marshal(req Request) ([]byte, error) {
	var w fieldWriter
	w.uint16(uint16(req.Code()))
	payload := append(w.buf, req.fields()...)

	if len(payload) > MaxPayloadChars {
		return nil, &EncodingError{
			Code:   req.Code(),
			Reason: "payload exceeds protocol maximum",
		}
	}
	return frameBytes(payload), nil
}

// frameBytes wraps a finished payload in header, CRC and footer.
func frameBytes(payload []byte) []byte {
	out := make([]byte, 0, len(frameHeader)+len(payload)+crcChars+len(frameFooter))
	out = append(out, frameHeader[:]...)
	out = append(out, payload...)

	var crcW fieldWriter
	crcW.uint16(CalculateCRC(payload))
	out = append(out, crcW.buf...)
	out = append(out, frameFooter[:]...)
	return out
}
