// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Stroomlab

// Package plugwise provides a client-side protocol engine for the Plugwise
// Circle power-metering mesh.
//
// Circles are relay/power-meter plugs joined in a wireless mesh that is
// coordinated by a Circle+ and reached through a serial-attached USB stick.
// This package implements the frame codec, the request/response transport
// session over the serial byte stream, the pulse-to-power calibration
// arithmetic, and typed device handles (Stick, Circle).
package plugwise

// Frame delimiters. Every frame is the four header bytes, an uppercase
// ASCII-hex payload, four ASCII-hex CRC characters, and a CR LF footer.
var (
	frameHeader = [4]byte{0x05, 0x05, 0x03, 0x03}
	frameFooter = [2]byte{0x0D, 0x0A}
)

// Frame size limits, in payload characters (excluding header and footer).
// The largest documented frame is a power-buffer response at 100 characters;
// the cap bounds the decoder's resynchronization window.
const (
	crcChars      = 4
	codeChars     = 4
	seqChars      = 4
	macChars      = 16
	MaxFrameChars = 256
	// MaxPayloadChars is the longest message body (code + fields) that
	// Marshal accepts for transmission.
	MaxPayloadChars = MaxFrameChars - crcChars
)

// CRC-16/XMODEM configuration, computed over the payload characters only.
const (
	crcPolynomial = 0x1021
	crcInitial    = 0x0000
)

// Code identifies a protocol message type.
type Code uint16

// Message codes. Requests originate from this engine; responses and acks
// originate from the stick or a mesh device.
const (
	CodeAck            Code = 0x0000
	CodeReqInitialize  Code = 0x000A
	CodeResInitialize  Code = 0x0011
	CodeReqPowerUse    Code = 0x0012
	CodeResPowerUse    Code = 0x0013
	CodeReqClockSet    Code = 0x0016
	CodeReqSwitch      Code = 0x0017
	CodeReqInfo        Code = 0x0023
	CodeResInfo        Code = 0x0024
	CodeReqCalibration Code = 0x0026
	CodeResCalibration Code = 0x0027
	CodeReqClockInfo   Code = 0x003E
	CodeResClockInfo   Code = 0x003F
	CodeReqPowerBuffer Code = 0x0048
	CodeResPowerBuffer Code = 0x0049
)

// Ack status values observed from stick firmware. The command acks carry
// the MAC of the device that executed the command.
const (
	AckSuccess  uint16 = 0x00C1
	AckError    uint16 = 0x00C2
	AckTimedOut uint16 = 0x00E1
)

// Circle log buffer layout. The on-board flash stores four hourly pulse
// samples per 32-byte slot starting at a fixed offset; requests and
// responses carry raw memory addresses, the API deals in slot numbers.
const (
	logAddrOffset     = 278528
	logBytesPerPos    = 32
	logSamplesPerSlot = 4
)

// Decoder states (internal).
const (
	stateIdle = iota
	stateHeader
	stateBody
	stateFooter
)
