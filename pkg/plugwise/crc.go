// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Stroomlab

package plugwise

// CalculateCRC computes the CRC-16/XMODEM checksum the Circle firmware
// expects: polynomial 0x1021, initial value 0x0000, no reflection. The
// checksum covers the ASCII payload characters between header and CRC
// field.
func CalculateCRC(data []byte) uint16 {
	crc := uint16(crcInitial)
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ crcPolynomial
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
