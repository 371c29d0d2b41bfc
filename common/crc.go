// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package common contains code shared by the Sensirion sensor drivers: the
// CRC-8 checksum that frames every data word on the wire, the command
// transaction helper, and the digital-to-physical unit conversions.
package common

// CRC8 calculates the 8-bit CRC of the byte slice parameter and returns the
// calculated value. Sensirion sensors protect every 16-bit data word with
// this checksum: polynomial 0x31, initial value 0xFF, MSB first, no final
// XOR. The algorithm is dictated by the sensor firmware and must match it
// bit-for-bit.
func CRC8(bytes []byte) byte {
	var crc byte = 0xff
	for _, val := range bytes {
		crc ^= val
		for i := 0; i < 8; i++ {
			if (crc & 0x80) == 0 {
				crc <<= 1
			} else {
				crc = (byte)((crc << 1) ^ 0x31)
			}
		}
	}
	return crc
}

// VerifyCRC8 recomputes the checksum of word and compares it with the
// received checksum byte.
func VerifyCRC8(word []byte, checksum byte) bool {
	return CRC8(word) == checksum
}
