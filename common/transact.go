// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package common

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/i2c"
)

// Command describes a single operation of a Sensirion command set: the
// opcode bytes, the settle time the sensor needs before the response may be
// read, and the expected response length. Settle times range from about a
// millisecond for register reads up to ten seconds for a self test.
type Command struct {
	// Opcode is 1 byte (SHT2x, SHT4x) or 2 bytes (SHT85, SCD30, SCD4x),
	// written MSB first.
	Opcode []byte
	// Wait is the settle time between the write and the read.
	Wait time.Duration
	// ResponseLen is the number of bytes to read back, 0 for write-only
	// commands. CRC-framed responses are a multiple of 3: two data bytes
	// followed by one checksum byte per word.
	ResponseLen int
}

// PutWords packs words into wire format: each 16-bit value big-endian
// followed by its CRC-8 checksum.
func PutWords(words []uint16) []byte {
	bytes := make([]byte, len(words)*3)
	for ix, val := range words {
		bytes[ix*3] = byte(val >> 8)
		bytes[ix*3+1] = byte(val)
		bytes[ix*3+2] = CRC8(bytes[ix*3 : ix*3+2])
	}
	return bytes
}

// Tx executes one command round trip on the device: it writes the opcode
// plus any CRC-framed argument words, sleeps the settle time, and reads the
// declared response length, returning the decoded 16-bit words.
//
// When check is set, every received word is verified against its trailing
// checksum byte and a mismatch fails the whole transaction with
// ErrChecksum. Sensors report transient bus noise this way; callers that
// prefer availability over strict correctness construct the device with
// checking disabled.
func Tx(d *i2c.Dev, cmd Command, args []uint16, check bool) ([]uint16, error) {
	w := make([]byte, 0, len(cmd.Opcode)+len(args)*3)
	w = append(w, cmd.Opcode...)
	if len(args) > 0 {
		w = append(w, PutWords(args)...)
	}
	if err := d.Tx(w, nil); err != nil {
		return nil, fmt.Errorf("cmd %#x: %w", cmd.Opcode, err)
	}
	time.Sleep(cmd.Wait)
	if cmd.ResponseLen == 0 {
		return nil, nil
	}
	if cmd.ResponseLen%3 != 0 {
		return nil, fmt.Errorf("cmd %#x: response length %d is not a multiple of 3", cmd.Opcode, cmd.ResponseLen)
	}
	r := make([]byte, cmd.ResponseLen)
	if err := d.Tx(nil, r); err != nil {
		return nil, fmt.Errorf("cmd %#x: %w", cmd.Opcode, err)
	}
	words := make([]uint16, cmd.ResponseLen/3)
	for ix := range words {
		if check && !VerifyCRC8(r[ix*3:ix*3+2], r[ix*3+2]) {
			return nil, fmt.Errorf("cmd %#x word %d: %w", cmd.Opcode, ix, ErrChecksum)
		}
		words[ix] = uint16(r[ix*3])<<8 | uint16(r[ix*3+1])
	}
	return words, nil
}

// TxRaw executes a command whose payload or response is not CRC framed,
// such as the single-byte SHT2x user register. The response bytes are
// returned as received.
func TxRaw(d *i2c.Dev, cmd Command, args []byte) ([]byte, error) {
	w := make([]byte, 0, len(cmd.Opcode)+len(args))
	w = append(w, cmd.Opcode...)
	w = append(w, args...)
	if err := d.Tx(w, nil); err != nil {
		return nil, fmt.Errorf("cmd %#x: %w", cmd.Opcode, err)
	}
	time.Sleep(cmd.Wait)
	if cmd.ResponseLen == 0 {
		return nil, nil
	}
	r := make([]byte, cmd.ResponseLen)
	if err := d.Tx(nil, r); err != nil {
		return nil, fmt.Errorf("cmd %#x: %w", cmd.Opcode, err)
	}
	return r, nil
}
