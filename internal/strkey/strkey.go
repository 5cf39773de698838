// Package strkey implements Stellar strkey encoding for the address kinds
// this project cares about: ed25519 account ids (G...) and contract ids (C...).
package strkey

import (
	"encoding/base32"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
)

// Strkey version bytes.
const (
	VersionAccount  byte = 6 << 3 // 'G'
	VersionContract byte = 2 << 3 // 'C'
)

const payloadLen = 32

var b32 = base32.StdEncoding.WithPadding(base32.NoPadding)

// Errors returned by Decode.
var (
	ErrInvalidLength   = errors.New("invalid strkey length")
	ErrInvalidVersion  = errors.New("invalid strkey version byte")
	ErrInvalidChecksum = errors.New("invalid strkey checksum")
)

// Encode encodes a 32-byte payload under the given version byte.
func Encode(version byte, payload []byte) (string, error) {
	if len(payload) != payloadLen {
		return "", fmt.Errorf("payload must be %d bytes, got %d", payloadLen, len(payload))
	}

	raw := make([]byte, 0, 1+payloadLen+2)
	raw = append(raw, version)
	raw = append(raw, payload...)

	sum := crc16(raw)
	raw = append(raw, byte(sum&0xff), byte(sum>>8))

	return b32.EncodeToString(raw), nil
}

// Decode decodes a strkey and verifies its version byte and checksum.
func Decode(version byte, s string) ([]byte, error) {
	raw, err := b32.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode base32: %w", err)
	}
	if len(raw) != 1+payloadLen+2 {
		return nil, ErrInvalidLength
	}

	if raw[0] != version {
		return nil, ErrInvalidVersion
	}

	body := raw[:len(raw)-2]
	sum := uint16(raw[len(raw)-2]) | uint16(raw[len(raw)-1])<<8
	if crc16(body) != sum {
		return nil, ErrInvalidChecksum
	}

	payload := make([]byte, payloadLen)
	copy(payload, raw[1:1+payloadLen])
	return payload, nil
}

// IsValidContractID reports whether s is a well-formed contract address.
func IsValidContractID(s string) bool {
	_, err := Decode(VersionContract, s)
	return err == nil
}

// IsValidAccountID reports whether s is a well-formed ed25519 account id.
// Beyond the checksum, the payload must decode to a point on the curve.
func IsValidAccountID(s string) bool {
	payload, err := Decode(VersionAccount, s)
	if err != nil {
		return false
	}
	_, err = new(edwards25519.Point).SetBytes(payload)
	return err == nil
}

// crc16 computes CRC16-XModem (polynomial 0x1021, initial value 0).
func crc16(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
