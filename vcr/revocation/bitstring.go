/*
 * Copyright (C) 2024 Nuts community
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 *
 */

package revocation

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"errors"
	"strings"
)

var errIndexNotInBitstring = errors.New("index not in status list")

// bitstring is a decompressed StatusList2021 list. Bit 0 is the most significant bit of the first byte.
type bitstring []byte

// bit returns the value of the bitstring at statusListIndex, or (false, error) if the requested index is out of bounds.
func (bs bitstring) bit(statusListIndex int) (bool, error) {
	q, r := statusListIndex/8, byte(statusListIndex%8)
	if statusListIndex < 0 || q >= len(bs) {
		return false, errIndexNotInBitstring
	}
	return bs[q]>>(7-r)&1 == 1, nil
}

// setBit sets the value of the bit at statusListIndex, or returns an error when the index is out of bounds.
func (bs bitstring) setBit(statusListIndex int, value bool) error {
	current, err := bs.bit(statusListIndex)
	if err != nil {
		return err
	}
	if current != value {
		bs[statusListIndex/8] ^= 1 << (7 - byte(statusListIndex%8))
	}
	return nil
}

// compress a StatusList2021 bitstring. The input is gzip compressed followed by base64url encoding.
func compress(bs bitstring) (string, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(bs); err != nil {
		return "", err
	}
	if err := gz.Close(); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf.Bytes()), nil
}

// expand a compressed StatusList2021 bitstring. It first applies base64 decoding followed by gzip decompression.
// Both padded and unpadded base64url are accepted, since issuers use both.
func expand(encodedList string) (bitstring, error) {
	compressed, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(encodedList, "="))
	if err != nil {
		return nil, err
	}
	gzr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, err
	}
	var expanded bytes.Buffer
	if _, err = expanded.ReadFrom(gzr); err != nil {
		return nil, err
	}
	return expanded.Bytes(), nil
}
