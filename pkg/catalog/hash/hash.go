// Taganrog Catalog
// Copyright (c) 2026 The Taganrog Catalog Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Taganrog Catalog.
//
// Taganrog Catalog is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Taganrog Catalog is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Taganrog Catalog.  If not, see <http://www.gnu.org/licenses/>.

// Package hash computes the content fingerprint used as a Media's primary
// key. A fixed 128-bit non-cryptographic hash is rendered as 32 lowercase
// hex characters; identical bytes always produce the identical id.
package hash

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/twmb/murmur3"
)

// Len is the fixed length of a rendered id.
const Len = 32

// Bytes computes the content fingerprint of b and renders it as lowercase hex.
func Bytes(b []byte) string {
	h1, h2 := murmur3.Sum128(b)
	var digest [16]byte
	binary.LittleEndian.PutUint64(digest[0:8], h1)
	binary.LittleEndian.PutUint64(digest[8:16], h2)
	return hex.EncodeToString(digest[:])
}

// String computes the content fingerprint of s's UTF-8 bytes.
func String(s string) string {
	return Bytes([]byte(s))
}
