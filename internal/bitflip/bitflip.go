// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package bitflip diagnoses checksum mismatches caused by a single flipped
// bit.
package bitflip

// iterationLimit bounds the number of bytes examined; each byte costs eight
// checksum computations over the whole slice.
const iterationLimit = 40 << 10 // 40KB

// CheckSliceForBitFlip flips bits in data to see if it matches the expected
// checksum. Returns the index and bit if successful. data is restored before
// returning.
func CheckSliceForBitFlip(
	data []byte, computeChecksum func([]byte) uint32, expectedChecksum uint32,
) (found bool, indexFound int, bitFound int) {
	for i := 0; i < min(len(data), iterationLimit); i++ {
		if ok, bit := checkByteForFlip(data, i, computeChecksum, expectedChecksum); ok {
			return true, i, bit
		}
	}
	return false, 0, 0
}

func checkByteForFlip(
	data []byte, i int, computeChecksum func([]byte) uint32, expectedChecksum uint32,
) (found bool, bit int) {
	for bit := 0; bit < 8; bit++ {
		data[i] ^= 1 << bit
		computed := computeChecksum(data)
		data[i] ^= 1 << bit
		if computed == expectedChecksum {
			return true, bit
		}
	}
	return false, 0
}
