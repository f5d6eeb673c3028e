// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package trie

// KeyToNibbles splits every byte of the key into its high and low nibble.
func KeyToNibbles(key []byte) []byte {
	res := make([]byte, 2*len(key))
	for i, cur := range key {
		res[2*i] = cur >> 4
		res[2*i+1] = cur & 0x0f
	}
	return res
}

// HexPrefixEncode packs a nibble sequence into bytes. The first nibble of the
// result is a flag: 0 for extension paths and 2 for leaf paths, incremented
// by one if the number of nibbles is odd. Odd paths store their first nibble
// next to the flag, even paths pad the flag with a zero nibble.
func HexPrefixEncode(nibbles []byte, leaf bool) []byte {
	flag := byte(0)
	if leaf {
		flag = 2
	}
	res := make([]byte, len(nibbles)/2+1)
	if len(nibbles)%2 == 1 {
		res[0] = (flag+1)<<4 | nibbles[0]
		nibbles = nibbles[1:]
	} else {
		res[0] = flag << 4
	}
	for i := 0; i < len(nibbles); i += 2 {
		res[i/2+1] = nibbles[i]<<4 | nibbles[i+1]
	}
	return res
}

// HexPrefixDecode reverses HexPrefixEncode.
func HexPrefixDecode(data []byte) (nibbles []byte, leaf bool) {
	if len(data) == 0 {
		return nil, false
	}
	flag := data[0] >> 4
	leaf = flag&2 != 0
	if flag&1 != 0 {
		nibbles = append(nibbles, data[0]&0x0f)
	}
	return append(nibbles, KeyToNibbles(data[1:])...), leaf
}
