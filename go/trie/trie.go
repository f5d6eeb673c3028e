// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package trie computes Merkle-Patricia trie root hashes of in-memory
// key/value sets. Nodes are never persisted, the full trie is rebuilt on
// every computation.
package trie

import (
	"github.com/Fantom-foundation/stf/go/stf"
	"github.com/ethereum/go-ethereum/rlp"
)

// EmptyRootHash is the root hash of a trie without entries, which is the
// keccak hash of the encoding of an empty byte string.
var EmptyRootHash = stf.Keccak256([]byte{0x80})

// Entry is a single key/value pair to be committed to by a trie. Empty
// values are not allowed since they are indistinguishable from absent keys.
type Entry struct {
	Key   []byte
	Value []byte
}

type nibbleEntry struct {
	path  []byte
	value []byte
}

// ComputeRootHash computes the root hash of a trie containing the given
// entries. The order of the entries is irrelevant. Keys must be unique.
func ComputeRootHash(entries []Entry) stf.Hash {
	if len(entries) == 0 {
		return EmptyRootHash
	}
	list := make([]nibbleEntry, 0, len(entries))
	for _, entry := range entries {
		list = append(list, nibbleEntry{path: KeyToNibbles(entry.Key), value: entry.Value})
	}
	return stf.Keccak256(encodeNode(list, 0))
}

// encodeNode produces the RLP encoding of the node covering the given
// entries, all of which share the first depth nibbles of their paths.
func encodeNode(entries []nibbleEntry, depth int) []byte {
	if len(entries) == 1 {
		entry := entries[0]
		return mustEncode([]any{
			HexPrefixEncode(entry.path[depth:], true),
			entry.value,
		})
	}

	if shared := sharedPrefixLength(entries, depth); shared > 0 {
		return mustEncode([]any{
			HexPrefixEncode(entries[0].path[depth:depth+shared], false),
			reference(encodeNode(entries, depth+shared)),
		})
	}

	var children [16][]nibbleEntry
	var value []byte
	for _, entry := range entries {
		if len(entry.path) == depth {
			value = entry.value
			continue
		}
		nibble := entry.path[depth]
		children[nibble] = append(children[nibble], entry)
	}

	items := make([]any, 17)
	for i, child := range children {
		if len(child) == 0 {
			items[i] = []byte{}
		} else {
			items[i] = reference(encodeNode(child, depth+1))
		}
	}
	items[16] = value
	if value == nil {
		items[16] = []byte{}
	}
	return mustEncode(items)
}

// reference converts the encoding of a child node into the form it is
// embedded into its parent: nodes with an encoding shorter than 32 bytes are
// inlined, larger nodes are referenced by their hash.
func reference(encoded []byte) any {
	if len(encoded) < 32 {
		return rlp.RawValue(encoded)
	}
	hash := stf.Keccak256(encoded)
	return hash[:]
}

// sharedPrefixLength computes the length of the common prefix of all paths
// starting at the given depth.
func sharedPrefixLength(entries []nibbleEntry, depth int) int {
	first := entries[0].path[depth:]
	shared := len(first)
	for _, entry := range entries[1:] {
		path := entry.path[depth:]
		if len(path) < shared {
			shared = len(path)
		}
		for i := 0; i < shared; i++ {
			if path[i] != first[i] {
				shared = i
				break
			}
		}
		if shared == 0 {
			return 0
		}
	}
	return shared
}

func mustEncode(value any) []byte {
	res, err := rlp.EncodeToBytes(value)
	if err != nil {
		// lists of byte strings and raw values are always encodable
		panic(err)
	}
	return res
}

// OrderedListRoot computes the root hash of a trie mapping the RLP encoding
// of each index to the respective item, as used for the transaction and
// receipt roots of a block.
func OrderedListRoot(items [][]byte) stf.Hash {
	entries := make([]Entry, 0, len(items))
	for i, item := range items {
		entries = append(entries, Entry{Key: mustEncode(uint64(i)), Value: item})
	}
	return ComputeRootHash(entries)
}
