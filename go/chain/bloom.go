// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package chain

import (
	"github.com/Fantom-foundation/stf/go/stf"
	"github.com/ethereum/go-ethereum/core/types"
)

// Bloom is the 2048-bit filter summarizing the addresses and topics of the
// logs of a receipt or a block.
type Bloom [types.BloomByteLength]byte

// LogsBloom computes the bloom filter covering the given logs.
func LogsBloom(logs []stf.Log) Bloom {
	var bloom types.Bloom
	for _, log := range logs {
		bloom.Add(log.Address[:])
		for _, topic := range log.Topics {
			bloom.Add(topic[:])
		}
	}
	return Bloom(bloom)
}

// Merge adds all entries of the other filter to this filter.
func (b *Bloom) Merge(other Bloom) {
	for i := range b {
		b[i] |= other[i]
	}
}

// Test reports whether the given address or topic may be covered.
func (b Bloom) Test(data []byte) bool {
	return types.Bloom(b).Test(data)
}
