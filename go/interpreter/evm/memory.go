// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package evm

import (
	"math"

	"github.com/Fantom-foundation/stf/go/stf"
	"github.com/holiman/uint256"
)

// maxMemoryExpansionSize is the largest memory size for which expansion
// costs are computed. The costs of larger memories exceed any gas budget.
const maxMemoryExpansionSize = 0x1FFFFFFFE0

// Memory is the byte-addressable, zero-initialized scratch memory of a call
// frame. It grows in 32-byte words and keeps track of the expansion costs
// paid so far.
type Memory struct {
	store             []byte
	currentMemoryCost stf.Gas
}

func NewMemory() *Memory {
	return &Memory{}
}

// MemoryExpansionCost is the total cost of a memory of the given number of
// words: 3w + w²/512.
func MemoryExpansionCost(words uint64) stf.Gas {
	return stf.Gas(3*words + (words*words)/512)
}

func (m *Memory) length() uint64 {
	return uint64(len(m.store))
}

// getExpansionCosts returns the gas to be paid for growing the memory to
// cover the given size. If the memory is large enough already, no costs are
// incurred.
func (m *Memory) getExpansionCosts(size uint64) stf.Gas {
	if m.length() >= size {
		return 0
	}
	if size > maxMemoryExpansionSize {
		return stf.Gas(math.MaxInt64)
	}
	return MemoryExpansionCost(stf.SizeInWords(size)) - m.currentMemoryCost
}

// expandMemory grows the memory to cover [offset, offset+size), charging the
// expansion costs to the given context. Accesses of size zero never expand
// the memory, independent of the offset.
func (m *Memory) expandMemory(offset, size uint64, c *context) error {
	if size == 0 {
		return nil
	}
	needed := offset + size
	if needed < offset {
		return errOverflow
	}
	if m.length() >= needed {
		return nil
	}
	fee := m.getExpansionCosts(needed)
	if err := c.useGas(fee); err != nil {
		return err
	}
	words := stf.SizeInWords(needed)
	m.currentMemoryCost = MemoryExpansionCost(words)
	m.store = append(m.store, make([]byte, words*32-m.length())...)
	return nil
}

// getSlice obtains a slice of size bytes from the memory at the given offset.
// The returned slice is backed by the memory's internal data and is
// invalidated by any subsequent expansion.
func (m *Memory) getSlice(offset, size uint64, c *context) ([]byte, error) {
	if err := m.expandMemory(offset, size, c); err != nil {
		return nil, err
	}
	if size == 0 {
		return nil, nil
	}
	return m.store[offset : offset+size], nil
}

// set copies the given data into the memory at the given offset, expanding
// the memory if needed.
func (m *Memory) set(offset uint64, data []byte, c *context) error {
	target, err := m.getSlice(offset, uint64(len(data)), c)
	if err != nil {
		return err
	}
	copy(target, data)
	return nil
}

// readWord reads a 32-byte word from the given offset into the target.
func (m *Memory) readWord(offset uint64, target *uint256.Int, c *context) error {
	data, err := m.getSlice(offset, 32, c)
	if err != nil {
		return err
	}
	target.SetBytes32(data)
	return nil
}
