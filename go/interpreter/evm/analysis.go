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
	"fmt"

	"github.com/Fantom-foundation/stf/go/stf"
	"github.com/Fantom-foundation/stf/go/stf/vm"
	lru "github.com/hashicorp/golang-lru/v2"
)

// jumpDestinations is a bit-set marking the code positions holding a
// JUMPDEST instruction. Bytes inside PUSH data are never marked.
type jumpDestinations []uint64

func analyzeJumpDestinations(code []byte) jumpDestinations {
	res := make(jumpDestinations, (len(code)+63)/64)
	for i := 0; i < len(code); i++ {
		op := vm.OpCode(code[i])
		if op == vm.JUMPDEST {
			res[i/64] |= 1 << (i % 64)
		} else if op.IsPush() {
			i += op.Width() - 1
		}
	}
	return res
}

func (d jumpDestinations) isJumpDest(pos uint64) bool {
	index := pos / 64
	if index >= uint64(len(d)) {
		return false
	}
	return d[index]&(1<<(pos%64)) != 0
}

const defaultJumpCacheSize = 1 << 12

// analyzer computes jump destinations of contract codes. Results of codes
// with a known hash are cached.
type analyzer struct {
	cache *lru.Cache[stf.Hash, jumpDestinations]
}

// newAnalyzer creates an analyzer retaining up to cacheSize results. If the
// size is zero, a default size is used. If negative, no cache is used.
func newAnalyzer(cacheSize int) (*analyzer, error) {
	if cacheSize < 0 {
		return &analyzer{}, nil
	}
	if cacheSize == 0 {
		cacheSize = defaultJumpCacheSize
	}
	cache, err := lru.New[stf.Hash, jumpDestinations](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create jump destination cache: %w", err)
	}
	return &analyzer{cache: cache}, nil
}

// analyze returns the jump destinations of the given code. If a hash is
// provided, it is assumed to be the hash of the code and used as cache key.
func (a *analyzer) analyze(code stf.Code, codeHash *stf.Hash) jumpDestinations {
	if a.cache == nil || codeHash == nil {
		return analyzeJumpDestinations(code)
	}
	if res, found := a.cache.Get(*codeHash); found {
		return res
	}
	res := analyzeJumpDestinations(code)
	a.cache.Add(*codeHash, res)
	return res
}
