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
	"testing"

	"github.com/Fantom-foundation/stf/go/stf"
)

func TestAnalyzeJumpDestinations_PushDataIsSkipped(t *testing.T) {
	code := []byte{
		0x5b,       // 0: JUMPDEST
		0x60, 0x5b, // 1: PUSH1 0x5b
		0x5b,       // 3: JUMPDEST
		0x7f,       // 4: PUSH32 with truncated data
		0x5b, 0x5b,
	}
	dests := analyzeJumpDestinations(code)
	want := map[uint64]bool{0: true, 3: true}
	for i := uint64(0); i < 100; i++ {
		if want[i] != dests.isJumpDest(i) {
			t.Errorf("unexpected result for position %d, wanted %t", i, want[i])
		}
	}
}

func TestAnalyzeJumpDestinations_LongCode(t *testing.T) {
	code := make([]byte, 200)
	code[64] = 0x5b
	code[199] = 0x5b
	dests := analyzeJumpDestinations(code)
	if !dests.isJumpDest(64) || !dests.isJumpDest(199) || dests.isJumpDest(63) {
		t.Errorf("unexpected jump destinations")
	}
}

func TestAnalyzer_ResultsAreCachedByCodeHash(t *testing.T) {
	a, err := newAnalyzer(0)
	if err != nil {
		t.Fatalf("failed to create analyzer: %v", err)
	}
	code := []byte{0x5b}
	hash := stf.Keccak256(code)
	a.analyze(code, &hash)

	// A different code with the same hash yields the cached result.
	if !a.analyze([]byte{0x00}, &hash).isJumpDest(0) {
		t.Errorf("expected result to be served from the cache")
	}
	if a.analyze([]byte{0x00}, nil).isJumpDest(0) {
		t.Errorf("codes without hash should not be cached")
	}
}

func TestAnalyzer_NegativeSizeDisablesCache(t *testing.T) {
	a, err := newAnalyzer(-1)
	if err != nil {
		t.Fatalf("failed to create analyzer: %v", err)
	}
	hash := stf.Hash{1}
	a.analyze([]byte{0x5b}, &hash)
	if a.analyze([]byte{0x00}, &hash).isJumpDest(0) {
		t.Errorf("results should not be cached")
	}
}
