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
	"github.com/holiman/uint256"
)

func TestStack_PushPopAndPeek(t *testing.T) {
	s := newStack()
	defer returnStack(s)

	s.push(uint256.NewInt(1))
	s.push(uint256.NewInt(2))
	s.pushUndefined().SetUint64(3)

	if want, got := 3, s.len(); want != got {
		t.Fatalf("unexpected stack size, wanted %d, got %d", want, got)
	}
	if want, got := uint64(3), s.peek().Uint64(); want != got {
		t.Errorf("unexpected top, wanted %d, got %d", want, got)
	}
	if want, got := uint64(1), s.peekN(2).Uint64(); want != got {
		t.Errorf("unexpected element, wanted %d, got %d", want, got)
	}
	if want, got := uint64(3), s.pop().Uint64(); want != got {
		t.Errorf("unexpected popped element, wanted %d, got %d", want, got)
	}
}

func TestStack_DupAndSwap(t *testing.T) {
	s := newStack()
	defer returnStack(s)
	for i := uint64(1); i <= 4; i++ {
		s.push(uint256.NewInt(i))
	}

	s.swap(3)
	if want, got := uint64(1), s.peek().Uint64(); want != got {
		t.Errorf("unexpected top after swap, wanted %d, got %d", want, got)
	}
	if want, got := uint64(4), s.peekN(3).Uint64(); want != got {
		t.Errorf("unexpected element after swap, wanted %d, got %d", want, got)
	}

	s.dup(2)
	if want, got := 5, s.len(); want != got {
		t.Fatalf("unexpected stack size, wanted %d, got %d", want, got)
	}
	if want, got := uint64(2), s.peek().Uint64(); want != got {
		t.Errorf("unexpected top after dup, wanted %d, got %d", want, got)
	}
}

func TestStack_ReturnedStacksAreEmpty(t *testing.T) {
	s := newStack()
	s.push(uint256.NewInt(1))
	returnStack(s)
	if s.len() != 0 {
		t.Errorf("returned stack should be empty")
	}
}

func TestCheckStackLimits(t *testing.T) {
	add := &jumpTable[0x01]
	dup16 := &jumpTable[0x8F]
	tests := map[string]struct {
		op       *operation
		stackLen int
		want     error
	}{
		"add-underflow":  {add, 1, errStackUnderflow},
		"add-ok":         {add, 2, nil},
		"add-full":       {add, 1024, nil},
		"dup-underflow":  {dup16, 15, errStackUnderflow},
		"dup-ok":         {dup16, 1023, nil},
		"dup-overflow":   {dup16, 1024, errStackOverflow},
		"invalid-no-arg": {&jumpTable[0xFE], 0, nil},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			if got := checkStackLimits(test.stackLen, test.op); got != test.want {
				t.Errorf("unexpected result, wanted %v, got %v", test.want, got)
			}
		})
	}
}

func TestJumpTable_PushesAreLimitedByStackSize(t *testing.T) {
	for op := 0x5F; op <= 0x7F; op++ {
		operation := &jumpTable[op]
		if want, got := stf.Gas(3), operation.constantGas; op != 0x5F && want != got {
			t.Errorf("unexpected gas price for 0x%x, wanted %d, got %d", op, want, got)
		}
		if err := checkStackLimits(maxStackSize, operation); err != errStackOverflow {
			t.Errorf("push 0x%x on a full stack should overflow, got %v", op, err)
		}
	}
}
