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
	"go.uber.org/mock/gomock"
	"pgregory.net/rand"
)

func newTestContext(runContext stf.RunContext, recipient stf.Address, gas stf.Gas) context {
	return context{
		params: stf.Parameters{
			Recipient: recipient,
			Gas:       gas,
		},
		context: runContext,
		gas:     gas,
		stack:   newStack(),
		memory:  NewMemory(),
	}
}

func TestArithmetic_AddThenSubRestoresValue(t *testing.T) {
	rnd := rand.New(0)
	ctxt := newTestContext(nil, stf.Address{}, 0)
	for i := 0; i < 10_000; i++ {
		var a, b uint256.Int
		for j := range a {
			a[j] = rnd.Uint64()
			b[j] = rnd.Uint64()
		}
		ctxt.stack.push(&a)
		ctxt.stack.push(&b)
		opAdd(&ctxt)
		ctxt.stack.push(&b)
		opSwap := makeSwap(1)
		opSwap(&ctxt)
		opSub(&ctxt)
		if got := ctxt.stack.pop(); !got.Eq(&a) {
			t.Fatalf("(a+b)-b != a for a=%v, b=%v, got %v", &a, &b, got)
		}
	}
}

func TestArithmetic_SignedDivisionOfMinIntByMinusOne(t *testing.T) {
	ctxt := newTestContext(nil, stf.Address{}, 0)
	minInt := new(uint256.Int).Lsh(uint256.NewInt(1), 255)
	minusOne := new(uint256.Int).SetAllOne()
	ctxt.stack.push(minusOne)
	ctxt.stack.push(minInt)
	opSDiv(&ctxt)
	if got := ctxt.stack.pop(); !got.Eq(minInt) {
		t.Errorf("MIN_INT / -1 should be MIN_INT, got %v", got)
	}
}

func TestArithmetic_BinaryOperations(t *testing.T) {
	minusOne := *new(uint256.Int).SetAllOne()
	tests := map[string]struct {
		op   func(*context)
		a, b uint256.Int // a is on top of the stack
		want uint256.Int
	}{
		"add-wraps":     {opAdd, minusOne, *uint256.NewInt(2), *uint256.NewInt(1)},
		"sub":           {opSub, *uint256.NewInt(5), *uint256.NewInt(3), *uint256.NewInt(2)},
		"div-by-zero":   {opDiv, *uint256.NewInt(5), *uint256.NewInt(0), *uint256.NewInt(0)},
		"mod-by-zero":   {opMod, *uint256.NewInt(5), *uint256.NewInt(0), *uint256.NewInt(0)},
		"lt":            {opLt, *uint256.NewInt(1), *uint256.NewInt(2), *uint256.NewInt(1)},
		"gt":            {opGt, *uint256.NewInt(1), *uint256.NewInt(2), *uint256.NewInt(0)},
		"slt-negative":  {opSlt, minusOne, *uint256.NewInt(0), *uint256.NewInt(1)},
		"sgt-negative":  {opSgt, minusOne, *uint256.NewInt(0), *uint256.NewInt(0)},
		"eq":            {opEq, *uint256.NewInt(7), *uint256.NewInt(7), *uint256.NewInt(1)},
		"byte":          {opByte, *uint256.NewInt(31), *uint256.NewInt(0x1234), *uint256.NewInt(0x34)},
		"shl":           {opShl, *uint256.NewInt(4), *uint256.NewInt(1), *uint256.NewInt(16)},
		"shl-too-far":   {opShl, *uint256.NewInt(256), *uint256.NewInt(1), *uint256.NewInt(0)},
		"shr":           {opShr, *uint256.NewInt(4), *uint256.NewInt(16), *uint256.NewInt(1)},
		"sar-negative":  {opSar, *uint256.NewInt(300), minusOne, minusOne},
		"sar-positive":  {opSar, *uint256.NewInt(300), *uint256.NewInt(5), *uint256.NewInt(0)},
		"signextend":    {opSignExtend, *uint256.NewInt(0), *uint256.NewInt(0xff), minusOne},
		"signextend-ok": {opSignExtend, *uint256.NewInt(0), *uint256.NewInt(0x7f), *uint256.NewInt(0x7f)},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			ctxt := newTestContext(nil, stf.Address{}, 0)
			ctxt.stack.push(&test.b)
			ctxt.stack.push(&test.a)
			test.op(&ctxt)
			if want, got := 1, ctxt.stack.len(); want != got {
				t.Fatalf("unexpected stack size, wanted %d, got %d", want, got)
			}
			if got := ctxt.stack.peek(); !got.Eq(&test.want) {
				t.Errorf("unexpected result, wanted %v, got %v", &test.want, got)
			}
		})
	}
}

func TestExp_ChargesPerExponentByte(t *testing.T) {
	ctxt := newTestContext(nil, stf.Address{}, 1000)
	ctxt.stack.push(uint256.NewInt(0x1234)) // exponent
	ctxt.stack.push(uint256.NewInt(2))      // base
	if err := opExp(&ctxt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want, got := stf.Gas(1000-100), ctxt.gas; want != got {
		t.Errorf("unexpected gas level, wanted %d, got %d", want, got)
	}
	// 2^0x1234 wraps around to zero
	if got := ctxt.stack.peek(); !got.IsZero() {
		t.Errorf("unexpected result %v", got)
	}
}

func TestPush_DataBeyondCodeIsZero(t *testing.T) {
	ctxt := newTestContext(nil, stf.Address{}, 0)
	ctxt.code = []byte{0x62, 0x12} // PUSH3 with a single data byte
	makePush(3)(&ctxt)
	if want, got := uint64(0x120000), ctxt.stack.peek().Uint64(); want != got {
		t.Errorf("unexpected value, wanted 0x%x, got 0x%x", want, got)
	}
	if want, got := 3, ctxt.pc; want != got {
		t.Errorf("unexpected program counter, wanted %d, got %d", want, got)
	}
}

func TestJump_TargetsMustBeJumpDestinations(t *testing.T) {
	code := []byte{0x5b, 0x60, 0x5b, 0x00}
	tests := map[string]struct {
		destination *uint256.Int
		want        error
	}{
		"jumpdest":        {uint256.NewInt(0), nil},
		"push-data":       {uint256.NewInt(2), errInvalidJump},
		"other-operation": {uint256.NewInt(3), errInvalidJump},
		"beyond-code":     {uint256.NewInt(100), errInvalidJump},
		"overflow":        {new(uint256.Int).SetAllOne(), errInvalidJump},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			ctxt := newTestContext(nil, stf.Address{}, 0)
			ctxt.code = code
			ctxt.jumpDests = analyzeJumpDestinations(code)
			ctxt.stack.push(test.destination)
			if got := opJump(&ctxt); got != test.want {
				t.Errorf("unexpected result, wanted %v, got %v", test.want, got)
			}
		})
	}
}

func TestBlockhash_OnlyRecentBlocksAreAccessible(t *testing.T) {
	tests := map[string]struct {
		current   int64
		requested uint64
		available bool
	}{
		"current-block":    {1000, 1000, false},
		"previous-block":   {1000, 999, true},
		"oldest-block":     {1000, 744, true},
		"too-old":          {1000, 743, false},
		"future":           {1000, 1001, false},
		"early-chain":      {10, 0, true},
		"early-chain-curr": {10, 10, false},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			runContext := stf.NewMockRunContext(ctrl)
			hash := stf.Hash{1, 2, 3}
			if test.available {
				runContext.EXPECT().GetBlockHash(int64(test.requested)).Return(hash)
			}

			ctxt := newTestContext(runContext, stf.Address{}, 0)
			ctxt.params.BlockNumber = test.current
			ctxt.stack.push(uint256.NewInt(test.requested))
			opBlockhash(&ctxt)

			want := stf.Hash{}
			if test.available {
				want = hash
			}
			if got := stf.Hash(ctxt.stack.peek().Bytes32()); want != got {
				t.Errorf("unexpected hash, wanted %v, got %v", want, got)
			}
		})
	}
}

func TestExtcodehash_DeadAccountsHaveZeroHash(t *testing.T) {
	ctrl := gomock.NewController(t)
	runContext := stf.NewMockRunContext(ctrl)
	target := stf.Address{2}

	runContext.EXPECT().AccessAccount(target).Return(stf.WarmAccess)
	runContext.EXPECT().IsDead(target).Return(true)

	ctxt := newTestContext(runContext, stf.Address{1}, 1000)
	ctxt.stack.push(new(uint256.Int).SetBytes20(target[:]))
	if err := opExtcodehash(&ctxt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ctxt.stack.peek().IsZero() {
		t.Errorf("expected zero hash, got %v", ctxt.stack.peek())
	}
	if want, got := stf.Gas(900), ctxt.gas; want != got {
		t.Errorf("unexpected gas level, wanted %d, got %d", want, got)
	}
}

func TestSstore_AddingAndDeletingValueInSameFrame(t *testing.T) {
	ctrl := gomock.NewController(t)
	runContext := stf.NewMockRunContext(ctrl)
	recipient := stf.Address{1}
	key := stf.Key{2}

	gomock.InOrder(
		runContext.EXPECT().AccessStorage(recipient, key).Return(stf.WarmAccess),
		runContext.EXPECT().CreateSnapshot().Return(stf.Snapshot(1)),
		runContext.EXPECT().SetStorage(recipient, key, stf.Word{31: 5}).Return(stf.StorageAdded),
		runContext.EXPECT().AccessStorage(recipient, key).Return(stf.WarmAccess),
		runContext.EXPECT().CreateSnapshot().Return(stf.Snapshot(2)),
		runContext.EXPECT().SetStorage(recipient, key, stf.Word{}).Return(stf.StorageAddedDeleted),
	)

	const initialGas = 50_000
	ctxt := newTestContext(runContext, recipient, initialGas)
	ctxt.stack.push(uint256.NewInt(5))
	ctxt.stack.push(new(uint256.Int).SetBytes32(key[:]))
	if err := opSstore(&ctxt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want, got := stf.Gas(initialGas-20000), ctxt.gas; want != got {
		t.Errorf("unexpected gas level after adding, wanted %d, got %d", want, got)
	}
	if want, got := stf.Gas(0), ctxt.refund; want != got {
		t.Errorf("unexpected refund after adding, wanted %d, got %d", want, got)
	}

	ctxt.stack.push(uint256.NewInt(0))
	ctxt.stack.push(new(uint256.Int).SetBytes32(key[:]))
	if err := opSstore(&ctxt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want, got := stf.Gas(initialGas-20000-100), ctxt.gas; want != got {
		t.Errorf("unexpected gas level after deleting, wanted %d, got %d", want, got)
	}
	if want, got := stf.Gas(19900), ctxt.refund; want != got {
		t.Errorf("unexpected refund after deleting, wanted %d, got %d", want, got)
	}
}

func TestSstore_ColdSlotsAreCharged(t *testing.T) {
	ctrl := gomock.NewController(t)
	runContext := stf.NewMockRunContext(ctrl)
	recipient := stf.Address{1}

	runContext.EXPECT().AccessStorage(recipient, stf.Key{}).Return(stf.ColdAccess)
	runContext.EXPECT().CreateSnapshot().Return(stf.Snapshot(0))
	runContext.EXPECT().SetStorage(recipient, stf.Key{}, stf.Word{}).Return(stf.StorageAssigned)

	ctxt := newTestContext(runContext, recipient, 10_000)
	ctxt.stack.push(uint256.NewInt(0))
	ctxt.stack.push(uint256.NewInt(0))
	if err := opSstore(&ctxt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want, got := stf.Gas(10_000-2100-100), ctxt.gas; want != got {
		t.Errorf("unexpected gas level, wanted %d, got %d", want, got)
	}
}

func TestSstore_UnaffordableUpdatesAreUndone(t *testing.T) {
	ctrl := gomock.NewController(t)
	runContext := stf.NewMockRunContext(ctrl)
	recipient := stf.Address{1}

	gomock.InOrder(
		runContext.EXPECT().AccessStorage(recipient, stf.Key{}).Return(stf.WarmAccess),
		runContext.EXPECT().CreateSnapshot().Return(stf.Snapshot(7)),
		runContext.EXPECT().SetStorage(recipient, stf.Key{}, stf.Word{31: 1}).Return(stf.StorageAdded),
		runContext.EXPECT().RestoreSnapshot(stf.Snapshot(7)),
	)

	ctxt := newTestContext(runContext, recipient, 5000)
	ctxt.stack.push(uint256.NewInt(1))
	ctxt.stack.push(uint256.NewInt(0))
	if err := opSstore(&ctxt); err != errOutOfGas {
		t.Errorf("expected out of gas, got %v", err)
	}
}

func TestSstore_SentryGasIsRequired(t *testing.T) {
	ctxt := newTestContext(nil, stf.Address{}, 2300)
	ctxt.stack.push(uint256.NewInt(0))
	ctxt.stack.push(uint256.NewInt(0))
	if err := opSstore(&ctxt); err != errOutOfGas {
		t.Errorf("expected out of gas, got %v", err)
	}
}

func TestSload_ChargesForWarmAndColdAccess(t *testing.T) {
	for _, access := range []stf.AccessStatus{stf.ColdAccess, stf.WarmAccess} {
		ctrl := gomock.NewController(t)
		runContext := stf.NewMockRunContext(ctrl)
		recipient := stf.Address{1}
		runContext.EXPECT().AccessStorage(recipient, stf.Key{}).Return(access)
		runContext.EXPECT().GetStorage(recipient, stf.Key{}).Return(stf.Word{31: 7})

		ctxt := newTestContext(runContext, recipient, 10_000)
		ctxt.stack.push(uint256.NewInt(0))
		if err := opSload(&ctxt); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := stf.Gas(10_000 - 100)
		if access == stf.ColdAccess {
			want = 10_000 - 2100
		}
		if got := ctxt.gas; want != got {
			t.Errorf("unexpected gas level, wanted %d, got %d", want, got)
		}
		if want, got := uint64(7), ctxt.stack.peek().Uint64(); want != got {
			t.Errorf("unexpected value, wanted %d, got %d", want, got)
		}
	}
}

func TestLog_EmitsLogWithTopicsAndData(t *testing.T) {
	ctrl := gomock.NewController(t)
	runContext := stf.NewMockRunContext(ctrl)
	recipient := stf.Address{1}

	runContext.EXPECT().EmitLog(stf.Log{
		Address: recipient,
		Topics:  []stf.Hash{{31: 1}, {31: 2}},
		Data:    []byte{0, 0},
	})

	ctxt := newTestContext(runContext, recipient, 1000)
	ctxt.stack.push(uint256.NewInt(2)) // topic 2
	ctxt.stack.push(uint256.NewInt(1)) // topic 1
	ctxt.stack.push(uint256.NewInt(2)) // size
	ctxt.stack.push(uint256.NewInt(0)) // offset
	if err := opLog(&ctxt, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 8 gas per byte and 3 gas for one word of memory
	if want, got := stf.Gas(1000-16-3), ctxt.gas; want != got {
		t.Errorf("unexpected gas level, wanted %d, got %d", want, got)
	}
}

func TestLog_SizeOverflowIsDetected(t *testing.T) {
	ctxt := newTestContext(nil, stf.Address{}, 1000)
	ctxt.stack.push(new(uint256.Int).SetAllOne()) // size
	ctxt.stack.push(uint256.NewInt(0))            // offset
	if err := opLog(&ctxt, 0); err == nil {
		t.Errorf("expected an error")
	}
}

func TestSelfDestruct_ChargesForColdAndNewBeneficiary(t *testing.T) {
	tests := map[string]struct {
		access  stf.AccessStatus
		balance stf.Value
		dead    bool
		cost    stf.Gas
	}{
		"warm-existing":       {stf.WarmAccess, stf.NewValue(1), false, 0},
		"cold-existing":       {stf.ColdAccess, stf.NewValue(1), false, 2600},
		"warm-dead":           {stf.WarmAccess, stf.NewValue(1), true, 25000},
		"cold-dead":           {stf.ColdAccess, stf.NewValue(1), true, 27600},
		"cold-dead-no-funds":  {stf.ColdAccess, stf.Value{}, true, 2600},
		"warm-alive-no-funds": {stf.WarmAccess, stf.Value{}, false, 0},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			runContext := stf.NewMockRunContext(ctrl)
			recipient, beneficiary := stf.Address{1}, stf.Address{2}

			runContext.EXPECT().AccessAccount(beneficiary).Return(test.access)
			runContext.EXPECT().GetBalance(recipient).Return(test.balance)
			runContext.EXPECT().IsDead(beneficiary).Return(test.dead).AnyTimes()
			runContext.EXPECT().SelfDestruct(recipient, beneficiary).Return(true)

			ctxt := newTestContext(runContext, recipient, 100_000)
			ctxt.stack.push(new(uint256.Int).SetBytes20(beneficiary[:]))
			status, err := opSelfdestruct(&ctxt)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if want, got := statusSelfDestructed, status; want != got {
				t.Errorf("unexpected status, wanted %v, got %v", want, got)
			}
			if want, got := 100_000-test.cost, ctxt.gas; want != got {
				t.Errorf("unexpected gas level, wanted %d, got %d", want, got)
			}
			if ctxt.refund != 0 {
				t.Errorf("self-destructs should not be refunded, got %d", ctxt.refund)
			}
		})
	}
}

// pushCallArguments prepares the stack for a CALL with the given value
// transferring no data.
func pushCallArguments(s *stack, gas uint64, target stf.Address, value uint64) {
	s.push(uint256.NewInt(0)) // retSize
	s.push(uint256.NewInt(0)) // retOffset
	s.push(uint256.NewInt(0)) // inSize
	s.push(uint256.NewInt(0)) // inOffset
	s.push(uint256.NewInt(value))
	s.push(new(uint256.Int).SetBytes20(target[:]))
	s.push(uint256.NewInt(gas))
}

func TestCall_ValueTransferToDeadAccountChargesNewAccount(t *testing.T) {
	ctrl := gomock.NewController(t)
	runContext := stf.NewMockRunContext(ctrl)
	source, target := stf.Address{1}, stf.Address{2}

	runContext.EXPECT().AccessAccount(target).Return(stf.ColdAccess)
	runContext.EXPECT().IsDead(target).Return(true)
	runContext.EXPECT().GetBalance(source).Return(stf.NewValue(10))
	runContext.EXPECT().Call(stf.Call, stf.CallParameters{
		Sender:      source,
		Recipient:   target,
		CodeAddress: target,
		Value:       stf.NewValue(1),
		Gas:         CallStipend,
	}).Return(stf.CallResult{Success: true, GasLeft: CallStipend}, nil)

	const initialGas = 1 << 20
	ctxt := newTestContext(runContext, source, initialGas)
	pushCallArguments(ctxt.stack, 0, target, 1)
	if err := opCall(&ctxt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cost := ColdAccountAccessCost + CallValueTransferGas + CallNewAccountGas
	if want, got := stf.Gas(initialGas)-cost+CallStipend, ctxt.gas; want != got {
		t.Errorf("unexpected gas level, wanted %d, got %d", want, got)
	}
	if want, got := uint64(1), ctxt.stack.peek().Uint64(); want != got {
		t.Errorf("unexpected call result, wanted %d, got %d", want, got)
	}
}

func TestCall_ForwardedGasIsLimitedToAllButOneSixtyFourth(t *testing.T) {
	ctrl := gomock.NewController(t)
	runContext := stf.NewMockRunContext(ctrl)
	source, target := stf.Address{1}, stf.Address{2}

	runContext.EXPECT().AccessAccount(target).Return(stf.WarmAccess)
	runContext.EXPECT().Call(stf.Call, gomock.Any()).DoAndReturn(
		func(_ stf.CallKind, params stf.CallParameters) (stf.CallResult, error) {
			if want, got := AllButOneSixtyFourth(6400), params.Gas; want != got {
				t.Errorf("unexpected forwarded gas, wanted %d, got %d", want, got)
			}
			return stf.CallResult{Success: false, GasLeft: 0}, nil
		})

	ctxt := newTestContext(runContext, source, 6500)
	pushCallArguments(ctxt.stack, 1<<40, target, 0)
	if err := opCall(&ctxt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want, got := stf.Gas(6400/64), ctxt.gas; want != got {
		t.Errorf("unexpected gas level, wanted %d, got %d", want, got)
	}
	if !ctxt.stack.peek().IsZero() {
		t.Errorf("failed calls should push zero")
	}
}

func TestCall_ChecksBalances(t *testing.T) {
	ctrl := gomock.NewController(t)
	runContext := stf.NewMockRunContext(ctrl)
	source, target := stf.Address{1}, stf.Address{2}

	runContext.EXPECT().AccessAccount(target).Return(stf.WarmAccess)
	runContext.EXPECT().IsDead(target).Return(false)
	runContext.EXPECT().GetBalance(source).Return(stf.Value{})

	const initialGas = 1 << 20
	ctxt := newTestContext(runContext, source, initialGas)
	pushCallArguments(ctxt.stack, 1000, target, 1)
	if err := opCall(&ctxt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want, got := 1, ctxt.stack.len(); want != got {
		t.Fatalf("unexpected stack size, wanted %d, got %d", want, got)
	}
	if !ctxt.stack.peek().IsZero() {
		t.Errorf("unexpected value on top of stack, wanted 0")
	}
	// The forwarded gas and the stipend are returned.
	want := stf.Gas(initialGas) - WarmAccessCost - CallValueTransferGas + CallStipend
	if got := ctxt.gas; want != got {
		t.Errorf("unexpected gas level, wanted %d, got %d", want, got)
	}
}

func TestCall_ValueTransferInStaticContextIsViolation(t *testing.T) {
	ctxt := newTestContext(nil, stf.Address{1}, 1000)
	ctxt.params.Static = true
	pushCallArguments(ctxt.stack, 0, stf.Address{2}, 1)
	if err := opCall(&ctxt); err != errStaticContextViolation {
		t.Errorf("expected static context violation, got %v", err)
	}
}

func TestCall_NestedCallsInStaticContextAreStatic(t *testing.T) {
	ctrl := gomock.NewController(t)
	runContext := stf.NewMockRunContext(ctrl)
	source, target := stf.Address{1}, stf.Address{2}

	runContext.EXPECT().AccessAccount(target).Return(stf.WarmAccess)
	runContext.EXPECT().Call(stf.StaticCall, gomock.Any()).Return(stf.CallResult{Success: true}, nil)

	ctxt := newTestContext(runContext, source, 1000)
	ctxt.params.Static = true
	pushCallArguments(ctxt.stack, 0, target, 0)
	if err := opCall(&ctxt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDelegateCall_KeepsSenderAndValue(t *testing.T) {
	ctrl := gomock.NewController(t)
	runContext := stf.NewMockRunContext(ctrl)
	caller, self, target := stf.Address{1}, stf.Address{2}, stf.Address{3}

	runContext.EXPECT().AccessAccount(target).Return(stf.WarmAccess)
	runContext.EXPECT().Call(stf.DelegateCall, stf.CallParameters{
		Sender:      caller,
		Recipient:   self,
		CodeAddress: target,
		Value:       stf.NewValue(42),
		Gas:         0,
	}).Return(stf.CallResult{Success: true, Output: []byte{1, 2}}, nil)

	ctxt := newTestContext(runContext, self, 1000)
	ctxt.params.Sender = caller
	ctxt.params.Value = stf.NewValue(42)
	ctxt.stack.push(uint256.NewInt(2)) // retSize
	ctxt.stack.push(uint256.NewInt(0)) // retOffset
	ctxt.stack.push(uint256.NewInt(0)) // inSize
	ctxt.stack.push(uint256.NewInt(0)) // inOffset
	ctxt.stack.push(new(uint256.Int).SetBytes20(target[:]))
	ctxt.stack.push(uint256.NewInt(0)) // gas
	if err := opDelegateCall(&ctxt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want, got := []byte{1, 2}, ctxt.memory.store[:2]; string(want) != string(got) {
		t.Errorf("unexpected memory content, wanted %v, got %v", want, got)
	}
	if want, got := 2, len(ctxt.returnData); want != got {
		t.Errorf("unexpected return data size, wanted %d, got %d", want, got)
	}
}

func TestCreate_ChecksBalance(t *testing.T) {
	ctrl := gomock.NewController(t)
	runContext := stf.NewMockRunContext(ctrl)
	source := stf.Address{1}

	runContext.EXPECT().GetBalance(source).Return(stf.Value{})

	ctxt := newTestContext(runContext, source, 1<<20)
	ctxt.stack.push(uint256.NewInt(0)) // size
	ctxt.stack.push(uint256.NewInt(0)) // offset
	ctxt.stack.push(uint256.NewInt(1)) // value
	if err := opCreate(&ctxt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want, got := 1, ctxt.stack.len(); want != got {
		t.Fatalf("unexpected stack size, wanted %d, got %d", want, got)
	}
	if !ctxt.stack.peek().IsZero() {
		t.Errorf("unexpected value on top of stack, wanted 0")
	}
}

func TestCreate2_ForwardsSaltAndChargesHashing(t *testing.T) {
	ctrl := gomock.NewController(t)
	runContext := stf.NewMockRunContext(ctrl)
	source, created := stf.Address{1}, stf.Address{9}
	const initialGas = 64_000

	// 1 word of memory (3) and 1 word of hashing (6)
	forwarded := AllButOneSixtyFourth(initialGas - 9)
	runContext.EXPECT().Call(stf.Create2, stf.CallParameters{
		Sender: source,
		Input:  make([]byte, 32),
		Gas:    forwarded,
		Salt:   stf.Hash{31: 5},
	}).Return(stf.CallResult{Success: true, CreatedAddress: created, GasLeft: 10}, nil)

	ctxt := newTestContext(runContext, source, initialGas)
	ctxt.stack.push(uint256.NewInt(5))  // salt
	ctxt.stack.push(uint256.NewInt(32)) // size
	ctxt.stack.push(uint256.NewInt(0))  // offset
	ctxt.stack.push(uint256.NewInt(0))  // value
	if err := opCreate2(&ctxt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want, got := created, stf.Address(ctxt.stack.peek().Bytes20()); want != got {
		t.Errorf("unexpected created address, wanted %v, got %v", want, got)
	}
	if want, got := initialGas-9-forwarded+10, ctxt.gas; want != got {
		t.Errorf("unexpected gas level, wanted %d, got %d", want, got)
	}
	if ctxt.returnData != nil {
		t.Errorf("successful creations should not produce return data")
	}
}

func TestReturnDataCopy_OutOfBoundsAccessFails(t *testing.T) {
	ctxt := newTestContext(nil, stf.Address{}, 1000)
	ctxt.returnData = []byte{1, 2, 3}
	ctxt.stack.push(uint256.NewInt(2)) // length
	ctxt.stack.push(uint256.NewInt(2)) // data offset
	ctxt.stack.push(uint256.NewInt(0)) // memory offset
	if err := opReturnDataCopy(&ctxt); err != errReturnDataOutOfBounds {
		t.Errorf("expected out of bounds error, got %v", err)
	}
}

func TestCallDataload_PadsWithZeros(t *testing.T) {
	ctxt := newTestContext(nil, stf.Address{}, 0)
	ctxt.params.Input = []byte{1, 2, 3}
	ctxt.stack.push(uint256.NewInt(1))
	opCallDataload(&ctxt)
	want := stf.Word{0: 2, 1: 3}
	if got := stf.Word(ctxt.stack.peek().Bytes32()); want != got {
		t.Errorf("unexpected value, wanted %v, got %v", want, got)
	}
}
