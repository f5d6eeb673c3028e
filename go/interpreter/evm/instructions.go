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
	"bytes"
	"math"

	"github.com/Fantom-foundation/stf/go/stf"
	"github.com/holiman/uint256"
)

func opInvalid(c *context) (status, error) {
	return statusFailed, errInvalidOpCode
}

func opStop(c *context) (status, error) {
	return statusStopped, nil
}

func opReturn(c *context) (status, error) {
	return statusReturned, opEndWithResult(c)
}

func opRevert(c *context) (status, error) {
	return statusReverted, opEndWithResult(c)
}

func opEndWithResult(c *context) error {
	offset, size := c.stack.pop(), c.stack.pop()
	if err := checkSizeOffsetUint64Overflow(offset, size); err != nil {
		return err
	}
	data, err := c.memory.getSlice(offset.Uint64(), size.Uint64(), c)
	if err != nil {
		return err
	}
	c.returnData = bytes.Clone(data)
	return nil
}

// --- Control Flow ---

func opPc(c *context) {
	c.stack.pushUndefined().SetUint64(uint64(c.pc))
}

func opJumpdest(c *context) {}

// jumpTo moves the program counter to the given destination, which must be
// a JUMPDEST instruction.
func jumpTo(c *context, destination *uint256.Int) error {
	if !destination.IsUint64() || !c.jumpDests.isJumpDest(destination.Uint64()) {
		return errInvalidJump
	}
	// The interpreter increments the PC after the instruction.
	c.pc = int(destination.Uint64()) - 1
	return nil
}

func opJump(c *context) error {
	return jumpTo(c, c.stack.pop())
}

func opJumpi(c *context) error {
	destination, condition := c.stack.pop(), c.stack.pop()
	if condition.IsZero() {
		return nil
	}
	return jumpTo(c, destination)
}

// --- Stack ---

func opPop(c *context) {
	c.stack.pop()
}

func opPush0(c *context) {
	c.stack.pushUndefined().Clear()
}

// makePush creates a PUSH instruction reading n bytes of immediate data.
// Data beyond the end of the code is treated as zeros.
func makePush(n int) func(*context) {
	return func(c *context) {
		start := min(c.pc+1, len(c.code))
		end := min(start+n, len(c.code))
		var data [32]byte
		copy(data[:], c.code[start:end])
		c.stack.pushUndefined().SetBytes(data[:n])
		c.pc += n
	}
}

func makeDup(n int) func(*context) {
	return func(c *context) {
		c.stack.dup(n - 1)
	}
}

func makeSwap(n int) func(*context) {
	return func(c *context) {
		c.stack.swap(n)
	}
}

// --- Arithmetic ---

func opAdd(c *context) {
	a := c.stack.pop()
	b := c.stack.peek()
	b.Add(a, b)
}

func opSub(c *context) {
	a := c.stack.pop()
	b := c.stack.peek()
	b.Sub(a, b)
}

func opMul(c *context) {
	a := c.stack.pop()
	b := c.stack.peek()
	b.Mul(a, b)
}

func opDiv(c *context) {
	a := c.stack.pop()
	b := c.stack.peek()
	b.Div(a, b)
}

func opSDiv(c *context) {
	a := c.stack.pop()
	b := c.stack.peek()
	b.SDiv(a, b)
}

func opMod(c *context) {
	a := c.stack.pop()
	b := c.stack.peek()
	b.Mod(a, b)
}

func opSMod(c *context) {
	a := c.stack.pop()
	b := c.stack.peek()
	b.SMod(a, b)
}

func opAddMod(c *context) {
	a := c.stack.pop()
	b := c.stack.pop()
	n := c.stack.peek()
	n.AddMod(a, b, n)
}

func opMulMod(c *context) {
	a := c.stack.pop()
	b := c.stack.pop()
	n := c.stack.peek()
	n.MulMod(a, b, n)
}

func opExp(c *context) error {
	base, exponent := c.stack.pop(), c.stack.peek()
	if err := c.useGas(stf.Gas(50 * exponent.ByteLen())); err != nil {
		return err
	}
	exponent.Exp(base, exponent)
	return nil
}

func opSignExtend(c *context) {
	back, num := c.stack.pop(), c.stack.peek()
	num.ExtendSign(num, back)
}

// --- Comparison and Bitwise Logic ---

func setBool(z *uint256.Int, value bool) {
	if value {
		z.SetOne()
	} else {
		z.Clear()
	}
}

func opLt(c *context) {
	a := c.stack.pop()
	b := c.stack.peek()
	setBool(b, a.Lt(b))
}

func opGt(c *context) {
	a := c.stack.pop()
	b := c.stack.peek()
	setBool(b, a.Gt(b))
}

func opSlt(c *context) {
	a := c.stack.pop()
	b := c.stack.peek()
	setBool(b, a.Slt(b))
}

func opSgt(c *context) {
	a := c.stack.pop()
	b := c.stack.peek()
	setBool(b, a.Sgt(b))
}

func opEq(c *context) {
	a := c.stack.pop()
	b := c.stack.peek()
	setBool(b, a.Eq(b))
}

func opIszero(c *context) {
	top := c.stack.peek()
	setBool(top, top.IsZero())
}

func opAnd(c *context) {
	a := c.stack.pop()
	b := c.stack.peek()
	b.And(a, b)
}

func opOr(c *context) {
	a := c.stack.pop()
	b := c.stack.peek()
	b.Or(a, b)
}

func opXor(c *context) {
	a := c.stack.pop()
	b := c.stack.peek()
	b.Xor(a, b)
}

func opNot(c *context) {
	a := c.stack.peek()
	a.Not(a)
}

func opByte(c *context) {
	th, val := c.stack.pop(), c.stack.peek()
	val.Byte(th)
}

func opShl(c *context) {
	a := c.stack.pop()
	b := c.stack.peek()
	if a.LtUint64(256) {
		b.Lsh(b, uint(a.Uint64()))
	} else {
		b.Clear()
	}
}

func opShr(c *context) {
	a := c.stack.pop()
	b := c.stack.peek()
	if a.LtUint64(256) {
		b.Rsh(b, uint(a.Uint64()))
	} else {
		b.Clear()
	}
}

func opSar(c *context) {
	a := c.stack.pop()
	b := c.stack.peek()
	if a.GtUint64(255) {
		if b.Sign() >= 0 {
			b.Clear()
		} else {
			b.SetAllOne()
		}
		return
	}
	b.SRsh(b, uint(a.Uint64()))
}

func opSha3(c *context) error {
	offset, size := c.stack.pop(), c.stack.peek()
	if err := checkSizeOffsetUint64Overflow(offset, size); err != nil {
		return err
	}
	data, err := c.memory.getSlice(offset.Uint64(), size.Uint64(), c)
	if err != nil {
		return err
	}
	words := stf.SizeInWords(size.Uint64())
	if err := c.useGas(stf.Gas(6 * words)); err != nil {
		return err
	}
	hash := stf.Keccak256(data)
	size.SetBytes32(hash[:])
	return nil
}

// --- Environment ---

func opAddress(c *context) {
	c.stack.pushUndefined().SetBytes20(c.params.Recipient[:])
}

func opBalance(c *context) error {
	top := c.stack.peek()
	address := stf.Address(top.Bytes20())
	if err := c.useGas(AccessCost(c.context.AccessAccount(address))); err != nil {
		return err
	}
	balance := c.context.GetBalance(address)
	top.SetBytes32(balance[:])
	return nil
}

func opSelfbalance(c *context) {
	balance := c.context.GetBalance(c.params.Recipient)
	c.stack.pushUndefined().SetBytes32(balance[:])
}

func opOrigin(c *context) {
	c.stack.pushUndefined().SetBytes20(c.params.Origin[:])
}

func opCaller(c *context) {
	c.stack.pushUndefined().SetBytes20(c.params.Sender[:])
}

func opCallvalue(c *context) {
	c.stack.pushUndefined().SetBytes32(c.params.Value[:])
}

func opCallDataload(c *context) {
	top := c.stack.peek()
	offset, overflow := top.Uint64WithOverflow()
	if overflow {
		offset = math.MaxUint64
	}
	data := getData(c.params.Input, offset, 32)
	top.SetBytes32(data)
}

func opCallDatasize(c *context) {
	c.stack.pushUndefined().SetUint64(uint64(len(c.params.Input)))
}

func opCallDataCopy(c *context) error {
	return genericDataCopy(c, c.params.Input)
}

func opCodeSize(c *context) {
	c.stack.pushUndefined().SetUint64(uint64(len(c.code)))
}

func opCodeCopy(c *context) error {
	return genericDataCopy(c, c.code)
}

// genericDataCopy implements CALLDATACOPY and CODECOPY. Reads beyond the end
// of the source are padded with zeros.
func genericDataCopy(c *context, source []byte) error {
	var (
		memOffset  = c.stack.pop()
		dataOffset = c.stack.pop()
		length     = c.stack.pop()
	)
	if err := checkSizeOffsetUint64Overflow(memOffset, length); err != nil {
		return err
	}
	dataOffset64, overflow := dataOffset.Uint64WithOverflow()
	if overflow {
		dataOffset64 = math.MaxUint64
	}

	words := stf.SizeInWords(length.Uint64())
	if err := c.useGas(stf.Gas(3 * words)); err != nil {
		return err
	}

	data, err := c.memory.getSlice(memOffset.Uint64(), length.Uint64(), c)
	if err != nil {
		return err
	}
	copy(data, getData(source, dataOffset64, length.Uint64()))
	return nil
}

func opGasPrice(c *context) {
	c.stack.pushUndefined().SetBytes32(c.params.GasPrice[:])
}

func opExtcodesize(c *context) error {
	top := c.stack.peek()
	address := stf.Address(top.Bytes20())
	if err := c.useGas(AccessCost(c.context.AccessAccount(address))); err != nil {
		return err
	}
	top.SetUint64(uint64(c.context.GetCodeSize(address)))
	return nil
}

func opExtCodeCopy(c *context) error {
	var (
		a          = c.stack.pop()
		memOffset  = c.stack.pop()
		codeOffset = c.stack.pop()
		length     = c.stack.pop()
	)
	if err := checkSizeOffsetUint64Overflow(memOffset, length); err != nil {
		return err
	}

	address := stf.Address(a.Bytes20())
	words := stf.SizeInWords(length.Uint64())
	cost := stf.Gas(3*words) + AccessCost(c.context.AccessAccount(address))
	if err := c.useGas(cost); err != nil {
		return err
	}

	codeOffset64, overflow := codeOffset.Uint64WithOverflow()
	if overflow {
		codeOffset64 = math.MaxUint64
	}
	data, err := c.memory.getSlice(memOffset.Uint64(), length.Uint64(), c)
	if err != nil {
		return err
	}
	copy(data, getData(c.context.GetCode(address), codeOffset64, length.Uint64()))
	return nil
}

func opExtcodehash(c *context) error {
	top := c.stack.peek()
	address := stf.Address(top.Bytes20())
	if err := c.useGas(AccessCost(c.context.AccessAccount(address))); err != nil {
		return err
	}
	if c.context.IsDead(address) {
		top.Clear()
	} else {
		hash := c.context.GetCodeHash(address)
		top.SetBytes32(hash[:])
	}
	return nil
}

func opReturnDataSize(c *context) {
	c.stack.pushUndefined().SetUint64(uint64(len(c.returnData)))
}

func opReturnDataCopy(c *context) error {
	var (
		memOffset  = c.stack.pop()
		dataOffset = c.stack.pop()
		length     = c.stack.pop()
	)

	offset64, overflow := dataOffset.Uint64WithOverflow()
	if overflow {
		return errReturnDataOutOfBounds
	}
	length64, overflow := length.Uint64WithOverflow()
	if overflow {
		return errReturnDataOutOfBounds
	}
	end64 := offset64 + length64
	if end64 < offset64 || uint64(len(c.returnData)) < end64 {
		return errReturnDataOutOfBounds
	}

	if err := checkSizeOffsetUint64Overflow(memOffset, length); err != nil {
		return err
	}
	words := stf.SizeInWords(length64)
	if err := c.useGas(stf.Gas(3 * words)); err != nil {
		return err
	}
	return c.memory.set(memOffset.Uint64(), c.returnData[offset64:end64], c)
}

// --- Block Information ---

func opBlockhash(c *context) {
	num := c.stack.peek()
	num64, overflow := num.Uint64WithOverflow()
	if overflow {
		num.Clear()
		return
	}
	// Only the 256 most recent complete blocks are accessible.
	upper := uint64(c.params.BlockNumber)
	lower := uint64(0)
	if upper > 256 {
		lower = upper - 256
	}
	if num64 >= lower && num64 < upper {
		hash := c.context.GetBlockHash(int64(num64))
		num.SetBytes32(hash[:])
	} else {
		num.Clear()
	}
}

func opCoinbase(c *context) {
	c.stack.pushUndefined().SetBytes20(c.params.Coinbase[:])
}

func opTimestamp(c *context) {
	c.stack.pushUndefined().SetUint64(uint64(c.params.Timestamp))
}

func opNumber(c *context) {
	c.stack.pushUndefined().SetUint64(uint64(c.params.BlockNumber))
}

func opPrevRandao(c *context) {
	c.stack.pushUndefined().SetBytes32(c.params.PrevRandao[:])
}

func opGasLimit(c *context) {
	c.stack.pushUndefined().SetUint64(uint64(c.params.GasLimit))
}

func opChainId(c *context) {
	c.stack.pushUndefined().SetBytes32(c.params.ChainID[:])
}

func opBaseFee(c *context) {
	c.stack.pushUndefined().SetBytes32(c.params.BaseFee[:])
}

// --- Memory and Storage ---

func opMload(c *context) error {
	top := c.stack.peek()
	offset, overflow := top.Uint64WithOverflow()
	if overflow {
		return errOverflow
	}
	return c.memory.readWord(offset, top, c)
}

func opMstore(c *context) error {
	addr, value := c.stack.pop(), c.stack.pop()
	offset, overflow := addr.Uint64WithOverflow()
	if overflow {
		return errOverflow
	}
	data := value.Bytes32()
	return c.memory.set(offset, data[:], c)
}

func opMstore8(c *context) error {
	addr, value := c.stack.pop(), c.stack.pop()
	offset, overflow := addr.Uint64WithOverflow()
	if overflow {
		return errOverflow
	}
	return c.memory.set(offset, []byte{byte(value.Uint64())}, c)
}

func opMsize(c *context) {
	c.stack.pushUndefined().SetUint64(c.memory.length())
}

func opGas(c *context) {
	c.stack.pushUndefined().SetUint64(uint64(c.gas))
}

func opSload(c *context) error {
	top := c.stack.peek()
	key := stf.Key(top.Bytes32())
	cost := WarmAccessCost
	if c.context.AccessStorage(c.params.Recipient, key) == stf.ColdAccess {
		cost = ColdSloadCost
	}
	if err := c.useGas(cost); err != nil {
		return err
	}
	value := c.context.GetStorage(c.params.Recipient, key)
	top.SetBytes32(value[:])
	return nil
}

func opSstore(c *context) error {
	// EIP-2200 demands that more than the stipend is available for SSTORE.
	if c.gas <= SstoreSentryGas {
		return errOutOfGas
	}

	key := stf.Key(c.stack.pop().Bytes32())
	value := stf.Word(c.stack.pop().Bytes32())

	cost := stf.Gas(0)
	if c.context.AccessStorage(c.params.Recipient, key) == stf.ColdAccess {
		cost += ColdSloadCost
	}

	// The costs depend on the effect of the update, which is only known once
	// the update is applied. Unaffordable updates are undone.
	snapshot := c.context.CreateSnapshot()
	storageStatus := c.context.SetStorage(c.params.Recipient, key, value)
	cost += SstoreCost(storageStatus)
	if err := c.useGas(cost); err != nil {
		c.context.RestoreSnapshot(snapshot)
		return err
	}

	c.refund += SstoreRefund(storageStatus)
	return nil
}

// --- Logging ---

func makeLog(n int) func(*context) error {
	return func(c *context) error {
		return opLog(c, n)
	}
}

func opLog(c *context, n int) error {
	mStart, mSize := c.stack.pop(), c.stack.pop()
	if err := checkSizeOffsetUint64Overflow(mStart, mSize); err != nil {
		return err
	}

	topics := make([]stf.Hash, n)
	for i := 0; i < n; i++ {
		topics[i] = c.stack.pop().Bytes32()
	}

	start, size := mStart.Uint64(), mSize.Uint64()
	if size > math.MaxInt64/8 {
		return errOverflow
	}
	if err := c.useGas(stf.Gas(8 * size)); err != nil {
		return err
	}
	data, err := c.memory.getSlice(start, size, c)
	if err != nil {
		return err
	}

	c.context.EmitLog(stf.Log{
		Address: c.params.Recipient,
		Topics:  topics,
		// make a copy of the data to disconnect from memory
		Data: bytes.Clone(data),
	})
	return nil
}

// --- System ---

func opSelfdestruct(c *context) (status, error) {
	beneficiary := stf.Address(c.stack.pop().Bytes20())

	// EIP-2929: no costs for warm beneficiaries beyond the base costs.
	cost := stf.Gas(0)
	if c.context.AccessAccount(beneficiary) == stf.ColdAccess {
		cost += ColdAccountAccessCost
	}
	balance := c.context.GetBalance(c.params.Recipient)
	if !balance.IsZero() && c.context.IsDead(beneficiary) {
		cost += CreateBySelfdestructGas
	}
	if err := c.useGas(cost); err != nil {
		return statusFailed, err
	}

	// Since London there is no refund for self-destructing (EIP-3529).
	c.context.SelfDestruct(c.params.Recipient, beneficiary)
	return statusSelfDestructed, nil
}

func opCreate(c *context) error {
	return genericCreate(c, stf.Create)
}

func opCreate2(c *context) error {
	return genericCreate(c, stf.Create2)
}

func genericCreate(c *context, kind stf.CallKind) error {
	var (
		value  = c.stack.pop()
		offset = c.stack.pop()
		size   = c.stack.pop()
		salt   = stf.Hash{}
	)
	if kind == stf.Create2 {
		salt = c.stack.pop().Bytes32()
	}

	if err := checkSizeOffsetUint64Overflow(offset, size); err != nil {
		return err
	}
	input, err := c.memory.getSlice(offset.Uint64(), size.Uint64(), c)
	if err != nil {
		return err
	}

	if kind == stf.Create2 {
		// Charge for hashing the init code to compute the target address.
		words := stf.SizeInWords(size.Uint64())
		if err := c.useGas(stf.Gas(6 * words)); err != nil {
			return err
		}
	}

	if !value.IsZero() {
		balance := c.context.GetBalance(c.params.Recipient)
		if value.Gt(balance.ToUint256()) {
			c.stack.pushUndefined().Clear()
			c.returnData = nil
			return nil
		}
	}

	gas := AllButOneSixtyFourth(c.gas)
	if err := c.useGas(gas); err != nil {
		return err
	}

	res, err := c.context.Call(kind, stf.CallParameters{
		Sender: c.params.Recipient,
		Value:  stf.Value(value.Bytes32()),
		Input:  bytes.Clone(input),
		Gas:    gas,
		Salt:   salt,
	})

	success := c.stack.pushUndefined()
	if err != nil || !res.Success {
		success.Clear()
	} else {
		success.SetBytes20(res.CreatedAddress[:])
	}

	// Only the output of reverted creations is visible to the creator.
	if err == nil && !res.Success {
		c.returnData = res.Output
	} else {
		c.returnData = nil
	}
	c.gas += res.GasLeft
	c.refund += res.GasRefund
	return nil
}

func opCall(c *context) error {
	value := c.stack.peekN(2)
	// In a static call, no value must be transferred.
	if c.params.Static && !value.IsZero() {
		return errStaticContextViolation
	}
	return genericCall(c, stf.Call)
}

func opCallCode(c *context) error {
	return genericCall(c, stf.CallCode)
}

func opStaticCall(c *context) error {
	return genericCall(c, stf.StaticCall)
}

func opDelegateCall(c *context) error {
	return genericCall(c, stf.DelegateCall)
}

func genericCall(c *context, kind stf.CallKind) error {
	stack := c.stack
	value := uint256.NewInt(0)

	providedGas, addr := stack.pop(), stack.pop()
	if kind == stf.Call || kind == stf.CallCode {
		value = stack.pop()
	}
	inOffset, inSize, retOffset, retSize := stack.pop(), stack.pop(), stack.pop(), stack.pop()
	toAddr := stf.Address(addr.Bytes20())

	if err := checkSizeOffsetUint64Overflow(inOffset, inSize); err != nil {
		return err
	}
	if err := checkSizeOffsetUint64Overflow(retOffset, retSize); err != nil {
		return err
	}

	// Expand the memory to cover both the input and the output window.
	if _, err := c.memory.getSlice(inOffset.Uint64(), inSize.Uint64(), c); err != nil {
		return err
	}
	if _, err := c.memory.getSlice(retOffset.Uint64(), retSize.Uint64(), c); err != nil {
		return err
	}

	if err := c.useGas(AccessCost(c.context.AccessAccount(toAddr))); err != nil {
		return err
	}

	if !value.IsZero() {
		if err := c.useGas(CallValueTransferGas); err != nil {
			return err
		}
	}

	// EIP-161: only value transfers to dead accounts create new accounts.
	if kind == stf.Call && !value.IsZero() && c.context.IsDead(toAddr) {
		if err := c.useGas(CallNewAccountGas); err != nil {
			return err
		}
	}

	// EIP-150: at most all but one 64th of the available gas may be
	// forwarded to a nested call.
	nestedCallGas := AllButOneSixtyFourth(c.gas)
	if providedGas.IsUint64() && providedGas.Uint64() <= uint64(nestedCallGas) {
		nestedCallGas = stf.Gas(providedGas.Uint64())
	}
	if err := c.useGas(nestedCallGas); err != nil {
		return err
	}
	if !value.IsZero() {
		nestedCallGas += CallStipend
	}

	// Check that the caller has enough balance to transfer the requested value.
	if (kind == stf.Call || kind == stf.CallCode) && !value.IsZero() {
		balance := c.context.GetBalance(c.params.Recipient)
		if balance.ToUint256().Lt(value) {
			c.stack.pushUndefined().Clear()
			c.returnData = nil
			c.gas += nestedCallGas
			return nil
		}
	}

	// Calls issued within a static context are static as well.
	if c.params.Static && kind == stf.Call {
		kind = stf.StaticCall
	}

	var input []byte
	if !inSize.IsZero() {
		inStart := inOffset.Uint64()
		input = bytes.Clone(c.memory.store[inStart : inStart+inSize.Uint64()])
	}
	callParams := stf.CallParameters{
		Input: input,
		Gas:   nestedCallGas,
		Value: stf.Value(value.Bytes32()),
	}

	switch kind {
	case stf.Call, stf.StaticCall:
		callParams.Sender = c.params.Recipient
		callParams.Recipient = toAddr
		callParams.CodeAddress = toAddr

	case stf.CallCode:
		callParams.Sender = c.params.Recipient
		callParams.Recipient = c.params.Recipient
		callParams.CodeAddress = toAddr

	case stf.DelegateCall:
		callParams.Sender = c.params.Sender
		callParams.Recipient = c.params.Recipient
		callParams.CodeAddress = toAddr
		callParams.Value = c.params.Value
	}

	ret, err := c.context.Call(kind, callParams)

	if err == nil && !retSize.IsZero() {
		retStart := retOffset.Uint64()
		copy(c.memory.store[retStart:retStart+retSize.Uint64()], ret.Output)
	}

	success := stack.pushUndefined()
	if err != nil || !ret.Success {
		success.Clear()
	} else {
		success.SetOne()
	}
	c.gas += ret.GasLeft
	c.refund += ret.GasRefund
	c.returnData = ret.Output
	return nil
}

// --- Utilities ---

// getData returns size bytes of the given data starting at the given offset,
// right-padded with zeros where the data is exceeded.
func getData(data []byte, start uint64, size uint64) []byte {
	length := uint64(len(data))
	if start > length {
		start = length
	}
	end := start + size
	if end > length || end < start {
		end = length
	}
	res := make([]byte, size)
	copy(res, data[start:end])
	return res
}

// checkSizeOffsetUint64Overflow checks that offset and size of a memory
// range fit into 64 bits. Empty ranges are always valid.
func checkSizeOffsetUint64Overflow(offset, size *uint256.Int) error {
	if size.IsZero() {
		return nil
	}
	if !offset.IsUint64() || !size.IsUint64() || offset.Uint64()+size.Uint64() < offset.Uint64() {
		return errOverflow
	}
	return nil
}
