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
	"github.com/Fantom-foundation/stf/go/stf"
	"github.com/Fantom-foundation/stf/go/stf/vm"
)

// executionFunc executes a single instruction. Any returned error is an
// exceptional halt of the current call frame.
type executionFunc func(c *context) (status, error)

// operation describes the static properties of an instruction.
type operation struct {
	execute     executionFunc
	constantGas stf.Gas
	minStack    int  // < minimum number of stack elements required
	maxStack    int  // < maximum stack size before the instruction is executed
	writes      bool // < the instruction modifies the world state
}

// jumpTable maps every op-code to its operation. Op-codes not listed are
// INVALID.
var jumpTable = newJumpTable()

func newOperation(execute executionFunc, gas stf.Gas, pops, pushes int) operation {
	return operation{
		execute:     execute,
		constantGas: gas,
		minStack:    pops,
		maxStack:    maxStackSize + pops - pushes,
	}
}

// continuing adapts instructions that always continue execution.
func continuing(f func(*context)) executionFunc {
	return func(c *context) (status, error) {
		f(c)
		return statusRunning, nil
	}
}

// failing adapts instructions that continue execution unless they fail.
func failing(f func(*context) error) executionFunc {
	return func(c *context) (status, error) {
		return statusRunning, f(c)
	}
}

func newJumpTable() *[256]operation {
	table := &[256]operation{}
	for i := range table {
		table[i] = newOperation(opInvalid, gasZero, 0, 0)
	}

	set := func(op vm.OpCode, execute executionFunc, gas stf.Gas, pops, pushes int) {
		table[op] = newOperation(execute, gas, pops, pushes)
	}

	set(vm.STOP, opStop, gasZero, 0, 0)
	set(vm.ADD, continuing(opAdd), gasVeryLow, 2, 1)
	set(vm.MUL, continuing(opMul), gasLow, 2, 1)
	set(vm.SUB, continuing(opSub), gasVeryLow, 2, 1)
	set(vm.DIV, continuing(opDiv), gasLow, 2, 1)
	set(vm.SDIV, continuing(opSDiv), gasLow, 2, 1)
	set(vm.MOD, continuing(opMod), gasLow, 2, 1)
	set(vm.SMOD, continuing(opSMod), gasLow, 2, 1)
	set(vm.ADDMOD, continuing(opAddMod), gasMid, 3, 1)
	set(vm.MULMOD, continuing(opMulMod), gasMid, 3, 1)
	set(vm.EXP, failing(opExp), gasHigh, 2, 1)
	set(vm.SIGNEXTEND, continuing(opSignExtend), gasLow, 2, 1)

	set(vm.LT, continuing(opLt), gasVeryLow, 2, 1)
	set(vm.GT, continuing(opGt), gasVeryLow, 2, 1)
	set(vm.SLT, continuing(opSlt), gasVeryLow, 2, 1)
	set(vm.SGT, continuing(opSgt), gasVeryLow, 2, 1)
	set(vm.EQ, continuing(opEq), gasVeryLow, 2, 1)
	set(vm.ISZERO, continuing(opIszero), gasVeryLow, 1, 1)
	set(vm.AND, continuing(opAnd), gasVeryLow, 2, 1)
	set(vm.OR, continuing(opOr), gasVeryLow, 2, 1)
	set(vm.XOR, continuing(opXor), gasVeryLow, 2, 1)
	set(vm.NOT, continuing(opNot), gasVeryLow, 1, 1)
	set(vm.BYTE, continuing(opByte), gasVeryLow, 2, 1)
	set(vm.SHL, continuing(opShl), gasVeryLow, 2, 1)
	set(vm.SHR, continuing(opShr), gasVeryLow, 2, 1)
	set(vm.SAR, continuing(opSar), gasVeryLow, 2, 1)

	set(vm.SHA3, failing(opSha3), 30, 2, 1)

	set(vm.ADDRESS, continuing(opAddress), gasBase, 0, 1)
	set(vm.BALANCE, failing(opBalance), gasZero, 1, 1)
	set(vm.ORIGIN, continuing(opOrigin), gasBase, 0, 1)
	set(vm.CALLER, continuing(opCaller), gasBase, 0, 1)
	set(vm.CALLVALUE, continuing(opCallvalue), gasBase, 0, 1)
	set(vm.CALLDATALOAD, continuing(opCallDataload), gasVeryLow, 1, 1)
	set(vm.CALLDATASIZE, continuing(opCallDatasize), gasBase, 0, 1)
	set(vm.CALLDATACOPY, failing(opCallDataCopy), gasVeryLow, 3, 0)
	set(vm.CODESIZE, continuing(opCodeSize), gasBase, 0, 1)
	set(vm.CODECOPY, failing(opCodeCopy), gasVeryLow, 3, 0)
	set(vm.GASPRICE, continuing(opGasPrice), gasBase, 0, 1)
	set(vm.EXTCODESIZE, failing(opExtcodesize), gasZero, 1, 1)
	set(vm.EXTCODECOPY, failing(opExtCodeCopy), gasZero, 4, 0)
	set(vm.RETURNDATASIZE, continuing(opReturnDataSize), gasBase, 0, 1)
	set(vm.RETURNDATACOPY, failing(opReturnDataCopy), gasVeryLow, 3, 0)
	set(vm.EXTCODEHASH, failing(opExtcodehash), gasZero, 1, 1)

	set(vm.BLOCKHASH, continuing(opBlockhash), 20, 1, 1)
	set(vm.COINBASE, continuing(opCoinbase), gasBase, 0, 1)
	set(vm.TIMESTAMP, continuing(opTimestamp), gasBase, 0, 1)
	set(vm.NUMBER, continuing(opNumber), gasBase, 0, 1)
	set(vm.PREVRANDAO, continuing(opPrevRandao), gasBase, 0, 1)
	set(vm.GASLIMIT, continuing(opGasLimit), gasBase, 0, 1)
	set(vm.CHAINID, continuing(opChainId), gasBase, 0, 1)
	set(vm.SELFBALANCE, continuing(opSelfbalance), gasLow, 0, 1)
	set(vm.BASEFEE, continuing(opBaseFee), gasBase, 0, 1)

	set(vm.POP, continuing(opPop), gasBase, 1, 0)
	set(vm.MLOAD, failing(opMload), gasVeryLow, 1, 1)
	set(vm.MSTORE, failing(opMstore), gasVeryLow, 2, 0)
	set(vm.MSTORE8, failing(opMstore8), gasVeryLow, 2, 0)
	set(vm.SLOAD, failing(opSload), gasZero, 1, 1)
	set(vm.SSTORE, failing(opSstore), gasZero, 2, 0)
	set(vm.JUMP, failing(opJump), gasMid, 1, 0)
	set(vm.JUMPI, failing(opJumpi), gasHigh, 2, 0)
	set(vm.PC, continuing(opPc), gasBase, 0, 1)
	set(vm.MSIZE, continuing(opMsize), gasBase, 0, 1)
	set(vm.GAS, continuing(opGas), gasBase, 0, 1)
	set(vm.JUMPDEST, continuing(opJumpdest), 1, 0, 0)
	set(vm.PUSH0, continuing(opPush0), gasBase, 0, 1)

	for op := vm.PUSH1; op <= vm.PUSH32; op++ {
		set(op, continuing(makePush(int(op-vm.PUSH1)+1)), gasVeryLow, 0, 1)
	}
	for op := vm.DUP1; op <= vm.DUP16; op++ {
		n := int(op-vm.DUP1) + 1
		set(op, continuing(makeDup(n)), gasVeryLow, n, n+1)
	}
	for op := vm.SWAP1; op <= vm.SWAP16; op++ {
		n := int(op-vm.SWAP1) + 1
		set(op, continuing(makeSwap(n)), gasVeryLow, n+1, n+1)
	}
	for op := vm.LOG0; op <= vm.LOG4; op++ {
		n := int(op - vm.LOG0)
		set(op, failing(makeLog(n)), 375+375*stf.Gas(n), n+2, 0)
	}

	set(vm.CREATE, failing(opCreate), 32000, 3, 1)
	set(vm.CALL, failing(opCall), gasZero, 7, 1)
	set(vm.CALLCODE, failing(opCallCode), gasZero, 7, 1)
	set(vm.RETURN, opReturn, gasZero, 2, 0)
	set(vm.DELEGATECALL, failing(opDelegateCall), gasZero, 6, 1)
	set(vm.CREATE2, failing(opCreate2), 32000, 4, 1)
	set(vm.STATICCALL, failing(opStaticCall), gasZero, 6, 1)
	set(vm.REVERT, opRevert, gasZero, 2, 0)
	set(vm.SELFDESTRUCT, opSelfdestruct, SelfdestructGas, 1, 0)

	for _, op := range []vm.OpCode{
		vm.SSTORE, vm.LOG0, vm.LOG1, vm.LOG2, vm.LOG3, vm.LOG4,
		vm.CREATE, vm.CREATE2, vm.SELFDESTRUCT,
	} {
		table[op].writes = true
	}
	return table
}
