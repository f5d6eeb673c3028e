// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package examples

import (
	"github.com/Fantom-foundation/stf/go/stf"
	"github.com/Fantom-foundation/stf/go/stf/vm"
)

// returnTop stores the top of the stack in memory and returns it as a word.
var returnTop = []byte{
	byte(vm.PUSH1), 0,
	byte(vm.MSTORE),
	byte(vm.PUSH1), 32,
	byte(vm.PUSH1), 0,
	byte(vm.RETURN),
}

func GetIncrementExample() Example {
	code := []byte{
		byte(vm.PUSH1), 4,
		byte(vm.CALLDATALOAD),
		byte(vm.PUSH1), 1,
		byte(vm.ADD),
	}
	return Example{
		Name:      "inc",
		Code:      append(code, returnTop...),
		reference: func(x int) int { return x + 1 },
	}
}

// GetFibExample computes Fibonacci numbers iteratively.
func GetFibExample() Example {
	code := []byte{
		// a = 0, b = 1, n = argument
		byte(vm.PUSH1), 0,
		byte(vm.PUSH1), 1,
		byte(vm.PUSH1), 4,
		byte(vm.CALLDATALOAD),

		// Loop header at position 7.
		byte(vm.JUMPDEST),
		byte(vm.DUP1),
		byte(vm.ISZERO),
		byte(vm.PUSH1), 25,
		byte(vm.JUMPI),

		// n = n - 1
		byte(vm.PUSH1), 1,
		byte(vm.SWAP1),
		byte(vm.SUB),

		// a, b = b, a + b
		byte(vm.SWAP2),
		byte(vm.DUP2),
		byte(vm.ADD),
		byte(vm.SWAP1),
		byte(vm.SWAP2),

		byte(vm.PUSH1), 7,
		byte(vm.JUMP),

		// Loop exit at position 25, a is the result.
		byte(vm.JUMPDEST),
		byte(vm.POP),
		byte(vm.POP),
	}
	return Example{
		Name:      "fib",
		Code:      append(code, returnTop...),
		reference: fib,
	}
}

func fib(n int) int {
	var a, b uint32 = 0, 1
	for i := 0; i < n; i++ {
		a, b = b, a+b
	}
	return int(a)
}

// GetSha3Example hashes a zero word repeatedly and returns the last byte of
// the final hash.
func GetSha3Example() Example {
	code := []byte{
		byte(vm.PUSH1), 4,
		byte(vm.CALLDATALOAD),

		// Loop header at position 3.
		byte(vm.JUMPDEST),
		byte(vm.DUP1),
		byte(vm.ISZERO),
		byte(vm.PUSH1), 24,
		byte(vm.JUMPI),

		// memory[0:32] = keccak(memory[0:32])
		byte(vm.PUSH1), 32,
		byte(vm.PUSH1), 0,
		byte(vm.SHA3),
		byte(vm.PUSH1), 0,
		byte(vm.MSTORE),

		byte(vm.PUSH1), 1,
		byte(vm.SWAP1),
		byte(vm.SUB),
		byte(vm.PUSH1), 3,
		byte(vm.JUMP),

		// Loop exit at position 24.
		byte(vm.JUMPDEST),
		byte(vm.PUSH1), 0,
		byte(vm.MLOAD),
		byte(vm.PUSH1), 255,
		byte(vm.AND),
	}
	return Example{
		Name:      "sha3",
		Code:      append(code, returnTop...),
		reference: sha3,
	}
}

func sha3(n int) int {
	hash := stf.Hash{}
	for i := 0; i < n; i++ {
		hash = stf.Keccak256(hash[:])
	}
	return int(hash[31])
}
