// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package examples provides contracts with a (int)->int entry point together
// with reference implementations of the computed function. The examples are
// used for end-to-end tests and benchmarks of interpreters and processors.
package examples

import (
	"fmt"

	"github.com/Fantom-foundation/stf/go/state"
	"github.com/Fantom-foundation/stf/go/stf"
)

// Example is an executable description of a contract and an entry point with
// a (int)->int signature.
type Example struct {
	Name      string
	Code      stf.Code
	function  uint32        // selector of the function in the contract to be called
	reference func(int) int // computes the same function as the contract
}

type Result struct {
	Result  int
	UsedGas stf.Gas
}

// Input produces the call data invoking the example's entry point with the
// given argument.
func (e *Example) Input(argument int) stf.Data {
	data := make([]byte, 4+32)
	data[0] = byte(e.function >> 24)
	data[1] = byte(e.function >> 16)
	data[2] = byte(e.function >> 8)
	data[3] = byte(e.function)

	// The argument is a big-endian 32-byte word.
	data[4+28] = byte(argument >> 24)
	data[4+29] = byte(argument >> 16)
	data[4+30] = byte(argument >> 8)
	data[4+31] = byte(argument)
	return data
}

// RunOn runs this example on the given interpreter. The code is executed in
// an empty world state, calls to other contracts have no effect.
func (e *Example) RunOn(interpreter stf.Interpreter, argument int) (Result, error) {
	const initialGas = 1 << 40
	codeHash := stf.Keccak256(e.Code)
	res, err := interpreter.Run(stf.Parameters{
		Context:  exampleContext{state.NewState(nil)},
		Kind:     stf.Call,
		Code:     e.Code,
		CodeHash: &codeHash,
		Input:    e.Input(argument),
		Gas:      initialGas,
	})
	if err != nil {
		return Result{}, err
	}
	if !res.Success {
		return Result{}, fmt.Errorf("execution of %s failed", e.Name)
	}
	result, err := DecodeOutput(res.Output)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Result:  result,
		UsedGas: initialGas - res.GasLeft,
	}, nil
}

// RunReference runs the reference function of this example to produce the
// expected result.
func (e *Example) RunReference(argument int) int {
	return e.reference(argument)
}

// DecodeOutput extracts the integer result from the output of an example.
func DecodeOutput(output []byte) (int, error) {
	if len(output) != 32 {
		return 0, fmt.Errorf("unexpected length of output; wanted 32, got %d", len(output))
	}
	return int(output[28])<<24 | int(output[29])<<16 | int(output[30])<<8 | int(output[31]), nil
}

// All lists all available examples.
func All() []Example {
	return []Example{
		GetIncrementExample(),
		GetFibExample(),
		GetSha3Example(),
		GetArithmeticExample(),
	}
}

type exampleContext struct {
	*state.State
}

func (exampleContext) Call(stf.CallKind, stf.CallParameters) (stf.CallResult, error) {
	return stf.CallResult{}, nil
}
