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
)

// status is enumeration of the execution state of an interpreter run.
type status byte

const (
	statusRunning        status = iota // < all fine, ops are processed
	statusStopped                      // < execution stopped with a STOP
	statusReverted                     // < execution stopped with a REVERT
	statusReturned                     // < execution stopped with a RETURN
	statusSelfDestructed               // < execution stopped with a SELF-DESTRUCT
	statusFailed                       // < execution stopped with an exceptional halt
)

// context is the execution environment of an interpreter run. For each call
// frame a new context is created.
type context struct {
	// Inputs
	params    stf.Parameters
	context   stf.RunContext
	code      stf.Code
	jumpDests jumpDestinations

	// Execution state
	pc     int
	gas    stf.Gas
	refund stf.Gas
	stack  *stack
	memory *Memory

	// returnData is the output of the last nested call, or the output of
	// this frame once it ended with a RETURN or REVERT.
	returnData []byte
}

// useGas reduces the gas level by the given amount. If the remaining gas is
// insufficient, an out-of-gas error is returned and the gas level is not
// modified.
func (c *context) useGas(amount stf.Gas) error {
	if c.gas < 0 || amount < 0 || c.gas < amount {
		return errOutOfGas
	}
	c.gas -= amount
	return nil
}

func run(analyzer *analyzer, params stf.Parameters) (stf.Result, error) {
	// Don't bother with the execution if there's no code.
	if len(params.Code) == 0 {
		return stf.Result{
			GasLeft: params.Gas,
			Success: true,
		}, nil
	}

	ctxt := context{
		params:    params,
		context:   params.Context,
		code:      params.Code,
		jumpDests: analyzer.analyze(params.Code, params.CodeHash),
		gas:       params.Gas,
		stack:     newStack(),
		memory:    NewMemory(),
	}
	defer returnStack(ctxt.stack)

	return generateResult(execute(&ctxt), &ctxt)
}

func generateResult(status status, ctxt *context) (stf.Result, error) {
	switch status {
	case statusStopped, statusSelfDestructed:
		return stf.Result{
			Success:   true,
			GasLeft:   ctxt.gas,
			GasRefund: ctxt.refund,
		}, nil
	case statusReturned:
		return stf.Result{
			Success:   true,
			Output:    ctxt.returnData,
			GasLeft:   ctxt.gas,
			GasRefund: ctxt.refund,
		}, nil
	case statusReverted:
		return stf.Result{
			Output:  ctxt.returnData,
			GasLeft: ctxt.gas,
		}, nil
	case statusFailed:
		return stf.Result{}, nil
	default:
		return stf.Result{}, fmt.Errorf("unexpected error in interpreter, unknown status: %v", status)
	}
}

// execute runs the code of the given context until it halts. Any exceptional
// halt yields statusFailed.
func execute(c *context) status {
	status, err := steps(c)
	if err != nil {
		log.Debugf("halted at pc %d, depth %d: %v", c.pc, c.params.Depth, err)
		return statusFailed
	}
	return status
}

func steps(c *context) (status, error) {
	for {
		// Reading past the end of the code yields implicit STOP instructions.
		if c.pc >= len(c.code) {
			return statusStopped, nil
		}
		op := vm.OpCode(c.code[c.pc])
		operation := &jumpTable[op]

		if err := checkStackLimits(c.stack.len(), operation); err != nil {
			return statusFailed, err
		}
		if operation.writes && c.params.Static {
			return statusFailed, errStaticContextViolation
		}
		if err := c.useGas(operation.constantGas); err != nil {
			return statusFailed, err
		}

		status, err := operation.execute(c)
		if err != nil {
			return statusFailed, err
		}
		if status != statusRunning {
			return status, nil
		}
		c.pc++
	}
}

// checkStackLimits checks that the operation will not make an out of bounds
// access with the current stack size.
func checkStackLimits(stackLen int, op *operation) error {
	if stackLen < op.minStack {
		return errStackUnderflow
	}
	if stackLen > op.maxStack {
		return errStackOverflow
	}
	return nil
}
