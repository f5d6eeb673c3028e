// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package transition

import (
	"fmt"

	"github.com/Fantom-foundation/stf/go/stf"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	MaxRecursiveDepth = 1024

	// MaxCodeSize is the maximum size of deployed contract code (EIP-170).
	MaxCodeSize = 24576

	createGasCostPerByte = 200
)

// runContext serves the nested calls and contract creations issued by code
// executed within a transaction. It is passed by value, so every call frame
// sees its own depth and static flag.
type runContext struct {
	stf.TransactionContext
	interpreter           stf.Interpreter
	blockParameters       stf.BlockParameters
	transactionParameters stf.TransactionParameters
	depth                 int
	static                bool
}

func (r runContext) Call(kind stf.CallKind, parameters stf.CallParameters) (stf.CallResult, error) {
	if kind == stf.Create || kind == stf.Create2 {
		return r.executeCreate(kind, parameters)
	}
	return r.executeCall(kind, parameters)
}

func (r runContext) executeCall(kind stf.CallKind, parameters stf.CallParameters) (stf.CallResult, error) {
	errResult := stf.CallResult{
		Success: false,
		GasLeft: parameters.Gas,
	}
	if r.depth > MaxRecursiveDepth {
		return errResult, nil
	}
	r.depth++

	transfersValue := kind == stf.Call || kind == stf.CallCode
	if transfersValue {
		if !canTransferValue(r, parameters.Value, parameters.Sender, &parameters.Recipient) {
			return errResult, nil
		}
	}
	snapshot := r.CreateSnapshot()
	recipient := parameters.Recipient

	if kind == stf.StaticCall {
		r.static = true
	}

	// Calls without value to non-existing accounts have no effect.
	if kind == stf.Call &&
		parameters.Value.IsZero() &&
		!stf.IsPrecompiledContract(recipient) &&
		!r.AccountExists(recipient) {
		return stf.CallResult{Success: true, GasLeft: parameters.Gas}, nil
	}

	if transfersValue {
		transferValue(r, parameters.Value, parameters.Sender, recipient)
	}

	result, isPrecompiled := handlePrecompiled(parameters.Input, parameters.CodeAddress, parameters.Gas)
	if isPrecompiled {
		if !result.Success {
			r.RestoreSnapshot(snapshot)
			result.GasLeft = 0
		}
		return result, nil
	}

	codeHash := r.GetCodeHash(parameters.CodeAddress)
	code := r.GetCode(parameters.CodeAddress)

	interpreterParameters := stf.Parameters{
		BlockParameters:       r.blockParameters,
		TransactionParameters: r.transactionParameters,
		Context:               r,
		Kind:                  kind,
		Static:                r.static,
		Depth:                 r.depth - 1, // depth has already been incremented
		Gas:                   parameters.Gas,
		Recipient:             recipient,
		Sender:                parameters.Sender,
		Input:                 parameters.Input,
		Value:                 parameters.Value,
		CodeHash:              &codeHash,
		Code:                  code,
	}

	callResult, err := r.interpreter.Run(interpreterParameters)
	if err != nil {
		r.RestoreSnapshot(snapshot)
		return stf.CallResult{}, err
	}
	if !callResult.Success {
		r.RestoreSnapshot(snapshot)
		callResult.GasRefund = 0
	}

	return stf.CallResult{
		Output:    callResult.Output,
		GasLeft:   callResult.GasLeft,
		GasRefund: callResult.GasRefund,
		Success:   callResult.Success,
	}, nil
}

func (r runContext) executeCreate(kind stf.CallKind, parameters stf.CallParameters) (stf.CallResult, error) {
	errResult := stf.CallResult{
		Success: false,
		GasLeft: parameters.Gas,
	}
	if r.depth > MaxRecursiveDepth {
		return errResult, nil
	}
	r.depth++

	if !canTransferValue(r, parameters.Value, parameters.Sender, nil) {
		return errResult, nil
	}
	if err := incrementNonce(r, parameters.Sender); err != nil {
		return errResult, nil
	}

	code := stf.Code(parameters.Input)
	codeHash := stf.Keccak256(code)

	createdAddress := createAddress(kind, parameters.Sender, r.GetNonce(parameters.Sender)-1,
		parameters.Salt, codeHash)

	r.AccessAccount(createdAddress)

	// Address collisions consume all the gas.
	if r.GetNonce(createdAddress) != 0 || r.GetCodeSize(createdAddress) != 0 {
		return stf.CallResult{}, nil
	}
	snapshot := r.CreateSnapshot()
	r.SetNonce(createdAddress, 1)

	transferValue(r, parameters.Value, parameters.Sender, createdAddress)

	interpreterParameters := stf.Parameters{
		BlockParameters:       r.blockParameters,
		TransactionParameters: r.transactionParameters,
		Context:               r,
		Kind:                  kind,
		Static:                r.static,
		Depth:                 r.depth - 1, // depth has already been incremented
		Gas:                   parameters.Gas,
		Recipient:             createdAddress,
		Sender:                parameters.Sender,
		Input:                 nil,
		Value:                 parameters.Value,
		CodeHash:              &codeHash,
		Code:                  code,
	}

	result, err := r.interpreter.Run(interpreterParameters)
	if err != nil {
		r.RestoreSnapshot(snapshot)
		return stf.CallResult{}, err
	}
	if !result.Success {
		// Reverted creations keep their output and remaining gas.
		r.RestoreSnapshot(snapshot)
		return stf.CallResult{Output: result.Output, GasLeft: result.GasLeft}, nil
	}

	outCode := result.Output
	if err := checkDeployedCode(outCode); err != nil {
		log.Debugf("rejected code of contract %v: %v", createdAddress, err)
		result.Success = false
	}
	createGas := stf.Gas(len(outCode) * createGasCostPerByte)
	if result.GasLeft < createGas {
		result.Success = false
	}
	result.GasLeft -= createGas

	if result.Success {
		r.SetCode(createdAddress, stf.Code(outCode))
	} else {
		r.RestoreSnapshot(snapshot)
		return stf.CallResult{}, nil
	}

	// The deployed code is not an output of the creation.
	return stf.CallResult{
		GasLeft:        result.GasLeft,
		GasRefund:      result.GasRefund,
		Success:        true,
		CreatedAddress: createdAddress,
	}, nil
}

func checkDeployedCode(code []byte) error {
	if len(code) > MaxCodeSize {
		return fmt.Errorf("max code size exceeded: %d > %d", len(code), MaxCodeSize)
	}
	// EIP-3541: code starting with 0xEF is reserved.
	if len(code) > 0 && code[0] == 0xEF {
		return fmt.Errorf("invalid code: must not begin with 0xef")
	}
	return nil
}

func createAddress(
	kind stf.CallKind,
	sender stf.Address,
	nonce uint64,
	salt stf.Hash,
	initHash stf.Hash,
) stf.Address {
	if kind == stf.Create {
		return stf.Address(crypto.CreateAddress(common.Address(sender), nonce))
	}
	return stf.Address(crypto.CreateAddress2(common.Address(sender), common.Hash(salt), initHash[:]))
}

func canTransferValue(
	context stf.TransactionContext,
	value stf.Value,
	sender stf.Address,
	recipient *stf.Address,
) bool {
	if value.IsZero() {
		return true
	}

	senderBalance := context.GetBalance(sender)
	if senderBalance.Cmp(value) < 0 {
		return false
	}

	if recipient == nil || sender == *recipient {
		return true
	}

	receiverBalance := context.GetBalance(*recipient)
	updatedBalance := stf.Add(receiverBalance, value)
	return updatedBalance.Cmp(receiverBalance) >= 0
}

func incrementNonce(context stf.TransactionContext, address stf.Address) error {
	nonce := context.GetNonce(address)
	if nonce+1 < nonce {
		return fmt.Errorf("nonce overflow")
	}
	context.SetNonce(address, nonce+1)
	return nil
}

// Only to be called after canTransferValue
func transferValue(
	context stf.TransactionContext,
	value stf.Value,
	sender stf.Address,
	recipient stf.Address,
) {
	if sender == recipient {
		return
	}
	if value.IsZero() {
		// The recipient is touched even if nothing is transferred, making
		// empty recipients subject to removal at the end of the transaction.
		context.SetBalance(recipient, context.GetBalance(recipient))
		return
	}

	senderBalance := context.GetBalance(sender)
	receiverBalance := context.GetBalance(recipient)

	context.SetBalance(sender, stf.Sub(senderBalance, value))
	context.SetBalance(recipient, stf.Add(receiverBalance, value))
}
