// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package transition implements the transaction level of the state
// transition function. A processor validates a transaction against the
// world state, buys the gas, runs the message call or contract creation on
// an interpreter and settles the fees. Nested calls issued by executing code
// are served by the run context of this package.
package transition

import (
	"errors"
	"fmt"
	"math"

	"github.com/Fantom-foundation/stf/go/stf"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	logging "github.com/ipfs/go-log"
)

var log = logging.Logger("transition")

const (
	TxGas                     = 21_000
	TxGasContractCreation     = 53_000
	TxDataNonZeroGasEIP2028   = 16
	TxDataZeroGasEIP2028      = 4
	TxAccessListAddressGas    = 2400
	TxAccessListStorageKeyGas = 1900

	// MaxRefundQuotient limits refunds to gasUsed/MaxRefundQuotient (EIP-3529).
	MaxRefundQuotient = 5
)

// Transactions failing any of these checks are rejected without any effect
// on the world state.
var (
	ErrNonceMismatch     = errors.New("nonce mismatch")
	ErrNonceMax          = errors.New("nonce has max value")
	ErrSenderNoEOA       = errors.New("sender not an eoa")
	ErrIntrinsicGas      = errors.New("intrinsic gas too low")
	ErrGasLimitReached   = errors.New("gas limit exceeds block gas limit")
	ErrFeeCapTooLow      = errors.New("max fee per gas less than block base fee")
	ErrTipAboveFeeCap    = errors.New("max priority fee per gas higher than max fee per gas")
	ErrInsufficientFunds = errors.New("insufficient funds for gas * price + value")
	ErrUnsupportedTxType = errors.New("transaction type not supported")
)

func init() {
	stf.RegisterProcessorFactory("transition", newProcessor)
}

func newProcessor(interpreter stf.Interpreter) stf.Processor {
	return NewProcessor(interpreter)
}

// NewProcessor creates a processor running contract code on the given
// interpreter.
func NewProcessor(interpreter stf.Interpreter) *processor {
	return &processor{
		interpreter: interpreter,
	}
}

type processor struct {
	interpreter stf.Interpreter
}

func (p *processor) Run(
	blockParams stf.BlockParameters,
	transaction stf.Transaction,
	context stf.TransactionContext,
) (stf.Receipt, error) {
	gasPrice, err := validate(blockParams, transaction, context)
	if err != nil {
		log.Debugf("rejected transaction of %v with nonce %d: %v", transaction.Sender, transaction.Nonce, err)
		return stf.Receipt{}, err
	}

	buyGas(transaction, context, gasPrice)
	gas := transaction.GasLimit - intrinsicGas(transaction)

	warmUpAccessList(transaction, context)

	ctx := runContext{
		TransactionContext: context,
		interpreter:        p.interpreter,
		blockParameters:    blockParams,
		transactionParameters: stf.TransactionParameters{
			Origin:   transaction.Sender,
			GasPrice: gasPrice,
		},
	}

	var result stf.CallResult
	var contractAddress *stf.Address
	if transaction.Recipient == nil {
		address := stf.Address(crypto.CreateAddress(common.Address(transaction.Sender), transaction.Nonce))
		contractAddress = &address
		result, err = ctx.Call(stf.Create, stf.CallParameters{
			Sender: transaction.Sender,
			Value:  transaction.Value,
			Input:  transaction.Input,
			Gas:    gas,
		})
	} else {
		context.SetNonce(transaction.Sender, transaction.Nonce+1)
		result, err = ctx.Call(stf.Call, stf.CallParameters{
			Sender:      transaction.Sender,
			Recipient:   *transaction.Recipient,
			Value:       transaction.Value,
			Input:       transaction.Input,
			Gas:         gas,
			CodeAddress: *transaction.Recipient,
		})
	}
	if err != nil {
		return stf.Receipt{}, fmt.Errorf("failed to execute transaction: %w", err)
	}

	gasLeft := result.GasLeft
	if result.Success {
		gasLeft += refundGas(transaction.GasLimit-gasLeft, result.GasRefund)
	}
	gasUsed := transaction.GasLimit - gasLeft

	// Unused gas is returned to the sender, the priority fee goes to the
	// beneficiary of the block.
	refund := gasPrice.Scale(uint64(gasLeft))
	context.SetBalance(transaction.Sender, stf.Add(context.GetBalance(transaction.Sender), refund))

	tip := stf.Sub(gasPrice, blockParams.BaseFee)
	reward := tip.Scale(uint64(gasUsed))
	context.SetBalance(blockParams.Coinbase, stf.Add(context.GetBalance(blockParams.Coinbase), reward))

	return stf.Receipt{
		Success:           result.Success,
		Output:            result.Output,
		ContractAddress:   contractAddress,
		GasUsed:           gasUsed,
		EffectiveGasPrice: gasPrice,
		Logs:              context.GetLogs(),
	}, nil
}

// validate checks the transaction against the block and the world state and
// returns the effective price per unit of gas.
func validate(
	blockParams stf.BlockParameters,
	transaction stf.Transaction,
	context stf.TransactionContext,
) (stf.Value, error) {
	stateNonce := context.GetNonce(transaction.Sender)
	if transaction.Nonce != stateNonce {
		return stf.Value{}, fmt.Errorf("%w: transaction %d, state %d", ErrNonceMismatch, transaction.Nonce, stateNonce)
	}
	if stateNonce == math.MaxUint64 {
		return stf.Value{}, ErrNonceMax
	}

	// EIP-3607: transactions from accounts with deployed code are rejected.
	if context.GetCodeSize(transaction.Sender) != 0 {
		return stf.Value{}, ErrSenderNoEOA
	}

	if transaction.GasLimit < 0 || transaction.GasLimit > blockParams.GasLimit {
		return stf.Value{}, fmt.Errorf("%w: %d > %d", ErrGasLimitReached, transaction.GasLimit, blockParams.GasLimit)
	}
	if required := intrinsicGas(transaction); transaction.GasLimit < required {
		return stf.Value{}, fmt.Errorf("%w: have %d, want %d", ErrIntrinsicGas, transaction.GasLimit, required)
	}

	gasPrice, feeCap, err := effectiveGasPrice(blockParams.BaseFee, transaction)
	if err != nil {
		return stf.Value{}, err
	}

	// The sender has to be able to pay for the worst case.
	cost, overflow := feeCap.ScaleWithOverflow(uint64(transaction.GasLimit))
	if overflow {
		return stf.Value{}, ErrInsufficientFunds
	}
	total := stf.Add(cost, transaction.Value)
	if total.Cmp(cost) < 0 {
		return stf.Value{}, ErrInsufficientFunds
	}
	if balance := context.GetBalance(transaction.Sender); balance.Cmp(total) < 0 {
		return stf.Value{}, fmt.Errorf("%w: address %v have %v want %v", ErrInsufficientFunds, transaction.Sender, balance, total)
	}
	return gasPrice, nil
}

// effectiveGasPrice returns the price paid per unit of gas and the maximum
// price the sender has to be able to afford.
func effectiveGasPrice(baseFee stf.Value, transaction stf.Transaction) (price stf.Value, feeCap stf.Value, err error) {
	switch transaction.Type {
	case stf.LegacyTxType, stf.AccessListTxType:
		if transaction.GasPrice.Cmp(baseFee) < 0 {
			return stf.Value{}, stf.Value{}, fmt.Errorf("%w: gas price %v, base fee %v", ErrFeeCapTooLow, transaction.GasPrice, baseFee)
		}
		return transaction.GasPrice, transaction.GasPrice, nil
	case stf.DynamicFeeTxType:
		if transaction.GasTipCap.Cmp(transaction.GasFeeCap) > 0 {
			return stf.Value{}, stf.Value{}, fmt.Errorf("%w: tip %v, fee cap %v", ErrTipAboveFeeCap, transaction.GasTipCap, transaction.GasFeeCap)
		}
		if transaction.GasFeeCap.Cmp(baseFee) < 0 {
			return stf.Value{}, stf.Value{}, fmt.Errorf("%w: fee cap %v, base fee %v", ErrFeeCapTooLow, transaction.GasFeeCap, baseFee)
		}
		price := stf.Add(baseFee, transaction.GasTipCap)
		if price.Cmp(baseFee) < 0 { // overflow
			price = transaction.GasFeeCap
		}
		return stf.Min(price, transaction.GasFeeCap), transaction.GasFeeCap, nil
	default:
		return stf.Value{}, stf.Value{}, fmt.Errorf("%w: %d", ErrUnsupportedTxType, transaction.Type)
	}
}

func intrinsicGas(transaction stf.Transaction) stf.Gas {
	var gas stf.Gas
	if transaction.Recipient == nil {
		gas = TxGasContractCreation
	} else {
		gas = TxGas
	}

	if len(transaction.Input) > 0 {
		nonZeroBytes := stf.Gas(0)
		for _, inputByte := range transaction.Input {
			if inputByte != 0 {
				nonZeroBytes++
			}
		}
		zeroBytes := stf.Gas(len(transaction.Input)) - nonZeroBytes
		gas += zeroBytes * TxDataZeroGasEIP2028
		gas += nonZeroBytes * TxDataNonZeroGasEIP2028
	}

	// Inputs large enough to overflow this sum can not be held in memory.
	for _, accessTuple := range transaction.AccessList {
		gas += TxAccessListAddressGas
		gas += stf.Gas(len(accessTuple.Keys)) * TxAccessListStorageKeyGas
	}
	return gas
}

func buyGas(transaction stf.Transaction, context stf.TransactionContext, gasPrice stf.Value) {
	cost := gasPrice.Scale(uint64(transaction.GasLimit))
	context.SetBalance(transaction.Sender, stf.Sub(context.GetBalance(transaction.Sender), cost))
}

// warmUpAccessList marks the accounts and slots every transaction starts
// with as accessed (EIP-2929, EIP-2930).
func warmUpAccessList(transaction stf.Transaction, context stf.TransactionContext) {
	context.AccessAccount(transaction.Sender)
	if transaction.Recipient != nil {
		context.AccessAccount(*transaction.Recipient)
	}
	for _, address := range stf.PrecompiledContracts() {
		context.AccessAccount(address)
	}
	for _, accessTuple := range transaction.AccessList {
		context.AccessAccount(accessTuple.Address)
		for _, key := range accessTuple.Keys {
			context.AccessStorage(accessTuple.Address, key)
		}
	}
}

// refundGas returns the part of the accumulated refund granted to a
// transaction that consumed the given amount of gas.
func refundGas(gasUsed stf.Gas, refund stf.Gas) stf.Gas {
	if refund <= 0 {
		return 0
	}
	return min(refund, gasUsed/MaxRefundQuotient)
}
