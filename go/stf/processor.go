// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package stf

//go:generate mockgen -source processor.go -destination processor_mock.go -package stf

// Processor is an interface for a component capable of executing transactions.
type Processor interface {
	// Run executes the transaction provided by the parameters in the specified
	// context. Transactions failing the validity checks are rejected with an
	// error and leave the context unmodified. Errors during the execution
	// itself, like reverts or running out of gas, are reported through the
	// receipt.
	Run(BlockParameters, Transaction, TransactionContext) (Receipt, error)
}

// TransactionType distinguishes the supported transaction envelopes.
type TransactionType uint8

const (
	LegacyTxType     TransactionType = 0 // < priced by GasPrice
	AccessListTxType TransactionType = 1 // < EIP-2930, priced by GasPrice
	DynamicFeeTxType TransactionType = 2 // < EIP-1559, priced by GasFeeCap and GasTipCap
)

type Transaction struct {
	Type       TransactionType // the envelope the transaction was submitted in
	Sender     Address         // the sender of the transaction, paying for its execution
	Recipient  *Address        // the receiver of a transaction, nil if a new contract is to be created
	Nonce      uint64          // the nonce of the sender account, used to prevent replay attacks
	Input      Data            // the input data for the transaction
	Value      Value           // the amount of network currency to transfer to the recipient
	GasLimit   Gas             // the maximum amount of gas that can be used by the transaction
	GasPrice   Value           // the price of a unit of gas for legacy and access list transactions
	GasFeeCap  Value           // the maximum price per unit of gas of dynamic fee transactions
	GasTipCap  Value           // the maximum priority fee per unit of gas of dynamic fee transactions
	AccessList []AccessTuple   // the list of accounts and storage slots expected to be accessed
}

type AccessTuple struct {
	Address Address
	Keys    []Key
}

type Receipt struct {
	Success           bool     // false if the execution ended in a revert, true otherwise
	Output            Data     // the output produced by the transaction
	ContractAddress   *Address // filled if a contract was created by this transaction
	GasUsed           Gas      // gas used by the transaction after refunds
	EffectiveGasPrice Value    // the price per unit of gas paid by the sender
	Logs              []Log    // logs produced by the transaction
}
