// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package chain

import (
	"errors"
	"fmt"
	"math"
	"math/big"

	"github.com/Fantom-foundation/stf/go/stf"
	"github.com/ethereum/go-ethereum/core/types"
)

var ErrUnsupportedTransactionType = errors.New("unsupported transaction type")

// DecodeTransaction parses the binary encoding of a signed transaction and
// recovers its sender. Legacy, access list (EIP-2930) and dynamic fee
// (EIP-1559) transactions are supported.
func DecodeTransaction(raw []byte, chainID uint64) (stf.Transaction, error) {
	return decodeTransaction(raw, types.LatestSignerForChainID(new(big.Int).SetUint64(chainID)))
}

func decodeTransaction(raw []byte, signer types.Signer) (stf.Transaction, error) {
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return stf.Transaction{}, fmt.Errorf("failed to decode transaction: %w", err)
	}
	return convertTransaction(tx, signer)
}

func convertTransaction(tx *types.Transaction, signer types.Signer) (stf.Transaction, error) {
	var txType stf.TransactionType
	switch tx.Type() {
	case types.LegacyTxType:
		txType = stf.LegacyTxType
	case types.AccessListTxType:
		txType = stf.AccessListTxType
	case types.DynamicFeeTxType:
		txType = stf.DynamicFeeTxType
	default:
		return stf.Transaction{}, fmt.Errorf("%w: %d", ErrUnsupportedTransactionType, tx.Type())
	}

	// Signatures with high s values are rejected by the signer (EIP-2).
	sender, err := types.Sender(signer, tx)
	if err != nil {
		return stf.Transaction{}, fmt.Errorf("invalid signature: %w", err)
	}

	if tx.Gas() > math.MaxInt64 {
		return stf.Transaction{}, fmt.Errorf("gas limit out of range: %d", tx.Gas())
	}

	value, err := stf.ValueFromBig(tx.Value())
	if err != nil {
		return stf.Transaction{}, fmt.Errorf("invalid value: %w", err)
	}
	gasPrice, err := stf.ValueFromBig(tx.GasPrice())
	if err != nil {
		return stf.Transaction{}, fmt.Errorf("invalid gas price: %w", err)
	}
	gasFeeCap, err := stf.ValueFromBig(tx.GasFeeCap())
	if err != nil {
		return stf.Transaction{}, fmt.Errorf("invalid fee cap: %w", err)
	}
	gasTipCap, err := stf.ValueFromBig(tx.GasTipCap())
	if err != nil {
		return stf.Transaction{}, fmt.Errorf("invalid tip cap: %w", err)
	}

	var recipient *stf.Address
	if to := tx.To(); to != nil {
		address := stf.Address(*to)
		recipient = &address
	}

	var accessList []stf.AccessTuple
	for _, tuple := range tx.AccessList() {
		keys := make([]stf.Key, 0, len(tuple.StorageKeys))
		for _, key := range tuple.StorageKeys {
			keys = append(keys, stf.Key(key))
		}
		accessList = append(accessList, stf.AccessTuple{
			Address: stf.Address(tuple.Address),
			Keys:    keys,
		})
	}

	return stf.Transaction{
		Type:       txType,
		Sender:     stf.Address(sender),
		Recipient:  recipient,
		Nonce:      tx.Nonce(),
		Input:      tx.Data(),
		Value:      value,
		GasLimit:   stf.Gas(tx.Gas()),
		GasPrice:   gasPrice,
		GasFeeCap:  gasFeeCap,
		GasTipCap:  gasTipCap,
		AccessList: accessList,
	}, nil
}

// TransactionHash computes the hash identifying an encoded transaction.
func TransactionHash(raw []byte) stf.Hash {
	return stf.Keccak256(raw)
}
