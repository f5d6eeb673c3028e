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
	"math/big"

	"github.com/Fantom-foundation/stf/go/stf"
	"github.com/Fantom-foundation/stf/go/trie"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var ErrBlockGasLimitReached = errors.New("block gas limit reached")

// State is a world state blocks can be applied to.
type State interface {
	stf.TransactionContext
	BeginTransaction()
	EndTransaction()
	SetChainHistory(stf.ChainHistory)
	RootHash() (stf.Hash, error)
}

// Receipt is the outcome of a transaction within a block.
type Receipt struct {
	stf.Receipt
	Type              stf.TransactionType
	TransactionHash   stf.Hash
	CumulativeGasUsed stf.Gas
	Bloom             Bloom
}

// BlockResult summarizes the effects of a block.
type BlockResult struct {
	// Header is the header of the block with all commitments filled in.
	Header   Header
	Receipts []Receipt
}

// ApplyBlock executes the transactions of the given block in order on the
// given state. Block hashes are resolved through the history, which may be
// nil. If any transaction is invalid, the block is rejected with an error
// and the state is left in an undefined condition.
func ApplyBlock(state State, block Block, processor stf.Processor, history History) (BlockResult, error) {
	header := block.Header
	if history != nil {
		state.SetChainHistory(history.ForBlock(header))
	}

	params := header.BlockParameters(block.ChainID)
	signer := types.LatestSignerForChainID(new(big.Int).SetUint64(block.ChainID))

	gasLeft := header.GasLimit
	var cumulativeGasUsed stf.Gas
	var bloom Bloom
	receipts := make([]Receipt, 0, len(block.Transactions))

	for i, raw := range block.Transactions {
		hash := TransactionHash(raw)
		transaction, err := decodeTransaction(raw, signer)
		if err != nil {
			return BlockResult{}, fmt.Errorf("could not apply tx %d [%v]: %w", i, hash, err)
		}
		if transaction.GasLimit > gasLeft {
			return BlockResult{}, fmt.Errorf("could not apply tx %d [%v]: %w: have %d, want %d",
				i, hash, ErrBlockGasLimitReached, gasLeft, transaction.GasLimit)
		}

		state.BeginTransaction()
		receipt, err := processor.Run(params, transaction, state)
		if err != nil {
			return BlockResult{}, fmt.Errorf("could not apply tx %d [%v]: %w", i, hash, err)
		}
		state.EndTransaction()

		gasLeft -= receipt.GasUsed
		cumulativeGasUsed += receipt.GasUsed

		result := Receipt{
			Receipt:           receipt,
			Type:              transaction.Type,
			TransactionHash:   hash,
			CumulativeGasUsed: cumulativeGasUsed,
			Bloom:             LogsBloom(receipt.Logs),
		}
		bloom.Merge(result.Bloom)
		receipts = append(receipts, result)
	}

	stateRoot, err := state.RootHash()
	if err != nil {
		return BlockResult{}, fmt.Errorf("failed to compute state root: %w", err)
	}

	receiptsRoot, err := ReceiptsRoot(receipts)
	if err != nil {
		return BlockResult{}, err
	}

	header.StateRoot = stateRoot
	header.TransactionsRoot = TransactionsRoot(block.Transactions)
	header.ReceiptsRoot = receiptsRoot
	header.Bloom = bloom
	header.GasUsed = cumulativeGasUsed

	log.Debugf("applied block %d with %d transactions, gas used %d, state root %v",
		header.Number, len(receipts), cumulativeGasUsed, stateRoot)

	return BlockResult{
		Header:   header,
		Receipts: receipts,
	}, nil
}

// TransactionsRoot computes the root of the trie mapping the RLP encoded
// index of each transaction to its binary encoding.
func TransactionsRoot(transactions [][]byte) stf.Hash {
	return trie.OrderedListRoot(transactions)
}

// ReceiptsRoot computes the root of the trie mapping the RLP encoded index
// of each receipt to its consensus encoding.
func ReceiptsRoot(receipts []Receipt) (stf.Hash, error) {
	encoded := make([][]byte, 0, len(receipts))
	for i, receipt := range receipts {
		data, err := encodeReceipt(receipt)
		if err != nil {
			return stf.Hash{}, fmt.Errorf("failed to encode receipt %d: %w", i, err)
		}
		encoded = append(encoded, data)
	}
	return trie.OrderedListRoot(encoded), nil
}

// encodeReceipt produces the consensus encoding of a receipt, the value
// stored in the receipts trie.
func encodeReceipt(receipt Receipt) ([]byte, error) {
	status := types.ReceiptStatusFailed
	if receipt.Success {
		status = types.ReceiptStatusSuccessful
	}
	logs := make([]*types.Log, 0, len(receipt.Logs))
	for _, log := range receipt.Logs {
		topics := make([]common.Hash, 0, len(log.Topics))
		for _, topic := range log.Topics {
			topics = append(topics, common.Hash(topic))
		}
		logs = append(logs, &types.Log{
			Address: common.Address(log.Address),
			Topics:  topics,
			Data:    log.Data,
		})
	}
	return (&types.Receipt{
		Type:              uint8(receipt.Type),
		Status:            status,
		CumulativeGasUsed: uint64(receipt.CumulativeGasUsed),
		Bloom:             types.Bloom(receipt.Bloom),
		Logs:              logs,
	}).MarshalBinary()
}
