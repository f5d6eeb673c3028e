// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package chain connects the transaction processor to blocks: it decodes
// signed transactions, tracks the history of block headers, and applies
// whole blocks to a world state producing receipts and commitments.
package chain

import (
	"math/big"

	"github.com/Fantom-foundation/stf/go/stf"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	logging "github.com/ipfs/go-log"
)

var log = logging.Logger("chain")

// Header summarizes the fields of a block header relevant for the execution
// of its transactions together with the commitments to its results.
type Header struct {
	ParentHash stf.Hash
	Coinbase   stf.Address
	Number     int64
	GasLimit   stf.Gas
	Timestamp  int64
	PrevRandao stf.Hash
	BaseFee    stf.Value

	// Filled in by block processing.
	StateRoot        stf.Hash
	TransactionsRoot stf.Hash
	ReceiptsRoot     stf.Hash
	Bloom            Bloom
	GasUsed          stf.Gas
}

// Hash computes the hash of the header as defined by the Ethereum protocol
// for post-merge headers.
func (h Header) Hash() stf.Hash {
	return stf.Hash(h.toGeth().Hash())
}

func (h Header) toGeth() *types.Header {
	return &types.Header{
		ParentHash:  common.Hash(h.ParentHash),
		UncleHash:   types.EmptyUncleHash,
		Coinbase:    common.Address(h.Coinbase),
		Root:        common.Hash(h.StateRoot),
		TxHash:      common.Hash(h.TransactionsRoot),
		ReceiptHash: common.Hash(h.ReceiptsRoot),
		Bloom:       types.Bloom(h.Bloom),
		Difficulty:  new(big.Int),
		Number:      big.NewInt(h.Number),
		GasLimit:    uint64(h.GasLimit),
		GasUsed:     uint64(h.GasUsed),
		Time:        uint64(h.Timestamp),
		MixDigest:   common.Hash(h.PrevRandao),
		BaseFee:     h.BaseFee.ToBig(),
	}
}

// BlockParameters derives the parameters exposed to executed code.
func (h Header) BlockParameters(chainID uint64) stf.BlockParameters {
	return stf.BlockParameters{
		ChainID:     stf.Word(stf.NewValue(chainID)),
		BlockNumber: h.Number,
		Timestamp:   h.Timestamp,
		Coinbase:    h.Coinbase,
		GasLimit:    h.GasLimit,
		PrevRandao:  h.PrevRandao,
		BaseFee:     h.BaseFee,
	}
}

// Block is a header with the binary encodings of its transactions.
type Block struct {
	Header       Header
	ChainID      uint64
	Transactions [][]byte
}
