// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/Fantom-foundation/stf/go/chain"
	"github.com/Fantom-foundation/stf/go/state"
	"github.com/Fantom-foundation/stf/go/stf"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// fixture describes a pre-state and a sequence of blocks to be applied to it.
type fixture struct {
	ChainID *hexutil.Uint64                   `json:"chainId,omitempty"`
	Pre     map[common.Address]fixtureAccount `json:"pre"`
	Blocks  []fixtureBlock                    `json:"blocks"`
}

type fixtureAccount struct {
	Balance *hexutil.Big                `json:"balance"`
	Nonce   hexutil.Uint64              `json:"nonce"`
	Code    hexutil.Bytes               `json:"code"`
	Storage map[common.Hash]common.Hash `json:"storage"`
}

type fixtureBlock struct {
	Coinbase     common.Address  `json:"coinbase"`
	Number       *hexutil.Uint64 `json:"number,omitempty"`
	GasLimit     hexutil.Uint64  `json:"gasLimit"`
	Timestamp    hexutil.Uint64  `json:"timestamp"`
	PrevRandao   common.Hash     `json:"prevRandao"`
	BaseFee      *hexutil.Big    `json:"baseFee"`
	Transactions []hexutil.Bytes `json:"transactions"`
}

func loadFixture(path string) (*fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	res := &fixture{}
	if err := json.Unmarshal(data, res); err != nil {
		return nil, fmt.Errorf("failed to parse fixture %s: %w", path, err)
	}
	return res, nil
}

// preState builds a world state holding the accounts of the fixture.
func (f *fixture) preState() (*state.State, error) {
	s := state.NewState(nil)
	for address, account := range f.Pre {
		addr := stf.Address(address)
		balance, err := stf.ValueFromBig(account.Balance.ToInt())
		if err != nil {
			return nil, fmt.Errorf("invalid balance of %v: %w", addr, err)
		}
		s.SetBalance(addr, balance)
		s.SetNonce(addr, uint64(account.Nonce))
		s.SetCode(addr, stf.Code(account.Code))
		for key, value := range account.Storage {
			s.SetStorage(addr, stf.Key(key), stf.Word(value))
		}
	}
	// Makes the pre-state the committed state; empty accounts are retained.
	s.BeginTransaction()
	return s, nil
}

// block converts the fixture block into a block extending the given parent.
func (b *fixtureBlock) block(parent chain.Header, chainID uint64) (chain.Block, error) {
	number := parent.Number + 1
	if b.Number != nil {
		number = int64(*b.Number)
	}
	baseFee, err := stf.ValueFromBig(b.BaseFee.ToInt())
	if err != nil {
		return chain.Block{}, fmt.Errorf("invalid base fee: %w", err)
	}
	transactions := make([][]byte, 0, len(b.Transactions))
	for _, tx := range b.Transactions {
		transactions = append(transactions, tx)
	}
	return chain.Block{
		Header: chain.Header{
			ParentHash: parent.Hash(),
			Coinbase:   stf.Address(b.Coinbase),
			Number:     number,
			GasLimit:   stf.Gas(b.GasLimit),
			Timestamp:  int64(b.Timestamp),
			PrevRandao: stf.Hash(b.PrevRandao),
			BaseFee:    baseFee,
		},
		ChainID:      chainID,
		Transactions: transactions,
	}, nil
}
