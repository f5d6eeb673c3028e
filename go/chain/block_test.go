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
	"crypto/ecdsa"
	"errors"
	"math/big"
	"testing"

	"github.com/Fantom-foundation/stf/go/interpreter/evm"
	"github.com/Fantom-foundation/stf/go/processor/transition"
	"github.com/Fantom-foundation/stf/go/state"
	"github.com/Fantom-foundation/stf/go/stf"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	gethtrie "github.com/ethereum/go-ethereum/trie"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testChainID = 1

var (
	logger       = stf.Address{0xc1}
	hashStorer   = stf.Address{0xc2}
	testCoinbase = stf.Address{0xcb}
)

type blockTestSetup struct {
	key     *ecdsa.PrivateKey
	sender  stf.Address
	state   *state.State
	history *MemoryHistory
	genesis Header
}

func newBlockTestSetup(t *testing.T) *blockTestSetup {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	sender := stf.Address(crypto.PubkeyToAddress(key.PublicKey))

	s := state.NewState(nil)
	s.SetBalance(sender, stf.NewValue(1_000_000_000_000))
	s.SetCode(logger, []byte{
		0x60, 0x07, // PUSH1 7
		0x5f, // PUSH0
		0x5f, // PUSH0
		0xa1, // LOG1
		0x00, // STOP
	})
	s.SetCode(hashStorer, []byte{
		0x60, 0x00, // PUSH1 0
		0x40, // BLOCKHASH
		0x5f, // PUSH0
		0x55, // SSTORE
		0x00, // STOP
	})
	s.EndTransaction()

	history, err := NewMemoryHistory(0)
	require.NoError(t, err)
	root, err := s.RootHash()
	require.NoError(t, err)
	genesis := Header{Number: 0, GasLimit: 30_000_000, StateRoot: root}
	history.Add(genesis)

	return &blockTestSetup{
		key:     key,
		sender:  sender,
		state:   s,
		history: history,
		genesis: genesis,
	}
}

func (s *blockTestSetup) transaction(t *testing.T, nonce uint64, to *stf.Address, data []byte) *types.Transaction {
	t.Helper()
	var recipient *common.Address
	if to != nil {
		address := common.Address(*to)
		recipient = &address
	}
	signer := types.LatestSignerForChainID(big.NewInt(testChainID))
	tx, err := types.SignNewTx(s.key, signer, &types.DynamicFeeTx{
		ChainID:   big.NewInt(testChainID),
		Nonce:     nonce,
		GasTipCap: big.NewInt(2),
		GasFeeCap: big.NewInt(20),
		Gas:       100_000,
		To:        recipient,
		Value:     big.NewInt(1),
		Data:      data,
	})
	require.NoError(t, err)
	return tx
}

func (s *blockTestSetup) block(t *testing.T, gasLimit stf.Gas, transactions ...*types.Transaction) Block {
	t.Helper()
	raw := make([][]byte, 0, len(transactions))
	for _, tx := range transactions {
		encoded, err := tx.MarshalBinary()
		require.NoError(t, err)
		raw = append(raw, encoded)
	}
	return Block{
		Header: Header{
			ParentHash: s.genesis.Hash(),
			Coinbase:   testCoinbase,
			Number:     1,
			GasLimit:   gasLimit,
			Timestamp:  12,
			BaseFee:    stf.NewValue(7),
		},
		ChainID:      testChainID,
		Transactions: raw,
	}
}

func newTestProcessor(t *testing.T) stf.Processor {
	t.Helper()
	interpreter, err := evm.NewInterpreter(evm.Config{})
	require.NoError(t, err)
	return transition.NewProcessor(interpreter)
}

func TestApplyBlock_ProducesReceiptsAndCommitments(t *testing.T) {
	setup := newBlockTestSetup(t)
	recipient := stf.Address{0x01}
	transactions := types.Transactions{
		setup.transaction(t, 0, &recipient, nil),
		setup.transaction(t, 1, &logger, nil),
		setup.transaction(t, 2, nil, []byte{0x00}),
		setup.transaction(t, 3, &hashStorer, nil),
	}
	block := setup.block(t, 30_000_000, transactions...)

	result, err := ApplyBlock(setup.state, block, newTestProcessor(t), setup.history)
	require.NoError(t, err)
	require.Len(t, result.Receipts, len(transactions))

	gethReceipts := types.Receipts{}
	cumulative := stf.Gas(0)
	for i, receipt := range result.Receipts {
		assert.True(t, receipt.Success, "transaction %d failed", i)
		assert.Equal(t, stf.DynamicFeeTxType, receipt.Type)
		assert.Equal(t, stf.Hash(transactions[i].Hash()), receipt.TransactionHash)

		cumulative += receipt.GasUsed
		assert.Equal(t, cumulative, receipt.CumulativeGasUsed)

		gethReceipt := &types.Receipt{
			Type:              types.DynamicFeeTxType,
			Status:            types.ReceiptStatusSuccessful,
			CumulativeGasUsed: uint64(cumulative),
		}
		for _, log := range receipt.Logs {
			topics := []common.Hash{}
			for _, topic := range log.Topics {
				topics = append(topics, common.Hash(topic))
			}
			gethReceipt.Logs = append(gethReceipt.Logs, &types.Log{
				Address: common.Address(log.Address),
				Topics:  topics,
				Data:    log.Data,
			})
		}
		gethReceipt.Bloom = types.CreateBloom(types.Receipts{gethReceipt})
		assert.Equal(t, Bloom(gethReceipt.Bloom), receipt.Bloom)
		gethReceipts = append(gethReceipts, gethReceipt)
	}

	header := result.Header
	assert.Equal(t, cumulative, header.GasUsed)
	assert.Equal(t, stf.Gas(21_000), result.Receipts[0].GasUsed)
	require.Len(t, result.Receipts[1].Logs, 1)
	assert.Equal(t, logger, result.Receipts[1].Logs[0].Address)
	assert.True(t, header.Bloom.Test(logger[:]))
	require.NotNil(t, result.Receipts[2].ContractAddress)

	wantTxRoot := types.DeriveSha(transactions, gethtrie.NewStackTrie(nil))
	assert.Equal(t, stf.Hash(wantTxRoot), header.TransactionsRoot)
	wantReceiptsRoot := types.DeriveSha(gethReceipts, gethtrie.NewStackTrie(nil))
	assert.Equal(t, stf.Hash(wantReceiptsRoot), header.ReceiptsRoot)

	stateRoot, err := setup.state.RootHash()
	require.NoError(t, err)
	assert.Equal(t, stateRoot, header.StateRoot)
	assert.NotEqual(t, setup.genesis.StateRoot, header.StateRoot)

	// BLOCKHASH(0) is resolved through the history.
	assert.Equal(t, stf.Word(setup.genesis.Hash()), setup.state.GetStorage(hashStorer, stf.Key{}))

	assert.Equal(t, stf.NewValue(1), setup.state.GetBalance(recipient))
	assert.Equal(t, stf.NewValue(uint64(2*cumulative)), setup.state.GetBalance(testCoinbase))
	assert.Equal(t, uint64(4), setup.state.GetNonce(setup.sender))
}

func TestApplyBlock_EmptyBlockHasEmptyRoots(t *testing.T) {
	setup := newBlockTestSetup(t)
	result, err := ApplyBlock(setup.state, setup.block(t, 30_000_000), newTestProcessor(t), nil)
	require.NoError(t, err)

	assert.Empty(t, result.Receipts)
	assert.Equal(t, stf.Hash(types.EmptyTxsHash), result.Header.TransactionsRoot)
	assert.Equal(t, stf.Hash(types.EmptyReceiptsHash), result.Header.ReceiptsRoot)
	assert.Equal(t, setup.genesis.StateRoot, result.Header.StateRoot)
	assert.Equal(t, stf.Gas(0), result.Header.GasUsed)
}

func TestApplyBlock_BlockGasLimitIsEnforced(t *testing.T) {
	setup := newBlockTestSetup(t)
	recipient := stf.Address{0x01}
	block := setup.block(t, 110_000,
		setup.transaction(t, 0, &recipient, nil),
		setup.transaction(t, 1, &recipient, nil),
	)

	// The first transaction uses 21000 gas, leaving 89000 for the second
	// one which asks for 100000.
	_, err := ApplyBlock(setup.state, block, newTestProcessor(t), setup.history)
	assert.True(t, errors.Is(err, ErrBlockGasLimitReached), "unexpected error: %v", err)
}

func TestApplyBlock_InvalidTransactionsRejectTheBlock(t *testing.T) {
	setup := newBlockTestSetup(t)
	recipient := stf.Address{0x01}
	block := setup.block(t, 30_000_000, setup.transaction(t, 5, &recipient, nil))

	_, err := ApplyBlock(setup.state, block, newTestProcessor(t), setup.history)
	assert.True(t, errors.Is(err, transition.ErrNonceMismatch), "unexpected error: %v", err)
}

func TestApplyBlock_UndecodableTransactionsRejectTheBlock(t *testing.T) {
	setup := newBlockTestSetup(t)
	block := setup.block(t, 30_000_000)
	block.Transactions = [][]byte{{0x01, 0x02}}

	_, err := ApplyBlock(setup.state, block, newTestProcessor(t), setup.history)
	assert.Error(t, err)
}

func TestTransactionsAndReceiptsRoot_OfEmptyListsAreEmptyRoots(t *testing.T) {
	root, err := ReceiptsRoot(nil)
	require.NoError(t, err)
	assert.Equal(t, stf.Hash(types.EmptyReceiptsHash), root)
	assert.Equal(t, stf.Hash(types.EmptyTxsHash), TransactionsRoot(nil))
}
