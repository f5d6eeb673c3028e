// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package state

import (
	"bytes"
	"fmt"

	"github.com/Fantom-foundation/stf/go/stf"
	"github.com/Fantom-foundation/stf/go/trie"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
)

// RootHash computes the state root over all accounts. Accounts are keyed by
// the Keccak-256 hash of their address and encoded as the RLP list
// [nonce, balance, storageRoot, codeHash].
func (s *State) RootHash() (stf.Hash, error) {
	entries := make([]trie.Entry, 0, len(s.accounts))
	for address, acc := range s.accounts {
		value, err := encodeAccount(acc)
		if err != nil {
			return stf.Hash{}, fmt.Errorf("failed to encode account %v: %w", address, err)
		}
		key := stf.Keccak256(address[:])
		entries = append(entries, trie.Entry{Key: key[:], Value: value})
	}
	return trie.ComputeRootHash(entries), nil
}

// StorageRoot computes the root of the storage trie of the given account.
func (s *State) StorageRoot(address stf.Address) (stf.Hash, error) {
	acc, found := s.accounts[address]
	if !found {
		return trie.EmptyRootHash, nil
	}
	return storageRoot(acc)
}

func storageRoot(acc *account) (stf.Hash, error) {
	entries := make([]trie.Entry, 0, len(acc.storage))
	for key, value := range acc.storage {
		encoded, err := rlp.EncodeToBytes(bytes.TrimLeft(value[:], "\x00"))
		if err != nil {
			return stf.Hash{}, err
		}
		hashedKey := stf.Keccak256(key[:])
		entries = append(entries, trie.Entry{Key: hashedKey[:], Value: encoded})
	}
	return trie.ComputeRootHash(entries), nil
}

func encodeAccount(acc *account) ([]byte, error) {
	root, err := storageRoot(acc)
	if err != nil {
		return nil, err
	}
	return rlp.EncodeToBytes(&types.StateAccount{
		Nonce:    acc.nonce,
		Balance:  acc.balance.ToUint256(),
		Root:     common.Hash(root),
		CodeHash: acc.codeHash[:],
	})
}
