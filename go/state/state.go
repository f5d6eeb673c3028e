// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package state provides an in-memory world state with a journal of
// versioned deltas. Snapshots are positions in the journal, restoring a
// snapshot undoes the recorded deltas in reverse order. Besides accounts, the
// state tracks the accrued sub-state of the ongoing transaction.
package state

import (
	"github.com/Fantom-foundation/stf/go/stf"
	logging "github.com/ipfs/go-log"
	"golang.org/x/exp/maps"
)

// Logger
var log = logging.Logger("state")

type account struct {
	nonce    uint64
	balance  stf.Value
	code     stf.Code
	codeHash stf.Hash
	storage  map[stf.Key]stf.Word
}

func newAccount() *account {
	return &account{
		codeHash: stf.EmptyCodeHash,
		storage:  map[stf.Key]stf.Word{},
	}
}

func (a *account) isEmpty() bool {
	return a.nonce == 0 && a.balance.IsZero() && len(a.code) == 0
}

type slot struct {
	address stf.Address
	key     stf.Key
}

// State is an in-memory world state implementing stf.TransactionContext.
// A State is not thread-safe.
type State struct {
	accounts map[stf.Address]*account
	history  stf.ChainHistory

	// Transaction scoped data, reset by BeginTransaction and EndTransaction.
	journal        []func()
	original       map[slot]stf.Word
	warmAccounts   map[stf.Address]struct{}
	warmSlots      map[slot]struct{}
	logs           []stf.Log
	selfDestructed map[stf.Address]struct{}
	touched        map[stf.Address]struct{}
}

// NewState creates an empty state. The chain history is used to resolve
// block hashes and may be nil, in which case all block hashes are zero.
func NewState(history stf.ChainHistory) *State {
	s := &State{
		accounts: map[stf.Address]*account{},
		history:  history,
	}
	s.resetTransaction()
	return s
}

func (s *State) resetTransaction() {
	s.journal = nil
	s.original = map[slot]stf.Word{}
	s.warmAccounts = map[stf.Address]struct{}{}
	s.warmSlots = map[slot]struct{}{}
	s.logs = nil
	s.selfDestructed = map[stf.Address]struct{}{}
	s.touched = map[stf.Address]struct{}{}
}

// BeginTransaction starts a new transaction with an empty sub-state.
func (s *State) BeginTransaction() {
	s.resetTransaction()
}

// EndTransaction finalises the ongoing transaction: self-destructed accounts
// are removed, as are touched accounts that ended up empty. Afterwards, the
// current storage values become the original values of the next transaction
// and the journal is cleared, making the changes permanent.
func (s *State) EndTransaction() {
	for address := range s.selfDestructed {
		delete(s.accounts, address)
		log.Debugf("removed self-destructed account %v", address)
	}
	for address := range s.touched {
		if acc, found := s.accounts[address]; found && acc.isEmpty() {
			delete(s.accounts, address)
			log.Debugf("removed empty account %v", address)
		}
	}
	s.resetTransaction()
}

// Accounts lists the addresses of all accounts in the state.
func (s *State) Accounts() []stf.Address {
	return maps.Keys(s.accounts)
}

// StorageKeys lists the keys of all non-zero storage slots of an account.
func (s *State) StorageKeys(address stf.Address) []stf.Key {
	acc, found := s.accounts[address]
	if !found {
		return nil
	}
	return maps.Keys(acc.storage)
}

func (s *State) AccountExists(address stf.Address) bool {
	_, found := s.accounts[address]
	return found
}

func (s *State) IsDead(address stf.Address) bool {
	acc, found := s.accounts[address]
	return !found || acc.isEmpty()
}

func (s *State) GetBalance(address stf.Address) stf.Value {
	if acc, found := s.accounts[address]; found {
		return acc.balance
	}
	return stf.Value{}
}

func (s *State) SetBalance(address stf.Address, value stf.Value) {
	acc := s.getOrCreate(address)
	prev := acc.balance
	s.record(func() { acc.balance = prev })
	acc.balance = value
}

func (s *State) GetNonce(address stf.Address) uint64 {
	if acc, found := s.accounts[address]; found {
		return acc.nonce
	}
	return 0
}

func (s *State) SetNonce(address stf.Address, nonce uint64) {
	acc := s.getOrCreate(address)
	prev := acc.nonce
	s.record(func() { acc.nonce = prev })
	acc.nonce = nonce
}

func (s *State) GetCode(address stf.Address) stf.Code {
	if acc, found := s.accounts[address]; found {
		return acc.code
	}
	return nil
}

// GetCodeHash returns the hash of the account's code, or the zero hash if
// the account does not exist.
func (s *State) GetCodeHash(address stf.Address) stf.Hash {
	if acc, found := s.accounts[address]; found {
		return acc.codeHash
	}
	return stf.Hash{}
}

func (s *State) GetCodeSize(address stf.Address) int {
	return len(s.GetCode(address))
}

func (s *State) SetCode(address stf.Address, code stf.Code) {
	acc := s.getOrCreate(address)
	prevCode, prevHash := acc.code, acc.codeHash
	s.record(func() { acc.code, acc.codeHash = prevCode, prevHash })
	acc.code = code
	acc.codeHash = stf.Keccak256(code)
}

func (s *State) GetStorage(address stf.Address, key stf.Key) stf.Word {
	if acc, found := s.accounts[address]; found {
		return acc.storage[key]
	}
	return stf.Word{}
}

// GetCommittedStorage returns the value of a storage slot at the beginning of
// the ongoing transaction.
func (s *State) GetCommittedStorage(address stf.Address, key stf.Key) stf.Word {
	if value, found := s.original[slot{address, key}]; found {
		return value
	}
	return s.GetStorage(address, key)
}

func (s *State) SetStorage(address stf.Address, key stf.Key, value stf.Word) stf.StorageStatus {
	id := slot{address, key}
	current := s.GetStorage(address, key)
	original, found := s.original[id]
	if !found {
		// The first write in a transaction fixes the original value. It is
		// not journaled since it remains valid when the write is undone.
		original = current
		s.original[id] = current
	}
	status := stf.GetStorageStatus(original, current, value)
	if current == value {
		return status
	}

	acc := s.getOrCreate(address)
	s.record(func() { setSlot(acc, key, current) })
	setSlot(acc, key, value)
	return status
}

func setSlot(acc *account, key stf.Key, value stf.Word) {
	if value == (stf.Word{}) {
		delete(acc.storage, key)
	} else {
		acc.storage[key] = value
	}
}

func (s *State) SelfDestruct(address stf.Address, beneficiary stf.Address) bool {
	balance := s.GetBalance(address)
	if !balance.IsZero() || s.AccountExists(beneficiary) {
		s.SetBalance(beneficiary, stf.Add(s.GetBalance(beneficiary), balance))
	}
	if s.AccountExists(address) {
		s.SetBalance(address, stf.Value{})
	}
	if _, found := s.selfDestructed[address]; found {
		return false
	}
	s.selfDestructed[address] = struct{}{}
	s.record(func() { delete(s.selfDestructed, address) })
	return true
}

func (s *State) HasSelfDestructed(address stf.Address) bool {
	_, found := s.selfDestructed[address]
	return found
}

// SetChainHistory replaces the source of block hashes, typically before
// the transactions of a new block are processed.
func (s *State) SetChainHistory(history stf.ChainHistory) {
	s.history = history
}

func (s *State) GetBlockHash(number int64) stf.Hash {
	if s.history == nil {
		return stf.Hash{}
	}
	return s.history.GetBlockHash(number)
}

// getOrCreate returns the account stored at the given address, creating it
// if needed. In both cases the account is marked as touched.
func (s *State) getOrCreate(address stf.Address) *account {
	acc, found := s.accounts[address]
	if !found {
		acc = newAccount()
		s.accounts[address] = acc
		s.record(func() { delete(s.accounts, address) })
	}
	if _, found := s.touched[address]; !found {
		s.touched[address] = struct{}{}
		s.record(func() { delete(s.touched, address) })
	}
	return acc
}
