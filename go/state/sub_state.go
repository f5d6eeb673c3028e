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

import "github.com/Fantom-foundation/stf/go/stf"

func (s *State) AccessAccount(address stf.Address) stf.AccessStatus {
	if _, found := s.warmAccounts[address]; found {
		return stf.WarmAccess
	}
	s.warmAccounts[address] = struct{}{}
	s.record(func() { delete(s.warmAccounts, address) })
	return stf.ColdAccess
}

func (s *State) AccessStorage(address stf.Address, key stf.Key) stf.AccessStatus {
	id := slot{address, key}
	if _, found := s.warmSlots[id]; found {
		return stf.WarmAccess
	}
	s.warmSlots[id] = struct{}{}
	s.record(func() { delete(s.warmSlots, id) })
	return stf.ColdAccess
}

func (s *State) IsAddressInAccessList(address stf.Address) bool {
	_, found := s.warmAccounts[address]
	return found
}

func (s *State) IsSlotInAccessList(address stf.Address, key stf.Key) (addressPresent, slotPresent bool) {
	_, addressPresent = s.warmAccounts[address]
	_, slotPresent = s.warmSlots[slot{address, key}]
	return
}

func (s *State) EmitLog(log stf.Log) {
	s.logs = append(s.logs, log)
	size := len(s.logs) - 1
	s.record(func() { s.logs = s.logs[:size] })
}

// GetLogs returns the logs emitted in the ongoing transaction in the order
// they were emitted.
func (s *State) GetLogs() []stf.Log {
	return s.logs
}
