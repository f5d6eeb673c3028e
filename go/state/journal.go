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

// record appends an undo operation to the journal.
func (s *State) record(undo func()) {
	s.journal = append(s.journal, undo)
}

// CreateSnapshot returns the current position in the journal.
func (s *State) CreateSnapshot() stf.Snapshot {
	return stf.Snapshot(len(s.journal))
}

// RestoreSnapshot undoes all changes recorded since the given snapshot was
// created. Snapshots taken after the restored one become invalid.
func (s *State) RestoreSnapshot(snapshot stf.Snapshot) {
	target := int(snapshot)
	if target < 0 || target > len(s.journal) {
		log.Errorf("invalid snapshot %d, journal length %d", target, len(s.journal))
		return
	}
	for i := len(s.journal) - 1; i >= target; i-- {
		s.journal[i]()
	}
	s.journal = s.journal[:target]
}
