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

import "math"

// GetStorageStatus classifies a storage update by the value of the slot at
// the beginning of the transaction (original), its current value, and the
// value to be written (new).
func GetStorageStatus(original, current, new Word) StorageStatus {
	var zero = Word{}

	if current == new {
		return StorageAssigned
	}

	// 0 -> 0 -> Z
	if original == zero && current == zero && new != zero {
		return StorageAdded
	}

	// X -> X -> 0
	if original != zero && current == original && new == zero {
		return StorageDeleted
	}

	// X -> X -> Z
	if original != zero && current == original && new != zero && new != original {
		return StorageModified
	}

	// X -> 0 -> Z
	if original != zero && current == zero && new != original && new != zero {
		return StorageDeletedAdded
	}

	// X -> Y -> 0
	if original != zero && current != original && current != zero && new == zero {
		return StorageModifiedDeleted
	}

	// X -> 0 -> X
	if original != zero && current == zero && new == original {
		return StorageDeletedRestored
	}

	// 0 -> Y -> 0
	if original == zero && current != zero && new == zero {
		return StorageAddedDeleted
	}

	// X -> Y -> X
	if original != zero && current != original && current != zero && new == original {
		return StorageModifiedRestored
	}

	return StorageAssigned
}

// SizeInWords returns the number of 32-byte words required to cover size
// bytes, saturating instead of overflowing.
func SizeInWords(size uint64) uint64 {
	if size > math.MaxUint64-31 {
		return math.MaxUint64/32 + 1
	}
	return (size + 31) / 32
}

// NumPrecompiledContracts is the number of natively implemented contracts
// occupying the addresses 1 to NumPrecompiledContracts.
const NumPrecompiledContracts = 9

func IsPrecompiledContract(recipient Address) bool {
	for i := 0; i < 19; i++ {
		if recipient[i] != 0 {
			return false
		}
	}
	return 1 <= recipient[19] && recipient[19] <= NumPrecompiledContracts
}

// PrecompiledContracts lists the addresses of all precompiled contracts.
func PrecompiledContracts() []Address {
	res := make([]Address, 0, NumPrecompiledContracts)
	for i := 1; i <= NumPrecompiledContracts; i++ {
		res = append(res, Address{19: byte(i)})
	}
	return res
}
