// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package evm

import "github.com/Fantom-foundation/stf/go/stf"

const (
	CallNewAccountGas    stf.Gas = 25000 // Paid for a value transfer creating a new account.
	CallValueTransferGas stf.Gas = 9000  // Paid for CALL when the value transfer is non-zero.
	CallStipend          stf.Gas = 2300  // Free gas given at beginning of call.

	ColdSloadCost         stf.Gas = 2100 // EIP-2929
	ColdAccountAccessCost stf.Gas = 2600 // EIP-2929
	WarmAccessCost        stf.Gas = 100  // EIP-2929

	CreateBySelfdestructGas stf.Gas = 25000
	SelfdestructGas         stf.Gas = 5000

	SstoreSentryGas stf.Gas = 2300  // Minimum gas required to be present for an SSTORE, not consumed
	SstoreSetGas    stf.Gas = 20000 // Once per SSTORE from clean zero to non-zero
	SstoreResetGas  stf.Gas = 5000  // Once per SSTORE from clean non-zero to something else

	// SstoreClearsScheduleRefund is the refund for clearing a storage slot,
	// defined by EIP-3529 as SstoreResetGas - ColdSloadCost + 1900.
	SstoreClearsScheduleRefund stf.Gas = 4800
)

// Gas prices of the static tiers.
const (
	gasZero    stf.Gas = 0
	gasBase    stf.Gas = 2
	gasVeryLow stf.Gas = 3
	gasLow     stf.Gas = 5
	gasMid     stf.Gas = 8
	gasHigh    stf.Gas = 10
)

// AllButOneSixtyFourth returns the maximum amount of gas that may be
// forwarded to a nested call or contract creation (EIP-150).
func AllButOneSixtyFourth(gas stf.Gas) stf.Gas {
	return gas - gas/64
}

// AccessCost returns the costs of accessing an account with the given
// access status.
func AccessCost(status stf.AccessStatus) stf.Gas {
	if status == stf.ColdAccess {
		return ColdAccountAccessCost
	}
	return WarmAccessCost
}

// SstoreCost returns the costs of an SSTORE operation with the given effect,
// excluding cold-slot surcharges.
func SstoreCost(status stf.StorageStatus) stf.Gas {
	switch status {
	case stf.StorageAdded:
		return SstoreSetGas
	case stf.StorageModified, stf.StorageDeleted:
		return SstoreResetGas - ColdSloadCost
	default:
		return WarmAccessCost
	}
}

// SstoreRefund returns the refund granted (or, if negative, revoked) by an
// SSTORE operation with the given effect.
func SstoreRefund(status stf.StorageStatus) stf.Gas {
	switch status {
	case stf.StorageDeleted, stf.StorageModifiedDeleted:
		return SstoreClearsScheduleRefund
	case stf.StorageDeletedAdded:
		return -SstoreClearsScheduleRefund
	case stf.StorageDeletedRestored:
		return -SstoreClearsScheduleRefund + SstoreResetGas - ColdSloadCost - WarmAccessCost
	case stf.StorageAddedDeleted:
		return SstoreSetGas - WarmAccessCost
	case stf.StorageModifiedRestored:
		return SstoreResetGas - ColdSloadCost - WarmAccessCost
	default:
		return 0
	}
}
