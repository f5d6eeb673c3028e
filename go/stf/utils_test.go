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

import (
	"math"
	"testing"
)

func TestGetStorageStatus(t *testing.T) {
	zero, x, y, z := Word{}, Word{1}, Word{2}, Word{3}
	tests := []struct {
		original, current, new Word
		want                   StorageStatus
	}{
		{zero, zero, zero, StorageAssigned},
		{x, y, y, StorageAssigned},
		{zero, y, z, StorageAssigned},
		{x, y, z, StorageAssigned},
		{zero, zero, z, StorageAdded},
		{x, x, zero, StorageDeleted},
		{x, x, z, StorageModified},
		{x, zero, z, StorageDeletedAdded},
		{x, y, zero, StorageModifiedDeleted},
		{x, zero, x, StorageDeletedRestored},
		{zero, y, zero, StorageAddedDeleted},
		{x, y, x, StorageModifiedRestored},
	}
	for _, test := range tests {
		got := GetStorageStatus(test.original, test.current, test.new)
		if got != test.want {
			t.Errorf("%v -> %v -> %v: wanted %v, got %v", test.original[0], test.current[0], test.new[0], test.want, got)
		}
	}
}

func TestStorageStatus_String(t *testing.T) {
	for _, status := range GetAllStorageStatuses() {
		if got := status.String(); got == "" || got[0:7] != "Storage" {
			t.Errorf("unexpected print for %d: %s", int(status), got)
		}
	}
	if want, got := "StorageStatus(42)", StorageStatus(42).String(); want != got {
		t.Errorf("unexpected print, wanted %s, got %s", want, got)
	}
}

func TestSizeInWords(t *testing.T) {
	tests := map[uint64]uint64{
		0:                   0,
		1:                   1,
		32:                  1,
		33:                  2,
		64:                  2,
		math.MaxUint64:      math.MaxUint64/32 + 1,
		math.MaxUint64 - 31: math.MaxUint64 / 32,
	}
	for size, want := range tests {
		if got := SizeInWords(size); got != want {
			t.Errorf("SizeInWords(%d): wanted %d, got %d", size, want, got)
		}
	}
}

func TestIsPrecompiledContract(t *testing.T) {
	for i := 0; i < 256; i++ {
		address := Address{19: byte(i)}
		want := 1 <= i && i <= 9
		if got := IsPrecompiledContract(address); got != want {
			t.Errorf("unexpected classification of %v, wanted %t, got %t", address, want, got)
		}
	}
	if IsPrecompiledContract(Address{18: 1, 19: 1}) {
		t.Errorf("address with high bytes set must not be precompiled")
	}
	if got := len(PrecompiledContracts()); got != NumPrecompiledContracts {
		t.Errorf("unexpected number of precompiled contracts: %d", got)
	}
	for _, address := range PrecompiledContracts() {
		if !IsPrecompiledContract(address) {
			t.Errorf("%v should be precompiled", address)
		}
	}
}

func TestKeccak256_KnownValues(t *testing.T) {
	// keccak256("") = c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470
	want := Hash{
		0xc5, 0xd2, 0x46, 0x01, 0x86, 0xf7, 0x23, 0x3c, 0x92, 0x7e, 0x7d, 0xb2, 0xdc, 0xc7, 0x03, 0xc0,
		0xe5, 0x00, 0xb6, 0x53, 0xca, 0x82, 0x27, 0x3b, 0x7b, 0xfa, 0xd8, 0x04, 0x5d, 0x85, 0xa4, 0x70,
	}
	if got := Keccak256(nil); got != want {
		t.Errorf("unexpected hash of empty input: %v", got)
	}
	if EmptyCodeHash != want {
		t.Errorf("unexpected empty code hash: %v", EmptyCodeHash)
	}
	if Keccak256([]byte{1, 2}, []byte{3}) != Keccak256([]byte{1, 2, 3}) {
		t.Errorf("hashing multiple fragments should be equal to hashing their concatenation")
	}
}
