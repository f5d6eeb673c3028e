// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package transition

import (
	"github.com/Fantom-foundation/stf/go/stf"
	"github.com/ethereum/go-ethereum/common"
	geth "github.com/ethereum/go-ethereum/core/vm"
)

// handlePrecompiled runs the native contract at the given address, if there
// is any. The second result is false for all other addresses.
func handlePrecompiled(input stf.Data, address stf.Address, gas stf.Gas) (stf.CallResult, bool) {
	contract, ok := precompiledContract(address)
	if !ok {
		return stf.CallResult{}, false
	}
	gasCost := contract.RequiredGas(input)
	if gasCost > uint64(gas) {
		return stf.CallResult{}, true
	}
	gas -= stf.Gas(gasCost)
	output, err := contract.Run(input)

	return stf.CallResult{
		Success: err == nil, // precompiled contracts only return errors on invalid input
		Output:  output,
		GasLeft: gas,
	}, true
}

func precompiledContract(address stf.Address) (geth.PrecompiledContract, bool) {
	if !stf.IsPrecompiledContract(address) {
		return nil, false
	}
	contract, ok := geth.PrecompiledContractsBerlin[common.Address(address)]
	return contract, ok
}
