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
	errInvalidJump            = stf.ConstError("invalid jump destination")
	errInvalidOpCode          = stf.ConstError("invalid op-code")
	errOutOfGas               = stf.ConstError("out of gas")
	errOverflow               = stf.ConstError("overflow")
	errReturnDataOutOfBounds  = stf.ConstError("return data out of bounds")
	errStackOverflow          = stf.ConstError("stack overflow")
	errStackUnderflow         = stf.ConstError("stack underflow")
	errStaticContextViolation = stf.ConstError("static context violation")
)
