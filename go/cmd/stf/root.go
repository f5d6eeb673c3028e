// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package main

import (
	"fmt"
	"sort"

	"github.com/urfave/cli/v2"
)

var RootCmd = cli.Command{
	Action:    doRoot,
	Name:      "root",
	Usage:     "Computes the state root of the pre-state of a fixture",
	ArgsUsage: "<fixture>",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "accounts",
			Usage: "lists the accounts of the pre-state",
		},
	},
}

func doRoot(context *cli.Context) error {
	if context.Args().Len() != 1 {
		return fmt.Errorf("expected exactly one fixture file, got %d arguments", context.Args().Len())
	}
	fixture, err := loadFixture(context.Args().First())
	if err != nil {
		return err
	}
	state, err := fixture.preState()
	if err != nil {
		return err
	}
	root, err := state.RootHash()
	if err != nil {
		return err
	}

	out := context.App.Writer
	if context.Bool("accounts") {
		accounts := state.Accounts()
		sort.Slice(accounts, func(i, j int) bool {
			return accounts[i].String() < accounts[j].String()
		})
		for _, address := range accounts {
			fmt.Fprintf(out, "%v: nonce %d, balance %v, code size %d, %d storage slots\n",
				address, state.GetNonce(address), state.GetBalance(address),
				state.GetCodeSize(address), len(state.StorageKeys(address)))
		}
	}
	fmt.Fprintf(out, "%v\n", root)
	return nil
}
