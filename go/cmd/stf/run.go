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
	"time"

	"github.com/Fantom-foundation/stf/go/chain"
	"github.com/Fantom-foundation/stf/go/config"
	"github.com/Fantom-foundation/stf/go/interpreter/evm"
	"github.com/Fantom-foundation/stf/go/stf"
	"github.com/dsnet/golib/unitconv"
	logging "github.com/ipfs/go-log"
	"github.com/urfave/cli/v2"

	_ "github.com/Fantom-foundation/stf/go/processor/transition"
)

var log = logging.Logger("stf")

var RunCmd = cli.Command{
	Action:    doRun,
	Name:      "run",
	Usage:     "Applies the blocks of a fixture to its pre-state",
	ArgsUsage: "<fixture>",
	Flags: []cli.Flag{
		configFlag,
		&cli.Uint64Flag{
			Name:  "chain-id",
			Usage: "overrides the chain ID of the configuration and the fixture",
		},
		&cli.StringFlag{
			Name:  "interpreter",
			Usage: "overrides the name of the interpreter to be used",
		},
		&cli.StringFlag{
			Name:  "processor",
			Usage: "overrides the name of the processor to be used",
		},
		&cli.BoolFlag{
			Name:  "receipts",
			Usage: "prints the receipts of all transactions",
		},
	},
}

func doRun(context *cli.Context) error {
	if context.Args().Len() != 1 {
		return fmt.Errorf("expected exactly one fixture file, got %d arguments", context.Args().Len())
	}
	conf, err := config.NewConfig(context.String(configFlag.Name))
	if err != nil {
		return err
	}
	if name := context.String("interpreter"); name != "" {
		conf.Interpreter = name
	}
	if name := context.String("processor"); name != "" {
		conf.Processor = name
	}

	fixture, err := loadFixture(context.Args().First())
	if err != nil {
		return err
	}
	chainID := conf.ChainID
	if fixture.ChainID != nil {
		chainID = uint64(*fixture.ChainID)
	}
	if context.IsSet("chain-id") {
		chainID = context.Uint64("chain-id")
	}

	interpreter, err := stf.NewInterpreter(conf.Interpreter, evm.Config{JumpCacheSize: conf.JumpCacheSize})
	if err != nil {
		return err
	}
	processor := stf.GetProcessor(conf.Processor, interpreter)
	if processor == nil {
		return fmt.Errorf("processor not found: %s", conf.Processor)
	}
	history, err := chain.NewMemoryHistory(conf.HistoryCacheSize)
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
	parent := chain.Header{StateRoot: root}
	history.Add(parent)

	out := context.App.Writer
	fmt.Fprintf(out, "genesis: hash %v, state root %v\n", parent.Hash(), root)

	start := time.Now()
	var totalGas stf.Gas
	for i := range fixture.Blocks {
		block, err := fixture.Blocks[i].block(parent, chainID)
		if err != nil {
			return fmt.Errorf("invalid block %d: %w", i, err)
		}
		result, err := chain.ApplyBlock(state, block, processor, history)
		if err != nil {
			return fmt.Errorf("failed to apply block %d: %w", block.Header.Number, err)
		}
		header := result.Header
		history.Add(header)
		totalGas += header.GasUsed
		log.Infof("applied block %d with %d transactions", header.Number, len(result.Receipts))

		fmt.Fprintf(out, "block %d: hash %v, gas used %d\n", header.Number, header.Hash(), header.GasUsed)
		fmt.Fprintf(out, "\tstate root:        %v\n", header.StateRoot)
		fmt.Fprintf(out, "\ttransactions root: %v\n", header.TransactionsRoot)
		fmt.Fprintf(out, "\treceipts root:     %v\n", header.ReceiptsRoot)
		if context.Bool("receipts") {
			for j, receipt := range result.Receipts {
				printReceipt(context, j, receipt)
			}
		}
		parent = header
	}

	duration := time.Since(start)
	rate := float64(totalGas) / duration.Seconds()
	fmt.Fprintf(out, "applied %d blocks in %v (~%sgas/s)\n",
		len(fixture.Blocks), duration.Round(time.Millisecond),
		unitconv.FormatPrefix(rate, unitconv.SI, 1),
	)
	return nil
}

func printReceipt(context *cli.Context, index int, receipt chain.Receipt) {
	out := context.App.Writer
	status := "success"
	if !receipt.Success {
		status = "reverted"
	}
	fmt.Fprintf(out, "\ttx %d [%v]: %s, gas used %d, %d logs", index, receipt.TransactionHash, status, receipt.GasUsed, len(receipt.Logs))
	if receipt.ContractAddress != nil {
		fmt.Fprintf(out, ", created %v", *receipt.ContractAddress)
	}
	fmt.Fprintln(out)
}
