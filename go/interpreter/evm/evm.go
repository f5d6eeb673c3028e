// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package evm implements a bytecode interpreter for the Paris instruction set
// extended by PUSH0. The interpreter executes a single call frame. Nested
// calls and contract creations are delegated to the stf.RunContext provided
// in the run parameters.
package evm

import (
	"fmt"

	"github.com/Fantom-foundation/stf/go/stf"
	logging "github.com/ipfs/go-log"
)

var log = logging.Logger("evm")

// Registers the interpreter as a possible interpreter implementation.
func init() {
	stf.MustRegisterInterpreterFactory("evm", func(config any) (stf.Interpreter, error) {
		if config == nil {
			return NewInterpreter(Config{})
		}
		cfg, ok := config.(Config)
		if !ok {
			return nil, fmt.Errorf("unsupported configuration type %T", config)
		}
		return NewInterpreter(cfg)
	})
}

type Config struct {
	// JumpCacheSize is the number of jump destination analyses kept in the
	// cache. If set to 0, a default size is used. If negative, no cache is
	// used.
	JumpCacheSize int
}

type evm struct {
	analyzer *analyzer
}

// NewInterpreter creates a new interpreter instance. Instances are
// thread-safe.
func NewInterpreter(config Config) (*evm, error) {
	analyzer, err := newAnalyzer(config.JumpCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create analyzer: %w", err)
	}
	return &evm{analyzer: analyzer}, nil
}

func (e *evm) Run(params stf.Parameters) (stf.Result, error) {
	return run(e.analyzer, params)
}
