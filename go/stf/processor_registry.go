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
	"fmt"
	"strings"
	"sync"

	"golang.org/x/exp/maps"
)

// ProcessorFactory creates a transaction processor running contract code on
// the given interpreter.
type ProcessorFactory func(Interpreter) Processor

// Processors are bound to names so that tools like the stf command can pick
// one through configuration. Packages providing a processor register it in
// their init function; importing such a package makes the processor
// available.
var processors = struct {
	sync.Mutex
	factories map[string]ProcessorFactory
}{factories: map[string]ProcessorFactory{}}

// RegisterProcessorFactory binds a processor factory to a name. Names are
// case-insensitive. Registering nil or reusing a name panics, both being
// programming errors in package initialization.
func RegisterProcessorFactory(name string, factory ProcessorFactory) {
	key := strings.ToLower(name)
	if factory == nil {
		panic(fmt.Sprintf("invalid initialization: cannot register nil-processor using `%s`", key))
	}
	processors.Lock()
	defer processors.Unlock()
	if _, found := processors.factories[key]; found {
		panic(fmt.Sprintf("invalid initialization: multiple Processors registered for `%s`", key))
	}
	processors.factories[key] = factory
}

// GetProcessorFactory returns the factory registered under the given name,
// or nil if there is none.
func GetProcessorFactory(name string) ProcessorFactory {
	processors.Lock()
	defer processors.Unlock()
	return processors.factories[strings.ToLower(name)]
}

// GetProcessor creates the processor registered under the given name on top
// of the given interpreter. The result is nil for unknown names.
func GetProcessor(name string, interpreter Interpreter) Processor {
	if factory := GetProcessorFactory(name); factory != nil {
		return factory(interpreter)
	}
	return nil
}

// GetAllRegisteredProcessorFactories returns a copy of the registry.
func GetAllRegisteredProcessorFactories() map[string]ProcessorFactory {
	processors.Lock()
	defer processors.Unlock()
	return maps.Clone(processors.factories)
}
