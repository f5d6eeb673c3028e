// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package config loads the settings of the stf tools from an optional YAML
// file and the environment.
package config

import (
	"errors"
	"fmt"

	logging "github.com/ipfs/go-log"
	"github.com/spf13/viper"
)

var log = logging.Logger("config")

const defaultConfigPath = ".stf"

type Config struct {
	LoggingLevel     string `mapstructure:"LOGGING"`            // Log Level: FATAL, PANIC, ERROR, WARN, INFO, DEBUG.
	ChainID          uint64 `mapstructure:"CHAIN_ID"`           // Chain ID used for signatures and the CHAINID instruction.
	Interpreter      string `mapstructure:"INTERPRETER"`        // Name of the registered interpreter.
	Processor        string `mapstructure:"PROCESSOR"`          // Name of the registered processor.
	JumpCacheSize    int    `mapstructure:"JUMP_CACHE_SIZE"`    // Number of cached jump destination analyses, negative to disable.
	HistoryCacheSize int    `mapstructure:"HISTORY_CACHE_SIZE"` // Number of cached block hashes.
}

// Default configs
var DefaultConfig = Config{
	LoggingLevel:     "INFO",
	ChainID:          1,
	Interpreter:      "evm",
	Processor:        "transition",
	JumpCacheSize:    1 << 12,
	HistoryCacheSize: 1 << 14,
}

// NewConfig creates a new configuration. Settings are taken from the
// environment, then from the given file, or from $HOME/.stf/config.yaml if
// no file is given. Unset or invalid settings fall back to the defaults.
func NewConfig(configFile string) (Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("$HOME/" + defaultConfigPath)
	if configFile != "" {
		v.SetConfigFile(configFile)
	}
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
	}

	conf := Config{}

	conf.LoggingLevel = v.GetString("LOGGING")
	if conf.LoggingLevel == "" {
		conf.LoggingLevel = DefaultConfig.LoggingLevel
	}
	logLevel, err := logging.LevelFromString(conf.LoggingLevel)
	if err != nil {
		return Config{}, err
	}
	logging.SetAllLoggers(logLevel)

	conf.ChainID = uint64(v.GetInt64("CHAIN_ID"))
	if conf.ChainID == 0 {
		conf.ChainID = DefaultConfig.ChainID
		log.Infof("CHAIN_ID not set, use default: %v", conf.ChainID)
	}

	conf.Interpreter = v.GetString("INTERPRETER")
	if conf.Interpreter == "" {
		conf.Interpreter = DefaultConfig.Interpreter
	}
	conf.Processor = v.GetString("PROCESSOR")
	if conf.Processor == "" {
		conf.Processor = DefaultConfig.Processor
	}

	conf.JumpCacheSize = v.GetInt("JUMP_CACHE_SIZE")
	if conf.JumpCacheSize == 0 {
		conf.JumpCacheSize = DefaultConfig.JumpCacheSize
	}
	conf.HistoryCacheSize = v.GetInt("HISTORY_CACHE_SIZE")
	if conf.HistoryCacheSize <= 0 {
		conf.HistoryCacheSize = DefaultConfig.HistoryCacheSize
		log.Infof("Invalid HISTORY_CACHE_SIZE found, use default: %v", conf.HistoryCacheSize)
	}

	return conf, nil
}
