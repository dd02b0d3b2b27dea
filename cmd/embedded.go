package main

import (
	_ "embed"
)

// defaultConfig is used when no config file is found on disk.
//
//go:embed configs/relay.yaml
var defaultConfig []byte

// getEmbeddedConfig returns the raw bytes of the embedded default config.
func getEmbeddedConfig() []byte {
	return defaultConfig
}
