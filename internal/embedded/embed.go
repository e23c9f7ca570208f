// Package embedded holds files compiled into the sissync binary.
package embedded

import (
	_ "embed"
)

// Entities is the default entity definition file.
//
//go:embed entities.yaml
var Entities []byte
