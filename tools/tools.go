//go:build tools
// +build tools

// Package tools pins the commands this repository runs through go run. The
// blank import keeps mockgen resolving at the version go.mod records, so
// regenerated mocks do not drift with whatever happens to be on PATH.
package tools

import (
	_ "go.uber.org/mock/mockgen"
)
