// Package utils holds small filesystem helpers shared by the persistence
// layer (server/snapshot).
package utils

import (
	"errors"
	"os"
)

// Exists reports whether f names an existing file or directory. Used by
// server/snapshot.Open to distinguish a fresh routing_table snapshot from
// one being reopened across a restart.
func Exists(f string) bool {
	if _, err := os.Stat(f); err == nil {
		return true
	} else if errors.Is(err, os.ErrNotExist) {
		return false
	} else {
		panic(err)
	}
}
