// SPDX-License-Identifier: MIT

package store

import "fmt"

// OpenStatusStore creates a StatusStore based on the backend name.
func OpenStatusStore(backend, path string) (StatusStore, error) {
	if backend == "" {
		backend = "memory"
	}
	switch backend {
	case "memory":
		return NewMemoryStore(), nil
	case "badger":
		return OpenBadgerStore(path)
	default:
		return nil, fmt.Errorf("unknown store backend: %s", backend)
	}
}
