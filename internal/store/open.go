package store

import "fmt"

// Open selects and opens a backend by name. Backend selection happens once
// at startup; everything downstream depends only on the Store interface.
func Open(backend, path string) (Store, error) {
	switch backend {
	case "file":
		return OpenFile(path)
	case "sqlite":
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}
