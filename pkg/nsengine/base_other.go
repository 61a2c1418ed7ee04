//go:build !linux

package nsengine

// PrepareBase is unavailable outside Linux; mount namespaces are a
// Linux-only kernel facility.
func PrepareBase(basepath string, autoCreate bool) error {
	return ErrNotSupported
}

// ShutdownBase is a no-op outside Linux.
func ShutdownBase(basepath string) {}
