// Package tunnel bridges the TUN device and the packet pipeline.
package tunnel

import "io"

// Device is the byte-stream the pipeline reads IP frames from and writes
// them to. Each Read returns one whole frame.
type Device interface {
	io.ReadWriteCloser

	// Name returns the OS interface name, e.g. nrf0.
	Name() string
}
