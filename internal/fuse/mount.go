//go:build !linux
// +build !linux

package fuse

import (
	"fmt"
	"io"
)

func Mount(mountpoint string, r io.ReaderAt, regions []Region) error {
	return fmt.Errorf("FUSE mount is only supported on Linux")
}
