//go:build linux
// +build linux

package fuse

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"
	osutils "github.com/ostafen/binwalk/pkg/util/os"
)

// Mount exposes regions of r under mountpoint until the process receives
// an interrupt and the file system is unmounted.
func Mount(mountpoint string, r io.ReaderAt, regions []Region) error {
	created, err := osutils.EnsureDir(mountpoint, true)
	if err != nil {
		return fmt.Errorf("invalid mountpoint: %w", err)
	}
	if created {
		defer os.Remove(mountpoint)
	}

	c, err := fuse.Mount(mountpoint, fuse.ReadOnly(), fuse.FSName("binwalk"))
	if err != nil {
		return err
	}
	defer c.Close()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- fusefs.New(c, nil).Serve(NewRegionFS(r, regions))
	}()
	return waitForUmount(mountpoint, serveErr)
}

func waitForUmount(mountpoint string, serveErr <-chan error) error {
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigc)

	slog.Info("waiting for termination signal", "mountpoint", mountpoint)

	const maxUnmountRetries = 3

	unmountAttempts := 0
	for {
		select {
		case err := <-serveErr:
			return err
		case sig := <-sigc:
			slog.Info("signal received", "signal", sig)

			err := fuse.Unmount(mountpoint)
			if err == nil {
				slog.Info("unmounted successfully", "mountpoint", mountpoint)
				return nil
			}

			unmountAttempts++
			if unmountAttempts >= maxUnmountRetries {
				return fmt.Errorf("unable to unmount %s after %d attempts: %w", mountpoint, unmountAttempts, err)
			}
			slog.Warn("unmount failed, send another signal to retry",
				"err", err,
				"remaining", maxUnmountRetries-unmountAttempts)
		}
	}
}
