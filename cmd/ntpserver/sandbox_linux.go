//go:build linux

package main

import (
	"errors"
	"io/fs"
	"math/rand/v2"
	"os"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// enterRoot chroots the process into dir, creating it when missing.
// It must run before the socket is bound and before privileges are dropped.
func enterRoot(dir string, log *zap.Logger) error {
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		log.Warn("chroot directory does not exist, creating it", zap.String("dir", dir))
		if err := os.Mkdir(dir, 0o755); err != nil {
			return err
		}
	}
	if err := unix.Chdir(dir); err != nil {
		return err
	}
	abs, err := os.Getwd()
	if err != nil {
		return err
	}
	if err := unix.Chroot("."); err != nil {
		return err
	}
	log.Debug("chrooted", zap.String("dir", abs))
	return nil
}

// dropPrivileges switches to a random unprivileged uid/gid that owns nothing.
func dropPrivileges(log *zap.Logger) error {
	id := 100000000 + 100000*rand.IntN(1000) + os.Getpid()
	if err := unix.Setgroups([]int{id}); err != nil {
		return err
	}
	if err := unix.Setgid(id); err != nil {
		return err
	}
	if err := unix.Setuid(id); err != nil {
		return err
	}
	log.Debug("UID/GID set", zap.Int("id", id))
	return nil
}
