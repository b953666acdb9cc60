//go:build !linux

package main

import (
	"errors"

	"go.uber.org/zap"
)

var errSandboxUnsupported = errors.New("chroot and privilege drop are only supported on linux")

func enterRoot(string, *zap.Logger) error { return errSandboxUnsupported }

func dropPrivileges(*zap.Logger) error { return errSandboxUnsupported }
