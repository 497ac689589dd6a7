//go:build !linux

package mq

import "errors"

func sysOpen(string, Config) (int, error) { return -1, ErrUnsupported }
func sysGetAttr(int) (Attr, error)        { return Attr{}, ErrUnsupported }
func sysSend(int, []byte) error           { return ErrUnsupported }
func sysReceive(int, []byte) (int, error) { return 0, ErrUnsupported }
func sysClose(int) error                  { return ErrUnsupported }
func sysUnlink(string) error              { return ErrUnsupported }
func isMsgSize(error) bool                { return false }

// RaiseLimit is a no-op where message queues are unavailable.
func RaiseLimit(int, int) error { return ErrUnsupported }

// IsNotExist reports whether err was caused by opening a queue that does
// not exist.
func IsNotExist(error) bool { return false }

// IsUnsupported reports whether err indicates the host cannot provide POSIX
// message queues.
func IsUnsupported(err error) bool { return errors.Is(err, ErrUnsupported) }
