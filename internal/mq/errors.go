package mq

import "errors"

var (
	ErrInvalidName      = errors.New("invalid queue name")
	ErrOpenFailed       = errors.New("failed to open or create message queue")
	ErrCapacityExceeded = errors.New("message exceeds queue item size")
	ErrSendFailed       = errors.New("failed to send message")
	ErrReceiveFailed    = errors.New("failed to receive message")
	ErrCloseFailed      = errors.New("failed to close message queue")
	ErrUnlinkFailed     = errors.New("failed to unlink message queue")
	ErrClosed           = errors.New("message queue is closed")
	ErrUnsupported      = errors.New("posix message queues are not supported on this platform")
)
