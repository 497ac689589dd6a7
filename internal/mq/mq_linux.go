//go:build linux

package mq

import (
	"errors"
	"unsafe"

	"golang.org/x/sys/unix"
)

// mqAttr mirrors struct mq_attr; every member is a C long.
type mqAttr struct {
	flags   int
	maxMsg  int
	msgSize int
	curMsgs int
	_       [4]int
}

func openFlags(m Mode) int {
	var flags int
	switch m.access() {
	case WriteOnly:
		flags = unix.O_WRONLY
	case ReadWrite:
		flags = unix.O_RDWR
	default:
		flags = unix.O_RDONLY
	}
	if m.creates() {
		flags |= unix.O_CREAT
	}
	return flags | unix.O_CLOEXEC
}

func sysOpen(name string, cfg Config) (int, error) {
	p, err := unix.BytePtrFromString(name)
	if err != nil {
		return -1, err
	}

	var attrPtr *mqAttr
	if cfg.Mode.creates() {
		attrPtr = &mqAttr{maxMsg: cfg.MaxQueueSize, msgSize: cfg.MaxItemSize}
	}

	for {
		r, _, errno := unix.Syscall6(unix.SYS_MQ_OPEN,
			uintptr(unsafe.Pointer(p)),
			uintptr(openFlags(cfg.Mode)),
			uintptr(cfg.Perm.Perm()),
			uintptr(unsafe.Pointer(attrPtr)),
			0, 0)
		if errno == unix.EINTR {
			continue
		}
		if errno != 0 {
			return -1, errno
		}
		return int(r), nil
	}
}

func sysGetAttr(fd int) (Attr, error) {
	var attr mqAttr
	_, _, errno := unix.Syscall(unix.SYS_MQ_GETSETATTR,
		uintptr(fd),
		0,
		uintptr(unsafe.Pointer(&attr)))
	if errno != 0 {
		return Attr{}, errno
	}
	return Attr{MaxMsg: attr.maxMsg, MsgSize: attr.msgSize, CurMsgs: attr.curMsgs}, nil
}

func sysSend(fd int, msg []byte) error {
	var p unsafe.Pointer
	if len(msg) > 0 {
		p = unsafe.Pointer(&msg[0])
	}
	for {
		_, _, errno := unix.Syscall6(unix.SYS_MQ_TIMEDSEND,
			uintptr(fd),
			uintptr(p),
			uintptr(len(msg)),
			0, // priority
			0, // no timeout
			0)
		if errno == unix.EINTR {
			continue
		}
		if errno != 0 {
			return errno
		}
		return nil
	}
}

func sysReceive(fd int, buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, unix.EMSGSIZE
	}
	for {
		r, _, errno := unix.Syscall6(unix.SYS_MQ_TIMEDRECEIVE,
			uintptr(fd),
			uintptr(unsafe.Pointer(&buf[0])),
			uintptr(len(buf)),
			0, // priority out-param unused
			0, // no timeout
			0)
		if errno == unix.EINTR {
			continue
		}
		if errno != 0 {
			return 0, errno
		}
		return int(r), nil
	}
}

func sysClose(fd int) error {
	return unix.Close(fd)
}

func sysUnlink(name string) error {
	p, err := unix.BytePtrFromString(name)
	if err != nil {
		return err
	}
	_, _, errno := unix.Syscall(unix.SYS_MQ_UNLINK, uintptr(unsafe.Pointer(p)), 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

// mqOverhead approximates the kernel's per-message bookkeeping when it
// charges a queue against RLIMIT_MSGQUEUE.
const mqOverhead = 64

// RaiseLimit lifts the soft RLIMIT_MSGQUEUE far enough to create one queue
// of the given capacity. Queues at the default capacity need about 64MiB,
// well above the usual 800KiB soft limit. The hard limit is only raised when
// the process is privileged enough for the kernel to allow it.
func RaiseLimit(maxItemSize, maxQueueSize int) error {
	need := uint64(maxQueueSize) * uint64(maxItemSize+mqOverhead)

	var lim unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_MSGQUEUE, &lim); err != nil {
		return err
	}
	if lim.Cur >= need {
		return nil
	}
	lim.Cur = need
	if lim.Max < need {
		lim.Max = need
	}
	return unix.Setrlimit(unix.RLIMIT_MSGQUEUE, &lim)
}

func isMsgSize(err error) bool {
	return errors.Is(err, unix.EMSGSIZE)
}

// IsNotExist reports whether err was caused by opening a queue that does
// not exist.
func IsNotExist(err error) bool {
	return errors.Is(err, unix.ENOENT)
}

// IsUnsupported reports whether err indicates the host cannot provide POSIX
// message queues (kernel built without them or syscalls filtered).
func IsUnsupported(err error) bool {
	return errors.Is(err, ErrUnsupported) || errors.Is(err, unix.ENOSYS)
}
