//go:build unix || linux || darwin

// flock(2) implementation for Unix platforms.
package onion

import "syscall"

func (l *advisoryLock) lock(mode lockMode) error {
	op := syscall.LOCK_SH | syscall.LOCK_NB
	if mode == lockExclusive {
		op = syscall.LOCK_EX | syscall.LOCK_NB
	}
	if err := syscall.Flock(int(l.f.Fd()), op); err != nil {
		return newErr(KindNotSupported, "advisory_lock", "file is locked by another process", err)
	}
	return nil
}

func (l *advisoryLock) unlock() error {
	return syscall.Flock(int(l.f.Fd()), syscall.LOCK_UN)
}
