// Package rlimit raises the process's open-file-descriptor limit so the
// listener fleet (several thousand sockets at full port coverage) does
// not starve for file descriptors.
package rlimit

import "golang.org/x/sys/unix"

// Target is the file-descriptor soft limit the process requests at
// startup.
const Target = 16384

// Raise sets RLIMIT_NOFILE's soft limit to Target, capped at whatever
// the hard limit already allows. It is not fatal to fail: the caller
// logs and continues with whatever limit it already has.
func Raise() (uint64, error) {
	var rlim unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rlim); err != nil {
		return 0, err
	}

	target := uint64(Target)
	if rlim.Max < target {
		target = rlim.Max
	}
	if rlim.Cur >= target {
		return rlim.Cur, nil
	}

	rlim.Cur = target
	if err := unix.Setrlimit(unix.RLIMIT_NOFILE, &rlim); err != nil {
		return 0, err
	}
	return rlim.Cur, nil
}
