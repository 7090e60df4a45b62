package tcp

import (
	"errors"
	"os"
	"syscall"
)

// Sentinel error kinds returned by Acceptor.Open, matching the error
// vocabulary every listener in this system shares.
var (
	ErrAddrInUse    = errors.New("tcp: address already in use")
	ErrFdExhausted  = errors.New("tcp: file descriptor limit reached")
	ErrSocketFailed = errors.New("tcp: socket open failed")
)

// classifyListenErr maps a net.Listen error to one of the three outcomes a
// caller needs to act on differently: keep walking, stop walking, or just
// log and skip.
func classifyListenErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, syscall.EADDRINUSE) {
		return ErrAddrInUse
	}
	if errors.Is(err, syscall.EMFILE) || errors.Is(err, syscall.ENFILE) {
		return ErrFdExhausted
	}
	var pathErr *os.SyscallError
	if errors.As(err, &pathErr) {
		return ErrSocketFailed
	}
	return ErrSocketFailed
}
