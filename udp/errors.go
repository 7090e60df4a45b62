package udp

import (
	"errors"
	"syscall"
)

// Sentinel error kinds returned by Listener.Open.
var (
	ErrAddrInUse    = errors.New("udp: address already in use")
	ErrFdExhausted  = errors.New("udp: file descriptor limit reached")
	ErrSocketFailed = errors.New("udp: socket open failed")
)

func classifyUDPErr(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, syscall.EADDRINUSE):
		return ErrAddrInUse
	case errors.Is(err, syscall.EMFILE), errors.Is(err, syscall.ENFILE):
		return ErrFdExhausted
	default:
		return ErrSocketFailed
	}
}
