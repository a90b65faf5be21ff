//go:build linux

// Package channel implements the command channel: a named FIFO on the file
// system that CLI producers write encoded commands into and the server reads
// one message at a time.
//
// A message is everything written between a reader open and the moment every
// writer has closed its end. Producers open, write one payload and close, so
// each Receive returns one whole payload. Writes up to PIPE_BUF (4096 bytes)
// are atomic; producers that finish inside the same reader session are
// concatenated, which the codec handles by decoding back-to-back commands.
package channel

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
)

// Mode is the permission the FIFO is created with (owner rwx only).
const Mode = 0o700

// pollInterval bounds how long Receive waits before rechecking ctx, Close and
// reopen requests.
const pollInterval = 200 * time.Millisecond

var (
	// ErrUnavailable means the FIFO is missing or the path is not a FIFO.
	ErrUnavailable = errors.New("channel: unavailable")
	// ErrNoReader means no server currently has the FIFO open for reading.
	ErrNoReader = errors.New("channel: no reader")
	// ErrClosed is returned by Receive after Close.
	ErrClosed = errors.New("channel: closed")
)

// Ensure creates the FIFO at path if it does not exist. It reports whether
// the FIFO was created; an existing FIFO is left alone.
func Ensure(path string) (bool, error) {
	fi, err := os.Lstat(path)
	if err == nil {
		if fi.Mode()&fs.ModeNamedPipe == 0 {
			return false, fmt.Errorf("%w: %s exists and is not a FIFO", ErrUnavailable, path)
		}
		return false, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("channel: stat %s: %w", path, err)
	}

	if err := unix.Mkfifo(path, Mode); err != nil {
		if errors.Is(err, unix.EEXIST) {
			return false, nil
		}
		return false, fmt.Errorf("channel: mkfifo %s: %w", path, err)
	}
	return true, nil
}

// Channel is the reading end of the command FIFO. It has a single consumer.
type Channel struct {
	path   string
	closed atomic.Bool
	reopen atomic.Bool
}

// Open validates that path is an existing FIFO. It does not open the FIFO
// itself; each Receive does.
func Open(path string) (*Channel, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if fi.Mode()&fs.ModeNamedPipe == 0 {
		return nil, fmt.Errorf("%w: %s is not a FIFO", ErrUnavailable, path)
	}
	return &Channel{path: path}, nil
}

// Path returns the FIFO location.
func (c *Channel) Path() string { return c.path }

// Close makes pending and future Receive calls return ErrClosed.
func (c *Channel) Close() error {
	c.closed.Store(true)
	return nil
}

// Reopen asks a Receive that has not read anything yet to drop its
// descriptor and return, so the next call opens whatever now lives at the
// path. Used after the FIFO was replaced on disk.
func (c *Channel) Reopen() {
	c.reopen.Store(true)
}

// Receive blocks until a producer has written a payload and closed its end,
// then returns the whole payload. It returns nil, nil when a producer closed
// without writing or when a reopen was requested. It never returns partial
// data.
func (c *Channel) Receive(ctx context.Context) ([]byte, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}

	// A non-blocking open returns immediately even without a writer, which
	// keeps the wait below interruptible.
	fd, err := unix.Open(c.path, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("channel: open %s: %w", c.path, err)
	}
	defer unix.Close(fd)
	c.reopen.Store(false)

	var (
		buf  [4096]byte
		data []byte
	)
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}

	for {
		if c.closed.Load() {
			return nil, ErrClosed
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(data) == 0 && c.reopen.Swap(false) {
			return nil, nil
		}

		n, err := unix.Poll(fds, int(pollInterval/time.Millisecond))
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return nil, fmt.Errorf("channel: poll %s: %w", c.path, err)
		}
		if n == 0 {
			continue
		}
		rev := fds[0].Revents
		if rev&(unix.POLLERR|unix.POLLNVAL) != 0 {
			return nil, fmt.Errorf("channel: poll %s: revents %#x", c.path, rev)
		}
		if rev&(unix.POLLIN|unix.POLLHUP) == 0 {
			continue
		}

	drain:
		for {
			m, err := unix.Read(fd, buf[:])
			switch {
			case err == nil && m > 0:
				data = append(data, buf[:m]...)
			case err == nil:
				// Every writer has closed: the message is complete.
				if len(data) == 0 {
					return nil, nil
				}
				return data, nil
			case errors.Is(err, unix.EAGAIN):
				break drain
			case errors.Is(err, unix.EINTR):
			default:
				return nil, fmt.Errorf("channel: read %s: %w", c.path, err)
			}
		}
	}
}
