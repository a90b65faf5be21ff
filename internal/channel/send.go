//go:build linux

package channel

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// sendRetryInterval paces open attempts while the server is between two
// reader sessions.
const sendRetryInterval = 10 * time.Millisecond

// Send writes payload to the FIFO at path as one message. The open is
// retried until ctx is done while no reader is present, after which Send
// returns ErrNoReader; callers should pass a context with a deadline.
func Send(ctx context.Context, path string, payload []byte) error {
	fd, err := openWriter(ctx, path)
	if err != nil {
		return err
	}

	// The write itself blocks normally once a reader is attached.
	if err := unix.SetNonblock(fd, false); err != nil {
		unix.Close(fd)
		return fmt.Errorf("channel: set blocking %s: %w", path, err)
	}

	f := os.NewFile(uintptr(fd), path)
	if _, err := f.Write(payload); err != nil {
		f.Close()
		return fmt.Errorf("channel: write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("channel: close %s: %w", path, err)
	}
	return nil
}

func openWriter(ctx context.Context, path string) (int, error) {
	ticker := time.NewTicker(sendRetryInterval)
	defer ticker.Stop()

	for {
		fd, err := unix.Open(path, unix.O_WRONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
		switch {
		case err == nil:
			var st unix.Stat_t
			if err := unix.Fstat(fd, &st); err != nil {
				unix.Close(fd)
				return -1, fmt.Errorf("channel: stat %s: %w", path, err)
			}
			if st.Mode&unix.S_IFMT != unix.S_IFIFO {
				unix.Close(fd)
				return -1, fmt.Errorf("%w: %s is not a FIFO", ErrUnavailable, path)
			}
			return fd, nil
		case errors.Is(err, unix.ENOENT):
			return -1, fmt.Errorf("%w: %s: %w", ErrUnavailable, path, err)
		case !errors.Is(err, unix.ENXIO):
			return -1, fmt.Errorf("channel: open %s: %w", path, err)
		}

		select {
		case <-ctx.Done():
			return -1, fmt.Errorf("%w: %s", ErrNoReader, path)
		case <-ticker.C:
		}
	}
}
