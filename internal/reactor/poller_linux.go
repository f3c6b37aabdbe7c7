//go:build linux

package reactor

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

const maxEvents = 128

// Poller is an epoll instance.  It is not safe for concurrent use.
type Poller struct {
	epfd   int
	events []unix.EpollEvent
	ready  []int
}

// New creates a Poller.  The epoll descriptor is close-on-exec so it is
// not inherited across a copyover.
func New() (*Poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}
	return &Poller{
		epfd:   epfd,
		events: make([]unix.EpollEvent, maxEvents),
		ready:  make([]int, 0, maxEvents),
	}, nil
}

// Add watches fd for input, hangup and error conditions.
func (p *Poller) Add(fd int) error {
	ev := unix.EpollEvent{
		Events: unix.EPOLLIN | unix.EPOLLRDHUP,
		Fd:     int32(fd),
	}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return fmt.Errorf("epoll ctl add %d: %w", fd, err)
	}
	return nil
}

// Remove stops watching fd.  Removing a descriptor that is not
// registered is not an error.
func (p *Poller) Remove(fd int) error {
	var ev unix.EpollEvent
	err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, &ev)
	if err != nil && err != unix.ENOENT && err != unix.EBADF {
		return fmt.Errorf("epoll ctl del %d: %w", fd, err)
	}
	return nil
}

// Wait blocks for at most timeout and returns the descriptors that are
// ready.  Errors and hangups count as ready: the following read reports
// them.  The returned slice is reused by the next call.
func (p *Poller) Wait(timeout time.Duration) ([]int, error) {
	n, err := unix.EpollWait(p.epfd, p.events, int(timeout/time.Millisecond))
	if err != nil {
		if err == unix.EINTR {
			return p.ready[:0], nil // interrupted by signal, normal
		}
		return nil, fmt.Errorf("epoll wait: %w", err)
	}

	p.ready = p.ready[:0]
	for i := 0; i < n; i++ {
		p.ready = append(p.ready, int(p.events[i].Fd))
	}
	return p.ready, nil
}

// Close releases the epoll descriptor.
func (p *Poller) Close() error {
	return unix.Close(p.epfd)
}
