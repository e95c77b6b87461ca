//go:build linux

package reactor

import (
	"sync"

	"golang.org/x/sys/unix"
)

// epollPoller implements poller using epoll, grounded on eventloop's
// FastPoller (poller_linux.go) but map-based rather than direct-indexed:
// this core expects at most a handful of registered fds per VM (stdio pipes,
// subprocess pidfds, the IPC seqpacket socket), not the tens of thousands an
// HTTP server's eventloop would need direct array indexing for.
type epollPoller struct {
	mu     sync.Mutex
	epfd   int
	fds    map[int]epollFDInfo
	closed bool
}

type epollFDInfo struct {
	cb     IOCallback
	events IOEvents
}

func newPoller() poller {
	return &epollPoller{fds: make(map[int]epollFDInfo)}
}

func (p *epollPoller) init() error {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return err
	}
	p.epfd = fd
	return nil
}

func (p *epollPoller) close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return unix.Close(p.epfd)
}

func toEpollEvents(e IOEvents) uint32 {
	var out uint32
	if e&EventRead != 0 {
		out |= unix.EPOLLIN
	}
	if e&EventWrite != 0 {
		out |= unix.EPOLLOUT
	}
	return out
}

func fromEpollEvents(e uint32) IOEvents {
	var out IOEvents
	if e&unix.EPOLLIN != 0 {
		out |= EventRead
	}
	if e&unix.EPOLLOUT != 0 {
		out |= EventWrite
	}
	if e&(unix.EPOLLERR) != 0 {
		out |= EventError
	}
	if e&(unix.EPOLLHUP|unix.EPOLLRDHUP) != 0 {
		out |= EventHangup
	}
	return out
}

func (p *epollPoller) registerFD(fd int, events IOEvents, cb IOCallback) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPollerClosed
	}
	if _, ok := p.fds[fd]; ok {
		return ErrFDAlreadyRegistered
	}
	ev := &unix.EpollEvent{Events: toEpollEvents(events), Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, ev); err != nil {
		return err
	}
	p.fds[fd] = epollFDInfo{cb: cb, events: events}
	return nil
}

func (p *epollPoller) unregisterFD(fd int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.fds[fd]; !ok {
		return ErrFDNotRegistered
	}
	delete(p.fds, fd)
	if p.closed {
		return nil
	}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

func (p *epollPoller) modifyFD(fd int, events IOEvents) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	info, ok := p.fds[fd]
	if !ok {
		return ErrFDNotRegistered
	}
	info.events = events
	p.fds[fd] = info
	if p.closed {
		return nil
	}
	ev := &unix.EpollEvent{Events: toEpollEvents(events), Fd: int32(fd)}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, ev)
}

func (p *epollPoller) pollIO(timeoutMs int) (int, error) {
	var buf [64]unix.EpollEvent
	n, err := unix.EpollWait(p.epfd, buf[:], timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}
	dispatched := 0
	for i := 0; i < n; i++ {
		fd := int(buf[i].Fd)
		p.mu.Lock()
		info, ok := p.fds[fd]
		p.mu.Unlock()
		if !ok || info.cb == nil {
			continue
		}
		info.cb(fromEpollEvents(buf[i].Events))
		dispatched++
	}
	return dispatched, nil
}
