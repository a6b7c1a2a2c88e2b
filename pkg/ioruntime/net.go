package ioruntime

import (
	"fmt"
	"io"
	"net"

	"golang.org/x/sys/unix"
)

// eventSlot holds at most one pending read task and one pending write task
// for a single fd, mirroring the original's PollEvents.
type eventSlot struct {
	read, write Task
}

// Acceptor owns a non-blocking listening socket and the readiness
// registration table every TcpSocket on this executor shares. It is the Go
// analogue of the original engine's Acceptor: RegisterRead/RegisterWrite are
// the only way a coroutine (here, a closure) waits on an fd.
type Acceptor struct {
	serverFd int
	events   map[int]*eventSlot
	pollfds  []unix.PollFd
}

// ListenOn creates a non-blocking listening socket bound to addr
// ("host:port") and returns an Acceptor ready to hand to an Executor.
func ListenOn(addr string) (*Acceptor, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp4", addr)
	if err != nil {
		return nil, fmt.Errorf("ioruntime: resolve %s: %w", addr, err)
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("ioruntime: socket: %w", err)
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("ioruntime: setsockopt: %w", err)
	}

	sa := &unix.SockaddrInet4{Port: tcpAddr.Port}
	if ip4 := tcpAddr.IP.To4(); ip4 != nil {
		copy(sa.Addr[:], ip4)
	}

	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("ioruntime: bind %s: %w", addr, err)
	}

	if err := unix.Listen(fd, 128); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("ioruntime: listen: %w", err)
	}

	return &Acceptor{
		serverFd: fd,
		events:   make(map[int]*eventSlot),
	}, nil
}

// Close closes the listening socket.
func (a *Acceptor) Close() error {
	return unix.Close(a.serverFd)
}

// Addr returns the address the listening socket is bound to, useful when
// ListenOn was given port 0 and the OS picked one.
func (a *Acceptor) Addr() (*net.TCPAddr, error) {
	sa, err := unix.Getsockname(a.serverFd)
	if err != nil {
		return nil, fmt.Errorf("ioruntime: getsockname: %w", err)
	}
	in4, ok := sa.(*unix.SockaddrInet4)
	if !ok {
		return nil, fmt.Errorf("ioruntime: unexpected sockaddr type %T", sa)
	}
	return &net.TCPAddr{IP: net.IP(in4.Addr[:]), Port: in4.Port}, nil
}

// RegisterRead arranges for t to run the next time fd becomes readable.
func (a *Acceptor) RegisterRead(fd int, t Task) {
	a.slot(fd).read = t
}

// RegisterWrite arranges for t to run the next time fd becomes writable.
func (a *Acceptor) RegisterWrite(fd int, t Task) {
	a.slot(fd).write = t
}

func (a *Acceptor) slot(fd int) *eventSlot {
	s, ok := a.events[fd]
	if !ok {
		s = &eventSlot{}
		a.events[fd] = s
	}
	return s
}

// forget drops fd's readiness registrations, called when a TcpSocket closes.
func (a *Acceptor) forget(fd int) {
	delete(a.events, fd)
}

// Accept schedules cb to run once a new connection is ready, handing it the
// accepted socket (or the accept(2) error).
func (a *Acceptor) Accept(cb func(*TcpSocket, error)) {
	a.RegisterRead(a.serverFd, newTaskFunc(func() {
		nfd, _, err := unix.Accept4(a.serverFd, unix.SOCK_NONBLOCK)
		if err != nil {
			cb(nil, fmt.Errorf("ioruntime: accept: %w", err))
			return
		}
		cb(&TcpSocket{parent: a, fd: nfd}, nil)
	}))
}

// PollAll blocks in poll(2) until at least one registered fd is ready, then
// schedules the matching continuations on executor. It is the single
// blocking call in the whole runtime; everything else is non-blocking.
func (a *Acceptor) PollAll(executor *Executor) error {
	a.pollfds = a.pollfds[:0]
	for fd, s := range a.events {
		if s.read == nil && s.write == nil {
			continue
		}
		var events int16
		if s.read != nil {
			events |= unix.POLLIN
		}
		if s.write != nil {
			events |= unix.POLLOUT
		}
		a.pollfds = append(a.pollfds, unix.PollFd{Fd: int32(fd), Events: events})
	}

	if len(a.pollfds) == 0 {
		return fmt.Errorf("ioruntime: poll with no registered fds")
	}

	if _, err := unix.Poll(a.pollfds, -1); err != nil {
		if err == unix.EINTR {
			return nil
		}
		return fmt.Errorf("ioruntime: poll: %w", err)
	}

	for _, pfd := range a.pollfds {
		s, ok := a.events[int(pfd.Fd)]
		if !ok {
			continue
		}
		if pfd.Revents&unix.POLLOUT != 0 && s.write != nil {
			t := s.write
			s.write = nil
			executor.Schedule(t)
		}
		if pfd.Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0 && s.read != nil {
			t := s.read
			s.read = nil
			executor.Schedule(t)
		}
	}
	return nil
}

// TcpSocket is a non-blocking connected socket. Every operation is
// continuation-passing: it registers interest with the parent Acceptor and
// invokes cb once the operating system says the fd is ready, instead of
// blocking the calling goroutine.
type TcpSocket struct {
	parent *Acceptor
	fd     int
}

// Fd returns the underlying file descriptor, for logging only.
func (s *TcpSocket) Fd() int {
	return s.fd
}

// Close closes the socket and forgets any pending readiness registrations.
func (s *TcpSocket) Close() error {
	s.parent.forget(s.fd)
	return unix.Close(s.fd)
}

// ReadSome reads at most len(buf) bytes once the socket becomes readable,
// then invokes cb with however many bytes were actually read.
func (s *TcpSocket) ReadSome(buf []byte, cb func(n int, err error)) {
	s.parent.RegisterRead(s.fd, newTaskFunc(func() {
		n, err := unix.Read(s.fd, buf)
		if err != nil {
			cb(0, fmt.Errorf("ioruntime: read: %w", err))
			return
		}
		cb(n, nil)
	}))
}

// WriteSome writes at most len(buf) bytes once the socket becomes writable.
func (s *TcpSocket) WriteSome(buf []byte, cb func(n int, err error)) {
	s.parent.RegisterWrite(s.fd, newTaskFunc(func() {
		n, err := unix.Write(s.fd, buf)
		if err != nil {
			cb(0, fmt.Errorf("ioruntime: write: %w", err))
			return
		}
		cb(n, nil)
	}))
}

// ReadAll reads exactly len(buf) bytes, chaining ReadSome calls until the
// buffer is full or an error (including a peer close, reported as
// io.ErrUnexpectedEOF) occurs.
func (s *TcpSocket) ReadAll(buf []byte, cb func(err error)) {
	var step func(remaining []byte)
	step = func(remaining []byte) {
		if len(remaining) == 0 {
			cb(nil)
			return
		}
		s.ReadSome(remaining, func(n int, err error) {
			if err != nil {
				cb(err)
				return
			}
			if n == 0 {
				cb(io.ErrUnexpectedEOF)
				return
			}
			step(remaining[n:])
		})
	}
	step(buf)
}

// WriteAll writes every byte of buf, chaining WriteSome calls as needed.
func (s *TcpSocket) WriteAll(buf []byte, cb func(err error)) {
	var step func(remaining []byte)
	step = func(remaining []byte) {
		if len(remaining) == 0 {
			cb(nil)
			return
		}
		s.WriteSome(remaining, func(n int, err error) {
			if err != nil {
				cb(err)
				return
			}
			step(remaining[n:])
		})
	}
	step(buf)
}
