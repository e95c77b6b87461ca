//go:build linux

package reactor

import "golang.org/x/sys/unix"

// createWakeFD creates an eventfd used to interrupt a blocking epoll_wait
// from another goroutine, grounded on eventloop's wakeup_linux.go.
func createWakeFD() (int, error) {
	return unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
}

func writeWake(fd int) error {
	var one [8]byte
	one[0] = 1
	_, err := unix.Write(fd, one[:])
	return err
}

func drainWake(fd int) {
	var buf [8]byte
	for {
		if _, err := unix.Read(fd, buf[:]); err != nil {
			return
		}
	}
}

func closeWakeFD(fd int) { _ = unix.Close(fd) }
