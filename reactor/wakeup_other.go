//go:build !linux

package reactor

import "os"

// createWakeFD falls back to a self-pipe on platforms without eventfd. The
// write end is never registered with the (stub) poller; the loop relies on
// the wakeCh channel path instead (see Loop.tick), same as eventloop's
// fast-path mode for task-only workloads.
func createWakeFD() (int, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return -1, err
	}
	_ = w.Close()
	fd := int(r.Fd())
	return fd, nil
}

func writeWake(int) error  { return nil }
func drainWake(int)        {}
func closeWakeFD(fd int)   {}
