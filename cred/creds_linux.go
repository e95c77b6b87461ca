//go:build linux

package cred

import (
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/joeycumines/go-actorvm/coreerr"
)

func applySetResUID(ids [3]int32) error {
	if err := unix.Setresuid(int(ids[0]), int(ids[1]), int(ids[2])); err != nil {
		return coreerr.Wrap(coreerr.OperationNotPermit, err)
	}
	return nil
}

func applySetResGID(ids [3]int32) error {
	if err := unix.Setresgid(int(ids[0]), int(ids[1]), int(ids[2])); err != nil {
		return coreerr.Wrap(coreerr.OperationNotPermit, err)
	}
	return nil
}

// applySetGroups decodes payload as a newline-separated list of decimal
// gids — the simplest serialization for a variable-length integer list
// riding the anonymous-memfd payload channel spec §4.8 describes.
func applySetGroups(payload []byte) error {
	var groups []int
	for _, field := range strings.Split(strings.TrimSpace(string(payload)), "\n") {
		if field == "" {
			continue
		}
		g, err := strconv.Atoi(field)
		if err != nil {
			return coreerr.NewArg(coreerr.InvalidArgument, "groups")
		}
		groups = append(groups, g)
	}
	if err := unix.Setgroups(groups); err != nil {
		return coreerr.Wrap(coreerr.OperationNotPermit, err)
	}
	return nil
}

func applyUmask(mask uint32) {
	syscall.Umask(int(mask))
}

func closePayloadFD(fd int) { _ = unix.Close(fd) }
