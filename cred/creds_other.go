//go:build !linux

package cred

import "github.com/joeycumines/go-actorvm/coreerr"

func applySetResUID([3]int32) error { return coreerr.ErrUnsupported }

func applySetResGID([3]int32) error { return coreerr.ErrUnsupported }

func applySetGroups([]byte) error { return coreerr.ErrUnsupported }

func applyUmask(uint32) {}

func closePayloadFD(int) {}

func applyCapSetProc([]byte) error { return coreerr.ErrUnsupported }

func applyCapDropBound(int32) error { return coreerr.ErrUnsupported }

func applyCapSetAmbient(int32, int32) error { return coreerr.ErrUnsupported }

func applyCapResetAmbient() error { return coreerr.ErrUnsupported }

func applyCapSetSecbits(uint32) error { return coreerr.ErrUnsupported }
