//go:build !linux

package cred

import "github.com/joeycumines/go-actorvm/coreerr"

func sendRequest(int, StartVMRequest, int, int) error { return coreerr.ErrUnsupported }

func recvRequest(int) (StartVMRequest, int, int, error) {
	return StartVMRequest{}, -1, -1, coreerr.ErrUnsupported
}

func createPayloadFD([]byte) (int, error) { return -1, coreerr.ErrUnsupported }

func readPayloadFD(int, int64) ([]byte, error) { return nil, coreerr.ErrUnsupported }
