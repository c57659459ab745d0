//go:build !unix

package device

import "errors"

func lock([]byte) error {
	return errors.New("page locking not supported on this platform")
}

func unlock([]byte) error {
	return nil
}
