package storage

import (
	"errors"
	"fmt"
)

// ErrBlockNotFound is returned when no snapshot has been stored
// for a block
type ErrBlockNotFound struct {
	Index uint32
}

var (
	// ErrUnknownDriver is returned by Open for unregistered drivers
	ErrUnknownDriver = errors.New("unknown driver")

	// ErrDriverRegistered is returned by Register if the driver name
	// is already used
	ErrDriverRegistered = errors.New("storage driver already registered")
)

func (e *ErrBlockNotFound) Error() string {
	return fmt.Sprintf("block %d not found", e.Index)
}

// IsNotFound returns true if err is a block not found error
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}

	var nf *ErrBlockNotFound
	return errors.As(err, &nf)
}
