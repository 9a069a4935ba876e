package errors

import (
	"errors"
	"fmt"
)

var (
	ErrStorage = errors.New("storage")
	ErrInvalid = errors.New("invalid")
)

// Storage marks err as a backend failure. Both ErrStorage and the cause stay
// reachable through errors.Is.
func Storage(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStorage) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStorage, err)
}

func IsStorage(err error) bool {
	return errors.Is(err, ErrStorage)
}

func IsInvalid(err error) bool {
	return errors.Is(err, ErrInvalid)
}
