package store

import "fmt"

/*
StorageError is what every persistent-tier failure turns into inside the
store: a failed read, write, delete or listing, or an entry that can't be
encoded or decoded. Nothing outside the store ever receives one; the public
methods log it and degrade to a miss or a no-op.
*/
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("cache storage %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("cache storage %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Cause lets github.com/pkg/errors.Cause see through the wrapper.
func (e *StorageError) Cause() error { return e.Err }

func storageErr(op, key string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Key: key, Err: err}
}
