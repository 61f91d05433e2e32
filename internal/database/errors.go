package database

import (
	"errors"
	"fmt"
)

var (
	// ErrPersistence matches every failure surfaced by the engine.
	ErrPersistence = errors.New("persistence failure")
	// ErrRecordNotFound is wrapped when an update targets a missing row.
	ErrRecordNotFound = errors.New("record not found")
)

// PersistenceError wraps a storage failure with the operation and table it hit.
// Storage error codes are not interpreted.
type PersistenceError struct {
	Op    string
	Table string
	Err   error
}

func (e *PersistenceError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Table, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

func persistErr(op, table string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Table: table, Err: err}
}

// ConnectionSetupError is returned once by Open when the pool cannot be established.
type ConnectionSetupError struct {
	Driver string
	Err    error
}

func (e *ConnectionSetupError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Driver, e.Err)
}

func (e *ConnectionSetupError) Unwrap() error { return e.Err }
