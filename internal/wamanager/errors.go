package wamanager

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrNotFound: the instance id has no registered session handle.
	ErrNotFound = errors.New("instance session not found")
	// ErrAlreadyExists: a second live handle was requested for an id
	// already present in the registry.
	ErrAlreadyExists = errors.New("instance session already exists")
	// ErrNotConnected: a send/query operation requires a connected
	// session.
	ErrNotConnected = errors.New("instance session not connected")
)

// DeliveryError wraps a protocol client failure on an outbound
// operation. The underlying cause is never discarded.
type DeliveryError struct {
	Op    string
	Cause error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery failed: %s: %v", e.Op, e.Cause)
}

func (e *DeliveryError) Unwrap() error {
	return e.Cause
}

func deliveryErr(op string, cause error) error {
	if cause == nil {
		return nil
	}
	return &DeliveryError{Op: op, Cause: cause}
}

// TeardownWarning reports that resource release during
// disconnect/logout/delete failed while cleanup still proceeded. It is
// a warning-level outcome attached to a successful command result, not
// a command failure.
type TeardownWarning struct {
	InstanceID int64  `json:"instance_id,string"`
	Detail     string `json:"detail"`
}

func (w *TeardownWarning) Error() string {
	return fmt.Sprintf("teardown incomplete for instance %d: %s", w.InstanceID, w.Detail)
}
