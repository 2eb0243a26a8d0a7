package service

import "errors"

var (
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrPermissionDenied = errors.New("permission denied")
	// ErrDisputeOpen is returned when a task or escrow in dispute is moved by
	// anything other than ResolveDispute.
	ErrDisputeOpen = errors.New("dispute is open")
	// ErrNotDisputed is returned by ResolveDispute when the escrow is not
	// locked for dispute.
	ErrNotDisputed = errors.New("escrow is not locked for dispute")
	// ErrTaskClosed is returned when money would move into escrow for a task
	// that has already reached a terminal state.
	ErrTaskClosed = errors.New("task is closed")
)
