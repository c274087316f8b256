package service

import "errors"

var (
	ErrSessionExists    = errors.New("session already exists")
	ErrSessionNotFound  = errors.New("session not found")
	ErrPathTraversal    = errors.New("invalid path: directory traversal detected")
	ErrInvalidSessionID = errors.New("invalid session id")
)

// Result messages reported to API callers.
const (
	MsgSessionExists   = "session_already_exists"
	MsgSessionNotFound = "session_not_found"
)
