package services

import "errors"

// Task errors
var (
	ErrTaskNotFound  = errors.New("task: not found")
	ErrTaskCompleted = errors.New("task: already completed")
)

// Project errors
var (
	ErrProjectNotFound     = errors.New("project: not found")
	ErrProjectExists       = errors.New("project: path already exists")
	ErrProjectInvalidInput = errors.New("project: invalid input")
	ErrPathOutsideRoot     = errors.New("project: path escapes the workspace root")
)
