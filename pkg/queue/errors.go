package queue

import "errors"

var (
	ErrRepositoryNil      = errors.New("repository cannot be nil")
	ErrPayloadNil         = errors.New("payload cannot be nil")
	ErrHandlerNotFound    = errors.New("no handler registered for task type")
	ErrNoHandlers         = errors.New("no task handlers registered")
	ErrNoTaskToClaim      = errors.New("no task available to claim")
	ErrTaskNotFound       = errors.New("task not found")
	ErrTaskNotProcessing  = errors.New("task is not in processing state")
	ErrWorkerStarted      = errors.New("worker already started")
	ErrWorkerNotStarted   = errors.New("worker not started")
	ErrFailedToClaimTask  = errors.New("failed to claim task")
	ErrFailedToUpdateTask = errors.New("failed to update task status")
)
