package queue

import "errors"

var (
	ErrRepositoryNil         = errors.New("queue.repository_nil")
	ErrPayloadNil            = errors.New("queue.payload_nil")
	ErrInvalidPriority       = errors.New("queue.invalid_priority")
	ErrNoHandlers            = errors.New("queue.no_handlers")
	ErrHandlerNotFound       = errors.New("queue.handler_not_found")
	ErrTaskAlreadyRegistered = errors.New("queue.task_already_registered")
	ErrSchedulerEmpty        = errors.New("queue.scheduler_empty")
	ErrNoTaskToClaim         = errors.New("queue.no_task_to_claim")
	ErrTaskNotFound          = errors.New("queue.task_not_found")
	ErrTaskNotProcessing     = errors.New("queue.task_not_processing")
	ErrPayloadDecode         = errors.New("queue.payload_decode_failed")
	ErrHandlerPanic          = errors.New("queue.handler_panic")
	ErrWorkerRunning         = errors.New("queue.worker_running")
	ErrWorkerStopped         = errors.New("queue.worker_not_running")
)
