package ingest

import "errors"

var (
	// ErrInvalidTopic indicates a topic that does not match the device
	// message grammar.
	ErrInvalidTopic = errors.New("ingest: invalid topic")

	// ErrUnknownCategory indicates a device topic with an unrecognised
	// message category.
	ErrUnknownCategory = errors.New("ingest: unknown message category")

	// ErrQueueFull indicates the message queue is at capacity and the
	// message was dropped.
	ErrQueueFull = errors.New("ingest: queue full")

	// ErrNotStarted indicates an enqueue before Start or after Stop.
	ErrNotStarted = errors.New("ingest: pipeline not started")
)
