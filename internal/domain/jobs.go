package domain

import (
	"context"
	"time"
)

// RebuildCause описывает источник запроса на пересчёт.
type RebuildCause string

const (
	// RebuildCauseMutation: в чате изменились сообщения.
	RebuildCauseMutation RebuildCause = "mutation"
	// RebuildCauseManual: пересчёт запрошен через API.
	RebuildCauseManual RebuildCause = "manual"
)

// RebuildJob содержит информацию о задаче пересчёта секций чата.
type RebuildJob struct {
	ID          string       `json:"job_id,omitempty"`
	ChatID      string       `json:"chat_id"`
	Variants    []Variant    `json:"variants,omitempty"`
	RequestedAt time.Time    `json:"requested_at"`
	Cause       RebuildCause `json:"cause"`
	Attempt     int          `json:"attempt,omitempty"`
}

// RebuildQueue описывает очередь задач пересчёта.
type RebuildQueue interface {
	Enqueue(ctx context.Context, job RebuildJob) error
	Receive(ctx context.Context) (RebuildJob, RebuildAckFunc, error)
}

// AckOutcome сообщает очереди, что делать с полученной задачей.
type AckOutcome int

const (
	// AckDone: задача обработана и удаляется из очереди.
	AckDone AckOutcome = iota
	// AckReject: задача отбрасывается без повтора.
	AckReject
	// AckRequeue: задача возвращается в очередь без изменений.
	AckRequeue
)

// String используется в логах.
func (o AckOutcome) String() string {
	switch o {
	case AckDone:
		return "done"
	case AckReject:
		return "reject"
	case AckRequeue:
		return "requeue"
	}
	return "unknown"
}

// RebuildAckFunc завершает обработку полученной задачи.
type RebuildAckFunc func(outcome AckOutcome) error
