// Package tasks defines the background jobs exchanged between the API, the scheduler and the worker
package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// Task type names
const (
	TypeSessionCompleted    = "session:completed"
	TypeReadingLevelRebuild = "reading_level:rebuild"
)

// Queue names with their worker priorities
const (
	QueueNotifications = "notifications"
	QueueMaintenance   = "maintenance"
)

// Queues is the asynq queue priority map used by the worker
var Queues = map[string]int{
	QueueNotifications: 5,
	QueueMaintenance:   1,
}

// SessionCompletedPayload is the payload of TypeSessionCompleted
type SessionCompletedPayload struct {
	UserID    int `json:"user_id"`
	SessionID int `json:"session_id"`
}

// RebuildUniqueWindow is how long an enqueued rebuild blocks an identical one.
// The lock is released early when the rebuild succeeds.
const RebuildUniqueWindow = time.Minute

// ReadingLevelRebuildPayload is the payload of TypeReadingLevelRebuild
type ReadingLevelRebuildPayload struct {
	UserID int `json:"user_id"`
	// FollowUp marks the rebuild queued behind one that was already pending or running
	FollowUp bool `json:"follow_up,omitempty"`
}

// NewSessionCompletedTask creates the task sending a session summary e-mail
func NewSessionCompletedTask(userID, sessionID int) (*asynq.Task, error) {
	payload, err := json.Marshal(SessionCompletedPayload{UserID: userID, SessionID: sessionID})
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	return asynq.NewTask(TypeSessionCompleted, payload, asynq.Queue(QueueNotifications), asynq.MaxRetry(5)), nil
}

// NewReadingLevelRebuildTask creates the task recomputing one user's reading level
func NewReadingLevelRebuildTask(userID int) (*asynq.Task, error) {
	return newRebuildTask(ReadingLevelRebuildPayload{UserID: userID})
}

func newRebuildTask(p ReadingLevelRebuildPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	return asynq.NewTask(TypeReadingLevelRebuild, payload,
		asynq.Queue(QueueMaintenance),
		asynq.MaxRetry(10),
	), nil
}

// ParseSessionCompleted decodes a TypeSessionCompleted payload
func ParseSessionCompleted(t *asynq.Task) (SessionCompletedPayload, error) {
	var p SessionCompletedPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return p, fmt.Errorf("failed to decode %s payload: %w", t.Type(), err)
	}
	if p.UserID <= 0 || p.SessionID <= 0 {
		return p, fmt.Errorf("invalid %s payload: %s", t.Type(), t.Payload())
	}
	return p, nil
}

// ParseReadingLevelRebuild decodes a TypeReadingLevelRebuild payload
func ParseReadingLevelRebuild(t *asynq.Task) (ReadingLevelRebuildPayload, error) {
	var p ReadingLevelRebuildPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return p, fmt.Errorf("failed to decode %s payload: %w", t.Type(), err)
	}
	if p.UserID <= 0 {
		return p, fmt.Errorf("invalid %s payload: %s", t.Type(), t.Payload())
	}
	return p, nil
}

// Enqueuer is the part of the asynq client used to submit tasks
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Dispatcher submits background jobs
type Dispatcher struct {
	client Enqueuer
}

// NewDispatcher creates a new dispatcher over an asynq client
func NewDispatcher(client Enqueuer) *Dispatcher {
	return &Dispatcher{client: client}
}

// SessionCompleted enqueues the session summary e-mail
func (d *Dispatcher) SessionCompleted(ctx context.Context, userID, sessionID int) error {
	task, err := NewSessionCompletedTask(userID, sessionID)
	if err != nil {
		return err
	}
	if _, err := d.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("failed to enqueue %s: %w", task.Type(), err)
	}
	return nil
}

// RebuildReadingLevel enqueues a reading level recompute.
// Requests for the same user within RebuildUniqueWindow collapse into one task. When a rebuild
// is already pending or running, a single delayed follow-up is queued so that answers stored
// after it read the scores are still counted.
func (d *Dispatcher) RebuildReadingLevel(ctx context.Context, userID int) error {
	err := d.enqueueRebuild(ctx, ReadingLevelRebuildPayload{UserID: userID})
	if !errors.Is(err, asynq.ErrDuplicateTask) {
		return err
	}

	err = d.enqueueRebuild(ctx, ReadingLevelRebuildPayload{UserID: userID, FollowUp: true}, asynq.ProcessIn(RebuildUniqueWindow))
	if errors.Is(err, asynq.ErrDuplicateTask) {
		return nil
	}
	return err
}

func (d *Dispatcher) enqueueRebuild(ctx context.Context, p ReadingLevelRebuildPayload, opts ...asynq.Option) error {
	task, err := newRebuildTask(p)
	if err != nil {
		return err
	}
	opts = append(opts, asynq.Unique(RebuildUniqueWindow))
	if _, err := d.client.EnqueueContext(ctx, task, opts...); err != nil {
		return fmt.Errorf("failed to enqueue %s: %w", task.Type(), err)
	}
	return nil
}
