// Package queue defines the asynq tasks emitted after successful writes.
// Notification and archival run out-of-band so a slow mail provider or
// object store never blocks the operator's upload.
package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// NotifyTask is scheduled once per recipient after a stage submission.
	NotifyTask = "job:notify"
	// ArchiveTask mirrors a job directory into the archive bucket.
	ArchiveTask = "job:archive"
)

// NotifyPayload carries one outbound email. EventID ties the task back to
// the production event that triggered it.
type NotifyPayload struct {
	EventID   string `json:"event_id"`
	Recipient string `json:"recipient"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
}

// ArchivePayload names the job directory to mirror offsite.
type ArchivePayload struct {
	EventID string `json:"event_id"`
	DirName string `json:"dir_name"`
}

// EnqueueNotify schedules a notification email.
func EnqueueNotify(ctx context.Context, client *asynq.Client, payload NotifyPayload) error {
	if payload.EventID == "" {
		payload.EventID = uuid.NewString()
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal notify payload: %w", err)
	}
	task := asynq.NewTask(NotifyTask, data)
	if _, err := client.EnqueueContext(ctx, task, asynq.MaxRetry(5)); err != nil {
		return fmt.Errorf("enqueue notify task: %w", err)
	}
	return nil
}

// EnqueueArchive schedules an offsite mirror of a job directory.
func EnqueueArchive(ctx context.Context, client *asynq.Client, payload ArchivePayload) error {
	if payload.EventID == "" {
		payload.EventID = uuid.NewString()
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal archive payload: %w", err)
	}
	task := asynq.NewTask(ArchiveTask, data)
	if _, err := client.EnqueueContext(ctx, task, asynq.MaxRetry(3)); err != nil {
		return fmt.Errorf("enqueue archive task: %w", err)
	}
	return nil
}
