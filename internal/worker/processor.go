// Package worker consumes the notification and archive tasks enqueued by
// the API server.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/hibiken/asynq"

	"github.com/headstone-world/stoneledger/internal/archive"
	"github.com/headstone-world/stoneledger/internal/mailer"
	"github.com/headstone-world/stoneledger/internal/queue"
)

// Processor is plugged into the asynq worker loop.
type Processor struct {
	mail        mailer.Sender
	archiver    *archive.Archiver
	uploadsRoot string
}

// NewProcessor constructs a worker processor. archiver may be nil when no
// bucket is configured; archive tasks are then acknowledged and skipped.
func NewProcessor(mail mailer.Sender, archiver *archive.Archiver, uploadsRoot string) *Processor {
	return &Processor{mail: mail, archiver: archiver, uploadsRoot: uploadsRoot}
}

// Handler registers the task handlers.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.NotifyTask, p.handleNotify)
	mux.HandleFunc(queue.ArchiveTask, p.handleArchive)
	return mux
}

func (p *Processor) handleNotify(ctx context.Context, task *asynq.Task) error {
	var payload queue.NotifyPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode notify payload: %w", err)
	}
	if err := p.mail.Send(ctx, payload.Recipient, payload.Subject, payload.Body); err != nil {
		log.Printf("notify %s failed for %s: %v", payload.EventID, payload.Recipient, err)
		return err
	}
	log.Printf("notified %s: %s", payload.Recipient, payload.Subject)
	return nil
}

func (p *Processor) handleArchive(ctx context.Context, task *asynq.Task) error {
	var payload queue.ArchivePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode archive payload: %w", err)
	}
	if p.archiver == nil {
		log.Printf("archive disabled, skipping %s", payload.DirName)
		return nil
	}
	if err := p.archiver.MirrorJob(ctx, p.uploadsRoot, payload.DirName); err != nil {
		log.Printf("archive %s failed: %v", payload.DirName, err)
		return err
	}
	log.Printf("archived %s", payload.DirName)
	return nil
}
