// Package eventlog records one row per successful write operation so the
// shop can answer "what happened to this order and when" without digging
// through directory timestamps. The log is advisory: the uploads tree stays
// the system of record, and logging failures never fail the request that
// triggered them.
package eventlog

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Event is one production event.
type Event struct {
	ID        string    `json:"id"`
	Operation string    `json:"operation"`
	JobDir    string    `json:"jobDir"`
	InvoiceNo string    `json:"invoiceNo"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Recorder is what the API depends on; the noop implementation stands in
// when no database is configured.
type Recorder interface {
	Record(ctx context.Context, operation, jobDir, invoiceNo, detail string)
}

// Noop discards events.
type Noop struct{}

func (Noop) Record(context.Context, string, string, string, string) {}

// Repository writes events through a pgx pool.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Record inserts one event. Failures are logged and swallowed.
func (r *Repository) Record(ctx context.Context, operation, jobDir, invoiceNo, detail string) {
	ev := Event{
		ID:        uuid.NewString(),
		Operation: operation,
		JobDir:    jobDir,
		InvoiceNo: invoiceNo,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO production_events (id, operation, job_dir, invoice_no, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, ev.ID, ev.Operation, ev.JobDir, ev.InvoiceNo, ev.Detail, ev.CreatedAt)
	if err != nil {
		log.Printf("record event %s/%s: %v", operation, invoiceNo, err)
	}
}

// Recent returns the latest events for one invoice number, newest first.
func (r *Repository) Recent(ctx context.Context, invoiceNo string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, operation, job_dir, invoice_no, COALESCE(detail,''), created_at
		FROM production_events WHERE invoice_no=$1
		ORDER BY created_at DESC LIMIT $2
	`, invoiceNo, limit)
	if err != nil {
		return nil, fmt.Errorf("select events: %w", err)
	}
	defer rows.Close()
	var events []Event
	for rows.Next() {
		var ev Event
		if err := rows.Scan(&ev.ID, &ev.Operation, &ev.JobDir, &ev.InvoiceNo, &ev.Detail, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
