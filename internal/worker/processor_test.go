package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"

	"github.com/headstone-world/stoneledger/internal/queue"
)

type fakeSender struct {
	sent []queue.NotifyPayload
	err  error
}

func (f *fakeSender) Send(_ context.Context, to, subject, text string) error {
	f.sent = append(f.sent, queue.NotifyPayload{Recipient: to, Subject: subject, Body: text})
	return f.err
}

func notifyTask(t *testing.T, payload queue.NotifyPayload) *asynq.Task {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return asynq.NewTask(queue.NotifyTask, data)
}

func TestHandleNotifyDelivers(t *testing.T) {
	sender := &fakeSender{}
	p := NewProcessor(sender, nil, "uploads")
	payload := queue.NotifyPayload{
		Recipient: "syed@example.com",
		Subject:   "Jane Smith: Prepare cemetery application",
		Body:      "From Headstone World",
	}
	if err := p.handleNotify(context.Background(), notifyTask(t, payload)); err != nil {
		t.Fatalf("handle notify: %v", err)
	}
	if len(sender.sent) != 1 || sender.sent[0].Recipient != "syed@example.com" {
		t.Fatalf("unexpected deliveries: %+v", sender.sent)
	}
}

func TestHandleNotifyPropagatesFailure(t *testing.T) {
	sender := &fakeSender{err: errors.New("mailjet down")}
	p := NewProcessor(sender, nil, "uploads")
	if err := p.handleNotify(context.Background(), notifyTask(t, queue.NotifyPayload{Recipient: "x"})); err == nil {
		t.Fatal("expected error so asynq retries the task")
	}
}

func TestHandleArchiveSkipsWhenDisabled(t *testing.T) {
	p := NewProcessor(&fakeSender{}, nil, "uploads")
	data, _ := json.Marshal(queue.ArchivePayload{DirName: "Jane_Smith_INV-0007"})
	if err := p.handleArchive(context.Background(), asynq.NewTask(queue.ArchiveTask, data)); err != nil {
		t.Fatalf("archive should be a no-op when disabled: %v", err)
	}
}

func TestHandleNotifyRejectsBadPayload(t *testing.T) {
	p := NewProcessor(&fakeSender{}, nil, "uploads")
	if err := p.handleNotify(context.Background(), asynq.NewTask(queue.NotifyTask, []byte("{"))); err == nil {
		t.Fatal("expected decode error")
	}
}
