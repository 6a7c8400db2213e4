package queue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/iago/ponto-whatsapp-back/internal/domain"
)

func TestLocalQueueDeliversMessages(t *testing.T) {
	queue := NewLocalQueue(8, 3, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan domain.QueueMessage, 1)
	go func() {
		_ = queue.Consume(ctx, func(_ context.Context, message domain.QueueMessage) error {
			received <- message
			return nil
		})
	}()

	message := domain.QueueMessage{JobID: "job-1", Kind: domain.ReportKindAuditoria, Payload: []byte(`{}`)}
	if err := queue.Enqueue(ctx, message); err != nil {
		t.Fatalf("Enqueue returned error: %v", err)
	}

	select {
	case got := <-received:
		if got.JobID != "job-1" {
			t.Fatalf("expected job-1, got %s", got.JobID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestLocalQueueRetriesThenDLQ(t *testing.T) {
	queue := NewLocalQueue(8, 2, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var attempts atomic.Int32
	done := make(chan struct{})
	go func() {
		_ = queue.Consume(ctx, func(_ context.Context, _ domain.QueueMessage) error {
			if attempts.Add(1) == 2 {
				close(done)
			}
			return errors.New("handler failed")
		})
	}()

	if err := queue.Enqueue(ctx, domain.QueueMessage{JobID: "job-retry"}); err != nil {
		t.Fatalf("Enqueue returned error: %v", err)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("expected 2 attempts, got %d", attempts.Load())
	}

	deadline := time.Now().Add(2 * time.Second)
	for queue.DLQSize() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("message never reached the DLQ")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if size := queue.DLQSize(); size != 1 {
		t.Fatalf("expected 1 DLQ message, got %d", size)
	}
}
