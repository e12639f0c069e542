package events

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"customer-analytics-api/internal/logger"
)

func observedLogger() (*logger.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return &logger.Logger{SugaredLogger: zap.New(core).Sugar()}, logs
}

func TestPublish(t *testing.T) {
	m := NewManager(true, nil)

	var mu sync.Mutex
	var got []Event
	m.Subscribe(EventCustomersUpserted, func(ctx context.Context, e Event) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e)
		return nil
	})

	m.PublishUpserted(context.Background(), EventCustomersUpserted, []int64{1, 2})
	m.PublishDeleted(context.Background(), EventCustomerDeleted, 3)
	m.Shutdown()

	if len(got) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(got))
	}
	data, ok := got[0].Data.(UpsertedData)
	if !ok || data.Count != 2 {
		t.Errorf("Unexpected event data %+v", got[0].Data)
	}
	if got[0].ID == "" {
		t.Errorf("Expected event id")
	}
}

func TestPublish_Disabled(t *testing.T) {
	m := NewManager(false, nil)
	called := false
	m.Subscribe(EventCustomerDeleted, func(ctx context.Context, e Event) error {
		called = true
		return nil
	})
	m.PublishDeleted(context.Background(), EventCustomerDeleted, 1)
	m.Shutdown()

	if called {
		t.Errorf("Expected disabled manager to drop events")
	}
}

func TestPublish_HandlerErrorIsLogged(t *testing.T) {
	log, logs := observedLogger()
	m := NewManager(true, log)
	m.Subscribe(EventRetentionDeleted, func(ctx context.Context, e Event) error {
		return errors.New("boom")
	})

	m.PublishDeleted(context.Background(), EventRetentionDeleted, 9)
	m.Shutdown()

	if logs.FilterMessage("event handler failed").Len() != 1 {
		t.Errorf("Expected handler failure to be logged")
	}
}

func TestLogHandler(t *testing.T) {
	log, logs := observedLogger()
	m := NewManager(true, nil)
	m.SubscribeAll(LogHandler(log))

	ctx, cancel := context.WithCancel(context.Background())
	m.PublishUpserted(ctx, EventRetentionUpserted, []int64{4, 5, 6})
	cancel()
	m.Shutdown()

	entries := logs.FilterMessage("write event").All()
	if len(entries) != 1 {
		t.Fatalf("Expected 1 log entry, got %d", len(entries))
	}
	if entries[0].ContextMap()["count"] != int64(3) {
		t.Errorf("Unexpected fields %v", entries[0].ContextMap())
	}
}
