package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/atlaspay/fraud-risk-engine/internal/domain/fraud"
)

type recordingStore struct {
	mu     sync.Mutex
	alerts []*fraud.FraudAlert
	err    error
}

func (s *recordingStore) Save(_ context.Context, alert *fraud.FraudAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.alerts = append(s.alerts, alert)
	return nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	notified []*fraud.FraudAlert
}

func (n *recordingNotifier) Notify(_ context.Context, alert *fraud.FraudAlert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notified = append(n.notified, alert)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.notified)
}

func newAlert() *fraud.FraudAlert {
	return fraud.NewFraudAlert(fraud.AlertHighRiskScore, fraud.AlertSeverityHigh,
		uuid.New(), "payment attempt scored 90", nil)
}

func TestAlertPublisher_PersistsAndNotifies(t *testing.T) {
	store := &recordingStore{}
	notifier := &recordingNotifier{}
	pub := NewAlertPublisher(store, zaptest.NewLogger(t), 8, notifier)
	pub.Start()

	require.NoError(t, pub.Publish(context.Background(), newAlert()))
	require.NoError(t, pub.Publish(context.Background(), newAlert()))

	pub.Close()

	assert.Len(t, store.alerts, 2)
	assert.Equal(t, 2, notifier.count())
}

func TestAlertPublisher_StoreFailureSurfaces(t *testing.T) {
	store := &recordingStore{err: errors.New("insert failed")}
	pub := NewAlertPublisher(store, zaptest.NewLogger(t), 8)
	pub.Start()
	defer pub.Close()

	err := pub.Publish(context.Background(), newAlert())
	assert.Error(t, err)
}

func TestAlertPublisher_FullQueueDoesNotBlock(t *testing.T) {
	store := &recordingStore{}
	// No worker started: the queue fills and Publish must still return.
	pub := NewAlertPublisher(store, zaptest.NewLogger(t), 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 5; i++ {
			assert.NoError(t, pub.Publish(context.Background(), newAlert()))
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full queue")
	}
	assert.Len(t, store.alerts, 5)
}
