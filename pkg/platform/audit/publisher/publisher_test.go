package publisher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "amlstat/pkg/domain"
	audit "amlstat/pkg/platform/audit"
	"amlstat/pkg/platform/audit/store/memory"
	"amlstat/pkg/requestcontext"
)

type failingStore struct{}

func (failingStore) Append(context.Context, audit.Event) error {
	return errors.New("disk full")
}

func (failingStore) ListBySubject(context.Context, audit.SubjectType, string) ([]audit.Event, error) {
	return nil, nil
}

func TestPublisher_EmitEnrichesFromRequestContext(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := New(store)

	now := time.Date(2024, 12, 15, 9, 30, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), now)
	ctx = requestcontext.WithRequestID(ctx, "req-123")
	ctx = requestcontext.WithClientMetadata(ctx, "10.0.0.7", "Firefox 120.0 (Linux)")

	actor := id.NewUserID()
	err := pub.Emit(ctx, audit.Event{
		Action:      audit.EventSubmissionRejected,
		SubjectType: audit.SubjectSubmission,
		SubjectID:   "sub-1",
		ActorID:     actor,
		Reason:      "Incomplete STR data",
	})
	require.NoError(t, err)

	events, err := pub.History(ctx, audit.SubjectSubmission, "sub-1")
	require.NoError(t, err)
	require.Len(t, events, 1)

	got := events[0]
	assert.False(t, got.ID.IsNil())
	assert.Equal(t, audit.CategoryCompliance, got.Category)
	assert.Equal(t, now, got.Timestamp)
	assert.Equal(t, "req-123", got.RequestID)
	assert.Equal(t, "10.0.0.7", got.ClientIP)
	assert.Equal(t, "Firefox 120.0 (Linux)", got.UserAgent)
	assert.Equal(t, actor, got.ActorID)
}

func TestPublisher_EmitRejectsIncompleteEvents(t *testing.T) {
	pub := New(memory.NewInMemoryStore())

	err := pub.Emit(context.Background(), audit.Event{SubjectID: "x"})
	assert.Error(t, err)

	err = pub.Emit(context.Background(), audit.Event{Action: audit.EventUserCreated})
	assert.Error(t, err)
}

func TestPublisher_FailsClosed(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	pub := New(failingStore{}, WithMetrics(metrics))

	err := pub.Emit(context.Background(), audit.Event{
		Action:      audit.EventSubmissionApproved,
		SubjectType: audit.SubjectSubmission,
		SubjectID:   "sub-1",
	})
	require.Error(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.persistFailures))
}
