package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNotificationServiceLogsWithoutWebhook(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	svc := NewNotificationService("", zap.New(core))
	assert.False(t, svc.IsEnabled())

	svc.Publish(context.Background(), Event{Type: EventUnitCreated, Subject: "BU-1", At: day(2024, 1, 1)})
	svc.Close()

	entries := logs.FilterMessage("event").All()
	require.Len(t, entries, 1)
	assert.Equal(t, EventUnitCreated, entries[0].ContextMap()["type"])
	assert.Equal(t, "BU-1", entries[0].ContextMap()["subject"])
}

func TestNotificationServicePostsToWebhook(t *testing.T) {
	var mu sync.Mutex
	var got []Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var e Event
		if err := json.NewDecoder(r.Body).Decode(&e); err == nil {
			mu.Lock()
			got = append(got, e)
			mu.Unlock()
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	svc := NewNotificationService(srv.URL, zap.NewNop())
	require.True(t, svc.IsEnabled())

	svc.Publish(context.Background(), Event{
		Type:    EventHoldExpired,
		Subject: "req-1",
		Data:    map[string]interface{}{"units": 2},
		At:      time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	})
	svc.Close()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, EventHoldExpired, got[0].Type)
	assert.Equal(t, "req-1", got[0].Subject)
	assert.EqualValues(t, 2, got[0].Data["units"])
}

func TestNotificationServiceWarnsOnRejectedDelivery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	core, logs := observer.New(zap.WarnLevel)
	svc := NewNotificationService(srv.URL, zap.New(core))
	svc.Publish(context.Background(), Event{Type: EventSweepCompleted, Subject: "expiry"})
	svc.Close()

	assert.Equal(t, 1, logs.FilterMessage("webhook rejected event").Len())
}
