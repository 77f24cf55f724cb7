package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/signalman/internal/interfaces"
)

func TestPushover_Send(t *testing.T) {
	var received map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		received = map[string]string{
			"token":    r.FormValue("token"),
			"user":     r.FormValue("user"),
			"title":    r.FormValue("title"),
			"message":  r.FormValue("message"),
			"priority": r.FormValue("priority"),
		}
		w.Write([]byte(`{"status":1}`))
	}))
	defer server.Close()

	client := NewPushoverClient("app-token", "user-token", WithBaseURL(server.URL))

	err := client.Send(context.Background(), &interfaces.Notification{
		Title:    "Market signals: 2 new",
		Message:  "2 signals: 2 bullish, 0 bearish",
		Priority: 1,
	})
	require.NoError(t, err)

	assert.Equal(t, "app-token", received["token"])
	assert.Equal(t, "user-token", received["user"])
	assert.Equal(t, "Market signals: 2 new", received["title"])
	assert.Equal(t, "1", received["priority"])
}

func TestPushover_SendFailsOnServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"status":0,"errors":["invalid token"]}`, http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewPushoverClient("bad-token", "user-token", WithBaseURL(server.URL))

	err := client.Send(context.Background(), &interfaces.Notification{Title: "x", Message: "y"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

func TestPushover_HourlyRateLimit(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"status":1}`))
	}))
	defer server.Close()

	client := NewPushoverClient("app-token", "user-token",
		WithBaseURL(server.URL),
		WithRateLimitPerHour(2))

	notification := &interfaces.Notification{Title: "t", Message: "m"}
	require.NoError(t, client.Send(context.Background(), notification))
	require.NoError(t, client.Send(context.Background(), notification))

	// Budget spent: the third send fails fast instead of blocking.
	err := client.Send(context.Background(), notification)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit")
	assert.Equal(t, 2, calls)
}

func TestPushover_RequiresTokens(t *testing.T) {
	client := NewPushoverClient("", "")
	err := client.Send(context.Background(), &interfaces.Notification{Title: "t", Message: "m"})
	assert.Error(t, err)
}
