package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/signalman/internal/eodhd"
)

func newQuoteServer(t *testing.T, quotes map[string]string, history map[string]string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/real-time/", func(w http.ResponseWriter, r *http.Request) {
		symbol := r.URL.Path[len("/real-time/"):]
		body, ok := quotes[symbol]
		if !ok {
			http.Error(w, `{"error":"unknown symbol"}`, http.StatusNotFound)
			return
		}
		fmt.Fprint(w, body)
	})
	mux.HandleFunc("/eod/", func(w http.ResponseWriter, r *http.Request) {
		symbol := r.URL.Path[len("/eod/"):]
		body, ok := history[symbol]
		if !ok {
			fmt.Fprint(w, "[]")
			return
		}
		fmt.Fprint(w, body)
	})
	return httptest.NewServer(mux)
}

func TestSnapshot_UsesRecentLowAsSupport(t *testing.T) {
	server := newQuoteServer(t,
		map[string]string{
			"BOTZ.US": `{"code":"BOTZ.US","timestamp":1756500000,"close":31.5,"change_p":1.2}`,
		},
		map[string]string{
			"BOTZ.US": `[{"date":"2026-08-26","low":30.1,"close":30.8},{"date":"2026-08-27","low":29.9,"close":30.5},{"date":"2026-08-28","low":30.4,"close":31.2}]`,
		})
	defer server.Close()

	client := eodhd.NewClient("test-key", eodhd.WithBaseURL(server.URL))
	service := NewService(client, arbor.NewLogger())

	snapshots, err := service.Snapshot(context.Background(), []string{"botz"})
	require.NoError(t, err)
	require.Contains(t, snapshots, "BOTZ")

	snapshot := snapshots["BOTZ"]
	assert.InDelta(t, 31.5, snapshot.Price, 1e-9)
	assert.InDelta(t, 29.9, snapshot.EstimatedSupport, 1e-9, "support is the lowest recent session low")
	assert.False(t, snapshot.AsOf.IsZero())
}

func TestSnapshot_FallsBackToVolatilityDiscount(t *testing.T) {
	server := newQuoteServer(t,
		map[string]string{
			"ROBO.US": `{"code":"ROBO.US","timestamp":1756500000,"close":100,"change_p":2.0}`,
		},
		nil)
	defer server.Close()

	client := eodhd.NewClient("test-key", eodhd.WithBaseURL(server.URL))
	service := NewService(client, arbor.NewLogger())

	snapshots, err := service.Snapshot(context.Background(), []string{"ROBO"})
	require.NoError(t, err)
	require.Contains(t, snapshots, "ROBO")

	// 2% daily move implies support 4% below price.
	assert.InDelta(t, 96.0, snapshots["ROBO"].EstimatedSupport, 1e-9)
}

func TestSnapshot_OmitsUnresolvableSymbols(t *testing.T) {
	server := newQuoteServer(t,
		map[string]string{
			"BOTZ.US": `{"code":"BOTZ.US","timestamp":1756500000,"close":31.5,"change_p":0.4}`,
		},
		nil)
	defer server.Close()

	client := eodhd.NewClient("test-key", eodhd.WithBaseURL(server.URL))
	service := NewService(client, arbor.NewLogger())

	snapshots, err := service.Snapshot(context.Background(), []string{"BOTZ", "NOPE"})
	require.NoError(t, err, "unresolvable symbols are omitted, not errors")
	assert.Contains(t, snapshots, "BOTZ")
	assert.NotContains(t, snapshots, "NOPE")
}
