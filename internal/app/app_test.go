package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/signalman/internal/common"
)

func testConfig(t *testing.T) *common.Config {
	config := common.NewDefaultConfig()
	config.Storage.Badger.Path = t.TempDir()
	config.NewsFeed.Provider = "none"
	config.Pushover.Enabled = false
	config.Notion.Enabled = false
	return config
}

func TestApp_NewWiresAllServices(t *testing.T) {
	a, err := New(testConfig(t), arbor.NewLogger())
	require.NoError(t, err)
	defer a.Close()

	assert.NotNil(t, a.AlertStorage)
	assert.NotNil(t, a.NewsFeed)
	assert.NotNil(t, a.Filter)
	assert.NotNil(t, a.Batcher)
	assert.NotNil(t, a.Scorer)
	assert.NotNil(t, a.MarketData)
	assert.NotNil(t, a.Aggregator)
	assert.NotNil(t, a.AlertQueue)
	assert.NotNil(t, a.AlertBatcher)
	assert.NotNil(t, a.ReportSink)
}

func TestApp_NewRejectsUnknownFeedProvider(t *testing.T) {
	config := testConfig(t)
	config.NewsFeed.Provider = "telegraph"

	_, err := New(config, arbor.NewLogger())
	assert.Error(t, err)
}

func TestApp_EmptyCycleCompletes(t *testing.T) {
	a, err := New(testConfig(t), arbor.NewLogger())
	require.NoError(t, err)
	defer a.Close()

	// No feed, no pending alerts: the cycle is a no-op but must not fail.
	require.NoError(t, a.RunCycle(context.Background()))
}
