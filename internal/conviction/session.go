package conviction

import (
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/signalman/internal/common"
	"github.com/ternarybob/signalman/internal/models"
)

// Session is the explicit per-cycle tally of analysis results. It is a
// plain value handle passed into the aggregator rather than package
// state, so concurrent sessions stay independent and tests stay simple.
type Session struct {
	id        string
	startedAt time.Time
	results   []models.AnalysisResult
	dropped   int
	logger    arbor.ILogger
}

// NewSession starts an empty session.
func NewSession(logger arbor.ILogger) *Session {
	return &Session{
		id:        common.NewSessionID(),
		startedAt: time.Now(),
		logger:    logger,
	}
}

// Add records one scorer result. Results that break the scorer contract
// (confidence outside [1,10], no symbols) are dropped with a warning;
// a misbehaving model must never abort the session.
func (s *Session) Add(result models.AnalysisResult) {
	if err := result.Validate(); err != nil {
		s.dropped++
		s.logger.Warn().
			Err(err).
			Str("news_id", result.NewsItemID).
			Msg("Dropping invalid analysis result")
		return
	}
	s.results = append(s.results, result)
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// StartedAt returns the session start time.
func (s *Session) StartedAt() time.Time {
	return s.startedAt
}

// Results returns the accepted results in arrival order.
func (s *Session) Results() []models.AnalysisResult {
	return s.results
}

// Size returns the number of accepted results.
func (s *Session) Size() int {
	return len(s.results)
}

// Dropped returns how many results failed validation.
func (s *Session) Dropped() int {
	return s.dropped
}
