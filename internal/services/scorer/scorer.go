package scorer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/signalman/internal/common"
	"github.com/ternarybob/signalman/internal/interfaces"
	"github.com/ternarybob/signalman/internal/models"
	"github.com/ternarybob/signalman/internal/services/llm"
)

const systemInstruction = `You are a tactical market strategist focused on identifying high-momentum opportunities in defense, AI, energy, clean tech, and volatility hedging. You turn breaking market intelligence into instrument positioning signals. Respond with JSON only.`

// Scorer sends finalized news batches to an AI provider and parses the
// verdicts back into analysis results. It always submits the whole
// batch in one call; per-item calls would multiply cost and rate-limit
// pressure for no quality gain.
type Scorer struct {
	factory *llm.ProviderFactory
	model   string
	timeout time.Duration
	logger  arbor.ILogger
}

// itemVerdict is the per-item object the model is asked to emit.
type itemVerdict struct {
	Index      int      `json:"index"`
	Relevance  string   `json:"relevance"` // "financial" or "not_financial"
	Signal     string   `json:"signal"`
	Confidence int      `json:"confidence"`
	Symbols    []string `json:"affected_symbols"`
	Sector     string   `json:"sector"`
	Reasoning  string   `json:"reasoning"`
}

// New creates a Scorer backed by the given provider factory. The model
// string selects the provider; empty means the configured default.
func New(factory *llm.ProviderFactory, llmConfig *common.LLMConfig, timeout time.Duration, logger arbor.ILogger) interfaces.SignalScorer {
	provider := llm.ProviderType(llmConfig.DefaultProvider)
	return &Scorer{
		factory: factory,
		model:   factory.GetDefaultModel(provider),
		timeout: timeout,
		logger:  logger,
	}
}

// ScoreBatch scores every item of a finalized batch in one provider
// call. Items the model marks not relevant are simply absent from the
// returned slice; the caller must not treat a missing verdict as an
// error.
func (s *Scorer) ScoreBatch(ctx context.Context, batch *models.NewsBatch) ([]models.AnalysisResult, error) {
	if batch == nil || batch.Size() == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	s.logger.Info().
		Str("batch_id", batch.ID).
		Int("items", batch.Size()).
		Str("model", s.model).
		Msg("Scoring news batch")

	response, err := s.factory.GenerateContent(ctx, &llm.ContentRequest{
		Prompt:            buildBatchPrompt(batch),
		SystemInstruction: systemInstruction,
		Model:             s.model,
	})
	if err != nil {
		return nil, fmt.Errorf("batch scoring failed for %s: %w", batch.ID, err)
	}

	verdicts, err := parseVerdicts(response.Text)
	if err != nil {
		return nil, fmt.Errorf("unparseable scorer response for %s: %w", batch.ID, err)
	}

	results := make([]models.AnalysisResult, 0, len(verdicts))
	now := time.Now()
	for _, verdict := range verdicts {
		if verdict.Index < 0 || verdict.Index >= batch.Size() {
			s.logger.Warn().
				Int("index", verdict.Index).
				Int("batch_size", batch.Size()).
				Msg("Scorer verdict references unknown item, skipping")
			continue
		}
		if strings.EqualFold(verdict.Relevance, "not_financial") {
			s.logger.Debug().
				Str("news_id", batch.Items[verdict.Index].ID).
				Msg("Item not relevant to thematic investing")
			continue
		}

		item := batch.Items[verdict.Index]
		result := models.AnalysisResult{
			NewsItemID: item.ID,
			Signal:     models.ParseSignalType(verdict.Signal),
			Confidence: verdict.Confidence,
			Symbols:    verdict.Symbols,
			Sector:     verdict.Sector,
			Reasoning:  verdict.Reasoning,
			SearchTerm: firstKeyword(item),
			AnalyzedAt: now,
		}
		results = append(results, result)
	}

	s.logger.Info().
		Str("batch_id", batch.ID).
		Int("verdicts", len(verdicts)).
		Int("relevant", len(results)).
		Msg("Batch scored")

	return results, nil
}

func buildBatchPrompt(batch *models.NewsBatch) string {
	var prompt strings.Builder

	prompt.WriteString("Analyze the following news items for actionable thematic-instrument signals.\n\n")

	for i, item := range batch.Items {
		fmt.Fprintf(&prompt, "ITEM %d:\nTitle: %q\nSource: %s\n", i, item.Title, item.Source)
		if item.Content != "" {
			fmt.Fprintf(&prompt, "Summary: %q\n", item.Content)
		}
		if len(item.Tickers) > 0 {
			fmt.Fprintf(&prompt, "Mentioned tickers: %s\n", strings.Join(item.Tickers, ", "))
		}
		prompt.WriteString("\n")
	}

	prompt.WriteString(`Return a JSON array with exactly one object per item:
[{
  "index": <item number>,
  "relevance": "financial" or "not_financial",
  "sector": "Defense|AI|CleanTech|Volatility|Uranium|Broad Market",
  "signal": "Bullish|Bearish|Neutral",
  "confidence": 1-10,
  "affected_symbols": ["BOTZ", "ITA", ...],
  "reasoning": "Short rationale for the signal"
}]

For an item with relevance "not_financial", omit all fields except index and relevance.
Keep responses focused, precise, and relevant to instrument positioning.`)

	return prompt.String()
}

// parseVerdicts tolerates markdown fencing around the JSON payload,
// which several models emit despite instructions.
func parseVerdicts(text string) ([]itemVerdict, error) {
	cleaned := strings.ReplaceAll(text, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)

	var verdicts []itemVerdict
	if err := json.Unmarshal([]byte(cleaned), &verdicts); err != nil {
		// Some models wrap a single verdict in a bare object.
		var single itemVerdict
		if singleErr := json.Unmarshal([]byte(cleaned), &single); singleErr == nil {
			return []itemVerdict{single}, nil
		}
		return nil, err
	}
	return verdicts, nil
}

func firstKeyword(item models.NewsItem) string {
	if len(item.Keywords) > 0 {
		return item.Keywords[0]
	}
	return ""
}
