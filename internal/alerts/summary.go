package alerts

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ternarybob/signalman/internal/interfaces"
	"github.com/ternarybob/signalman/internal/models"
)

const maxHighlights = 3

// FormatNotification renders one delivery group as a push notification.
// A single alert gets its full reasoning; a grouped notification gets a
// compact summary instead, because repeating every member's reasoning
// makes grouped pushes unreadable.
func FormatNotification(alerts []*models.PendingAlert) *interfaces.Notification {
	if len(alerts) == 1 {
		return formatSingle(alerts[0])
	}
	return formatGroup(alerts)
}

func formatSingle(alert *models.PendingAlert) *interfaces.Notification {
	signal := alert.Signal

	var body strings.Builder
	body.WriteString(signal.Title)
	body.WriteString("\n\n")
	fmt.Fprintf(&body, "Signal: %s (%d/10)\n", strings.ToUpper(string(signal.Signal)), signal.Confidence)
	if len(signal.Symbols) > 0 {
		fmt.Fprintf(&body, "Instruments: %s\n", strings.Join(signal.Symbols, ", "))
	}
	if signal.Sector != "" {
		fmt.Fprintf(&body, "Sector: %s\n", signal.Sector)
	}
	if signal.Reasoning != "" {
		body.WriteString("\n")
		body.WriteString(truncate(signal.Reasoning, 400))
		body.WriteString("\n")
	}

	return &interfaces.Notification{
		Title:    fmt.Sprintf("%s %s signal", directionMarker(signal.Signal), titleCase(string(signal.Signal))),
		Message:  body.String(),
		Priority: alert.Priority,
		URL:      signal.ReportURL,
		URLTitle: "Full report",
	}
}

func formatGroup(alerts []*models.PendingAlert) *interfaces.Notification {
	bullish, bearish := 0, 0
	sectorSymbols := make(map[string][]string)
	seen := make(map[string]bool)
	priority := 0

	for _, alert := range alerts {
		signal := alert.Signal
		switch signal.Signal {
		case models.SignalBullish:
			bullish++
		case models.SignalBearish:
			bearish++
		}
		if alert.Priority > priority {
			priority = alert.Priority
		}

		sector := signal.Sector
		if sector == "" {
			sector = "Other"
		}
		for _, symbol := range signal.Symbols {
			key := sector + "|" + symbol
			if seen[key] {
				continue
			}
			seen[key] = true
			sectorSymbols[sector] = append(sectorSymbols[sector], symbol)
		}
	}

	var body strings.Builder
	fmt.Fprintf(&body, "%d signals: %d bullish, %d bearish\n\n", len(alerts), bullish, bearish)

	// Highest-confidence entries first, capped so the push stays short.
	highlighted := make([]*models.PendingAlert, len(alerts))
	copy(highlighted, alerts)
	sort.SliceStable(highlighted, func(i, j int) bool {
		return highlighted[i].Signal.Confidence > highlighted[j].Signal.Confidence
	})
	if len(highlighted) > maxHighlights {
		highlighted = highlighted[:maxHighlights]
	}
	for _, alert := range highlighted {
		fmt.Fprintf(&body, "%s %s (%d/10): %s\n",
			directionMarker(alert.Signal.Signal),
			strings.Join(alert.Signal.Symbols, ", "),
			alert.Signal.Confidence,
			truncate(alert.Signal.Title, 80))
	}

	body.WriteString("\nBy sector:\n")
	for _, sector := range sortedKeys(sectorSymbols) {
		fmt.Fprintf(&body, "%s: %s\n", sector, strings.Join(sectorSymbols[sector], ", "))
	}

	return &interfaces.Notification{
		Title:    fmt.Sprintf("Market signals: %d new", len(alerts)),
		Message:  body.String(),
		Priority: priority,
	}
}

func directionMarker(signal models.SignalType) string {
	switch signal {
	case models.SignalBullish:
		return "▲"
	case models.SignalBearish:
		return "▼"
	default:
		return "■"
	}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
