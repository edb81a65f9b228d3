package retrieval

import (
	"fmt"
	"strings"

	"github.com/invisible-tech/autopilot-remediation-agent/internal/ledger"
	"github.com/invisible-tech/autopilot-remediation-agent/internal/types"
)

// ContextRetriever surfaces similar prior incidents to the recommender.
// Implementations are best-effort and return nil when unavailable.
type ContextRetriever interface {
	SimilarIncidents(alert types.Alert) []types.PastIncident
}

// NoopContext is a ContextRetriever that always returns nothing. Used at
// composition time when no incident history is available.
type NoopContext struct{}

func (NoopContext) SimilarIncidents(types.Alert) []types.PastIncident { return nil }

// LedgerContext finds similar incidents by token overlap against the
// in-process ledger: alert name, severity, and description words.
type LedgerContext struct {
	ledger *ledger.Ledger
	limit  int
}

// NewLedgerContext creates a ledger-backed retriever returning at most
// limit incidents (default 3).
func NewLedgerContext(l *ledger.Ledger, limit int) *LedgerContext {
	if limit <= 0 {
		limit = 3
	}
	return &LedgerContext{ledger: l, limit: limit}
}

// SimilarIncidents scores recent records by shared tokens with the alert and
// returns the best matches, highest score first.
func (c *LedgerContext) SimilarIncidents(alert types.Alert) []types.PastIncident {
	query := tokens(alert.Name + " " + alert.Severity + " " + alert.Description)
	if len(query) == 0 {
		return nil
	}
	var out []types.PastIncident
	for _, rec := range c.ledger.Recent(100) {
		score := overlap(query, tokens(rec.AlertName+" "+rec.Severity+" "+rec.Description))
		if score == 0 {
			continue
		}
		out = append(out, types.PastIncident{
			AlertName:   rec.AlertName,
			ActionTaken: rec.ActionTaken,
			Verified:    rec.Verified,
			Score:       score,
		})
	}
	// Insertion sort by score; the candidate set is tiny.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Score > out[j-1].Score; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	if len(out) > c.limit {
		out = out[:c.limit]
	}
	return out
}

// ContextPrompt renders similar incidents as a prompt block, or "".
func ContextPrompt(incidents []types.PastIncident) string {
	if len(incidents) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n\nPAST SIMILAR INCIDENTS:\n")
	for i, inc := range incidents {
		verified := "No"
		if inc.Verified {
			verified = "Yes"
		}
		fmt.Fprintf(&b, "%d. %s (similarity: %.2f)\n   - Action taken: %s\n   - Verified: %s\n",
			i+1, inc.AlertName, inc.Score, inc.ActionTaken, verified)
	}
	b.WriteString("\nConsider these past incidents when deciding on the best action.\n")
	return b.String()
}

func tokens(s string) map[string]bool {
	out := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(s)) {
		w = strings.Trim(w, ".,:;!?()[]\"'")
		if len(w) > 2 {
			out[w] = true
		}
	}
	return out
}

func overlap(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	n := 0
	for w := range a {
		if b[w] {
			n++
		}
	}
	return float64(n) / float64(len(a))
}
