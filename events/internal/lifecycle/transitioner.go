package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/PhilipLykov/SyslogCollectorAI-sub000/common/logging"
	"github.com/PhilipLykov/SyslogCollectorAI-sub000/events/internal/models"
)

// Store reads and transitions findings.
type Store interface {
	ListOpenFindings(ctx context.Context, systemID string) ([]*models.Finding, error)
	AcknowledgeFinding(ctx context.Context, id string, at time.Time) (bool, error)
}

// Transitioner moves open findings to acknowledged when an acknowledged
// message matches them.
type Transitioner struct {
	store   Store
	matcher Matcher
	now     func() time.Time
	logger  *slog.Logger
}

// NewTransitioner creates a Transitioner. Zero matcher fields take the
// defaults.
func NewTransitioner(store Store, matcher Matcher) *Transitioner {
	def := DefaultMatcher()
	if matcher.Threshold <= 0 {
		matcher.Threshold = def.Threshold
	}
	if matcher.MinWordLength <= 0 {
		matcher.MinWordLength = def.MinWordLength
	}
	return &Transitioner{
		store:   store,
		matcher: matcher,
		now:     time.Now,
		logger:  slog.Default().With(logging.Operation("transition_findings")),
	}
}

type candidate struct {
	words []string
}

// Transition acknowledges every open finding (of systemID, or of all
// systems when empty) matched by at least one message. It returns the number
// of findings transitioned.
func (t *Transitioner) Transition(ctx context.Context, systemID string, messages []string) (int, error) {
	candidates := make([]candidate, 0, len(messages))
	for _, msg := range messages {
		if words := SignificantWords(msg, t.matcher.MinWordLength); len(words) > 0 {
			candidates = append(candidates, candidate{words: words})
		}
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	findings, err := t.store.ListOpenFindings(ctx, systemID)
	if err != nil {
		return 0, fmt.Errorf("failed to load open findings: %w", err)
	}

	at := t.now()
	transitioned := 0
	for _, f := range findings {
		if !t.matchesAny(f.Text, candidates) {
			continue
		}
		ok, err := t.store.AcknowledgeFinding(ctx, f.ID, at)
		if err != nil {
			t.logger.WarnContext(ctx, "failed to acknowledge finding",
				logging.FindingID(f.ID), logging.SystemID(f.SystemID), logging.Error(err))
			continue
		}
		if ok {
			transitioned++
		}
	}
	return transitioned, nil
}

func (t *Transitioner) matchesAny(findingText string, candidates []candidate) bool {
	for _, c := range candidates {
		if Overlap(c.words, findingText) >= t.matcher.Threshold {
			return true
		}
	}
	return false
}
