// Package rules implements priority-ordered substring categorization of
// transaction descriptions.
package rules

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/fintally/fintally/internal/domain"
	"github.com/fintally/fintally/internal/logging"
)

// Store is the slice of the persistence layer the rule engine needs.
type Store interface {
	ListRules(ctx context.Context) ([]domain.CategoryRule, error)
	UncategorizedID(ctx context.Context) (int64, error)
	TransactionsByCategory(ctx context.Context, categoryID int64) ([]domain.Transaction, error)
	UpdateTransactionCategory(ctx context.Context, txnID, categoryID int64) error
}

// Engine matches descriptions against a rule table. Rules are evaluated in
// priority order, highest first; rules with equal priority keep their
// insertion order (lowest id first), which makes matching deterministic.
type Engine struct {
	rules []domain.CategoryRule
}

// NewEngine creates an engine from a rule set. The input order is preserved
// for equal priorities (stable sort).
func NewEngine(ruleSet []domain.CategoryRule) *Engine {
	sorted := make([]domain.CategoryRule, len(ruleSet))
	copy(sorted, ruleSet)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority > sorted[j].Priority
	})
	return &Engine{rules: sorted}
}

// Load builds an engine from the store's current rule table. Callers load
// fresh per import; the table is not locked against concurrent edits.
func Load(ctx context.Context, st Store) (*Engine, error) {
	ruleSet, err := st.ListRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading category rules: %w", err)
	}
	return NewEngine(ruleSet), nil
}

// Match returns the category of the first rule whose pattern is a
// case-insensitive substring of description. The second return is false
// when no rule matches; callers fall back to Uncategorized.
func (e *Engine) Match(description string) (int64, bool) {
	desc := strings.ToUpper(description)
	for _, r := range e.rules {
		if strings.Contains(desc, strings.ToUpper(r.Pattern)) {
			return r.CategoryID, true
		}
	}
	return 0, false
}

// Rules returns a copy of the rule set in evaluation order.
func (e *Engine) Rules() []domain.CategoryRule {
	out := make([]domain.CategoryRule, len(e.rules))
	copy(out, e.rules)
	return out
}

// ApplyToUncategorized re-runs the current rule table over every transaction
// assigned to Uncategorized and moves the ones that now resolve to a
// different category. Returns the number updated.
func ApplyToUncategorized(ctx context.Context, st Store) (int, error) {
	engine, err := Load(ctx, st)
	if err != nil {
		return 0, err
	}

	uncatID, err := st.UncategorizedID(ctx)
	if err != nil {
		return 0, err
	}

	txns, err := st.TransactionsByCategory(ctx, uncatID)
	if err != nil {
		return 0, fmt.Errorf("listing uncategorized transactions: %w", err)
	}

	updated := 0
	for _, t := range txns {
		categoryID, ok := engine.Match(t.Description)
		if !ok || categoryID == uncatID {
			continue
		}
		if err := st.UpdateTransactionCategory(ctx, t.ID, categoryID); err != nil {
			return updated, fmt.Errorf("recategorizing transaction %d: %w", t.ID, err)
		}
		updated++
	}

	logging.FromContext(ctx).Debug().
		Int("scanned", len(txns)).
		Int("updated", updated).
		Msg("recategorization pass finished")
	return updated, nil
}
