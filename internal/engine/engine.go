// Package engine orchestrates rule resolution and application for
// incoming and backfilled records.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/backofhouse/tally/internal/model"
	"github.com/backofhouse/tally/internal/rule"
)

// Engine wires the resolver, applier, guard, and hooks over a storage
// backend. It holds no per-record state; every operation works from a
// fresh rule snapshot.
type Engine struct {
	storage Storage
	guard   *rule.Guard
}

// New creates an engine over the given storage.
func New(storage Storage) *Engine {
	return &Engine{
		storage: storage,
		guard:   rule.NewGuard(),
	}
}

// CheckRule runs the advisory guard tier: every violation the rule would
// be rejected for, without persisting anything.
func (e *Engine) CheckRule(r *model.Rule) []rule.GuardViolation {
	return e.guard.Check(r)
}

// CreateRule validates a rule (structure plus safety guard) and persists
// it. All callers go through here; the AI suggester gets no bypass.
func (e *Engine) CreateRule(ctx context.Context, r *model.Rule) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if err := e.guard.Validate(r); err != nil {
		return err
	}
	if err := e.storage.CreateRule(ctx, r); err != nil {
		return fmt.Errorf("failed to create rule: %w", err)
	}

	slog.Info("Created rule",
		"rule_id", r.ID,
		"name", r.Name,
		"scope", r.Scope,
		"auto_apply", r.AutoApply)
	return nil
}

// UpdateRule re-validates and persists an edited rule. Edits pass the
// same guard as creation so a rule cannot be broadened past it.
func (e *Engine) UpdateRule(ctx context.Context, r *model.Rule) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if err := e.guard.Validate(r); err != nil {
		return err
	}
	if err := e.storage.UpdateRule(ctx, r); err != nil {
		return fmt.Errorf("failed to update rule: %w", err)
	}
	return nil
}

// DeleteRule removes a rule. Records it already categorized keep their
// state and allocations.
func (e *Engine) DeleteRule(ctx context.Context, id int64) error {
	return e.storage.DeleteRule(ctx, id)
}

// SetRuleActive toggles whether a rule participates in resolution.
func (e *Engine) SetRuleActive(ctx context.Context, id int64, active bool) error {
	return e.storage.SetRuleActive(ctx, id, active)
}

// SetRuleAutoApply toggles whether a rule triggers on record insertion.
func (e *Engine) SetRuleAutoApply(ctx context.Context, id int64, autoApply bool) error {
	return e.storage.SetRuleAutoApply(ctx, id, autoApply)
}

// InsertRecords saves normalized records from an adapter and fires the
// auto-apply hook for each. Hook failures are logged and swallowed; the
// insertion itself is never rolled back because categorization failed.
func (e *Engine) InsertRecords(ctx context.Context, records []model.Record) error {
	if err := e.storage.SaveRecords(ctx, records); err != nil {
		return fmt.Errorf("failed to save records: %w", err)
	}

	for i := range records {
		e.OnRecordCreated(ctx, records[i])
	}
	return nil
}

// OnRecordCreated is the auto-apply hook. It short-circuits when no
// active auto-apply rule exists for the record's scope, and otherwise
// resolves and applies synchronously. Errors never propagate.
func (e *Engine) OnRecordCreated(ctx context.Context, rec model.Record) {
	count, err := e.storage.CountAutoApplyRules(ctx, rec.Source)
	if err != nil {
		slog.Error("auto-apply hook: failed to count rules",
			"record_id", rec.ID, "error", err)
		return
	}
	if count == 0 {
		return
	}

	rules, err := e.storage.GetActiveRules(ctx, rec.Source)
	if err != nil {
		slog.Error("auto-apply hook: failed to load rules",
			"record_id", rec.ID, "error", err)
		return
	}

	// Only rules flagged for auto-apply run unattended; the rest wait
	// for a backfill or a human.
	autoRules := make([]model.Rule, 0, len(rules))
	for _, r := range rules {
		if r.AutoApply {
			autoRules = append(autoRules, r)
		}
	}

	winner := rule.Resolve(rule.NewMatcher(autoRules), rec)
	if winner == nil {
		return
	}

	applied, err := e.applyRule(ctx, rec, winner)
	if err != nil {
		slog.Error("auto-apply hook: application failed",
			"record_id", rec.ID, "rule_id", winner.ID, "error", err)
		return
	}
	if applied {
		slog.Debug("Auto-applied rule",
			"record_id", rec.ID, "rule_id", winner.ID)
	}
}

// BulkSummary reports one bulk backfill invocation's outcome for a scope.
type BulkSummary struct {
	Source          model.RecordSource `json:"source"`
	AppliedCount    int                `json:"applied_count"`
	TotalConsidered int                `json:"total_considered"`
}

// ProgressFunc receives (processed, total) as a bulk run advances.
type ProgressFunc func(processed, total int)

// BulkApply runs the backfill for one scope: up to batchLimit still-
// uncategorized records, each applied in its own transaction. A record
// that fails or that another invocation already categorized is skipped;
// it never aborts the batch. Safe to call repeatedly.
func (e *Engine) BulkApply(ctx context.Context, source model.RecordSource, batchLimit int, progress ProgressFunc) (BulkSummary, error) {
	summary := BulkSummary{Source: source}

	if batchLimit <= 0 {
		return summary, fmt.Errorf("batch limit must be positive, got %d", batchLimit)
	}

	records, err := e.storage.GetUncategorizedRecords(ctx, source, batchLimit)
	if err != nil {
		return summary, fmt.Errorf("failed to load uncategorized records: %w", err)
	}
	summary.TotalConsidered = len(records)
	if len(records) == 0 {
		return summary, nil
	}

	rules, err := e.storage.GetActiveRules(ctx, source)
	if err != nil {
		return summary, fmt.Errorf("failed to load rules: %w", err)
	}
	matcher := rule.NewMatcher(rules)

	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		winner := rule.Resolve(matcher, rec)
		if winner != nil {
			applied, err := e.applyRule(ctx, rec, winner)
			switch {
			case err != nil:
				slog.Error("bulk apply: application failed",
					"record_id", rec.ID, "rule_id", winner.ID, "error", err)
			case applied:
				summary.AppliedCount++
			}
		}

		if progress != nil {
			progress(i+1, len(records))
		}
	}

	slog.Info("Bulk apply finished",
		"source", source,
		"applied", summary.AppliedCount,
		"considered", summary.TotalConsidered)
	return summary, nil
}

// BulkApplyAll runs the backfill for both scopes, returning one summary
// per scope.
func (e *Engine) BulkApplyAll(ctx context.Context, batchLimit int, progress ProgressFunc) ([]BulkSummary, error) {
	summaries := make([]BulkSummary, 0, 2)
	for _, source := range []model.RecordSource{model.SourceBank, model.SourcePOS} {
		summary, err := e.BulkApply(ctx, source, batchLimit, progress)
		if err != nil {
			return summaries, err
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// ApplyToRecord resolves and applies the active rule set to one record.
// Returns whether an application committed.
func (e *Engine) ApplyToRecord(ctx context.Context, rec model.Record) (bool, error) {
	rules, err := e.storage.GetActiveRules(ctx, rec.Source)
	if err != nil {
		return false, fmt.Errorf("failed to load rules: %w", err)
	}

	winner := rule.Resolve(rule.NewMatcher(rules), rec)
	if winner == nil {
		return false, nil
	}
	return e.applyRule(ctx, rec, winner)
}

// applyRule atomically applies a winning rule to a record: the
// conditional state transition, the allocations for a split, and the
// rule's stats bump commit as one unit. The first bool reports whether
// this call made the transition; losing the conditional update (someone
// else got there first) is a clean no-op.
func (e *Engine) applyRule(ctx context.Context, rec model.Record, r *model.Rule) (bool, error) {
	var amounts []int64
	if r.IsSplit() {
		var err error
		amounts, err = rule.ConvertSplits(r.SplitSpecs, rec.AbsAmount())
		if err != nil {
			return false, fmt.Errorf("rule %d on record %s: %w", r.ID, rec.ID, err)
		}
	}

	tx, err := e.storage.BeginTx(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var won bool
	if r.IsSplit() {
		won, err = tx.MarkRecordSplit(ctx, rec.ID)
	} else {
		won, err = tx.CategorizeRecord(ctx, rec.ID, *r.DirectCategoryID)
	}
	if err != nil {
		return false, err
	}
	if !won {
		return false, nil
	}

	for i, spec := range r.SplitSpecs {
		allocation := &model.SplitAllocation{
			RecordID:   rec.ID,
			CategoryID: spec.CategoryID,
			Amount:     amounts[i],
			Label:      spec.Label,
		}
		if err := tx.CreateAllocation(ctx, allocation); err != nil {
			return false, err
		}
	}

	if err := tx.IncrementRuleApplyCount(ctx, r.ID, time.Now()); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit application: %w", err)
	}
	return true, nil
}
