package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/backofhouse/tally/internal/engine"
	"github.com/backofhouse/tally/internal/model"
	"github.com/backofhouse/tally/internal/rule"
	"github.com/backofhouse/tally/internal/storage"
)

// ruleRequest is the JSON body for rule creation and update.
type ruleRequest struct {
	DirectCategoryID *int64            `json:"direct_category_id,omitempty"`
	Name             string            `json:"name"`
	Scope            model.RuleScope   `json:"scope"`
	Conditions       model.Conditions  `json:"conditions"`
	SplitSpecs       []model.SplitSpec `json:"split_specs,omitempty"`
	Priority         int               `json:"priority"`
	Active           *bool             `json:"active,omitempty"`
	AutoApply        bool              `json:"auto_apply"`
}

func (req *ruleRequest) toRule() *model.Rule {
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	return &model.Rule{
		Name:             req.Name,
		Scope:            req.Scope,
		Priority:         req.Priority,
		Active:           active,
		AutoApply:        req.AutoApply,
		Conditions:       req.Conditions,
		DirectCategoryID: req.DirectCategoryID,
		SplitSpecs:       req.SplitSpecs,
	}
}

// guardRejection is the structured 422 body for guard violations.
type guardRejection struct {
	Reason         string `json:"reason"`
	OffendingValue string `json:"offending_value"`
}

func (s *Server) createRule(w http.ResponseWriter, r *http.Request) {
	var req ruleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	newRule := req.toRule()
	if err := s.engine.CreateRule(r.Context(), newRule); err != nil {
		var violation *rule.GuardViolation
		if errors.As(err, &violation) {
			writeJSON(w, http.StatusUnprocessableEntity, guardRejection{
				Reason:         violation.Reason,
				OffendingValue: violation.OffendingValue,
			})
			return
		}
		slog.Error("failed to create rule", "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, newRule)
}

func (s *Server) checkRule(w http.ResponseWriter, r *http.Request) {
	var req ruleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	violations := s.engine.CheckRule(req.toRule())
	rejections := make([]guardRejection, 0, len(violations))
	for _, v := range violations {
		rejections = append(rejections, guardRejection{
			Reason:         v.Reason,
			OffendingValue: v.OffendingValue,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"violations": rejections})
}

func (s *Server) listRules(w http.ResponseWriter, r *http.Request) {
	rules, err := s.storage.GetAllRules(r.Context())
	if err != nil {
		slog.Error("failed to list rules", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list rules")
		return
	}
	if rules == nil {
		rules = []model.Rule{}
	}
	writeJSON(w, http.StatusOK, rules)
}

func (s *Server) getRule(w http.ResponseWriter, r *http.Request) {
	id, ok := ruleID(w, r)
	if !ok {
		return
	}

	found, err := s.storage.GetRule(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "rule not found")
			return
		}
		slog.Error("failed to get rule", "rule_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get rule")
		return
	}
	writeJSON(w, http.StatusOK, found)
}

func (s *Server) updateRule(w http.ResponseWriter, r *http.Request) {
	id, ok := ruleID(w, r)
	if !ok {
		return
	}

	var req ruleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated := req.toRule()
	updated.ID = id
	if err := s.engine.UpdateRule(r.Context(), updated); err != nil {
		var violation *rule.GuardViolation
		switch {
		case errors.As(err, &violation):
			writeJSON(w, http.StatusUnprocessableEntity, guardRejection{
				Reason:         violation.Reason,
				OffendingValue: violation.OffendingValue,
			})
		case errors.Is(err, storage.ErrNotFound):
			writeError(w, http.StatusNotFound, "rule not found")
		default:
			slog.Error("failed to update rule", "rule_id", id, "error", err)
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) deleteRule(w http.ResponseWriter, r *http.Request) {
	id, ok := ruleID(w, r)
	if !ok {
		return
	}

	if err := s.engine.DeleteRule(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "rule not found")
			return
		}
		slog.Error("failed to delete rule", "rule_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete rule")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) setRuleActive(w http.ResponseWriter, r *http.Request) {
	s.toggleRule(w, r, func(id int64, value bool) error {
		return s.engine.SetRuleActive(r.Context(), id, value)
	})
}

func (s *Server) setRuleAutoApply(w http.ResponseWriter, r *http.Request) {
	s.toggleRule(w, r, func(id int64, value bool) error {
		return s.engine.SetRuleAutoApply(r.Context(), id, value)
	})
}

func (s *Server) toggleRule(w http.ResponseWriter, r *http.Request, set func(int64, bool) error) {
	id, ok := ruleID(w, r)
	if !ok {
		return
	}

	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := set(id, req.Enabled); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "rule not found")
			return
		}
		slog.Error("failed to toggle rule", "rule_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to toggle rule")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// bulkApplyRequest selects the backfill scope. Scope "both" (or empty)
// runs bank and pos in turn.
type bulkApplyRequest struct {
	Scope      model.RuleScope `json:"scope"`
	BatchLimit int             `json:"batch_limit"`
}

func (s *Server) bulkApply(w http.ResponseWriter, r *http.Request) {
	var req bulkApplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.BatchLimit <= 0 {
		req.BatchLimit = 500
	}

	var summaries []engine.BulkSummary
	var err error
	switch req.Scope {
	case model.ScopeBank:
		var summary engine.BulkSummary
		summary, err = s.engine.BulkApply(r.Context(), model.SourceBank, req.BatchLimit, nil)
		summaries = append(summaries, summary)
	case model.ScopePOS:
		var summary engine.BulkSummary
		summary, err = s.engine.BulkApply(r.Context(), model.SourcePOS, req.BatchLimit, nil)
		summaries = append(summaries, summary)
	case model.ScopeBoth, "":
		summaries, err = s.engine.BulkApplyAll(r.Context(), req.BatchLimit, nil)
	default:
		writeError(w, http.StatusBadRequest, "invalid scope")
		return
	}
	if err != nil {
		slog.Error("bulk apply failed", "scope", req.Scope, "error", err)
		writeError(w, http.StatusInternalServerError, "bulk apply failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"summaries": summaries})
}

func (s *Server) getRecord(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "record_id")

	rec, err := s.storage.GetRecordByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "record not found")
			return
		}
		slog.Error("failed to get record", "record_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get record")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) getRecordAllocations(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "record_id")

	allocations, err := s.storage.GetAllocationsForRecord(r.Context(), id)
	if err != nil {
		slog.Error("failed to get allocations", "record_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get allocations")
		return
	}
	if allocations == nil {
		allocations = []model.SplitAllocation{}
	}
	writeJSON(w, http.StatusOK, allocations)
}

func ruleID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "rule_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid rule id")
		return 0, false
	}
	return id, true
}
