package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/gregmartell-atlan/mdlh-engine/pkg/models"
	"github.com/gregmartell-atlan/mdlh-engine/pkg/propagation"
)

// PropagationRequest is the body for execute and simulate calls. Source and
// target name one hop in the asset hierarchy; the values are the field values
// currently held on each side.
type PropagationRequest struct {
	FieldID     string                     `json:"field_id"`
	SourceAsset models.AssetType           `json:"source_asset"`
	TargetAsset models.AssetType           `json:"target_asset"`
	SourceValue any                        `json:"source_value"`
	TargetValue any                        `json:"target_value"`
	Context     *models.PropagationContext `json:"context,omitempty"`
}

// PropagationResponse wraps an execution result with its rendered summary.
type PropagationResponse struct {
	Result  *models.ExecutionResult `json:"result"`
	Summary string                  `json:"summary"`
}

// RulesResponse lists rule definitions.
type RulesResponse struct {
	Rules []models.RuleDefinition `json:"rules"`
	Count int                     `json:"count"`
}

// PropagationHandler serves the propagation engine endpoints.
type PropagationHandler struct {
	executor propagation.Executor
	registry propagation.Registry
	logger   *zap.Logger
}

// NewPropagationHandler creates a new PropagationHandler.
func NewPropagationHandler(executor propagation.Executor, registry propagation.Registry, logger *zap.Logger) *PropagationHandler {
	return &PropagationHandler{executor: executor, registry: registry, logger: logger}
}

// RegisterRoutes registers the propagation routes on the given mux.
func (h *PropagationHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/propagation/execute", h.Execute)
	mux.HandleFunc("POST /api/propagation/simulate", h.Simulate)
	mux.HandleFunc("GET /api/propagation/rules", h.Rules)
	mux.HandleFunc("POST /api/propagation/rules", h.AddRule)
	mux.HandleFunc("GET /api/propagation/rules/{rid}", h.Rule)
	mux.HandleFunc("POST /api/propagation/rules/{rid}/enable", h.EnableRule)
	mux.HandleFunc("POST /api/propagation/rules/{rid}/disable", h.DisableRule)
	mux.HandleFunc("GET /api/propagation/fields/{fid}/rules", h.RulesForField)
}

func (h *PropagationHandler) decodeRequest(w http.ResponseWriter, r *http.Request) (*PropagationRequest, bool) {
	var req PropagationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return nil, false
	}
	if req.FieldID == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "missing_parameter", "field_id is required")
		return nil, false
	}
	if !req.SourceAsset.Valid() {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_parameter", "unknown source asset type")
		return nil, false
	}
	if !req.TargetAsset.Valid() {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_parameter", "unknown target asset type")
		return nil, false
	}
	return &req, true
}

func (h *PropagationHandler) context(req *PropagationRequest) models.PropagationContext {
	if req.Context != nil {
		ctx := *req.Context
		if ctx.Timestamp.IsZero() {
			ctx.Timestamp = time.Now().UTC()
		}
		return ctx
	}
	return models.PropagationContext{Timestamp: time.Now().UTC()}
}

// Execute runs the live propagation for one hop.
func (h *PropagationHandler) Execute(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	result := h.executor.ExecutePropagation(req.FieldID, req.SourceAsset, req.TargetAsset,
		req.SourceValue, req.TargetValue, h.context(req))
	h.logger.Info("propagation executed",
		zap.String("field_id", req.FieldID),
		zap.String("execution_id", result.ExecutionID),
		zap.Int("failures", result.FailureCount),
		zap.Int("conflicts", result.ConflictCount))

	_ = WriteJSON(w, http.StatusOK, PropagationResponse{
		Result:  result,
		Summary: h.executor.GetExecutionSummary(result),
	})
}

// Simulate runs the same hop in dry-run mode.
func (h *PropagationHandler) Simulate(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	result := h.executor.SimulatePropagation(req.FieldID, req.SourceAsset, req.TargetAsset,
		req.SourceValue, req.TargetValue, h.context(req))
	_ = WriteJSON(w, http.StatusOK, PropagationResponse{
		Result:  result,
		Summary: h.executor.GetExecutionSummary(result),
	})
}

// Rules lists all rules ordered by priority.
func (h *PropagationHandler) Rules(w http.ResponseWriter, r *http.Request) {
	rules := h.registry.GetAllRulesOrderedByPriority()
	_ = WriteJSON(w, http.StatusOK, RulesResponse{Rules: rules, Count: len(rules)})
}

// Rule returns one rule by id.
func (h *PropagationHandler) Rule(w http.ResponseWriter, r *http.Request) {
	rule := h.registry.GetRule(r.PathValue("rid"))
	if rule == nil {
		_ = ErrorResponse(w, http.StatusNotFound, "not_found", "no such rule")
		return
	}
	_ = WriteJSON(w, http.StatusOK, rule)
}

// AddRule validates and upserts a rule definition.
func (h *PropagationHandler) AddRule(w http.ResponseWriter, r *http.Request) {
	var rule models.RuleDefinition
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if err := propagation.ValidateRule(&rule); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_rule", err.Error())
		return
	}

	h.registry.AddRule(rule)
	h.logger.Info("rule registered", zap.String("rule_id", rule.RuleID))
	_ = WriteJSON(w, http.StatusCreated, rule)
}

// EnableRule turns a rule on.
func (h *PropagationHandler) EnableRule(w http.ResponseWriter, r *http.Request) {
	h.setEnabled(w, r, true)
}

// DisableRule turns a rule off.
func (h *PropagationHandler) DisableRule(w http.ResponseWriter, r *http.Request) {
	h.setEnabled(w, r, false)
}

func (h *PropagationHandler) setEnabled(w http.ResponseWriter, r *http.Request, enabled bool) {
	ruleID := r.PathValue("rid")
	if err := h.registry.SetRuleEnabled(ruleID, enabled); err != nil {
		_ = WriteError(w, err)
		return
	}
	h.logger.Info("rule toggled", zap.String("rule_id", ruleID), zap.Bool("enabled", enabled))
	_ = WriteJSON(w, http.StatusOK, map[string]any{"rule_id": ruleID, "enabled": enabled})
}

// RulesForField lists enabled rules touching one field, any direction.
func (h *PropagationHandler) RulesForField(w http.ResponseWriter, r *http.Request) {
	rules := h.registry.GetRulesForField(r.PathValue("fid"))
	_ = WriteJSON(w, http.StatusOK, RulesResponse{Rules: rules, Count: len(rules)})
}
