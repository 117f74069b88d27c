package scoping

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/iammrherb/authensi-smart-sub008/internal/catalog"
	"github.com/iammrherb/authensi-smart-sub008/internal/engine"
	"github.com/iammrherb/authensi-smart-sub008/internal/shared/metrics"
	"github.com/iammrherb/authensi-smart-sub008/internal/shared/server/middleware"
	"github.com/iammrherb/authensi-smart-sub008/internal/shared/server/respond"
)

const UnplannedHeader = "X-Unplanned-Recommendations"

// Handler wires HTTP handlers to the scoping service.
type Handler struct {
	Svc    *Service
	Holder *catalog.Holder
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, holder *catalog.Holder) *Handler {
	return &Handler{Svc: svc, Holder: holder}
}

// RegisterRoutes attaches the public scoping routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/scoping/analyze", h.analyze)
	rg.POST("/scoping/checklist", h.checklist)
	rg.GET("/catalog", h.catalogInfo)
}

type analyzeResponse struct {
	Recommendations []engine.Recommendation `json:"recommendations"`
	Blockers        []string                `json:"blockers"`
	BlockerDetails  []engine.Blocker        `json:"blockerDetails"`
	CatalogVersion  string                  `json:"catalogVersion"`
	Diagnostics     diagnostics             `json:"diagnostics"`
}

type diagnostics struct {
	FailedRules []engine.RuleFailure `json:"failedRules"`
	Cached      bool                 `json:"cached"`
}

func (h *Handler) analyze(c *gin.Context) {
	var input map[string]any
	if err := c.ShouldBindJSON(&input); err != nil {
		respond.Error(c, http.StatusBadRequest, CodeValidation, "request body must be a JSON object", nil)
		return
	}

	analysis, err := h.Svc.AnalyzeContext(c.Request.Context(), input)
	if err != nil {
		writeError(c, err)
		return
	}

	c.Set(middleware.CatalogVersionKey, analysis.CatalogVersion)
	respond.Versioned(c, analysis.CatalogVersion, analyzeResponse{
		Recommendations: analysis.Recommendations,
		Blockers:        analysis.BlockerStrings(),
		BlockerDetails:  analysis.Blockers,
		CatalogVersion:  analysis.CatalogVersion,
		Diagnostics: diagnostics{
			FailedRules: analysis.Failures,
			Cached:      analysis.Cached,
		},
	})
}

type checklistRequest struct {
	Context  map[string]any          `json:"context"`
	Selected []engine.Recommendation `json:"selected"`
}

func (h *Handler) checklist(c *gin.Context) {
	var req checklistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, CodeValidation, "request body must be {context, selected}", nil)
		return
	}

	result, err := h.Svc.GenerateChecklist(c.Request.Context(), req.Context, req.Selected)
	if err != nil {
		writeError(c, err)
		return
	}

	c.Set(middleware.CatalogVersionKey, result.CatalogVersion)
	if len(result.Unplanned) > 0 {
		c.Header(UnplannedHeader, strings.Join(result.Unplanned, ","))
	}
	respond.Versioned(c, result.CatalogVersion, result.Phases)
}

func (h *Handler) catalogInfo(c *gin.Context) {
	snap := h.Holder.Current()
	if snap == nil || snap.Catalog == nil {
		respond.Error(c, http.StatusServiceUnavailable, CodeCatalogUnavailable, "no catalog loaded", nil)
		return
	}
	respond.OK(c, gin.H{
		"catalog":  snap.Catalog.Stats(),
		"source":   snap.Source,
		"loadedAt": snap.LoadedAt,
	})
}

type fieldIssue struct {
	Field string `json:"field"`
	Issue string `json:"issue"`
}

func writeError(c *gin.Context, err error) {
	var verr *engine.ValidationError
	var perr *engine.PlannerError
	switch {
	case errors.As(err, &verr):
		details := make([]fieldIssue, 0, len(verr.Fields))
		for _, f := range verr.Fields {
			details = append(details, fieldIssue{Field: f.Field, Issue: f.Reason})
		}
		respond.Error(c, http.StatusBadRequest, CodeValidation, "invalid request", details)
	case errors.As(err, &perr):
		respond.Error(c, http.StatusUnprocessableEntity, CodePlanning, perr.Error(), gin.H{
			"kind": plannerKind(perr.Kind),
			"ids":  perr.IDs,
		})
	case errors.Is(err, ErrBudgetExceeded):
		respond.Error(c, http.StatusServiceUnavailable, CodeBudgetExceeded, "evaluation exceeded its time budget", nil)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.Set(middleware.OutcomeKey, metrics.OutcomeCanceled)
		respond.Error(c, StatusClientClosedRequest, CodeCanceled, "request canceled", nil)
	case errors.Is(err, ErrCatalogUnavailable), errors.Is(err, catalog.ErrNoCatalog):
		respond.Error(c, http.StatusServiceUnavailable, CodeCatalogUnavailable, "no catalog loaded", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, CodeInternal, "unexpected error", nil)
	}
}

func plannerKind(kind error) string {
	switch {
	case errors.Is(kind, engine.ErrDependencyCycle):
		return "dependency_cycle"
	case errors.Is(kind, engine.ErrDanglingPrerequisite):
		return "dangling_prerequisite"
	case errors.Is(kind, engine.ErrDuplicateTask):
		return "duplicate_task"
	case errors.Is(kind, engine.ErrTemplate):
		return "template"
	default:
		return "unknown"
	}
}
