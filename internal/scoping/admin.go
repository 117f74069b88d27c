package scoping

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/iammrherb/authensi-smart-sub008/internal/catalog"
	"github.com/iammrherb/authensi-smart-sub008/internal/shared/server/middleware"
	"github.com/iammrherb/authensi-smart-sub008/internal/shared/server/respond"
)

// AdminHandler serves catalog administration: reloads and published revisions.
type AdminHandler struct {
	Reloader  *catalog.Reloader
	Revisions catalog.RevisionRepo
}

// RegisterRoutes attaches admin routes. Callers guard the group.
func (h *AdminHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/catalog/reload", h.reload)
	rg.POST("/catalog/revisions", h.publish)
	rg.GET("/catalog/revisions", h.listRevisions)
}

func (h *AdminHandler) reload(c *gin.Context) {
	if h.Reloader == nil {
		respond.Error(c, http.StatusServiceUnavailable, CodeCatalogUnavailable, "catalog reloading is not configured", nil)
		return
	}
	changed, err := h.Reloader.ReloadNow(c.Request.Context())
	if err != nil {
		respond.Error(c, http.StatusUnprocessableEntity, CodeValidation, "catalog reload failed", gin.H{"reason": err.Error()})
		return
	}
	snap := h.Reloader.Holder.Current()
	c.Set(middleware.CatalogVersionKey, snap.Catalog.Version())
	c.Set(middleware.OutcomeKey, reloadOutcome(changed))
	respond.OK(c, gin.H{
		"changed": changed,
		"catalog": snap.Catalog.Stats(),
		"source":  snap.Source,
	})
}

func (h *AdminHandler) publish(c *gin.Context) {
	if h.Revisions == nil {
		respond.Error(c, http.StatusServiceUnavailable, CodeCatalogUnavailable, "catalog revisions are not configured", nil)
		return
	}
	raw, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, catalog.MaxDocumentBytes))
	if err != nil {
		respond.Error(c, http.StatusRequestEntityTooLarge, CodeValidation, catalog.ErrDocumentTooLarge.Error(), nil)
		return
	}

	rev, _, err := catalog.PublishDocument(c.Request.Context(), h.Revisions, raw, c.GetHeader("X-Catalog-Author"), c.Query("note"))
	if err != nil {
		var cerr *catalog.CompileError
		var perr *catalog.ParseError
		switch {
		case errors.As(err, &cerr):
			respond.Error(c, http.StatusBadRequest, CodeValidation, "invalid catalog", cerr.Problems)
		case errors.As(err, &perr):
			respond.Error(c, http.StatusBadRequest, CodeValidation, perr.Error(), nil)
		case errors.Is(err, catalog.ErrEmptyDocument):
			respond.Error(c, http.StatusBadRequest, CodeValidation, "catalog document is empty", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, CodeInternal, "failed to publish catalog", nil)
		}
		return
	}

	reloaded := false
	if h.Reloader != nil {
		if changed, err := h.Reloader.ReloadNow(c.Request.Context()); err == nil {
			reloaded = changed
		}
	}
	c.Set(middleware.CatalogVersionKey, rev.Version)
	respond.Created(c, gin.H{
		"revision": rev,
		"reloaded": reloaded,
	})
}

func (h *AdminHandler) listRevisions(c *gin.Context) {
	if h.Revisions == nil {
		respond.Error(c, http.StatusServiceUnavailable, CodeCatalogUnavailable, "catalog revisions are not configured", nil)
		return
	}
	limit := 20
	offset := 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	revs, err := h.Revisions.List(c.Request.Context(), limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, CodeInternal, "failed to list revisions", nil)
		return
	}
	respond.OK(c, gin.H{"revisions": revs})
}

func reloadOutcome(changed bool) string {
	if changed {
		return "swapped"
	}
	return "unchanged"
}
