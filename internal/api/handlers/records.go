package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aegisdns/aegisdns/internal/api/models"
	"github.com/aegisdns/aegisdns/internal/audit"
	"github.com/aegisdns/aegisdns/internal/store"
)

// Update handles POST /update: create or replace a record, persist, audit.
func (h *Handler) Update(c *gin.Context) {
	start := time.Now()
	defer func() { h.Metrics.RecordAPIRequest("update", time.Since(start)) }()

	var req models.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Metrics.RecordAPIError("validation_error")
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	rec := fromUpdateRequest(req)
	ctx := requestContext(c)
	result, err := h.Store.UpsertAndPersist(rec, h.RecordsFile, func(res store.MutationResult) {
		kind := audit.KindCreate
		if res == store.Updated {
			kind = audit.KindUpdate
		}
		h.Audit.Record(ctx, audit.Entry{
			OccurredAt: time.Now(),
			Kind:       kind,
			RecordName: rec.Name,
			Snapshot:   toResponse(rec),
			HTTPStatus: http.StatusOK,
		})
	})
	if err != nil {
		h.handleMutationError(c, err)
		return
	}

	status := "created"
	if result == store.Updated {
		status = "updated"
	}
	h.Metrics.SetActiveRecords(h.Store.Count())

	c.JSON(http.StatusOK, models.StatusResponse{Status: status, Record: toResponse(rec)})
}

// ListRecords handles GET /records: a full snapshot of the store.
func (h *Handler) ListRecords(c *gin.Context) {
	start := time.Now()
	defer func() { h.Metrics.RecordAPIRequest("list_records", time.Since(start)) }()

	records := h.Store.List()
	out := make([]models.RecordResponse, 0, len(records))
	for _, r := range records {
		out = append(out, toResponse(r))
	}
	c.JSON(http.StatusOK, out)
}

// PatchRecord handles PUT /records/{name}: a partial update.
func (h *Handler) PatchRecord(c *gin.Context) {
	start := time.Now()
	defer func() { h.Metrics.RecordAPIRequest("patch_record", time.Since(start)) }()

	name := c.Param("name")

	var req models.PatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Metrics.RecordAPIError("validation_error")
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	patch := fromPatchRequest(req)
	ctx := requestContext(c)
	merged, err := h.Store.MergeAndPersist(name, patch, h.RecordsFile, func(rec store.Record) {
		h.Audit.Record(ctx, audit.Entry{
			OccurredAt: time.Now(),
			Kind:       audit.KindUpdate,
			RecordName: rec.Name,
			Snapshot:   toResponse(rec),
			HTTPStatus: http.StatusOK,
		})
	})
	if err != nil {
		h.handleMutationError(c, err)
		return
	}

	h.Metrics.SetActiveRecords(h.Store.Count())

	c.JSON(http.StatusOK, models.StatusResponse{Status: "updated", Record: toResponse(merged)})
}

// DeleteRecord handles DELETE /records/{name}.
func (h *Handler) DeleteRecord(c *gin.Context) {
	start := time.Now()
	defer func() { h.Metrics.RecordAPIRequest("delete_record", time.Since(start)) }()

	name := c.Param("name")
	ctx := requestContext(c)

	err := h.Store.DeleteAndPersist(name, h.RecordsFile, func() {
		h.Audit.Record(ctx, audit.Entry{
			OccurredAt: time.Now(),
			Kind:       audit.KindDelete,
			RecordName: name,
			HTTPStatus: http.StatusOK,
		})
	})
	if err != nil {
		h.handleMutationError(c, err)
		return
	}

	h.Metrics.SetActiveRecords(h.Store.Count())

	c.JSON(http.StatusOK, models.StatusResponse{Status: "deleted"})
}

// handleMutationError maps a store error to the HTTP status and counter
// taxonomy from SPEC_FULL.md §7.
func (h *Handler) handleMutationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrValidation):
		h.Metrics.RecordAPIError("validation_error")
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
	case errors.Is(err, store.ErrNotFound):
		h.Metrics.RecordAPIError("not_found")
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: err.Error()})
	default:
		h.Metrics.RecordAPIError("io_error")
		if h.Logger != nil {
			h.Logger.Error("control api io error", "error", err)
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "internal error"})
	}
}

// requestContext returns the gin request's context, used for the audit
// write so it is cancelled alongside the HTTP request.
func requestContext(c *gin.Context) context.Context {
	return c.Request.Context()
}
