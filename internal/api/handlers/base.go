// Package handlers implements the control-API endpoint handlers: mutating
// and reading the Record Store, persisting on every successful mutation,
// and recording a best-effort Audit Entry (SPEC_FULL.md §4.4).
package handlers

import (
	"log/slog"
	"time"

	"github.com/aegisdns/aegisdns/internal/audit"
	"github.com/aegisdns/aegisdns/internal/metrics"
	"github.com/aegisdns/aegisdns/internal/store"
)

// Handler holds every dependency the control-API endpoints need.
type Handler struct {
	Store       *store.Store
	Metrics     *metrics.Registry
	Audit       *audit.Writer
	Logger      *slog.Logger
	RecordsFile string
	InstanceID  string
	StartedAt   time.Time
}

// New builds a Handler. audit may be nil (auditing disabled).
func New(s *store.Store, m *metrics.Registry, a *audit.Writer, logger *slog.Logger, recordsFile, instanceID string) *Handler {
	return &Handler{
		Store:       s,
		Metrics:     m,
		Audit:       a,
		Logger:      logger,
		RecordsFile: recordsFile,
		InstanceID:  instanceID,
		StartedAt:   time.Now(),
	}
}
