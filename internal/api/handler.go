// Package api is the central platform surface the engine talks to: the
// sync pull, the bandit postback, and the stats ingest.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"traffic-decision-engine/internal/cache"
	"traffic-decision-engine/internal/stats"
	"traffic-decision-engine/internal/storage"
)

// Store is what the handlers need from the backing store.
type Store interface {
	ServeSync(ctx context.Context, accountID int64, clientVersion string) (*storage.SnapshotData, bool, error)
	ApplyPostback(ctx context.Context, ruleID int64, variantURL string, converted bool, revenue float64) error
	IngestStats(ctx context.Context, b stats.Batch) error
}

type Handler struct {
	Store     Store
	AccountID int64

	// last token served; lets an unchanged poll answer without touching
	// the database. Cleared by the LISTEN/NOTIFY listener on data change.
	token cache.Snapshot[string]
}

func NewHandler(store Store, accountID int64) *Handler {
	return &Handler{Store: store, AccountID: accountID}
}

// Invalidate drops the cached version token so the next pull recomputes.
func (h *Handler) Invalidate() {
	h.token.Store("")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Sync answers GET /sync?version={token}: 304 when the edge is current,
// otherwise the full snapshot.
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	clientVersion := r.URL.Query().Get("version")

	if t, ok := h.token.Load(); ok && t != "" && t == clientVersion {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	snap, changed, err := h.Store.ServeSync(r.Context(), h.AccountID, clientVersion)
	if err != nil {
		log.Error().Err(err).Msg("serve sync")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "sync failed"})
		return
	}
	if !changed {
		h.token.Store(clientVersion)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	h.token.Store(snap.Version)

	writeJSON(w, http.StatusOK, map[string]any{
		"version": snap.Version,
		"rules":   snap.Rules,
		"configs": snap.Configs,
	})
}

type postbackRequest struct {
	RuleID     int64   `json:"rule_id"`
	VariantURL string  `json:"variant_url"`
	Converted  bool    `json:"converted"`
	Revenue    float64 `json:"revenue"`
}

// Postback answers POST /postback with the conversion signal that updates
// a variant's belief state.
func (h *Handler) Postback(w http.ResponseWriter, r *http.Request) {
	var req postbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.RuleID <= 0 || req.VariantURL == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "rule_id and variant_url are required"})
		return
	}

	err := h.Store.ApplyPostback(r.Context(), req.RuleID, req.VariantURL, req.Converted, req.Revenue)
	if errors.Is(err, storage.ErrRuleNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "rule not found"})
		return
	}
	if err != nil {
		log.Error().Err(err).Int64("rule", req.RuleID).Msg("apply postback")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "postback failed"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":          true,
		"rule_id":     req.RuleID,
		"variant_url": req.VariantURL,
		"converted":   req.Converted,
		"revenue":     req.Revenue,
	})
}

// Stats answers the edges' periodic POST of completed hourly buckets.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	var batch stats.Batch
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if err := h.Store.IngestStats(r.Context(), batch); err != nil {
		log.Error().Err(err).Str("batch", batch.BatchID).Msg("ingest stats")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "ingest failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "batch_id": batch.BatchID})
}
