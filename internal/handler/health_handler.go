package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/rfdstore/internal/repository"
)

// HealthHandler はヘルスチェックのHTTPハンドラー。
// データベースへの疎通確認を含む。
type HealthHandler struct {
	pinger repository.Pinger
}

// NewHealthHandler はHealthHandlerを生成する。
func NewHealthHandler(pinger repository.Pinger) *HealthHandler {
	return &HealthHandler{pinger: pinger}
}

// Health はヘルスチェックに応答する。
// GET /health
// データベースに疎通できない場合は503を返す。
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.pinger.PingContext(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
