// Package handler はHTTP APIのルーティングとハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/rfdstore/internal/metrics"
	"github.com/hitoshi/rfdstore/internal/middleware"
	"github.com/hitoshi/rfdstore/internal/model"
	"github.com/hitoshi/rfdstore/internal/repository"
	"github.com/hitoshi/rfdstore/internal/rfd"
)

// defaultRFDsPerPage は一覧の1回の取得件数（デフォルト）。
const defaultRFDsPerPage = 50

// maxRFDsPerPage は一覧の1回の取得件数の上限。
const maxRFDsPerPage = 200

// SyncServiceInterface はRFDハンドラーが必要とする同期サービスのインターフェース。
type SyncServiceInterface interface {
	// Sync はスナップショットをストアに同期する。
	Sync(ctx context.Context, input rfd.SyncInput) (*model.RFD, bool, error)
}

// RFDHandler はRFDレコード管理のHTTPハンドラー。
type RFDHandler struct {
	rfdRepo     repository.RFDRepository
	syncService SyncServiceInterface
	collector   metrics.MetricsCollector
}

// NewRFDHandler はRFDHandlerを生成する。
func NewRFDHandler(rfdRepo repository.RFDRepository, syncService SyncServiceInterface, collector metrics.MetricsCollector) *RFDHandler {
	return &RFDHandler{
		rfdRepo:     rfdRepo,
		syncService: syncService,
		collector:   collector,
	}
}

// --- レスポンス型 ---

// rfdSummaryResponse は一覧用のサマリーレスポンス。本文とHTMLは含まない。
type rfdSummaryResponse struct {
	Number             int       `json:"number"`
	NumberString       string    `json:"number_string"`
	Title              string    `json:"title"`
	Name               string    `json:"name"`
	State              string    `json:"state"`
	Link               string    `json:"link"`
	ShortLink          string    `json:"short_link"`
	RenderedLink       string    `json:"rendered_link"`
	Discussion         string    `json:"discussion"`
	Authors            string    `json:"authors"`
	Sha                string    `json:"sha"`
	CommitDate         time.Time `json:"commit_date"`
	Milestones         []string  `json:"milestones"`
	RelevantComplaints []string  `json:"relevant_complaints"`
}

// rfdDetailResponse は詳細レスポンス。レンダリング済みHTMLと原文を含む。
type rfdDetailResponse struct {
	rfdSummaryResponse
	HTML    string `json:"html"`
	Content string `json:"content"`
}

// rfdListResponse は一覧レスポンス。
type rfdListResponse struct {
	RFDs      []rfdSummaryResponse `json:"rfds"`
	NextAfter int                  `json:"next_after,omitempty"`
	HasMore   bool                 `json:"has_more"`
}

// syncRequest はPUTリクエストのボディ。
// 導出フィールド（number_string, name, short_link, rendered_link）は受け付けるが省略可能。
type syncRequest struct {
	Title              string    `json:"title"`
	State              string    `json:"state"`
	Link               string    `json:"link"`
	ShortLink          string    `json:"short_link"`
	RenderedLink       string    `json:"rendered_link"`
	Discussion         string    `json:"discussion"`
	Authors            string    `json:"authors"`
	HTML               string    `json:"html"`
	Content            string    `json:"content"`
	Sha                string    `json:"sha"`
	CommitDate         time.Time `json:"commit_date"`
	Milestones         []string  `json:"milestones"`
	RelevantComplaints []string  `json:"relevant_complaints"`
}

// syncResponse はPUTのレスポンス。appliedは書き込みが行われたかを示す。
type syncResponse struct {
	RFD     rfdDetailResponse `json:"rfd"`
	Applied bool              `json:"applied"`
}

func toSummaryResponse(r *model.RFD) rfdSummaryResponse {
	return rfdSummaryResponse{
		Number:             r.Number,
		NumberString:       r.NumberString,
		Title:              r.Title,
		Name:               r.Name,
		State:              string(r.State),
		Link:               r.Link,
		ShortLink:          r.ShortLink,
		RenderedLink:       r.RenderedLink,
		Discussion:         r.Discussion,
		Authors:            r.Authors,
		Sha:                r.Sha,
		CommitDate:         r.CommitDate,
		Milestones:         r.Milestones,
		RelevantComplaints: r.RelevantComplaints,
	}
}

func toDetailResponse(r *model.RFD) rfdDetailResponse {
	return rfdDetailResponse{
		rfdSummaryResponse: toSummaryResponse(r),
		HTML:               r.HTML,
		Content:            r.Content,
	}
}

// ListRFDs はRFDレコードの一覧を取得する。
// GET /api/rfds?state=xxx&milestone=xxx&complaint=xxx&after=N&limit=N
func (h *RFDHandler) ListRFDs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := model.RFDFilter{
		State:     model.State(q.Get("state")),
		Milestone: q.Get("milestone"),
		Complaint: q.Get("complaint"),
	}

	after := 0
	if v := q.Get("after"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			middleware.WriteError(w, r, model.NewValidationError("after", "afterは0以上の整数である必要があります"))
			return
		}
		after = n
	}

	limit := defaultRFDsPerPage
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			middleware.WriteError(w, r, model.NewValidationError("limit", "limitは1以上の整数である必要があります"))
			return
		}
		limit = n
	}
	if limit > maxRFDsPerPage {
		limit = maxRFDsPerPage
	}

	// has_more判定のため1件余分に取得する
	rfds, err := h.rfdRepo.List(r.Context(), filter, after, limit+1)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	hasMore := len(rfds) > limit
	if hasMore {
		rfds = rfds[:limit]
	}

	resp := rfdListResponse{
		RFDs:    make([]rfdSummaryResponse, 0, len(rfds)),
		HasMore: hasMore,
	}
	for _, rec := range rfds {
		resp.RFDs = append(resp.RFDs, toSummaryResponse(rec))
	}
	if hasMore && len(rfds) > 0 {
		resp.NextAfter = rfds[len(rfds)-1].Number
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetRFD はRFDレコードの詳細を取得する。
// GET /api/rfds/{number}
func (h *RFDHandler) GetRFD(w http.ResponseWriter, r *http.Request) {
	number, ok := numberParam(w, r)
	if !ok {
		return
	}

	record, err := h.rfdRepo.GetByNumber(r.Context(), number)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toDetailResponse(record))
}

// PutRFD はRFD文書スナップショットを同期する。
// PUT /api/rfds/{number}
func (h *RFDHandler) PutRFD(w http.ResponseWriter, r *http.Request) {
	number, ok := numberParam(w, r)
	if !ok {
		return
	}

	var req syncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, r, model.NewValidationError("body", "リクエストボディのJSONが不正です"))
		return
	}

	input := rfd.SyncInput{
		Number:             number,
		Title:              req.Title,
		State:              model.State(req.State),
		Link:               req.Link,
		ShortLink:          req.ShortLink,
		RenderedLink:       req.RenderedLink,
		Discussion:         req.Discussion,
		Authors:            req.Authors,
		HTML:               req.HTML,
		Content:            req.Content,
		Sha:                req.Sha,
		CommitDate:         req.CommitDate,
		Milestones:         req.Milestones,
		RelevantComplaints: req.RelevantComplaints,
	}

	record, applied, err := h.syncService.Sync(r.Context(), input)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, syncResponse{
		RFD:     toDetailResponse(record),
		Applied: applied,
	})
}

// DeleteRFD はRFDレコードを削除する。
// DELETE /api/rfds/{number}
func (h *RFDHandler) DeleteRFD(w http.ResponseWriter, r *http.Request) {
	number, ok := numberParam(w, r)
	if !ok {
		return
	}

	if err := h.rfdRepo.Delete(r.Context(), number); err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	h.collector.RecordRecordDeleted()
	w.WriteHeader(http.StatusNoContent)
}

// numberParam はURLパラメータからRFD番号を取得する。
// 不正な場合は400を書き込みfalseを返す。
func numberParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := chi.URLParam(r, "number")
	number, err := strconv.Atoi(raw)
	if err != nil || number <= 0 {
		middleware.WriteError(w, r, model.NewValidationError("number", "numberは正の整数である必要があります"))
		return 0, false
	}
	return number, true
}

func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}
