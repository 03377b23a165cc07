package rfd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/rfdstore/internal/metrics"
	"github.com/hitoshi/rfdstore/internal/model"
	"github.com/hitoshi/rfdstore/internal/repository"
	"github.com/hitoshi/rfdstore/internal/security"
)

// SyncInput はリポジトリの1コミットから抽出したRFD文書のスナップショット。
// 導出フィールド（number_string, name, short_link, rendered_link）は
// 空の場合にSyncServiceが補完する。
type SyncInput struct {
	Number             int
	Title              string
	State              model.State
	Link               string
	ShortLink          string
	RenderedLink       string
	Discussion         string
	Authors            string
	HTML               string
	Content            string
	Sha                string
	CommitDate         time.Time
	Milestones         []string
	RelevantComplaints []string
}

// SyncService はRFD文書スナップショットのストアへの同期を提供する。
// sha比較による変更検出で不要な書き込みを避け、
// 保存前にレンダリング済みHTMLをサニタイズする。
type SyncService struct {
	rfdRepo     repository.RFDRepository
	sanitizer   security.HTMLSanitizerService
	collector   metrics.MetricsCollector
	shortDomain string
	siteBase    string
}

// NewSyncService はSyncServiceの新しいインスタンスを生成する。
// shortDomainとsiteBaseは導出リンクの補完に使用される（空でも可）。
func NewSyncService(
	rfdRepo repository.RFDRepository,
	sanitizer security.HTMLSanitizerService,
	collector metrics.MetricsCollector,
	shortDomain string,
	siteBase string,
) *SyncService {
	return &SyncService{
		rfdRepo:     rfdRepo,
		sanitizer:   sanitizer,
		collector:   collector,
		shortDomain: shortDomain,
		siteBase:    siteBase,
	}
}

// Sync はスナップショットをストアに同期する。
// 既存レコードのshaと一致する場合は書き込みをスキップする。
// 戻り値のappliedは書き込みが行われたかどうかを示す。
func (s *SyncService) Sync(ctx context.Context, input SyncInput) (result *model.RFD, applied bool, err error) {
	start := time.Now()
	defer func() {
		s.collector.RecordSyncLatency(time.Since(start))
	}()

	existing, err := s.rfdRepo.GetByNumber(ctx, input.Number)
	if err != nil {
		var nerr *model.NotFoundError
		if !errors.As(err, &nerr) {
			s.collector.RecordSyncFailure("lookup")
			slog.Error("既存レコードの検索でエラー",
				"number", input.Number,
				"error", err,
			)
			return nil, false, fmt.Errorf("既存レコードの検索に失敗: %w", err)
		}
		existing = nil
	}

	// 変更検出: shaが一致すれば文書は更新されていない
	if existing != nil && input.Sha != "" && existing.Sha == input.Sha {
		s.collector.RecordSyncSkipped()
		slog.Info("sha未変更のため同期をスキップ",
			"number", input.Number,
			"sha", input.Sha,
		)
		return existing, false, nil
	}

	record := s.buildRecord(input, existing)

	result, err = s.rfdRepo.UpsertByNumber(ctx, input.Number, record)
	if err != nil {
		var verr *model.ValidationError
		if errors.As(err, &verr) {
			s.collector.RecordSyncFailure("validation")
		} else {
			s.collector.RecordSyncFailure("storage")
		}
		slog.Error("RFDレコードのUPSERTでエラー",
			"number", input.Number,
			"error", err,
		)
		return nil, false, fmt.Errorf("RFDレコードの同期に失敗: %w", err)
	}

	s.collector.RecordSyncApplied(string(result.State))
	slog.Info("RFD同期完了",
		"number", result.Number,
		"name", result.Name,
		"state", result.State,
		"sha", result.Sha,
	)

	return result, true, nil
}

// buildRecord は入力と既存レコードから保存用のレコードを組み立てる。
// 導出フィールドは空の場合のみ補完し、nameは一度割り当てたら変更しない。
func (s *SyncService) buildRecord(input SyncInput, existing *model.RFD) *model.RFD {
	numberString := NumberString(input.Number)

	name := Name(input.Number, input.Title)
	if existing != nil {
		// 既存のnameは外部参照の識別子であり変更しない
		name = existing.Name
	}

	shortLink := input.ShortLink
	if shortLink == "" {
		shortLink = ShortLink(input.Number, s.shortDomain)
	}
	renderedLink := input.RenderedLink
	if renderedLink == "" {
		renderedLink = RenderedLink(numberString, s.siteBase)
	}

	record := &model.RFD{
		Number:             input.Number,
		NumberString:       numberString,
		Title:              input.Title,
		Name:               name,
		State:              input.State,
		Link:               input.Link,
		ShortLink:          shortLink,
		RenderedLink:       renderedLink,
		Discussion:         input.Discussion,
		Authors:            input.Authors,
		HTML:               s.sanitizer.Sanitize(input.HTML),
		Content:            input.Content,
		Sha:                input.Sha,
		CommitDate:         input.CommitDate,
		Milestones:         input.Milestones,
		RelevantComplaints: input.RelevantComplaints,
	}
	record.NormalizeTags()
	return record
}
