package rfd

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/rfdstore/internal/model"
)

// --- テスト用モック ---

// mockRFDRepo はテスト用のRFDRepositoryモック。
type mockRFDRepo struct {
	records     map[int]*model.RFD // number -> record
	nextID      int64
	upsertCalls int
	upsertErr   error
	lastUpsert  *model.RFD
}

func newMockRFDRepo() *mockRFDRepo {
	return &mockRFDRepo{
		records: make(map[int]*model.RFD),
	}
}

func (m *mockRFDRepo) Insert(_ context.Context, rfd *model.RFD) (*model.RFD, error) {
	if _, ok := m.records[rfd.Number]; ok {
		return nil, model.NewConflictError("number", rfd.NumberString)
	}
	m.nextID++
	stored := *rfd
	stored.ID = m.nextID
	m.records[rfd.Number] = &stored
	return &stored, nil
}

func (m *mockRFDRepo) UpsertByNumber(_ context.Context, number int, rfd *model.RFD) (*model.RFD, error) {
	m.upsertCalls++
	m.lastUpsert = rfd
	if m.upsertErr != nil {
		return nil, m.upsertErr
	}
	if err := rfd.Validate(); err != nil {
		return nil, err
	}
	existing, ok := m.records[number]
	stored := *rfd
	if ok {
		stored.ID = existing.ID
	} else {
		m.nextID++
		stored.ID = m.nextID
	}
	m.records[number] = &stored
	return &stored, nil
}

func (m *mockRFDRepo) GetByNumber(_ context.Context, number int) (*model.RFD, error) {
	rec, ok := m.records[number]
	if !ok {
		return nil, model.NewNotFoundError(number)
	}
	copied := *rec
	return &copied, nil
}

func (m *mockRFDRepo) List(_ context.Context, _ model.RFDFilter, _ int, _ int) ([]*model.RFD, error) {
	return nil, nil
}

func (m *mockRFDRepo) Delete(_ context.Context, number int) error {
	if _, ok := m.records[number]; !ok {
		return model.NewNotFoundError(number)
	}
	delete(m.records, number)
	return nil
}

// mockSanitizer はサニタイズ呼び出しを記録するモック。
type mockSanitizer struct {
	calls int
}

func (m *mockSanitizer) Sanitize(rawHTML string) string {
	m.calls++
	return "[sanitized]" + rawHTML
}

// mockCollector はメトリクス呼び出しを記録するモック。
type mockCollector struct {
	applied  []string
	skipped  int
	failed   []string
	deleted  int
	statuses []int
	latency  int
}

func (m *mockCollector) RecordSyncApplied(state string)    { m.applied = append(m.applied, state) }
func (m *mockCollector) RecordSyncSkipped()                { m.skipped++ }
func (m *mockCollector) RecordSyncFailure(reason string)   { m.failed = append(m.failed, reason) }
func (m *mockCollector) RecordRecordDeleted()              { m.deleted++ }
func (m *mockCollector) RecordHTTPStatus(statusCode int)   { m.statuses = append(m.statuses, statusCode) }
func (m *mockCollector) RecordSyncLatency(_ time.Duration) { m.latency++ }

func testSyncInput(number int) SyncInput {
	return SyncInput{
		Number:     number,
		Title:      "Storage Layout",
		State:      model.StateDiscussion,
		Link:       "https://github.com/example/rfd/tree/main/rfd/0042",
		Discussion: "https://github.com/example/rfd/pull/99",
		Authors:    "alice <alice@example.com>",
		HTML:       "<p>本文</p>",
		Content:    "= 本文",
		Sha:        "aaa111",
		CommitDate: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Milestones: []string{"q3"},
	}
}

func newTestSyncService(repo *mockRFDRepo, collector *mockCollector) (*SyncService, *mockSanitizer) {
	sanitizer := &mockSanitizer{}
	svc := NewSyncService(repo, sanitizer, collector, "rfd.example.com", "https://rfd.example.com")
	return svc, sanitizer
}

// 新規スナップショットの同期で導出フィールドが補完されることを検証
func TestSync_InsertsNewRecordWithDerivedFields(t *testing.T) {
	repo := newMockRFDRepo()
	collector := &mockCollector{}
	svc, sanitizer := newTestSyncService(repo, collector)

	result, applied, err := svc.Sync(context.Background(), testSyncInput(42))
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if !applied {
		t.Error("applied = false, want true")
	}

	if result.NumberString != "0042" {
		t.Errorf("result.NumberString = %q, want %q", result.NumberString, "0042")
	}
	if result.Name != "rfd-42-storage-layout" {
		t.Errorf("result.Name = %q, want %q", result.Name, "rfd-42-storage-layout")
	}
	if result.ShortLink != "https://42.rfd.example.com" {
		t.Errorf("result.ShortLink = %q", result.ShortLink)
	}
	if result.RenderedLink != "https://rfd.example.com/rfd/0042" {
		t.Errorf("result.RenderedLink = %q", result.RenderedLink)
	}
	if sanitizer.calls != 1 {
		t.Errorf("sanitizer.calls = %d, want 1", sanitizer.calls)
	}
	if result.HTML != "[sanitized]<p>本文</p>" {
		t.Errorf("result.HTML = %q, サニタイズ結果が保存されていません", result.HTML)
	}
	if len(collector.applied) != 1 || collector.applied[0] != "discussion" {
		t.Errorf("collector.applied = %v, want [discussion]", collector.applied)
	}
}

// sha未変更のスナップショットで書き込みがスキップされることを検証
func TestSync_SkipsWhenShaUnchanged(t *testing.T) {
	repo := newMockRFDRepo()
	collector := &mockCollector{}
	svc, _ := newTestSyncService(repo, collector)
	ctx := context.Background()

	if _, _, err := svc.Sync(ctx, testSyncInput(42)); err != nil {
		t.Fatalf("1回目のSync() error = %v", err)
	}
	callsAfterFirst := repo.upsertCalls

	// 同じshaで再同期
	result, applied, err := svc.Sync(ctx, testSyncInput(42))
	if err != nil {
		t.Fatalf("2回目のSync() error = %v", err)
	}
	if applied {
		t.Error("applied = true, want false")
	}
	if repo.upsertCalls != callsAfterFirst {
		t.Errorf("upsertCalls = %d, スキップ時に書き込みが発生しています", repo.upsertCalls)
	}
	if collector.skipped != 1 {
		t.Errorf("collector.skipped = %d, want 1", collector.skipped)
	}
	if result == nil || result.Number != 42 {
		t.Errorf("result = %+v, 既存レコードが返るべき", result)
	}
}

// sha変更時に同期フィールド一式が更新されることを検証
func TestSync_AppliesWhenShaChanged(t *testing.T) {
	repo := newMockRFDRepo()
	collector := &mockCollector{}
	svc, _ := newTestSyncService(repo, collector)
	ctx := context.Background()

	if _, _, err := svc.Sync(ctx, testSyncInput(42)); err != nil {
		t.Fatalf("1回目のSync() error = %v", err)
	}

	updated := testSyncInput(42)
	updated.Sha = "bbb222"
	updated.Content = "= 改訂本文"
	updated.State = model.StatePublished

	result, applied, err := svc.Sync(ctx, updated)
	if err != nil {
		t.Fatalf("2回目のSync() error = %v", err)
	}
	if !applied {
		t.Error("applied = false, want true")
	}
	if result.Sha != "bbb222" {
		t.Errorf("result.Sha = %q, want %q", result.Sha, "bbb222")
	}
	if result.State != model.StatePublished {
		t.Errorf("result.State = %q, want %q", result.State, model.StatePublished)
	}
}

// タイトル変更後もnameが維持されることを検証
func TestSync_KeepsNameWhenTitleChanges(t *testing.T) {
	repo := newMockRFDRepo()
	collector := &mockCollector{}
	svc, _ := newTestSyncService(repo, collector)
	ctx := context.Background()

	first, _, err := svc.Sync(ctx, testSyncInput(42))
	if err != nil {
		t.Fatalf("1回目のSync() error = %v", err)
	}

	renamed := testSyncInput(42)
	renamed.Sha = "bbb222"
	renamed.Title = "Storage Layout v2"

	second, _, err := svc.Sync(ctx, renamed)
	if err != nil {
		t.Fatalf("2回目のSync() error = %v", err)
	}
	if second.Name != first.Name {
		t.Errorf("second.Name = %q, want %q（nameは不変）", second.Name, first.Name)
	}
	if second.Title != "Storage Layout v2" {
		t.Errorf("second.Title = %q, タイトルは更新されるべき", second.Title)
	}
}

// ストア層のエラーが失敗メトリクスとともに伝播することを検証
func TestSync_PropagatesStorageFailure(t *testing.T) {
	repo := newMockRFDRepo()
	repo.upsertErr = model.NewDurabilityError("upsert", errors.New("connection reset"))
	collector := &mockCollector{}
	svc, _ := newTestSyncService(repo, collector)

	_, applied, err := svc.Sync(context.Background(), testSyncInput(42))
	if err == nil {
		t.Fatal("Sync() error = nil, want error")
	}
	if applied {
		t.Error("applied = true, want false")
	}
	if len(collector.failed) != 1 || collector.failed[0] != "storage" {
		t.Errorf("collector.failed = %v, want [storage]", collector.failed)
	}
}

// 検証エラーがvalidation理由で記録されることを検証
func TestSync_RecordsValidationFailure(t *testing.T) {
	repo := newMockRFDRepo()
	collector := &mockCollector{}
	svc, _ := newTestSyncService(repo, collector)

	input := testSyncInput(42)
	input.Link = "" // 必須フィールド欠落

	_, _, err := svc.Sync(context.Background(), input)
	if err == nil {
		t.Fatal("Sync() error = nil, want error")
	}
	if len(collector.failed) != 1 || collector.failed[0] != "validation" {
		t.Errorf("collector.failed = %v, want [validation]", collector.failed)
	}
}

// nilのタグ配列が空配列に正規化されることを検証
func TestSync_NormalizesNilTags(t *testing.T) {
	repo := newMockRFDRepo()
	collector := &mockCollector{}
	svc, _ := newTestSyncService(repo, collector)

	input := testSyncInput(42)
	input.Milestones = nil
	input.RelevantComplaints = nil

	result, _, err := svc.Sync(context.Background(), input)
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if result.Milestones == nil || result.RelevantComplaints == nil {
		t.Errorf("タグ配列が正規化されていません: %+v", result)
	}
}
