// Package model はドメインモデルを定義する。
package model

import (
	"strconv"
	"time"
)

// RFD は外部ドキュメントソースからミラーリングされたRFD
// （Request for Discussion）レコードを表す。
// ストアはフィールドの導出（number_string、name）を行わず、
// 呼び出し側が供給した値の整合性のみを検証する。
type RFD struct {
	ID                 int64     // ストア内部のサロゲートキー（DB採番、再利用しない）
	Number             int       // 公開RFD番号（ビジネスキー、一意）
	NumberString       string    // Numberの表示形式（ゼロパディング、一意）
	Title              string    // タイトル（同期のたびに更新されうる）
	Name               string    // number + title から導出された正規スラッグ（一意、不変）
	State              State     // ライフサイクル状態（遷移規則は外部コラボレーターが所有）
	Link               string    // ソースドキュメントの正規URL
	ShortLink          string    // Linkの短縮エイリアス
	RenderedLink       string    // レンダリング済み（HTML）成果物のURL
	Discussion         string    // 議論スレッドのURL（上流未設定の場合は空文字列）
	Authors            string    // 著者リストのシリアライズ文字列（区切り文字は外部所有）
	HTML               string    // レンダリング済みドキュメント本文
	Content            string    // レンダリング前のソース本文
	Sha                string    // 最終同期時点のソースコンテンツハッシュ
	CommitDate         time.Time // このレコードが反映する上流リビジョンの時刻
	Milestones         []string  // 関連マイルストーンラベル（挿入順を保持、重複許容）
	RelevantComplaints []string  // 関連課題ラベル（挿入順を保持、重複許容）
}

// State はRFDのライフサイクル状態を表す。
// ストアは検証済みの不透明な文字列として扱い、遷移グラフは検証しない。
type State string

// cioの語彙に準拠した状態定数。呼び出し側の便宜のために定義するが、
// ストアは空でない任意の値を受け付ける。
const (
	StateIdeation      State = "ideation"
	StatePrediscussion State = "prediscussion"
	StateDiscussion    State = "discussion"
	StatePublished     State = "published"
	StateCommitted     State = "committed"
	StateAbandoned     State = "abandoned"
)

// RFDFilter はList操作のフィルタ条件を表す。
// ゼロ値のフィールドは「条件なし」を意味する。
type RFDFilter struct {
	State     State  // 一致する状態のみ
	Milestone string // milestonesに含まれるレコードのみ
	Complaint string // relevant_complaintsに含まれるレコードのみ
}

// Validate はレコードがストアの不変条件を満たすことを検証する。
// 違反がある場合は*ValidationErrorを返す。
//
// 検証内容:
//   - Numberは正の整数
//   - NumberStringはNumberと同じ数値を表す（導出の整合性）
//   - Title、Name、State、Link、ShortLink、RenderedLinkは空でない
//   - CommitDateはゼロ値でない
//
// Discussion、Authors、HTML、Content、Shaは空文字列を許容する
// （「欠落は不可能、不在は空値」の契約による）。
func (r *RFD) Validate() error {
	if r.Number <= 0 {
		return NewValidationError("number", "正の整数である必要があります")
	}

	n, err := strconv.Atoi(r.NumberString)
	if err != nil || n != r.Number {
		return NewValidationError("number_string",
			"numberと同じ数値を表す必要があります: "+r.NumberString)
	}

	required := []struct {
		field string
		value string
	}{
		{"title", r.Title},
		{"name", r.Name},
		{"state", string(r.State)},
		{"link", r.Link},
		{"short_link", r.ShortLink},
		{"rendered_link", r.RenderedLink},
	}
	for _, f := range required {
		if f.value == "" {
			return NewValidationError(f.field, "必須フィールドが空です")
		}
	}

	if r.CommitDate.IsZero() {
		return NewValidationError("commit_date", "commit_dateが未設定です")
	}

	return nil
}

// NormalizeTags はnilのタグ配列を空配列に正規化する。
// 永続化層でNULLを書き込まないための前処理として使用する。
func (r *RFD) NormalizeTags() {
	if r.Milestones == nil {
		r.Milestones = []string{}
	}
	if r.RelevantComplaints == nil {
		r.RelevantComplaints = []string{}
	}
}
