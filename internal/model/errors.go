// Package model はドメインモデルを定義する。
package model

import "fmt"

// ConflictError は一意制約（number、number_string、name）の違反を表す。
// Insertで既存レコードと重複した場合に返される。
// 呼び出し側（取り込みジョブ）はリトライではなくスキップ/報告を選択すべき。
type ConflictError struct {
	Field string // 違反したフィールド名
	Value string // 重複した値
}

// Error はerrorインターフェースを実装する。
func (e *ConflictError) Error() string {
	return fmt.Sprintf("一意制約違反: %s = %q は既に存在します", e.Field, e.Value)
}

// NewConflictError は一意制約違反エラーを生成する。
func NewConflictError(field, value string) *ConflictError {
	return &ConflictError{Field: field, Value: value}
}

// ValidationError は入力レコードが不変条件を満たさないことを表す。
// 必須フィールドの欠落、number_stringとnumberの不整合、
// または更新が別レコードの一意性を侵害する場合に返される。
type ValidationError struct {
	Field  string // 問題のあるフィールド名
	Reason string // 違反内容
}

// Error はerrorインターフェースを実装する。
func (e *ValidationError) Error() string {
	return fmt.Sprintf("検証エラー: %s: %s", e.Field, e.Reason)
}

// NewValidationError は検証エラーを生成する。
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// NotFoundError は指定されたビジネスキーのレコードが存在しないことを表す。
type NotFoundError struct {
	Number int // 見つからなかったRFD番号
}

// Error はerrorインターフェースを実装する。
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("RFD %d は見つかりません", e.Number)
}

// NewNotFoundError はレコード未検出エラーを生成する。
func NewNotFoundError(number int) *NotFoundError {
	return &NotFoundError{Number: number}
}

// DurabilityError はストレージ媒体への書き込みコミットの失敗を表す。
// 部分的な状態は保持されない（最後の永続状態へロールバック済み）。
// 呼び出し側（取り込みジョブ）はリトライを選択できる。
type DurabilityError struct {
	Op  string // 失敗した操作名
	Err error  // 基底のストレージエラー
}

// Error はerrorインターフェースを実装する。
func (e *DurabilityError) Error() string {
	return fmt.Sprintf("永続化エラー: %s: %v", e.Op, e.Err)
}

// Unwrap は基底エラーを返す。errors.Is/Asによる検査を可能にする。
func (e *DurabilityError) Unwrap() error {
	return e.Err
}

// NewDurabilityError は永続化エラーを生成する。
func NewDurabilityError(op string, err error) *DurabilityError {
	return &DurabilityError{Op: op, Err: err}
}
