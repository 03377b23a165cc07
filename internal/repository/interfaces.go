// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"

	"github.com/hitoshi/rfdstore/internal/model"
)

// RFDRepository はRFDレコードの永続化インターフェース。
// ビジネスキーはnumber（公開RFD番号）。一意制約（number、number_string、name）は
// 書き込みと同一の原子的操作として検証される。
type RFDRepository interface {
	// Insert は完全に構築されたレコードを新規登録し、ストア採番のIDを付与して返す。
	// number、number_string、nameのいずれかが既存レコードと重複する場合は
	// *model.ConflictErrorを返す。
	// 不変条件を満たさない入力には*model.ValidationErrorを返す。
	Insert(ctx context.Context, rfd *model.RFD) (*model.RFD, error)

	// UpsertByNumber はビジネスキーnumberでの冪等な全置換更新を行う。
	// 該当レコードが存在しない場合はInsertとして振る舞う。
	// 存在する場合は可変フィールド全体を原子的に置換する
	// （sha/content/html/commit_dateは常に一括で進む）。
	// 置換が別レコードのnumber_stringまたはnameの一意性を侵害する場合、
	// およびnameを既存の値から変更しようとした場合は*model.ValidationErrorを返す。
	// 更新後のレコードを返す。
	UpsertByNumber(ctx context.Context, number int, rfd *model.RFD) (*model.RFD, error)

	// GetByNumber は指定番号のレコードを返す。
	// 見つからない場合は*model.NotFoundErrorを返す。
	GetByNumber(ctx context.Context, number int) (*model.RFD, error)

	// List はフィルタに一致するレコードをnumber昇順で返す。
	// afterNumberより大きい番号から最大limit件を返すキーセットページネーションにより、
	// 呼び出し側は最後に見た番号から走査を再開できる。
	// afterNumber=0は先頭から、limit<=0は無制限を意味する。
	List(ctx context.Context, filter model.RFDFilter, afterNumber, limit int) ([]*model.RFD, error)

	// Delete はレコード全体を削除する。部分的なフィールド削除は提供しない。
	// 見つからない場合は*model.NotFoundErrorを返す。
	Delete(ctx context.Context, number int) error
}

// Pinger はストレージ到達性確認のインターフェース。ヘルスチェックで使用する。
type Pinger interface {
	PingContext(ctx context.Context) error
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
