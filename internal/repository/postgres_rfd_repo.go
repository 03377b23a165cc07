package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/lib/pq"

	"github.com/hitoshi/rfdstore/internal/model"
)

// rfdColumns はrfdsテーブルの全カラム（SELECT用）。
const rfdColumns = `id, number, number_string, title, name, state,
	        link, short_link, rendered_link, discussion, authors,
	        html, content, sha, commit_date, milestones, relevant_complaints`

// PostgresRFDRepo はPostgreSQLを使用したRFDリポジトリ。
// 一意制約はストレージレベルの制約として実体化されており、
// 競合する書き込みは重複を作らずに制約違反エラーとして返る。
type PostgresRFDRepo struct {
	db *sql.DB
}

// NewPostgresRFDRepo はPostgresRFDRepoを生成する。
func NewPostgresRFDRepo(db *sql.DB) *PostgresRFDRepo {
	return &PostgresRFDRepo{db: db}
}

// Insert は完全に構築されたレコードを新規登録し、ストア採番のIDを付与して返す。
func (r *PostgresRFDRepo) Insert(ctx context.Context, rfd *model.RFD) (*model.RFD, error) {
	if err := rfd.Validate(); err != nil {
		return nil, err
	}
	rfd.NormalizeTags()

	inserted := *rfd
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO rfds (number, number_string, title, name, state,
		                   link, short_link, rendered_link, discussion, authors,
		                   html, content, sha, commit_date, milestones, relevant_complaints)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		 RETURNING id`,
		rfd.Number, rfd.NumberString, rfd.Title, rfd.Name, string(rfd.State),
		rfd.Link, rfd.ShortLink, rfd.RenderedLink, rfd.Discussion, rfd.Authors,
		rfd.HTML, rfd.Content, rfd.Sha, rfd.CommitDate,
		pq.Array(rfd.Milestones), pq.Array(rfd.RelevantComplaints),
	).Scan(&inserted.ID)
	if err != nil {
		if field, value, ok := uniqueViolation(err, rfd); ok {
			return nil, model.NewConflictError(field, value)
		}
		return nil, model.NewDurabilityError("insert", err)
	}

	return &inserted, nil
}

// UpsertByNumber はビジネスキーnumberでの冪等な全置換更新を行う。
// 対象行をFOR UPDATEでロックすることで、同一numberに対する並行Upsertを直列化する。
// sha/content/html/commit_dateを含む全フィールドは単一のUPDATE文で置換されるため、
// 読み取り側が部分的に進んだレコードを観測することはない。
func (r *PostgresRFDRepo) UpsertByNumber(ctx context.Context, number int, rfd *model.RFD) (*model.RFD, error) {
	if rfd.Number != number {
		return nil, model.NewValidationError("number",
			fmt.Sprintf("キー %d とレコードのnumber %d が一致しません", number, rfd.Number))
	}
	if err := rfd.Validate(); err != nil {
		return nil, err
	}
	rfd.NormalizeTags()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, model.NewDurabilityError("upsert", err)
	}
	defer tx.Rollback()

	// 対象行をロックして取得。存在しなければInsertとして振る舞う。
	var existingID int64
	var existingName string
	err = tx.QueryRowContext(ctx,
		`SELECT id, name FROM rfds WHERE number = $1 FOR UPDATE`,
		number,
	).Scan(&existingID, &existingName)

	result := *rfd

	switch {
	case err == sql.ErrNoRows:
		insertErr := tx.QueryRowContext(ctx,
			`INSERT INTO rfds (number, number_string, title, name, state,
			                   link, short_link, rendered_link, discussion, authors,
			                   html, content, sha, commit_date, milestones, relevant_complaints)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
			 RETURNING id`,
			rfd.Number, rfd.NumberString, rfd.Title, rfd.Name, string(rfd.State),
			rfd.Link, rfd.ShortLink, rfd.RenderedLink, rfd.Discussion, rfd.Authors,
			rfd.HTML, rfd.Content, rfd.Sha, rfd.CommitDate,
			pq.Array(rfd.Milestones), pq.Array(rfd.RelevantComplaints),
		).Scan(&result.ID)
		if insertErr != nil {
			if field, value, ok := uniqueViolation(insertErr, rfd); ok {
				// number自体の競合は並行Insertとの衝突であり、呼び出し側はリトライできる。
				// number_string/nameの競合は別レコードとの導出衝突。
				return nil, model.NewValidationError(field,
					fmt.Sprintf("%q は別のレコードと衝突します", value))
			}
			return nil, model.NewDurabilityError("upsert", insertErr)
		}

	case err != nil:
		return nil, model.NewDurabilityError("upsert", err)

	default:
		// nameは採番後不変: 再導出による変更や衝突を黙って受け入れない。
		if rfd.Name != existingName {
			return nil, model.NewValidationError("name",
				fmt.Sprintf("nameは変更できません: %q -> %q", existingName, rfd.Name))
		}

		// 全可変フィールドの原子的な置換。
		_, updateErr := tx.ExecContext(ctx,
			`UPDATE rfds SET
			    number_string = $2, title = $3, state = $4,
			    link = $5, short_link = $6, rendered_link = $7,
			    discussion = $8, authors = $9,
			    html = $10, content = $11, sha = $12, commit_date = $13,
			    milestones = $14, relevant_complaints = $15
			 WHERE id = $1`,
			existingID,
			rfd.NumberString, rfd.Title, string(rfd.State),
			rfd.Link, rfd.ShortLink, rfd.RenderedLink,
			rfd.Discussion, rfd.Authors,
			rfd.HTML, rfd.Content, rfd.Sha, rfd.CommitDate,
			pq.Array(rfd.Milestones), pq.Array(rfd.RelevantComplaints),
		)
		if updateErr != nil {
			if field, value, ok := uniqueViolation(updateErr, rfd); ok {
				return nil, model.NewValidationError(field,
					fmt.Sprintf("%q は別のレコードと衝突します", value))
			}
			return nil, model.NewDurabilityError("upsert", updateErr)
		}
		result.ID = existingID
	}

	if err := tx.Commit(); err != nil {
		return nil, model.NewDurabilityError("upsert", err)
	}

	return &result, nil
}

// GetByNumber は指定番号のレコードを返す。見つからない場合は*model.NotFoundErrorを返す。
func (r *PostgresRFDRepo) GetByNumber(ctx context.Context, number int) (*model.RFD, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+rfdColumns+` FROM rfds WHERE number = $1`,
		number,
	)

	rfd, err := scanRFD(row)
	if err == sql.ErrNoRows {
		return nil, model.NewNotFoundError(number)
	}
	if err != nil {
		return nil, fmt.Errorf("RFDの取得に失敗しました: %w", err)
	}

	return rfd, nil
}

// List はフィルタに一致するレコードをnumber昇順で返す。
// afterNumberより大きい番号から最大limit件を返す。
func (r *PostgresRFDRepo) List(ctx context.Context, filter model.RFDFilter, afterNumber, limit int) ([]*model.RFD, error) {
	query := `SELECT ` + rfdColumns + ` FROM rfds WHERE number > $1`
	args := []interface{}{afterNumber}
	argIndex := 2

	if filter.State != "" {
		query += fmt.Sprintf(" AND state = $%d", argIndex)
		args = append(args, string(filter.State))
		argIndex++
	}
	if filter.Milestone != "" {
		query += fmt.Sprintf(" AND $%d = ANY(milestones)", argIndex)
		args = append(args, filter.Milestone)
		argIndex++
	}
	if filter.Complaint != "" {
		query += fmt.Sprintf(" AND $%d = ANY(relevant_complaints)", argIndex)
		args = append(args, filter.Complaint)
		argIndex++
	}

	query += " ORDER BY number ASC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("RFD一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var rfds []*model.RFD
	for rows.Next() {
		rfd, err := scanRFD(rows)
		if err != nil {
			return nil, fmt.Errorf("RFD行の読み取りに失敗しました: %w", err)
		}
		rfds = append(rfds, rfd)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("RFD一覧の走査に失敗しました: %w", err)
	}

	return rfds, nil
}

// Delete はレコード全体を削除する。見つからない場合は*model.NotFoundErrorを返す。
func (r *PostgresRFDRepo) Delete(ctx context.Context, number int) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM rfds WHERE number = $1`,
		number,
	)
	if err != nil {
		return model.NewDurabilityError("delete", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return model.NewDurabilityError("delete", err)
	}
	if affected == 0 {
		return model.NewNotFoundError(number)
	}

	return nil
}

// rowScanner はsql.Rowとsql.Rowsの共通Scanインターフェース。
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanRFD は1行をRFDレコードに読み取る。
func scanRFD(row rowScanner) (*model.RFD, error) {
	rfd := &model.RFD{}
	var state string
	var milestones, complaints pq.StringArray

	err := row.Scan(
		&rfd.ID, &rfd.Number, &rfd.NumberString, &rfd.Title, &rfd.Name, &state,
		&rfd.Link, &rfd.ShortLink, &rfd.RenderedLink, &rfd.Discussion, &rfd.Authors,
		&rfd.HTML, &rfd.Content, &rfd.Sha, &rfd.CommitDate,
		&milestones, &complaints,
	)
	if err != nil {
		return nil, err
	}

	rfd.State = model.State(state)
	rfd.Milestones = []string(milestones)
	rfd.RelevantComplaints = []string(complaints)
	rfd.NormalizeTags()

	return rfd, nil
}

// uniqueViolation はpqの一意制約違反を判定し、制約名から違反フィールドと値を特定する。
func uniqueViolation(err error, rfd *model.RFD) (field, value string, ok bool) {
	pqErr, isPQ := err.(*pq.Error)
	if !isPQ || pqErr.Code != "23505" {
		return "", "", false
	}

	switch pqErr.Constraint {
	case "uq_rfds_number":
		return "number", strconv.Itoa(rfd.Number), true
	case "uq_rfds_number_string":
		return "number_string", rfd.NumberString, true
	case "uq_rfds_name":
		return "name", rfd.Name, true
	default:
		// 未知の一意制約。フィールドを特定せず制約名をそのまま返す。
		return pqErr.Constraint, "", true
	}
}

// compile-time interface check
var _ RFDRepository = (*PostgresRFDRepo)(nil)
