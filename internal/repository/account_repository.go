package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/authgate/internal/model"
)

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

const accountColumns = "id,username,email,password_hash,name,age,created_at,updated_at"

// AccountRepo is the MySQL-backed AccountStore.
type AccountRepo struct{ DB *sql.DB }

func NewAccountRepo(db *sql.DB) *AccountRepo { return &AccountRepo{DB: db} }

// Create inserts an account and returns its id.
func (r *AccountRepo) Create(ctx context.Context, a model.NewAccount) (uint64, error) {
	const op = "accounts.Create"
	var age sql.NullInt64
	if a.Age != nil {
		age = sql.NullInt64{Int64: int64(*a.Age), Valid: true}
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO accounts (username, email, password_hash, name, age) VALUES (?,?,?,?,?)",
		strings.TrimSpace(a.Username), normalizeEmail(a.Email), a.PasswordHash, a.Name, age)
	if err != nil {
		if isDuplicate(err) {
			return 0, ErrDuplicateAccount
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return uint64(id), nil
}

// GetByID fetches an account by id.
func (r *AccountRepo) GetByID(ctx context.Context, id uint64) (model.Account, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE id=? LIMIT 1", id)
	return scanAccount(row, "accounts.GetByID")
}

// GetByEmail fetches an account by normalized email.
func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (model.Account, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE email=? LIMIT 1", normalizeEmail(email))
	return scanAccount(row, "accounts.GetByEmail")
}

// UpdateProfile overwrites the non-empty fields of upd.
func (r *AccountRepo) UpdateProfile(ctx context.Context, id uint64, upd model.ProfileUpdate) error {
	const op = "accounts.UpdateProfile"
	sets := []string{}
	args := []any{}
	if v := strings.TrimSpace(upd.Username); v != "" {
		sets = append(sets, "username=?")
		args = append(args, v)
	}
	if v := normalizeEmail(upd.Email); v != "" {
		sets = append(sets, "email=?")
		args = append(args, v)
	}
	if upd.Name != "" {
		sets = append(sets, "name=?")
		args = append(args, upd.Name)
	}
	if upd.Age != nil {
		sets = append(sets, "age=?")
		args = append(args, *upd.Age)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)

	res, err := r.DB.ExecContext(ctx,
		"UPDATE accounts SET "+strings.Join(sets, ", ")+" WHERE id=?", args...)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicateAccount
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	// MySQL reports 0 affected rows when values are unchanged, so existence
	// is checked separately.
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		var one int
		err := r.DB.QueryRowContext(ctx, "SELECT 1 FROM accounts WHERE id=?", id).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return nil
}

// Delete removes an account; posts and likes cascade.
func (r *AccountRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM accounts WHERE id=?", id)
	if err != nil {
		return fmt.Errorf("accounts.Delete: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAccount(row *sql.Row, op string) (model.Account, error) {
	var (
		a   model.Account
		age sql.NullInt64
	)
	err := row.Scan(&a.ID, &a.Username, &a.Email, &a.PasswordHash, &a.Name, &age, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Account{}, ErrNotFound
	}
	if err != nil {
		return model.Account{}, fmt.Errorf("%s: %w", op, err)
	}
	if age.Valid {
		v := int(age.Int64)
		a.Age = &v
	}
	return a, nil
}

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
