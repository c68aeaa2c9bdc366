package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/api-starter/internal/model"
)

const userColumns = "id,username,email,first_name,last_name,password_hash,refresh_token_hash,role,is_active,created_at,updated_at"

// UserRepo persists users in the MySQL 'users' table.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// Create inserts u. CreatedAt/UpdatedAt are filled by the database defaults
// and read back into u.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (id, username, email, first_name, last_name, password_hash, refresh_token_hash, role, is_active) VALUES (?,?,?,?,?,?,?,?,?)",
		u.ID, u.Username, u.Email, u.FirstName, u.LastName, u.PasswordHash, nullString(u.RefreshTokenHash), string(u.Role), u.IsActive)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}
	created, err := r.FindByID(ctx, u.ID)
	if err != nil {
		return err
	}
	u.CreatedAt, u.UpdatedAt = created.CreatedAt, created.UpdatedAt
	return nil
}

// FindByID fetches a user by id.
func (r *UserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	return r.findOne(ctx, "SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id)
}

// FindByUsername fetches a user by exact username.
func (r *UserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.findOne(ctx, "SELECT "+userColumns+" FROM users WHERE username=? LIMIT 1", username)
}

// FindByEmail fetches a user by exact email.
func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctx, "SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email)
}

// List returns users ordered by creation time.
func (r *UserRepo) List(ctx context.Context, limit, offset int) ([]model.User, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users ORDER BY created_at, id LIMIT ? OFFSET ?", limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

// SetRefreshTokenHash overwrites (or clears, when hash is nil) the stored
// refresh token hash.
func (r *UserRepo) SetRefreshTokenHash(ctx context.Context, id string, hash *string) error {
	return r.update(ctx, "UPDATE users SET refresh_token_hash=? WHERE id=?", nullString(hash), id)
}

// SetActive toggles the is_active flag.
func (r *UserRepo) SetActive(ctx context.Context, id string, active bool) error {
	return r.update(ctx, "UPDATE users SET is_active=? WHERE id=?", active, id)
}

// SetRole changes the user's role.
func (r *UserRepo) SetRole(ctx context.Context, id string, role model.Role) error {
	return r.update(ctx, "UPDATE users SET role=? WHERE id=?", string(role), id)
}

func (r *UserRepo) update(ctx context.Context, query string, args ...any) error {
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// MySQL reports 0 affected rows when the value is unchanged, so
		// distinguish that from a missing row.
		var one int
		err := r.DB.QueryRowContext(ctx, "SELECT 1 FROM users WHERE id=? LIMIT 1", args[len(args)-1]).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (r *UserRepo) findOne(ctx context.Context, query string, arg any) (*model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return u, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	var (
		u       model.User
		role    string
		refresh sql.NullString
	)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.FirstName, &u.LastName, &u.PasswordHash,
		&refresh, &role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.Role = model.Role(role)
	if refresh.Valid {
		h := refresh.String
		u.RefreshTokenHash = &h
	}
	return &u, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}
