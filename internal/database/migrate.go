package database

import (
	"context"
	"database/sql"
	"fmt"
)

// usersDDL mirrors model.User. refresh_token_hash holds a bcrypt string
// (60 chars) and is NULL while the user has no active session.
const usersDDL = `CREATE TABLE IF NOT EXISTS users (
	id                 CHAR(36)     NOT NULL PRIMARY KEY,
	username           VARCHAR(64)  NOT NULL,
	email              VARCHAR(255) NOT NULL,
	first_name         VARCHAR(100) NOT NULL DEFAULT '',
	last_name          VARCHAR(100) NOT NULL DEFAULT '',
	password_hash      VARCHAR(255) NOT NULL,
	refresh_token_hash VARCHAR(255) NULL,
	role               ENUM('CUSTOMER','ADMIN','VENDOR') NOT NULL DEFAULT 'CUSTOMER',
	is_active          TINYINT(1)   NOT NULL DEFAULT 1,
	created_at         DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at         DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
	UNIQUE KEY uq_users_username (username),
	UNIQUE KEY uq_users_email (email)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_bin`

// Migrate creates the schema if it does not exist yet.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, usersDDL); err != nil {
		return fmt.Errorf("create users table: %w", err)
	}
	return nil
}
