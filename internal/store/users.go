package store

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"

	"github.com/sells-group/brandy/internal/model"
)

// CreateUser adds an account. passwordHash must already be hashed; the store
// never sees plaintext credentials.
func (s *Store) CreateUser(ctx context.Context, username, passwordHash string, isAdmin bool) (*model.User, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO user (username, password, is_admin) VALUES (?, ?, ?)`,
		username, passwordHash, boolToInt(isAdmin))
	if err != nil {
		return nil, eris.Wrapf(err, "store: create user %s", username)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, eris.Wrap(err, "store: user id")
	}
	return &model.User{
		ID:           id,
		Username:     username,
		PasswordHash: passwordHash,
		IsAdmin:      isAdmin,
	}, nil
}

// GetUser returns the account with the given username.
func (s *Store) GetUser(ctx context.Context, username string) (*model.User, error) {
	var u model.User
	var isAdmin int
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, password, is_admin FROM user WHERE username = ?`,
		username).Scan(&u.ID, &u.Username, &u.PasswordHash, &isAdmin)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "store: user %s", username)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "store: get user %s", username)
	}
	u.IsAdmin = isAdmin != 0
	return &u, nil
}

// ListUsers returns all accounts ordered by username.
func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, username, password, is_admin FROM user ORDER BY username`)
	if err != nil {
		return nil, eris.Wrap(err, "store: list users")
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		var u model.User
		var isAdmin int
		if err := rows.Scan(&u.ID, &u.Username, &u.PasswordHash, &isAdmin); err != nil {
			return nil, eris.Wrap(err, "store: scan user")
		}
		u.IsAdmin = isAdmin != 0
		users = append(users, u)
	}
	return users, eris.Wrap(rows.Err(), "store: iterate users")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
