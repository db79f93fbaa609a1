package database

import (
	"database/sql"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"

	"dnsmanager/internal/model"
)

const bcryptCost = 12

const userColumns = "id, username, pass_hash, role, active, auth_source, created_at, last_login"

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	u := &model.User{}
	var lastLogin sql.NullTime
	if err := row.Scan(&u.ID, &u.Username, &u.PassHash, &u.Role, &u.Active, &u.AuthSource, &u.CreatedAt, &lastLogin); err != nil {
		return nil, err
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLogin = &t
	}
	return u, nil
}

func (db *DB) GetUserByUsername(username string) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRow("SELECT "+userColumns+" FROM users WHERE username = $1", username))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

func (db *DB) ListUsers() ([]model.User, error) {
	rows, err := db.conn.Query("SELECT " + userColumns + " FROM users ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (db *DB) CreateUser(username, password, role string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return err
	}
	_, err = db.conn.Exec(
		"INSERT INTO users (username, pass_hash, role) VALUES ($1, $2, $3)",
		username, string(hash), role,
	)
	return err
}

// DeleteUser reports whether a row was removed.
func (db *DB) DeleteUser(username string) (bool, error) {
	res, err := db.conn.Exec("DELETE FROM users WHERE username = $1", username)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// AuthenticateUser returns nil without error when the credentials do not
// match an active local account.
func (db *DB) AuthenticateUser(username, password string) (*model.User, error) {
	u, err := db.GetUserByUsername(username)
	if err != nil || u == nil || !u.Active || u.PassHash == "" {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PassHash), []byte(password)); err != nil {
		return nil, nil
	}
	return u, nil
}

func (db *DB) CreateLDAPUser(username, role string) error {
	_, err := db.conn.Exec(
		`INSERT INTO users (username, pass_hash, role, auth_source)
		 VALUES ($1, '', $2, 'ldap')
		 ON CONFLICT(username) DO UPDATE SET
		   role = EXCLUDED.role, auth_source = 'ldap', updated_at = NOW()`,
		username, role,
	)
	return err
}

func (db *DB) TouchLastLogin(username string, at time.Time) error {
	_, err := db.conn.Exec("UPDATE users SET last_login = $1 WHERE username = $2", at, username)
	return err
}
