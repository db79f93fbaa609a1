package database

import (
	"time"
)

// RevokeToken records a logged-out token id until its natural expiry.
func (db *DB) RevokeToken(jti, username string, expiresAt time.Time) error {
	_, err := db.conn.Exec(
		"INSERT INTO revoked_tokens (jti, username, expires_at) VALUES ($1, $2, $3) ON CONFLICT(jti) DO NOTHING",
		jti, username, expiresAt,
	)
	return err
}

func (db *DB) IsTokenRevoked(jti string) (bool, error) {
	var n int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM revoked_tokens WHERE jti = $1", jti).Scan(&n)
	return n > 0, err
}

func (db *DB) PurgeExpiredTokens() error {
	_, err := db.conn.Exec("DELETE FROM revoked_tokens WHERE expires_at < NOW()")
	return err
}
