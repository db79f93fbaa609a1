package database

// Route53 has no per-record comments, so they are kept here keyed by the
// record's value.

func (db *DB) SetComment(zoneID, recordKey, comment string) error {
	if comment == "" {
		return db.DeleteComment(zoneID, recordKey)
	}
	_, err := db.conn.Exec(
		`INSERT INTO record_comments (zone_id, record_key, comment) VALUES ($1, $2, $3)
		 ON CONFLICT(zone_id, record_key) DO UPDATE SET comment = EXCLUDED.comment, updated_at = NOW()`,
		zoneID, recordKey, comment,
	)
	return err
}

func (db *DB) DeleteComment(zoneID, recordKey string) error {
	_, err := db.conn.Exec("DELETE FROM record_comments WHERE zone_id = $1 AND record_key = $2", zoneID, recordKey)
	return err
}

func (db *DB) Comments(zoneID string) (map[string]string, error) {
	rows, err := db.conn.Query("SELECT record_key, comment FROM record_comments WHERE zone_id = $1", zoneID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var key, comment string
		if err := rows.Scan(&key, &comment); err != nil {
			return nil, err
		}
		out[key] = comment
	}
	return out, rows.Err()
}
