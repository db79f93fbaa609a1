package database

import (
	"encoding/json"
	"time"

	"dnsmanager/internal/model"
)

const cacheTTL = 5 * time.Minute

func (db *DB) CacheZones(zones []model.CachedZone) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM zones_cache"); err != nil {
		_ = tx.Rollback()
		return err
	}
	stmt, err := tx.Prepare("INSERT INTO zones_cache (zone_id, name) VALUES ($1, $2)")
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, z := range zones {
		if _, err := stmt.Exec(z.ZoneID, z.Name); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// GetCachedZones reports false when the cache is empty or stale.
func (db *DB) GetCachedZones() ([]model.CachedZone, bool) {
	rows, err := db.conn.Query("SELECT zone_id, name, cached_at FROM zones_cache ORDER BY name")
	if err != nil {
		return nil, false
	}
	defer rows.Close()

	var zones []model.CachedZone
	for rows.Next() {
		var z model.CachedZone
		if err := rows.Scan(&z.ZoneID, &z.Name, &z.CachedAt); err != nil {
			return nil, false
		}
		if time.Since(z.CachedAt) > cacheTTL {
			return nil, false
		}
		zones = append(zones, z)
	}
	return zones, len(zones) > 0
}

func (db *DB) CacheZoneData(zoneID string, zd model.ZoneData) error {
	b, err := json.Marshal(zd)
	if err != nil {
		return err
	}
	_, err = db.conn.Exec(
		`INSERT INTO records_cache (zone_id, data_json, cached_at) VALUES ($1, $2, NOW())
		 ON CONFLICT(zone_id) DO UPDATE SET data_json = EXCLUDED.data_json, cached_at = NOW()`,
		zoneID, string(b),
	)
	return err
}

func (db *DB) GetCachedZoneData(zoneID string) (model.ZoneData, bool) {
	var raw string
	var cachedAt time.Time
	err := db.conn.QueryRow("SELECT data_json, cached_at FROM records_cache WHERE zone_id = $1", zoneID).
		Scan(&raw, &cachedAt)
	if err != nil || time.Since(cachedAt) > cacheTTL {
		return model.ZoneData{}, false
	}
	var zd model.ZoneData
	if err := json.Unmarshal([]byte(raw), &zd); err != nil {
		return model.ZoneData{}, false
	}
	return zd, true
}

func (db *DB) InvalidateRecordCache(zoneID string) error {
	_, err := db.conn.Exec("DELETE FROM records_cache WHERE zone_id = $1", zoneID)
	return err
}

func (db *DB) InvalidateAllCache() error {
	if _, err := db.conn.Exec("DELETE FROM records_cache"); err != nil {
		return err
	}
	_, err := db.conn.Exec("DELETE FROM zones_cache")
	return err
}

func (db *DB) InvalidateZoneCache() error {
	_, err := db.conn.Exec("DELETE FROM zones_cache")
	return err
}
