package service

import (
	"context"
	"strconv"
	"time"

	"dnsmanager/internal/dnsrecord"
	"dnsmanager/internal/model"
)

const (
	ZoneTypeForward = "forward"
	ZoneTypeReverse = "reverse"
)

// ZoneBackend is where zones and their records live. Mutations return the
// SOA serial the zone carries afterwards.
type ZoneBackend interface {
	ListZones(ctx context.Context) ([]model.Zone, error)
	CreateZone(ctx context.Context, z model.NewZone) (model.Zone, error)
	GetRecords(ctx context.Context, file string) (model.ZoneData, error)
	AddRecord(ctx context.Context, file string, rec dnsrecord.Record) (model.Serial, error)
	UpdateRecord(ctx context.Context, file string, old, updated dnsrecord.Record) (model.Serial, error)
	DeleteRecord(ctx context.Context, file string, rec dnsrecord.Record) (model.Serial, error)
	// ReloadZone reports how many attempts it took to confirm the zone.
	ReloadZone(ctx context.Context, name string) (int, error)
	Restart(ctx context.Context) error
	// ValidateZone checks every stored record of the named zone. Problems
	// found are reported in the result; err is for failures to check.
	ValidateZone(ctx context.Context, name string) (model.ZoneCheck, error)
}

// Store holds the caches and record comments the backend keeps beside the
// provider. *database.DB implements it.
type Store interface {
	GetCachedZones() ([]model.CachedZone, bool)
	CacheZones(zones []model.CachedZone) error
	InvalidateZoneCache() error
	GetCachedZoneData(zoneID string) (model.ZoneData, bool)
	CacheZoneData(zoneID string, zd model.ZoneData) error
	InvalidateRecordCache(zoneID string) error
	InvalidateAllCache() error
	Comments(zoneID string) (map[string]string, error)
	SetComment(zoneID, recordKey, comment string) error
	DeleteComment(zoneID, recordKey string) error
}

// NextSerial applies the hourly serial scheme: the serial jumps forward to
// YYYYMMDDHH of now, and is kept when it is already at or past that value.
func NextSerial(current model.Serial, now time.Time) model.Serial {
	n, err := strconv.ParseUint(now.Format("2006010215"), 10, 32)
	if err != nil {
		return current
	}
	target := model.Serial(n)
	if target > current {
		return target
	}
	return current
}
