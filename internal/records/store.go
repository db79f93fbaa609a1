// Package records keeps the snapshot of the selected zone and orchestrates
// record mutations against the service. Records carry no id: a record is
// addressed remotely by its full value, and every successful mutation is
// followed by a reload so the snapshot always mirrors the service.
package records

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"dnsmanager/internal/dnsrecord"
	"dnsmanager/internal/failure"
	"dnsmanager/internal/model"
	"dnsmanager/internal/session"
)

type API interface {
	GetRecords(ctx context.Context, token, file string) (model.ZoneData, error)
	AddRecord(ctx context.Context, token, file string, rec dnsrecord.Record) error
	UpdateRecord(ctx context.Context, token, file string, old, updated dnsrecord.Record) error
	DeleteRecord(ctx context.Context, token, file string, rec dnsrecord.Record) error
	ReloadZone(ctx context.Context, token, zoneName string) error
	RestartService(ctx context.Context, token string) error
}

// Key is the canonical full-value identity of rec.
func Key(rec dnsrecord.Record) string {
	return rec.Key()
}

type Store struct {
	api      API
	sessions *session.Manager
	log      *logrus.Entry

	// held for a whole mutate-then-reload sequence
	mutate sync.Mutex

	mu   sync.RWMutex
	file string
	data *model.ZoneData
}

func NewStore(api API, sessions *session.Manager, log *logrus.Entry) *Store {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Store{api: api, sessions: sessions, log: log.WithField("component", "records")}
}

// Load fetches file and replaces the snapshot, discarding any other zone.
// On failure the previous snapshot is kept.
func (s *Store) Load(ctx context.Context, file string) error {
	s.mutate.Lock()
	defer s.mutate.Unlock()
	return s.load(ctx, file)
}

func (s *Store) load(ctx context.Context, file string) error {
	token, err := s.sessions.Token()
	if err != nil {
		return err
	}
	zd, err := s.api.GetRecords(ctx, token, file)
	if err != nil {
		return s.sessions.Observe(ctx, err)
	}
	if zd.Records == nil {
		zd.Records = []dnsrecord.Record{}
	}

	s.mu.Lock()
	s.file = file
	s.data = &zd
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{"zone": file, "records": len(zd.Records), "serial": zd.SOA.Serial}).Debug("zone loaded")
	return nil
}

// Snapshot returns a copy of the loaded zone data and its file.
func (s *Store) Snapshot() (string, model.ZoneData, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.data == nil {
		return "", model.ZoneData{}, false
	}
	zd := model.ZoneData{
		SOA:     s.data.SOA,
		Records: append([]dnsrecord.Record(nil), s.data.Records...),
	}
	return s.file, zd, true
}

// Clear drops the snapshot, e.g. after logout.
func (s *Store) Clear() {
	s.mu.Lock()
	s.file = ""
	s.data = nil
	s.mu.Unlock()
}

// Search filters the snapshot locally.
func (s *Store) Search(query string) []dnsrecord.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []dnsrecord.Record{}
	if s.data == nil {
		return out
	}
	for _, rec := range s.data.Records {
		if dnsrecord.MatchesQuery(rec, query) {
			out = append(out, rec)
		}
	}
	return out
}

func (s *Store) loadedFile() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.data == nil {
		return "", failure.Validation("No zone selected")
	}
	return s.file, nil
}

func (s *Store) contains(rec dnsrecord.Record) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.data == nil {
		return false
	}
	for _, r := range s.data.Records {
		if r.Equal(rec) {
			return true
		}
	}
	return false
}

// apply runs one remote mutation and then reloads the zone. A mutation
// that succeeded remotely but could not be reloaded is reported with the
// reload failure's kind.
func (s *Store) apply(ctx context.Context, file, op string, call func(token string) error) error {
	token, err := s.sessions.Token()
	if err != nil {
		return err
	}
	if err := call(token); err != nil {
		s.log.WithFields(logrus.Fields{"zone": file, "op": op}).WithError(err).Debug("mutation rejected")
		return s.sessions.Observe(ctx, err)
	}
	if err := s.load(ctx, file); err != nil {
		return failure.New(failure.KindOf(err), "Change applied, but reloading the zone failed: "+failure.Message(err), err)
	}
	return nil
}

// Add validates rec and creates it in the loaded zone.
func (s *Store) Add(ctx context.Context, rec dnsrecord.Record) error {
	if err := dnsrecord.Validate(rec); err != nil {
		return err
	}
	s.mutate.Lock()
	defer s.mutate.Unlock()

	file, err := s.loadedFile()
	if err != nil {
		return err
	}
	return s.apply(ctx, file, "add", func(token string) error {
		return s.api.AddRecord(ctx, token, file, rec)
	})
}

// Update replaces old with updated. old must equal a record of the
// snapshot; it is sent as-is so the service can locate it by value. With
// duplicate identical records the service picks one.
func (s *Store) Update(ctx context.Context, old, updated dnsrecord.Record) error {
	if err := dnsrecord.Validate(updated); err != nil {
		return err
	}
	s.mutate.Lock()
	defer s.mutate.Unlock()

	file, err := s.loadedFile()
	if err != nil {
		return err
	}
	if !s.contains(old) {
		return failure.NotFound("Record not found")
	}
	return s.apply(ctx, file, "update", func(token string) error {
		return s.api.UpdateRecord(ctx, token, file, old, updated)
	})
}

// Delete removes rec, located by full value like Update.
func (s *Store) Delete(ctx context.Context, rec dnsrecord.Record) error {
	s.mutate.Lock()
	defer s.mutate.Unlock()

	file, err := s.loadedFile()
	if err != nil {
		return err
	}
	if !s.contains(rec) {
		return failure.NotFound("Record not found")
	}
	return s.apply(ctx, file, "delete", func(token string) error {
		return s.api.DeleteRecord(ctx, token, file, rec)
	})
}

// ReloadZone asks the service to reload zoneName, then refreshes the
// snapshot if a zone is loaded.
func (s *Store) ReloadZone(ctx context.Context, zoneName string) error {
	if zoneName == "" {
		return failure.Validation("Zone name is required")
	}
	return s.passThrough(ctx, "reload", func(token string) error {
		return s.api.ReloadZone(ctx, token, zoneName)
	})
}

// RestartService restarts the nameserver, then refreshes the snapshot.
func (s *Store) RestartService(ctx context.Context) error {
	return s.passThrough(ctx, "restart", func(token string) error {
		return s.api.RestartService(ctx, token)
	})
}

func (s *Store) passThrough(ctx context.Context, op string, call func(token string) error) error {
	s.mutate.Lock()
	defer s.mutate.Unlock()

	s.mu.RLock()
	file, loaded := s.file, s.data != nil
	s.mu.RUnlock()

	if !loaded {
		token, err := s.sessions.Token()
		if err != nil {
			return err
		}
		return s.sessions.Observe(ctx, call(token))
	}
	return s.apply(ctx, file, op, call)
}
