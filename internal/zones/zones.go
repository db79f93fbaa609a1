// Package zones lists the zones a session may manage and narrows them for
// selection.
package zones

import (
	"context"
	"strings"

	"dnsmanager/internal/failure"
	"dnsmanager/internal/model"
	"dnsmanager/internal/session"
)

type API interface {
	ListZones(ctx context.Context, token string) ([]model.Zone, error)
	CreateZone(ctx context.Context, token string, z model.NewZone) error
}

type Directory struct {
	api      API
	sessions *session.Manager
}

func NewDirectory(api API, sessions *session.Manager) *Directory {
	return &Directory{api: api, sessions: sessions}
}

func (d *Directory) List(ctx context.Context) ([]model.Zone, error) {
	token, err := d.sessions.Token()
	if err != nil {
		return nil, err
	}
	zones, err := d.api.ListZones(ctx, token)
	if err != nil {
		return nil, d.sessions.Observe(ctx, err)
	}
	return zones, nil
}

// Create asks the service for a new zone. Type is "forward" or "reverse".
func (d *Directory) Create(ctx context.Context, z model.NewZone) error {
	z.Name = strings.TrimSpace(z.Name)
	if z.Name == "" {
		return failure.Validation("Zone name is required")
	}
	if z.Type == "" {
		z.Type = "forward"
	}
	if z.Type != "forward" && z.Type != "reverse" {
		return failure.Validation("Zone type must be forward or reverse")
	}
	token, err := d.sessions.Token()
	if err != nil {
		return err
	}
	return d.sessions.Observe(ctx, d.api.CreateZone(ctx, token, z))
}

// Filter keeps the zones whose name or file contains query, ignoring case.
// Order is preserved and an empty query keeps everything.
func Filter(zones []model.Zone, query string) []model.Zone {
	q := strings.ToLower(query)
	out := make([]model.Zone, 0, len(zones))
	for _, z := range zones {
		if strings.Contains(strings.ToLower(z.Name), q) || strings.Contains(strings.ToLower(z.File), q) {
			out = append(out, z)
		}
	}
	return out
}

// Single reports the zone to auto-select: the only one in zones.
func Single(zones []model.Zone) (model.Zone, bool) {
	if len(zones) != 1 {
		return model.Zone{}, false
	}
	return zones[0], true
}
