package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"dnsmanager/internal/audit"
	"dnsmanager/internal/dnsrecord"
	"dnsmanager/internal/metrics"
	"dnsmanager/internal/model"
)

type AuditLog interface {
	LogEvent(ev audit.Event) error
}

// Actor is who performs an operation, as recorded in the audit log.
type Actor struct {
	Username string
	IP       string
}

func (a Actor) event(ev audit.Event) audit.Event {
	return ev.WithIP(a.IP)
}

// Operations runs backend calls on behalf of an actor and records every
// state-changing call in the audit log, whatever its outcome.
type Operations struct {
	backend ZoneBackend
	events  AuditLog
	log     *logrus.Entry
}

func NewOperations(backend ZoneBackend, events AuditLog, log *logrus.Entry) *Operations {
	return &Operations{backend: backend, events: events, log: log.WithField("component", "operations")}
}

// Audit writes ev. A failed write is logged and never fails the operation.
func (o *Operations) Audit(ev audit.Event) {
	metrics.OperationsTotal.WithLabelValues(string(ev.Action), string(ev.Status)).Inc()
	if err := o.events.LogEvent(ev); err != nil {
		o.log.WithError(err).WithField("action", ev.Action).Error("failed to write audit event")
	}
}

func (o *Operations) ListZones(ctx context.Context) ([]model.Zone, error) {
	return o.backend.ListZones(ctx)
}

func (o *Operations) GetRecords(ctx context.Context, file string) (model.ZoneData, error) {
	return o.backend.GetRecords(ctx, file)
}

func (o *Operations) CreateZone(ctx context.Context, actor Actor, nz model.NewZone) (model.Zone, error) {
	z, err := o.backend.CreateZone(ctx, nz)
	o.Audit(actor.event(audit.Outcome(actor.Username, audit.ActionCreateZone, err)).
		WithZone(nz.Name).
		WithDetails(map[string]any{
			"type":               nz.Type,
			"file":               z.File,
			"allow_transfer_ips": nz.AllowTransferIPs,
			"also_notify_ips":    nz.AlsoNotifyIPs,
		}))
	return z, err
}

func (o *Operations) AddRecord(ctx context.Context, actor Actor, file string, rec dnsrecord.Record) (model.Serial, error) {
	serial, err := o.backend.AddRecord(ctx, file, rec)
	o.Audit(actor.event(audit.Outcome(actor.Username, audit.ActionAddRecord, err)).
		WithZone(file).
		WithRecordType(string(rec.Type())).
		WithDetails(rec))
	return serial, err
}

func (o *Operations) UpdateRecord(ctx context.Context, actor Actor, file string, old, updated dnsrecord.Record) (model.Serial, error) {
	serial, err := o.backend.UpdateRecord(ctx, file, old, updated)
	o.Audit(actor.event(audit.Outcome(actor.Username, audit.ActionUpdateRecord, err)).
		WithZone(file).
		WithRecordType(string(updated.Type())).
		WithDetails(map[string]dnsrecord.Record{"old": old, "new": updated}))
	return serial, err
}

func (o *Operations) DeleteRecord(ctx context.Context, actor Actor, file string, rec dnsrecord.Record) (model.Serial, error) {
	serial, err := o.backend.DeleteRecord(ctx, file, rec)
	o.Audit(actor.event(audit.Outcome(actor.Username, audit.ActionDeleteRecord, err)).
		WithZone(file).
		WithRecordType(string(rec.Type())).
		WithDetails(rec))
	return serial, err
}

func (o *Operations) ReloadZone(ctx context.Context, actor Actor, name string) error {
	attempts, err := o.backend.ReloadZone(ctx, name)
	o.Audit(actor.event(audit.Outcome(actor.Username, audit.ActionReloadZone, err)).
		WithZone(name).
		WithDetails(map[string]int{"attempt": attempts}))
	return err
}

func (o *Operations) ValidateZone(ctx context.Context, actor Actor, name string) (model.ZoneCheck, error) {
	check, err := o.backend.ValidateZone(ctx, name)
	ev := audit.Outcome(actor.Username, audit.ActionValidateZone, err)
	if err == nil && !check.Valid {
		ev = audit.Failure(actor.Username, audit.ActionValidateZone, "Zone "+check.Zone+" has errors")
	}
	o.Audit(actor.event(ev).
		WithZone(name).
		WithDetails(map[string]int{"errors": len(check.Errors)}))
	return check, err
}

func (o *Operations) Restart(ctx context.Context, actor Actor) error {
	err := o.backend.Restart(ctx)
	o.Audit(actor.event(audit.Outcome(actor.Username, audit.ActionRestartService, err)))
	return err
}
