package handler

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"dnsmanager/internal/dnsrecord"
	"dnsmanager/internal/failure"
	"dnsmanager/internal/service"
)

type RecordHandler struct {
	ops *service.Operations
	log *logrus.Entry
}

func NewRecordHandler(ops *service.Operations, log *logrus.Entry) *RecordHandler {
	return &RecordHandler{ops: ops, log: log.WithField("component", "records")}
}

func (h *RecordHandler) List(w http.ResponseWriter, r *http.Request) {
	zd, err := h.ops.GetRecords(r.Context(), r.PathValue("file"))
	if err != nil {
		failErr(w, h.log, err)
		return
	}
	ok(w, http.StatusOK, map[string]any{"data": zd})
}

func (h *RecordHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Record json.RawMessage `json:"record"`
	}
	if !decode(w, r, &req, "Record data required") {
		return
	}
	rec, err := parseRecord(req.Record)
	if err != nil {
		failErr(w, h.log, err)
		return
	}

	serial, err := h.ops.AddRecord(r.Context(), actor(r), r.PathValue("file"), rec)
	if err != nil {
		failErr(w, h.log, err)
		return
	}
	ok(w, http.StatusCreated, map[string]any{"serial": serial.String()})
}

func (h *RecordHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OldRecord json.RawMessage `json:"old_record"`
		NewRecord json.RawMessage `json:"new_record"`
	}
	if !decode(w, r, &req, "Both old_record and new_record required") {
		return
	}
	if len(req.OldRecord) == 0 || len(req.NewRecord) == 0 {
		fail(w, http.StatusBadRequest, "Both old_record and new_record required")
		return
	}
	old, err := parseRecord(req.OldRecord)
	if err != nil {
		failErr(w, h.log, err)
		return
	}
	updated, err := parseRecord(req.NewRecord)
	if err != nil {
		failErr(w, h.log, err)
		return
	}

	serial, err := h.ops.UpdateRecord(r.Context(), actor(r), r.PathValue("file"), old, updated)
	if err != nil {
		failErr(w, h.log, err)
		return
	}
	ok(w, http.StatusOK, map[string]any{"serial": serial.String()})
}

func (h *RecordHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Record json.RawMessage `json:"record"`
	}
	if !decode(w, r, &req, "Record data required") {
		return
	}
	rec, err := parseRecord(req.Record)
	if err != nil {
		failErr(w, h.log, err)
		return
	}

	serial, err := h.ops.DeleteRecord(r.Context(), actor(r), r.PathValue("file"), rec)
	if err != nil {
		failErr(w, h.log, err)
		return
	}
	ok(w, http.StatusOK, map[string]any{"serial": serial.String()})
}

func (h *RecordHandler) Reload(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("zone")
	if err := h.ops.ReloadZone(r.Context(), actor(r), name); err != nil {
		failErr(w, h.log, err)
		return
	}
	ok(w, http.StatusOK, map[string]any{"message": "Zone reloaded successfully"})
}

// Validate reports the zone's problems in the body; the status stays 200
// whether or not the zone is valid.
func (h *RecordHandler) Validate(w http.ResponseWriter, r *http.Request) {
	check, err := h.ops.ValidateZone(r.Context(), actor(r), r.PathValue("zone"))
	if err != nil {
		failErr(w, h.log, err)
		return
	}
	message := "Zone " + check.Zone + " is valid"
	if !check.Valid {
		message = "Zone " + check.Zone + " has errors"
	}
	ok(w, http.StatusOK, map[string]any{
		"valid":   check.Valid,
		"errors":  check.Errors,
		"message": message,
	})
}

func (h *RecordHandler) Restart(w http.ResponseWriter, r *http.Request) {
	if err := h.ops.Restart(r.Context(), actor(r)); err != nil {
		failErr(w, h.log, err)
		return
	}
	ok(w, http.StatusOK, map[string]any{"message": "Service restarted successfully"})
}

// parseRecord decodes one wire record, naming what is wrong with it.
func parseRecord(raw json.RawMessage) (dnsrecord.Record, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return dnsrecord.Record{}, failure.Validation("Record data required")
	}
	var rec dnsrecord.Record
	if err := json.Unmarshal(raw, &rec); err == nil {
		return rec, nil
	}

	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return dnsrecord.Record{}, failure.Validation("Record data required")
	}
	if probe.Type == "" {
		return dnsrecord.Record{}, failure.Validation("Record type is required")
	}
	if _, known := dnsrecord.ParseType(probe.Type); !known {
		return dnsrecord.Record{}, failure.Validation("Unsupported record type: %s", probe.Type)
	}
	return dnsrecord.Record{}, failure.Validation("Invalid %s record", probe.Type)
}
