package handler

import (
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"dnsmanager/internal/model"
	"dnsmanager/internal/service"
)

type ZoneHandler struct {
	ops *service.Operations
	log *logrus.Entry
}

func NewZoneHandler(ops *service.Operations, log *logrus.Entry) *ZoneHandler {
	return &ZoneHandler{ops: ops, log: log.WithField("component", "zones")}
}

func (h *ZoneHandler) List(w http.ResponseWriter, r *http.Request) {
	zones, err := h.ops.ListZones(r.Context())
	if err != nil {
		failErr(w, h.log, err)
		return
	}
	ok(w, http.StatusOK, map[string]any{"zones": zones})
}

func (h *ZoneHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.NewZone
	if !decode(w, r, &req, "Missing name or type") {
		return
	}
	if strings.TrimSpace(req.Name) == "" || req.Type == "" {
		fail(w, http.StatusBadRequest, "Missing name or type")
		return
	}

	z, err := h.ops.CreateZone(r.Context(), actor(r), req)
	if err != nil {
		failErr(w, h.log, err)
		return
	}
	ok(w, http.StatusCreated, map[string]any{
		"message": "Zone " + z.Name + " created",
		"zone":    z,
	})
}
