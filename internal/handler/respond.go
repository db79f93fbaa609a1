package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"dnsmanager/internal/auth"
	"dnsmanager/internal/failure"
	"dnsmanager/internal/service"
	"dnsmanager/internal/util"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// ok writes a success envelope with extra merged in.
func ok(w http.ResponseWriter, status int, extra map[string]any) {
	body := map[string]any{"success": true}
	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, status, body)
}

func fail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}

// failErr answers with the status of err's kind. Errors that are not
// failures are internal and only logged.
func failErr(w http.ResponseWriter, log *logrus.Entry, err error) {
	var f *failure.Failure
	if !errors.As(err, &f) {
		log.WithError(err).Error("request failed")
		fail(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if f.Err != nil {
		log.WithError(f.Err).WithField("kind", f.Kind).Warn(f.Message)
	}
	fail(w, failure.HTTPStatus(f.Kind), f.Message)
}

// decode reads a JSON body into v. It reports false after answering 400.
func decode(w http.ResponseWriter, r *http.Request, v any, msg string) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil || len(body) == 0 || json.Unmarshal(body, v) != nil {
		fail(w, http.StatusBadRequest, msg)
		return false
	}
	return true
}

// actor identifies the authenticated caller for the audit log.
func actor(r *http.Request) service.Actor {
	id, _ := auth.CurrentUser(r.Context())
	return service.Actor{Username: id.Username, IP: util.ClientIP(r)}
}
