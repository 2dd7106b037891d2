// Package handler exposes the stores over JSON HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/dukerupert/famboard/internal/store"
)

// Refresher tells connected clients that server state changed.
type Refresher interface {
	Refresh(ctx context.Context)
}

// maxBodyBytes bounds request bodies; every payload here is a small form.
const maxBodyBytes = 64 << 10

var textPolicy = bluemonday.StrictPolicy()

// maxCleanPasses bounds how many layers of entity-encoded markup cleanText
// peels off.
const maxCleanPasses = 4

// cleanText strips markup from user-entered text and trims it. The result is
// plain text: entities are decoded, and anything that decodes into markup is
// sanitized again. Input still carrying markup after maxCleanPasses is
// stored in its escaped form.
func cleanText(s string) string {
	for range maxCleanPasses {
		next := html.UnescapeString(textPolicy.Sanitize(s))
		if next == s {
			return strings.TrimSpace(s)
		}
		s = next
	}
	return strings.TrimSpace(textPolicy.Sanitize(s))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeError reports a store error with its specific reason. Anything that is
// not a domain error is logged and hidden behind a generic message.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error, action string) {
	var status int
	switch store.KindOf(err) {
	case store.KindValidation:
		status = http.StatusBadRequest
	case store.KindNotFound:
		status = http.StatusNotFound
	case store.KindConflict:
		status = http.StatusConflict
	case store.KindForbidden:
		status = http.StatusForbidden
	default:
		logger.Error("request failed", "action", action, "error", err)
		writeMessage(w, http.StatusInternalServerError, "failed to "+action)
		return
	}
	writeMessage(w, status, err.Error())
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

func parseIDParam(r *http.Request) (int64, error) {
	return parsePathID(r, "id")
}

func parsePathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return id, nil
}

// notify broadcasts a refresh once a mutation has committed.
func notify(ctx context.Context, r Refresher) {
	if r != nil {
		r.Refresh(context.WithoutCancel(ctx))
	}
}
