package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/dativo-io/lethe/internal/archive"
	"github.com/dativo-io/lethe/internal/detector"
	"github.com/dativo-io/lethe/internal/engine"
	"github.com/dativo-io/lethe/internal/mapping"
	"github.com/dativo-io/lethe/internal/otel"
	"github.com/dativo-io/lethe/internal/vault"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// decodeBody reads a JSON body of at most s.maxBodyBytes into v.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "too_large", "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON: "+err.Error())
		return false
	}
	return true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.startTime).String(),
	}
	if s.version != "" {
		resp["version"] = s.version
	}
	if r.URL.Query().Get("detail") == "true" {
		components := map[string]string{"detector": "ok"}
		if err := s.engine.Detector().Ready(r.Context()); err != nil {
			components["detector"] = "unavailable"
			resp["status"] = "degraded"
		}
		switch {
		case s.archive == nil:
			components["archive"] = "disabled"
		case s.archive.Ping(r.Context()) != nil:
			components["archive"] = "unavailable"
			resp["status"] = "degraded"
		default:
			components["archive"] = "ok"
		}
		resp["components"] = components
	}
	writeJSON(w, http.StatusOK, resp)
}

type anonymizeRequest struct {
	Text     string `json:"text"`
	Password string `json:"password"`
	Seed     *int64 `json:"seed,omitempty"`
	Archive  bool   `json:"archive,omitempty"`
	Document string `json:"document,omitempty"`
}

type anonymizeResponse struct {
	Text      string          `json:"text"`
	Mapping   string          `json:"mapping"`
	Summary   mapping.Summary `json:"summary"`
	ArchiveID string          `json:"archive_id,omitempty"`
}

func (s *Server) handleAnonymize(w http.ResponseWriter, r *http.Request) {
	var req anonymizeRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.Archive && s.archive == nil {
		writeError(w, http.StatusBadRequest, "archive_disabled", "mapping archive is not enabled on this server")
		return
	}

	ctx := r.Context()
	res, err := s.engine.Anonymize(ctx, req.Text, req.Password, req.Seed)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}

	resp := anonymizeResponse{
		Text:    res.Text,
		Mapping: base64.StdEncoding.EncodeToString(res.Encrypted),
		Summary: res.Summary,
	}
	if req.Archive {
		doc := req.Document
		if doc == "" {
			doc = "api"
		}
		rec, err := s.archive.Save(ctx, doc, res.Summary, res.Encrypted)
		if err != nil {
			log.Error().Err(err).Str("request_id", middleware.GetReqID(ctx)).Msg("mapping_archive_failed")
			writeError(w, http.StatusInternalServerError, "internal", "archiving mapping failed")
			return
		}
		resp.ArchiveID = rec.ID
		log.Info().Str("archive_id", rec.ID).Func(otel.LogTraceFields(ctx)).Msg("mapping_archived")
	}

	log.Info().
		Str("request_id", middleware.GetReqID(ctx)).
		Str("caller", CallerFromContext(ctx)).
		Int("entities", res.Summary.Total()).
		Func(otel.LogTraceFields(ctx)).
		Msg("anonymize_completed")
	writeJSON(w, http.StatusOK, resp)
}

type reverseRequest struct {
	Text      string `json:"text"`
	Mapping   string `json:"mapping,omitempty"`
	ArchiveID string `json:"archive_id,omitempty"`
	Password  string `json:"password"`
}

func (s *Server) handleReverse(w http.ResponseWriter, r *http.Request) {
	var req reverseRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	ctx := r.Context()

	var blob []byte
	switch {
	case req.Mapping != "" && req.ArchiveID != "":
		writeError(w, http.StatusBadRequest, "invalid_request", "send either mapping or archive_id, not both")
		return
	case req.Mapping != "":
		b, err := base64.StdEncoding.DecodeString(req.Mapping)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "mapping must be base64")
			return
		}
		blob = b
	case req.ArchiveID != "":
		if s.archive == nil {
			writeError(w, http.StatusBadRequest, "archive_disabled", "mapping archive is not enabled on this server")
			return
		}
		rec, err := s.archive.Get(ctx, req.ArchiveID)
		if err != nil {
			s.writeArchiveError(w, err)
			return
		}
		blob = rec.Blob
	default:
		writeError(w, http.StatusBadRequest, "invalid_request", "mapping or archive_id is required")
		return
	}

	text, err := s.engine.Reverse(ctx, req.Text, blob, req.Password)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	log.Info().
		Str("request_id", middleware.GetReqID(ctx)).
		Str("caller", CallerFromContext(ctx)).
		Func(otel.LogTraceFields(ctx)).
		Msg("reverse_completed")
	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}

func (s *Server) handleMappingsList(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		writeError(w, http.StatusNotFound, "archive_disabled", "mapping archive is not enabled on this server")
		return
	}
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid_request", "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	records, err := s.archive.List(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "listing mappings failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"mappings": records,
		"count":    len(records),
	})
}

type mappingRecordResponse struct {
	archive.Record
	Mapping string `json:"mapping"`
}

func (s *Server) handleMappingGet(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		writeError(w, http.StatusNotFound, "archive_disabled", "mapping archive is not enabled on this server")
		return
	}
	rec, err := s.archive.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeArchiveError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mappingRecordResponse{
		Record:  *rec,
		Mapping: base64.StdEncoding.EncodeToString(rec.Blob),
	})
}

func (s *Server) handleMappingDelete(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		writeError(w, http.StatusNotFound, "archive_disabled", "mapping archive is not enabled on this server")
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.archive.Delete(r.Context(), id); err != nil {
		s.writeArchiveError(w, err)
		return
	}
	log.Info().Str("archive_id", id).Str("caller", CallerFromContext(r.Context())).Msg("mapping_deleted")
	w.WriteHeader(http.StatusNoContent)
}

// writeEngineError maps engine and vault errors to HTTP responses. Vault
// authentication failures always produce the same message.
func (s *Server) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, engine.ErrEmptyInput):
		writeError(w, http.StatusBadRequest, "empty_input", "text must not be empty")
	case errors.Is(err, vault.ErrEmptyPassword):
		writeError(w, http.StatusBadRequest, "empty_password", "password must not be empty")
	case errors.Is(err, vault.ErrAuthentication):
		writeError(w, http.StatusUnauthorized, "authentication_failed", vault.ErrAuthentication.Error())
	case errors.Is(err, vault.ErrCorruptData):
		writeError(w, http.StatusUnprocessableEntity, "corrupt_mapping", vault.ErrCorruptData.Error())
	case errors.Is(err, detector.ErrDetectorUnavailable):
		writeError(w, http.StatusServiceUnavailable, "detector_unavailable", "person detector is unavailable")
	default:
		log.Error().Err(err).Str("request_id", middleware.GetReqID(r.Context())).Msg("request_failed")
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func (s *Server) writeArchiveError(w http.ResponseWriter, err error) {
	if errors.Is(err, archive.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "archived mapping not found")
		return
	}
	log.Error().Err(err).Msg("archive_query_failed")
	writeError(w, http.StatusInternalServerError, "internal", "archive query failed")
}
