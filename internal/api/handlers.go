package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Imziyasser00/calis-blog-sub001/internal/analytics"
	"github.com/Imziyasser00/calis-blog-sub001/internal/subscribe"
	"github.com/Imziyasser00/calis-blog-sub001/internal/track"
)

var ogNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

type subscribeRequest struct {
	Email string `json:"email"`
}

type subscribeResponse struct {
	OK    bool   `json:"ok"`
	ID    string `json:"id,omitempty"`
	Error string `json:"error,omitempty"`
}

type trackResponse struct {
	OK      bool                        `json:"ok"`
	Error   string                      `json:"error,omitempty"`
	Details *analytics.TrackDiagnostics `json:"details,omitempty"`
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyzTimeout)
	defer cancel()
	var failing []string
	for name, p := range s.deps.Readiness {
		if err := p.Ping(ctx); err != nil {
			s.logger.Warn("readiness check failed", zap.String("dependency", name), zap.Error(err))
			failing = append(failing, name)
		}
	}
	if len(failing) > 0 {
		sort.Strings(failing)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "failing": failing})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.logger.Debug("subscribe body rejected", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, subscribeResponse{Error: "Invalid email"})
		return
	}
	res, err := s.deps.Subscriber.Subscribe(r.Context(), subscribe.Input{
		Email:     req.Email,
		ClientIP:  s.clientIP(r),
		UserAgent: r.UserAgent(),
	})
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, subscribeResponse{OK: true, ID: res.ID})
	case errors.Is(err, analytics.ErrInvalidInput):
		s.logger.Debug("subscribe rejected", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, subscribeResponse{Error: "Invalid email"})
	default:
		s.logger.Error("subscribe failed", zap.String("request_id", requestID(r.Context())), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, subscribeResponse{Error: "Server error"})
	}
}

func (s *Server) track(w http.ResponseWriter, r *http.Request) {
	var in track.Input
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&in); err != nil {
		s.logger.Debug("track body rejected", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, trackResponse{Error: "Invalid payload", Details: &analytics.TrackDiagnostics{}})
		return
	}
	_, err := s.deps.Tracker.Track(r.Context(), in)
	var vErr *analytics.TrackValidationError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, trackResponse{OK: true})
	case errors.As(err, &vErr):
		s.logger.Debug("track rejected", zap.Any("details", vErr.Details))
		writeJSON(w, http.StatusBadRequest, trackResponse{Error: "Invalid payload", Details: &vErr.Details})
	default:
		s.logger.Error("track failed", zap.String("request_id", requestID(r.Context())), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, trackResponse{Error: "Server error"})
	}
}

func (s *Server) ogImage(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !ogNamePattern.MatchString(name) || strings.Contains(name, "..") || s.deps.Images == nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	obj, err := s.deps.Images.GetObject(r.Context(), path.Join(s.cfg.Storage.OGPrefix, name))
	if err != nil {
		if errors.Is(err, analytics.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		s.logger.Error("og image read failed", zap.String("name", name), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}
	defer obj.Body.Close() //nolint:errcheck // read-only body

	contentType := obj.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", ogCacheControl)
	if obj.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, obj.Body); err != nil {
		s.logger.Warn("og image write failed", zap.String("name", name), zap.Error(err))
	}
}

func (s *Server) clientIP(r *http.Request) string {
	return clientIP(r, s.cfg.Server.TrustedProxyHops)
}

// clientIP returns the address seen by the outermost trusted proxy: the
// X-Forwarded-For entry hops positions from the right. Entries further left
// are client-supplied and ignored. With no trusted hops, or no header, the
// peer address is used.
func clientIP(r *http.Request, hops int) string {
	if hops > 0 {
		var chain []string
		for _, header := range r.Header.Values("X-Forwarded-For") {
			for _, hop := range strings.Split(header, ",") {
				if hop = strings.TrimSpace(hop); hop != "" {
					chain = append(chain, hop)
				}
			}
		}
		if len(chain) > 0 {
			return chain[max(len(chain)-hops, 0)]
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func (s *Server) rateLimitKey(r *http.Request) (string, error) {
	return s.clientIP(r), nil
}
