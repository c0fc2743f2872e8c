package app

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"funnel/api/internal/auth"
	"funnel/api/internal/store"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		s.handleReady(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/session/login" {
		var body struct {
			UserID string `json:"userId"`
			Name   string `json:"name"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		result, err := s.service.Login(body.UserID, body.Name)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"token":     result.Token,
			"userId":    result.UserID,
			"userName":  result.Name,
			"expiresAt": result.ExpiresAt,
		})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/session" {
		token := bearerToken(r)
		if token == "" {
			writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "userId": nil})
			return
		}
		session, err := s.service.SessionFromToken(token)
		if err != nil {
			writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "userId": nil})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": true, "userId": session.UserID, "userName": session.Name})
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) < 2 || parts[0] != "api" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	session, ok := s.requireIdentity(w, r)
	if !ok {
		return
	}

	switch parts[1] {
	case "tasks":
		s.handleTasks(w, r, session, parts)
		return
	case "deals":
		s.handleDeals(w, r, session, parts)
		return
	case "contacts":
		if r.Method == http.MethodGet && len(parts) == 2 {
			contacts := s.service.ListContacts(r.Context(), session.UserID, queryInt(r, "limit", 0))
			writeJSON(w, http.StatusOK, map[string]any{
				"contacts": contacts,
				"count":    len(contacts),
				"status":   "success",
			})
			return
		}
	case "stats":
		if r.Method == http.MethodGet && len(parts) == 3 && parts[2] == "summary" {
			summary := s.service.SummaryStatsFor(r.Context(), session.UserID)
			writeJSON(w, http.StatusOK, map[string]any{
				"summary":      summary,
				"generated_at": time.Now().UTC().Format(time.RFC3339),
				"status":       "success",
			})
			return
		}
	case "insights":
		if r.Method == http.MethodGet && len(parts) == 2 {
			insights := s.service.Insights(r.Context(), session.UserID)
			writeJSON(w, http.StatusOK, map[string]any{
				"insights": insights,
				"count":    len(insights),
				"status":   "success",
			})
			return
		}
	case "search":
		if r.Method == http.MethodGet && len(parts) == 2 {
			q := r.URL.Query()
			resp := s.service.Search(r.Context(), session.UserID, q.Get("q"), q.Get("type"), queryInt(r, "limit", 0))
			writeJSON(w, http.StatusOK, resp)
			return
		}
	case "exports":
		s.handleExports(w, r, session, parts)
		return
	case "demo":
		s.handleDemo(w, r, session, parts)
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{
		"database": map[string]any{"status": "ok"},
	}

	if err := s.service.Ping(ctx); err != nil {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
		checks["database"] = map[string]any{
			"status": "error",
			"error":  err.Error(),
		}
	}

	if err := s.service.DemoPing(ctx); err != nil {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
		checks["demo_sessions"] = map[string]any{
			"status": "error",
			"error":  err.Error(),
		}
	}

	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

func (s *HTTPServer) handleTasks(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	if r.Method == http.MethodGet && len(parts) == 2 {
		list, err := s.service.ListTasks(
			r.Context(),
			session.UserID,
			store.TaskStatus(r.URL.Query().Get("status")),
			queryInt(r, "limit", 0),
			r.URL.Query().Get("lastKey"),
		)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		payload := map[string]any{
			"tasks":   list.Page.Items,
			"count":   list.Page.Count,
			"lastKey": list.Page.LastKey,
			"status":  "success",
		}
		if list.Degraded {
			payload["degraded"] = true
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	if r.Method == http.MethodGet && len(parts) == 3 && parts[2] == "today" {
		tasks := s.service.TodaysTasks(r.Context(), session.UserID)
		writeJSON(w, http.StatusOK, map[string]any{
			"tasks":  tasks,
			"count":  len(tasks),
			"status": "success",
		})
		return
	}

	if r.Method == http.MethodGet && len(parts) == 3 {
		task := s.service.GetTask(r.Context(), session.UserID, parts[2])
		if task == nil {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Task not found", nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"task": task, "status": "success"})
		return
	}

	if r.Method == http.MethodPut && len(parts) == 3 {
		var patch store.TaskPatch
		if err := decodeBody(r, &patch); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.UpdateTask(r.Context(), session.UserID, parts[2], patch); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "status": "success"})
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleDeals(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	if r.Method == http.MethodGet && len(parts) == 2 {
		list, err := s.service.ListDeals(
			r.Context(),
			session.UserID,
			store.DealStatus(r.URL.Query().Get("status")),
			queryInt(r, "limit", 0),
			r.URL.Query().Get("lastKey"),
		)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		payload := map[string]any{
			"deals":   list.Page.Items,
			"count":   list.Page.Count,
			"lastKey": list.Page.LastKey,
			"status":  "success",
		}
		if list.Degraded {
			payload["degraded"] = true
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	if r.Method == http.MethodGet && len(parts) == 3 && parts[2] == "hot" {
		deals := s.service.HotDeals(r.Context(), session.UserID)
		writeJSON(w, http.StatusOK, map[string]any{
			"deals":  deals,
			"count":  len(deals),
			"status": "success",
		})
		return
	}

	if r.Method == http.MethodGet && len(parts) == 3 {
		deal := s.service.GetDeal(r.Context(), session.UserID, parts[2])
		if deal == nil {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Deal not found", nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"deal": deal, "status": "success"})
		return
	}

	if r.Method == http.MethodPut && len(parts) == 3 {
		var patch store.DealPatch
		if err := decodeBody(r, &patch); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.UpdateDeal(r.Context(), session.UserID, parts[2], patch); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "status": "success"})
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleExports(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	if r.Method == http.MethodPost && len(parts) == 2 {
		var body struct {
			Kind string `json:"kind"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		obj, err := s.service.CreateExport(r.Context(), session.UserID, body.Kind)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"export": obj, "status": "success"})
		return
	}

	// Export keys contain slashes (user_id/object), so the rest of the
	// path is the key.
	if r.Method == http.MethodGet && len(parts) > 2 {
		key := strings.Join(parts[2:], "/")
		dl, err := s.service.GetExport(r.Context(), session.UserID, key)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		w.Header().Set("Content-Type", dl.ContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", dl.Filename))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(dl.Data)
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleDemo(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	if len(parts) == 3 && parts[2] == "session" {
		switch r.Method {
		case http.MethodPost:
			snap, err := s.service.StartDemo(r.Context(), session.UserID)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusCreated, map[string]any{"session": snap, "status": "success"})
			return
		case http.MethodGet:
			snap, err := s.service.DemoSession(r.Context(), session.UserID)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"session": snap, "status": "success"})
			return
		case http.MethodDelete:
			if err := s.service.ResetDemo(r.Context(), session.UserID); err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true, "status": "success"})
			return
		}
	}

	if r.Method == http.MethodPost && len(parts) == 4 && parts[2] == "session" && parts[3] == "next" {
		snap, err := s.service.ContinueDemo(r.Context(), session.UserID)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"session": snap, "status": "success"})
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

// requireIdentity resolves who the request is for: a bearer token when
// present, otherwise the user_id query parameter the original dashboard
// sends.
func (s *HTTPServer) requireIdentity(w http.ResponseWriter, r *http.Request) (Session, bool) {
	if token := bearerToken(r); token != "" {
		session, err := s.service.SessionFromToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
			return Session{}, false
		}
		return session, true
	}

	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "user_id is required", nil)
		return Session{}, false
	}
	return Session{UserID: userID}, true
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, sql.ErrNoRows) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
