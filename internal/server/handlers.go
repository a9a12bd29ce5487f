package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/roofing-insights/internal/insight"
	"github.com/sells-group/roofing-insights/internal/model"
	"github.com/sells-group/roofing-insights/internal/report"
)

const maxBodyBytes = 1 << 16

type insightsRequest struct {
	Scope  string `json:"scope"`
	Locale string `json:"locale"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	body := map[string]any{"error": code}
	if message != "" {
		body["message"] = message
	}
	writeJSON(w, status, body)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status": "ok",
		"uptime": time.Since(s.startTime).Round(time.Second).String(),
	}
	if s.circuit != nil {
		resp["ai_circuit"] = s.circuit()
	}

	status := http.StatusOK
	if s.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := s.pinger.Ping(ctx); err != nil {
			zap.L().Warn("server: health check failed", zap.Error(err))
			resp["status"] = "degraded"
			resp["store"] = "unreachable"
			status = http.StatusServiceUnavailable
		} else {
			resp["store"] = "ok"
		}
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	var req insightsRequest
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation", "unreadable body")
		return
	}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, http.StatusBadRequest, "validation", "invalid JSON: "+err.Error())
			return
		}
	}

	resp, ok := s.run(w, r, req)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := insightsRequest{Scope: q.Get("scope"), Locale: q.Get("locale")}

	resp, ok := s.run(w, r, req)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := report.WriteXLSX(&buf, resp); err != nil {
		zap.L().Error("server: render report", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "")
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="insights-`+resp.Context.Date+`.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// run resolves the scope, executes the pipeline and writes any error
// response. It reports whether the caller should write the success body.
func (s *Server) run(w http.ResponseWriter, r *http.Request, req insightsRequest) (*model.InsightResponse, bool) {
	id := IdentityFromContext(r.Context())
	if id == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "")
		return nil, false
	}

	scope := model.Scope(req.Scope)
	if req.Scope == "" {
		scope = id.DefaultScope()
	}

	resp, err := s.runner.Run(r.Context(), insight.Request{
		Identity: id,
		Scope:    scope,
		Locale:   model.Locale(req.Locale),
	})
	if err != nil {
		s.writeRunError(w, r, err)
		return nil, false
	}
	return resp, true
}

func (s *Server) writeRunError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		rl *insight.RateLimitedError
		ve *insight.ValidationError
	)
	switch {
	case errors.Is(err, insight.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "unauthorized", "")
	case errors.Is(err, insight.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", "")
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, "validation", ve.Field+" "+ve.Message)
	case errors.As(err, &rl):
		w.Header().Set("Retry-After", strconv.Itoa(rl.RetryAfterSeconds))
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"error":             "rate_limited",
			"retryAfterSeconds": rl.RetryAfterSeconds,
		})
	case errors.Is(err, context.Canceled):
		// Client went away; nothing useful to write.
		zap.L().Debug("server: request cancelled", zap.String("path", r.URL.Path))
	default:
		zap.L().Error("server: insight request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal", "")
	}
}
