package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/withindevelopment-activate/within-the-app-sub000/internal/entity"
	gerr "github.com/withindevelopment-activate/within-the-app-sub000/internal/errors"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/middleware"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/ratelimit"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/report"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/tracking"
)

const maxTrackBody = 64 << 10

// Multipart field names of the report upload.
const (
	fieldOrders          = "orders"
	fieldAnalytics       = "analytics"
	fieldSpendPrefix     = "spend_"
	fieldFrom            = "from"
	fieldTo              = "to"
	fieldInfluencerSpend = "influencer_spend"
)

type errorResponse struct {
	Error     string `json:"error"`
	RequestId string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg, RequestId: w.Header().Get(middleware.RequestIdHeader)})
}

// fail maps an error onto a status code. Only validation and rate-limit
// messages reach the client.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case gerr.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ratelimit.ErrLimited):
		writeError(w, http.StatusTooManyRequests, err.Error())
	default:
		slog.Default().ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path),
			slog.String("request_id", middleware.GetRequestId(r.Context())),
			slog.String("err", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if s.svc.Health != nil {
		if err := s.svc.Health(r.Context()); err != nil {
			slog.Default().ErrorContext(r.Context(), "health check failed", slog.String("err", err.Error()))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) track(w http.ResponseWriter, r *http.Request) {
	if s.svc.Tracker == nil {
		writeError(w, http.StatusServiceUnavailable, "tracking is disabled")
		return
	}

	var req tracking.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxTrackBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed tracking payload")
		return
	}
	req.IP = middleware.GetClientIP(r.Context())
	if req.ClientInfo.UserAgent == "" {
		req.ClientInfo.UserAgent = r.UserAgent()
	}

	if s.svc.Limiter != nil {
		visitorId := strings.TrimSpace(req.VisitorId)
		if err := s.svc.Limiter.CheckTrack(req.IP, visitorId); err != nil {
			fail(w, r, err)
			return
		}
		remaining, _ := s.svc.Limiter.GetTrackLimits(req.IP, visitorId)
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	}

	res, err := s.svc.Tracker.Track(r.Context(), req)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) runReport(w http.ResponseWriter, r *http.Request) {
	if s.svc.Reports == nil {
		writeError(w, http.StatusServiceUnavailable, "reports are disabled")
		return
	}
	if s.svc.Limiter != nil {
		if err := s.svc.Limiter.CheckReport(middleware.GetClientIP(r.Context())); err != nil {
			fail(w, r, err)
			return
		}
	}

	in, err := s.reportInput(w, r)
	if err != nil {
		fail(w, r, err)
		return
	}

	slog.Default().InfoContext(r.Context(), "report requested",
		slog.String("subject", subject(r)),
		slog.String("request_id", middleware.GetRequestId(r.Context())),
	)
	rep, err := s.svc.Reports.Run(r.Context(), in)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// reportInput reads the multipart upload: one file per export and the
// period fields.
func (s *Server) reportInput(w http.ResponseWriter, r *http.Request) (*report.Input, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.c.MaxUploadMB<<20)
	if err := r.ParseMultipartForm(s.c.MaxUploadMB << 20); err != nil {
		return nil, gerr.NewValidation("uploads", "can't read multipart form: %v", err)
	}

	period, err := report.ParsePeriod(r.FormValue(fieldFrom), r.FormValue(fieldTo))
	if err != nil {
		return nil, err
	}
	influencer, err := report.ParseAmount(fieldInfluencerSpend, r.FormValue(fieldInfluencerSpend))
	if err != nil {
		return nil, err
	}
	in := &report.Input{
		Period:          period,
		InfluencerSpend: influencer,
		Spend:           map[entity.Platform]*report.File{},
	}

	for field, headers := range r.MultipartForm.File {
		if len(headers) == 0 {
			continue
		}
		f, err := headers[0].Open()
		if err != nil {
			return nil, gerr.NewValidation(field, "can't open upload: %v", err)
		}
		file, err := report.ReadFile(headers[0].Filename, f)
		f.Close()
		if err != nil {
			return nil, err
		}

		switch {
		case field == fieldOrders:
			in.Orders = file
		case field == fieldAnalytics:
			in.Analytics = file
		case strings.HasPrefix(field, fieldSpendPrefix):
			in.Spend[entity.Platform(strings.TrimPrefix(field, fieldSpendPrefix))] = file
		default:
			return nil, gerr.NewValidation(field, "unexpected upload")
		}
	}
	return in, nil
}

func (s *Server) syncIdentity(w http.ResponseWriter, r *http.Request) {
	if s.svc.Identity == nil {
		writeError(w, http.StatusServiceUnavailable, "identity sync is disabled")
		return
	}
	res, err := s.svc.Identity.Sync(r.Context())
	if err != nil && res == nil {
		fail(w, r, err)
		return
	}
	if err != nil {
		slog.Default().WarnContext(r.Context(), "identity sync finished with errors",
			slog.String("status", res.Status),
			slog.String("err", err.Error()),
		)
	}
	writeJSON(w, http.StatusOK, res)
}
