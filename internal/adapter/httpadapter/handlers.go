package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/couchcryptid/overshoot-data-etl/internal/domain"
)

// maxAlignYears bounds the grid a single align request may ask for.
const maxAlignYears = 2000

const maxRequestBody = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

// handleOvershoot serves GET /v1/overshoot?year=&biocapacity=&footprint=.
func (s *Server) handleOvershoot(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	year, err := strconv.Atoi(q.Get("year"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid year %q", q.Get("year")))
		return
	}
	bio, err := strconv.ParseFloat(q.Get("biocapacity"), 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid biocapacity %q", q.Get("biocapacity")))
		return
	}
	fp, err := strconv.ParseFloat(q.Get("footprint"), 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid footprint %q", q.Get("footprint")))
		return
	}

	summary, ok := domain.Summarize(year, bio, fp)
	if !ok {
		s.writeError(w, http.StatusUnprocessableEntity, errors.New("overshoot day is undefined for these values"))
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

// alignRequest carries [year, value] pairs; a null value is a missing sample.
type alignRequest struct {
	Start  int          `json:"start"`
	End    int          `json:"end"`
	Points [][]*float64 `json:"points"`
}

type alignResponse struct {
	Start        int                  `json:"start"`
	End          int                  `json:"end"`
	Points       domain.AlignedSeries `json:"points"`
	Exact        int                  `json:"exact"`
	Interpolated int                  `json:"interpolated"`
	Held         int                  `json:"held"`
	Missing      int                  `json:"missing"`
}

// handleAlign serves POST /v1/align.
func (s *Server) handleAlign(w http.ResponseWriter, r *http.Request) {
	var req alignRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if !domain.ValidYear(req.Start) || !domain.ValidYear(req.End) {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("range %d-%d: years must be between 0 and 9999", req.Start, req.End))
		return
	}
	if req.End >= req.Start && req.End-req.Start >= maxAlignYears {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("range %d-%d exceeds %d years", req.Start, req.End, maxAlignYears))
		return
	}

	samples := make([]domain.Sample, 0, len(req.Points))
	for i, p := range req.Points {
		if len(p) != 2 {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("point %d: want [year, value]", i))
			return
		}
		samples = append(samples, domain.Sample{Year: valueOrNaN(p[0]), Value: valueOrNaN(p[1])})
	}

	series, stats := domain.AlignWithStats(samples, req.Start, req.End)
	s.writeJSON(w, http.StatusOK, alignResponse{
		Start:        req.Start,
		End:          req.End,
		Points:       series,
		Exact:        stats.Exact,
		Interpolated: stats.Interpolated,
		Held:         stats.Held,
		Missing:      stats.Missing,
	})
}

func valueOrNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("write response failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}
