package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fueleu/cbledger/internal/app/pooling"
	"github.com/fueleu/cbledger/internal/domain"
)

// ─── Pools API ──────────────────────────────────────────────────────────────

// previewRequest either names stored ships (Year + Ships) or carries explicit
// balances (Members). Members wins when both are present.
type previewRequest struct {
	pooling.Request
	Members []pooling.Member `json:"members,omitempty"`
}

// handleCreatePool forms a pool from the ships' stored balances.
func (s *Server) handleCreatePool(w http.ResponseWriter, r *http.Request) {
	var req pooling.Request
	if err := decodeJSON(r, &req); err != nil {
		s.writeDomainError(w, err)
		return
	}
	if err := checkYear(req.Year); err != nil {
		s.writeDomainError(w, err)
		return
	}
	res, err := s.pooling.Create(r.Context(), req)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// handlePreviewPool runs the allocation without persisting anything.
func (s *Server) handlePreviewPool(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeDomainError(w, err)
		return
	}

	var (
		preview pooling.Preview
		err     error
	)
	if len(req.Members) > 0 {
		preview, err = pooling.PreviewMembers(req.Members)
	} else {
		if err := checkYear(req.Year); err != nil {
			s.writeDomainError(w, err)
			return
		}
		preview, err = s.pooling.PreviewStored(r.Context(), req.Request)
	}
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

// handleListPools lists committed pools, optionally for one year.
func (s *Server) handleListPools(w http.ResponseWriter, r *http.Request) {
	year, err := parseYear(r.URL.Query().Get("year"), false)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	pools, err := s.pooling.List(r.Context(), year)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if pools == nil {
		pools = []domain.Pool{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"pools": pools,
		"count": len(pools),
	})
}

// handleGetPool returns one pool with its members.
func (s *Server) handleGetPool(w http.ResponseWriter, r *http.Request) {
	pool, err := s.pooling.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pool)
}
