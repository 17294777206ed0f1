package api

import (
	"net/http"

	"github.com/fueleu/cbledger/internal/app/compliance"
	"github.com/fueleu/cbledger/internal/domain"
)

// ─── Compliance API ─────────────────────────────────────────────────────────

// handleComputeCBQuery computes and stores a CB from query parameters:
// shipId, year, ghgActual and either fuelConsumption (tonnes, optionally
// with fuelType) or energyMJ.
func (s *Server) handleComputeCBQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	year, err := parseYear(q.Get("year"), true)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	req := compliance.RecordRequest{
		ShipID:   q.Get("shipId"),
		ShipName: q.Get("shipName"),
		Year:     year,
		FuelType: domain.FuelType(q.Get("fuelType")),
	}
	if req.GHGActual, err = parseFloat(q.Get("ghgActual"), "ghgActual"); err != nil {
		s.writeDomainError(w, err)
		return
	}
	if req.FuelTons, err = parseFloat(q.Get("fuelConsumption"), "fuelConsumption"); err != nil {
		s.writeDomainError(w, err)
		return
	}
	if req.EnergyMJ, err = parseFloat(q.Get("energyMJ"), "energyMJ"); err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.recordCB(w, r, req)
}

// handleComputeCB computes and stores a CB from a JSON body.
func (s *Server) handleComputeCB(w http.ResponseWriter, r *http.Request) {
	var req compliance.RecordRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeDomainError(w, err)
		return
	}
	if err := checkYear(req.Year); err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.recordCB(w, r, req)
}

func (s *Server) recordCB(w http.ResponseWriter, r *http.Request, req compliance.RecordRequest) {
	rec, err := s.compliance.Record(r.Context(), req)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"record":      rec,
		"isCompliant": rec.Status.Compliant(),
	})
}

// handleAdjustedCB returns the ship's current records, optionally one year.
func (s *Server) handleAdjustedCB(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	year, err := parseYear(q.Get("year"), false)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	records, err := s.compliance.Adjusted(r.Context(), q.Get("shipId"), year)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if records == nil {
		records = []domain.ComplianceRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"records": records,
		"count":   len(records),
	})
}
