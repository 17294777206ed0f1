package api

import (
	"net/http"

	"github.com/fueleu/cbledger/internal/app/banking"
	"github.com/fueleu/cbledger/internal/domain"
)

// ─── Banking API ────────────────────────────────────────────────────────────

// handleBankRecords returns a ship's ledger entries and banked balance.
func (s *Server) handleBankRecords(w http.ResponseWriter, r *http.Request) {
	st, err := s.banking.Records(r.Context(), r.URL.Query().Get("shipId"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if st.Entries == nil {
		st.Entries = []domain.BankEntry{}
	}
	writeJSON(w, http.StatusOK, st)
}

// handleBank banks part of a ship's surplus.
func (s *Server) handleBank(w http.ResponseWriter, r *http.Request) {
	var req banking.DepositRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeDomainError(w, err)
		return
	}
	if err := checkYear(req.Year); err != nil {
		s.writeDomainError(w, err)
		return
	}
	res, err := s.banking.Deposit(r.Context(), req)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// handleApply spends banked CB from one ship on another ship's deficit.
func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	var req banking.ApplyRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeDomainError(w, err)
		return
	}
	if err := checkYear(req.Year); err != nil {
		s.writeDomainError(w, err)
		return
	}
	res, err := s.banking.ApplyBanked(r.Context(), req)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}
