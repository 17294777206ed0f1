package compliance

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/fueleu/cbledger/internal/domain"
	"github.com/fueleu/cbledger/internal/infra/logging"
	"github.com/fueleu/cbledger/internal/infra/observability"
)

// Service computes compliance balances and persists them as the ship's
// current record for the year. Recomputing replaces the previous record.
type Service struct {
	calc   *Calculator
	store  domain.ComplianceStore
	logger *zap.Logger
	tracer *observability.Tracer
}

// NewService creates a compliance service. logger and tracer may be nil.
func NewService(calc *Calculator, store domain.ComplianceStore, logger *zap.Logger, tracer *observability.Tracer) *Service {
	if calc == nil {
		calc = New(nil)
	}
	return &Service{
		calc:   calc,
		store:  store,
		logger: logging.OrNop(logger).Named("compliance"),
		tracer: tracer,
	}
}

// Calculator returns the calculator backing the service.
func (s *Service) Calculator() *Calculator { return s.calc }

// RecordRequest describes one CB computation. Either FuelRecords is set, or
// GHGActual together with EnergyMJ or FuelTons. FuelType refines the
// tonnage conversion; without it the flat MJPerTonne factor applies.
type RecordRequest struct {
	ShipID      string              `json:"shipId"`
	ShipName    string              `json:"shipName,omitempty"`
	Year        int                 `json:"year"`
	GHGActual   *float64            `json:"ghgActual,omitempty"`
	EnergyMJ    *float64            `json:"energyMJ,omitempty"`
	FuelTons    *float64            `json:"fuelTons,omitempty"`
	FuelType    domain.FuelType     `json:"fuelType,omitempty"`
	FuelRecords []domain.FuelRecord `json:"fuelRecords,omitempty"`
	WindFactor  *float64            `json:"windFactor,omitempty"`
}

// Record computes the CB described by req and stores it.
func (s *Service) Record(ctx context.Context, req RecordRequest) (rec domain.ComplianceRecord, err error) {
	span := s.tracer.StartSpan(ctx, "compliance.record", map[string]string{
		"ship_id": req.ShipID,
		"year":    strconv.Itoa(req.Year),
	})
	defer func() { s.tracer.EndSpan(span, err) }()

	rec, err = s.compute(req)
	if err != nil {
		return domain.ComplianceRecord{}, err
	}
	rec.ShipName = strings.TrimSpace(req.ShipName)

	rec, err = s.store.SaveComplianceRecord(ctx, rec)
	if err != nil {
		return domain.ComplianceRecord{}, fmt.Errorf("save compliance record: %w", err)
	}
	observability.CBComputations.WithLabelValues(string(rec.Status)).Inc()
	s.logger.Info("compliance balance recorded",
		zap.String("ship_id", rec.ShipID),
		zap.Int("year", rec.Year),
		zap.Float64("cb", rec.ComplianceBalance),
		zap.String("status", string(rec.Status)),
	)
	return rec, nil
}

func (s *Service) compute(req RecordRequest) (domain.ComplianceRecord, error) {
	if len(req.FuelRecords) > 0 {
		wind := 1.0
		if req.WindFactor != nil {
			wind = *req.WindFactor
		}
		return s.calc.ComputeFromFuel(req.ShipID, req.Year, req.FuelRecords, wind)
	}
	if req.GHGActual == nil {
		return domain.ComplianceRecord{}, domain.Validationf("ghgActual or fuelRecords is required")
	}

	var energy float64
	switch {
	case req.EnergyMJ != nil:
		energy = *req.EnergyMJ
	case req.FuelTons != nil && req.FuelType != "":
		e, err := s.calc.EnergyInScope([]domain.FuelRecord{domain.Tons(req.FuelType, *req.FuelTons)})
		if err != nil {
			return domain.ComplianceRecord{}, err
		}
		energy = e
	case req.FuelTons != nil:
		e, err := s.calc.EnergyFromFuelMass(*req.FuelTons)
		if err != nil {
			return domain.ComplianceRecord{}, err
		}
		energy = e
	default:
		return domain.ComplianceRecord{}, domain.Validationf("energyMJ or fuelTons is required")
	}
	return s.calc.ComputeForYear(req.ShipID, req.Year, *req.GHGActual, energy)
}

// Adjusted returns the ship's current records after banking and pooling.
// year 0 lists every year; a missing record yields an empty slice.
func (s *Service) Adjusted(ctx context.Context, shipID string, year int) ([]domain.ComplianceRecord, error) {
	shipID = strings.TrimSpace(shipID)
	if shipID == "" {
		return nil, domain.Validationf("shipId is required")
	}
	if year == 0 {
		return s.store.ListComplianceRecords(ctx, shipID)
	}
	rec, err := s.store.GetComplianceRecord(ctx, shipID, year)
	if errors.Is(err, domain.ErrNotFound) {
		return []domain.ComplianceRecord{}, nil
	}
	if err != nil {
		return nil, err
	}
	return []domain.ComplianceRecord{rec}, nil
}
