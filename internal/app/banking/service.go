package banking

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/fueleu/cbledger/internal/domain"
	"github.com/fueleu/cbledger/internal/infra/logging"
	"github.com/fueleu/cbledger/internal/infra/observability"
)

// Store is the persistence the banking service needs.
type Store interface {
	domain.LedgerStore
	domain.BankStore
}

// Service runs banking operations against a store.
type Service struct {
	store  Store
	logger *zap.Logger
	tracer *observability.Tracer
}

// NewService creates a banking service. logger and tracer may be nil.
func NewService(store Store, logger *zap.Logger, tracer *observability.Tracer) *Service {
	return &Service{
		store:  store,
		logger: logging.OrNop(logger).Named("banking"),
		tracer: tracer,
	}
}

// ─── Deposit ────────────────────────────────────────────────────────────────

// DepositRequest banks part of a ship's surplus for a year.
type DepositRequest struct {
	ShipID string  `json:"shipId"`
	Year   int     `json:"year"`
	Amount float64 `json:"amount"`
}

// DepositResult reports the ledger entry and the record's new CB.
type DepositResult struct {
	Entry     domain.BankEntry `json:"entry"`
	UpdatedCB float64          `json:"updatedCB"`
}

// Deposit banks req.Amount: it appends a +amount entry and lowers the
// record's CB by the same amount in one transaction.
func (s *Service) Deposit(ctx context.Context, req DepositRequest) (res DepositResult, err error) {
	span := s.tracer.StartSpan(ctx, "banking.deposit", map[string]string{
		"ship_id": req.ShipID,
		"year":    strconv.Itoa(req.Year),
	})
	defer func() {
		s.tracer.EndSpan(span, err)
		observability.BankOperations.WithLabelValues("deposit", observability.Outcome(err)).Inc()
	}()

	shipID := strings.TrimSpace(req.ShipID)
	if shipID == "" {
		return DepositResult{}, domain.Validationf("shipId is required")
	}
	if !finite(req.Amount) || req.Amount <= 0 {
		return DepositResult{}, domain.Validationf("Transfer amount must be positive")
	}

	err = s.store.WithTx(ctx, func(tx domain.Tx) error {
		rec, err := tx.GetComplianceRecord(ctx, shipID, req.Year)
		if err != nil {
			return err
		}
		banked, err := Bank(rec.ComplianceBalance, req.Amount)
		if err != nil {
			return err
		}
		entry, err := tx.AppendBankEntry(ctx, shipID, req.Year, banked.TransferredAmount)
		if err != nil {
			return fmt.Errorf("append bank entry: %w", err)
		}
		if err := tx.UpdateComplianceBalance(ctx, shipID, req.Year, banked.UpdatedSourceCB); err != nil {
			return fmt.Errorf("update compliance balance: %w", err)
		}
		res = DepositResult{Entry: entry, UpdatedCB: banked.UpdatedSourceCB}
		return nil
	})
	if err != nil {
		s.logger.Debug("deposit refused", zap.String("ship_id", shipID), zap.Error(err))
		return DepositResult{}, err
	}

	observability.BankedAmount.WithLabelValues("deposit").Observe(req.Amount)
	s.logger.Info("cb banked",
		zap.String("ship_id", shipID),
		zap.Int("year", req.Year),
		zap.Float64("amount", req.Amount),
		zap.Float64("updated_cb", res.UpdatedCB),
	)
	return res, nil
}

// ─── Apply ──────────────────────────────────────────────────────────────────

// ApplyRequest spends a source ship's banked CB on a target ship's record.
type ApplyRequest struct {
	SourceShipID string  `json:"sourceShipId"`
	TargetShipID string  `json:"targetShipId"`
	Year         int     `json:"year"`
	Amount       float64 `json:"amount"`
}

// ApplyResult reports the balances after an apply.
type ApplyResult struct {
	SourceRemaining float64          `json:"sourceRemaining"`
	TargetNewCB     float64          `json:"targetNewCB"`
	Withdrawal      domain.BankEntry `json:"withdrawal"`
	Deposit         domain.BankEntry `json:"deposit"`
}

// ApplyBanked moves req.Amount of the source's banked CB onto the target's
// compliance record for req.Year. The balance check, both ledger entries and
// the CB update commit together or not at all.
func (s *Service) ApplyBanked(ctx context.Context, req ApplyRequest) (res ApplyResult, err error) {
	span := s.tracer.StartSpan(ctx, "banking.apply", map[string]string{
		"source_ship_id": req.SourceShipID,
		"target_ship_id": req.TargetShipID,
		"year":           strconv.Itoa(req.Year),
	})
	defer func() {
		s.tracer.EndSpan(span, err)
		observability.BankOperations.WithLabelValues("apply", observability.Outcome(err)).Inc()
	}()

	source := strings.TrimSpace(req.SourceShipID)
	target := strings.TrimSpace(req.TargetShipID)
	if source == "" || target == "" {
		return ApplyResult{}, domain.Validationf("sourceShipId and targetShipId are required")
	}
	if source == target {
		return ApplyResult{}, domain.Validationf("source and target ship must differ")
	}
	if !finite(req.Amount) || req.Amount <= 0 {
		return ApplyResult{}, domain.Validationf("Banked amount must be positive")
	}

	err = s.store.WithTx(ctx, func(tx domain.Tx) error {
		balance, err := tx.SumBankEntries(ctx, source)
		if err != nil {
			return fmt.Errorf("sum bank entries: %w", err)
		}
		if balance < req.Amount {
			return domain.InsufficientFundsf("Insufficient banked CB. Available: %v, Requested: %v", balance, req.Amount)
		}

		rec, err := tx.GetComplianceRecord(ctx, target, req.Year)
		if err != nil {
			return err
		}
		newCB, err := ApplyBankedToDeficit(rec.ComplianceBalance, req.Amount)
		if err != nil {
			return err
		}

		withdrawal, err := tx.AppendBankEntry(ctx, source, req.Year, -req.Amount)
		if err != nil {
			return fmt.Errorf("append withdrawal: %w", err)
		}
		deposit, err := tx.AppendBankEntry(ctx, target, req.Year, req.Amount)
		if err != nil {
			return fmt.Errorf("append deposit: %w", err)
		}
		if err := tx.UpdateComplianceBalance(ctx, target, req.Year, newCB); err != nil {
			return fmt.Errorf("update compliance balance: %w", err)
		}

		res = ApplyResult{
			SourceRemaining: balance - req.Amount,
			TargetNewCB:     newCB,
			Withdrawal:      withdrawal,
			Deposit:         deposit,
		}
		return nil
	})
	if err != nil {
		s.logger.Debug("apply refused",
			zap.String("source_ship_id", source),
			zap.String("target_ship_id", target),
			zap.Error(err),
		)
		return ApplyResult{}, err
	}

	observability.BankedAmount.WithLabelValues("apply").Observe(req.Amount)
	s.logger.Info("banked cb applied",
		zap.String("source_ship_id", source),
		zap.String("target_ship_id", target),
		zap.Int("year", req.Year),
		zap.Float64("amount", req.Amount),
		zap.Float64("target_new_cb", res.TargetNewCB),
	)
	return res, nil
}

// ─── Records ────────────────────────────────────────────────────────────────

// Statement is a ship's ledger with its derived balance.
type Statement struct {
	ShipID  string             `json:"shipId"`
	Entries []domain.BankEntry `json:"entries"`
	Balance float64            `json:"balance"`
}

// Records returns the ship's bank entries, oldest first, and their sum.
func (s *Service) Records(ctx context.Context, shipID string) (Statement, error) {
	shipID = strings.TrimSpace(shipID)
	if shipID == "" {
		return Statement{}, domain.Validationf("shipId is required")
	}
	entries, err := s.store.ListBankEntries(ctx, shipID)
	if err != nil {
		return Statement{}, fmt.Errorf("list bank entries: %w", err)
	}
	balance, err := s.store.SumBankEntries(ctx, shipID)
	if err != nil {
		return Statement{}, fmt.Errorf("sum bank entries: %w", err)
	}
	return Statement{ShipID: shipID, Entries: entries, Balance: balance}, nil
}
