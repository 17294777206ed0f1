package pooling

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

// Store is the persistence the pooling service needs.
type Store interface {
	domain.LedgerStore
	domain.PoolStore
	GetComplianceRecord(ctx context.Context, shipID string, year int) (domain.ComplianceRecord, error)
}

// Service forms pools against stored compliance records.
type Service struct {
	store  Store
	logger *zap.Logger
	tracer *observability.Tracer
}

// NewService creates a pooling service. logger and tracer may be nil.
func NewService(store Store, logger *zap.Logger, tracer *observability.Tracer) *Service {
	return &Service{
		store:  store,
		logger: logging.OrNop(logger).Named("pooling"),
		tracer: tracer,
	}
}

// ShipRef names a ship joining a pool. Its CB comes from the store.
type ShipRef struct {
	ShipID   string `json:"shipId"`
	ShipName string `json:"shipName,omitempty"`
}

// Request asks for a pool of ships for one year.
type Request struct {
	Year  int       `json:"year"`
	Ships []ShipRef `json:"ships"`
}

// Result is a committed pool and the allocation that produced it.
type Result struct {
	Pool       domain.Pool `json:"pool"`
	Allocation Allocation  `json:"allocation"`
}

// Preview is an allocation that was not persisted.
type Preview struct {
	Allocation Allocation `json:"allocation"`
	Stats      Stats      `json:"stats"`
}

// Create reads each ship's current CB, allocates, and commits the pool with
// every member's new CB in one transaction. An invalid allocation is a
// domain.ErrPooling error and changes nothing.
func (s *Service) Create(ctx context.Context, req Request) (res Result, err error) {
	span := s.tracer.StartSpan(ctx, "pool.create", map[string]string{
		"year":    strconv.Itoa(req.Year),
		"members": strconv.Itoa(len(req.Ships)),
	})
	defer func() {
		s.tracer.EndSpan(span, err)
		observability.PoolCreations.WithLabelValues(observability.Outcome(err)).Inc()
	}()

	if err := validateRefs(req.Ships); err != nil {
		return Result{}, err
	}

	err = s.store.WithTx(ctx, func(tx domain.Tx) error {
		members, err := loadMembers(ctx, tx.GetComplianceRecord, req)
		if err != nil {
			return err
		}
		alloc, err := Allocate(members)
		if err != nil {
			return err
		}
		if err := alloc.Err(); err != nil {
			return err
		}

		pool, err := tx.InsertPool(ctx, domain.Pool{
			Year:            req.Year,
			TotalInitialCB:  alloc.TotalInitialCB,
			TotalAdjustedCB: alloc.TotalAdjustedCB,
			Members:         alloc.PoolMembers(),
		})
		if err != nil {
			return err
		}
		for _, m := range alloc.Members {
			if err := tx.UpdateComplianceBalance(ctx, m.ShipID, req.Year, m.AdjustedCB); err != nil {
				return fmt.Errorf("update member %s: %w", m.ShipID, err)
			}
		}
		res = Result{Pool: pool, Allocation: alloc}
		return nil
	})
	if err != nil {
		s.logger.Debug("pool refused", zap.Int("year", req.Year), zap.Error(err))
		return Result{}, err
	}

	observability.PoolSize.Observe(float64(len(res.Pool.Members)))
	s.logger.Info("pool created",
		zap.String("pool_id", res.Pool.ID),
		zap.Int("year", req.Year),
		zap.Int("members", len(res.Pool.Members)),
		zap.Float64("total_cb", res.Allocation.TotalInitialCB),
	)
	return res, nil
}

// PreviewStored allocates against the ships' stored CB without persisting.
func (s *Service) PreviewStored(ctx context.Context, req Request) (Preview, error) {
	if err := validateRefs(req.Ships); err != nil {
		return Preview{}, err
	}
	members, err := loadMembers(ctx, s.store.GetComplianceRecord, req)
	if err != nil {
		return Preview{}, err
	}
	return PreviewMembers(members)
}

// PreviewMembers allocates caller-supplied balances. Nothing is read or written.
func PreviewMembers(members []Member) (Preview, error) {
	alloc, err := Allocate(members)
	if err != nil {
		return Preview{}, err
	}
	return Preview{Allocation: alloc, Stats: ComputeStats(members)}, nil
}

// Get returns a committed pool.
func (s *Service) Get(ctx context.Context, id string) (domain.Pool, error) {
	if strings.TrimSpace(id) == "" {
		return domain.Pool{}, domain.Validationf("pool id is required")
	}
	return s.store.GetPool(ctx, id)
}

// List returns the year's pools, or every pool when year is 0.
func (s *Service) List(ctx context.Context, year int) ([]domain.Pool, error) {
	return s.store.ListPools(ctx, year)
}

type recordGetter func(ctx context.Context, shipID string, year int) (domain.ComplianceRecord, error)

func loadMembers(ctx context.Context, get recordGetter, req Request) ([]Member, error) {
	members := make([]Member, 0, len(req.Ships))
	for _, ref := range req.Ships {
		id := strings.TrimSpace(ref.ShipID)
		rec, err := get(ctx, id, req.Year)
		if err != nil {
			return nil, err
		}
		name := ref.ShipName
		if name == "" {
			name = rec.ShipName
		}
		members = append(members, Member{ShipID: id, ShipName: name, CB: rec.ComplianceBalance})
	}
	return members, nil
}

func validateRefs(refs []ShipRef) error {
	members := make([]Member, len(refs))
	for i, r := range refs {
		members[i] = Member{ShipID: r.ShipID}
	}
	return Validate(members)
}
