package services

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/bimakw/lp-zapper/internal/domain/entities"
	"github.com/bimakw/lp-zapper/internal/infrastructure/cache"
	"github.com/bimakw/lp-zapper/internal/infrastructure/metrics"
)

// FeeService owns the protocol fee configuration.
// It is constructed empty and configured once through Initialize or Load.
type FeeService struct {
	mu      sync.RWMutex
	cfg     *entities.FeeConfig
	store   cache.ConfigStore
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewFeeService creates an uninitialized fee service
func NewFeeService(store cache.ConfigStore, logger *zap.Logger, m *metrics.Metrics) *FeeService {
	if store == nil {
		store = cache.NewInMemoryConfigStore()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeeService{
		store:   store,
		logger:  logger,
		metrics: m,
	}
}

// Load restores a previously stored configuration, migrating older layouts.
// It reports false when the store is empty.
func (s *FeeService) Load(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx)
}

func (s *FeeService) loadLocked(ctx context.Context) (bool, error) {
	if s.cfg != nil {
		return true, nil
	}

	stored, err := s.store.LoadFeeConfig(ctx)
	if err != nil {
		return false, err
	}
	if stored == nil {
		return false, nil
	}

	migrated, changed, err := migrateFeeConfig(stored)
	if err != nil {
		return false, err
	}
	if changed {
		if err := s.store.SaveFeeConfig(ctx, migrated); err != nil {
			return false, fmt.Errorf("failed to save migrated fee config: %w", err)
		}
		s.logger.Info("fee config migrated",
			zap.Uint64("schema_version", migrated.SchemaVersion))
	}

	s.cfg = migrated
	return true, nil
}

// Initialize sets the owner, the fee recipients and the starting rate.
// It can only run once per stored configuration.
func (s *FeeService) Initialize(ctx context.Context, owner, treasury, dev common.Address, rate uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	loaded, err := s.loadLocked(ctx)
	if err != nil {
		return err
	}
	if loaded {
		return ErrAlreadyInitialized
	}

	if owner == (common.Address{}) {
		return fmt.Errorf("%w: owner is the zero address", ErrInvalidFeeConfig)
	}
	if treasury == (common.Address{}) {
		return fmt.Errorf("%w: treasury is the zero address", ErrInvalidFeeConfig)
	}

	cfg := &entities.FeeConfig{
		Rate:          rate,
		Scale:         entities.FeeScale,
		Treasury:      treasury,
		Dev:           dev,
		Owner:         owner,
		Version:       1,
		SchemaVersion: entities.FeeConfigSchemaVersion,
	}
	if cfg.ExceedsScale() {
		s.logger.Warn("fee rate takes the whole input", zap.Uint64("rate", rate), zap.Uint64("scale", cfg.Scale))
	}

	if err := s.store.SaveFeeConfig(ctx, cfg); err != nil {
		return fmt.Errorf("failed to save fee config: %w", err)
	}
	s.cfg = cfg

	s.logger.Info("fee service initialized",
		zap.String("owner", owner.Hex()),
		zap.String("treasury", treasury.Hex()),
		zap.Uint64("rate", rate))
	return nil
}

// Config returns a copy of the current configuration
func (s *FeeService) Config(ctx context.Context) (entities.FeeConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cfg == nil {
		return entities.FeeConfig{}, ErrNotInitialized
	}
	return *s.cfg, nil
}

// QuoteFee returns the fee charged on amount at the current rate
func (s *FeeService) QuoteFee(ctx context.Context, amount *big.Int) (*big.Int, error) {
	cfg, err := s.Config(ctx)
	if err != nil {
		return nil, err
	}
	return cfg.QuoteFee(amount), nil
}

// UpdateFeeRate changes the rate; only the owner may call it
func (s *FeeService) UpdateFeeRate(ctx context.Context, caller common.Address, rate uint64) (entities.FeeConfig, error) {
	return s.updateFeeRate(ctx, caller, rate, nil)
}

// UpdateFeeRateAt is UpdateFeeRate guarded by the version the caller last saw
func (s *FeeService) UpdateFeeRateAt(ctx context.Context, caller common.Address, rate, version uint64) (entities.FeeConfig, error) {
	return s.updateFeeRate(ctx, caller, rate, &version)
}

func (s *FeeService) updateFeeRate(ctx context.Context, caller common.Address, rate uint64, expected *uint64) (entities.FeeConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cfg == nil {
		return entities.FeeConfig{}, ErrNotInitialized
	}
	if caller != s.cfg.Owner {
		return entities.FeeConfig{}, ErrUnauthorized
	}
	if expected != nil && *expected != s.cfg.Version {
		return entities.FeeConfig{}, fmt.Errorf("%w: have %d, got %d", ErrVersionConflict, s.cfg.Version, *expected)
	}

	next := *s.cfg
	next.Rate = rate
	next.Version++
	if next.ExceedsScale() {
		s.logger.Warn("fee rate takes the whole input", zap.Uint64("rate", rate), zap.Uint64("scale", next.Scale))
	}

	if err := s.store.SaveFeeConfig(ctx, &next); err != nil {
		return entities.FeeConfig{}, fmt.Errorf("failed to save fee config: %w", err)
	}

	previous := s.cfg.Rate
	s.cfg = &next
	s.metrics.FeeUpdated()
	s.logger.Info("fee rate updated",
		zap.Uint64("previous", previous),
		zap.Uint64("rate", rate),
		zap.Uint64("version", next.Version))
	return next, nil
}

// migrateFeeConfig upgrades a stored configuration to the current schema
func migrateFeeConfig(cfg *entities.FeeConfig) (*entities.FeeConfig, bool, error) {
	out := *cfg
	if out.SchemaVersion > entities.FeeConfigSchemaVersion {
		return nil, false, fmt.Errorf("fee config schema %d is newer than supported %d", out.SchemaVersion, entities.FeeConfigSchemaVersion)
	}

	changed := false
	for out.SchemaVersion < entities.FeeConfigSchemaVersion {
		switch out.SchemaVersion {
		case 0:
			// schema 0 predates the explicit scale
			if out.Scale == 0 {
				out.Scale = entities.FeeScale
			}
			if out.Version == 0 {
				out.Version = 1
			}
		}
		out.SchemaVersion++
		changed = true
	}
	return &out, changed, nil
}
