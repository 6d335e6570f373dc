package services

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/bimakw/lp-zapper/internal/domain/entities"
	"github.com/bimakw/lp-zapper/internal/infrastructure/dex"
	"github.com/bimakw/lp-zapper/internal/infrastructure/events"
	"github.com/bimakw/lp-zapper/internal/infrastructure/logger"
	"github.com/bimakw/lp-zapper/internal/infrastructure/metrics"
)

const tracerName = "zapper"

const (
	// DefaultDeadlineWindow is added to the block time when a request has no deadline
	DefaultDeadlineWindow = 20 * time.Minute

	// DefaultSlippageBps is used by Preview when the caller gives none (0.5%)
	DefaultSlippageBps uint64 = 50

	maxBps uint64 = 10000
)

// Core is the immutable part of the engine set at construction
type Core struct {
	// Self is the engine's own account; it holds funds only during a zap
	Self           common.Address
	DefaultRouter  common.Address
	DeadlineWindow time.Duration
	SlippageBps    uint64
}

// ZapService runs the zap pipeline
type ZapService struct {
	core      Core
	chain     dex.Chain
	reader    dex.Reader
	fees      *FeeService
	guard     *ReentrancyGuard
	compat    *CompatibilityValidator
	swaps     *SwapAdapter
	composer  *LiquidityComposer
	publisher events.Publisher
	registry  *entities.TokenRegistry
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// ZapOption configures a ZapService
type ZapOption func(*ZapService)

// WithFeeService enables the protocol fee; without it zaps are fee-free
func WithFeeService(fees *FeeService) ZapOption {
	return func(s *ZapService) { s.fees = fees }
}

func WithPublisher(p events.Publisher) ZapOption {
	return func(s *ZapService) { s.publisher = p }
}

func WithMetrics(m *metrics.Metrics) ZapOption {
	return func(s *ZapService) { s.metrics = m }
}

func WithLogger(l *zap.Logger) ZapOption {
	return func(s *ZapService) { s.logger = l }
}

// WithReader sets the reader Preview uses; it defaults to the chain when the chain can read
func WithReader(r dex.Reader) ZapOption {
	return func(s *ZapService) { s.reader = r }
}

func WithRegistry(r *entities.TokenRegistry) ZapOption {
	return func(s *ZapService) { s.registry = r }
}

// WithClock sets the time source used for default deadlines
func WithClock(now func() time.Time) ZapOption {
	return func(s *ZapService) { s.now = now }
}

// NewZapService builds the engine. chain may be nil for a preview-only engine.
func NewZapService(core Core, chain dex.Chain, opts ...ZapOption) (*ZapService, error) {
	if core.DefaultRouter == (common.Address{}) {
		return nil, ErrInvalidRouter
	}
	if core.Self == (common.Address{}) {
		return nil, errors.New("engine address is the zero address")
	}
	if core.DeadlineWindow <= 0 {
		core.DeadlineWindow = DefaultDeadlineWindow
	}
	if core.SlippageBps == 0 || core.SlippageBps > maxBps {
		core.SlippageBps = DefaultSlippageBps
	}

	s := &ZapService{
		core:     core,
		chain:    chain,
		guard:    NewReentrancyGuard(),
		compat:   NewCompatibilityValidator(),
		swaps:    NewSwapAdapter(),
		composer: NewLiquidityComposer(),
		registry: entities.NewTokenRegistry(),
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	if r, ok := chain.(dex.Reader); ok {
		s.reader = r
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Self returns the engine's account
func (s *ZapService) Self() common.Address {
	return s.core.Self
}

// DefaultRouter returns the router used when a caller names none
func (s *ZapService) DefaultRouter() common.Address {
	return s.core.DefaultRouter
}

// QuoteFeeAmount returns the fee a zap of amount would pay
func (s *ZapService) QuoteFeeAmount(ctx context.Context, amount *big.Int) (*big.Int, error) {
	if s.fees == nil {
		return big.NewInt(0), nil
	}
	return s.fees.QuoteFee(ctx, amount)
}

// ZapInWithPath converts TokenIn into LP of Pair along two swap paths
func (s *ZapService) ZapInWithPath(ctx context.Context, req *entities.ZapRequest) (*entities.ZapResult, error) {
	return s.execute(ctx, req, entities.ZapTwoPath)
}

// ZapInWithSinglePath zaps a pair constituent: half is kept, half is swapped along one path
func (s *ZapService) ZapInWithSinglePath(ctx context.Context, req *entities.ZapRequest) (*entities.ZapResult, error) {
	return s.execute(ctx, req, entities.ZapSinglePath)
}

func (s *ZapService) execute(ctx context.Context, req *entities.ZapRequest, variant entities.ZapVariant) (*entities.ZapResult, error) {
	start := time.Now()
	ctx, span := logger.StartSpan(ctx, tracerName, "zap."+string(variant))
	defer span.End()
	log := logger.WithTrace(ctx, s.logger)

	result, committed, err := s.run(ctx, req, variant)
	s.metrics.ObserveZap(string(variant), ErrorCode(err), time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, ErrorCode(err))
		log.Warn("zap aborted",
			zap.String("variant", string(variant)),
			zap.String("code", ErrorCode(err)),
			zap.Error(err))
		return nil, err
	}

	span.SetAttributes(
		attribute.String("zap.id", result.ID),
		attribute.String("zap.pair", result.Pair.Hex()),
	)
	log.Info("zap completed",
		zap.String("id", result.ID),
		zap.String("variant", string(variant)),
		zap.String("caller", result.Caller.Hex()),
		zap.String("pair", result.Pair.Hex()),
		zap.Stringer("amount_in", result.AmountIn),
		zap.Stringer("fee", result.Fee),
		zap.Stringer("liquidity", result.Liquidity),
		zap.Duration("elapsed", time.Since(start)))

	// joined transactions are settled, and announced, by their owner
	if committed && s.publisher != nil {
		if err := s.publisher.PublishZapCompleted(ctx, result.Event(s.now())); err != nil {
			log.Warn("failed to publish zap event", zap.String("id", result.ID), zap.Error(err))
		}
	}
	return result, nil
}

// run executes the pipeline inside a transaction. committed is true when this
// call opened the transaction and committed it.
func (s *ZapService) run(ctx context.Context, req *entities.ZapRequest, variant entities.ZapVariant) (*entities.ZapResult, bool, error) {
	if s.chain == nil {
		return nil, false, errors.New("zap execution requires a chain backend")
	}

	ctx, tx, owned, err := dex.Begin(ctx, s.chain)
	if err != nil {
		return nil, false, err
	}

	key := "zap:" + s.core.Self.Hex()
	if err := s.guard.Lock(key); err != nil {
		if owned {
			tx.Rollback()
		}
		return nil, false, err
	}
	result, err := s.zap(ctx, tx, req, variant)
	s.guard.Unlock(key)

	if !owned {
		return result, false, err
	}
	if err != nil {
		tx.Rollback()
		return nil, false, err
	}
	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit zap: %w", err)
	}
	return result, true, nil
}

func (s *ZapService) zap(ctx context.Context, tx dex.Tx, req *entities.ZapRequest, variant entities.ZapVariant) (*entities.ZapResult, error) {
	if err := stage(ctx, "validate", func(context.Context) error {
		return ValidateRequest(req, variant)
	}); err != nil {
		return nil, err
	}

	var plan *Plan
	if err := stage(ctx, "compatibility", func(ctx context.Context) error {
		var err error
		plan, err = s.compat.Validate(ctx, tx, req, variant)
		return err
	}); err != nil {
		return nil, err
	}

	self := s.core.Self
	watched := watchedTokens(req.TokenIn, plan.Pair)
	before, err := snapshot(ctx, tx, self, watched)
	if err != nil {
		return nil, err
	}

	var fee, net *big.Int
	if err := stage(ctx, "fee", func(ctx context.Context) error {
		fee, net, err = s.collect(ctx, tx, req)
		return err
	}); err != nil {
		return nil, err
	}

	deadline := req.Deadline
	if deadline == 0 {
		deadline = uint64(s.blockTime().Add(s.core.DeadlineWindow).Unix())
	}

	var swaps [2]entities.SwapOutcome
	if err := stage(ctx, "swap", func(ctx context.Context) error {
		lead := 0
		if variant == entities.ZapSinglePath {
			lead = -1
		}
		first, second := SplitAmount(net)
		for side, leg := range plan.Legs {
			amount := second
			if leg.PathIndex == lead {
				amount = first
			}
			var minOut *big.Int
			if leg.PathIndex >= 0 {
				minOut = req.MinAmountOut(leg.PathIndex)
			}
			out, err := s.swaps.Execute(ctx, tx, SwapLeg{
				Self:     self,
				Router:   req.Router,
				Leg:      leg,
				AmountIn: amount,
				MinOut:   minOut,
				Deadline: deadline,
			})
			if err != nil {
				return err
			}
			swaps[side] = out
		}
		return nil
	}); err != nil {
		return nil, err
	}

	var composed *Composition
	if err := stage(ctx, "compose", func(ctx context.Context) error {
		var err error
		composed, err = s.composer.Compose(ctx, tx, Deposit{
			Self:      self,
			Recipient: req.Caller,
			Router:    req.Router,
			Pair:      plan.Pair,
			Amount0:   swaps[0].AmountOut,
			Amount1:   swaps[1].AmountOut,
			Deadline:  deadline,
		})
		return err
	}); err != nil {
		return nil, err
	}

	if req.MinLiquidity != nil && composed.Liquidity.Cmp(req.MinLiquidity) < 0 {
		return nil, fmt.Errorf("%w: minted %s LP, want at least %s", ErrSlippageExceeded, composed.Liquidity, req.MinLiquidity)
	}

	after, err := snapshot(ctx, tx, self, watched)
	if err != nil {
		return nil, err
	}
	for i, token := range watched {
		if before[i].Cmp(after[i]) != 0 {
			return nil, fmt.Errorf("%w: %s went from %s to %s", ErrResidueLeft, token.Hex(), before[i], after[i])
		}
	}

	return &entities.ZapResult{
		ID:        uuid.NewString(),
		Variant:   variant,
		Caller:    req.Caller,
		TokenIn:   req.TokenIn,
		Pair:      req.Pair,
		AmountIn:  new(big.Int).Set(req.AmountIn),
		Fee:       fee,
		NetAmount: net,
		Liquidity: composed.Liquidity,
		Amount0:   composed.Amount0,
		Amount1:   composed.Amount1,
		Refund0:   composed.Refund0,
		Refund1:   composed.Refund1,
		Swaps:     swaps,
	}, nil
}

// collect pulls the input from the caller and pays the protocol fee
func (s *ZapService) collect(ctx context.Context, tx dex.Tx, req *entities.ZapRequest) (*big.Int, *big.Int, error) {
	self := s.core.Self
	fee := big.NewInt(0)
	var treasury common.Address

	if s.fees != nil {
		cfg, err := s.fees.Config(ctx)
		if err != nil {
			return nil, nil, err
		}
		fee = cfg.QuoteFee(req.AmountIn)
		treasury = cfg.Treasury
	}

	net := new(big.Int).Sub(req.AmountIn, fee)
	if net.Sign() <= 0 {
		return nil, nil, fmt.Errorf("%w: nothing left after a fee of %s", ErrInvalidInputAmount, fee)
	}

	if err := tx.TransferFrom(ctx, req.TokenIn, self, req.Caller, self, req.AmountIn); err != nil {
		return nil, nil, external("transferFrom", req.TokenIn, err)
	}
	if fee.Sign() > 0 {
		if err := tx.Transfer(ctx, req.TokenIn, self, treasury, fee); err != nil {
			return nil, nil, external("transfer", req.TokenIn, err)
		}
	}
	return fee, net, nil
}

// Preview estimates a zap without executing it and suggests slippage floors.
// slippageBps 0 uses the engine default.
func (s *ZapService) Preview(ctx context.Context, req *entities.ZapRequest, variant entities.ZapVariant, slippageBps uint64) (*entities.ZapPreview, error) {
	ctx, span := logger.StartSpan(ctx, tracerName, "zap.preview")
	defer span.End()

	if s.reader == nil {
		return nil, errors.New("preview requires a reader")
	}
	if slippageBps == 0 {
		slippageBps = s.core.SlippageBps
	}
	if slippageBps > maxBps {
		return nil, fmt.Errorf("slippage %d exceeds %d bps", slippageBps, maxBps)
	}

	if err := ValidateRequest(req, variant); err != nil {
		return nil, err
	}
	plan, err := s.compat.Validate(ctx, s.reader, req, variant)
	if err != nil {
		return nil, err
	}

	fee, err := s.QuoteFeeAmount(ctx, req.AmountIn)
	if err != nil {
		return nil, err
	}
	net := new(big.Int).Sub(req.AmountIn, fee)
	if net.Sign() <= 0 {
		return nil, fmt.Errorf("%w: nothing left after a fee of %s", ErrInvalidInputAmount, fee)
	}

	lead := 0
	if variant == entities.ZapSinglePath {
		lead = -1
	}
	first, second := SplitAmount(net)

	var legs [2]entities.LegPreview
	p := pool.New().WithErrors().WithContext(ctx)
	for side, leg := range plan.Legs {
		amount := second
		if leg.PathIndex == lead {
			amount = first
		}
		legs[side] = entities.LegPreview{
			PathIndex: leg.PathIndex,
			Path:      leg.Path,
			TokenOut:  leg.Path.Destination(),
			AmountIn:  amount,
		}
		if leg.Direct() {
			legs[side].AmountOut = new(big.Int).Set(amount)
			legs[side].MinAmountOut = new(big.Int).Set(amount)
			continue
		}
		p.Go(func(ctx context.Context) error {
			amounts, err := s.reader.GetAmountsOut(ctx, req.Router, amount, leg.Path)
			if err != nil {
				return external("getAmountsOut", req.Router, err)
			}
			if len(amounts) == 0 {
				return external("getAmountsOut", req.Router, errors.New("empty amounts"))
			}
			out := amounts[len(amounts)-1]
			legs[side].AmountOut = out
			legs[side].MinAmountOut = applySlippage(out, slippageBps)
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}

	minAmounts := make([]*big.Int, len(req.Paths))
	for _, leg := range legs {
		if leg.PathIndex >= 0 {
			minAmounts[leg.PathIndex] = leg.MinAmountOut
		}
	}

	pair := plan.Pair
	pair.Token0 = s.registry.Resolve(pair.Token0.Address)
	pair.Token1 = s.registry.Resolve(pair.Token1.Address)

	return &entities.ZapPreview{
		Variant:       variant,
		TokenIn:       s.registry.Resolve(req.TokenIn),
		Pair:          pair,
		AmountIn:      new(big.Int).Set(req.AmountIn),
		Fee:           fee,
		NetAmount:     net,
		Legs:          legs,
		SlippageBps:   slippageBps,
		MinAmountsOut: minAmounts,
	}, nil
}

func (s *ZapService) blockTime() time.Time {
	if c, ok := s.chain.(interface{ Now() time.Time }); ok {
		return c.Now()
	}
	return s.now()
}

func applySlippage(amount *big.Int, bps uint64) *big.Int {
	out := new(big.Int).Mul(amount, new(big.Int).SetUint64(maxBps-bps))
	return out.Quo(out, new(big.Int).SetUint64(maxBps))
}

// stage runs fn in its own span
func stage(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, span := logger.StartSpan(ctx, tracerName, "zap.stage."+name)
	defer span.End()
	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, ErrorCode(err))
		return err
	}
	return nil
}

// watchedTokens lists every token the engine touches during a zap, without duplicates
func watchedTokens(tokenIn common.Address, pair entities.Pair) []common.Address {
	out := []common.Address{tokenIn}
	for _, t := range []common.Address{pair.Token0.Address, pair.Token1.Address, pair.Address} {
		dup := false
		for _, seen := range out {
			if seen == t {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, t)
		}
	}
	return out
}

func snapshot(ctx context.Context, r dex.Reader, account common.Address, tokens []common.Address) ([]*big.Int, error) {
	out := make([]*big.Int, len(tokens))
	for i, token := range tokens {
		bal, err := r.BalanceOf(ctx, token, account)
		if err != nil {
			return nil, external("balanceOf", token, err)
		}
		out[i] = bal
	}
	return out, nil
}
