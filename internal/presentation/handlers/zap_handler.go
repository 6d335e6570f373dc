package handlers

import (
	"context"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bimakw/lp-zapper/internal/domain/entities"
	"github.com/bimakw/lp-zapper/internal/domain/services"
	"github.com/bimakw/lp-zapper/internal/infrastructure/dex"
	"github.com/bimakw/lp-zapper/internal/infrastructure/logger"
)

const tracerName = "zapper.http"

// Approver commits an ERC20 allowance on behalf of an account. Only the
// devnet backend can do this, so execution is disabled without one.
type Approver interface {
	Approve(ctx context.Context, token, owner, spender common.Address, amount *big.Int) error
}

// ZapHandler serves zap previews, devnet execution and balance lookups
type ZapHandler struct {
	zaps     *services.ZapService
	reader   dex.Reader
	approver Approver
	registry *entities.TokenRegistry
	logger   *zap.Logger
}

// NewZapHandler creates a zap handler; approver may be nil
func NewZapHandler(zaps *services.ZapService, reader dex.Reader, approver Approver, registry *entities.TokenRegistry, l *zap.Logger) *ZapHandler {
	if registry == nil {
		registry = entities.NewTokenRegistry()
	}
	if l == nil {
		l = zap.NewNop()
	}
	return &ZapHandler{
		zaps:     zaps,
		reader:   reader,
		approver: approver,
		registry: registry,
		logger:   l,
	}
}

// ZapRequestBody is the JSON form of a zap request. Router defaults to the
// engine's default router; variant defaults to two_path.
type ZapRequestBody struct {
	Variant       string     `json:"variant,omitempty"`
	Caller        string     `json:"caller,omitempty"`
	TokenIn       string     `json:"tokenIn"`
	Pair          string     `json:"pair"`
	Router        string     `json:"router,omitempty"`
	AmountIn      string     `json:"amountIn"`
	Paths         [][]string `json:"paths"`
	MinAmountsOut []string   `json:"minAmountsOut,omitempty"`
	MinLiquidity  string     `json:"minLiquidity,omitempty"`
	Deadline      uint64     `json:"deadline,omitempty"`
	SlippageBps   uint64     `json:"slippageBps,omitempty"`
}

type TokenView struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

type PairView struct {
	Address string    `json:"address"`
	Factory string    `json:"factory"`
	Token0  TokenView `json:"token0"`
	Token1  TokenView `json:"token1"`
}

type LegView struct {
	PathIndex    int      `json:"pathIndex"`
	Path         []string `json:"path"`
	TokenOut     string   `json:"tokenOut"`
	AmountIn     Amount   `json:"amountIn"`
	AmountOut    Amount   `json:"amountOut"`
	MinAmountOut Amount   `json:"minAmountOut"`
}

// PreviewResponse is the estimate returned by POST /api/v1/zap/preview
type PreviewResponse struct {
	Variant       string    `json:"variant"`
	TokenIn       TokenView `json:"tokenIn"`
	Pair          PairView  `json:"pair"`
	AmountIn      Amount    `json:"amountIn"`
	Fee           Amount    `json:"fee"`
	NetAmount     Amount    `json:"netAmount"`
	Legs          []LegView `json:"legs"`
	SlippageBps   uint64    `json:"slippageBps"`
	MinAmountsOut []string  `json:"minAmountsOut"`
}

type SwapView struct {
	Path      []string `json:"path"`
	TokenOut  string   `json:"tokenOut"`
	AmountIn  Amount   `json:"amountIn"`
	AmountOut Amount   `json:"amountOut"`
	Swapped   bool     `json:"swapped"`
}

// ZapResponse is the outcome of POST /api/v1/zap
type ZapResponse struct {
	ID        string     `json:"id"`
	Variant   string     `json:"variant"`
	Caller    string     `json:"caller"`
	TokenIn   TokenView  `json:"tokenIn"`
	Pair      string     `json:"pair"`
	AmountIn  Amount     `json:"amountIn"`
	Fee       Amount     `json:"fee"`
	NetAmount Amount     `json:"netAmount"`
	Liquidity Amount     `json:"liquidity"`
	Amount0   Amount     `json:"amount0"`
	Amount1   Amount     `json:"amount1"`
	Refund0   Amount     `json:"refund0"`
	Refund1   Amount     `json:"refund1"`
	Swaps     []SwapView `json:"swaps"`
}

type BalanceResponse struct {
	Token   TokenView `json:"token"`
	Account string    `json:"account"`
	Balance Amount    `json:"balance"`
}

// lpToken formats LP amounts; V2 pairs always use 18 decimals
func lpToken(pair common.Address) entities.Token {
	return entities.Token{Address: pair, Symbol: "LP", Decimals: 18}
}

func tokenView(t entities.Token) TokenView {
	return TokenView{Address: t.Address.Hex(), Symbol: t.Symbol, Decimals: t.Decimals}
}

func hexPath(p entities.Path) []string {
	out := make([]string, len(p))
	for i, addr := range p {
		out[i] = addr.Hex()
	}
	return out
}

// parse converts the body into an engine request. Empty addresses are left
// zero so the engine reports them with its own error codes. tokenIn and path
// hops may be given as registered symbols.
func (b ZapRequestBody) parse(defaultRouter common.Address, registry *entities.TokenRegistry) (*entities.ZapRequest, entities.ZapVariant, *ErrorResponse) {
	variant := entities.ZapTwoPath
	switch b.Variant {
	case "", string(entities.ZapTwoPath):
	case string(entities.ZapSinglePath):
		variant = entities.ZapSinglePath
	default:
		return nil, "", &ErrorResponse{Error: "invalid_variant", Message: "variant must be two_path or single_path"}
	}

	addrs := make([]common.Address, 3)
	for i, f := range []struct{ name, value string }{
		{"caller", b.Caller},
		{"pair", b.Pair},
		{"router", b.Router},
	} {
		if f.value == "" {
			continue
		}
		if !common.IsHexAddress(f.value) {
			return nil, "", &ErrorResponse{Error: "invalid_address", Message: f.name + " is not a valid address"}
		}
		addrs[i] = common.HexToAddress(f.value)
	}
	if b.Router == "" {
		addrs[2] = defaultRouter
	}

	var tokenIn common.Address
	if b.TokenIn != "" {
		token, ok := registry.Lookup(b.TokenIn)
		if !ok {
			return nil, "", &ErrorResponse{Error: "invalid_address", Message: "tokenIn is not an address or known symbol"}
		}
		tokenIn = token.Address
	}

	if b.AmountIn == "" {
		return nil, "", &ErrorResponse{Error: "missing_params", Message: "amountIn is required"}
	}
	amountIn, ok := parseAmount(b.AmountIn)
	if !ok {
		return nil, "", &ErrorResponse{Error: "invalid_amount", Message: "amountIn must be a non-negative integer"}
	}

	paths := make([]entities.Path, len(b.Paths))
	for i, items := range b.Paths {
		p, err := registry.LookupPath(items)
		if err != nil {
			return nil, "", &ErrorResponse{Error: "invalid_path", Message: err.Error()}
		}
		paths[i] = p
	}

	var minOuts []*big.Int
	for _, s := range b.MinAmountsOut {
		v, ok := parseAmount(s)
		if !ok {
			return nil, "", &ErrorResponse{Error: "invalid_amount", Message: "minAmountsOut must be non-negative integers"}
		}
		minOuts = append(minOuts, v)
	}

	var minLiquidity *big.Int
	if b.MinLiquidity != "" {
		minLiquidity, ok = parseAmount(b.MinLiquidity)
		if !ok {
			return nil, "", &ErrorResponse{Error: "invalid_amount", Message: "minLiquidity must be a non-negative integer"}
		}
	}

	if b.SlippageBps > 10000 {
		return nil, "", &ErrorResponse{Error: "invalid_slippage", Message: "slippageBps must be 0-10000 basis points"}
	}

	return &entities.ZapRequest{
		Caller:        addrs[0],
		TokenIn:       tokenIn,
		Pair:          addrs[1],
		Router:        addrs[2],
		AmountIn:      amountIn,
		Paths:         paths,
		MinAmountsOut: minOuts,
		MinLiquidity:  minLiquidity,
		Deadline:      b.Deadline,
	}, variant, nil
}

// Preview handles POST /api/v1/zap/preview
func (h *ZapHandler) Preview(w http.ResponseWriter, r *http.Request) {
	ctx, span := logger.StartSpanWithRequest(r, tracerName, "zap.preview.http")
	defer span.End()

	var body ZapRequestBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	req, variant, bad := body.parse(h.zaps.DefaultRouter(), h.registry)
	if bad != nil {
		writeError(w, http.StatusBadRequest, bad.Error, bad.Message)
		return
	}

	preview, err := h.zaps.Preview(ctx, req, variant, body.SlippageBps)
	if err != nil {
		logger.WithTrace(ctx, h.logger).Debug("preview rejected", zap.String("code", services.ErrorCode(err)), zap.Error(err))
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.previewResponse(preview))
}

func (h *ZapHandler) previewResponse(p *entities.ZapPreview) PreviewResponse {
	legs := make([]LegView, 0, len(p.Legs))
	for _, leg := range p.Legs {
		in := h.registry.Resolve(leg.Path.Origin())
		out := h.registry.Resolve(leg.TokenOut)
		legs = append(legs, LegView{
			PathIndex:    leg.PathIndex,
			Path:         hexPath(leg.Path),
			TokenOut:     leg.TokenOut.Hex(),
			AmountIn:     newAmount(in, leg.AmountIn),
			AmountOut:    newAmount(out, leg.AmountOut),
			MinAmountOut: newAmount(out, leg.MinAmountOut),
		})
	}

	minAmounts := make([]string, len(p.MinAmountsOut))
	for i, v := range p.MinAmountsOut {
		if v != nil {
			minAmounts[i] = v.String()
		}
	}

	return PreviewResponse{
		Variant: string(p.Variant),
		TokenIn: tokenView(p.TokenIn),
		Pair: PairView{
			Address: p.Pair.Address.Hex(),
			Factory: p.Pair.Factory.Hex(),
			Token0:  tokenView(p.Pair.Token0),
			Token1:  tokenView(p.Pair.Token1),
		},
		AmountIn:      newAmount(p.TokenIn, p.AmountIn),
		Fee:           newAmount(p.TokenIn, p.Fee),
		NetAmount:     newAmount(p.TokenIn, p.NetAmount),
		Legs:          legs,
		SlippageBps:   p.SlippageBps,
		MinAmountsOut: minAmounts,
	}
}

// Execute handles POST /api/v1/zap. The caller's approval of the engine is
// committed first, the way a wallet would send approve() before zapping.
func (h *ZapHandler) Execute(w http.ResponseWriter, r *http.Request) {
	ctx, span := logger.StartSpanWithRequest(r, tracerName, "zap.execute.http")
	defer span.End()

	if h.approver == nil {
		writeError(w, http.StatusNotImplemented, "execution_disabled", "zaps can only be executed on the devnet backend")
		return
	}

	var body ZapRequestBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	req, variant, bad := body.parse(h.zaps.DefaultRouter(), h.registry)
	if bad != nil {
		writeError(w, http.StatusBadRequest, bad.Error, bad.Message)
		return
	}
	if req.Caller == (common.Address{}) {
		writeError(w, http.StatusBadRequest, "invalid_caller", "caller is required")
		return
	}

	log := logger.WithTrace(ctx, h.logger)
	if req.TokenIn != (common.Address{}) && req.AmountIn.Sign() > 0 {
		if err := h.approver.Approve(ctx, req.TokenIn, req.Caller, h.zaps.Self(), req.AmountIn); err != nil {
			log.Warn("approve failed", zap.Error(err))
			writeError(w, http.StatusUnprocessableEntity, "approve_failed", err.Error())
			return
		}
	}

	var (
		result *entities.ZapResult
		err    error
	)
	if variant == entities.ZapSinglePath {
		result, err = h.zaps.ZapInWithSinglePath(ctx, req)
	} else {
		result, err = h.zaps.ZapInWithPath(ctx, req)
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.zapResponse(result))
}

func (h *ZapHandler) zapResponse(res *entities.ZapResult) ZapResponse {
	tokenIn := h.registry.Resolve(res.TokenIn)
	token0 := h.registry.Resolve(res.Swaps[0].TokenOut)
	token1 := h.registry.Resolve(res.Swaps[1].TokenOut)

	swaps := make([]SwapView, 0, len(res.Swaps))
	for _, s := range res.Swaps {
		out := h.registry.Resolve(s.TokenOut)
		swaps = append(swaps, SwapView{
			Path:      hexPath(s.Path),
			TokenOut:  s.TokenOut.Hex(),
			AmountIn:  newAmount(tokenIn, s.AmountIn),
			AmountOut: newAmount(out, s.AmountOut),
			Swapped:   s.Swapped,
		})
	}

	return ZapResponse{
		ID:        res.ID,
		Variant:   string(res.Variant),
		Caller:    res.Caller.Hex(),
		TokenIn:   tokenView(tokenIn),
		Pair:      res.Pair.Hex(),
		AmountIn:  newAmount(tokenIn, res.AmountIn),
		Fee:       newAmount(tokenIn, res.Fee),
		NetAmount: newAmount(tokenIn, res.NetAmount),
		Liquidity: newAmount(lpToken(res.Pair), res.Liquidity),
		Amount0:   newAmount(token0, res.Amount0),
		Amount1:   newAmount(token1, res.Amount1),
		Refund0:   newAmount(token0, res.Refund0),
		Refund1:   newAmount(token1, res.Refund1),
		Swaps:     swaps,
	}
}

// GetBalance handles GET /api/v1/balances/{token}/{account}; token may be a symbol
func (h *ZapHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	token, ok := h.registry.Lookup(chi.URLParam(r, "token"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_token", "token is not an address or known symbol")
		return
	}
	accountAddr := chi.URLParam(r, "account")
	if !common.IsHexAddress(accountAddr) {
		writeError(w, http.StatusBadRequest, "invalid_account", "invalid account address")
		return
	}
	account := common.HexToAddress(accountAddr)

	bal, err := h.reader.BalanceOf(r.Context(), token.Address, account)
	if err != nil {
		writeError(w, http.StatusBadGateway, "balance_unavailable", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, BalanceResponse{
		Token:   tokenView(token),
		Account: account.Hex(),
		Balance: newAmount(token, bal),
	})
}
