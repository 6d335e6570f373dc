package handlers

import (
	"errors"
	"fmt"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bimakw/lp-zapper/internal/domain/entities"
	"github.com/bimakw/lp-zapper/internal/domain/services"
	"github.com/bimakw/lp-zapper/internal/infrastructure/logger"
)

// FeeHandler serves the protocol fee schedule
type FeeHandler struct {
	fees     *services.FeeService
	registry *entities.TokenRegistry
	logger   *zap.Logger
}

// NewFeeHandler creates a fee handler; fees may be nil for a fee-free engine
func NewFeeHandler(fees *services.FeeService, registry *entities.TokenRegistry, l *zap.Logger) *FeeHandler {
	if registry == nil {
		registry = entities.NewTokenRegistry()
	}
	if l == nil {
		l = zap.NewNop()
	}
	return &FeeHandler{fees: fees, registry: registry, logger: l}
}

// FeeResponse is the public view of the fee configuration
type FeeResponse struct {
	Rate     uint64 `json:"rate"`
	Scale    uint64 `json:"scale"`
	Percent  string `json:"percent"`
	Treasury string `json:"treasury"`
	Dev      string `json:"dev"`
	Owner    string `json:"owner"`
	Version  uint64 `json:"version"`
}

type FeeQuoteResponse struct {
	Token     string `json:"token,omitempty"`
	AmountIn  Amount `json:"amountIn"`
	Fee       Amount `json:"fee"`
	NetAmount Amount `json:"netAmount"`
}

// UpdateFeeRequest is signed by the owner over FeeUpdateMessage(rate, version)
type UpdateFeeRequest struct {
	Rate      uint64 `json:"rate"`
	Version   uint64 `json:"version"`
	Signature string `json:"signature"`
}

// FeeUpdateMessage is the text the owner signs to change the rate
func FeeUpdateMessage(rate, version uint64) string {
	return fmt.Sprintf("updateZapFee:%d:%d", rate, version)
}

// RecoverSigner returns the account behind an EIP-191 personal signature
func RecoverSigner(message, signature string) (common.Address, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("invalid signature encoding: %w", err)
	}
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("signature must be %d bytes, got %d", crypto.SignatureLength, len(sig))
	}
	// wallets return v as 27/28
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover signer: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

func toFeeResponse(cfg entities.FeeConfig) FeeResponse {
	percent := "0"
	if cfg.Scale != 0 {
		percent = decimal.NewFromInt(int64(cfg.Rate)).
			Mul(decimal.NewFromInt(100)).
			Div(decimal.NewFromInt(int64(cfg.Scale))).
			String()
	}
	return FeeResponse{
		Rate:     cfg.Rate,
		Scale:    cfg.Scale,
		Percent:  percent,
		Treasury: cfg.Treasury.Hex(),
		Dev:      cfg.Dev.Hex(),
		Owner:    cfg.Owner.Hex(),
		Version:  cfg.Version,
	}
}

// GetFee handles GET /api/v1/fee
func (h *FeeHandler) GetFee(w http.ResponseWriter, r *http.Request) {
	if h.fees == nil {
		writeError(w, http.StatusNotFound, "fee_disabled", "this engine charges no fee")
		return
	}
	cfg, err := h.fees.Config(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toFeeResponse(cfg))
}

// QuoteFee handles GET /api/v1/fee/quote?amountIn=&token=
func (h *FeeHandler) QuoteFee(w http.ResponseWriter, r *http.Request) {
	amountInStr := r.URL.Query().Get("amountIn")
	tokenAddr := r.URL.Query().Get("token")

	if amountInStr == "" {
		writeError(w, http.StatusBadRequest, "missing_params", "amountIn is required")
		return
	}
	amountIn, ok := parseAmount(amountInStr)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_amount", "amountIn must be a non-negative integer")
		return
	}

	var token entities.Token
	if tokenAddr != "" {
		if !common.IsHexAddress(tokenAddr) {
			writeError(w, http.StatusBadRequest, "invalid_token", "token is not a valid address")
			return
		}
		token = h.registry.Resolve(common.HexToAddress(tokenAddr))
	}

	fee, err := h.quote(r, amountIn)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := FeeQuoteResponse{
		AmountIn:  newAmount(token, amountIn),
		Fee:       newAmount(token, fee),
		NetAmount: newAmount(token, new(big.Int).Sub(amountIn, fee)),
	}
	if tokenAddr != "" {
		resp.Token = token.Address.Hex()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *FeeHandler) quote(r *http.Request, amount *big.Int) (*big.Int, error) {
	if h.fees == nil {
		return big.NewInt(0), nil
	}
	return h.fees.QuoteFee(r.Context(), amount)
}

// UpdateFee handles PUT /api/v1/fee
func (h *FeeHandler) UpdateFee(w http.ResponseWriter, r *http.Request) {
	ctx, span := logger.StartSpanWithRequest(r, tracerName, "fee.update")
	defer span.End()

	if h.fees == nil {
		writeError(w, http.StatusNotFound, "fee_disabled", "this engine charges no fee")
		return
	}

	var req UpdateFeeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if req.Signature == "" {
		writeError(w, http.StatusBadRequest, "missing_signature", "signature is required")
		return
	}

	signer, err := RecoverSigner(FeeUpdateMessage(req.Rate, req.Version), req.Signature)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_signature", err.Error())
		return
	}

	cfg, err := h.fees.UpdateFeeRateAt(ctx, signer, req.Rate, req.Version)
	if err != nil {
		if !errors.Is(err, services.ErrUnauthorized) && !errors.Is(err, services.ErrVersionConflict) {
			logger.WithTrace(ctx, h.logger).Error("fee update failed", zap.Error(err))
		}
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toFeeResponse(cfg))
}
