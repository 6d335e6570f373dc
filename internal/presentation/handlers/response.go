package handlers

import (
	"encoding/json"
	"errors"
	"math/big"
	"net/http"

	"github.com/bimakw/lp-zapper/internal/domain/entities"
	"github.com/bimakw/lp-zapper/internal/domain/services"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Amount is a raw integer amount plus its whole-token rendering
type Amount struct {
	Raw       string `json:"raw"`
	Formatted string `json:"formatted"`
}

func newAmount(token entities.Token, v *big.Int) Amount {
	if v == nil {
		v = big.NewInt(0)
	}
	return Amount{Raw: v.String(), Formatted: token.Format(v)}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Error:   code,
		Message: message,
	})
}

// writeServiceError maps an engine error onto an HTTP status
func writeServiceError(w http.ResponseWriter, err error) {
	code := services.ErrorCode(err)
	writeError(w, statusFor(code), code, err.Error())
}

func statusFor(code string) int {
	switch code {
	case "invalid_input_token", "invalid_pair_address", "invalid_router_address",
		"invalid_input_amount", "path_too_short", "invalid_path_count",
		"incompatible_factory", "path_origin_mismatch", "path_destination_mismatch":
		return http.StatusBadRequest
	case "unauthorized":
		return http.StatusForbidden
	case "version_conflict", "reentrancy":
		return http.StatusConflict
	case "slippage_exceeded", "external_call_failure":
		return http.StatusUnprocessableEntity
	case "not_initialized":
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected data after JSON body")
	}
	return nil
}

func parseAmount(s string) (*big.Int, bool) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, false
	}
	return v, true
}
