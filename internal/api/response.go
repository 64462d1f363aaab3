package api

import (
	"encoding/json"
	"errors"
	"net/http"

	xerrors "ProofFlow-Chain/internal/errors"
	"ProofFlow-Chain/internal/lifecycle"
	"ProofFlow-Chain/internal/proof"
	"ProofFlow-Chain/internal/reasoning"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	code := xerrors.CodeOf(err)
	message := err.Error()
	if e, ok := xerrors.From(err); ok && e.Message() != "" {
		message = e.Message()
	}
	writeJSON(w, statusFor(err), errorBody{Error: errorDetail{Code: string(code), Message: message}})
}

// statusFor 把错误码映射为 HTTP 状态码。
func statusFor(err error) int {
	switch {
	case errors.Is(err, proof.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, proof.ErrInvalidTransition),
		errors.Is(err, proof.ErrCredentialAlreadyIssued),
		errors.Is(err, lifecycle.ErrRedriveRejected):
		return http.StatusConflict
	case errors.Is(err, reasoning.ErrModelUnavailable),
		errors.Is(err, reasoning.ErrModelTimeout):
		return http.StatusServiceUnavailable
	}

	switch xerrors.CodeOf(err) {
	case xerrors.CodeInvalidArgument, proof.CodeProofValidation:
		return http.StatusBadRequest
	case xerrors.CodeNotFound:
		return http.StatusNotFound
	case xerrors.CodeConflict:
		return http.StatusConflict
	case xerrors.CodeRateLimited:
		return http.StatusTooManyRequests
	case xerrors.CodeTimeout:
		return http.StatusGatewayTimeout
	case xerrors.CodeUnavailable, xerrors.CodeInitializationFailure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
