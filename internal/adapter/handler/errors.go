package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rl1809/catalog-orders/internal/core/domain"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type stockDetails struct {
	Product   string `json:"product"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

func httpStatus(kind domain.Kind) int {
	switch kind {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindAlreadyExists, domain.KindInsufficientStock:
		return http.StatusConflict
	case domain.KindInvalidArgument:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func grpcCode(kind domain.Kind) codes.Code {
	switch kind {
	case domain.KindNotFound:
		return codes.NotFound
	case domain.KindAlreadyExists:
		return codes.AlreadyExists
	case domain.KindInsufficientStock:
		return codes.FailedPrecondition
	case domain.KindInvalidArgument:
		return codes.InvalidArgument
	default:
		return codes.Internal
	}
}

// toResponse turns err into a caller-safe payload. Unclassified errors are
// logged and reported without their text.
func toResponse(logger *zap.Logger, op string, err error) (int, errorResponse) {
	kind := domain.KindOf(err)
	if kind == domain.KindInternal {
		if errors.Is(err, context.DeadlineExceeded) {
			logger.Warn("request timed out", zap.String("op", op), zap.Error(err))
			return http.StatusGatewayTimeout, errorResponse{Error: string(kind), Message: "request timed out"}
		}
		logger.Error("request failed", zap.String("op", op), zap.Error(err))
		return http.StatusInternalServerError, errorResponse{Error: string(kind), Message: "internal error"}
	}

	resp := errorResponse{Error: string(kind), Message: err.Error()}
	var stockErr *domain.InsufficientStockError
	if errors.As(err, &stockErr) {
		resp.Details = stockDetails{
			Product:   stockErr.ProductName,
			Requested: stockErr.Requested,
			Available: stockErr.Available,
		}
	}
	return httpStatus(kind), resp
}

func toStatus(logger *zap.Logger, op string, err error) error {
	_, resp := toResponse(logger, op, err)
	return status.Error(grpcCode(domain.KindOf(err)), resp.Message)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
