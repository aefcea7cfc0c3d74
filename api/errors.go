package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"vendue/auction"
)

var (
	errMissingUser  = errors.New("missing X-User-ID header")
	errForbidden    = errors.New("cannot access other user's resources")
	errInvalidInput = errors.New("invalid request payload")
)

// ErrorResponse 是錯誤回應的格式
type ErrorResponse struct {
	Message string `json:"message"`
	Reason  string `json:"reason,omitempty"`
}

// statusOf 將錯誤轉換為 HTTP 狀態碼與訊息
func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, auction.ErrListingNotFound):
		return http.StatusNotFound, "listing not found"
	case errors.Is(err, auction.ErrAuctionNotActive):
		return http.StatusBadRequest, "auction is not active"
	case errors.Is(err, auction.ErrSelfBid):
		return http.StatusForbidden, "you cannot bid on your own listing"
	case errors.Is(err, auction.ErrBidTooLow):
		return http.StatusBadRequest, "bid must be higher than current bid"
	case errors.Is(err, auction.ErrInvalidBid),
		errors.Is(err, auction.ErrInvalidListing),
		errors.Is(err, errInvalidInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, auction.ErrInvalidTransition):
		return http.StatusConflict, "invalid status transition"
	case errors.Is(err, auction.ErrRevisionConflict):
		return http.StatusConflict, "listing was modified concurrently, please retry"
	case errors.Is(err, auction.ErrNotificationNotFound):
		return http.StatusNotFound, "notification not found"
	case errors.Is(err, errMissingUser):
		return http.StatusUnauthorized, "missing user identity"
	case errors.Is(err, errForbidden):
		return http.StatusForbidden, "forbidden"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// abortWithError 寫出錯誤回應，非預期的錯誤會記錄到日誌
func abortWithError(c *gin.Context, logger *slog.Logger, op string, err error) {
	status, message := statusOf(err)
	response := ErrorResponse{Message: message}
	if reason, ok := auction.ReasonOf(err); ok {
		response.Reason = string(reason)
	}
	if status == http.StatusInternalServerError {
		logger.Error("request failed", slog.String("op", op), slog.Any("error", err))
	} else {
		logger.Debug("request rejected", slog.String("op", op), slog.Int("status", status), slog.Any("error", err))
	}
	c.AbortWithStatusJSON(status, response)
}
