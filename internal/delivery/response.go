package delivery

import (
	"auth_service/internal/domain"
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

type Response struct {
	Status  string      `json:"Status"`
	Message string      `json:"Message"`
	Data    interface{} `json:"Data,omitempty"`
}

func SuccessResponse(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, Response{
		Status:  "Success",
		Message: message,
		Data:    data,
	})
}

func ErrorResponse(c *gin.Context, statusCode int, message string) {

	c.JSON(statusCode, Response{
		Status:  "Fail",
		Message: message,
	})
}

func mapErrorToStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidCredentials),
		errors.Is(err, domain.ErrNotAuthenticated),
		errors.Is(err, domain.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrAlreadyExists),
		errors.Is(err, domain.ErrSessionChanged):
		return http.StatusConflict // 409 for duplicates and superseded requests
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrNoIdentity):
		return http.StatusBadGateway
	}

	var be *domain.BackendError
	if errors.As(err, &be) {
		if be.Status >= 400 && be.Status < 500 {
			return http.StatusBadRequest // the backend rejected what the client sent
		}
		return http.StatusBadGateway
	}

	return http.StatusInternalServerError
}
