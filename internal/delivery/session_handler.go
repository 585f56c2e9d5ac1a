package delivery

import (
	"auth_service/internal/domain"
	"auth_service/internal/usecase"
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type SessionHandler struct {
	registry *usecase.SessionRegistry
	log      *logrus.Logger
}

func NewSessionHandler(registry *usecase.SessionRegistry, logger *logrus.Logger) *SessionHandler {
	return &SessionHandler{
		registry: registry,
		log:      logger,
	}
}

func (h *SessionHandler) RegisterRoutes(router gin.IRouter) {
	sessions := router.Group("/sessions")
	{
		sessions.POST("", h.CreateSession)
		sessions.GET("/:id", h.GetState)
		sessions.DELETE("/:id", h.DeleteSession)
		sessions.POST("/:id/login", h.Login)
		sessions.POST("/:id/register", h.Register)
		sessions.POST("/:id/logout", h.Logout)
		sessions.PATCH("/:id/profile", h.UpdateProfile)
	}
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RegisterRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Username string `json:"username"`
}

type CreateSessionResponse struct {
	SessionID string           `json:"session_id"`
	State     domain.AuthState `json:"state"`
}

type ActionResponse struct {
	Result domain.Result    `json:"result"`
	State  domain.AuthState `json:"state"`
}

// provider resolves the session in the path, answering 404 when unknown.
func (h *SessionHandler) provider(c *gin.Context) (domain.AuthStateProvider, bool) {
	id := c.Param("id")
	provider, err := h.registry.Get(id)
	if err != nil {
		h.log.Warnf("Unknown session requested: %s", id)
		ErrorResponse(c, http.StatusNotFound, "Session not found")
		return nil, false
	}
	return provider, true
}

func (h *SessionHandler) respondResult(c *gin.Context, provider domain.AuthStateProvider, action string, res domain.Result) {
	body := ActionResponse{Result: res, State: provider.State()}
	if res.Success {
		SuccessResponse(c, http.StatusOK, action+" succeeded", body)
		return
	}
	statusCode := mapErrorToStatus(res.Err)
	c.JSON(statusCode, Response{
		Status:  "Fail",
		Message: action + " failed: " + res.Error,
		Data:    body,
	})
}

func (h *SessionHandler) CreateSession(c *gin.Context) {
	id, provider := h.registry.Create()
	h.log.Infof("Session %s created for %s", id, c.ClientIP())
	SuccessResponse(c, http.StatusCreated, "Session created", CreateSessionResponse{SessionID: id, State: provider.State()})
}

func (h *SessionHandler) GetState(c *gin.Context) {
	provider, ok := h.provider(c)
	if !ok {
		return
	}
	SuccessResponse(c, http.StatusOK, "Session state", provider.State())
}

func (h *SessionHandler) DeleteSession(c *gin.Context) {
	id := c.Param("id")
	if err := h.registry.Delete(c.Request.Context(), id); err != nil {
		h.log.Warnf("Failed to delete session %s: %v", id, err)
		ErrorResponse(c, mapErrorToStatus(err), "Session not found")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *SessionHandler) Login(c *gin.Context) {
	provider, ok := h.provider(c)
	if !ok {
		return
	}
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warnf("Failed to bind login request: %v", err)
		ErrorResponse(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	h.log.Infof("Processing login request for email: %s", req.Email)

	res := provider.Login(c.Request.Context(), req.Email, req.Password)
	h.respondResult(c, provider, "Login", res)
}

func (h *SessionHandler) Register(c *gin.Context) {
	provider, ok := h.provider(c)
	if !ok {
		return
	}
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warnf("Failed to bind register request: %v", err)
		ErrorResponse(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	h.log.Infof("Processing registration request for email: %s", req.Email)

	res := provider.Register(c.Request.Context(), req.Email, req.Password, req.Username)
	h.respondResult(c, provider, "Registration", res)
}

func (h *SessionHandler) Logout(c *gin.Context) {
	provider, ok := h.provider(c)
	if !ok {
		return
	}
	provider.Logout(c.Request.Context())
	SuccessResponse(c, http.StatusOK, "Logged out", provider.State())
}

func (h *SessionHandler) UpdateProfile(c *gin.Context) {
	provider, ok := h.provider(c)
	if !ok {
		return
	}
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		h.log.Warnf("Failed to bind profile update: %v", err)
		ErrorResponse(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	patch, rejected := domain.PatchFromMap(body)
	if len(rejected) > 0 {
		sort.Strings(rejected)
		ErrorResponse(c, http.StatusBadRequest, "Invalid request body: unsupported fields: "+strings.Join(rejected, ", "))
		return
	}

	res := provider.UpdateProfile(c.Request.Context(), patch)
	h.respondResult(c, provider, "Profile update", res)
}
