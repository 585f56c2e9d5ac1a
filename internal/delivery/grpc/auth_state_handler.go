package grpc

import (
	"auth_service/internal/domain"
	"auth_service/internal/usecase"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

var _ AuthStateServer = (*AuthStateHandler)(nil)

type AuthStateHandler struct {
	registry *usecase.SessionRegistry
	log      *logrus.Logger
}

func NewAuthStateHandler(registry *usecase.SessionRegistry, logger *logrus.Logger) *AuthStateHandler {
	return &AuthStateHandler{
		registry: registry,
		log:      logger,
	}
}

// toStruct converts any JSON-encodable value into a protobuf Struct.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	return out, nil
}

func stringField(req *structpb.Struct, name string) string {
	return req.GetFields()[name].GetStringValue()
}

func (h *AuthStateHandler) provider(req *structpb.Struct) (domain.AuthStateProvider, error) {
	id := stringField(req, "session_id")
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "session_id is required")
	}
	provider, err := h.registry.Get(id)
	if err != nil {
		h.log.Warnf("gRPC Handler: Unknown session requested: %s", id)
		return nil, status.Errorf(codes.NotFound, "Session not found: %s", id)
	}
	return provider, nil
}

func actionResponse(provider domain.AuthStateProvider, res domain.Result) (*structpb.Struct, error) {
	return toStruct(map[string]any{
		"result": res,
		"state":  provider.State(),
	})
}

func (h *AuthStateHandler) CreateSession(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	id, provider := h.registry.Create()
	h.log.Infof("gRPC Handler: Session %s created", id)
	return toStruct(map[string]any{
		"session_id": id,
		"state":      provider.State(),
	})
}

func (h *AuthStateHandler) GetState(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	provider, err := h.provider(req)
	if err != nil {
		return nil, err
	}
	return toStruct(provider.State())
}

func (h *AuthStateHandler) Login(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	provider, err := h.provider(req)
	if err != nil {
		return nil, err
	}
	email, password := stringField(req, "email"), stringField(req, "password")
	if email == "" || password == "" {
		h.log.Warn("gRPC Handler: Login validation failed - missing fields")
		return nil, status.Error(codes.InvalidArgument, "Email and password are required")
	}

	res := provider.Login(ctx, email, password)
	if !res.Success {
		h.log.Warnf("gRPC Handler: Login failed for email %s: %s", email, res.Error)
	}
	return actionResponse(provider, res)
}

func (h *AuthStateHandler) Register(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	provider, err := h.provider(req)
	if err != nil {
		return nil, err
	}
	email, password := stringField(req, "email"), stringField(req, "password")
	if email == "" || password == "" {
		h.log.Warn("gRPC Handler: Register validation failed - missing fields")
		return nil, status.Error(codes.InvalidArgument, "Email and password are required")
	}

	res := provider.Register(ctx, email, password, stringField(req, "username"))
	if !res.Success {
		h.log.Warnf("gRPC Handler: Registration failed for email %s: %s", email, res.Error)
	}
	return actionResponse(provider, res)
}

func (h *AuthStateHandler) Logout(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	provider, err := h.provider(req)
	if err != nil {
		return nil, err
	}
	provider.Logout(ctx)
	return toStruct(provider.State())
}

func (h *AuthStateHandler) UpdateProfile(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	provider, err := h.provider(req)
	if err != nil {
		return nil, err
	}
	patch, rejected := domain.PatchFromMap(req.GetFields()["patch"].GetStructValue().AsMap())
	if len(rejected) > 0 {
		sort.Strings(rejected)
		return nil, status.Errorf(codes.InvalidArgument, "unsupported fields: %s", strings.Join(rejected, ", "))
	}

	res := provider.UpdateProfile(ctx, patch)
	if !res.Success {
		h.log.Warnf("gRPC Handler: Profile update failed: %s", res.Error)
	}
	return actionResponse(provider, res)
}

func (h *AuthStateHandler) DeleteSession(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id := stringField(req, "session_id")
	if err := h.registry.Delete(ctx, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, status.Errorf(codes.NotFound, "Session not found: %s", id)
		}
		return nil, status.Error(codes.Internal, fmt.Sprintf("failed to delete session: %v", err))
	}
	return &structpb.Struct{}, nil
}
