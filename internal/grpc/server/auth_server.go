// Package server реализует gRPC-сервер сервиса аутентификации.
//
// AuthServer принимает запросы входа и проверки токена и делегирует их AuthService.
package server

import (
	"context"
	"errors"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/RonMizrahi/access-control/internal/grpc/authrpc"
	"github.com/RonMizrahi/access-control/internal/lib/sl"
	"github.com/RonMizrahi/access-control/internal/models"
	services "github.com/RonMizrahi/access-control/internal/services/auth"
)

// AuthService описывает бизнес-логику, нужную серверу.
type AuthService interface {
	Login(ctx context.Context, req services.LoginRequest) (string, error)
	ValidateToken(ctx context.Context, token string) (*models.Identity, error)
}

// AuthServer реализует authrpc.AuthServer.
type AuthServer struct {
	authService AuthService
	log         *slog.Logger
}

// NewAuthServer создает новый экземпляр AuthServer.
func NewAuthServer(authService AuthService, logger *slog.Logger) *AuthServer {
	return &AuthServer{
		authService: authService,
		log:         logger,
	}
}

// Login проверяет пользователя и выпускает токен.
func (s *AuthServer) Login(ctx context.Context, req *authrpc.LoginRequest) (*authrpc.LoginResponse, error) {
	const op = "grpc.server.Login"
	log := s.log.With(sl.Op(op), slog.String("username", req.Username))

	if req.Username == "" || req.Password == "" {
		return nil, status.Error(codes.InvalidArgument, "username and password are required")
	}

	var remote string
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		remote = p.Addr.String()
	}

	token, err := s.authService.Login(ctx, services.LoginRequest{
		Username:   req.Username,
		Password:   req.Password,
		RemoteAddr: remote,
	})
	if errors.Is(err, services.ErrInvalidCredentials) {
		return nil, status.Error(codes.Unauthenticated, "invalid credentials")
	}
	if err != nil {
		log.Error("login failed", sl.Err(err))
		return nil, status.Error(codes.Internal, "internal error")
	}
	return &authrpc.LoginResponse{Token: token}, nil
}

// ValidateToken проверяет токен и возвращает личность пользователя.
func (s *AuthServer) ValidateToken(ctx context.Context, req *authrpc.ValidateTokenRequest) (*authrpc.ValidateTokenResponse, error) {
	identity, err := s.authService.ValidateToken(ctx, req.Token)
	if err != nil {
		s.log.Debug("invalid token", sl.Err(err))
		return nil, status.Error(codes.Unauthenticated, "invalid token")
	}
	return &authrpc.ValidateTokenResponse{
		Username: identity.Username,
		Roles:    identity.Roles.Strings(),
		Valid:    true,
	}, nil
}
