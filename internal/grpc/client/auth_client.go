// Package client — gRPC-клиент сервиса аутентификации для других сервисов.
package client

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/RonMizrahi/access-control/internal/grpc/authrpc"
	"github.com/RonMizrahi/access-control/internal/models"
)

// Ошибки, в которые переводится codes.Unauthenticated.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

// AuthClient вызывает удалённый сервис accesscontrol.v1.Auth.
type AuthClient struct {
	conn   *grpc.ClientConn
	client *authrpc.AuthClient
}

// NewAuthClient создаёт клиента. Соединение устанавливается лениво при первом вызове.
func NewAuthClient(addr string, opts ...grpc.DialOption) (*AuthClient, error) {
	const op = "grpc.client.NewAuthClient"
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &AuthClient{conn: conn, client: authrpc.NewAuthClient(conn)}, nil
}

func (a *AuthClient) Close() error {
	return a.conn.Close()
}

// Login возвращает токен или ErrInvalidCredentials.
func (a *AuthClient) Login(ctx context.Context, username, password string) (string, error) {
	const op = "grpc.client.Login"
	resp, err := a.client.Login(ctx, &authrpc.LoginRequest{Username: username, Password: password})
	if status.Code(err) == codes.Unauthenticated {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return resp.Token, nil
}

// ValidateToken проверяет токен удалённо. Сигнатура совпадает с локальным
// AuthService, поэтому клиент подходит как источник личности для HTTP-цепочки.
func (a *AuthClient) ValidateToken(ctx context.Context, token string) (*models.Identity, error) {
	const op = "grpc.client.ValidateToken"
	resp, err := a.client.ValidateToken(ctx, &authrpc.ValidateTokenRequest{Token: token})
	if status.Code(err) == codes.Unauthenticated {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	roles, err := models.ParseRoles(resp.Roles)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &models.Identity{Username: resp.Username, Roles: roles}, nil
}
