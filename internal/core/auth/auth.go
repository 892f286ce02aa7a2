// Package auth provides optional API key authentication for the sortdl
// gRPC service.
//
// A single key is configured through the environment. Presented keys are
// compared by HMAC under a per-process secret so the comparison time does
// not depend on where the keys differ.
package auth

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// MetadataKey is the gRPC metadata entry carrying the API key.
const MetadataKey = "x-api-key"

// healthServicePrefix covers the standard health service methods, which
// stay reachable without a key.
const healthServicePrefix = "/grpc.health.v1.Health/"

// Authenticator validates API keys against the configured key.
type Authenticator struct {
	secret   []byte
	expected []byte
}

// NewAuthenticator creates an authenticator for apiKey.
func NewAuthenticator(apiKey string) (*Authenticator, error) {
	if err := ValidateAPIKey(apiKey); err != nil {
		return nil, err
	}

	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("failed to generate HMAC secret: %w", err)
	}

	return &Authenticator{
		secret:   secret,
		expected: ComputeHMAC(secret, apiKey),
	}, nil
}

// Authenticate validates apiKey.
// Returns ErrInvalidKeyFormat or ErrInvalidKey on failure.
func (a *Authenticator) Authenticate(apiKey string) error {
	if err := ValidateAPIKey(apiKey); err != nil {
		return err
	}
	if !VerifyHMAC(a.expected, ComputeHMAC(a.secret, apiKey)) {
		return ErrInvalidKey
	}
	return nil
}

// UnaryInterceptor returns gRPC interceptor that authenticates requests.
// Health checks pass through unauthenticated.
func (a *Authenticator) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if strings.HasPrefix(info.FullMethod, healthServicePrefix) {
			return handler(ctx, req)
		}

		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}

		apiKeys := md.Get(MetadataKey)
		if len(apiKeys) == 0 {
			return nil, status.Error(codes.Unauthenticated, ErrMissingKey.Error())
		}

		if err := a.Authenticate(apiKeys[0]); err != nil {
			return nil, status.Error(codes.Unauthenticated, err.Error())
		}

		return handler(ctx, req)
	}
}
