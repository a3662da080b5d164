package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned when a provider has no value for the requested name.
var ErrNotFound = errors.New("secret not found")

// Provider resolves a named secret. Lookups happen per call so a rotated
// secret is picked up without a restart.
type Provider interface {
	Secret(ctx context.Context, name string) (string, error)
}

// Env reads secrets from the process environment.
type Env struct {
	lookup func(string) (string, bool)
}

func NewEnv() *Env {
	return &Env{lookup: os.LookupEnv}
}

func (e *Env) Secret(_ context.Context, name string) (string, error) {
	value, ok := e.lookup(name)
	if !ok || value == "" {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	return value, nil
}

// Dir reads secrets from files named after the secret inside a directory,
// the layout used for mounted container secrets (e.g. /run/secrets/JWT_SECRET).
type Dir string

func (d Dir) Secret(_ context.Context, name string) (string, error) {
	if strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid secret name %q", name)
	}

	data, err := os.ReadFile(filepath.Join(string(d), name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return "", fmt.Errorf("failed to read secret %s: %w", name, err)
	}

	value := strings.TrimRight(string(data), "\r\n")
	if value == "" {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	return value, nil
}

// Static serves secrets from a fixed map.
type Static map[string]string

func (s Static) Secret(_ context.Context, name string) (string, error) {
	value, ok := s[name]
	if !ok || value == "" {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	return value, nil
}

// Chain asks each provider in order and returns the first value found.
// Errors other than ErrNotFound stop the search.
type Chain []Provider

func (c Chain) Secret(ctx context.Context, name string) (string, error) {
	for _, p := range c {
		value, err := p.Secret(ctx, name)
		if err == nil {
			return value, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return "", err
		}
	}

	return "", fmt.Errorf("%w: %s", ErrNotFound, name)
}
