// Package auth issues and checks operator API keys.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"studioline/internal/domain"
	"studioline/internal/repo"
)

const keyPrefix = "sl_"

// ErrUnknownKey is returned for keys that were never issued or were revoked.
var ErrUnknownKey = errors.New("unknown api key")

// Service manages API keys backed by the api_keys table. Only digests are stored.
type Service struct {
	Repo repo.Repo
	Now  func() time.Time
}

func (s Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s Service) stamp() string {
	return s.now().UTC().Format(domain.TimeLayout)
}

// Issue creates a key for an operator. The plain key is returned once and
// cannot be recovered later.
func (s Service) Issue(ctx context.Context, actorID, name string) (string, domain.APIKey, error) {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return "", domain.APIKey{}, errors.New("actor_id required")
	}
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", domain.APIKey{}, fmt.Errorf("generate key: %w", err)
	}
	plain := keyPrefix + hex.EncodeToString(raw)
	key := domain.APIKey{
		ID:        uuid.NewString(),
		ActorID:   actorID,
		Name:      strings.TrimSpace(name),
		KeyHash:   repo.HashAPIKey(plain),
		CreatedAt: s.stamp(),
	}
	if err := s.Repo.InsertAPIKey(ctx, nil, key); err != nil {
		return "", domain.APIKey{}, err
	}
	return plain, key, nil
}

// Authenticate resolves a presented key to its operator id.
func (s Service) Authenticate(ctx context.Context, plain string) (string, error) {
	plain = strings.TrimSpace(plain)
	if plain == "" {
		return "", ErrUnknownKey
	}
	key, err := s.Repo.ActiveAPIKeyByHash(ctx, repo.HashAPIKey(plain))
	if errors.Is(err, repo.ErrNotFound) {
		return "", ErrUnknownKey
	}
	if err != nil {
		return "", err
	}
	if err := s.Repo.TouchAPIKey(ctx, key.ID, s.stamp()); err != nil {
		return "", fmt.Errorf("touch api key: %w", err)
	}
	return key.ActorID, nil
}

func (s Service) List(ctx context.Context, actorID string) ([]domain.APIKey, error) {
	return s.Repo.ListAPIKeys(ctx, actorID)
}

// Revoke disables a key. Revoked keys stay listed.
func (s Service) Revoke(ctx context.Context, id string) error {
	err := s.Repo.RevokeAPIKey(ctx, id, s.stamp())
	if errors.Is(err, repo.ErrNotFound) {
		return ErrUnknownKey
	}
	return err
}
