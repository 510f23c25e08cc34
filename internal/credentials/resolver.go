// ABOUTME: Layered credential resolution: keychain probe, remote validation, database fallback
// ABOUTME: The first usable keychain secret wins; stored rows are trusted without re-validation

package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/2389/grimoire/internal/keychain"
	"github.com/2389/grimoire/internal/store"
)

// ErrInvalidKey is returned when the provider rejects an API key
var ErrInvalidKey = errors.New("invalid api key")

// Status source values
const (
	SourceKeychain = "keychain"
	SourceDatabase = "database"
	SourceNone     = "none"
)

// Status is the outcome of one credential resolution pass
type Status struct {
	Authenticated bool   `json:"authenticated"`
	Source        string `json:"source"`
	Email         string `json:"email,omitempty"`
}

// keychainSecret is the JSON shape Claude Code stores in the keychain
type keychainSecret struct {
	APIKey           string `json:"api_key"`
	Email            string `json:"email"`
	SubscriptionTier string `json:"subscription_tier"`
}

// Resolver resolves credentials from the OS keychain and the database
type Resolver struct {
	keychain  keychain.Keychain
	validator Validator
	store     store.Store
	logger    *slog.Logger
}

// NewResolver creates a resolver over the given keychain, validator, and store
func NewResolver(kc keychain.Keychain, validator Validator, st store.Store, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		keychain:  kc,
		validator: validator,
		store:     st,
		logger:    logger.With("component", "credentials"),
	}
}

// discovered is one usable keychain secret
type discovered struct {
	apiKey           string
	email            string
	subscriptionTier string
}

// fromKeychain walks the probe matrix and returns the first usable secret,
// or nil when nothing usable is stored. Secrets that are neither the JSON
// shape nor a raw sk-ant- key are skipped and probing continues.
func (r *Resolver) fromKeychain() *discovered {
	for _, pair := range keychain.ProbePairs() {
		secret, err := r.keychain.Get(pair.Service, pair.Account)
		if err != nil {
			if !errors.Is(err, keychain.ErrNotFound) {
				r.logger.Debug("keychain probe failed", "service", pair.Service, "account", pair.Account, "error", err)
			}
			continue
		}

		var parsed keychainSecret
		if err := json.Unmarshal([]byte(secret), &parsed); err == nil && parsed.APIKey != "" {
			r.logger.Debug("found keychain credentials", "service", pair.Service, "account", pair.Account)
			return &discovered{
				apiKey:           parsed.APIKey,
				email:            parsed.Email,
				subscriptionTier: parsed.SubscriptionTier,
			}
		}
		if strings.HasPrefix(secret, "sk-ant-") {
			r.logger.Debug("found raw keychain key", "service", pair.Service, "account", pair.Account)
			return &discovered{apiKey: secret}
		}

		r.logger.Debug("skipping unrecognized keychain secret", "service", pair.Service, "account", pair.Account)
	}
	return nil
}

// CheckStatus resolves the current credential state.
// Priority: a validated keychain key, then the stored database record, then none.
// A validation transport error falls through to the database path.
func (r *Resolver) CheckStatus(ctx context.Context) (*Status, error) {
	if found := r.fromKeychain(); found != nil {
		valid, err := r.validator.Validate(ctx, found.apiKey)
		switch {
		case err != nil:
			r.logger.Warn("keychain key validation failed, trying database", "error", err)
		case valid:
			// Best-effort cache; a failure here is logged, not fatal
			creds := &store.Credentials{
				APIKey:           found.apiKey,
				Email:            found.email,
				SubscriptionTier: found.subscriptionTier,
			}
			if err := r.store.UpsertCredentials(ctx, creds); err != nil {
				r.logger.Warn("failed to cache keychain credentials", "error", err)
			}
			return &Status{Authenticated: true, Source: SourceKeychain, Email: found.email}, nil
		default:
			r.logger.Info("keychain key rejected by provider")
		}
	}

	creds, err := r.store.GetCredentials(ctx)
	if err == nil {
		return &Status{Authenticated: true, Source: SourceDatabase, Email: creds.Email}, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("reading stored credentials: %w", err)
	}

	return &Status{Authenticated: false, Source: SourceNone}, nil
}

// SubmitKey validates a manually entered key and stores it on success.
// Returns ErrInvalidKey when the provider rejects the key; a transport
// failure surfaces as a distinct wrapped error and nothing is stored.
func (r *Resolver) SubmitKey(ctx context.Context, apiKey, email string) error {
	valid, err := r.validator.Validate(ctx, apiKey)
	if err != nil {
		return fmt.Errorf("validating api key: %w", err)
	}
	if !valid {
		return ErrInvalidKey
	}

	creds := &store.Credentials{APIKey: apiKey, Email: email}
	if err := r.store.UpsertCredentials(ctx, creds); err != nil {
		return fmt.Errorf("storing credentials: %w", err)
	}

	r.logger.Info("api key validated and stored", "email", email)
	return nil
}

// Credentials returns the stored credential record.
// Returns store.ErrNotFound when nothing has been saved.
func (r *Resolver) Credentials(ctx context.Context) (*store.Credentials, error) {
	return r.store.GetCredentials(ctx)
}
