// ABOUTME: OS keychain access for discovering stored Anthropic credentials
// ABOUTME: Defines the Keychain interface, the system-backed implementation, and the probe matrix

package keychain

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// ErrNotFound is returned when no secret exists for a service/account pair
var ErrNotFound = errors.New("keychain entry not found")

// Keychain reads secrets from a credential store
type Keychain interface {
	Get(service, account string) (string, error)
}

// ProbePair is one service/account combination to look up
type ProbePair struct {
	Service string
	Account string
}

// probeServices are the keychain service names Claude Code and related tools
// store credentials under, in priority order
var probeServices = []string{
	"com.anthropic.claude-code",
	"claude-code",
	"anthropic-claude",
}

// probeAccounts are the account names tried for each service, in priority order
var probeAccounts = []string{
	"default",
	"api_key",
	"credentials",
}

// ProbePairs returns the fixed lookup matrix in priority order.
// All accounts of a service are tried before moving to the next service.
func ProbePairs() []ProbePair {
	pairs := make([]ProbePair, 0, len(probeServices)*len(probeAccounts))
	for _, service := range probeServices {
		for _, account := range probeAccounts {
			pairs = append(pairs, ProbePair{Service: service, Account: account})
		}
	}
	return pairs
}

// systemKeychain is backed by the operating system credential store
type systemKeychain struct{}

// System returns a Keychain backed by the OS credential store
// (macOS Keychain, Windows Credential Manager, or the freedesktop Secret Service).
func System() Keychain {
	return systemKeychain{}
}

func (systemKeychain) Get(service, account string) (string, error) {
	secret, err := keyring.Get(service, account)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("reading keychain entry %s/%s: %w", service, account, err)
	}
	return secret, nil
}

// Ensure systemKeychain implements Keychain.
var _ Keychain = systemKeychain{}
