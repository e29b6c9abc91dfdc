package auth

import (
	"os"
	"time"
)

// EnvironmentStore implements CredentialStore using environment variables,
// primarily for containerized deployments
type EnvironmentStore struct{}

// NewEnvironmentStore creates an environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(account *Account) error {
	return ErrStoreUnavailable
}

// Retrieve gets the refresh token from the environment
func (e *EnvironmentStore) Retrieve(name string) (*Account, error) {
	token := os.Getenv("PIXIVWATCH_REFRESH_TOKEN")
	if token == "" {
		return nil, ErrCredentialsNotFound
	}

	if name == "" {
		name = "default"
	}

	return &Account{
		Name:         name,
		RefreshToken: token,
		LastModified: time.Now(),
	}, nil
}

// List returns a single account when the environment variable is set
func (e *EnvironmentStore) List() ([]*Account, error) {
	account, err := e.Retrieve("")
	if err != nil {
		return []*Account{}, nil
	}
	return []*Account{account}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(name string) error {
	return ErrStoreUnavailable
}
