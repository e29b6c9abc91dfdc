package auth

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "pixivwatch"
	keyringPrefix  = "pixiv_"
	keyringIndex   = "accounts_index"
)

// KeyringStore implements CredentialStore using the system keychain
type KeyringStore struct{}

// NewKeyringStore creates a keyring-backed store, failing when no keychain
// backend is available
func NewKeyringStore() (*KeyringStore, error) {
	testKey := "test_availability"
	if err := keyring.Set(keyringService, testKey, "test"); err != nil {
		return nil, fmt.Errorf("keyring not available: %w", err)
	}
	_ = keyring.Delete(keyringService, testKey)

	return &KeyringStore{}, nil
}

// Store saves credentials to the system keychain
func (k *KeyringStore) Store(account *Account) error {
	if account == nil || account.Name == "" {
		return ErrInvalidCredentials
	}

	data, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("failed to marshal account: %w", err)
	}

	if err := keyring.Set(keyringService, keyringPrefix+account.Name, string(data)); err != nil {
		return fmt.Errorf("failed to store in keyring: %w", err)
	}

	return k.addToIndex(account.Name)
}

// Retrieve gets credentials from the system keychain
func (k *KeyringStore) Retrieve(name string) (*Account, error) {
	if name == "" {
		return nil, ErrInvalidCredentials
	}

	data, err := keyring.Get(keyringService, keyringPrefix+name)
	if err != nil {
		if err == keyring.ErrNotFound {
			return nil, ErrCredentialsNotFound
		}
		return nil, fmt.Errorf("failed to read keyring: %w", err)
	}

	var account Account
	if err := json.Unmarshal([]byte(data), &account); err != nil {
		return nil, fmt.Errorf("failed to unmarshal account: %w", err)
	}

	return &account, nil
}

// List returns all accounts recorded in the keychain index
func (k *KeyringStore) List() ([]*Account, error) {
	names, err := k.readIndex()
	if err != nil {
		return []*Account{}, nil
	}

	var accounts []*Account
	for _, name := range names {
		if account, err := k.Retrieve(name); err == nil {
			accounts = append(accounts, account)
		}
	}
	return accounts, nil
}

// Delete removes credentials from the system keychain
func (k *KeyringStore) Delete(name string) error {
	if name == "" {
		return ErrInvalidCredentials
	}

	if err := keyring.Delete(keyringService, keyringPrefix+name); err != nil {
		if err == keyring.ErrNotFound {
			return ErrCredentialsNotFound
		}
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}

	return k.removeFromIndex(name)
}

// The keychain has no enumeration API, so account names are tracked in a
// separate index entry.

func (k *KeyringStore) readIndex() ([]string, error) {
	data, err := keyring.Get(keyringService, keyringIndex)
	if err != nil {
		return nil, err
	}
	if data == "" {
		return nil, nil
	}
	return strings.Split(data, ","), nil
}

func (k *KeyringStore) addToIndex(name string) error {
	names, _ := k.readIndex()
	for _, existing := range names {
		if existing == name {
			return nil
		}
	}
	names = append(names, name)
	return keyring.Set(keyringService, keyringIndex, strings.Join(names, ","))
}

func (k *KeyringStore) removeFromIndex(name string) error {
	names, err := k.readIndex()
	if err != nil {
		return nil
	}
	var kept []string
	for _, existing := range names {
		if existing != name {
			kept = append(kept, existing)
		}
	}
	if len(kept) == 0 {
		return keyring.Delete(keyringService, keyringIndex)
	}
	return keyring.Set(keyringService, keyringIndex, strings.Join(kept, ","))
}
