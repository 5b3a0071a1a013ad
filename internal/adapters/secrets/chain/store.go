// Package chain layers secret stores: reads try each store in order, writes go to the first writable one.
package chain

import (
	"context"
	"errors"
	"fmt"

	envstore "github.com/royalclubcanada/dropin/internal/adapters/secrets/env"
	filestore "github.com/royalclubcanada/dropin/internal/adapters/secrets/file"
	"github.com/royalclubcanada/dropin/internal/domain"
	"github.com/royalclubcanada/dropin/internal/ports"
)

var (
	errNoStores   = errors.New("secret chain needs at least one store")
	errNilStore   = errors.New("secret chain store is nil")
	errNoWritable = errors.New("no writable secret store in chain")
)

type Store struct {
	stores []ports.SecretStore
}

var _ ports.SecretStore = (*Store)(nil)

func New(stores ...ports.SecretStore) (*Store, error) {
	if len(stores) == 0 {
		return nil, errNoStores
	}
	for i, store := range stores {
		if store == nil {
			return nil, fmt.Errorf("%w at position %d", errNilStore, i)
		}
	}

	return &Store{stores: append([]ports.SecretStore(nil), stores...)}, nil
}

// NewEnvFirstWithFileFallback lets DROPIN_* variables override tokens saved under fileRoot.
func NewEnvFirstWithFileFallback(envPrefix, fileRoot string) (*Store, error) {
	return New(envstore.NewStore(envPrefix), filestore.NewStore(fileRoot))
}

// Get returns the first value found. A store failing for any reason other than
// a missing secret does not hide later stores, but its error is reported when
// nothing is found.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	var errs []error
	for _, store := range s.stores {
		value, err := store.Get(ctx, key)
		if err == nil {
			return value, nil
		}
		if isContextErr(err) {
			return "", err
		}
		if !errors.Is(err, domain.ErrSecretNotFound) {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return "", fmt.Errorf("get secret %q: %w", key, errors.Join(errs...))
	}
	return "", fmt.Errorf("secret %q: %w", key, domain.ErrSecretNotFound)
}

// Put writes to the first store that is not read-only.
func (s *Store) Put(ctx context.Context, key string, value string) error {
	for _, store := range s.stores {
		err := store.Put(ctx, key, value)
		if errors.Is(err, domain.ErrSecretReadOnly) {
			continue
		}
		if err != nil {
			return fmt.Errorf("put secret %q: %w", key, err)
		}
		return nil
	}

	return errNoWritable
}

// Delete removes the key from every writable store.
func (s *Store) Delete(ctx context.Context, key string) error {
	var (
		errs     []error
		writable bool
	)
	for _, store := range s.stores {
		err := store.Delete(ctx, key)
		if errors.Is(err, domain.ErrSecretReadOnly) {
			continue
		}
		writable = true
		if isContextErr(err) {
			return err
		}
		if err != nil {
			errs = append(errs, err)
		}
	}

	if !writable {
		return errNoWritable
	}
	if len(errs) > 0 {
		return fmt.Errorf("delete secret %q: %w", key, errors.Join(errs...))
	}
	return nil
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
