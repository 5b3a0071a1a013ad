package ports

import "context"

// SecretStore holds credentials such as the court API token, keyed by
// slash-separated names like "courts/api-token". Get reports
// domain.ErrSecretNotFound for a missing key; read-only stores return
// domain.ErrSecretReadOnly from Put and Delete.
type SecretStore interface {
	Get(ctx context.Context, key string) (string, error)
	Put(ctx context.Context, key string, token string) error
	Delete(ctx context.Context, key string) error
}
