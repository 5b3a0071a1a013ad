package ports

import (
	"context"

	"github.com/royalclubcanada/dropin/internal/domain"
)

// SessionStore keeps durable session snapshots. Save is a compare-and-set:
// it writes only when the stored Revision is exactly session.Revision-1
// (zero when absent) and otherwise fails with domain.ErrRevisionConflict.
type SessionStore interface {
	Save(ctx context.Context, session domain.Session) error
	GetByID(ctx context.Context, id domain.SessionID) (domain.Session, error)
	List(ctx context.Context) ([]domain.Session, error)
}
