package repository

import (
	"context"
	"time"

	"github.com/iliyamo/authgate/internal/model"
)

// AccountStore is the persistence contract for accounts.  Lookups return
// ErrNotFound for missing rows; any other error is a storage failure.
type AccountStore interface {
	Create(ctx context.Context, a model.NewAccount) (uint64, error)
	GetByID(ctx context.Context, id uint64) (model.Account, error)
	GetByEmail(ctx context.Context, email string) (model.Account, error)
	UpdateProfile(ctx context.Context, id uint64, upd model.ProfileUpdate) error
	Delete(ctx context.Context, id uint64) error
}

// PostStore persists posts and likes.
type PostStore interface {
	Create(ctx context.Context, accountID uint64, content string) (uint64, error)
	GetByID(ctx context.Context, id uint64) (model.Post, error)
	List(ctx context.Context, viewerID uint64, limit int) ([]model.PostView, error)
	Like(ctx context.Context, postID, accountID uint64) error
	Delete(ctx context.Context, id uint64) error
}

// RevocationList records logged-out token ids until they would have expired
// anyway.  A nil expiry means the token never expires and the entry is kept.
type RevocationList interface {
	Revoke(ctx context.Context, tokenID string, accountID uint64, exp *time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}
