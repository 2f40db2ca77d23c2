package model

import "time"

// Post is a short text entry owned by one account.
type Post struct {
	ID        uint64    `json:"id"`
	AccountID uint64    `json:"account_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// PostView is a post joined with its author and like count, as listed on the
// home feed.
type PostView struct {
	Post
	Author    string `json:"author"`
	Likes     int    `json:"likes"`
	LikedByMe bool   `json:"liked_by_me"`
}

// RevokedToken models an entry in the `revoked_tokens` table.  Rows are
// keyed by the token's jti and can be purged once ExpiresAt has passed.
type RevokedToken struct {
	TokenID   string
	AccountID uint64
	ExpiresAt *time.Time
	RevokedAt time.Time
}
