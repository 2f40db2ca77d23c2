package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/authgate/internal/model"
)

// PostRepo is the MySQL-backed PostStore.
type PostRepo struct{ DB *sql.DB }

func NewPostRepo(db *sql.DB) *PostRepo { return &PostRepo{DB: db} }

// Create inserts a post owned by accountID.
func (r *PostRepo) Create(ctx context.Context, accountID uint64, content string) (uint64, error) {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO posts (account_id, content) VALUES (?,?)", accountID, content)
	if err != nil {
		return 0, fmt.Errorf("posts.Create: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("posts.Create: %w", err)
	}
	return uint64(id), nil
}

// GetByID fetches one post.
func (r *PostRepo) GetByID(ctx context.Context, id uint64) (model.Post, error) {
	var p model.Post
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,account_id,content,created_at FROM posts WHERE id=? LIMIT 1", id).
		Scan(&p.ID, &p.AccountID, &p.Content, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Post{}, ErrNotFound
	}
	if err != nil {
		return model.Post{}, fmt.Errorf("posts.GetByID: %w", err)
	}
	return p, nil
}

// List returns the newest posts first, with author and like counts as seen
// by viewerID.
func (r *PostRepo) List(ctx context.Context, viewerID uint64, limit int) ([]model.PostView, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.DB.QueryContext(ctx, `
		SELECT p.id, p.account_id, p.content, p.created_at, a.username,
		       (SELECT COUNT(*) FROM post_likes l WHERE l.post_id = p.id) AS likes,
		       EXISTS(SELECT 1 FROM post_likes m WHERE m.post_id = p.id AND m.account_id = ?) AS liked
		FROM posts p
		JOIN accounts a ON a.id = p.account_id
		ORDER BY p.created_at DESC, p.id DESC
		LIMIT ?`, viewerID, limit)
	if err != nil {
		return nil, fmt.Errorf("posts.List: %w", err)
	}
	defer rows.Close()

	out := make([]model.PostView, 0, limit)
	for rows.Next() {
		var v model.PostView
		if err := rows.Scan(&v.ID, &v.AccountID, &v.Content, &v.CreatedAt, &v.Author, &v.Likes, &v.LikedByMe); err != nil {
			return nil, fmt.Errorf("posts.List: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("posts.List: %w", err)
	}
	return out, nil
}

// Like records accountID's like on postID.  Liking twice is a no-op.
// INSERT IGNORE also swallows foreign key failures, so when nothing was
// inserted the post is looked up to tell a repeat like from a missing post.
func (r *PostRepo) Like(ctx context.Context, postID, accountID uint64) error {
	res, err := r.DB.ExecContext(ctx,
		"INSERT IGNORE INTO post_likes (post_id, account_id) VALUES (?,?)", postID, accountID)
	if err != nil {
		return fmt.Errorf("posts.Like: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}
	var one int
	err = r.DB.QueryRowContext(ctx, "SELECT 1 FROM posts WHERE id=?", postID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("posts.Like: %w", err)
	}
	return nil
}

// Delete removes a post and its likes.
func (r *PostRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM posts WHERE id=?", id)
	if err != nil {
		return fmt.Errorf("posts.Delete: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
