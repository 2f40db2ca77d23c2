package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/authgate/internal/model"
)

// memDB backs the in-process stores used with DB_DRIVER=memory and in tests.
type memDB struct {
	mu       sync.RWMutex
	accounts map[uint64]model.Account
	posts    map[uint64]model.Post
	likes    map[uint64]map[uint64]struct{} // post id -> account ids
	nextAcct uint64
	nextPost uint64
	now      func() time.Time
}

// MemoryAccounts is an in-process AccountStore.
type MemoryAccounts struct{ db *memDB }

// MemoryPosts is an in-process PostStore sharing state with MemoryAccounts
// so that deleting an account removes its posts and likes.
type MemoryPosts struct{ db *memDB }

// NewMemory returns account and post stores over one shared in-memory state.
func NewMemory() (*MemoryAccounts, *MemoryPosts) {
	db := &memDB{
		accounts: map[uint64]model.Account{},
		posts:    map[uint64]model.Post{},
		likes:    map[uint64]map[uint64]struct{}{},
		now:      func() time.Time { return time.Now().UTC() },
	}
	return &MemoryAccounts{db: db}, &MemoryPosts{db: db}
}

func (m *MemoryAccounts) Create(ctx context.Context, a model.NewAccount) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	db := m.db
	db.mu.Lock()
	defer db.mu.Unlock()

	username := strings.TrimSpace(a.Username)
	email := normalizeEmail(a.Email)
	if db.taken(0, username, email) {
		return 0, ErrDuplicateAccount
	}
	db.nextAcct++
	now := db.now()
	db.accounts[db.nextAcct] = model.Account{
		ID:           db.nextAcct,
		Username:     username,
		Email:        email,
		PasswordHash: a.PasswordHash,
		Name:         a.Name,
		Age:          copyInt(a.Age),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return db.nextAcct, nil
}

func (m *MemoryAccounts) GetByID(ctx context.Context, id uint64) (model.Account, error) {
	if err := ctx.Err(); err != nil {
		return model.Account{}, err
	}
	m.db.mu.RLock()
	defer m.db.mu.RUnlock()
	a, ok := m.db.accounts[id]
	if !ok {
		return model.Account{}, ErrNotFound
	}
	a.Age = copyInt(a.Age)
	return a, nil
}

func (m *MemoryAccounts) GetByEmail(ctx context.Context, email string) (model.Account, error) {
	if err := ctx.Err(); err != nil {
		return model.Account{}, err
	}
	email = normalizeEmail(email)
	m.db.mu.RLock()
	defer m.db.mu.RUnlock()
	for _, a := range m.db.accounts {
		if a.Email == email {
			a.Age = copyInt(a.Age)
			return a, nil
		}
	}
	return model.Account{}, ErrNotFound
}

func (m *MemoryAccounts) UpdateProfile(ctx context.Context, id uint64, upd model.ProfileUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	db := m.db
	db.mu.Lock()
	defer db.mu.Unlock()

	a, ok := db.accounts[id]
	if !ok {
		return ErrNotFound
	}
	username := strings.TrimSpace(upd.Username)
	email := normalizeEmail(upd.Email)
	if db.taken(id, username, email) {
		return ErrDuplicateAccount
	}
	if username != "" {
		a.Username = username
	}
	if email != "" {
		a.Email = email
	}
	if upd.Name != "" {
		a.Name = upd.Name
	}
	if upd.Age != nil {
		a.Age = copyInt(upd.Age)
	}
	a.UpdatedAt = db.now()
	db.accounts[id] = a
	return nil
}

func (m *MemoryAccounts) Delete(ctx context.Context, id uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	db := m.db
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.accounts[id]; !ok {
		return ErrNotFound
	}
	delete(db.accounts, id)
	for pid, p := range db.posts {
		if p.AccountID == id {
			delete(db.posts, pid)
			delete(db.likes, pid)
		}
	}
	for _, likers := range db.likes {
		delete(likers, id)
	}
	return nil
}

// taken reports whether username or email belongs to an account other than self.
func (db *memDB) taken(self uint64, username, email string) bool {
	for id, a := range db.accounts {
		if id == self {
			continue
		}
		if (username != "" && a.Username == username) || (email != "" && a.Email == email) {
			return true
		}
	}
	return false
}

func (m *MemoryPosts) Create(ctx context.Context, accountID uint64, content string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	db := m.db
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.accounts[accountID]; !ok {
		return 0, ErrNotFound
	}
	db.nextPost++
	db.posts[db.nextPost] = model.Post{
		ID:        db.nextPost,
		AccountID: accountID,
		Content:   content,
		CreatedAt: db.now(),
	}
	return db.nextPost, nil
}

func (m *MemoryPosts) GetByID(ctx context.Context, id uint64) (model.Post, error) {
	if err := ctx.Err(); err != nil {
		return model.Post{}, err
	}
	m.db.mu.RLock()
	defer m.db.mu.RUnlock()
	p, ok := m.db.posts[id]
	if !ok {
		return model.Post{}, ErrNotFound
	}
	return p, nil
}

func (m *MemoryPosts) List(ctx context.Context, viewerID uint64, limit int) ([]model.PostView, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	db := m.db
	db.mu.RLock()
	defer db.mu.RUnlock()

	out := make([]model.PostView, 0, len(db.posts))
	for _, p := range db.posts {
		likers := db.likes[p.ID]
		_, mine := likers[viewerID]
		out = append(out, model.PostView{
			Post:      p,
			Author:    db.accounts[p.AccountID].Username,
			Likes:     len(likers),
			LikedByMe: mine,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryPosts) Like(ctx context.Context, postID, accountID uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	db := m.db
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.posts[postID]; !ok {
		return ErrNotFound
	}
	if db.likes[postID] == nil {
		db.likes[postID] = map[uint64]struct{}{}
	}
	db.likes[postID][accountID] = struct{}{}
	return nil
}

func (m *MemoryPosts) Delete(ctx context.Context, id uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	db := m.db
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.posts[id]; !ok {
		return ErrNotFound
	}
	delete(db.posts, id)
	delete(db.likes, id)
	return nil
}

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
