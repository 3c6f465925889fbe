package session

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"storefront-client/internal/apperr"
	"storefront-client/internal/client"
	"storefront-client/internal/model"
	"storefront-client/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRepo(t *testing.T) repository.SessionRepository {
	t.Helper()
	db, err := client.InitStoreDB(filepath.Join(t.TempDir(), "session.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return repository.NewSessionRepository(db)
}

// slowRepo keeps sessions in memory and delays writes by the session's Name.
type slowRepo struct {
	mu    sync.Mutex
	rows  map[string]model.Session
	delay map[string]time.Duration
}

func (r *slowRepo) Save(_ context.Context, key string, s *model.Session) error {
	time.Sleep(r.delay[s.Name])
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[key] = *s
	return nil
}

func (r *slowRepo) Load(_ context.Context, key string) (*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.rows[key]
	if !ok {
		return nil, repository.ErrSessionNotFound
	}
	return &s, nil
}

func (r *slowRepo) Delete(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, key)
	return nil
}

func TestContext_TokenWithoutSession(t *testing.T) {
	sc := NewContext(newTestRepo(t), "userInfo", zap.NewNop())

	_, err := sc.Token()
	require.Error(t, err)
	assert.Equal(t, apperr.KindAuth, apperr.Classify(err))
	assert.Nil(t, sc.Current())
}

func TestContext_SignInPersistsAndRehydrates(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	sc := NewContext(repo, "userInfo", zap.NewNop())
	require.NoError(t, sc.SignIn(ctx, &model.Session{ID: "u1", Name: "Ada", Email: "ada@example.com", Token: "tok"}))

	token, err := sc.Token()
	require.NoError(t, err)
	assert.Equal(t, "tok", token)

	restored := NewContext(repo, "userInfo", zap.NewNop())
	require.NoError(t, restored.Rehydrate(ctx))
	require.NotNil(t, restored.Current())
	assert.Equal(t, "Ada", restored.Current().Name)
}

func TestContext_RehydrateEmptyStore(t *testing.T) {
	sc := NewContext(newTestRepo(t), "userInfo", zap.NewNop())
	require.NoError(t, sc.Rehydrate(context.Background()))
	assert.Nil(t, sc.Current())
}

func TestContext_CurrentIsACopy(t *testing.T) {
	sc := NewContext(newTestRepo(t), "userInfo", zap.NewNop())
	require.NoError(t, sc.SignIn(context.Background(), &model.Session{ID: "u1", Name: "Ada", Token: "tok"}))

	s := sc.Current()
	s.Name = "mutated"
	assert.Equal(t, "Ada", sc.Current().Name)
}

func TestContext_SignOut(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	sc := NewContext(repo, "userInfo", zap.NewNop())
	require.NoError(t, sc.SignIn(ctx, &model.Session{ID: "u1", Token: "tok"}))

	require.NoError(t, sc.SignOut(ctx))
	assert.Nil(t, sc.Current())

	_, err := repo.Load(ctx, "userInfo")
	assert.ErrorIs(t, err, repository.ErrSessionNotFound)
}

func TestContext_ReplaceIsAtomic(t *testing.T) {
	sc := NewContext(newTestRepo(t), "userInfo", zap.NewNop())
	ctx := context.Background()
	require.NoError(t, sc.SignIn(ctx, &model.Session{ID: "u1", Name: "a", Email: "a@example.com", Token: "a"}))

	var wg sync.WaitGroup
	for _, name := range []string{"b", "c", "d"} {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			sc.Replace(ctx, &model.Session{ID: "u1", Name: name, Email: name + "@example.com", Token: name})
		}(name)
	}

	for i := 0; i < 100; i++ {
		s := sc.Current()
		// name, email and token always come from the same write
		assert.Equal(t, s.Name, s.Token)
		assert.Equal(t, s.Name+"@example.com", s.Email)
	}
	wg.Wait()
}

func TestContext_StoredSessionMatchesCurrent(t *testing.T) {
	repo := &slowRepo{
		rows: map[string]model.Session{},
		// earlier writers take longer to reach the store
		delay: map[string]time.Duration{"a": 30 * time.Millisecond, "b": 15 * time.Millisecond},
	}
	sc := NewContext(repo, "userInfo", zap.NewNop())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i, name := range []string{"a", "b", "c"} {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			assert.NoError(t, sc.Replace(ctx, &model.Session{ID: "u1", Name: name, Token: name}))
		}(name)
		time.Sleep(time.Duration(i+1) * time.Millisecond)
	}
	wg.Wait()

	stored, err := repo.Load(ctx, "userInfo")
	require.NoError(t, err)
	assert.Equal(t, sc.Current(), stored)

	require.NoError(t, sc.SignIn(ctx, &model.Session{ID: "u2", Name: "b", Token: "b"}))
	require.NoError(t, sc.SignOut(ctx))
	_, err = repo.Load(ctx, "userInfo")
	assert.ErrorIs(t, err, repository.ErrSessionNotFound)
}
