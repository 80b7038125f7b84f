package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfriesen/actionreplay/internal/crypto"
	"github.com/mfriesen/actionreplay/internal/domain"
)

// --- Mock implementations ---

type mockStore struct {
	mu      sync.Mutex
	records map[string]domain.SessionRecord
	order   []string

	listErr       error
	upsertErr     error
	deactivateErr error
}

func newMockStore() *mockStore {
	return &mockStore{records: make(map[string]domain.SessionRecord)}
}

func (m *mockStore) Name() string { return "mock" }

func (m *mockStore) ListActive(_ context.Context) ([]domain.SessionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]domain.SessionRecord, 0, len(m.order))
	for _, id := range m.order {
		if rec, ok := m.records[id]; ok && rec.Active {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *mockStore) Upsert(_ context.Context, rec domain.SessionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return m.upsertErr
	}
	if _, ok := m.records[rec.Identity]; !ok {
		m.order = append(m.order, rec.Identity)
	}
	m.records[rec.Identity] = rec
	return nil
}

func (m *mockStore) Deactivate(_ context.Context, identity string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deactivateErr != nil {
		return m.deactivateErr
	}
	if rec, ok := m.records[identity]; ok {
		rec.Active = false
		m.records[identity] = rec
	}
	return nil
}

func (m *mockStore) MarkUsed(_ context.Context, identity string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.records[identity]; ok && rec.Active {
		rec.LastUsedAt = at
		rec.TotalActions++
		m.records[identity] = rec
	}
	return nil
}

func (m *mockStore) Ping(_ context.Context) error { return nil }

type probeDriver struct {
	mu            sync.Mutex
	authenticated bool
	probeErr      error
	contexts      int
}

func (d *probeDriver) NewContext(_ context.Context) (domain.DriverContext, error) {
	d.mu.Lock()
	d.contexts++
	d.mu.Unlock()
	return &probeContext{driver: d}, nil
}

type probeContext struct {
	driver *probeDriver
}

func (c *probeContext) ApplyCredential(context.Context, domain.Credential) error { return nil }

func (c *probeContext) Navigate(context.Context, string, time.Duration) error { return nil }

func (c *probeContext) ProbeAuthenticated(context.Context, time.Duration) (bool, error) {
	return c.driver.authenticated, c.driver.probeErr
}

func (c *probeContext) DispatchAction(context.Context, domain.ActionKind, string, time.Duration) error {
	return nil
}

func (c *probeContext) Release() {}

func newTestRegistry(store domain.SessionStore, driver domain.ActionDriver, cipher crypto.Cipher) *Registry {
	return New(store, driver, cipher, clockwork.NewFakeClock(), time.Second)
}

// --- Tests ---

func TestRegistrySave(t *testing.T) {
	store := newMockStore()
	r := newTestRegistry(store, &probeDriver{}, crypto.Noop{})

	rec, err := r.Save(context.Background(), "alpha", domain.NewCredential("c_user=alpha; xs=t"), domain.MethodImported)
	require.NoError(t, err)

	assert.Equal(t, "alpha", rec.Identity)
	assert.True(t, rec.Active)
	assert.Equal(t, domain.MethodImported, rec.Method)
	assert.Regexp(t, `^FB_\d+_[0-9a-f]{8}$`, rec.SerialTag)
	assert.Equal(t, rec.CreatedAt, rec.LastUsedAt)
}

func TestRegistrySaveValidatesInput(t *testing.T) {
	r := newTestRegistry(newMockStore(), &probeDriver{}, crypto.Noop{})

	_, err := r.Save(context.Background(), "", domain.NewCredential("x"), domain.MethodImported)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = r.Save(context.Background(), "alpha", domain.NewCredential(""), domain.MethodImported)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRegistrySaveReplacesAndRegeneratesSerialTag(t *testing.T) {
	store := newMockStore()
	r := newTestRegistry(store, &probeDriver{}, crypto.Noop{})
	ctx := context.Background()

	first, err := r.Save(ctx, "alpha", domain.NewCredential("old"), domain.MethodImported)
	require.NoError(t, err)
	second, err := r.Save(ctx, "alpha", domain.NewCredential("new"), domain.MethodInteractiveLogin)
	require.NoError(t, err)

	assert.NotEqual(t, first.SerialTag, second.SerialTag)

	active := r.ListActive(ctx)
	require.Len(t, active, 1)
	assert.Equal(t, "new", active[0].Credential.Reveal())
	assert.Equal(t, domain.MethodInteractiveLogin, active[0].Method)
}

func TestRegistrySaveStoreFailure(t *testing.T) {
	store := newMockStore()
	store.upsertErr = errors.New("disk full")
	r := newTestRegistry(store, &probeDriver{}, crypto.Noop{})

	_, err := r.Save(context.Background(), "alpha", domain.NewCredential("x"), domain.MethodImported)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestRegistryCredentialSealedAtRest(t *testing.T) {
	store := newMockStore()
	cipher, err := crypto.NewAesGcm("0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef")
	require.NoError(t, err)
	r := newTestRegistry(store, &probeDriver{}, cipher)
	ctx := context.Background()

	raw := "c_user=alpha; xs=super-secret"
	_, err = r.Save(ctx, "alpha", domain.NewCredential(raw), domain.MethodImported)
	require.NoError(t, err)

	// At rest the credential is ciphertext.
	stored := store.records["alpha"]
	assert.NotEqual(t, raw, stored.Credential.Reveal())

	// Reads transparently unseal.
	active := r.ListActive(ctx)
	require.Len(t, active, 1)
	assert.Equal(t, raw, active[0].Credential.Reveal())
}

func TestRegistryListActiveSkipsUndecryptable(t *testing.T) {
	store := newMockStore()
	cipher, err := crypto.NewAesGcm("0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef")
	require.NoError(t, err)
	r := newTestRegistry(store, &probeDriver{}, cipher)
	ctx := context.Background()

	_, err = r.Save(ctx, "good", domain.NewCredential("c_user=good"), domain.MethodImported)
	require.NoError(t, err)
	// Simulate a record written before encryption was enabled.
	require.NoError(t, store.Upsert(ctx, domain.SessionRecord{
		Identity:   "stale",
		Credential: domain.NewCredential("plaintext-not-hex"),
		Active:     true,
	}))

	active := r.ListActive(ctx)
	require.Len(t, active, 1)
	assert.Equal(t, "good", active[0].Identity)
}

func TestRegistryListActiveDegradesOnStoreFailure(t *testing.T) {
	store := newMockStore()
	store.listErr = errors.New("backend down")
	r := newTestRegistry(store, &probeDriver{}, crypto.Noop{})

	assert.Empty(t, r.ListActive(context.Background()))
}

func TestRegistryEvict(t *testing.T) {
	store := newMockStore()
	r := newTestRegistry(store, &probeDriver{}, crypto.Noop{})
	ctx := context.Background()

	_, err := r.Save(ctx, "alpha", domain.NewCredential("x"), domain.MethodImported)
	require.NoError(t, err)

	r.Evict(ctx, "alpha")
	assert.Empty(t, r.ListActive(ctx))

	// Idempotent, including for identities that never existed.
	r.Evict(ctx, "alpha")
	r.Evict(ctx, "ghost")
}

func TestRegistryMarkUsedSwallowsFailures(t *testing.T) {
	store := newMockStore()
	r := newTestRegistry(store, &probeDriver{}, crypto.Noop{})
	ctx := context.Background()

	_, err := r.Save(ctx, "alpha", domain.NewCredential("x"), domain.MethodImported)
	require.NoError(t, err)

	r.MarkUsed(ctx, "alpha")
	r.MarkUsed(ctx, "ghost") // unknown identity is a no-op

	active := r.ListActive(ctx)
	require.Len(t, active, 1)
	assert.Equal(t, 1, active[0].TotalActions)
}

func TestRegistryValidate(t *testing.T) {
	t.Run("authenticated session stays", func(t *testing.T) {
		store := newMockStore()
		driver := &probeDriver{authenticated: true}
		r := newTestRegistry(store, driver, crypto.Noop{})
		ctx := context.Background()

		_, err := r.Save(ctx, "alpha", domain.NewCredential("x"), domain.MethodImported)
		require.NoError(t, err)

		valid, err := r.Validate(ctx, "alpha")
		require.NoError(t, err)
		assert.True(t, valid)
		assert.Len(t, r.ListActive(ctx), 1)
	})

	t.Run("failed probe evicts", func(t *testing.T) {
		store := newMockStore()
		driver := &probeDriver{authenticated: false}
		r := newTestRegistry(store, driver, crypto.Noop{})
		ctx := context.Background()

		_, err := r.Save(ctx, "alpha", domain.NewCredential("x"), domain.MethodImported)
		require.NoError(t, err)

		valid, err := r.Validate(ctx, "alpha")
		require.NoError(t, err)
		assert.False(t, valid)
		assert.Empty(t, r.ListActive(ctx))
	})

	t.Run("unknown identity", func(t *testing.T) {
		r := newTestRegistry(newMockStore(), &probeDriver{}, crypto.Noop{})
		_, err := r.Validate(context.Background(), "ghost")
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("probe error surfaces without evicting", func(t *testing.T) {
		store := newMockStore()
		driver := &probeDriver{probeErr: fmt.Errorf("page crashed")}
		r := newTestRegistry(store, driver, crypto.Noop{})
		ctx := context.Background()

		_, err := r.Save(ctx, "alpha", domain.NewCredential("x"), domain.MethodImported)
		require.NoError(t, err)

		_, err = r.Validate(ctx, "alpha")
		assert.Error(t, err)
		assert.Len(t, r.ListActive(ctx), 1, "an inconclusive probe must not evict")
	})
}
