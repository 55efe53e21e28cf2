package authflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// memCredentialStore is an in-memory CredentialStore with the same
// unknown-identifier semantics the engine relies on: counter methods
// no-op when the email resolves to nothing.
type memCredentialStore struct {
	mu        sync.Mutex
	users     map[string]*User // by id
	passwords map[string]string
	accounts  map[string]*Account // by id
	failed    map[string]int      // by account id

	findErr error
}

func newMemCredentialStore() *memCredentialStore {
	return &memCredentialStore{
		users:     map[string]*User{},
		passwords: map[string]string{},
		accounts:  map[string]*Account{},
		failed:    map[string]int{},
	}
}

func (m *memCredentialStore) addUser(user *User, password string, account *Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user
	m.passwords[user.ID] = password
	m.accounts[account.ID] = account
}

func (m *memCredentialStore) setFailed(accountID string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed[accountID] = n
}

func (m *memCredentialStore) failedCount(accountID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failed[accountID]
}

func (m *memCredentialStore) byEmail(email string) *User {
	for _, u := range m.users {
		if u.Email == email {
			return u
		}
	}
	return nil
}

func (m *memCredentialStore) FindByEmail(_ context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	return m.byEmail(email), nil
}

func (m *memCredentialStore) FindByID(_ context.Context, userID string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[userID], nil
}

func (m *memCredentialStore) FindByOAuth(_ context.Context, provider, subject string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.OAuthProvider == provider && u.OAuthUserID == subject {
			return u, nil
		}
	}
	return nil, nil
}

func (m *memCredentialStore) VerifyPassword(_ context.Context, user *User, secret string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.passwords[user.ID] == secret, nil
}

func (m *memCredentialStore) CountUsers(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users), nil
}

func (m *memCredentialStore) AccountForUser(_ context.Context, user *User) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	account := m.accounts[user.AccountID]
	if account == nil {
		return nil, errors.New("account not found")
	}
	return account, nil
}

func (m *memCredentialStore) FailedLogins(_ context.Context, email string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user := m.byEmail(email)
	if user == nil {
		return 0, nil
	}
	return m.failed[user.AccountID], nil
}

func (m *memCredentialStore) IncrementFailedLogins(_ context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user := m.byEmail(email); user != nil {
		m.failed[user.AccountID]++
	}
	return nil
}

func (m *memCredentialStore) ResetFailedLogins(_ context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user := m.byEmail(email); user != nil {
		m.failed[user.AccountID] = 0
	}
	return nil
}

// memAccountRepo records the cleanup calls it receives.
type memAccountRepo struct {
	mu               sync.Mutex
	unlinked         []string
	unlinkedUsers    []string
	deletedCompanies []string
	deletedAccounts  []string
	sharedCompanies  map[string]bool

	deleteAccountErr error
}

func newMemAccountRepo() *memAccountRepo {
	return &memAccountRepo{sharedCompanies: map[string]bool{}}
}

func (r *memAccountRepo) UnlinkOAuthUser(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unlinkedUsers = append(r.unlinkedUsers, userID)
	return nil
}

func (r *memAccountRepo) UnlinkOAuth(_ context.Context, accountID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unlinked = append(r.unlinked, accountID)
	return nil
}

func (r *memAccountRepo) CompanyShared(_ context.Context, account *Account) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sharedCompanies[account.CompanyID], nil
}

func (r *memAccountRepo) ForceDeleteCompany(_ context.Context, companyID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deletedCompanies = append(r.deletedCompanies, companyID)
	return nil
}

func (r *memAccountRepo) ForceDeleteAccount(_ context.Context, accountID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleteAccountErr != nil {
		return r.deleteAccountErr
	}
	r.deletedAccounts = append(r.deletedAccounts, accountID)
	return nil
}

func (r *memAccountRepo) Transact(_ context.Context, fn func(AccountRepository) error) error {
	return fn(r)
}

// fakeOAuthFlow captures the state handed to the provider and returns a
// canned identity on completion.
type fakeOAuthFlow struct {
	mu            sync.Mutex
	capturedState string
	identity      *VerifiedIdentity
	completeErr   error
}

func (f *fakeOAuthFlow) Begin(_ context.Context, provider, state string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.capturedState = state
	return "https://provider.example/authorize?p=" + provider, nil
}

func (f *fakeOAuthFlow) Complete(context.Context, string) (*VerifiedIdentity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.completeErr != nil {
		return nil, f.completeErr
	}
	return f.identity, nil
}

func (f *fakeOAuthFlow) state() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.capturedState
}

// codeVerifier accepts a fixed set of codes.
type codeVerifier struct {
	valid map[string]bool
}

func (v *codeVerifier) Verify(_ context.Context, _ *User, code string) (bool, error) {
	return v.valid[code], nil
}

type testRig struct {
	engine *Engine
	store  *memCredentialStore
	repo   *memAccountRepo
	oauth  *fakeOAuthFlow
	events *ChannelEventSink
	redis  *miniredis.Miniredis
}

func newTestRig(t *testing.T, mutate func(*Config, *Builder)) *testRig {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	store := newMemCredentialStore()
	repo := newMemAccountRepo()
	oauth := &fakeOAuthFlow{}
	events := NewChannelEventSink(16)

	cfg := DefaultConfig()
	cfg.OAuth.StateSecret = []byte("0123456789abcdef0123456789abcdef")
	cfg.Audit.Enabled = false

	builder := New().
		WithRedis(rdb).
		WithCredentialStore(store).
		WithAccountRepository(repo).
		WithOAuthFlow(oauth).
		WithEventSink(events)

	if mutate != nil {
		mutate(&cfg, builder)
	}
	builder.WithConfig(cfg)

	engine, err := builder.Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}

	t.Cleanup(func() {
		engine.Close()
		_ = rdb.Close()
		mr.Close()
	})

	return &testRig{
		engine: engine,
		store:  store,
		repo:   repo,
		oauth:  oauth,
		events: events,
		redis:  mr,
	}
}

func (r *testRig) seedUser(secondFactor bool) (*User, *Account) {
	account := &Account{ID: "acc-1", AccountKey: "key-1", CompanyID: "co-1", Registered: true}
	user := &User{ID: "u-1", AccountID: "acc-1", Email: "owner@example.com"}
	if secondFactor {
		user.SecondFactorSecret = "JBSWY3DPEHPK3PXP"
	}
	r.store.addUser(user, "hunter22", account)
	return user, account
}

func (r *testRig) drainEvents() []UserLoggedIn {
	var out []UserLoggedIn
	for {
		select {
		case ev := <-r.events.Events():
			out = append(out, ev)
		default:
			return out
		}
	}
}

func (r *testRig) expectOneEvent(t *testing.T, method string) UserLoggedIn {
	t.Helper()
	evs := r.drainEvents()
	if len(evs) != 1 {
		t.Fatalf("UserLoggedIn fired %d times, want 1", len(evs))
	}
	if evs[0].Method != method {
		t.Fatalf("event method = %q, want %q", evs[0].Method, method)
	}
	if evs[0].EventID == "" || evs[0].OccurredAt.IsZero() {
		t.Fatalf("event missing id or timestamp: %+v", evs[0])
	}
	return evs[0]
}

func (r *testRig) expectNoEvents(t *testing.T) {
	t.Helper()
	if evs := r.drainEvents(); len(evs) != 0 {
		t.Fatalf("unexpected events: %+v", evs)
	}
}

func mustBeDenied(t *testing.T, resp *Response, err, want error) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Fatalf("err = %v, want %v", err, want)
	}
	if resp == nil || resp.Kind != RespondDenied {
		t.Fatalf("response = %+v, want denial", resp)
	}
	if resp.Message == "" {
		t.Fatal("denial carries no message")
	}
}

func loginChallengedUser(t *testing.T, rig *testRig, sessionID string) {
	t.Helper()
	resp, err := rig.engine.CompleteLogin(context.Background(), sessionID, "owner@example.com", "hunter22")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if resp.Kind != RespondRedirect || resp.AccountKey != "key-1" {
		t.Fatalf("expected challenge redirect, got %+v", resp)
	}
}

func shortCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}
