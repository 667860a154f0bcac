package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/finagent/internal/domain"
	"github.com/ashureev/finagent/internal/store"
)

type userRepo struct {
	store.Repository // only the user methods are called
	mu               sync.Mutex
	users            map[string]domain.User
	lastSeenUpdates  int
}

func (u *userRepo) GetUser(_ context.Context, id string) (*domain.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	user, ok := u.users[id]
	if !ok {
		return nil, nil
	}
	return &user, nil
}

func (u *userRepo) UpsertUser(_ context.Context, user *domain.User) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.users[user.UserID] = *user
	return nil
}

func (u *userRepo) UpdateLastSeen(_ context.Context, id string, at time.Time) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	user := u.users[id]
	user.LastSeenAt = at
	u.users[id] = user
	u.lastSeenUpdates++
	return nil
}

func TestMiddlewareIssuesCookieAndSession(t *testing.T) {
	repo := &userRepo{users: map[string]domain.User{}}
	var gotUser, gotSession string
	h := Middleware(repo, true)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		gotUser = UserIDFromContext(r.Context())
		gotSession = SessionIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set(SessionHeaderName, "tab-1")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if !strings.HasPrefix(gotUser, "anon_") || !isValidAnonID(gotUser) {
		t.Fatalf("user id = %q", gotUser)
	}
	if gotSession != "tab-1" {
		t.Errorf("session id = %q, want tab-1", gotSession)
	}
	if _, ok := repo.users[gotUser]; !ok {
		t.Errorf("user %q not persisted", gotUser)
	}

	cookies := rr.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != AnonCookieName || cookies[0].Value != gotUser {
		t.Fatalf("cookies = %+v", cookies)
	}

	// Same cookie, hostile session id.
	req = httptest.NewRequest(http.MethodGet, "/api/me?session_id=../../etc", nil)
	req.AddCookie(cookies[0])
	h.ServeHTTP(httptest.NewRecorder(), req)
	if gotSession != DefaultSessionIDValue {
		t.Errorf("sanitized session = %q, want %q", gotSession, DefaultSessionIDValue)
	}
	if len(repo.users) != 1 {
		t.Errorf("users = %d, want 1", len(repo.users))
	}
	if repo.lastSeenUpdates != 0 {
		t.Errorf("last seen refreshed within resolution: %d updates", repo.lastSeenUpdates)
	}
}

func TestWithIdentity(t *testing.T) {
	ctx := WithIdentity(context.Background(), "anon_0123456789abcdef0123456789abcdef", "")
	if got := SessionIDFromContext(ctx); got != DefaultSessionIDValue {
		t.Errorf("session = %q", got)
	}
	if got := UsernameFromContext(ctx); got != "anon-89abcdef" {
		t.Errorf("username = %q", got)
	}
	if got := UserIDFromContext(context.Background()); got != "" {
		t.Errorf("empty ctx user = %q", got)
	}
}
