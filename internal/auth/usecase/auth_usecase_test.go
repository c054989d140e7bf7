package usecase

import (
	"net/url"
	"strings"
	"testing"
	"time"

	authdomain "voicetask-backend/internal/auth/domain"
	"voicetask-backend/pkg/config"
)

type fakeUserRepository struct {
	users      map[string]*authdomain.User // by email
	links      map[string]*authdomain.MagicLinkToken
	refreshTok map[string]*authdomain.RefreshToken
}

func newFakeUserRepository() *fakeUserRepository {
	return &fakeUserRepository{
		users:      make(map[string]*authdomain.User),
		links:      make(map[string]*authdomain.MagicLinkToken),
		refreshTok: make(map[string]*authdomain.RefreshToken),
	}
}

func (r *fakeUserRepository) Create(user *authdomain.User) error {
	user.ID = "user-" + user.Email
	r.users[user.Email] = user
	return nil
}

func (r *fakeUserRepository) FindByEmail(email string) (*authdomain.User, error) {
	return r.users[email], nil
}

func (r *fakeUserRepository) FindByID(id string) (*authdomain.User, error) {
	for _, u := range r.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepository) Update(user *authdomain.User) error {
	r.users[user.Email] = user
	return nil
}

func (r *fakeUserRepository) SaveRefreshToken(token *authdomain.RefreshToken) error {
	r.refreshTok[token.Token] = token
	return nil
}

func (r *fakeUserRepository) FindRefreshToken(token string) (*authdomain.RefreshToken, error) {
	return r.refreshTok[token], nil
}

func (r *fakeUserRepository) DeleteRefreshToken(token string) error {
	delete(r.refreshTok, token)
	return nil
}

func (r *fakeUserRepository) DeleteRefreshTokensByUser(userID string) error { return nil }

func (r *fakeUserRepository) SaveMagicLinkToken(token *authdomain.MagicLinkToken) error {
	if token.ID == "" {
		token.ID = "link-" + token.TokenHash[:8]
	}
	r.links[token.TokenHash] = token
	return nil
}

func (r *fakeUserRepository) ConsumeMagicLinkToken(tokenHash string) (*authdomain.MagicLinkToken, error) {
	link, ok := r.links[tokenHash]
	if !ok || link.UsedAt != nil || link.ExpiresAt.Before(time.Now()) {
		return nil, nil
	}
	now := time.Now()
	link.UsedAt = &now
	return link, nil
}

func (r *fakeUserRepository) DeleteExpiredMagicLinkTokens() error { return nil }

// captureSender records the last link instead of sending mail
type captureSender struct {
	to   string
	link string
}

func (s *captureSender) SendMagicLink(to, link string, expiry time.Duration) error {
	s.to = to
	s.link = link
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:        "test-secret",
		JWTAccessExpiry:  15 * time.Minute,
		JWTRefreshExpiry: 168 * time.Hour,
		MagicLinkExpiry:  15 * time.Minute,
		AppBaseURL:       "http://localhost:5173",
	}
}

// linkToken pulls the raw token back out of the emailed verify URL
func linkToken(t *testing.T, link string) string {
	t.Helper()
	u, err := url.Parse(link)
	if err != nil {
		t.Fatalf("bad link %q: %v", link, err)
	}
	token := u.Query().Get("token")
	if token == "" {
		t.Fatalf("link %q carries no token", link)
	}
	return token
}

func TestMagicLinkSignInCreatesUser(t *testing.T) {
	repo := newFakeUserRepository()
	sender := &captureSender{}
	uc := NewAuthUsecase(repo, sender, testConfig())

	if err := uc.RequestMagicLink("ana@example.com", "Ana"); err != nil {
		t.Fatalf("RequestMagicLink failed: %v", err)
	}
	if sender.to != "ana@example.com" {
		t.Fatalf("link sent to %q", sender.to)
	}

	tokens, err := uc.VerifyMagicLink(linkToken(t, sender.link))
	if err != nil {
		t.Fatalf("VerifyMagicLink failed: %v", err)
	}

	if tokens.User == nil || tokens.User.Email != "ana@example.com" {
		t.Fatalf("user not created on first sign-in: %+v", tokens.User)
	}
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		t.Fatal("token pair not issued")
	}

	// Access token round-trips through validation
	user, err := uc.ValidateToken(tokens.AccessToken)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if user.ID != tokens.User.ID {
		t.Fatal("validated token resolves to a different user")
	}
}

func TestMagicLinkIsSingleUse(t *testing.T) {
	repo := newFakeUserRepository()
	sender := &captureSender{}
	uc := NewAuthUsecase(repo, sender, testConfig())

	if err := uc.RequestMagicLink("bo@example.com", ""); err != nil {
		t.Fatalf("RequestMagicLink failed: %v", err)
	}
	token := linkToken(t, sender.link)

	if _, err := uc.VerifyMagicLink(token); err != nil {
		t.Fatalf("first verify failed: %v", err)
	}
	if _, err := uc.VerifyMagicLink(token); err == nil {
		t.Fatal("second use of the same link must fail")
	}
}

func TestMagicLinkStoresOnlyHash(t *testing.T) {
	repo := newFakeUserRepository()
	sender := &captureSender{}
	uc := NewAuthUsecase(repo, sender, testConfig())

	if err := uc.RequestMagicLink("cleo@example.com", ""); err != nil {
		t.Fatalf("RequestMagicLink failed: %v", err)
	}

	token := linkToken(t, sender.link)
	for hash := range repo.links {
		if strings.Contains(hash, token) || hash == token {
			t.Fatal("cleartext token stored at rest")
		}
	}
}

func TestVerifyMagicLinkRejectsGarbage(t *testing.T) {
	repo := newFakeUserRepository()
	uc := NewAuthUsecase(repo, &captureSender{}, testConfig())

	if _, err := uc.VerifyMagicLink("not-a-real-token"); err == nil {
		t.Fatal("unknown token accepted")
	}
	if _, err := uc.VerifyMagicLink(""); err == nil {
		t.Fatal("empty token accepted")
	}
}

func TestRefreshTokenRotation(t *testing.T) {
	repo := newFakeUserRepository()
	sender := &captureSender{}
	uc := NewAuthUsecase(repo, sender, testConfig())

	if err := uc.RequestMagicLink("dee@example.com", ""); err != nil {
		t.Fatalf("RequestMagicLink failed: %v", err)
	}
	tokens, err := uc.VerifyMagicLink(linkToken(t, sender.link))
	if err != nil {
		t.Fatalf("VerifyMagicLink failed: %v", err)
	}

	refreshed, err := uc.RefreshToken(tokens.RefreshToken)
	if err != nil {
		t.Fatalf("RefreshToken failed: %v", err)
	}
	if refreshed.RefreshToken == tokens.RefreshToken {
		t.Fatal("refresh must rotate the token")
	}

	// The old token is revoked
	if _, err := uc.RefreshToken(tokens.RefreshToken); err == nil {
		t.Fatal("revoked refresh token accepted")
	}
}

func TestLogoutRevokesRefreshToken(t *testing.T) {
	repo := newFakeUserRepository()
	sender := &captureSender{}
	uc := NewAuthUsecase(repo, sender, testConfig())

	if err := uc.RequestMagicLink("eve@example.com", ""); err != nil {
		t.Fatalf("RequestMagicLink failed: %v", err)
	}
	tokens, err := uc.VerifyMagicLink(linkToken(t, sender.link))
	if err != nil {
		t.Fatalf("VerifyMagicLink failed: %v", err)
	}

	if err := uc.Logout(tokens.RefreshToken); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if _, err := uc.RefreshToken(tokens.RefreshToken); err == nil {
		t.Fatal("refresh token survived logout")
	}
}
