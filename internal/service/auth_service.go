package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"inkquiry/internal/api"
	"inkquiry/internal/domain"
	"inkquiry/internal/secret"
)

// TokenKey is the secret store key holding the bearer token.
const TokenKey = "auth_token"

var ErrMissingCredentials = errors.New("email and password are required")

// AuthClient is the session half of the remote API.
type AuthClient interface {
	Login(ctx context.Context, email, password string) (string, error)
	Me(ctx context.Context, token string) (*domain.User, error)
	Signup(ctx context.Context, in domain.SignupInput) (*domain.User, error)
}

// ─────────────────────────────────────────────────────────────
// Auth Service: token lifecycle and the current user
// ─────────────────────────────────────────────────────────────

type AuthService struct {
	client  AuthClient
	secrets secret.SecretStore
	emitter EventEmitter

	mu    sync.RWMutex
	token string
	user  *domain.User
}

func NewAuthService(client AuthClient, secrets secret.SecretStore, emitter EventEmitter) *AuthService {
	if emitter == nil {
		emitter = NopEmitter{}
	}
	return &AuthService{client: client, secrets: secrets, emitter: emitter}
}

// Token returns the current bearer token, empty when logged out.
func (s *AuthService) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *AuthService) User() *domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

func (s *AuthService) LoggedIn() bool {
	return s.Token() != ""
}

// Login exchanges credentials for a token and stores it. A failure to
// fetch the profile afterwards is logged and does not fail the login.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrMissingCredentials
	}
	token, err := s.client.Login(ctx, email, password)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if err := s.secrets.Set(TokenKey, []byte(token)); err != nil {
		log.Printf("[auth] persist token: %v", err)
	}
	s.mu.Lock()
	s.token = token
	s.user = nil
	s.mu.Unlock()

	user, err := s.client.Me(ctx, token)
	if err != nil {
		log.Printf("[auth] fetch profile after login: %v", err)
		return nil, nil
	}
	s.setUser(user)
	return s.User(), nil
}

// Signup creates an account. It does not log the user in.
func (s *AuthService) Signup(ctx context.Context, in domain.SignupInput) (*domain.User, error) {
	in.Email = strings.TrimSpace(in.Email)
	if in.Email == "" || in.Password == "" {
		return nil, ErrMissingCredentials
	}
	user, err := s.client.Signup(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("signup: %w", err)
	}
	return user, nil
}

// Restore resumes the session from the stored token. An unauthorized
// token is cleared; a network failure keeps it for a later retry.
func (s *AuthService) Restore(ctx context.Context) (*domain.User, error) {
	raw, err := s.secrets.Get(TokenKey)
	if err != nil {
		return nil, fmt.Errorf("read token: %w", err)
	}
	token := strings.TrimSpace(string(raw))
	if token == "" {
		return nil, nil
	}
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()

	user, err := s.client.Me(ctx, token)
	if err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			if s.LoggedIn() {
				s.Logout(ctx)
			}
			return nil, nil
		}
		return nil, fmt.Errorf("restore session: %w", err)
	}
	s.setUser(user)
	return s.User(), nil
}

// Logout clears the token and the user.
func (s *AuthService) Logout(ctx context.Context) {
	s.mu.Lock()
	s.token = ""
	s.user = nil
	s.mu.Unlock()
	if err := s.secrets.Delete(TokenKey); err != nil {
		log.Printf("[auth] delete token: %v", err)
	}
	s.emitter.Emit(ctx, EventAuthLogout, nil)
}

// HandleUnauthorized is installed as the API client's 401 hook.
func (s *AuthService) HandleUnauthorized() {
	if !s.LoggedIn() {
		return
	}
	log.Printf("[auth] session rejected, logging out")
	s.Logout(context.Background())
}

func (s *AuthService) setUser(u *domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u == nil {
		s.user = nil
		return
	}
	cp := *u
	s.user = &cp
}
