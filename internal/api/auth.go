package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"inkquiry/internal/domain"
)

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type userWire struct {
	ID        string   `json:"id"`
	Email     string   `json:"email"`
	FullName  *string  `json:"full_name"`
	CreatedAt wireTime `json:"created_at"`
}

func (u userWire) toDomain() *domain.User {
	out := &domain.User{ID: u.ID, Email: u.Email, CreatedAt: u.CreatedAt.Time}
	if u.FullName != nil {
		out.FullName = *u.FullName
	}
	return out
}

// Login exchanges credentials for a bearer token. The backend expects an
// OAuth2 password form with the email as username.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	form := url.Values{}
	form.Set("username", email)
	form.Set("password", password)

	var resp tokenResponse
	if err := c.doForm(ctx, "/auth/token", form, &resp); err != nil {
		return "", err
	}
	if resp.AccessToken == "" {
		return "", fmt.Errorf("login: empty access token")
	}
	return resp.AccessToken, nil
}

// Me returns the user for token.
func (c *Client) Me(ctx context.Context, token string) (*domain.User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/auth/me", nil)
	if err != nil {
		return nil, err
	}
	var u userWire
	if err := c.do(req, token, &u); err != nil {
		return nil, err
	}
	return u.toDomain(), nil
}

func (c *Client) Signup(ctx context.Context, in domain.SignupInput) (*domain.User, error) {
	var u userWire
	if err := c.doJSON(ctx, http.MethodPost, "/auth/signup", in, &u); err != nil {
		return nil, err
	}
	return u.toDomain(), nil
}
