package api

import "context"

// AuthService maps the /api/auth endpoints.
type AuthService struct {
	service
}

// Credentials carries the username/password pair for login and registration.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// User is the backend account record.
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// LoginResult is the token/user pair issued on login.
type LoginResult struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Login exchanges credentials for a bearer token.
func (s *AuthService) Login(ctx context.Context, creds Credentials) (*LoginResult, error) {
	resp, err := s.client.post(ctx, "/api/auth/login", creds, withLoading("登录中..."))
	if err != nil {
		return nil, withFallback(err, "登录失败，请重试")
	}
	// The login payload nests the token/user pair one level deeper than
	// other endpoints
	var payload struct {
		Data LoginResult `json:"data"`
	}
	if err := decodeInto(resp.Data, &payload); err != nil {
		return nil, err
	}
	return &payload.Data, nil
}

// Register creates an account.
func (s *AuthService) Register(ctx context.Context, creds Credentials) (*User, error) {
	resp, err := s.client.post(ctx, "/api/auth/register", creds, withLoading("注册中..."))
	if err != nil {
		return nil, withFallback(err, "注册失败，请重试")
	}
	return decodeItem[User](resp.Data)
}
