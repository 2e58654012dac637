package library

import (
	"context"
	"net/http"
	"strings"
	"sync"
)

// AuthState is where the login flow currently stands.
type AuthState int

const (
	Anonymous AuthState = iota
	Authenticating
	Authenticated
)

func (s AuthState) String() string {
	switch s {
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	}
	return "anonymous"
}

// authResponse is the body of /auth/login and /auth/register.
type authResponse struct {
	Token    string `json:"token"`
	ID       int64  `json:"id"`
	Username string `json:"username"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
}

// RegisterRequest is the new-account form.
type RegisterRequest struct {
	Username    string `json:"username"`
	FullName    string `json:"fullName"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber"`
	Password    string `json:"password"`
	Role        Role   `json:"role"`
}

// Auth drives login, registration and logout.
type Auth struct {
	gw       *Gateway
	sessions *SessionStore
	log      *Logger

	mu    sync.Mutex
	state AuthState
}

// NewAuth starts in Authenticated when a session is already stored.
func NewAuth(gw *Gateway, sessions *SessionStore, log *Logger) *Auth {
	if log == nil {
		log = NopLogger()
	}
	a := &Auth{gw: gw, sessions: sessions, log: log}
	if sessions.IsLoggedIn() {
		a.state = Authenticated
	}
	return a
}

// State returns the current flow state.
func (a *Auth) State() AuthState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Auth) setState(s AuthState) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
}

// Login checks both fields locally, then exchanges them for a session which is persisted.
func (a *Auth) Login(ctx context.Context, username, password string) (*Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, validationf("please enter both username and password")
	}

	a.setState(Authenticating)
	var resp authResponse
	err := a.gw.Do(ctx, Call{
		Method:    http.MethodPost,
		Path:      "/auth/login",
		Body:      map[string]string{"username": username, "password": password},
		Anonymous: true,
	}, &resp)
	if err == nil && resp.Token == "" {
		err = &APIError{Status: http.StatusOK, Message: "login response did not include a token"}
	}
	if err != nil {
		a.setState(Anonymous)
		return nil, err
	}

	sess := Session{
		Token: resp.Token,
		User: Profile{
			ID:       resp.ID,
			Username: resp.Username,
			FullName: resp.FullName,
			Email:    resp.Email,
			Role:     resp.Role,
		},
	}
	if sess.User.Username == "" {
		sess.User.Username = username
	}
	if sess.User.Role == "" {
		if info, err := InspectToken(resp.Token); err == nil {
			if r, err := ParseRole(strings.TrimPrefix(info.Role, "ROLE_")); err == nil {
				sess.User.Role = r
			}
		}
	}
	if err := a.sessions.Save(sess); err != nil {
		a.setState(Anonymous)
		return nil, err
	}
	a.setState(Authenticated)
	a.log.Infof("logged in as %s (%s)", sess.User.Username, sess.User.Role)
	return &sess, nil
}

// Register creates an account. It does not log the new user in; the caller
// switches to the login prompt afterwards.
func (a *Auth) Register(ctx context.Context, req RegisterRequest) (*Profile, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.FullName = strings.TrimSpace(req.FullName)
	req.Email = strings.TrimSpace(req.Email)
	req.PhoneNumber = strings.TrimSpace(req.PhoneNumber)
	if req.Username == "" || req.FullName == "" || req.Email == "" || req.Password == "" {
		return nil, validationf("please fill in all required fields")
	}
	if req.Role == "" {
		req.Role = RoleMember
	}

	var resp authResponse
	if err := a.gw.Do(ctx, Call{
		Method:    http.MethodPost,
		Path:      "/auth/register",
		Body:      req,
		Anonymous: true,
	}, &resp); err != nil {
		return nil, err
	}
	a.log.Infof("registered %s", req.Username)
	return &Profile{
		ID:       resp.ID,
		Username: resp.Username,
		FullName: resp.FullName,
		Email:    resp.Email,
		Role:     resp.Role,
	}, nil
}

// Logout clears the stored session unconditionally.
func (a *Auth) Logout() error {
	a.setState(Anonymous)
	return a.sessions.Clear()
}
