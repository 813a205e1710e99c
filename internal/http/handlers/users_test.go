package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/evergogreen/evergogreen/internal/auth"
	"github.com/evergogreen/evergogreen/internal/domain/user"
	"github.com/evergogreen/evergogreen/internal/http/handlers"
	"github.com/evergogreen/evergogreen/internal/http/middlewares"
	"github.com/evergogreen/evergogreen/internal/repo/postgres"
	"github.com/evergogreen/evergogreen/internal/security"
	"github.com/evergogreen/evergogreen/internal/validation"
)

// Keep Gin quiet and install the custom binding rules once for the package.

func init() {
	gin.SetMode(gin.TestMode)
	validation.Register()
}

// Fake repository implementation of the handlers.UserStore and
// handlers.AuthorStore interfaces.

type fakeUsersRepo struct {
	createFn         func(ctx context.Context, u user.User) (int64, error)
	getByIDFn        func(ctx context.Context, id int64) (user.User, error)
	getByIdentityFn  func(ctx context.Context, identity string) (user.User, error)
	emailExistsFn    func(ctx context.Context, email string) (bool, error)
	usernameExistsFn func(ctx context.Context, username string) (bool, error)
	existsFn         func(ctx context.Context, id int64) (bool, error)
	deleteFn         func(ctx context.Context, id int64) error
}

func (f *fakeUsersRepo) Create(ctx context.Context, u user.User) (int64, error) {
	if f.createFn != nil {
		return f.createFn(ctx, u)
	}

	return 1, nil
}

func (f *fakeUsersRepo) GetByID(ctx context.Context, id int64) (user.User, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}

	return user.User{ID: id}, nil
}

func (f *fakeUsersRepo) GetByIdentity(ctx context.Context, identity string) (user.User, error) {
	if f.getByIdentityFn != nil {
		return f.getByIdentityFn(ctx, identity)
	}

	return user.User{}, postgres.ErrUserNotFound
}

func (f *fakeUsersRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	if f.emailExistsFn != nil {
		return f.emailExistsFn(ctx, email)
	}

	return false, nil
}

func (f *fakeUsersRepo) UsernameExists(ctx context.Context, username string) (bool, error) {
	if f.usernameExistsFn != nil {
		return f.usernameExistsFn(ctx, username)
	}

	return false, nil
}

func (f *fakeUsersRepo) Exists(ctx context.Context, id int64) (bool, error) {
	if f.existsFn != nil {
		return f.existsFn(ctx, id)
	}

	return true, nil
}

func (f *fakeUsersRepo) Delete(ctx context.Context, id int64) error {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, id)
	}

	return nil
}

// Shared token manager so tests can mount the real auth middleware and
// mint headers the handlers will accept.

var testTokens = auth.NewManager("handlers-test-secret")

func testToken(t *testing.T, id int64) string {
	t.Helper()

	token, err := testTokens.Issue(id, "ranger@evergogreen.org", "ranger_07")

	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	return token
}

// envelope mirrors the API's response shape for assertions.

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Token   string `json:"token"`
	Errors  []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"errors"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()

	var env envelope

	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("failed to unmarshal response %q: %v", w.Body.String(), err)
	}

	return env
}

func setupRouter(method, path string, h ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()

	r.Handle(method, path, h...)

	return r
}

const registerBody = `{
	"name": "Amara Obi",
	"address": "12 Forest Ridge, Calgary",
	"email": "amara@example.com",
	"username": "amara_obi",
	"password": "Str0ng!pass"
}`

func TestRegisterHandler(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		repoSetup      func(*fakeUsersRepo)
		wantStatusCode int
		wantErrFields  []string
	}{
		{
			name: "success",
			body: registerBody,
			repoSetup: func(f *fakeUsersRepo) {
				f.createFn = func(ctx context.Context, u user.User) (int64, error) {
					if u.Role != user.RoleUser {
						return 0, errors.New("new accounts must get role User")
					}
					if u.PasswordHash == "Str0ng!pass" {
						return 0, errors.New("password stored in the clear")
					}
					return 7, nil
				}
			},
			wantStatusCode: http.StatusCreated,
		},
		{
			name:           "all_fields_reported_together",
			body:           `{}`,
			wantStatusCode: http.StatusBadRequest,
			wantErrFields:  []string{"name", "address", "email", "username", "password"},
		},
		{
			// padding must not let a 1-char name through the length bound
			name:           "padded_name_below_min",
			body:           strings.Replace(registerBody, "Amara Obi", " A ", 1),
			wantStatusCode: http.StatusBadRequest,
			wantErrFields:  []string{"name"},
		},
		{
			name:           "weak_password",
			body:           strings.Replace(registerBody, "Str0ng!pass", "alllowercase1", 1),
			wantStatusCode: http.StatusBadRequest,
			wantErrFields:  []string{"password"},
		},
		{
			name: "duplicate_email_and_username_both_reported",
			body: registerBody,
			repoSetup: func(f *fakeUsersRepo) {
				f.emailExistsFn = func(ctx context.Context, email string) (bool, error) {
					return true, nil
				}
				f.usernameExistsFn = func(ctx context.Context, username string) (bool, error) {
					return true, nil
				}
			},
			wantStatusCode: http.StatusBadRequest,
			wantErrFields:  []string{"email", "username"},
		},
		{
			// a concurrent registration wins between pre-check and insert
			name: "conflict_on_insert",
			body: registerBody,
			repoSetup: func(f *fakeUsersRepo) {
				f.createFn = func(ctx context.Context, u user.User) (int64, error) {
					return 0, postgres.ErrUsernameTaken
				}
			},
			wantStatusCode: http.StatusBadRequest,
			wantErrFields:  []string{"username"},
		},
		{
			name: "repo_error",
			body: registerBody,
			repoSetup: func(f *fakeUsersRepo) {
				f.createFn = func(ctx context.Context, u user.User) (int64, error) {
					return 0, errors.New("db error")
				}
			},
			wantStatusCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeUsersRepo{}

			if tt.repoSetup != nil {
				tt.repoSetup(repo)
			}

			h := handlers.NewUsersHandler(repo, testTokens)
			r := setupRouter(http.MethodPost, "/api/users/new", h.Register)

			req := httptest.NewRequest(http.MethodPost, "/api/users/new", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}

			if len(tt.wantErrFields) == 0 {
				return
			}

			env := decodeEnvelope(t, w)

			if len(env.Errors) != len(tt.wantErrFields) {
				t.Fatalf("got %d field errors, want %d, body=%s", len(env.Errors), len(tt.wantErrFields), w.Body.String())
			}

			got := make(map[string]bool, len(env.Errors))

			for _, fe := range env.Errors {
				got[fe.Field] = true
			}

			for _, field := range tt.wantErrFields {
				if !got[field] {
					t.Fatalf("missing field error for %q, body=%s", field, w.Body.String())
				}
			}
		})
	}
}

func TestAuthenticateHandler(t *testing.T) {
	hash, err := security.HashPassword("Str0ng!pass")

	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	known := user.User{
		ID:           4,
		Email:        "amara@example.com",
		Username:     "amara_obi",
		PasswordHash: hash,
		Role:         user.RoleUser,
	}

	tests := []struct {
		name           string
		body           string
		repoSetup      func(*fakeUsersRepo)
		wantStatusCode int
		wantToken      bool
	}{
		{
			name: "success_by_username",
			body: `{"username": "amara_obi", "password": "Str0ng!pass"}`,
			repoSetup: func(f *fakeUsersRepo) {
				f.getByIdentityFn = func(ctx context.Context, identity string) (user.User, error) {
					if identity != "amara_obi" {
						return user.User{}, postgres.ErrUserNotFound
					}
					return known, nil
				}
			},
			wantStatusCode: http.StatusOK,
			wantToken:      true,
		},
		{
			// the username field accepts an email as the identity
			name: "success_by_email",
			body: `{"username": "amara@example.com", "password": "Str0ng!pass"}`,
			repoSetup: func(f *fakeUsersRepo) {
				f.getByIdentityFn = func(ctx context.Context, identity string) (user.User, error) {
					return known, nil
				}
			},
			wantStatusCode: http.StatusOK,
			wantToken:      true,
		},
		{
			name: "wrong_password",
			body: `{"username": "amara_obi", "password": "Wr0ng!pass!"}`,
			repoSetup: func(f *fakeUsersRepo) {
				f.getByIdentityFn = func(ctx context.Context, identity string) (user.User, error) {
					return known, nil
				}
			},
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "unknown_identity",
			body:           `{"username": "nobody", "password": "Str0ng!pass"}`,
			wantStatusCode: http.StatusNotFound,
		},
		{
			name:           "validation_error",
			body:           `{"username": "amara_obi"}`,
			wantStatusCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeUsersRepo{}

			if tt.repoSetup != nil {
				tt.repoSetup(repo)
			}

			h := handlers.NewUsersHandler(repo, testTokens)
			r := setupRouter(http.MethodPost, "/api/users/auth", h.Authenticate)

			req := httptest.NewRequest(http.MethodPost, "/api/users/auth", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}

			if !tt.wantToken {
				return
			}

			env := decodeEnvelope(t, w)

			if env.Token == "" {
				t.Fatalf("expected a token in the response, body=%s", w.Body.String())
			}

			claims, err := testTokens.Verify(env.Token)

			if err != nil {
				t.Fatalf("issued token does not verify: %v", err)
			}

			if claims.UserID != known.ID || claims.Username != known.Username {
				t.Fatalf("token claims = %d/%q, want %d/%q", claims.UserID, claims.Username, known.ID, known.Username)
			}
		})
	}
}

// Identify is tested through the real auth middleware so the whole
// header-to-claims path is covered.

func TestIdentifyHandler(t *testing.T) {
	known := user.User{
		ID:       4,
		Name:     "Amara Obi",
		Address:  "12 Forest Ridge, Calgary",
		Email:    "amara@example.com",
		Username: "amara_obi",
		Role:     user.RoleUser,
	}

	tests := []struct {
		name           string
		header         string
		repoSetup      func(*fakeUsersRepo)
		wantStatusCode int
	}{
		{
			name:   "success",
			header: testToken(t, known.ID),
			repoSetup: func(f *fakeUsersRepo) {
				f.getByIDFn = func(ctx context.Context, id int64) (user.User, error) {
					if id != known.ID {
						return user.User{}, postgres.ErrUserNotFound
					}
					return known, nil
				}
			},
			wantStatusCode: http.StatusOK,
		},
		{
			name:           "missing_header",
			header:         "",
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:           "garbage_token",
			header:         "not-a-jwt",
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			// valid token for an account that was deleted since issuance
			name:   "user_gone",
			header: testToken(t, 99),
			repoSetup: func(f *fakeUsersRepo) {
				f.getByIDFn = func(ctx context.Context, id int64) (user.User, error) {
					return user.User{}, postgres.ErrUserNotFound
				}
			},
			wantStatusCode: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeUsersRepo{}

			if tt.repoSetup != nil {
				tt.repoSetup(repo)
			}

			h := handlers.NewUsersHandler(repo, testTokens)
			mw := middlewares.NewAuthMiddleware(testTokens)

			r := setupRouter(http.MethodPost, "/api/users", mw.RequireAuth(), h.Identify)

			req := httptest.NewRequest(http.MethodPost, "/api/users", nil)

			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}

			if tt.wantStatusCode != http.StatusOK {
				return
			}

			var resp struct {
				User struct {
					ID       int64  `json:"id"`
					Username string `json:"username"`
					Role     string `json:"role"`
				} `json:"user"`
			}

			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to unmarshal response: %v", err)
			}

			if resp.User.ID != known.ID || resp.User.Username != known.Username {
				t.Fatalf("got user %d/%q, want %d/%q", resp.User.ID, resp.User.Username, known.ID, known.Username)
			}

			if resp.User.Role != "" {
				t.Fatalf("role must not be exposed, got %q", resp.User.Role)
			}
		})
	}
}

func TestDeleteSelfHandler(t *testing.T) {
	tests := []struct {
		name           string
		repoSetup      func(*fakeUsersRepo)
		wantStatusCode int
		wantMessage    string
	}{
		{
			name: "success",
			repoSetup: func(f *fakeUsersRepo) {
				f.deleteFn = func(ctx context.Context, id int64) error {
					if id != 4 {
						return errors.New("deleted the wrong account")
					}
					return nil
				}
			},
			wantStatusCode: http.StatusOK,
			wantMessage:    "User deleted with ID: 4",
		},
		{
			name: "row_already_gone",
			repoSetup: func(f *fakeUsersRepo) {
				f.deleteFn = func(ctx context.Context, id int64) error {
					return postgres.ErrUserNotFound
				}
			},
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name: "repo_error",
			repoSetup: func(f *fakeUsersRepo) {
				f.deleteFn = func(ctx context.Context, id int64) error {
					return errors.New("db error")
				}
			},
			wantStatusCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeUsersRepo{}

			if tt.repoSetup != nil {
				tt.repoSetup(repo)
			}

			h := handlers.NewUsersHandler(repo, testTokens)
			mw := middlewares.NewAuthMiddleware(testTokens)

			r := setupRouter(http.MethodDelete, "/api/users/delete", mw.RequireAuth(), h.DeleteSelf)

			req := httptest.NewRequest(http.MethodDelete, "/api/users/delete", nil)
			req.Header.Set("Authorization", testToken(t, 4))

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}

			if tt.wantMessage != "" {
				if env := decodeEnvelope(t, w); env.Message != tt.wantMessage {
					t.Fatalf("got message %q, want %q", env.Message, tt.wantMessage)
				}
			}
		})
	}
}

func TestDeleteUserByIDHandler(t *testing.T) {
	admin := user.User{ID: 1, Username: "root_admin", Role: user.RoleAdmin}
	regular := user.User{ID: 4, Username: "amara_obi", Role: user.RoleUser}

	lookup := func(f *fakeUsersRepo) {
		f.getByIDFn = func(ctx context.Context, id int64) (user.User, error) {
			switch id {
			case admin.ID:
				return admin, nil
			case regular.ID:
				return regular, nil
			default:
				return user.User{}, postgres.ErrUserNotFound
			}
		}
	}

	tests := []struct {
		name           string
		requesterID    int64
		url            string
		repoSetup      func(*fakeUsersRepo)
		wantStatusCode int
	}{
		{
			name:        "admin_deletes_user",
			requesterID: admin.ID,
			url:         "/api/users/delete/4",
			repoSetup: func(f *fakeUsersRepo) {
				lookup(f)
				f.deleteFn = func(ctx context.Context, id int64) error {
					if id != regular.ID {
						return errors.New("deleted the wrong account")
					}
					return nil
				}
			},
			wantStatusCode: http.StatusOK,
		},
		{
			name:           "non_admin_forbidden",
			requesterID:    regular.ID,
			url:            "/api/users/delete/1",
			repoSetup:      lookup,
			wantStatusCode: http.StatusForbidden,
		},
		{
			name:        "target_missing",
			requesterID: admin.ID,
			url:         "/api/users/delete/99",
			repoSetup: func(f *fakeUsersRepo) {
				lookup(f)
				f.deleteFn = func(ctx context.Context, id int64) error {
					return postgres.ErrUserNotFound
				}
			},
			wantStatusCode: http.StatusNotFound,
		},
		{
			name:           "non_numeric_id",
			requesterID:    admin.ID,
			url:            "/api/users/delete/abc",
			repoSetup:      lookup,
			wantStatusCode: http.StatusNotFound,
		},
		{
			// requester row was deleted while their token is still live
			name:        "requester_gone",
			requesterID: 99,
			url:         "/api/users/delete/4",
			repoSetup:   lookup,

			wantStatusCode: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeUsersRepo{}

			if tt.repoSetup != nil {
				tt.repoSetup(repo)
			}

			h := handlers.NewUsersHandler(repo, testTokens)
			mw := middlewares.NewAuthMiddleware(testTokens)

			r := setupRouter(http.MethodDelete, "/api/users/delete/:id", mw.RequireAuth(), h.DeleteByID)

			req := httptest.NewRequest(http.MethodDelete, tt.url, nil)
			req.Header.Set("Authorization", testToken(t, tt.requesterID))

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
		})
	}
}
