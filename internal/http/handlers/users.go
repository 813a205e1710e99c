package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/evergogreen/evergogreen/internal/config"
	"github.com/evergogreen/evergogreen/internal/domain/user"
	"github.com/evergogreen/evergogreen/internal/http/middlewares"
	"github.com/evergogreen/evergogreen/internal/repo/postgres"
	"github.com/evergogreen/evergogreen/internal/security"
	"github.com/evergogreen/evergogreen/internal/validation"
)

type UserStore interface {
	Create(ctx context.Context, u user.User) (int64, error)
	GetByID(ctx context.Context, id int64) (user.User, error)
	GetByIdentity(ctx context.Context, identity string) (user.User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	Delete(ctx context.Context, id int64) error
}

type TokenIssuer interface {
	Issue(userID int64, email, username string) (string, error)
}

type UsersHandler struct {
	store  UserStore
	tokens TokenIssuer
}

func NewUsersHandler(store UserStore, tokens TokenIssuer) *UsersHandler {
	return &UsersHandler{store: store, tokens: tokens}
}

type RegisterRequest struct {
	Name     string `json:"name" binding:"required,notblank,trimmed_min=2,trimmed_max=50"`
	Address  string `json:"address" binding:"required,notblank,trimmed_min=5,trimmed_max=255"`
	Email    string `json:"email" binding:"required,notblank,email"`
	Username string `json:"username" binding:"required,notblank,min=2,max=32,username_chars"`
	Password string `json:"password" binding:"required,notblank,min=8,max=32,strong_password"`
}

// AuthRequest accepts a username or an email in the username field.
type AuthRequest struct {
	Username string `json:"username" binding:"required,notblank"`
	Password string `json:"password" binding:"required,notblank"`
}

// Register creates a new account with role User. All field violations are
// reported together; email/username uniqueness is pre-checked so both can
// appear in the same response, and the insert maps a storage-layer
// conflict back to the same field error in case a concurrent registration
// wins the race between check and insert.
func (h *UsersHandler) Register(ctx *gin.Context) {
	var req RegisterRequest

	if !BindJSON(ctx, &req) {
		return
	}

	username := strings.TrimSpace(req.Username)

	cctx, cancel := config.WithTimeout(3 * time.Second)

	defer cancel()

	var fields []FieldError

	emailTaken, err := h.store.EmailExists(cctx, req.Email)

	if err != nil {
		RespondInternal(ctx, "Unable to create user")
		return
	}

	if emailTaken {
		fields = append(fields, FieldError{Field: "email", Message: validation.Message("email", "unique")})
	}

	usernameTaken, err := h.store.UsernameExists(cctx, username)

	if err != nil {
		RespondInternal(ctx, "Unable to create user")
		return
	}

	if usernameTaken {
		fields = append(fields, FieldError{Field: "username", Message: validation.Message("username", "unique")})
	}

	if len(fields) > 0 {
		RespondFieldErrors(ctx, fields)
		return
	}

	hash, err := security.HashPassword(req.Password)

	if err != nil {
		RespondInternal(ctx, "Unable to create user")
		return
	}

	id, err := h.store.Create(cctx, user.User{
		Name:         strings.TrimSpace(req.Name),
		Address:      strings.TrimSpace(req.Address),
		Email:        req.Email,
		Username:     username,
		PasswordHash: hash,
		Role:         user.RoleUser,
	})

	if err != nil {
		switch {
		case errors.Is(err, postgres.ErrEmailTaken):
			RespondFieldErrors(ctx, []FieldError{{Field: "email", Message: validation.Message("email", "unique")}})
		case errors.Is(err, postgres.ErrUsernameTaken):
			RespondFieldErrors(ctx, []FieldError{{Field: "username", Message: validation.Message("username", "unique")}})
		default:
			RespondInternal(ctx, "Unable to create user")
		}
		return
	}

	RespondSuccess(ctx, http.StatusCreated, fmt.Sprintf("User created with ID: %d", id))
}

// Authenticate checks credentials and issues a bearer token. An unknown
// identity is 404; a known identity with a wrong password is 401.
func (h *UsersHandler) Authenticate(ctx *gin.Context) {
	var req AuthRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)

	defer cancel()

	found, err := h.store.GetByIdentity(cctx, strings.TrimSpace(req.Username))

	if err != nil {
		if errors.Is(err, postgres.ErrUserNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}

		RespondInternal(ctx, "Unable to find user")
		return
	}

	err = security.CheckPassword(found.PasswordHash, req.Password)

	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			RespondUnauthorized(ctx, "Failed to authenticate user")
			return
		}

		RespondInternal(ctx, "Unable to authenticate user")
		return
	}

	token, err := h.tokens.Issue(found.ID, found.Email, found.Username)

	if err != nil {
		RespondInternal(ctx, "Unable to authenticate user")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "User authenticated",
		"token":   token,
	})
}

// Identify resolves the token back to the current user row. The row is
// re-fetched on every call rather than trusting the claims, so the
// response never goes stale and a deleted account stops authenticating
// immediately.
func (h *UsersHandler) Identify(ctx *gin.Context) {
	claims, ok := middlewares.ClaimsFromContext(ctx)

	if !ok {
		RespondUnauthorized(ctx, "Invalid authentication token")
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)

	defer cancel()

	u, err := h.store.GetByID(cctx, claims.UserID)

	if err != nil {
		if errors.Is(err, postgres.ErrUserNotFound) {
			RespondUnauthorized(ctx, "Invalid authentication token")
			return
		}

		RespondInternal(ctx, "Unable to authenticate user")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "User authenticated",
		"user": gin.H{
			"id":       u.ID,
			"name":     u.Name,
			"address":  u.Address,
			"email":    u.Email,
			"username": u.Username,
		},
	})
}

// DeleteSelf removes the authenticated user's own account.
func (h *UsersHandler) DeleteSelf(ctx *gin.Context) {
	claims, ok := middlewares.ClaimsFromContext(ctx)

	if !ok {
		RespondUnauthorized(ctx, "Invalid authentication token")
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)

	defer cancel()

	err := h.store.Delete(cctx, claims.UserID)

	if err != nil {
		if errors.Is(err, postgres.ErrUserNotFound) {
			// token refers to a row that no longer exists
			RespondUnauthorized(ctx, "Invalid authentication token")
			return
		}

		RespondInternal(ctx, "Unable to delete user")
		return
	}

	RespondSuccess(ctx, http.StatusOK, fmt.Sprintf("User deleted with ID: %d", claims.UserID))
}

// DeleteByID removes any account by id. Admin only; the requester's role
// is read from their current row, not the token, so a demotion takes
// effect without waiting for token expiry.
func (h *UsersHandler) DeleteByID(ctx *gin.Context) {
	claims, ok := middlewares.ClaimsFromContext(ctx)

	if !ok {
		RespondUnauthorized(ctx, "Invalid authentication token")
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)

	defer cancel()

	requester, err := h.store.GetByID(cctx, claims.UserID)

	if err != nil {
		if errors.Is(err, postgres.ErrUserNotFound) {
			RespondUnauthorized(ctx, "Invalid authentication token")
			return
		}

		RespondInternal(ctx, "Unable to authenticate user")
		return
	}

	if requester.Role != user.RoleAdmin {
		RespondForbidden(ctx)
		return
	}

	targetID, err := strconv.ParseInt(ctx.Param("id"), 10, 64)

	if err != nil {
		// a non-numeric id can never match a row
		RespondNotFound(ctx, "User not found")
		return
	}

	err = h.store.Delete(cctx, targetID)

	if err != nil {
		if errors.Is(err, postgres.ErrUserNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}

		RespondInternal(ctx, "Unable to find user")
		return
	}

	RespondSuccess(ctx, http.StatusOK, fmt.Sprintf("User deleted with ID: %d", targetID))
}
