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

	"github.com/evergogreen/evergogreen/internal/config"
	"github.com/evergogreen/evergogreen/internal/domain/vhi"
	"github.com/evergogreen/evergogreen/internal/http/middlewares"
	"github.com/evergogreen/evergogreen/internal/repo/postgres"
)

type EntryStore interface {
	List(ctx context.Context) ([]vhi.Entry, error)
	Insert(ctx context.Context, e vhi.Entry) (int64, error)
	DeleteOwned(ctx context.Context, id, author int64) error
}

// AuthorStore is the slice of the user store the VHI routes need: a token
// subject must still exist as a user before it may author entries.
type AuthorStore interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

type VhiHandler struct {
	entries EntryStore
	users   AuthorStore
}

func NewVhiHandler(entries EntryStore, users AuthorStore) *VhiHandler {
	return &VhiHandler{entries: entries, users: users}
}

type AddEntryRequest struct {
	Location       string `json:"location" binding:"required,notblank,trimmed_min=5,trimmed_max=32"`
	VhiValue       *int   `json:"vhi_value" binding:"required"`
	Date           string `json:"date" binding:"required,notblank,ddmmyyyy"`
	VegetationType string `json:"vegetation_type" binding:"required,notblank,oneof=Forest Grassland Crop Other"`
}

// List returns all entries in storage order. No authentication.
func (h *VhiHandler) List(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(2 * time.Second)

	defer cancel()

	entries, err := h.entries.List(cctx)

	if err != nil {
		RespondInternal(ctx, "Unable to retrieve VHI list")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"success":  true,
		"message":  "Retrieved VHI list",
		"vhi_list": entries,
	})
}

// Add records a new observation authored by the token subject.
func (h *VhiHandler) Add(ctx *gin.Context) {
	claims, ok := middlewares.ClaimsFromContext(ctx)

	if !ok {
		RespondUnauthorized(ctx, "Invalid authentication token")
		return
	}

	var req AddEntryRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)

	defer cancel()

	exists, err := h.users.Exists(cctx, claims.UserID)

	if err != nil {
		RespondInternal(ctx, "Unable to authenticate user")
		return
	}

	if !exists {
		RespondUnauthorized(ctx, "Invalid authentication token")
		return
	}

	date, err := vhi.ParseDate(strings.TrimSpace(req.Date))

	if err != nil {
		// unreachable after validation; kept as a guard
		RespondFieldErrors(ctx, []FieldError{{Field: "date", Message: "Invalid date"}})
		return
	}

	id, err := h.entries.Insert(cctx, vhi.Entry{
		Author:         claims.UserID,
		Location:       strings.TrimSpace(req.Location),
		VhiValue:       *req.VhiValue,
		Date:           date,
		VegetationType: strings.TrimSpace(req.VegetationType),
	})

	if err != nil {
		RespondInternal(ctx, "Unable to add entry")
		return
	}

	RespondSuccess(ctx, http.StatusCreated, fmt.Sprintf("Entry added with ID: %d", id))
}

// DeleteMissingID answers the bare /delete route: deleting without an id
// is always a validation failure, never an operation.
func (h *VhiHandler) DeleteMissingID(ctx *gin.Context) {
	RespondFieldErrors(ctx, []FieldError{
		{Field: "param", Message: "Missing id parameter"},
	})
}

// DeleteByID removes an entry only when id AND author match the
// requester. An entry owned by someone else is reported as not found, so
// guessing ids leaks nothing about other users' entries.
func (h *VhiHandler) DeleteByID(ctx *gin.Context) {
	claims, ok := middlewares.ClaimsFromContext(ctx)

	if !ok {
		RespondUnauthorized(ctx, "Invalid authentication token")
		return
	}

	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)

	if err != nil {
		RespondNotFound(ctx, "Entry not found")
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)

	defer cancel()

	err = h.entries.DeleteOwned(cctx, id, claims.UserID)

	if err != nil {
		if errors.Is(err, postgres.ErrEntryNotFound) {
			RespondNotFound(ctx, "Entry not found")
			return
		}

		RespondInternal(ctx, "Unable to delete entry")
		return
	}

	RespondSuccess(ctx, http.StatusOK, fmt.Sprintf("Entry %d has been deleted", id))
}
