// internal/app/features/accounts/handler.go
package accounts

import (
	"context"
	"errors"
	"net/http"
	"time"

	uierrors "github.com/dalemusser/huddle/internal/app/features/errors"
	userstore "github.com/dalemusser/huddle/internal/app/store/users"
	"github.com/dalemusser/huddle/internal/app/system/apperr"
	"github.com/dalemusser/huddle/internal/app/system/auditlog"
	"github.com/dalemusser/huddle/internal/app/system/auth"
	"github.com/dalemusser/huddle/internal/app/system/normalize"
	"github.com/dalemusser/huddle/internal/app/system/timeouts"
	"github.com/dalemusser/huddle/internal/domain/models"
	"github.com/dalemusser/waffle/toolkit/validate"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler serves registration, login and the current-user lookup.
type Handler struct {
	Users      *userstore.Store
	SessionMgr *auth.SessionManager
	AuditLog   *auditlog.Logger
	ErrLog     *uierrors.ErrorLogger
	Log        *zap.Logger
}

func NewHandler(db *mongo.Database, sm *auth.SessionManager, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Users:      userstore.New(db),
		SessionMgr: sm,
		AuditLog:   audit,
		ErrLog:     uierrors.NewErrorLogger(logger),
		Log:        logger,
	}
}

type registerRequest struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      models.User `json:"user"`
}

// errBadCredentials is the only failure login ever reports.
var errBadCredentials = apperr.New(apperr.Unauthorized, "invalid credentials")

// HandleRegister creates an account and signs it in.
//
// POST /auth/register  {email, full_name, password}
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var in registerRequest
	if err := uierrors.Decode(r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "register: bad body", err, "request body must be JSON")
		return
	}

	email := normalize.Email(in.Email)
	fullName := normalize.Name(in.FullName)
	switch {
	case email == "" || !validate.SimpleEmailValid(email):
		h.ErrLog.Write(w, r, apperr.Invalid("email: a valid email address is required"))
		return
	case fullName == "":
		h.ErrLog.Write(w, r, apperr.Invalid("full_name: is required"))
		return
	}
	hash, err := auth.HashPassword(in.Password)
	if errors.Is(err, auth.ErrPasswordTooShort) {
		h.ErrLog.Write(w, r, apperr.Invalid("password: %s", err.Error()))
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "register: hash password failed", err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, err := h.Users.Create(ctx, models.User{
		FullName:     fullName,
		Email:        email,
		PasswordHash: hash,
	})
	if errors.Is(err, userstore.ErrDuplicateEmail) {
		h.ErrLog.Write(w, r, apperr.New(apperr.Conflict, "email: already registered"))
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "register: create user failed", err)
		return
	}
	h.AuditLog.Registered(ctx, r, u.ID, u.Email)

	h.writeSession(w, r, http.StatusCreated, u)
}

// HandleLogin exchanges credentials for a bearer token.
//
// POST /auth/login  {email, password}
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := uierrors.Decode(r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "login: bad body", err, "request body must be JSON")
		return
	}
	email := normalize.Email(in.Email)
	if email == "" || in.Password == "" {
		h.ErrLog.Write(w, r, errBadCredentials)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, email)
	if errors.Is(err, userstore.ErrNotFound) {
		h.AuditLog.LoginFailedUserNotFound(ctx, r, email)
		h.ErrLog.Write(w, r, errBadCredentials)
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "login: load user failed", err)
		return
	}
	if !auth.CheckPassword(u.PasswordHash, in.Password) {
		h.AuditLog.LoginFailedWrongPassword(ctx, r, u.ID)
		h.ErrLog.Write(w, r, errBadCredentials)
		return
	}
	if u.Status == models.UserStatusDisabled {
		h.AuditLog.LoginFailedUserDisabled(ctx, r, u.ID)
		h.ErrLog.Write(w, r, errBadCredentials)
		return
	}
	h.AuditLog.LoginSuccess(ctx, r, u.ID, u.Email)

	h.writeSession(w, r, http.StatusOK, u)
}

// ServeMe returns the signed-in user.
//
// GET /auth/me
func (h *Handler) ServeMe(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.CurrentPrincipal(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, err := h.Users.GetByID(ctx, p.UserID)
	if errors.Is(err, userstore.ErrNotFound) {
		h.ErrLog.Write(w, r, apperr.New(apperr.Unauthorized, "account no longer exists"))
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "me: load user failed", err)
		return
	}
	uierrors.JSON(w, http.StatusOK, u)
}

func (h *Handler) writeSession(w http.ResponseWriter, r *http.Request, status int, u models.User) {
	token, exp, err := h.SessionMgr.Issue(u.ID, u.Email)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "issue session token failed", err)
		return
	}
	uierrors.JSON(w, status, sessionResponse{Token: token, ExpiresAt: exp, User: u})
}
