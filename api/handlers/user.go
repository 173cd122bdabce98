package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/trashio/trashio-api/api"
	"github.com/trashio/trashio-api/auth"
	"github.com/trashio/trashio-api/databases"
	"github.com/trashio/trashio-api/models"
)

// User handles registration, login and the caller's own account
type User struct {
	DB     databases.UserDatabase
	Tokens *auth.Tokens
	// Now is swapped in tests
	Now func() time.Time
}

// RegisterHandler lets citizens and cleaners sign themselves up
func (u User) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var in models.UserCreate
	if err := decode(r, &in); err != nil {
		api.WriteError(w, err)
		return
	}
	if in.Role == "" {
		in.Role = models.RoleCitizen
	}
	if in.Role == models.RoleAdmin {
		api.WriteError(w, models.NewError(models.KindValidation, "admin accounts cannot self-register"))
		return
	}
	user, err := u.createAccount(r.Context(), in)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// LoginHandler exchanges an email and password for an access token
func (u User) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var in models.LoginRequest
	if err := decode(r, &in); err != nil {
		api.WriteError(w, err)
		return
	}

	ctx, cancel := api.AccountQueryContext(r.Context())
	defer cancel()

	user, err := u.DB.FindByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, databases.ErrNotFound) {
			api.WriteError(w, models.NewError(models.KindInvalidCredential, "invalid email or password"))
			return
		}
		api.WriteError(w, models.Unavailable("find user", err))
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		zap.S().Infow("failed login", "userId", user.ID.Hex())
		api.WriteError(w, models.NewError(models.KindInvalidCredential, "invalid email or password"))
		return
	}
	if !user.IsActive {
		api.WriteError(w, models.NewError(models.KindForbidden, "account is disabled"))
		return
	}

	token, expiresAt, err := u.Tokens.Issue(user.ID.Hex(), user.Role)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.LoginResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresAt:   expiresAt,
		User:        *user,
	})
}

// MeHandler returns the stored account behind the caller's token
func (u User) MeHandler(w http.ResponseWriter, r *http.Request) {
	p := principal(r)

	ctx, cancel := api.AccountQueryContext(r.Context())
	defer cancel()

	user, err := u.DB.FindByID(ctx, p.SubjectID)
	if err != nil {
		if errors.Is(err, databases.ErrNotFound) || errors.Is(err, databases.ErrInvalidID) {
			api.WriteError(w, models.NewError(models.KindNotFound, "user not found"))
			return
		}
		api.WriteError(w, models.Unavailable("find user", err))
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (u User) createAccount(ctx context.Context, in models.UserCreate) (*models.User, error) {
	if err := models.ValidateVar("role", string(in.Role), "required"); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		// the length tag counts characters, bcrypt counts bytes
		return nil, models.NewError(models.KindValidation, "password must be at most 72 bytes")
	}
	now := time.Now
	if u.Now != nil {
		now = u.Now
	}

	ctx, cancel := api.AccountQueryContext(ctx)
	defer cancel()

	user, err := u.DB.InsertOne(ctx, models.User{
		FullName:     in.FullName,
		Email:        in.Email,
		Phone:        in.Phone,
		Role:         in.Role,
		Address:      in.Address,
		Pincode:      in.Pincode,
		PasswordHash: string(hash),
		IsActive:     true,
		CreatedAt:    now().UTC(),
	})
	if err != nil {
		if errors.Is(err, databases.ErrDuplicateKey) {
			return nil, models.NewError(models.KindConflict, "email already registered")
		}
		return nil, models.Unavailable("insert user", err)
	}
	zap.S().Infow("account created", "userId", user.ID.Hex(), "role", user.Role)
	return user, nil
}
