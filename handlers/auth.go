package handlers

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"teamsched/apperr"
	"teamsched/middleware"
	"teamsched/models"
	"teamsched/scheduling"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

// UserStore is the slice of the store the auth handlers need.
type UserStore interface {
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
}

type AuthHandler struct {
	users    UserStore
	auth     *middleware.Auth
	calendar *scheduling.CalendarService
	validate *validator.Validate
	log      zerolog.Logger
}

func NewAuthHandler(users UserStore, auth *middleware.Auth, calendar *scheduling.CalendarService, log zerolog.Logger) *AuthHandler {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	})
	return &AuthHandler{
		users:    users,
		auth:     auth,
		calendar: calendar,
		validate: v,
		log:      log.With().Str("component", "auth").Logger(),
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	user, err := h.users.GetUserByUsername(r.Context(), strings.TrimSpace(req.Username))
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		respondError(w, r, err)
		return
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		respondJSON(w, http.StatusUnauthorized, errorBody{Error: "Invalid credentials", Kind: "unauthorized"})
		return
	}

	token, err := h.auth.GenerateToken(user)
	if err != nil {
		respondError(w, r, err)
		return
	}

	middleware.SetTokenCookie(w, token, h.auth.Expiration())
	h.log.Info().Str("user_id", user.ID).Msg("user logged in")
	respondJSON(w, http.StatusOK, loginResponse{Token: token, User: user})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	middleware.ClearTokenCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, middleware.GetUserFromContext(r.Context()))
}

type createUserRequest struct {
	Username  string      `json:"username" validate:"required,min=3,max=100"`
	Password  string      `json:"password" validate:"required,min=8,max=72"`
	FullName  string      `json:"full_name" validate:"required,max=200"`
	Email     string      `json:"email" validate:"omitempty,email,max=255"`
	AvatarURL string      `json:"avatar_url" validate:"omitempty,url,max=500"`
	Role      models.Role `json:"role" validate:"omitempty,oneof=ADMIN EMPLOYEE"`
}

// CreateUser registers a local account. Administrators only.
func (h *AuthHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.FullName = strings.TrimSpace(req.FullName)
	if req.Role == "" {
		req.Role = models.RoleEmployee
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, r, validationFields(err))
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		respondError(w, r, err)
		return
	}

	user := &models.User{
		Username:     req.Username,
		FullName:     req.FullName,
		Email:        req.Email,
		AvatarURL:    req.AvatarURL,
		PasswordHash: string(hashedPassword),
		Role:         req.Role,
	}
	if err := h.users.CreateUser(r.Context(), user); err != nil {
		respondError(w, r, err)
		return
	}

	h.log.Info().Str("user_id", user.ID).Str("role", string(user.Role)).Msg("user created")
	respondJSON(w, http.StatusCreated, user)
}

func (h *AuthHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	users, err := h.calendar.ListUsers(r.Context(), actor)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, users)
}

func validationFields(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Validation(err.Error())
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = "Invalid value (" + fe.Tag() + ")."
	}
	return &apperr.ValidationError{Message: "Please correct the highlighted fields.", Fields: fields}
}
