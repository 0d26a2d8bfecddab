package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/isdelr/iserve-be/internal/auth"
	"github.com/isdelr/iserve-be/internal/models"
	"github.com/isdelr/iserve-be/internal/services"
	"github.com/rs/zerolog/log"
)

// UserHandler handles HTTP requests for user management.
type UserHandler struct {
	service      services.UserServiceProvider
	secureCookie bool
	tokenTTL     time.Duration
}

// NewUserHandler creates a new UserHandler. secureCookie marks the login
// cookie Secure; tokenTTL sets its lifetime (zero makes it a session cookie).
func NewUserHandler(service services.UserServiceProvider, secureCookie bool, tokenTTL time.Duration) *UserHandler {
	return &UserHandler{service: service, secureCookie: secureCookie, tokenTTL: tokenTTL}
}

// AuthPayload defines the structure for login requests.
type AuthPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterPayload defines the structure for registration requests.
type RegisterPayload struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	Profession string `json:"profession"`
	Contact    string `json:"contact"`
}

// Register handles new user registration.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var payload RegisterPayload
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.service.Register(r.Context(), services.RegisterInput{
		Username:   payload.Username,
		Email:      payload.Email,
		Password:   payload.Password,
		Profession: payload.Profession,
		Contact:    payload.Contact,
	})
	switch {
	case err == nil:
	case errors.Is(err, services.ErrDuplicateEmail):
		log.Info().Str("email", payload.Email).Msg("Registration with existing email")
		writeError(w, http.StatusBadRequest, "This email has already been used!")
		return
	case errors.Is(err, services.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	default:
		log.Error().Err(err).Str("email", payload.Email).Msg("Failed to register user")
		writeError(w, http.StatusInternalServerError, "Failed to add user")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"message": "User added successfully",
		"id":      user.ID,
	})
}

// Login handles user authentication and JWT generation.
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload AuthPayload
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	token, user, err := h.service.Authenticate(r.Context(), payload.Email, payload.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			log.Warn().Str("email", payload.Email).Msg("Failed authentication attempt")
			writeError(w, http.StatusBadRequest, "Invalid credentials")
			return
		}
		log.Error().Err(err).Str("email", payload.Email).Msg("Failed to log in")
		writeError(w, http.StatusInternalServerError, "Failed to login")
		return
	}

	cookie := &http.Cookie{
		Name:     "token",
		Value:    token,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteStrictMode,
		Path:     "/",
	}
	if h.tokenTTL > 0 {
		cookie.Expires = time.Now().Add(h.tokenTTL)
	}
	http.SetCookie(w, cookie)

	log.Info().Str("user_id", user.ID).Msg("User logged in")
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// GetAll handles listing every account.
func (h *UserHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to retrieve users")
		writeError(w, http.StatusInternalServerError, "Failed to retrieve users")
		return
	}
	writeJSON(w, http.StatusOK, map[string][]models.User{"users": users})
}

// GetMe retrieves the currently authenticated user from the token.
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		log.Error().Msg("Could not retrieve user claims from context")
		writeError(w, http.StatusInternalServerError, "Could not retrieve user from token")
		return
	}

	user, err := h.service.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		h.writeLookupError(w, err, "user_id", claims.UserID)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// GetProfile returns the personal details of the account with the given email.
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	email := emailParam(r)
	user, err := h.service.GetUserByEmail(r.Context(), email)
	if err != nil {
		h.writeLookupError(w, err, "email", email)
		return
	}
	writeJSON(w, http.StatusOK, user.Profile())
}

// GetPhone returns the contact number of the account with the given email.
func (h *UserHandler) GetPhone(w http.ResponseWriter, r *http.Request) {
	email := emailParam(r)
	user, err := h.service.GetUserByEmail(r.Context(), email)
	if err != nil {
		h.writeLookupError(w, err, "email", email)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"phone": user.Contact})
}

// Update handles updating a user's profile information.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFromContext(r.Context())
	email := emailParam(r)

	var payload models.ProfileUpdate
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if _, err := h.service.UpdateProfile(r.Context(), actorID(claims), email, payload); err != nil {
		if errors.Is(err, services.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.writeMutationError(w, err, email, "Failed to update user details")
		return
	}
	writeMessage(w, http.StatusOK, "User details updated successfully")
}

// ChangePassword handles changing a user's password.
func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFromContext(r.Context())
	email := emailParam(r)

	var payload struct {
		NewPassword string `json:"newPassword"`
	}
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.service.ChangePassword(r.Context(), actorID(claims), email, payload.NewPassword); err != nil {
		if errors.Is(err, services.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.writeMutationError(w, err, email, "Failed to change password")
		return
	}
	writeMessage(w, http.StatusOK, "Password changed successfully")
}

func (h *UserHandler) writeLookupError(w http.ResponseWriter, err error, key, value string) {
	if errors.Is(err, services.ErrAccountNotFound) {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	log.Error().Err(err).Str(key, value).Msg("Failed to retrieve user")
	writeError(w, http.StatusInternalServerError, "Failed to retrieve user")
}

func (h *UserHandler) writeMutationError(w http.ResponseWriter, err error, email, msg string) {
	switch {
	case errors.Is(err, services.ErrAccountNotFound):
		writeError(w, http.StatusNotFound, "User not found")
	case errors.Is(err, services.ErrForbidden):
		log.Warn().Str("email", email).Msg("Rejected change to another account")
		writeError(w, http.StatusForbidden, "Not allowed to modify this account")
	default:
		log.Error().Err(err).Str("email", email).Msg(msg)
		writeError(w, http.StatusInternalServerError, msg)
	}
}

func actorID(claims *auth.Claims) string {
	if claims == nil {
		return ""
	}
	return claims.UserID
}
