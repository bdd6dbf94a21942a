package storefront

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/dukerupert/harvest/internal/cookie"
	"github.com/dukerupert/harvest/internal/domain"
	"github.com/dukerupert/harvest/internal/handler"
	"github.com/dukerupert/harvest/internal/middleware"
	"github.com/dukerupert/harvest/internal/service"
	"github.com/go-playground/validator/v10"
)

// AuthHandler handles registration, login, logout and the account route
type AuthHandler struct {
	userService service.UserService
	cookies     *cookie.Config
	validate    *validator.Validate
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(userService service.UserService, cookies *cookie.Config) *AuthHandler {
	validate := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON names
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	return &AuthHandler{
		userService: userService,
		cookies:     cookies,
		validate:    validate,
	}
}

type registerRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Username  string `json:"username" validate:"max=150"`
	FirstName string `json:"first_name" validate:"max=150"`
	LastName  string `json:"last_name" validate:"max=150"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type userJSON struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username,omitempty"`
	FirstName string    `json:"first_name,omitempty"`
	LastName  string    `json:"last_name,omitempty"`
	FullName  string    `json:"full_name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserJSON(u *domain.User) userJSON {
	return userJSON{
		ID:        u.ID.String(),
		Email:     u.Email,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		FullName:  u.FullName(),
		CreatedAt: u.CreatedAt,
	}
}

// fieldMessages maps validator tags to the messages shown per field.
var fieldMessages = map[string]string{
	"required": "is required",
	"email":    "must be a valid email address",
	"min":      "is too short",
	"max":      "is too long",
}

// validateRequest runs struct validation and converts failures into a
// domain.ValidationError keyed by JSON field name.
func (h *AuthHandler) validateRequest(op string, v interface{}) error {
	err := h.validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return domain.Internal(err, op, "failed to validate request")
	}

	var out error
	for _, fe := range verrs {
		field := fe.Field()
		msg, ok := fieldMessages[fe.Tag()]
		if !ok {
			msg = "is invalid"
		}
		if out == nil {
			out = domain.NewValidationError(op, field, field+" "+msg)
			continue
		}
		out = domain.AddFieldError(out, field, field+" "+msg)
	}
	return out
}

// Register handles POST /register. The new user is logged in on the current
// session so an anonymous cart carries over.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req registerRequest
	if err := handler.DecodeJSON(r, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if err := h.validateRequest("auth.register", req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	user, err := h.userService.Register(ctx, service.RegisterParams{
		Email:     req.Email,
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Password:  req.Password,
	})
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	if err := h.startSession(w, r, user); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	middleware.GetLogger(ctx).Info("user registered", "user_id", user.ID.String())
	handler.WriteJSON(w, http.StatusCreated, map[string]interface{}{"user": toUserJSON(user)})
}

// Login handles POST /login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := handler.DecodeJSON(r, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if err := h.validateRequest("auth.login", req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	user, err := h.userService.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	if err := h.startSession(w, r, user); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.WriteJSON(w, http.StatusOK, map[string]interface{}{"user": toUserJSON(user)})
}

// startSession binds user to the request's session and refreshes the cookie.
func (h *AuthHandler) startSession(w http.ResponseWriter, r *http.Request, user *domain.User) error {
	token, err := h.userService.Login(r.Context(), sessionToken(r), user)
	if err != nil {
		return err
	}
	h.cookies.SetSession(w, token)
	return nil
}

// Logout handles POST /logout. The session and its cart stay; only the user
// binding is removed.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.userService.Logout(r.Context(), sessionToken(r)); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Account handles GET /account. Mounted behind middleware.RequireAuth.
func (h *AuthHandler) Account(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		handler.UnauthorizedResponse(w, r)
		return
	}

	handler.WriteJSON(w, http.StatusOK, map[string]interface{}{"user": toUserJSON(user)})
}
