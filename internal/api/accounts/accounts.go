// Package accounts implements registration, login, and profile management.
// Registration creates the user's personal workspace in the same flow so every
// account starts with a place to put requests.
package accounts

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/apivault/apivault/internal/api/respond"
	"github.com/apivault/apivault/internal/auth"
	"github.com/apivault/apivault/internal/config"
	"github.com/apivault/apivault/internal/db/models"
	"github.com/apivault/apivault/internal/db/repositories"
	"github.com/apivault/apivault/internal/middleware"
)

// Handler serves account endpoints
type Handler struct {
	users      *repositories.UserRepository
	workspaces *repositories.WorkspaceRepository
	cfg        *config.Config
}

// NewHandler creates an accounts handler
func NewHandler(users *repositories.UserRepository, workspaces *repositories.WorkspaceRepository, cfg *config.Config) *Handler {
	return &Handler{users: users, workspaces: workspaces, cfg: cfg}
}

type registerRequest struct {
	Username  string  `json:"username" binding:"required,min=3,max=50"`
	Email     string  `json:"email" binding:"required,email"`
	Password  string  `json:"password" binding:"required"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type authResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Register handles POST /api/v1/auth/register
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "Invalid registration payload: "+err.Error())
		return
	}

	if err := auth.ValidatePasswordStrength(req.Password); err != nil {
		respond.Error(c, http.StatusBadRequest, err.Error(), "WEAK_PASSWORD")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if existing, err := h.users.GetByEmail(c.Request.Context(), email); err != nil {
		respond.Internal(c, "Failed to check existing accounts")
		return
	} else if existing != nil {
		respond.Error(c, http.StatusConflict, "Email already registered", "EMAIL_TAKEN")
		return
	}
	if existing, err := h.users.GetByUsername(c.Request.Context(), req.Username); err != nil {
		respond.Internal(c, "Failed to check existing accounts")
		return
	} else if existing != nil {
		respond.Error(c, http.StatusConflict, "Username already taken", "USERNAME_TAKEN")
		return
	}

	hash, err := auth.HashPassword(req.Password, h.cfg.Auth.BcryptCost)
	if err != nil {
		respond.Internal(c, "Failed to create account")
		return
	}

	user := &models.User{
		Username:     req.Username,
		Email:        email,
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
	}
	if err := h.users.Create(c.Request.Context(), user); err != nil {
		respond.Internal(c, "Failed to create account")
		return
	}

	// personal workspace, owner membership included
	ws := &models.Workspace{
		Name:    req.Username + "'s Workspace",
		Type:    models.WorkspaceTypePersonal,
		OwnerID: user.ID,
	}
	if err := h.workspaces.Create(c.Request.Context(), ws); err != nil {
		respond.Internal(c, "Failed to create personal workspace")
		return
	}

	token, err := auth.GenerateJWT(user.ID, user.Email, h.cfg.Auth.TokenTTL)
	if err != nil {
		respond.Internal(c, "Failed to issue token")
		return
	}

	respond.Created(c, "Account created", authResponse{Token: token, User: user})
}

// Login handles POST /api/v1/auth/login
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "Invalid login payload")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	user, err := h.users.GetByEmail(c.Request.Context(), email)
	if err != nil {
		respond.Internal(c, "Login failed")
		return
	}

	// same response for unknown email and wrong password
	if user == nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		respond.Error(c, http.StatusUnauthorized, "Invalid email or password", "INVALID_CREDENTIALS")
		return
	}

	token, err := auth.GenerateJWT(user.ID, user.Email, h.cfg.Auth.TokenTTL)
	if err != nil {
		respond.Internal(c, "Failed to issue token")
		return
	}

	respond.OK(c, "Logged in", authResponse{Token: token, User: user})
}

// Me handles GET /api/v1/auth/me
func (h *Handler) Me(c *gin.Context) {
	if v, exists := c.Get(middleware.UserKey); exists {
		if user, ok := v.(*models.User); ok {
			respond.OK(c, "", user)
			return
		}
	}
	respond.Error(c, http.StatusUnauthorized, "Not authenticated", respond.CodeUnauthorized)
}

type updateProfileRequest struct {
	Username  *string `json:"username"`
	Email     *string `json:"email"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	AvatarURL *string `json:"avatar_url"`
}

// UpdateProfile handles PUT /api/v1/users/me. Absent fields are untouched.
func (h *Handler) UpdateProfile(c *gin.Context) {
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "Invalid profile payload")
		return
	}

	update := models.UserUpdate{
		Username:  req.Username,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		AvatarURL: req.AvatarURL,
	}
	if update.IsEmpty() {
		respond.BadRequest(c, "No fields to update")
		return
	}
	if req.Email != nil {
		normalized := strings.ToLower(strings.TrimSpace(*req.Email))
		update.Email = &normalized
	}

	userID := middleware.UserIDFromContext(c)
	if err := h.users.Update(c.Request.Context(), userID, update); err != nil {
		respond.Internal(c, "Failed to update profile")
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), userID)
	if err != nil || user == nil {
		respond.Internal(c, "Failed to load updated profile")
		return
	}
	respond.OK(c, "Profile updated", user)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

// ChangePassword handles PUT /api/v1/users/me/password
func (h *Handler) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "Invalid password payload")
		return
	}

	userID := middleware.UserIDFromContext(c)
	user, err := h.users.GetByID(c.Request.Context(), userID)
	if err != nil || user == nil {
		respond.Internal(c, "Failed to load account")
		return
	}

	if !auth.CheckPassword(user.PasswordHash, req.CurrentPassword) {
		respond.Error(c, http.StatusUnauthorized, "Current password is incorrect", "INVALID_CREDENTIALS")
		return
	}
	if err := auth.ValidatePasswordStrength(req.NewPassword); err != nil {
		respond.Error(c, http.StatusBadRequest, err.Error(), "WEAK_PASSWORD")
		return
	}

	hash, err := auth.HashPassword(req.NewPassword, h.cfg.Auth.BcryptCost)
	if err != nil {
		respond.Internal(c, "Failed to update password")
		return
	}
	if err := h.users.UpdatePassword(c.Request.Context(), userID, hash); err != nil {
		respond.Internal(c, "Failed to update password")
		return
	}

	respond.OK(c, "Password updated", nil)
}

// DeleteAccount handles DELETE /api/v1/users/me. Owned workspaces and their
// contents cascade away with the account.
func (h *Handler) DeleteAccount(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	if err := h.users.Delete(c.Request.Context(), userID); err != nil {
		respond.Internal(c, "Failed to delete account")
		return
	}
	respond.OK(c, "Account deleted", nil)
}

// DeleteUser handles DELETE /api/v1/users/:id, the management path. The caller
// must hold admin or owner in some workspace, and can never target their own
// account here; self-deletion goes through DELETE /users/me instead.
func (h *Handler) DeleteUser(c *gin.Context) {
	actorID := middleware.UserIDFromContext(c)
	targetID := c.Param("id")

	if targetID == actorID {
		respond.Error(c, http.StatusForbidden, "Users cannot delete their own account", "CANNOT_DELETE_SELF")
		return
	}

	isAdmin, err := h.workspaces.HasAdminMembership(c.Request.Context(), actorID)
	if err != nil {
		respond.Internal(c, "Failed to check permissions")
		return
	}
	if !isAdmin {
		respond.Forbidden(c, "Insufficient permissions to delete this user")
		return
	}

	target, err := h.users.GetByID(c.Request.Context(), targetID)
	if err != nil {
		respond.Internal(c, "Failed to load user")
		return
	}
	if target == nil {
		respond.NotFound(c, "User not found", "USER_NOT_FOUND")
		return
	}

	if err := h.users.Delete(c.Request.Context(), target.ID); err != nil {
		respond.Internal(c, "Failed to delete user")
		return
	}
	respond.OK(c, "User deleted", nil)
}
