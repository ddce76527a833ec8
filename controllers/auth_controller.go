package controllers

import (
	"net/http"

	"room-booking/middleware"
	"room-booking/services"
	"room-booking/utils"

	"github.com/gin-gonic/gin"
)

type AuthController struct {
	Users  *services.UserService
	Tokens *services.TokenService
}

func NewAuthController(users *services.UserService, tokens *services.TokenService) *AuthController {
	return &AuthController{Users: users, Tokens: tokens}
}

// Register POST /api/auth/register
func (ac *AuthController) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "email and password are required")
		return
	}

	user, err := ac.Users.Register(c.Request.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	pair, err := ac.Tokens.IssuePair(c.Request.Context(), user)
	if err != nil {
		respondError(c, err)
		return
	}

	middleware.LoggerFrom(c).Info().Uint("user_id", user.ID).Msg("user registered")
	utils.JSONSuccess(c, http.StatusCreated, AuthResponse{User: toUserResponse(user), TokenPair: *pair})
}

// Login POST /api/auth/login
func (ac *AuthController) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "email and password are required")
		return
	}

	user, err := ac.Users.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	pair, err := ac.Tokens.IssuePair(c.Request.Context(), user)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.JSONSuccess(c, http.StatusOK, AuthResponse{User: toUserResponse(user), TokenPair: *pair})
}

// Refresh POST /api/auth/refresh
func (ac *AuthController) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "refreshToken is required")
		return
	}

	pair, user, err := ac.Tokens.Rotate(c.Request.Context(), req.RefreshToken)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.JSONSuccess(c, http.StatusOK, AuthResponse{User: toUserResponse(user), TokenPair: *pair})
}

// Logout POST /api/auth/logout. With all=true and a valid bearer token every
// session of the user is revoked.
func (ac *AuthController) Logout(c *gin.Context) {
	var req LogoutRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid payload")
			return
		}
	}

	ctx := c.Request.Context()
	if req.All {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		if err := ac.Tokens.RevokeAll(ctx, userID); err != nil {
			respondError(c, err)
			return
		}
	} else if err := ac.Tokens.Revoke(ctx, req.RefreshToken); err != nil {
		respondError(c, err)
		return
	}

	utils.JSONSuccess(c, http.StatusOK, gin.H{"loggedOut": true})
}

// Me GET /api/users/me
func (ac *AuthController) Me(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	user, err := ac.Users.FindUserByID(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.JSONSuccess(c, http.StatusOK, toUserResponse(user))
}
