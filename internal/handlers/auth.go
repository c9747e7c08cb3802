package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/squatlab/backend/internal/hash"
	"github.com/squatlab/backend/internal/logging"
	"github.com/squatlab/backend/internal/models"
	"github.com/squatlab/backend/internal/mykafka"
	"github.com/squatlab/backend/internal/repo"
	"github.com/squatlab/backend/internal/service"
	"github.com/squatlab/backend/internal/token"
)

type AuthHandler struct {
	Users      repo.UserStore
	Refresh    repo.RefreshStore
	Verifier   *service.CredentialVerifier
	Codec      *token.Codec
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Producer   *mykafka.Producer
}

func (h *AuthHandler) Join(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "join")

	var req struct {
		Username string `json:"username" form:"username"`
		Password string `json:"password" form:"password"`
		RealName string `json:"realName" form:"realName"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Username == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "username and password are required"})
	}

	pwHash, err := hash.HashPassword(req.Password)
	if err != nil {
		l.Error("join_failed", "reason", "cannot hash password", "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}

	user := models.User{
		Username:     req.Username,
		PasswordHash: pwHash,
		RealName:     req.RealName,
		Role:         "ROLE_USER",
	}
	if err := h.Users.CreateUser(ctx, &user); err != nil {
		if errors.Is(err, repo.ErrAlreadyExists) {
			l.Warn("join_failed", "status", 400, "reason", "username taken", "username", req.Username)
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "username already taken"})
		}
		l.Error("join_failed", "status", 500, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}

	h.publish(ctx, "user_events", user.Username, echo.Map{
		"type":     "user_registered",
		"username": user.Username,
	})

	l.Info("join_successful", "username", user.Username)
	return c.JSON(http.StatusOK, echo.Map{"message": "registration complete"})
}

// Login accepts credentials either as a JSON body or as form fields.
func (h *AuthHandler) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "login")

	var req struct {
		Username string `json:"username" form:"username"`
		Password string `json:"password" form:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	user, err := h.Verifier.Verify(ctx, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			l.Warn("login_failed", "status", 401, "username", req.Username)
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid username or password"})
		}
		l.Error("login_failed", "status", 500, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}

	if err := h.issueTokens(c, user.Username, user.Role, user.RealName); err != nil {
		l.Error("login_failed", "status", 500, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}

	h.publish(ctx, "user_events", user.Username, echo.Map{
		"type":     "user_logged_in",
		"username": user.Username,
	})

	l.Info("login_successful", "username", user.Username)
	return c.JSON(http.StatusOK, echo.Map{"message": "login successful"})
}

// Reissue rotates a refresh token into a fresh access/refresh pair.
// Every failed step short-circuits with 400.
func (h *AuthHandler) Reissue(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "reissue")

	cookie, err := c.Cookie(RefreshCookie)
	if err != nil || cookie.Value == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh token is null"})
	}

	claims, err := h.Codec.Verify(cookie.Value)
	if err != nil {
		if errors.Is(err, token.ErrExpired) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh token is expired"})
		}
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid refresh token"})
	}
	if claims.Category != token.CategoryRefresh {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid refresh token"})
	}

	// A token absent from the store is invalid no matter how well-formed:
	// it was rotated, revoked, or never issued by us.
	exists, err := h.Refresh.ExistsByToken(ctx, cookie.Value)
	if err != nil {
		l.Error("reissue_failed", "status", 500, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
	if !exists {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid refresh token"})
	}

	newAccess, err := h.Codec.Issue(token.CategoryAccess, claims.Username(), claims.Role, claims.RealName, h.AccessTTL)
	if err != nil {
		l.Error("reissue_failed", "status", 500, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
	newRefresh, err := h.Codec.Issue(token.CategoryRefresh, claims.Username(), claims.Role, claims.RealName, h.RefreshTTL)
	if err != nil {
		l.Error("reissue_failed", "status", 500, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}

	newRow := models.RefreshToken{
		Username:  claims.Username(),
		Token:     newRefresh,
		ExpiresAt: time.Now().Add(h.RefreshTTL),
	}
	if err := h.Refresh.RotateRefresh(ctx, cookie.Value, &newRow); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			// lost the race: another request already rotated this token
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid refresh token"})
		}
		l.Error("reissue_failed", "status", 500, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}

	c.Response().Header().Set(AccessHeader, newAccess)
	c.SetCookie(CreateCookie(RefreshCookie, newRefresh, "/", h.RefreshTTL))

	l.Info("reissue_successful", "username", claims.Username())
	return c.JSON(http.StatusOK, echo.Map{"message": "token reissued"})
}

// Logout deletes the refresh row and clears cookies. Deleting an already
// absent token still succeeds.
func (h *AuthHandler) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "logout")

	cookie, err := c.Cookie(RefreshCookie)
	if err != nil || cookie.Value == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh token is null"})
	}

	claims, err := h.Codec.Verify(cookie.Value)
	if err != nil {
		if errors.Is(err, token.ErrExpired) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh token is expired"})
		}
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid refresh token"})
	}
	if claims.Category != token.CategoryRefresh {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid refresh token"})
	}

	if err := h.Refresh.DeleteByToken(ctx, cookie.Value); err != nil {
		l.Error("logout_failed", "status", 500, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}

	c.SetCookie(DeleteCookie(RefreshCookie, "/"))

	l.Info("logout_successful", "username", claims.Username())
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}

func (h *AuthHandler) issueTokens(c echo.Context, username, role, realName string) error {
	access, err := h.Codec.Issue(token.CategoryAccess, username, role, realName, h.AccessTTL)
	if err != nil {
		return err
	}
	refresh, err := h.Codec.Issue(token.CategoryRefresh, username, role, realName, h.RefreshTTL)
	if err != nil {
		return err
	}

	row := models.RefreshToken{
		Username:  username,
		Token:     refresh,
		ExpiresAt: time.Now().Add(h.RefreshTTL),
	}
	if err := h.Refresh.SaveRefresh(c.Request().Context(), &row); err != nil {
		return err
	}

	c.Response().Header().Set(AccessHeader, access)
	c.SetCookie(CreateCookie(RefreshCookie, refresh, "/", h.RefreshTTL))
	return nil
}

func (h *AuthHandler) publish(ctx context.Context, topic, key string, event echo.Map) {
	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(pubCtx, topic, key, event); err != nil {
		logging.FromContext(ctx).Error("kafka_publish_failed", "topic", topic, "error", err)
	}
}
