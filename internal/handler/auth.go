package handler

import (
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/webshop-checkout/internal/config"
	"github.com/iliyamo/webshop-checkout/internal/utils"
)

// AuthHandler issues actor and admin tokens.
type AuthHandler struct {
	Cfg config.Config
}

func NewAuthHandler(cfg config.Config) *AuthHandler { return &AuthHandler{Cfg: cfg} }

type sessionReq struct {
	StudentID string `json:"student_id"`
}

type sessionResp struct {
	ActorID string            `json:"actor_id"`
	Access  utils.AccessToken `json:"access"`
}

// CreateSession starts an anonymous shopping session.  The returned actor
// id owns every reservation and order made with the token.  A student id
// may be linked so member prices can be verified at checkout, but only
// when the deployment trusts client-supplied student ids.
func (h *AuthHandler) CreateSession(c echo.Context) error {
	var req sessionReq
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
		}
	}
	studentID := strings.TrimSpace(req.StudentID)
	if studentID != "" && !h.Cfg.TrustClientStudentID {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "student id cannot be linked to this session"})
	}
	actorID := uuid.NewString()
	tok, err := utils.NewAccessToken(h.Cfg.JWTSecret, actorID, utils.RoleShopper, studentID, h.Cfg.AccessTTLMin)
	if err != nil {
		log.Printf("auth: sign session token: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not create session"})
	}
	return c.JSON(http.StatusCreated, sessionResp{ActorID: actorID, Access: tok})
}

type adminLoginReq struct {
	Password string `json:"password"`
}

// AdminLogin exchanges the admin password for an ADMIN token.  Login is
// disabled when no password hash is configured.
func (h *AuthHandler) AdminLogin(c echo.Context) error {
	var req adminLoginReq
	if err := c.Bind(&req); err != nil || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "password required"})
	}
	if !utils.VerifyPassword(h.Cfg.AdminPasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	tok, err := utils.NewAccessToken(h.Cfg.JWTSecret, "admin", utils.RoleAdmin, "", h.Cfg.AccessTTLMin)
	if err != nil {
		log.Printf("auth: sign admin token: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not sign token"})
	}
	return c.JSON(http.StatusOK, echo.Map{"access": tok})
}
