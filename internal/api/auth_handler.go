package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"botadmin/internal/dto/req"
	"botadmin/internal/dto/resp"
	"botadmin/internal/service"
	v1 "botadmin/pkg/api/v1"
	"botadmin/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// AuthProvider is the token protocol behind the credential endpoints.
type AuthProvider interface {
	Login(ctx context.Context, r req.LoginReq) (*resp.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*resp.AccessResp, error)
	Blacklist(ctx context.Context, refreshToken string) error
	Profile(ctx context.Context, id uint64) (*v1.Profile, error)
}

type AuthHandler struct {
	svc AuthProvider
}

func NewAuthHandler(svc AuthProvider) *AuthHandler {
	return &AuthHandler{svc: svc}
}

const (
	detailInvalidToken = "Token is invalid or expired"
	detailBlacklisted  = "Token is blacklisted"
	detailServerError  = "A server error occurred."
)

func (h *AuthHandler) Login(c *gin.Context) {
	var body req.LoginReq
	if !bindBody(c, &body) {
		return
	}

	tokens, err := h.svc.Login(c.Request.Context(), body)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, resp.ErrorResp{Detail: "No active account found with the given credentials"})
			return
		}
		serverError(c, "login failed", err)
		return
	}
	c.JSON(http.StatusOK, tokens)
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	var body req.RefreshReq
	if !bindBody(c, &body) {
		return
	}

	access, err := h.svc.Refresh(c.Request.Context(), body.Refresh)
	if err != nil {
		tokenError(c, "refresh failed", err)
		return
	}
	c.JSON(http.StatusOK, access)
}

func (h *AuthHandler) Blacklist(c *gin.Context) {
	var body req.RefreshReq
	if !bindBody(c, &body) {
		return
	}

	if err := h.svc.Blacklist(c.Request.Context(), body.Refresh); err != nil {
		tokenError(c, "blacklist failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

func (h *AuthHandler) GetProfile(c *gin.Context) {
	op := service.GetOperatorInfo(c.Request.Context())
	if op == nil {
		c.JSON(http.StatusUnauthorized, resp.ErrorResp{Detail: "Authentication credentials were not provided."})
		return
	}

	profile, err := h.svc.Profile(c.Request.Context(), op.UserID)
	if err != nil {
		tokenError(c, "profile lookup failed", err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func tokenError(c *gin.Context, msg string, err error) {
	switch {
	case errors.Is(err, service.ErrTokenBlacklisted):
		c.JSON(http.StatusUnauthorized, resp.ErrorResp{Detail: detailBlacklisted, Code: "token_not_valid"})
	case errors.Is(err, service.ErrTokenInvalid), errors.Is(err, service.ErrWrongTokenType):
		c.JSON(http.StatusUnauthorized, resp.ErrorResp{Detail: detailInvalidToken, Code: "token_not_valid"})
	default:
		serverError(c, msg, err)
	}
}

func serverError(c *gin.Context, msg string, err error) {
	logger.Error(msg, zap.Error(err), zap.String("path", c.FullPath()))
	c.JSON(http.StatusInternalServerError, resp.ErrorResp{Detail: detailServerError})
}

// bindBody decodes the JSON body. Missing fields are reported per field,
// {"username": ["This field is required."]}, and unparsable bodies as a detail.
func bindBody(c *gin.Context, obj any) bool {
	err := c.ShouldBindJSON(obj)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string][]string, len(verrs))
		for _, fe := range verrs {
			name := strings.ToLower(fe.Field())
			fields[name] = append(fields[name], "This field is required.")
		}
		c.JSON(http.StatusBadRequest, fields)
		return false
	}
	c.JSON(http.StatusBadRequest, resp.ErrorResp{Detail: "JSON parse error - " + err.Error(), Code: "parse_error"})
	return false
}
