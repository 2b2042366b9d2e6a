package middleware

import (
	"net/http"
	"strings"

	"botadmin/internal/dto/resp"
	"botadmin/internal/service"

	"github.com/gin-gonic/gin"
)

// AccessVerifier validates bearer access tokens.
type AccessVerifier interface {
	ParseAccess(token string) (*service.TokenClaims, error)
}

const codeTokenNotValid = "token_not_valid"

func JWTMiddleware(verifier AccessVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := ""
		if parts := strings.Fields(c.GetHeader("Authorization")); len(parts) == 2 && parts[0] == "Bearer" {
			tokenString = parts[1]
		}
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, resp.ErrorResp{
				Detail: "Authentication credentials were not provided.",
			})
			return
		}

		claims, err := verifier.ParseAccess(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, resp.ErrorResp{
				Detail: "Given token not valid for any token type",
				Code:   codeTokenNotValid,
			})
			return
		}

		ctx := service.WithOperator(c.Request.Context(), &service.OperatorInfo{
			UserID:    claims.UserID,
			Name:      claims.Username,
			Superuser: claims.Superuser,
		})
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}
