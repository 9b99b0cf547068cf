package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/intopays/subpay/internal/app/service/account"
	"github.com/intopays/subpay/internal/models"
	"github.com/intopays/subpay/pkg/response"
	"github.com/intopays/subpay/pkg/token"
)

const accountKey = "auth.account"

// AuthMiddleware resolves the Bearer token to an account. The token names its
// account in the claims, but is only trusted after verifying the signature
// against that account's own secret key.
func AuthMiddleware(accounts *account.Service, signer *token.Signer) gin.HandlerFunc {
	unauthorized := func(c *gin.Context) {
		c.AbortWithStatusJSON(http.StatusUnauthorized,
			response.ErrorT(response.APIResponseCodeUnauthorized, "invalid or missing credentials"))
	}

	return func(c *gin.Context) {
		raw, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || raw == "" {
			unauthorized(c)
			return
		}
		claims, err := signer.Decode(raw)
		if err != nil || claims.AccountID == "" {
			unauthorized(c)
			return
		}
		acct, err := accounts.FindByID(c.Request.Context(), claims.AccountID)
		if err != nil {
			unauthorized(c)
			return
		}
		if _, err := signer.Verify(raw, acct.SecretKey); err != nil {
			unauthorized(c)
			return
		}
		SetAccount(c, acct)
		c.Next()
	}
}

// SetAccount attaches the account AccountFrom will return.
func SetAccount(c *gin.Context, acct *models.Account) {
	c.Set(accountKey, acct)
}

// AccountFrom returns the authenticated account attached by AuthMiddleware.
func AccountFrom(c *gin.Context) *models.Account {
	if v, ok := c.Get(accountKey); ok {
		if acct, ok := v.(*models.Account); ok {
			return acct
		}
	}
	return nil
}
