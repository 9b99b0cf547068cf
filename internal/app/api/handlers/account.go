package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	mw "github.com/intopays/subpay/internal/app/api/middleware"
	"github.com/intopays/subpay/internal/app/service/account"
	"github.com/intopays/subpay/pkg/apperr"
	"github.com/intopays/subpay/pkg/response"
)

func ApiGetOwnAccount() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, response.OKT(mw.AccountFrom(c).DTO()))
	}
}

func ApiUpdateOwnAccount(accounts *account.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var params account.UpdateParams
		if err := c.ShouldBindJSON(&params); err != nil {
			fail(c, apperr.Validationf("invalid request body: %v", err))
			return
		}
		acct, err := accounts.Update(c.Request.Context(), mw.AccountFrom(c), params)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(acct.DTO()))
	}
}

func ApiDeleteAccount(accounts *account.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := accounts.Delete(c.Request.Context(), mw.AccountFrom(c), c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(map[string]bool{"success": true}))
	}
}

func ApiLogout(accounts *account.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := accounts.Logout(c.Request.Context(), mw.AccountFrom(c)); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(map[string]bool{"success": true}))
	}
}

func RegisterAccountRoutes(r gin.IRouter, accounts *account.Service) {
	r.GET("/accounts/me", ApiGetOwnAccount())
	r.PUT("/accounts/me", ApiUpdateOwnAccount(accounts))
	r.DELETE("/accounts/:id", ApiDeleteAccount(accounts))
	r.POST("/auth/logout", ApiLogout(accounts))
}
