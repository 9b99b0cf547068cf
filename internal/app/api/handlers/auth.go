package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/intopays/subpay/internal/app/service/account"
	"github.com/intopays/subpay/internal/models"
	"github.com/intopays/subpay/pkg/apperr"
	"github.com/intopays/subpay/pkg/response"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token   string             `json:"token"`
	Account *models.AccountDTO `json:"account"`
}

func ApiRegisterAccount(accounts *account.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var params account.RegisterParams
		if err := c.ShouldBindJSON(&params); err != nil {
			fail(c, apperr.Validationf("invalid request body: %v", err))
			return
		}
		acct, err := accounts.Register(c.Request.Context(), params)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, response.OKT(acct.DTO()))
	}
}

func ApiLogin(accounts *account.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, apperr.Validationf("invalid request body: %v", err))
			return
		}
		signed, acct, err := accounts.Login(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(loginResponse{Token: signed, Account: acct.DTO()}))
	}
}

func RegisterAuthRoutes(r gin.IRouter, accounts *account.Service) {
	r.POST("/accounts", ApiRegisterAccount(accounts))
	r.POST("/auth/login", ApiLogin(accounts))
}
