package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	mw "github.com/intopays/subpay/internal/app/api/middleware"
	subsvc "github.com/intopays/subpay/internal/app/service/subscription"
	"github.com/intopays/subpay/internal/models"
	"github.com/intopays/subpay/pkg/apperr"
	"github.com/intopays/subpay/pkg/response"
	"github.com/intopays/subpay/pkg/types"
)

type createSubscriptionRequest struct {
	PriceID string `json:"price_id"`
}

type createSubscriptionResponse struct {
	Subscription       *models.SubscriptionDTO `json:"subscription"`
	CheckoutToken      string                  `json:"checkout_token"`
	RedirectPaymentURL string                  `json:"redirect_payment_url"`
}

func ApiCreateSubscription(sub *subsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createSubscriptionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, apperr.Validationf("invalid request body: %v", err))
			return
		}
		if req.PriceID == "" {
			fail(c, apperr.Validationf("price_id is required"))
			return
		}
		res, err := sub.Create(c.Request.Context(), mw.AccountFrom(c), req.PriceID)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, response.OKT(createSubscriptionResponse{
			Subscription:       res.Subscription.DTO(),
			CheckoutToken:      res.CheckoutToken,
			RedirectPaymentURL: res.RedirectPaymentURL,
		}))
	}
}

func ApiListSubscriptions(sub *subsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := types.SubscriptionStatus(c.Query("status"))
		subs, err := sub.List(c.Request.Context(), mw.AccountFrom(c).ID, status)
		if err != nil {
			fail(c, err)
			return
		}
		dtos := lo.Map(subs, func(s *models.Subscription, _ int) *models.SubscriptionDTO { return s.DTO() })
		c.JSON(http.StatusOK, response.OKT(dtos))
	}
}

func ApiCancelSubscription(sub *subsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		cancelled, err := sub.Cancel(c.Request.Context(), mw.AccountFrom(c), c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(cancelled.DTO()))
	}
}

func RegisterSubscriptionRoutes(r gin.IRouter, sub *subsvc.Service) {
	r.POST("/subscriptions", ApiCreateSubscription(sub))
	r.GET("/subscriptions", ApiListSubscriptions(sub))
	r.DELETE("/subscriptions/:id", ApiCancelSubscription(sub))
}
