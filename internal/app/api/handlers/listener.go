package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	mw "github.com/intopays/subpay/internal/app/api/middleware"
	"github.com/intopays/subpay/internal/app/service/listener"
	"github.com/intopays/subpay/internal/models"
	"github.com/intopays/subpay/pkg/apperr"
	"github.com/intopays/subpay/pkg/response"
)

type registerListenerResponse struct {
	Listener *models.Listener `json:"listener"`
	// Secret is returned exactly once; it is never stored.
	Secret string `json:"secret"`
}

func ApiRegisterListener(svc *listener.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := svc.Register(c.Request.Context(), mw.AccountFrom(c))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, response.OKT(registerListenerResponse{
			Listener: res.Listener,
			Secret:   res.Secret,
		}))
	}
}

func ApiListListeners(svc *listener.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		listeners, err := svc.List(c.Request.Context(), mw.AccountFrom(c))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(listeners))
	}
}

// ApiListenerIntake receives provider webhook deliveries. Anything past a
// valid signature is acknowledged with 200 so the provider stops retrying;
// the engine's transitions are replay-safe either way.
func ApiListenerIntake(svc *listener.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		payload, err := io.ReadAll(c.Request.Body)
		if err != nil {
			fail(c, apperr.Validationf("unreadable payload: %v", err))
			return
		}
		if err := svc.HandleEvent(c.Request.Context(), payload, c.GetHeader("Stripe-Signature")); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(map[string]bool{"success": true}))
	}
}

func RegisterListenerRoutes(authed gin.IRouter, public gin.IRouter, svc *listener.Service) {
	authed.POST("/payments/listeners", ApiRegisterListener(svc))
	authed.GET("/payments/listeners", ApiListListeners(svc))
	public.POST("/payments/listeners/:reference", ApiListenerIntake(svc))
}
