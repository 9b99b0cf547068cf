package handlers

import (
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"

	subsvc "github.com/intopays/subpay/internal/app/service/subscription"
	"github.com/intopays/subpay/pkg/apperr"
	"github.com/intopays/subpay/pkg/token"
	"github.com/intopays/subpay/pkg/types"
)

// Browser-facing pages. The redirect-payment page forwards the browser into
// the provider-hosted checkout; the checkout page is where the provider sends
// the customer back and where the redirect completion path applies its state
// transition.

var checkoutPage = template.Must(template.New("checkout").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>Checkout</title>
  <script src="https://js.stripe.com/v3/"></script>
</head>
<body>
  <p>Redirecting to checkout...</p>
  <script>
    var stripe = Stripe({{.PublicKey}});
    stripe.redirectToCheckout({sessionId: {{.SessionCode}}});
  </script>
</body>
</html>`))

var redirectPage = template.Must(template.New("redirect").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>Payment</title>
</head>
<body>
  {{if .Approved}}<h1>Payment confirmed</h1>
  <p>Your subscription is active. You can close this window.</p>
  {{else}}<h1>Checkout cancelled</h1>
  <p>No charge was made. You can close this window.</p>
  {{end}}
</body>
</html>`))

var errorPage = template.Must(template.New("error").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>Payment</title>
</head>
<body>
  <h1>This link is not valid</h1>
  <p>The payment link is invalid or has expired.</p>
</body>
</html>`))

func renderHTML(c *gin.Context, status int, tmpl *template.Template, data any) {
	c.Status(status)
	c.Header("Content-Type", "text/html; charset=utf-8")
	_ = tmpl.Execute(c.Writer, data)
}

// ApiRedirectPayment serves the page that forwards the browser into the
// provider's hosted checkout. The token is verified, never just decoded: a
// forged token must not leak a session identifier.
func ApiRedirectPayment(sub *subsvc.Service, signer *token.Signer) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := signer.Verify(c.Param("token"))
		if err != nil {
			renderHTML(c, http.StatusForbidden, errorPage, nil)
			return
		}
		data, err := sub.Render(c.Request.Context(), claims)
		if err != nil {
			renderHTML(c, apperr.HTTPStatus(err), errorPage, nil)
			return
		}
		renderHTML(c, http.StatusOK, checkoutPage, data)
	}
}

// ApiCheckoutReturn is the provider's return URL. Verifying the token is
// what authorizes the state transition carried in its claims.
func ApiCheckoutReturn(sub *subsvc.Service, signer *token.Signer) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := signer.Verify(c.Param("token"))
		if err != nil {
			renderHTML(c, http.StatusForbidden, errorPage, nil)
			return
		}
		applied, err := sub.ApplyRedirect(c.Request.Context(), claims)
		if err != nil {
			renderHTML(c, apperr.HTTPStatus(err), errorPage, nil)
			return
		}
		renderHTML(c, http.StatusOK, redirectPage, gin.H{
			"Approved": applied.Status == types.SubscriptionStatusApproved,
		})
	}
}

func RegisterWebRoutes(r gin.IRouter, sub *subsvc.Service, signer *token.Signer) {
	r.GET("/redirect-payment/:token", ApiRedirectPayment(sub, signer))
	r.GET("/checkout/:token", ApiCheckoutReturn(sub, signer))
}
