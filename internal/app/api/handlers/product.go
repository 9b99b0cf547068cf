package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	mw "github.com/intopays/subpay/internal/app/api/middleware"
	"github.com/intopays/subpay/internal/app/service/product"
	"github.com/intopays/subpay/internal/models"
	"github.com/intopays/subpay/pkg/apperr"
	"github.com/intopays/subpay/pkg/response"
)

func ApiCreateProduct(svc *product.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var params product.CreateParams
		if err := c.ShouldBindJSON(&params); err != nil {
			fail(c, apperr.Validationf("invalid request body: %v", err))
			return
		}
		prod, err := svc.Create(c.Request.Context(), mw.AccountFrom(c), params)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, response.OKT(prod.DTO()))
	}
}

func ApiListProducts(svc *product.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		products, err := svc.List(c.Request.Context())
		if err != nil {
			fail(c, err)
			return
		}
		dtos := lo.Map(products, func(p *models.Product, _ int) *models.ProductDTO { return p.DTO() })
		c.JSON(http.StatusOK, response.OKT(dtos))
	}
}

func ApiGetProduct(svc *product.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		prod, err := svc.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(prod.DTO()))
	}
}

func ApiDeleteProduct(svc *product.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.Delete(c.Request.Context(), mw.AccountFrom(c), c.Param("id")); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(map[string]bool{"success": true}))
	}
}

func RegisterProductRoutes(authed gin.IRouter, public gin.IRouter, svc *product.Service) {
	authed.POST("/products", ApiCreateProduct(svc))
	authed.DELETE("/products/:id", ApiDeleteProduct(svc))
	public.GET("/products", ApiListProducts(svc))
	public.GET("/products/:id", ApiGetProduct(svc))
}
