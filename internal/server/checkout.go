package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	checkoutdomain "github.com/despiezo/marketplace/internal/checkout/domain"
	"github.com/gin-gonic/gin"
)

type checkoutProductRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	AddressID string `json:"address_id" binding:"required"`
	Phone     string `json:"phone" binding:"required"`
}

type checkoutKitRequest struct {
	KitID     string `json:"kit_id" binding:"required"`
	AddressID string `json:"address_id" binding:"required"`
	Phone     string `json:"phone" binding:"required"`
}

type checkoutFeatureRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Days      int    `json:"days" binding:"required"`
}

type checkoutResponse struct {
	RedirectURL string `json:"redirect_url"`
}

func (s *Server) HandleCheckoutProduct(c *gin.Context) {
	var req checkoutProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	productID, err := parseID(req.ProductID)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	addressID, err := parseID(req.AddressID)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	url, err := s.checkoutSvc.BuildProductSession(c.Request.Context(), currentUser(c), checkoutdomain.ProductIntent{
		ProductID: productID,
		AddressID: addressID,
		Phone:     req.Phone,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, checkoutResponse{RedirectURL: url})
}

func (s *Server) HandleCheckoutKit(c *gin.Context) {
	var req checkoutKitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	kitID, err := parseID(req.KitID)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	addressID, err := parseID(req.AddressID)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	url, err := s.checkoutSvc.BuildKitSession(c.Request.Context(), currentUser(c), checkoutdomain.KitIntent{
		KitID:     kitID,
		AddressID: addressID,
		Phone:     req.Phone,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, checkoutResponse{RedirectURL: url})
}

func (s *Server) HandleCheckoutFeature(c *gin.Context) {
	var req checkoutFeatureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	productID, err := parseID(req.ProductID)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	url, err := s.checkoutSvc.BuildPromotionSession(c.Request.Context(), currentUser(c), checkoutdomain.PromotionIntent{
		ProductID: productID,
		Days:      req.Days,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, checkoutResponse{RedirectURL: url})
}

func parseID(raw string) (snowflake.ID, error) {
	return snowflake.ParseString(strings.TrimSpace(raw))
}
