package server

import (
	"net/http"

	escrowdomain "github.com/despiezo/marketplace/internal/escrow/domain"
	orderdomain "github.com/despiezo/marketplace/internal/order/domain"
	"github.com/gin-gonic/gin"
)

type orderResponse struct {
	Order *orderdomain.Order      `json:"order"`
	Items []orderdomain.OrderItem `json:"items"`
}

func (s *Server) HandleGetOrder(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	orderID, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	order, err := s.orderSvc.GetByID(c.Request.Context(), orderID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if order.BuyerID != user.ID && order.VendorID != user.ID {
		AbortWithError(c, ErrForbidden)
		return
	}

	items, err := s.orderRepo.FindItems(c.Request.Context(), s.db, order.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, orderResponse{Order: order, Items: items})
}

// HandleOrderDelivered lets the buyer confirm delivery, releasing the held
// vendor payout ahead of the timeout.
func (s *Server) HandleOrderDelivered(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	orderID, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	order, err := s.orderSvc.GetByID(c.Request.Context(), orderID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if order.BuyerID != user.ID {
		AbortWithError(c, ErrForbidden)
		return
	}

	released, err := s.escrowSvc.Release(c.Request.Context(), order.ID, escrowdomain.ReasonDelivered)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "released": released})
}
