package gateway

import (
	"net/http"
	"time"

	"github.com/example/tablepos/pkg/models"
	"github.com/gin-gonic/gin"
)

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (g *Gateway) listOrders(c *gin.Context) {
	orders := g.deps.Orders.Orders(c.Query("status"))
	c.JSON(http.StatusOK, gin.H{"orders": orders, "total": len(orders)})
}

func (g *Gateway) getOrder(c *gin.Context) {
	order, err := g.deps.Orders.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (g *Gateway) updateOrderStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	order, err := g.deps.Status.UpdateStatus(c.Request.Context(), c.Param("id"), models.OrderStatus(req.Status))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (g *Gateway) lookupGuest(c *gin.Context) {
	guest, found, err := g.deps.Guests.LookupGuest(c.Request.Context(), c.Param("phone"))
	if err != nil {
		respondError(c, err)
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "guest not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": guest.ID, "name": guest.Name})
}

func (g *Gateway) dashboard(c *gin.Context) {
	stats, err := g.deps.Stats.Dashboard(c.Request.Context(), time.Now())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (g *Gateway) auditLogs(c *gin.Context) {
	if g.deps.Audit == nil {
		c.JSON(http.StatusOK, gin.H{"logs": []interface{}{}})
		return
	}
	logs, err := g.deps.Audit.GetAuditLogs(c.Request.Context(), c.Param("entity_id"), 50)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}
