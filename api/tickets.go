package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"railticket/internal/domain"
	"railticket/internal/service/booking"
)

type TicketHandler struct {
	service booking.TicketUseCase
}

func NewTicketHandler(service booking.TicketUseCase) *TicketHandler {
	return &TicketHandler{service: service}
}

func (h *TicketHandler) Register(router *gin.RouterGroup) {
	router.POST("/tickets/purchase", h.purchase)
	router.POST("/orders/:serial/pay", h.pay)
	router.GET("/orders/:serial", h.get)
}

type purchaseResponse struct {
	OrderSerial string           `json:"order_serial"`
	Downgraded  bool             `json:"downgraded"`
	Tickets     []ticketResponse `json:"tickets"`
}

type ticketResponse struct {
	PassengerID string `json:"passenger_id"`
	SeatClass   string `json:"seat_class"`
	Carriage    string `json:"carriage"`
	SeatNumber  string `json:"seat_number"`
}

type orderResponse struct {
	OrderSerial string           `json:"order_serial"`
	UserID      string           `json:"user_id"`
	TrainID     string           `json:"train_id"`
	Departure   string           `json:"departure"`
	Arrival     string           `json:"arrival"`
	Status      string           `json:"status"`
	Tickets     []ticketResponse `json:"tickets"`
}

func (h *TicketHandler) purchase(c *gin.Context) {
	var req booking.PurchaseInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.service.Purchase(c.Request.Context(), req)
	if err != nil {
		c.JSON(purchaseStatus(err), gin.H{"error": err.Error()})
		return
	}

	tickets := make([]ticketResponse, len(res.Assignments))
	for i, a := range res.Assignments {
		tickets[i] = ticketResponse{
			PassengerID: a.PassengerID,
			SeatClass:   string(a.SeatClass),
			Carriage:    a.Carriage,
			SeatNumber:  a.SeatNumber,
		}
	}
	c.JSON(http.StatusCreated, purchaseResponse{
		OrderSerial: res.OrderSerial,
		Downgraded:  res.Downgraded,
		Tickets:     tickets,
	})
}

func (h *TicketHandler) pay(c *gin.Context) {
	serial := c.Param("serial")
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	if err := h.service.Pay(c.Request.Context(), userID, serial); err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_serial": serial, "status": string(domain.OrderStatusPaid)})
}

func (h *TicketHandler) get(c *gin.Context) {
	serial := c.Param("serial")
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	order, orderTickets, err := h.service.GetOrder(c.Request.Context(), userID, serial)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	tickets := make([]ticketResponse, len(orderTickets))
	for i, t := range orderTickets {
		tickets[i] = ticketResponse{
			PassengerID: t.PassengerID,
			SeatClass:   string(t.SeatClass),
			Carriage:    t.Carriage,
			SeatNumber:  t.SeatNumber,
		}
	}
	c.JSON(http.StatusOK, orderResponse{
		OrderSerial: order.Serial,
		UserID:      order.UserID,
		TrainID:     order.TrainID,
		Departure:   order.Departure,
		Arrival:     order.Arrival,
		Status:      string(order.Status),
		Tickets:     tickets,
	})
}

func purchaseStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrInsufficientInventory), errors.Is(err, domain.ErrSeatsUnavailable):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}
