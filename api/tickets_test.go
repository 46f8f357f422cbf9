package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"railticket/internal/domain"
	"railticket/internal/service/booking"
)

type MockTicketUseCase struct {
	mock.Mock
}

func (m *MockTicketUseCase) Purchase(ctx context.Context, input booking.PurchaseInput) (*booking.PurchaseResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.PurchaseResult), args.Error(1)
}

func (m *MockTicketUseCase) Pay(ctx context.Context, userID, serial string) error {
	args := m.Called(ctx, userID, serial)
	return args.Error(0)
}

func (m *MockTicketUseCase) GetOrder(ctx context.Context, userID, serial string) (*domain.Order, []domain.Ticket, error) {
	args := m.Called(ctx, userID, serial)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*domain.Order), args.Get(1).([]domain.Ticket), args.Error(2)
}

func newTestRouter(service booking.TicketUseCase) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewTicketHandler(service).Register(r.Group("/api/v1"))
	return r
}

func TestTicketHandler_purchase(t *testing.T) {
	mockService := &MockTicketUseCase{}
	router := newTestRouter(mockService)

	input := booking.PurchaseInput{
		UserID:      "u1",
		TrainID:     "G35",
		Departure:   "beijing",
		Arrival:     "hangzhou",
		VehicleType: domain.VehicleHighSpeed,
		SeatClass:   domain.SeatClassSecond,
		Passengers: []domain.PassengerSeatRequest{
			{PassengerID: "p1", SeatClass: domain.SeatClassSecond},
		},
	}
	result := &booking.PurchaseResult{
		OrderSerial: "123456",
		Assignments: []domain.SeatAssignment{
			{PassengerID: "p1", SeatClass: domain.SeatClassSecond, Carriage: "1", SeatNumber: "01A"},
		},
	}
	mockService.On("Purchase", mock.Anything, input).Return(result, nil)

	body, _ := json.Marshal(input)
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/v1/tickets/purchase", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	var response purchaseResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "123456", response.OrderSerial)
	assert.Len(t, response.Tickets, 1)
	assert.Equal(t, "01A", response.Tickets[0].SeatNumber)
	mockService.AssertExpectations(t)
}

func TestTicketHandler_purchaseSoldOut(t *testing.T) {
	mockService := &MockTicketUseCase{}
	router := newTestRouter(mockService)
	mockService.On("Purchase", mock.Anything, mock.Anything).Return(nil, domain.ErrInsufficientInventory)

	body := `{"user_id":"u1","train_id":"G35","departure":"beijing","arrival":"hangzhou","vehicle_type":"HIGH_SPEED","seat_class":"SECOND","passengers":[{"passenger_id":"p1","seat_class":"SECOND"}]}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/v1/tickets/purchase", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestTicketHandler_purchaseBadJSON(t *testing.T) {
	router := newTestRouter(&MockTicketUseCase{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/v1/tickets/purchase", bytes.NewReader([]byte("{bad")))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTicketHandler_pay(t *testing.T) {
	mockService := &MockTicketUseCase{}
	router := newTestRouter(mockService)
	mockService.On("Pay", mock.Anything, "u1", "123456").Return(nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/v1/orders/123456/pay?user_id=u1", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockService.AssertExpectations(t)
}

func TestTicketHandler_payMissingUser(t *testing.T) {
	router := newTestRouter(&MockTicketUseCase{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/v1/orders/123456/pay", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTicketHandler_getNotFound(t *testing.T) {
	mockService := &MockTicketUseCase{}
	router := newTestRouter(mockService)
	mockService.On("GetOrder", mock.Anything, "u1", "nope").Return(nil, nil, domain.ErrOrderNotFound)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/v1/orders/nope?user_id=u1", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTicketHandler_get(t *testing.T) {
	mockService := &MockTicketUseCase{}
	router := newTestRouter(mockService)

	order := &domain.Order{
		Serial: "123456", UserID: "u1", TrainID: "G35",
		Departure: "beijing", Arrival: "hangzhou",
		Status: domain.OrderStatusPaid,
	}
	tickets := []domain.Ticket{
		{OrderSerial: "123456", PassengerID: "p1", SeatClass: domain.SeatClassSecond, Carriage: "1", SeatNumber: "01A"},
	}
	mockService.On("GetOrder", mock.Anything, "u1", "123456").Return(order, tickets, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/v1/orders/123456?user_id=u1", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var response orderResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, string(domain.OrderStatusPaid), response.Status)
	assert.Len(t, response.Tickets, 1)
}
