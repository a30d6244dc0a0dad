package httpgin

import (
	"github.com/hoangtm/cinebook/internal/domain"
)

type ChooseMovieRequest struct {
	MovieID int64 `json:"movieId" binding:"required"`
}

type ChooseShowtimeRequest struct {
	ShowtimeID int64 `json:"showtimeId" binding:"required"`
}

type ChooseSeatsRequest struct {
	SeatIDs []int64 `json:"seatIds" binding:"required,min=1,dive,required"`
}

type FoodLineInput struct {
	ItemID   int64 `json:"itemId" binding:"required"`
	Quantity int   `json:"quantity" binding:"required"`
}

type ChooseFoodRequest struct {
	Items []FoodLineInput `json:"items"`
}

// BookingResponse is the wizard state plus running totals, enough for a
// client to render whatever stage it is at.
type BookingResponse struct {
	ID          string           `json:"id"`
	Stage       domain.Stage     `json:"stage"`
	Movie       *domain.Movie    `json:"movie,omitempty"`
	Showtime    *domain.Showtime `json:"showtime,omitempty"`
	SeatMap     []domain.Seat    `json:"seatMap,omitempty"`
	Seats       []domain.Seat    `json:"seats,omitempty"`
	FoodLines   map[int64]int    `json:"foodLines,omitempty"`
	TicketTotal int64            `json:"ticketTotal"`
	FoodTotal   int64            `json:"foodTotal"`
	Total       int64            `json:"total"`
}

type PaymentResponse struct {
	OrderCode   int64                `json:"orderCode"`
	Status      domain.PaymentStatus `json:"status"`
	Amount      int64                `json:"amount"`
	Description string               `json:"description,omitempty"`
	CheckoutURL string               `json:"checkoutUrl,omitempty"`
	QRCode      string               `json:"qrCode,omitempty"`
	ExpiresAt   string               `json:"expiresAt"`
	Reason      string               `json:"reason,omitempty"`
	Tickets     []domain.Ticket      `json:"tickets,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
