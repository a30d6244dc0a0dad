package httpgin

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/hoangtm/cinebook/internal/backend"
	"github.com/hoangtm/cinebook/internal/domain"
	"github.com/hoangtm/cinebook/internal/payos"
	"github.com/hoangtm/cinebook/internal/service"
	"github.com/hoangtm/cinebook/internal/service/booking"
	"github.com/hoangtm/cinebook/internal/service/payment"
)

func NewRouter(
	svcs *service.Services,
	logger *slog.Logger,
	middlewares ...gin.HandlerFunc,
) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery(), LoggingMiddleware(logger), RequestIDMiddleware(), CORS())
	for _, m := range middlewares {
		if m != nil {
			r.Use(m)
		}
	}

	// Swagger UI
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// health + metrics
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1", AuthMiddleware())
	{
		v1.GET("/movies", handleListMovies(svcs))
		v1.GET("/food", handleListFood(svcs))

		v1.POST("/bookings", handleStartBooking(svcs))
		v1.GET("/bookings/:id", handleGetBooking(svcs))
		v1.POST("/bookings/:id/movie", handleChooseMovie(svcs))
		v1.GET("/bookings/:id/showtimes", handleListShowtimes(svcs))
		v1.POST("/bookings/:id/showtime", handleChooseShowtime(svcs))
		v1.GET("/bookings/:id/seats", handleSeatMap(svcs))
		v1.POST("/bookings/:id/seats", handleChooseSeats(svcs))
		v1.POST("/bookings/:id/food", handleChooseFood(svcs))
		v1.POST("/bookings/:id/back", handleBack(svcs))
		v1.POST("/bookings/:id/checkout", handleCheckout(svcs, logger))

		v1.GET("/payments/:orderCode", handleGetPayment(svcs))
		v1.POST("/payments/:orderCode/check", handleCheckPayment(svcs))
		v1.DELETE("/payments/:orderCode", handleTeardownPayment(svcs))

		v1.GET("/tickets", handleListTickets(svcs))
	}

	return r
}

// --- Handlers with Swagger annotations ---

// @Summary  List movies now showing
// @Success  200  {array}  domain.Movie
// @Router   /v1/movies [get]
func handleListMovies(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := sessionFrom(c)
		if !ok {
			unauthorized(c)
			return
		}
		movies, err := svcs.Booking.Movies(c.Request.Context(), sess)
		if err != nil {
			respondErr(c, err)
			return
		}
		// ETag + Cache-Control 60s
		writeJSONWithCache(c, http.StatusOK, movies, "private, max-age=60")
	}
}

// @Summary  List the concession catalog
// @Success  200  {array}  domain.FoodItem
// @Router   /v1/food [get]
func handleListFood(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		items := svcs.Booking.FoodCatalog()
		writeJSONWithCache(c, http.StatusOK, items, "public, max-age=3600")
	}
}

// @Summary  Start a booking
// @Success  201  {object}  BookingResponse
// @Router   /v1/bookings [post]
func handleStartBooking(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := sessionFrom(c)
		if !ok {
			unauthorized(c)
			return
		}
		st, err := svcs.Booking.Start(c.Request.Context(), sess)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, bookingResponse(svcs, st))
	}
}

// @Summary  Get a booking
// @Param    id  path  string  true  "Booking ID (uuid)"
// @Success  200  {object}  BookingResponse
// @Failure  404  {object}  ErrorResponse
// @Router   /v1/bookings/{id} [get]
func handleGetBooking(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := sessionFrom(c)
		if !ok {
			unauthorized(c)
			return
		}
		st, err := svcs.Booking.Get(c.Request.Context(), sess, c.Param("id"))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, bookingResponse(svcs, st))
	}
}

// @Summary  Choose a movie
// @Param    id   path  string              true  "Booking ID (uuid)"
// @Param    req  body  ChooseMovieRequest  true  "payload"
// @Success  200  {object}  BookingResponse
// @Failure  404  {object}  ErrorResponse
// @Failure  409  {object}  ErrorResponse "no upcoming showtimes"
// @Router   /v1/bookings/{id}/movie [post]
func handleChooseMovie(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := sessionFrom(c)
		if !ok {
			unauthorized(c)
			return
		}
		var req ChooseMovieRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		st, err := svcs.Booking.ChooseMovie(c.Request.Context(), sess, c.Param("id"), req.MovieID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, bookingResponse(svcs, st))
	}
}

// @Summary  List upcoming showtimes for the chosen movie
// @Param    id  path  string  true  "Booking ID (uuid)"
// @Success  200  {array}  domain.Showtime
// @Router   /v1/bookings/{id}/showtimes [get]
func handleListShowtimes(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := sessionFrom(c)
		if !ok {
			unauthorized(c)
			return
		}
		shows, err := svcs.Booking.Showtimes(c.Request.Context(), sess, c.Param("id"))
		if err != nil {
			respondErr(c, err)
			return
		}
		writeJSONWithCache(c, http.StatusOK, shows, "private, max-age=15")
	}
}

// @Summary  Choose a showtime
// @Param    id   path  string                 true  "Booking ID (uuid)"
// @Param    req  body  ChooseShowtimeRequest  true  "payload"
// @Success  200  {object}  BookingResponse
// @Failure  409  {object}  ErrorResponse "showtime already started"
// @Router   /v1/bookings/{id}/showtime [post]
func handleChooseShowtime(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := sessionFrom(c)
		if !ok {
			unauthorized(c)
			return
		}
		var req ChooseShowtimeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		st, err := svcs.Booking.ChooseShowtime(c.Request.Context(), sess, c.Param("id"), req.ShowtimeID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, bookingResponse(svcs, st))
	}
}

// @Summary  Get the seat map of the chosen showtime's room
// @Param    id  path  string  true  "Booking ID (uuid)"
// @Success  200  {array}  domain.Seat
// @Router   /v1/bookings/{id}/seats [get]
func handleSeatMap(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := sessionFrom(c)
		if !ok {
			unauthorized(c)
			return
		}
		seats, err := svcs.Booking.SeatMap(c.Request.Context(), sess, c.Param("id"))
		if err != nil {
			respondErr(c, err)
			return
		}
		writeJSONWithCache(c, http.StatusOK, seats, "private, max-age=15")
	}
}

// @Summary  Choose seats
// @Param    id   path  string              true  "Booking ID (uuid)"
// @Param    req  body  ChooseSeatsRequest  true  "payload"
// @Success  200  {object}  BookingResponse
// @Failure  409  {object}  ErrorResponse "seat unavailable"
// @Router   /v1/bookings/{id}/seats [post]
func handleChooseSeats(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := sessionFrom(c)
		if !ok {
			unauthorized(c)
			return
		}
		var req ChooseSeatsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		st, err := svcs.Booking.ChooseSeats(c.Request.Context(), sess, c.Param("id"), req.SeatIDs)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, bookingResponse(svcs, st))
	}
}

// @Summary  Choose concessions (optional, empty list is valid)
// @Param    id   path  string             true  "Booking ID (uuid)"
// @Param    req  body  ChooseFoodRequest  true  "payload"
// @Success  200  {object}  BookingResponse
// @Router   /v1/bookings/{id}/food [post]
func handleChooseFood(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := sessionFrom(c)
		if !ok {
			unauthorized(c)
			return
		}
		var req ChooseFoodRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		lines := make(map[int64]int, len(req.Items))
		for _, it := range req.Items {
			lines[it.ItemID] += it.Quantity
		}
		st, err := svcs.Booking.ChooseFood(c.Request.Context(), sess, c.Param("id"), lines)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, bookingResponse(svcs, st))
	}
}

// @Summary  Step one stage back
// @Param    id  path  string  true  "Booking ID (uuid)"
// @Success  200  {object}  BookingResponse
// @Router   /v1/bookings/{id}/back [post]
func handleBack(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := sessionFrom(c)
		if !ok {
			unauthorized(c)
			return
		}
		st, err := svcs.Booking.Back(c.Request.Context(), sess, c.Param("id"))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, bookingResponse(svcs, st))
	}
}

// @Summary  Check out a ready booking
// @Description  Creates a provider payment order from the booking's cart. On
// @Description  success the booking is consumed; a provider rejection leaves
// @Description  it intact so the user can try again.
// @Param    id  path  string  true  "Booking ID (uuid)"
// @Success  201  {object}  PaymentResponse
// @Failure  409  {object}  ErrorResponse "booking not ready"
// @Failure  429  {object}  ErrorResponse "rate limited"
// @Failure  502  {object}  ErrorResponse "provider rejected the order"
// @Router   /v1/bookings/{id}/checkout [post]
func handleCheckout(svcs *service.Services, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := sessionFrom(c)
		if !ok {
			unauthorized(c)
			return
		}
		ctx := c.Request.Context()
		id := c.Param("id")

		cart, err := svcs.Booking.Cart(ctx, sess, id)
		if err != nil {
			respondErr(c, err)
			return
		}

		ps, err := svcs.Payment.CreateOrder(ctx, sess, cart)
		if err != nil {
			respondErr(c, err)
			return
		}

		// The order is live at the provider; the wizard is done. A failed
		// delete only means the state lingers until its TTL.
		if derr := svcs.Booking.Discard(ctx, sess, id); derr != nil {
			logger.Warn("failed to discard checked-out booking", "booking_id", id, "error", derr)
		}

		c.JSON(http.StatusCreated, paymentResponse(ps, nil))
	}
}

// @Summary  Get a payment session
// @Param    orderCode  path  int  true  "Order code"
// @Success  200  {object}  PaymentResponse
// @Failure  404  {object}  ErrorResponse
// @Router   /v1/payments/{orderCode} [get]
func handleGetPayment(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := sessionFrom(c)
		if !ok {
			unauthorized(c)
			return
		}
		orderCode, ok := parseInt64Param(c, "orderCode")
		if !ok {
			return
		}
		ps, tickets, err := svcs.Payment.Get(c.Request.Context(), sess, orderCode)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, paymentResponse(ps, tickets))
	}
}

// @Summary  Force an immediate payment status check
// @Param    orderCode  path  int  true  "Order code"
// @Success  200  {object}  PaymentResponse
// @Router   /v1/payments/{orderCode}/check [post]
func handleCheckPayment(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := sessionFrom(c)
		if !ok {
			unauthorized(c)
			return
		}
		orderCode, ok := parseInt64Param(c, "orderCode")
		if !ok {
			return
		}
		ps, tickets, err := svcs.Payment.Check(c.Request.Context(), sess, orderCode)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, paymentResponse(ps, tickets))
	}
}

// @Summary  Tear down a payment session
// @Param    orderCode  path  int  true  "Order code"
// @Success  204
// @Router   /v1/payments/{orderCode} [delete]
func handleTeardownPayment(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := sessionFrom(c)
		if !ok {
			unauthorized(c)
			return
		}
		orderCode, ok := parseInt64Param(c, "orderCode")
		if !ok {
			return
		}
		if err := svcs.Payment.Teardown(c.Request.Context(), sess, orderCode); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// @Summary  List the caller's tickets
// @Success  200  {array}  domain.Ticket
// @Router   /v1/tickets [get]
func handleListTickets(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := sessionFrom(c)
		if !ok {
			unauthorized(c)
			return
		}
		tickets, err := svcs.Tickets.List(c.Request.Context(), sess)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, tickets)
	}
}

// --- Helpers ---

func bookingResponse(svcs *service.Services, st *domain.BookingState) BookingResponse {
	ticket, food, total := svcs.Booking.Totals(st)

	return BookingResponse{
		ID:          st.ID.String(),
		Stage:       st.Stage,
		Movie:       st.Movie,
		Showtime:    st.Showtime,
		SeatMap:     st.SeatMap,
		Seats:       st.SelectedSeats(),
		FoodLines:   st.FoodLines,
		TicketTotal: ticket,
		FoodTotal:   food,
		Total:       total,
	}
}

func paymentResponse(ps *domain.PaymentSession, tickets []domain.Ticket) PaymentResponse {
	return PaymentResponse{
		OrderCode:   ps.OrderCode,
		Status:      ps.Status,
		Amount:      ps.Amount,
		Description: ps.Description,
		CheckoutURL: ps.CheckoutURL,
		QRCode:      ps.QRCode,
		ExpiresAt:   ps.ExpiresAt.Format(time.RFC3339),
		Reason:      ps.Reason,
		Tickets:     tickets,
	}
}

func parseInt64Param(c *gin.Context, name string) (int64, bool) {
	s := c.Param(name)
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return v, true
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

func unauthorized(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "missing session"})
}

func respondErr(c *gin.Context, err error) {
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}

	var perr *payos.ProviderError
	if errors.As(err, &perr) {
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: perr.Desc})
		return
	}

	switch {
	// booking service
	case errors.Is(err, booking.ErrBookingNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "booking not found"})
	case errors.Is(err, booking.ErrMovieNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "movie not found"})
	case errors.Is(err, booking.ErrShowtimeNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "showtime not found"})
	case errors.Is(err, booking.ErrNoFutureShowtimes):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "no upcoming showtimes"})
	case errors.Is(err, booking.ErrShowtimeStarted):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "showtime already started"})
	case errors.Is(err, booking.ErrWrongStage):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "wrong stage"})
	case errors.Is(err, booking.ErrNotReady):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "booking not ready"})
	case errors.Is(err, booking.ErrSeatUnavailable):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "seat unavailable"})
	case errors.Is(err, booking.ErrNoSeatsSelected):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "no seats selected"})
	case errors.Is(err, booking.ErrUnknownSeat):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "unknown seat"})
	case errors.Is(err, booking.ErrUnknownFoodItem):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "unknown food item"})
	case errors.Is(err, booking.ErrBadQuantity):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid quantity"})
	// payment engine
	case errors.Is(err, payment.ErrPaymentNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "payment not found"})
	case errors.Is(err, payment.ErrEmptyCart):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "cart has no seats"})
	case errors.Is(err, payment.ErrInvalidAmount):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "cart total must be positive"})
	case errors.Is(err, payment.ErrRateLimited):
		c.Header("Retry-After", "60")
		c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: "too many payment attempts"})
	// upstream backend
	case errors.Is(err, backend.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "session expired"})
	case errors.Is(err, backend.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found"})
	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}
