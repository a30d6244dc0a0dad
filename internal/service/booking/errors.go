package booking

import "errors"

var (
	ErrBookingNotFound   = errors.New("booking not found")
	ErrWrongStage        = errors.New("operation not allowed at this stage")
	ErrMovieNotFound     = errors.New("movie not found or not showing")
	ErrNoFutureShowtimes = errors.New("movie has no upcoming showtimes")
	ErrShowtimeNotFound  = errors.New("showtime not found for the chosen movie")
	ErrShowtimeStarted   = errors.New("showtime already started")
	ErrNoSeatsSelected   = errors.New("no seats selected")
	ErrUnknownSeat       = errors.New("seat does not belong to the room")
	ErrSeatUnavailable   = errors.New("seat is not available")
	ErrUnknownFoodItem   = errors.New("unknown food item")
	ErrBadQuantity       = errors.New("food quantity must be positive")
	ErrNotReady          = errors.New("booking is not ready for checkout")
)
