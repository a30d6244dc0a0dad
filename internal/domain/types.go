package domain

import (
	"time"

	"github.com/google/uuid"
)

type SeatType string

const (
	SeatNormal SeatType = "NORMAL"
	SeatVIP    SeatType = "VIP"
)

type SeatStatus string

const (
	SeatAvailable SeatStatus = "AVAILABLE"
	SeatBooked    SeatStatus = "BOOKED"
	SeatReserved  SeatStatus = "RESERVED"
)

type TicketStatus string

const (
	TicketPending   TicketStatus = "PENDING"
	TicketBooked    TicketStatus = "BOOKED"
	TicketCancelled TicketStatus = "CANCELLED"
	TicketUsed      TicketStatus = "USED"
)

type MovieStatus string

const (
	MovieNowShowing MovieStatus = "NOW_SHOWING"
	MovieComingSoon MovieStatus = "COMING_SOON"
)

// VIPSurcharge is the fixed per-seat markup over the showtime price,
// in minor currency units.
const VIPSurcharge int64 = 20000

type Genre struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Movie struct {
	ID          int64       `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Duration    int         `json:"duration"`
	Rating      float64     `json:"rating"`
	Status      MovieStatus `json:"status"`
	PosterURL   string      `json:"posterUrl,omitempty"`
	Genres      []Genre     `json:"genres,omitempty"`
}

type Cinema struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
}

type Room struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Capacity int    `json:"capacity,omitempty"`
	Cinema   Cinema `json:"cinema"`
}

type Showtime struct {
	ID        int64     `json:"id"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime,omitzero"`
	Format    string    `json:"format,omitempty"`
	Price     int64     `json:"price"`
	Movie     Movie     `json:"movie"`
	Room      Room      `json:"room"`
}

type Seat struct {
	ID     int64      `json:"id"`
	Row    string     `json:"rowSeat"`
	Number int        `json:"number"`
	Type   SeatType   `json:"type"`
	Status SeatStatus `json:"status"`
}

// SeatPrice is the price of this seat at the given showtime base price.
func (s Seat) SeatPrice(base int64) int64 {
	if s.Type == SeatVIP {
		return base + VIPSurcharge
	}
	return base
}

type FoodCategory string

const (
	FoodCombo FoodCategory = "combo"
	FoodSnack FoodCategory = "snack"
	FoodDrink FoodCategory = "drink"
)

type FoodItem struct {
	ID       int64        `json:"id"`
	Name     string       `json:"name"`
	Price    int64        `json:"price"`
	Category FoodCategory `json:"category"`
}

type Ticket struct {
	ID         int64        `json:"id"`
	ShowtimeID int64        `json:"showtimeId,omitempty"`
	SeatID     int64        `json:"seatId,omitempty"`
	UserID     int64        `json:"userId,omitempty"`
	Price      int64        `json:"price"`
	Status     TicketStatus `json:"status"`
	TicketCode string       `json:"ticketCode,omitempty"`
	BookedAt   time.Time    `json:"bookedAt,omitzero"`
	Showtime   *Showtime    `json:"showtime,omitempty"`
	Seat       *Seat        `json:"seat,omitempty"`
}

// Session is the authenticated caller, decoded from the upstream-issued
// bearer token. It is passed into services explicitly; there is no
// process-global auth state.
type Session struct {
	UserID   int64
	Username string
	Email    string
	Roles    []string
	Token    string
	Expires  time.Time
}

// Cart is a finalized seat/food selection for one showtime, handed from the
// booking wizard to the payment engine. Ownership transfers on checkout: the
// wizard state it was built from is deleted.
type Cart struct {
	ShowtimeID int64         `json:"showtimeId"`
	ShowPrice  int64         `json:"showPrice"`
	Seats      []Seat        `json:"seats"`
	FoodLines  map[int64]int `json:"foodLines,omitempty"`
	FoodTotal  int64         `json:"foodTotal"`
}

// TicketTotal sums per-seat prices, VIP surcharge included.
func (c Cart) TicketTotal() int64 {
	var total int64
	for _, s := range c.Seats {
		total += s.SeatPrice(c.ShowPrice)
	}
	return total
}

// Total is the amount charged to the payment provider.
func (c Cart) Total() int64 {
	return c.TicketTotal() + c.FoodTotal
}

type Stage string

const (
	StageSelectMovie    Stage = "SELECT_MOVIE"
	StageSelectShowtime Stage = "SELECT_SHOWTIME"
	StageSelectSeats    Stage = "SELECT_SEATS"
	StageSelectFood     Stage = "SELECT_FOOD"
	StageReady          Stage = "READY"
)

// BookingState is one user's in-progress wizard, persisted between requests.
// Snapshots of the chosen showtime and its seat map are embedded so stepping
// back never refetches unless the selection itself changes.
type BookingState struct {
	ID        uuid.UUID     `json:"id"`
	UserID    int64         `json:"userId"`
	Stage     Stage         `json:"stage"`
	Movie     *Movie        `json:"movie,omitempty"`
	Showtime  *Showtime     `json:"showtime,omitempty"`
	SeatMap   []Seat        `json:"seatMap,omitempty"`
	SeatIDs   []int64       `json:"seatIds,omitempty"`
	FoodLines map[int64]int `json:"foodLines,omitempty"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// SelectedSeats returns the chosen seat objects in seat-map order, not in
// the order the user picked them.
func (b *BookingState) SelectedSeats() []Seat {
	if len(b.SeatIDs) == 0 {
		return nil
	}
	chosen := make(map[int64]struct{}, len(b.SeatIDs))
	for _, id := range b.SeatIDs {
		chosen[id] = struct{}{}
	}
	var out []Seat
	for _, s := range b.SeatMap {
		if _, ok := chosen[s.ID]; ok {
			out = append(out, s)
		}
	}
	return out
}

type PaymentStatus string

const (
	PaymentCreated PaymentStatus = "CREATED"
	PaymentPending PaymentStatus = "PENDING"
	PaymentPaid    PaymentStatus = "PAID"
	PaymentExpired PaymentStatus = "EXPIRED"
	PaymentFailed  PaymentStatus = "FAILED"
)

// Terminal reports whether no further transition is defined from s.
func (s PaymentStatus) Terminal() bool {
	switch s {
	case PaymentPaid, PaymentExpired, PaymentFailed:
		return true
	}
	return false
}

// rank orders statuses along the session lifecycle so transitions can be
// checked for monotonicity.
func (s PaymentStatus) rank() int {
	switch s {
	case PaymentCreated:
		return 0
	case PaymentPending:
		return 1
	case PaymentPaid, PaymentExpired, PaymentFailed:
		return 2
	}
	return -1
}

// CanAdvance reports whether moving from s to next is a legal forward
// transition. Terminal states are absorbing.
func (s PaymentStatus) CanAdvance(next PaymentStatus) bool {
	if s.Terminal() {
		return false
	}
	return next.rank() > s.rank()
}

// PaymentSession is one provider-tracked checkout attempt. Every field except
// Status is immutable after creation; only the reconciliation loop advances
// Status, and only forward.
type PaymentSession struct {
	OrderCode   int64         `json:"orderCode"`
	UserID      int64         `json:"userId"`
	Amount      int64         `json:"amount"`
	Description string        `json:"description"`
	CheckoutURL string        `json:"checkoutUrl,omitempty"`
	QRCode      string        `json:"qrCode,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
	ExpiresAt   time.Time     `json:"expiresAt"`
	Status      PaymentStatus `json:"status"`
	Reason      string        `json:"reason,omitempty"`
}

// Clone returns a copy safe to hand outside the goroutine that owns p.
func (p *PaymentSession) Clone() *PaymentSession {
	cp := *p
	return &cp
}
