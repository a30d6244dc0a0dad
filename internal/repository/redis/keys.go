package redis

import "fmt"

const ns = "cinebook:v1"

func KeyBookingState(id string) string {
	return fmt.Sprintf("%s:booking:%s", ns, id)
}

func KeyUserTickets(userID int64) string {
	return fmt.Sprintf("%s:tickets:%d", ns, userID)
}

func KeyMovieCatalog() string {
	return ns + ":catalog:movies"
}

func KeyShowtimeCatalog() string {
	return ns + ":catalog:showtimes"
}

func KeyRoomSeatMap(roomID int64) string {
	return fmt.Sprintf("%s:catalog:room:%d:seats", ns, roomID)
}

func KeyRateLimit(scope, id string) string {
	return fmt.Sprintf("%s:rl:%s:%s", ns, scope, id)
}

func ChannelPayments() string {
	return ns + ":payments:settled"
}
