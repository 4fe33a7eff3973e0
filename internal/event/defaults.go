package event

// Defaults returns the built-in seed events shown when nothing valid is stored.
// A fresh copy is returned on every call.
func Defaults() []Event {
	return []Event{
		{
			ID:          1,
			Title:       "Christmas Carol Concert",
			Date:        "2024-12-15",
			Time:        "19:00",
			Venue:       VenueSmallHall,
			Description: "Join us for a festive evening of traditional Christmas carols and seasonal music.",
			Price:       ptr(10.0),
			Capacity:    ptr(75),
			Status:      StatusUpcoming,
			ShowBooking: ptr(true),
		},
		{
			ID:          2,
			Title:       "New Year Celebration",
			Date:        "2024-12-31",
			Time:        "21:00",
			Venue:       VenueBothHalls,
			Description: "Ring in the New Year with music, dancing, and celebration.",
			Price:       ptr(25.0),
			Capacity:    ptr(200),
			Status:      StatusUpcoming,
			ShowBooking: ptr(true),
		},
	}
}

func ptr[T any](v T) *T {
	return &v
}
