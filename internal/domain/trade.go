package domain

import "time"

// Trade represents a single order sent to the venue and its outcome.
// A record is created with status pending before submission and finalized
// once the venue responds.
type Trade struct {
	ID           string      // Unique identifier (uuid)
	Side         Side        // long or short
	Size         float64     // Requested size
	Price        float64     // Fill price (avg) or requested price while pending
	Fees         float64     // Fees charged by the venue
	Status       OrderStatus // pending, filled, partial, cancelled, failed
	VenueOrderID string      // Venue-assigned order id, empty until submitted
	Timestamp    time.Time   // Time the trade record was created
	Strategy     string      // Strategy that originated the trade
}
