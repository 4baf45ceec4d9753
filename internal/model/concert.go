package model

// Concert is a reservable event with a fixed seat capacity.  The set of
// users holding a seat is stored; availability is always derived from it.
//
// Fields:
//  ID                – opaque unique identifier (uuid).
//  Name              – display name.
//  Description       – free-form description.
//  TotalSeats        – capacity, immutable after creation.
//  ReservedByUserIDs – users holding one seat each, no duplicates.
//  CreatedAt         – creation timestamp.
type Concert struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Description       string    `json:"description"`
	TotalSeats        int       `json:"totalSeats"`
	ReservedByUserIDs []string  `json:"reservedByUserIds"`
	CreatedAt         Timestamp `json:"createdAt"`
}

// AvailableSeats returns the number of seats not yet reserved.
func (c Concert) AvailableSeats() int {
	return c.TotalSeats - len(c.ReservedByUserIDs)
}

// ConcertView is a Concert together with the fields derived at query time.
// It is the shape returned by GET /concerts.
type ConcertView struct {
	Concert
	AvailableSeats int  `json:"availableSeats"`
	SoldOut        bool `json:"soldOut"`
}

// NewConcertView computes the derived fields for c.
func NewConcertView(c Concert) ConcertView {
	available := c.AvailableSeats()
	return ConcertView{
		Concert:        c,
		AvailableSeats: available,
		SoldOut:        available == 0,
	}
}

// DashboardMetrics aggregates seat usage over active concerts and the
// number of cancellations ever recorded.
type DashboardMetrics struct {
	TotalSeats    int `json:"totalSeats"`
	ReservedSeats int `json:"reservedSeats"`
	CanceledCount int `json:"canceledCount"`
}
