// Package handler defines the HTTP handlers of the concert reservation API.
// Handlers validate and normalize request input, call the reservation
// ledger and translate its classified errors into status codes.  The ledger
// never sees untrimmed names or blank user identifiers from this layer.
package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/concert-reservation/internal/repository"
)

// ConcertHandler serves the /concerts endpoints for both the admin and
// the user views of the demo.
type ConcertHandler struct {
	Ledger *repository.ReservationLedger
}

// NewConcertHandler constructs a ConcertHandler and panics if ledger is nil.
func NewConcertHandler(ledger *repository.ReservationLedger) *ConcertHandler {
	if ledger == nil {
		panic("nil ledger passed to NewConcertHandler")
	}
	return &ConcertHandler{Ledger: ledger}
}

// ListConcerts handles GET /concerts.  It returns every active concert,
// newest first, with availableSeats and soldOut computed at request time.
func (h *ConcertHandler) ListConcerts(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Ledger.List())
}

// GetConcert handles GET /concerts/:concertId.
func (h *ConcertHandler) GetConcert(c echo.Context) error {
	view, err := h.Ledger.Get(c.Param("concertId"))
	if err != nil {
		return ledgerError(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

// GetMetrics handles GET /concerts/metrics.
func (h *ConcertHandler) GetMetrics(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Ledger.DashboardMetrics())
}

// GetHistory handles GET /concerts/history.  Without a userId query
// parameter it returns the full admin history; with one it returns that
// user's entries.  A userId that is present but blank is rejected.
func (h *ConcertHandler) GetHistory(c echo.Context) error {
	values, present := c.QueryParams()["userId"]
	if !present {
		return c.JSON(http.StatusOK, h.Ledger.AdminHistory())
	}
	userID := ""
	if len(values) > 0 {
		userID = strings.TrimSpace(values[0])
	}
	if userID == "" {
		return c.JSON(http.StatusBadRequest, errorBody(http.StatusBadRequest, repository.ErrUserIDRequired.Error()))
	}
	return c.JSON(http.StatusOK, h.Ledger.UserHistory(userID))
}

// CreateConcert handles POST /concerts.  The body must contain a non-blank
// name and description and an integer totalSeats between 1 and 50000.
// Returns 201 with the created concert.
func (h *ConcertHandler) CreateConcert(c echo.Context) error {
	var req createConcertRequest
	if msgs := bindAndValidate(c, &req); len(msgs) > 0 {
		return c.JSON(http.StatusBadRequest, errorBody(http.StatusBadRequest, msgs))
	}
	concert := h.Ledger.Create(req.Name, req.Description, req.TotalSeats)
	return c.JSON(http.StatusCreated, concert)
}

// DeleteConcert handles DELETE /concerts/:concertId.  History recorded for
// the concert is kept.
func (h *ConcertHandler) DeleteConcert(c echo.Context) error {
	if err := h.Ledger.Delete(c.Param("concertId")); err != nil {
		return ledgerError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// ReserveSeat handles POST /concerts/:concertId/reserve with body
// {"userId": "..."}.  Returns 404 for an unknown concert and 409 when the
// user already holds a seat or the concert is sold out.
func (h *ConcertHandler) ReserveSeat(c echo.Context) error {
	var req reserveSeatRequest
	if msgs := bindAndValidate(c, &req); len(msgs) > 0 {
		return c.JSON(http.StatusBadRequest, errorBody(http.StatusBadRequest, msgs))
	}
	if err := h.Ledger.ReserveSeat(c.Param("concertId"), req.UserID); err != nil {
		return ledgerError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// CancelSeat handles POST /concerts/:concertId/cancel with body
// {"userId": "..."}.  Returns 404 when the concert or the user's
// reservation does not exist.
func (h *ConcertHandler) CancelSeat(c echo.Context) error {
	var req reserveSeatRequest
	if msgs := bindAndValidate(c, &req); len(msgs) > 0 {
		return c.JSON(http.StatusBadRequest, errorBody(http.StatusBadRequest, msgs))
	}
	if err := h.Ledger.CancelReservation(c.Param("concertId"), req.UserID); err != nil {
		return ledgerError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}
