package middleware

// identity.go decides which bucket a rate limited request is charged to.
// The service has no authentication, so the only identity a seat request
// carries is the userId in its JSON body.

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// maxPeekBytes bounds how much of a request body is inspected for userId.
const maxPeekBytes = 4 << 10

// RateKeyFunc returns the bucket a request is charged to.
type RateKeyFunc func(c echo.Context) string

// SeatKey charges reserve and cancel requests to the concert and the body
// userId, trimmed the way the ledger trims it.  Requests without a usable
// userId are charged to the caller's address instead.
func SeatKey(c echo.Context) string {
	concertID := c.Param("concertId")
	if user := peekUserID(c.Request()); user != "" {
		return "seat:" + concertID + ":user:" + user
	}
	return "seat:" + concertID + ":ip:" + clientIP(c)
}

// ClientKey charges a request to the caller's address and the route it hit.
func ClientKey(c echo.Context) string {
	return "client:" + clientIP(c) + ":" + c.Request().Method + " " + c.Path()
}

func clientIP(c echo.Context) string {
	if ip := c.RealIP(); ip != "" {
		return ip
	}
	return "unknown"
}

// peekUserID reads the userId field of a JSON body and restores the body
// so the handler can bind it again.
func peekUserID(r *http.Request) string {
	if r.Body == nil || r.Body == http.NoBody {
		return ""
	}
	head, err := io.ReadAll(io.LimitReader(r.Body, maxPeekBytes+1))
	r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(head), r.Body))
	if err != nil || len(head) > maxPeekBytes {
		return ""
	}

	var body struct {
		UserID string `json:"userId"`
	}
	if json.Unmarshal(head, &body) != nil {
		return ""
	}
	return strings.TrimSpace(body.UserID)
}
