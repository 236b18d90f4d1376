package httpapi

import (
	"errors"
	"net/http"
	"time"

	"collections-portal/internal/accounts"
	"collections-portal/internal/callhistory"
	"collections-portal/internal/session"
	"collections-portal/internal/telephony"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Accounts *accounts.Service
	History  *callhistory.Log
	Session  *session.Controller
	Tokens   *telephony.TokenIssuer

	StartedAt time.Time
}

// --- Gateway ---

// Token issues a short-lived capability token scoped to the shared agent
// identity.
func (h Handlers) Token(c *gin.Context) {
	if h.Tokens == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuer not configured"})
		return
	}
	token, err := h.Tokens.Issue()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "identity": telephony.Identity})
}

// Health always succeeds while the process is alive, independent of the
// calling subsystem state.
func (h Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(h.StartedAt).Seconds(),
	})
}

// --- Accounts ---

type addAccountRequest struct {
	BorrowerName       string  `json:"borrowerName" binding:"required"`
	AccountNumber      string  `json:"accountNumber" binding:"required"`
	PhoneNumber        string  `json:"phoneNumber" binding:"required"`
	AlternatePhone     string  `json:"alternatePhone"`
	LoanAmount         float64 `json:"loanAmount"`
	OutstandingBalance float64 `json:"outstandingBalance"`
	DueDate            string  `json:"dueDate"`
	Status             string  `json:"status"`
	Notes              string  `json:"notes"`
}

func (h Handlers) AddAccount(c *gin.Context) {
	var req addAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json: " + err.Error()})
		return
	}
	rec, err := h.Accounts.Add(c.Request.Context(), accounts.Account{
		BorrowerName:       req.BorrowerName,
		AccountNumber:      req.AccountNumber,
		PhoneNumber:        req.PhoneNumber,
		AlternatePhone:     req.AlternatePhone,
		LoanAmount:         req.LoanAmount,
		OutstandingBalance: req.OutstandingBalance,
		DueDate:            req.DueDate,
		Status:             accounts.Status(req.Status),
		Notes:              req.Notes,
	})
	if err != nil {
		if errors.Is(err, accounts.ErrValidation) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "account save failed"})
		return
	}
	c.JSON(http.StatusCreated, rec)
}

// ListAccounts returns the collection, filtered by the optional search term.
func (h Handlers) ListAccounts(c *gin.Context) {
	recs, err := h.Accounts.Search(c.Request.Context(), c.Query("search"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "account load failed"})
		return
	}
	if recs == nil {
		recs = []accounts.Account{}
	}
	c.JSON(http.StatusOK, recs)
}

func (h Handlers) GetAccount(c *gin.Context) {
	rec, err := h.Accounts.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "account not found"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "account load failed"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h Handlers) AccountStats(c *gin.Context) {
	st, err := h.Accounts.Stats(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "stats failed"})
		return
	}
	c.JSON(http.StatusOK, st)
}

// --- Call history ---

func (h Handlers) ListHistory(c *gin.Context) {
	entries, err := h.History.List(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "history load failed"})
		return
	}
	if entries == nil {
		entries = []callhistory.Entry{}
	}
	c.JSON(http.StatusOK, entries)
}

// ClearHistory empties the ring. The confirmation dialog lives in the UI;
// reaching this route is the confirmation.
func (h Handlers) ClearHistory(c *gin.Context) {
	if err := h.History.Clear(c.Request.Context()); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "history clear failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

// --- Session ---

type dialRequest struct {
	To string `json:"to"`
}

func (h Handlers) Dial(c *gin.Context) {
	var req dialRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
	}
	if err := h.Session.Dial(c.Request.Context(), req.To); err != nil {
		c.AbortWithStatusJSON(sessionErrStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.Session.Snapshot())
}

func (h Handlers) EndCall(c *gin.Context) {
	if err := h.Session.End(c.Request.Context()); err != nil {
		// The session is torn down regardless; report the transport failure.
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "session": h.Session.Snapshot()})
		return
	}
	c.JSON(http.StatusOK, h.Session.Snapshot())
}

func (h Handlers) ToggleMute(c *gin.Context) {
	muted, err := h.Session.ToggleMute()
	if err != nil {
		c.AbortWithStatusJSON(sessionErrStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"muted": muted})
}

func (h Handlers) ToggleHold(c *gin.Context) {
	onHold, err := h.Session.ToggleHold()
	if err != nil {
		c.AbortWithStatusJSON(sessionErrStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"onHold": onHold})
}

type digitRequest struct {
	Digit string `json:"digit" binding:"required"`
}

func (h Handlers) SendDigit(c *gin.Context) {
	var req digitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "digit required"})
		return
	}
	if err := h.Session.SendDigit(req.Digit); err != nil {
		c.AbortWithStatusJSON(sessionErrStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.Session.Snapshot())
}

func (h Handlers) SessionStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.Session.Snapshot())
}

// sessionErrStatus maps session errors to conventional HTTP statuses:
// precondition violations are client errors, transport failures are 502.
func sessionErrStatus(err error) int {
	switch {
	case errors.Is(err, session.ErrNoNumber), errors.Is(err, session.ErrBadDigit):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrCallActive), errors.Is(err, session.ErrLineBusy):
		return http.StatusConflict
	case errors.Is(err, session.ErrNotReady):
		return http.StatusServiceUnavailable
	case errors.Is(err, session.ErrNoActiveCall):
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}
