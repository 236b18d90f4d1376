package accounts

// Account is a loan record with contact and status information.
//
// Invariants:
// - ID is unique across the collection.
// - LastContacted is set only by a successful call-accept transition.
// - Records are never deleted; a settled loan keeps its history.
//
// JSON field names match the persisted portal schema; the stored value is a
// plain serialized array with no versioning.
type Account struct {
	ID             string  `json:"id"`
	BorrowerName   string  `json:"borrowerName"`
	AccountNumber  string  `json:"accountNumber"`
	PhoneNumber    string  `json:"phoneNumber"`
	AlternatePhone string  `json:"alternatePhone,omitempty"`
	LoanAmount     float64 `json:"loanAmount"`

	OutstandingBalance float64 `json:"outstandingBalance"`

	// DueDate and LastContacted are calendar dates (YYYY-MM-DD); empty means absent.
	DueDate       string `json:"dueDate,omitempty"`
	Status        Status `json:"status"`
	Notes         string `json:"notes,omitempty"`
	LastContacted string `json:"lastContacted,omitempty"`
}

type Status string

const (
	StatusCurrent Status = "current"
	StatusOverdue Status = "overdue"
	StatusDefault Status = "default"
	StatusSettled Status = "settled"
)

// Known reports whether s is one of the enumerated statuses. Unrecognized
// values are displayed in a catch-all bucket, never rejected.
func (s Status) Known() bool {
	switch s {
	case StatusCurrent, StatusOverdue, StatusDefault, StatusSettled:
		return true
	default:
		return false
	}
}

// Delinquent reports whether the account counts toward the overdue stat.
func (s Status) Delinquent() bool {
	return s == StatusOverdue || s == StatusDefault
}

// MatchesPhone is the exact two-field equality used to resolve a dialed
// number to an account. No normalization: the stored string must equal the
// dialed string.
func (a Account) MatchesPhone(number string) bool {
	if number == "" {
		return false
	}
	return a.PhoneNumber == number || a.AlternatePhone == number
}

// Stats summarizes the collection for the portal dashboard.
type Stats struct {
	Total          int `json:"total"`
	Overdue        int `json:"overdue"`
	ContactedToday int `json:"contactedToday"`
}
