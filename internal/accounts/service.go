package accounts

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrValidation = errors.New("accounts: invalid record")
	ErrNotFound   = errors.New("accounts: not found")
)

// Service owns the account collection. Every mutating operation persists the
// full collection synchronously before returning. The call-session layer only
// reads the collection and requests single-field mutations through
// MarkContacted; it never touches storage directly.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

// Add validates the record, assigns an ID when absent, prepends it to the
// collection, and persists.
func (s *Service) Add(ctx context.Context, rec Account) (Account, error) {
	if err := validate(rec); err != nil {
		return Account{}, err
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	all, err := s.repo.Load(ctx)
	if err != nil {
		return Account{}, err
	}
	for _, a := range all {
		if a.ID == rec.ID {
			return Account{}, fmt.Errorf("%w: duplicate id %q", ErrValidation, rec.ID)
		}
	}

	all = append([]Account{rec}, all...)
	if err := s.repo.Save(ctx, all); err != nil {
		return Account{}, err
	}
	return rec, nil
}

// List returns the collection most-recently-added first.
func (s *Service) List(ctx context.Context) ([]Account, error) {
	return s.repo.Load(ctx)
}

func (s *Service) Get(ctx context.Context, id string) (Account, error) {
	all, err := s.repo.Load(ctx)
	if err != nil {
		return Account{}, err
	}
	for _, a := range all {
		if a.ID == id {
			return a, nil
		}
	}
	return Account{}, ErrNotFound
}

// Search filters by case-insensitive substring over borrower name, account
// number, and phone number. An empty term returns the whole collection.
// Order among matches is preserved.
func (s *Service) Search(ctx context.Context, term string) ([]Account, error) {
	all, err := s.repo.Load(ctx)
	if err != nil {
		return nil, err
	}
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return all, nil
	}
	out := make([]Account, 0, len(all))
	for _, a := range all {
		if strings.Contains(strings.ToLower(a.BorrowerName), term) ||
			strings.Contains(strings.ToLower(a.AccountNumber), term) ||
			strings.Contains(strings.ToLower(a.PhoneNumber), term) {
			out = append(out, a)
		}
	}
	return out, nil
}

// FindByPhone resolves a dialed number to an account via exact match on the
// primary or alternate phone. The bool reports whether a match was found.
func (s *Service) FindByPhone(ctx context.Context, number string) (Account, bool, error) {
	all, err := s.repo.Load(ctx)
	if err != nil {
		return Account{}, false, err
	}
	for _, a := range all {
		if a.MatchesPhone(number) {
			return a, true, nil
		}
	}
	return Account{}, false, nil
}

// MarkContacted sets LastContacted on the first account whose primary or
// alternate phone equals number. A miss is a no-op, not an error.
func (s *Service) MarkContacted(ctx context.Context, number, date string) error {
	all, err := s.repo.Load(ctx)
	if err != nil {
		return err
	}
	for i := range all {
		if all[i].MatchesPhone(number) {
			all[i].LastContacted = date
			return s.repo.Save(ctx, all)
		}
	}
	return nil
}

// Stats counts the collection, its delinquent subset, and the accounts
// contacted today.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	all, err := s.repo.Load(ctx)
	if err != nil {
		return Stats{}, err
	}
	today := s.clock().Format("2006-01-02")
	st := Stats{Total: len(all)}
	for _, a := range all {
		if a.Status.Delinquent() {
			st.Overdue++
		}
		if a.LastContacted == today {
			st.ContactedToday++
		}
	}
	return st, nil
}

func validate(rec Account) error {
	var problems []string
	if strings.TrimSpace(rec.BorrowerName) == "" {
		problems = append(problems, "borrowerName is required")
	}
	if strings.TrimSpace(rec.AccountNumber) == "" {
		problems = append(problems, "accountNumber is required")
	}
	if strings.TrimSpace(rec.PhoneNumber) == "" {
		problems = append(problems, "phoneNumber is required")
	}
	if math.IsNaN(rec.LoanAmount) || rec.LoanAmount < 0 {
		problems = append(problems, "loanAmount must be a non-negative amount")
	}
	if math.IsNaN(rec.OutstandingBalance) || rec.OutstandingBalance < 0 {
		problems = append(problems, "outstandingBalance must be a non-negative amount")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrValidation, strings.Join(problems, "; "))
	}
	return nil
}
