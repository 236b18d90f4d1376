package accounts

import "context"

// Seed populates an empty store with the portal's sample accounts so a fresh
// deployment has something to dial against. A non-empty store is left alone.
func (s *Service) Seed(ctx context.Context) error {
	all, err := s.repo.Load(ctx)
	if err != nil {
		return err
	}
	if len(all) > 0 {
		return nil
	}
	return s.repo.Save(ctx, sampleAccounts())
}

func sampleAccounts() []Account {
	return []Account{
		{
			ID:                 "1",
			BorrowerName:       "Mao Sophal",
			AccountNumber:      "LA001234",
			PhoneNumber:        "+1234567890",
			AlternatePhone:     "+1987654321",
			LoanAmount:         50000,
			OutstandingBalance: 35000,
			DueDate:            "2024-01-15",
			Status:             StatusOverdue,
			Notes:              "Missed last 2 payments. Promised to pay by end of month.",
		},
		{
			ID:                 "2",
			BorrowerName:       "Jing Jok",
			AccountNumber:      "LA001235",
			PhoneNumber:        "+1555123456",
			LoanAmount:         25000,
			OutstandingBalance: 15000,
			DueDate:            "2024-02-01",
			Status:             StatusCurrent,
			Notes:              "Good payment history. Prefers morning calls.",
		},
		{
			ID:                 "3",
			BorrowerName:       "Chea Sokha",
			AccountNumber:      "LA001236",
			PhoneNumber:        "+1777888999",
			AlternatePhone:     "+1666555444",
			LoanAmount:         75000,
			OutstandingBalance: 60000,
			DueDate:            "2024-01-10",
			Status:             StatusDefault,
			Notes:              "Account in default. Legal action pending.",
			LastContacted:      "2024-01-05",
		},
	}
}
