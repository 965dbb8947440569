package storage

import "context"

// Storage abstracts persistence for tariffs, customers, bills, and the
// auth tables. Lookups return nil (not an error) when a record is absent.
type Storage interface {
	// Tariffs
	GetTariff(ctx context.Context, customerType string, year int) (*TariffRecord, error)
	ListTariffs(ctx context.Context) ([]TariffRecord, error)
	UpsertTariff(ctx context.Context, t TariffRecord) error

	// Customers
	ListCustomers(ctx context.Context) ([]Customer, error)
	GetCustomer(ctx context.Context, id string) (*Customer, error)
	UpsertCustomer(ctx context.Context, c Customer) error

	// Bills
	SaveBill(ctx context.Context, b BillRecord) error
	GetBill(ctx context.Context, id string) (*BillRecord, error)
	GetBillForCustomerMonth(ctx context.Context, customerID, billingMonth string) (*BillRecord, error)
	ListBillsForMonth(ctx context.Context, billingMonth string) ([]BillRecord, error)
	UpdateBillPaymentStatus(ctx context.Context, id, status string) error

	// Settings
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error

	// Users
	CreateUser(ctx context.Context, u User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// Tokens
	CreateToken(ctx context.Context, t Token) error
	GetTokenByHash(ctx context.Context, hash string) (*Token, error)
	UpdateTokenLastUsed(ctx context.Context, id string) error

	// Casbin rules
	LoadCasbinRules(ctx context.Context) ([]CasbinRule, error)
	AddCasbinRule(ctx context.Context, rule CasbinRule) error
	RemoveCasbinRule(ctx context.Context, rule CasbinRule) error

	// Scheduled jobs
	UpdateScheduledJob(ctx context.Context, job ScheduledJob) error

	Ping(ctx context.Context) error

	// Close releases any resources (no-op for in-memory).
	Close() error
}
