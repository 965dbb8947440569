package storage

import "time"

// TariffRecord is one priced rule set per (customer type, effective year).
// TierTable and RentalPrices hold the raw JSON text exactly as authored;
// normalizing them is the billing engine's job, so data-entry mistakes in
// one tariff cannot poison reads of another.
type TariffRecord struct {
	ID                 uint      `json:"-" gorm:"primaryKey;column:id"`
	CustomerType       string    `json:"customer_type" gorm:"column:customer_type;uniqueIndex:idx_tariffs_type_year"`
	Year               int       `json:"year" gorm:"column:year;uniqueIndex:idx_tariffs_type_year"`
	TierTable          string    `json:"tier_table" gorm:"column:tier_table"`
	RentalPrices       string    `json:"rental_prices" gorm:"column:rental_prices"`
	SewerSurchargeRate float64   `json:"sewer_surcharge_rate" gorm:"column:sewer_surcharge_rate"`
	UpdatedAt          time.Time `json:"updated_at" gorm:"column:updated_at"`
}

// Customer is a metered water connection.
type Customer struct {
	ID                 string    `json:"id" gorm:"primaryKey;column:id"`
	AccountNo          string    `json:"account_no" gorm:"unique;column:account_no"`
	Name               string    `json:"name" gorm:"column:name"`
	Email              string    `json:"email,omitempty" gorm:"column:email"`
	CustomerType       string    `json:"customer_type" gorm:"column:customer_type"`
	SewerageConnection string    `json:"sewerage_connection" gorm:"column:sewerage_connection"`
	MeterSize          float64   `json:"meter_size" gorm:"column:meter_size"`
	OutstandingBalance float64   `json:"outstanding_balance" gorm:"column:outstanding_balance"`
	CreatedAt          time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt          time.Time `json:"updated_at" gorm:"column:updated_at"`
}

// BillRecord is a persisted computed bill. The engine never mutates a bill
// after assembly; payment-status transitions happen here, outside the core.
type BillRecord struct {
	ID                string    `json:"id" gorm:"primaryKey;column:id"`
	CustomerID        string    `json:"customer_id" gorm:"column:customer_id;index:idx_bills_customer_month"`
	BillingMonth      string    `json:"billing_month" gorm:"column:billing_month;index:idx_bills_customer_month"`
	UsageM3           float64   `json:"usage_m3" gorm:"column:usage_m3"`
	UsageCharge       float64   `json:"usage_charge" gorm:"column:usage_charge"`
	RentalCharge      float64   `json:"rental_charge" gorm:"column:rental_charge"`
	SewerageSurcharge float64   `json:"sewerage_surcharge" gorm:"column:sewerage_surcharge"`
	TotalAmountDue    float64   `json:"total_amount_due" gorm:"column:total_amount_due"`
	PriorBalance      float64   `json:"prior_balance" gorm:"column:prior_balance"`
	GrandTotal        float64   `json:"grand_total" gorm:"column:grand_total"`
	DueDate           time.Time `json:"due_date" gorm:"column:due_date"`
	PaymentStatus     string    `json:"payment_status" gorm:"column:payment_status"`
	CreatedAt         time.Time `json:"created_at" gorm:"column:created_at"`
}

// User represents a registered user in the system.
type User struct {
	ID           string    `json:"id" gorm:"primaryKey;column:id"`
	Username     string    `json:"username" gorm:"unique;column:username"`
	PasswordHash string    `json:"-" gorm:"column:password_hash"`
	Role         string    `json:"role" gorm:"column:role"`
	CreatedAt    time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"column:updated_at"`
}

// Token represents an API access token.
type Token struct {
	ID         string     `json:"id" gorm:"primaryKey;column:id"`
	UserID     string     `json:"user_id" gorm:"column:user_id"`
	Name       string     `json:"name" gorm:"column:name"`
	TokenHash  string     `json:"-" gorm:"column:token_hash"`
	Role       string     `json:"role" gorm:"column:role"`
	CreatedAt  time.Time  `json:"created_at" gorm:"column:created_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty" gorm:"column:expires_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty" gorm:"column:last_used_at"`
}

// CasbinRule represents a policy rule for RBAC.
type CasbinRule struct {
	ID    uint   `gorm:"primaryKey"`
	PType string `json:"ptype" gorm:"column:ptype"`
	V0    string `json:"v0" gorm:"column:v0"`
	V1    string `json:"v1" gorm:"column:v1"`
	V2    string `json:"v2" gorm:"column:v2"`
	V3    string `json:"v3" gorm:"column:v3"`
	V4    string `json:"v4" gorm:"column:v4"`
	V5    string `json:"v5" gorm:"column:v5"`
}

// Setting is a single key/value configuration row.
type Setting struct {
	Key       string    `gorm:"primaryKey;column:key"`
	Value     string    `gorm:"column:value"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// ScheduledJob tracks the last outcome of a background job.
type ScheduledJob struct {
	Name           string    `gorm:"primaryKey;column:name"`
	LastRunAt      time.Time `gorm:"column:last_run_at"`
	LastDurationMs int64     `gorm:"column:last_duration_ms"`
	LastSuccess    int       `gorm:"column:last_success"`
	LastError      string    `gorm:"column:last_error"`
}
