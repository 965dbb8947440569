package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type GormStorage struct {
	db *gorm.DB
}

func NewGormStorage(driver, dsn string) (*GormStorage, error) {
	var gormDialector gorm.Dialector
	switch driver {
	case "postgres":
		gormDialector = postgres.Open(dsn)
	case "sqlite":
		gormDialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := gorm.Open(gormDialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	return &GormStorage{db: db}, nil
}

func (s *GormStorage) Migrate(ctx context.Context) error {
	return s.db.AutoMigrate(
		&TariffRecord{},
		&Customer{},
		&BillRecord{},
		&Setting{},
		&User{},
		&Token{},
		&CasbinRule{},
		&ScheduledJob{},
	)
}

// Tariffs

func (s *GormStorage) GetTariff(ctx context.Context, customerType string, year int) (*TariffRecord, error) {
	var rec TariffRecord
	result := s.db.WithContext(ctx).First(&rec, "customer_type = ? AND year = ?", customerType, year)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &rec, nil
}

func (s *GormStorage) ListTariffs(ctx context.Context) ([]TariffRecord, error) {
	var recs []TariffRecord
	result := s.db.WithContext(ctx).Order("year desc, customer_type").Find(&recs)
	return recs, result.Error
}

func (s *GormStorage) UpsertTariff(ctx context.Context, t TariffRecord) error {
	t.UpdatedAt = time.Now()
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "customer_type"}, {Name: "year"}},
		UpdateAll: true,
	}).Create(&t).Error
}

// Customers

func (s *GormStorage) ListCustomers(ctx context.Context) ([]Customer, error) {
	var customers []Customer
	result := s.db.WithContext(ctx).Order("account_no").Find(&customers)
	return customers, result.Error
}

func (s *GormStorage) GetCustomer(ctx context.Context, id string) (*Customer, error) {
	var c Customer
	result := s.db.WithContext(ctx).First(&c, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &c, nil
}

func (s *GormStorage) UpsertCustomer(ctx context.Context, c Customer) error {
	c.UpdatedAt = time.Now()
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&c).Error
}

// Bills

func (s *GormStorage) SaveBill(ctx context.Context, b BillRecord) error {
	return s.db.WithContext(ctx).Create(&b).Error
}

func (s *GormStorage) GetBill(ctx context.Context, id string) (*BillRecord, error) {
	var b BillRecord
	result := s.db.WithContext(ctx).First(&b, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &b, nil
}

func (s *GormStorage) GetBillForCustomerMonth(ctx context.Context, customerID, billingMonth string) (*BillRecord, error) {
	var b BillRecord
	result := s.db.WithContext(ctx).
		Order("created_at desc").
		First(&b, "customer_id = ? AND billing_month = ?", customerID, billingMonth)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &b, nil
}

func (s *GormStorage) ListBillsForMonth(ctx context.Context, billingMonth string) ([]BillRecord, error) {
	var bills []BillRecord
	result := s.db.WithContext(ctx).Find(&bills, "billing_month = ?", billingMonth)
	return bills, result.Error
}

func (s *GormStorage) UpdateBillPaymentStatus(ctx context.Context, id, status string) error {
	return s.db.WithContext(ctx).Model(&BillRecord{}).Where("id = ?", id).Update("payment_status", status).Error
}

// Settings

func (s *GormStorage) GetSetting(ctx context.Context, key string) (string, error) {
	var setting Setting
	result := s.db.WithContext(ctx).First(&setting, "key = ?", key)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", result.Error
	}
	return setting.Value, nil
}

func (s *GormStorage) SetSetting(ctx context.Context, key, value string) error {
	setting := Setting{
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		UpdateAll: true,
	}).Create(&setting).Error
}

// Users

func (s *GormStorage) CreateUser(ctx context.Context, user User) error {
	return s.db.WithContext(ctx).Create(&user).Error
}

func (s *GormStorage) GetUser(ctx context.Context, id string) (*User, error) {
	var user User
	result := s.db.WithContext(ctx).First(&user, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &user, nil
}

func (s *GormStorage) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	result := s.db.WithContext(ctx).First(&user, "username = ?", username)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &user, nil
}

// Tokens

func (s *GormStorage) CreateToken(ctx context.Context, token Token) error {
	return s.db.WithContext(ctx).Create(&token).Error
}

func (s *GormStorage) GetTokenByHash(ctx context.Context, hash string) (*Token, error) {
	var token Token
	result := s.db.WithContext(ctx).First(&token, "token_hash = ?", hash)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &token, nil
}

func (s *GormStorage) UpdateTokenLastUsed(ctx context.Context, id string) error {
	now := time.Now()
	return s.db.WithContext(ctx).Model(&Token{}).Where("id = ?", id).Update("last_used_at", now).Error
}

// Casbin Rules

func (s *GormStorage) LoadCasbinRules(ctx context.Context) ([]CasbinRule, error) {
	var rules []CasbinRule
	result := s.db.WithContext(ctx).Find(&rules)
	return rules, result.Error
}

func (s *GormStorage) AddCasbinRule(ctx context.Context, rule CasbinRule) error {
	return s.db.WithContext(ctx).Create(&rule).Error
}

func (s *GormStorage) RemoveCasbinRule(ctx context.Context, rule CasbinRule) error {
	return s.db.WithContext(ctx).Where(&rule).Delete(&CasbinRule{}).Error
}

// Scheduled Jobs

func (s *GormStorage) UpdateScheduledJob(ctx context.Context, job ScheduledJob) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		UpdateAll: true,
	}).Create(&job).Error
}

// Close & Ping

func (s *GormStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GormStorage) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
