// Package store persists borrower risk records across the three tier
// tables plus the per-reserve position and ingestion-cursor tables, via
// gorm.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/etherlinkcom/superlend-liquidation-bot-indexer/internal/tier"
)

// UserRecord is the tier-table row shape shared by the domain layer,
// independent of gorm.
type UserRecord struct {
	ID                            uint
	UserAddress                   string
	LastUpdatedBlockNumber        uint64
	HealthFactor                  float64
	TotalCollateralValueInUSD     float64
	TotalDebtValueInUSD           float64
	LeadingCollateralReserve      string
	LeadingDebtReserve            string
	LeadingCollateralReserveValue float64
	LeadingDebtReserveValue       float64
	Timestamp                     time.Time
}

// ReservePosition is a single collateral or debt balance for a reserve.
type ReservePosition struct {
	ReserveAddress string
	AmountInToken  float64
	Price          float64
	AmountInUSD    float64
	IsCollateral   bool
}

// Store wraps the gorm connection and exposes tier-aware CRUD operations.
type Store struct {
	db *gorm.DB
}

// Open connects to dsn and configures the connection pool the way a
// long-lived background service should: a small bounded pool, since the
// indexer issues sequential queries from two polling loops rather than
// serving concurrent request traffic.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(6)
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetConnMaxLifetime(2 * time.Minute)

	return &Store{db: db}, nil
}

// AutoMigrate creates or updates every table the indexer owns.
func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(
		&LiquidatableAccount{},
		&AtRiskAccount{},
		&HealthyAccount{},
		&UserDebtCollateral{},
		&LastIndexBlock{},
	)
}

// Reset drops and recreates every table the indexer owns, backing the
// "reset" CLI verb.
func (s *Store) Reset(ctx context.Context) error {
	models := []interface{}{
		&LiquidatableAccount{},
		&AtRiskAccount{},
		&HealthyAccount{},
		&UserDebtCollateral{},
		&LastIndexBlock{},
	}
	for _, m := range models {
		if err := s.db.WithContext(ctx).Migrator().DropTable(m); err != nil {
			return fmt.Errorf("drop table: %w", err)
		}
	}
	return s.AutoMigrate()
}

func toRecord(a Account) UserRecord {
	return UserRecord{
		ID:                            a.ID,
		UserAddress:                   a.UserAddress,
		LastUpdatedBlockNumber:        a.LastUpdatedBlockNumber,
		HealthFactor:                  a.HealthFactor,
		TotalCollateralValueInUSD:     a.TotalCollateralValueInUSD,
		TotalDebtValueInUSD:           a.TotalDebtValueInUSD,
		LeadingCollateralReserve:      a.LeadingCollateralReserve,
		LeadingDebtReserve:            a.LeadingDebtReserve,
		LeadingCollateralReserveValue: a.LeadingCollateralReserveValue,
		LeadingDebtReserveValue:       a.LeadingDebtReserveValue,
		Timestamp:                     a.Timestamp,
	}
}

func fromRecord(r UserRecord) Account {
	return Account{
		ID:                            r.ID,
		UserAddress:                   r.UserAddress,
		LastUpdatedBlockNumber:        r.LastUpdatedBlockNumber,
		HealthFactor:                  r.HealthFactor,
		TotalCollateralValueInUSD:     r.TotalCollateralValueInUSD,
		TotalDebtValueInUSD:           r.TotalDebtValueInUSD,
		LeadingCollateralReserve:      r.LeadingCollateralReserve,
		LeadingDebtReserve:            r.LeadingDebtReserve,
		LeadingCollateralReserveValue: r.LeadingCollateralReserveValue,
		LeadingDebtReserveValue:       r.LeadingDebtReserveValue,
		Timestamp:                     time.Now().UTC(),
	}
}

// GetUser searches the three tier tables, in Liquidatable -> AtRisk ->
// Healthy order, and reports which tier (if any) holds the address.
func (s *Store) GetUser(ctx context.Context, userAddress string) (UserRecord, tier.Tier, error) {
	var liq LiquidatableAccount
	if err := s.db.WithContext(ctx).Where("user_address = ?", userAddress).First(&liq).Error; err == nil {
		return toRecord(liq.Account), tier.Liquidatable, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return UserRecord{}, tier.NotFound, fmt.Errorf("query liquidatable_accounts: %w", err)
	}

	var atRisk AtRiskAccount
	if err := s.db.WithContext(ctx).Where("user_address = ?", userAddress).First(&atRisk).Error; err == nil {
		return toRecord(atRisk.Account), tier.AtRisk, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return UserRecord{}, tier.NotFound, fmt.Errorf("query at_risk_accounts: %w", err)
	}

	var healthy HealthyAccount
	if err := s.db.WithContext(ctx).Where("user_address = ?", userAddress).First(&healthy).Error; err == nil {
		return toRecord(healthy.Account), tier.Healthy, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return UserRecord{}, tier.NotFound, fmt.Errorf("query healthy_accounts: %w", err)
	}

	return UserRecord{}, tier.NotFound, nil
}

// AddUser inserts rec into the table for t.
func (s *Store) AddUser(ctx context.Context, rec UserRecord, t tier.Tier) error {
	row := fromRecord(rec)
	var err error
	switch t {
	case tier.Liquidatable:
		err = s.db.WithContext(ctx).Create(&LiquidatableAccount{Account: row}).Error
	case tier.AtRisk:
		err = s.db.WithContext(ctx).Create(&AtRiskAccount{Account: row}).Error
	case tier.Healthy:
		err = s.db.WithContext(ctx).Create(&HealthyAccount{Account: row}).Error
	default:
		return fmt.Errorf("add user: invalid tier %s", t)
	}
	if err != nil {
		return fmt.Errorf("insert into %s: %w", t, err)
	}
	return nil
}

// UpdateUser overwrites the row identified by id in the table for t.
func (s *Store) UpdateUser(ctx context.Context, id uint, rec UserRecord, t tier.Tier) error {
	row := fromRecord(rec)
	row.ID = id
	var err error
	switch t {
	case tier.Liquidatable:
		err = s.db.WithContext(ctx).Model(&LiquidatableAccount{}).Where("id = ?", id).Select("*").Updates(row).Error
	case tier.AtRisk:
		err = s.db.WithContext(ctx).Model(&AtRiskAccount{}).Where("id = ?", id).Select("*").Updates(row).Error
	case tier.Healthy:
		err = s.db.WithContext(ctx).Model(&HealthyAccount{}).Where("id = ?", id).Select("*").Updates(row).Error
	default:
		return fmt.Errorf("update user: invalid tier %s", t)
	}
	if err != nil {
		return fmt.Errorf("update %s row %d: %w", t, id, err)
	}
	return nil
}

// DeleteUser removes the row identified by id from the table for t.
func (s *Store) DeleteUser(ctx context.Context, id uint, t tier.Tier) error {
	var err error
	switch t {
	case tier.Liquidatable:
		err = s.db.WithContext(ctx).Delete(&LiquidatableAccount{}, id).Error
	case tier.AtRisk:
		err = s.db.WithContext(ctx).Delete(&AtRiskAccount{}, id).Error
	case tier.Healthy:
		err = s.db.WithContext(ctx).Delete(&HealthyAccount{}, id).Error
	case tier.NotFound:
		return nil
	default:
		return fmt.Errorf("delete user: invalid tier %s", t)
	}
	if err != nil {
		return fmt.Errorf("delete %s row %d: %w", t, id, err)
	}
	return nil
}

// RouteUser persists rec's new tier assignment. When newTier equals
// oldTier it is a plain update in place. Otherwise the row is inserted
// into its new table before the old row is deleted from oldTier, so a
// concurrent reader of either tier table always sees the user in at least
// one of them rather than in neither during the move.
func (s *Store) RouteUser(ctx context.Context, rec UserRecord, oldID uint, oldTier, newTier tier.Tier) error {
	if oldTier == newTier {
		if err := s.UpdateUser(ctx, oldID, rec, newTier); err != nil {
			return fmt.Errorf("route user: update in place at %s: %w", newTier, err)
		}
		return nil
	}
	if err := s.AddUser(ctx, rec, newTier); err != nil {
		return fmt.Errorf("route user: insert into %s: %w", newTier, err)
	}
	if oldTier == tier.NotFound {
		return nil
	}
	if err := s.DeleteUser(ctx, oldID, oldTier); err != nil {
		return fmt.Errorf("route user: delete from %s after insert into %s: %w", oldTier, newTier, err)
	}
	return nil
}

// ListUsers returns every user address currently stored in tier t.
func (s *Store) ListUsers(ctx context.Context, t tier.Tier) ([]string, error) {
	var addresses []string
	var err error
	switch t {
	case tier.Liquidatable:
		err = s.db.WithContext(ctx).Model(&LiquidatableAccount{}).Pluck("user_address", &addresses).Error
	case tier.AtRisk:
		err = s.db.WithContext(ctx).Model(&AtRiskAccount{}).Pluck("user_address", &addresses).Error
	case tier.Healthy:
		err = s.db.WithContext(ctx).Model(&HealthyAccount{}).Pluck("user_address", &addresses).Error
	default:
		return nil, fmt.Errorf("list users: invalid tier %s", t)
	}
	if err != nil {
		return nil, fmt.Errorf("list %s users: %w", t, err)
	}
	return addresses, nil
}

// TierSizes reports the row count of each of the three tables, for metrics.
func (s *Store) TierSizes(ctx context.Context) (map[tier.Tier]int64, error) {
	sizes := make(map[tier.Tier]int64, 3)
	var count int64
	if err := s.db.WithContext(ctx).Model(&LiquidatableAccount{}).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("count liquidatable_accounts: %w", err)
	}
	sizes[tier.Liquidatable] = count
	if err := s.db.WithContext(ctx).Model(&AtRiskAccount{}).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("count at_risk_accounts: %w", err)
	}
	sizes[tier.AtRisk] = count
	if err := s.db.WithContext(ctx).Model(&HealthyAccount{}).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("count healthy_accounts: %w", err)
	}
	sizes[tier.Healthy] = count
	return sizes, nil
}

// UpsertPositions replaces every stored reserve balance for userAddress
// with positions, inside a single transaction.
func (s *Store) UpsertPositions(ctx context.Context, userAddress string, positions []ReservePosition) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_address = ?", userAddress).Delete(&UserDebtCollateral{}).Error; err != nil {
			return fmt.Errorf("clear positions for %s: %w", userAddress, err)
		}
		if len(positions) == 0 {
			return nil
		}
		rows := make([]UserDebtCollateral, len(positions))
		now := time.Now().UTC()
		for i, p := range positions {
			rows[i] = UserDebtCollateral{
				UserAddress:    userAddress,
				ReserveAddress: p.ReserveAddress,
				Amount:         p.AmountInToken,
				Price:          p.Price,
				AmountInUSD:    p.AmountInUSD,
				IsCollateral:   p.IsCollateral,
				Timestamp:      now,
			}
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("insert positions for %s: %w", userAddress, err)
		}
		return nil
	})
}

// InitCursor inserts the single cursor row with startBlock if the table is
// empty; otherwise it is a no-op, so restarts resume from where the last
// run left off.
func (s *Store) InitCursor(ctx context.Context, startBlock uint64) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&LastIndexBlock{}).Count(&count).Error; err != nil {
		return fmt.Errorf("count last_index_block: %w", err)
	}
	if count > 0 {
		return nil
	}
	row := LastIndexBlock{BlockNumber: startBlock, Timestamp: time.Now().UTC()}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("init last_index_block: %w", err)
	}
	return nil
}

// GetCursor returns the current ingestion cursor block.
func (s *Store) GetCursor(ctx context.Context) (uint64, error) {
	var row LastIndexBlock
	if err := s.db.WithContext(ctx).First(&row).Error; err != nil {
		return 0, fmt.Errorf("get last_index_block: %w", err)
	}
	return row.BlockNumber, nil
}

// SetCursor advances the ingestion cursor to block.
func (s *Store) SetCursor(ctx context.Context, block uint64) error {
	res := s.db.WithContext(ctx).Model(&LastIndexBlock{}).Where("1 = 1").Updates(map[string]interface{}{
		"block_number": block,
		"timestamp":    time.Now().UTC(),
	})
	if res.Error != nil {
		return fmt.Errorf("set last_index_block: %w", res.Error)
	}
	return nil
}
