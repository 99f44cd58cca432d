package store

import "time"

// Account is the shared shape of the three risk-tier tables. It is embedded
// by the per-tier gorm model types below so schema and conversion logic is
// written once while each tier keeps its own physical table.
type Account struct {
	ID                            uint `gorm:"primaryKey;autoIncrement"`
	UserAddress                   string `gorm:"size:42;not null;uniqueIndex"`
	LastUpdatedBlockNumber        uint64 `gorm:"not null"`
	HealthFactor                  float64
	TotalCollateralValueInUSD     float64
	TotalDebtValueInUSD           float64
	LeadingCollateralReserve      string `gorm:"size:42"`
	LeadingDebtReserve            string `gorm:"size:42"`
	LeadingCollateralReserveValue float64
	LeadingDebtReserveValue       float64
	Timestamp                     time.Time
}

// LiquidatableAccount is the liquidatable_accounts table row.
type LiquidatableAccount struct{ Account }

// TableName pins the gorm table name.
func (LiquidatableAccount) TableName() string { return "liquidatable_accounts" }

// AtRiskAccount is the at_risk_accounts table row.
type AtRiskAccount struct{ Account }

// TableName pins the gorm table name.
func (AtRiskAccount) TableName() string { return "at_risk_accounts" }

// HealthyAccount is the healthy_accounts table row.
type HealthyAccount struct{ Account }

// TableName pins the gorm table name.
func (HealthyAccount) TableName() string { return "healthy_accounts" }

// UserDebtCollateral is a per-(user, reserve, side) balance row.
type UserDebtCollateral struct {
	ID             uint   `gorm:"primaryKey;autoIncrement"`
	UserAddress    string `gorm:"size:42;not null;uniqueIndex:idx_user_reserve_side,priority:1"`
	ReserveAddress string `gorm:"size:42;not null;uniqueIndex:idx_user_reserve_side,priority:2"`
	Amount         float64
	Price          float64
	AmountInUSD    float64
	IsCollateral   bool `gorm:"uniqueIndex:idx_user_reserve_side,priority:3"`
	Timestamp      time.Time
}

// TableName pins the gorm table name.
func (UserDebtCollateral) TableName() string { return "user_debt_collateral" }

// LastIndexBlock is the single-row ingestion cursor.
type LastIndexBlock struct {
	ID          uint `gorm:"primaryKey;autoIncrement"`
	BlockNumber uint64
	Timestamp   time.Time
}

// TableName pins the gorm table name.
func (LastIndexBlock) TableName() string { return "last_index_block" }
