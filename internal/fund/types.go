package fund

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// CNPJ is the numeric form of a Brazilian fund registration number.
// All pipeline tables are keyed by this identifier.
type CNPJ uint64

// ParseCNPJ strips formatting characters from a CNPJ string and returns
// the numeric identifier. Accepts both "12.345.678/0001-90" and bare
// digit forms.
func ParseCNPJ(s string) (CNPJ, error) {
	var digits strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 || digits.Len() > 14 {
		return 0, fmt.Errorf("invalid CNPJ %q", s)
	}

	var n uint64
	for _, r := range digits.String() {
		n = n*10 + uint64(r-'0')
	}
	return CNPJ(n), nil
}

// String formats the identifier as XX.XXX.XXX/XXXX-XX.
func (c CNPJ) String() string {
	s := fmt.Sprintf("%014d", uint64(c))
	return fmt.Sprintf("%s.%s.%s/%s-%s", s[0:2], s[2:5], s[5:8], s[8:12], s[12:14])
}

// Period is a calendar month in YYYYMM form (e.g., 202401).
type Period int

// IsValid checks that the period encodes a real calendar month.
func (p Period) IsValid() bool {
	month := int(p) % 100
	year := int(p) / 100
	return year >= 1900 && year <= 9999 && month >= 1 && month <= 12
}

// Prev returns the immediately preceding calendar month.
// 202401 -> 202312, 202403 -> 202402.
func (p Period) Prev() Period {
	year := int(p) / 100
	month := int(p) % 100
	if month == 1 {
		return Period((year-1)*100 + 12)
	}
	return Period(year*100 + month - 1)
}

// LastDay returns the last calendar day of the period's month.
func (p Period) LastDay() time.Time {
	year := int(p) / 100
	month := int(p) % 100
	firstOfNext := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	return firstOfNext.AddDate(0, 0, -1)
}

// String returns the YYYYMM form.
func (p Period) String() string {
	return fmt.Sprintf("%06d", int(p))
}

// Value is an optional float64 cell. The zero value is null.
// Non-finite inputs are treated as null so NaN/Inf never leak into
// downstream tables.
type Value struct {
	Float64 float64
	Valid   bool
}

// Some returns a valid Value, or null when v is NaN or infinite.
func Some(v float64) Value {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Value{}
	}
	return Value{Float64: v, Valid: true}
}

// Null returns the null Value.
func Null() Value {
	return Value{}
}

// Ptr returns the value as a *float64, nil when null. Used at the
// serialization boundary.
func (v Value) Ptr() *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

// DailyObservation is one day's quota value for a fund.
type DailyObservation struct {
	Date  time.Time `json:"date"`
	Quota float64   `json:"quota_value"`
}

// MonthlyObservation is one month's net asset value for a fund.
type MonthlyObservation struct {
	Period Period  `json:"period"`
	NAV    float64 `json:"nav"`
}

// Series holds the ordered per-fund time series the return engine
// consumes. Daily observations are strictly increasing by date and
// monthly observations strictly increasing by period; gaps are simply
// absent rows, never interpolated.
type Series struct {
	FundID  CNPJ                 `json:"cnpj"`
	Daily   []DailyObservation   `json:"daily,omitempty"`
	Monthly []MonthlyObservation `json:"monthly,omitempty"`
}

// IsOrdered reports whether both sequences are strictly increasing with
// no duplicate dates or periods.
func (s Series) IsOrdered() bool {
	for i := 1; i < len(s.Daily); i++ {
		if !s.Daily[i].Date.After(s.Daily[i-1].Date) {
			return false
		}
	}
	for i := 1; i < len(s.Monthly); i++ {
		if s.Monthly[i].Period <= s.Monthly[i-1].Period {
			return false
		}
	}
	return true
}

// AssetCategory classifies a holding at the coarse level used for the
// diversification feature.
type AssetCategory string

const (
	CategoryGovernment    AssetCategory = "Government"
	CategoryFundQuotas    AssetCategory = "FundQuotas"
	CategoryDerivatives   AssetCategory = "Derivatives"
	CategoryFixedIncome   AssetCategory = "FixedIncome"
	CategoryPrivateCredit AssetCategory = "PrivateCredit"
	CategoryBankDeposits  AssetCategory = "BankDeposits"
	CategoryForeignAssets AssetCategory = "ForeignAssets"
	CategoryOtherAssets   AssetCategory = "OtherAssets"
)

// AssetCategories lists the eight predefined categories in stable order.
var AssetCategories = []AssetCategory{
	CategoryGovernment,
	CategoryFundQuotas,
	CategoryDerivatives,
	CategoryFixedIncome,
	CategoryPrivateCredit,
	CategoryBankDeposits,
	CategoryForeignAssets,
	CategoryOtherAssets,
}

// IsKnown reports whether the category is one of the eight predefined
// values.
func (c AssetCategory) IsKnown() bool {
	for _, known := range AssetCategories {
		if c == known {
			return true
		}
	}
	return false
}

// Holding is a single position inside a fund's portfolio snapshot.
type Holding struct {
	FundID        CNPJ          `json:"cnpj"`
	Period        Period        `json:"period"`
	InstrumentID  string        `json:"instrument_id"`
	Category      AssetCategory `json:"asset_category"`
	PositionValue float64       `json:"position_value"`
	CreditRating  string        `json:"credit_rating,omitempty"`
}

// HoldingsSnapshot is the latest reported portfolio for one fund,
// together with the NAV of the same period so position shares can be
// computed. Concentration and diversification use current holdings only.
type HoldingsSnapshot struct {
	FundID   CNPJ      `json:"cnpj"`
	Period   Period    `json:"period"`
	NAV      float64   `json:"nav"`
	Holdings []Holding `json:"holdings"`
}

// Characteristics is the slowly-changing per-fund record from the
// ANBIMA registry, treated as a point-in-time snapshot.
type Characteristics struct {
	FundID         CNPJ      `json:"cnpj"`
	CommercialName string    `json:"commercial_name"`
	Manager        string    `json:"fund_manager"`
	RedemptionDays int       `json:"redemption_days"`
	InceptionDate  time.Time `json:"inception_date"`
	Subtype        string    `json:"fund_subtype"`
	TargetInvestor string    `json:"target_investor_type"`
	IsActive       bool      `json:"is_active"`
}

// HasManager reports whether the fund has an assigned manager.
func (c Characteristics) HasManager() bool {
	return strings.TrimSpace(c.Manager) != ""
}
