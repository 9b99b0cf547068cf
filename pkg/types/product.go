package types

type ProductType string

const (
	ProductTypeProduct ProductType = "PRODUCT"
	ProductTypeService ProductType = "SERVICE"
)

// PriceInterval distinguishes one-off prices from recurring ones. Only
// ON_GOING prices may be attached to a subscription checkout session.
type PriceInterval string

const (
	PriceIntervalOneTime PriceInterval = "ONE_TIME"
	PriceIntervalOnGoing PriceInterval = "ON_GOING"
)

type PriceIntervalPeriod string

const (
	PriceIntervalPeriodNone  PriceIntervalPeriod = "NONE"
	PriceIntervalPeriodDay   PriceIntervalPeriod = "DAY"
	PriceIntervalPeriodWeek  PriceIntervalPeriod = "WEEK"
	PriceIntervalPeriodMonth PriceIntervalPeriod = "MONTH"
	PriceIntervalPeriodYear  PriceIntervalPeriod = "YEAR"
)

// Valid reports whether the period can back a recurring price.
func (p PriceIntervalPeriod) Valid() bool {
	switch p {
	case PriceIntervalPeriodDay, PriceIntervalPeriodWeek, PriceIntervalPeriodMonth, PriceIntervalPeriodYear:
		return true
	}
	return false
}

type Currency string

const (
	CurrencyBRL Currency = "BRL"
	CurrencyCAD Currency = "CAD"
	CurrencyUSD Currency = "USD"
)

func (c Currency) Valid() bool {
	switch c {
	case CurrencyBRL, CurrencyCAD, CurrencyUSD:
		return true
	}
	return false
}
