package models

import "time"

type Currency string

const (
	CurrencyINR Currency = "INR"
	CurrencyUSD Currency = "USD"
)

// Toggle flips between the two supported display currencies.
func (c Currency) Toggle() Currency {
	if c == CurrencyUSD {
		return CurrencyINR
	}
	return CurrencyUSD
}

type User struct {
	ID          int64
	DisplayName string
	Username    string
	Address     string
	Currency    Currency
	Banned      bool
	JoinedAt    time.Time
}
