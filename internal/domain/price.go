package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// PriceSide side of a quote.
type PriceSide int

const (
	SideAsk PriceSide = iota
	SideBid
)

// String returns the string representation.
func (s PriceSide) String() string {
	if s == SideBid {
		return "Bid"
	}
	return "Ask"
}

// IsBuy reports whether the side is the buy side of the book.
func (s PriceSide) IsBuy() bool {
	return s == SideBid
}

// PriceType returns the candle price type matching the side.
func (s PriceSide) PriceType() PriceType {
	if s == SideBid {
		return PriceTypeBid
	}
	return PriceTypeAsk
}

// PriceType candle series kind.
type PriceType string

const (
	PriceTypeBid    PriceType = "Bid"
	PriceTypeAsk    PriceType = "Ask"
	PriceTypeTrades PriceType = "Trades"
)

// PricePeriod candle bucket width.
type PricePeriod string

const (
	PeriodSecond PricePeriod = "Sec"
	PeriodMinute PricePeriod = "Minute"
	PeriodHour   PricePeriod = "Hour"
	PeriodDay    PricePeriod = "Day"
	PeriodMonth  PricePeriod = "Month"
)

// ParsePricePeriod parses a period name case-insensitively. "Second" is accepted as an alias of "Sec".
func ParsePricePeriod(s string) (PricePeriod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sec", "second":
		return PeriodSecond, nil
	case "minute":
		return PeriodMinute, nil
	case "hour":
		return PeriodHour, nil
	case "day":
		return PeriodDay, nil
	case "month":
		return PeriodMonth, nil
	default:
		return "", fmt.Errorf("unknown period %q", s)
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *PricePeriod) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("period must be a string: %w", err)
	}
	parsed, err := ParsePricePeriod(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// IsCalendar reports whether buckets follow the calendar (Day, Month).
func (p PricePeriod) IsCalendar() bool {
	return p == PeriodDay || p == PeriodMonth
}

// AddTicks advances t by n buckets of the period.
func (p PricePeriod) AddTicks(t time.Time, n int) time.Time {
	switch p {
	case PeriodSecond:
		return t.Add(time.Duration(n) * time.Second)
	case PeriodMinute:
		return t.Add(time.Duration(n) * time.Minute)
	case PeriodHour:
		return t.Add(time.Duration(n) * time.Hour)
	case PeriodDay:
		return t.AddDate(0, 0, n)
	case PeriodMonth:
		return t.AddDate(0, n, 0)
	default:
		return t
	}
}

// WindowEnd returns the exclusive upper bound of the window holding the bucket that starts at from.
// The candle backend numbers calendar buckets from 1, so Day and Month advance one extra tick.
func (p PricePeriod) WindowEnd(from time.Time) time.Time {
	if p.IsCalendar() {
		return p.AddTicks(from, 2)
	}
	return p.AddTicks(from, 1)
}
