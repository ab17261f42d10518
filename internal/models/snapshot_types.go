package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// StatusHistogram counts quotes per status code. Stored as jsonb but treated
// as a typed map so diffing can match entries by code.
type StatusHistogram map[string]int64

// Set records the count for one status code.
func (h StatusHistogram) Set(status int, count int64) {
	h[strconv.Itoa(status)] = count
}

// Get returns the count for one status code, zero when absent.
func (h StatusHistogram) Get(status int) int64 {
	return h[strconv.Itoa(status)]
}

func (h StatusHistogram) Value() (driver.Value, error) {
	if h == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(h)
}

func (h *StatusHistogram) Scan(value any) error {
	if value == nil {
		*h = StatusHistogram{}
		return nil
	}
	b, ok := value.([]byte)
	if !ok {
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("unsupported status histogram column type %T", value)
		}
		b = []byte(s)
	}
	return json.Unmarshal(b, h)
}

func (StatusHistogram) GormDataType() string {
	return "jsonb"
}

// LiquidatorState is one liquidator wallet's balances at snapshot time.
type LiquidatorState struct {
	Address   string          `json:"address"`
	Withdraw  decimal.Decimal `json:"withdraw"`
	Balance   decimal.Decimal `json:"balance"`
	Allocated decimal.Decimal `json:"allocated"`
}

// LiquidatorStates is stored as jsonb; diffing matches entries by address.
type LiquidatorStates []LiquidatorState

func (s LiquidatorStates) Value() (driver.Value, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s)
}

func (s *LiquidatorStates) Scan(value any) error {
	if value == nil {
		*s = nil
		return nil
	}
	b, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return fmt.Errorf("unsupported liquidator states column type %T", value)
		}
		b = []byte(str)
	}
	return json.Unmarshal(b, s)
}

func (LiquidatorStates) GormDataType() string {
	return "jsonb"
}
