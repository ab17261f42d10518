package sync

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"symmio/internal/client/subgraph"
	"symmio/internal/fixedpoint"
)

// prefixID makes a remote identifier globally unique across tenants sharing
// one store.
func prefixID(tenant, id string) string {
	if id == "" {
		return ""
	}
	return tenant + "_" + id
}

// recString reads a scalar field. Entity references arrive either as plain
// id strings or as {"id": "..."} objects depending on the projection.
func recString(rec subgraph.Record, key string) string {
	switch v := rec[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case map[string]any:
		if id, ok := v["id"].(string); ok {
			return id
		}
		return ""
	default:
		return ""
	}
}

func recDecimal(rec subgraph.Record, key string) (decimal.Decimal, error) {
	d, err := fixedpoint.ParseRaw(recString(rec, key))
	if err != nil {
		return decimal.Zero, fmt.Errorf("field %s: %w", key, err)
	}
	return d, nil
}

func recInt(rec subgraph.Record, key string) (int, error) {
	s := recString(rec, key)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("field %s: %w", key, err)
	}
	return v, nil
}

func recInt64(rec subgraph.Record, key string) (int64, error) {
	s := recString(rec, key)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("field %s: %w", key, err)
	}
	return v, nil
}

func recUint64(rec subgraph.Record, key string) (uint64, error) {
	s := recString(rec, key)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("field %s: %w", key, err)
	}
	return v, nil
}

// recTime converts a remote epoch-seconds field to UTC wall-clock time. Every
// remote field whose name contains "timestamp" goes through here.
func recTime(rec subgraph.Record, key string) (time.Time, error) {
	epoch, err := recInt64(rec, key)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(epoch, 0).UTC(), nil
}

// recTimePtr is recTime for nullable lifecycle timestamps; absent or zero
// values decode to nil.
func recTimePtr(rec subgraph.Record, key string) (*time.Time, error) {
	s := recString(rec, key)
	if s == "" || s == "0" {
		return nil, nil
	}
	t, err := recTime(rec, key)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func recStringPtr(rec subgraph.Record, key string) *string {
	s := recString(rec, key)
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
