package chain

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
)

type fakeHeaderReader struct {
	head        uint64
	headerTimes map[uint64]uint64
	headerCalls int
}

func (f *fakeHeaderReader) BlockNumber(ctx context.Context) (uint64, error) {
	return f.head, nil
}

func (f *fakeHeaderReader) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	f.headerCalls++
	return &types.Header{
		Number: new(big.Int).Set(number),
		Time:   f.headerTimes[number.Uint64()],
	}, nil
}

func TestLatestAndBackward(t *testing.T) {
	client := &fakeHeaderReader{head: 5000}
	ref, err := Latest(context.Background(), client)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if ref.Number != 5000 {
		t.Fatalf("Number = %d, want 5000", ref.Number)
	}
	if got := ref.Backward(20).Number; got != 4980 {
		t.Fatalf("Backward(20) = %d, want 4980", got)
	}
	if got := ref.Backward(9999).Number; got != 0 {
		t.Fatalf("Backward past genesis = %d, want 0", got)
	}
}

func TestTimeIsMemoized(t *testing.T) {
	client := &fakeHeaderReader{headerTimes: map[uint64]uint64{42: 1700000000}}
	ref := At(client, 42)

	first, err := ref.Time(context.Background())
	if err != nil {
		t.Fatalf("Time: %v", err)
	}
	second, err := ref.Time(context.Background())
	if err != nil {
		t.Fatalf("Time: %v", err)
	}
	if !first.Equal(second) || !first.Equal(time.Unix(1700000000, 0).UTC()) {
		t.Fatalf("unexpected times %v %v", first, second)
	}
	if client.headerCalls != 1 {
		t.Fatalf("expected one header fetch, got %d", client.headerCalls)
	}
}

func TestIsForPast(t *testing.T) {
	blockTime := time.Unix(1700000000, 0).UTC()
	client := &fakeHeaderReader{headerTimes: map[uint64]uint64{7: uint64(blockTime.Unix())}}

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"fresh", blockTime.Add(2 * time.Minute), false},
		{"at threshold", blockTime.Add(FreshnessThreshold), false},
		{"stale", blockTime.Add(FreshnessThreshold + time.Second), true},
	}
	for _, tt := range tests {
		ref := At(client, 7).WithNow(func() time.Time { return tt.now })
		got, err := ref.IsForPast(context.Background())
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if got != tt.want {
			t.Fatalf("%s: IsForPast = %v, want %v", tt.name, got, tt.want)
		}
	}
}
