package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

const openPositionsPageSize = 100

// ContractCaller is the subset of *ethclient.Client the Reader needs.
type ContractCaller interface {
	HeaderReader
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error)
}

// Reader issues view calls against the protocol diamond and the collateral
// token, optionally pinned to a historical block. Monetary return values are
// raw fixed-point integers.
type Reader struct {
	client     ContractCaller
	symmio     common.Address
	collateral common.Address
	multicall  common.Address
}

func NewReader(client ContractCaller, symmioAddr, collateralAddr, multicallAddr string) *Reader {
	return &Reader{
		client:     client,
		symmio:     common.HexToAddress(symmioAddr),
		collateral: common.HexToAddress(collateralAddr),
		multicall:  common.HexToAddress(multicallAddr),
	}
}

// Client exposes the underlying RPC client for block references.
func (r *Reader) Client() HeaderReader { return r.client }

type call3 struct {
	Target       common.Address
	AllowFailure bool
	CallData     []byte
}

type call3Result struct {
	Success    bool
	ReturnData []byte
}

type lockedValues struct {
	Cva      *big.Int
	Lf       *big.Int
	PartyAmm *big.Int
	PartyBmm *big.Int
}

type chainQuote struct {
	Id                          *big.Int
	PartyBsWhiteList            []common.Address
	SymbolId                    *big.Int
	Price                       *big.Int
	RequestedOpenPrice          *big.Int
	MarketPrice                 *big.Int
	Quantity                    *big.Int
	ClosedAmount                *big.Int
	InitialLockedValues         lockedValues
	LockedValues                lockedValues
	MaxFundingRate              *big.Int
	PartyA                      common.Address
	PartyB                      common.Address
	QuoteStatus                 uint8
	AvgClosedPrice              *big.Int
	RequestedClosePrice         *big.Int
	QuantityToClose             *big.Int
	ParentId                    *big.Int
	CreateTimestamp             *big.Int
	StatusModifyTimestamp       *big.Int
	LastFundingPaymentTimestamp *big.Int
	Deadline                    *big.Int
	TradingFee                  *big.Int
}

// PartyABalanceInfo is the decoded balanceInfoOfPartyA tuple.
type PartyABalanceInfo struct {
	AllocatedBalance      decimal.Decimal
	LockedCva             decimal.Decimal
	LockedLf              decimal.Decimal
	LockedPartyAmm        decimal.Decimal
	LockedPartyBmm        decimal.Decimal
	PendingLockedCva      decimal.Decimal
	PendingLockedLf       decimal.Decimal
	PendingLockedPartyAmm decimal.Decimal
	PendingLockedPartyBmm decimal.Decimal
}

func (r *Reader) callAt(ctx context.Context, to common.Address, data []byte, block uint64) ([]byte, error) {
	var blockNumber *big.Int
	if block > 0 {
		blockNumber = new(big.Int).SetUint64(block)
	}
	return r.client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, blockNumber)
}

// Decimals reads the collateral token's decimals. Called once per tenant and
// cached in the runtime configuration.
func (r *Reader) Decimals(ctx context.Context) (int32, error) {
	data, err := parsedERC20.Pack("decimals")
	if err != nil {
		return 0, fmt.Errorf("pack decimals: %w", err)
	}
	res, err := r.callAt(ctx, r.collateral, data, 0)
	if err != nil {
		return 0, fmt.Errorf("call decimals: %w", err)
	}
	out, err := parsedERC20.Unpack("decimals", res)
	if err != nil {
		return 0, fmt.Errorf("unpack decimals: %w", err)
	}
	return int32(out[0].(uint8)), nil
}

// BalanceOf reads the collateral balance of a wallet at a block.
func (r *Reader) BalanceOf(ctx context.Context, account common.Address, block uint64) (decimal.Decimal, error) {
	data, err := parsedERC20.Pack("balanceOf", account)
	if err != nil {
		return decimal.Zero, fmt.Errorf("pack balanceOf: %w", err)
	}
	res, err := r.callAt(ctx, r.collateral, data, block)
	if err != nil {
		return decimal.Zero, fmt.Errorf("call balanceOf: %w", err)
	}
	out, err := parsedERC20.Unpack("balanceOf", res)
	if err != nil {
		return decimal.Zero, fmt.Errorf("unpack balanceOf: %w", err)
	}
	return decimal.NewFromBigInt(out[0].(*big.Int), 0), nil
}

// AllocatedBalancesOfPartyB batches allocatedBalanceOfPartyB(partyB, partyA)
// for every partyA through one aggregate3 multicall.
func (r *Reader) AllocatedBalancesOfPartyB(ctx context.Context, partyB common.Address, partyAs []common.Address, block uint64) (map[common.Address]decimal.Decimal, error) {
	out := make(map[common.Address]decimal.Decimal, len(partyAs))
	if len(partyAs) == 0 {
		return out, nil
	}
	calls := make([]call3, 0, len(partyAs))
	for _, partyA := range partyAs {
		data, err := parsedSymmio.Pack("allocatedBalanceOfPartyB", partyB, partyA)
		if err != nil {
			return nil, fmt.Errorf("pack allocatedBalanceOfPartyB: %w", err)
		}
		calls = append(calls, call3{Target: r.symmio, AllowFailure: true, CallData: data})
	}
	results, err := r.aggregate3(ctx, calls, block)
	if err != nil {
		return nil, err
	}
	for i, res := range results {
		if !res.Success {
			return nil, fmt.Errorf("allocatedBalanceOfPartyB reverted for %s", partyAs[i].Hex())
		}
		unpacked, err := parsedSymmio.Unpack("allocatedBalanceOfPartyB", res.ReturnData)
		if err != nil {
			return nil, fmt.Errorf("unpack allocatedBalanceOfPartyB: %w", err)
		}
		out[partyAs[i]] = decimal.NewFromBigInt(unpacked[0].(*big.Int), 0)
	}
	return out, nil
}

// BalanceInfoOfPartyA reads the nine balance components of one party A.
func (r *Reader) BalanceInfoOfPartyA(ctx context.Context, partyA common.Address, block uint64) (*PartyABalanceInfo, error) {
	data, err := parsedSymmio.Pack("balanceInfoOfPartyA", partyA)
	if err != nil {
		return nil, fmt.Errorf("pack balanceInfoOfPartyA: %w", err)
	}
	res, err := r.callAt(ctx, r.symmio, data, block)
	if err != nil {
		return nil, fmt.Errorf("call balanceInfoOfPartyA: %w", err)
	}
	out, err := parsedSymmio.Unpack("balanceInfoOfPartyA", res)
	if err != nil {
		return nil, fmt.Errorf("unpack balanceInfoOfPartyA: %w", err)
	}
	if len(out) != 9 {
		return nil, fmt.Errorf("balanceInfoOfPartyA returned %d values", len(out))
	}
	fields := make([]decimal.Decimal, 9)
	for i, v := range out {
		fields[i] = decimal.NewFromBigInt(v.(*big.Int), 0)
	}
	return &PartyABalanceInfo{
		AllocatedBalance:      fields[0],
		LockedCva:             fields[1],
		LockedLf:              fields[2],
		LockedPartyAmm:        fields[3],
		LockedPartyBmm:        fields[4],
		PendingLockedCva:      fields[5],
		PendingLockedLf:       fields[6],
		PendingLockedPartyAmm: fields[7],
		PendingLockedPartyBmm: fields[8],
	}, nil
}

// OpenPositionIDs enumerates the ids of a party A's on-chain open positions,
// paging through getPartyAOpenPositions. Used by the debug-mode consistency
// check against the local mirror.
func (r *Reader) OpenPositionIDs(ctx context.Context, partyA common.Address, block uint64) ([]string, error) {
	var ids []string
	for start := int64(0); ; start += openPositionsPageSize {
		data, err := parsedSymmio.Pack("getPartyAOpenPositions",
			partyA, big.NewInt(start), big.NewInt(openPositionsPageSize))
		if err != nil {
			return nil, fmt.Errorf("pack getPartyAOpenPositions: %w", err)
		}
		res, err := r.callAt(ctx, r.symmio, data, block)
		if err != nil {
			return nil, fmt.Errorf("call getPartyAOpenPositions: %w", err)
		}
		out, err := parsedSymmio.Unpack("getPartyAOpenPositions", res)
		if err != nil {
			return nil, fmt.Errorf("unpack getPartyAOpenPositions: %w", err)
		}
		positions := *abi.ConvertType(out[0], new([]chainQuote)).(*[]chainQuote)
		for _, p := range positions {
			ids = append(ids, p.Id.String())
		}
		if len(positions) < openPositionsPageSize {
			return ids, nil
		}
	}
}

// TxCountOf reads a wallet's transaction count (nonce) at a block. Drives
// the liquidator gas accumulators.
func (r *Reader) TxCountOf(ctx context.Context, account common.Address, block uint64) (uint64, error) {
	var blockNumber *big.Int
	if block > 0 {
		blockNumber = new(big.Int).SetUint64(block)
	}
	nonce, err := r.client.NonceAt(ctx, account, blockNumber)
	if err != nil {
		return 0, fmt.Errorf("fetch nonce of %s: %w", account.Hex(), err)
	}
	return nonce, nil
}

func (r *Reader) aggregate3(ctx context.Context, calls []call3, block uint64) ([]call3Result, error) {
	data, err := parsedMulticall.Pack("aggregate3", calls)
	if err != nil {
		return nil, fmt.Errorf("pack aggregate3: %w", err)
	}
	res, err := r.callAt(ctx, r.multicall, data, block)
	if err != nil {
		return nil, fmt.Errorf("call aggregate3: %w", err)
	}
	out, err := parsedMulticall.Unpack("aggregate3", res)
	if err != nil {
		return nil, fmt.Errorf("unpack aggregate3: %w", err)
	}
	return *abi.ConvertType(out[0], new([]call3Result)).(*[]call3Result), nil
}
