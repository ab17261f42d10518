package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const erc20ABI = `[
  {"name":"decimals","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
  {"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`

const multicall3ABI = `[
  {"name":"aggregate3","type":"function","stateMutability":"payable",
   "inputs":[{"components":[
      {"name":"target","type":"address"},
      {"name":"allowFailure","type":"bool"},
      {"name":"callData","type":"bytes"}],
    "name":"calls","type":"tuple[]"}],
   "outputs":[{"components":[
      {"name":"success","type":"bool"},
      {"name":"returnData","type":"bytes"}],
    "name":"returnData","type":"tuple[]"}]}
]`

const symmioABI = `[
  {"name":"allocatedBalanceOfPartyB","type":"function","stateMutability":"view",
   "inputs":[{"name":"partyB","type":"address"},{"name":"partyA","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"name":"balanceInfoOfPartyA","type":"function","stateMutability":"view",
   "inputs":[{"name":"partyA","type":"address"}],
   "outputs":[
      {"name":"","type":"uint256"},{"name":"","type":"uint256"},{"name":"","type":"uint256"},
      {"name":"","type":"uint256"},{"name":"","type":"uint256"},{"name":"","type":"uint256"},
      {"name":"","type":"uint256"},{"name":"","type":"uint256"},{"name":"","type":"uint256"}]},
  {"name":"getPartyAOpenPositions","type":"function","stateMutability":"view",
   "inputs":[
      {"name":"partyA","type":"address"},
      {"name":"start","type":"uint256"},
      {"name":"size","type":"uint256"}],
   "outputs":[{"components":[
      {"name":"id","type":"uint256"},
      {"name":"partyBsWhiteList","type":"address[]"},
      {"name":"symbolId","type":"uint256"},
      {"name":"price","type":"uint256"},
      {"name":"requestedOpenPrice","type":"uint256"},
      {"name":"marketPrice","type":"uint256"},
      {"name":"quantity","type":"uint256"},
      {"name":"closedAmount","type":"uint256"},
      {"name":"initialLockedValues","type":"tuple","components":[
        {"name":"cva","type":"uint256"},{"name":"lf","type":"uint256"},
        {"name":"partyAmm","type":"uint256"},{"name":"partyBmm","type":"uint256"}]},
      {"name":"lockedValues","type":"tuple","components":[
        {"name":"cva","type":"uint256"},{"name":"lf","type":"uint256"},
        {"name":"partyAmm","type":"uint256"},{"name":"partyBmm","type":"uint256"}]},
      {"name":"maxFundingRate","type":"uint256"},
      {"name":"partyA","type":"address"},
      {"name":"partyB","type":"address"},
      {"name":"quoteStatus","type":"uint8"},
      {"name":"avgClosedPrice","type":"uint256"},
      {"name":"requestedClosePrice","type":"uint256"},
      {"name":"quantityToClose","type":"uint256"},
      {"name":"parentId","type":"uint256"},
      {"name":"createTimestamp","type":"uint256"},
      {"name":"statusModifyTimestamp","type":"uint256"},
      {"name":"lastFundingPaymentTimestamp","type":"uint256"},
      {"name":"deadline","type":"uint256"},
      {"name":"tradingFee","type":"uint256"}],
    "name":"","type":"tuple[]"}]},
  {"name":"partyAPositionsCount","type":"function","stateMutability":"view",
   "inputs":[{"name":"partyA","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]}
]`

var (
	parsedERC20     = mustParseABI(erc20ABI)
	parsedMulticall = mustParseABI(multicall3ABI)
	parsedSymmio    = mustParseABI(symmioABI)
)

func mustParseABI(src string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(src))
	if err != nil {
		panic(err)
	}
	return parsed
}
