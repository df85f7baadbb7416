// Package contracts reads squares contest state from the grid contract over
// JSON-RPC. The engine never writes chain state; every method here is an
// eth_call against the latest block.
package contracts

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"

	"github.com/mykcryptodev/football-onchain/pkg/squares"
)

// boxesABI covers the read surface of the grid contract.
const boxesABI = `[
	{"name":"getContest","type":"function","stateMutability":"view",
	 "inputs":[{"name":"contestId","type":"uint256"}],
	 "outputs":[
		{"name":"gameId","type":"uint256"},
		{"name":"boxCost","type":"uint256"},
		{"name":"currency","type":"address"},
		{"name":"boxesClaimed","type":"uint256"},
		{"name":"randomValuesSet","type":"bool"},
		{"name":"totalRewards","type":"uint256"},
		{"name":"payoutStrategy","type":"uint8"},
		{"name":"q1Paid","type":"bool"},
		{"name":"q2Paid","type":"bool"},
		{"name":"q3Paid","type":"bool"},
		{"name":"finalPaid","type":"bool"}]},
	{"name":"getRandomValues","type":"function","stateMutability":"view",
	 "inputs":[{"name":"contestId","type":"uint256"}],
	 "outputs":[
		{"name":"rows","type":"uint8[10]"},
		{"name":"cols","type":"uint8[10]"}]},
	{"name":"contestIdCounter","type":"function","stateMutability":"view",
	 "inputs":[],
	 "outputs":[{"name":"","type":"uint256"}]},
	{"name":"ownerOf","type":"function","stateMutability":"view",
	 "inputs":[{"name":"tokenId","type":"uint256"}],
	 "outputs":[{"name":"","type":"address"}]}
]`

// DefaultCurrencyDecimals matches the USDC-style tokens contests price in.
const DefaultCurrencyDecimals = 6

// ErrUpstreamTimeout wraps RPC timeouts. Callers keep the last good
// snapshot and retry on the next poll cycle.
var ErrUpstreamTimeout = errors.New("contracts: upstream timeout")

// Caller is the eth_call capability the reader needs. *ethclient.Client
// satisfies it.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Reader reads contest and box-ownership state from one grid contract.
type Reader struct {
	caller   Caller
	contract common.Address
	chainID  int64
	decimals int32
	abi      abi.ABI
}

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithCurrencyDecimals sets the decimal scale used to convert raw token
// amounts to display amounts.
func WithCurrencyDecimals(d int32) ReaderOption {
	return func(r *Reader) {
		r.decimals = d
	}
}

// NewReader creates a reader over an existing caller.
func NewReader(caller Caller, contract common.Address, chainID int64, opts ...ReaderOption) (*Reader, error) {
	parsed, err := abi.JSON(strings.NewReader(boxesABI))
	if err != nil {
		return nil, fmt.Errorf("parse contract abi: %w", err)
	}

	r := &Reader{
		caller:   caller,
		contract: contract,
		chainID:  chainID,
		decimals: DefaultCurrencyDecimals,
		abi:      parsed,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Dial connects to an RPC endpoint and returns a reader over it.
func Dial(ctx context.Context, rpcURL, contract string, chainID int64, opts ...ReaderOption) (*Reader, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	return NewReader(client, common.HexToAddress(contract), chainID, opts...)
}

// ChainID returns the chain this reader is bound to.
func (r *Reader) ChainID() int64 { return r.chainID }

// ContestCount returns the number of contests created on the contract.
func (r *Reader) ContestCount(ctx context.Context) (int64, error) {
	out, err := r.call(ctx, "contestIdCounter")
	if err != nil {
		return 0, err
	}
	count, ok := out[0].(*big.Int)
	if !ok {
		return 0, fmt.Errorf("contestIdCounter: unexpected output %T", out[0])
	}
	return count.Int64(), nil
}

// Contest reads one contest's full state, including the row/column digit
// assignment once randomness is finalized.
func (r *Reader) Contest(ctx context.Context, contestID int64) (*squares.Contest, error) {
	out, err := r.call(ctx, "getContest", big.NewInt(contestID))
	if err != nil {
		return nil, err
	}
	if len(out) != 11 {
		return nil, fmt.Errorf("getContest: unexpected output arity %d", len(out))
	}

	c := &squares.Contest{
		ID:      contestID,
		ChainID: r.chainID,
	}

	gameID, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("getContest: unexpected gameId %T", out[0])
	}
	c.GameID = gameID.String()

	boxCost, ok := out[1].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("getContest: unexpected boxCost %T", out[1])
	}
	c.BoxCost = decimal.NewFromBigInt(boxCost, -r.decimals)

	currency, ok := out[2].(common.Address)
	if !ok {
		return nil, fmt.Errorf("getContest: unexpected currency %T", out[2])
	}
	c.Currency = currency.Hex()

	claimed, ok := out[3].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("getContest: unexpected boxesClaimed %T", out[3])
	}
	c.BoxesClaimed = int(claimed.Int64())

	c.RandomValuesSet, _ = out[4].(bool)

	rewards, ok := out[5].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("getContest: unexpected totalRewards %T", out[5])
	}
	c.TotalRewards = decimal.NewFromBigInt(rewards, -r.decimals)

	strategy, ok := out[6].(uint8)
	if !ok {
		return nil, fmt.Errorf("getContest: unexpected payoutStrategy %T", out[6])
	}
	c.PayoutStrategy = squares.ParsePayoutStrategy(strconv.Itoa(int(strategy)))

	c.RewardsPaid = squares.RewardsPaid{}
	c.RewardsPaid.Q1, _ = out[7].(bool)
	c.RewardsPaid.Q2, _ = out[8].(bool)
	c.RewardsPaid.Q3, _ = out[9].(bool)
	c.RewardsPaid.Final, _ = out[10].(bool)

	if c.RandomValuesSet {
		if err := r.fillRandomValues(ctx, c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (r *Reader) fillRandomValues(ctx context.Context, c *squares.Contest) error {
	out, err := r.call(ctx, "getRandomValues", big.NewInt(c.ID))
	if err != nil {
		return err
	}
	rows, ok := out[0].([squares.GridSize]uint8)
	if !ok {
		return fmt.Errorf("getRandomValues: unexpected rows %T", out[0])
	}
	cols, ok := out[1].([squares.GridSize]uint8)
	if !ok {
		return fmt.Errorf("getRandomValues: unexpected cols %T", out[1])
	}
	for i := 0; i < squares.GridSize; i++ {
		c.Rows[i] = int(rows[i])
		c.Cols[i] = int(cols[i])
	}
	return nil
}

// BoxOwner reads the current owner of one box. A reverting ownerOf means
// the box token has not been minted; that reads as unowned, not an error.
func (r *Reader) BoxOwner(ctx context.Context, contestID int64, boxPosition int) (squares.BoxOwner, error) {
	tokenID := squares.ToTokenID(contestID, boxPosition)
	box := squares.BoxOwner{
		TokenID: tokenID,
		Row:     boxPosition / squares.GridSize,
		Col:     boxPosition % squares.GridSize,
	}

	out, err := r.call(ctx, "ownerOf", big.NewInt(tokenID))
	if err != nil {
		if isRevert(err) {
			return box, nil
		}
		return box, err
	}
	owner, ok := out[0].(common.Address)
	if !ok {
		return box, fmt.Errorf("ownerOf: unexpected output %T", out[0])
	}
	box.Owner = owner.Hex()
	return box, nil
}

func (r *Reader) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	data, err := r.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	raw, err := r.caller.CallContract(ctx, ethereum.CallMsg{To: &r.contract, Data: data}, nil)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s: %v", ErrUpstreamTimeout, method, err)
		}
		return nil, fmt.Errorf("call %s: %w", method, err)
	}

	out, err := r.abi.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return out, nil
}

func isRevert(err error) bool {
	return err != nil && strings.Contains(err.Error(), "execution reverted")
}
