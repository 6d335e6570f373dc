package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/ethclient"
)

const defaultTimeout = 10 * time.Second

// Client is the read-only RPC connection behind the live pair/router reader.
// Every call is bounded by the client's timeout.
type Client struct {
	rpc     *ethclient.Client
	chainID *big.Int
	timeout time.Duration
}

// NewClient dials rpcURL and fetches the chain ID. A non-positive timeout
// falls back to 10s.
func NewClient(rpcURL string, timeout time.Duration) (*Client, error) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := &Client{timeout: timeout}

	ctx, cancel := c.bound(context.Background())
	defer cancel()

	rpc, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rpcURL, err)
	}
	chainID, err := rpc.ChainID(ctx)
	if err != nil {
		rpc.Close()
		return nil, fmt.Errorf("fetch chain id: %w", err)
	}

	c.rpc, c.chainID = rpc, chainID
	return c, nil
}

func (c *Client) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.timeout)
}

// Close releases the RPC connection
func (c *Client) Close() {
	c.rpc.Close()
}

// ChainID is the chain the node reported at dial time
func (c *Client) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

// CallContract runs an eth_call against the latest block
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()
	return c.rpc.CallContract(ctx, msg, nil)
}

// BlockNumber returns the head block; the health check uses it as a probe
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()
	return c.rpc.BlockNumber(ctx)
}
