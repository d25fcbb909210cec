package blockchain

import (
	"context"
	"net"
	"net/http"

	"github.com/filecoin-project/go-jsonrpc"
	"github.com/pkg/errors"
)

const executeRequestType = "WaitForLocalExecution"

// Ledger is the read and write RPC surface the client depends on.
type Ledger interface {
	GetObject(ctx context.Context, id string) (*ObjectResponse, error)
	MultiGetObjects(ctx context.Context, ids []string) ([]ObjectResponse, error)
	QueryTransactionBlocks(ctx context.Context, query TransactionQuery, cursor *string, limit int) (*TransactionPage, error)
	ExecuteTransactionBlock(ctx context.Context, txBytes string, signatures []string) (*TransactionResponse, error)
	GetTransactionBlock(ctx context.Context, digest string) (*TransactionResponse, error)
}

type rpcMethods struct {
	GetObject func(ctx context.Context, id string, options ObjectDataOptions) (*ObjectResponse, error) `rpc_method:"sui_getObject"`

	MultiGetObjects func(ctx context.Context, ids []string, options ObjectDataOptions) ([]ObjectResponse, error) `rpc_method:"sui_multiGetObjects"`

	QueryTransactionBlocks func(ctx context.Context, query TransactionQuery, cursor *string, limit int, descending bool) (*TransactionPage, error) `rpc_method:"suix_queryTransactionBlocks"`

	ExecuteTransactionBlock func(ctx context.Context, txBytes string, signatures []string, options TransactionResponseOptions, requestType string) (*TransactionResponse, error) `rpc_method:"sui_executeTransactionBlock"`

	GetTransactionBlock func(ctx context.Context, digest string, options TransactionResponseOptions) (*TransactionResponse, error) `rpc_method:"sui_getTransactionBlock"`
}

type Client struct {
	methods rpcMethods
	closer  jsonrpc.ClientCloser
}

func NewClient(ctx context.Context, network NetworkConfig) (*Client, error) {
	endpoint := network.Endpoint()
	if endpoint == "" {
		return nil, errors.Wrapf(ErrUnknownNetwork, "no rpc endpoint for %q", network.Name)
	}

	c := &Client{}
	closer, err := jsonrpc.NewMergeClient(ctx, endpoint, "sui",
		[]interface{}{
			&c.methods,
		},
		http.Header{},
	)
	if err != nil {
		return nil, errors.Wrap(err, "create ledger rpc client")
	}
	c.closer = closer
	return c, nil
}

func (c *Client) Close() {
	if c.closer != nil {
		c.closer()
	}
}

var objectOptions = ObjectDataOptions{ShowType: true, ShowOwner: true, ShowContent: true}

var transactionOptions = TransactionResponseOptions{ShowInput: true, ShowEffects: true, ShowObjectChanges: true}

func (c *Client) GetObject(ctx context.Context, id string) (*ObjectResponse, error) {
	return c.methods.GetObject(ctx, id, objectOptions)
}

func (c *Client) MultiGetObjects(ctx context.Context, ids []string) ([]ObjectResponse, error) {
	return c.methods.MultiGetObjects(ctx, ids, objectOptions)
}

func (c *Client) QueryTransactionBlocks(ctx context.Context, query TransactionQuery, cursor *string, limit int) (*TransactionPage, error) {
	return c.methods.QueryTransactionBlocks(ctx, query, cursor, limit, false)
}

func (c *Client) ExecuteTransactionBlock(ctx context.Context, txBytes string, signatures []string) (*TransactionResponse, error) {
	return c.methods.ExecuteTransactionBlock(ctx, txBytes, signatures, transactionOptions, executeRequestType)
}

func (c *Client) GetTransactionBlock(ctx context.Context, digest string) (*TransactionResponse, error) {
	return c.methods.GetTransactionBlock(ctx, digest, transactionOptions)
}

// IsTransportError reports failures where the request may never have reached
// the ledger, as opposed to the ledger answering with an error.
func IsTransportError(err error) bool {
	if err == nil {
		return false
	}
	var clientErr *jsonrpc.ErrClient
	if errors.As(err, &clientErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
