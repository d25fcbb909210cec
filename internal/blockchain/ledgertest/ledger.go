// Package ledgertest provides an in-memory blockchain.Ledger for tests.
package ledgertest

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strconv"
	"sync"

	"campaignclient/internal/blockchain"
)

// TransportError looks like a dropped connection to blockchain.IsTransportError.
func TransportError() error {
	return &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
}

type ExecuteFunc func(call int, txBytes string, signatures []string) (*blockchain.TransactionResponse, error)

type GetTransactionFunc func(call int, digest string) (*blockchain.TransactionResponse, error)

type Ledger struct {
	mu sync.Mutex

	objects map[string]json.RawMessage
	// transactions touching an object, oldest first
	history map[string][]blockchain.TransactionResponse

	PageSize int
	// FailReads makes the next n read calls fail with TransportError.
	FailReads int

	Execute        ExecuteFunc
	GetTransaction GetTransactionFunc

	calls map[string]int
}

func New() *Ledger {
	return &Ledger{
		objects:  make(map[string]json.RawMessage),
		history:  make(map[string][]blockchain.TransactionResponse),
		PageSize: 50,
		calls:    make(map[string]int),
	}
}

// PutObject stores the data section of an object response.
func (l *Ledger) PutObject(id string, data string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.objects[id] = json.RawMessage(data)
}

func (l *Ledger) AddTransaction(changedObject string, tx blockchain.TransactionResponse) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.history[changedObject] = append(l.history[changedObject], tx)
}

func (l *Ledger) Calls(method string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls[method]
}

func (l *Ledger) read(method string) error {
	l.calls[method]++
	if l.FailReads > 0 {
		l.FailReads--
		return TransportError()
	}
	return nil
}

func (l *Ledger) object(id string) blockchain.ObjectResponse {
	data, ok := l.objects[id]
	if !ok {
		return blockchain.ObjectResponse{Error: &blockchain.ObjectError{Code: "notExists", ObjectID: id}}
	}
	return blockchain.ObjectResponse{Data: data}
}

func (l *Ledger) GetObject(ctx context.Context, id string) (*blockchain.ObjectResponse, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.read("GetObject"); err != nil {
		return nil, err
	}
	resp := l.object(id)
	return &resp, nil
}

func (l *Ledger) MultiGetObjects(ctx context.Context, ids []string) ([]blockchain.ObjectResponse, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.read("MultiGetObjects"); err != nil {
		return nil, err
	}
	out := make([]blockchain.ObjectResponse, len(ids))
	for i, id := range ids {
		out[i] = l.object(id)
	}
	return out, nil
}

func (l *Ledger) QueryTransactionBlocks(ctx context.Context, query blockchain.TransactionQuery, cursor *string, limit int) (*blockchain.TransactionPage, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.read("QueryTransactionBlocks"); err != nil {
		return nil, err
	}
	var all []blockchain.TransactionResponse
	if query.Filter != nil {
		all = l.history[query.Filter.ChangedObject]
	}

	start := 0
	if cursor != nil {
		n, err := strconv.Atoi(*cursor)
		if err != nil {
			return nil, err
		}
		start = n
	}
	size := l.PageSize
	if limit > 0 && limit < size {
		size = limit
	}
	end := min(start+size, len(all))

	page := &blockchain.TransactionPage{Data: append([]blockchain.TransactionResponse{}, all[start:end]...)}
	if end < len(all) {
		next := strconv.Itoa(end)
		page.NextCursor = &next
		page.HasNextPage = true
	}
	return page, nil
}

func (l *Ledger) ExecuteTransactionBlock(ctx context.Context, txBytes string, signatures []string) (*blockchain.TransactionResponse, error) {
	l.mu.Lock()
	l.calls["ExecuteTransactionBlock"]++
	call := l.calls["ExecuteTransactionBlock"]
	fn := l.Execute
	l.mu.Unlock()
	if fn == nil {
		return nil, errors.New("execute not configured")
	}
	return fn(call, txBytes, signatures)
}

func (l *Ledger) GetTransactionBlock(ctx context.Context, digest string) (*blockchain.TransactionResponse, error) {
	l.mu.Lock()
	l.calls["GetTransactionBlock"]++
	call := l.calls["GetTransactionBlock"]
	fn := l.GetTransaction
	l.mu.Unlock()
	if fn == nil {
		return nil, errors.New("transaction lookup not configured")
	}
	return fn(call, digest)
}

var _ blockchain.Ledger = (*Ledger)(nil)
