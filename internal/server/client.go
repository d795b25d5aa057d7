package server

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/roach88/loopswap/internal/engine"
	"github.com/roach88/loopswap/internal/ir"
)

// Client submits invocations to a remote Ledger service.
type Client struct {
	cc     *grpc.ClientConn
	client LedgerClient

	// Timeout applies per RPC when non-zero.
	Timeout time.Duration
}

type DialOptions struct {
	// Timeout applies per RPC when non-zero.
	Timeout time.Duration

	// MaxMsgBytes sets both send/recv max sizes when non-zero.
	MaxMsgBytes int

	// Extra is appended to the dial options (tests pass a bufconn dialer).
	Extra []grpc.DialOption
}

// Dial connects to target. Connections are plaintext.
func Dial(target string, opts DialOptions) (*Client, error) {
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}
	if opts.MaxMsgBytes > 0 {
		dialOpts = append(dialOpts,
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(opts.MaxMsgBytes),
				grpc.MaxCallSendMsgSize(opts.MaxMsgBytes),
			),
		)
	}
	dialOpts = append(dialOpts, opts.Extra...)

	cc, err := grpc.NewClient(target, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}
	return &Client{cc: cc, client: NewLedgerClient(cc), Timeout: opts.Timeout}, nil
}

func (c *Client) Close() error {
	if c == nil || c.cc == nil {
		return nil
	}
	return c.cc.Close()
}

// Submit sends inv and returns the invocation id. Domain rejections come
// back as *swaperr.Error.
func (c *Client) Submit(ctx context.Context, inv engine.Invocation) (string, error) {
	frame, err := EncodeFrame(inv)
	if err != nil {
		return "", err
	}
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	reply, err := c.client.Submit(ctx, wrapperspb.Bytes(frame))
	if err != nil {
		return "", mapRPC(err)
	}
	return reply.GetValue(), nil
}

// GetLoop returns the canonical JSON view of a trade loop.
func (c *Client) GetLoop(ctx context.Context, id ir.Key) ([]byte, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	reply, err := c.client.GetLoop(ctx, wrapperspb.String(id.String()))
	if err != nil {
		return nil, mapRPC(err)
	}
	return []byte(reply.GetValue()), nil
}

// GetJournal returns the last limit journal entries, each decoded into a
// generic map. The server answers at most MaxJournalEntries; limit <= 0
// asks for that many.
func (c *Client) GetJournal(ctx context.Context, limit int) ([]map[string]any, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	reply, err := c.client.GetJournal(ctx, wrapperspb.Int64(int64(limit)))
	if err != nil {
		return nil, mapRPC(err)
	}
	var entries []map[string]any
	if err := json.Unmarshal([]byte(reply.GetValue()), &entries); err != nil {
		return nil, fmt.Errorf("decode journal: %w", err)
	}
	return entries, nil
}

func (c *Client) ctx(parent context.Context) (context.Context, context.CancelFunc) {
	if c.Timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, c.Timeout)
}
