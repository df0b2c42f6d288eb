package client

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/holiman/uint256"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dmitrijs2005/ledgersync/internal/client/models"
)

// ServiceName is the gRPC service exposed by ledger nodes and relays.
const ServiceName = "ledger.v1.LedgerService"

// AddressHeaderName carries the caller's ledger address on every call.
const AddressHeaderName = "x-ledger-address"

const (
	methodGetStatus        = "/" + ServiceName + "/GetStatus"
	methodGetBalance       = "/" + ServiceName + "/GetBalance"
	methodGetFreeUtxos     = "/" + ServiceName + "/GetFreeUtxos"
	methodGetConfirmations = "/" + ServiceName + "/GetConfirmations"
	methodBroadcast        = "/" + ServiceName + "/Broadcast"
	methodFetchMessages    = "/" + ServiceName + "/FetchMessages"
)

// GRPCClient talks to a ledger node (or relay) over gRPC with
// structpb-encoded payloads.
type GRPCClient struct {
	endpointURL string
	conn        *grpc.ClientConn
	cc          grpc.ClientConnInterface
	// address is set once the vault unlocks, while calls may be in flight.
	address atomic.Pointer[string]
}

func withAddress(ctx context.Context, address string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(AddressHeaderName, address)
	return metadata.NewOutgoingContext(ctx, md)
}

func (s *GRPCClient) addressInterceptor(
	ctx context.Context,
	method string,
	req, reply interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	if addr := s.address.Load(); addr != nil && *addr != "" {
		ctx = withAddress(ctx, *addr)
	}
	return invoker(ctx, method, req, reply, cc, opts...)
}

func NewLedgerClient(endpointURL string, extra ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL}
	if err := c.InitGRPCClient(extra...); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *GRPCClient) InitGRPCClient(extra ...grpc.DialOption) error {
	opts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(s.addressInterceptor),
	}, extra...)

	conn, err := grpc.NewClient(s.endpointURL, opts...)
	if err != nil {
		return err
	}
	s.conn = conn
	s.cc = conn
	return nil
}

// SetAddress sets the ledger address announced to the node. Called once the
// vault is unlocked.
func (s *GRPCClient) SetAddress(address string) {
	s.address.Store(&address)
}

func (s *GRPCClient) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

func (s *GRPCClient) call(ctx context.Context, method string, in map[string]any) (*structpb.Struct, error) {
	req, err := structpb.NewStruct(in)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", method, err)
	}
	resp := &structpb.Struct{}
	if err := s.cc.Invoke(ctx, method, req, resp); err != nil {
		return nil, s.mapError(err)
	}
	return resp, nil
}

func (s *GRPCClient) GetStatus(ctx context.Context) (models.NodeStatus, error) {
	resp, err := s.call(ctx, methodGetStatus, nil)
	if err != nil {
		return models.NodeStatus{}, err
	}
	r := reader{fields: resp.GetFields()}
	st := models.NodeStatus{
		Connected:     r.flag("connected"),
		LatestBlock:   r.number("latest_block"),
		IsRescanning:  r.flag("rescanning"),
		RescanCurrent: r.number("rescan_current"),
		RescanTarget:  r.number("rescan_target"),
	}
	return st, r.err
}

func (s *GRPCClient) GetBalance(ctx context.Context, address string) (*uint256.Int, error) {
	resp, err := s.call(ctx, methodGetBalance, map[string]any{"address": address})
	if err != nil {
		return nil, err
	}
	r := reader{fields: resp.GetFields()}
	v := r.amount("balance")
	if r.err != nil {
		return nil, r.err
	}
	return v, nil
}

func (s *GRPCClient) GetFreeUtxos(ctx context.Context, address string) ([]models.Utxo, error) {
	resp, err := s.call(ctx, methodGetFreeUtxos, map[string]any{"address": address})
	if err != nil {
		return nil, err
	}
	r := reader{fields: resp.GetFields()}
	var out []models.Utxo
	for _, item := range r.list("utxos") {
		u := reader{fields: item}
		out = append(out, models.Utxo{
			TxID:          u.text("tx_id"),
			Index:         uint32(u.number("index")),
			Value:         u.amount("value"),
			Confirmations: u.number("confirmations"),
		})
		if u.err != nil {
			return nil, u.err
		}
	}
	return out, r.err
}

// GetConfirmations returns the number of blocks since txRef was included.
// Zero means the transaction is still in the mempool.
func (s *GRPCClient) GetConfirmations(ctx context.Context, txRef string) (int64, error) {
	resp, err := s.call(ctx, methodGetConfirmations, map[string]any{"tx_ref": txRef})
	if err != nil {
		return 0, err
	}
	r := reader{fields: resp.GetFields()}
	n := r.number("confirmations")
	return n, r.err
}

func (s *GRPCClient) Broadcast(ctx context.Context, env models.Envelope) (string, error) {
	spent := "0"
	if env.Spent != nil {
		spent = env.Spent.Dec()
	}
	resp, err := s.call(ctx, methodBroadcast, map[string]any{
		"id":          env.ID,
		"type":        string(env.Type),
		"sender":      env.Sender,
		"sender_name": env.SenderName,
		"recipient":   env.Recipient,
		"data":        env.Data,
		"spent":       spent,
		"created_at":  env.CreatedAt.UnixMilli(),
		"signature":   env.Signature,
	})
	if err != nil {
		return "", err
	}
	r := reader{fields: resp.GetFields()}
	ref := r.text("tx_ref")
	if r.err == nil && ref == "" {
		return "", fmt.Errorf("%w: empty tx_ref", ErrMalformedResponse)
	}
	return ref, r.err
}

func (s *GRPCClient) FetchMessages(ctx context.Context, address string) ([]models.InboundMessage, error) {
	resp, err := s.call(ctx, methodFetchMessages, map[string]any{"address": address})
	if err != nil {
		return nil, err
	}
	r := reader{fields: resp.GetFields()}
	var out []models.InboundMessage
	for _, item := range r.list("messages") {
		m := reader{fields: item}
		msg := models.InboundMessage{
			TxRef:         m.text("tx_ref"),
			Type:          models.MessageType(m.text("type")),
			SenderKey:     m.optText("sender_key"),
			SenderAddress: m.text("sender"),
			SenderName:    m.optText("sender_name"),
			Recipient:     m.optText("recipient"),
			Data:          m.optText("data"),
			Spent:         m.amount("spent"),
			CreatedAt:     time.UnixMilli(m.number("created_at")).UTC(),
			BlockHeight:   m.optNumber("block_height"),
			OfferID:       m.optText("offer_id"),
			Signature:     m.optText("signature"),
		}
		if m.err != nil {
			return nil, m.err
		}
		out = append(out, msg)
	}
	return out, r.err
}

func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return ErrUnauthorized
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	case codes.NotFound:
		return ErrNotFound
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
