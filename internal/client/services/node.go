package services

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/dmitrijs2005/ledgersync/internal/client/models"
	"github.com/dmitrijs2005/ledgersync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/ledgersync/internal/common"
	"github.com/dmitrijs2005/ledgersync/internal/logging"
)

// NodeService tracks the ledger node status, the rescan condition and the
// initial-load flag.
type NodeService struct {
	source StatusSource
	meta   metadata.Repository
	log    logging.Logger
	now    func() time.Time

	mu          sync.RWMutex
	status      models.NodeStatus
	rescanning  bool
	initialLoad bool
}

func NewNodeService(source StatusSource, meta metadata.Repository, log logging.Logger) *NodeService {
	return &NodeService{source: source, meta: meta, log: log, now: time.Now}
}

// RefreshStatus polls the node. On failure the node is reported as
// disconnected and the previous rescan condition is kept.
func (n *NodeService) RefreshStatus(ctx context.Context) error {
	st, err := n.source.GetStatus(ctx)

	n.mu.Lock()
	defer n.mu.Unlock()
	if err != nil {
		n.status.Connected = false
		return fmt.Errorf("get status: %w", err)
	}
	n.status = st
	n.rescanning = st.IsRescanning
	return nil
}

func (n *NodeService) Status() models.NodeStatus {
	n.mu.RLock()
	defer n.mu.RUnlock()
	st := n.status
	st.IsRescanning = n.rescanning
	return st
}

func (n *NodeService) LatestBlock() int64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.status.LatestBlock
}

func (n *NodeService) IsRescanning() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.rescanning
}

func (n *NodeService) SetRescanning(v bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.rescanning = v
}

func (n *NodeService) InitialLoadComplete() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.initialLoad
}

func (n *NodeService) SetInitialLoad(v bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.initialLoad = v
}

// RequestRescan enters the rescan condition and records channelID in the
// vault store so the node rescans it.
//
// Only a successful RefreshStatus clears the condition. While the node is
// unreachable IsRescanning stays true and the UI keeps showing a rescan.
func (n *NodeService) RequestRescan(ctx context.Context, channelID string) error {
	n.SetRescanning(true)
	at := strconv.FormatInt(n.now().UnixNano(), 10)
	if err := n.meta.Set(ctx, common.KeyChannelsToRescanPrefix+channelID, []byte(at)); err != nil {
		return fmt.Errorf("request rescan of %s: %w", channelID, err)
	}
	n.log.Info(ctx, "rescan requested", "channel", channelID)
	return nil
}

// PendingRescans lists the channel ids awaiting a rescan.
func (n *NodeService) PendingRescans(ctx context.Context) ([]string, error) {
	pairs, err := n.meta.ListPrefix(ctx, common.KeyChannelsToRescanPrefix)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(pairs))
	for k := range pairs {
		out = append(out, k[len(common.KeyChannelsToRescanPrefix):])
	}
	return out, nil
}
