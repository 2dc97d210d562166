package persistence

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/maintenance-service/internal/domain"
)

const ticketSequenceKey = "maintenance:ticket_seq:"

// TicketNumberer hands out human-readable ticket numbers such as MNT-000042.
type TicketNumberer struct {
	client *redis.Client
	prefix string
	logger *zap.Logger

	mu    sync.Mutex
	local map[domain.TicketKind]int64
}

// NewTicketNumberer uses Redis INCR when a client is available and an
// in-process counter otherwise. prefix is prepended to every number.
func NewTicketNumberer(r *Redis, prefix string, logger *zap.Logger) *TicketNumberer {
	n := &TicketNumberer{prefix: prefix, logger: logger, local: make(map[domain.TicketKind]int64)}
	if r.Configured() {
		n.client = r.Client
	}
	return n
}

// Next returns the next number for kind. When Redis is configured but
// failing, a random suffix keeps numbers unique without a shared counter.
func (n *TicketNumberer) Next(ctx context.Context, kind domain.TicketKind) (string, error) {
	code := kindCode(kind)
	if n.client == nil {
		n.mu.Lock()
		n.local[kind]++
		seq := n.local[kind]
		n.mu.Unlock()
		return format(n.prefix, code, seq), nil
	}

	seq, err := n.client.Incr(ctx, ticketSequenceKey+string(kind)).Result()
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		n.logger.Warn("ticket sequence unavailable; using random suffix", zap.Error(err))
		suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
		return fmt.Sprintf("%s%s-X%s", n.prefix, code, suffix), nil
	}
	return format(n.prefix, code, seq), nil
}

func kindCode(kind domain.TicketKind) string {
	if kind == domain.TicketKindRepair {
		return "REP"
	}
	return "MNT"
}

func format(prefix, code string, seq int64) string {
	return fmt.Sprintf("%s%s-%06d", prefix, code, seq)
}
