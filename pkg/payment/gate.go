package payment

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/xhad/docfix/internal/types"
	"github.com/xhad/docfix/pkg/metrics"
)

type GateConfig struct {
	Signer *Signer
	// Ledger records redeemed token IDs when SingleUse is set.
	Ledger    types.Ledger
	SingleUse bool
	Metrics   *metrics.Metrics
}

// Gate answers whether a request carrying a token may submit a document.
type Gate struct {
	config GateConfig
}

func NewGate(config GateConfig) (*Gate, error) {
	if config.Signer == nil {
		return nil, errors.New("signer is required")
	}
	if config.SingleUse && config.Ledger == nil {
		config.Ledger = NewMemoryLedger()
	}

	return &Gate{config: config}, nil
}

// Authorize verifies token and, for single-use gates, redeems it.
func (g *Gate) Authorize(ctx context.Context, token string) (*Claims, error) {
	claims, err := g.authorize(ctx, token)
	g.config.Metrics.ObserveAuthorization(err)
	return claims, err
}

func (g *Gate) authorize(ctx context.Context, token string) (*Claims, error) {
	claims, err := g.config.Signer.Verify(token)
	if err != nil {
		return nil, err
	}

	if g.config.SingleUse {
		if err := g.config.Ledger.Redeem(ctx, claims.ID); err != nil {
			return nil, err
		}
	}

	return claims, nil
}

// MemoryLedger is a process-local Ledger.
type MemoryLedger struct {
	mu       sync.Mutex
	redeemed map[string]struct{}
}

var _ types.Ledger = (*MemoryLedger)(nil)

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		redeemed: make(map[string]struct{}),
	}
}

func (l *MemoryLedger) Redeem(ctx context.Context, tokenID string) error {
	if tokenID == "" {
		return errors.Wrap(ErrTokenInvalid, "missing token id")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.redeemed[tokenID]; ok {
		return ErrAlreadyRedeemed
	}
	l.redeemed[tokenID] = struct{}{}

	return nil
}
