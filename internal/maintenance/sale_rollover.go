package maintenance

import (
	"context"
	"sync"
	"time"

	"github.com/stmary/giftshop-backend/internal/revalidate"
	"github.com/stmary/giftshop-backend/pkg/storetime"
)

// SaleRollover revalidates price-bearing pages once the store calendar date
// changes, since a sale ends at the end of its last day in the store zone.
// The first run after startup always revalidates.
type SaleRollover struct {
	clock       storetime.Clock
	revalidator revalidate.Revalidator

	mu       sync.Mutex
	lastDate time.Time
}

func NewSaleRollover(clock storetime.Clock, revalidator revalidate.Revalidator) *SaleRollover {
	return &SaleRollover{clock: clock, revalidator: revalidator}
}

func (j *SaleRollover) Name() string { return "sale-rollover" }

func (j *SaleRollover) Run(ctx context.Context) error {
	today := j.clock.Today()

	j.mu.Lock()
	changed := !today.Equal(j.lastDate)
	j.lastDate = today
	j.mu.Unlock()

	if !changed {
		return nil
	}
	j.revalidator.Paths(ctx,
		revalidate.PathHome,
		revalidate.PathProducts,
		revalidate.PathCart,
		revalidate.PathAdminProducts,
	)
	return nil
}
