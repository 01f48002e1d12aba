package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/mostrador/internal/debounce"
	"github.com/example/mostrador/internal/erp"
	"github.com/example/mostrador/internal/session"
)

// ResyncService refreshes display-only line fields (name, image) from the
// catalog after the ERP resynchronizes product media. Refresh requests are
// debounced per owner so a burst of catalog updates results in one pass.
// Quantity and prices are never touched: a response landing after the line
// was removed is a no-op.
type ResyncService struct {
	erp   *erp.Client
	store session.Store
	delay time.Duration
	log   zerolog.Logger

	mu         sync.Mutex
	debouncers map[string]*debounce.Debouncer
}

// NewResyncService builds the resync worker.
func NewResyncService(erpClient *erp.Client, store session.Store, delay time.Duration, log zerolog.Logger) *ResyncService {
	return &ResyncService{
		erp:        erpClient,
		store:      store,
		delay:      delay,
		log:        log.With().Str("component", "resync").Logger(),
		debouncers: make(map[string]*debounce.Debouncer),
	}
}

// RequestRefresh schedules a debounced refresh of the owner's session lines.
func (s *ResyncService) RequestRefresh(owner string) {
	s.mu.Lock()
	d, ok := s.debouncers[owner]
	if !ok {
		d = debounce.New(s.delay)
		s.debouncers[owner] = d
	}
	s.mu.Unlock()

	d.Schedule(func() {
		if err := s.refresh(owner); err != nil {
			s.log.Warn().Err(err).Str("owner", owner).Msg("session refresh failed")
		}
	})
}

func (s *ResyncService) refresh(owner string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sess, err := s.store.Load(ctx, owner)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil
		}
		return err
	}

	changed := false
	for _, line := range sess.Lines {
		product, err := s.erp.GetProduct(ctx, line.ProductID)
		if err != nil {
			s.log.Debug().Err(err).Str("product", line.ProductID).Msg("skipping line refresh")
			continue
		}
		patch := session.LinePatch{}
		if product.Name != line.Name {
			patch.Name = &product.Name
		}
		if product.Image != line.Image {
			patch.Image = &product.Image
		}
		if patch.Name == nil && patch.Image == nil {
			continue
		}
		if sess.UpdateLineField(line.ProductID, patch) == session.OutcomeUpdated {
			changed = true
		}
	}

	if !changed {
		return nil
	}
	return s.store.Save(ctx, owner, sess)
}
