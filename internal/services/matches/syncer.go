package matches

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BearBump/ParcelMatch/internal/errs"
	"github.com/BearBump/ParcelMatch/internal/models"
)

type Syncable interface {
	SyncAll(ctx context.Context) (models.Buckets, error)
}

// Syncer гоняет SyncAll по интервалу, пока активен экран матчей.
// Первый проход — сразу при запуске, не дожидаясь тикера.
type Syncer struct {
	svc      Syncable
	interval time.Duration

	triggerCh chan struct{}

	startedAtUnixNano   int64
	lastSyncUnixNano    atomic.Int64
	lastTriggerUnixNano atomic.Int64
	totalSyncs          atomic.Int64
	totalErrors         atomic.Int64
	sessionExpired      atomic.Bool
	lastErrorMu         sync.Mutex
	lastError           string
}

func NewSyncer(svc Syncable, interval time.Duration) *Syncer {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Syncer{
		svc:               svc,
		interval:          interval,
		triggerCh:         make(chan struct{}, 1),
		startedAtUnixNano: time.Now().UTC().UnixNano(),
	}
}

// Trigger форсирует немедленный проход (best-effort, неблокирующий).
func (s *Syncer) Trigger() {
	s.lastTriggerUnixNano.Store(time.Now().UTC().UnixNano())
	select {
	case s.triggerCh <- struct{}{}:
	default:
	}
}

type SyncerStats struct {
	StartedAt      time.Time  `json:"startedAt"`
	LastSyncAt     *time.Time `json:"lastSyncAt,omitempty"`
	LastTriggerAt  *time.Time `json:"lastTriggerAt,omitempty"`
	TotalSyncs     int64      `json:"totalSyncs"`
	TotalErrors    int64      `json:"totalErrors"`
	SessionExpired bool       `json:"sessionExpired"`
	LastError      string     `json:"lastError,omitempty"`
}

func (s *Syncer) Stats() SyncerStats {
	st := SyncerStats{
		StartedAt:      time.Unix(0, s.startedAtUnixNano).UTC(),
		TotalSyncs:     s.totalSyncs.Load(),
		TotalErrors:    s.totalErrors.Load(),
		SessionExpired: s.sessionExpired.Load(),
	}
	if n := s.lastSyncUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastSyncAt = &t
	}
	if n := s.lastTriggerUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastTriggerAt = &t
	}
	s.lastErrorMu.Lock()
	st.LastError = s.lastError
	s.lastErrorMu.Unlock()
	return st
}

// SessionExpired сообщает, что последний проход упёрся в протухшую сессию
// и хосту пора уводить пользователя на логин.
func (s *Syncer) SessionExpired() bool {
	return s.sessionExpired.Load()
}

func (s *Syncer) Run(ctx context.Context) error {
	s.runOnce(ctx)

	t := time.NewTicker(s.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			s.runOnce(ctx)
		case <-s.triggerCh:
			s.runOnce(ctx)
		}
	}
}

func (s *Syncer) runOnce(ctx context.Context) {
	s.lastSyncUnixNano.Store(time.Now().UTC().UnixNano())
	s.totalSyncs.Add(1)

	_, err := s.svc.SyncAll(ctx)
	if err == nil {
		s.sessionExpired.Store(false)
		s.lastErrorMu.Lock()
		s.lastError = ""
		s.lastErrorMu.Unlock()
		return
	}

	// Ошибка не разрушает корзины — сервис их сохранил; фиксируем и едем дальше.
	s.totalErrors.Add(1)
	s.sessionExpired.Store(errs.IsSessionExpired(err))
	s.lastErrorMu.Lock()
	s.lastError = err.Error()
	s.lastErrorMu.Unlock()
	slog.Error("sync matches", "error", err.Error())
}
