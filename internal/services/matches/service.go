package matches

import (
	"context"
	"strings"
	"sync"

	"github.com/BearBump/ParcelMatch/internal/errs"
	"github.com/BearBump/ParcelMatch/internal/gateway"
	"github.com/BearBump/ParcelMatch/internal/models"
	"github.com/pkg/errors"
)

// Service владеет тремя корзинами матчей текущего пользователя и выполняет
// переходы между ними. Мутации подтверждаются сервером до применения:
// оптимистичных перестановок нет, ошибочный "принял" хуже медленного.
type Service struct {
	gw gateway.Client

	mu          sync.Mutex
	pending     []*models.CarrierMatch
	active      []*models.CarrierMatch
	history     []*models.CarrierMatch
	draftNotes  map[string]string
	inFlight    map[string]struct{}
	seq         uint64
	lastApplied map[string]uint64
}

func New(gw gateway.Client) *Service {
	return &Service{
		gw:          gw,
		draftNotes:  map[string]string{},
		inFlight:    map[string]struct{}{},
		lastApplied: map[string]uint64{},
	}
}

// SyncAll запрашивает полный набор матчей и целиком пересобирает корзины.
// Неудача не трогает прежнее содержимое: транзиентный сбой синка не должен
// очищать экран.
func (s *Service) SyncAll(ctx context.Context) (models.Buckets, error) {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	ms, err := s.gw.ListMyMatches(ctx)
	if err != nil {
		if errs.IsSessionExpired(err) || errs.IsAuthRequired(err) {
			return s.Snapshot(), err
		}
		return s.Snapshot(), errors.Wrap(err, "sync matches")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Плейсмент матчей, по которым после старта этого синка уже успела
	// примениться мутация: их ответ новее и не перетирается.
	type placed struct {
		m      *models.CarrierMatch
		bucket models.Bucket
	}
	protected := map[string]placed{}
	for id, applied := range s.lastApplied {
		if applied <= seq {
			continue
		}
		if m, b, ok := s.findLocked(id); ok {
			protected[id] = placed{m: m, bucket: b}
		}
	}

	s.pending = nil
	s.active = nil
	s.history = nil
	for _, m := range ms {
		item, bucket := m, models.BucketFor(m.Status)
		if p, ok := protected[m.ID]; ok {
			item, bucket = p.m, p.bucket
			delete(protected, m.ID)
		}
		// При полном пересборе история идёт в порядке ответа сервера.
		switch bucket {
		case models.BucketPending:
			s.pending = append(s.pending, item)
		case models.BucketActive:
			s.active = append(s.active, item)
		default:
			s.history = append(s.history, item)
		}
	}
	// Матчи, мутированные локально, но отсутствующие в ответе сервера,
	// не выбрасываются до следующего синка.
	for _, p := range protected {
		s.placeLocked(p.m, p.bucket)
	}

	// Черновики заметок живут только пока матч ожидает ответа.
	s.dropStaleDraftsLocked()

	return s.snapshotLocked(), nil
}

// Accept подтверждает матч из pending-корзины. При пустых notes берётся
// черновик, набранный для этого матча.
func (s *Service) Accept(ctx context.Context, matchID, notes string) (*models.CarrierMatch, error) {
	return s.mutate(ctx, matchID, models.BucketPending, func(ctx context.Context, n string) (*models.CarrierMatch, error) {
		return s.gw.AcceptMatch(ctx, matchID, n)
	}, notes)
}

// Reject отклоняет матч из pending-корзины.
func (s *Service) Reject(ctx context.Context, matchID, notes string) (*models.CarrierMatch, error) {
	return s.mutate(ctx, matchID, models.BucketPending, func(ctx context.Context, n string) (*models.CarrierMatch, error) {
		return s.gw.RejectMatch(ctx, matchID, n)
	}, notes)
}

// Cancel снимает уже принятый матч. Причина обязательна.
func (s *Service) Cancel(ctx context.Context, matchID, reason string) (*models.CarrierMatch, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, errs.NewValidation("cancellation reason is required")
	}
	return s.mutate(ctx, matchID, models.BucketActive, func(ctx context.Context, _ string) (*models.CarrierMatch, error) {
		return s.gw.CancelMatch(ctx, matchID, reason)
	}, "")
}

func (s *Service) mutate(
	ctx context.Context,
	matchID string,
	from models.Bucket,
	call func(context.Context, string) (*models.CarrierMatch, error),
	notes string,
) (*models.CarrierMatch, error) {
	s.mu.Lock()
	if _, busy := s.inFlight[matchID]; busy {
		s.mu.Unlock()
		return nil, errors.Wrapf(errs.ErrOperationInProgress, "match %s", matchID)
	}
	_, bucket, found := s.findLocked(matchID)
	if !found || bucket != from {
		s.mu.Unlock()
		return nil, errors.Wrapf(errs.ErrInvalidState, "match %s is not %s", matchID, from)
	}
	if notes == "" {
		notes = s.draftNotes[matchID]
	}
	s.seq++
	seq := s.seq
	s.inFlight[matchID] = struct{}{}
	s.mu.Unlock()

	m, err := call(ctx, notes)

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, matchID)

	if err != nil {
		// Корзины не трогаем: подтверждения не было.
		return nil, err
	}

	if seq > s.lastApplied[matchID] {
		s.lastApplied[matchID] = seq
		s.removeLocked(matchID)
		s.placeLocked(m, models.BucketFor(m.Status))
		delete(s.draftNotes, matchID)
	}
	return m, nil
}

// Discover запрашивает кандидатов-перевозчиков для посылки. Результат
// эфемерный: скармливается ранжировщику и Book, нигде не сохраняется.
func (s *Service) Discover(ctx context.Context, packageID string, radius float64, maxCarriers int) ([]*models.CarrierCandidate, error) {
	if strings.TrimSpace(packageID) == "" {
		return nil, errs.NewValidation("package id is required")
	}
	if radius <= 0 {
		radius = 10
	}
	if maxCarriers <= 0 {
		maxCarriers = 5
	}
	return s.gw.FindCarriers(ctx, gateway.FindCarriersRequest{
		PackageID:   packageID,
		Radius:      radius,
		MaxCarriers: maxCarriers,
	})
}

// Book создаёт матч с выбранным кандидатом и кладёт серверный ответ
// в соответствующую корзину.
func (s *Service) Book(ctx context.Context, packageID, carrierID string) (*models.CarrierMatch, error) {
	if strings.TrimSpace(packageID) == "" || strings.TrimSpace(carrierID) == "" {
		return nil, errs.NewValidation("package id and carrier id are required")
	}

	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	m, err := s.gw.CreateMatch(ctx, packageID, carrierID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq > s.lastApplied[m.ID] {
		s.lastApplied[m.ID] = seq
		s.removeLocked(m.ID)
		s.placeLocked(m, models.BucketFor(m.Status))
	}
	return m, nil
}

// SetDraftNote хранит набираемую заметку к pending-матчу. Только память,
// никогда не персистится.
func (s *Service) SetDraftNote(matchID, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if text == "" {
		delete(s.draftNotes, matchID)
		return
	}
	s.draftNotes[matchID] = text
}

func (s *Service) GetDraftNote(matchID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draftNotes[matchID]
}

// Snapshot — копия трёх корзин для слоя представления.
func (s *Service) Snapshot() models.Buckets {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Service) snapshotLocked() models.Buckets {
	return models.Buckets{
		Pending: copyMatches(s.pending),
		Active:  copyMatches(s.active),
		History: copyMatches(s.history),
	}
}

func (s *Service) findLocked(matchID string) (*models.CarrierMatch, models.Bucket, bool) {
	for _, m := range s.pending {
		if m.ID == matchID {
			return m, models.BucketPending, true
		}
	}
	for _, m := range s.active {
		if m.ID == matchID {
			return m, models.BucketActive, true
		}
	}
	for _, m := range s.history {
		if m.ID == matchID {
			return m, models.BucketHistory, true
		}
	}
	return nil, "", false
}

func (s *Service) removeLocked(matchID string) {
	s.pending = removeMatch(s.pending, matchID)
	s.active = removeMatch(s.active, matchID)
	s.history = removeMatch(s.history, matchID)
}

func (s *Service) placeLocked(m *models.CarrierMatch, bucket models.Bucket) {
	switch bucket {
	case models.BucketPending:
		s.pending = append(s.pending, m)
	case models.BucketActive:
		s.active = append(s.active, m)
	default:
		// Свежие переходы показываются сверху истории.
		s.history = append([]*models.CarrierMatch{m}, s.history...)
	}
}

func (s *Service) dropStaleDraftsLocked() {
	for id := range s.draftNotes {
		stillPending := false
		for _, m := range s.pending {
			if m.ID == id {
				stillPending = true
				break
			}
		}
		if !stillPending {
			delete(s.draftNotes, id)
		}
	}
}

func removeMatch(ms []*models.CarrierMatch, matchID string) []*models.CarrierMatch {
	out := ms[:0:0]
	for _, m := range ms {
		if m.ID != matchID {
			out = append(out, m)
		}
	}
	return out
}

func copyMatches(ms []*models.CarrierMatch) []*models.CarrierMatch {
	out := make([]*models.CarrierMatch, 0, len(ms))
	for _, m := range ms {
		cp := *m
		out = append(out, &cp)
	}
	return out
}
