package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/BearBump/ParcelMatch/internal/errs"
	"github.com/BearBump/ParcelMatch/internal/gateway"
	"github.com/BearBump/ParcelMatch/internal/models"
	"github.com/BearBump/ParcelMatch/internal/session"
	"github.com/BearBump/ParcelMatch/internal/store"
)

// Ключи в долговременном хранилище.
const (
	keyTrackingHistory = "trackingHistory"
	keyRecentSearches  = "recentSearches"
)

const recentSearchesLimit = 5

// Service владеет кэшем "код-последний снимок" и списком недавних поисков.
// Явный поиск всегда ходит в сеть: для трекинга свежесть важнее задержки,
// кэш нужен, чтобы UI было что показывать между запросами и после рестарта.
type Service struct {
	gw   gateway.Client
	sess session.Accessor
	kv   store.KV // может быть nil: тогда живём только в памяти

	mu          sync.Mutex
	history     map[string]*models.TrackedPackage
	recent      []string
	seq         uint64
	lastApplied map[string]uint64
}

func New(gw gateway.Client, sess session.Accessor, kv store.KV) *Service {
	return &Service{
		gw:          gw,
		sess:        sess,
		kv:          kv,
		history:     map[string]*models.TrackedPackage{},
		lastApplied: map[string]uint64{},
	}
}

// Hydrate поднимает кэш и недавние поиски из хранилища. Битые данные
// считаются отсутствующими: старт приложения не должен падать из-за них.
func (s *Service) Hydrate(ctx context.Context) {
	if s.kv == nil {
		return
	}

	history := map[string]*models.TrackedPackage{}
	if b, ok, err := s.kv.Get(ctx, keyTrackingHistory); err != nil {
		slog.Warn("load tracking history", "error", err.Error())
	} else if ok {
		if uerr := json.Unmarshal(b, &history); uerr != nil {
			slog.Warn("tracking history is malformed, starting empty", "error", uerr.Error())
			history = map[string]*models.TrackedPackage{}
		}
	}

	var recent []string
	if b, ok, err := s.kv.Get(ctx, keyRecentSearches); err != nil {
		slog.Warn("load recent searches", "error", err.Error())
	} else if ok {
		if uerr := json.Unmarshal(b, &recent); uerr != nil {
			slog.Warn("recent searches are malformed, starting empty", "error", uerr.Error())
			recent = nil
		}
	}
	if len(recent) > recentSearchesLimit {
		recent = recent[:recentSearchesLimit]
	}

	s.mu.Lock()
	s.history = history
	s.recent = recent
	s.mu.Unlock()
}

// Lookup — явный поиск по коду. Всегда делает сетевой запрос; удачный
// ответ целиком заменяет снимок в кэше и поднимает код в недавние поиски.
func (s *Service) Lookup(ctx context.Context, trackingCode string) (*models.TrackedPackage, error) {
	trackingCode = strings.TrimSpace(trackingCode)
	if trackingCode == "" {
		return nil, errs.NewValidation("tracking code is required")
	}
	if _, ok := s.sess.Token(); !ok {
		return nil, errs.ErrAuthRequired
	}

	seq := s.nextSeq()

	pkg, err := s.gw.GetPackage(ctx, trackingCode)
	if err != nil {
		if errs.IsSessionExpired(err) || errs.IsAuthRequired(err) {
			return nil, err
		}
		return nil, &errs.LookupError{Msg: lookupMessage(err)}
	}

	s.apply(ctx, trackingCode, pkg, seq, true)
	return pkg, nil
}

// Refresh — фоновое обновление уже показанной посылки. Неудача не
// разрушает предыдущий результат: возвращаем nil и оставляем кэш как был.
func (s *Service) Refresh(ctx context.Context, idOrCode string) *models.TrackedPackage {
	idOrCode = strings.TrimSpace(idOrCode)
	if idOrCode == "" {
		return nil
	}
	if _, ok := s.sess.Token(); !ok {
		return nil
	}

	seq := s.nextSeq()

	pkg, err := s.gw.GetPackage(ctx, idOrCode)
	if err != nil {
		slog.Debug("refresh package failed", "key", idOrCode, "error", err.Error())
		return nil
	}

	s.apply(ctx, idOrCode, pkg, seq, false)
	return pkg
}

// ClearOne убирает одну запись из кэша и недавних поисков. Идемпотентна.
func (s *Service) ClearOne(ctx context.Context, trackingCode string) {
	s.mu.Lock()
	delete(s.history, trackingCode)
	s.recent = removeCode(s.recent, trackingCode)
	s.mu.Unlock()

	s.persist(ctx)
}

// ClearAll опустошает обе структуры и удаляет их долговременные копии.
func (s *Service) ClearAll(ctx context.Context) {
	s.mu.Lock()
	s.history = map[string]*models.TrackedPackage{}
	s.recent = nil
	s.lastApplied = map[string]uint64{}
	s.mu.Unlock()

	if s.kv == nil {
		return
	}
	if err := s.kv.Delete(ctx, keyTrackingHistory); err != nil {
		slog.Warn("clear tracking history", "error", err.Error())
	}
	if err := s.kv.Delete(ctx, keyRecentSearches); err != nil {
		slog.Warn("clear recent searches", "error", err.Error())
	}
}

// Get отдаёт кэшированный снимок, если он есть.
func (s *Service) Get(trackingCode string) (*models.TrackedPackage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pkg, ok := s.history[trackingCode]
	if !ok {
		return nil, false
	}
	cp := *pkg
	return &cp, true
}

// History — копия всего кэша для слоя представления.
func (s *Service) History() map[string]*models.TrackedPackage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]*models.TrackedPackage, len(s.history))
	for k, v := range s.history {
		cp := *v
		out[k] = &cp
	}
	return out
}

// RecentSearches — недавние коды, самый свежий первым, не больше пяти.
func (s *Service) RecentSearches() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.recent...)
}

func (s *Service) nextSeq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq
}

// apply кладёт снимок в кэш, если с момента вызова не начался более новый
// запрос за тем же ключом: выигрывает последний выданный, не последний
// прилетевший.
func (s *Service) apply(ctx context.Context, key string, pkg *models.TrackedPackage, seq uint64, recordSearch bool) {
	s.mu.Lock()
	if seq <= s.lastApplied[key] {
		s.mu.Unlock()
		return
	}
	s.lastApplied[key] = seq
	s.history[key] = pkg
	if recordSearch {
		s.recent = append([]string{key}, removeCode(s.recent, key)...)
		if len(s.recent) > recentSearchesLimit {
			s.recent = s.recent[:recentSearchesLimit]
		}
	}
	s.mu.Unlock()

	s.persist(ctx)
}

// persist зеркалит обе структуры в хранилище best-effort: неудача записи
// логируется и не эскалируется, память остаётся источником истины сессии.
func (s *Service) persist(ctx context.Context) {
	if s.kv == nil {
		return
	}

	s.mu.Lock()
	historyJSON, _ := json.Marshal(s.history)
	recentJSON, _ := json.Marshal(s.recent)
	historyEmpty := len(s.history) == 0
	recentEmpty := len(s.recent) == 0
	s.mu.Unlock()

	// Пустую структуру не пишем, а удаляем ключ: иначе после рестарта
	// гидратация воскресит то, что пользователь уже вычистил.
	if historyEmpty {
		if err := s.kv.Delete(ctx, keyTrackingHistory); err != nil {
			slog.Warn("delete tracking history", "error", err.Error())
		}
	} else if err := s.kv.Set(ctx, keyTrackingHistory, historyJSON); err != nil {
		slog.Warn("save tracking history", "error", err.Error())
	}

	if recentEmpty {
		if err := s.kv.Delete(ctx, keyRecentSearches); err != nil {
			slog.Warn("delete recent searches", "error", err.Error())
		}
	} else if err := s.kv.Set(ctx, keyRecentSearches, recentJSON); err != nil {
		slog.Warn("save recent searches", "error", err.Error())
	}
}

func removeCode(codes []string, code string) []string {
	out := codes[:0:0]
	for _, c := range codes {
		if c != code {
			out = append(out, c)
		}
	}
	return out
}

func lookupMessage(err error) string {
	var n *errs.NetworkError
	if errors.As(err, &n) && n.Msg != "" {
		return n.Msg
	}
	return "failed to find package, check the tracking number"
}
