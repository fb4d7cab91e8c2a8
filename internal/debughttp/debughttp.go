package debughttp

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/BearBump/ParcelMatch/config"
	"github.com/BearBump/ParcelMatch/internal/services/matches"
	"github.com/go-chi/chi/v5"
)

// Opts — операционная HTTP-поверхность для разработки и стендов:
// здоровье, статистика синка, ручной триггер. Хост решает, поднимать ли её.
type Opts struct {
	Addr     string
	OnListen func(addr string)

	Syncer *matches.Syncer
	Cfg    *config.Config
}

func Handler(opts Opts) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})

	r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if opts.Syncer == nil {
			_, _ = w.Write([]byte(`{"error":"syncer not wired"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(opts.Syncer.Stats())
	})

	r.Post("/trigger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if opts.Syncer == nil {
			_, _ = w.Write([]byte(`{"error":"syncer not wired"}`))
			return
		}
		opts.Syncer.Trigger()
		_, _ = w.Write([]byte(`{"triggered":true}`))
	})

	r.Get("/config", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if opts.Cfg == nil {
			_, _ = w.Write([]byte(`{"error":"config not wired"}`))
			return
		}
		// Секретов в конфиге нет, но наружу идут только операционные ручки.
		out := map[string]any{
			"gatewayBaseURL":      opts.Cfg.Gateway.BaseURL,
			"syncIntervalSeconds": opts.Cfg.ParcelMatch.SyncIntervalSeconds,
			"storageBackend":      opts.Cfg.ParcelMatch.StorageBackend,
		}
		_ = json.NewEncoder(w).Encode(out)
	})

	return r
}

func Run(ctx context.Context, opts Opts) error {
	if opts.Addr == "" {
		opts.Addr = ":8083"
	}

	lis, err := net.Listen("tcp", opts.Addr)
	if err != nil {
		return err
	}
	if opts.OnListen != nil {
		opts.OnListen(lis.Addr().String())
	}

	srv := &http.Server{Handler: Handler(opts)}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = lis.Close()
	}()

	return srv.Serve(lis)
}
