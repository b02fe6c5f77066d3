package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rocketscienceinc/ultimate-tictactoe/internal/config"
	"github.com/rocketscienceinc/ultimate-tictactoe/internal/provider"
	"github.com/rocketscienceinc/ultimate-tictactoe/internal/repository"
	"github.com/rocketscienceinc/ultimate-tictactoe/internal/repository/storage"
	"github.com/rocketscienceinc/ultimate-tictactoe/internal/usecase"
	"github.com/rocketscienceinc/ultimate-tictactoe/transport/rest"
	"github.com/rocketscienceinc/ultimate-tictactoe/transport/websocket"
)

const shutdownTimeout = 15 * time.Second

var ErrAddrNotFound = errors.New("redis address string is empty")

// RunApp - runs the application.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Info("Received signal, shutting down", "signal", sig)
		cancel()
	}()

	redisAddrString := conf.Redis.GetRedisAddr()
	if redisAddrString == "" {
		return ErrAddrNotFound
	}

	redisStorage, err := storage.NewRedis(ctx, redisAddrString)
	if err != nil {
		return fmt.Errorf("could not connect to redis storage: %w", err)
	}

	defer func() {
		if err = redisStorage.Close(); err != nil {
			log.Error("could not close redis storage", "error", err)
		}
	}()

	archive, closeArchive, err := newArchive(ctx, log, conf.Postgres)
	if err != nil {
		return err
	}
	defer closeArchive()

	seeds := newSeedSource(conf.Match.Seed)

	referee := usecase.NewReferee(logger, conf.Match.MaxRetries, conf.Match.MoveTimeout, seeds.rand())
	hub := websocket.NewHub(logger)
	matchManager := usecase.NewMatchManager(
		logger,
		referee,
		repository.NewMatchRepository(redisStorage),
		archive,
		hub,
		conf.Match.MoveDelay,
	)

	providers := newProviderFactory(&http.Client{}, seeds)
	router := rest.NewRouter(logger, matchManager, archive, providers, conf.Players, websocket.New(logger, hub, matchManager))
	server := rest.New(logger, conf.HTTPPort, router)

	httpErrCh := make(chan error, 1)
	go func() {
		if httpErr := server.Start(); httpErr != nil {
			log.Error("HTTP server error", "error", httpErr)
			httpErrCh <- httpErr
		}
	}()

	select {
	case err = <-httpErrCh:
		matchManager.Shutdown()
		return fmt.Errorf("HTTP server error: %w", err)
	case <-ctx.Done():
		log.Info("Application context canceled, shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err = server.Shutdown(shutdownCtx); err != nil {
		log.Error("could not shutdown HTTP server", "error", err)
	}

	matchManager.Shutdown()

	return nil
}

// newArchive - finished matches go to postgres when a DSN is configured.
func newArchive(ctx context.Context, log *slog.Logger, conf config.Postgres) (repository.ArchiveRepository, func(), error) {
	if conf.DSN == "" {
		log.Info("Postgres DSN is empty, match results are not archived")
		return repository.NopArchive{}, func() {}, nil
	}

	pool, err := storage.NewPostgres(ctx, conf.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("could not connect to postgres storage: %w", err)
	}

	return repository.NewArchiveRepository(pool), pool.Close, nil
}

// seedSource hands out independent generators. A zero seed means a time based one.
type seedSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func newSeedSource(seed int64) *seedSource {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &seedSource{
		rng: rand.New(rand.NewSource(seed)), //nolint: gosec // it's ok
	}
}

func (that *seedSource) rand() *rand.Rand {
	that.mu.Lock()
	defer that.mu.Unlock()

	return rand.New(rand.NewSource(that.rng.Int63())) //nolint: gosec // it's ok
}

func newProviderFactory(client *http.Client, seeds *seedSource) rest.ProviderFactory {
	return func(conf config.Player) (usecase.MoveProvider, error) {
		return provider.New(conf, client, seeds.rand())
	}
}
