package cmd

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/taskfuse/taskfuse/internal/api"
	"github.com/taskfuse/taskfuse/internal/cache"
	"github.com/taskfuse/taskfuse/internal/config"
	"github.com/taskfuse/taskfuse/internal/scanner"
	"github.com/taskfuse/taskfuse/internal/scheduler"
	"github.com/taskfuse/taskfuse/internal/server"
	"github.com/taskfuse/taskfuse/internal/source"
	"github.com/taskfuse/taskfuse/internal/store"
	"github.com/taskfuse/taskfuse/pkg/credstore"
	"github.com/taskfuse/taskfuse/pkg/logger"
)

// DaemonComponents holds every initialized daemon component so startup
// and shutdown stay symmetric regardless of how the daemon was
// launched.
type DaemonComponents struct {
	Store    *store.Store
	Cache    *cache.Registry
	Api      *api.Api
	Notifier *server.RPCNotifier
	Server   *server.Server
	Scanner  *scanner.Scanner
	Syncer   *source.Syncer

	cancel context.CancelFunc
	log    logger.Logger
}

// Close releases resources in reverse order of initialization.
func (c *DaemonComponents) Close() {
	if c.cancel != nil {
		c.cancel()
	}
	if c.Server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = c.Server.Shutdown(ctx)
		cancel()
	}
	if c.Store != nil {
		_ = c.Store.Close()
	}
	if c.log != nil {
		c.log.Info("daemon stopped")
		_ = c.log.Close()
	}
}

// openCredentials unlocks the bridge credential store with the
// keyring-held master key (file fallback for headless machines).
func openCredentials(cfg config.Config) (*credstore.Store, error) {
	key, err := credstore.LoadOrCreateKey(filepath.Dir(cfg.CredFile))
	if err != nil {
		return nil, err
	}
	return credstore.Open(cfg.CredFile, key)
}

// initDaemonComponents builds the daemon from configuration. On error,
// partially initialized components are cleaned up before returning.
func initDaemonComponents(cfg config.Config, log logger.Logger) (*DaemonComponents, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return nil, err
	}
	st, err := store.Open(cfg.DBPath, log)
	if err != nil {
		log.Error("store initialization failed: %v", err)
		return nil, err
	}

	reg := cache.NewRegistry(st, log)
	notifier := server.NewRPCNotifier(log)
	st.RegisterLogListener(notifier.LogAppended)

	a := api.New(st, reg, notifier, log, cfg.BoundaryInclusive)

	ctx, cancel := context.WithCancel(context.Background())

	// Warm the cache for every known user so the scanner and the
	// conflict pre-checks see data immediately.
	if ids, err := st.ListUserIDs(ctx); err == nil {
		for _, id := range ids {
			if err := reg.Load(ctx, id); err != nil {
				log.Warning("cache warm-up for %s failed: %s", id, err.Error())
			}
		}
	}

	// Source adapters, enabled per configured bridge URL. Each adapter
	// picks up its credential from the encrypted store; a bridge with no
	// stored credential runs unauthenticated.
	httpClient := &http.Client{Timeout: 30 * time.Second}
	var mailHTTP *source.HTTPMailCalendar
	var ttHTTP *source.HTTPTimetable
	var pusherHTTP *source.HTTPTodoPusher
	if cfg.ExchangeURL != "" {
		mailHTTP = source.NewHTTPMailCalendar(cfg.ExchangeURL, httpClient)
	}
	if cfg.TimetableURL != "" {
		ttHTTP = source.NewHTTPTimetable(cfg.TimetableURL, httpClient)
	}
	if cfg.TodoURL != "" {
		pusherHTTP = source.NewHTTPTodoPusher(cfg.TodoURL, httpClient)
	}
	if creds, err := openCredentials(cfg); err != nil {
		log.Warning("credential store unavailable, bridges run unauthenticated: %s", err.Error())
	} else {
		source.ApplyCredentials(creds, mailHTTP, ttHTTP, pusherHTTP)
	}

	var mail source.MailCalendar
	var tt source.Timetable
	var pusher source.TodoPusher
	if mailHTTP != nil {
		mail = mailHTTP
	}
	if ttHTTP != nil {
		tt = ttHTTP
	}
	if pusherHTTP != nil {
		pusher = pusherHTTP
	}

	var syncer *source.Syncer
	sched := scheduler.New(ctx, func(job scheduler.Job) {
		go syncer.HandleJob(ctx, job)
	})
	syncer = source.NewSyncer(a, mail, tt, pusher, sched, nil, log)

	// Seed the recurring sync jobs for every known user.
	if ids, err := st.ListUserIDs(ctx); err == nil {
		now := time.Now()
		for _, id := range ids {
			if mail != nil {
				if next, err := scheduler.NextCronOccurrence(cfg.ExchangeSyncCron, now); err == nil {
					sched.Add(scheduler.Job{
						Key:      source.JobSyncExchange + id,
						RunAt:    next,
						CronExpr: cfg.ExchangeSyncCron,
					})
				}
			}
			if tt != nil {
				if next, err := scheduler.NextCronOccurrence(cfg.TimetableSyncCron, now); err == nil {
					sched.Add(scheduler.Job{
						Key:      source.JobSyncTimetable + id,
						RunAt:    next,
						CronExpr: cfg.TimetableSyncCron,
					})
				}
			}
		}
	}

	sc := scanner.New(reg, notifier, log, cfg.ScanInterval)
	go sc.Run(ctx)

	srv := server.New(server.Config{
		Addr:    cfg.ListenAddr,
		Secret:  cfg.RPCSecret,
		Version: cfg.Version,
	}, a, notifier, log)

	return &DaemonComponents{
		Store:    st,
		Cache:    reg,
		Api:      a,
		Notifier: notifier,
		Server:   srv,
		Scanner:  sc,
		Syncer:   syncer,
		cancel:   cancel,
		log:      log,
	}, nil
}
