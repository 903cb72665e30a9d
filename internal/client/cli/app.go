package cli

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/dmitrijs2005/wetmap/internal/client/client"
	"github.com/dmitrijs2005/wetmap/internal/client/config"
	"github.com/dmitrijs2005/wetmap/internal/client/connectivity"
	"github.com/dmitrijs2005/wetmap/internal/client/reconcile"
	"github.com/dmitrijs2005/wetmap/internal/client/repositories/cache"
	"github.com/dmitrijs2005/wetmap/internal/client/repositories/idmap"
	"github.com/dmitrijs2005/wetmap/internal/client/repositories/kv"
	"github.com/dmitrijs2005/wetmap/internal/client/repositories/mirror"
	"github.com/dmitrijs2005/wetmap/internal/client/repositories/queue"
	"github.com/dmitrijs2005/wetmap/internal/client/repositories/session"
	"github.com/dmitrijs2005/wetmap/internal/client/services"
	"github.com/dmitrijs2005/wetmap/internal/common"
	"github.com/dmitrijs2005/wetmap/internal/logging"
	shared "github.com/dmitrijs2005/wetmap/internal/models"
)

// syncEngine is the part of reconcile.Engine the app drives.
type syncEngine interface {
	Start(ctx context.Context, interval time.Duration)
	Trigger(ctx context.Context)
	Wait()
}

type App struct {
	config    *config.Config
	log       logging.Logger
	db        *sql.DB
	monitor   *connectivity.Monitor
	engine    syncEngine
	auth      services.AuthService
	locations services.LocationService
	users     services.UserService

	reader *bufio.Reader
	out    io.Writer
	outMu  sync.Mutex

	mu   sync.Mutex
	user *shared.User
}

// NewApp opens the local database and wires the client components.
func NewApp(ctx context.Context, c *config.Config, log logging.Logger) (*App, error) {
	db, err := client.InitDatabase(ctx, c.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}

	store := kv.NewSQLiteStore(db)
	sess := session.New(store, log)
	q := queue.New(store, log)
	m := mirror.New(store, log)
	rc := cache.New(store, log)

	api := client.NewHTTPClient(c.ServerURL, c.RequestTimeout, sess, log)
	monitor := connectivity.New(api, c.OnlineCheckInterval, log)
	engine := reconcile.New(api, monitor, q, m, rc, idmap.New(store, log), log, reconcile.Options{
		RetryBaseDelay: c.RetryBaseDelay,
		RetryMaxDelay:  c.RetryMaxDelay,
		RetryAttempts:  c.RetryAttempts,
	})

	a := &App{
		config:    c,
		log:       log,
		db:        db,
		monitor:   monitor,
		engine:    engine,
		auth:      services.NewAuthService(api, monitor, sess, log),
		locations: services.NewLocationService(api, monitor, q, m, rc, engine, sess, log),
		users:     services.NewUserService(api, monitor),
		reader:    bufio.NewReader(os.Stdin),
		out:       os.Stdout,
	}

	engine.SetNotifier(a)
	monitor.Subscribe(a.onStateChange)
	monitor.OnOnline(a.onOnline)

	return a, nil
}

// Run resumes the stored session, starts the background loops and blocks in
// the REPL until the user exits or ctx is done.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer a.close()

	a.monitor.Check(ctx)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		a.monitor.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		a.engine.Start(ctx, a.config.SyncInterval)
	}()

	a.println("Welcome to WetMap (type 'help' for commands)")

	a.resume(ctx)
	if !a.isLoggedIn() {
		report(a.out, a.Login(ctx))
	}

	runREPL(ctx, a, a.status, a.reader, a.out)

	cancel()
	wg.Wait()
	a.engine.Wait()
	return nil
}

// resume restores the session stored on the device, if any.
func (a *App) resume(ctx context.Context) {
	s, err := a.auth.Restore(ctx)
	if err != nil {
		if !errors.Is(err, common.ErrUnauthorized) {
			a.log.Warn(ctx, "session restore failed", "err", err)
		}
		return
	}
	a.signIn(ctx, s)
}

// signIn installs s. Work left over from an earlier run is synced right away
// when the store is reachable; the online callback has already fired by then.
func (a *App) signIn(ctx context.Context, s services.Session) {
	a.setSession(s)
	if !s.Offline && a.monitor.Online() {
		a.engine.Trigger(ctx)
	}
}

func (a *App) close() {
	if err := a.db.Close(); err != nil {
		a.log.Error(context.Background(), "failed to close database", "err", err)
	}
}

// onOnline revalidates the session and kicks off reconciliation whenever
// connectivity returns.
func (a *App) onOnline(ctx context.Context) {
	if !a.isLoggedIn() {
		return
	}
	if err := a.auth.Revalidate(ctx); err != nil {
		if errors.Is(err, common.ErrUnauthorized) {
			a.setUser(nil)
			a.println("Session expired, please log in again.")
			return
		}
		a.log.Warn(ctx, "session revalidation failed", "err", err)
	}
	a.engine.Trigger(ctx)
}

func (a *App) onStateChange(s connectivity.State) {
	a.println(fmt.Sprintf("Switched to %s mode", s))
}

// SyncStarted implements reconcile.Notifier.
func (a *App) SyncStarted(context.Context) {
	a.println("Synchronizing pending changes...")
}

// SyncFinished implements reconcile.Notifier.
func (a *App) SyncFinished(_ context.Context, r reconcile.Report) {
	a.println(formatReport(r))
}

func (a *App) isLoggedIn() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.user != nil
}

func (a *App) currentUser() *shared.User {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.user
}

func (a *App) setUser(u *shared.User) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.user = u
}

func (a *App) setSession(s services.Session) {
	u := s.User
	a.setUser(&u)
}

func (a *App) status() string {
	s := string(a.monitor.State())
	if u := a.currentUser(); u != nil {
		s = u.Username + " " + s
	}
	return "(" + s + ")"
}

func (a *App) println(args ...any) {
	a.outMu.Lock()
	defer a.outMu.Unlock()
	fmt.Fprintln(a.out, args...)
}

func (a *App) printf(format string, args ...any) {
	a.outMu.Lock()
	defer a.outMu.Unlock()
	fmt.Fprintf(a.out, format, args...)
}
