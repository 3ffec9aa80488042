package dbmo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Options configures an Engine.
type Options struct {
	// Verbose emits a diagnostic for every command, not only failing ones.
	Verbose bool
	// Logger receives diagnostics; nil uses the global logger (see SetLogger).
	Logger Logger
	// ParseCacheSize bounds the placeholder parse cache; negative disables it.
	ParseCacheSize int

	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration

	// Cache backs Engine.Cache; nil uses GetCache().
	Cache CacheProvider
}

// Option mutates Options.
type Option func(*Options)

// WithVerbose logs every command, not only failing ones.
func WithVerbose(on bool) Option { return func(o *Options) { o.Verbose = on } }

// WithLogger sends the engine's diagnostics to l instead of the global logger.
func WithLogger(l Logger) Option { return func(o *Options) { o.Logger = l } }

// WithParseCacheSize bounds the placeholder parse cache; 0 or less disables it.
func WithParseCacheSize(n int) Option { return func(o *Options) { o.ParseCacheSize = n } }

// WithCache sets the CacheProvider used by Engine.Cache.
func WithCache(c CacheProvider) Option { return func(o *Options) { o.Cache = c } }

// WithConnMaxLifetime sets the maximum time a pooled connection may be reused.
func WithConnMaxLifetime(d time.Duration) Option { return func(o *Options) { o.ConnMaxLifetime = d } }

// WithPool sets the pool limits applied to the *sql.DB returned by the provider.
func WithPool(maxOpen, maxIdle int) Option {
	return func(o *Options) {
		o.MaxOpen = maxOpen
		o.MaxIdle = maxIdle
	}
}

// pool is shared by an engine and its sessions.
type pool struct {
	provider   Provider
	connString string
	opts       Options
	parse      *parseCache

	mu sync.Mutex
	db *sql.DB

	monitorsMu sync.Mutex
	monitors   []*Monitor
}

// database opens the provider's pool on first use and verifies it with a ping.
func (p *pool) database(ctx context.Context) (*sql.DB, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db != nil {
		return p.db, nil
	}
	db, err := p.provider.NewConnection(p.connString)
	if err != nil {
		return nil, err
	}
	if p.opts.MaxOpen > 0 {
		db.SetMaxOpenConns(p.opts.MaxOpen)
	}
	if p.opts.MaxIdle > 0 {
		db.SetMaxIdleConns(p.opts.MaxIdle)
	}
	if p.opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(p.opts.ConnMaxLifetime)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	p.db = db
	return db, nil
}

func (p *pool) ping(ctx context.Context) error {
	db, err := p.database(ctx)
	if err != nil {
		return err
	}
	return db.PingContext(ctx)
}

func (p *pool) addMonitor(m *Monitor) {
	p.monitorsMu.Lock()
	p.monitors = append(p.monitors, m)
	p.monitorsMu.Unlock()
}

func (p *pool) close() error {
	p.monitorsMu.Lock()
	monitors := p.monitors
	p.monitors = nil
	p.monitorsMu.Unlock()
	for _, m := range monitors {
		m.Stop()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil
	return err
}

type txState int

const (
	txNone    txState = iota
	txPending         // Begin called, no command run yet
	txActive          // *sql.Tx materialised
)

// Engine runs commands against one provider. An Engine holds at most one connection, one
// command and one transaction at a time and is not safe for concurrent use; call Session for
// an independent unit of work sharing the same pool.
type Engine struct {
	shared   *pool
	verbose  bool
	logOrder string

	conn    *sql.Conn
	tx      *sql.Tx
	txState txState

	cacheRepo string
	cacheTTL  time.Duration
}

// New returns an engine for provider and connString. No connection is made until the first
// command runs.
func New(provider Provider, connString string, opts ...Option) (*Engine, error) {
	if provider == nil {
		return nil, ErrNoProvider
	}
	o := Options{ParseCacheSize: DefaultParseCacheSize}
	for _, opt := range opts {
		opt(&o)
	}
	size := o.ParseCacheSize
	if size < 0 {
		size = 0
	}
	p := &pool{provider: provider, connString: connString, opts: o, parse: newParseCache(size)}
	return &Engine{shared: p, verbose: o.Verbose}, nil
}

// Session returns a fresh engine sharing this engine's pool and options.
func (e *Engine) Session() *Engine {
	return &Engine{shared: e.shared, verbose: e.verbose}
}

// Provider returns the backend adapter.
func (e *Engine) Provider() Provider { return e.shared.provider }

// SetVerbose toggles diagnostics for successful commands on this engine.
func (e *Engine) SetVerbose(on bool) *Engine {
	e.verbose = on
	return e
}

// LogOrder returns the correlation id of the connection currently held, "" when none is.
func (e *Engine) LogOrder() string { return e.logOrder }

// DB returns the underlying pool, opening it if needed.
func (e *Engine) DB(ctx context.Context) (*sql.DB, error) {
	return e.shared.database(ctx)
}

// Ping opens the pool if needed and checks the backend is reachable.
func (e *Engine) Ping(ctx context.Context) error {
	if err := e.shared.ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrExecution, err)
	}
	return nil
}

// Close rolls back an active transaction, releases the connection and closes the shared
// pool. Sessions of this engine become unusable.
func (e *Engine) Close() error {
	var errs []error
	if e.tx != nil {
		if err := e.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			errs = append(errs, err)
		}
		e.tx = nil
	}
	e.txState = txNone
	e.releaseConn()
	if err := e.shared.close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Cache makes the next query read through the result cache under repository repo.
// Ignored inside a transaction.
func (e *Engine) Cache(repo string, ttl time.Duration) *Engine {
	e.cacheRepo = repo
	e.cacheTTL = ttl
	return e
}

func (e *Engine) takeCache() (string, time.Duration) {
	repo, ttl := e.cacheRepo, e.cacheTTL
	e.cacheRepo, e.cacheTTL = "", 0
	return repo, ttl
}

func (e *Engine) cacheProvider() CacheProvider {
	if e.shared.opts.Cache != nil {
		return e.shared.opts.Cache
	}
	return GetCache()
}

// ClearCache drops every cached result of repository repo.
func (e *Engine) ClearCache(repo string) {
	e.cacheProvider().CacheClearRepository(repo)
}

// prepare builds the command for text and binds p to it. Failures are reported.
func (e *Engine) prepare(text string, p Params) (*Command, error) {
	cmd := e.shared.provider.NewCommand(text)
	cmd.Tokens = e.shared.parse.parse(cmd.Text, cmd.Syntax)
	if err := bind(cmd, p, e.shared.provider.NewParameter); err != nil {
		e.report(cmd, time.Now(), err)
		return nil, err
	}
	return cmd, nil
}

// open acquires the connection, and the transaction when one is pending.
func (e *Engine) open(ctx context.Context) (Executor, error) {
	if e.conn == nil {
		db, err := e.shared.database(ctx)
		if err != nil {
			return nil, err
		}
		conn, err := db.Conn(ctx)
		if err != nil {
			return nil, err
		}
		e.conn = conn
		e.logOrder = NewLogOrder()
	}
	if e.txState == txPending {
		// the transaction outlives the ctx of the command that starts it
		tx, err := e.conn.BeginTx(context.WithoutCancel(ctx), nil)
		if err != nil {
			return nil, err
		}
		e.tx = tx
		e.txState = txActive
	}
	if e.tx != nil {
		return e.tx, nil
	}
	return e.conn, nil
}

// close reports the command and releases the connection unless a transaction holds it.
func (e *Engine) close(cmd *Command, start time.Time, err error) {
	if err != nil || e.verbose {
		e.report(cmd, start, err)
	}
	if e.tx == nil {
		e.releaseConn()
	}
}

func (e *Engine) releaseConn() {
	if e.conn == nil {
		return
	}
	_ = e.conn.Close()
	e.conn = nil
	e.logOrder = ""
}

// execute runs fn on an opened connection and closes it afterwards.
func (e *Engine) execute(ctx context.Context, cmd *Command, fn func(ex Executor) error) error {
	start := time.Now()
	ex, err := e.open(ctx)
	if err == nil {
		err = fn(ex)
	}
	err = wrapExec(err)
	e.close(cmd, start, err)
	return err
}

func (e *Engine) render(cmd *Command) (string, []any, error) {
	return e.shared.provider.Render(cmd)
}

// wrapExec tags backend errors with ErrExecution; engine errors pass through.
func wrapExec(err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{ErrExecution, ErrBinding, ErrConversion, ErrAutoComplete, ErrTransaction, ErrUnsupported} {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", ErrExecution, err)
}

// report hands a diagnostic to the logger. It never panics.
func (e *Engine) report(cmd *Command, start time.Time, err error) {
	d := diagnostic{
		provider: e.shared.provider.Name(),
		order:    e.logOrder,
		duration: time.Since(start),
		err:      err,
	}
	if d.order == "" {
		d.order = NewLogOrder()
	}
	if cmd != nil {
		d.sql = cmd.Text
		d.params = cmd.ParamDump()
	}
	level, msg := LevelInfo, "SQL log"
	if err != nil {
		level, msg = LevelError, "SQL failed log"
	}
	logTo(e.shared.opts.Logger, level, msg, d.fields())
}

// reportText is report for failures that happen before a command exists.
func (e *Engine) reportText(text string, err error) {
	e.report(&Command{Text: text}, time.Now(), err)
}

// guard turns a panic inside a public call into ErrExecution and releases the connection.
func (e *Engine) guard(errp *error) {
	r := recover()
	if r == nil {
		return
	}
	err := fmt.Errorf("%w: panic: %v", ErrExecution, r)
	logTo(e.shared.opts.Logger, LevelError, "panic recovered", map[string]any{
		"provider": e.shared.provider.Name(),
		"order":    e.logOrder,
		"error":    err.Error(),
	})
	if e.tx == nil {
		e.releaseConn()
	}
	*errp = err
}
