package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

// ErrUnavailable wraps failures to reach the database.
var ErrUnavailable = errors.New("database unavailable")

const uniqueViolation = "23505"

// Conn is the subset of *pgx.Conn used by repositories.
type Conn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Dialer opens a new connection.
type Dialer func(ctx context.Context, databaseURL string) (Conn, error)

func dialPgx(ctx context.Context, databaseURL string) (Conn, error) {
	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Connector hands out one connection per operation. Nothing is pooled: every
// call to Do dials, runs fn and closes the connection on all exit paths,
// including errors and panics.
type Connector struct {
	url     string
	timeout time.Duration
	dial    Dialer
	logger  zerolog.Logger
	observe func(time.Duration, error)
}

type ConnectorOption func(*Connector)

// WithDialer replaces pgx.Connect, mainly for tests.
func WithDialer(d Dialer) ConnectorOption {
	return func(c *Connector) { c.dial = d }
}

func WithLogger(l zerolog.Logger) ConnectorOption {
	return func(c *Connector) { c.logger = l }
}

// WithObserver is called after every operation with its duration and result.
func WithObserver(fn func(time.Duration, error)) ConnectorOption {
	return func(c *Connector) { c.observe = fn }
}

func NewConnector(databaseURL string, connectTimeout time.Duration, opts ...ConnectorOption) (*Connector, error) {
	if _, err := pgx.ParseConfig(databaseURL); err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	c := &Connector{
		url:     databaseURL,
		timeout: connectTimeout,
		dial:    dialPgx,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Do runs fn on a freshly opened connection.
func (c *Connector) Do(ctx context.Context, fn func(ctx context.Context, conn Conn) error) (err error) {
	start := time.Now()
	defer func() {
		if c.observe != nil {
			c.observe(time.Since(start), err)
		}
	}()

	dialCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	conn, err := c.dial(dialCtx, c.url)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() {
		// The caller's context may already be done; closing must still happen.
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if cerr := conn.Close(closeCtx); cerr != nil {
			c.logger.Warn().Err(cerr).Msg("close database connection")
		}
	}()

	return fn(ctx, conn)
}

// InTx runs fn inside a transaction on a fresh connection. The transaction
// is committed when fn returns nil and rolled back otherwise.
func (c *Connector) InTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	return c.Do(ctx, func(ctx context.Context, conn Conn) error {
		tx, err := conn.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		defer tx.Rollback(ctx)

		if err := fn(ctx, tx); err != nil {
			return err
		}
		return tx.Commit(ctx)
	})
}

// Ping checks that a connection can be opened and used.
func (c *Connector) Ping(ctx context.Context) error {
	return c.Do(ctx, func(ctx context.Context, conn Conn) error {
		return conn.Ping(ctx)
	})
}

// UniqueViolation reports the constraint name when err is a unique
// constraint violation.
func UniqueViolation(err error) (constraint string, ok bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return pgErr.ConstraintName, true
	}
	return "", false
}
