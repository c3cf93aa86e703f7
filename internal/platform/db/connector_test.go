package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// fakeConn records lifecycle calls; statement methods are unused here.
type fakeConn struct {
	closed   bool
	closeErr error
	pingErr  error
	beginErr error
	pings    int
}

func (f *fakeConn) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (f *fakeConn) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeConn) QueryRow(context.Context, string, ...any) pgx.Row { return nil }

func (f *fakeConn) Begin(context.Context) (pgx.Tx, error) {
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	return nil, errors.New("transactions not supported by fake")
}

func (f *fakeConn) Ping(context.Context) error {
	f.pings++
	return f.pingErr
}

func (f *fakeConn) Close(context.Context) error {
	f.closed = true
	return f.closeErr
}

func newTestConnector(t *testing.T, d Dialer, opts ...ConnectorOption) *Connector {
	t.Helper()
	c, err := NewConnector("postgres://registry@localhost:5432/registry", time.Second, append([]ConnectorOption{WithDialer(d)}, opts...)...)
	if err != nil {
		t.Fatalf("NewConnector: %v", err)
	}
	return c
}

func TestConnector_ClosesAfterSuccess(t *testing.T) {
	fake := &fakeConn{}
	c := newTestConnector(t, func(context.Context, string) (Conn, error) { return fake, nil })

	called := false
	err := c.Do(context.Background(), func(ctx context.Context, conn Conn) error {
		called = true
		if fake.closed {
			t.Error("connection closed before fn returned")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("expected fn to be called")
	}
	if !fake.closed {
		t.Error("expected connection to be closed")
	}
}

func TestConnector_ClosesAfterError(t *testing.T) {
	fake := &fakeConn{}
	c := newTestConnector(t, func(context.Context, string) (Conn, error) { return fake, nil })

	boom := errors.New("boom")
	err := c.Do(context.Background(), func(context.Context, Conn) error { return boom })
	if !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
	if !fake.closed {
		t.Error("expected connection to be closed on error")
	}
}

func TestConnector_ClosesAfterPanic(t *testing.T) {
	fake := &fakeConn{}
	c := newTestConnector(t, func(context.Context, string) (Conn, error) { return fake, nil })

	func() {
		defer func() {
			if recover() == nil {
				t.Error("expected panic to propagate")
			}
		}()
		_ = c.Do(context.Background(), func(context.Context, Conn) error { panic("bad row") })
	}()
	if !fake.closed {
		t.Error("expected connection to be closed on panic")
	}
}

func TestConnector_ClosesWhenContextCancelled(t *testing.T) {
	fake := &fakeConn{}
	c := newTestConnector(t, func(context.Context, string) (Conn, error) { return fake, nil })

	ctx, cancel := context.WithCancel(context.Background())
	err := c.Do(ctx, func(ctx context.Context, conn Conn) error {
		cancel()
		return ctx.Err()
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if !fake.closed {
		t.Error("expected connection to be closed")
	}
}

func TestConnector_DialFailure(t *testing.T) {
	c := newTestConnector(t, func(context.Context, string) (Conn, error) {
		return nil, errors.New("connection refused")
	})

	called := false
	err := c.Do(context.Background(), func(context.Context, Conn) error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
	if called {
		t.Error("fn must not run without a connection")
	}
}

func TestConnector_FreshConnectionPerOperation(t *testing.T) {
	var dialed []*fakeConn
	c := newTestConnector(t, func(context.Context, string) (Conn, error) {
		f := &fakeConn{}
		dialed = append(dialed, f)
		return f, nil
	})

	for i := 0; i < 3; i++ {
		if err := c.Ping(context.Background()); err != nil {
			t.Fatalf("ping %d: %v", i, err)
		}
	}
	if len(dialed) != 3 {
		t.Fatalf("expected 3 dials, got %d", len(dialed))
	}
	for i, f := range dialed {
		if !f.closed || f.pings != 1 {
			t.Errorf("conn %d: closed=%v pings=%d", i, f.closed, f.pings)
		}
	}
}

func TestConnector_DialTimeoutApplied(t *testing.T) {
	c := newTestConnector(t, func(ctx context.Context, _ string) (Conn, error) {
		if _, ok := ctx.Deadline(); !ok {
			t.Error("expected dial context to carry a deadline")
		}
		return &fakeConn{}, nil
	})
	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestConnector_InTxBeginFailure(t *testing.T) {
	fake := &fakeConn{beginErr: errors.New("read only")}
	c := newTestConnector(t, func(context.Context, string) (Conn, error) { return fake, nil })

	err := c.InTx(context.Background(), func(context.Context, pgx.Tx) error {
		t.Error("fn must not run when begin fails")
		return nil
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if !fake.closed {
		t.Error("expected connection to be closed")
	}
}

func TestConnector_Observer(t *testing.T) {
	var got []error
	c := newTestConnector(t,
		func(context.Context, string) (Conn, error) { return &fakeConn{pingErr: errors.New("down")}, nil },
		WithObserver(func(_ time.Duration, err error) { got = append(got, err) }),
	)

	_ = c.Ping(context.Background())
	if len(got) != 1 || got[0] == nil {
		t.Errorf("expected one failed observation, got %v", got)
	}
}

func TestNewConnector_InvalidURL(t *testing.T) {
	if _, err := NewConnector("postgres://%zz", time.Second); err == nil {
		t.Error("expected error for malformed url")
	}
}

func TestUniqueViolation(t *testing.T) {
	err := &pgconn.PgError{Code: "23505", ConstraintName: "patients_phn_key"}
	constraint, ok := UniqueViolation(errors.Join(errors.New("insert patient"), err))
	if !ok || constraint != "patients_phn_key" {
		t.Errorf("expected patients_phn_key, got %q ok=%v", constraint, ok)
	}

	if _, ok := UniqueViolation(&pgconn.PgError{Code: "23502"}); ok {
		t.Error("not-null violation must not be reported as unique")
	}
	if _, ok := UniqueViolation(errors.New("plain")); ok {
		t.Error("plain error must not be reported as unique")
	}
}
