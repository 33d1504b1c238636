package credentials

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type stubExecutor struct {
	token   string
	err     error
	queries int
	exec    struct {
		query string
		args  []any
	}
}

func (s *stubExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.exec.query = query
	s.exec.args = args
	return pgconn.CommandTag{}, s.err
}

func (s *stubExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	s.queries++
	return stubRow{token: s.token, err: s.err}
}

func (s *stubExecutor) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

type stubRow struct {
	token string
	err   error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	ptr, ok := dest[0].(*string)
	if !ok {
		return errors.New("invalid dest")
	}
	*ptr = r.token
	return nil
}

func TestToken(t *testing.T) {
	for _, provider := range Providers {
		store := NewStore(&stubExecutor{token: " abc123 "})
		key, err := store.Token(context.Background(), provider)
		if err != nil {
			t.Fatalf("Token(%s) error: %v", provider, err)
		}
		if key != "abc123" {
			t.Fatalf("Token(%s) = %q, want %q", provider, key, "abc123")
		}
	}
}

func TestTokenNoRows(t *testing.T) {
	store := NewStore(&stubExecutor{err: pgx.ErrNoRows})
	key, err := store.Token(context.Background(), ProviderPexels)
	if err != nil {
		t.Fatalf("Token error: %v", err)
	}
	if key != "" {
		t.Fatalf("Token = %q, want empty", key)
	}
}

func TestTokenUnknownProvider(t *testing.T) {
	if _, err := NewStore(&stubExecutor{}).Token(context.Background(), "gemini"); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestSet(t *testing.T) {
	exec := &stubExecutor{}
	store := NewStore(exec)
	if err := store.Set(context.Background(), ProviderElevenLabs, " secret "); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	if len(exec.exec.args) != 3 {
		t.Fatalf("args = %d, want 3", len(exec.exec.args))
	}
	if v, ok := exec.exec.args[0].(string); !ok || v != ProviderElevenLabs {
		t.Fatalf("provider arg = %v, want %q", exec.exec.args[0], ProviderElevenLabs)
	}
	if v, ok := exec.exec.args[1].(string); !ok || v != "secret" {
		t.Fatalf("key arg = %v, want %q", exec.exec.args[1], "secret")
	}
}

func TestSetEmpty(t *testing.T) {
	if err := NewStore(&stubExecutor{}).Set(context.Background(), ProviderAnthropic, " "); err == nil {
		t.Fatal("expected error for empty key")
	}
}

func TestResolve(t *testing.T) {
	exec := &stubExecutor{token: "from-db"}
	store := NewStore(exec)

	key, err := store.Resolve(context.Background(), ProviderAnthropic, " from-env ")
	if err != nil || key != "from-env" {
		t.Fatalf("Resolve = %q, %v, want from-env", key, err)
	}
	if exec.queries != 0 {
		t.Fatalf("queries = %d, want 0 when env is set", exec.queries)
	}

	key, err = store.Resolve(context.Background(), ProviderAnthropic, "")
	if err != nil || key != "from-db" {
		t.Fatalf("Resolve = %q, %v, want from-db", key, err)
	}

	var nilStore *Store
	key, err = nilStore.Resolve(context.Background(), ProviderAnthropic, "")
	if err != nil || key != "" {
		t.Fatalf("nil Resolve = %q, %v, want empty", key, err)
	}
}
