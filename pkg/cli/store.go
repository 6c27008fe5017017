package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/getmockd/apidiag/pkg/apilog"
	"github.com/getmockd/apidiag/pkg/kvstore"
	"github.com/getmockd/apidiag/pkg/redact"
)

// openStore opens the configured backend and loads the log store. The
// returned close function flushes pending writes and releases the backend.
func openStore(ctx context.Context) (*apilog.Store, func() error, error) {
	cfg := app.cfg
	kv, err := kvstore.Open(ctx, cfg.Storage.Driver, cfg.Storage.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open storage: %w", err)
	}

	store := apilog.New(kv,
		apilog.WithMaxLogs(cfg.MaxLogs),
		apilog.WithMaxBodyBytes(cfg.MaxBodyBytes),
		apilog.WithDefaultEnabled(cfg.Enabled),
		apilog.WithRedactor(redact.New(cfg.Redact)),
		apilog.WithLogger(app.log),
	)
	store.Initialize(ctx)

	closeFn := func() error {
		return errors.Join(store.Close(context.WithoutCancel(ctx)), kv.Close())
	}
	return store, closeFn, nil
}

// withStore runs fn against an open store and closes it afterwards.
func withStore(ctx context.Context, fn func(*apilog.Store) error) (err error) {
	store, closeFn, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeFn(); cerr != nil && err == nil {
			err = fmt.Errorf("save logs: %w", cerr)
		}
	}()
	return fn(store)
}

// findEntry resolves an id or a unique id prefix.
func findEntry(store *apilog.Store, ref string) (apilog.Entry, error) {
	if ref == "" {
		return apilog.Entry{}, errors.New("log id is required")
	}
	if e, ok := store.Get(ref); ok {
		return e, nil
	}
	var match *apilog.Entry
	for _, e := range store.Logs() {
		if !strings.HasPrefix(e.ID, ref) {
			continue
		}
		if match != nil {
			return apilog.Entry{}, fmt.Errorf("log id prefix %q is ambiguous", ref)
		}
		e := e
		match = &e
	}
	if match == nil {
		return apilog.Entry{}, fmt.Errorf("log entry not found: %s", ref)
	}
	return *match, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
