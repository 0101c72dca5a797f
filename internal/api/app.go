package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"winsync/internal/list"
	"winsync/internal/ports"
	"winsync/internal/pub"
	"winsync/internal/types"
)

// ListOpener builds a fresh list for a configured list id, publishing through t.
// It returns an error wrapping types.ErrNotFound for unknown ids.
type ListOpener func(ctx context.Context, id string, t ports.Transport) (*list.List, error)

// ProviderSource opens the data provider backing a list configuration.
type ProviderSource interface {
	ProviderFromEnv(ctx context.Context, cfg types.ListConfig) (ports.DataProvider, error)
}

// ConfigOpener builds lists from cfg, backed by the providers of src.
func ConfigOpener(cfg types.Config, src ProviderSource) ListOpener {
	return func(ctx context.Context, id string, t ports.Transport) (*list.List, error) {
		lc, err := cfg.List(id)
		if err != nil {
			return nil, err
		}
		provider, err := src.ProviderFromEnv(ctx, lc)
		if err != nil {
			return nil, err
		}
		return list.New(lc, provider, t)
	}
}

// SharedLists opens every configured list that names a publish target, each publishing
// through publisher. Lists without a target are only served per websocket connection.
func SharedLists(ctx context.Context, cfg types.Config, open ListOpener, publisher ports.Publisher) (*list.Registry, error) {
	lists := list.NewRegistry()
	for _, lc := range cfg.Lists {
		if lc.Target.Target == "" {
			log.WithField("list", lc.ID).Debug("no publish target, list is not shared")
			continue
		}
		l, err := open(ctx, lc.ID, pub.NewTransport(publisher, lc.Target))
		if err == nil {
			err = lists.Add(l)
		}
		if err != nil {
			lists.Close()
			return nil, fmt.Errorf("open list %s: %w", lc.ID, err)
		}
	}
	return lists, nil
}

// Watch flushes l every time its data provider reports a change, until ctx is done.
func Watch(ctx context.Context, l *list.List) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.Changed():
			if _, err := l.Flush(ctx); err != nil {
				log.WithError(err).WithField("list", l.ID()).Warn("flush after data change failed")
			}
		}
	}
}

func newServer(port int, h *Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           h.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// RunServer runs the HTTP server exposing the list endpoints. This is a blocking call.
func RunServer(ctx context.Context, port int, lists *list.Registry, open ListOpener) {
	for _, id := range lists.IDs() {
		if l, err := lists.Get(id); err == nil {
			go Watch(ctx, l)
		}
	}
	srv := newServer(port, NewHandler(lists, open))
	log.Printf("winsync listening on %s\n", srv.Addr)
	log.Fatal(srv.ListenAndServe())
}

// RunServerInterruptible runs the server in the background in a Go routine and immediately returns a chan to
// the caller. The caller can then send a signal to the chan to gracefully shutdown the server.
// It's up to the caller to wait for in the main Go routine to keep the server running.
func RunServerInterruptible(port int, lists *list.Registry, open ListOpener) (stop chan<- struct{}, done <-chan error) {
	watchCtx, cancelWatch := context.WithCancel(context.Background())
	for _, id := range lists.IDs() {
		if l, err := lists.Get(id); err == nil {
			go Watch(watchCtx, l)
		}
	}
	srv := newServer(port, NewHandler(lists, open))

	// one-shot channels for control & completion
	stopCh := make(chan struct{})
	doneCh := make(chan error, 1) // buffered so goroutines can finish without blocking

	go func() {
		log.Printf("winsync listening on %s\n", srv.Addr)
		err := srv.ListenAndServe()
		// http.ErrServerClosed is returned on Shutdown; treat that as clean exit
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			cancelWatch()
			doneCh <- err
			return
		}
		doneCh <- nil
	}()

	go func() {
		<-stopCh
		cancelWatch()
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx) // graceful; in-flight requests get time to finish
	}()
	return stopCh, doneCh
}
