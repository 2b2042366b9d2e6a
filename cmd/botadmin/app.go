package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"botadmin/client"
	"botadmin/internal/config"
	"botadmin/internal/metrics"

	"github.com/redis/go-redis/v9"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// app carries what every command needs: the API client, its credential
// store and the output streams.
type app struct {
	cfg     *config.Config
	client  *client.Client
	store   client.TokenStore
	in      io.Reader
	out     io.Writer
	errOut  io.Writer
	closers []func() error
}

func newApp(cfg *config.Config, in io.Reader, out, errOut io.Writer) (*app, error) {
	a := &app{cfg: cfg, in: in, out: out, errOut: errOut}

	store, err := a.openStore(cfg)
	if err != nil {
		return nil, err
	}
	a.store = store

	c, err := client.New(client.Options{
		BaseURL:    cfg.Client.BaseURL,
		Timeout:    cfg.Client.Timeout,
		Store:      store,
		LoginRoute: cfg.Client.LoginRoute,
		Observer:   metrics.NewPrometheusObserver(),
		Navigator: client.NavigatorFunc(func(_ context.Context, route string) {
			fmt.Fprintf(a.errOut, "session expired (%s): run 'botadmin login' to sign in again\n", route)
		}),
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.client = c
	return a, nil
}

func (a *app) openStore(cfg *config.Config) (client.TokenStore, error) {
	sc := cfg.Client.Store
	switch sc.Backend {
	case "", "file":
		path := sc.Path
		if path == "" {
			p, err := client.DefaultCredentialsPath()
			if err != nil {
				return nil, err
			}
			path = p
		}
		return client.NewFileStore(path), nil
	case "memory":
		return client.NewMemoryStore(), nil
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.closers = append(a.closers, rdb.Close)
		return client.NewRedisStore(rdb, sc.Profile), nil
	case "etcd":
		dialTimeout := cfg.Etcd.DialTimeout
		if dialTimeout <= 0 {
			dialTimeout = 5 * time.Second
		}
		cli, err := clientv3.New(clientv3.Config{
			Endpoints:   cfg.Etcd.Endpoints,
			DialTimeout: dialTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("connect to etcd: %w", err)
		}
		a.closers = append(a.closers, cli.Close)
		return client.NewEtcdStore(cli, sc.Profile), nil
	default:
		return nil, fmt.Errorf("unknown credential store backend %q", sc.Backend)
	}
}

func (a *app) Close() error {
	var errs []error
	for _, closeFn := range a.closers {
		errs = append(errs, closeFn())
	}
	a.closers = nil
	return errors.Join(errs...)
}
