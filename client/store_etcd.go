package client

import (
	"context"
	"fmt"

	clientv3 "go.etcd.io/etcd/client/v3"
)

const etcdKeyPrefix = "/botadmin/credentials/"

type EtcdStore struct {
	kv     clientv3.KV
	prefix string
}

func NewEtcdStore(kv clientv3.KV, profile string) *EtcdStore {
	if profile == "" {
		profile = "default"
	}
	return &EtcdStore{kv: kv, prefix: etcdKeyPrefix + profile + "/"}
}

func (s *EtcdStore) Get(ctx context.Context, key string) (string, error) {
	resp, err := s.kv.Get(ctx, s.prefix+key)
	if err != nil {
		return "", fmt.Errorf("etcd get %s: %w", key, err)
	}
	if resp == nil || len(resp.Kvs) == 0 {
		return "", nil
	}
	return string(resp.Kvs[0].Value), nil
}

func (s *EtcdStore) Set(ctx context.Context, key, value string) error {
	if value == "" {
		return nil
	}
	if _, err := s.kv.Put(ctx, s.prefix+key, value); err != nil {
		return fmt.Errorf("etcd put %s: %w", key, err)
	}
	return nil
}

func (s *EtcdStore) Remove(ctx context.Context, key string) error {
	if _, err := s.kv.Delete(ctx, s.prefix+key); err != nil {
		return fmt.Errorf("etcd delete %s: %w", key, err)
	}
	return nil
}
