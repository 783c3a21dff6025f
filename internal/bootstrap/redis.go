package bootstrap

import (
	"cmp"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"

	"github.com/gagyekum/residency/config"
	"github.com/redis/go-redis/v9"
)

// ConnectRedis connects the job status cache backend. With Redis disabled in
// config it returns a nil client and status reads fall through to PostgreSQL.
//
//nolint:ireturn // redis.UniversalClient covers single, sentinel, and cluster deployments.
func ConnectRedis(ctx context.Context, cfg StorageConfig) (redis.UniversalClient, error) {
	if !cfg.Redis.Enabled {
		if cfg.Logger != nil {
			cfg.Logger.Info("redis disabled, job status cache unavailable")
		}
		return nil, nil
	}

	opts, desc, err := redisOptions(cfg.Redis)
	if err != nil {
		return nil, err
	}
	client := redis.NewUniversalClient(opts)

	probeCtx, cancel := context.WithTimeout(ctx, connectProbeTimeout)
	defer cancel()

	if err := client.Ping(probeCtx).Err(); err != nil {
		err = fmt.Errorf("ping redis: %w", err)
		if closeErr := client.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close redis client: %w", closeErr))
		}
		return nil, err
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("redis connected", "addr", redactAddr(desc))
	}

	return client, nil
}

// redisOptions maps the config onto universal client options. The client kind
// follows from the options themselves: a master name selects the sentinel
// failover client, cluster mode the cluster client, and otherwise a single
// connection is used. Credentials inside the URI win over REDIS_PASSWORD.
func redisOptions(cfg config.RedisConfig) (*redis.UniversalOptions, string, error) {
	switch {
	case cfg.UseSentinel:
		if len(cfg.SentinelNodes) == 0 {
			return nil, "", errors.New("redis sentinel mode requires at least one sentinel node")
		}
		opts := &redis.UniversalOptions{
			MasterName:       cfg.SentinelMasterName,
			Addrs:            cfg.SentinelNodes,
			Password:         cfg.Password,
			SentinelPassword: cfg.SentinelPassword,
		}
		return opts, "sentinel:" + cfg.SentinelMasterName, nil

	case cfg.UseCluster:
		addrs := compactAddrs(cfg.ClusterNodes)
		opts := &redis.UniversalOptions{
			IsClusterMode: true,
			Password:      cfg.Password,
		}
		if len(addrs) == 0 {
			target, err := parseRedisTarget(cfg.URI)
			if err != nil {
				return nil, "", err
			}
			if target == nil {
				return nil, "", errors.New("redis cluster mode requires cluster nodes or a uri")
			}
			addrs = []string{target.addr}
			opts.Username = target.username
			opts.Password = cmp.Or(target.password, cfg.Password)
			opts.TLSConfig = target.tlsConfig
		}
		opts.Addrs = addrs
		return opts, "cluster:" + strings.Join(addrs, ","), nil

	default:
		target, err := parseRedisTarget(cfg.URI)
		if err != nil {
			return nil, "", err
		}
		if target == nil {
			return nil, "", errors.New("redis connection requires a uri")
		}
		opts := &redis.UniversalOptions{
			Addrs:     []string{target.addr},
			Username:  target.username,
			Password:  cmp.Or(target.password, cfg.Password),
			DB:        target.db,
			TLSConfig: target.tlsConfig,
		}
		return opts, target.addr, nil
	}
}

// redisTarget is one parsed connection target, from either a redis:// URL or
// a bare host:port.
type redisTarget struct {
	addr      string
	username  string
	password  string
	db        int
	tlsConfig *tls.Config
}

func parseRedisTarget(uri string) (*redisTarget, error) {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return nil, nil
	}
	if !strings.HasPrefix(uri, "redis://") && !strings.HasPrefix(uri, "rediss://") {
		return &redisTarget{addr: uri}, nil
	}

	opt, err := redis.ParseURL(uri)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &redisTarget{
		addr:      opt.Addr,
		username:  opt.Username,
		password:  opt.Password,
		db:        opt.DB,
		tlsConfig: opt.TLSConfig,
	}, nil
}

func compactAddrs(raw []string) []string {
	addrs := make([]string, 0, len(raw))
	for _, addr := range raw {
		if addr = strings.TrimSpace(addr); addr != "" {
			addrs = append(addrs, addr)
		}
	}
	return addrs
}

// redactAddr strips any credential block from a connection description
// before it reaches logs.
func redactAddr(desc string) string {
	if i := strings.LastIndex(desc, "@"); i >= 0 {
		return desc[i+1:]
	}
	return desc
}
