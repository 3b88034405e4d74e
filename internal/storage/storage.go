package storage

import (
	"context"
	"fmt"

	"resume-analyzer/internal/config"
	"resume-analyzer/internal/logger"
)

// Storage 聚合缓存、归档和事件组件。除 Cache 外均可为 nil
type Storage struct {
	Redis    *Redis
	Cache    *ResultCache
	MinIO    *MinIO
	RabbitMQ *RabbitMQ
}

// NewStorage 按配置初始化各组件。Redis 不可达时缓存以 DEGRADED 启动，MinIO/RabbitMQ 失败只记录警告
func NewStorage(ctx context.Context, cfg *config.Config) (*Storage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("配置不能为空")
	}
	s := &Storage{}

	var store KVStore
	if cfg.Redis.Host != "" {
		r, err := NewRedisAdapter(&cfg.Redis)
		if err != nil {
			logger.Warn().Err(err).Msg("初始化Redis客户端失败")
		} else {
			s.Redis = r
			store = r
		}
	}

	opts := []CacheOption{
		WithTTL(cfg.Cache.TTL),
		WithFallbackMaxEntries(cfg.Cache.FallbackMaxEntries),
		WithOpTimeout(cfg.Redis.DialTimeout),
	}
	if cfg.Cache.ReprobeEnabled {
		opts = append(opts, WithReprobe(cfg.Cache.ReprobeMaxInterval))
	}
	s.Cache = NewResultCache(ctx, store, opts...)

	if cfg.MinIO.Endpoint != "" {
		m, err := NewMinIO(ctx, &cfg.MinIO)
		if err != nil {
			logger.Warn().Err(err).Msg("初始化MinIO失败，原始文件不归档")
		} else {
			s.MinIO = m
		}
	}

	if cfg.RabbitMQ.URL != "" {
		mq, err := NewRabbitMQ(&cfg.RabbitMQ)
		if err != nil {
			logger.Warn().Err(err).Msg("初始化RabbitMQ失败，不发布结果事件")
		} else {
			s.RabbitMQ = mq
		}
	}

	return s, nil
}

// Archive 未配置时返回 nil 接口
func (s *Storage) Archive() DocumentArchive {
	if s.MinIO == nil {
		return nil
	}
	return s.MinIO
}

// Events 未配置时返回 nil 接口
func (s *Storage) Events() EventPublisher {
	if s.RabbitMQ == nil {
		return nil
	}
	return s.RabbitMQ
}

// Close 关闭所有连接
func (s *Storage) Close() {
	if s.Cache != nil {
		s.Cache.Close()
	}
	if s.RabbitMQ != nil {
		if err := s.RabbitMQ.Close(); err != nil {
			logger.Warn().Err(err).Msg("关闭RabbitMQ连接失败")
		}
	}
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			logger.Warn().Err(err).Msg("关闭Redis连接失败")
		}
	}
}
