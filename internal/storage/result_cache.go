package storage

import (
	"container/list"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"resume-analyzer/internal/constants"
	"resume-analyzer/internal/logger"
	"resume-analyzer/internal/metrics"
	"resume-analyzer/internal/tracing"
	"resume-analyzer/internal/types"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/trace"
)

// KVStore 缓存后端需要的最小能力
type KVStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, expiration time.Duration) error
	Ping(ctx context.Context) error
}

// CacheState 缓存后端状态
type CacheState int32

const (
	StateConnected CacheState = iota
	StateDegraded
)

func (s CacheState) String() string {
	if s == StateConnected {
		return "connected"
	}
	return "degraded"
}

const (
	defaultCacheTTL       = 24 * time.Hour
	defaultOpTimeout      = 2 * time.Second
	defaultReprobeMaxWait = 5 * time.Minute
)

// ResultCache 以内容指纹为键缓存解析与匹配结果。
// 后端读写失败时切换到 DEGRADED，此后只使用进程内存储；任何错误都不会返回给调用方。
type ResultCache struct {
	store    KVStore
	state    atomic.Int32
	fallback *fallbackStore

	ttl        time.Duration
	opTimeout  time.Duration
	reprobe    bool
	reprobeMax time.Duration

	probing   atomic.Bool
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// CacheOption 配置 ResultCache
type CacheOption func(*ResultCache)

// WithTTL 条目过期时间
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *ResultCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithFallbackMaxEntries 进程内存储上限，0 表示不限制
func WithFallbackMaxEntries(n int) CacheOption {
	return func(c *ResultCache) {
		if n >= 0 {
			c.fallback.maxEntries = n
		}
	}
}

// WithOpTimeout 单次后端操作超时
func WithOpTimeout(d time.Duration) CacheOption {
	return func(c *ResultCache) {
		if d > 0 {
			c.opTimeout = d
		}
	}
}

// WithReprobe 降级后按指数退避探测后端，成功则恢复 CONNECTED
func WithReprobe(maxInterval time.Duration) CacheOption {
	return func(c *ResultCache) {
		c.reprobe = true
		if maxInterval > 0 {
			c.reprobeMax = maxInterval
		}
	}
}

// NewResultCache 初始探测成功则为 CONNECTED，store 为 nil 或探测失败则为 DEGRADED
func NewResultCache(ctx context.Context, store KVStore, opts ...CacheOption) *ResultCache {
	c := &ResultCache{
		store:      store,
		fallback:   newFallbackStore(10000),
		ttl:        defaultCacheTTL,
		opTimeout:  defaultOpTimeout,
		reprobeMax: defaultReprobeMaxWait,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())

	if store == nil {
		c.degrade(ctx, errors.New("no backing store configured"))
		return c
	}

	pingCtx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()
	if err := store.Ping(pingCtx); err != nil {
		c.degrade(ctx, fmt.Errorf("initial ping: %w", err))
		return c
	}
	metrics.SetCacheDegraded(false)
	logger.Info().Msg("结果缓存已连接到 Redis")
	return c
}

// State 当前状态
func (c *ResultCache) State() CacheState {
	return CacheState(c.state.Load())
}

// FallbackLen 进程内存储中的条目数
func (c *ResultCache) FallbackLen() int {
	return c.fallback.len()
}

// Close 停止后台探测
func (c *ResultCache) Close() {
	c.closeOnce.Do(func() {
		c.cancel()
		c.wg.Wait()
	})
}

// Get 返回缓存值。后端未命中或出错时查询进程内存储。调用方 ctx 已结束时不降级
func (c *ResultCache) Get(ctx context.Context, key string) (string, bool) {
	if c.State() == StateConnected {
		opCtx, cancel := context.WithTimeout(ctx, c.opTimeout)
		val, err := c.store.Get(opCtx, key)
		cancel()
		switch {
		case err == nil:
			return val, true
		case errors.Is(err, ErrNotFound):
		case ctx.Err() != nil:
			// 调用方已取消或超时，不代表 Redis 故障
			logger.Ctx(ctx).Debug().Err(err).Str("key", tracing.SafeRedisKey(key)).Msg("请求已结束，跳过 Redis 读取")
		default:
			c.degrade(ctx, fmt.Errorf("get %s: %w", tracing.SafeRedisKey(key), err))
		}
	}
	return c.fallback.get(key, time.Now())
}

// Put 写入缓存。后端写失败时降级，值仍写入进程内存储。调用方 ctx 已结束时不降级
func (c *ResultCache) Put(ctx context.Context, key, value string) {
	if c.State() == StateConnected {
		opCtx, cancel := context.WithTimeout(ctx, c.opTimeout)
		err := c.store.Set(opCtx, key, value, c.ttl)
		cancel()
		switch {
		case err == nil:
			return
		case ctx.Err() != nil:
			logger.Ctx(ctx).Debug().Err(err).Str("key", tracing.SafeRedisKey(key)).Msg("请求已结束，值只写入进程内存储")
		default:
			c.degrade(ctx, fmt.Errorf("set %s: %w", tracing.SafeRedisKey(key), err))
		}
	}
	c.fallback.put(key, value, time.Now().Add(c.ttl))
}

// GetResume 按简历指纹读取解析结果
func (c *ResultCache) GetResume(ctx context.Context, resumeID string) (*types.ResumeRecord, bool) {
	var record types.ResumeRecord
	if !c.getJSON(ctx, ResumeKey(resumeID), &record) {
		metrics.CacheMiss("resume")
		return nil, false
	}
	metrics.CacheHit("resume")
	return &record, true
}

// PutResume 写入解析结果
func (c *ResultCache) PutResume(ctx context.Context, resumeID string, record *types.ResumeRecord) {
	c.putJSON(ctx, ResumeKey(resumeID), record)
}

// GetMatch 按 (简历指纹, JD 指纹) 读取匹配结果
func (c *ResultCache) GetMatch(ctx context.Context, resumeID, jobID string) (*types.MatchResult, bool) {
	var result types.MatchResult
	if !c.getJSON(ctx, MatchKey(resumeID, jobID), &result) {
		metrics.CacheMiss("match")
		return nil, false
	}
	metrics.CacheHit("match")
	return &result, true
}

// PutMatch 写入匹配结果
func (c *ResultCache) PutMatch(ctx context.Context, resumeID, jobID string, result *types.MatchResult) {
	c.putJSON(ctx, MatchKey(resumeID, jobID), result)
}

// ResumeKey 简历缓存键
func ResumeKey(resumeID string) string {
	return fmt.Sprintf(constants.KeyResumeData, resumeID)
}

// MatchKey 匹配结果缓存键
func MatchKey(resumeID, jobID string) string {
	return fmt.Sprintf(constants.KeyResumeMatch, resumeID, jobID)
}

func (c *ResultCache) getJSON(ctx context.Context, key string, out any) bool {
	raw, ok := c.Get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("key", tracing.SafeRedisKey(key)).Msg("缓存值无法反序列化，按未命中处理")
		return false
	}
	return true
}

func (c *ResultCache) putJSON(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("key", tracing.SafeRedisKey(key)).Msg("缓存值序列化失败，跳过写入")
		return
	}
	c.Put(ctx, key, string(data))
}

// degrade CONNECTED -> DEGRADED，只有首次切换会记录日志
func (c *ResultCache) degrade(ctx context.Context, reason error) {
	if !c.state.CompareAndSwap(int32(StateConnected), int32(StateDegraded)) {
		return
	}
	metrics.SetCacheDegraded(true)
	tracing.RecordDegradation(trace.SpanFromContext(ctx), reason)
	logger.Warn().Err(reason).Msg("Redis 不可用，结果缓存切换到进程内存储")

	if c.reprobe && c.store != nil {
		c.startReprobe()
	}
}

func (c *ResultCache) startReprobe() {
	if !c.probing.CompareAndSwap(false, true) {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		b := backoff.NewExponentialBackOff()
		b.MaxInterval = c.reprobeMax
		b.MaxElapsedTime = 0

		ping := func() error {
			ctx, cancel := context.WithTimeout(c.ctx, c.opTimeout)
			defer cancel()
			return c.store.Ping(ctx)
		}
		notify := func(err error, next time.Duration) {
			logger.Debug().Err(err).Dur("next", next).Msg("Redis 探测失败")
		}
		err := backoff.RetryNotify(ping, backoff.WithContext(b, c.ctx), notify)
		c.probing.Store(false)
		if err != nil {
			return
		}
		c.state.Store(int32(StateConnected))
		metrics.SetCacheDegraded(false)
		logger.Info().Msg("Redis 恢复，结果缓存切换回 CONNECTED")
	}()
}

// fallbackStore 进程内存储：超出上限时淘汰最早写入的条目，过期条目在读取时删除
type fallbackStore struct {
	mu         sync.Mutex
	maxEntries int
	items      map[string]*list.Element
	order      *list.List
}

type fallbackEntry struct {
	key       string
	value     string
	expiresAt time.Time
}

func newFallbackStore(maxEntries int) *fallbackStore {
	return &fallbackStore{
		maxEntries: maxEntries,
		items:      make(map[string]*list.Element),
		order:      list.New(),
	}
}

func (f *fallbackStore) get(key string, now time.Time) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	el, ok := f.items[key]
	if !ok {
		return "", false
	}
	entry := el.Value.(*fallbackEntry)
	if !entry.expiresAt.IsZero() && now.After(entry.expiresAt) {
		f.order.Remove(el)
		delete(f.items, key)
		return "", false
	}
	return entry.value, true
}

// put 覆盖已有条目时保留其插入位置
func (f *fallbackStore) put(key, value string, expiresAt time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if el, ok := f.items[key]; ok {
		entry := el.Value.(*fallbackEntry)
		entry.value, entry.expiresAt = value, expiresAt
		return
	}
	f.items[key] = f.order.PushBack(&fallbackEntry{key: key, value: value, expiresAt: expiresAt})

	for f.maxEntries > 0 && f.order.Len() > f.maxEntries {
		oldest := f.order.Front()
		f.order.Remove(oldest)
		delete(f.items, oldest.Value.(*fallbackEntry).key)
	}
}

func (f *fallbackStore) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.order.Len()
}
