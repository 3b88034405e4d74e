package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"resume-analyzer/internal/config"
	"resume-analyzer/internal/logger"

	amqp "github.com/rabbitmq/amqp091-go"
)

// EventPublisher 发布结果事件
type EventPublisher interface {
	PublishAnalyzed(ctx context.Context, evt ResumeAnalyzedEvent) error
	PublishMatched(ctx context.Context, evt ResumeMatchedEvent) error
}

var _ EventPublisher = (*RabbitMQ)(nil)

// amqpChannel 对 *amqp.Channel 的最小抽象
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitMQ 向 topic exchange 发布事件
type RabbitMQ struct {
	conn       *amqp.Connection
	ch         amqpChannel
	mu         sync.Mutex
	exchange   string
	analyzedRK string
	matchedRK  string
}

// NewRabbitMQ 建立连接并声明 exchange
func NewRabbitMQ(cfg *config.RabbitMQConfig) (*RabbitMQ, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, fmt.Errorf("RabbitMQ URL配置不能为空")
	}
	if cfg.Exchange == "" {
		return nil, fmt.Errorf("exchange名称不能为空")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("无法连接到RabbitMQ服务器: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("无法创建RabbitMQ通道: %w", err)
	}
	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("声明exchange %s 失败: %w", cfg.Exchange, err)
	}

	logger.Info().Str("exchange", cfg.Exchange).Msg("成功连接到RabbitMQ")
	return newRabbitMQ(conn, ch, cfg), nil
}

func newRabbitMQ(conn *amqp.Connection, ch amqpChannel, cfg *config.RabbitMQConfig) *RabbitMQ {
	return &RabbitMQ{
		conn:       conn,
		ch:         ch,
		exchange:   cfg.Exchange,
		analyzedRK: cfg.AnalyzedRoutingKey,
		matchedRK:  cfg.MatchedRoutingKey,
	}
}

// PublishAnalyzed 发布 resume.analyzed 事件
func (r *RabbitMQ) PublishAnalyzed(ctx context.Context, evt ResumeAnalyzedEvent) error {
	return r.publishJSON(ctx, r.analyzedRK, evt)
}

// PublishMatched 发布 resume.matched 事件
func (r *RabbitMQ) PublishMatched(ctx context.Context, evt ResumeMatchedEvent) error {
	return r.publishJSON(ctx, r.matchedRK, evt)
}

func (r *RabbitMQ) publishJSON(ctx context.Context, routingKey string, data any) error {
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("JSON序列化失败: %w", err)
	}

	// amqp.Channel 不支持并发发布
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ch.PublishWithContext(ctx, r.exchange, routingKey, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		Body:         body,
		Timestamp:    time.Now(),
	})
}

// Close 关闭通道和连接
func (r *RabbitMQ) Close() error {
	if r.ch != nil {
		_ = r.ch.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
