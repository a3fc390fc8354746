// 包 messaging 对账问题事件的 Kafka 发布
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/prams2104/opspilot/internal/reconciliation/domain"
	"github.com/prams2104/opspilot/pkg/logger"
)

// Config Kafka 发布配置
type Config struct {
	Brokers      []string
	IssueTopic   string
	MaxRetries   int
	RetryBackoff int
}

// issueEvent 发布到 Kafka 的问题事件载荷
type issueEvent struct {
	IssueType   domain.IssueType `json:"issue_type"`
	TradeID     string           `json:"trade_id,omitempty"`
	Severity    domain.Severity  `json:"severity"`
	Description string           `json:"description"`
	DetectedAt  time.Time        `json:"detected_at"`
}

// KafkaIssuePublisher 将检出的问题作为事件发布到 Kafka
type KafkaIssuePublisher struct {
	writer *kafka.Writer
	topic  string
}

// NewKafkaIssuePublisher 创建发布器
func NewKafkaIssuePublisher(cfg Config) *KafkaIssuePublisher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		AllowAutoTopicCreation: true,
		Compression:            kafka.Gzip,
		RequiredAcks:           kafka.RequireAll,
		MaxAttempts:            cfg.MaxRetries,
		WriteBackoffMin:        time.Duration(cfg.RetryBackoff) * time.Millisecond,
		WriteBackoffMax:        time.Duration(cfg.RetryBackoff*10) * time.Millisecond,
	}

	logger.Info(context.Background(), "Kafka issue publisher created", "brokers", cfg.Brokers, "topic", cfg.IssueTopic)
	return &KafkaIssuePublisher{writer: writer, topic: cfg.IssueTopic}
}

// PublishIssues 批量发布问题事件，消息键为 trade_id 保证同一交易的事件有序
func (p *KafkaIssuePublisher) PublishIssues(ctx context.Context, issues []*domain.ReconciliationIssue) error {
	if len(issues) == 0 {
		return nil
	}

	messages := make([]kafka.Message, 0, len(issues))
	for _, issue := range issues {
		data, err := json.Marshal(issueEvent{
			IssueType:   issue.IssueType,
			TradeID:     issue.TradeID,
			Severity:    issue.Severity,
			Description: issue.Description,
			DetectedAt:  issue.DetectedAt,
		})
		if err != nil {
			return fmt.Errorf("failed to marshal issue event: %w", err)
		}

		messages = append(messages, kafka.Message{
			Topic: p.topic,
			Key:   []byte(issue.TradeID),
			Value: data,
		})
	}

	if err := p.writer.WriteMessages(ctx, messages...); err != nil {
		logger.Error(ctx, "Failed to send issue events",
			"topic", p.topic,
			"count", len(messages),
			"error", err,
		)
		return err
	}

	logger.Debug(ctx, "Issue events published", "topic", p.topic, "count", len(messages))
	return nil
}

// Close 关闭底层 writer
func (p *KafkaIssuePublisher) Close() error {
	return p.writer.Close()
}
