package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"hns-alarm/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	EventOpened = "opened"
	EventClosed = "closed"
)

// Publisher 消息发布接口（MQTTClient 实现）
type Publisher interface {
	Publish(ctx context.Context, topic string, qos byte, retained bool, payload []byte) error
}

// AlarmEvent 报警事件消息体
type AlarmEvent struct {
	EventID    string             `json:"event_id"`
	EventType  string             `json:"event_type"` // "opened" 或 "closed"
	OccurredAt string             `json:"occurred_at"`
	Alarm      models.AlarmRecord `json:"alarm"`
}

// AlarmNotifier 将报警的发生与解除发布到 <prefix>/alarms/<obsidx>/<opened|closed>
type AlarmNotifier struct {
	publisher   Publisher
	topicPrefix string
	qos         byte
	logger      *zap.Logger

	now func() time.Time
}

// NewAlarmNotifier 创建报警通知器
func NewAlarmNotifier(publisher Publisher, topicPrefix string, qos byte, logger *zap.Logger) *AlarmNotifier {
	return &AlarmNotifier{
		publisher:   publisher,
		topicPrefix: topicPrefix,
		qos:         qos,
		logger:      logger,
		now:         time.Now,
	}
}

// AlarmOpened 发布报警发生事件
func (n *AlarmNotifier) AlarmOpened(ctx context.Context, alarm models.AlarmRecord) error {
	return n.publish(ctx, EventOpened, alarm)
}

// AlarmClosed 发布报警解除事件
func (n *AlarmNotifier) AlarmClosed(ctx context.Context, alarm models.AlarmRecord) error {
	return n.publish(ctx, EventClosed, alarm)
}

// Topic 构建事件主题
func (n *AlarmNotifier) Topic(obsidx int, eventType string) string {
	return fmt.Sprintf("%s/alarms/%d/%s", n.topicPrefix, obsidx, eventType)
}

func (n *AlarmNotifier) publish(ctx context.Context, eventType string, alarm models.AlarmRecord) error {
	event := AlarmEvent{
		EventID:    uuid.New().String(),
		EventType:  eventType,
		OccurredAt: n.now().Format(time.RFC3339),
		Alarm:      alarm,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal alarm event: %w", err)
	}

	topic := n.Topic(alarm.ObservatoryID, eventType)
	if err := n.publisher.Publish(ctx, topic, n.qos, false, payload); err != nil {
		return err
	}

	n.logger.Debug("Published alarm event",
		zap.String("topic", topic),
		zap.String("event_id", event.EventID),
		zap.Int("alaidx", alarm.AlarmID),
		zap.String("code", alarm.Code.String()),
	)
	return nil
}
