package repository

import (
	"context"
	"encoding/json"
	"time"

	"media_transcode_service/pkg/logger"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// UserActivity 用戶操作紀錄事件
type UserActivity struct {
	Owner     string    `json:"owner"`
	Activity  string    `json:"activity"`
	Timestamp time.Time `json:"timestamp"`
}

// ActivityProducer best-effort 的操作紀錄，broker 掛掉只會掉事件不會影響主流程
type ActivityProducer interface {
	Record(ctx context.Context, owner, activity string)
}

// activityWriteTimeout broker 慢或斷線時最多等這麼久就放棄該筆事件
const activityWriteTimeout = 5 * time.Second

type kafkaActivityProducer struct {
	writer *kafka.Writer
}

// NewKafkaActivityProducer create an ActivityProducer，writer 為 nil 時所有事件直接丟棄
func NewKafkaActivityProducer(writer *kafka.Writer) ActivityProducer {
	return &kafkaActivityProducer{writer: writer}
}

// Record 發布一筆 activity 事件。
// 寫入放到背景 goroutine 並用獨立的短 timeout context，
// request path 不等 batch flush，也不會被斷線的 broker 拖住。
func (p *kafkaActivityProducer) Record(_ context.Context, owner, activity string) {
	if p.writer == nil {
		return
	}

	event := UserActivity{
		Owner:     owner,
		Activity:  activity,
		Timestamp: time.Now(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		logger.Log.Warn("activity event marshal failed", zap.String("owner", owner), zap.Error(err))
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), activityWriteTimeout)
		defer cancel()
		if err := p.writer.WriteMessages(ctx, kafka.Message{
			Key:   []byte(owner),
			Value: data,
		}); err != nil {
			logger.Log.Warn("activity event dropped", zap.String("owner", owner), zap.String("activity", activity), zap.Error(err))
		}
	}()
}
