package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// WorkflowLogFile is the audit log written by the consumer inside its
// directory.
const WorkflowLogFile = "workflow.log"

// StartWorkflowConsumer connects to the broker, declares the workflow queue
// and appends one line per event to dir/workflow.log.  It reconnects with
// exponential backoff and returns only when ctx is cancelled.  Malformed
// messages are rejected without requeue so the loop never spins on them.
func StartWorkflowConsumer(ctx context.Context, url, dir string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(url)
		if err != nil {
			logger.Warn("workflow-consumer: dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = consumeLoop(ctx, conn, dir, logger)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Warn("workflow-consumer: consume loop ended, reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, dir string, logger *zap.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		logger.Warn("workflow-consumer: set QoS failed", zap.Error(err))
	}
	if _, err := ch.QueueDeclare(WorkflowQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(WorkflowQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := HandleMessage(dir, d.Body); err != nil {
				logger.Warn("workflow-consumer: handle message failed", zap.Error(err))
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// HandleMessage decodes one event body and appends its audit line to
// dir/workflow.log.
func HandleMessage(dir string, body []byte) error {
	var ev WorkflowEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Kind == "" {
		return errors.New("event without kind")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, WorkflowLogFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(FormatLine(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// FormatLine renders ev as a single newline-terminated log line.
func FormatLine(ev WorkflowEvent) string {
	parts := []string{
		fmt.Sprintf("[%s] %s", ev.OccurredAt.UTC().Format(time.RFC3339), ev.Kind),
		fmt.Sprintf("program_id=%d", ev.ProgramID),
	}
	if ev.ScreeningID != 0 {
		parts = append(parts, fmt.Sprintf("screening_id=%d", ev.ScreeningID))
	}
	if ev.ActorID != 0 {
		parts = append(parts, fmt.Sprintf("actor_id=%d", ev.ActorID))
	}
	if ev.From != "" || ev.To != "" {
		parts = append(parts, fmt.Sprintf("%s -> %s", ev.From, ev.To))
	}
	if ev.Kind == KindScreeningAutoRejected {
		parts = append(parts, fmt.Sprintf("count=%d", ev.Count))
	}
	return strings.Join(parts, " | ") + "\n"
}
