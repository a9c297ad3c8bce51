package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/glowpix/glow/internal/enhance"
	"github.com/hibiken/asynq"
)

const TypeEnhanceImage = "session:enhance"

type EnhanceImagePayload struct {
	SessionID   string           `json:"session_id"`
	SourceType  string           `json:"source_type"`
	WebhookURL  string           `json:"webhook_url,omitempty"`
	ObjectKey   string           `json:"object_key"`
	Settings    enhance.Settings `json:"settings"`
	RequestedAt time.Time        `json:"requested_at"`
}

func NewEnhanceImageTask(payload EnhanceImagePayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal enhance payload: %w", err)
	}
	return asynq.NewTask(TypeEnhanceImage, body), nil
}

func ParseEnhanceImagePayload(task *asynq.Task) (EnhanceImagePayload, error) {
	var payload EnhanceImagePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return EnhanceImagePayload{}, fmt.Errorf("unmarshal enhance payload: %w", err)
	}
	return payload, nil
}
