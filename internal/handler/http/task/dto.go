package task

import (
	"strings"
	"time"

	"provider-mesh/internal/domain/entity"
)

type TaskDTO struct {
	TaskID        string    `json:"task_id"`
	ModelType     string    `json:"model_type"`
	CampaignID    string    `json:"campaign_id,omitempty"`
	ContentID     string    `json:"content_id,omitempty"`
	Status        string    `json:"status"`
	LastCheckedAt time.Time `json:"last_checked_at"`
	CreatedAt     time.Time `json:"created_at"`
}

func toTaskDTO(t *entity.ConcurrentTask) TaskDTO {
	return TaskDTO{
		TaskID:        t.TaskID,
		ModelType:     t.ModelType,
		CampaignID:    t.CampaignID,
		ContentID:     t.ContentID,
		Status:        string(t.Status),
		LastCheckedAt: t.LastCheckedAt,
		CreatedAt:     t.CreatedAt,
	}
}

// taskIDFromPath extracts the task ID path segment. Task IDs are opaque
// strings assigned by the submitting pipeline, not numeric.
func taskIDFromPath(path string) (string, error) {
	id := strings.TrimPrefix(path, "/v1/tasks/")
	if id == "" || strings.Contains(id, "/") {
		return "", &entity.ValidationError{Field: "taskId", Message: "is required"}
	}
	return id, nil
}
