package dto

import (
	"time"

	"github.com/praxia/praxia-go-api/internal/models"
)

// AlertResponse represents an alert to API consumers.
type AlertResponse struct {
	ID        uint                   `json:"id"`
	StudentID uint                   `json:"student_id"`
	Type      string                 `json:"type"`
	Severity  string                 `json:"severity"`
	Message   string                 `json:"message"`
	Metrics   map[string]interface{} `json:"metrics,omitempty"`
	Status    string                 `json:"status"`
	ExpiresAt time.Time              `json:"expires_at"`
	CreatedAt time.Time              `json:"created_at"`
}

// NewAlertResponse builds a response DTO from a model.
func NewAlertResponse(alert models.Alert) AlertResponse {
	response := AlertResponse{
		ID:        alert.ID,
		StudentID: alert.StudentID,
		Type:      alert.Type,
		Severity:  alert.Severity,
		Message:   alert.Message,
		Status:    alert.Status,
		ExpiresAt: alert.ExpiresAt,
		CreatedAt: alert.CreatedAt,
	}
	if alert.Metrics != nil {
		response.Metrics = map[string]interface{}(alert.Metrics)
	}
	return response
}

// NewAlertResponseSlice maps a slice of alerts.
func NewAlertResponseSlice(alerts []models.Alert) []AlertResponse {
	responses := make([]AlertResponse, 0, len(alerts))
	for _, alert := range alerts {
		responses = append(responses, NewAlertResponse(alert))
	}
	return responses
}
