package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/praxia/praxia-go-api/internal/dto"
	"github.com/praxia/praxia-go-api/internal/service"
)

type stubAlertService struct {
	statuses []string
	err      error
}

func (s *stubAlertService) Analyze(_ context.Context, studentID uint) ([]dto.AlertResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []dto.AlertResponse{{ID: 1, StudentID: studentID, Type: "no_activity", Status: "active"}}, nil
}

func (s *stubAlertService) ListAlerts(_ context.Context, studentID uint, statuses []string) ([]dto.AlertResponse, error) {
	s.statuses = statuses
	return []dto.AlertResponse{{ID: 1, StudentID: studentID, Status: "active"}}, nil
}

func (s *stubAlertService) Acknowledge(_ context.Context, alertID uint) (dto.AlertResponse, error) {
	if s.err != nil {
		return dto.AlertResponse{}, s.err
	}
	return dto.AlertResponse{ID: alertID, Status: "acknowledged"}, nil
}

func (s *stubAlertService) Resolve(_ context.Context, alertID uint) (dto.AlertResponse, error) {
	return dto.AlertResponse{ID: alertID, Status: "resolved"}, nil
}

func (s *stubAlertService) Dismiss(_ context.Context, alertID uint) (dto.AlertResponse, error) {
	return dto.AlertResponse{ID: alertID, Status: "dismissed"}, nil
}

func (s *stubAlertService) ExpireOverdue(context.Context) (int64, error) { return 0, nil }

func newAlertApp(stub *stubAlertService) *fiber.App {
	app := fiber.New()
	h := NewAlertHandler(stub, zerolog.Nop())
	h.RegisterStudentRoutes(app.Group("/students"))
	h.RegisterAlertRoutes(app.Group("/alerts"))
	return app
}

func TestAnalyzeReturnsNewAlerts(t *testing.T) {
	app := newAlertApp(&stubAlertService{})

	req := httptest.NewRequest(http.MethodPost, "/students/7/alerts/analyze", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var payload struct {
		Success bool                `json:"success"`
		Data    []dto.AlertResponse `json:"data"`
	}
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	require.True(t, payload.Success)
	require.Len(t, payload.Data, 1)
	require.Equal(t, uint(7), payload.Data[0].StudentID)
}

func TestListAlertsParsesStatusFilter(t *testing.T) {
	stub := &stubAlertService{}
	app := newAlertApp(stub)

	req := httptest.NewRequest(http.MethodGet, "/students/7/alerts?status=active,%20acknowledged", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, []string{"active", "acknowledged"}, stub.statuses)
}

func TestAlertLifecycleRoutes(t *testing.T) {
	app := newAlertApp(&stubAlertService{})

	for path, status := range map[string]string{
		"/alerts/3/acknowledge": "acknowledged",
		"/alerts/3/resolve":     "resolved",
		"/alerts/3/dismiss":     "dismissed",
	} {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		var payload struct {
			Data dto.AlertResponse `json:"data"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
		resp.Body.Close()
		require.Equal(t, status, payload.Data.Status)
	}
}

func TestAcknowledgeUnknownAlert(t *testing.T) {
	app := newAlertApp(&stubAlertService{err: service.ErrAlertNotFound})

	req := httptest.NewRequest(http.MethodPost, "/alerts/99/acknowledge", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
