package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/praxia/praxia-go-api/internal/dto"
	"github.com/praxia/praxia-go-api/internal/service"
)

type stubAssessmentService struct {
	submitted dto.AssessmentSubmitRequest
	image     []byte
	err       error
}

func (s *stubAssessmentService) Submit(_ context.Context, payload dto.AssessmentSubmitRequest, image []byte) (dto.AssessmentSubmitResponse, error) {
	s.submitted = payload
	s.image = image
	if s.err != nil {
		return dto.AssessmentSubmitResponse{}, s.err
	}
	return dto.AssessmentSubmitResponse{AttemptID: 42, State: "pending"}, nil
}

func (s *stubAssessmentService) Process(context.Context, uint) error { return nil }

func (s *stubAssessmentService) GetAttempt(_ context.Context, attemptID uint) (dto.AttemptResponse, error) {
	if s.err != nil {
		return dto.AttemptResponse{}, s.err
	}
	return dto.AttemptResponse{ID: attemptID, State: "completed"}, nil
}

func (s *stubAssessmentService) MarkViewed(_ context.Context, attemptID uint) (dto.AttemptResponse, error) {
	if s.err != nil {
		return dto.AttemptResponse{}, s.err
	}
	return dto.AttemptResponse{ID: attemptID, State: "completed"}, nil
}

func (s *stubAssessmentService) SweepStale(context.Context) (int64, error) { return 0, nil }

func newAssessmentApp(stub *stubAssessmentService) *fiber.App {
	app := fiber.New()
	NewAssessmentHandler(stub, zerolog.Nop()).Register(app.Group("/assessments"))
	return app
}

func multipartSubmit(t *testing.T, fields map[string]string, image []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	if image != nil {
		part, err := writer.CreateFormFile("image", "work.png")
		require.NoError(t, err)
		_, err = part.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestSubmitAcceptsMultipartWork(t *testing.T) {
	stub := &stubAssessmentService{}
	app := newAssessmentApp(stub)

	body, contentType := multipartSubmit(t, map[string]string{
		"student_id":  "7",
		"subject":     "math",
		"topic":       "fractions",
		"grade_level": "5",
	}, []byte{0x89, 'P', 'N', 'G'})

	req := httptest.NewRequest(http.MethodPost, "/assessments", body)
	req.Header.Set("Content-Type", contentType)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode)

	require.Equal(t, uint(7), stub.submitted.StudentID)
	require.Equal(t, "math", stub.submitted.Subject)
	require.Len(t, stub.image, 4)

	var payload struct {
		Success bool                         `json:"success"`
		Data    dto.AssessmentSubmitResponse `json:"data"`
	}
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	require.True(t, payload.Success)
	require.Equal(t, uint(42), payload.Data.AttemptID)
	require.Equal(t, "pending", payload.Data.State)
}

func TestSubmitRequiresImage(t *testing.T) {
	app := newAssessmentApp(&stubAssessmentService{})

	body, contentType := multipartSubmit(t, map[string]string{
		"student_id": "7",
		"subject":    "math",
	}, nil)

	req := httptest.NewRequest(http.MethodPost, "/assessments", body)
	req.Header.Set("Content-Type", contentType)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestSubmitMapsServiceErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"unknown student", service.ErrStudentNotFound, fiber.StatusNotFound},
		{"not an image", service.ErrNotAnImage, fiber.StatusUnprocessableEntity},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := newAssessmentApp(&stubAssessmentService{err: tc.err})
			body, contentType := multipartSubmit(t, map[string]string{
				"student_id": "7",
				"subject":    "math",
			}, []byte{0x89, 'P', 'N', 'G'})

			req := httptest.NewRequest(http.MethodPost, "/assessments", body)
			req.Header.Set("Content-Type", contentType)
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

func TestMarkViewedConflictBeforeTerminal(t *testing.T) {
	app := newAssessmentApp(&stubAssessmentService{err: service.ErrAttemptNotTerminal})

	req := httptest.NewRequest(http.MethodPost, "/assessments/42/viewed", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)
}

func TestGetAttemptRejectsBadID(t *testing.T) {
	app := newAssessmentApp(&stubAssessmentService{})

	req := httptest.NewRequest(http.MethodGet, "/assessments/not-a-number", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
