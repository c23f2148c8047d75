package handler_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/erikwilensky/codecheck/internal/dto"
	"github.com/erikwilensky/codecheck/internal/handler"
	"github.com/erikwilensky/codecheck/internal/service"
)

type mockSubmissionService struct {
	lastPayload dto.UploadSubmissionRequest
	lastFile    string
	response    dto.SubmissionResponse
	err         error
}

func (m *mockSubmissionService) Upload(_ context.Context, payload dto.UploadSubmissionRequest, file *multipart.FileHeader) (dto.SubmissionResponse, error) {
	m.lastPayload = payload
	m.lastFile = ""
	if file != nil {
		m.lastFile = file.Filename
	}
	if m.err != nil {
		return dto.SubmissionResponse{}, m.err
	}
	return m.response, nil
}

func (m *mockSubmissionService) ListByStudent(_ context.Context, studentID uint) ([]dto.SubmissionResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	return []dto.SubmissionResponse{{ID: 1, StudentID: studentID, AssignmentName: "calculator"}}, nil
}

func (m *mockSubmissionService) Get(_ context.Context, id uint) (dto.SubmissionResponse, error) {
	if m.err != nil {
		return dto.SubmissionResponse{}, m.err
	}
	return dto.SubmissionResponse{ID: id, AssignmentName: "calculator"}, nil
}

func uploadForm(t *testing.T, fields map[string]string, fileName, content string) (io.Reader, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	if fileName != "" {
		part, err := writer.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func newUploadApp(svc service.SubmissionService) *fiber.App {
	app := fiber.New()
	handler.NewUploadHandler(svc, testLogger()).Register(app.Group("/api/upload"))
	return app
}

func TestUploadHandlerStoresFileSubmission(t *testing.T) {
	svc := &mockSubmissionService{response: dto.SubmissionResponse{ID: 9, AssignmentName: "calculator", FileName: "calc.py"}}
	app := newUploadApp(svc)

	body, contentType := uploadForm(t, map[string]string{"student_id": "S1", "assignment_name": "calculator"}, "calc.py", "print(1)")
	req := httptest.NewRequest(http.MethodPost, "/api/upload/code", body)
	req.Header.Set("Content-Type", contentType)

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var response struct {
		Success bool                   `json:"success"`
		Message string                 `json:"message"`
		Data    dto.SubmissionResponse `json:"data"`
	}
	decodeResponse(t, resp, &response)
	require.True(t, response.Success)
	require.Equal(t, uint(9), response.Data.ID)
	require.Equal(t, "S1", svc.lastPayload.StudentCode)
	require.Equal(t, "calculator", svc.lastPayload.AssignmentName)
	require.Equal(t, "calc.py", svc.lastFile)
}

func TestUploadHandlerAcceptsPastedCode(t *testing.T) {
	svc := &mockSubmissionService{}
	app := newUploadApp(svc)

	body, contentType := uploadForm(t, map[string]string{"student_id": "S1", "assignment_name": "voting", "code_paste": "votes = {}"}, "", "")
	req := httptest.NewRequest(http.MethodPost, "/api/upload/code", body)
	req.Header.Set("Content-Type", contentType)

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.Equal(t, "votes = {}", svc.lastPayload.CodePaste)
	require.Empty(t, svc.lastFile)
}

func TestUploadHandlerMapsErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{service.ErrStudentNotFound, fiber.StatusNotFound},
		{service.ErrAssignmentNotFound, fiber.StatusNotFound},
		{service.ErrStudentInactive, fiber.StatusForbidden},
		{service.ErrNoContent, fiber.StatusBadRequest},
		{service.ErrUnsupportedContent, fiber.StatusBadRequest},
		{fmt.Errorf("wrap: %w", service.ErrUploadTooLarge), fiber.StatusRequestEntityTooLarge},
		{errors.New("database offline"), fiber.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			app := newUploadApp(&mockSubmissionService{err: tc.err})
			body, contentType := uploadForm(t, map[string]string{"student_id": "S1", "assignment_name": "calculator", "code_paste": "x"}, "", "")
			req := httptest.NewRequest(http.MethodPost, "/api/upload/code", body)
			req.Header.Set("Content-Type", contentType)

			resp, err := app.Test(req)
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)
			require.False(t, decodeEnvelope(t, resp).Success)
		})
	}
}

func TestUploadHandlerListsStudentSubmissions(t *testing.T) {
	app := newUploadApp(&mockSubmissionService{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/upload/submissions/4", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.True(t, strings.Contains(string(decodeEnvelope(t, resp).Data), `"student_id":4`))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/upload/submissions/abc", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	missing := newUploadApp(&mockSubmissionService{err: service.ErrStudentNotFound})
	resp, err = missing.Test(httptest.NewRequest(http.MethodGet, "/api/upload/submissions/4", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
