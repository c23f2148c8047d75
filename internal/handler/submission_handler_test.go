package handler_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/erikwilensky/codecheck/internal/dto"
	"github.com/erikwilensky/codecheck/internal/handler"
	"github.com/erikwilensky/codecheck/internal/service"
)

type contentSubmissionService struct {
	mockSubmissionService
}

func (s *contentSubmissionService) Get(_ context.Context, id uint) (dto.SubmissionResponse, error) {
	if id != 3 {
		return dto.SubmissionResponse{}, service.ErrSubmissionNotFound
	}
	return dto.SubmissionResponse{ID: id, FileName: "calc.py", FileContent: "print(1)\n"}, nil
}

func TestSubmissionHandlerGetAndDownload(t *testing.T) {
	app := fiber.New()
	handler.NewSubmissionHandler(&contentSubmissionService{}, testLogger()).Register(app.Group("/api/submissions"))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/submissions/3", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var payload struct {
		Data dto.SubmissionResponse `json:"data"`
	}
	decodeResponse(t, resp, &payload)
	require.Equal(t, "print(1)\n", payload.Data.FileContent)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/submissions/3/download", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, `attachment; filename="calc.py"`, resp.Header.Get(fiber.HeaderContentDisposition))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "print(1)\n", string(body))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/submissions/4/download", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
