package handler_test

import (
	"context"
	"errors"
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

type mockWebhookService struct {
	event     string
	signature string
	body      string
	err       error
}

func (m *mockWebhookService) Handle(_ context.Context, event, signature string, body []byte) (dto.WebhookResult, error) {
	m.event = event
	m.signature = signature
	m.body = string(body)
	if m.err != nil {
		return dto.WebhookResult{}, m.err
	}
	return dto.WebhookResult{Event: event, Status: "success"}, nil
}

func TestWebhookHandlerPassesDelivery(t *testing.T) {
	svc := &mockWebhookService{}
	app := fiber.New()
	handler.NewWebhookHandler(svc, testLogger()).Register(app.Group("/api/webhook"))

	req := httptest.NewRequest(http.MethodPost, "/api/webhook/github", strings.NewReader(`{"ref":"refs/heads/main"}`))
	req.Header.Set("X-GitHub-Event", "push")
	req.Header.Set("X-Hub-Signature-256", "sha256=abc")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "webhook success", decodeEnvelope(t, resp).Message)
	require.Equal(t, "push", svc.event)
	require.Equal(t, "sha256=abc", svc.signature)
	require.Equal(t, `{"ref":"refs/heads/main"}`, svc.body)
}

func TestWebhookHandlerMapsErrors(t *testing.T) {
	cases := map[error]int{
		service.ErrInvalidSignature: fiber.StatusUnauthorized,
		service.ErrInvalidPayload:   fiber.StatusBadRequest,
		errors.New("boom"):          fiber.StatusInternalServerError,
	}
	for svcErr, status := range cases {
		t.Run(svcErr.Error(), func(t *testing.T) {
			app := fiber.New()
			handler.NewWebhookHandler(&mockWebhookService{err: svcErr}, testLogger()).Register(app.Group("/api/webhook"))

			resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/webhook/github", strings.NewReader("{}")))
			require.NoError(t, err)
			require.Equal(t, status, resp.StatusCode)
		})
	}
}
