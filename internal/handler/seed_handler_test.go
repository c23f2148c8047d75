package handler_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/erikwilensky/codecheck/internal/dto"
	"github.com/erikwilensky/codecheck/internal/handler"
	"github.com/erikwilensky/codecheck/internal/service"
	"github.com/erikwilensky/codecheck/internal/utils"
)

type mockSeedService struct {
	actor string
	err   error
}

func (m *mockSeedService) SeedStudents(_ context.Context, req dto.StudentSeedRequest, actor service.ActivityActor) (dto.StudentSeedResult, error) {
	m.actor = actor.Name
	if m.err != nil {
		return dto.StudentSeedResult{}, m.err
	}
	return dto.StudentSeedResult{Requested: req.Count, Created: int64(req.Count), Codes: service.GenerateStudentCodes(req.Prefix, req.Start, req.Count)}, nil
}

func TestSeedHandlerStudents(t *testing.T) {
	svc := &mockSeedService{}
	app, group := adminApp("/api/admin/seed")
	handler.NewSeedHandler(svc, testLogger()).Register(group)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/seed/students", strings.NewReader(`{"prefix":"STU","start":1,"count":2,"block":4}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var payload struct {
		Data dto.StudentSeedResult `json:"data"`
	}
	decodeResponse(t, resp, &payload)
	require.Equal(t, []string{"STU001", "STU002"}, payload.Data.Codes)
	require.Equal(t, "admin", svc.actor)
}

func TestSeedHandlerErrors(t *testing.T) {
	validationErr := validator.New().Struct(dto.StudentSeedRequest{})
	require.Error(t, validationErr)

	cases := []struct {
		err    error
		status int
	}{
		{validationErr, fiber.StatusBadRequest},
		{errors.New("boom"), fiber.StatusInternalServerError},
	}
	for _, tc := range cases {
		app, group := adminApp("/api/admin/seed")
		handler.NewSeedHandler(&mockSeedService{err: tc.err}, testLogger()).Register(group)

		req := httptest.NewRequest(http.MethodPost, "/api/admin/seed/students", strings.NewReader(`{}`))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		resp, err := app.Test(req)
		require.NoError(t, err)
		require.Equal(t, tc.status, resp.StatusCode)
	}

	app, group := adminApp("/api/admin/seed")
	handler.NewSeedHandler(&mockSeedService{err: validationErr}, testLogger()).Register(group)
	req := httptest.NewRequest(http.MethodPost, "/api/admin/seed/students", strings.NewReader(`{}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	require.NoError(t, err)
	var failure utils.APIResponse
	decodeResponse(t, resp, &failure)
	require.Equal(t, "validation failed", failure.Message)
	require.Contains(t, failure.Errors, utils.FieldError{Field: "Prefix", Rule: "required"})

	app, group = adminApp("/api/admin/seed")
	handler.NewSeedHandler(&mockSeedService{}, testLogger()).Register(group)
	resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/api/admin/seed/students", strings.NewReader(`not json`)))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
