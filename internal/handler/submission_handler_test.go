package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/monquest-api/internal/dto"
	"github.com/noah-isme/monquest-api/internal/handler"
	"github.com/noah-isme/monquest-api/internal/service"
)

type submissionServiceStub struct {
	last dto.SubmissionCreateRequest
	err  error
}

func (s *submissionServiceStub) Create(_ context.Context, payload dto.SubmissionCreateRequest) (dto.SubmissionResponse, error) {
	s.last = payload
	if s.err != nil {
		return dto.SubmissionResponse{}, s.err
	}
	return dto.SubmissionResponse{ID: "s-1", BountyID: payload.BountyID, HunterAddress: payload.HunterAddress, Content: payload.Content}, nil
}

func TestSubmissionHandler(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{name: "created", status: fiber.StatusCreated},
		{name: "bounty closed", err: service.ErrBountyClosed, status: fiber.StatusBadRequest},
		{name: "bounty missing", err: service.ErrBountyNotFound, status: fiber.StatusNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &submissionServiceStub{err: tc.err}
			app := fiber.New()
			handler.NewSubmissionHandler(svc, zerolog.Nop()).Register(app.Group("/api/v1/submissions"))

			req := httptest.NewRequest(http.MethodPost, "/api/v1/submissions", jsonBody(t, map[string]string{
				"bountyId":      "b-1",
				"hunterAddress": "0xHunter",
				"content":       "![draft](https://cdn.example.com/a.png)",
			}))
			req.Header.Set("Content-Type", "application/json")
			resp, err := app.Test(req)
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)
			require.Equal(t, "b-1", svc.last.BountyID)

			var payload envelopeResponse
			decodeResponse(t, resp, &payload)
			require.Equal(t, tc.err == nil, payload.Success)
		})
	}
}

func TestSubmissionHandler_InvalidBody(t *testing.T) {
	app := fiber.New()
	handler.NewSubmissionHandler(&submissionServiceStub{}, zerolog.Nop()).Register(app.Group("/api/v1/submissions"))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/submissions", jsonBody(t, "not an object"))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
