package handler_test

import (
	"bytes"
	"context"
	"mime/multipart"
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

type mediaServiceStub struct {
	lastUserID string
	response   dto.MediaResponse
	err        error
}

func (m *mediaServiceStub) Upload(_ context.Context, file *multipart.FileHeader, userID string) (dto.MediaResponse, error) {
	if file != nil {
		if _, err := file.Open(); err != nil {
			return dto.MediaResponse{}, err
		}
	}
	m.lastUserID = userID
	if m.err != nil {
		return dto.MediaResponse{}, m.err
	}
	return m.response, nil
}

func newMediaApp(svc service.MediaService) *fiber.App {
	app := fiber.New()
	handler.NewMediaHandler(svc, zerolog.Nop()).Register(app.Group("/api/v1/uploads"))
	return app
}

func multipartRequest(t *testing.T, withFile bool) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	require.NoError(t, writer.WriteField("userId", "user-7"))
	if withFile {
		part, err := writer.CreateFormFile("file", "photo.png")
		require.NoError(t, err)
		_, err = part.Write([]byte("png"))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestMediaHandler_Success(t *testing.T) {
	svc := &mediaServiceStub{response: dto.MediaResponse{
		URL:      "https://cdn.example.com/photo.png",
		FileName: "photo.png",
		MimeType: "image/png",
		Markdown: "![photo.png](https://cdn.example.com/photo.png)",
	}}
	app := newMediaApp(svc)

	resp, err := app.Test(multipartRequest(t, true))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var payload struct {
		envelopeResponse
		Data dto.MediaResponse `json:"data"`
	}
	decodeResponse(t, resp, &payload)
	require.True(t, payload.Success)
	require.Equal(t, "upload successful", payload.Message)
	require.Equal(t, "user-7", svc.lastUserID)
	require.Equal(t, svc.response.Markdown, payload.Data.Markdown)
}

func TestMediaHandler_MissingFile(t *testing.T) {
	app := newMediaApp(&mediaServiceStub{})

	resp, err := app.Test(multipartRequest(t, false))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestMediaHandler_ServiceErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{name: "too large", err: service.ErrUploadTooLarge, status: fiber.StatusRequestEntityTooLarge},
		{name: "bad type", err: service.ErrUploadTypeNotAllowed, status: fiber.StatusBadRequest},
		{name: "disabled", err: service.ErrUploadsDisabled, status: fiber.StatusServiceUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := newMediaApp(&mediaServiceStub{err: tc.err})

			resp, err := app.Test(multipartRequest(t, true))
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)

			var payload envelopeResponse
			decodeResponse(t, resp, &payload)
			require.Equal(t, tc.err.Error(), payload.Message)
		})
	}
}
