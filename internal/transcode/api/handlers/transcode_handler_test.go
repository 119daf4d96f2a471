package handlers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"media_transcode_service/internal/transcode/domain"
	"media_transcode_service/pkg/logger"
	"media_transcode_service/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestMain(m *testing.M) {
	logger.SetNewNop()
	os.Exit(m.Run())
}

type mockUseCase struct {
	mock.Mock
}

func (m *mockUseCase) Submit(ctx context.Context, req domain.SubmitReq) (*domain.SubmitRes, error) {
	args := m.Called(ctx, req)
	if res := args.Get(0); res != nil {
		return res.(*domain.SubmitRes), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUseCase) GetProgress(ctx context.Context, owner, jobID string) (*domain.ProgressRes, error) {
	args := m.Called(ctx, owner, jobID)
	if res := args.Get(0); res != nil {
		return res.(*domain.ProgressRes), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUseCase) ListFiles(ctx context.Context, owner string) ([]domain.FileWithProgress, error) {
	args := m.Called(ctx, owner)
	if res := args.Get(0); res != nil {
		return res.([]domain.FileWithProgress), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUseCase) DeleteFile(ctx context.Context, owner, fileName string) error {
	args := m.Called(ctx, owner, fileName)
	return args.Error(0)
}

func (m *mockUseCase) UploadURL(ctx context.Context, owner, fileName string) (string, error) {
	args := m.Called(ctx, owner, fileName)
	return args.String(0), args.Error(1)
}

func (m *mockUseCase) DownloadURL(ctx context.Context, owner, fileName string) (string, error) {
	args := m.Called(ctx, owner, fileName)
	return args.String(0), args.Error(1)
}

func (m *mockUseCase) ListAllFiles(ctx context.Context) ([]domain.FileRecord, error) {
	args := m.Called(ctx)
	if res := args.Get(0); res != nil {
		return res.([]domain.FileRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

// newTestApp 掛上假的 JWT identity，直接打 handler
func newTestApp(h *TranscodeHandler) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(middlewares.TokenMemberID, "alice")
		return c.Next()
	})
	app.Post("/api/v1/upload", h.Submit)
	app.Get("/api/v1/progress/:jobId", h.GetProgress)
	return app
}

func TestTranscodeHandler_SubmitCreated(t *testing.T) {
	usecase := new(mockUseCase)
	usecase.On("Submit", mock.Anything, domain.SubmitReq{Owner: "alice", FileName: "movie.mov"}).
		Return(&domain.SubmitRes{JobID: "alice_1", FileName: "movie.mov", State: "queued"}, nil)
	app := newTestApp(NewTranscodeHandler(usecase))

	req := httptest.NewRequest("POST", "/api/v1/upload", strings.NewReader(`{"file_name":"movie.mov"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var res domain.SubmitRes
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.Equal(t, "alice_1", res.JobID)
	usecase.AssertExpectations(t)
}

func TestTranscodeHandler_SubmitValidation(t *testing.T) {
	usecase := new(mockUseCase)
	usecase.On("Submit", mock.Anything, mock.Anything).Return(nil, domain.ErrValidation)
	app := newTestApp(NewTranscodeHandler(usecase))

	req := httptest.NewRequest("POST", "/api/v1/upload", strings.NewReader(`{"file_name":""}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestTranscodeHandler_SubmitOverloaded(t *testing.T) {
	usecase := new(mockUseCase)
	usecase.On("Submit", mock.Anything, mock.Anything).Return(nil, domain.ErrOverloaded)
	app := newTestApp(NewTranscodeHandler(usecase))

	req := httptest.NewRequest("POST", "/api/v1/upload", strings.NewReader(`{"file_name":"movie.mov"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "30", resp.Header.Get("Retry-After"))
}

func TestTranscodeHandler_GetProgressNotFound(t *testing.T) {
	usecase := new(mockUseCase)
	usecase.On("GetProgress", mock.Anything, "alice", "alice_404").Return(nil, domain.ErrNotFound)
	app := newTestApp(NewTranscodeHandler(usecase))

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/progress/alice_404", nil))
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
