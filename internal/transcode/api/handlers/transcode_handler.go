package handlers

import (
	"errors"
	"net/http"

	"media_transcode_service/internal/transcode/app"
	"media_transcode_service/internal/transcode/domain"
	"media_transcode_service/pkg/logger"
	"media_transcode_service/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
)

// TranscodeHandler transcode http handler
type TranscodeHandler struct {
	UseCase app.TranscodeUseCase
}

// NewTranscodeHandler create transcode handler
func NewTranscodeHandler(usecase app.TranscodeUseCase) *TranscodeHandler {
	return &TranscodeHandler{
		UseCase: usecase,
	}
}

// owner 從 JWT middleware 塞進 Locals 的 member id
func owner(c *fiber.Ctx) string {
	id, _ := c.Locals(middlewares.TokenMemberID).(string)
	return id
}

// errResponse 把 usecase 的 sentinel error 轉成對應的 http status
func errResponse(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, domain.ErrOverloaded):
		c.Set("Retry-After", "30")
		return c.Status(http.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	default:
		logger.Log.Errorf("transcode handler error:", err)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}
}

type submitBody struct {
	FileName string `json:"file_name"`
}

type deleteFileBody struct {
	Owner    string `json:"owner"`
	FileName string `json:"file_name"`
}

// Submit godoc
// @Summary Submit a transcode job
// @Description Creates a transcode job for an uploaded file and queues it for processing
// @Tags Transcode
// @Accept json
// @Produce json
// @Param body body submitBody true "File to transcode"
// @Success 201 {object} domain.SubmitRes "Job created"
// @Failure 400 {object} string "Bad Request"
// @Failure 503 {object} string "Queue full"
// @Router /api/v1/upload [post]
func (h *TranscodeHandler) Submit(c *fiber.Ctx) error {
	var body submitBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	res, err := h.UseCase.Submit(c.UserContext(), domain.SubmitReq{
		Owner:    owner(c),
		FileName: body.FileName,
	})
	if err != nil {
		return errResponse(c, err)
	}
	return c.Status(http.StatusCreated).JSON(res)
}

// GetProgress godoc
// @Summary Get transcode progress
// @Description Returns the current state and percentage of a transcode job
// @Tags Transcode
// @Produce json
// @Param jobId path string true "Job ID"
// @Success 200 {object} domain.ProgressRes "Progress"
// @Failure 404 {object} string "Job not found"
// @Router /api/v1/progress/{jobId} [get]
func (h *TranscodeHandler) GetProgress(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	res, err := h.UseCase.GetProgress(c.UserContext(), owner(c), jobID)
	if err != nil {
		return errResponse(c, err)
	}
	return c.JSON(res)
}

// ListFiles godoc
// @Summary List uploaded files
// @Description Lists the caller's files with live transcode progress
// @Tags Transcode
// @Produce json
// @Success 200 {array} domain.FileWithProgress "Files"
// @Router /api/v1/files [get]
func (h *TranscodeHandler) ListFiles(c *fiber.Ctx) error {
	files, err := h.UseCase.ListFiles(c.UserContext(), owner(c))
	if err != nil {
		return errResponse(c, err)
	}
	return c.JSON(files)
}

// UploadURL godoc
// @Summary Get a presigned upload URL
// @Description Returns a presigned URL for uploading a file directly to object storage
// @Tags Transcode
// @Produce json
// @Param file_name query string true "File name"
// @Success 200 {object} map[string]string "Presigned URL"
// @Failure 400 {object} string "Bad Request"
// @Router /api/v1/upload-url [get]
func (h *TranscodeHandler) UploadURL(c *fiber.Ctx) error {
	url, err := h.UseCase.UploadURL(c.UserContext(), owner(c), c.Query("file_name"))
	if err != nil {
		return errResponse(c, err)
	}
	return c.JSON(fiber.Map{"url": url})
}

// DownloadURL godoc
// @Summary Get a presigned download URL
// @Description Returns a presigned URL for downloading a file from object storage
// @Tags Transcode
// @Produce json
// @Param file_name query string true "File name"
// @Success 200 {object} map[string]string "Presigned URL"
// @Failure 400 {object} string "Bad Request"
// @Router /api/v1/download-url [get]
func (h *TranscodeHandler) DownloadURL(c *fiber.Ctx) error {
	url, err := h.UseCase.DownloadURL(c.UserContext(), owner(c), c.Query("file_name"))
	if err != nil {
		return errResponse(c, err)
	}
	return c.JSON(fiber.Map{"url": url})
}

// AdminListFiles godoc
// @Summary List all files (admin)
// @Description Lists every user's file records
// @Tags Admin
// @Produce json
// @Success 200 {array} domain.FileRecord "Files"
// @Failure 403 {object} string "Admins only"
// @Router /api/v1/admin/files [get]
func (h *TranscodeHandler) AdminListFiles(c *fiber.Ctx) error {
	files, err := h.UseCase.ListAllFiles(c.UserContext())
	if err != nil {
		return errResponse(c, err)
	}
	return c.JSON(files)
}

// AdminDeleteFile godoc
// @Summary Delete a user's file (admin)
// @Description Removes the object and all related records for the given owner and file
// @Tags Admin
// @Accept json
// @Produce json
// @Param body body deleteFileBody true "Owner and file name"
// @Success 200 {object} map[string]string "Deleted"
// @Failure 403 {object} string "Admins only"
// @Failure 404 {object} string "File not found"
// @Router /api/v1/admin/delete-file [post]
func (h *TranscodeHandler) AdminDeleteFile(c *fiber.Ctx) error {
	var body deleteFileBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if err := h.UseCase.DeleteFile(c.UserContext(), body.Owner, body.FileName); err != nil {
		return errResponse(c, err)
	}
	return c.JSON(fiber.Map{"message": "file deleted"})
}
