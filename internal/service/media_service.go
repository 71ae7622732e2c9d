package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/monquest-api/internal/dto"
	"github.com/noah-isme/monquest-api/internal/models"
	"github.com/noah-isme/monquest-api/internal/observability"
	"github.com/noah-isme/monquest-api/internal/repository"
)

var (
	// ErrUploadMissing indicates the request carried no file.
	ErrUploadMissing = errors.New("file is required")
	// ErrUploadTooLarge indicates the payload exceeded the configured limit.
	ErrUploadTooLarge = errors.New("file exceeds maximum allowed size")
	// ErrUploadTypeNotAllowed indicates the MIME type is not permitted.
	ErrUploadTypeNotAllowed = errors.New("file type not allowed")
	// ErrUploadsDisabled indicates no storage backend is configured.
	ErrUploadsDisabled = errors.New("media uploads are not configured")
)

// FileStorage abstracts upload destinations.
type FileStorage interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

// MediaService validates and stores media embedded from the markdown editor.
type MediaService interface {
	Upload(ctx context.Context, file *multipart.FileHeader, userID string) (dto.MediaResponse, error)
}

type mediaService struct {
	storage FileStorage
	repo    repository.MediaRepository
	logger  zerolog.Logger
	maxSize int64
	tracer  trace.Tracer
}

// NewMediaService constructs a media service. A nil storage disables uploads.
func NewMediaService(storage FileStorage, repo repository.MediaRepository, maxSizeMB int, logger zerolog.Logger) MediaService {
	if maxSizeMB <= 0 {
		maxSizeMB = 10
	}
	return &mediaService{
		storage: storage,
		repo:    repo,
		logger:  logger.With().Str("component", "media_service").Logger(),
		maxSize: int64(maxSizeMB) * 1024 * 1024,
		tracer:  otel.Tracer("github.com/noah-isme/monquest-api/internal/service/media"),
	}
}

func (s *mediaService) Upload(ctx context.Context, file *multipart.FileHeader, userID string) (dto.MediaResponse, error) {
	ctx, span := s.tracer.Start(ctx, "media.store")
	defer span.End()

	start := time.Now()
	defer func() {
		observability.UploadLatency().Observe(time.Since(start).Seconds())
	}()

	fail := func(reason string, err error) (dto.MediaResponse, error) {
		if reason != "" {
			observability.UploadRejected().WithLabelValues(reason).Inc()
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return dto.MediaResponse{}, err
	}

	if s.storage == nil {
		return fail("disabled", ErrUploadsDisabled)
	}
	if file == nil {
		return fail("", ErrUploadMissing)
	}

	span.SetAttributes(
		attribute.String("media.original_name", strings.TrimSpace(file.Filename)),
		attribute.Int64("media.request_size", file.Size),
		attribute.Int64("media.max_bytes", s.maxSize),
	)

	if file.Size > s.maxSize {
		return fail("size", ErrUploadTooLarge)
	}

	handle, err := file.Open()
	if err != nil {
		return fail("", err)
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(handle, s.maxSize+1)); err != nil {
		return fail("", err)
	}
	if int64(buf.Len()) > s.maxSize {
		return fail("size", ErrUploadTooLarge)
	}

	detected := mimetype.Detect(buf.Bytes())
	fileType := normalizeMime(detected.String())
	span.SetAttributes(attribute.String("media.detected_mime", fileType))
	if !isAllowedMedia(fileType) {
		return fail("type", ErrUploadTypeNotAllowed)
	}

	sum := sha256.Sum256(buf.Bytes())
	checksum := hex.EncodeToString(sum[:])

	if existing, err := s.repo.FindByChecksum(ctx, checksum); err == nil {
		s.logger.Debug().Str("checksum", checksum).Msg("media already stored, reusing")
		span.SetAttributes(attribute.Bool("media.deduplicated", true))
		return dto.NewMediaResponse(existing), nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Warn().Err(err).Msg("media checksum lookup failed")
	}

	name := sanitizeFileName(file.Filename, detected.Extension())
	url, err := s.storage.Upload(ctx, name, bytes.NewReader(buf.Bytes()))
	if err != nil {
		return fail("storage", err)
	}

	asset := models.MediaAsset{
		UserID:    strings.TrimSpace(userID),
		FileName:  name,
		URL:       url,
		MimeType:  fileType,
		SizeBytes: int64(buf.Len()),
		Checksum:  checksum,
	}
	if err := s.repo.Create(ctx, &asset); err != nil {
		return fail("", err)
	}

	observability.UploadRequests().WithLabelValues(fileType).Inc()
	span.SetStatus(codes.Ok, "stored")
	s.logger.Info().Str("url", url).Str("mime", fileType).Int64("size", asset.SizeBytes).Msg("media stored")

	return dto.NewMediaResponse(asset), nil
}

func sanitizeFileName(name, detectedExt string) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	base = strings.ToLower(base)
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		if r == '-' || r == '_' {
			return r
		}
		return '-'
	}, base)
	base = strings.Trim(base, "-")
	if base == "" {
		base = fmt.Sprintf("media-%d", time.Now().Unix())
	}
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		ext = detectedExt
	}
	if ext == "" {
		ext = ".bin"
	}
	return base + ext
}

func normalizeMime(m string) string {
	lower := strings.ToLower(strings.TrimSpace(m))
	if idx := strings.Index(lower, ";"); idx >= 0 {
		lower = strings.TrimSpace(lower[:idx])
	}
	return lower
}

func isAllowedMedia(m string) bool {
	switch {
	case strings.HasPrefix(m, "image/"), strings.HasPrefix(m, "video/"):
		return m != "image/svg+xml"
	case m == "application/pdf", m == "text/plain":
		return true
	default:
		return false
	}
}
