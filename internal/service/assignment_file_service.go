package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/models"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
	"github.com/noah-isme/lms-api/pkg/storage"
)

// sniffLen matches the prefix mimetype inspects by default.
const sniffLen = 3072

type assignmentFileRepository interface {
	FindByID(ctx context.Context, id string) (*models.AssignmentDetail, error)
	CreateFile(ctx context.Context, f *models.AssignmentFile) error
	FindFile(ctx context.Context, id string) (*models.AssignmentFile, error)
}

// UploadFileInput is a single multipart file bound to an assignment.
type UploadFileInput struct {
	AssignmentID string
	FileName     string
	Size         int64
	Content      io.Reader
}

// AssignmentFileConfig bounds uploads and shapes download links.
type AssignmentFileConfig struct {
	MaxSizeBytes int64
	AllowedMIMEs []string
	DownloadBase string
}

// AssignmentFileService stores assignment attachments and serves them through
// signed, expiring links.
type AssignmentFileService struct {
	repo    assignmentFileRepository
	classes classLookup
	store   storage.FileStore
	signer  *storage.SignedURLSigner
	cfg     AssignmentFileConfig
	allowed map[string]struct{}
	logger  *zap.Logger
}

// NewAssignmentFileService constructs the service.
func NewAssignmentFileService(repo assignmentFileRepository, classes classLookup, store storage.FileStore, signer *storage.SignedURLSigner, cfg AssignmentFileConfig, logger *zap.Logger) *AssignmentFileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxSizeBytes <= 0 {
		cfg.MaxSizeBytes = 20 << 20
	}
	allowed := make(map[string]struct{}, len(cfg.AllowedMIMEs))
	for _, m := range cfg.AllowedMIMEs {
		allowed[strings.ToLower(strings.TrimSpace(m))] = struct{}{}
	}
	return &AssignmentFileService{repo: repo, classes: classes, store: store, signer: signer, cfg: cfg, allowed: allowed, logger: logger}
}

// Upload validates and stores a file for an assignment the actor manages.
func (s *AssignmentFileService) Upload(ctx context.Context, actor *models.JWTClaims, in UploadFileInput) (*models.AssignmentFile, error) {
	if in.AssignmentID == "" || in.Content == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "assignment_id and file are required")
	}
	if in.Size > s.cfg.MaxSizeBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds %d bytes", s.cfg.MaxSizeBytes))
	}

	assignment, err := s.repo.FindByID(ctx, in.AssignmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Internal(err, "failed to load assignment")
	}
	if actor == nil || (actor.Role != models.RoleAdmin && assignment.TeacherID != actor.UserID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the class teacher or an admin may attach files")
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(in.Content, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, appErrors.Internal(err, "failed to read upload")
	}
	head = head[:n]
	if n == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file is empty")
	}

	detected := mimetype.Detect(head)
	contentType, ok := s.allowedType(detected)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file type "+detected.String()+" is not allowed")
	}

	key := fmt.Sprintf("assignments/%s/%s%s", assignment.ID, uuid.NewString(), detected.Extension())
	body := &countingReader{r: io.LimitReader(io.MultiReader(bytes.NewReader(head), in.Content), s.cfg.MaxSizeBytes+1)}
	if err := s.store.Put(ctx, key, body, contentType); err != nil {
		return nil, appErrors.Internal(err, "failed to store file")
	}
	if body.n > s.cfg.MaxSizeBytes {
		s.discard(ctx, key)
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds %d bytes", s.cfg.MaxSizeBytes))
	}

	file := &models.AssignmentFile{
		AssignmentID: assignment.ID,
		FileName:     sanitizeFileName(in.FileName),
		StorageKey:   key,
		MimeType:     contentType,
		SizeBytes:    body.n,
		UploadedBy:   actor.UserID,
	}
	if err := s.repo.CreateFile(ctx, file); err != nil {
		s.discard(ctx, key)
		return nil, appErrors.Internal(err, "failed to record file")
	}

	s.logger.Info("assignment file uploaded",
		zap.String("file_id", file.ID),
		zap.String("assignment_id", assignment.ID),
		zap.String("mime", contentType),
		zap.Int64("size", file.SizeBytes),
	)
	signed := s.SignFiles(actor.UserID, []models.AssignmentFile{*file})
	return &signed[0], nil
}

// SignFiles attaches a download URL valid for subject to each file.
func (s *AssignmentFileService) SignFiles(subject string, files []models.AssignmentFile) []models.AssignmentFile {
	for i := range files {
		token, _, err := s.signer.Generate(files[i].ID, subject)
		if err != nil {
			s.logger.Warn("failed to sign download", zap.String("file_id", files[i].ID), zap.Error(err))
			continue
		}
		files[i].DownloadURL = fmt.Sprintf("%s/assignment-files/%s/download?token=%s", s.cfg.DownloadBase, url.PathEscape(files[i].ID), url.QueryEscape(token))
	}
	return files
}

// Open verifies a download token and returns the file with its content. The
// caller closes the reader.
func (s *AssignmentFileService) Open(ctx context.Context, fileID, token string) (*models.AssignmentFile, io.ReadCloser, error) {
	grant, err := s.signer.Parse(token)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "download link expired")
		}
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "invalid download link")
	}
	if grant.FileID != fileID {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "invalid download link")
	}

	file, err := s.repo.FindFile(ctx, fileID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "file not found")
		}
		return nil, nil, appErrors.Internal(err, "failed to load file")
	}
	rc, err := s.store.Get(ctx, file.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "file content missing")
		}
		return nil, nil, appErrors.Internal(err, "failed to open file")
	}
	s.logger.Debug("assignment file downloaded", zap.String("file_id", fileID), zap.String("subject", grant.Subject))
	return file, rc, nil
}

func (s *AssignmentFileService) allowedType(detected *mimetype.MIME) (string, bool) {
	for m := detected; m != nil; m = m.Parent() {
		base := strings.ToLower(strings.TrimSpace(strings.SplitN(m.String(), ";", 2)[0]))
		if len(s.allowed) == 0 {
			return base, true
		}
		if _, ok := s.allowed[base]; ok {
			return base, true
		}
	}
	return "", false
}

func (s *AssignmentFileService) discard(ctx context.Context, key string) {
	if err := s.store.Delete(ctx, key); err != nil {
		s.logger.Warn("failed to discard stored file", zap.String("key", key), zap.Error(err))
	}
}

func sanitizeFileName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f || r == '"' {
			return -1
		}
		return r
	}, name)
	if name == "" || name == "." || name == "/" {
		return "file"
	}
	if len(name) > 255 {
		name = name[:255]
	}
	return name
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
