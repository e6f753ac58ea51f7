// internal/services/storage_service.go
package services

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/abc-portal/internship-credits/internal/config"
	"github.com/abc-portal/internship-credits/internal/utils"
)

type StorageService struct {
	s3Client *s3.S3
	config   *config.Config
}

type UploadResult struct {
	URL      string `json:"url,omitempty"`
	Key      string `json:"key"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
	SHA256   string `json:"sha256"`
}

type UploadOptions struct {
	Folder       string
	MaxSize      int64 // in bytes
	AllowedTypes []string
}

// FileUpload is a file received from a client, independent of transport.
type FileUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

func NewStorageService(config *config.Config) (*StorageService, error) {
	if config.AWS.AccessKeyID == "" || config.AWS.S3Bucket == "" {
		// Return service without S3 for local development
		return &StorageService{config: config}, nil
	}

	// Create AWS session
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(config.AWS.Region),
		Credentials: credentials.NewStaticCredentials(
			config.AWS.AccessKeyID,
			config.AWS.SecretAccessKey,
			"",
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &StorageService{
		s3Client: s3.New(sess),
		config:   config,
	}, nil
}

// ProofUploadOptions governs completion-proof documents.
func (s *StorageService) ProofUploadOptions() UploadOptions {
	maxSize := s.config.Storage.MaxUploadBytes
	if maxSize <= 0 {
		maxSize = 5 << 20
	}
	return UploadOptions{
		Folder:       "proofs",
		MaxSize:      maxSize,
		AllowedTypes: []string{".pdf", ".png", ".jpg", ".jpeg"},
	}
}

func (s *StorageService) Upload(file FileUpload, options UploadOptions) (*UploadResult, error) {
	// Validate file size
	if options.MaxSize > 0 && file.Size > options.MaxSize {
		return nil, validationError(fmt.Sprintf("file size %d bytes exceeds maximum allowed size %d bytes", file.Size, options.MaxSize))
	}

	// Validate file type
	fileExt := strings.ToLower(filepath.Ext(file.Filename))
	if len(options.AllowedTypes) > 0 && !contains(options.AllowedTypes, fileExt) {
		return nil, validationError(fmt.Sprintf("file type %q is not allowed", fileExt))
	}

	// Read at most MaxSize+1 bytes so an understated Size cannot bypass the limit
	reader := file.Body
	if options.MaxSize > 0 {
		reader = io.LimitReader(file.Body, options.MaxSize+1)
	}
	fileBytes, err := io.ReadAll(reader)
	if err != nil {
		return nil, internalError("failed to read file", err)
	}
	if options.MaxSize > 0 && int64(len(fileBytes)) > options.MaxSize {
		return nil, validationError(fmt.Sprintf("file exceeds maximum allowed size %d bytes", options.MaxSize))
	}

	contentType, ok := sniffDocumentType(fileBytes)
	if !ok {
		return nil, validationError("file content is not a PDF, PNG or JPEG document")
	}

	key := s.generateFileName(fileExt, options.Folder)

	if s.s3Client != nil {
		return s.uploadToS3(fileBytes, key, contentType)
	}
	return s.uploadToLocal(fileBytes, key, contentType)
}

func (s *StorageService) uploadToS3(fileBytes []byte, key, contentType string) (*UploadResult, error) {
	params := &s3.PutObjectInput{
		Bucket:        aws.String(s.config.AWS.S3Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(fileBytes),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(fileBytes))),
	}

	if _, err := s.s3Client.PutObject(params); err != nil {
		return nil, internalError("failed to upload to S3", err)
	}

	return &UploadResult{
		URL:      fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.config.AWS.S3Bucket, s.config.AWS.Region, key),
		Key:      key,
		Size:     int64(len(fileBytes)),
		MimeType: contentType,
		SHA256:   utils.HashBytes(fileBytes),
	}, nil
}

func (s *StorageService) uploadToLocal(fileBytes []byte, key, contentType string) (*UploadResult, error) {
	path := filepath.Join(s.config.Storage.LocalDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, internalError("failed to create storage directory", err)
	}
	if err := os.WriteFile(path, fileBytes, 0o644); err != nil {
		return nil, internalError("failed to write file", err)
	}

	logrus.WithFields(logrus.Fields{"key": key, "size": len(fileBytes)}).Debug("Stored file locally")

	return &UploadResult{
		Key:      key,
		Size:     int64(len(fileBytes)),
		MimeType: contentType,
		SHA256:   utils.HashBytes(fileBytes),
	}, nil
}

func (s *StorageService) DeleteFile(key string) error {
	if s.s3Client == nil {
		err := os.Remove(filepath.Join(s.config.Storage.LocalDir, filepath.FromSlash(key)))
		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete local file: %w", err)
		}
		return nil
	}

	_, err := s.s3Client.DeleteObject(&s3.DeleteObjectInput{
		Bucket: aws.String(s.config.AWS.S3Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete file from S3: %w", err)
	}

	return nil
}

// Remote reports whether files live in S3 rather than the local directory.
func (s *StorageService) Remote() bool {
	return s.s3Client != nil
}

// DownloadURL presigns a short-lived S3 link. Local files have no public URL;
// they are streamed by an authenticated handler via LocalPath.
func (s *StorageService) DownloadURL(key string, expiration time.Duration) (string, error) {
	if s.s3Client == nil {
		return "", fmt.Errorf("no remote storage configured")
	}

	req, _ := s.s3Client.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(s.config.AWS.S3Bucket),
		Key:    aws.String(key),
	})

	url, err := req.Presign(expiration)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	return url, nil
}

// LocalPath resolves key inside the local storage directory and checks the
// file exists. Keys escaping the directory are rejected.
func (s *StorageService) LocalPath(key string) (string, error) {
	root, err := filepath.Abs(s.config.Storage.LocalDir)
	if err != nil {
		return "", fmt.Errorf("resolve storage directory: %w", err)
	}
	path := filepath.Join(root, filepath.FromSlash(key))
	if !strings.HasPrefix(path, root+string(filepath.Separator)) {
		return "", fmt.Errorf("key %q escapes storage directory", key)
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("key %q is a directory", key)
	}
	return path, nil
}

func (s *StorageService) generateFileName(ext, folder string) string {
	timestamp := time.Now().Format("20060102")
	filename := fmt.Sprintf("%s_%s%s", timestamp, uuid.New().String(), ext)

	if folder != "" {
		return folder + "/" + filename
	}
	return filename
}

// sniffDocumentType checks the leading magic bytes.
func sniffDocumentType(buffer []byte) (string, bool) {
	switch {
	case bytes.HasPrefix(buffer, []byte("%PDF-")):
		return "application/pdf", true
	case len(buffer) >= 8 && bytes.Equal(buffer[:8], []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'}):
		return "image/png", true
	case len(buffer) >= 3 && buffer[0] == 0xFF && buffer[1] == 0xD8 && buffer[2] == 0xFF:
		return "image/jpeg", true
	}
	return "", false
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
