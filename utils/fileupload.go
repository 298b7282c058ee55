package utils

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
)

const (
	// MaxIconSize is 2MB in bytes
	MaxIconSize = 2 * 1024 * 1024
	// AllowedIconFormat is PNG
	AllowedIconFormat = ".png"
)

var (
	// IconDir is the directory where icons are stored when S3 is not
	// configured (development fallback). Can be overridden for testing.
	IconDir = "./icons"
)

// FileUploadError represents a file upload validation error
type FileUploadError struct {
	Code    string
	Message string
}

func (e *FileUploadError) Error() string {
	return e.Message
}

// ValidateIconFile validates the uploaded icon's format and size
func ValidateIconFile(fileHeader *multipart.FileHeader) error {
	// Check file size
	if fileHeader.Size > MaxIconSize {
		return &FileUploadError{
			Code:    "FILE_TOO_LARGE",
			Message: fmt.Sprintf("Icon size exceeds maximum allowed size of %d MB", MaxIconSize/(1024*1024)),
		}
	}

	// Check file extension
	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if ext != AllowedIconFormat {
		return &FileUploadError{
			Code:    "INVALID_FILE_FORMAT",
			Message: fmt.Sprintf("Only %s files are allowed", AllowedIconFormat),
		}
	}

	return nil
}

// SaveIconFile saves the uploaded icon to the local filesystem.
// Returns the filename relative to iconDir.
func SaveIconFile(fileHeader *multipart.FileHeader, iconDir string) (filename string, err error) {
	if err := os.MkdirAll(iconDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create icon directory: %w", err)
	}

	// Size prefix keeps concurrent uploads of the same filename apart
	filename = fmt.Sprintf("%d_%s",
		fileHeader.Size,
		filepath.Base(fileHeader.Filename))

	fullPath := filepath.Join(iconDir, filename)

	src, err := fileHeader.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer func() {
		if closeErr := src.Close(); closeErr != nil {
			fmt.Printf("warning: failed to close source file: %v\n", closeErr)
		}
	}()

	dst, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to create destination file: %w", err)
	}
	defer func() {
		if closeErr := dst.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close destination file: %w", closeErr)
		}
	}()

	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("failed to save file: %w", err)
	}

	return filename, nil
}
