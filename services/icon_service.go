package services

import (
	"fmt"
	"mime/multipart"

	"github.com/openpecha/pecha-tools-api/utils"
)

// IconService handles tool icon upload, retrieval, and deletion
type IconService interface {
	// UploadIcon validates and uploads an icon file, returns the storage key
	UploadIcon(fileHeader *multipart.FileHeader) (string, error)

	// GetIconURL generates a URL for accessing an uploaded icon
	GetIconURL(iconKey string) (string, error)

	// DeleteIcon removes an icon from storage
	DeleteIcon(iconKey string) error
}

// S3IconService implements IconService using AWS S3 for storage
type S3IconService struct {
	s3Service S3Interface
}

var iconServiceInstance IconService

// InitIconService initializes the icon service with an S3 backend
func InitIconService(s3Service S3Interface) IconService {
	iconServiceInstance = &S3IconService{
		s3Service: s3Service,
	}
	return iconServiceInstance
}

// GetIconService returns the initialized icon service instance
func GetIconService() IconService {
	return iconServiceInstance
}

// SetIconService sets the icon service instance (primarily for testing)
func SetIconService(service IconService) {
	iconServiceInstance = service
}

// UploadIcon validates and uploads an icon file to S3
func (s *S3IconService) UploadIcon(fileHeader *multipart.FileHeader) (string, error) {
	if err := utils.ValidateIconFile(fileHeader); err != nil {
		return "", err
	}

	s3Key, err := s.s3Service.UploadFile(fileHeader)
	if err != nil {
		return "", fmt.Errorf("failed to upload icon: %w", err)
	}

	return s3Key, nil
}

// GetIconURL generates a presigned URL for accessing an icon
func (s *S3IconService) GetIconURL(iconKey string) (string, error) {
	if iconKey == "" {
		return "", nil
	}

	url, err := s.s3Service.GetPresignedURL(iconKey)
	if err != nil {
		return "", fmt.Errorf("failed to generate icon URL: %w", err)
	}

	return url, nil
}

// DeleteIcon deletes an icon from S3
func (s *S3IconService) DeleteIcon(iconKey string) error {
	if iconKey == "" {
		return nil
	}

	if err := s.s3Service.DeleteFile(iconKey); err != nil {
		return fmt.Errorf("failed to delete icon: %w", err)
	}

	return nil
}
