package services

import (
	"fmt"
	"mime/multipart"
	"sync"

	"github.com/openpecha/pecha-tools-api/utils"
)

// MockIconService is a mock implementation of IconService for testing
type MockIconService struct {
	uploadedIcons map[string][]byte // map of icon key to file content
	mu            sync.RWMutex
}

// NewMockIconService creates a new mock icon service
func NewMockIconService() *MockIconService {
	return &MockIconService{
		uploadedIcons: make(map[string][]byte),
	}
}

// SetAsMockForTesting sets this mock as the global icon service instance for testing
func (m *MockIconService) SetAsMockForTesting() {
	SetIconService(m)
}

// UploadIcon simulates uploading an icon
func (m *MockIconService) UploadIcon(fileHeader *multipart.FileHeader) (string, error) {
	if err := utils.ValidateIconFile(fileHeader); err != nil {
		return "", err
	}

	file, err := fileHeader.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	content := make([]byte, fileHeader.Size)
	_, err = file.Read(content)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	iconKey := fmt.Sprintf("icons/mock_%s", fileHeader.Filename)

	m.mu.Lock()
	m.uploadedIcons[iconKey] = content
	m.mu.Unlock()

	return iconKey, nil
}

// GetIconURL simulates generating a URL for an icon
func (m *MockIconService) GetIconURL(iconKey string) (string, error) {
	if iconKey == "" {
		return "", nil
	}

	m.mu.RLock()
	_, exists := m.uploadedIcons[iconKey]
	m.mu.RUnlock()

	if !exists {
		return "", fmt.Errorf("icon not found in mock storage: %s", iconKey)
	}

	return fmt.Sprintf("https://test-bucket.s3.us-east-1.amazonaws.com/%s?mock=true", iconKey), nil
}

// DeleteIcon simulates deleting an icon
func (m *MockIconService) DeleteIcon(iconKey string) error {
	if iconKey == "" {
		return nil
	}

	m.mu.Lock()
	delete(m.uploadedIcons, iconKey)
	m.mu.Unlock()

	return nil
}

// IconExists checks if an icon exists in mock storage
func (m *MockIconService) IconExists(iconKey string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, exists := m.uploadedIcons[iconKey]
	return exists
}

// Clear removes all icons from mock storage
func (m *MockIconService) Clear() {
	m.mu.Lock()
	m.uploadedIcons = make(map[string][]byte)
	m.mu.Unlock()
}
