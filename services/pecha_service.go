package services

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/openpecha/pecha-tools-api/config"
)

// ErrPechaNotFound is returned when the OpenPecha API has no archive
// for the requested id
var ErrPechaNotFound = errors.New("pecha not found")

// PechaOutputDir is where downloaded archives are kept by the download
// endpoint. Can be overridden for testing.
var PechaOutputDir = "./output"

// Pecha holds the contents of a parsed pecha archive: the base text
// files, the annotation layers grouped per base, and the metadata
// document.
type Pecha struct {
	ID       string                                `json:"id"`
	Bases    map[string]string                     `json:"bases"`
	Layers   map[string]map[string]json.RawMessage `json:"layers"`
	Metadata map[string]interface{}                `json:"metadata"`
}

// PechaService downloads pecha archives from the OpenPecha API and
// parses them in memory
type PechaService struct {
	apiURL     string
	httpClient *http.Client
}

// NewPechaService creates a new pecha service instance
func NewPechaService(cfg *config.Config) *PechaService {
	return &PechaService{
		apiURL: strings.TrimRight(cfg.OpenPechaAPIURL, "/"),
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// DownloadPecha fetches the zip archive for a pecha and returns its
// raw bytes. A 404 from the API maps to ErrPechaNotFound.
func (s *PechaService) DownloadPecha(pechaID string) ([]byte, error) {
	url := fmt.Sprintf("%s/pecha/%s", s.apiURL, pechaID)

	resp, err := s.httpClient.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to reach the OpenPecha API: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			_ = closeErr
		}
	}()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrPechaNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("OpenPecha API returned status %d", resp.StatusCode)
	}

	archive, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read pecha archive: %w", err)
	}

	return archive, nil
}

// SavePecha downloads a pecha archive and writes it to outputDir as
// <pecha_id>.zip, returning the path. The caller owns the file; there
// is no automatic cleanup, matching the download endpoint's contract.
func (s *PechaService) SavePecha(pechaID, outputDir string) (string, error) {
	archive, err := s.DownloadPecha(pechaID)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	outputPath := filepath.Join(outputDir, pechaID+".zip")
	if err := os.WriteFile(outputPath, archive, 0644); err != nil {
		return "", fmt.Errorf("failed to save pecha archive: %w", err)
	}

	return outputPath, nil
}

// ParsePecha downloads a pecha archive and parses it without touching
// the filesystem
func (s *PechaService) ParsePecha(pechaID string) (*Pecha, error) {
	archive, err := s.DownloadPecha(pechaID)
	if err != nil {
		return nil, err
	}

	return parsePechaArchive(pechaID, archive)
}

// parsePechaArchive reads the OPF layout out of a zip archive:
// metadata.json at the root, base texts under base/, and per-base
// annotation layers under layers/<base>/.
func parsePechaArchive(pechaID string, archive []byte) (*Pecha, error) {
	reader, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, fmt.Errorf("failed to open pecha archive: %w", err)
	}

	pecha := &Pecha{
		ID:       pechaID,
		Bases:    make(map[string]string),
		Layers:   make(map[string]map[string]json.RawMessage),
		Metadata: make(map[string]interface{}),
	}

	for _, file := range reader.File {
		if file.FileInfo().IsDir() {
			continue
		}

		name := normalizeArchivePath(file.Name)
		parts := strings.Split(name, "/")

		switch {
		case name == "metadata.json":
			content, err := readArchiveFile(file)
			if err != nil {
				return nil, err
			}
			if err := json.Unmarshal(content, &pecha.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode pecha metadata: %w", err)
			}

		case len(parts) == 2 && parts[0] == "base" && strings.HasSuffix(parts[1], ".txt"):
			content, err := readArchiveFile(file)
			if err != nil {
				return nil, err
			}
			baseName := strings.TrimSuffix(parts[1], ".txt")
			pecha.Bases[baseName] = string(content)

		case len(parts) == 3 && parts[0] == "layers" && strings.HasSuffix(parts[2], ".json"):
			content, err := readArchiveFile(file)
			if err != nil {
				return nil, err
			}
			baseName := parts[1]
			layerName := strings.TrimSuffix(parts[2], ".json")
			if pecha.Layers[baseName] == nil {
				pecha.Layers[baseName] = make(map[string]json.RawMessage)
			}
			pecha.Layers[baseName][layerName] = json.RawMessage(content)
		}
	}

	if len(pecha.Metadata) == 0 && len(pecha.Bases) == 0 {
		return nil, fmt.Errorf("archive for pecha %s has no recognizable content", pechaID)
	}

	return pecha, nil
}

// normalizeArchivePath drops the archive's single top-level directory
// (archives nest everything under the pecha id) and any ./ prefix
func normalizeArchivePath(name string) string {
	name = path.Clean(strings.ReplaceAll(name, "\\", "/"))
	name = strings.TrimPrefix(name, "./")

	parts := strings.Split(name, "/")
	if len(parts) > 1 && parts[0] != "base" && parts[0] != "layers" && parts[0] != "metadata.json" {
		return strings.Join(parts[1:], "/")
	}
	return name
}

func readArchiveFile(file *zip.File) ([]byte, error) {
	rc, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s in pecha archive: %w", file.Name, err)
	}
	defer func() {
		if closeErr := rc.Close(); closeErr != nil {
			_ = closeErr
		}
	}()

	content, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s from pecha archive: %w", file.Name, err)
	}

	return content, nil
}
