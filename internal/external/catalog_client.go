// Package external talks to the Modrinth plugin catalog.
package external

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/craftops/fleet/internal/errs"
	"github.com/craftops/fleet/pkg/logger"
)

const catalogUserAgent = "craftops-fleet/1.0 (ops@craftops.dev)"

// CatalogClient queries the plugin catalog for projects and their released
// versions, and downloads plugin artifacts.
type CatalogClient struct {
	httpClient *http.Client
	baseURL    string
}

func NewCatalogClient(baseURL string) *CatalogClient {
	return &CatalogClient{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: baseURL,
	}
}

// CatalogProject is a plugin project in the catalog
type CatalogProject struct {
	ProjectID   string `json:"id"`
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	ProjectType string `json:"project_type"`
}

// CatalogVersion is a released version of a catalog project
type CatalogVersion struct {
	ID            string        `json:"id"`
	ProjectID     string        `json:"project_id"`
	VersionNumber string        `json:"version_number"`
	VersionType   string        `json:"version_type"` // "release", "beta", "alpha"
	GameVersions  []string      `json:"game_versions"`
	Loaders       []string      `json:"loaders"`
	Files         []CatalogFile `json:"files"`
	DatePublished time.Time     `json:"date_published"`
}

// CatalogFile is a downloadable artifact of a version
type CatalogFile struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
	Primary  bool   `json:"primary"`
	Size     int64  `json:"size"`
}

// GetProject resolves a project by slug or ID
func (c *CatalogClient) GetProject(slugOrID string) (*CatalogProject, error) {
	resp, err := c.doRequest(fmt.Sprintf("%s/project/%s", c.baseURL, slugOrID))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var project CatalogProject
	if err := json.NewDecoder(resp.Body).Decode(&project); err != nil {
		return nil, errs.Wrap(errs.KindProtocol, "failed to decode project response", err)
	}
	return &project, nil
}

// GetProjectVersions lists all released versions of a project, newest first
func (c *CatalogClient) GetProjectVersions(projectID string) ([]CatalogVersion, error) {
	resp, err := c.doRequest(fmt.Sprintf("%s/project/%s/version", c.baseURL, projectID))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var versions []CatalogVersion
	if err := json.NewDecoder(resp.Body).Decode(&versions); err != nil {
		return nil, errs.Wrap(errs.KindProtocol, "failed to decode versions response", err)
	}
	return versions, nil
}

// LatestCompatibleVersion returns the newest stable release of projectID that
// supports the given game version, or nil when none matches.
func (c *CatalogClient) LatestCompatibleVersion(projectID, gameVersion string) (*CatalogVersion, error) {
	versions, err := c.GetProjectVersions(projectID)
	if err != nil {
		return nil, err
	}

	for i := range versions {
		v := &versions[i]
		if v.VersionType != "release" {
			continue
		}
		if gameVersionSupported(v, gameVersion) && loaderSupported(v) {
			return v, nil
		}
	}
	return nil, nil
}

// DownloadFile streams an artifact to targetDir and returns the local path.
// The write goes through a temp file so a failed download never leaves a
// truncated jar behind.
func (c *CatalogClient) DownloadFile(file *CatalogFile, targetDir string) (string, error) {
	resp, err := c.doRequest(file.URL)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	targetPath := filepath.Join(targetDir, file.Filename)
	tmpPath := targetPath + ".part"

	out, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("failed to create download file: %w", err)
	}

	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("download failed: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to finalize download: %w", err)
	}

	if err := os.Rename(tmpPath, targetPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to move download into place: %w", err)
	}

	logger.Debug("Downloaded plugin artifact", map[string]interface{}{
		"filename": file.Filename,
		"size":     file.Size,
	})
	return targetPath, nil
}

// PrimaryFile returns the version's primary artifact, falling back to the
// first file when none is flagged.
func PrimaryFile(version *CatalogVersion) *CatalogFile {
	for i := range version.Files {
		if version.Files[i].Primary {
			return &version.Files[i]
		}
	}
	if len(version.Files) > 0 {
		return &version.Files[0]
	}
	return nil
}

func (c *CatalogClient) doRequest(url string) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", catalogUserAgent)
	req.Header.Set("Accept", "application/json")

	logger.Debug("Catalog API request", map[string]interface{}{
		"url": url,
	})

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if os.IsTimeout(err) {
			return nil, errs.Wrap(errs.KindTimeout, "catalog request timed out", err)
		}
		return nil, errs.Wrap(errs.KindConnectionRefused, "catalog request failed", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, errs.New(errs.KindNotFound, fmt.Sprintf("catalog resource not found: %s", url))
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, errs.New(errs.KindProtocol, fmt.Sprintf("catalog returned status %d", resp.StatusCode))
	}
	return resp, nil
}

func gameVersionSupported(v *CatalogVersion, gameVersion string) bool {
	for _, gv := range v.GameVersions {
		if gv == gameVersion {
			return true
		}
	}
	return false
}

// loaderSupported accepts Paper and the loaders Paper can run plugins from
func loaderSupported(v *CatalogVersion) bool {
	for _, loader := range v.Loaders {
		switch loader {
		case "paper", "spigot", "bukkit":
			return true
		}
	}
	return false
}
