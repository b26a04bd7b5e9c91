package bootstrap

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"glossary-review/internal/config"
	"glossary-review/internal/domain"
)

type githubRelease struct {
	TagName string `json:"tag_name"`
	Body    string `json:"body"`
	Assets  []struct {
		Name string `json:"name"`
		URL  string `json:"browser_download_url"`
	} `json:"assets"`
}

// UpdateChecker compares the running version with the latest GitHub release.
type UpdateChecker struct {
	client  *http.Client
	apiBase string
	repo    string
	current string
	timeout time.Duration
}

// NewUpdateChecker creates a checker for the configured release feed.
func NewUpdateChecker(cfg config.UpdateConfig, current string) *UpdateChecker {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &UpdateChecker{
		client:  &http.Client{},
		apiBase: strings.TrimRight(cfg.APIBase, "/"),
		repo:    strings.Trim(cfg.Repository, "/"),
		current: current,
		timeout: timeout,
	}
}

// Check fetches the latest release and reports whether it is newer.
func (u *UpdateChecker) Check(ctx context.Context) (domain.UpdateCheck, error) {
	if u.repo == "" {
		return domain.UpdateCheck{}, fmt.Errorf("update repository is not configured")
	}
	release, err := u.fetchLatest(ctx)
	if err != nil {
		return domain.UpdateCheck{}, err
	}

	info := &domain.ReleaseInfo{
		Version:      strings.TrimSpace(release.TagName),
		ReleaseNotes: release.Body,
		DownloadURL:  selectZipAsset(release),
	}
	return domain.UpdateCheck{
		IsAvailable: isNewer(info.Version, u.current),
		Info:        info,
	}, nil
}

func (u *UpdateChecker) fetchLatest(ctx context.Context) (githubRelease, error) {
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	url := fmt.Sprintf("%s/repos/%s/releases/latest", u.apiBase, u.repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return githubRelease{}, fmt.Errorf("build release metadata request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", "glossary-review")

	resp, err := u.client.Do(req)
	if err != nil {
		return githubRelease{}, fmt.Errorf("request release metadata: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return githubRelease{}, fmt.Errorf("release metadata request returned %s", resp.Status)
	}

	var release githubRelease
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return githubRelease{}, fmt.Errorf("decode release metadata: %w", err)
	}
	if strings.TrimSpace(release.TagName) == "" {
		return githubRelease{}, fmt.Errorf("release metadata did not include a tag name")
	}
	return release, nil
}

// selectZipAsset returns the first .zip asset URL, or empty when none exists.
func selectZipAsset(release githubRelease) string {
	for _, asset := range release.Assets {
		name := strings.ToLower(strings.TrimSpace(asset.Name))
		if strings.HasSuffix(name, ".zip") && strings.TrimSpace(asset.URL) != "" {
			return asset.URL
		}
	}
	return ""
}

// isNewer compares dotted numeric versions, ignoring a leading "v".
// A development build is never considered current.
func isNewer(latest, current string) bool {
	if latest == "" {
		return false
	}
	if current == "" || current == "dev" {
		return true
	}
	l, c := versionParts(latest), versionParts(current)
	for i := 0; i < max(len(l), len(c)); i++ {
		var lv, cv int
		if i < len(l) {
			lv = l[i]
		}
		if i < len(c) {
			cv = c[i]
		}
		if lv != cv {
			return lv > cv
		}
	}
	return false
}

func versionParts(v string) []int {
	v = strings.TrimPrefix(strings.TrimSpace(strings.ToLower(v)), "v")
	if i := strings.IndexAny(v, "-+ "); i >= 0 {
		v = v[:i]
	}
	fields := strings.Split(v, ".")
	parts := make([]int, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			break
		}
		parts = append(parts, n)
	}
	return parts
}
