package domain

// ReleaseInfo describes a published release that can replace the running build.
type ReleaseInfo struct {
	Version      string `json:"version"`
	ReleaseNotes string `json:"release_notes"`
	DownloadURL  string `json:"download_url"`
}

// UpdateCheck is the response of an update check.
type UpdateCheck struct {
	IsAvailable bool         `json:"is_available"`
	Info        *ReleaseInfo `json:"info"`
}
