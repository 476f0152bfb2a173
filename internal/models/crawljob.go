package models

import "time"

// JobPriority mirrors the priority vocabulary of the .crawljob format.
type JobPriority string

const (
	PriorityHighest JobPriority = "HIGHEST"
	PriorityHigher  JobPriority = "HIGHER"
	PriorityHigh    JobPriority = "HIGH"
	PriorityDefault JobPriority = "DEFAULT"
	PriorityLower   JobPriority = "LOWER"
)

// JobBool is the tri-state boolean of the .crawljob format.
type JobBool string

const (
	JobBoolTrue  JobBool = "TRUE"
	JobBoolFalse JobBool = "FALSE"
	JobBoolUnset JobBool = "UNSET"
)

// CrawlJob is the download packaging entity served at /download/{job_id}.
// Text joins the validated URLs with CRLF; a job is never built from a
// result with zero validated links.
type CrawlJob struct {
	JobID       string `json:"job_id" badgerhold:"key"`
	Text        string `json:"text"`
	PackageName string `json:"package_name"`
	Filename    string `json:"filename,omitempty"`
	Comment     string `json:"comment,omitempty"`
	SourceURL   string `json:"source_url,omitempty"`

	ValidatedURLs []string `json:"validated_urls"`

	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`

	AutoStart            JobBool     `json:"auto_start"`
	AutoConfirm          JobBool     `json:"auto_confirm,omitempty"`
	ForcedStart          JobBool     `json:"forced_start,omitempty"`
	Enabled              JobBool     `json:"enabled"`
	ExtractAfterDownload JobBool     `json:"extract_after_download,omitempty"`
	Chunks               int         `json:"chunks,omitempty"`
	Priority             JobPriority `json:"priority"`
	DownloadFolder       string      `json:"download_folder,omitempty"`
	ExtractPasswords     []string    `json:"extract_passwords,omitempty"`
	DownloadPassword     string      `json:"download_password,omitempty"`

	DeepAnalyseEnabled        JobBool `json:"deep_analyse_enabled,omitempty"`
	AddOfflineLink            JobBool `json:"add_offline_link,omitempty"`
	OverwritePackagizer       JobBool `json:"overwrite_packagizer_enabled,omitempty"`
	SetBeforePackagizer       JobBool `json:"set_before_packagizer_enabled,omitempty"`
}

// Expired reports whether the job is past its TTL at the given instant.
func (j *CrawlJob) Expired(now time.Time) bool {
	return !j.ExpiresAt.IsZero() && now.After(j.ExpiresAt)
}
