package crawljob

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/scavengarr/scavengarr/internal/models"
)

// The .crawljob wire format: key=value lines with CRLF endings, booleans
// TRUE|FALSE|UNSET, `#` comment lines ignored. Values escape CR and LF so
// the multi-URL text field stays one line; serialize-parse-serialize is
// byte-stable.

const lineEnding = "\r\n"

// Serialize renders the job in the packaging file format. Key order is
// fixed; unset optional keys are omitted entirely.
func Serialize(job *models.CrawlJob) []byte {
	var b strings.Builder

	writeKV := func(key, value string) {
		if value == "" {
			return
		}
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(escapeValue(value))
		b.WriteString(lineEnding)
	}
	writeBool := func(key string, v models.JobBool) {
		if v == "" || v == models.JobBoolUnset {
			return
		}
		writeKV(key, string(v))
	}

	writeKV("text", job.Text)
	writeKV("packageName", job.PackageName)
	writeKV("filename", job.Filename)
	writeKV("comment", job.Comment)
	writeBool("autoStart", job.AutoStart)
	writeBool("autoConfirm", job.AutoConfirm)
	writeBool("forcedStart", job.ForcedStart)
	writeBool("enabled", job.Enabled)
	writeBool("extractAfterDownload", job.ExtractAfterDownload)
	if job.Chunks > 0 {
		writeKV("chunks", strconv.Itoa(job.Chunks))
	}
	writeKV("priority", string(job.Priority))
	writeKV("downloadFolder", job.DownloadFolder)
	if len(job.ExtractPasswords) > 0 {
		encoded, err := json.Marshal(job.ExtractPasswords)
		if err == nil {
			writeKV("extractPasswords", string(encoded))
		}
	}
	writeKV("downloadPassword", job.DownloadPassword)
	writeBool("deepAnalyseEnabled", job.DeepAnalyseEnabled)
	writeBool("addOfflineLink", job.AddOfflineLink)
	writeBool("overwritePackagizerEnabled", job.OverwritePackagizer)
	writeBool("setBeforePackagizerEnabled", job.SetBeforePackagizer)

	return []byte(b.String())
}

// Parse reads the file format back into a CrawlJob. Unknown keys are
// ignored so files written by newer versions still load.
func Parse(data []byte) (*models.CrawlJob, error) {
	job := &models.CrawlJob{}

	for _, line := range strings.Split(string(data), lineEnding) {
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			return nil, fmt.Errorf("malformed crawljob line %q", line)
		}
		value = unescapeValue(value)

		switch key {
		case "text":
			job.Text = value
		case "packageName":
			job.PackageName = value
		case "filename":
			job.Filename = value
		case "comment":
			job.Comment = value
		case "autoStart":
			job.AutoStart = parseBool(value)
		case "autoConfirm":
			job.AutoConfirm = parseBool(value)
		case "forcedStart":
			job.ForcedStart = parseBool(value)
		case "enabled":
			job.Enabled = parseBool(value)
		case "extractAfterDownload":
			job.ExtractAfterDownload = parseBool(value)
		case "chunks":
			if n, err := strconv.Atoi(value); err == nil {
				job.Chunks = n
			}
		case "priority":
			job.Priority = models.JobPriority(value)
		case "downloadFolder":
			job.DownloadFolder = value
		case "extractPasswords":
			var passwords []string
			if err := json.Unmarshal([]byte(value), &passwords); err == nil {
				job.ExtractPasswords = passwords
			}
		case "downloadPassword":
			job.DownloadPassword = value
		case "deepAnalyseEnabled":
			job.DeepAnalyseEnabled = parseBool(value)
		case "addOfflineLink":
			job.AddOfflineLink = parseBool(value)
		case "overwritePackagizerEnabled":
			job.OverwritePackagizer = parseBool(value)
		case "setBeforePackagizerEnabled":
			job.SetBeforePackagizer = parseBool(value)
		}
	}

	if job.Text != "" {
		job.ValidatedURLs = strings.Split(job.Text, "\r\n")
	}
	return job, nil
}

func parseBool(v string) models.JobBool {
	switch v {
	case "TRUE":
		return models.JobBoolTrue
	case "FALSE":
		return models.JobBoolFalse
	default:
		return models.JobBoolUnset
	}
}

var (
	valueEscaper   = strings.NewReplacer("\\", "\\\\", "\r", "\\r", "\n", "\\n")
	valueUnescaper = strings.NewReplacer("\\r", "\r", "\\n", "\n", "\\\\", "\\")
)

func escapeValue(v string) string   { return valueEscaper.Replace(v) }
func unescapeValue(v string) string { return valueUnescaper.Replace(v) }
