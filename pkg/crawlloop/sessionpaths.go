package crawlloop

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// SessionPaths is every directory CrawlLoop and its collaborators write
// under for one run, rooted at a single session directory templated with
// the device name/id and the run's start time.
type SessionPaths struct {
	Root            string
	Screenshots     string
	Annotated       string
	XML             string
	OCR             string
	Database        string
	Logs            string
	Reports         string
	Video           string
	Pcap            string
	DatabaseFile    string
	CredentialsFile string
}

var unsafePathChars = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// sanitizeForPath collapses anything not safe for a path segment into "_".
func sanitizeForPath(s string) string {
	s = unsafePathChars.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}

// ResolveSessionPaths builds the on-disk layout for one run under baseDir,
// naming the session directory from the device identifier and the run's
// start time so concurrent runs against different devices never collide.
func ResolveSessionPaths(baseDir, deviceID string, startedAt time.Time) (SessionPaths, error) {
	name := fmt.Sprintf("%s_%s", sanitizeForPath(deviceID), startedAt.UTC().Format("20060102T150405Z"))
	root := filepath.Join(baseDir, name)

	p := SessionPaths{
		Root:        root,
		Screenshots: filepath.Join(root, "screenshots"),
		Annotated:   filepath.Join(root, "annotated_screenshots"),
		XML:         filepath.Join(root, "xml"),
		OCR:         filepath.Join(root, "ocr"),
		Database:    filepath.Join(root, "database"),
		Logs:        filepath.Join(root, "logs"),
		Reports:     filepath.Join(root, "reports"),
		Video:       filepath.Join(root, "video"),
		Pcap:        filepath.Join(root, "pcap"),
	}

	for _, dir := range []string{p.Root, p.Screenshots, p.Annotated, p.XML, p.OCR, p.Database, p.Logs, p.Reports, p.Video, p.Pcap} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return SessionPaths{}, fmt.Errorf("crawlloop: create session dir %s: %w", dir, err)
		}
	}

	p.DatabaseFile = filepath.Join(p.Database, "run.db")
	return p, nil
}
