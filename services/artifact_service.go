package services

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
)

// ArtifactSink is the write-only debug channel. When every resolution
// strategy fails, this is the sole diagnostic left.
type ArtifactSink interface {
	CapturePage(page playwright.Page, label string)
}

// ArtifactService writes timestamped page snapshots to a local directory and,
// when S3 is configured, mirrors them there. Capture failures are logged and
// swallowed: diagnostics must never alter engine behavior.
type ArtifactService struct {
	dir string
	s3  *S3Service // optional
}

func NewArtifactService(dir string, s3 *S3Service) *ArtifactService {
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Printf("Warning: could not create debug artifact dir %s: %v", dir, err)
	}
	return &ArtifactService{dir: dir, s3: s3}
}

// CapturePage records the live page markup and a best-effort screenshot
// under a timestamped name derived from label.
func (a *ArtifactService) CapturePage(page playwright.Page, label string) {
	base := fmt.Sprintf("%s_%s", time.Now().Format("20060102_150405"), sanitizeLabel(label))

	content, err := page.Content()
	if err != nil {
		log.Printf("Warning: could not capture page markup for %s: %v", label, err)
	} else {
		a.store(base+".html", []byte(content), "text/html")
	}

	shot, err := page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(true),
	})
	if err != nil {
		log.Printf("Warning: could not capture screenshot for %s: %v", label, err)
		return
	}
	a.store(base+".png", shot, "image/png")
}

func (a *ArtifactService) store(name string, data []byte, contentType string) {
	path := filepath.Join(a.dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		log.Printf("Warning: could not write debug artifact %s: %v", path, err)
	} else {
		log.Printf("Debug artifact saved: %s", path)
	}

	if a.s3 != nil {
		if _, err := a.s3.UploadBytes("debug/"+name, data, contentType); err != nil {
			log.Printf("Warning: could not mirror debug artifact to S3: %v", err)
		}
	}
}

func sanitizeLabel(label string) string {
	label = strings.ToLower(strings.TrimSpace(label))
	replacer := strings.NewReplacer(" ", "_", "/", "_", ":", "_", "(", "", ")", "", "\"", "", "'", "")
	label = replacer.Replace(label)
	if label == "" {
		label = "page"
	}
	if len(label) > 60 {
		label = label[:60]
	}
	return label
}
