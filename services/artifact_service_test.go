package services

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCapturePageWritesMarkupAndScreenshot(t *testing.T) {
	dir := t.TempDir()
	svc := NewArtifactService(dir, nil)
	page := newScriptedPage("https://example.com/apply", pageStep{body: "resolution dead end"})

	svc.CapturePage(page, "resolver_indeed_job-links")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	var html, png string
	for _, entry := range entries {
		switch filepath.Ext(entry.Name()) {
		case ".html":
			html = entry.Name()
		case ".png":
			png = entry.Name()
		}
	}
	assert.Contains(t, html, "resolver_indeed_job-links")
	assert.Contains(t, png, "resolver_indeed_job-links")
	assert.Equal(t, 1, page.shots)

	markup, err := os.ReadFile(filepath.Join(dir, html))
	require.NoError(t, err)
	assert.Contains(t, string(markup), "resolution dead end")
}

func TestSanitizeLabel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Apply Now: step 2", "apply_now__step_2"},
		{"resolver/generic (submit)", "resolver_generic_submit"},
		{"resolver_indeed_job-links", "resolver_indeed_job-links"},
		{"", "page"},
		{"   ", "page"},
		{strings.Repeat("a", 80), strings.Repeat("a", 60)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizeLabel(tt.in), "in=%q", tt.in)
	}
}
