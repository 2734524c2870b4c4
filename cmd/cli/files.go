package main

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/bekovrafik/DreamColor/internal/api"
)

// readImage loads an image file and guesses its MIME type from the extension.
func readImage(path string) (api.Image, error) {
	data, err := readAll(path)
	if err != nil {
		return api.Image{}, err
	}
	if len(data) == 0 {
		return api.Image{}, fmt.Errorf("%s: empty image", path)
	}
	mt := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = mt[:i]
	}
	if !strings.HasPrefix(mt, "image/") {
		mt = http.DetectContentType(data)
	}
	return api.Image{Data: data, MIMEType: mt}, nil
}

func extFor(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	}
	if exts, _ := mime.ExtensionsByType(mimeType); len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}

// writeImages writes imgs as prefix-01.ext, prefix-02.ext, ... into dir.
func writeImages(dir, prefix string, imgs []api.Image) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(imgs))
	for i, img := range imgs {
		name := fmt.Sprintf("%s-%02d%s", prefix, i+1, extFor(img.MIMEType))
		if len(imgs) == 1 && prefix == "cover" {
			name = prefix + extFor(img.MIMEType)
		}
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, img.Data, 0o644); err != nil {
			return paths, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

// download fetches path from the daemon's HTTP surface into dst.
func (s *session) download(path, dst string) error {
	scheme := "http"
	if s.useTLS {
		scheme = "https"
	}
	req, err := http.NewRequestWithContext(s.ctx, http.MethodGet, scheme+"://"+s.httpAddr+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	hc := s.http
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("http %s", resp.Status)
	}

	tmp := dst + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}

// progressLine renders a job snapshot for the terminal.
func progressLine(j *api.Job) string {
	switch {
	case j.Canceled:
		return "canceled"
	case j.Status == "failed":
		return "failed: " + j.Error
	case j.Status == "completed":
		line := fmt.Sprintf("[100%%] done: %d pages", j.PageCount)
		if len(j.MissingScenes) > 0 {
			line += fmt.Sprintf(", skipped scenes %v", j.MissingScenes)
		}
		if j.Refill {
			line += " (out of credits)"
		}
		return line
	case j.Status == "illustrating":
		return fmt.Sprintf("[%3d%%] drawing scene %d of %d", j.Progress, j.Scene, j.Total)
	}
	return fmt.Sprintf("[%3d%%] %s", j.Progress, j.Status)
}
