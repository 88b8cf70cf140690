package workers

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"net/http"
	"path"
	"strings"
	"time"

	"sir_scrooper/models"
	"sir_scrooper/storage"
)

// Uploader archives downloaded gallery bytes to object storage.
type Uploader interface {
	Upload(ctx context.Context, key string, data io.Reader, contentType string) error
}

// ArchiveWorker drains the gallery image queue: download, hash, upload.
type ArchiveWorker struct {
	store      *storage.SQLiteStore
	httpClient *http.Client
	uploader   Uploader
	trigger    chan struct{}
}

func NewArchiveWorker(store *storage.SQLiteStore, httpClient *http.Client, uploader Uploader) *ArchiveWorker {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &ArchiveWorker{
		store:      store,
		httpClient: httpClient,
		uploader:   uploader,
		trigger:    make(chan struct{}, 1),
	}
}

// Trigger requests an immediate batch outside the ticker cadence.
func (w *ArchiveWorker) Trigger() {
	select {
	case w.trigger <- struct{}{}:
	default:
	}
}

// Run processes pending images until the context is cancelled.
func (w *ArchiveWorker) Run(ctx context.Context, batchSize int, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Archive worker stopping")
			return
		case <-ticker.C:
			w.processBatch(ctx, batchSize)
		case <-w.trigger:
			w.processBatch(ctx, batchSize)
		}
	}
}

func (w *ArchiveWorker) processBatch(ctx context.Context, batchSize int) {
	images, err := w.store.GetPendingImages(batchSize)
	if err != nil {
		log.Printf("Archive worker: query error: %v", err)
		return
	}
	if len(images) == 0 {
		return
	}

	log.Printf("Archive worker: processing %d images", len(images))

	var uploaded, failed int
	for i := range images {
		img := &images[i]

		key, hash, err := w.process(ctx, img)
		if err != nil {
			failed++
			log.Printf("Archive worker: failed %s: %v", img.URL, err)

			attempts := img.Attempts + 1
			status := models.ImageStatusPending
			if attempts >= 3 {
				status = models.ImageStatusFailed
			}
			w.store.UpdateImageStatus(img.ID, status, "", "", attempts)
			continue
		}

		if err := w.store.UpdateImageStatus(img.ID, models.ImageStatusUploaded, key, hash, img.Attempts); err != nil {
			failed++
			log.Printf("Archive worker: failed to update image %d: %v", img.ID, err)
			continue
		}
		uploaded++

		// Rate limit between downloads
		select {
		case <-ctx.Done():
			return
		case <-time.After(200 * time.Millisecond):
		}
	}

	if uploaded > 0 || failed > 0 {
		log.Printf("Archive worker: uploaded %d, failed %d", uploaded, failed)
	}
}

func (w *ArchiveWorker) process(ctx context.Context, img *models.GalleryImage) (key, hash string, err error) {
	req, err := http.NewRequestWithContext(ctx, "GET", img.URL, nil)
	if err != nil {
		return "", "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("Accept", "image/*,*/*")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return "", "", fmt.Errorf("download status: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 50*1024*1024))
	if err != nil {
		return "", "", fmt.Errorf("read body: %w", err)
	}

	sum := sha256.Sum256(data)
	hash = hex.EncodeToString(sum[:])

	ext := guessExtension(img.URL, resp.Header.Get("Content-Type"))
	key = fmt.Sprintf("galleries/%s/%s%s", hash[:2], hash, ext)

	if w.uploader != nil {
		contentType := resp.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "image/jpeg"
		}
		if err := w.uploader.Upload(ctx, key, bytes.NewReader(data), contentType); err != nil {
			return "", "", fmt.Errorf("upload: %w", err)
		}
	}

	return key, hash, nil
}

func guessExtension(rawURL, contentType string) string {
	// CDN URLs carry the real extension before the query string
	if i := strings.IndexByte(rawURL, '?'); i >= 0 {
		rawURL = rawURL[:i]
	}
	ext := strings.ToLower(path.Ext(rawURL))
	if isImageExt(ext) {
		return ext
	}

	switch contentType {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}

func isImageExt(ext string) bool {
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp", ".tiff":
		return true
	}
	return false
}

// NoOpUploader drains the reader without uploading, for runs without S3.
type NoOpUploader struct{}

func (u *NoOpUploader) Upload(ctx context.Context, key string, data io.Reader, contentType string) error {
	io.Copy(io.Discard, data)
	return nil
}
