// Package image は物件画像の検証、リモート取り込み、オブジェクトストレージへの保存を行う。
package image

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/sharebnb/internal/model"
)

// MaxPerRequest は1リクエストで受け付ける画像の最大数。
const MaxPerRequest = 10

// DefaultMaxBytes は画像1枚あたりのデフォルト上限サイズ。
const DefaultMaxBytes = 5 << 20

// extensions は受け付けるContent-Typeと保存時の拡張子。
var extensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/webp": "webp",
}

// ObjectStore は画像の保存先インターフェース。storage.S3Storeが実装する。
type ObjectStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

// URLGuard はリモート画像URLの検証と安全なHTTPクライアントを提供する。
// security.URLGuardが実装する。
type URLGuard interface {
	Check(rawURL string) error
	Client(timeout time.Duration) *http.Client
}

// UploadRecorder はアップロード結果のメトリクス記録インターフェース。
type UploadRecorder interface {
	RecordImageUpload(result string, size int)
}

// Config は画像パイプラインの設定。
type Config struct {
	MaxBytes     int64
	FetchTimeout time.Duration
}

// Upload はmultipartで受け取った画像ファイル。
type Upload struct {
	Filename string
	Data     []byte
}

// Stored は保存済みオブジェクト。
type Stored struct {
	URL       string
	ObjectKey string
}

// pending は検証済みで保存待ちの画像。
type pending struct {
	data        []byte
	contentType string
}

// Pipeline は画像の検証から保存までを行う。
// storeがnilの場合、画像付きリクエストはバリデーションエラーになる。
type Pipeline struct {
	store    ObjectStore
	guard    URLGuard
	client   *http.Client
	maxBytes int64
	recorder UploadRecorder
}

// NewPipeline はPipelineを生成する。storeとrecorderはnilでもよい。
func NewPipeline(store ObjectStore, guard URLGuard, cfg Config, recorder UploadRecorder) *Pipeline {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 10 * time.Second
	}
	return &Pipeline{
		store:    store,
		guard:    guard,
		client:   guard.Client(cfg.FetchTimeout),
		maxBytes: cfg.MaxBytes,
		recorder: recorder,
	}
}

// Store はアップロード画像とリモート画像URLを検証し、全てをオブジェクトストレージへ保存する。
// 1枚でも失敗した場合は保存済みのオブジェクトを削除してエラーを返す。
func (p *Pipeline) Store(ctx context.Context, uploads []Upload, urls []string) ([]Stored, error) {
	total := len(uploads) + len(urls)
	if total == 0 {
		return nil, nil
	}
	if p.store == nil {
		return nil, model.NewFieldError("images", "image uploads are not enabled")
	}
	if total > MaxPerRequest {
		return nil, model.NewFieldError("images", fmt.Sprintf("at most %d images per request", MaxPerRequest))
	}

	items, err := p.collect(ctx, uploads, urls)
	if err != nil {
		return nil, err
	}

	stored := make([]Stored, 0, len(items))
	for _, item := range items {
		key := fmt.Sprintf("listings/%s.%s", uuid.NewString(), extensions[item.contentType])
		url, err := p.store.Upload(ctx, key, item.data, item.contentType)
		if err != nil {
			p.record("failure", len(item.data))
			p.Discard(ctx, stored)
			return nil, fmt.Errorf("画像の保存に失敗しました: %w", err)
		}
		p.record("success", len(item.data))
		stored = append(stored, Stored{URL: url, ObjectKey: key})
	}
	return stored, nil
}

// collect はアップロード済みデータの検証とリモート画像の取得を行う。
// 保存前に全件を検証し、違反はフィールドごとにまとめて返す。
func (p *Pipeline) collect(ctx context.Context, uploads []Upload, urls []string) ([]pending, error) {
	errs := model.FieldErrors{}
	items := make([]pending, 0, len(uploads)+len(urls))

	for _, u := range uploads {
		contentType, msg := p.inspect(u.Data)
		if msg != "" {
			errs.Add("images", fmt.Sprintf("%s: %s", u.Filename, msg))
			continue
		}
		items = append(items, pending{data: u.Data, contentType: contentType})
	}

	for _, rawURL := range urls {
		if err := p.guard.Check(rawURL); err != nil {
			errs.Add("image_urls", fmt.Sprintf("%s: url is not allowed", rawURL))
			continue
		}
		data, msg := p.fetch(ctx, rawURL)
		if msg != "" {
			errs.Add("image_urls", fmt.Sprintf("%s: %s", rawURL, msg))
			continue
		}
		contentType, msg := p.inspect(data)
		if msg != "" {
			errs.Add("image_urls", fmt.Sprintf("%s: %s", rawURL, msg))
			continue
		}
		items = append(items, pending{data: data, contentType: contentType})
	}

	if err := errs.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// inspect はサイズと内容から判定した画像形式を検証する。
// 問題がある場合はクライアント向けメッセージを返す。
func (p *Pipeline) inspect(data []byte) (string, string) {
	if len(data) == 0 {
		return "", "image is empty"
	}
	if int64(len(data)) > p.maxBytes {
		return "", fmt.Sprintf("image exceeds %d bytes", p.maxBytes)
	}
	contentType := http.DetectContentType(data)
	if _, ok := extensions[contentType]; !ok {
		return "", "unsupported image type (jpeg, png, gif, webp only)"
	}
	return contentType, ""
}

// fetch はリモート画像を上限サイズまで取得する。
func (p *Pipeline) fetch(ctx context.Context, rawURL string) ([]byte, string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "invalid url"
	}

	resp, err := p.client.Do(req)
	if err != nil {
		slog.Warn("リモート画像の取得に失敗しました",
			slog.String("url", rawURL),
			slog.String("error", err.Error()),
		)
		return nil, "could not fetch image"
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Sprintf("remote server returned %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, p.maxBytes+1))
	if err != nil {
		return nil, "could not fetch image"
	}
	if int64(len(data)) > p.maxBytes {
		return nil, fmt.Sprintf("image exceeds %d bytes", p.maxBytes)
	}
	return data, ""
}

// Discard は保存済みオブジェクトをベストエフォートで削除する。
func (p *Pipeline) Discard(ctx context.Context, stored []Stored) {
	keys := make([]string, 0, len(stored))
	for _, s := range stored {
		keys = append(keys, s.ObjectKey)
	}
	p.DeleteObjects(ctx, keys)
}

// DeleteObjects はキーを指定してオブジェクトをベストエフォートで削除する。
// 失敗はログに記録するのみで呼び出し元には返さない。
func (p *Pipeline) DeleteObjects(ctx context.Context, keys []string) {
	if p.store == nil {
		return
	}
	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := p.store.Delete(ctx, key); err != nil {
			slog.Warn("オブジェクトの削除に失敗しました",
				slog.String("object_key", key),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (p *Pipeline) record(result string, size int) {
	if p.recorder != nil {
		p.recorder.RecordImageUpload(result, size)
	}
}
