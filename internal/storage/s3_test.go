package storage

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type mockObjectAPI struct {
	putFn    func(ctx context.Context, params *s3.PutObjectInput) (*s3.PutObjectOutput, error)
	deleteFn func(ctx context.Context, params *s3.DeleteObjectInput) (*s3.DeleteObjectOutput, error)
}

func (m *mockObjectAPI) PutObject(ctx context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	return m.putFn(ctx, params)
}

func (m *mockObjectAPI) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	return m.deleteFn(ctx, params)
}

func TestS3Store_Upload(t *testing.T) {
	var got *s3.PutObjectInput
	var body []byte
	api := &mockObjectAPI{
		putFn: func(_ context.Context, params *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
			got = params
			body, _ = io.ReadAll(params.Body)
			return &s3.PutObjectOutput{}, nil
		},
	}
	store := newS3Store(api, Config{Bucket: "sharebnb-images", Region: "us-west-1"})

	url, err := store.Upload(context.Background(), "listings/abc.jpg", []byte("jpeg-bytes"), "image/jpeg")
	if err != nil {
		t.Fatalf("Upload returned error: %v", err)
	}

	if url != "https://sharebnb-images.s3.us-west-1.amazonaws.com/listings/abc.jpg" {
		t.Errorf("url = %q", url)
	}
	if aws.ToString(got.Bucket) != "sharebnb-images" || aws.ToString(got.Key) != "listings/abc.jpg" {
		t.Errorf("bucket/key = %s/%s", aws.ToString(got.Bucket), aws.ToString(got.Key))
	}
	if aws.ToString(got.ContentType) != "image/jpeg" {
		t.Errorf("ContentType = %q", aws.ToString(got.ContentType))
	}
	if string(body) != "jpeg-bytes" || aws.ToInt64(got.ContentLength) != int64(len("jpeg-bytes")) {
		t.Errorf("body = %q, length = %d", body, aws.ToInt64(got.ContentLength))
	}
}

func TestS3Store_Upload_Error(t *testing.T) {
	api := &mockObjectAPI{
		putFn: func(context.Context, *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
			return nil, errors.New("access denied")
		},
	}
	store := newS3Store(api, Config{Bucket: "b", Region: "r"})

	if _, err := store.Upload(context.Background(), "k", []byte("x"), "image/png"); err == nil {
		t.Fatal("expected error")
	}
}

func TestS3Store_Delete(t *testing.T) {
	var deletedKey string
	api := &mockObjectAPI{
		deleteFn: func(_ context.Context, params *s3.DeleteObjectInput) (*s3.DeleteObjectOutput, error) {
			deletedKey = aws.ToString(params.Key)
			return &s3.DeleteObjectOutput{}, nil
		},
	}
	store := newS3Store(api, Config{Bucket: "b", Region: "r"})

	if err := store.Delete(context.Background(), "listings/abc.jpg"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if deletedKey != "listings/abc.jpg" {
		t.Errorf("deleted key = %q", deletedKey)
	}
}

func TestPublicBaseURL(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{name: "explicit", cfg: Config{Bucket: "b", PublicBaseURL: "https://cdn.example.com/"}, want: "https://cdn.example.com"},
		{name: "custom endpoint", cfg: Config{Bucket: "b", Endpoint: "http://minio:9000"}, want: "http://minio:9000/b"},
		{name: "aws", cfg: Config{Bucket: "b", Region: "us-west-1"}, want: "https://b.s3.us-west-1.amazonaws.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := publicBaseURL(tt.cfg); got != tt.want {
				t.Errorf("publicBaseURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewS3Store_RequiresBucket(t *testing.T) {
	if _, err := NewS3Store(context.Background(), Config{Region: "us-west-1"}); err == nil {
		t.Error("expected error for empty bucket")
	}
}
