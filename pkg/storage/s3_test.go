package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// fakeS3 implements S3Client over a map for tests.
type fakeS3 struct {
	objects map[string][]byte
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[*in.Key]
	if !ok {
		return nil, &smithy.GenericAPIError{Code: "NoSuchKey"}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*in.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, *in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3RoundTrip(t *testing.T) {
	ctx := context.Background()
	client := newFakeS3()
	s := NewS3(client, "recordings", "voxpod")

	data := []byte("meeting audio")
	if err := s.Put(ctx, "dev-1/m1.pcm", bytes.NewReader(data)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, ok := client.objects["voxpod/dev-1/m1.pcm"]; !ok {
		t.Fatal("object not stored under prefixed key")
	}

	rc, err := s.Open(ctx, "dev-1/m1.pcm")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	got, _ := io.ReadAll(rc)
	rc.Close()
	if !bytes.Equal(got, data) {
		t.Errorf("read %q, want %q", got, data)
	}
}

func TestS3OpenMissing(t *testing.T) {
	s := NewS3(newFakeS3(), "recordings", "")
	_, err := s.Open(context.Background(), "nope.pcm")
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Open missing: err = %v, want os.ErrNotExist", err)
	}
}

func TestS3Delete(t *testing.T) {
	ctx := context.Background()
	client := newFakeS3()
	s := NewS3(client, "recordings", "")
	s.Put(ctx, "a.pcm", bytes.NewReader([]byte("x")))
	if err := s.Delete(ctx, "a.pcm"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(client.objects) != 0 {
		t.Error("object not deleted")
	}
	if err := s.Delete(ctx, "a.pcm"); err != nil {
		t.Fatalf("Delete missing: %v", err)
	}
}
