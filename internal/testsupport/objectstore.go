package testsupport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"voxport/internal/objectstore"
)

// FakeS3 is an in-memory bucket implementing the object store API surface.
// FailGets makes GetObject fail N times per key; FailParts makes UploadPart
// reject the given part numbers.
type FakeS3 struct {
	mu        sync.Mutex
	Objects   map[string][]byte
	FailGets  map[string]int
	FailParts map[int32]bool
	parts     map[string]map[int32][]byte
	Aborted   bool
	Completed int
}

// NewFakeS3 returns an empty in-memory bucket.
func NewFakeS3() *FakeS3 {
	return &FakeS3{
		Objects:   map[string][]byte{},
		FailGets:  map[string]int{},
		FailParts: map[int32]bool{},
		parts:     map[string]map[int32][]byte{},
	}
}

// NewFakeObjectStore wraps a FakeS3 in an objectstore client with a
// deterministic presigner.
func NewFakeObjectStore(fake *FakeS3) *objectstore.Client {
	return objectstore.NewWithAPI(fake, fakePresigner{}, "test-bucket", time.Hour)
}

// Put stores an object directly.
func (f *FakeS3) Put(key string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Objects[key] = data
}

// Object returns a stored object's bytes.
func (f *FakeS3) Object(key string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.Objects[key]
	return data, ok
}

func (f *FakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := aws.ToString(in.Key)
	if f.FailGets[key] > 0 {
		f.FailGets[key]--
		return nil, fmt.Errorf("transient failure for %s", key)
	}
	data, ok := f.Objects[key]
	if !ok {
		return nil, fmt.Errorf("no such key %s", key)
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(data)),
		ContentLength: aws.Int64(int64(len(data))),
	}, nil
}

func (f *FakeS3) HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.Objects[aws.ToString(in.Key)]
	if !ok {
		return nil, fmt.Errorf("no such key %s", aws.ToString(in.Key))
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(data)))}, nil
}

func (f *FakeS3) CreateMultipartUpload(ctx context.Context, in *s3.CreateMultipartUploadInput, opts ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := aws.ToString(in.Key)
	f.parts[key] = map[int32][]byte{}
	return &s3.CreateMultipartUploadOutput{UploadId: aws.String("upload-" + key)}, nil
}

func (f *FakeS3) UploadPart(ctx context.Context, in *s3.UploadPartInput, opts ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	key := aws.ToString(in.Key)
	number := aws.ToInt32(in.PartNumber)
	if f.FailParts[number] {
		return nil, fmt.Errorf("part %d rejected", number)
	}
	f.parts[key][number] = data
	return &s3.UploadPartOutput{ETag: aws.String(fmt.Sprintf("etag-%d", number))}, nil
}

func (f *FakeS3) CompleteMultipartUpload(ctx context.Context, in *s3.CompleteMultipartUploadInput, opts ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := aws.ToString(in.Key)
	var assembled []byte
	for _, part := range in.MultipartUpload.Parts {
		assembled = append(assembled, f.parts[key][aws.ToInt32(part.PartNumber)]...)
	}
	f.Objects[key] = assembled
	f.Completed++
	delete(f.parts, key)
	return &s3.CompleteMultipartUploadOutput{}, nil
}

func (f *FakeS3) AbortMultipartUpload(ctx context.Context, in *s3.AbortMultipartUploadInput, opts ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Aborted = true
	delete(f.parts, aws.ToString(in.Key))
	return &s3.AbortMultipartUploadOutput{}, nil
}

type fakePresigner struct{}

func (fakePresigner) PresignGetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	return &v4.PresignedHTTPRequest{URL: "https://signed.test/" + aws.ToString(in.Key)}, nil
}
