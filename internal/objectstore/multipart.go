package objectstore

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// MinPartSize is the smallest part the bucket accepts for any part except
// the last one.
const MinPartSize = 5 * 1024 * 1024

// MultipartWriter streams an object of unknown length into the bucket as a
// multipart upload. Write buffers until a full part accumulates; Close
// flushes the remainder and completes the upload. On any failure the caller
// must Abort so the bucket drops the partial parts.
type MultipartWriter struct {
	ctx         context.Context
	api         S3API
	bucket      string
	key         string
	uploadID    string
	buf         bytes.Buffer
	parts       []types.CompletedPart
	partNumber  int32
	written     int64
	done        bool
}

// NewMultipartUpload starts a multipart upload for the given key.
func (c *Client) NewMultipartUpload(ctx context.Context, key, contentType string) (*MultipartWriter, error) {
	in := &s3.CreateMultipartUploadInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	out, err := c.api.CreateMultipartUpload(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("create multipart upload %s: %w", key, err)
	}
	return &MultipartWriter{
		ctx:      ctx,
		api:      c.api,
		bucket:   c.bucket,
		key:      key,
		uploadID: aws.ToString(out.UploadId),
	}, nil
}

// Write buffers p, flushing a part each time the buffer reaches MinPartSize.
func (w *MultipartWriter) Write(p []byte) (int, error) {
	if w.done {
		return 0, fmt.Errorf("write to finished upload %s", w.key)
	}
	n, _ := w.buf.Write(p)
	w.written += int64(n)
	for w.buf.Len() >= MinPartSize {
		if err := w.flushPart(w.buf.Next(MinPartSize)); err != nil {
			return n, err
		}
	}
	return n, nil
}

// Close flushes any buffered remainder as the final part and completes the
// upload. An upload with no written bytes still produces an empty object.
func (w *MultipartWriter) Close() error {
	if w.done {
		return nil
	}
	if w.buf.Len() > 0 || len(w.parts) == 0 {
		if err := w.flushPart(w.buf.Bytes()); err != nil {
			return err
		}
		w.buf.Reset()
	}

	_, err := w.api.CompleteMultipartUpload(w.ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(w.bucket),
		Key:      aws.String(w.key),
		UploadId: aws.String(w.uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: w.parts,
		},
	})
	if err != nil {
		return fmt.Errorf("complete multipart upload %s: %w", w.key, err)
	}
	w.done = true
	return nil
}

// Abort cancels the upload and discards any parts already stored. Safe to
// call after a successful Close, where it is a no-op.
func (w *MultipartWriter) Abort() error {
	if w.done {
		return nil
	}
	w.done = true
	_, err := w.api.AbortMultipartUpload(context.WithoutCancel(w.ctx), &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(w.bucket),
		Key:      aws.String(w.key),
		UploadId: aws.String(w.uploadID),
	})
	if err != nil {
		return fmt.Errorf("abort multipart upload %s: %w", w.key, err)
	}
	return nil
}

// BytesWritten reports the number of bytes accepted so far.
func (w *MultipartWriter) BytesWritten() int64 {
	return w.written
}

func (w *MultipartWriter) flushPart(data []byte) error {
	w.partNumber++
	out, err := w.api.UploadPart(w.ctx, &s3.UploadPartInput{
		Bucket:     aws.String(w.bucket),
		Key:        aws.String(w.key),
		UploadId:   aws.String(w.uploadID),
		PartNumber: aws.Int32(w.partNumber),
		Body:       bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("upload part %d of %s: %w", w.partNumber, w.key, err)
	}
	w.parts = append(w.parts, types.CompletedPart{
		ETag:       out.ETag,
		PartNumber: aws.Int32(w.partNumber),
	})
	return nil
}
