package niiconvert

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/pfx"
)

const gsPrefix = "gs://"

func IsGoogleStoragePath(path string) bool {
	return strings.HasPrefix(path, gsPrefix)
}

// SplitGoogleStoragePath breaks gs://bucket/path/to/object into its bucket and
// object name.
func SplitGoogleStoragePath(path string) (bucket, object string, err error) {
	pathParts := strings.SplitN(strings.TrimPrefix(path, gsPrefix), "/", 2)
	if len(pathParts) != 2 || pathParts[0] == "" || pathParts[1] == "" {
		return "", "", fmt.Errorf("Tried to split your google storage path into bucket and object, but got %d part(s): %v", len(pathParts), pathParts)
	}

	return pathParts[0], pathParts[1], nil
}

// NewStorageClientIfNeeded returns a client only when one of the paths lives
// in Google Storage, so purely local runs never need credentials. The caller
// closes a non-nil client.
func NewStorageClientIfNeeded(ctx context.Context, paths ...string) (*storage.Client, error) {
	for _, path := range paths {
		if IsGoogleStoragePath(path) {
			client, err := storage.NewClient(ctx)
			if err != nil {
				return nil, pfx.Err(err)
			}
			return client, nil
		}
	}

	return nil, nil
}

// MaybeOpenFromGoogleStorage opens a local file, or a Google Storage object if
// the path begins with gs://.
func MaybeOpenFromGoogleStorage(ctx context.Context, path string, client *storage.Client) (io.ReadCloser, error) {
	if !IsGoogleStoragePath(path) {
		f, err := os.Open(path)
		if err != nil {
			return nil, pfx.Err(err)
		}
		return f, nil
	}

	if client == nil {
		return nil, pfx.Err(fmt.Errorf("%s: no storage client available", path))
	}

	bucketName, pathName, err := SplitGoogleStoragePath(path)
	if err != nil {
		return nil, pfx.Err(err)
	}

	rdr, err := client.Bucket(bucketName).Object(pathName).NewReader(ctx)
	if err != nil {
		return nil, pfx.Err(fmt.Errorf("%s: %s", path, err))
	}

	return rdr, nil
}

// MaybeLocalizeFromGoogleStorage gives back a local filename for path, for
// consumers that can only read from disk. Objects in Google Storage are
// downloaded into a temporary file that keeps the object's suffix; the
// returned cleanup removes it. For local paths cleanup is a nop.
func MaybeLocalizeFromGoogleStorage(ctx context.Context, path string, client *storage.Client) (localPath string, cleanup func(), err error) {
	if !IsGoogleStoragePath(path) {
		return path, func() {}, nil
	}

	rdr, err := MaybeOpenFromGoogleStorage(ctx, path, client)
	if err != nil {
		return "", nil, err
	}
	defer rdr.Close()

	suffix := filepath.Base(path)
	if i := strings.Index(suffix, "."); i >= 0 {
		suffix = suffix[i:]
	} else {
		suffix = ""
	}

	f, err := os.CreateTemp("", "niiconvert-*"+suffix)
	if err != nil {
		return "", nil, pfx.Err(err)
	}
	cleanup = func() { os.Remove(f.Name()) }

	if _, err := io.Copy(f, rdr); err != nil {
		f.Close()
		cleanup()
		return "", nil, pfx.Err(fmt.Errorf("%s: %s", path, err))
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, pfx.Err(err)
	}

	return f.Name(), cleanup, nil
}

// OutputFile is a destination that only becomes visible once Commit
// succeeds. Abort discards everything written so far. Exactly one of the two
// must be called.
type OutputFile interface {
	io.Writer
	Commit() error
	Abort()
}

// MaybeCreateInGoogleStorage creates an OutputFile at a local path, or at a
// Google Storage object if the path begins with gs://.
func MaybeCreateInGoogleStorage(ctx context.Context, path string, client *storage.Client, contentType string) (OutputFile, error) {
	if !IsGoogleStoragePath(path) {
		out, err := createLocal(path)
		if err != nil {
			return nil, err
		}
		return out, nil
	}

	if client == nil {
		return nil, pfx.Err(fmt.Errorf("%s: no storage client available", path))
	}

	bucketName, pathName, err := SplitGoogleStoragePath(path)
	if err != nil {
		return nil, pfx.Err(err)
	}

	// Cancelling the context before Close abandons the upload, so no object
	// is created.
	wctx, cancel := context.WithCancel(ctx)
	w := client.Bucket(bucketName).Object(pathName).NewWriter(wctx)
	w.ContentType = contentType

	return &gsOutputFile{Writer: w, path: path, cancel: cancel}, nil
}

type gsOutputFile struct {
	*storage.Writer
	path   string
	cancel context.CancelFunc
}

func (o *gsOutputFile) Commit() error {
	defer o.cancel()

	if err := o.Writer.Close(); err != nil {
		return pfx.Err(fmt.Errorf("%s: %s", o.path, err))
	}

	return nil
}

func (o *gsOutputFile) Abort() {
	o.cancel()
	o.Writer.Close()
}

// Local outputs are staged next to their destination and renamed into place,
// so a failed conversion never leaves a partial file at path.
type localOutputFile struct {
	*os.File
	path string
}

func createLocal(path string) (*localOutputFile, error) {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, pfx.Err(err)
	}

	return &localOutputFile{File: f, path: path}, nil
}

func (o *localOutputFile) Commit() error {
	if err := o.File.Close(); err != nil {
		os.Remove(o.File.Name())
		return pfx.Err(err)
	}

	if err := os.Chmod(o.File.Name(), 0644); err != nil {
		os.Remove(o.File.Name())
		return pfx.Err(err)
	}

	if err := os.Rename(o.File.Name(), o.path); err != nil {
		os.Remove(o.File.Name())
		return pfx.Err(err)
	}

	return nil
}

func (o *localOutputFile) Abort() {
	o.File.Close()
	os.Remove(o.File.Name())
}
