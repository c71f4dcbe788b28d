package media

import (
	"context"
	"fmt"
	"strings"

	"github.com/starford/furrow/internal/storage"
)

// FSUploader writes files below a local directory served at URLPrefix.
type FSUploader struct {
	store     *storage.FS
	urlPrefix string
}

// NewFSUploader creates an uploader over store.
func NewFSUploader(store *storage.FS, urlPrefix string) *FSUploader {
	return &FSUploader{store: store, urlPrefix: strings.TrimSuffix(urlPrefix, "/")}
}

func (u *FSUploader) Put(_ context.Context, filename string, data []byte) (string, error) {
	if err := u.store.Write(filename, data); err != nil {
		return "", fmt.Errorf("media: store %s: %w", filename, err)
	}
	return u.urlPrefix + "/" + filename, nil
}

// ImageCommitter is satisfied by the GitHub client.
type ImageCommitter interface {
	UploadImage(ctx context.Context, filename string, data []byte) (string, error)
}

// GitHubUploader commits images to the site repository.
type GitHubUploader struct {
	gh ImageCommitter
}

// NewGitHubUploader creates an uploader over gh.
func NewGitHubUploader(gh ImageCommitter) *GitHubUploader {
	return &GitHubUploader{gh: gh}
}

func (u *GitHubUploader) Put(ctx context.Context, filename string, data []byte) (string, error) {
	return u.gh.UploadImage(ctx, filename, data)
}
