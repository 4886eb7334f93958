// Package gitsrc fetches the specification document as it existed at a
// prior revision, for use as the compatibility base snapshot.
package gitsrc

import (
	"errors"
	"io"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// SpecAt reads relPath from the tree of revision in the repository that
// contains repoDir. The boolean is false when the revision or the file
// genuinely does not exist, which callers treat as "nothing to compare
// against". Every other failure is returned as an error so ambiguity fails
// closed.
func SpecAt(repoDir, revision, relPath string) ([]byte, bool, error) {
	repo, err := git.PlainOpenWithOptions(repoDir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, false, err
	}

	hash, err := repo.ResolveRevision(plumbing.Revision(revision))
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) || errors.Is(err, plumbing.ErrObjectNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}

	commit, err := repo.CommitObject(*hash)
	if err != nil {
		if errors.Is(err, plumbing.ErrObjectNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}

	file, err := commit.File(relPath)
	if err != nil {
		if errors.Is(err, object.ErrFileNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}

	reader, err := file.Reader()
	if err != nil {
		return nil, false, err
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}
