package gitsource

import (
	"context"
	"errors"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/conorfennell/recall/internal/domain"
	"github.com/conorfennell/recall/internal/logging"
	"github.com/go-git/go-git/v5"
	"github.com/m-mizutani/goerr/v2"
)

// Sync clones a git repository if it doesn't exist at localPath,
// or pulls the latest changes if it does. Progress output goes to progress
// when it is not nil.
func Sync(ctx context.Context, repoURL, localPath string, progress io.Writer) error {
	logger := logging.From(ctx).With("url", repoURL, "path", localPath)

	_, err := os.Stat(localPath)
	switch {
	case os.IsNotExist(err):
		logger.Info("cloning repository")
		_, err := git.PlainCloneContext(ctx, localPath, false, &git.CloneOptions{
			URL:      repoURL,
			Progress: progress,
		})
		if err != nil {
			return goerr.Wrap(err, "failed to clone repo", goerr.V("url", repoURL))
		}
		logger.Info("clone successful")

	case err == nil:
		logger.Info("pulling latest changes")
		repo, err := git.PlainOpen(localPath)
		if err != nil {
			return goerr.Wrap(err, "failed to open existing repo", goerr.V("path", localPath))
		}

		worktree, err := repo.Worktree()
		if err != nil {
			return goerr.Wrap(err, "failed to get worktree", goerr.V("path", localPath))
		}

		err = worktree.PullContext(ctx, &git.PullOptions{
			RemoteName: "origin",
			Progress:   progress,
		})
		if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
			return goerr.Wrap(err, "failed to pull changes", goerr.V("path", localPath))
		}
		logger.Info("pull successful (or already up-to-date)")

	default:
		return goerr.Wrap(err, "failed to check repo path", goerr.V("path", localPath))
	}

	return nil
}

// LocalPath maps a repository URL to its checkout directory under baseDir.
// Both https and scp-like ssh ("git@host:owner/repo.git") URLs are accepted.
// URLs whose host or path would leave baseDir are rejected.
func LocalPath(baseDir, repoURL string) (string, error) {
	var host, repoPath string
	parsedURL, err := url.Parse(repoURL)
	if err != nil || (parsedURL.Scheme != "https" && parsedURL.Scheme != "http") {
		var ok bool
		host, repoPath, ok = splitSCP(repoURL)
		if !ok {
			return "", goerr.New("could not parse git URL", goerr.V("url", repoURL), goerr.T(domain.TagValidation))
		}
	} else {
		host, repoPath = parsedURL.Host, parsedURL.Path
	}

	if hasDotDot(host) || hasDotDot(repoPath) {
		return "", goerr.New("git URL must not contain '..' segments", goerr.V("url", repoURL), goerr.T(domain.TagValidation))
	}

	local := filepath.Join(baseDir, host, strings.TrimSuffix(repoPath, ".git"))
	rel, err := filepath.Rel(baseDir, local)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", goerr.New("git URL resolves outside the repos directory", goerr.V("url", repoURL), goerr.T(domain.TagValidation))
	}
	return local, nil
}

// hasDotDot reports whether any slash or backslash separated segment of p is "..".
func hasDotDot(p string) bool {
	for _, seg := range strings.FieldsFunc(p, func(r rune) bool { return r == '/' || r == '\\' }) {
		if seg == ".." {
			return true
		}
	}
	return false
}

func splitSCP(repoURL string) (host, path string, ok bool) {
	userHost, path, found := strings.Cut(repoURL, ":")
	if !found || path == "" {
		return "", "", false
	}
	_, host, found = strings.Cut(userHost, "@")
	if !found || host == "" {
		return "", "", false
	}
	return host, path, true
}

// IsRemote reports whether path looks like a git URL rather than a
// directory on disk.
func IsRemote(path string) bool {
	if strings.HasPrefix(path, "https://") || strings.HasPrefix(path, "http://") {
		return true
	}
	_, _, ok := splitSCP(path)
	return ok && strings.HasSuffix(path, ".git")
}
