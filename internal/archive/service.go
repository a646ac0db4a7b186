// Package archive keeps a git-backed revision history for every note body.
package archive

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"mosaic/api/internal/store"
)

// Revision is one archived state of a note.
type Revision struct {
	Title string
	Body  string
}

type Service struct {
	baseDir string
	lockMu  sync.Mutex
	locks   map[string]*sync.Mutex
}

func New(baseDir string) *Service {
	return &Service{
		baseDir: baseDir,
		locks:   make(map[string]*sync.Mutex),
	}
}

// EnsureEventRepo initializes the repository for an event with its first revision.
// Calling it again for an existing event is a no-op.
func (s *Service) EnsureEventRepo(eventID string, initial Revision, author string) error {
	lock := s.eventLock(eventID)
	lock.Lock()
	defer lock.Unlock()

	path := s.repoPath(eventID)
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat repo path: %w", err)
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create repo dir: %w", err)
	}

	repo, err := git.PlainInit(path, false)
	if err != nil {
		return fmt.Errorf("init repo: %w", err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}
	if err := writeRevisionFiles(path, initial); err != nil {
		return err
	}
	if err := addRevisionFiles(worktree); err != nil {
		return err
	}
	hash, err := worktree.Commit("Create note", &git.CommitOptions{
		Author: &object.Signature{
			Name:  author,
			Email: fmt.Sprintf("%s@local.mosaic.dev", sanitizeEmail(author)),
			When:  time.Now(),
		},
	})
	if err != nil {
		return fmt.Errorf("commit initial revision: %w", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewHashReference(plumbing.NewBranchReferenceName("main"), hash)); err != nil {
		return fmt.Errorf("set main branch ref: %w", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName("main"))); err != nil {
		return fmt.Errorf("set HEAD to main: %w", err)
	}
	return nil
}

// SaveRevision commits a new revision on main and returns its commit info.
func (s *Service) SaveRevision(eventID string, rev Revision, author, message string) (store.CommitInfo, error) {
	lock := s.eventLock(eventID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(eventID))
	if err != nil {
		return store.CommitInfo{}, fmt.Errorf("open repo: %w", err)
	}

	if err := checkoutMain(repo); err != nil {
		return store.CommitInfo{}, err
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return store.CommitInfo{}, fmt.Errorf("open worktree: %w", err)
	}

	if err := writeRevisionFiles(worktree.Filesystem.Root(), rev); err != nil {
		return store.CommitInfo{}, err
	}
	if err := addRevisionFiles(worktree); err != nil {
		return store.CommitInfo{}, err
	}

	hash, err := worktree.Commit(message, &git.CommitOptions{
		AllowEmptyCommits: true,
		Author: &object.Signature{
			Name:  author,
			Email: fmt.Sprintf("%s@local.mosaic.dev", sanitizeEmail(author)),
			When:  time.Now(),
		},
	})
	if err != nil {
		return store.CommitInfo{}, fmt.Errorf("commit revision: %w", err)
	}

	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return store.CommitInfo{}, fmt.Errorf("read commit object: %w", err)
	}
	return toCommitInfo(commitObj), nil
}

// Head returns the latest revision and its commit info.
func (s *Service) Head(eventID string) (Revision, store.CommitInfo, error) {
	lock := s.eventLock(eventID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(eventID))
	if err != nil {
		return Revision{}, store.CommitInfo{}, fmt.Errorf("open repo: %w", err)
	}

	ref, err := repo.Reference(plumbing.NewBranchReferenceName("main"), true)
	if err != nil {
		return Revision{}, store.CommitInfo{}, fmt.Errorf("resolve main: %w", err)
	}

	commitObj, err := repo.CommitObject(ref.Hash())
	if err != nil {
		return Revision{}, store.CommitInfo{}, fmt.Errorf("load commit object: %w", err)
	}

	rev, err := readRevisionFromCommit(commitObj)
	if err != nil {
		return Revision{}, store.CommitInfo{}, err
	}
	return rev, toCommitInfo(commitObj), nil
}

// RevisionAt returns the revision recorded by a specific commit.
func (s *Service) RevisionAt(eventID, hash string) (Revision, error) {
	lock := s.eventLock(eventID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(eventID))
	if err != nil {
		return Revision{}, fmt.Errorf("open repo: %w", err)
	}

	resolvedHash, err := resolveHash(repo, hash)
	if err != nil {
		return Revision{}, err
	}
	commitObj, err := repo.CommitObject(resolvedHash)
	if err != nil {
		return Revision{}, fmt.Errorf("read commit %s: %w", hash, err)
	}
	return readRevisionFromCommit(commitObj)
}

// History lists commits on main, newest first.
func (s *Service) History(eventID string, limit int) ([]store.CommitInfo, error) {
	lock := s.eventLock(eventID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(eventID))
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}

	ref, err := repo.Reference(plumbing.NewBranchReferenceName("main"), true)
	if err != nil {
		return nil, fmt.Errorf("resolve main: %w", err)
	}

	iter, err := repo.Log(&git.LogOptions{From: ref.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	items := make([]store.CommitInfo, 0, limit)
	count := 0
	err = iter.ForEach(func(commitObj *object.Commit) error {
		items = append(items, toCommitInfo(commitObj))
		count++
		if limit > 0 && count >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return items, nil
}

func (s *Service) repoPath(eventID string) string {
	return filepath.Join(s.baseDir, eventID)
}

func (s *Service) eventLock(eventID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[eventID]
	if ok {
		return lock
	}
	lock = &sync.Mutex{}
	s.locks[eventID] = lock
	return lock
}

func writeRevisionFiles(root string, rev Revision) error {
	if err := os.WriteFile(filepath.Join(root, "title.txt"), []byte(rev.Title+"\n"), 0o644); err != nil {
		return fmt.Errorf("write title: %w", err)
	}
	if err := os.WriteFile(filepath.Join(root, "body.html"), []byte(rev.Body), 0o644); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	return nil
}

func addRevisionFiles(worktree *git.Worktree) error {
	if _, err := worktree.Add("title.txt"); err != nil {
		return fmt.Errorf("git add title: %w", err)
	}
	if _, err := worktree.Add("body.html"); err != nil {
		return fmt.Errorf("git add body: %w", err)
	}
	return nil
}

func checkoutMain(repo *git.Repository) error {
	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}

	branchRef := plumbing.NewBranchReferenceName("main")
	if _, err := repo.Reference(branchRef, true); err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			if err := worktree.Checkout(&git.CheckoutOptions{Branch: branchRef, Create: true}); err != nil {
				return fmt.Errorf("create main checkout: %w", err)
			}
			return nil
		}
		return fmt.Errorf("resolve main: %w", err)
	}

	if err := worktree.Checkout(&git.CheckoutOptions{Branch: branchRef, Force: true}); err != nil {
		return fmt.Errorf("checkout main: %w", err)
	}
	return nil
}

func readRevisionFromCommit(commitObj *object.Commit) (Revision, error) {
	title, err := readCommitFile(commitObj, "title.txt")
	if err != nil {
		return Revision{}, err
	}
	body, err := readCommitFile(commitObj, "body.html")
	if err != nil {
		return Revision{}, err
	}
	if n := len(title); n > 0 && title[n-1] == '\n' {
		title = title[:n-1]
	}
	return Revision{Title: title, Body: body}, nil
}

func readCommitFile(commitObj *object.Commit, name string) (string, error) {
	file, err := commitObj.File(name)
	if err != nil {
		return "", fmt.Errorf("load %s from commit: %w", name, err)
	}
	reader, err := file.Reader()
	if err != nil {
		return "", fmt.Errorf("open %s reader: %w", name, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read %s bytes: %w", name, err)
	}
	return string(data), nil
}

func toCommitInfo(commitObj *object.Commit) store.CommitInfo {
	return store.CommitInfo{
		Hash:      commitObj.Hash.String()[:7],
		Message:   commitObj.Message,
		Author:    commitObj.Author.Name,
		CreatedAt: commitObj.Author.When,
	}
}

func sanitizeEmail(input string) string {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			out = append(out, r)
			continue
		}
		if r == ' ' || r == '-' || r == '_' {
			out = append(out, '.')
		}
	}
	if len(out) == 0 {
		return "user"
	}
	return string(out)
}

func resolveHash(repo *git.Repository, hash string) (plumbing.Hash, error) {
	if len(hash) == 40 {
		return plumbing.NewHash(hash), nil
	}
	resolved, err := repo.ResolveRevision(plumbing.Revision(hash))
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("resolve hash %s: %w", hash, err)
	}
	return *resolved, nil
}
