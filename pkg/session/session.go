// Package session manages per-request workspace directories.
package session

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// File names used inside a session directory.
const (
	SourceFile = "cv.tex"
	OutputFile = "cv.pdf"
	LogFile    = "error.log"
)

// ErrInvalidID is returned for identifiers that could not have been issued by Create.
var ErrInvalidID = errors.New("invalid session id")

// Session is an isolated workspace keyed by a random identifier.
type Session struct {
	ID  string
	Dir string
}

// SourcePath returns the path of the rewritten LaTeX source.
func (s Session) SourcePath() (path string) {
	path = filepath.Join(s.Dir, SourceFile)
	return path
}

// OutputPath returns the path of the compiled PDF.
func (s Session) OutputPath() (path string) {
	path = filepath.Join(s.Dir, OutputFile)
	return path
}

// LogPath returns the path of the compiler diagnostic log.
func (s Session) LogPath() (path string) {
	path = filepath.Join(s.Dir, LogFile)
	return path
}

// Manager creates and removes session directories under a single root.
type Manager struct {
	root string
}

// NewManager creates a manager rooted at root, creating the directory if needed.
func NewManager(root string) (manager *Manager, err error) {
	err = os.MkdirAll(root, 0750)
	if err != nil {
		err = errors.Wrapf(err, "failed to create session root: %s", root)
		return manager, err
	}

	manager = &Manager{root: root}
	return manager, err
}

// Root returns the directory holding all sessions.
func (m *Manager) Root() (root string) {
	root = m.root
	return root
}

// Create allocates a new session with an empty directory.
func (m *Manager) Create() (sess Session, err error) {
	id := uuid.NewString()
	dir := filepath.Join(m.root, id)

	// Mkdir rather than MkdirAll: an existing directory must never be shared.
	err = os.Mkdir(dir, 0750)
	if err != nil {
		err = errors.Wrapf(err, "failed to create session directory: %s", dir)
		return sess, err
	}

	sess = Session{ID: id, Dir: dir}
	return sess, err
}

// Lookup returns the session for id without touching the filesystem.
func (m *Manager) Lookup(id string) (sess Session, err error) {
	err = ValidateID(id)
	if err != nil {
		return sess, err
	}

	sess = Session{ID: id, Dir: filepath.Join(m.root, id)}
	return sess, err
}

// Path returns the path of a named file inside the session id.
func (m *Manager) Path(id, name string) (path string, err error) {
	var sess Session
	sess, err = m.Lookup(id)
	if err != nil {
		return path, err
	}

	path = filepath.Join(sess.Dir, name)
	return path, err
}

// Destroy removes a session directory. Removing an absent session is not an error.
func (m *Manager) Destroy(id string) (err error) {
	var sess Session
	sess, err = m.Lookup(id)
	if err != nil {
		return err
	}

	err = os.RemoveAll(sess.Dir)
	if err != nil {
		err = errors.Wrapf(err, "failed to remove session directory: %s", sess.Dir)
		return err
	}

	return err
}

// DestroyAll removes the session root and everything beneath it.
func (m *Manager) DestroyAll() (err error) {
	err = os.RemoveAll(m.root)
	if err != nil {
		err = errors.Wrapf(err, "failed to remove session root: %s", m.root)
		return err
	}
	return err
}

// ValidateID checks that id is a canonical UUID string.
func ValidateID(id string) (err error) {
	parsed, parseErr := uuid.Parse(id)
	if parseErr != nil || parsed.String() != id {
		err = errors.Wrapf(ErrInvalidID, "%q", id)
		return err
	}
	return err
}
