// Package delivery maps session files to download responses.
package delivery

import (
	"net/http"
	"os"
	"strings"

	"github.com/nikogura/cv-generator/pkg/session"
	"github.com/pkg/errors"
)

// Sentinel errors for file resolution.
var (
	ErrInvalidKind = errors.New("invalid file type")
	ErrNotFound    = errors.New("file not found")
)

// Kind names a downloadable session file.
type Kind string

// Downloadable kinds.
const (
	KindSource   Kind = "tex"
	KindCompiled Kind = "pdf"
)

// ParseKind validates a file type from a request path.
func ParseKind(s string) (kind Kind, err error) {
	switch Kind(s) {
	case KindSource, KindCompiled:
		kind = Kind(s)
		return kind, err
	default:
		err = errors.Wrapf(ErrInvalidKind, "%q (must be %q or %q)", s, KindSource, KindCompiled)
		return kind, err
	}
}

// FileName returns the on-disk and attachment name for the kind.
func (k Kind) FileName() (name string) {
	if k == KindCompiled {
		name = session.OutputFile
		return name
	}
	name = session.SourceFile
	return name
}

// Resolver locates session files.
type Resolver struct {
	sessions *session.Manager
}

// NewResolver creates a resolver over sessions.
func NewResolver(sessions *session.Manager) (resolver *Resolver) {
	resolver = &Resolver{sessions: sessions}
	return resolver
}

// Resolve returns the path of the requested file. The kind is checked before
// the session so that a bad kind is reported regardless of session validity.
func (r *Resolver) Resolve(sessionID, fileType string) (path string, err error) {
	var kind Kind
	kind, err = ParseKind(fileType)
	if err != nil {
		return path, err
	}

	path, err = r.sessions.Path(sessionID, kind.FileName())
	if err != nil {
		err = notFound(kind)
		return path, err
	}

	var info os.FileInfo
	info, err = os.Stat(path)
	if err != nil || info.IsDir() {
		path = ""
		err = notFound(kind)
		return path, err
	}

	return path, err
}

// Serve streams the requested file as a binary attachment.
func (r *Resolver) Serve(w http.ResponseWriter, req *http.Request, sessionID, fileType string) (err error) {
	var path string
	path, err = r.Resolve(sessionID, fileType)
	if err != nil {
		return err
	}

	var f *os.File
	f, err = os.Open(path)
	if err != nil {
		err = notFound(Kind(fileType))
		return err
	}
	defer f.Close()

	var info os.FileInfo
	info, err = f.Stat()
	if err != nil {
		err = errors.Wrapf(err, "failed to stat: %s", path)
		return err
	}

	name := Kind(fileType).FileName()
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	http.ServeContent(w, req, name, info.ModTime(), f)

	return err
}

func notFound(kind Kind) (err error) {
	err = errors.Wrapf(ErrNotFound, "%s file not found, it may not have been generated", strings.ToUpper(string(kind)))
	return err
}
