// Package template supplies the read-only LaTeX starter document.
package template

import (
	"os"

	"github.com/nikogura/cv-generator/pkg/config"
	"github.com/pkg/errors"
)

// Provider reads the starter document from a fixed path.
type Provider struct {
	path string
}

// NewProvider checks that path names a readable file.
func NewProvider(path string) (provider *Provider, err error) {
	var info os.FileInfo
	info, err = os.Stat(path)
	if err != nil {
		err = errors.Wrapf(config.ErrConfiguration, "template not found: %s: %v", path, err)
		return provider, err
	}

	if info.IsDir() {
		err = errors.Wrapf(config.ErrConfiguration, "template path is a directory: %s", path)
		return provider, err
	}

	provider = &Provider{path: path}

	// Fail fast on unreadable files.
	_, err = provider.Load()
	if err != nil {
		provider = nil
		return provider, err
	}

	return provider, err
}

// Path returns the template location.
func (p *Provider) Path() (path string) {
	path = p.path
	return path
}

// Load returns a fresh copy of the template bytes.
func (p *Provider) Load() (data []byte, err error) {
	data, err = os.ReadFile(p.path)
	if err != nil {
		err = errors.Wrapf(config.ErrConfiguration, "failed to read template: %s: %v", p.path, err)
		return data, err
	}
	return data, err
}

// CopyTo writes an independent copy of the template to dst and returns its contents.
func (p *Provider) CopyTo(dst string) (data []byte, err error) {
	data, err = p.Load()
	if err != nil {
		return data, err
	}

	err = os.WriteFile(dst, data, 0600)
	if err != nil {
		err = errors.Wrapf(err, "failed to copy template to: %s", dst)
		return data, err
	}

	return data, err
}
