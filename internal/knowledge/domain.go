// Package knowledge maps knowledge domains to persisted vector indexes under a base directory.
package knowledge

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hyperjump/iasistente/internal/models"
)

// IndexDirPrefix is prepended to a domain name to form its index directory.
const IndexDirPrefix = "faiss_index_"

const maxDomainLen = 128

// ValidateDomain rejects names that could escape the base directory or collide with the
// hidden version directories of the store: path separators, control characters, a leading
// '.' (which also covers "." and ".."), invalid UTF-8 and names over the length cap. Any other
// file name, punctuation included, is a valid domain.
func ValidateDomain(domain string) error {
	switch {
	case domain == "":
		return models.NewError(models.ErrInvalidInput, "domain", "knowledge domain is empty")
	case len(domain) > maxDomainLen:
		return models.NewError(models.ErrInvalidInput, "domain", fmt.Sprintf("knowledge domain exceeds %d bytes", maxDomainLen))
	case !utf8.ValidString(domain):
		return models.NewError(models.ErrInvalidInput, "domain", "knowledge domain is not valid UTF-8")
	case strings.HasPrefix(domain, "."):
		return models.NewError(models.ErrInvalidInput, "domain", fmt.Sprintf("knowledge domain %q must not start with '.'", domain))
	}
	for _, r := range domain {
		if r == '/' || r == '\\' || unicode.IsControl(r) {
			return models.NewError(models.ErrInvalidInput, "domain", fmt.Sprintf("knowledge domain %q contains %q", domain, r))
		}
	}
	return nil
}

// IndexDirName returns the directory name for domain.
func IndexDirName(domain string) string {
	return IndexDirPrefix + domain
}

// DomainFromDir returns the domain for an index directory name, if it is one.
func DomainFromDir(name string) (string, bool) {
	domain, ok := strings.CutPrefix(name, IndexDirPrefix)
	if !ok || ValidateDomain(domain) != nil {
		return "", false
	}
	return domain, true
}
