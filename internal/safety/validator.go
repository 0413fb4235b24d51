package safety

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrInvalidPath    = errors.New("invalid path")
	ErrProtectedPath  = errors.New("protected path")
	ErrOutsideAllowed = errors.New("outside allowed roots")
	ErrTraversal      = errors.New("path traversal detected")
	ErrSymlinkEscape  = errors.New("symlink escape detected")
)

// IsViolation reports whether err came from the validator refusing a path.
func IsViolation(err error) bool {
	for _, target := range []error{ErrInvalidPath, ErrProtectedPath, ErrOutsideAllowed, ErrTraversal, ErrSymlinkEscape} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Validator enforces the safety contract for all delete operations.
// An empty AllowedRoots means no root restriction.
type Validator struct {
	AllowedRoots   []string
	ProtectedPaths []string
}

// NewValidator creates a validator with allowed roots and optional additional protected paths
func NewValidator(allowed []string, extraProtected []string) *Validator {
	return &Validator{
		AllowedRoots:   normalizeRoots(allowed),
		ProtectedPaths: defaultProtected(extraProtected),
	}
}

// ValidateDeleteTarget is the single-source-of-truth for delete authorization
func (v *Validator) ValidateDeleteTarget(path string) error {
	if strings.TrimSpace(path) == "" || !filepath.IsAbs(path) {
		return ErrInvalidPath
	}

	if DetectTraversal(path) {
		return ErrTraversal
	}

	p := filepath.Clean(path)

	if IsProtectedPath(p, v.ProtectedPaths) {
		return ErrProtectedPath
	}

	if len(v.AllowedRoots) == 0 {
		return nil
	}

	if !IsWithinAllowedRoots(p, v.AllowedRoots) {
		return ErrOutsideAllowed
	}

	// The marker itself may be a symlink; removing it only unlinks it. What
	// matters is that the directory holding it really lives under a root.
	escaped, err := DetectSymlinkEscape(filepath.Dir(p), v.AllowedRoots)
	if err != nil {
		// Missing parent: the delete attempt will report not-found on its own.
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if escaped {
		return ErrSymlinkEscape
	}

	return nil
}

// DetectTraversal blocks any ".." segment in raw input
func DetectTraversal(raw string) bool {
	parts := strings.Split(filepath.ToSlash(raw), "/")
	for _, p := range parts {
		if p == ".." {
			return true
		}
	}
	return false
}

// IsWithinAllowedRoots checks if path is within any allowed root
func IsWithinAllowedRoots(path string, allowedRoots []string) bool {
	p := filepath.Clean(path)
	for _, r := range allowedRoots {
		if hasPathPrefix(p, r) {
			return true
		}
	}
	return false
}

// DetectSymlinkEscape resolves symlinks in dir and reports whether the
// resolved location leaves every allowed root.
func DetectSymlinkEscape(dir string, allowedRoots []string) (bool, error) {
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return false, err
	}
	resolvedAbs, err := filepath.Abs(resolved)
	if err != nil {
		return false, err
	}
	return !IsWithinAllowedRoots(resolvedAbs, resolvedRoots(allowedRoots)), nil
}

// IsProtectedPath checks if path matches protected system paths
func IsProtectedPath(path string, protected []string) bool {
	p := filepath.Clean(path)

	if p == string(os.PathSeparator) {
		return true
	}

	for _, prot := range protected {
		if hasPathPrefix(p, prot) {
			return true
		}
	}
	return false
}

func hasPathPrefix(path, prefix string) bool {
	path = filepath.Clean(path)
	prefix = filepath.Clean(prefix)

	if prefix == string(os.PathSeparator) {
		return path == prefix
	}
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix+string(os.PathSeparator))
}

// resolvedRoots adds the symlink-resolved form of each root, so a root that
// itself sits behind a symlink (macOS /var -> /private/var) still matches.
func resolvedRoots(roots []string) []string {
	out := make([]string, 0, len(roots)*2)
	for _, r := range roots {
		out = append(out, r)
		if res, err := filepath.EvalSymlinks(r); err == nil && res != r {
			out = append(out, res)
		}
	}
	return out
}

func normalizeRoots(roots []string) []string {
	out := make([]string, 0, len(roots))
	for _, r := range roots {
		if strings.TrimSpace(r) == "" {
			continue
		}
		abs, err := filepath.Abs(r)
		if err != nil {
			continue
		}
		out = append(out, filepath.Clean(abs))
	}
	return out
}

// defaultProtected returns the base set of protected paths plus any extras
func defaultProtected(extra []string) []string {
	base := []string{
		"/",
		"/etc",
		"/bin",
		"/usr",
		"/boot",
		"/lib",
		"/lib64",
		"/sbin",
	}
	return append(base, extra...)
}
