package sys

import (
	"path/filepath"
	"strings"

	"github.com/INLOpen/qvd/core"
)

// Reason codes carried in SecurityError context.
const (
	ReasonNulByte        = "nul_byte"
	ReasonEmptyPath      = "empty_path"
	ReasonOutsideRoot    = "outside_allowed_dir"
	ReasonUnresolvedRoot = "unresolved_allowed_dir"
)

// SafePath resolves path to an absolute, cleaned path. When allowedDir is
// not empty, the result must lie inside it. Symlinks in the existing part of
// the path are resolved before the containment check so a link cannot point
// outside the root.
func SafePath(path, allowedDir string) (string, error) {
	if path == "" {
		return "", securityError(ReasonEmptyPath, path)
	}
	if strings.IndexByte(path, 0) >= 0 || strings.IndexByte(allowedDir, 0) >= 0 {
		// The path itself is not echoed back: it may carry arbitrary bytes.
		return "", securityError(ReasonNulByte, "")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", securityError(ReasonEmptyPath, path)
	}
	if allowedDir == "" {
		return abs, nil
	}

	root, err := filepath.Abs(allowedDir)
	if err != nil {
		return "", securityError(ReasonUnresolvedRoot, allowedDir)
	}
	if r, err := filepath.EvalSymlinks(root); err == nil {
		root = r
	}
	resolved := resolveExisting(abs)

	rel, err := filepath.Rel(root, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return "", securityError(ReasonOutsideRoot, resolved)
	}
	return resolved, nil
}

// resolveExisting evaluates symlinks in the longest existing prefix of p and
// re-appends the remainder, so paths of files not yet written still resolve.
func resolveExisting(p string) string {
	var tail []string
	cur := p
	for {
		if r, err := filepath.EvalSymlinks(cur); err == nil {
			for i := len(tail) - 1; i >= 0; i-- {
				r = filepath.Join(r, tail[i])
			}
			return r
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return p
		}
		tail = append(tail, filepath.Base(cur))
		cur = parent
	}
}

func securityError(reason, resolved string) *core.SecurityError {
	ctx := map[string]any{
		core.CtxReason: reason,
		core.CtxStage:  core.StagePath,
	}
	if resolved != "" {
		ctx[core.CtxPath] = resolved
	}
	return core.NewSecurityError("path rejected", ctx)
}
