package files

import (
	"fmt"
	"path/filepath"
	"strings"
)

// PathViolation is returned when a path fails the sandbox path policy
// (spec §4.5). Its Kind is one of the closed violation kinds in §7
// (SandboxPathDenied), surfaced to the tool executor as metadata.violation_type.
type PathViolation struct {
	Kind   string
	Reason string
}

func (v *PathViolation) Error() string { return v.Reason }

// sensitiveSuffixes matches files that must never be read by a tool,
// regardless of workspace membership: SSH keys, shell rc files, and
// common credential stores.
var sensitiveSuffixes = []string{
	".ssh/id_rsa", ".ssh/id_ed25519", ".ssh/id_ecdsa", ".ssh/authorized_keys",
	".aws/credentials", ".aws/config",
	".netrc", ".git-credentials", ".npmrc", ".docker/config.json",
	".bashrc", ".zshrc", ".bash_profile", ".profile", ".bash_history", ".zsh_history",
	".env",
}

// PathPolicy is the C6 Sandbox Policy's path rules: deny reads of a
// configured set of sensitive files, and confine writes to an allow-listed
// set of roots (plus an optional prefix under /tmp).
type PathPolicy struct {
	// DeniedPaths is additional absolute or suffix path fragments to deny
	// reads for, beyond the built-in sensitive-file set.
	DeniedPaths []string

	// AllowedWriteRoots restricts writes to these absolute directory
	// prefixes. Empty means unrestricted (any path inside the workspace).
	AllowedWriteRoots []string

	// TmpWritePrefix restricts writes under /tmp to this prefix. Empty
	// means writes under /tmp are denied unless matched by AllowedWriteRoots.
	TmpWritePrefix string
}

// CheckRead rejects reads of sensitive files. path must already be resolved
// to an absolute, workspace-confined path.
func (p PathPolicy) CheckRead(path string) error {
	normalized := filepath.ToSlash(path)
	for _, suffix := range sensitiveSuffixes {
		if strings.HasSuffix(normalized, suffix) {
			return &PathViolation{Kind: "SandboxPathDenied", Reason: fmt.Sprintf("reading %s is denied by sandbox policy", path)}
		}
	}
	for _, denied := range p.DeniedPaths {
		if denied == "" {
			continue
		}
		if normalized == filepath.ToSlash(denied) || strings.HasSuffix(normalized, filepath.ToSlash(denied)) {
			return &PathViolation{Kind: "SandboxPathDenied", Reason: fmt.Sprintf("reading %s is denied by sandbox policy", path)}
		}
	}
	return nil
}

// CheckWrite rejects writes outside the allow-listed roots (and, for
// writes under /tmp, outside the configured tmp prefix).
func (p PathPolicy) CheckWrite(path string) error {
	normalized := filepath.Clean(path)
	if strings.HasPrefix(normalized, string(filepath.Separator)+"tmp"+string(filepath.Separator)) || normalized == string(filepath.Separator)+"tmp" {
		if p.TmpWritePrefix == "" {
			return &PathViolation{Kind: "SandboxPathDenied", Reason: "writes under /tmp require a configured tmp_write_prefix"}
		}
		if !strings.HasPrefix(normalized, filepath.Clean(p.TmpWritePrefix)) {
			return &PathViolation{Kind: "SandboxPathDenied", Reason: fmt.Sprintf("write to %s escapes the configured tmp write prefix", path)}
		}
		return nil
	}
	if len(p.AllowedWriteRoots) == 0 {
		return nil
	}
	for _, root := range p.AllowedWriteRoots {
		if root == "" {
			continue
		}
		if normalized == filepath.Clean(root) || strings.HasPrefix(normalized, filepath.Clean(root)+string(filepath.Separator)) {
			return nil
		}
	}
	return &PathViolation{Kind: "SandboxPathDenied", Reason: fmt.Sprintf("write to %s is outside all allowed write roots", path)}
}
