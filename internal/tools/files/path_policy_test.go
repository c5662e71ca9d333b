package files

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestPathPolicyDeniesSensitiveRead(t *testing.T) {
	root := t.TempDir()
	sshDir := filepath.Join(root, ".ssh")
	if err := os.MkdirAll(sshDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(sshDir, "id_rsa"), []byte("secret"), 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}

	cfg := Config{Workspace: root}
	readTool := NewReadTool(cfg)

	params, _ := json.Marshal(map[string]interface{}{"path": ".ssh/id_rsa"})
	result, err := readTool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected sensitive read to be denied")
	}
	if result.Metadata["violation_type"] != "SandboxPathDenied" {
		t.Fatalf("expected violation_type metadata, got %v", result.Metadata)
	}
}

func TestPathPolicyRestrictsWriteRoot(t *testing.T) {
	root := t.TempDir()
	allowed := filepath.Join(root, "allowed")
	if err := os.MkdirAll(allowed, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	cfg := Config{
		Workspace: root,
		Policy:    PathPolicy{AllowedWriteRoots: []string{allowed}},
	}
	writeTool := NewWriteTool(cfg)

	deniedParams, _ := json.Marshal(map[string]interface{}{
		"path":    "outside.txt",
		"content": "nope",
	})
	result, err := writeTool.Execute(context.Background(), deniedParams)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected write outside allowed roots to be denied")
	}

	allowedParams, _ := json.Marshal(map[string]interface{}{
		"path":    "allowed/ok.txt",
		"content": "fine",
	})
	result, err = writeTool.Execute(context.Background(), allowedParams)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected write inside allowed root to succeed: %s", result.Content)
	}
}
