package exec

import "testing"

func TestCommandPolicyBlocksDangerousPatterns(t *testing.T) {
	policy := CommandPolicy{Strictness: "normal"}
	dangerous := []string{
		"sudo rm -rf /",
		"rm -rf /",
		"dd if=/dev/zero of=/dev/sda",
		"mkfs.ext4 /dev/sda1",
	}
	for _, cmd := range dangerous {
		if err := policy.Check(cmd); err == nil {
			t.Errorf("expected %q to be blocked", cmd)
		}
	}
}

func TestCommandPolicyAllowsOrdinaryCommands(t *testing.T) {
	policy := CommandPolicy{Strictness: "normal"}
	ok := []string{
		"echo hello",
		"ls -la /tmp",
		"grep -rn foo .",
		"go test ./...",
	}
	for _, cmd := range ok {
		if err := policy.Check(cmd); err != nil {
			t.Errorf("expected %q to be allowed, got %v", cmd, err)
		}
	}
}

func TestCommandPolicyStrictBlocksMetachars(t *testing.T) {
	policy := CommandPolicy{Strictness: "strict"}
	if err := policy.Check("echo hi | cat"); err == nil {
		t.Error("expected pipe to be blocked at strict strictness")
	}
	if err := CommandPolicy{Strictness: "permissive"}.Check("echo hi | cat"); err != nil {
		t.Errorf("expected pipe to be allowed at permissive strictness: %v", err)
	}
}

func TestCommandPolicyNormalBlocksSubstitution(t *testing.T) {
	policy := CommandPolicy{Strictness: "normal"}
	if err := policy.Check("echo $(whoami)"); err == nil {
		t.Error("expected command substitution to be blocked")
	}
}
