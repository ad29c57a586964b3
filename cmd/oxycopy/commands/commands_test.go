package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// execute runs a fresh command tree with args and returns its output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.Contains(out, "oxycopy v"+Version) {
		t.Errorf("version output = %q, want it to contain %q", out, "oxycopy v"+Version)
	}
	if !strings.Contains(out, "8x8x1") {
		t.Errorf("version output = %q, want the work group size 8x8x1", out)
	}
}

func TestPlanCommand(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    []string
		wantErr bool
	}{
		{
			name: "default dispatch",
			args: []string{"plan"},
			want: []string{"dispatch(1,1,2)", "required 62 records"},
		},
		{
			name: "explicit dispatch",
			args: []string{"plan", "--x", "2", "--y", "1", "--z", "2"},
			want: []string{"dispatch(2,1,2)", "required 118 records"},
		},
		{
			name: "collisions listed",
			args: []string{"plan", "--z", "1", "--collisions", "1"},
			want: []string{"most-written indices:", "[0]"},
		},
		{
			name:    "reject policy with overlapping writes",
			args:    []string{"plan", "--z", "1", "--overlap-policy", "reject"},
			wantErr: true,
		},
		{
			name:    "buffer too short",
			args:    []string{"plan", "--length", "61"},
			wantErr: true,
		},
		{
			name:    "x over the limit",
			args:    []string{"plan", "--x", "5", "--max-workgroups", "4"},
			wantErr: true,
		},
		{
			name:    "required length over the binding size",
			args:    []string{"plan", "--x", "1024", "--y", "1024", "--z", "65"},
			wantErr: true,
		},
		{
			name:    "unknown overlap policy",
			args:    []string{"plan", "--overlap-policy", "ignore"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, tt.args...)
			if (err != nil) != tt.wantErr {
				t.Fatalf("plan error = %v, wantErr %v\n%s", err, tt.wantErr, out)
			}
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("plan output = %q, want it to contain %q", out, w)
				}
			}
		})
	}
}

func TestPlanCommandValidateShader(t *testing.T) {
	out, err := execute(t, "plan", "--validate-shader")
	if err != nil {
		t.Fatalf("plan --validate-shader error = %v", err)
	}
	if !strings.Contains(out, "SPIR-V") {
		t.Errorf("plan output = %q, want it to contain %q", out, "SPIR-V")
	}
}

func TestRunCommandCPU(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr bool
	}{
		{"default", []string{"run", "--backend", "cpu"}, false},
		{"random fill repeated", []string{"run", "--backend", "cpu", "--fill", "random", "--seed", "9", "--repeat", "3"}, false},
		{"longer buffers", []string{"run", "--backend", "cpu", "--x", "2", "--y", "2", "--z", "3", "--length", "500"}, false},
		{"overlap report", []string{"run", "--backend", "cpu", "--z", "1"}, false},
		{"unknown fill", []string{"run", "--backend", "cpu", "--fill", "zeros"}, true},
		{"unknown backend", []string{"run", "--backend", "tpu"}, true},
		{"required length over the binding size", []string{"run", "--backend", "cpu", "--x", "1024", "--y", "1024", "--z", "65"}, true},
		{"repeat zero", []string{"run", "--backend", "cpu", "--repeat", "0"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, tt.args...)
			if (err != nil) != tt.wantErr {
				t.Fatalf("run error = %v, wantErr %v\n%s", err, tt.wantErr, out)
			}
			if tt.wantErr {
				return
			}
			if !strings.Contains(out, "verified:") {
				t.Errorf("run output = %q, want it to contain %q", out, "verified:")
			}
			if !strings.Contains(out, "executor cpu") {
				t.Errorf("run output = %q, want it to contain %q", out, "executor cpu")
			}
		})
	}
}

func TestConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "oxycopy.yaml")
	data := []byte("dispatch:\n  x: 1\n  y: 1\n  z: 3\nplanner:\n  workers: 2\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	out, err := execute(t, "plan", "--config", path)
	if err != nil {
		t.Fatalf("plan --config error = %v", err)
	}
	if !strings.Contains(out, "dispatch(1,1,3)") {
		t.Errorf("plan output = %q, want it to contain %q", out, "dispatch(1,1,3)")
	}

	// Flags win over the file.
	out, err = execute(t, "plan", "--config", path, "--z", "2")
	if err != nil {
		t.Fatalf("plan --config --z error = %v", err)
	}
	if !strings.Contains(out, "dispatch(1,1,2)") {
		t.Errorf("plan output = %q, want it to contain %q", out, "dispatch(1,1,2)")
	}

	if _, err := execute(t, "plan", "--config", filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("plan with a missing config file succeeded, want an error")
	}
}

func TestEnvironmentOverride(t *testing.T) {
	t.Setenv("OXYCOPY_DISPATCH_Z", "4")
	out, err := execute(t, "plan")
	if err != nil {
		t.Fatalf("plan error = %v", err)
	}
	if !strings.Contains(out, "dispatch(1,1,4)") {
		t.Errorf("plan output = %q, want it to contain %q", out, "dispatch(1,1,4)")
	}
}
