package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/born-ml/fuse/internal/codegen"
	"github.com/born-ml/fuse/internal/graph"
)

func TestDemoTapesGenerate(t *testing.T) {
	for _, name := range demoTapeNames() {
		t.Run(name, func(t *testing.T) {
			tape, err := demoTape(name)
			if err != nil {
				t.Fatal(err)
			}
			if err := tape.Validate(); err != nil {
				t.Fatal(err)
			}
			src, err := codegen.BuildLibrary(tape, graph.LibraryName(tape))
			if err != nil {
				t.Fatal(err)
			}
			if got := strings.Count(src, "[[kernel]] void "); got != 10 {
				t.Errorf("library has %d kernels, want 10", got)
			}
		})
	}
}

func TestDemoTapeUnknown(t *testing.T) {
	if _, err := demoTape("softmax"); err == nil {
		t.Fatal("expected an error for an unknown tape")
	}
}

func TestDumpCommand(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"MSLLibrary", []string{"dump", "--tape", "axpy"}, "#include <metal_stdlib>"},
		{"MSLVariant", []string{"dump", "--tape", "axpy", "--variant", "strided_2"}, "in_strides"},
		{"WGSL", []string{"dump", "--tape", "lerp", "--syntax", "wgsl"}, "@compute @workgroup_size(256)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cli := NewCLI()
			var out bytes.Buffer
			cli.SetOut(&out)
			cli.SetArgs(tt.args)
			if err := cli.Execute(); err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(out.String(), tt.want) {
				t.Errorf("output missing %q:\n%s", tt.want, out.String())
			}
		})
	}
}

func TestDumpCommandRejectsWGSLVariants(t *testing.T) {
	cli := NewCLI()
	cli.SetOut(&bytes.Buffer{})
	cli.SetErr(&bytes.Buffer{})
	cli.SetArgs([]string{"dump", "--syntax", "wgsl", "--variant", "strided_2"})
	if err := cli.Execute(); err == nil {
		t.Fatal("expected an error for a wgsl variant request")
	}
}

func TestVersionCommand(t *testing.T) {
	cli := NewCLI()
	var out bytes.Buffer
	cli.SetOut(&out)
	cli.SetArgs([]string{"version"})
	if err := cli.Execute(); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), version) {
		t.Errorf("version output %q missing %q", out.String(), version)
	}
}
