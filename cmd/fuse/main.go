// Package main provides the fuse CLI for inspecting generated kernels.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/born-ml/fuse/internal/codegen"
	"github.com/born-ml/fuse/internal/envconfig"
	"github.com/born-ml/fuse/internal/graph"
	"github.com/born-ml/fuse/internal/logutil"
	"github.com/born-ml/fuse/internal/metal"
)

const version = "v0.1.0-dev"

func newDumpCmd() *cobra.Command {
	dumpCmd := &cobra.Command{
		Use:   "dump",
		Short: "Print the kernel source generated for a demo tape",
		RunE:  dumpHandler,
	}
	dumpCmd.Flags().String("tape", "axpy", "Demo tape: "+strings.Join(demoTapeNames(), ", "))
	dumpCmd.Flags().String("syntax", "msl", "Kernel syntax: msl or wgsl")
	dumpCmd.Flags().String("variant", "", "Print one specialization (e.g. contiguous, strided_2, strided_dynamic)")
	return dumpCmd
}

func dumpHandler(cmd *cobra.Command, _ []string) error {
	tapeName, _ := cmd.Flags().GetString("tape")
	syntax, _ := cmd.Flags().GetString("syntax")
	variant, _ := cmd.Flags().GetString("variant")

	tape, err := demoTape(tapeName)
	if err != nil {
		return err
	}
	name := graph.LibraryName(tape)

	var src string
	switch syntax {
	case "msl":
		if variant == "" {
			src, err = codegen.BuildLibrary(tape, name)
		} else {
			src, err = buildVariant(tape, name, variant)
		}
	case "wgsl":
		if variant != "" && variant != "contiguous" {
			return fmt.Errorf("wgsl has only the contiguous variant, not %q", variant)
		}
		src, err = codegen.BuildWGSLContiguous(tape, name)
	default:
		return fmt.Errorf("unknown syntax %q", syntax)
	}
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), src)
	return nil
}

// buildVariant renders a single specialization of the tape's kernel family,
// without the library preamble.
func buildVariant(t *graph.Tape, libName, variant string) (string, error) {
	var b strings.Builder
	name := libName + "_" + variant
	var err error
	switch {
	case variant == "contiguous":
		_, err = codegen.BuildKernel(&b, name, t, true, 0, false, false)
	case variant == "contiguous_big":
		_, err = codegen.BuildKernel(&b, name, t, true, 0, false, true)
	case variant == "strided_dynamic":
		_, err = codegen.BuildKernel(&b, name, t, false, 0, true, false)
	case strings.HasPrefix(variant, "strided_"):
		ndim, convErr := strconv.Atoi(strings.TrimPrefix(variant, "strided_"))
		if convErr != nil || ndim < 1 || ndim > metal.MaxStaticRank {
			return "", fmt.Errorf("unknown variant %q", variant)
		}
		_, err = codegen.BuildKernel(&b, name, t, false, ndim, false, false)
	default:
		return "", fmt.Errorf("unknown variant %q", variant)
	}
	return b.String(), err
}

func newEnvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "Show the environment variables fuse reads",
		Run: func(cmd *cobra.Command, _ []string) {
			vars := envconfig.AsMap()
			names := make([]string, 0, len(vars))
			for name := range vars {
				names = append(names, name)
			}
			slices.Sort(names)
			for _, name := range names {
				v := vars[name]
				fmt.Fprintf(cmd.OutOrStdout(), "%-22s %-8v %s\n", v.Name, v.Value, v.Description)
			}
		},
	}
}

func versionHandler(cmd *cobra.Command, _ []string) {
	fmt.Fprintf(cmd.OutOrStdout(), "fuse %s\n", version)
}

// NewCLI builds the root command with every subcommand attached.
func NewCLI() *cobra.Command {
	cobra.EnableCommandSorting = false

	rootCmd := &cobra.Command{
		Use:           "fuse",
		Short:         "Fused elementwise kernel generator",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		Run: func(cmd *cobra.Command, args []string) {
			if version, _ := cmd.Flags().GetBool("version"); version {
				versionHandler(cmd, args)
				return
			}
			cmd.Print(cmd.UsageString())
		},
	}
	rootCmd.Flags().BoolP("version", "v", false, "Show version information")

	rootCmd.AddCommand(
		newDumpCmd(),
		newEnvCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Show version information",
			Run:   versionHandler,
		},
	)
	return rootCmd
}

func main() {
	slog.SetDefault(logutil.NewLogger(os.Stderr, envconfig.LogLevel()))

	if err := NewCLI().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
