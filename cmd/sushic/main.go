// Command sushic is the sushi compiler CLI: build, run, check, fmt, version.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sushi-lang/sushic/internal/config"
	"github.com/sushi-lang/sushic/internal/diag"
	"github.com/sushi-lang/sushic/internal/driver"
)

const version = "0.4.0"

var (
	flagOpt      string
	flagEmitLLVM bool
	flagTarget   string
	flagOutput   string
)

func main() {
	root := &cobra.Command{
		Use:           "sushic",
		Short:         "The sushi compiler",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetGlobalNormalizationFunc(func(f *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	buildCmd := &cobra.Command{
		Use:   "build <file.sushi>",
		Short: "Compile a program to a native executable",
		Args:  cobra.ExactArgs(1),
		RunE:  func(cmd *cobra.Command, args []string) error { return runBuild(args[0], false, nil) },
	}
	runCmd := &cobra.Command{
		Use:   "run <file.sushi> [args...]",
		Short: "Compile and immediately run a program",
		Args:  cobra.MinimumNArgs(1),
		RunE:  func(cmd *cobra.Command, args []string) error { return runBuild(args[0], true, args[1:]) },
	}
	checkCmd := &cobra.Command{
		Use:   "check <file.sushi>",
		Short: "Run passes 0-3 only (no IR emission) for fast feedback",
		Args:  cobra.ExactArgs(1),
		RunE:  func(cmd *cobra.Command, args []string) error { return runCheck(args[0]) },
	}
	fmtCmd := &cobra.Command{
		Use:   "fmt <file.sushi>",
		Short: "Format a source file (not yet implemented)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(os.Stderr, "sushic fmt is not implemented yet")
			return nil
		},
	}
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the compiler version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("sushic %s\n", version)
		},
	}

	for _, c := range []*cobra.Command{buildCmd, runCmd} {
		c.Flags().StringVar(&flagOpt, "opt", "", "optimization level (0-3)")
		c.Flags().BoolVar(&flagEmitLLVM, "emit-llvm", false, "write the .ll next to the output and stop")
		c.Flags().StringVar(&flagTarget, "target", "", "target triple passed to llc")
		c.Flags().StringVarP(&flagOutput, "output", "o", "", "output path")
	}

	root.AddCommand(buildCmd, runCmd, checkCmd, fmtCmd, versionCmd)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error:"), err)
		os.Exit(1)
	}
}

func loadManifest(path string) *config.Manifest {
	abs, err := filepath.Abs(path)
	if err != nil {
		return config.Default(path)
	}
	m, _, err := config.Discover(filepath.Dir(abs))
	if err != nil {
		fmt.Fprintln(os.Stderr, color.YellowString("warning:"), err)
	}
	if m == nil {
		return config.Default(path)
	}
	if m.Package.Entry == "" {
		m.Package.Entry = path
	}
	return m
}

func compile(path string) (*driver.Pipeline, []byte, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	return driver.New(string(source), path), source, nil
}

func printDiagnostics(p *driver.Pipeline) {
	fm := diag.NewFormatter()
	for _, d := range p.Reporter.All() {
		fmt.Fprint(os.Stderr, fm.Format(d))
	}
}

func runCheck(path string) error {
	p, _, err := compile(path)
	if err != nil {
		return err
	}
	ok := p.Check()
	printDiagnostics(p)
	if !ok {
		return fmt.Errorf("%s has errors", path)
	}
	fmt.Println(color.GreenString("ok:"), path)
	return nil
}

func runBuild(path string, andRun bool, progArgs []string) error {
	manifest := loadManifest(path)
	opt := flagOpt
	if opt == "" {
		opt = manifest.Build.OptLevel
	}
	target := flagTarget
	if target == "" {
		target = manifest.Build.Target
	}

	p, _, err := compile(path)
	if err != nil {
		return err
	}
	irText, ok := p.EmitLLVM()
	printDiagnostics(p)
	if !ok {
		return fmt.Errorf("%s has errors", path)
	}

	outName := flagOutput
	if outName == "" {
		outName = manifest.Package.Name
		if outName == "" {
			outName = "a.out"
		}
	}

	llFile := outName + ".ll"
	if err := os.WriteFile(llFile, []byte(irText), 0o644); err != nil {
		return err
	}
	if flagEmitLLVM || manifest.Build.EmitLLVM {
		fmt.Println("wrote", llFile)
		return nil
	}

	spin := newSpinner("compiling " + path)
	optimized, err := driver.OptimizeLLVM(llFile, opt)
	if err != nil {
		// Optimization is best-effort; report and continue with the raw IR.
		fmt.Fprintln(os.Stderr, color.YellowString("warning:"), err)
		optimized = llFile
	}
	err = driver.BuildExecutable(optimized, outName, target)
	stopSpinner(spin)
	if err != nil {
		return err
	}

	if !andRun {
		fmt.Println("built", outName)
		return nil
	}
	return driver.RunExecutable("./"+outName, progArgs)
}

func newSpinner(msg string) *spinner.Spinner {
	if !isatty.IsTerminal(os.Stderr.Fd()) {
		return nil
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Suffix = " " + msg
	s.Start()
	return s
}

func stopSpinner(s *spinner.Spinner) {
	if s != nil {
		s.Stop()
	}
}
