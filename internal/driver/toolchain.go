package driver

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
)

// FindLLC finds the llc executable, checking PATH first, then common
// Homebrew installation locations.
func FindLLC() (string, error) {
	return findLLVMTool("llc")
}

// FindOpt finds the opt executable (LLVM optimizer). Optimization is
// optional; callers treat a miss as "skip".
func FindOpt() (string, error) {
	return findLLVMTool("opt")
}

func findLLVMTool(tool string) (string, error) {
	if path, err := exec.LookPath(tool); err == nil {
		return path, nil
	}
	prefixes := []string{"/opt/homebrew", "/usr/local"}
	if brew := os.Getenv("HOMEBREW_PREFIX"); brew != "" {
		prefixes = []string{brew}
	}
	for _, prefix := range prefixes {
		candidate := filepath.Join(prefix, "opt/llvm/bin", tool)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", errors.Errorf("%s not found in PATH or common installation locations", tool)
}

// OptimizeLLVM applies LLVM optimization passes to the IR file and returns
// the path to the optimized file, or the original if opt is unavailable or
// the level requests none.
func OptimizeLLVM(irFile, level string) (string, error) {
	optPath, err := FindOpt()
	if err != nil {
		return irFile, nil
	}
	var pipeline string
	switch level {
	case "0", "none":
		return irFile, nil
	case "1", "s":
		pipeline = "default<O1>"
	case "3", "z":
		pipeline = "default<O3>"
	default:
		pipeline = "default<O2>"
	}
	optFile := irFile + ".opt"
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	cmd := exec.CommandContext(ctx, optPath, "-S", "-o", optFile, "-passes="+pipeline, irFile)
	if out, err := cmd.CombinedOutput(); err != nil {
		return irFile, errors.Wrapf(err, "opt failed: %s", string(out))
	}
	return optFile, nil
}

// BuildExecutable lowers a textual IR file to an object with llc and links
// it with clang.
func BuildExecutable(llFile, outName, target string) error {
	llcPath, err := FindLLC()
	if err != nil {
		return errors.Wrap(err, "llc is required to build")
	}
	objFile := llFile + ".o"

	llcArgs := []string{"-filetype=obj", "-o", objFile, llFile}
	if target != "" {
		llcArgs = append([]string{"-mtriple=" + target}, llcArgs...)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	if out, err := exec.CommandContext(ctx, llcPath, llcArgs...).CombinedOutput(); err != nil {
		return errors.Wrapf(err, "llc failed: %s", string(out))
	}

	linkCtx, linkCancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer linkCancel()
	if out, err := exec.CommandContext(linkCtx, "clang", "-o", outName, objFile).CombinedOutput(); err != nil {
		return errors.Wrapf(err, "clang link failed: %s", string(out))
	}
	return nil
}

// RunExecutable executes a freshly built binary, forwarding stdio.
func RunExecutable(path string, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		if exitErr, ok := errors.Cause(err).(*exec.ExitError); ok {
			return exitErr
		}
		return errors.Wrap(err, "cannot run built executable")
	}
	return nil
}
