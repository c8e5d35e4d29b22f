package irbackend

import (
	"context"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/llir/llvm/ir"
)

// CodegenJob describes the compilation of one module into a relocatable.
type CodegenJob struct {
	// Name is the name of the input the module was claimed from.
	Name   string
	Module *ir.Module

	// Output is the path of the object file to produce.
	Output string

	OptLevel int
	CPU      string
	PIC      bool
	LLC      string
}

// CodegenFunc compiles a module.  Jobs run concurrently.
type CodegenFunc func(ctx context.Context, job *CodegenJob) error

// LLCCodegen writes the module next to its output as LLVM IR source text and
// compiles it with `llc`.
func LLCCodegen(ctx context.Context, job *CodegenJob) error {
	llPath := strings.TrimSuffix(job.Output, ".o") + ".ll"

	file, err := os.Create(llPath)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", llPath)
	}

	_, err = job.Module.WriteTo(file)
	if cerr := file.Close(); err == nil {
		err = cerr
	}

	if err != nil {
		return errors.Wrapf(err, "failed to write %s", llPath)
	}

	args := []string{
		"-filetype=obj",
		"-O" + strconv.Itoa(job.OptLevel),
		"-o", job.Output,
	}

	if job.PIC {
		args = append(args, "-relocation-model=pic")
	}

	if job.CPU != "" {
		args = append(args, "-mcpu="+job.CPU)
	}

	args = append(args, llPath)

	out, err := exec.CommandContext(ctx, job.LLC, args...).CombinedOutput()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// llc ran but rejected the module
			return errors.Newf("%s: code generation failed:\n%s", job.Name, string(out))
		}

		return errors.Wrapf(err, "failed to run %s", job.LLC)
	}

	return nil
}
