package irbackend

import (
	"runtime"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// options are the plugin options passed through the OPTION tag.
type options struct {
	// optLevel is the llc optimization level: 0 to 3.
	optLevel int

	// llc is the code generator to run.
	llc string

	// jobs bounds the number of modules compiled in parallel.
	jobs int

	// saveTemps keeps the work directory after cleanup.
	saveTemps bool

	// mcpu is passed to llc as -mcpu when set.
	mcpu string
}

func defaultOptions() options {
	return options{
		optLevel: 2,
		llc:      "llc",
		jobs:     runtime.NumCPU(),
	}
}

// parse applies a single option.  It returns false for options it does not
// know.  Options may be spelled with or without a leading dash.
func (o *options) parse(opt string) (bool, error) {
	opt = strings.TrimLeft(opt, "-")

	switch {
	case len(opt) == 2 && opt[0] == 'O':
		level, err := strconv.Atoi(opt[1:])
		if err != nil || level < 0 || level > 3 {
			return true, errors.Newf("invalid optimization level: %s", opt)
		}

		o.optLevel = level
	case strings.HasPrefix(opt, "llc="):
		o.llc = strings.TrimPrefix(opt, "llc=")
	case strings.HasPrefix(opt, "jobs="):
		jobs, err := strconv.Atoi(strings.TrimPrefix(opt, "jobs="))
		if err != nil || jobs < 1 {
			return true, errors.Newf("invalid number of jobs: %s", opt)
		}

		o.jobs = jobs
	case opt == "save-temps":
		o.saveTemps = true
	case strings.HasPrefix(opt, "mcpu="):
		o.mcpu = strings.TrimPrefix(opt, "mcpu=")
	default:
		return false, nil
	}

	return true, nil
}
