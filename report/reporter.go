package report

import (
	"os"
	"sync"
	"time"
)

// Reporter is responsible for reporting errors, warnings, and other kinds of
// messages to the user during linking.  The reporter respects the set log
// level and is synchronized: its methods can be safely called from multiple
// goroutines (the in-process backend generates code concurrently).
type Reporter struct {
	// The mutex used to synchonize different report calls.
	m *sync.Mutex

	// The selected log level of the reporter.  This must be one of the
	// enumerated log levels below.
	logLevel int

	// Whether protocol trace messages should be displayed.
	trace bool

	// The number of errors and warnings reported so far.
	errorCount, warningCount int

	// The name and start time of the currently running phase.
	currentPhase   string
	phaseStartTime time.Time
}

// Enumeration of the different possible log levels.
const (
	LogLevelSilent  = iota // Displays no output.
	LogLevelError          // Displays only errors to the user.
	LogLevelWarn           // Displays only warnings and errors to the user.
	LogLevelVerbose        // Displays all link messages to the user (default).
)

// LogLevelNames maps the log level names accepted on the command line and in
// manifests to the enumerated log levels.
var LogLevelNames = map[string]int{
	"silent":  LogLevelSilent,
	"error":   LogLevelError,
	"warn":    LogLevelWarn,
	"verbose": LogLevelVerbose,
}

// rep is the global reporter instance.
var rep = &Reporter{m: &sync.Mutex{}, logLevel: LogLevelVerbose}

// exit terminates the process.  Tests replace it to observe fatal errors.
var exit = os.Exit

// InitReporter initializes the global reporter to the given log level and
// resets its error counts.
func InitReporter(logLevel int, trace bool) {
	rep.m.Lock()
	defer rep.m.Unlock()

	rep.logLevel = logLevel
	rep.trace = trace
	rep.errorCount = 0
	rep.warningCount = 0

	setTraceOutput(trace && logLevel > LogLevelSilent)
}
