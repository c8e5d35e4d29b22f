package report

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// ReportICE reports an internal linker error.  These are errors that result
// from a bug or an unexpected condition occurring inside the linker such as a
// protocol phase being entered twice.  They are always displayed regardless
// of log level.
func ReportICE(message string, args ...interface{}) {
	rep.m.Lock()
	displayEndPhase(false)
	displayICE(fmt.Sprintf(message, args...))
	rep.m.Unlock()

	exit(-1)
}

// ReportFatal reports a fatal error.  These are errors that should cause the
// link to stop immediately.  However, they are expected errors that generally
// result from invalid configuration or environment: a missing plugin, an IR
// input with no plugin given, an unreadable input file, etc.
func ReportFatal(message string, args ...interface{}) {
	rep.m.Lock()
	rep.errorCount++
	if rep.logLevel > LogLevelSilent {
		displayEndPhase(false)
		displayFatal(fmt.Sprintf(message, args...))
	}
	rep.m.Unlock()

	exit(1)
}

// ReportFatalError reports `err` as a fatal error, unless it is an assertion
// failure in which case it is reported as an internal error.
func ReportFatalError(err error) {
	if errors.IsAssertionFailure(err) {
		ReportICE("%s", err)
	} else {
		ReportFatal("%s", err)
	}
}

// ReportError reports a non-fatal error: the link continues until the end of
// the current phase and then fails.
func ReportError(message string, args ...interface{}) {
	rep.m.Lock()
	defer rep.m.Unlock()

	rep.errorCount++
	if rep.logLevel > LogLevelSilent {
		displayMessage("error", ErrorStyleBG, ErrorColorFG, fmt.Sprintf(message, args...))
	}
}

// ReportWarning reports a warning.
func ReportWarning(message string, args ...interface{}) {
	rep.m.Lock()
	defer rep.m.Unlock()

	rep.warningCount++
	if rep.logLevel > LogLevelError {
		displayMessage("warning", WarnStyleBG, WarnColorFG, fmt.Sprintf(message, args...))
	}
}

// ReportInfo reports an informational message.
func ReportInfo(message string, args ...interface{}) {
	rep.m.Lock()
	defer rep.m.Unlock()

	if rep.logLevel == LogLevelVerbose {
		displayMessage("info", InfoStyleBG, InfoColorFG, fmt.Sprintf(message, args...))
	}
}

// Trace reports a protocol trace message.  These are only displayed when
// tracing was enabled in InitReporter.
func Trace(message string, args ...interface{}) {
	rep.m.Lock()
	defer rep.m.Unlock()

	if rep.trace && rep.logLevel > LogLevelSilent {
		displayTrace(fmt.Sprintf(message, args...))
	}
}

// AnyErrors returns whether or not any errors were reported.
func AnyErrors() bool {
	rep.m.Lock()
	defer rep.m.Unlock()

	return rep.errorCount > 0
}

// -----------------------------------------------------------------------------

// ReportBeginPhase reports the beginning of a link phase.  Any phase still
// running is ended successfully first.
func ReportBeginPhase(phase string) {
	rep.m.Lock()
	defer rep.m.Unlock()

	if rep.logLevel == LogLevelVerbose {
		displayEndPhase(true)
		displayBeginPhase(phase)
	}
}

// ReportEndPhase reports the end of the current link phase.  Its success is
// determined by whether any errors were reported.
func ReportEndPhase() {
	rep.m.Lock()
	defer rep.m.Unlock()

	if rep.logLevel == LogLevelVerbose {
		displayEndPhase(rep.errorCount == 0)
	}
}

// ReportLinkHeader reports information about the link configuration before
// the link begins.
func ReportLinkHeader(target, plugin string) {
	rep.m.Lock()
	defer rep.m.Unlock()

	if rep.logLevel == LogLevelVerbose {
		displayLinkHeader(target, plugin)
	}
}

// ReportLinkSummary displays the final link graph: each object with its
// priority and the symbols left undefined.
func ReportLinkSummary(rows [][]string, undefined []string) {
	rep.m.Lock()
	defer rep.m.Unlock()

	if rep.logLevel == LogLevelVerbose {
		displayEndPhase(rep.errorCount == 0)
		displayLinkSummary(rows, undefined)
	}
}

// ReportLinkFinished reports the concluding message of the link.
func ReportLinkFinished(outputPath string) {
	rep.m.Lock()
	defer rep.m.Unlock()

	if rep.logLevel > LogLevelSilent {
		displayEndPhase(rep.errorCount == 0)
		displayLinkFinished(rep.errorCount == 0, rep.errorCount, rep.warningCount, outputPath)
	}
}
