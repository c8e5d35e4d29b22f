package report

import (
	"fmt"
	"os"
	"strings"
	"time"

	"ltold/common"

	"github.com/pterm/pterm"
)

var (
	SuccessColorFG = pterm.FgLightGreen
	SuccessStyleBG = pterm.NewStyle(pterm.BgLightGreen, pterm.FgBlack)
	WarnColorFG    = pterm.FgYellow
	WarnStyleBG    = pterm.NewStyle(pterm.BgYellow, pterm.FgBlack)
	ErrorColorFG   = pterm.FgRed
	ErrorStyleBG   = pterm.NewStyle(pterm.BgRed, pterm.FgWhite)
	InfoColorFG    = SuccessColorFG
	InfoStyleBG    = SuccessStyleBG
)

// setTraceOutput turns the pterm debug printer on or off.
func setTraceOutput(enabled bool) {
	pterm.PrintDebugMessages = enabled
}

// displayICE displays an internal linker error message.
func displayICE(message string) {
	fmt.Print("\n")
	ErrorStyleBG.Print("Internal Error")
	ErrorColorFG.Println(" " + message)
	InfoColorFG.Println(icePostlude)
}

const icePostlude = `This is likely a bug in ltold: please open an issue including the
plugin you were using and the output of the link with --trace.`

// displayFatal displays a fatal error message.
func displayFatal(message string) {
	fmt.Print("\n")
	ErrorStyleBG.Print("Fatal Error")
	ErrorColorFG.Println(" " + message)
}

// displayMessage displays a labeled message.  The label is the string the
// message is prefixed with: eg. if we want to display an error, the label is
// "error".
func displayMessage(label string, labelStyle *pterm.Style, fg pterm.Color, message string) {
	labelStyle.Print(label)
	fg.Println(" " + message)
}

// displayTrace displays a protocol trace message.
func displayTrace(message string) {
	pterm.Debug.Println(message)
}

// -----------------------------------------------------------------------------

// displayLinkHeader displays all the linker information before starting the
// link.
func displayLinkHeader(target, plugin string) {
	fmt.Print("ltold ")
	InfoColorFG.Print("v" + common.LtoldVersion)
	fmt.Print(" -- target: ")
	InfoColorFG.Println(target)

	if plugin != "" {
		fmt.Print("using plugin ")
		InfoColorFG.Println(plugin)
	}
}

// maxPhaseLength is the length of the longest phase name: used to align the
// phase timings.
const maxPhaseLength = len("Compiling IR")

// displayBeginPhase displays the beginning of a link phase.
func displayBeginPhase(phase string) {
	rep.currentPhase = phase
	rep.phaseStartTime = time.Now()

	InfoColorFG.Println(phase + "...")
}

// displayEndPhase displays the end of the current link phase if there is one.
func displayEndPhase(success bool) {
	if rep.currentPhase == "" {
		return
	}

	padding := 2
	if len(rep.currentPhase) < maxPhaseLength {
		padding += maxPhaseLength - len(rep.currentPhase)
	}

	if success {
		SuccessStyleBG.Print("Done")
		fmt.Printf(" %s%s(%.3fs)\n",
			rep.currentPhase,
			strings.Repeat(" ", padding),
			time.Since(rep.phaseStartTime).Seconds(),
		)
	} else {
		ErrorStyleBG.Print("Fail")
		fmt.Println(" " + rep.currentPhase)
	}

	rep.currentPhase = ""
}

// displayLinkSummary displays the link graph table and undefined symbols.
func displayLinkSummary(rows [][]string, undefined []string) {
	fmt.Println()

	data := pterm.TableData{{"Priority", "Kind", "File", "Symbols"}}
	data = append(data, rows...)
	if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}

	if len(undefined) > 0 {
		fmt.Println()
		WarnStyleBG.Print("Undefined")
		WarnColorFG.Println(" " + strings.Join(undefined, ", "))
	}
}

// displayLinkFinished displays a link finished message.
func displayLinkFinished(success bool, errorCount, warningCount int, outputPath string) {
	fmt.Print("\n")

	if success {
		SuccessColorFG.Print("All done! ")
	} else {
		ErrorColorFG.Print("Oh no! ")
	}

	fmt.Print("(")

	switch errorCount {
	case 0:
		SuccessColorFG.Print(0)
		fmt.Print(" errors, ")
	case 1:
		ErrorColorFG.Print(1)
		fmt.Print(" error, ")
	default:
		ErrorColorFG.Print(errorCount)
		fmt.Print(" errors, ")
	}

	switch warningCount {
	case 0:
		SuccessColorFG.Print(0)
		fmt.Print(" warnings)")
	case 1:
		WarnColorFG.Print(1)
		fmt.Print(" warning)")
	default:
		WarnColorFG.Print(warningCount)
		fmt.Print(" warnings)")
	}

	if success && outputPath != "" {
		fmt.Print(" -> ")
		InfoColorFG.Print(outputPath)
	}

	fmt.Println()
}
