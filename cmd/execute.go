// Package cmd implements the `ltold` command line: it loads a link manifest,
// applies the command line overrides and runs the link.
package cmd

import (
	"os"

	"github.com/ComedicChimera/olive"
	"github.com/cockroachdb/errors"

	"ltold/common"
	"ltold/config"
	"ltold/ld"
	"ltold/report"
)

// Execute is the main entry point for the `ltold` CLI utility
func Execute() {
	// set up the argument parser and all its extended commands and arguments
	cli := olive.NewCLI("ltold", "ltold links ELF programs with link-time optimization plugins", true)
	logLvlArg := cli.AddSelectorArg("loglevel", "ll", "the linker log level", false, []string{"silent", "error", "warn", "verbose"})
	logLvlArg.SetDefaultValue("verbose")

	linkCmd := cli.AddSubcommand("link", "link the inputs of a manifest", true)
	linkCmd.AddPrimaryArg("manifest-path", "the path to the manifest or its directory", true)
	linkCmd.AddStringArg("plugin", "p", "the linker plugin to load (overrides the manifest)", false)
	linkCmd.AddStringArg("output", "o", "the output path (overrides the manifest)", false)
	linkCmd.AddSelectorArg("kind", "k", "the output kind (overrides the manifest)", false, []string{"exe", "pie", "shared"})
	linkCmd.AddFlag("trace", "t", "trace every call made through the plugin interface")

	cli.AddSubcommand("version", "print the ltold version", false)

	// run the argument parser
	result, err := olive.ParseArgs(cli, os.Args)
	if err != nil {
		report.ReportFatal("%s", err.Error())
	}

	// process the inputed command line
	subcmdName, subResult, _ := result.Subcommand()
	switch subcmdName {
	case "link":
		execLinkCommand(subResult, result.Arguments["loglevel"].(string))
	case "version":
		report.InitReporter(report.LogLevelVerbose, false)
		report.ReportInfo("ltold version %s", common.LtoldVersion)
	}
}

// execLinkCommand executes the link subcommand and handles all errors
func execLinkCommand(result *olive.ArgParseResult, loglevel string) {
	report.InitReporter(report.LogLevelNames[loglevel], result.HasFlag("trace"))

	manifestPath, _ := result.PrimaryArg()
	manifest, err := config.LoadManifest(manifestPath)
	if err != nil {
		report.ReportFatalError(err)
		return
	}

	if err := applyOverrides(manifest, result.Arguments); err != nil {
		report.ReportFatalError(err)
		return
	}

	l := NewLinker(manifest)
	err = l.Link()

	// the plugin gets its cleanup call even when the link failed
	err = errors.CombineErrors(err, l.Close())
	if err != nil {
		report.ReportFatalError(err)
		return
	}

	report.ReportLinkFinished(manifest.Args.Output)
}

// applyOverrides replaces the manifest settings given on the command line.
func applyOverrides(manifest *config.Manifest, args map[string]interface{}) error {
	if plugin, ok := args["plugin"]; ok {
		manifest.Args.Plugin = plugin.(string)
	}

	if output, ok := args["output"]; ok {
		manifest.Args.Output = output.(string)
	}

	if kindName, ok := args["kind"]; ok {
		kind, ok := ld.OutputKindNames[kindName.(string)]
		if !ok {
			return errors.Newf("unknown output kind `%s`", kindName)
		}

		manifest.Args.Kind = kind
	}

	return nil
}
