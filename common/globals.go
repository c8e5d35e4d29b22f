package common

// LtoldVersion is the current ltold version as a string.
const LtoldVersion string = "0.1.0"

// ManifestFileName is the default name of a link manifest.
const ManifestFileName string = "ltold.toml"

// BuiltinPluginPath is the plugin path which selects the in-process LLVM IR
// backend instead of a shared library.
const BuiltinPluginPath string = "builtin:llir"

// OnloadSymbol is the name of the single entry point every linker plugin must
// export.
const OnloadSymbol string = "onload"
