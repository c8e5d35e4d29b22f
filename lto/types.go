package lto

// Handle identifies a claimed input file across the plugin boundary.  Handles
// are assigned sequentially from 1 and never reused within a session.
type Handle uintptr

// PluginSymbol is a symbol of an IR object as reported by the plugin.
type PluginSymbol struct {
	Name        string
	Version     string
	Def         SymbolKind
	SymbolType  SymbolType
	SectionKind SymbolSectionKind
	Visibility  SymbolVisibility
	Size        uint64
	ComdatKey   string

	// Resolution is filled in by the get-symbols callbacks.
	Resolution Resolution
}

// PluginInputFile is the descriptor of a claimed input handed to the plugin.
// For archive members, Name is the path of the archive and Offset is the
// member's position inside it.
type PluginInputFile struct {
	Name     string
	Fd       int
	Offset   int64
	FileSize int64
	Handle   Handle
}

// TagValue is one entry of the transfer vector.  Value is an int-like
// constant, a string, or one of the function types below, depending on Tag.
type TagValue struct {
	Tag   Tag
	Value any
}

// Hooks the plugin registers during onload.
type (
	ClaimFileHook      func(file *PluginInputFile) (claimed bool, status Status)
	AllSymbolsReadHook func() Status
	CleanupHook        func() Status
)

// Capabilities the linker offers to the plugin.
type (
	MessageFunc                    func(level Level, msg string) Status
	RegisterClaimFileHookFunc      func(hook ClaimFileHook) Status
	RegisterAllSymbolsReadHookFunc func(hook AllSymbolsReadHook) Status
	RegisterCleanupHookFunc        func(hook CleanupHook) Status
	AddSymbolsFunc                 func(handle Handle, syms []PluginSymbol) Status
	GetSymbolsFunc                 func(handle Handle, syms []PluginSymbol) Status
	AddInputFileFunc               func(path string) Status
	GetInputFileFunc               func(handle Handle) (*PluginInputFile, Status)
	GetViewFunc                    func(handle Handle) ([]byte, Status)
	UnsupportedFunc                func() Status
)

// Loader starts a plugin by passing it the transfer vector.  The plugin
// registers its hooks through the vector's capabilities before Load
// returns.
type Loader interface {
	Load(path string, tv []TagValue) error
}
