package errors

import "sort"

// Template defines a registered error type.
type Template struct {
	Category   Category
	Message    string
	Detail     string
	Suggestion string
}

// registry maps error codes to their templates.
var registry = map[string]Template{
	// Configuration (E100-E199)

	"E101": {
		Category:   CategoryConfig,
		Message:    "Config file not found",
		Detail:     "The file passed with --config does not exist.",
		Suggestion: "Check the path or omit --config to look for vstore.json or vstore.toml in the working directory.",
	},
	"E102": {
		Category:   CategoryConfig,
		Message:    "Invalid config file",
		Detail:     "The config file could not be parsed.",
		Suggestion: "Validate the file syntax. JSON and TOML are supported.",
	},
	"E103": {
		Category:   CategoryConfig,
		Message:    "Unsupported config format",
		Detail:     "Config files must end in .json or .toml.",
		Suggestion: "Rename the file or convert it to JSON or TOML.",
	},
	"E104": {
		Category:   CategoryConfig,
		Message:    "Invalid config value",
		Suggestion: "Fix the value in the config file or the matching VSTORE_ environment variable.",
	},
	"E105": {
		Category:   CategoryConfig,
		Message:    "Cannot read environment file",
		Suggestion: "Check the permissions and syntax of .env and .env.local.",
	},

	// Storage (E200-E299)

	"E201": {
		Category:   CategoryStorage,
		Message:    "Unknown storage backend",
		Suggestion: "Use one of: memory, file, sqlite, s3.",
	},
	"E202": {
		Category:   CategoryStorage,
		Message:    "Storage backend unavailable",
		Detail:     "The storage backend could not be opened.",
		Suggestion: "Check the storage settings and that the backend is reachable.",
	},
	"E203": {
		Category:   CategoryStorage,
		Message:    "Storage entry unreadable",
	},

	// Server (E300-E399)

	"E301": {
		Category:   CategoryServer,
		Message:    "Server failed",
		Suggestion: "Check that the listen address is free.",
	},

	// CLI (E400-E499)

	"E401": {
		Category:   CategoryCLI,
		Message:    "Unknown store",
		Suggestion: "Run 'vstore inspect' without arguments to list the stores.",
	},
	"E402": {
		Category: CategoryCLI,
		Message:  "Invalid argument",
	},
}

// Codes returns all registered error codes in order.
func Codes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Lookup returns the template for an error code.
func Lookup(code string) (Template, bool) {
	t, ok := registry[code]
	return t, ok
}
