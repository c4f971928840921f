package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
	DocURL   string
}

// Codes used outside this package.
const (
	CodeConfigNotFound     = "E100"
	CodeConfigInvalid      = "E101"
	CodeConfigParse        = "E102"
	CodeUnknownStore       = "E103"
	CodeDuplicateMessageID = "E200"
	CodeInvalidMessageID   = "E201"
	CodeDuplicateName      = "E202"
	CodeUDPBind            = "E300"
	CodeHTTPListen         = "E301"
	CodeStoreOpen          = "E302"
	CodeHeightmapSize      = "E400"
	CodeHeightmapRead      = "E401"
)

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Config Errors (E100-E199)
	// ============================================

	"E100": {
		Category: CategoryConfig,
		Message:  "Configuration file not found",
		Detail:   "No simwire.yaml was found at the given path. Run 'simwire serve --config <path>' or create the file.",
		DocURL:   "https://simwire.dev/docs/errors/E100",
	},
	"E101": {
		Category: CategoryConfig,
		Message:  "Invalid configuration value",
		Detail:   "A configuration value is out of range or inconsistent with another setting.",
		DocURL:   "https://simwire.dev/docs/errors/E101",
	},
	"E102": {
		Category: CategoryConfig,
		Message:  "Configuration file could not be parsed",
		Detail:   "The configuration file is not valid YAML or a field has the wrong type.",
		DocURL:   "https://simwire.dev/docs/errors/E102",
	},
	"E103": {
		Category: CategoryConfig,
		Message:  "Unknown terrain store",
		Detail:   "terrain.store must be one of memory, sql or s3.",
		DocURL:   "https://simwire.dev/docs/errors/E103",
	},

	// ============================================
	// Registry Errors (E200-E299)
	// ============================================

	"E200": {
		Category: CategoryRegistry,
		Message:  "Duplicate message id",
		Detail:   "Two message descriptors share the same id. The message table is compiled in, so this is a build defect.",
		DocURL:   "https://simwire.dev/docs/errors/E200",
	},
	"E201": {
		Category: CategoryRegistry,
		Message:  "Invalid message id",
		Detail:   "A message descriptor has an id outside the High, Medium, Low or Fixed ranges.",
		DocURL:   "https://simwire.dev/docs/errors/E201",
	},
	"E202": {
		Category: CategoryRegistry,
		Message:  "Duplicate message name",
		Detail:   "Two message descriptors share the same name. Event queue documents are keyed by name.",
		DocURL:   "https://simwire.dev/docs/errors/E202",
	},

	// ============================================
	// Startup Errors (E300-E399)
	// ============================================

	"E300": {
		Category: CategoryStartup,
		Message:  "Cannot bind UDP socket",
		Detail:   "The circuit listener could not bind its address. Another simulator may already be running on this port.",
		DocURL:   "https://simwire.dev/docs/errors/E300",
	},
	"E301": {
		Category: CategoryStartup,
		Message:  "Cannot start HTTP listener",
		Detail:   "The event queue and metrics listener could not bind its address.",
		DocURL:   "https://simwire.dev/docs/errors/E301",
	},
	"E302": {
		Category: CategoryStartup,
		Message:  "Cannot open terrain store",
		Detail:   "The configured terrain store could not be opened or initialized.",
		DocURL:   "https://simwire.dev/docs/errors/E302",
	},

	// ============================================
	// Terrain Tool Errors (E400-E499)
	// ============================================

	"E400": {
		Category: CategoryTerrain,
		Message:  "Heightmap has the wrong size",
		Detail:   "A raw heightmap must hold a whole number of 16x16 patches of little-endian float32 samples.",
		DocURL:   "https://simwire.dev/docs/errors/E400",
	},
	"E401": {
		Category: CategoryTerrain,
		Message:  "Cannot read heightmap",
		Detail:   "The heightmap or patch stream could not be read or decoded.",
		DocURL:   "https://simwire.dev/docs/errors/E401",
	},
}

// GetAllCodes returns all registered error codes.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}
