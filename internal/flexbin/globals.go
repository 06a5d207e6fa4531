package flexbin

import (
	"github.com/gookit/color"
)

// Upstream release identity. The version here is only the default; the
// effective version comes from the config (FLEX_VERSION override).
const (
	flexName           = "flex"
	defaultFlexVersion = "2.6.4"
	releaseURLTemplate = "https://github.com/westes/flex/releases/download/v%s/%s"
)

// Global variables
var (
	CacheDir   string
	CacheStore string
	BundleDir  string
	LogsDir    string
	tmpDir     string
	Debug      bool
	Verbose    bool
	ConfigFile = "/etc/flexbin.conf"
	version    = "dev"     // overridden at build time
	buildDate  = "unknown" // overridden at build time
)

// color helpers
var (
	colInfo    = color.Info // style provided by gookit/color
	colWarn    = color.Warn
	colError   = color.Error
	colSuccess = color.HEX("#1976D2")
	colArrow   = color.HEX("#FFEB3B")
)
