package common

import "fmt"

// These variables are injected at build time using -ldflags
var (
	SUMMARY = "development"
	BRANCH  = "unknown"
	VERSION = "dev"
	COMMIT  = "unknown"
)

const ProductName = "homeassistant-abode"

func GetVersion() string {
	if VERSION == "dev" {
		return "1.0.0-dev"
	}
	return VERSION
}

// UserAgent is how the bridge identifies itself to the Abode cloud.
func UserAgent() string {
	if COMMIT == "unknown" {
		return fmt.Sprintf("%s/%s", ProductName, GetVersion())
	}
	return fmt.Sprintf("%s/%s (%s)", ProductName, GetVersion(), COMMIT)
}
