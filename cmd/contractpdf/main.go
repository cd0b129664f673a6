// Command contractpdf composes signed contract PDFs.
//
// Usage:
//
//	contractpdf <command> [options]
//
// Commands:
//
//	generate  Compose a signed contract from local files
//	fields    List the form fields of a template
//	serve     Run the HTTP API
//	version   Show version information
//
// Examples:
//
//	# Compose a contract locally
//	contractpdf generate --template alta.pdf --signature firma.png \
//	  --field legal-name="María Gómez" --out contrato.pdf
//
//	# Run the API with a configuration file
//	contractpdf serve --config contractpdf.yaml
package main

import (
	"github.com/georgepadayatti/contractpdf/cli"
)

// These variables are set at build time using ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.buildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)" ./cmd/contractpdf
var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	cli.Version = version
	cli.BuildTime = buildTime

	cli.Run()
}
