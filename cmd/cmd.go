// Package cmd provides the ProcureFlow CLI commands.
//
// Commands:
//   - serve: HTTP API server with SSE chat streaming
//
// Signal handling and graceful shutdown are implemented via context
// cancellation.
package cmd

import (
	"fmt"
	"os"
)

// Execute is the main entry point for the ProcureFlow CLI.
func Execute() error {
	if len(os.Args) < 2 {
		return runServe()
	}

	switch os.Args[1] {
	case "serve":
		return runServe()
	case "version", "--version", "-v":
		runVersion()
		return nil
	case "help", "--help", "-h":
		runHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

// runHelp displays the help message.
func runHelp() {
	fmt.Println("ProcureFlow - procurement storefront backend")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  procureflow serve [addr] Start HTTP API server (default: :4000)")
	fmt.Println("  procureflow --version    Show version information")
	fmt.Println("  procureflow --help       Show this help")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  OPENAI_API_KEY           API key for the openai provider and transcription")
	fmt.Println("  GEMINI_API_KEY           API key for the gemini provider")
	fmt.Println("  PROCUREFLOW_PROVIDER     AI provider: openai (default) or gemini")
	fmt.Println("  PROCUREFLOW_MODEL_NAME   Chat model name (default: gpt-5-nano)")
	fmt.Println("  PROCUREFLOW_DATA_DIR     Directory for chat and cart state")
}
