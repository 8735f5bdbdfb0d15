// Package app wires configuration, the AI runtime, storage, and the HTTP
// surface into a ready-to-serve application.
package app

import (
	"github.com/firebase/genkit/go/genkit"

	"github.com/procureflow/procureflow/internal/api"
	"github.com/procureflow/procureflow/internal/assistant"
	"github.com/procureflow/procureflow/internal/cart"
	"github.com/procureflow/procureflow/internal/catalog"
	"github.com/procureflow/procureflow/internal/chatstore"
	"github.com/procureflow/procureflow/internal/config"
	"github.com/procureflow/procureflow/internal/log"
	"github.com/procureflow/procureflow/internal/tools"
	"github.com/procureflow/procureflow/internal/transcribe"
)

// App is the core application container.
type App struct {
	Config *config.Config
	Logger log.Logger

	Genkit    *genkit.Genkit
	Catalog   catalog.Repository
	Cart      *cart.Store
	ChatStore *chatstore.Store
	Tools     *tools.Kit

	// Agent and Transcriber are nil when the provider API key is absent;
	// the API layer answers the affected endpoints with a configuration
	// error instead of refusing to start.
	Agent       *assistant.Agent
	Transcriber transcribe.Transcriber

	Server *api.Server
}
