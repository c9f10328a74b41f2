package routes

import (
	"log/slog"

	"static-server/handlers"
	"static-server/protocol"
)

// InitializeRoutes builds the handler chain serving files under root.
// An empty root serves the process's working directory.
func InitializeRoutes(root string, log *slog.Logger) (protocol.Handler, error) {
	static := handlers.NewStaticFileHandler(root)
	if root == "" {
		var err error
		if static, err = handlers.InCurrentDir(); err != nil {
			return nil, err
		}
	}
	log.Info("serving static files", "root", static.Root)

	return handlers.Chain(static,
		handlers.RecoveryMiddleware(log),
		handlers.LoggingMiddleware(log),
	), nil
}
