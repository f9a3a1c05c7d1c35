package helpers

import (
	"log/slog"
	"os"
)

// SetupLogger creates a properly configured logger for bridge components.
// If the provided handler is nil, it creates a default handler with appropriate grouping.
//
// Parameters:
//   - handler: The slog.Handler to use, or nil for defaults
//   - component: The name of the component (e.g., "session", "commandport")
//   - groupName: Optional additional group name within the component
//
// Returns:
//   - The configured handler
//   - A logger created from the handler
func SetupLogger(handler slog.Handler, component string, groupName string) (slog.Handler, *slog.Logger) {
	if handler == nil {
		defaultHandler := slog.NewTextHandler(os.Stdout, nil)
		handler = defaultHandler.WithGroup(component)
	}

	var logger *slog.Logger
	if groupName != "" {
		logger = slog.New(handler.WithGroup(groupName))
	} else {
		logger = slog.New(handler)
	}

	return handler, logger
}
