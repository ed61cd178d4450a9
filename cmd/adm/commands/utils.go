package commands

import (
	"strings"

	"studypath/internal/database"
	"studypath/internal/observability"
)

// maskDatabaseURL masks sensitive parts of the database URL for display
func maskDatabaseURL(url string) string {
	if strings.Contains(url, "@") {
		parts := strings.Split(url, "@")
		if len(parts) == 2 {
			return "postgres://***:***@" + parts[1]
		}
	}
	return url
}

func databaseManager(logger *observability.Logger) *database.Manager {
	return database.NewManager(logger)
}
