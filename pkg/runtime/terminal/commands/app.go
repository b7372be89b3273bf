package commands

import (
	"context"
	"os"

	"github.com/de-tools/secboard/pkg/runtime/terminal/export"
	"github.com/de-tools/secboard/pkg/services/attacksurface"
	"github.com/de-tools/secboard/pkg/services/pages"
)

const tokenEnv = "SECBOARD_GITHUB_TOKEN"

// App is what the commands need from the running CLI.
type App interface {
	Session(ctx context.Context) (*pages.Session, error)
	Reporter() *export.Reporter
	Prompter() attacksurface.TokenPrompter
}

// tokenSource prefers an explicit flag, then the environment, then asks.
func tokenSource(app App, flag string) attacksurface.TokenPrompter {
	if flag != "" {
		return attacksurface.StaticToken(flag)
	}
	if token := os.Getenv(tokenEnv); token != "" {
		return attacksurface.StaticToken(token)
	}
	return app.Prompter()
}
