// Package apps maps APP_ID values to the applications compiled into
// this server binary.
package apps

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/pairlink/pairlink-server/internal/apps/blockduel"
	"github.com/pairlink/pairlink-server/internal/session"
)

type factory func(*zerolog.Logger) session.App

var registry = map[string]factory{
	"blockduel": func(l *zerolog.Logger) session.App { return blockduel.New(l) },
}

// New instantiates the application registered under appID.
func New(appID string, logger *zerolog.Logger) (session.App, error) {
	f, ok := registry[appID]
	if !ok {
		return nil, fmt.Errorf("unknown app %q (have %v)", appID, Names())
	}
	return f(logger), nil
}

// Names lists the registered app ids, sorted.
func Names() []string {
	out := make([]string, 0, len(registry))
	for id := range registry {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
