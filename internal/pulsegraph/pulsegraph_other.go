//go:build !linux

package pulsegraph

import (
	"fmt"

	"go.uber.org/zap"

	"soundbridge/internal/bridge"
	"soundbridge/internal/config"
)

// Graph is only available on Linux.
type Graph struct{}

func Connect(_ *config.Config, _ *bridge.Bridge, _ *zap.Logger) (*Graph, error) {
	return nil, fmt.Errorf("host graph binding not supported on this platform")
}

func (g *Graph) Fatal() <-chan error { return nil }

func (g *Graph) Close() {}
