package state

import (
	"context"
	"testing"

	"github.com/juju/errors"
	"github.com/temoto/cellup/hardware/lte"
	"github.com/temoto/cellup/log2"
)

func NewTestContext(t testing.TB, confString string) (context.Context, *Global) {
	fs := NewMockFullReader(map[string]string{
		"test-inline": confString,
	})

	log := log2.NewTest(t, log2.LDebug)
	// log := log2.NewStderr(log2.LDebug) // useful with panics
	log.SetFlags(log2.LTestFlags)
	ctx, g := NewContext(log)
	g.MustInit(ctx, MustReadConfig(log, fs, "test-inline"))

	g.Hardware.Lte.Porter = lte.NewMockPorter(t)
	if _, err := g.Lte(); err != nil {
		t.Fatal(errors.Trace(err))
	}

	return ctx, g
}
