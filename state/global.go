package state

import (
	"context"
	"fmt"
	"sync"

	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
	"github.com/temoto/cellup/hardware/lte"
	"github.com/temoto/cellup/helpers"
	"github.com/temoto/cellup/log2"
	"github.com/temoto/cellup/uplink"
	uplink_config "github.com/temoto/cellup/uplink/config"
)

type Global struct {
	Alive    *alive.Alive
	Config   *Config
	Hardware struct {
		Lte struct {
			Link    *lte.Link
			Monitor *lte.RegMonitor
			Porter  lte.Porter
		}
	}
	Log    *log2.Log
	Uplink *uplink.Uplink

	initLteOnce sync.Once
}

const ContextKey = "run/state-global"

func GetGlobal(ctx context.Context) *Global {
	v := ctx.Value(ContextKey)
	if v == nil {
		panic(fmt.Sprintf("context['%s'] is nil", ContextKey))
	}
	if g, ok := v.(*Global); ok {
		return g
	}
	panic(fmt.Sprintf("context['%s'] expected type *Global actual=%#v", ContextKey, v))
}

func NewContext(log *log2.Log) (context.Context, *Global) {
	if log == nil {
		panic("code error NewContext() log=nil")
	}

	g := &Global{
		Alive: alive.NewAlive(),
		Log:   log,
	}
	ctx := context.Background()
	ctx = context.WithValue(ctx, log2.ContextKey, log)
	ctx = context.WithValue(ctx, ContextKey, g)

	return ctx, g
}

// If `Init` fails, consider `Global` is in broken state.
func (g *Global) Init(ctx context.Context, cfg *Config) error {
	g.Config = cfg

	errs := make([]error, 0)

	g.Hardware.Lte.Monitor = lte.NewRegMonitor(g.Log)

	// uplink section may be absent for link-only tools
	if g.Config.Uplink != (uplink_config.Config{}) {
		uplinkLog := g.Log.Clone(log2.LInfo)
		if g.Config.Uplink.LogDebug {
			uplinkLog.SetLevel(log2.LDebug)
		}
		g.Uplink = new(uplink.Uplink)
		if err := g.Uplink.Init(ctx, uplinkLog, g.Config.Uplink); err != nil {
			errs = append(errs, errors.Annotate(err, "uplink init"))
		}
	}

	return helpers.FoldErrors(errs)
}

func (g *Global) MustInit(ctx context.Context, cfg *Config) {
	err := g.Init(ctx, cfg)
	if err != nil {
		g.Log.Fatal(errors.ErrorStack(err))
	}
}

func (g *Global) Error(err error, args ...interface{}) {
	if err != nil {
		if len(args) != 0 {
			msg := args[0].(string)
			args = args[1:]
			err = errors.Annotatef(err, msg, args...)
		}
		g.Log.Errorf(errors.ErrorStack(err))
	}
}

func recoverFatal(f helpers.Fataler) {
	if x := recover(); x != nil {
		f.Fatal(x)
	}
}
