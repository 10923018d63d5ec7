// Main, user facing mode of operation: bring up the modem link, wait
// for network registration, then run the periodic uplink until stopped.
package client

import (
	"context"

	"github.com/coreos/go-systemd/daemon"
	"github.com/juju/errors"
	"github.com/temoto/cellup/cmd/cellup/subcmd"
	"github.com/temoto/cellup/state"
)

var Mod = subcmd.Mod{Name: "client", Main: Main}

func Main(ctx context.Context, config *state.Config) error {
	g := state.GetGlobal(ctx)
	g.MustInit(ctx, config)

	if g.Uplink == nil {
		return errors.Errorf("config: uplink section is required in client mode")
	}

	link, err := g.Lte()
	if err != nil {
		return errors.Annotate(err, "lte init")
	}
	monitor := g.Hardware.Lte.Monitor

	if err := link.Start(ctx, monitor.Handle); err != nil {
		return errors.Annotate(err, "lte start")
	}
	defer link.Stop()
	link.ConfigureLowPower(ctx)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-g.Alive.StopChan():
			monitor.Cancel(nil)
			cancel()
		case <-runCtx.Done():
		}
	}()

	g.Log.Infof("waiting for network registration")
	if err := monitor.Wait(); err != nil {
		if !g.Alive.IsRunning() {
			return nil
		}
		return errors.Annotate(err, "registration")
	}

	subcmd.SdNotify(daemon.SdNotifyReady)
	g.Log.Debugf("client init complete")

	err = g.Uplink.Run(runCtx)
	g.Uplink.Stop()
	return errors.Trace(err)
}
