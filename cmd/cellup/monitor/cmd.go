// Monitor runs the modem link without the uplink: registration, PSM,
// eDRX and RRC events go to the log. Useful to validate antenna and
// SIM provisioning before deploying the client.
package monitor

import (
	"context"

	"github.com/coreos/go-systemd/daemon"
	"github.com/juju/errors"
	"github.com/temoto/cellup/cmd/cellup/subcmd"
	"github.com/temoto/cellup/state"
)

var Mod = subcmd.Mod{Name: "monitor", Main: Main}

func Main(ctx context.Context, config *state.Config) error {
	g := state.GetGlobal(ctx)
	g.MustInit(ctx, config)

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

	subcmd.SdNotify(daemon.SdNotifyReady)
	g.Log.Infof("monitor running")

	go func() {
		if err := monitor.Wait(); err == nil {
			g.Log.Infof("network registration complete")
		}
	}()

	g.Alive.Wait()
	monitor.Cancel(nil)
	return nil
}
