package state

import (
	"github.com/juju/errors"
	"github.com/temoto/cellup/hardware/lte"
	"github.com/temoto/cellup/log2"
)

// Lte returns the modem link, created on first use from config.
func (g *Global) Lte() (*lte.Link, error) {
	var err error

	g.initLteOnce.Do(func() {
		defer recoverFatal(g.Log) // fix sync.Once silent panic

		// This may only be already set by NewTestContext()
		if g.Hardware.Lte.Link != nil {
			return
		}

		cfg := &g.Config.Hardware.Lte
		if g.Hardware.Lte.Porter == nil {
			if cfg.Device == "" {
				err = errors.Errorf("config: lte.device is empty")
				return
			}
			g.Hardware.Lte.Porter = lte.NewFilePorter()
		}
		lteLog := g.Log.Clone(log2.LInfo)
		if cfg.LogDebug {
			lteLog.SetLevel(log2.LDebug)
		}
		g.Hardware.Lte.Link = lte.NewLink(g.Hardware.Lte.Porter, *cfg, lteLog)
	})

	if err == nil && g.Hardware.Lte.Link == nil {
		err = errors.Errorf("lte link was not created, see init errors above")
	}
	return g.Hardware.Lte.Link, err
}
