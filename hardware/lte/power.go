package lte

import (
	"strconv"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/cellup/helpers"
	"github.com/temoto/gpio-cdev-go"
)

const DefaultPowerPulse = 100 * time.Millisecond

// powerPulse strobes the modem power key pin. Some modules stay dark
// until they see this pulse after cold boot.
func (self *Link) powerPulse() error {
	cfg := &self.config
	pin64, err := strconv.ParseUint(cfg.PowerPin, 10, 32)
	if err != nil {
		return errors.NotValidf("lte power_pin=%s", cfg.PowerPin)
	}
	pin := uint32(pin64)

	chip, err := gpio.Open(cfg.PowerChip, "cellup")
	if err != nil {
		return errors.Annotatef(err, "gpio open chip=%s", cfg.PowerChip)
	}
	defer chip.Close()
	lines, err := chip.OpenLines(gpio.GPIOHANDLE_REQUEST_OUTPUT, "cellup", pin)
	if err != nil {
		return errors.Annotatef(err, "gpio lines chip=%s pin=%d", cfg.PowerChip, pin)
	}
	defer lines.Close()
	set := lines.SetFunc(pin)

	pulse := helpers.IntMillisecondDefault(cfg.PowerPulseMs, DefaultPowerPulse)
	set(1)
	if err = lines.Flush(); err != nil {
		return errors.Trace(err)
	}
	time.Sleep(pulse)
	set(0)
	if err = lines.Flush(); err != nil {
		return errors.Trace(err)
	}
	self.Log.Debugf("lte: power pulse chip=%s pin=%d t=%v", cfg.PowerChip, pin, pulse)
	return nil
}
