package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/juju/errors"
	"github.com/temoto/cellup/cmd/cellup/client"
	"github.com/temoto/cellup/cmd/cellup/monitor"
	"github.com/temoto/cellup/cmd/cellup/subcmd"
	"github.com/temoto/cellup/log2"
	"github.com/temoto/cellup/state"
)

var log = log2.NewStderr(log2.LDebug)

var modules = []subcmd.Mod{
	client.Mod,
	monitor.Mod,
}

func main() {
	flagConfig := flag.String("config", "cellup.hcl", "")
	flag.Parse()

	if subcmd.SdNotify("start") {
		// under systemd assume journal logging, remove timestamp
		log.SetFlags(log2.LServiceFlags)
	} else {
		log.SetFlags(log2.LInteractiveFlags)
	}

	mod, err := subcmd.Parse(flag.Arg(0), modules)
	if err != nil {
		names := make([]string, 0, len(modules))
		for _, m := range modules {
			names = append(names, m.Name)
		}
		fmt.Fprintf(os.Stderr, "commands: %s\n", strings.Join(names, " "))
		log.Fatal(errors.ErrorStack(err))
	}

	ctx, g := state.NewContext(log)
	config := state.MustReadConfig(log, state.NewOsFullReader(), *flagConfig)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		log.Infof("stop signal")
		g.Alive.Stop()
	}()

	log.Debugf("command=%s config=%s", mod.Name, *flagConfig)
	if err := mod.Main(ctx, config); err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
}
