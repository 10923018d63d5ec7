package main

import (
	"context"
	"flag"
	"os"
	"strconv"
	"strings"
	"time"

	prompt "github.com/c-bata/go-prompt"
	"github.com/juju/errors"
	"github.com/temoto/cellup/hardware/lte"
	"github.com/temoto/cellup/helpers/cli"
	"github.com/temoto/cellup/log2"
	"github.com/temoto/cellup/state"
)

const usage = `syntax: commands separated by whitespace
(main)
- AT...    send raw AT command, wait for the final result
- psm=1    request PSM with configured timers, psm=0 to disable
- edrx=1   request eDRX with configured value, edrx=0 to disable
- rai      enable release assistance indication
- sN       pause N milliseconds

(meta)
- log=yes  enable debug logging
- log=no   disable debug logging
- loop=N   repeat N times all commands on this line
`

var log = log2.NewStderr(log2.LDebug)

func main() {
	cmdline := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	devicePath := cmdline.String("device", "/dev/ttyACM0", "")
	baud := cmdline.Int("baud", 115200, "")
	timeoutSec := cmdline.Int("timeout", 10, "AT command timeout in seconds")
	cmdline.Parse(os.Args[1:])

	log.SetFlags(log2.LInteractiveFlags)

	config := new(state.Config)
	config.Hardware.Lte.Device = *devicePath
	config.Hardware.Lte.Baud = *baud
	config.Hardware.Lte.CommandTimeoutSec = *timeoutSec
	config.Hardware.Lte.LogDebug = true

	ctx, g := state.NewContext(log)
	g.MustInit(ctx, config)
	link, err := g.Lte()
	if err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	if err := link.Start(ctx, g.Hardware.Lte.Monitor.Handle); err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	defer link.Stop()

	cli.MainLoop("cellup-lte-cli", newExecutor(ctx), newCompleter(ctx))
}

type doer func(context.Context) error

func withLink(f func(context.Context, *lte.Link) error) doer {
	return func(ctx context.Context) error {
		link, err := state.GetGlobal(ctx).Lte()
		if err != nil {
			return err
		}
		return f(ctx, link)
	}
}

func newCompleter(ctx context.Context) func(d prompt.Document) []prompt.Suggest {
	suggests := []prompt.Suggest{
		prompt.Suggest{Text: "at+cereg?", Description: "query registration status"},
		prompt.Suggest{Text: "at+cpsms?", Description: "query PSM settings"},
		prompt.Suggest{Text: "psm=1", Description: "request power saving mode"},
		prompt.Suggest{Text: "edrx=1", Description: "request eDRX"},
		prompt.Suggest{Text: "rai", Description: "enable release assistance"},
		prompt.Suggest{Text: "sN", Description: "pause for N ms"},
		prompt.Suggest{Text: "loop=N", Description: "repeat line N times"},
	}

	return func(d prompt.Document) []prompt.Suggest {
		return prompt.FilterFuzzy(suggests, d.GetWordBeforeCursor(), true)
	}
}

func newExecutor(ctx context.Context) func(string) {
	g := state.GetGlobal(ctx)
	return func(line string) {
		ds, loopn, err := parseLine(line)
		if err != nil {
			g.Log.Errorf(errors.ErrorStack(err))
			return
		}
		for i := uint(0); i < loopn; i++ {
			for _, d := range ds {
				if err := d(ctx); err != nil {
					g.Log.Errorf(errors.ErrorStack(err))
					return
				}
			}
		}
	}
}

func parseLine(line string) ([]doer, uint, error) {
	words := strings.Fields(line)
	if len(words) == 0 {
		return nil, 0, nil
	}

	// pre-parse special commands
	loopn := uint(1)
	wordsRest := make([]string, 0, len(words))
	for _, word := range words {
		switch {
		case word == "help":
			return []doer{func(context.Context) error { log.Infof(usage); return nil }}, 1, nil
		case strings.HasPrefix(word, "loop="):
			i, err := strconv.ParseUint(word[5:], 10, 32)
			if err != nil {
				return nil, 0, errors.Annotatef(err, "word=%s", word)
			}
			loopn = uint(i)
		default:
			wordsRest = append(wordsRest, word)
		}
	}

	ds := make([]doer, 0, len(wordsRest))
	for _, word := range wordsRest {
		d, err := parseCommand(word)
		if err != nil {
			return nil, 0, err
		}
		ds = append(ds, d)
	}
	return ds, loopn, nil
}

func parseCommand(word string) (doer, error) {
	switch {
	case word == "log=yes":
		return withLink(func(_ context.Context, l *lte.Link) error {
			l.Log.SetLevel(log2.LDebug)
			return nil
		}), nil
	case word == "log=no":
		return withLink(func(_ context.Context, l *lte.Link) error {
			l.Log.SetLevel(log2.LError)
			return nil
		}), nil
	case word == "psm=1" || word == "psm=0":
		enable := word == "psm=1"
		return withLink(func(ctx context.Context, l *lte.Link) error {
			return l.RequestPSM(ctx, enable)
		}), nil
	case word == "edrx=1" || word == "edrx=0":
		enable := word == "edrx=1"
		return withLink(func(ctx context.Context, l *lte.Link) error {
			return l.RequestEDRX(ctx, enable)
		}), nil
	case word == "rai":
		return withLink(func(ctx context.Context, l *lte.Link) error {
			return l.RequestRAI(ctx)
		}), nil
	case len(word) >= 2 && strings.EqualFold(word[:2], "at"):
		return withLink(func(ctx context.Context, l *lte.Link) error {
			return l.Command(ctx, word)
		}), nil
	case word[0] == 's':
		i, err := strconv.ParseUint(word[1:], 10, 32)
		if err != nil {
			return nil, errors.Annotatef(err, "word=%s", word)
		}
		return func(context.Context) error {
			time.Sleep(time.Duration(i) * time.Millisecond)
			return nil
		}, nil
	default:
		return nil, errors.Errorf("error: invalid command: '%s'", word)
	}
}
