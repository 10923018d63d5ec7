package state

import (
	"context"
	"strings"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/cellup/log2"
)

func TestReadConfig(t *testing.T) {
	t.Parallel()

	type Case struct {
		name      string
		input     string
		check     func(testing.TB, context.Context)
		expectErr string
	}
	cases := []Case{
		{"empty", "", nil, ""},

		{"lte",
			`hardware { lte { device = "/dev/shmoo" baud = 57600 psm_enable = true } }`,
			func(t testing.TB, ctx context.Context) {
				g := GetGlobal(ctx)
				assert.Equal(t, "/dev/shmoo", g.Config.Hardware.Lte.Device)
				assert.Equal(t, 57600, g.Config.Hardware.Lte.Baud)
				assert.True(t, g.Config.Hardware.Lte.PsmEnable)
			},
			"",
		},

		{"uplink", `
uplink {
	server_address = "127.0.0.1"
	server_port = 4242
	upload_size_bytes = 10
	upload_interval_sec = 5
}`,
			func(t testing.TB, ctx context.Context) {
				g := GetGlobal(ctx)
				assert.Equal(t, "127.0.0.1", g.Config.Uplink.ServerAddress)
				assert.Equal(t, 4242, g.Config.Uplink.ServerPort)
				require.NotNil(t, g.Uplink)
			},
			"",
		},

		{"uplink-invalid",
			`uplink { server_address = "127.0.0.1" server_port = 99999 }`,
			nil, "server_port"},

		{"include-normalize", `
hardware { lte { baud = 9600 } }
include "./empty" {}`,
			nil, ""},

		{"include-optional", `
include "lte-base" {}
include "non-exist" { optional = true }`,
			func(t testing.TB, ctx context.Context) {
				g := GetGlobal(ctx)
				assert.Equal(t, 115200, g.Config.Hardware.Lte.Baud)
			}, ""},

		{"include-overwrites", `
hardware { lte { baud = 9600 } }
include "lte-base" {}`,
			func(t testing.TB, ctx context.Context) {
				g := GetGlobal(ctx)
				assert.Equal(t, 115200, g.Config.Hardware.Lte.Baud)
			}, ""},

		{"error-syntax", `hello`, nil, "key 'hello' expected start of object"},
		{"error-include-loop", `include "include-loop" {}`, nil, "config include loop: from=include-loop include=include-loop"},
	}
	mkCheck := func(c Case) func(*testing.T) {
		return func(t *testing.T) {
			// log := log2.NewStderr(log2.LDebug) // helps with panics
			log := log2.NewTest(t, log2.LDebug)
			ctx, g := NewContext(log)

			fs := NewMockFullReader(map[string]string{
				"test-inline":  c.input,
				"empty":        "",
				"lte-base":     `hardware { lte { device = "/dev/ttyS1" baud = 115200 } }`,
				"include-loop": `include "include-loop" {}`,
			})
			cfg, err := ReadConfig(log, fs, "test-inline")
			if err == nil {
				err = g.Init(ctx, cfg)
			}
			if c.expectErr == "" {
				if err != nil {
					t.Fatalf("error expected=nil actual='%v'", errors.ErrorStack(err))
				}
				if c.check != nil {
					c.check(t, ctx)
				}
			} else {
				if !strings.Contains(err.Error(), c.expectErr) {
					t.Fatalf("error expected='%s' actual='%v'", c.expectErr, err)
				}
			}
		}
	}
	for _, c := range cases {
		t.Run(c.name, mkCheck(c))
	}
}

func TestNewTestContext(t *testing.T) {
	t.Parallel()

	_, g := NewTestContext(t, `hardware { lte { device = "/dev/null" } }`)
	link, err := g.Lte()
	require.NoError(t, err)
	require.NotNil(t, link)
	require.NotNil(t, g.Hardware.Lte.Monitor)
}

func TestFunctionalBundled(t *testing.T) {
	// not Parallel
	t.Logf("this test needs OS open|read|stat access to file `../cellup.hcl`")

	log := log2.NewTest(t, log2.LDebug)
	MustReadConfig(log, NewOsFullReader(), "../cellup.hcl")
}
