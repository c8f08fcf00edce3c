package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"procmem/config"
	"procmem/host"
	"procmem/process"
	"procmem/process_blob"
	"procmem/session"
)

type rootOptions struct {
	configPath string
	dumpDir    string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "procmem",
		Short: "Inspect and read the memory of running processes",
		Long: `procmem resolves processes and modules, walks virtual memory regions,
reads typed values and scans module images for byte signatures.

With --dump every command works on a snapshot saved by "procmem dump"
instead of a live process.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			opts.cfg = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "procmem.yaml", "Path to the YAML configuration file")
	cmd.PersistentFlags().StringVar(&opts.dumpDir, "dump", "", "Work on a saved snapshot directory instead of live processes")

	cmd.AddCommand(
		newPsCmd(opts),
		newModulesCmd(opts),
		newRegionsCmd(opts),
		newReadCmd(opts),
		newStringCmd(opts),
		newBufferCmd(opts),
		newPatternCmd(opts),
		newDumpCmd(opts),
		newConfigCmd(opts),
	)

	return cmd
}

// manager builds a session manager over the live host or a saved snapshot.
func (o *rootOptions) manager() (*session.Manager, error) {
	var provider process.Provider
	if o.dumpDir != "" {
		snapshot, err := process_blob.Load(o.dumpDir)
		if err != nil {
			return nil, err
		}
		provider = snapshot
	} else {
		p, err := host.NewProvider()
		if err != nil {
			return nil, err
		}
		provider = p
	}

	return session.NewManager(provider,
		session.WithReader(o.cfg.NewReader()),
		session.WithScanner(o.cfg.NewScanner()),
	), nil
}

// open opens the process named by the first argument and registers cleanup.
func (o *rootOptions) open(nameOrID string) (*session.Manager, session.Opened, error) {
	m, err := o.manager()
	if err != nil {
		return nil, session.Opened{}, err
	}

	opened, err := m.OpenProcess(nameOrID)
	if err != nil {
		return nil, session.Opened{}, fmt.Errorf("open %s: %w (%s)", nameOrID, err, process.KindOf(err))
	}
	return m, opened, nil
}

// parseAddress accepts decimal or 0x-prefixed hex.
func parseAddress(s string) (process.ProcessMemoryAddress, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad address '%s'", process.ErrInvalidArgument, s)
	}
	return process.ProcessMemoryAddress(v), nil
}

func parseOffsets(values []string) ([]process.ProcessMemorySize, error) {
	offsets := make([]process.ProcessMemorySize, 0, len(values))
	for _, s := range values {
		v, err := parseAddress(s)
		if err != nil {
			return nil, err
		}
		offsets = append(offsets, process.ProcessMemorySize(v))
	}
	return offsets, nil
}
