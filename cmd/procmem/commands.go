package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"procmem/hexdump"
	"procmem/pattern"
	"procmem/process"
	"procmem/reader"
)

func newPsCmd(opts *rootOptions) *cobra.Command {
	var filter string

	cmd := &cobra.Command{
		Use:   "ps",
		Short: "List processes",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := opts.manager()
			if err != nil {
				return err
			}

			processes, err := m.GetProcesses()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PID\tPPID\tTHREADS\tPRIO\tNAME")
			for _, p := range processes {
				if filter != "" && !strings.Contains(p.ExeName, filter) {
					continue
				}
				fmt.Fprintf(w, "%d\t%d\t%d\t%d\t%s\n", p.PID, p.ParentPID, p.Threads, p.Priority, p.ExeName)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&filter, "filter", "", "Only show processes whose name contains this text")
	return cmd
}

func newModulesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "modules <process>",
		Short: "List the modules loaded in a process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, opened, err := opts.open(args[0])
			if err != nil {
				return err
			}
			defer m.CloseAll()

			modules, err := m.GetModules(opened.Process.PID)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "BASE\tSIZE\tNAME\tPATH")
			for _, mod := range modules {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", mod.Base.ToString(), humanize.IBytes(uint64(mod.Size)), mod.Name, mod.Path)
			}
			return w.Flush()
		},
	}
}

func newRegionsCmd(opts *rootOptions) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "regions <process>",
		Short: "Walk the virtual address space of a process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, opened, err := opts.open(args[0])
			if err != nil {
				return err
			}
			defer m.CloseAll()

			regions, err := m.GetRegions(opened.Token)
			if err != nil {
				return err
			}

			var committed uint64
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "BASE\tEND\tSIZE\tPERMS\tPATH")
			for _, r := range regions {
				if r.IsCommitted() {
					committed += r.Size
				}
				if r.IsFree() && !all {
					continue
				}
				fmt.Fprintf(w, "0x%X\t0x%X\t%s\t%s\t%s\n", r.Base, r.End(), humanize.IBytes(r.Size), r.Perms, r.Path)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%d regions, %s committed\n", len(regions), humanize.IBytes(committed))
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Include free regions")
	return cmd
}

func newReadCmd(opts *rootOptions) *cobra.Command {
	var (
		dataType string
		offsets  []string
	)

	cmd := &cobra.Command{
		Use:   "read <process> <address>",
		Short: "Read a typed value",
		Long: `Read a typed value. Types: byte, int, int32, uint32, int64, uint64, dword,
short, long, float, double, bool, ptr, string, vec3, vec4.

With --offsets the address is the start of a pointer chain: every offset
but the last is added and dereferenced, the last is added to the result.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := parseAddress(args[1])
			if err != nil {
				return err
			}
			path, err := parseOffsets(offsets)
			if err != nil {
				return err
			}

			m, opened, err := opts.open(args[0])
			if err != nil {
				return err
			}
			defer m.CloseAll()

			if len(path) > 0 {
				addr, err = m.ResolvePath(opened.Token, addr, path...)
				if err != nil {
					return err
				}
			}

			value, err := m.ReadMemory(opened.Token, addr, reader.DataType(dataType))
			if err != nil {
				return err
			}

			switch v := value.(type) {
			case process.ProcessMemoryAddress:
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", addr.ToString(), v.ToString())
			case string:
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %q\n", addr.ToString(), v)
			default:
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %v\n", addr.ToString(), v)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&dataType, "type", "t", string(reader.INT), "Value type")
	cmd.Flags().StringSliceVar(&offsets, "offsets", nil, "Pointer chain offsets, e.g. 0x10,0x8")
	return cmd
}

func newStringCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "string <process> <address>",
		Short: "Read a zero-terminated string",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := parseAddress(args[1])
			if err != nil {
				return err
			}

			m, opened, err := opts.open(args[0])
			if err != nil {
				return err
			}
			defer m.CloseAll()

			value, err := m.ReadMemory(opened.Token, addr, reader.STRING)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), value)
			return nil
		},
	}
}

func newBufferCmd(opts *rootOptions) *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "buffer <process> <address> <size>",
		Short: "Read and hex dump a byte range",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := parseAddress(args[1])
			if err != nil {
				return err
			}
			size, err := humanize.ParseBytes(args[2])
			if err != nil {
				return fmt.Errorf("%w: bad size '%s'", process.ErrInvalidArgument, args[2])
			}

			m, opened, err := opts.open(args[0])
			if err != nil {
				return err
			}
			defer m.CloseAll()

			data, err := m.ReadBuffer(opened.Token, addr, process.ProcessMemorySize(size))
			if err != nil {
				return err
			}

			if raw {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), hexdump.DumpWithOffset(data, uint64(addr)))
			return nil
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "Write raw bytes instead of a hex dump")
	return cmd
}

func newPatternCmd(opts *rootOptions) *cobra.Command {
	var (
		mode          pattern.Mode
		patternOffset uint64
		addressOffset uint64
	)

	cmd := &cobra.Command{
		Use:   "pattern <process> <module> <signature>",
		Short: "Find a byte signature in a module",
		Long: `Find the first occurrence of a byte signature such as "48 8B 05 ?? ?? ?? ??"
in a module image. --mode selects the result: NORMAL (absolute address),
READ (pointer stored at the match) or SUBTRACT (offset from the module base).`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := pattern.Parse(args[2])
			if err != nil {
				return err
			}

			m, opened, err := opts.open(args[0])
			if err != nil {
				return err
			}
			defer m.CloseAll()

			res, err := m.FindPattern(opened.Token, args[1], args[2], mode, patternOffset, addressOffset)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch res.Status {
			case pattern.ModuleNotFound:
				return fmt.Errorf("%w: %s", process.ErrModuleNotFound, args[1])
			case pattern.NotFound:
				fmt.Fprintf(out, "%s not found in %s\n", p.String(), args[1])
				return nil
			}

			fmt.Fprintf(out, "%s %s (match at +0x%X)\n", mode.String(), res.Address.ToString(), res.Offset)

			mod, err := m.FindModule(args[1], opened.Process.PID)
			if err != nil {
				return nil
			}
			start := mod.Base + process.ProcessMemoryAddress(res.Offset)
			lead := process.ProcessMemoryAddress(16)
			if start-mod.Base >= lead {
				start -= lead
			} else {
				start = mod.Base
			}
			data, err := m.ReadBuffer(opened.Token, start, process.ProcessMemorySize(p.Len()+32))
			if err == nil {
				matchAt := int(mod.Base + process.ProcessMemoryAddress(res.Offset) - start)
				fmt.Fprint(out, hexdump.DumpMatch(data, uint64(start), matchAt, p.Len(), nil))
			}
			return nil
		},
	}

	cmd.Flags().Var(newModeValue(&mode), "mode", "Result mode: NORMAL, READ or SUBTRACT (or 0, 1, 2)")
	cmd.Flags().Uint64Var(&patternOffset, "pattern-offset", 0, "Added to the match address")
	cmd.Flags().Uint64Var(&addressOffset, "address-offset", 0, "Added to the READ or SUBTRACT result")
	return cmd
}

func newDumpCmd(opts *rootOptions) *cobra.Command {
	var maxRegion string

	cmd := &cobra.Command{
		Use:   "dump <process> <directory>",
		Short: "Save the readable memory of a process for offline use",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, err := humanize.ParseBytes(maxRegion)
			if err != nil {
				return fmt.Errorf("%w: bad size '%s'", process.ErrInvalidArgument, maxRegion)
			}

			m, opened, err := opts.open(args[0])
			if err != nil {
				return err
			}
			defer m.CloseAll()

			snapshot, err := m.Capture(opened.Token, limit)
			if err != nil {
				return err
			}
			if err := snapshot.Save(args[1]); err != nil {
				return err
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "Saved %s (pid %d) to %s\n", opened.Process.ExeName, opened.Process.PID, args[1])
			return nil
		},
	}

	cmd.Flags().StringVar(&maxRegion, "max-region-size", "256MiB", "Record larger regions without content (0 for no limit)")
	return cmd
}

func newConfigCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	cmd.AddCommand(newConfigInitCmd(opts))
	return cmd
}

func newConfigInitCmd(opts *rootOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the effective configuration to the --config path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(opts.configPath); err == nil && !force {
				return fmt.Errorf("%w: %s already exists, use --force to overwrite", process.ErrInvalidArgument, opts.configPath)
			}

			if err := opts.cfg.Save(opts.configPath); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", opts.configPath)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}
