package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"verkeeper/internal/app"
	"verkeeper/internal/registry"
	"verkeeper/internal/source"
)

type ExitCoder interface {
	ExitCode() int
}

type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }
func (e *exitError) ExitCode() int { return e.code }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		var ex ExitCoder
		if errors.As(err, &ex) {
			os.Exit(ex.ExitCode())
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	var versionsPath string
	var jsonOutput bool

	newSvc := func() (*app.Service, error) {
		return app.New(serviceOptions(configPath, versionsPath, jsonOutput))
	}

	cmd := &cobra.Command{
		Use:           "verkeeper",
		Short:         "Track the latest upstream versions of external software",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
	cmd.PersistentFlags().StringVar(&versionsPath, "versions", "", "path to versions.toml (overrides config)")
	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output JSON")

	cmd.AddCommand(newAddCmd(newSvc, &jsonOutput))
	cmd.AddCommand(newGetCmd(newSvc, &jsonOutput))
	cmd.AddCommand(newUpdateCmd(newSvc, &jsonOutput))
	cmd.AddCommand(newCheckCmd(newSvc, &jsonOutput))
	cmd.AddCommand(newListCmd(newSvc, &jsonOutput))
	cmd.AddCommand(newKindsCmd(newSvc, &jsonOutput))
	cmd.AddCommand(newHistoryCmd(newSvc, &jsonOutput))
	cmd.AddCommand(newDoctorCmd(newSvc, &jsonOutput))
	cmd.AddCommand(newVersionCmd(&jsonOutput))

	return cmd
}

// serviceOptions keeps stdout for the JSON payload when --json is set.
// Prompts and notices then go to stderr.
func serviceOptions(configPath, versionsPath string, jsonOutput bool) app.Options {
	opts := app.Options{ConfigPath: configPath, VersionsPath: versionsPath}
	if jsonOutput {
		opts.Out = os.Stderr
	}
	return opts
}

func newAddCmd(newSvc func() (*app.Service, error), jsonOutput *bool) *cobra.Command {
	var github, archlinux, gitea, kind, param string
	var dummy bool
	var sets []string

	cmd := &cobra.Command{
		Use:     "add <name>",
		Aliases: []string{"register"},
		Short:   "Track an artifact and resolve its version",
		Example: "  verkeeper add ripgrep --github BurntSushi/ripgrep\n" +
			"  verkeeper add linux --archlinux linux\n" +
			"  verkeeper add build-stamp --dummy",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var chosen [][2]string
			if github != "" {
				chosen = append(chosen, [2]string{source.KindGitHub, github})
			}
			if archlinux != "" {
				chosen = append(chosen, [2]string{source.KindArchLinux, archlinux})
			}
			if gitea != "" {
				chosen = append(chosen, [2]string{source.KindGitea, gitea})
			}
			if dummy {
				chosen = append(chosen, [2]string{source.KindDummy, ""})
			}
			if kind != "" {
				chosen = append(chosen, [2]string{kind, param})
			}
			if len(chosen) != 1 {
				return fmt.Errorf("REG_REGISTER: exactly one of --github, --archlinux, --gitea, --dummy or --kind is required")
			}
			extra, err := parseSets(sets)
			if err != nil {
				return err
			}
			svc, err := newSvc()
			if err != nil {
				return err
			}
			v, err := svc.Add(cmd.Context(), args[0], chosen[0][0], chosen[0][1], extra)
			if err != nil {
				return err
			}
			return print(*jsonOutput, map[string]string{"name": args[0], "kind": chosen[0][0], "version": v}, fmt.Sprintf("%s %s", args[0], v))
		},
	}
	cmd.Flags().StringVar(&github, "github", "", "GitHub owner/repo; tracks the latest release tag")
	cmd.Flags().StringVar(&archlinux, "archlinux", "", "Arch Linux package name")
	cmd.Flags().StringVar(&gitea, "gitea", "", "releases list URL (Gitea/Forgejo API)")
	cmd.Flags().BoolVar(&dummy, "dummy", false, "pseudo-version from the current date and time")
	cmd.Flags().StringVar(&kind, "kind", "", "any registered source kind")
	cmd.Flags().StringVar(&param, "param", "", "parameter for --kind")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "extra field key=value stored with the record")
	return cmd
}

func parseSets(sets []string) (map[string]any, error) {
	if len(sets) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(sets))
	for _, kv := range sets {
		k, v, ok := strings.Cut(kv, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("REG_REGISTER: --set expects key=value, got %q", kv)
		}
		out[k] = v
	}
	return out, nil
}

func newGetCmd(newSvc func() (*app.Service, error), jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "get <name>",
		Short: "Print the cached version (no network)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newSvc()
			if err != nil {
				return err
			}
			v, err := svc.Get(args[0])
			if err != nil {
				return err
			}
			return print(*jsonOutput, map[string]string{"name": args[0], "version": v}, v)
		},
	}
}

func newUpdateCmd(newSvc func() (*app.Service, error), jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:     "update <name>",
		Aliases: []string{"refresh"},
		Short:   "Resolve one artifact and overwrite its cached version",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newSvc()
			if err != nil {
				return err
			}
			v, err := svc.Update(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return print(*jsonOutput, map[string]string{"name": args[0], "version": v}, fmt.Sprintf("updated %s to %s", args[0], v))
		},
	}
}

func newCheckCmd(newSvc func() (*app.Service, error), jsonOutput *bool) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:     "check",
		Aliases: []string{"reconcile", "upgrade"},
		Short:   "Check every artifact for updates, asking before each change",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newSvc()
			if err != nil {
				return err
			}
			report, err := svc.Check(cmd.Context(), !yes)
			if err != nil {
				return err
			}
			if *jsonOutput {
				if err := print(true, report, ""); err != nil {
					return err
				}
			} else if !report.Interactive {
				for _, it := range report.Items {
					switch it.Outcome {
					case registry.OutcomeFailed:
						fmt.Printf("! %s: %s\n", it.Name, it.Error)
					default:
						fmt.Printf("%s %s (%s)\n", it.Name, it.Latest, it.Direction)
					}
				}
			}
			if failed := report.Count(registry.OutcomeFailed); failed > 0 {
				return &exitError{code: 2, msg: fmt.Sprintf("REG_RESOLVE: %d of %d artifacts could not be checked", failed, len(report.Items))}
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "accept every update without prompting")
	return cmd
}

func newListCmd(newSvc func() (*app.Service, error), jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List tracked artifacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newSvc()
			if err != nil {
				return err
			}
			entries := svc.List()
			if *jsonOutput {
				return print(true, entries, "")
			}
			if len(entries) == 0 {
				fmt.Println("no artifacts tracked")
				return nil
			}
			for _, e := range entries {
				version := e.Version
				if version == "" {
					version = "(unresolved)"
				}
				kind := e.Kind
				if kind == "" {
					kind = "?"
				}
				fmt.Printf("- %s %s [%s %s]\n", e.Name, version, kind, e.Param)
			}
			return nil
		},
	}
}

func newKindsCmd(newSvc func() (*app.Service, error), jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "kinds",
		Short: "List registered source kinds",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newSvc()
			if err != nil {
				return err
			}
			kinds := svc.Sources.Kinds()
			return print(*jsonOutput, kinds, strings.Join(kinds, "\n"))
		},
	}
}

func newHistoryCmd(newSvc func() (*app.Service, error), jsonOutput *bool) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent changes from the audit log",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newSvc()
			if err != nil {
				return err
			}
			events, err := svc.History(limit)
			if err != nil {
				return err
			}
			if *jsonOutput {
				return print(true, events, "")
			}
			for _, ev := range events {
				line := fmt.Sprintf("%s %s %s %s", ev.Timestamp, ev.Operation, ev.Artifact, ev.Status)
				if v := ev.Fields["version"]; v != "" {
					line += " " + v
				}
				if ev.Message != "" {
					line += ": " + ev.Message
				}
				fmt.Println(line)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of events, 0 for all")
	return cmd
}

func newDoctorCmd(newSvc func() (*app.Service, error), jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:     "doctor",
		Aliases: []string{"diag"},
		Short:   "Run diagnostics on config and versions file",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newSvc()
			if err != nil {
				return err
			}
			report := svc.Doctor.Run()
			if *jsonOutput {
				if err := print(true, report, ""); err != nil {
					return err
				}
			} else {
				for _, f := range report.Findings {
					fmt.Printf("- [%s] %s\n", f.Code, f.Message)
				}
				if report.Healthy {
					fmt.Printf("healthy (%d artifacts)\n", report.Records)
				}
			}
			if !report.Healthy {
				return &exitError{code: 1, msg: "DOC_UNHEALTHY: issues found"}
			}
			return nil
		},
	}
}

func print(jsonOutput bool, payload any, message string) error {
	if jsonOutput {
		blob, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(blob))
		return nil
	}
	if message != "" {
		fmt.Println(message)
	}
	return nil
}
