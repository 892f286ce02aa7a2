package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/solatis/sortdl/internal/core/db"
	"github.com/solatis/sortdl/internal/rules"
	"github.com/solatis/sortdl/internal/rulesfile"
	"github.com/solatis/sortdl/internal/types"
)

func newRulesCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage stored download rules",
	}

	cmd.AddCommand(
		newRulesImportCmd(opts),
		newRulesExportCmd(opts),
		newRulesListCmd(opts),
		newRulesUpgradeCmd(opts),
		newRulesDefaultConflictCmd(opts),
	)
	return cmd
}

func newRulesImportCmd(opts *rootOptions) *cobra.Command {
	var (
		format  string
		upgrade bool
		dryRun  bool
	)

	cmd := &cobra.Command{
		Use:   "import <file|->",
		Short: "Replace the stored rules with a rules document",
		Long: `Validates a rules document (JSON or YAML, versioned or a bare array) and
replaces the stored rules with it. Rules without an id get a generated one.
Use "-" to read the document from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, generated, err := loadRulesInput(cmd.InOrStdin(), args[0], format)
			if err != nil {
				return err
			}

			upgraded := 0
			if upgrade {
				for i := range doc.Rules {
					if r, ok := rules.UpgradeRule(doc.Rules[i]); ok {
						doc.Rules[i] = r
						upgraded++
					}
				}
			}

			e, err := opts.setup(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			warnProblems(e.log, doc.Rules)

			out := cmd.OutOrStdout()
			if dryRun {
				fmt.Fprintf(out, "Validated %d rules (%d ids generated, %d upgraded)\n", len(doc.Rules), generated, upgraded)
				return nil
			}

			if err := e.openDB(true); err != nil {
				return err
			}
			ruleStore, _, err := e.stores()
			if err != nil {
				return err
			}
			if err := ruleStore.ReplaceAll(cmd.Context(), doc.Rules); err != nil {
				return err
			}

			fmt.Fprintf(out, "Imported %d rules (%d ids generated, %d upgraded)\n", len(doc.Rules), generated, upgraded)
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "", "document format (json, yaml); defaults to the file extension")
	cmd.Flags().BoolVar(&upgrade, "upgrade", false, "convert legacy rules to unified conditions where exact")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate only, do not store")
	return cmd
}

// readRulesInput reads a rules document from path, or stdin for "-".
func readRulesInput(stdin io.Reader, path, format string) ([]byte, rulesfile.Format, error) {
	f := rulesfile.FormatFor(path)
	switch format {
	case "":
	case string(rulesfile.FormatJSON), string(rulesfile.FormatYAML):
		f = rulesfile.Format(format)
	default:
		return nil, "", fmt.Errorf("--format must be json or yaml, got %q", format)
	}

	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to read rules document: %w", err)
	}
	return data, f, nil
}

// loadRulesInput reads and validates a rules document, generating ids for
// rules that have none. It also reports how many ids were generated.
func loadRulesInput(stdin io.Reader, path, format string) (*types.RulesConfig, int, error) {
	data, f, err := readRulesInput(stdin, path, format)
	if err != nil {
		return nil, 0, err
	}
	data, err = rulesfile.ToJSON(data, f)
	if err != nil {
		return nil, 0, err
	}
	data, generated, err := rulesfile.EnsureIDs(data)
	if err != nil {
		return nil, 0, err
	}
	doc, err := rulesfile.Parse(data)
	if err != nil {
		return nil, 0, err
	}
	return doc, generated, nil
}

func warnProblems(log *logrus.Entry, rs []types.Rule) {
	for i := range rs {
		for _, p := range rules.Compile(&rs[i]).Problems {
			log.WithFields(logrus.Fields{
				"rule_id":   rs[i].ID,
				"rule_name": rs[i].Name,
			}).WithError(p).Warn("Rule condition will never match")
		}
	}
}

func newRulesExportCmd(opts *rootOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "export [file]",
		Short: "Write the stored rules as a rules document",
		Long: `Writes the stored rules as a versioned rules document. Without a file
the document goes to stdout. The file name is cleaned of characters that
are not allowed in file names and gets a .json extension if it has none;
.yaml and .yml names are written as YAML.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStores(cmd, func(ctx context.Context, e *env, rs *db.RuleStore, _ *db.SettingsStore) error {
				stored, err := rs.List(ctx)
				if err != nil {
					return err
				}

				if len(args) == 0 {
					f := rulesfile.Format(format)
					if f != rulesfile.FormatJSON && f != rulesfile.FormatYAML {
						return fmt.Errorf("--format must be json or yaml, got %q", format)
					}
					data, err := rulesfile.MarshalFormat(stored, f)
					if err != nil {
						return err
					}
					_, err = cmd.OutOrStdout().Write(data)
					return err
				}

				path := exportPath(args[0])
				data, err := rulesfile.MarshalFormat(stored, rulesfile.FormatFor(path))
				if err != nil {
					return err
				}
				if err := os.WriteFile(path, data, 0o644); err != nil {
					return fmt.Errorf("failed to write %s: %w", path, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %d rules to %s\n", len(stored), path)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&format, "format", string(rulesfile.FormatJSON), "stdout format (json, yaml)")
	return cmd
}

// exportPath keeps the directory of target and cleans its file name.
func exportPath(target string) string {
	dir, name := filepath.Split(target)
	return filepath.Join(dir, rulesfile.ExportFilename(name))
}

func newRulesListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored rules in evaluation order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStores(cmd, func(ctx context.Context, e *env, rs *db.RuleStore, _ *db.SettingsStore) error {
				stored, err := rs.List(ctx)
				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "#\tID\tENABLED\tSCHEME\tNAME\tTEMPLATE\tPROBLEMS")
				for i := range stored {
					r := &stored[i]
					scheme := "legacy"
					if r.UsesUnified() {
						scheme = "unified"
					}
					template := r.Actions.PathTemplate
					if r.Actions.RenamePattern != "" {
						template += " -> " + r.Actions.RenamePattern
					}
					fmt.Fprintf(w, "%d\t%s\t%t\t%s\t%s\t%s\t%d\n",
						i+1, r.ID, r.Enabled, scheme, r.Name, template, len(rules.Compile(r).Problems))
				}
				return w.Flush()
			})
		},
	}
}

func newRulesUpgradeCmd(opts *rootOptions) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "upgrade",
		Short: "Convert stored legacy rules to unified conditions",
		Long: `Rewrites legacy rules as unified conditions where the unified form
matches exactly the same downloads. Other rules are left unchanged.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStores(cmd, func(ctx context.Context, e *env, rs *db.RuleStore, _ *db.SettingsStore) error {
				stored, err := rs.List(ctx)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				var upgradedIDs []string
				for i, r := range stored {
					if r.UsesUnified() {
						continue
					}
					u, ok := rules.UpgradeRule(r)
					if !ok {
						fmt.Fprintf(out, "%s: kept legacy (no exact unified form)\n", r.ID)
						continue
					}
					stored[i] = u
					upgradedIDs = append(upgradedIDs, string(r.ID))
					fmt.Fprintf(out, "%s: upgraded\n", r.ID)
				}

				if len(upgradedIDs) == 0 || dryRun {
					fmt.Fprintf(out, "%d rules upgradable\n", len(upgradedIDs))
					return nil
				}
				if err := rs.ReplaceAll(ctx, stored); err != nil {
					return err
				}
				e.log.WithField("rule_ids", strings.Join(upgradedIDs, ",")).Info("Upgraded legacy rules")
				fmt.Fprintf(out, "%d rules upgraded\n", len(upgradedIDs))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report without storing")
	return cmd
}

func newRulesDefaultConflictCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "default-conflict [uniquify|overwrite|prompt]",
		Short: "Show or set the stored default conflict action",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStores(cmd, func(ctx context.Context, e *env, _ *db.RuleStore, ss *db.SettingsStore) error {
				out := cmd.OutOrStdout()
				if len(args) == 1 {
					c, err := types.ParseConflictAction(args[0])
					if err != nil {
						return err
					}
					if err := ss.SetDefaultConflict(ctx, c); err != nil {
						return err
					}
					fmt.Fprintln(out, c)
					return nil
				}

				c, ok, err := ss.DefaultConflict(ctx)
				if err != nil {
					return err
				}
				if !ok {
					c = types.ConflictAction(e.cfg.Downloads.DefaultConflict)
				}
				fmt.Fprintln(out, c)
				return nil
			})
		},
	}
}
