package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tidwall/pretty"

	"github.com/solatis/sortdl/internal/core/config"
	"github.com/solatis/sortdl/internal/core/server"
	"github.com/solatis/sortdl/internal/rules"
	"github.com/solatis/sortdl/internal/types"
)

type resolveOutput struct {
	DownloadID string `json:"download_id"`
	Matched    bool   `json:"matched"`
	RuleID     string `json:"rule_id,omitempty"`
	RuleName   string `json:"rule_name,omitempty"`
	Filename   string `json:"filename"`
	Conflict   string `json:"conflict"`
}

func newResolveCmd(opts *rootOptions) *cobra.Command {
	var (
		req       rules.DownloadRequest
		rulesPath string
		output    string
	)

	cmd := &cobra.Command{
		Use:   "resolve <url>",
		Short: "Show where a download would be saved",
		Long: `Runs the suggestion pipeline for one download URL against the stored
rules, or against a rules document given with --rules ("-" reads it from
stdin). Rules in the document without an id get a generated one.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != "text" && output != "json" {
				return fmt.Errorf("--output must be text or json, got %q", output)
			}
			req.URL = args[0]

			e, err := opts.setup(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			engine := rules.NewEngine(rules.WithLogger(e.log))
			if rulesPath != "" {
				doc, _, err := loadRulesInput(cmd.InOrStdin(), rulesPath, "")
				if err != nil {
					return err
				}
				engine.Update(doc.Rules)
				if err := engine.SetDefaultConflict(types.ConflictAction(e.cfg.Downloads.DefaultConflict)); err != nil {
					return err
				}
			} else {
				if err := e.openDB(true); err != nil {
					return err
				}
				ruleStore, settingsStore, err := e.stores()
				if err != nil {
					return err
				}
				if err := server.NewReloader(engine, ruleStore, settingsStore, e.log).Load(cmd.Context()); err != nil {
					return fmt.Errorf("failed to load rules: %w", err)
				}
			}

			s, err := engine.Suggest(req)
			if err != nil {
				return err
			}
			return printSuggestion(cmd, s, output)
		},
	}

	defaults := config.DefaultConfig()
	cmd.Flags().StringVar(&req.FinalURL, "final-url", "", "URL after redirects")
	cmd.Flags().StringVar(&req.Filename, "filename", "", "filename suggested by the browser")
	cmd.Flags().StringVar(&req.Referrer, "referrer", "", "referring page URL")
	cmd.Flags().StringVar(&req.MIME, "mime", "", "response MIME type")
	cmd.Flags().StringVar(&rulesPath, "rules", "", "rules document (JSON or YAML) to use instead of the database")
	cmd.Flags().String("default-conflict", defaults.Downloads.DefaultConflict, "conflict action when the rule sets none (with --rules)")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format (text, json)")
	return cmd
}

func printSuggestion(cmd *cobra.Command, s rules.Suggestion, format string) error {
	out := cmd.OutOrStdout()

	if format == "json" {
		data, err := json.Marshal(resolveOutput{
			DownloadID: s.DownloadID,
			Matched:    s.Matched,
			RuleID:     string(s.RuleID),
			RuleName:   s.RuleName,
			Filename:   s.Filename,
			Conflict:   string(s.Conflict),
		})
		if err != nil {
			return err
		}
		_, err = out.Write(pretty.Pretty(data))
		return err
	}

	fmt.Fprintf(out, "filename: %s\n", s.Filename)
	fmt.Fprintf(out, "conflict: %s\n", s.Conflict)
	if s.Matched {
		fmt.Fprintf(out, "rule:     %s (%s)\n", s.RuleID, s.RuleName)
	} else {
		fmt.Fprintln(out, "rule:     none (browser default)")
	}
	return nil
}
