package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/thedatamonk/spendly/internal/intent"
	"github.com/thedatamonk/spendly/internal/ledger"
	"github.com/thedatamonk/spendly/internal/session"
	"github.com/thedatamonk/spendly/internal/translator"
)

var parseCmd = &cobra.Command{
	Use:   "parse [message...]",
	Short: "Translate messages and print the parsed intent as JSON",
	Long: `Runs the translator against the active obligations without changing
anything. Each argument is one chat turn; with no arguments, one turn is
read per line from stdin. Clarification history carries over between turns
the way it does in a conversation.`,
	RunE: runParse,
}

func runParse(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	store, closeStore, err := openLedger(cmd.Context())
	if err != nil {
		return err
	}
	defer closeStore()

	tr := translator.New(translator.NewClient(cfg.OpenRouterAPIKey, cfg.LLMBaseURL), cfg.LLMModel, logger.Named("translator"))

	var state session.State
	turn := func(line string) error {
		res, err := parseOnce(cmd, store, tr, state.History, line, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		if !res.Ambiguous {
			state.ClearHistory()
			return nil
		}
		question := res.Question
		if question == "" {
			question = res.Message
		}
		state.AppendHistory(intent.RoleUser, line)
		state.AppendHistory(intent.RoleAssistant, question)
		return nil
	}

	if len(args) > 0 {
		for _, arg := range args {
			if err := turn(arg); err != nil {
				return err
			}
		}
		return nil
	}

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := turn(line); err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), err)
		}
	}
	return scanner.Err()
}

func parseOnce(cmd *cobra.Command, store ledger.Store, tr intent.Translator, history []intent.HistoryEntry, msg string, out io.Writer) (intent.Result, error) {
	active, err := store.List(cmd.Context(), ledger.Active)
	if err != nil {
		return intent.Result{}, err
	}
	res, err := tr.Translate(cmd.Context(), intent.Request{Message: msg, Active: active, History: history})
	if err != nil {
		return intent.Result{}, err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return res, enc.Encode(intent.ToWire(res))
}
