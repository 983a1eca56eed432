// Command precheck runs the client-side pre-submission check against a
// local ledger and prints the warning dialog as JSON. It reads the draft
// from -text or stdin.
//
//	precheck -actor u42 -text "..."
//	echo "..." | precheck -actor u42
package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"os"
	"strings"

	"github.com/hireloop/moderation/internal/config"
	"github.com/hireloop/moderation/internal/gate"
	"github.com/hireloop/moderation/internal/ledger"
	"github.com/hireloop/moderation/internal/logging"
	"github.com/hireloop/moderation/internal/suspension"
)

type output struct {
	Allowed bool         `json:"allowed"`
	Dialog  *gate.Dialog `json:"dialog,omitempty"`
	Warning string       `json:"warningLabel,omitempty"`
	Remain  string       `json:"remainingLabel,omitempty"`
}

func main() {
	actor := flag.String("actor", "", "actor id")
	text := flag.String("text", "", "draft text (default: read stdin)")
	reset := flag.Bool("reset", false, "clear the actor's local state and exit")
	flag.Parse()

	cfg, policy, err := config.LoadWithPolicy()
	if err != nil {
		logging.NewLogger("info").WithError(err).Fatal("invalid configuration")
	}
	log := logging.NewLoggerWithService("precheck", cfg.LogLevel)
	log.Logger.SetOutput(os.Stderr)

	if *actor == "" {
		log.Fatal("-actor is required")
	}

	path := cfg.ClientDBPath
	if path == "" {
		if path, err = ledger.DefaultSQLitePath(); err != nil {
			log.WithError(err).Fatal("no local ledger path")
		}
	}
	store, err := ledger.OpenSQLiteStore(path)
	if err != nil {
		log.WithError(err).Fatal("failed to open local ledger")
	}
	defer store.Close()

	l := ledger.New(store, policy.ResetHorizon, ledger.WithLogger(log))
	machine := suspension.NewMachine(l, policy.Suspension, suspension.WithLogger(log))
	ctx := context.Background()

	if *reset {
		if err := machine.Reset(ctx, *actor); err != nil {
			log.WithError(err).Fatal("reset failed")
		}
		return
	}

	draft := *text
	if draft == "" {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			log.WithError(err).Fatal("read stdin")
		}
		draft = strings.TrimSpace(string(b))
	}

	client := gate.NewClient(gate.New("client", policy.Matcher(), machine, gate.WithLogger(log)), nil)
	ok, dialog := client.PreSubmit(ctx, *actor, draft)

	out := output{Allowed: ok, Dialog: dialog}
	if dialog != nil {
		out.Warning = dialog.WarningLabel()
		if dialog.IsTemporarilySuspended {
			out.Remain = dialog.RemainingLabel()
		}
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.WithError(err).Fatal("write output")
	}
	if !ok {
		store.Close()
		os.Exit(1)
	}
}
