package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/probelens/probelens/pkg/engine"
	perrors "github.com/probelens/probelens/pkg/errors"
	"github.com/probelens/probelens/pkg/render"
)

// newReplayCmd creates the replay command, which feeds a recorded event
// stream through the layout engine and reports the resulting graph.
func newReplayCmd(configPath *string) *cobra.Command {
	var (
		out      string
		finalize bool
	)

	cmd := &cobra.Command{
		Use:   "replay <events.jsonl>",
		Short: "Replay a recorded investigation event stream",
		Long: `Replay reads a JSONL file of investigation events (one event per line),
applies them to a fresh layout engine in order, and prints a summary of the
resulting graph. Use "-" to read events from stdin.

Events that the engine rejects (duplicate conflicts, terminated sessions) are
reported but do not abort the replay; the remaining stream is still applied.`,
		Example: `  probelens replay investigation.jsonl
  probelens replay investigation.jsonl --out snapshot.json
  tail -f live.jsonl | probelens replay -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := loggerFromContext(cmd.Context())

			cfg, err := LoadConfig(*configPath)
			if err != nil {
				return err
			}
			opts, err := cfg.EngineOptions()
			if err != nil {
				return err
			}

			var r io.Reader
			if args[0] == "-" {
				r = os.Stdin
			} else {
				f, err := os.Open(args[0])
				if err != nil {
					return perrors.Wrap(perrors.ErrCodeFileNotFound, err, "open event stream %s", args[0])
				}
				defer f.Close()
				r = f
			}

			eng := engine.New(append(opts, engine.WithLogger(logger))...)
			defer eng.Terminate()

			applied, rejected := 0, 0
			scanner := bufio.NewScanner(r)
			scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
			line := 0
			for scanner.Scan() {
				line++
				raw := scanner.Bytes()
				if len(raw) == 0 {
					continue
				}
				var ev engine.Event
				if err := json.Unmarshal(raw, &ev); err != nil {
					logger.Warn("skipping undecodable line", "line", line, "error", err)
					rejected++
					continue
				}
				if err := eng.Ingest(ev); err != nil {
					logger.Warn("event rejected", "line", line, "node", ev.NodeID, "error", perrors.UserMessage(err))
					rejected++
					if perrors.Is(err, perrors.ErrCodeSessionTerminated) {
						break
					}
					continue
				}
				applied++
			}
			if err := scanner.Err(); err != nil {
				return perrors.Wrap(perrors.ErrCodeInvalidInput, err, "read event stream")
			}

			if finalize && eng.Status() == engine.SessionRunning {
				eng.Terminate()
			}

			snap := eng.Snapshot()

			printSuccess("Replayed %d events (%d rejected)", applied, rejected)
			printStats(len(snap.Nodes), len(snap.Edges), false)
			printKeyValue("status", string(snap.Status))
			for _, d := range snap.Diagnostics {
				if d.NodeID != "" {
					printWarning("%s: %s (%s)", d.Kind, d.Detail, d.NodeID)
				} else {
					printWarning("%s: %s", d.Kind, d.Detail)
				}
			}

			if out != "" {
				data, err := render.EncodeJSON(snap)
				if err != nil {
					return err
				}
				if err := os.WriteFile(out, data, 0o644); err != nil {
					return perrors.Wrap(perrors.ErrCodeInternal, err, "write snapshot %s", out)
				}
				printFile(out)
				printNextStep("Render it", fmt.Sprintf("probelens render %s --format svg", out))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "write the final snapshot as JSON to this path")
	cmd.Flags().BoolVar(&finalize, "finalize", true, "terminate the session at end of stream if still running")
	return cmd
}
