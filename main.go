package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/nstehr/rangerbot/agent"
	"github.com/nstehr/rangerbot/config"
	"github.com/nstehr/rangerbot/ipc"
	"github.com/nstehr/rangerbot/model"
	"github.com/nstehr/rangerbot/sim"
	"github.com/nstehr/rangerbot/telemetry"
)

const banner = `
██████╗  █████╗ ███╗   ██╗ ██████╗ ███████╗██████╗
██╔══██╗██╔══██╗████╗  ██║██╔════╝ ██╔════╝██╔══██╗
██████╔╝███████║██╔██╗ ██║██║  ███╗█████╗  ██████╔╝
██╔══██╗██╔══██║██║╚██╗██║██║   ██║██╔══╝  ██╔══██╗
██║  ██║██║  ██║██║ ╚████║╚██████╔╝███████╗██║  ██║
╚═╝  ╚═╝╚═╝  ╚═╝╚═╝  ╚═══╝ ╚═════╝ ╚══════╝╚═╝  ╚═╝

Two-Planet Tactical Bot`

const defaultAddr = "unix:///tmp/rangerbot.sock"

var (
	configPath string
	logLevel   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "rangerbot",
		Short:         "Tactical bot for a two-planet grid strategy game",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (defaults apply when empty)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override bot.log_level")

	rootCmd.AddCommand(playCmd(), serveCmd(), simCmd(), statsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads the config and installs the default logger.
func setup() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}
	if logLevel != "" {
		cfg.Bot.LogLevel = logLevel
	}
	level, err := config.ParseLevel(cfg.Bot.LogLevel)
	if err != nil {
		return cfg, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return cfg, nil
}

// openRecorder opens the telemetry sinks named in cfg.
func openRecorder(cfg config.Config) (telemetry.Recorder, error) {
	var recs []telemetry.Recorder
	if cfg.Telemetry.TurnLog != "" {
		l, err := telemetry.OpenTurnLog(cfg.Telemetry.TurnLog)
		if err != nil {
			return nil, err
		}
		recs = append(recs, l)
	}
	if cfg.Telemetry.Index != "" {
		ix, err := telemetry.OpenIndex(cfg.Telemetry.Index)
		if err != nil {
			for _, r := range recs {
				r.Close()
			}
			return nil, err
		}
		recs = append(recs, ix)
	}
	return telemetry.Multi(recs...), nil
}

func closeRecorder(rec telemetry.Recorder) {
	if err := rec.Close(); err != nil {
		slog.Warn("failed to close telemetry", "error", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func playCmd() *cobra.Command {
	addr := defaultAddr
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Connect to a game host and play one seat",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			fmt.Println(banner)

			ctx, stop := signalContext()
			defer stop()

			t, err := ipc.Dial(ctx, addr)
			if err != nil {
				return err
			}
			client := ipc.NewClient(t)
			defer client.Close()
			client.RegisterHandler(ipc.TypeNotice, func(env ipc.Envelope) (*ipc.Envelope, error) {
				slog.Debug("host notice", "data", string(env.Data))
				return nil, nil
			})

			hello, err := client.Handshake()
			if err != nil {
				return err
			}
			match := hello.Match
			if match == "" {
				match = telemetry.NewMatchID()
			}

			rec, err := openRecorder(cfg)
			if err != nil {
				return err
			}
			defer closeRecorder(rec)

			bot, err := agent.New(client, cfg, agent.WithRecorder(rec), agent.WithMatchID(match))
			if err != nil {
				return err
			}
			slog.Info("starting rangerbot", "addr", addr, "team", hello.Team, "planet", hello.Planet)
			return bot.Run(ctx)
		},
	}
	cmd.Flags().StringVarP(&addr, "addr", "a", addr, "host address (unix://, tcp://, ws://)")
	return cmd
}

func serveCmd() *cobra.Command {
	var (
		addr   = defaultAddr
		mapArg string
		team   string
		planet string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Host a simulated match with one remote seat",
		Long: `Runs the local simulator and exposes one (team, planet) seat over the
socket protocol. Every other seat is played by a local bot. The match starts
when the remote player connects.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			fmt.Println(banner)

			seatTeam, seatPlanet, err := parseSeat(team, planet)
			if err != nil {
				return err
			}
			m, err := model.LoadMatch(mapArg)
			if err != nil {
				return err
			}

			ctx, stop := signalContext()
			defer stop()

			rec, err := openRecorder(cfg)
			if err != nil {
				return err
			}
			defer closeRecorder(rec)

			match := telemetry.NewMatchID()
			g := sim.NewGame(m, cfg.SimOptions())
			bots, err := agent.NewLocal(g, cfg, agent.WithRecorder(rec), agent.WithMatchID(match))
			if err != nil {
				return err
			}
			bots = slices.DeleteFunc(bots, func(b *agent.Bot) bool {
				return b.Host.Team() == seatTeam && b.Host.Planet() == seatPlanet
			})

			res, err := hostMatch(ctx, addr, g, bots, ipc.HelloMessage{Match: match, Team: seatTeam, Planet: seatPlanet})
			if err != nil {
				return err
			}
			printResult(res)
			return nil
		},
	}
	cmd.Flags().StringVarP(&addr, "addr", "a", addr, "listen address (unix://, tcp://, ws://)")
	cmd.Flags().StringVarP(&mapArg, "map", "m", "", "JSON match file")
	cmd.Flags().StringVar(&team, "team", string(model.Red), "remote seat team")
	cmd.Flags().StringVar(&planet, "planet", string(model.Earth), "remote seat planet")
	_ = cmd.MarkFlagRequired("map")
	return cmd
}

func parseSeat(team, planet string) (model.Team, model.Planet, error) {
	t, p := model.Team(team), model.Planet(planet)
	if t != model.Red && t != model.Blue {
		return "", "", fmt.Errorf("unknown team %q (want red or blue)", team)
	}
	if p != model.Earth && p != model.Mars {
		return "", "", fmt.Errorf("unknown planet %q (want earth or mars)", planet)
	}
	return t, p, nil
}

func simCmd() *cobra.Command {
	var (
		mapArg string
		rounds int
	)
	cmd := &cobra.Command{
		Use:   "sim",
		Short: "Play the bot against itself on the local simulator",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			if rounds > 0 {
				cfg.Sim.MaxRounds = rounds
			}
			m, err := model.LoadMatch(mapArg)
			if err != nil {
				return err
			}

			ctx, stop := signalContext()
			defer stop()

			rec, err := openRecorder(cfg)
			if err != nil {
				return err
			}
			defer closeRecorder(rec)

			g := sim.NewGame(m, cfg.SimOptions())
			bots, err := agent.NewLocal(g, cfg, agent.WithRecorder(rec), agent.WithMatchID(telemetry.NewMatchID()))
			if err != nil {
				return err
			}
			start := time.Now()
			res, err := agent.RunLocal(ctx, g, bots)
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			printResult(res)
			fmt.Printf("   Wall time: %s\n", time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
	cmd.Flags().StringVarP(&mapArg, "map", "m", "", "JSON match file")
	cmd.Flags().IntVarP(&rounds, "rounds", "r", 0, "override sim.max_rounds")
	_ = cmd.MarkFlagRequired("map")
	return cmd
}

func printResult(res agent.LocalResult) {
	titleColor := color.New(color.FgCyan, color.Bold)
	winColor := color.New(color.FgGreen, color.Bold)

	titleColor.Printf("\nMatch over after %d rounds\n", res.Rounds)
	if res.Winner == "" {
		fmt.Println("   Result: draw")
	} else {
		winColor.Printf("   Winner: %s\n", res.Winner)
	}
	fmt.Println()

	header := []string{"Team", "Bank"}
	for _, t := range model.AllUnitTypes {
		header = append(header, string(t))
	}
	table := tablewriter.NewTable(os.Stdout, tablewriter.WithHeader(header))
	for _, team := range []model.Team{model.Red, model.Blue} {
		row := []string{string(team), fmt.Sprintf("%d", res.Bank[team])}
		for _, t := range model.AllUnitTypes {
			row = append(row, fmt.Sprintf("%d", res.Census[team][t]))
		}
		table.Append(row)
	}
	table.Render()
}

func statsCmd() *cobra.Command {
	var index string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize recorded matches from the telemetry index",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			if index == "" {
				index = cfg.Telemetry.Index
			}
			if index == "" {
				return errors.New("no telemetry index: pass --index or set telemetry.index")
			}
			ix, err := telemetry.OpenIndex(index)
			if err != nil {
				return err
			}
			defer ix.Close()

			matches, err := ix.Matches(cmd.Context())
			if err != nil {
				return err
			}
			if len(matches) == 0 {
				fmt.Println("No matches recorded.")
				return nil
			}

			table := tablewriter.NewTable(os.Stdout,
				tablewriter.WithHeader([]string{"Match", "Team", "Planet", "Started", "Turns", "Last Round", "Peak Units", "Karbonite", "Skipped", "Events"}),
			)
			for _, m := range matches {
				id := m.ID
				if len(id) > 8 {
					id = id[:8]
				}
				table.Append([]string{
					id,
					m.Team,
					m.Planet,
					m.StartedAt.Local().Format(time.DateTime),
					fmt.Sprintf("%d", m.Turns),
					fmt.Sprintf("%d", m.LastRound),
					fmt.Sprintf("%d", m.PeakUnits),
					fmt.Sprintf("%d", m.Karbonite),
					fmt.Sprintf("%d", m.Skipped),
					fmt.Sprintf("%d", m.EventCount),
				})
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().StringVarP(&index, "index", "i", "", "SQLite telemetry index (defaults to telemetry.index)")
	return cmd
}
