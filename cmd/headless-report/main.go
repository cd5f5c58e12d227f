package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/Garsondee/Squad-Tactics/internal/config"
	"github.com/Garsondee/Squad-Tactics/internal/game"
	"github.com/Garsondee/Squad-Tactics/internal/logging"
	"github.com/Garsondee/Squad-Tactics/internal/recorder"
	"github.com/Garsondee/Squad-Tactics/internal/scenario"
	"github.com/rs/zerolog"
)

type runStats struct {
	runIndex int
	seed     int64
	scenario string

	summary game.MissionSummary

	firstContactTurn int
	firstKillTurn    int
	firstPanicTurn   int

	soldierTotal     int
	alienTotal       int
	soldierSurvivors int
	alienSurvivors   int

	explosions int
	panicked   map[string]struct{}
}

func main() {
	var runs int
	var turns int
	var seedBase int64
	var seedStep int64
	var scenarioPath string
	var configPath string
	var record bool

	flag.IntVar(&runs, "runs", 5, "number of headless missions")
	flag.IntVar(&turns, "turns", 0, "turn limit per mission (0 = scenario limit)")
	flag.Int64Var(&seedBase, "seed-base", 42, "base RNG seed for run 1")
	flag.Int64Var(&seedStep, "seed-step", 1, "seed increment between runs")
	flag.StringVar(&scenarioPath, "scenario", "", "scenario YAML file (default: built-in)")
	flag.StringVar(&configPath, "config", "", "config file (JSON/YAML/TOML)")
	flag.BoolVar(&record, "record", false, "store every mission with the recorder")
	flag.Parse()

	if runs <= 0 {
		fmt.Println("error: -runs must be > 0")
		os.Exit(2)
	}
	if turns < 0 {
		fmt.Println("error: -turns must be >= 0")
		os.Exit(2)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
	if scenarioPath == "" {
		scenarioPath = cfg.Scenario
	}
	log, closeLog, err := logging.New(cfg.Logging, os.Stderr)
	if err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
	defer closeLog()

	var rec *recorder.Recorder
	if record || cfg.Recorder.Enabled {
		rec, err = recorder.Open(cfg.Recorder, log)
		if err != nil {
			log.Error().Err(err).Msg("recorder unavailable")
			os.Exit(1)
		}
		defer rec.Close()
	}
	exp, err := newExporter(cfg.Influx, log)
	if err != nil {
		log.Warn().Err(err).Msg("influx export disabled")
	}
	if exp != nil {
		defer exp.Close()
	}

	header, err := scenario.Load(scenarioPath)
	if err != nil {
		log.Error().Err(err).Msg("loading scenario")
		os.Exit(1)
	}
	if turns == 0 {
		turns = header.TurnLimit
	}

	fmt.Printf("=== Headless Mission Report ===\n")
	fmt.Printf("scenario=%q runs=%d turns=%d seed_base=%d seed_step=%d\n\n", header.Name, runs, turns, seedBase, seedStep)

	all := make([]runStats, 0, runs)
	for i := range runs {
		seed := seedBase + int64(i)*seedStep
		// A mission owns its setup's map, so every run starts from a
		// fresh load.
		sc, err := scenario.Load(scenarioPath)
		if err != nil {
			log.Error().Err(err).Msg("loading scenario")
			os.Exit(1)
		}
		rs, err := runMission(i+1, seed, turns, sc, cfg.Rules, log, rec)
		if err != nil {
			log.Error().Err(err).Int("run", i+1).Msg("mission failed")
			os.Exit(1)
		}
		all = append(all, rs)
		printRun(rs)
		if exp != nil {
			exp.Write(rs)
		}
	}

	printAggregate(all)
}

func runMission(runIndex int, seed int64, turns int, sc *scenario.Scenario, rules game.Rules, log zerolog.Logger, rec *recorder.Recorder) (runStats, error) {
	simLog := game.NewSimLog(false)
	history := &game.EventHistory{}
	opts := []game.Option{
		game.WithSeed(seed),
		game.WithRules(rules),
		game.WithLogger(log.With().Int("run", runIndex).Logger()),
		game.WithSink(simLog),
		game.WithSink(history),
	}
	if rec != nil {
		if _, err := rec.Begin(sc.Name, seed); err != nil {
			return runStats{}, err
		}
		opts = append(opts, game.WithSink(rec))
	}
	m, err := game.NewMission(sc.Setup, opts...)
	if err != nil {
		return runStats{}, fmt.Errorf("starting %q: %w", sc.Name, err)
	}
	simLog.SetRoster(m.Units())

	for m.Turn() <= turns && !m.Phase().Terminal() {
		if _, err := m.AutoPlayerPhase(); err != nil {
			return runStats{}, fmt.Errorf("turn %d: %w", m.Turn(), err)
		}
		m.ResolveAlienPhase()
	}
	units := m.Units()
	summary := game.Summarize(m.Result(), min(m.Turn(), turns), units, history.Events)
	if rec != nil {
		if err := rec.Finish(summary); err != nil {
			log.Warn().Err(err).Msg("recording incomplete")
		}
	}

	entries := simLog.Entries()
	panicked := map[string]struct{}{}
	for _, e := range simLog.Filter("morale", string(game.KindUnitPanicked)) {
		panicked[e.Unit] = struct{}{}
	}
	rs := runStats{
		runIndex:         runIndex,
		seed:             seed,
		scenario:         sc.Name,
		summary:          summary,
		firstContactTurn: firstTurn(entries, "combat", string(game.KindShotFired), ""),
		firstKillTurn:    firstTurn(entries, "combat", string(game.KindUnitKilled), ""),
		firstPanicTurn:   firstTurn(entries, "morale", string(game.KindUnitPanicked), ""),
		explosions:       simLog.CountCategory("combat", string(game.KindExplosion)),
		panicked:         panicked,
	}
	rs.soldierTotal, rs.alienTotal, rs.soldierSurvivors, rs.alienSurvivors = teamSurvivalCounts(units)
	return rs, nil
}

// teamSurvivalCounts tallies the roster by faction.
func teamSurvivalCounts(units []*game.Unit) (soldierTotal, alienTotal, soldierSurvivors, alienSurvivors int) {
	for _, u := range units {
		switch u.Faction {
		case game.FactionSoldier:
			soldierTotal++
			if u.Alive {
				soldierSurvivors++
			}
		case game.FactionAlien:
			alienTotal++
			if u.Alive {
				alienSurvivors++
			}
		}
	}
	return
}

// detectStalemate flags missions that ran out the clock with both sides
// mostly intact, or without anyone firing at all.
func detectStalemate(rs runStats) (bool, string) {
	if rs.summary.Result != game.ResultNone {
		return false, "decided:" + rs.summary.Result.String()
	}
	if rs.soldierTotal == 0 || rs.alienTotal == 0 {
		return false, "empty_roster"
	}
	shots := rs.summary.Soldiers.Shots + rs.summary.Aliens.Shots
	if shots == 0 {
		return true, "no_contact"
	}
	soldierRate := float64(rs.soldierSurvivors) / float64(rs.soldierTotal)
	alienRate := float64(rs.alienSurvivors) / float64(rs.alienTotal)
	if soldierRate >= 0.5 && alienRate >= 0.5 {
		return true, fmt.Sprintf("high_mutual_survival soldiers=%.0f%% aliens=%.0f%% shots=%d", soldierRate*100, alienRate*100, shots)
	}
	return false, fmt.Sprintf("attrition soldiers=%.0f%% aliens=%.0f%%", soldierRate*100, alienRate*100)
}

func firstTurn(entries []game.SimLogEntry, category, key, contains string) int {
	for _, e := range entries {
		if e.Category != category || e.Key != key {
			continue
		}
		if contains == "" || strings.Contains(e.Value, contains) {
			return e.Turn
		}
	}
	return -1
}

func printRun(rs runStats) {
	s := rs.summary
	fmt.Printf("--- Run %d (seed=%d) ---\n", rs.runIndex, rs.seed)
	fmt.Printf("outcome: %s turns=%d\n", s.Description, s.Turns)
	fmt.Printf("phase_markers: first_contact=%d first_kill=%d first_panic=%d\n",
		rs.firstContactTurn, rs.firstKillTurn, rs.firstPanicTurn)
	fmt.Printf("soldiers: alive=%d/%d kills=%d shots=%d hits=%d acc=%.0f%% panicked=%d\n",
		rs.soldierSurvivors, rs.soldierTotal, s.Soldiers.Kills, s.Soldiers.Shots, s.Soldiers.Hits, s.Soldiers.Accuracy()*100, s.Soldiers.Panicked)
	fmt.Printf("aliens: alive=%d/%d kills=%d shots=%d hits=%d acc=%.0f%%\n",
		rs.alienSurvivors, rs.alienTotal, s.Aliens.Kills, s.Aliens.Shots, s.Aliens.Hits, s.Aliens.Accuracy()*100)
	fmt.Printf("events: reaction_shots=%d explosions=%d tiles_destroyed=%d\n",
		s.ReactionShots, rs.explosions, s.TilesDestroyed)
	fmt.Printf("panicked_labels: %s\n", joinSet(rs.panicked))
	if stale, reason := detectStalemate(rs); stale {
		fmt.Printf("STALEMATE: %s\n", reason)
	}
	fmt.Println()
}

func printAggregate(all []runStats) {
	outcomes := map[string]int{}
	totalTurns := 0
	totalSoldierKills, totalAlienKills := 0, 0
	totalReaction, totalExplosions, totalPanics := 0, 0, 0
	soldierSurv, soldierTotal := 0, 0
	alienSurv, alienTotal := 0, 0
	stalemates := 0
	contactTurns := make([]int, 0, len(all))
	killTurns := make([]int, 0, len(all))
	panickedGlobal := map[string]struct{}{}

	for _, rs := range all {
		outcomes[rs.summary.Description]++
		totalTurns += rs.summary.Turns
		totalSoldierKills += rs.summary.Soldiers.Kills
		totalAlienKills += rs.summary.Aliens.Kills
		totalReaction += rs.summary.ReactionShots
		totalExplosions += rs.explosions
		totalPanics += rs.summary.Soldiers.Panicked
		soldierSurv += rs.soldierSurvivors
		soldierTotal += rs.soldierTotal
		alienSurv += rs.alienSurvivors
		alienTotal += rs.alienTotal
		if stale, _ := detectStalemate(rs); stale {
			stalemates++
		}
		if rs.firstContactTurn >= 0 {
			contactTurns = append(contactTurns, rs.firstContactTurn)
		}
		if rs.firstKillTurn >= 0 {
			killTurns = append(killTurns, rs.firstKillTurn)
		}
		for label := range rs.panicked {
			panickedGlobal[label] = struct{}{}
		}
	}

	fmt.Println("=== Aggregate ===")
	fmt.Printf("runs=%d stalemates=%d\n", len(all), stalemates)
	keys := make([]string, 0, len(outcomes))
	for k := range outcomes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %-20s %d (%.0f%%)\n", k, outcomes[k], avg(outcomes[k]*100, len(all)))
	}
	fmt.Printf("avg_per_run: turns=%.1f soldier_kills=%.1f alien_kills=%.1f reaction_shots=%.1f explosions=%.1f panics=%.1f\n",
		avg(totalTurns, len(all)), avg(totalSoldierKills, len(all)), avg(totalAlienKills, len(all)),
		avg(totalReaction, len(all)), avg(totalExplosions, len(all)), avg(totalPanics, len(all)))
	fmt.Printf("survival: soldiers=%.0f%% aliens=%.0f%%\n", avg(soldierSurv*100, soldierTotal), avg(alienSurv*100, alienTotal))
	fmt.Printf("phase_marker_avg_turns: first_contact=%s first_kill=%s\n", avgTurnString(contactTurns), avgTurnString(killTurns))
	fmt.Printf("ever_panicked=%d [%s]\n", len(panickedGlobal), joinSet(panickedGlobal))
}

func avg(sum int, n int) float64 {
	if n <= 0 {
		return 0
	}
	return float64(sum) / float64(n)
}

func avgTurnString(vals []int) string {
	if len(vals) == 0 {
		return "n/a"
	}
	sum := 0
	for _, v := range vals {
		sum += v
	}
	return fmt.Sprintf("%.1f", float64(sum)/float64(len(vals)))
}

func joinSet(s map[string]struct{}) string {
	if len(s) == 0 {
		return "none"
	}
	labels := make([]string, 0, len(s))
	for k := range s {
		labels = append(labels, k)
	}
	sort.Strings(labels)
	return strings.Join(labels, ",")
}
