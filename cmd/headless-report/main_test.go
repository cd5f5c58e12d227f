package main

import (
	"strings"
	"testing"
	"time"

	"github.com/Garsondee/Squad-Tactics/internal/game"
	"github.com/Garsondee/Squad-Tactics/internal/scenario"
	"github.com/rs/zerolog"
)

func TestTeamSurvivalCounts(t *testing.T) {
	units := []*game.Unit{
		{Faction: game.FactionSoldier, Alive: true},
		{Faction: game.FactionSoldier, Alive: false},
		{Faction: game.FactionAlien, Alive: true},
		{Faction: game.FactionAlien, Alive: true},
	}

	soldierTotal, alienTotal, soldierSurvivors, alienSurvivors := teamSurvivalCounts(units)
	if soldierTotal != 2 || alienTotal != 2 {
		t.Fatalf("expected totals soldiers=2 aliens=2, got soldiers=%d aliens=%d", soldierTotal, alienTotal)
	}
	if soldierSurvivors != 1 || alienSurvivors != 2 {
		t.Fatalf("expected survivors soldiers=1 aliens=2, got soldiers=%d aliens=%d", soldierSurvivors, alienSurvivors)
	}
}

func stalled(soldiersAlive, aliensAlive int) runStats {
	rs := runStats{
		soldierTotal:     4,
		alienTotal:       4,
		soldierSurvivors: soldiersAlive,
		alienSurvivors:   aliensAlive,
	}
	rs.summary.Result = game.ResultNone
	rs.summary.Soldiers.Shots = 20
	rs.summary.Aliens.Shots = 18
	return rs
}

func TestDetectStalemate_TrueWhenMutualSurvivalHigh(t *testing.T) {
	isStalemate, reason := detectStalemate(stalled(3, 3))
	if !isStalemate {
		t.Fatalf("expected stalemate=true, got false (reason=%s)", reason)
	}
	if !strings.Contains(reason, "high_mutual_survival") {
		t.Fatalf("expected reason to mention high_mutual_survival, got: %s", reason)
	}
}

func TestDetectStalemate_TrueWhenNobodyFired(t *testing.T) {
	rs := stalled(4, 4)
	rs.summary.Soldiers.Shots, rs.summary.Aliens.Shots = 0, 0
	isStalemate, reason := detectStalemate(rs)
	if !isStalemate || reason != "no_contact" {
		t.Fatalf("expected no_contact stalemate, got %v (%s)", isStalemate, reason)
	}
}

func TestDetectStalemate_FalseWhenMissionDecided(t *testing.T) {
	rs := stalled(3, 3)
	rs.summary.Result = game.ResultVictory
	if isStalemate, reason := detectStalemate(rs); isStalemate {
		t.Fatalf("a decided mission is never a stalemate (reason=%s)", reason)
	}
}

func TestDetectStalemate_FalseWhenAttritionDecisive(t *testing.T) {
	isStalemate, reason := detectStalemate(stalled(1, 4))
	if isStalemate {
		t.Fatalf("expected stalemate=false under decisive attrition (reason=%s)", reason)
	}
}

func TestRunMission_DefaultScenario(t *testing.T) {
	sc, err := scenario.Default()
	if err != nil {
		t.Fatal(err)
	}
	rs, err := runMission(1, 42, 5, sc, game.DefaultRules(), zerolog.Nop(), nil)
	if err != nil {
		t.Fatalf("runMission: %v", err)
	}
	if rs.soldierTotal != 4 || rs.alienTotal != 4 {
		t.Fatalf("roster miscounted: %d soldiers, %d aliens", rs.soldierTotal, rs.alienTotal)
	}
	if rs.summary.Turns > 6 {
		t.Fatalf("ran past the turn limit: %d", rs.summary.Turns)
	}
	if rs.summary.Result == game.ResultNone && rs.summary.Description != "inconclusive" {
		t.Fatalf("unfinished mission described as %q", rs.summary.Description)
	}
}

func TestRunPoint(t *testing.T) {
	rs := stalled(3, 2)
	rs.scenario = "Crash Site"
	rs.seed = 7
	rs.summary.Description = "inconclusive"
	rs.summary.Turns = 30
	at := time.Unix(1700000000, 0)

	p := runPoint(rs, at)
	if p.Name() != "mission_run" {
		t.Fatalf("measurement = %q", p.Name())
	}
	if !p.Time().Equal(at) {
		t.Fatalf("time = %v", p.Time())
	}
	tags := map[string]string{}
	for _, tag := range p.TagList() {
		tags[tag.Key] = tag.Value
	}
	if tags["scenario"] != "Crash Site" || tags["seed"] != "7" || tags["outcome"] != "inconclusive" {
		t.Fatalf("tags = %v", tags)
	}
	fields := map[string]any{}
	for _, f := range p.FieldList() {
		fields[f.Key] = f.Value
	}
	if fields["turns"] != int64(30) || fields["alien_survivors"] != int64(2) {
		t.Fatalf("fields = %v", fields)
	}
	if fields["stalemate"] != true {
		t.Fatalf("3/4 vs 2/4 survivors with shots fired is a stalemate, fields = %v", fields)
	}
}
