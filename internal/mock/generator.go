// Package mock seeds a demo roster and drives synthetic classroom activity
// through the session engine. Used by the -mock flag so the server can be
// demoed without a real class, a database or an execution engine.
package mock

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/codeclub/liveclass/internal/event"
	"github.com/codeclub/liveclass/internal/roster"
	"github.com/codeclub/liveclass/internal/runner"
	"github.com/codeclub/liveclass/internal/session"
)

const (
	demoClassID = 1
	teamCount   = 4
)

// Seed builds the demo roster: one live class with a handful of teams, a
// couple of tasks and a curator.
func Seed() *roster.Roster {
	r := roster.New()
	r.AddUser("curator-dana", event.Curator)
	r.AddClass(demoClassID, true)
	r.AddTask(demoClassID, 101, []runner.TestCase{
		{Input: "1 2", Output: "3"},
		{Input: "10 -4", Output: "6"},
	})
	r.AddTask(demoClassID, 102, []runner.TestCase{
		{Input: "racecar", Output: "yes"},
		{Input: "gopher", Output: "no"},
	})

	for i := 1; i <= teamCount; i++ {
		elder := fmt.Sprintf("elder-%d", i)
		member := fmt.Sprintf("student-%d", i)
		r.AddTeam(i+6, demoClassID, elder, elder, member)
	}
	return r
}

type Generator struct {
	deriver *session.Deriver
	rnd     *rand.Rand
}

func NewGenerator(deriver *session.Deriver) *Generator {
	return &Generator{
		deriver: deriver,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Start runs the activity loop until the context is cancelled. Every tick one
// team performs a random session action; failures from the engine (a blocked
// team submitting, for example) are expected and only logged.
func (g *Generator) Start(ctx context.Context) {
	go g.loop(ctx)
}

func (g *Generator) loop(ctx context.Context) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	// Every team starts on the first task.
	for i := 1; i <= teamCount; i++ {
		if err := g.deriver.SelectTask(ctx, i+6, 101, fmt.Sprintf("elder-%d", i)); err != nil {
			log.Printf("mock: seeding task selection: %v", err)
		}
	}
	if err := g.deriver.JoinClassAsCurator(ctx, demoClassID, "curator-dana"); err != nil {
		log.Printf("mock: curator class join: %v", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.tick(ctx)
		}
	}
}

func (g *Generator) tick(ctx context.Context) {
	team := g.rnd.Intn(teamCount) + 1
	teamID := team + 6
	elder := fmt.Sprintf("elder-%d", team)

	var err error
	switch g.rnd.Intn(6) {
	case 0:
		_, err = g.deriver.ToggleHand(ctx, teamID, elder)
	case 1:
		err = g.deriver.JoinTeamAsCurator(ctx, teamID, "curator-dana")
	case 2:
		err = g.deriver.LeaveTeamAsCurator(ctx, teamID, "curator-dana")
	case 3:
		taskID := 101
		if g.rnd.Intn(2) == 1 {
			taskID = 102
		}
		err = g.deriver.SelectTask(ctx, teamID, taskID, elder)
	case 4:
		blocked := g.rnd.Intn(4) == 0
		err = g.deriver.SetBlocked(ctx, teamID, "curator-dana", blocked)
	case 5:
		code := fmt.Sprintf("a, b = input().split()\nprint(int(a) + int(b))  # attempt %d", g.rnd.Intn(100))
		_, err = g.deriver.SubmitSolution(ctx, teamID, 101, elder, code, "python")
	}
	if err != nil {
		log.Printf("mock: team %d action skipped: %v", teamID, err)
	}
}
