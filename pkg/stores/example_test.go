package stores_test

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/openfroyo/yoloplan/pkg/stores"
)

// ExampleOpen records a solve run and reads it back.
func ExampleOpen() {
	ctx := context.Background()
	store, err := stores.Open(ctx, ":memory:")
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	err = store.CreateRun(ctx, &stores.SolveRun{
		ID:          "run-123",
		Problem:     "robot",
		Engine:      "YOLOPlanner",
		Status:      stores.RunStatusSolved,
		Tries:       3,
		PlanLength:  1,
		Plan:        "move(l1, l2)",
		Seed:        42,
		StartedAt:   started,
		CompletedAt: started.Add(time.Second),
	})
	if err != nil {
		log.Fatal(err)
	}

	run, err := store.GetRun(ctx, "run-123")
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("%s %s after %d tries: %s\n", run.Problem, run.Status, run.Tries, run.Plan)
	// Output: robot solved_satisficing after 3 tries: move(l1, l2)
}
