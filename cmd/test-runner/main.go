// Package main - test-runner
// Executable to run the economy scenario suite.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/MRamiBalles/ResourceRush/server/internal/platform/logger"
	"github.com/MRamiBalles/ResourceRush/server/test"
)

func main() {
	fmt.Println("RESOURCE RUSH - ECONOMY SCENARIO SUITE")
	fmt.Println(strings.Repeat("=", 60))

	runner := test.NewRunner(logger.NewLogger())
	runner.RunAll(context.Background())

	passed, failed := 0, 0
	for _, r := range runner.GetResults() {
		if r.Passed {
			passed++
		} else {
			failed++
		}
	}

	fmt.Println("\n" + strings.Repeat("=", 60))
	fmt.Println("SUMMARY")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("   Passed: %d\n", passed)
	fmt.Printf("   Failed: %d\n", failed)

	if failed > 0 {
		fmt.Println("\nThe economy needs rebalancing")
		os.Exit(1)
	}
	fmt.Println("\nThe economy is ready to ship")
}
