package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"go.uber.org/zap"

	advisory "github.com/goliatone/go-advisory"
	"github.com/goliatone/go-advisory/internal/prompt"
)

func main() {
	baseURL := flag.String("base", "http://localhost:5000", "advisory backend base URL")
	flow := flag.String("flow", "", "flow to run: fertilizer, crop, irrigation, login, weather, chat")
	lat := flag.Float64("lat", 16.7050, "latitude for weather and crop defaults")
	lon := flag.Float64("lon", 74.2433, "longitude for weather and crop defaults")
	verbose := flag.Bool("verbose", false, "log client activity")
	flag.Parse()

	logger := zap.NewNop()
	if *verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			log.Fatalf("logger: %v", err)
		}
		logger = l
	}

	dashboard, err := advisory.New(
		advisory.WithBaseURL(*baseURL),
		advisory.WithLogger(logger),
		advisory.WithLocator(fixedLocator(*lat, *lon)),
	)
	if err != nil {
		log.Fatalf("assemble dashboard: %v", err)
	}

	ctx := context.Background()
	driver := prompt.NewSurveyDriver()
	runner := &runner{dashboard: dashboard, prompts: driver, lat: *lat, lon: *lon}

	name := strings.TrimSpace(*flow)
	if name == "" {
		name, err = runner.pickFlow(ctx)
		if err != nil {
			exitOnPromptErr(err)
		}
	}

	if err := runner.run(ctx, name); err != nil {
		exitOnPromptErr(err)
	}
}

func exitOnPromptErr(err error) {
	if errors.Is(err, prompt.ErrAborted) {
		fmt.Fprintln(os.Stderr, "aborted")
		os.Exit(130)
	}
	log.Fatalf("%v", err)
}
