package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/wolfman30/agenda-assistant/cmd/mainconfig"
	"github.com/wolfman30/agenda-assistant/internal/app/bootstrap"
	"github.com/wolfman30/agenda-assistant/internal/booking"
	appconfig "github.com/wolfman30/agenda-assistant/internal/config"
	"github.com/wolfman30/agenda-assistant/internal/dialogue"
	"github.com/wolfman30/agenda-assistant/internal/oracle"
	"github.com/wolfman30/agenda-assistant/pkg/logging"
)

// Runs every oracle capability against the configured language model so a
// provider or prompt change can be eyeballed before deploying.
//
//	go run ./cmd/llmtest "can I book something for tomorrow afternoon?"
func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	messages := os.Args[1:]
	if len(messages) == 0 {
		messages = []string{
			"I'd like to book a session tomorrow afternoon",
			"do you have anything free on 10/06?",
			"the second one please",
			"my name is Ana Souza, phone 11 98765-4321",
		}
	}

	clock := booking.NewClock(cfg.UTCOffsetHours)
	nlu, err := buildOracle(ctx, cfg, clock, logger)
	if err != nil {
		logger.Error("failed to build oracle", "error", err)
		os.Exit(1)
	}

	offer := []booking.Slot{
		{ID: "probe-1", Start: clock.Now().Add(24 * time.Hour).Truncate(time.Hour)},
		{ID: "probe-2", Start: clock.Now().Add(26 * time.Hour).Truncate(time.Hour)},
	}

	fmt.Printf("Oracle probe (provider=%s, today=%s)\n", cfg.LLMProvider, clock.Today())
	for _, msg := range messages {
		fmt.Println(strings.Repeat("=", 60))
		fmt.Printf("> %s\n", msg)
		probe(ctx, nlu, offer, msg)
	}
}

func buildOracle(ctx context.Context, cfg *appconfig.Config, clock booking.Clock, logger *logging.Logger) (dialogue.Oracle, error) {
	awsCfg, err := loadAWS(ctx, cfg)
	if err != nil {
		return nil, err
	}
	client, err := bootstrap.BuildLLMClient(ctx, cfg, awsCfg, logger)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return oracle.NewRules(clock), nil
	}
	return oracle.NewLLM(client, clock, oracle.WithTimeout(cfg.OracleTimeout), oracle.WithLogger(logger)), nil
}

func probe(ctx context.Context, nlu dialogue.Oracle, offer []booking.Slot, msg string) {
	start := time.Now()
	intent, err := nlu.ClassifyIntent(ctx, msg)
	report("intent", intent, err, start)

	start = time.Now()
	dt, err := nlu.ExtractDateTime(ctx, msg)
	report("date/time", fmt.Sprintf("%+v", dt), err, start)

	start = time.Now()
	dp, err := nlu.ExtractDateAndPeriod(ctx, msg)
	report("date/period", fmt.Sprintf("%+v", dp), err, start)

	start = time.Now()
	choice, err := nlu.ResolveSlotChoice(ctx, offer, msg)
	report("slot choice", choice, err, start)

	start = time.Now()
	alt, err := nlu.DetectAlternateDate(ctx, msg)
	report("alternate date", alt, err, start)

	start = time.Now()
	contact, err := nlu.ExtractNameAndPhone(ctx, msg)
	report("contact", fmt.Sprintf("%+v", contact), err, start)

	start = time.Now()
	tomorrow, err := nlu.ClassifyTomorrowReply(ctx, msg)
	report("tomorrow reply", tomorrow, err, start)
}

func report(label string, value any, err error, start time.Time) {
	elapsed := time.Since(start).Round(time.Millisecond)
	if err != nil {
		fmt.Printf("  %-15s error: %v (%v)\n", label, err, elapsed)
		return
	}
	fmt.Printf("  %-15s %v (%v)\n", label, value, elapsed)
}

func loadAWS(ctx context.Context, cfg *appconfig.Config) (*aws.Config, error) {
	if !bootstrap.NeedsAWS(cfg) {
		return nil, nil
	}
	loaded, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &loaded, nil
}
