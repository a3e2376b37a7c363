// Command probe drives one scripted conversation turn against a server using
// the in-memory audio backend and prints what happened.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/arunika/voiceclient/adapters/memory"
	"github.com/satriahrh/arunika/voiceclient/domain/entities"
	"github.com/satriahrh/arunika/voiceclient/internal/app"
	"github.com/satriahrh/arunika/voiceclient/internal/codec"
	"github.com/satriahrh/arunika/voiceclient/internal/config"
	"github.com/satriahrh/arunika/voiceclient/usecase"
)

const pollInterval = 100 * time.Millisecond

func main() {
	timeout := flag.Duration("timeout", 30*time.Second, "how long to wait for each step")
	utterance := flag.Duration("utterance", time.Second, "length of the test tone sent as the user turn")
	frequency := flag.Float64("frequency", 440, "test tone frequency in Hz")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg.Audio.Backend = config.BackendMemory

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	fmt.Println("=== Arunika Voice Client Probe ===")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := app.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to initialize voice client: %v", err)
	}
	defer client.Close()

	mic := client.Microphone.(*memory.Microphone)
	coordinator := client.Coordinator

	coordinator.SubscribeSession(usecase.SessionObserverFunc(func(previous, current entities.SessionState) {
		fmt.Printf("  state: %s → %s\n", previous, current)
	}))
	coordinator.SubscribeText(usecase.TextObserverFunc(func(text string) {
		fmt.Printf("  response text: %q\n", text)
	}))
	coordinator.SubscribeErrors(usecase.ErrorObserverFunc(func(err error) {
		fmt.Printf("  error: %v\n", err)
	}))

	go func() {
		if err := coordinator.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Coordinator stopped", zap.Error(err))
		}
	}()

	fmt.Printf("\n1. Connecting to %s...\n", cfg.Server.WebSocketURL)
	submit(ctx, coordinator, usecase.CommandStartSession, *timeout)
	wait(coordinator, *timeout, "connection", func(s usecase.Status) bool {
		return s.Connection == entities.ConnectionConnected
	})
	fmt.Printf("✓ Connected, client session %s\n", coordinator.Identity().ClientID())

	fmt.Printf("\n2. Sending a %s tone at %.0f Hz...\n", *utterance, *frequency)
	submit(ctx, coordinator, usecase.CommandStartRecording, *timeout)
	if !mic.Write(codec.Tone(*frequency, *utterance, cfg.Audio.SampleRate)) {
		fail("microphone was not opened")
	}
	submit(ctx, coordinator, usecase.CommandStopRecording, *timeout)
	fmt.Println("✓ Recording sent")

	fmt.Println("\n3. Waiting for the response...")
	wait(coordinator, *timeout, "response", func(s usecase.Status) bool {
		return s.State == entities.SessionStateResponding || s.State == entities.SessionStateError
	})
	wait(coordinator, *timeout, "playback", func(s usecase.Status) bool {
		return s.State != entities.SessionStateResponding
	})
	status := coordinator.Status()
	if status.State == entities.SessionStateError {
		fail(status.LastError)
	}
	fmt.Printf("✓ Turn complete, server session %s\n", status.Identity.ServerID)

	fmt.Println("\n4. Ending session...")
	submit(ctx, coordinator, usecase.CommandEndSession, *timeout)

	history, err := coordinator.History(ctx)
	if err != nil {
		fail(err.Error())
	}
	fmt.Printf("✓ Session ended after %d transitions\n", len(history))

	fmt.Println("\n=== Probe Completed Successfully! ===")
}

func submit(ctx context.Context, c *usecase.Coordinator, cmd usecase.Command, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := c.Submit(ctx, cmd); err != nil {
		fail(fmt.Sprintf("%s: %v", cmd, err))
	}
}

func wait(c *usecase.Coordinator, timeout time.Duration, what string, done func(usecase.Status) bool) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if done(c.Status()) {
			return
		}
		time.Sleep(pollInterval)
	}
	fail(fmt.Sprintf("timed out waiting for %s", what))
}

func fail(msg string) {
	fmt.Printf("✗ %s\n", msg)
	os.Exit(1)
}
