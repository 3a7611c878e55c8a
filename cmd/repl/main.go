package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/hunglin/spark-kernel/core/execute"
	"github.com/hunglin/spark-kernel/engine"
	"github.com/hunglin/spark-kernel/engine/eval"
	"github.com/hunglin/spark-kernel/interpreter"
	"github.com/hunglin/spark-kernel/observability"
)

func main() {
	var (
		configFile = flag.String("config", "", "Path to config file (.json or .yaml)")
		jars       = flag.String("jars", "", "Comma-separated archive locations to add after start")
		silent     = flag.Bool("silent", false, "Suppress result printing of evaluated code")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging to stderr")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	observability.RegisterObserver("slog", observability.NewSlogObserver(logger))

	cfg := interpreter.DefaultConfig()
	if *configFile != "" {
		loaded, err := interpreter.LoadConfig(*configFile)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = *loaded
	}

	factory := func(out io.Writer) (engine.Engine, error) {
		return eval.New(out), nil
	}

	itp, err := interpreter.New(&cfg, factory)
	if err != nil {
		log.Fatalf("Failed to create interpreter: %v", err)
	}

	if err := itp.Start(); err != nil {
		log.Fatalf("Failed to start session: %v", err)
	}
	defer itp.Stop()

	if *jars != "" {
		archives := strings.Split(*jars, ",")
		if err := itp.AddJars(archives...); err != nil {
			log.Fatalf("Failed to add jars: %v", err)
		}
	}

	// Ctrl-C interrupts the in-flight unit instead of killing the session.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	go func() {
		for range sigs {
			itp.Interrupt()
		}
	}()

	addr, _ := itp.Address()
	fmt.Printf("session %s (%s)\ntype :quit to exit\n", itp.ID(), addr)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("eval> ")
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		if strings.TrimSpace(line) == ":quit" {
			break
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		res, err := itp.Interpret(context.Background(), line, *silent)
		if err != nil {
			log.Fatalf("Interpret failed: %v", err)
		}

		switch res.Outcome {
		case execute.Error:
			fmt.Printf("%s: %s\n", res.Err.Kind, res.Err.Message)
			for _, frame := range res.Err.StackFrames {
				fmt.Printf("  %s\n", frame)
			}
		case execute.Incomplete:
			fmt.Println("(incomplete input)")
		case execute.Aborted:
			fmt.Println("(interrupted)")
		}
	}

	if err := scanner.Err(); err != nil {
		log.Fatalf("Failed to read input: %v", err)
	}
}
