package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"ms-redemption/internal/config"
	"ms-redemption/internal/database"
	"ms-redemption/internal/kafka"
	"ms-redemption/internal/logger"
	"ms-redemption/internal/redemption"
)

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	warnColor = color.New(color.FgYellow, color.Bold)
	errColor  = color.New(color.FgRed, color.Bold)
)

func printResult(out io.Writer, res redemption.Result) {
	c := errColor
	switch res.Severity {
	case redemption.SeveritySuccess:
		c = okColor
	case redemption.SeverityWarning:
		c = warnColor
	}
	c.Fprintf(out, "[%s] ", strings.ToUpper(string(res.Kind)))
	fmt.Fprintln(out, res.Message)
}

func ask(out io.Writer, lines *bufio.Scanner, prompt string) (bool, bool) {
	fmt.Fprint(out, prompt)
	if !lines.Scan() {
		return false, false
	}
	answer := strings.ToLower(strings.TrimSpace(lines.Text()))
	return answer == "y" || answer == "yes", true
}

// run reads one code per line from in until EOF or ctx is done.
func run(ctx context.Context, in io.Reader, out io.Writer, engine *redemption.Engine) error {
	session := redemption.NewSession(engine)
	lines := bufio.NewScanner(in)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		fmt.Fprint(out, "scan> ")
		if !lines.Scan() {
			fmt.Fprintln(out)
			return lines.Err()
		}
		code := strings.TrimSuffix(lines.Text(), "\r")
		if strings.TrimSpace(code) == "" {
			continue
		}

		res, err := session.Scan(ctx, code)
		if err != nil {
			return err
		}
		printResult(out, res)

		confirmable := res.Kind == redemption.KindValid
		for confirmable {
			prompt := "confirm entry? [y/N] "
			if res.Unavailable() {
				prompt = "retry? [y/N] "
			}
			yes, more := ask(out, lines, prompt)
			if !more {
				return lines.Err()
			}
			if !yes {
				break
			}
			res, err = session.Confirm(ctx)
			if err != nil {
				return err
			}
			printResult(out, res)
			confirmable = res.Unavailable()
		}
		session.Reset()
	}
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	log := logger.NewLogger(cfg.Log.Dir, "scanner-cli")
	defer log.Close()
	log.SetLevel(logger.WARN)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := database.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer backend.Close()

	var events redemption.EventPublisher
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics, log)
		defer producer.Close()
		events = producer
	}

	engine := redemption.NewEngine(backend.Repo, events, log)
	ctx = redemption.WithActor(ctx, os.Getenv("SCANNER_STAFF_ID"))

	if err := run(ctx, os.Stdin, os.Stdout, engine); err != nil && err != context.Canceled {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
