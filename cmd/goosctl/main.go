// goosctl is a terminal client for a running goosd: inspect the current
// control snapshot, push changes, and watch the live stream.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/docopt/docopt-go"
	"github.com/fatih/color"

	"github.com/oceanbureau/goosd/agent"
	"github.com/oceanbureau/goosd/controls"
)

const defaultURL = "http://localhost:8090"

const usage = `goosctl - control-state client for goosd.

Usage:
    goosctl get [--url=<url>]
    goosctl set [--region=<code>] [--year=<year>] [--scenario=<name>] [--theme=<theme>] [--url=<url>]
    goosctl roll [--url=<url>]
    goosctl watch [--url=<url>]

Options:
    -h --help            Show this screen.
    --url=<url>          Base URL of the goosd server [default: http://localhost:8090].
    --region=<code>      Region code (all, na, sa, wp, ep, ind, arc, sou).
    --year=<year>        Projection year.
    --scenario=<name>    Scenario (baseline, mitigation, expansion).
    --theme=<theme>      Display theme (dark, light).`

func main() {
	opts, err := docopt.ParseArgs(usage, os.Args[1:], "")
	if err != nil {
		fatal(err)
	}

	url := defaultURL
	if u, _ := opts.String("--url"); u != "" {
		url = strings.TrimRight(u, "/")
	}

	switch {
	case command(opts, "get"):
		err = get(url)
	case command(opts, "set"):
		err = set(url, opts)
	case command(opts, "roll"):
		err = roll(url)
	case command(opts, "watch"):
		err = watch(url)
	}
	if err != nil {
		fatal(err)
	}
}

func command(opts docopt.Opts, name string) bool {
	v, _ := opts.Bool(name)
	return v
}

func fatal(err error) {
	color.New(color.FgRed).Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}

// get prints the server's current snapshot.
func get(url string) error {
	resp, err := http.Get(url + "/api/controls")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var snap controls.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return err
	}
	printSnapshot(snap)
	return nil
}

// set submits a partial mutation built from the provided flags.
func set(url string, opts docopt.Opts) error {
	filters := map[string]any{}
	payload := map[string]any{}

	if region, _ := opts.String("--region"); region != "" {
		if !controls.ValidRegion(region) {
			return fmt.Errorf("unknown region %q", region)
		}
		filters["region"] = region
	}
	if yearStr, _ := opts.String("--year"); yearStr != "" {
		year, err := strconv.Atoi(yearStr)
		if err != nil {
			return fmt.Errorf("invalid year %q", yearStr)
		}
		filters["year"] = year
	}
	if scenario, _ := opts.String("--scenario"); scenario != "" {
		if !controls.ValidScenario(scenario) {
			return fmt.Errorf("unknown scenario %q", scenario)
		}
		filters["scenario"] = scenario
	}
	if theme, _ := opts.String("--theme"); theme != "" {
		if !controls.ValidTheme(theme) {
			return fmt.Errorf("unknown theme %q", theme)
		}
		payload["theme"] = theme
	}
	if len(filters) > 0 {
		payload["filters"] = filters
	}
	if len(payload) == 0 {
		return errors.New("nothing to set")
	}

	if err := post(url, payload); err != nil {
		return err
	}
	color.New(color.FgGreen).Println("applied")
	return nil
}

// roll reseeds the dataset variant on the server.
func roll(url string) error {
	if err := post(url, map[string]any{"variant": time.Now().UnixMilli()}); err != nil {
		return err
	}
	color.New(color.FgGreen).Println("variant rolled")
	return nil
}

func post(url string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	resp, err := http.Post(url+"/api/controls", "application/json", strings.NewReader(string(body)))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server rejected mutation: %d %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

// watch tails the live stream, printing each snapshot as it lands.
func watch(url string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	dim := color.New(color.Faint)
	a := agent.New(url,
		agent.WithUpdateHandler(func(snap controls.Snapshot) {
			printSnapshot(snap)
			fmt.Println()
		}),
		agent.WithStatusHandler(func(s agent.Status) {
			dim.Printf("-- %s\n", s)
		}),
	)

	err := a.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func printSnapshot(snap controls.Snapshot) {
	label := color.New(color.FgCyan)
	label.Print("region:   ")
	fmt.Printf("%s (%s)\n", snap.Region, controls.RegionLabel(snap.Region))
	label.Print("year:     ")
	fmt.Println(snap.Year)
	label.Print("scenario: ")
	fmt.Println(snap.Scenario)
	label.Print("variant:  ")
	fmt.Println(snap.Variant)
	label.Print("theme:    ")
	fmt.Println(snap.Theme)
	if !snap.Timestamp.IsZero() {
		label.Print("updated:  ")
		fmt.Println(snap.Timestamp.Format("2006-01-02 15:04:05 MST"))
	}
}
