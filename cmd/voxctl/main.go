// Command voxctl synthesizes a companion message through a voxpal server the
// way the app does: premium voices go to the elevenlabs edge function and fall
// back once to the google one.
//
//	voxctl -server https://voxpal.example.com -token $TOKEN -voice eleven-mateo -out hola.mp3 '**¡Hola!** *sonríe*'
//	voxctl -voices [-q query]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/MrWong99/voxpal/internal/ttsengine"
	"github.com/MrWong99/voxpal/pkg/provider/tts/elevenlabs"
	"github.com/MrWong99/voxpal/pkg/provider/tts/google"
	"github.com/MrWong99/voxpal/pkg/voice"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	server  string
	token   string
	voiceID string
	out     string
	raw     bool
	timeout time.Duration
	list    bool
	query   string
	verbose bool
	text    string
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("voxctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	o := &options{}
	fs.StringVar(&o.server, "server", os.Getenv("VOXPAL_SERVER"), "voxpal server base URL (env VOXPAL_SERVER)")
	fs.StringVar(&o.token, "token", os.Getenv("VOXPAL_TOKEN"), "bearer token (env VOXPAL_TOKEN)")
	fs.StringVar(&o.voiceID, "voice", voice.DefaultID, "voice id or legacy alias")
	fs.StringVar(&o.out, "out", "speech.mp3", "output file, - for stdout")
	fs.BoolVar(&o.raw, "raw", false, "synthesize the text as given instead of extracting dialogue")
	fs.DurationVar(&o.timeout, "timeout", 45*time.Second, "overall request timeout")
	fs.BoolVar(&o.list, "voices", false, "list the voice catalog and exit")
	fs.StringVar(&o.query, "q", "", "filter -voices by a fuzzy query")
	fs.BoolVar(&o.verbose, "v", false, "verbose logging")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if o.list {
		return o, nil
	}
	if o.server == "" {
		return nil, errors.New("-server is required")
	}
	o.text = strings.Join(fs.Args(), " ")
	if o.text == "-" {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		o.text = string(b)
	}
	if strings.TrimSpace(o.text) == "" {
		return nil, errors.New("no text given")
	}
	return o, nil
}

func run(args []string, stdout, stderr io.Writer) int {
	o, err := parseFlags(args, stderr)
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(stderr, "voxctl: %v\n", err)
		}
		return 2
	}

	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})))

	if o.list {
		listVoices(stdout, o.query)
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	res, err := speak(ctx, o)
	if err != nil {
		fmt.Fprintf(stderr, "voxctl: %v\n", err)
		return 1
	}
	if res.Skipped {
		fmt.Fprintln(stderr, "voxctl: nothing to say")
		return 0
	}
	if err := writeAudio(o.out, stdout, res.Audio.Data); err != nil {
		fmt.Fprintf(stderr, "voxctl: %v\n", err)
		return 1
	}
	fmt.Fprintf(stderr, "%s: %d bytes from %s (%s)", o.out, len(res.Audio.Data), res.Provider, res.Voice.ID)
	if res.Fallback {
		fmt.Fprint(stderr, " after fallback")
	}
	fmt.Fprintln(stderr)
	return 0
}

// speak runs one request through a fresh engine session.
func speak(ctx context.Context, o *options) (*ttsengine.Result, error) {
	std, err := google.New(o.server, google.WithToken(o.token))
	if err != nil {
		return nil, err
	}
	pre, err := elevenlabs.New(o.server, elevenlabs.WithToken(o.token))
	if err != nil {
		return nil, err
	}
	eng, err := ttsengine.New(std, pre)
	if err != nil {
		return nil, err
	}
	s := eng.NewSession()
	if o.raw {
		return s.Synthesize(ctx, o.text, o.voiceID)
	}
	return s.Speak(ctx, o.text, o.voiceID)
}

func writeAudio(path string, stdout io.Writer, data []byte) error {
	if path == "-" {
		_, err := stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func listVoices(w io.Writer, query string) {
	list := voice.All()
	if strings.TrimSpace(query) != "" {
		list = voice.Search(query)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tREGION\tGENDER\tPREMIUM")
	for _, d := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%v\n", d.ID, d.DisplayName, d.Region, d.Gender, d.IsPremium())
	}
	_ = tw.Flush()
}
