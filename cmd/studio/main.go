package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/AlexKimmel/BananaGate/internal/credential"
	"github.com/AlexKimmel/BananaGate/internal/genai"
	"github.com/AlexKimmel/BananaGate/internal/obs"
	"github.com/AlexKimmel/BananaGate/internal/studio"
	"github.com/rs/zerolog"
)

const defaultGatewayURL = "http://127.0.0.1:8080"

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(1)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := obs.NewLogger(os.Stderr, os.Getenv("LOG_LEVEL"), true)
	env := studioEnv{
		resolver:   credential.FromEnv(),
		genaiURL:   os.Getenv("GENAI_BASE_URL"),
		gatewayURL: os.Getenv("BANANAGATE_URL"),
		http:       &http.Client{Timeout: 3 * time.Minute},
		log:        logger,
		out:        os.Stdout,
	}
	if err := run(ctx, env, os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		if studio.KindOf(err) == studio.Canceled {
			os.Exit(130)
		}
		os.Exit(1)
	}
}

type studioEnv struct {
	resolver   credential.Resolver
	genaiURL   string
	gatewayURL string
	http       *http.Client
	log        zerolog.Logger
	out        io.Writer
}

func run(ctx context.Context, env studioEnv, cmd string, args []string) error {
	switch cmd {
	case "models":
		return runModels(env.out)
	case "verify":
		return runVerify(ctx, env, args)
	case "generate":
		return runGenerate(ctx, env, args)
	case "edit":
		return runEdit(ctx, env, args)
	case "animate":
		return runAnimate(ctx, env, args)
	default:
		printUsage(env.out)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func runModels(w io.Writer) error {
	fmt.Fprintf(w, "image: %s\n", genai.ImageModel)
	for _, m := range genai.VideoModels {
		def := ""
		if m.ID == genai.DefaultVideoModel {
			def = " (default)"
		}
		fmt.Fprintf(w, "video: %-32s %s, %s%s\n", m.ID, m.Name, m.Description, def)
	}
	return nil
}

func runVerify(ctx context.Context, env studioEnv, args []string) error {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	var (
		gateway  = fs.String("gateway", firstNonEmpty(env.gatewayURL, defaultGatewayURL), "gateway base url")
		passcode = fs.String("passcode", "", "studio passcode")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	body, _ := json.Marshal(map[string]string{"passcode": *passcode})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(*gateway, "/")+"/api/verify-passcode", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := env.http.Do(req)
	if err != nil {
		return fmt.Errorf("gateway unreachable: %w", err)
	}
	defer resp.Body.Close()

	var out struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	switch {
	case out.Success:
		fmt.Fprintln(env.out, "passcode accepted")
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return &studio.Error{Kind: studio.AdmissionRejected, Message: out.Error}
	case out.Message != "":
		return errors.New(out.Message)
	default:
		return fmt.Errorf("verify failed: http %d", resp.StatusCode)
	}
}

// sessionFlags are shared by the commands that call the collaborator.
type sessionFlags struct {
	key  *string
	base *string
	out  *string
}

func addSessionFlags(fs *flag.FlagSet, env studioEnv) sessionFlags {
	return sessionFlags{
		key:  fs.String("key", "", "api key (defaults to GEMINI_API_KEY / API_KEY)"),
		base: fs.String("base", env.genaiURL, "genai base url, e.g. http://127.0.0.1:8080/api/genai"),
		out:  fs.String("out", "", "output file (default <kind>-<unixms>.<ext>)"),
	}
}

func (sf sessionFlags) session(env studioEnv) *studio.Session {
	s := studio.NewSession(genai.New(*sf.base, env.http), env.resolver, env.log)
	if strings.TrimSpace(*sf.key) != "" {
		s.Login(credential.User(*sf.key))
	} else {
		s.Login(credential.Platform())
	}
	return s
}

func runGenerate(ctx context.Context, env studioEnv, args []string) error {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	sf := addSessionFlags(fs, env)
	prompt := fs.String("prompt", "", "character description")
	if err := fs.Parse(args); err != nil {
		return err
	}
	a, err := sf.session(env).Generate(ctx, *prompt)
	if err != nil {
		return err
	}
	return save(env.out, a, *sf.out, "character")
}

func runEdit(ctx context.Context, env studioEnv, args []string) error {
	fs := flag.NewFlagSet("edit", flag.ContinueOnError)
	sf := addSessionFlags(fs, env)
	var (
		in          = fs.String("in", "", "image to edit")
		instruction = fs.String("instruction", "", "what to change")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	s := sf.session(env)
	if err := importFile(s, *in); err != nil {
		return err
	}
	a, err := s.Edit(ctx, *instruction)
	if err != nil {
		return err
	}
	return save(env.out, a, *sf.out, "character")
}

func runAnimate(ctx context.Context, env studioEnv, args []string) error {
	fs := flag.NewFlagSet("animate", flag.ContinueOnError)
	sf := addSessionFlags(fs, env)
	var (
		in       = fs.String("in", "", "image to animate")
		prompt   = fs.String("prompt", "", "motion description")
		aspect   = fs.String("aspect", string(genai.Landscape), "16:9 or 9:16")
		model    = fs.String("model", genai.DefaultVideoModel, "video model id")
		maxWait  = fs.Duration("max-wait", studio.DefaultMaxWait, "give up after this long")
		interval = fs.Duration("interval", studio.DefaultInterval, "status poll interval")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	s := sf.session(env)
	if err := importFile(s, *in); err != nil {
		return err
	}
	p := s.Poller()
	p.MaxWait = *maxWait
	p.Interval = *interval
	p.OnState = func(op string, st studio.State) {
		env.log.Info().Str("op", op).Str("state", st.String()).Msg("animate")
	}
	a, err := s.Animate(ctx, studio.AnimateRequest{Prompt: *prompt, AspectRatio: *aspect, Model: *model})
	if err != nil {
		return err
	}
	return save(env.out, a, *sf.out, "animation")
}

func importFile(s *studio.Session, path string) error {
	if strings.TrimSpace(path) == "" {
		return &studio.Error{Kind: studio.InvalidInput, Message: "-in is required"}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	_, err = s.Import(genai.InlineImage{MIMEType: http.DetectContentType(data), Data: data})
	return err
}

func save(w io.Writer, a *studio.Artifact, path, prefix string) error {
	if path == "" {
		path = a.Filename(prefix)
	}
	if err := os.WriteFile(path, a.Data, 0o644); err != nil {
		return err
	}
	abs, _ := filepath.Abs(path)
	fmt.Fprintf(w, "%s %s (%d bytes)\n", a.MIMEType, abs, len(a.Data))
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `usage: studio <command> [flags]

commands:
  models                          list image and video models
  verify   -passcode P            check the studio passcode against the gateway
  generate -prompt TEXT           create a character image
  edit     -in FILE -instruction  change an existing image
  animate  -in FILE [-prompt] [-aspect 16:9|9:16] [-model ID] [-max-wait 15m]`)
}
