// Package studio drives character generation, editing and animation against
// the generative collaborator and keeps the results as local artifacts.
package studio

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/AlexKimmel/BananaGate/internal/genai"
	"github.com/rs/zerolog"
)

const (
	DefaultInterval = 10 * time.Second
	DefaultMaxWait  = 15 * time.Minute
	DefaultPrompt   = "Animate this character naturally"
)

type State int

const (
	Created State = iota
	Polling
	Resolved
	Failed
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Polling:
		return "polling"
	case Resolved:
		return "resolved"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// VideoAPI is the part of the collaborator the poller needs.
type VideoAPI interface {
	StartVideo(ctx context.Context, apiKey string, vr genai.VideoRequest) (*genai.Operation, error)
	GetOperation(ctx context.Context, apiKey string, op *genai.Operation) (*genai.Operation, error)
	Download(ctx context.Context, apiKey, uri string) (genai.Blob, error)
}

type AnimateRequest struct {
	Image       genai.InlineImage
	Prompt      string
	AspectRatio string
	Model       string
}

// Poller runs one image-to-video job to completion: create, poll until done,
// download.
type Poller struct {
	API       VideoAPI
	Artifacts *Store
	Interval  time.Duration
	MaxWait   time.Duration
	OnState   func(op string, s State)

	log   zerolog.Logger
	after func(time.Duration) <-chan time.Time
	now   func() time.Time
}

func NewPoller(api VideoAPI, artifacts *Store, log zerolog.Logger) *Poller {
	if artifacts == nil {
		artifacts = NewStore()
	}
	return &Poller{
		API:       api,
		Artifacts: artifacts,
		Interval:  DefaultInterval,
		MaxWait:   DefaultMaxWait,
		log:       log.With().Str("component", "poller").Logger(),
		after:     time.After,
		now:       time.Now,
	}
}

func (p *Poller) normalize(req AnimateRequest) (genai.VideoRequest, error) {
	if len(req.Image.Data) == 0 {
		return genai.VideoRequest{}, newError(InvalidInput, "no image to animate", nil)
	}
	ratio, err := genai.ParseAspectRatio(strings.TrimSpace(req.AspectRatio))
	if err != nil {
		return genai.VideoRequest{}, newError(InvalidInput, "invalid aspect ratio", err)
	}
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = genai.DefaultVideoModel
	}
	if _, ok := genai.LookupVideoModel(model); !ok {
		return genai.VideoRequest{}, newError(InvalidInput, "unknown video model "+model, nil)
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		prompt = DefaultPrompt
	}
	return genai.VideoRequest{Model: model, Prompt: prompt, Image: req.Image, AspectRatio: ratio}, nil
}

func (p *Poller) state(op string, s State) {
	p.log.Debug().Str("op", op).Str("state", s.String()).Msg("video operation")
	if p.OnState != nil {
		p.OnState(op, s)
	}
}

// Run animates req.Image with apiKey and stores the resulting video.
func (p *Poller) Run(ctx context.Context, apiKey string, req AnimateRequest) (*Artifact, error) {
	vr, err := p.normalize(req)
	if err != nil {
		return nil, err
	}

	op, err := p.API.StartVideo(ctx, apiKey, vr)
	if err != nil {
		p.state("", Failed)
		return nil, classify("start video", err)
	}
	name := op.Name
	p.state(name, Created)
	p.log.Info().Str("op", name).Str("model", vr.Model).Str("aspect", string(vr.AspectRatio)).Msg("video operation created")

	fail := func(e *Error) (*Artifact, error) {
		p.state(name, Failed)
		p.log.Warn().Str("op", name).Str("kind", e.Kind.String()).Err(e).Msg("video operation failed")
		return nil, e
	}

	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	deadline := p.now().Add(p.MaxWait)
	timedOut := func() (*Artifact, error) {
		return fail(newError(PollTimeout, "video generation did not finish within "+p.MaxWait.String(), nil))
	}
	polls := 0
	for !op.Done {
		// never sleep or query past the deadline
		wait := interval
		if p.MaxWait > 0 {
			remaining := deadline.Sub(p.now())
			if remaining <= 0 {
				return timedOut()
			}
			wait = min(wait, remaining)
		}
		p.state(name, Polling)
		select {
		case <-ctx.Done():
			return fail(newError(Canceled, "video generation canceled", ctx.Err()))
		case <-p.after(wait):
		}

		pollCtx, cancel := ctx, context.CancelFunc(func() {})
		if p.MaxWait > 0 {
			remaining := deadline.Sub(p.now())
			if remaining <= 0 {
				return timedOut()
			}
			pollCtx, cancel = context.WithTimeout(ctx, remaining)
		}
		next, err := p.API.GetOperation(pollCtx, apiKey, op)
		expired := errors.Is(pollCtx.Err(), context.DeadlineExceeded)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return fail(newError(Canceled, "video generation canceled", ctx.Err()))
			}
			if expired {
				return timedOut()
			}
			return fail(classify("poll video operation", err))
		}
		polls++
		op = next
	}

	if op.Error != nil {
		return fail(newError(CollaboratorCallFailed, op.Error.Message, nil))
	}
	uri := op.VideoURI()
	if uri == "" {
		return fail(newError(EmptyResult, "operation finished without a video", nil))
	}

	blob, err := p.API.Download(ctx, apiKey, uri)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return fail(newError(Canceled, "video download canceled", err))
		}
		return fail(newError(DownloadFailed, "download video", err))
	}
	mimeType := blob.MIMEType
	if mimeType == "" {
		mimeType = "video/mp4"
	}
	a := p.Artifacts.Put(mimeType, blob.Data, vr.Prompt)
	p.state(name, Resolved)
	p.log.Info().Str("op", name).Int("polls", polls).Int("bytes", len(blob.Data)).Msg("video ready")
	return a, nil
}
