package studio

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/AlexKimmel/BananaGate/internal/credential"
	"github.com/AlexKimmel/BananaGate/internal/genai"
	"github.com/rs/zerolog"
)

type ImageAPI interface {
	GenerateImage(ctx context.Context, apiKey, prompt string) (genai.InlineImage, error)
	EditImage(ctx context.Context, apiKey string, img genai.InlineImage, instruction string) (genai.InlineImage, error)
}

// API is everything a Session calls on the collaborator. *genai.Client
// satisfies it.
type API interface {
	ImageAPI
	VideoAPI
}

// Session holds one user's credential and the character image currently on
// screen. Each successful Generate, Edit or Import replaces that image.
type Session struct {
	api       API
	resolver  credential.Resolver
	artifacts *Store
	poller    *Poller
	log       zerolog.Logger

	mu        sync.Mutex
	cred      credential.Credential
	current   *Artifact
	needsAuth bool

	animating atomic.Bool
}

func NewSession(api API, resolver credential.Resolver, log zerolog.Logger) *Session {
	artifacts := NewStore()
	return &Session{
		api:       api,
		resolver:  resolver,
		artifacts: artifacts,
		poller:    NewPoller(api, artifacts, log),
		log:       log.With().Str("component", "session").Logger(),
	}
}

func (s *Session) Poller() *Poller   { return s.poller }
func (s *Session) Artifacts() *Store { return s.artifacts }

func (s *Session) Login(c credential.Credential) {
	s.mu.Lock()
	s.cred = c
	s.needsAuth = false
	s.mu.Unlock()
	s.log.Info().Str("source", c.Source().String()).Msg("credential set")
}

func (s *Session) Logout() {
	s.mu.Lock()
	s.cred = credential.Credential{}
	s.needsAuth = true
	s.mu.Unlock()
}

// NeedsAuth reports whether a credential must be supplied before the next call.
func (s *Session) NeedsAuth() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.needsAuth || s.cred.IsZero()
}

func (s *Session) key() (string, error) {
	s.mu.Lock()
	c := s.cred
	s.mu.Unlock()
	k, err := s.resolver.Resolve(c)
	if err != nil {
		return "", newError(MissingCredential, "no api key available", err)
	}
	return k, nil
}

// fail drops the credential when the collaborator says the key cannot see
// the requested resource.
func (s *Session) fail(err error) error {
	if genai.IsEntityNotFound(err) {
		s.log.Warn().Err(err).Msg("credential rejected, logging out")
		s.Logout()
	}
	return err
}

func (s *Session) replace(a *Artifact) {
	s.mu.Lock()
	old := s.current
	s.current = a
	s.mu.Unlock()
	if old != nil && old != a {
		s.artifacts.Delete(old.ID)
	}
}

func (s *Session) Current() (*Artifact, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.current != nil
}

func (s *Session) Clear() {
	s.replace(nil)
}

// Import makes img the current image without calling the collaborator.
func (s *Session) Import(img genai.InlineImage) (*Artifact, error) {
	if len(img.Data) == 0 {
		return nil, newError(InvalidInput, "empty image", nil)
	}
	mimeType := img.MIMEType
	if mimeType == "" {
		mimeType = "image/png"
	}
	a := s.artifacts.Put(mimeType, img.Data, "")
	s.replace(a)
	return a, nil
}

func (s *Session) Generate(ctx context.Context, prompt string) (*Artifact, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, newError(InvalidInput, "prompt is required", nil)
	}
	key, err := s.key()
	if err != nil {
		return nil, err
	}
	img, err := s.api.GenerateImage(ctx, key, prompt)
	if err != nil {
		return nil, s.fail(classify("generate image", err))
	}
	a := s.artifacts.Put(img.MIMEType, img.Data, prompt)
	s.replace(a)
	s.log.Info().Str("artifact", a.ID).Int("bytes", len(img.Data)).Msg("image generated")
	return a, nil
}

// Edit applies instruction to the current image.
func (s *Session) Edit(ctx context.Context, instruction string) (*Artifact, error) {
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		return nil, newError(InvalidInput, "edit instruction is required", nil)
	}
	cur, ok := s.Current()
	if !ok {
		return nil, newError(InvalidInput, "no image to edit", nil)
	}
	key, err := s.key()
	if err != nil {
		return nil, err
	}
	img, err := s.api.EditImage(ctx, key, genai.InlineImage{MIMEType: cur.MIMEType, Data: cur.Data}, instruction)
	if err != nil {
		return nil, s.fail(classify("edit image", err))
	}
	a := s.artifacts.Put(img.MIMEType, img.Data, instruction)
	s.replace(a)
	s.log.Info().Str("artifact", a.ID).Int("bytes", len(img.Data)).Msg("image edited")
	return a, nil
}

// Animate turns req.Image, or the current image when req.Image is empty, into
// a video. Only one animation runs per session at a time.
func (s *Session) Animate(ctx context.Context, req AnimateRequest) (*Artifact, error) {
	if !s.animating.CompareAndSwap(false, true) {
		return nil, newError(InvalidInput, "animation already in progress", nil)
	}
	defer s.animating.Store(false)

	if len(req.Image.Data) == 0 {
		cur, ok := s.Current()
		if !ok {
			return nil, newError(InvalidInput, "no image to animate", nil)
		}
		req.Image = genai.InlineImage{MIMEType: cur.MIMEType, Data: cur.Data}
	}
	key, err := s.key()
	if err != nil {
		return nil, err
	}
	a, err := s.poller.Run(ctx, key, req)
	if err != nil {
		return nil, s.fail(err)
	}
	return a, nil
}
