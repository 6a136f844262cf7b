// Package testutil provides stub pipeline collaborators for tests.
package testutil

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"strings"
	"sync"

	"github.com/anderson-ufrj/meeting-intelligence/internal/meeting"
	"github.com/anderson-ufrj/meeting-intelligence/internal/redact"
)

// StubEmbedder maps text to a deterministic bag-of-words vector: each token
// bumps the bucket its hash lands in. Similar texts share buckets, so cosine
// ranking behaves sensibly in end-to-end tests without a real model.
type StubEmbedder struct {
	Dim int
}

func NewStubEmbedder(dim int) *StubEmbedder {
	return &StubEmbedder{Dim: dim}
}

func (e *StubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.Dim)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		tok = strings.Trim(tok, ".,:;!?()[]<>\"'")
		if tok == "" {
			continue
		}
		h := fnv.New32a()
		h.Write([]byte(tok))
		vec[int(h.Sum32())%e.Dim]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		n := float32(math.Sqrt(norm))
		for i := range vec {
			vec[i] /= n
		}
	}
	return vec, nil
}

func (e *StubEmbedder) Dimension() int { return e.Dim }

// StubExtractor returns a fixed bundle (or error) and records what it saw,
// so tests can assert the pipeline handed it redacted text.
type StubExtractor struct {
	mu sync.Mutex

	Bundle *meeting.InsightBundle
	Err    error

	LastText         string
	LastParticipants []string
	Calls            int
}

func (x *StubExtractor) Extract(_ context.Context, text string, participants []string) (*meeting.InsightBundle, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.LastText = text
	x.LastParticipants = participants
	x.Calls++

	if x.Err != nil {
		return nil, x.Err
	}
	if x.Bundle != nil {
		b := *x.Bundle
		return &b, nil
	}
	return &meeting.InsightBundle{Summary: "stub summary of " + firstWords(text, 6)}, nil
}

// ReceivedText returns the text of the most recent Extract call.
func (x *StubExtractor) ReceivedText() string {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.LastText
}

// StubScorer returns a neutral record per speaker, or a configured error.
type StubScorer struct {
	Err error

	// FailSpeaker, when set, makes only that speaker's scoring fail.
	FailSpeaker string
}

func (s *StubScorer) Score(_ context.Context, speaker string, texts []string) (*meeting.SentimentRecord, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	if s.FailSpeaker != "" && speaker == s.FailSpeaker {
		return nil, errors.New("scorer down for " + speaker)
	}
	if len(texts) == 0 {
		return nil, nil
	}
	return &meeting.SentimentRecord{
		Speaker:    speaker,
		Sentiment:  meeting.SentimentNeutral,
		Confidence: 0.5,
	}, nil
}

// FailingRedactor simulates an unavailable redaction service.
type FailingRedactor struct{}

func (FailingRedactor) Redact(context.Context, string) (*redact.Result, error) {
	return nil, errors.New("redaction service unreachable")
}

// FailingEmbedder makes indexing fail while the rest of the run succeeds.
type FailingEmbedder struct {
	Dim int
}

func (e *FailingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("embedding service unreachable")
}

func (e *FailingEmbedder) Dimension() int { return e.Dim }

func firstWords(text string, n int) string {
	words := strings.Fields(text)
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}
