// Package provider turns a conversation into a stream of reply text. Each wire
// format is one Source: the native streaming protocol, the OpenAI-compatible
// delta protocol, and a network-free mock.
package provider

import (
	"context"
	"net/url"
	"strings"

	"github.com/papercomputeco/chatrelay/pkg/llm"
)

// Kind identifies a reply source.
type Kind int

const (
	// KindMock generates canned replies locally.
	KindMock Kind = iota

	// KindNative speaks the vendor's native streamGenerateContent protocol.
	KindNative

	// KindOpenAI speaks the OpenAI-compatible chat completions protocol.
	KindOpenAI
)

func (k Kind) String() string {
	switch k {
	case KindMock:
		return "mock"
	case KindNative:
		return "native"
	case KindOpenAI:
		return "openai"
	default:
		return "unknown"
	}
}

// NativeHost is the host of the vendor's native API. Endpoints on this host
// use the native protocol; every other endpoint is treated as OpenAI-compatible.
const NativeHost = "generativelanguage.googleapis.com"

// Yield receives reply text in order. A non-nil return stops the stream and is
// returned from Source.Stream.
type Yield func(text string) error

// Source streams a reply for a conversation. Implementations never retry and
// must stop promptly once ctx is done.
type Source interface {
	Kind() Kind
	Stream(ctx context.Context, messages []llm.Message, opts llm.Options, yield Yield) error
}

// Classify selects the source kind for opts. Remote use requires both the
// remote switch and an API key; without them the mock is used unconditionally.
func Classify(opts llm.Options) Kind {
	if !opts.Remote() {
		return KindMock
	}

	base := strings.TrimSpace(opts.APIBase)
	if base == "" || strings.Contains(hostOf(base), NativeHost) {
		return KindNative
	}
	return KindOpenAI
}

func hostOf(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return endpoint
	}
	return u.Hostname()
}

// Set holds one Source per kind.
type Set struct {
	Mock   Source
	Native Source
	OpenAI Source
}

// For returns the source registered for kind, or nil.
func (s Set) For(kind Kind) Source {
	switch kind {
	case KindMock:
		return s.Mock
	case KindNative:
		return s.Native
	case KindOpenAI:
		return s.OpenAI
	default:
		return nil
	}
}
