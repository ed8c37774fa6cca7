// Package grpcclient talks to the local inference engine over gRPC:
// transcription, diarization and the enrichment LLM.
package grpcclient

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/trnscrb/trnscrb/internal/audio"
	apperrors "github.com/trnscrb/trnscrb/internal/errors"
	"github.com/trnscrb/trnscrb/internal/metrics"
	"github.com/trnscrb/trnscrb/internal/resilience"
	"github.com/trnscrb/trnscrb/internal/trace"
	"github.com/trnscrb/trnscrb/internal/transcript"
)

// Options configures a Client.
type Options struct {
	Addr string
	// ModelSize returns the transcription model size for each call.
	ModelSize   func() string
	CallTimeout time.Duration
	Metrics     *metrics.Metrics
	// DialOptions are appended to the defaults (tests pass a bufconn dialer).
	DialOptions []grpc.DialOption
}

// Client is the inference engine client. It satisfies pipeline.Transcriber,
// pipeline.Diarizer and enrich.LLM.
type Client struct {
	conn     *grpc.ClientConn
	health   healthpb.HealthClient
	opts     Options
	breakers map[string]*resilience.Breaker
}

// New creates a client. The connection is established lazily.
func New(opts Options) (*Client, error) {
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultCallTimeout
	}
	if opts.ModelSize == nil {
		opts.ModelSize = func() string { return "small" }
	}

	dial := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                DefaultKeepaliveTime,
			Timeout:             DefaultKeepaliveTimeout,
			PermitWithoutStream: true,
		}),
		grpc.WithDefaultCallOptions(grpc.MaxCallRecvMsgSize(maxMessageSize)),
		grpc.WithUnaryInterceptor(trace.UnaryClientInterceptor()),
	}
	conn, err := grpc.NewClient(opts.Addr, append(dial, opts.DialOptions...)...)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ConfigInvalid, "inference engine address").
			WithMetadata("addr", opts.Addr)
	}

	c := &Client{
		conn:     conn,
		health:   healthpb.NewHealthClient(conn),
		opts:     opts,
		breakers: make(map[string]*resilience.Breaker),
	}
	for _, m := range []string{methodTranscribe, methodDiarize, methodComplete} {
		c.breakers[m] = resilience.New(resilience.EngineConfig(m)).
			WithHook(func(name string, _, to resilience.State) {
				opts.Metrics.SetBreakerState(name, int(to))
			})
	}
	return c, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Check asks the engine's health service whether it is serving.
func (c *Client) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, HealthCheckTimeout)
	defer cancel()
	resp, err := c.health.Check(ctx, &healthpb.HealthCheckRequest{Service: Service})
	if err != nil {
		return apperrors.FromGRPCError(err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return apperrors.Newf(apperrors.Unavailable, "inference engine is %s", resp.GetStatus())
	}
	return nil
}

// Transcribe sends the clip's path to the engine, which reads the WAV
// from the shared filesystem.
func (c *Client) Transcribe(ctx context.Context, clip *audio.Clip) ([]transcript.Segment, error) {
	out, err := c.invoke(ctx, methodTranscribe, resilience.EngineRetryConfig(), c.opts.CallTimeout, map[string]any{
		"audio_path":  clip.Path,
		"sample_rate": clip.SampleRate,
		"model_size":  c.opts.ModelSize(),
		"beam_size":   beamSize,
		"vad_filter":  true,
	})
	if err != nil {
		return nil, err
	}
	return decodeSegments(out), nil
}

// Diarize returns the speaker turns of the clip.
func (c *Client) Diarize(ctx context.Context, clip *audio.Clip, credential string) ([]transcript.Turn, error) {
	out, err := c.invoke(ctx, methodDiarize, resilience.EngineRetryConfig(), c.opts.CallTimeout, map[string]any{
		"audio_path": clip.Path,
		"hf_token":   credential,
	})
	if err != nil {
		return nil, err
	}
	return decodeTurns(out), nil
}

// Complete runs a single-turn prompt on the engine's LLM.
func (c *Client) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	out, err := c.invoke(ctx, methodComplete, resilience.LLMRetryConfig(), c.opts.CallTimeout, map[string]any{
		"prompt":     prompt,
		"max_tokens": maxTokens,
	})
	if err != nil {
		return "", err
	}
	return out.GetFields()["text"].GetStringValue(), nil
}

// invoke performs one unary call with a structpb request and response,
// behind the method's breaker and retry policy.
func (c *Client) invoke(ctx context.Context, method string, retry resilience.RetryConfig, timeout time.Duration, req map[string]any) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.InvalidArgument, "encode "+method+" request")
	}

	start := time.Now()
	out, err := resilience.Call(ctx, c.breakers[method], retry, func(ctx context.Context) (*structpb.Struct, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		out := &structpb.Struct{}
		if err := c.conn.Invoke(ctx, fullMethod(method), in, out); err != nil {
			return nil, err
		}
		return out, nil
	})
	c.opts.Metrics.RecordEngineCall(method, status.Code(err).String(), time.Since(start).Seconds())
	if err != nil {
		trace.Logger(ctx).Warn("engine call failed", "method", method, "error", err)
		return nil, apperrors.FromGRPCError(err)
	}
	return out, nil
}

func fullMethod(method string) string {
	return "/" + Service + "/" + method
}
