package cmd

import (
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Imziyasser00/calis-blog-sub001/internal/id/uuid"
	"github.com/Imziyasser00/calis-blog-sub001/internal/trackclient"
)

type trackOptions struct {
	baseURL   string
	eventType string
	path      string
	referrer  string
	pageURL   string
	source    string
	sessionID string
	redisAddr string
	metadata  map[string]string
}

func newTrackCmd() *cobra.Command {
	opts := &trackOptions{}
	cmd := &cobra.Command{
		Use:   "track",
		Short: "Send one tracking event to a running API",
		Long: `Posts a single event to <base-url>/api/track the way the site's browser
client does. The session id and first-touch UTM parameters are kept in memory,
or in Redis when --redis-addr is given so repeated runs share a session.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTrack(cmd, opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.baseURL, "base-url", "http://localhost:8080", "API base URL")
	f.StringVar(&opts.eventType, "type", "page_view", "event type")
	f.StringVar(&opts.path, "path", "", "page path")
	f.StringVar(&opts.referrer, "referrer", "", "document referrer")
	f.StringVar(&opts.pageURL, "url", "", "landing URL whose utm_* query parameters are captured")
	f.StringVar(&opts.source, "source", "", "event source (server defaults to web)")
	f.StringVar(&opts.sessionID, "session-id", "", "use this session id if none is stored yet")
	f.StringVar(&opts.redisAddr, "redis-addr", "", "Redis address for the session store")
	f.StringToStringVar(&opts.metadata, "meta", nil, "metadata key=value pairs")
	return cmd
}

func runTrack(cmd *cobra.Command, opts *trackOptions) error {
	rt, err := resolveRuntime(cmd.Context())
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	var kv trackclient.KV = trackclient.NewMemoryKV()
	if opts.redisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: opts.redisAddr})
		defer client.Close() //nolint:errcheck // best effort on exit
		kv = trackclient.NewRedisKV(client, rt.cfg.SubscriberStore.KeyPrefix)
	}
	if opts.sessionID != "" {
		if _, err := kv.SetIfAbsent(ctx, trackclient.SessionKey, opts.sessionID); err != nil {
			return fmt.Errorf("seed session id: %w", err)
		}
	}

	clientOpts := []trackclient.Option{}
	if opts.source != "" {
		clientOpts = append(clientOpts, trackclient.WithSource(opts.source))
	}
	client, err := trackclient.New(opts.baseURL, kv, uuid.New(), clientOpts...)
	if err != nil {
		return err
	}
	if opts.pageURL != "" {
		if _, err := client.CaptureUTM(ctx, opts.pageURL); err != nil {
			return err
		}
	}

	var metadata map[string]any
	if len(opts.metadata) > 0 {
		metadata = make(map[string]any, len(opts.metadata))
		for k, v := range opts.metadata {
			metadata[strings.TrimSpace(k)] = v
		}
	}
	if err := client.Track(ctx, trackclient.Event{
		Type:     opts.eventType,
		Path:     opts.path,
		Referrer: opts.referrer,
		Metadata: metadata,
	}); err != nil {
		return fmt.Errorf("track event: %w", err)
	}

	sessionID, err := client.SessionID(ctx)
	if err != nil {
		return err
	}
	rt.logger.Debug("event sent", zap.String("session_id", sessionID), zap.String("event_type", opts.eventType))
	fmt.Fprintf(cmd.OutOrStdout(), "sent %s for session %s\n", opts.eventType, sessionID)
	return nil
}
