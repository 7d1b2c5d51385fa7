package telemetry

import (
	"bytes"
	"context"
	"encoding/json"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nimdanitro/ubibot-scraper-go/pkg/ubibot"
)

const (
	DefaultHistoryLimit = 100
	DefaultConcurrency  = 4
)

// ChannelSource is the upstream the aggregator reads from. *ubibot.Client
// implements it.
type ChannelSource interface {
	ListChannels(ctx context.Context) ([]ubibot.Channel, error)
	FetchFeed(ctx context.Context, channelID ubibot.ChannelID, limit int) ([]ubibot.Payload, error)
}

// Snapshot holds the latest reading per kind; a missing key means no
// channel of that kind supplied one.
type Snapshot map[Kind]Reading

func (s Snapshot) MarshalJSON() ([]byte, error) {
	return marshalByKind(func(k Kind) any {
		r, ok := s[k]
		if !ok {
			return nil
		}
		return r
	})
}

// History holds feed records per kind in upstream order.
type History map[Kind][]FeedRecord

func (h History) MarshalJSON() ([]byte, error) {
	return marshalByKind(func(k Kind) any {
		recs := h[k]
		if recs == nil {
			return []FeedRecord{}
		}
		return recs
	})
}

func marshalByKind(value func(Kind) any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range Kinds() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(string(k))
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(value(k))
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

type Aggregator struct {
	src         ChannelSource
	log         *zap.Logger
	classifier  *Classifier
	concurrency int
}

type Option func(a *Aggregator)

func NewAggregator(src ChannelSource, opts ...Option) *Aggregator {
	a := &Aggregator{
		src:         src,
		log:         zap.L(),
		classifier:  NewClassifier(DefaultRules()),
		concurrency: DefaultConcurrency,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

func WithLogger(l *zap.Logger) Option {
	return func(a *Aggregator) {
		a.log = l
	}
}

func WithClassifier(c *Classifier) Option {
	return func(a *Aggregator) {
		a.classifier = c
	}
}

// WithConcurrency bounds how many channel feeds are fetched in parallel.
func WithConcurrency(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

// Latest builds the snapshot across all channels. Channels are processed in
// list order and a later channel overwrites the reading of an earlier one of
// the same kind. Only a failing channel list is reported as an error.
func (a *Aggregator) Latest(ctx context.Context) (Snapshot, error) {
	channels, err := a.src.ListChannels(ctx)
	if err != nil {
		return nil, err
	}

	snap := Snapshot{}
	for _, ch := range channels {
		kinds := a.classify(ch)
		if len(kinds) == 0 {
			continue
		}

		fields, err := Decode(ch.LastValues)
		if err != nil {
			ChannelFailures.WithLabelValues("decode_latest").Inc()
			a.log.Warn("cannot decode channel values",
				zap.String("channelID", string(ch.ChannelID)),
				zap.String("name", ch.Name),
				zap.Error(err),
			)
			continue
		}

		for _, k := range kinds {
			if _, seen := snap[k]; seen {
				a.log.Debug("overwriting reading",
					zap.String("kind", string(k)),
					zap.String("channelID", string(ch.ChannelID)),
				)
			}
			snap[k] = Project(k, fields, ShapeLatest)
		}
	}
	return snap, nil
}

type channelResult struct {
	channel ubibot.Channel
	kinds   []Kind
	feeds   []ubibot.Payload
	err     error
}

// History collects up to limit feed records per kind across all matching
// channels. It never fails: a channel list or feed error only shrinks the
// result.
func (a *Aggregator) History(ctx context.Context, limit int) History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	hist := History{}
	for _, k := range Kinds() {
		hist[k] = []FeedRecord{}
	}

	channels, err := a.src.ListChannels(ctx)
	if err != nil {
		ChannelFailures.WithLabelValues("list_channels").Inc()
		a.log.Error("cannot list channels for history", zap.Error(err))
		return hist
	}

	var results []*channelResult
	for _, ch := range channels {
		if kinds := a.classify(ch); len(kinds) > 0 {
			results = append(results, &channelResult{channel: ch, kinds: kinds})
		}
	}

	// each goroutine owns exactly one slot of results; merging happens
	// after Wait in channel order
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for _, res := range results {
		g.Go(func() error {
			res.feeds, res.err = a.src.FetchFeed(gctx, res.channel.ChannelID, limit)
			return nil
		})
	}
	_ = g.Wait()

	for _, res := range results {
		if res.err != nil {
			ChannelFailures.WithLabelValues("fetch_feed").Inc()
			a.log.Error("cannot fetch channel feed",
				zap.String("channelID", string(res.channel.ChannelID)),
				zap.String("name", res.channel.Name),
				zap.Error(res.err),
			)
			continue
		}

		for _, entry := range res.feeds {
			fields, err := Decode(entry)
			if err != nil {
				ChannelFailures.WithLabelValues("decode_feed").Inc()
				a.log.Warn("cannot decode feed entry",
					zap.String("channelID", string(res.channel.ChannelID)),
					zap.Error(err),
				)
				continue
			}
			for _, k := range res.kinds {
				hist[k] = append(hist[k], ProjectRecord(k, fields))
			}
		}

		for _, k := range res.kinds {
			if len(hist[k]) > limit {
				hist[k] = hist[k][:limit]
			}
		}
	}
	return hist
}

func (a *Aggregator) classify(ch ubibot.Channel) []Kind {
	kinds := a.classifier.Classify(ch.Name)
	for _, k := range kinds {
		ChannelsClassified.WithLabelValues(string(k)).Inc()
	}
	if len(kinds) == 0 {
		a.log.Debug("ignoring unclassified channel",
			zap.String("channelID", string(ch.ChannelID)),
			zap.String("name", ch.Name),
		)
	}
	return kinds
}
