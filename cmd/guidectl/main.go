package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/MrSnakeDoc/guide/internal/domain"
	"github.com/MrSnakeDoc/guide/internal/logger"
	"github.com/MrSnakeDoc/guide/internal/redis"
	"github.com/MrSnakeDoc/guide/internal/sources/loader"
	"github.com/MrSnakeDoc/guide/internal/sources/m3u"
	"github.com/MrSnakeDoc/guide/internal/sources/manifest"
	"github.com/MrSnakeDoc/guide/internal/sources/xmltv"
	redisstore "github.com/MrSnakeDoc/guide/internal/store/redis"
	"github.com/MrSnakeDoc/guide/internal/version"
)

const (
	ExitSuccess      = 0
	ExitGeneralError = 1
	ExitUsageError   = 2
	ExitDataError    = 3
)

func main() {
	app := &cli.App{
		Name:    "guidectl",
		Usage:   "Inspect TV guides, playlists and the guide cache",
		Version: version.String(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "warn",
				Usage:   "debug, info, warn or error",
				EnvVars: []string{"GUIDE_LOG_LEVEL"},
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Value:   60 * time.Second,
				Usage:   "Per-document fetch timeout",
				EnvVars: []string{"GUIDE_FETCH_TIMEOUT"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "parse",
				Usage:     "Parse a guide and print its channels",
				ArgsUsage: "<file-or-url>",
				Flags: append(guideFlags(),
					&cli.BoolFlag{
						Name:    "programs",
						Aliases: []string{"p"},
						Usage:   "Include every programme in the output",
					},
				),
				Action: parseGuide,
			},
			{
				Name:  "match",
				Usage: "Match playlist channels against a guide",
				Flags: append(guideFlags(),
					&cli.StringFlag{
						Name:     "playlist",
						Aliases:  []string{"l"},
						Usage:    "Playlist file or URL",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "guide",
						Aliases:  []string{"g"},
						Usage:    "Guide file or URL",
						Required: true,
					},
					&cli.Float64Flag{
						Name:    "min-similarity",
						Value:   domain.DefaultMinSimilarity,
						Usage:   "Fuzzy acceptance threshold (0..1)",
						EnvVars: []string{"GUIDE_MIN_SIMILARITY"},
					},
					&cli.StringFlag{
						Name:    "country-attr",
						Value:   domain.DefaultCountryAttrKey,
						Usage:   "Playlist attribute holding the channel country",
						EnvVars: []string{"GUIDE_COUNTRY_ATTR"},
					},
				),
				Action: matchPlaylist,
			},
			{
				Name:      "lookup",
				Usage:     "Show the programmes of one channel",
				ArgsUsage: "<file-or-url> <channel-id>",
				Flags: append(guideFlags(),
					&cli.TimestampFlag{
						Name:   "from",
						Usage:  "Only programmes ending after this instant (RFC3339)",
						Layout: time.RFC3339,
					},
					&cli.TimestampFlag{
						Name:   "to",
						Usage:  "Only programmes starting before this instant (RFC3339)",
						Layout: time.RFC3339,
					},
					&cli.TimestampFlag{
						Name:   "at",
						Usage:  "Print only the programme airing at this instant (RFC3339)",
						Layout: time.RFC3339,
					},
				),
				Action: lookupChannel,
			},
			{
				Name:  "cache",
				Usage: "Inspect the Redis durable tier",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "redis-addr",
						Value:   "localhost:6379",
						EnvVars: []string{"GUIDE_REDIS_ADDR"},
					},
					&cli.StringFlag{
						Name:    "redis-username",
						Value:   "default",
						EnvVars: []string{"GUIDE_REDIS_USERNAME"},
					},
					&cli.StringFlag{
						Name:    "redis-password",
						EnvVars: []string{"GUIDE_REDIS_PASSWORD"},
					},
					&cli.IntFlag{
						Name:    "redis-db",
						EnvVars: []string{"GUIDE_REDIS_DB"},
					},
				},
				Subcommands: []*cli.Command{
					{
						Name:   "keys",
						Usage:  "List cached keys",
						Action: cacheKeys,
					},
					{
						Name:  "flush",
						Usage: "Delete every cached key",
						Flags: []cli.Flag{
							&cli.BoolFlag{
								Name:  "yes",
								Usage: "Confirm the deletion",
							},
						},
						Action: cacheFlush,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitGeneralError)
	}
}

func guideFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "type",
			Aliases: []string{"t"},
			Value:   manifest.KindXMLTV,
			Usage:   "Guide format: xmltv or embedded",
		},
		&cli.StringFlag{
			Name:    "timezone",
			Value:   "Local",
			Usage:   "Wall clock of embedded comment schedules",
			EnvVars: []string{"GUIDE_TIMEZONE"},
		},
	}
}

func outputJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func newLogger(c *cli.Context) logger.Logger {
	return logger.New(c.String("log-level"), true)
}

// fetch reads loc as a URL when it has an http(s) scheme, as a file otherwise.
func fetch(c *cli.Context, log logger.Logger, loc string) (string, error) {
	l := loader.New(c.Duration("timeout"), "", log)
	if strings.HasPrefix(loc, "http://") || strings.HasPrefix(loc, "https://") {
		return l.LoadFromURL(c.Context, loc)
	}
	return l.LoadFromFile(loc)
}

func parserFor(c *cli.Context, log logger.Logger) (domain.GuideParser, error) {
	switch c.String("type") {
	case manifest.KindXMLTV:
		return xmltv.New(xmltv.Options{Log: log}), nil
	case manifest.KindEmbedded:
		loc, err := time.LoadLocation(c.String("timezone"))
		if err != nil {
			return nil, fmt.Errorf("invalid timezone: %w", err)
		}
		return m3u.NewGuideParser(m3u.GuideOptions{Location: loc, Log: log}), nil
	default:
		return nil, fmt.Errorf("unknown guide type %q", c.String("type"))
	}
}

func loadGuide(c *cli.Context, log logger.Logger, loc string) (*domain.Guide, error) {
	parser, err := parserFor(c, log)
	if err != nil {
		return nil, cli.Exit(err.Error(), ExitUsageError)
	}
	text, err := fetch(c, log, loc)
	if err != nil {
		return nil, cli.Exit(err.Error(), ExitDataError)
	}
	g, err := parser.Parse(text)
	if err != nil {
		return nil, cli.Exit(err.Error(), ExitDataError)
	}
	return g, nil
}

type parseOutput struct {
	Channels   []domain.GuideChannel            `json:"channels"`
	Programs   int                              `json:"programs"`
	Skipped    int                              `json:"skipped"`
	References []domain.GuideReference          `json:"references,omitempty"`
	Schedule   map[string][]domain.GuideProgram `json:"schedule,omitempty"`
}

func parseGuide(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("Usage: guidectl parse <file-or-url>", ExitUsageError)
	}

	g, err := loadGuide(c, newLogger(c), c.Args().Get(0))
	if err != nil {
		return err
	}

	out := parseOutput{
		Channels:   g.ChannelList(),
		Programs:   g.ProgramCount(),
		Skipped:    g.Skipped,
		References: g.References,
	}
	if c.Bool("programs") {
		out.Schedule = g.Programs
	}
	return outputJSON(out)
}

func matchPlaylist(c *cli.Context) error {
	log := newLogger(c)

	g, err := loadGuide(c, log, c.String("guide"))
	if err != nil {
		return err
	}

	text, err := fetch(c, log, c.String("playlist"))
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}
	playlist, err := m3u.ParsePlaylist(strings.NewReader(text))
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}

	res := domain.Match(playlist, g.ChannelList(), &domain.MatchOptions{
		CountryAttrKey: c.String("country-attr"),
		MinSimilarity:  domain.Threshold(c.Float64("min-similarity")),
	})
	return outputJSON(res)
}

func lookupChannel(c *cli.Context) error {
	if c.NArg() < 2 {
		return cli.Exit("Usage: guidectl lookup <file-or-url> <channel-id>", ExitUsageError)
	}

	g, err := loadGuide(c, newLogger(c), c.Args().Get(0))
	if err != nil {
		return err
	}

	id := c.Args().Get(1)
	programs, ok := g.Programs[id]
	if !ok {
		return cli.Exit(fmt.Sprintf("channel %q has no programmes", id), ExitDataError)
	}

	if at := c.Timestamp("at"); at != nil {
		p, ok := domain.AiringAt(programs, *at)
		if !ok {
			return cli.Exit("nothing airing at "+at.Format(time.RFC3339), ExitDataError)
		}
		return outputJSON(p)
	}

	var from, to time.Time
	if t := c.Timestamp("from"); t != nil {
		from = *t
	}
	if t := c.Timestamp("to"); t != nil {
		to = *t
	}
	return outputJSON(domain.Window(programs, from, to))
}

func openCache(c *cli.Context) (*redisstore.Durable, func() error, error) {
	client, err := redis.Connect(c.Context, redis.ConnectOptions{
		Addr:           c.String("redis-addr"),
		User:           c.String("redis-username"),
		Password:       c.String("redis-password"),
		DB:             c.Int("redis-db"),
		DialTimeout:    5 * time.Second,
		ReadTimeout:    3 * time.Second,
		WriteTimeout:   3 * time.Second,
		PoolSize:       2,
		ConnectTimeout: 10 * time.Second,
		RetryInterval:  time.Second,
		MaxWait:        5 * time.Second,
		PingTimeout:    2 * time.Second,
		WarnThreshold:  3,
	}, newLogger(c))
	if err != nil {
		return nil, nil, cli.Exit(err.Error(), ExitDataError)
	}
	return redisstore.NewDurable(client, 0), client.Close, nil
}

func cacheKeys(c *cli.Context) error {
	d, closeFn, err := openCache(c)
	if err != nil {
		return err
	}
	defer func() { _ = closeFn() }()

	keys, err := d.Keys(c.Context)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}
	if keys == nil {
		keys = []string{}
	}
	return outputJSON(keys)
}

func cacheFlush(c *cli.Context) error {
	if !c.Bool("yes") {
		return cli.Exit("Refusing to flush without --yes", ExitUsageError)
	}

	d, closeFn, err := openCache(c)
	if err != nil {
		return err
	}
	defer func() { _ = closeFn() }()

	ctx, cancel := context.WithTimeout(c.Context, time.Minute)
	defer cancel()
	if err := d.Flush(ctx); err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}
	fmt.Println("Guide cache flushed")
	return nil
}
