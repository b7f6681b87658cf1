package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/jonathan/curator/internal/types"
	"gopkg.in/yaml.v3"
)

// Seed is the content of an agent seed file.
type Seed struct {
	Feeds  []types.FeedSource
	Agents []*types.Agent
}

// seedFile mirrors the YAML layout. Agents stay raw so each one can be decoded on
// top of the agent defaults.
type seedFile struct {
	Feeds  []feedSeed  `yaml:"feeds"`
	Agents []yaml.Node `yaml:"agents"`
}

type feedSeed struct {
	ID     uuid.UUID `yaml:"id"`
	Name   string    `yaml:"name"`
	URL    string    `yaml:"url"`
	Active *bool     `yaml:"active"`
}

// agentFeeds holds the feed URLs an agent seed may list instead of feed IDs.
type agentFeeds struct {
	Feeds []string `yaml:"feeds"`
}

// AgentID derives the stable ID of a seeded agent without an explicit id.
func AgentID(name string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("curator:agent:"+strings.TrimSpace(name)))
}

// FeedID derives the stable ID of a seeded feed without an explicit id.
func FeedID(url string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(strings.TrimSpace(url)))
}

// LoadSeed reads and validates a YAML seed file.
func LoadSeed(path string) (*Seed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	return ParseSeed(f)
}

// ParseSeed decodes a seed document. Every agent starts from types.NewAgent so
// omitted fields keep their defaults; feeds listed by URL on an agent are added
// to the feed list when missing.
func ParseSeed(r io.Reader) (*Seed, error) {
	var raw seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return &Seed{}, nil
		}
		return nil, fmt.Errorf("failed to parse seed YAML: %w", err)
	}

	seed := &Seed{}
	feedIDs := make(map[string]uuid.UUID)
	for i, fs := range raw.Feeds {
		if strings.TrimSpace(fs.URL) == "" {
			return nil, fmt.Errorf("seed error: feed %d has no url", i+1)
		}
		feed := types.FeedSource{ID: fs.ID, Name: fs.Name, URL: strings.TrimSpace(fs.URL), Active: true}
		if feed.ID == uuid.Nil {
			feed.ID = FeedID(feed.URL)
		}
		if feed.Name == "" {
			feed.Name = feed.URL
		}
		if fs.Active != nil {
			feed.Active = *fs.Active
		}
		feedIDs[feed.URL] = feed.ID
		seed.Feeds = append(seed.Feeds, feed)
	}

	for i := range raw.Agents {
		node := &raw.Agents[i]

		var extra agentFeeds
		if err := node.Decode(&extra); err != nil {
			return nil, fmt.Errorf("seed error: agent %d: %w", i+1, err)
		}

		agent := types.NewAgent()
		if err := node.Decode(agent); err != nil {
			return nil, fmt.Errorf("seed error: agent %d: %w", i+1, err)
		}
		agent.WithDefaults()
		if agent.ID == uuid.Nil {
			agent.ID = AgentID(agent.Name)
		}

		for _, url := range extra.Feeds {
			url = strings.TrimSpace(url)
			id, ok := feedIDs[url]
			if !ok {
				id = FeedID(url)
				feedIDs[url] = id
				seed.Feeds = append(seed.Feeds, types.FeedSource{ID: id, Name: url, URL: url, Active: true})
			}
			agent.Search.FeedSourceIDs = append(agent.Search.FeedSourceIDs, id)
		}

		if err := agent.Validate(); err != nil {
			return nil, fmt.Errorf("seed error: agent %q: %w", agent.Name, err)
		}
		seed.Agents = append(seed.Agents, agent)
	}
	return seed, nil
}
