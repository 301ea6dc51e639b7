package publishers

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Sink types accepted in the publishers file.
const (
	TypeHTTP      = "http"
	TypeSQS       = "sqs"
	TypeSNS       = "sns"
	TypeGCPPubSub = "gcp_pubsub"
)

// PublisherConfig is one sink entry of the publishers file.
type PublisherConfig struct {
	ID      string               `yaml:"id"`
	Type    string               `yaml:"type"`
	Enabled *bool                `yaml:"enabled"`
	HTTP    *HTTPPublisherConfig `yaml:"http"`
	SQS     *SQSPublisherConfig  `yaml:"sqs"`
	SNS     *SNSPublisherConfig  `yaml:"sns"`
	GCP     *GCPPubSubConfig     `yaml:"gcp_pubsub"`
}

// HTTPPublisherConfig posts each record to a webhook.
type HTTPPublisherConfig struct {
	URL            string            `yaml:"url"`
	Method         string            `yaml:"method"`
	Headers        map[string]string `yaml:"headers"`
	TimeoutSeconds int               `yaml:"timeout_seconds"`
}

// AWSCredentials optionally pins static keys and an endpoint such as a
// localstack URL. Empty fields fall back to the default AWS chain.
type AWSCredentials struct {
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	SessionToken    string `yaml:"session_token"`
	Endpoint        string `yaml:"endpoint"`
}

// SQSPublisherConfig targets one SQS queue.
type SQSPublisherConfig struct {
	QueueURL string `yaml:"uri"`
	Region   string `yaml:"region"`

	AWSCredentials `yaml:",inline"`
}

// SNSPublisherConfig targets one SNS topic.
type SNSPublisherConfig struct {
	TopicARN string `yaml:"topic_arn"`
	Region   string `yaml:"region"`

	AWSCredentials `yaml:",inline"`
}

// GCPPubSubConfig targets one Pub/Sub topic.
type GCPPubSubConfig struct {
	ProjectID       string `yaml:"project_id"`
	Topic           string `yaml:"topic"`
	CredentialsFile string `yaml:"credentials_file"`
	Endpoint        string `yaml:"endpoint"`
}

// LoadConfigs reads the publishers file and returns its enabled entries.
// An empty path means mirroring is off. The file may be YAML or JSON.
func LoadConfigs(path string) ([]PublisherConfig, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read publishers file: %w", err)
	}
	var file struct {
		Publishers []PublisherConfig `yaml:"publishers"`
	}
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decode publishers file: %w", err)
	}

	seen := make(map[string]bool, len(file.Publishers))
	enabled := make([]PublisherConfig, 0, len(file.Publishers))
	for i, cfg := range file.Publishers {
		cfg = normalize(cfg)
		if err := validate(cfg); err != nil {
			return nil, fmt.Errorf("publishers[%d]: %w", i, err)
		}
		if seen[cfg.ID] {
			return nil, fmt.Errorf("duplicate publisher id %q", cfg.ID)
		}
		seen[cfg.ID] = true
		if cfg.Enabled == nil || *cfg.Enabled {
			enabled = append(enabled, cfg)
		}
	}
	return enabled, nil
}

func normalize(cfg PublisherConfig) PublisherConfig {
	cfg.ID = strings.TrimSpace(cfg.ID)
	cfg.Type = strings.ToLower(strings.TrimSpace(cfg.Type))

	if h := cfg.HTTP; h != nil {
		c := *h
		c.URL = strings.TrimSpace(c.URL)
		c.Method = strings.ToUpper(strings.TrimSpace(c.Method))
		if c.Method == "" {
			c.Method = "POST"
		}
		if c.TimeoutSeconds <= 0 {
			c.TimeoutSeconds = 5
		}
		cfg.HTTP = &c
	}
	if q := cfg.SQS; q != nil {
		c := *q
		c.QueueURL, c.Region = strings.TrimSpace(c.QueueURL), strings.TrimSpace(c.Region)
		cfg.SQS = &c
	}
	if t := cfg.SNS; t != nil {
		c := *t
		c.TopicARN, c.Region = strings.TrimSpace(c.TopicARN), strings.TrimSpace(c.Region)
		cfg.SNS = &c
	}
	return cfg
}

func validate(cfg PublisherConfig) error {
	if cfg.ID == "" {
		return errors.New("id is required")
	}
	var missing bool
	switch cfg.Type {
	case TypeHTTP:
		missing = cfg.HTTP == nil || cfg.HTTP.URL == ""
	case TypeSQS:
		missing = cfg.SQS == nil || cfg.SQS.QueueURL == "" || cfg.SQS.Region == ""
	case TypeSNS:
		missing = cfg.SNS == nil || cfg.SNS.TopicARN == "" || cfg.SNS.Region == ""
	case TypeGCPPubSub:
		missing = cfg.GCP == nil || cfg.GCP.ProjectID == "" || cfg.GCP.Topic == ""
	default:
		return fmt.Errorf("publisher %q: unsupported type %q", cfg.ID, cfg.Type)
	}
	if missing {
		return fmt.Errorf("publisher %q: incomplete %s settings", cfg.ID, cfg.Type)
	}
	return nil
}
