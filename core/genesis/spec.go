package genesis

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"questchain/native/quest"
)

// GenesisSpec describes how a fresh ledger is instantiated.
type GenesisSpec struct {
	GenesisTime      string  `yaml:"genesis_time"`
	Initializer      string  `yaml:"initializer"`
	Owner            *string `yaml:"owner,omitempty"`
	QuestCreationFee string  `yaml:"quest_creation_fee"`
	InitialBalance   string  `yaml:"initial_balance"`

	genesisTimestamp time.Time
}

// LoadGenesisSpec reads and validates a YAML genesis file. Unknown keys are
// rejected.
func LoadGenesisSpec(path string) (*GenesisSpec, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("genesis spec path must be provided")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis spec %q: %w", path, err)
	}
	spec, err := ParseGenesisSpec(raw)
	if err != nil {
		return nil, fmt.Errorf("genesis spec %q: %w", path, err)
	}
	return spec, nil
}

// ParseGenesisSpec decodes and validates a YAML genesis document.
func ParseGenesisSpec(raw []byte) (*GenesisSpec, error) {
	var spec GenesisSpec
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := spec.validate(); err != nil {
		return nil, fmt.Errorf("invalid: %w", err)
	}
	return &spec, nil
}

// GenesisTimestamp returns the parsed genesis time.
func (s *GenesisSpec) GenesisTimestamp() time.Time { return s.genesisTimestamp }

// InstantiateMsg converts the spec into the ledger's instantiate message.
func (s *GenesisSpec) InstantiateMsg() quest.InstantiateMsg {
	msg := quest.InstantiateMsg{
		QuestCreationFee: strings.TrimSpace(s.QuestCreationFee),
		InitialBalance:   strings.TrimSpace(s.InitialBalance),
	}
	if s.Owner != nil {
		owner := strings.TrimSpace(*s.Owner)
		msg.Owner = &owner
	}
	return msg
}

func (s *GenesisSpec) validate() error {
	parsedTime, err := parseGenesisTime(s.GenesisTime)
	if err != nil {
		return err
	}
	s.genesisTimestamp = parsedTime

	if strings.TrimSpace(s.Initializer) == "" {
		return fmt.Errorf("initializer must be provided")
	}
	if s.Owner != nil && strings.TrimSpace(*s.Owner) == "" {
		return fmt.Errorf("owner must not be blank when set")
	}
	if _, err := quest.ParseAmount("quest_creation_fee", strings.TrimSpace(s.QuestCreationFee)); err != nil {
		return err
	}
	if _, err := quest.ParseAmount("initial_balance", strings.TrimSpace(s.InitialBalance)); err != nil {
		return err
	}
	return nil
}

func parseGenesisTime(value string) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return time.Time{}, fmt.Errorf("genesis_time must be provided")
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts, nil
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts, nil
	}
	return time.Time{}, fmt.Errorf("invalid genesis_time %q", value)
}
