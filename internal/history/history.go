package history

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ghodss/yaml"

	"github.com/penguinpowernz/deeptalk/config"
	"github.com/penguinpowernz/deeptalk/internal/ai"
	"github.com/penguinpowernz/deeptalk/internal/convo"
)

var (
	cfg config.Config
	id  string
	mu  sync.Mutex
)

func SetConfig(c config.Config) { cfg = c }
func SetSessionID(s string)     { id = s }

// History is the on-disk session record. Context holds exactly what gets
// resent to the model; Turns is the full archive with deliberations kept.
type History struct {
	Context []ai.Message `yaml:"context"`
	Turns   []convo.Turn `yaml:"turns"`
}

// SaveContext persists the request-eligible message list for the session.
func SaveContext(messages []ai.Message) error {
	mu.Lock()
	defer mu.Unlock()

	history, err := load()
	if err != nil {
		return err
	}
	history.Context = messages
	return write(history)
}

// SaveTurns persists the full turn archive, deliberations included.
func SaveTurns(turns []convo.Turn) error {
	mu.Lock()
	defer mu.Unlock()

	history, err := load()
	if err != nil {
		return err
	}
	history.Turns = turns
	return write(history)
}

func LoadHistory() (History, error) {
	mu.Lock()
	defer mu.Unlock()
	return load()
}

func load() (History, error) {
	fn := sessionFile()
	if _, err := os.Stat(fn); os.IsNotExist(err) {
		return History{}, nil
	}

	data, err := os.ReadFile(fn)
	if err != nil {
		return History{}, err
	}

	var history History
	if err := yaml.Unmarshal(data, &history); err != nil {
		return History{}, err
	}

	return history, nil
}

func write(history History) error {
	data, err := yaml.Marshal(history)
	if err != nil {
		return err
	}

	return os.WriteFile(sessionFile(), data, 0644)
}

func sessionFile() string {
	return filepath.Join(cfg.SessionDir, fmt.Sprintf("%s.yml", id))
}
