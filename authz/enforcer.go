// Package authz is the explicit ownership check that runs after owner-scoped
// queries have loaded a record. The rules live in an embedded casbin model and
// policy so they can be swapped for files without code changes.
package authz

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"
)

//go:embed model.conf
var embeddedModel string

//go:embed policy.csv
var embeddedPolicy string

// ErrDenied is returned when the policy does not allow the request.
var ErrDenied = errors.New("access denied")

type Config struct {
	// ModelPath and PolicyPath override the embedded files when they exist.
	ModelPath  string
	PolicyPath string
}

// Enforcer wraps a synced casbin enforcer.
type Enforcer struct {
	enforcer *casbin.SyncedEnforcer
}

// NewEnforcer loads the model and policy. A nil cfg uses the embedded ones.
func NewEnforcer(cfg *Config) (*Enforcer, error) {
	if cfg == nil {
		cfg = &Config{}
	}

	var (
		m   model.Model
		err error
	)
	if fileExists(cfg.ModelPath) {
		m, err = model.NewModelFromFile(cfg.ModelPath)
	} else {
		m, err = model.NewModelFromString(embeddedModel)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load casbin model: %w", err)
	}

	var e *casbin.SyncedEnforcer
	if fileExists(cfg.PolicyPath) {
		e, err = casbin.NewSyncedEnforcer(m, fileadapter.NewAdapter(cfg.PolicyPath))
	} else {
		e, err = casbin.NewSyncedEnforcer(m)
		if err == nil {
			err = loadEmbeddedPolicy(e, embeddedPolicy)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}

	return &Enforcer{enforcer: e}, nil
}

func loadEmbeddedPolicy(e *casbin.SyncedEnforcer, policy string) error {
	for _, line := range strings.Split(policy, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if parts[0] != "p" || len(parts) < 3 {
			continue
		}
		if _, err := e.AddPolicy(parts[1], parts[2]); err != nil {
			return fmt.Errorf("failed to add policy %v: %w", parts[1:], err)
		}
	}
	return nil
}

// Authorize returns nil when subject may perform action on a record owned by owner.
func (e *Enforcer) Authorize(subject, owner uint, action string) error {
	ok, err := e.enforcer.Enforce(userKey(subject), userKey(owner), action)
	if err != nil {
		return fmt.Errorf("enforcement failed: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: user %d cannot %s records of user %d", ErrDenied, subject, action, owner)
	}
	return nil
}

func userKey(id uint) string {
	return "user:" + strconv.FormatUint(uint64(id), 10)
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
