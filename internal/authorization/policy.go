package authorization

import (
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/smallbiznis/promptlab/internal/config"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const policyKey = "grants"

// LoadChecker builds the Checker from the default table plus overrides in
// cfg.RBACPolicyFile. When the file is set it is watched and valid edits are
// applied without a restart.
func LoadChecker(cfg config.Config, log *zap.Logger) (*Checker, error) {
	log = log.Named("authorization.policy")
	path := strings.TrimSpace(cfg.RBACPolicyFile)
	if path == "" {
		return NewChecker(DefaultGrants())
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	grants, err := readGrants(v)
	if err != nil {
		return nil, err
	}
	checker, err := NewChecker(grants)
	if err != nil {
		return nil, err
	}
	log.Info("capability table loaded", zap.String("file", path), zap.Int("grants", len(grants)))

	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := readGrants(v)
		if err != nil {
			log.Warn("capability table reload failed", zap.String("file", e.Name), zap.Error(err))
			return
		}
		if err := checker.Apply(updated); err != nil {
			log.Warn("invalid capability table ignored", zap.String("file", e.Name), zap.Error(err))
			return
		}
		log.Info("capability table reloaded", zap.String("file", e.Name), zap.Int("grants", len(updated)))
	})
	v.WatchConfig()

	return checker, nil
}

func readGrants(v *viper.Viper) ([]Grant, error) {
	var overrides []Grant
	if err := v.UnmarshalKey(policyKey, &overrides); err != nil {
		return nil, err
	}
	grants := MergeGrants(DefaultGrants(), overrides)
	if err := ValidateGrants(grants); err != nil {
		return nil, err
	}
	return grants, nil
}
