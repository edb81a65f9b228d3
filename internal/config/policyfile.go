package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/invisible-tech/autopilot-remediation-agent/internal/policy"
)

// PolicyFile is the optional on-disk safety policy. Every field is a
// pointer so an absent key leaves the running value untouched.
type PolicyFile struct {
	ConfidenceThreshold *float64 `yaml:"confidence_threshold"`
	AutoActionEnabled   *bool    `yaml:"auto_action_enabled"`
	RequireApprovalFor  []string `yaml:"require_approval_for"`
}

// LoadPolicyFile parses the YAML policy at path.
func LoadPolicyFile(path string) (PolicyFile, error) {
	var pf PolicyFile
	data, err := os.ReadFile(path)
	if err != nil {
		return pf, fmt.Errorf("read policy file: %w", err)
	}
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return pf, fmt.Errorf("parse policy file: %w", err)
	}
	return pf, nil
}

// Apply pushes the file's set fields onto the runtime switches.
func (pf PolicyFile) Apply(sw *policy.Switches) {
	if pf.ConfidenceThreshold != nil {
		sw.SetConfidenceThreshold(*pf.ConfidenceThreshold)
	}
	if pf.AutoActionEnabled != nil {
		sw.SetAutoActionEnabled(*pf.AutoActionEnabled)
	}
	if pf.RequireApprovalFor != nil {
		sw.SetRequireApproval(pf.RequireApprovalFor)
	}
}

// PolicyWatcher reloads the policy file when it changes and applies it to
// the switches.
type PolicyWatcher struct {
	path     string
	switches *policy.Switches
	watcher  *fsnotify.Watcher
	log      *logrus.Logger
	done     chan struct{}
}

// NewPolicyWatcher loads and applies the policy at path, then watches its
// parent directory for changes. Editors and ConfigMap mounts replace the
// file rather than writing in place, so the directory is the reliable
// watch target.
func NewPolicyWatcher(path string, sw *policy.Switches, log *logrus.Logger) (*PolicyWatcher, error) {
	pf, err := LoadPolicyFile(path)
	if err != nil {
		return nil, err
	}
	pf.Apply(sw)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	pw := &PolicyWatcher{
		path:     path,
		switches: sw,
		watcher:  watcher,
		log:      log,
		done:     make(chan struct{}),
	}
	go pw.run()
	log.WithField("path", path).Info("Safety policy loaded, watching for changes")
	return pw, nil
}

func (pw *PolicyWatcher) run() {
	for {
		select {
		case event, ok := <-pw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(pw.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			pw.reload()
		case err, ok := <-pw.watcher.Errors:
			if !ok {
				return
			}
			pw.log.WithError(err).Debug("Policy watcher error")
		case <-pw.done:
			return
		}
	}
}

func (pw *PolicyWatcher) reload() {
	pf, err := LoadPolicyFile(pw.path)
	if err != nil {
		// A bad edit must not clobber the running policy.
		pw.log.WithError(err).Warn("Policy reload failed, keeping current settings")
		return
	}
	pf.Apply(pw.switches)
	pw.log.WithFields(logrus.Fields{
		"auto_action": pw.switches.AutoActionEnabled(),
		"threshold":   pw.switches.ConfidenceThreshold(),
	}).Info("Safety policy reloaded")
}

// Close stops the watcher.
func (pw *PolicyWatcher) Close() error {
	close(pw.done)
	return pw.watcher.Close()
}
