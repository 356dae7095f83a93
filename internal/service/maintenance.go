// SPDX-License-Identifier: MPL-2.0

package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/simplensm/simplensm/internal/container"
)

// ruleConfigFiles are picked up from the working directory and mounted
// into /etc/suricata of the service and rule update containers.
//
//nolint:gochecknoglobals // read-only list
var ruleConfigFiles = []string{"enable.conf", "disable.conf"}

// ErrNotRunning is returned by Shell when the target container is not running.
var ErrNotRunning = errors.New("container is not running")

const eveBoxAdminUser = "admin"

// PullImages pulls the image of every enabled service. Every image is
// attempted even if an earlier pull failed.
func (c *Controller) PullImages(ctx context.Context) error {
	var errs []error
	for _, svc := range c.topology.StartOrder() {
		if !svc.Enabled {
			continue
		}
		c.logger.Info("pulling image", "service", svc.Role, "image", svc.Image)
		if err := c.engine.Pull(ctx, svc.Image); err != nil {
			errs = append(errs, fmt.Errorf("failed to pull %s: %w", svc.Image, err))
		}
	}
	return errors.Join(errs...)
}

// UpdateRules runs suricata-update in throwaway Suricata containers that
// share the lib volume with the service: first to refresh the source index,
// then to fetch rules. enable.conf and disable.conf from the working
// directory are mounted into the second run when present. Suricata must be
// restarted for new rules to take effect.
func (c *Controller) UpdateRules(ctx context.Context, stdio container.Stdio, tty bool) error {
	svc := c.topology.Suricata

	var errs []error
	sources, err := c.ruleUpdateRun(svc, tty, nil).Args("suricata-update", "update-sources").Build()
	if err != nil {
		return fmt.Errorf("invalid rule update container: %w", err)
	}
	c.logger.Debug("updating rule sources", "command", sources.String())
	if err := c.engine.RunAttached(ctx, sources, stdio); err != nil {
		c.logger.Error("rule source update did not complete", "error", err)
		errs = append(errs, fmt.Errorf("rule source update failed: %w", err))
	}

	rules, err := c.ruleUpdateRun(svc, tty, c.ruleConfigMounts()).Args("suricata-update").Build()
	if err != nil {
		return errors.Join(append(errs, fmt.Errorf("invalid rule update container: %w", err))...)
	}
	c.logger.Debug("updating rules", "command", rules.String())
	if err := c.engine.RunAttached(ctx, rules, stdio); err != nil {
		c.logger.Error("rule update did not complete", "error", err)
		errs = append(errs, fmt.Errorf("rule update failed: %w", err))
	}
	return errors.Join(errs...)
}

// ruleConfigMounts binds the rule configuration files present in the
// working directory over their /etc/suricata counterparts.
func (c *Controller) ruleConfigMounts() []container.VolumeMount {
	var mounts []container.VolumeMount
	for _, name := range ruleConfigFiles {
		path, err := filepath.Abs(filepath.Join(c.workDir, name))
		if err != nil {
			continue
		}
		if _, err := os.Stat(path); err == nil {
			c.logger.Info("using local rule configuration", "file", path)
			mounts = append(mounts, container.VolumeMount{Source: path, Target: "/etc/suricata/" + name})
		}
	}
	return mounts
}

func (c *Controller) ruleUpdateRun(svc Service, tty bool, extra []container.VolumeMount) *container.RunBuilder {
	b := c.engine.NewRun(svc.Image).RemoveOnExit()
	if tty {
		b.Interactive()
	}
	if lib, ok := svc.volume(suricataLibDir); ok {
		b.Volume(lib)
	}
	for _, v := range extra {
		b.Volume(v)
	}
	return b
}

// ResetPassword recreates the EveBox admin user in throwaway EveBox
// containers sharing the service's volumes. EveBox prompts for the new
// password, so stdio should be a terminal. Removing a user that does not
// exist fails and is ignored.
func (c *Controller) ResetPassword(ctx context.Context, stdio container.Stdio, tty bool) error {
	svc := c.topology.EveBox
	c.ensureBindDirs(svc)

	remove, err := c.eveBoxConfigRun(svc, tty).Args("evebox", "config", "users", "rm", eveBoxAdminUser).Build()
	if err != nil {
		return fmt.Errorf("invalid evebox container: %w", err)
	}
	c.logger.Debug("removing evebox user", "command", remove.String())
	if err := c.engine.RunAttached(ctx, remove, stdio); err != nil {
		c.logger.Debug("evebox user not removed", "user", eveBoxAdminUser, "error", err)
	}

	add, err := c.eveBoxConfigRun(svc, tty).Args("evebox", "config", "users", "add", "--username", eveBoxAdminUser).Build()
	if err != nil {
		return fmt.Errorf("invalid evebox container: %w", err)
	}
	c.logger.Debug("adding evebox user", "command", add.String())
	if err := c.engine.RunAttached(ctx, add, stdio); err != nil {
		return fmt.Errorf("failed to reset the %s password: %w", eveBoxAdminUser, err)
	}
	c.logger.Info("evebox password reset", "user", eveBoxAdminUser)
	return nil
}

func (c *Controller) eveBoxConfigRun(svc Service, tty bool) *container.RunBuilder {
	b := c.engine.NewRun(svc.Image).RemoveOnExit()
	if tty {
		b.Interactive()
	}
	for _, v := range svc.Volumes {
		b.Volume(v)
	}
	return b
}

// RotateLogs forces logrotate inside the running Suricata container.
func (c *Controller) RotateLogs(ctx context.Context, stdio container.Stdio) error {
	name := c.topology.Suricata.Name
	err := c.engine.Exec(ctx, name, []string{"logrotate", "-fv", "/etc/logrotate.d/suricata"},
		container.ExecOptions{Stdio: stdio})
	if err != nil {
		return fmt.Errorf("failed to rotate logs: %w", err)
	}
	return nil
}

// Shell opens an interactive shell in the running container for role.
func (c *Controller) Shell(ctx context.Context, role Role, stdio container.Stdio) error {
	svc, err := c.topology.Service(role)
	if err != nil {
		return err
	}
	state, err := c.engine.InspectState(ctx, svc.Name)
	if err != nil || !state.Running {
		return fmt.Errorf("%s: %w", svc.Name, ErrNotRunning)
	}

	shell := "/bin/sh"
	if role == RoleSuricata {
		shell = "bash"
	}
	return c.engine.Exec(ctx, svc.Name, []string{shell}, container.ExecOptions{
		Stdio:       stdio,
		Interactive: true,
		Env:         []string{`PS1=[\u@` + svc.Name + ` \W]\$ `},
	})
}

// LogsCommand returns an unstarted command streaming the logs of role.
func (c *Controller) LogsCommand(ctx context.Context, role Role, opts container.LogsOptions) (*exec.Cmd, error) {
	svc, err := c.topology.Service(role)
	if err != nil {
		return nil, err
	}
	return c.engine.LogsCommand(ctx, svc.Name, opts), nil
}
