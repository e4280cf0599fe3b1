package main

import (
	"fmt"
	"os"

	"github.com/flemzord/claimd/internal/app"
	"github.com/kardianos/service"
	"github.com/spf13/cobra"
)

// program adapts app.Run to the service manager's lifecycle.
type program struct {
	cfgPath string
}

// Start implements service.Interface. The service manager expects Start to
// return promptly, so the daemon runs in its own goroutine.
func (p *program) Start(service.Service) error {
	go func() {
		if err := app.Run(app.Params{ConfigPath: p.cfgPath, Version: version}); err != nil {
			fmt.Fprintln(os.Stderr, "claimd:", err)
		}
	}()
	return nil
}

// Stop implements service.Interface. app.Run exits on the SIGTERM the
// service manager delivers; nothing extra to tear down here.
func (p *program) Stop(service.Service) error { return nil }

func serviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "service [install|uninstall|start|stop|run]",
		Short:     "Manage claimd as a system service",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"install", "uninstall", "start", "stop", "run"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")

			svcConfig := &service.Config{
				Name:        "claimd",
				DisplayName: "claimd",
				Description: "Recurring bonus-claim worker for stored Telegram account sessions",
				Arguments:   []string{"service", "run"},
			}
			if cfgPath != "" {
				svcConfig.Arguments = append(svcConfig.Arguments, "--config", cfgPath)
			}

			svc, err := service.New(&program{cfgPath: cfgPath}, svcConfig)
			if err != nil {
				return fmt.Errorf("service: %w", err)
			}

			action := args[0]
			if action == "run" {
				return svc.Run()
			}
			if err := service.Control(svc, action); err != nil {
				return fmt.Errorf("service %s: %w", action, err)
			}
			fmt.Printf("service %s: done\n", action)
			return nil
		},
	}
	cmd.Flags().StringP("config", "c", "", "Path to configuration file")
	return cmd
}
