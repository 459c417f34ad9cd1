package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nerrad567/partcompat/internal/compat"
	"github.com/nerrad567/partcompat/internal/infrastructure/mqtt"
)

func newWatchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print change events published by running servers until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if !cfg.MQTT.Enabled {
				return errors.New("mqtt is disabled in config")
			}
			log := opts.cliLogger(cfg)

			mqttCfg := cfg.MQTT
			mqttCfg.Broker.ClientID += "-watch"
			client, err := mqtt.Connect(mqttCfg)
			if err != nil {
				return fmt.Errorf("connecting to MQTT: %w", err)
			}
			defer client.Close() //nolint:errcheck // shutdown path
			client.SetLogger(log)

			out := cmd.OutOrStdout()
			// #nosec G115 -- qos validated to 0..2 by config
			err = client.Subscribe(client.Topics().AllEvents(), byte(cfg.MQTT.QoS), func(_ string, payload []byte) error {
				if opts.jsonOut {
					_, werr := fmt.Fprintln(out, string(payload))
					return werr
				}
				var ev compat.ChangeEvent
				if err := json.Unmarshal(payload, &ev); err != nil {
					return fmt.Errorf("decoding change event: %w", err)
				}
				_, werr := fmt.Fprintln(out, formatEvent(ev))
				return werr
			})
			if err != nil {
				return err
			}

			<-cmd.Context().Done()
			return nil
		},
	}
}

// formatEvent renders a change event as one line.
func formatEvent(ev compat.ChangeEvent) string {
	ts := ev.Timestamp.Format("2006-01-02 15:04:05")
	switch ev.Type {
	case compat.EventLinked:
		line := fmt.Sprintf("%s linked %s group %s: %s", ts, ev.PartType, ev.GroupID, strings.Join(ev.Models, ", "))
		if n := len(ev.MergedGroupIDs); n > 0 {
			line += fmt.Sprintf(" (merged %d)", n)
		}
		return line
	case compat.EventDeleted:
		return fmt.Sprintf("%s deleted %s", ts, strings.Join(ev.Models, ", "))
	default:
		return fmt.Sprintf("%s %s %s", ts, ev.Type, strings.Join(ev.Models, ", "))
	}
}
