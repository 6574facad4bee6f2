package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sardine-ai/go-widget-config/bridge"
	"github.com/sardine-ai/go-widget-config/model"
	"github.com/sardine-ai/go-widget-config/value"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newGetCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <channel>",
		Short: "Print the configuration of a channel",
		Long: `Print the configuration of a channel. List channels (scenes, controls,
states) print the bridge result: {"data":[...]}, {"error":"Not Set Up"} or
{"err":"JSON ERROR"}. The app channel prints the stored object.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			channel, err := model.ParseChannel(args[0])
			if err != nil {
				return err
			}
			s, err := openSession(cmd.Context(), *configPath, false)
			if err != nil {
				return err
			}
			defer s.Close()

			if !channel.IsList() {
				blob, err := s.controller.ReadBlob(cmd.Context(), channel)
				if err != nil {
					return err
				}
				if blob == "" {
					return fmt.Errorf("%s: %s", channel, bridge.NotSetUpMessage)
				}
				fmt.Fprintln(cmd.OutOrStdout(), blob)
				return nil
			}

			result, err := bridge.New(s.controller).GetChannelListSync(cmd.Context(), channel)
			if err != nil {
				return err
			}
			return printValue(cmd.OutOrStdout(), result)
		},
	}
}

func newSetCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "set <channel> <file>",
		Short: "Store a JSON document as the configuration of a channel",
		Long: `Store a JSON document as the configuration of a channel. The app channel
takes an object, list channels take an array. Use - to read from stdin.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			channel, err := model.ParseChannel(args[0])
			if err != nil {
				return err
			}
			data, err := readInput(cmd.InOrStdin(), args[1])
			if err != nil {
				return err
			}
			doc, err := value.Parse(data)
			if err != nil {
				return fmt.Errorf("%s: %w", args[1], err)
			}

			s, err := openSession(cmd.Context(), *configPath, false)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := apply(cmd, bridge.New(s.controller), channel, doc); err != nil {
				return err
			}
			return checkStored(cmd, s, channel)
		},
	}
}

func newClearCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove the app configuration and empty every list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(cmd.Context(), *configPath, false)
			if err != nil {
				return err
			}
			defer s.Close()

			resp := bridge.New(s.controller).ClearAllData(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), resp.JSON())
			return nil
		},
	}
}

func newSeedCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <file.yaml>",
		Short: "Load every channel from a YAML document",
		Long: `Load every channel from a YAML document whose top-level keys name channels,
for example:

  app:
    appKey: demo
    languageKey: en
  scenes:
    - id: 1
      name: Evening

Channels missing from the document are left untouched.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			var node yaml.Node
			if err := yaml.Unmarshal(data, &node); err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			doc, err := value.FromYAML(&node)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			if doc.Kind() != value.KindMap {
				return fmt.Errorf("%s: expected a mapping of channels, found %s", args[0], doc.Kind())
			}

			// Resolve every key before writing anything.
			channels := make([]model.Channel, 0, doc.Len())
			for _, key := range doc.Map().Keys() {
				channel, err := model.ParseChannel(key)
				if err != nil {
					return fmt.Errorf("%s: %w", args[0], err)
				}
				channels = append(channels, channel)
			}

			s, err := openSession(cmd.Context(), *configPath, false)
			if err != nil {
				return err
			}
			defer s.Close()

			b := bridge.New(s.controller)
			for i, key := range doc.Map().Keys() {
				section, _ := doc.Get(key)
				if err := apply(cmd, b, channels[i], section); err != nil {
					return err
				}
				if err := checkStored(cmd, s, channels[i]); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// apply hands doc to the bridge operation of channel and prints its
// acknowledgement.
func apply(cmd *cobra.Command, b *bridge.Bridge, channel model.Channel, doc value.Value) error {
	if !channel.IsList() {
		if doc.Kind() != value.KindMap {
			return fmt.Errorf("%s: expected an object, found %s", channel, doc.Kind())
		}
		b.SetUpAppInfoValue(cmd.Context(), doc.Map())
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", channel, model.Success.JSON())
		return nil
	}
	if doc.Kind() != value.KindList {
		return fmt.Errorf("%s: expected an array, found %s", channel, doc.Kind())
	}
	resp := b.SaveChannelValue(cmd.Context(), channel, doc)
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", channel, resp.JSON())
	return nil
}

// checkStored fails when a write the bridge acknowledged did not reach the
// repository. Bridge writes only log store failures.
func checkStored(cmd *cobra.Command, s *session, channel model.Channel) error {
	blob, err := s.controller.ReadBlob(cmd.Context(), channel)
	if err != nil {
		return err
	}
	if blob == "" {
		return fmt.Errorf("%s: write was not stored", channel)
	}
	return nil
}

func readInput(stdin io.Reader, name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(name)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: no such file", name)
	}
	return data, err
}

func printValue(w io.Writer, v value.Value) error {
	body, err := v.MarshalJSON()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(body))
	return err
}
