package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/simwire/simwire/pkg/message"
)

func messagesCmd() *cobra.Command {
	var frequency string

	cmd := &cobra.Command{
		Use:   "messages [name...]",
		Short: "List the message templates this build understands",
		Long: `List every registered message type with its id, trust rule and
delivery flags.

Flags column:
  R  reliable by default
  Z  zero-coded by default
  E  has an event queue encoding
  D  sent over the event queue only when one is registered

Examples:
  simwire messages
  simwire messages --frequency low
  simwire messages LayerData ChatFromViewer`,
		RunE: func(cmd *cobra.Command, args []string) error {
			descs, err := selectMessages(message.Default(), frequency, args)
			if err != nil {
				return err
			}
			writeMessages(cmd.OutOrStdout(), descs)
			return nil
		},
	}

	cmd.Flags().StringVarP(&frequency, "frequency", "f", "", "Only list high, medium, low or fixed ids")

	return cmd
}

func selectMessages(reg *message.Registry, frequency string, names []string) ([]*message.Descriptor, error) {
	var descs []*message.Descriptor
	if len(names) > 0 {
		for _, name := range names {
			d, ok := reg.ByName(name)
			if !ok {
				return nil, fmt.Errorf("unknown message %q", name)
			}
			descs = append(descs, d)
		}
	} else {
		descs = reg.Descriptors()
	}
	if frequency == "" {
		return descs, nil
	}

	out := descs[:0:0]
	for _, d := range descs {
		if strings.EqualFold(d.ID.Frequency().String(), frequency) {
			out = append(out, d)
		}
	}
	if len(out) == 0 && !validFrequency(frequency) {
		return nil, fmt.Errorf("unknown frequency %q", frequency)
	}
	return out, nil
}

func validFrequency(s string) bool {
	switch strings.ToLower(s) {
	case "high", "medium", "low", "fixed":
		return true
	}
	return false
}

func messageFlags(d *message.Descriptor) string {
	flags := []byte("----")
	if d.Reliable {
		flags[0] = 'R'
	}
	if d.ZeroCoded {
		flags[1] = 'Z'
	}
	if d.EventQueue != nil {
		flags[2] = 'E'
	}
	if d.UDPDeprecated {
		flags[3] = 'D'
	}
	return string(flags)
}

func writeMessages(w io.Writer, descs []*message.Descriptor) {
	nameWidth := len("NAME")
	for _, d := range descs {
		nameWidth = max(nameWidth, len(d.Name))
	}
	fmt.Fprintf(w, "%-18s %-*s %-15s %s\n", "ID", nameWidth, "NAME", "TRUST", "FLAGS")
	for _, d := range descs {
		fmt.Fprintf(w, "%-18s %-*s %-15s %s\n", d.ID, nameWidth, d.Name, d.Trust, messageFlags(d))
	}
	fmt.Fprintf(w, "\n%d message types\n", len(descs))
}
