// Package cli parses voxseal command lines into a Parsed selection without
// running anything.
package cli

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"
)

type Command string

const (
	CommandEmbed   Command = "embed"
	CommandExtract Command = "extract"
	CommandCompare Command = "compare"
	CommandStop    Command = "stop"
	CommandCancel  Command = "cancel"
	CommandStatus  Command = "status"
	CommandDevices Command = "devices"
	CommandDoctor  Command = "doctor"
	CommandVersion Command = "version"
	CommandHelp    Command = "help"
)

var outputFormats = []string{"text", "yaml", "json"}

// Parsed is one command line. Empty Output and OutDir defer to config.
type Parsed struct {
	Command    Command
	ConfigPath string
	Output     string
	OutDir     string
	Yes        bool
	Preview    bool

	Image  string
	Audio  string
	Audio1 string
	Audio2 string
	Record bool

	ShowHelp bool
}

// Operation reports whether the command submits to the service.
func (p Parsed) Operation() bool {
	switch p.Command {
	case CommandEmbed, CommandExtract, CommandCompare:
		return true
	default:
		return false
	}
}

func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}
	root := newRoot(&parsed)
	root.SetArgs(args)

	if err := root.Execute(); err != nil {
		return Parsed{}, err
	}
	if parsed.Output != "" && !slices.Contains(outputFormats, parsed.Output) {
		return Parsed{}, fmt.Errorf("invalid --output %q: must be one of %s", parsed.Output, strings.Join(outputFormats, ", "))
	}
	return parsed, nil
}

func newRoot(parsed *Parsed) *cobra.Command {
	var showVersion bool

	selectCommand := func(cmd Command) func(*cobra.Command, []string) error {
		return func(*cobra.Command, []string) error {
			parsed.Command = cmd
			parsed.ShowHelp = false
			return nil
		}
	}

	root := &cobra.Command{
		Use:           "voxseal",
		Short:         "Embed, extract and compare voice samples via a stego service",
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				return selectCommand(CommandVersion)(cmd, args)
			}
			return nil
		},
	}
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetHelpFunc(func(*cobra.Command, []string) {
		parsed.Command = CommandHelp
		parsed.ShowHelp = true
	})
	root.SetHelpCommand(&cobra.Command{
		Use:  "help",
		Args: cobra.ArbitraryArgs,
		RunE: func(*cobra.Command, []string) error {
			parsed.Command = CommandHelp
			parsed.ShowHelp = true
			return nil
		},
	})
	root.CompletionOptions.DisableDefaultCmd = true

	flags := root.PersistentFlags()
	flags.StringVar(&parsed.ConfigPath, "config", "", "config file path")
	flags.StringVarP(&parsed.Output, "output", "o", "", "output format: text, yaml, json")
	flags.StringVar(&parsed.OutDir, "out-dir", "", "directory for downloaded artifacts")
	flags.BoolVarP(&parsed.Yes, "yes", "y", false, "acknowledge result dialogs automatically")
	root.Flags().BoolVar(&showVersion, "version", false, "show version")

	embed := &cobra.Command{
		Use:   "embed",
		Short: "Hide a WAV voice sample inside a PNG/JPG image",
		Args:  cobra.NoArgs,
		RunE:  selectCommand(CommandEmbed),
	}
	embed.Flags().StringVar(&parsed.Image, "image", "", "cover image (PNG or JPG)")
	embed.Flags().StringVar(&parsed.Audio, "audio", "", "voice sample (WAV)")
	embed.Flags().BoolVar(&parsed.Preview, "preview", false, "open the stego image after saving")

	extract := &cobra.Command{
		Use:   "extract",
		Short: "Recover the hidden voice sample from a stego image",
		Args:  cobra.NoArgs,
		RunE:  selectCommand(CommandExtract),
	}
	extract.Flags().StringVar(&parsed.Image, "image", "", "stego image (PNG or JPG)")
	extract.Flags().BoolVar(&parsed.Preview, "preview", false, "play the extracted audio after saving")

	compare := &cobra.Command{
		Use:   "compare",
		Short: "Compare two voice samples for speaker similarity",
		Args:  cobra.NoArgs,
		RunE:  selectCommand(CommandCompare),
	}
	compare.Flags().StringVar(&parsed.Audio1, "audio1", "", "first voice sample")
	compare.Flags().StringVar(&parsed.Audio2, "audio2", "", "second voice sample")
	compare.Flags().BoolVar(&parsed.Record, "record", false, "record the second sample from the microphone")
	compare.Flags().BoolVar(&parsed.Preview, "preview", false, "open the spectrum plot after saving")
	compare.MarkFlagsMutuallyExclusive("audio2", "record")

	root.AddCommand(
		embed,
		extract,
		compare,
		&cobra.Command{Use: "stop", Short: "Stop the active recording and keep it", Args: cobra.NoArgs, RunE: selectCommand(CommandStop)},
		&cobra.Command{Use: "cancel", Short: "Cancel the active recording", Args: cobra.NoArgs, RunE: selectCommand(CommandCancel)},
		&cobra.Command{Use: "status", Short: "Print recording state", Args: cobra.NoArgs, RunE: selectCommand(CommandStatus)},
		&cobra.Command{Use: "devices", Short: "List audio input devices", Args: cobra.NoArgs, RunE: selectCommand(CommandDevices)},
		&cobra.Command{Use: "doctor", Short: "Run configuration and environment checks", Args: cobra.NoArgs, RunE: selectCommand(CommandDoctor)},
		&cobra.Command{Use: "version", Short: "Print version information", Args: cobra.NoArgs, RunE: selectCommand(CommandVersion)},
	)
	return root
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [global flags] <command> [flags]

Commands:
  embed     --image FILE --audio FILE      Hide a WAV voice sample inside an image
  extract   --image FILE                   Recover the hidden voice sample
  compare   --audio1 FILE (--audio2 FILE | --record)
                                           Compare two voice samples
  stop      Stop the active recording and keep it
  cancel    Cancel the active recording
  status    Print recording state
  devices   List available input devices
  doctor    Run configuration and environment checks
  version   Print version information
  help      Show this help

Operation flags:
  --preview           Open saved artifacts with the configured player/viewer

Global flags:
  --config PATH       Config file path (default: $XDG_CONFIG_HOME/voxseal/config.jsonc)
  -o, --output FMT    Result format: text, yaml, json (default from config)
  --out-dir DIR       Directory for downloaded artifacts (default from config)
  -y, --yes           Acknowledge result dialogs automatically
  -h, --help          Show help
  --version           Show version
`, binaryName)
}
