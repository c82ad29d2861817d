package main

import (
	"io"
	"log"
	"os"

	"smash/internal/config"
	"smash/internal/shell"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// shellAPI is the part of *shell.Shell the commands drive.
type shellAPI interface {
	HandleSignals()
	Execute(line string) shell.Outcome
	Run(in io.Reader) error
	RunPipeChild(line, snapshot string)
	Close()
}

var shellFactory = func(opts shell.Options) shellAPI {
	return shell.New(opts)
}

var (
	configPath   string
	commandLine  string
	pipeChild    bool
	jobsSnapshot string
	shellPID     int
	fs           = afero.NewOsFs()
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML or JSON config file")
	rootCmd.Flags().StringVarP(&commandLine, shell.FlagCommand, "c", "", "Run a single command line and exit")

	rootCmd.Flags().BoolVar(&pipeChild, shell.FlagPipeChild, false, "Run as the left side of a pipe")
	rootCmd.Flags().StringVar(&jobsSnapshot, shell.FlagJobsSnapshot, "", "Jobs table handed over by the parent shell")
	rootCmd.Flags().IntVar(&shellPID, shell.FlagShellPID, 0, "Pid of the interactive shell")
	for _, name := range []string{shell.FlagPipeChild, shell.FlagJobsSnapshot, shell.FlagShellPID} {
		_ = rootCmd.Flags().MarkHidden(name)
	}
}

var rootCmd = &cobra.Command{
	Use:          "smash",
	Short:        "smash: a small shell with job control",
	Long:         `smash reads command lines and runs them through an external interpreter, keeping track of background, stopped and timed jobs.`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(fs, configPath)
		if err != nil {
			return err
		}
		logger, closeLog, err := openLog(cfg.LogFile)
		if err != nil {
			return err
		}
		defer closeLog()

		sh := shellFactory(shell.Options{
			Config:    cfg,
			Logger:    logger,
			PipeChild: pipeChild,
			PID:       shellPID,
		})
		sh.HandleSignals()
		defer sh.Close()

		switch {
		case pipeChild:
			sh.RunPipeChild(commandLine, jobsSnapshot)
			return nil
		case cmd.Flags().Changed(shell.FlagCommand):
			sh.Execute(commandLine)
			return nil
		default:
			return sh.Run(os.Stdin)
		}
	},
}

// openLog returns the debug logger. Without a log file it discards output.
func openLog(path string) (*log.Logger, func(), error) {
	if path == "" {
		return log.New(io.Discard, "", 0), func() {}, nil
	}
	f, err := fs.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, err
	}
	l := log.New(f, "smash ", log.LstdFlags|log.Lmicroseconds)
	l.Printf("pid %d started", os.Getpid())
	return l, func() { f.Close() }, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
