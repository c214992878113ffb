// The server component main package for exohost: a supervisor process that
// keeps a fixed pool of request-serving worker processes alive.
package exoserver

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"os"

	"github.com/function61/exohost/pkg/logtee"
	"github.com/function61/gokit/logex"
	"github.com/function61/gokit/ossignal"
	"github.com/function61/gokit/systemdinstaller"
	"github.com/spf13/cobra"
)

func Entrypoint() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Starts the server (worker pool supervisor)",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			rootLogger := logex.StandardLogger()

			if err := runSupervisor(
				ossignal.InterruptOrTerminateBackgroundCtx(rootLogger),
				rootLogger,
			); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "worker",
		Short: "Runs a single request-serving worker (the supervisor forks these)",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			logTail := logtee.NewStringTail(50)

			// writes to upstream all end up in stderr (and thus in the
			// supervisor's log), but logTail.Snapshot() only returns the last
			// "capacity" lines
			rootLogger := logex.StandardLoggerTo(logtee.NewLineSplitterTee(os.Stderr, func(line string) {
				logTail.Write(line)
			}))

			ctx, cancel := context.WithCancel(ossignal.InterruptOrTerminateBackgroundCtx(rootLogger))

			go func() {
				// wait for stdin EOF (or otherwise broken pipe)
				_, _ = io.Copy(ioutil.Discard, os.Stdin)

				logex.Levels(rootLogger).Error.Println("supervisor died (detected by closed stdin) - stopping")

				cancel()
			}()

			if err := runWorker(ctx, rootLogger, logTail); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "install",
		Short: "Installs systemd unit file to make exohost start on system boot",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			serviceFile := systemdinstaller.SystemdServiceFile(
				"exohost",
				"exohost asset hosting server",
				systemdinstaller.Args("server"),
				systemdinstaller.Docs("https://github.com/function61/exohost"),
				systemdinstaller.RequireNetworkOnline)

			if err := systemdinstaller.Install(serviceFile); err != nil {
				panic(err)
			} else {
				fmt.Println(systemdinstaller.GetHints(serviceFile))
			}
		},
	})

	return cmd
}
