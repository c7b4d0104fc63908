package appenv

import (
	"log/slog"
	"os"

	"github.com/myrjola/keeper/internal/errors"
	"github.com/spf13/cobra"
)

// VerboseFlag is the persistent root flag switching the logs to debug level.
const VerboseFlag = "verbose"

// LookupEnv is the environment lookup of the commands.
var LookupEnv = os.LookupEnv //nolint:gochecknoglobals // replaced in tests

// Run opens the Env for the command, runs fn and closes the Env.
func Run(cmd *cobra.Command, fn func(env *Env) error) (err error) {
	level := slog.LevelWarn
	if verbose, _ := cmd.Flags().GetBool(VerboseFlag); verbose {
		level = slog.LevelDebug
	}
	env, err := Open(cmd.Context(), LookupEnv, cmd.ErrOrStderr(), level)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, errors.Wrap(env.Close(), "close database"))
	}()
	return fn(env)
}
