package main

import (
	"errors"
	"os"

	"github.com/pterm/pterm"

	"github.com/bernd-wechner/Degoo/backend"
	"github.com/bernd-wechner/Degoo/cli"
)

// Exit codes, one per error kind, so scripts can tell an auth problem
// from a bad path from a flaky network.
const (
	exitOK = iota
	exitGeneric
	exitAuth
	exitNotFound
	exitAmbiguous
	exitConflict
	exitTransfer
	exitIntegrity
)

func main() {
	rootCmd := cli.NewRootCommand()

	if err := rootCmd.Execute(); err != nil {
		pterm.Error.Println(err.Error())
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	var (
		authErr      *backend.AuthError
		notFoundErr  *backend.NotFoundError
		ambiguousErr *backend.AmbiguousNameError
		conflictErr  *backend.ConflictError
		transferErr  *backend.TransferFailed
		integrityErr *backend.IntegrityError
	)
	switch {
	case errors.As(err, &authErr):
		return exitAuth
	case errors.As(err, &notFoundErr):
		return exitNotFound
	case errors.As(err, &ambiguousErr):
		return exitAmbiguous
	case errors.As(err, &integrityErr):
		return exitIntegrity
	case errors.As(err, &transferErr):
		return exitTransfer
	case errors.As(err, &conflictErr):
		return exitConflict
	default:
		return exitGeneric
	}
}
