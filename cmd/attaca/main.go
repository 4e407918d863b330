// Command attaca is the thin, non-normative CLI front-end over the core
// library (§6.4): it parses arguments and hands off to modules/state,
// modules/checkout, modules/diff and modules/fsck, carrying no business
// logic of its own.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/attaca-vcs/attaca/internal/logx"
)

var log = logx.For("cli")

type cli struct {
	Init       initCmd       `cmd:"" help:"Initialise a new workspace in DIRECTORY (default: the current directory)."`
	Clone      cloneCmd      `cmd:"" help:"Clone a remote repository into PATH."`
	Status     statusCmd     `cmd:"" help:"Show the staged diff against HEAD."`
	Stage      stageCmd      `cmd:"" help:"Stage the whole workspace as the candidate tree; individual paths cannot be staged."`
	Unstage    unstageCmd    `cmd:"" help:"Clear the staged candidate tree."`
	Commit     commitCmd     `cmd:"" help:"Commit the staged candidate tree."`
	Checkout   checkoutCmd   `cmd:"" help:"Check out a commit or branch."`
	Branch     branchCmd     `cmd:"" help:"Create, delete, or list branches."`
	Remote     remoteCmd     `cmd:"" help:"Manage remotes."`
	Fetch      fetchCmd      `cmd:"" help:"Fetch a remote's branches."`
	Push       pushCmd       `cmd:"" help:"Push the current branch to a remote."`
	Pull       pullCmd       `cmd:"" help:"Fetch and check out the current branch's upstream."`
	Log        logCmd        `cmd:"" help:"Show the commit history reachable from HEAD."`
	Show       showCmd       `cmd:"" help:"Show a commit's subtree summary."`
	Fsck       fsckCmd       `cmd:"" help:"Verify every blob reachable from any branch; a detached HEAD commit no branch reaches is not checked."`
	Version    versionCmd    `cmd:"" help:"Print version information."`
}

func main() {
	var c cli
	parser := kong.Parse(&c,
		kong.Name("attaca"),
		kong.Description("Content-addressed version control for large binary trees."),
		kong.UsageOnError(),
	)
	err := parser.Run(context.Background())
	if err != nil {
		log.Errorf("cli", "%v", err)
		fmt.Fprintln(os.Stderr, "attaca:", err)
		os.Exit(1)
	}
}
